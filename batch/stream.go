// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package batch provides columnar assembly of Apache Arrow record
// batches for the format scanners: a pull-driven batch stream, schema
// helpers and Arrow IPC serialization.
package batch

import (
	"io"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"go.uber.org/multierr"
)

// A FillFunc appends up to max rows to the given builder, returning
// the number of rows appended. End of input is reported as io.EOF,
// which may accompany a final short row count. A FillFunc must append
// complete rows only.
type FillFunc func(b *array.RecordBuilder, max int) (int, error)

// A Stream is a bounded iterator over Arrow record batches sharing one
// schema. Batches are produced by a blocking call to Next; the caller
// drives the loop:
//
//	for s.Next() {
//		use(s.Batch())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Every batch has the stream's schema; only the final batch may hold
// fewer than the configured batch size rows.
type Stream struct {
	schema    *arrow.Schema
	batchSize int
	fill      FillFunc

	bld *array.RecordBuilder
	rec arrow.Record

	err     error
	done    bool
	closers []io.Closer
}

// NewStream returns a Stream producing batches of at most batchSize
// rows from the given fill function.
func NewStream(schema *arrow.Schema, batchSize int, fill FillFunc) *Stream {
	return &Stream{
		schema:    schema,
		batchSize: batchSize,
		fill:      fill,
		bld:       array.NewRecordBuilder(memory.DefaultAllocator, schema),
	}
}

// Schema returns the schema shared by all of the stream's batches.
func (s *Stream) Schema() *arrow.Schema { return s.schema }

// Next advances the Stream to the next record batch. It returns false
// when the stream is exhausted or an error occurs; Err distinguishes
// the two. On a mid-batch error partially appended rows are discarded.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	if s.rec != nil {
		s.rec.Release()
		s.rec = nil
	}
	s.bld.Reserve(s.batchSize)
	n, err := s.fill(s.bld, s.batchSize)
	if err != nil && err != io.EOF {
		s.err = err
		s.done = true
		s.bld.NewRecord().Release()
		return false
	}
	if err == io.EOF {
		s.done = true
	}
	if n == 0 {
		return false
	}
	s.rec = s.bld.NewRecord()
	return true
}

// Batch returns the record batch produced by the last call to Next.
// The batch is valid until the next call to Next or Close.
func (s *Stream) Batch() arrow.Record { return s.rec }

// Err returns the terminal error of the stream, if any.
func (s *Stream) Err() error { return s.err }

// EmptyBatch returns a zero-row batch of the stream's schema. It is
// used to represent empty query results. The caller is responsible
// for releasing the returned batch.
func (s *Stream) EmptyBatch() arrow.Record {
	return s.bld.NewRecord()
}

// AttachCloser registers a resource to be closed with the Stream,
// typically the source and index handles owned by the scan.
func (s *Stream) AttachCloser(c io.Closer) { s.closers = append(s.closers, c) }

// Close releases the stream's builders and closes attached resources.
func (s *Stream) Close() error {
	if s.rec != nil {
		s.rec.Release()
		s.rec = nil
	}
	if s.bld != nil {
		s.bld.Release()
		s.bld = nil
	}
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c.Close())
	}
	s.closers = nil
	s.done = true
	return err
}
