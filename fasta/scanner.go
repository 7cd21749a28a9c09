// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fasta

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/batch"
	"github.com/abdenlab/oxbow-go/bgzf"
	"github.com/abdenlab/oxbow-go/fai"
)

// Options configures a FASTA Scanner.
type Options struct {
	// Fields projects the columns; nil means all.
	Fields []string

	// BatchSize is the maximum rows per emitted batch.
	BatchSize int

	// Compressed wraps the source in BGZF decoding. Region slicing
	// over a compressed source additionally requires a GZI offset
	// map.
	Compressed bool
}

// A Scanner decodes FASTA records into Arrow record batches.
type Scanner struct {
	src    oxbow.Source
	opts   Options
	fields []arrow.Field
	schema *arrow.Schema
}

// FieldNames lists the FASTA columns in schema order.
var FieldNames = []string{"name", "description", "sequence"}

// NewScanner returns a Scanner for the FASTA data supplied by src.
func NewScanner(src oxbow.Source, opts Options) (*Scanner, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = oxbow.DefaultBatchSize
	}
	all := []arrow.Field{
		batch.Field("name", arrow.BinaryTypes.String),
		batch.Field("description", arrow.BinaryTypes.String),
		batch.Field("sequence", arrow.BinaryTypes.String),
	}
	fields, err := batch.Project(all, opts.Fields)
	if err != nil {
		return nil, fmt.Errorf("fasta: %v", err)
	}
	return &Scanner{
		src:    src,
		opts:   opts,
		fields: fields,
		schema: arrow.NewSchema(fields, nil),
	}, nil
}

// Schema returns the computed Arrow schema without consuming records.
func (s *Scanner) Schema() *arrow.Schema { return s.schema }

func (s *Scanner) open() (io.ReadCloser, io.Reader, error) {
	rc, err := s.src.Open()
	if err != nil {
		return nil, nil, err
	}
	if !s.opts.Compressed {
		return rc, rc, nil
	}
	bg, err := bgzf.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, nil, err
	}
	return rc, bg, nil
}

func (s *Scanner) appendRow(rb *array.RecordBuilder, name, desc, seq string, hasDesc bool) {
	for i, f := range s.fields {
		switch f.Name {
		case "name":
			rb.Field(i).(*array.StringBuilder).Append(name)
		case "description":
			db := rb.Field(i).(*array.StringBuilder)
			if hasDesc {
				db.Append(desc)
			} else {
				db.AppendNull()
			}
		case "sequence":
			rb.Field(i).(*array.StringBuilder).Append(seq)
		}
	}
}

// Scan returns a stream over all records in file order. A positive
// limit stops the scan after that many records.
func (s *Scanner) Scan(limit int) (*batch.Stream, error) {
	rc, in, err := s.open()
	if err != nil {
		return nil, err
	}
	r := NewReader(in)
	count := 0
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			if limit > 0 && count == limit {
				return n, io.EOF
			}
			rec, err := r.Read()
			if err != nil {
				return n, err
			}
			s.appendRow(rb, rec.Name, rec.Description, string(rec.Sequence), rec.Description != "")
			n++
			count++
		}
		return n, nil
	}
	stream := batch.NewStream(s.schema, s.opts.BatchSize, fill)
	stream.AttachCloser(rc)
	return stream, nil
}

// ScanRegions returns a stream with one row per region, each holding
// the sequence slice addressed through the FAI index. A BGZF source
// requires gzi to translate uncompressed offsets to virtual
// positions. A region whose reference is not in the FAI index ends the
// stream with an error when that region's row is reached.
func (s *Scanner) ScanRegions(regions []string, idx fai.Index, gzi *fai.GZI) (*batch.Stream, error) {
	if !s.src.Seekable {
		return nil, oxbow.ErrNotSeekable
	}
	if s.opts.Compressed && gzi == nil {
		return nil, errors.New("fasta: compressed region slicing requires a gzi offset map")
	}
	parsed := make([]oxbow.Region, len(regions))
	for i, reg := range regions {
		var err error
		parsed[i], err = oxbow.ParseRegion(reg)
		if err != nil {
			return nil, err
		}
	}

	rc, err := s.src.Open()
	if err != nil {
		return nil, err
	}
	var bg *bgzf.Reader
	if s.opts.Compressed {
		bg, err = bgzf.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		bg.SetCache(bgzf.NewLRUCache(16))
	}

	i := 0
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			if i == len(parsed) {
				return n, io.EOF
			}
			reg := parsed[i]
			i++
			rec, ok := idx.Get(reg.Ref)
			if !ok {
				return n, fmt.Errorf("fasta: no sequence %q in index", reg.Ref)
			}
			start, end := int(reg.Start), rec.Length
			if reg.End != oxbow.MaxEnd {
				end = int(reg.End)
			}
			if end > rec.Length {
				end = rec.Length
			}
			if start > end {
				return n, fmt.Errorf("fasta: region %v out of range", reg)
			}
			seq, err := s.slice(rc, bg, rec, start, end, gzi)
			if err != nil {
				return n, err
			}
			s.appendRow(rb, reg.Ref, "", string(seq), false)
			n++
		}
		return n, nil
	}
	stream := batch.NewStream(s.schema, s.opts.BatchSize, fill)
	stream.AttachCloser(rc)
	return stream, nil
}

// slice reads the [start, end) bases of rec, walking line by line so
// line terminators never enter the output.
func (s *Scanner) slice(rc io.Reader, bg *bgzf.Reader, rec fai.Record, start, end int, gzi *fai.GZI) ([]byte, error) {
	seq := make([]byte, 0, end-start)
	cur := start
	for cur < end {
		off, err := rec.Position(cur)
		if err != nil {
			return nil, err
		}
		eol := rec.EndOfLineOffset(cur)
		if cur+eol > end {
			eol = end - cur
		}
		buf := make([]byte, eol)
		if bg != nil {
			if err := bg.Seek(gzi.Translate(off)); err != nil {
				return nil, err
			}
			if _, err := io.ReadFull(bg, buf); err != nil {
				return nil, err
			}
		} else {
			rs, ok := rc.(io.ReadSeeker)
			if !ok {
				return nil, oxbow.ErrNotSeekable
			}
			if _, err := rs.Seek(off, io.SeekStart); err != nil {
				return nil, err
			}
			if _, err := io.ReadFull(rs, buf); err != nil {
				return nil, err
			}
		}
		seq = append(seq, buf...)
		cur += eol
	}
	return seq, nil
}
