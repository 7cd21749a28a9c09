// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fastq

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/batch"
	"github.com/abdenlab/oxbow-go/bgzf"
)

// FieldNames lists the FASTQ columns in schema order.
var FieldNames = []string{"name", "description", "sequence", "quality"}

// Options configures a FASTQ Scanner.
type Options struct {
	// Fields projects the columns; nil means all.
	Fields []string

	// BatchSize is the maximum rows per emitted batch.
	BatchSize int

	// Compressed wraps the source in BGZF decoding.
	Compressed bool
}

// A Scanner decodes FASTQ records into Arrow record batches.
type Scanner struct {
	src    oxbow.Source
	opts   Options
	fields []arrow.Field
	schema *arrow.Schema
}

// NewScanner returns a Scanner for the FASTQ data supplied by src.
func NewScanner(src oxbow.Source, opts Options) (*Scanner, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = oxbow.DefaultBatchSize
	}
	all := []arrow.Field{
		batch.Field("name", arrow.BinaryTypes.String),
		batch.Field("description", arrow.BinaryTypes.String),
		batch.Field("sequence", arrow.BinaryTypes.String),
		batch.Field("quality", arrow.BinaryTypes.String),
	}
	fields, err := batch.Project(all, opts.Fields)
	if err != nil {
		return nil, fmt.Errorf("fastq: %v", err)
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

// Scan returns a stream over all records in file order. A positive
// limit stops the scan after that many records.
func (s *Scanner) Scan(limit int) (*batch.Stream, error) {
	rc, err := s.src.Open()
	if err != nil {
		return nil, err
	}
	var in io.Reader = rc
	if s.opts.Compressed {
		bg, err := bgzf.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		in = bg
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
			for i, f := range s.fields {
				sb := rb.Field(i).(*array.StringBuilder)
				switch f.Name {
				case "name":
					sb.Append(rec.Name)
				case "description":
					if rec.Description == "" {
						sb.AppendNull()
					} else {
						sb.Append(rec.Description)
					}
				case "sequence":
					sb.Append(string(rec.Sequence))
				case "quality":
					sb.Append(string(rec.Quality))
				}
			}
			n++
			count++
		}
		return n, nil
	}
	stream := batch.NewStream(s.schema, s.opts.BatchSize, fill)
	stream.AttachCloser(rc)
	return stream, nil
}
