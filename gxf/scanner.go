// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gxf

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/batch"
	"github.com/abdenlab/oxbow-go/bgzf"
	bgzfindex "github.com/abdenlab/oxbow-go/bgzf/index"
	"github.com/abdenlab/oxbow-go/tabix"
)

// FieldNames lists the fixed feature columns in schema order.
var FieldNames = []string{
	"seqid", "source", "type", "start", "end", "score", "strand", "phase",
}

// Options configures a GTF or GFF Scanner.
type Options struct {
	// Fields projects the fixed columns; nil means all.
	Fields []string

	// AttrDefs projects the attribute columns; nil means discover
	// by scanning, an empty non-nil slice omits the attributes
	// column.
	AttrDefs []AttrDef

	// ScanRows bounds attribute discovery.
	ScanRows int

	// BatchSize is the maximum rows per emitted batch.
	BatchSize int

	// Compressed wraps the source in BGZF decoding.
	Compressed bool
}

// A Scanner decodes GTF or GFF features into Arrow record batches.
type Scanner struct {
	src     oxbow.Source
	dialect Dialect
	opts    Options

	fields []arrow.Field
	attrs  []AttrDef
	schema *arrow.Schema
}

// NewGTFScanner returns a Scanner over GTF attribute syntax.
func NewGTFScanner(src oxbow.Source, opts Options) (*Scanner, error) {
	return newScanner(src, GTF, opts)
}

// NewGFFScanner returns a Scanner over GFF3 attribute syntax.
func NewGFFScanner(src oxbow.Source, opts Options) (*Scanner, error) {
	return newScanner(src, GFF, opts)
}

func newScanner(src oxbow.Source, dialect Dialect, opts Options) (*Scanner, error) {
	if opts.ScanRows == 0 {
		opts.ScanRows = oxbow.DefaultScanRows
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = oxbow.DefaultBatchSize
	}
	all := []arrow.Field{
		batch.Field("seqid", arrow.BinaryTypes.String),
		batch.Field("source", arrow.BinaryTypes.String),
		batch.Field("type", arrow.BinaryTypes.String),
		batch.Field("start", arrow.PrimitiveTypes.Int32),
		batch.Field("end", arrow.PrimitiveTypes.Int32),
		batch.Field("score", arrow.PrimitiveTypes.Float32),
		batch.Field("strand", arrow.BinaryTypes.String),
		batch.Field("phase", arrow.PrimitiveTypes.Int32),
	}
	fields, err := batch.Project(all, opts.Fields)
	if err != nil {
		return nil, fmt.Errorf("gxf: %v", err)
	}
	return &Scanner{src: src, dialect: dialect, opts: opts, fields: fields}, nil
}

func (s *Scanner) open() (io.ReadCloser, *bufio.Reader, error) {
	rc, err := s.src.Open()
	if err != nil {
		return nil, nil, err
	}
	var in io.Reader = rc
	if s.opts.Compressed {
		bg, err := bgzf.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, nil, err
		}
		in = bg
	}
	return rc, bufio.NewReader(in), nil
}

// AttrDefs discovers attribute definitions by scanning up to scanRows
// records, or all records when scanRows is zero or negative.
func (s *Scanner) AttrDefs(scanRows int) ([]AttrDef, error) {
	rc, br, err := s.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	as := NewAttrScanner()
	for i := 0; scanRows <= 0 || i < scanRows; {
		line, err := readLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if skippable(line) {
			continue
		}
		rec, err := ParseRecord(s.dialect, line)
		if err != nil {
			return nil, err
		}
		as.Push(rec)
		i++
	}
	return as.Defs(), nil
}

func (s *Scanner) freeze() error {
	if s.schema != nil {
		return nil
	}
	attrs := s.opts.AttrDefs
	if attrs == nil {
		var err error
		attrs, err = s.AttrDefs(s.opts.ScanRows)
		if err != nil {
			return err
		}
	}
	s.attrs = attrs
	fields := append([]arrow.Field(nil), s.fields...)
	if len(attrs) != 0 {
		children := make([]arrow.Field, len(attrs))
		for i, d := range attrs {
			t := arrow.DataType(arrow.BinaryTypes.String)
			if d.List {
				t = arrow.ListOf(arrow.BinaryTypes.String)
			}
			children[i] = batch.Field(d.Name, t)
		}
		fields = append(fields, batch.Field("attributes", arrow.StructOf(children...)))
	}
	s.schema = arrow.NewSchema(fields, nil)
	return nil
}

// Schema returns the computed Arrow schema without consuming records.
func (s *Scanner) Schema() (*arrow.Schema, error) {
	err := s.freeze()
	if err != nil {
		return nil, err
	}
	return s.schema, nil
}

func (s *Scanner) appendRecord(rb *array.RecordBuilder, rec *Record) {
	for i, f := range s.fields {
		bld := rb.Field(i)
		switch f.Name {
		case "seqid":
			bld.(*array.StringBuilder).Append(rec.Seqid)
		case "source":
			appendOptString(bld, rec.Source)
		case "type":
			bld.(*array.StringBuilder).Append(rec.Type)
		case "start":
			bld.(*array.Int32Builder).Append(int32(rec.Start))
		case "end":
			bld.(*array.Int32Builder).Append(int32(rec.End))
		case "score":
			fb := bld.(*array.Float32Builder)
			if rec.HasScore {
				fb.Append(rec.Score)
			} else {
				fb.AppendNull()
			}
		case "strand":
			appendOptString(bld, rec.Strand)
		case "phase":
			pb := bld.(*array.Int32Builder)
			if rec.Phase < 0 {
				pb.AppendNull()
			} else {
				pb.Append(int32(rec.Phase))
			}
		}
	}
	if len(s.attrs) != 0 {
		sb := rb.Field(len(s.fields)).(*array.StructBuilder)
		sb.Append(true)
		for i, d := range s.attrs {
			values, ok := rec.Attr(d.Name)
			child := sb.FieldBuilder(i)
			if !ok || len(values) == 0 {
				child.AppendNull()
				continue
			}
			if d.List {
				lb := child.(*array.ListBuilder)
				lb.Append(true)
				vb := lb.ValueBuilder().(*array.StringBuilder)
				for _, v := range values {
					vb.Append(v)
				}
			} else {
				child.(*array.StringBuilder).Append(values[0])
			}
		}
	}
}

func appendOptString(b array.Builder, v string) {
	sb := b.(*array.StringBuilder)
	if v == "" {
		sb.AppendNull()
	} else {
		sb.Append(v)
	}
}

// Scan returns a stream over all features in file order. A positive
// limit stops the scan after that many records.
func (s *Scanner) Scan(limit int) (*batch.Stream, error) {
	return s.scan(limit, -1)
}

// ScanUntil returns a stream that stops emitting once a record's
// uncompressed byte position reaches pos.
func (s *Scanner) ScanUntil(pos int64) (*batch.Stream, error) {
	return s.scan(0, pos)
}

func (s *Scanner) scan(limit int, until int64) (*batch.Stream, error) {
	if err := s.freeze(); err != nil {
		return nil, err
	}
	rc, br, err := s.open()
	if err != nil {
		return nil, err
	}
	count := 0
	var offset int64
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			if limit > 0 && count == limit {
				return n, io.EOF
			}
			if until >= 0 && offset >= until {
				return n, io.EOF
			}
			line, err := br.ReadBytes('\n')
			if len(line) == 0 {
				if err == nil || err == io.EOF {
					return n, io.EOF
				}
				return n, err
			}
			offset += int64(len(line))
			line = trimEOL(line)
			if skippable(line) {
				continue
			}
			rec, err := ParseRecord(s.dialect, line)
			if err != nil {
				return n, err
			}
			s.appendRecord(rb, rec)
			n++
			count++
		}
		return n, nil
	}
	stream := batch.NewStream(s.schema, s.opts.BatchSize, fill)
	stream.AttachCloser(rc)
	return stream, nil
}

// ScanQuery returns a stream over features overlapping the given
// region, resolved through a tabix index over the BGZF-compressed
// text. Features are filtered by exact coordinate overlap; a
// reference absent from the index yields an empty stream.
func (s *Scanner) ScanQuery(region string, idx *tabix.Index) (*batch.Stream, error) {
	reg, err := oxbow.ParseRegion(region)
	if err != nil {
		return nil, err
	}
	if err := s.freeze(); err != nil {
		return nil, err
	}
	if !s.opts.Compressed {
		return nil, errors.New("gxf: range queries require a BGZF source")
	}
	if !s.src.Seekable {
		return nil, oxbow.ErrNotSeekable
	}
	end := int(reg.End)
	if reg.End == oxbow.MaxEnd {
		end = 1<<31 - 1
	}
	chunks := idx.Chunks(reg.Ref, int(reg.Start), end)

	rc, err := s.src.Open()
	if err != nil {
		return nil, err
	}
	bg, err := bgzf.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	bg.SetCache(bgzf.NewLRUCache(64))
	cr, err := bgzfindex.NewChunkReader(bg, chunks)
	if err != nil {
		rc.Close()
		return nil, err
	}
	br := bufio.NewReader(cr)

	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			line, err := readLine(br)
			if err == io.EOF {
				return n, io.EOF
			}
			if err != nil {
				return n, err
			}
			if skippable(line) {
				continue
			}
			rec, err := ParseRecord(s.dialect, line)
			if err != nil {
				return n, err
			}
			if rec.Seqid != reg.Ref || !reg.Overlaps(int64(rec.Start), int64(rec.End)) {
				continue
			}
			s.appendRecord(rb, rec)
			n++
		}
		return n, nil
	}
	stream := batch.NewStream(s.schema, s.opts.BatchSize, fill)
	stream.AttachCloser(rc)
	return stream, nil
}

func skippable(line []byte) bool {
	return len(line) == 0 || line[0] == '#'
}

func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if len(line) == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	return trimEOL(line), nil
}

func trimEOL(line []byte) []byte {
	if len(line) != 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) != 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line
}
