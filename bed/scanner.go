// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bed

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/batch"
	"github.com/abdenlab/oxbow-go/bgzf"
	bgzfindex "github.com/abdenlab/oxbow-go/bgzf/index"
	"github.com/abdenlab/oxbow-go/tabix"
)

// Options configures a BED Scanner.
type Options struct {
	// Schema is the BEDn+[m] specifier; empty means "bed3+".
	Schema string

	// Fields projects the columns; nil means all.
	Fields []string

	// BatchSize is the maximum rows per emitted batch.
	BatchSize int

	// Compressed wraps the source in BGZF decoding.
	Compressed bool
}

// A Scanner decodes BED lines into Arrow record batches.
type Scanner struct {
	src  oxbow.Source
	opts Options

	bedSchema Schema
	fields    []arrow.Field
	schema    *arrow.Schema
}

// NewScanner returns a Scanner for the BED data supplied by src.
func NewScanner(src oxbow.Source, opts Options) (*Scanner, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = oxbow.DefaultBatchSize
	}
	if opts.Schema == "" {
		opts.Schema = "bed3+"
	}
	bs, err := ParseSchema(opts.Schema)
	if err != nil {
		return nil, err
	}
	all := make([]arrow.Field, 0, bs.N)
	for i, name := range bs.FieldNames() {
		all = append(all, batch.Field(name, columnType(i, bs)))
	}
	fields, err := batch.Project(all, opts.Fields)
	if err != nil {
		return nil, fmt.Errorf("bed: %v", err)
	}
	return &Scanner{
		src:       src,
		opts:      opts,
		bedSchema: bs,
		fields:    fields,
		schema:    arrow.NewSchema(fields, nil),
	}, nil
}

// columnType returns the Arrow type of the column at the given
// 0-based position under the schema. Custom columns are strings.
func columnType(i int, s Schema) arrow.DataType {
	if i >= s.N {
		return arrow.BinaryTypes.String
	}
	switch StandardNames[i] {
	case "start", "end", "thickStart", "thickEnd", "blockCount", "score":
		return arrow.PrimitiveTypes.Int32
	case "blockSizes", "blockStarts":
		return arrow.ListOf(arrow.PrimitiveTypes.Int32)
	}
	return arrow.BinaryTypes.String
}

// Schema returns the computed Arrow schema without consuming records.
func (s *Scanner) Schema() *arrow.Schema { return s.schema }

// BedSchema returns the parsed BEDn+[m] interpretation.
func (s *Scanner) BedSchema() Schema { return s.bedSchema }

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

func (s *Scanner) appendRecord(rb *array.RecordBuilder, rec *Record) error {
	names := s.bedSchema.FieldNames()
	byName := map[string]string{
		"chrom": rec.Chrom,
	}
	for i, v := range rec.Standard {
		byName[names[3+i]] = v
	}
	if s.bedSchema.M < 0 {
		byName["rest"] = strings.Join(rec.Custom, "\t")
	} else {
		for i, v := range rec.Custom {
			byName[names[s.bedSchema.N+i]] = v
		}
	}
	for i, f := range s.fields {
		bld := rb.Field(i)
		switch f.Name {
		case "start":
			bld.(*array.Int32Builder).Append(int32(rec.Start))
			continue
		case "end":
			bld.(*array.Int32Builder).Append(int32(rec.End))
			continue
		}
		raw, ok := byName[f.Name]
		if !ok || raw == "" || raw == "." {
			bld.AppendNull()
			continue
		}
		switch b := bld.(type) {
		case *array.StringBuilder:
			b.Append(raw)
		case *array.Int32Builder:
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("bed: failed to parse %s: %v", f.Name, err)
			}
			b.Append(int32(v))
		case *array.ListBuilder:
			vb := b.ValueBuilder().(*array.Int32Builder)
			b.Append(true)
			for _, p := range strings.Split(strings.TrimSuffix(raw, ","), ",") {
				v, err := strconv.Atoi(p)
				if err != nil {
					return fmt.Errorf("bed: failed to parse %s: %v", f.Name, err)
				}
				vb.Append(int32(v))
			}
		}
	}
	return nil
}

// Scan returns a stream over all records in file order. A positive
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
			rec, err := ParseRecord(s.bedSchema, line)
			if err != nil {
				return n, err
			}
			if err := s.appendRecord(rb, rec); err != nil {
				return n, err
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

// ScanQuery returns a stream over records overlapping the given
// region, resolved through a tabix index over the BGZF-compressed
// text. Records are filtered by exact coordinate overlap; a
// reference absent from the index yields an empty stream.
func (s *Scanner) ScanQuery(region string, idx *tabix.Index) (*batch.Stream, error) {
	reg, err := oxbow.ParseRegion(region)
	if err != nil {
		return nil, err
	}
	if !s.opts.Compressed {
		return nil, errors.New("bed: range queries require a BGZF source")
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
			line, err := br.ReadBytes('\n')
			if len(line) == 0 {
				if err == nil || err == io.EOF {
					return n, io.EOF
				}
				return n, err
			}
			line = trimEOL(line)
			if skippable(line) {
				continue
			}
			rec, err := ParseRecord(s.bedSchema, line)
			if err != nil {
				return n, err
			}
			if rec.Chrom != reg.Ref || !reg.Overlaps(int64(rec.Start), int64(rec.End)) {
				continue
			}
			if err := s.appendRecord(rb, rec); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	}
	stream := batch.NewStream(s.schema, s.opts.BatchSize, fill)
	stream.AttachCloser(rc)
	return stream, nil
}

// skippable reports whether the line is a header or comment line:
// '#' comments plus UCSC track and browser lines.
func skippable(line []byte) bool {
	if len(line) == 0 || line[0] == '#' {
		return true
	}
	return bytes.HasPrefix(line, []byte("track")) || bytes.HasPrefix(line, []byte("browser"))
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
