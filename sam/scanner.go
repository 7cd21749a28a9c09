// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"errors"
	"io"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/batch"
	"github.com/abdenlab/oxbow-go/bgzf"
	"github.com/abdenlab/oxbow-go/tabix"
)

// Options configures a SAM Scanner.
type Options struct {
	// Fields projects the standard columns; nil means all.
	Fields []string

	// TagDefs projects the tag columns; nil means discover by
	// scanning, an empty non-nil slice omits the tags column.
	TagDefs []TagDef

	// ScanRows bounds tag discovery.
	ScanRows int

	// BatchSize is the maximum rows per emitted batch.
	BatchSize int

	// Compressed wraps the source in BGZF decoding.
	Compressed bool
}

func (o *Options) setDefaults() {
	if o.ScanRows == 0 {
		o.ScanRows = oxbow.DefaultScanRows
	}
	if o.BatchSize == 0 {
		o.BatchSize = oxbow.DefaultBatchSize
	}
}

// A Scanner decodes SAM text into Arrow record batches.
type Scanner struct {
	src  oxbow.Source
	opts Options

	h       *Header
	builder *Builder
	schema  *arrow.Schema
}

// NewScanner returns a Scanner for the SAM data supplied by src. The
// header is read eagerly.
func NewScanner(src oxbow.Source, opts Options) (*Scanner, error) {
	opts.setDefaults()
	s := &Scanner{src: src, opts: opts}
	rc, r, err := s.open()
	if err != nil {
		return nil, err
	}
	s.h = r.Header()
	return s, rc.Close()
}

// Header returns the SAM header.
func (s *Scanner) Header() *Header { return s.h }

// ChromNames returns the reference sequence names.
func (s *Scanner) ChromNames() []string { return s.h.RefNames() }

// ChromSizes returns the reference sequence names and lengths.
func (s *Scanner) ChromSizes() map[string]int {
	sizes := make(map[string]int, len(s.h.Refs()))
	for _, ref := range s.h.Refs() {
		sizes[ref.Name()] = ref.Len()
	}
	return sizes
}

func (s *Scanner) open() (io.ReadCloser, *Reader, error) {
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
	r, err := NewReader(in)
	if err != nil {
		rc.Close()
		return nil, nil, err
	}
	return rc, r, nil
}

// TagDefs discovers tag definitions by scanning up to scanRows
// records, or all records when scanRows is zero or negative.
func (s *Scanner) TagDefs(scanRows int) ([]TagDef, error) {
	rc, r, err := s.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	ts := NewTagScanner()
	for i := 0; scanRows <= 0 || i < scanRows; i++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ts.Push(rec)
	}
	return ts.Defs(), nil
}

// freeze computes the schema. Once frozen the schema cannot change;
// further calls return the cached value.
func (s *Scanner) freeze() error {
	if s.builder != nil {
		return nil
	}
	defs := s.opts.TagDefs
	if defs == nil {
		var err error
		defs, err = s.TagDefs(s.opts.ScanRows)
		if err != nil {
			return err
		}
	}
	b, err := NewBuilder(s.h, s.opts.Fields, defs)
	if err != nil {
		return err
	}
	s.builder = b
	s.schema = b.Schema()
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
	if err := s.freeze(); err != nil {
		return nil, err
	}
	rc, r, err := s.open()
	if err != nil {
		return nil, err
	}
	count := 0
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			if limit > 0 && count == limit {
				return n, io.EOF
			}
			if until >= 0 && r.Offset() >= until {
				return n, io.EOF
			}
			rec, err := r.Read()
			if err != nil {
				return n, err
			}
			if err := s.builder.Append(rb, rec); err != nil {
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

// ScanUnmapped returns a stream over only the unmapped records.
func (s *Scanner) ScanUnmapped() (*batch.Stream, error) {
	if err := s.freeze(); err != nil {
		return nil, err
	}
	rc, r, err := s.open()
	if err != nil {
		return nil, err
	}
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			rec, err := r.Read()
			if err != nil {
				return n, err
			}
			if !rec.Unmapped() {
				continue
			}
			if err := s.builder.Append(rb, rec); err != nil {
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

// ScanQuery returns a stream over records overlapping the given
// region, resolved through a tabix index over the BGZF-compressed SAM
// text. Records are filtered by exact coordinate overlap; a reference
// absent from the index yields an empty stream.
func (s *Scanner) ScanQuery(region string, idx *tabix.Index) (*batch.Stream, error) {
	reg, err := oxbow.ParseRegion(region)
	if err != nil {
		return nil, err
	}
	if err := s.freeze(); err != nil {
		return nil, err
	}
	if !s.opts.Compressed {
		return nil, errors.New("sam: range queries require a BGZF source")
	}
	if !s.src.Seekable {
		return nil, oxbow.ErrNotSeekable
	}
	ref := s.h.RefByName(reg.Ref)
	chunks := idx.Chunks(reg.Ref, int(reg.Start), clampEnd(reg, ref))

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
	lr := bgzf.NewLineReader(bg)

	stream := batch.NewStream(s.schema, s.opts.BatchSize, s.queryFill(lr, chunks, reg))
	stream.AttachCloser(rc)
	return stream, nil
}

// queryFill drives the chunk walk for ScanQuery: seek to each chunk
// begin and parse lines until the decoder reaches the chunk end,
// filtering by exact overlap.
func (s *Scanner) queryFill(lr *bgzf.LineReader, chunks []bgzf.Chunk, reg oxbow.Region) batch.FillFunc {
	seeked := false
	return func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			if len(chunks) == 0 {
				return n, io.EOF
			}
			if !seeked {
				if err := lr.Seek(chunks[0].Begin); err != nil {
					return n, err
				}
				seeked = true
			}
			if lr.Tell().Virtual() >= chunks[0].End.Virtual() {
				chunks = chunks[1:]
				seeked = false
				continue
			}
			line, _, err := lr.ReadLine()
			if err == io.EOF {
				return n, io.EOF
			}
			if err != nil {
				return n, err
			}
			if len(line) == 0 || line[0] == '@' {
				continue
			}
			var rec Record
			if err := rec.UnmarshalSAM(s.h, line); err != nil {
				return n, err
			}
			if rec.Ref.Name() != reg.Ref || !reg.Overlaps(int64(rec.Pos), int64(rec.End())) {
				continue
			}
			if err := s.builder.Append(rb, &rec); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	}
}

func clampEnd(reg oxbow.Region, ref *Reference) int {
	if reg.End == oxbow.MaxEnd {
		if ref != nil {
			return ref.Len()
		}
		return 1<<wordBits - 1
	}
	return int(reg.End)
}
