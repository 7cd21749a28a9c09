// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"io"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/batch"
	"github.com/abdenlab/oxbow-go/bgzf"
	"github.com/abdenlab/oxbow-go/sam"
)

// A ChunkIndex answers interval queries with virtual offset chunks.
// Both the BAI Index of this package and csi.Index satisfy it.
type ChunkIndex interface {
	Chunks(rid, beg, end int) []bgzf.Chunk
}

// Options configures a BAM Scanner.
type Options struct {
	// Fields projects the standard columns; nil means all.
	Fields []string

	// TagDefs projects the tag columns; nil means discover by
	// scanning, an empty non-nil slice omits the tags column.
	TagDefs []sam.TagDef

	// ScanRows bounds tag discovery.
	ScanRows int

	// BatchSize is the maximum rows per emitted batch.
	BatchSize int
}

func (o *Options) setDefaults() {
	if o.ScanRows == 0 {
		o.ScanRows = oxbow.DefaultScanRows
	}
	if o.BatchSize == 0 {
		o.BatchSize = oxbow.DefaultBatchSize
	}
}

// A Scanner decodes BAM data into Arrow record batches.
type Scanner struct {
	src  oxbow.Source
	opts Options

	h       *sam.Header
	builder *sam.Builder
	schema  *arrow.Schema
}

// NewScanner returns a Scanner for the BAM data supplied by src. The
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
func (s *Scanner) Header() *sam.Header { return s.h }

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
	bg, err := bgzf.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, nil, err
	}
	r, err := NewReader(bg)
	if err != nil {
		rc.Close()
		return nil, nil, err
	}
	return rc, r, nil
}

// TagDefs discovers tag definitions by scanning up to scanRows
// records, or all records when scanRows is zero or negative.
func (s *Scanner) TagDefs(scanRows int) ([]sam.TagDef, error) {
	rc, r, err := s.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	ts := sam.NewTagScanner()
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
	b, err := sam.NewBuilder(s.h, s.opts.Fields, defs)
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
	return s.scan(limit, bgzf.Offset{File: -1}, nil)
}

// ScanUntilVPos returns a stream that stops emitting once the
// decoder's virtual position reaches vp.
func (s *Scanner) ScanUntilVPos(vp bgzf.Offset) (*batch.Stream, error) {
	return s.scan(0, vp, nil)
}

// ScanVPosRange returns a stream over the records beginning in the
// virtual position interval [lo, hi). It is used to drive index-derived
// partitions as independent fragments.
func (s *Scanner) ScanVPosRange(lo, hi bgzf.Offset) (*batch.Stream, error) {
	return s.scan(0, hi, &lo)
}

func (s *Scanner) scan(limit int, until bgzf.Offset, from *bgzf.Offset) (*batch.Stream, error) {
	if err := s.freeze(); err != nil {
		return nil, err
	}
	rc, r, err := s.open()
	if err != nil {
		return nil, err
	}
	if from != nil {
		if !s.src.Seekable {
			rc.Close()
			return nil, oxbow.ErrNotSeekable
		}
		if err := r.Seek(*from); err != nil {
			rc.Close()
			return nil, err
		}
	}
	count := 0
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			if limit > 0 && count == limit {
				return n, io.EOF
			}
			if until.File >= 0 && r.Tell().Virtual() >= until.Virtual() {
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

// ScanQuery returns a stream over records overlapping the given
// region, resolved through a BAI or CSI index. Records are filtered by
// exact coordinate overlap; a reference unknown to the header yields
// an empty stream.
func (s *Scanner) ScanQuery(region string, idx ChunkIndex) (*batch.Stream, error) {
	reg, err := oxbow.ParseRegion(region)
	if err != nil {
		return nil, err
	}
	if err := s.freeze(); err != nil {
		return nil, err
	}
	if !s.src.Seekable {
		return nil, oxbow.ErrNotSeekable
	}

	var chunks []bgzf.Chunk
	ref := s.h.RefByName(reg.Ref)
	if ref != nil {
		end := int(reg.End)
		if reg.End == oxbow.MaxEnd {
			end = ref.Len()
		}
		chunks = idx.Chunks(ref.ID(), int(reg.Start), end)
	}

	rc, r, err := s.open()
	if err != nil {
		return nil, err
	}
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			if len(chunks) == 0 {
				return n, io.EOF
			}
			cur := r.Tell()
			if cur.Virtual() < chunks[0].Begin.Virtual() || cur.Virtual() >= chunks[0].End.Virtual() {
				if cur.Virtual() >= chunks[0].End.Virtual() {
					chunks = chunks[1:]
					if len(chunks) == 0 {
						return n, io.EOF
					}
				}
				if err := r.Seek(chunks[0].Begin); err != nil {
					return n, err
				}
			}
			rec, err := r.Read()
			if err == io.EOF {
				return n, io.EOF
			}
			if err != nil {
				return n, err
			}
			if rec.Ref == nil || rec.Ref.ID() != ref.ID() || !reg.Overlaps(int64(rec.Pos), int64(rec.End())) {
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

// ScanUnmapped returns a stream over only the unmapped records. When
// the index records the position where placed records end, the scan
// seeks there directly; otherwise the whole stream is filtered.
func (s *Scanner) ScanUnmapped(idx ChunkIndex) (*batch.Stream, error) {
	if err := s.freeze(); err != nil {
		return nil, err
	}
	rc, r, err := s.open()
	if err != nil {
		return nil, err
	}
	type lastOffsetter interface {
		LastOffset() bgzf.Offset
	}
	if lo, ok := idx.(lastOffsetter); ok && s.src.Seekable {
		if off := lo.LastOffset(); off != (bgzf.Offset{}) {
			if err := r.Seek(off); err != nil {
				rc.Close()
				return nil, err
			}
		}
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
