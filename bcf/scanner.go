// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcf

import (
	"io"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/batch"
	"github.com/abdenlab/oxbow-go/bgzf"
	"github.com/abdenlab/oxbow-go/vcf"
)

// A ChunkIndex answers id-addressed interval queries with virtual
// offset chunks; csi.Index satisfies it. BCF contig ids follow the
// header contig dictionary.
type ChunkIndex interface {
	Chunks(rid, beg, end int) []bgzf.Chunk
}

// Options configures a BCF Scanner. Projections follow the VCF
// scanner's semantics.
type Options struct {
	Fields         []string
	InfoFields     []string
	GenotypeFields []string
	Samples        []string
	GenotypeBy     vcf.GenotypeBy
	BatchSize      int
}

// A Scanner decodes BCF data into Arrow record batches.
type Scanner struct {
	src  oxbow.Source
	opts Options

	h       *vcf.Header
	builder *vcf.Builder
	schema  *arrow.Schema
}

// NewScanner returns a Scanner for the BCF data supplied by src. The
// header is read eagerly.
func NewScanner(src oxbow.Source, opts Options) (*Scanner, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = oxbow.DefaultBatchSize
	}
	s := &Scanner{src: src, opts: opts}
	rc, r, err := s.open()
	if err != nil {
		return nil, err
	}
	s.h = r.Header()
	return s, rc.Close()
}

// Header returns the decoded header.
func (s *Scanner) Header() *vcf.Header { return s.h }

// ChromNames returns the contig names declared in the header.
func (s *Scanner) ChromNames() []string { return s.h.ContigNames() }

// ChromSizes returns the contig names and lengths declared in the
// header.
func (s *Scanner) ChromSizes() map[string]int {
	sizes := make(map[string]int, len(s.h.Contigs))
	for _, c := range s.h.Contigs {
		sizes[c.Name] = c.Length
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

func (s *Scanner) freeze() error {
	if s.builder != nil {
		return nil
	}
	b, err := vcf.NewBuilder(s.h, s.opts.Fields, s.opts.InfoFields, s.opts.GenotypeFields, s.opts.Samples, s.opts.GenotypeBy)
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
	return s.scan(limit, bgzf.Offset{File: -1})
}

// ScanUntilVPos returns a stream that stops emitting once the
// decoder's virtual position reaches vp.
func (s *Scanner) ScanUntilVPos(vp bgzf.Offset) (*batch.Stream, error) {
	return s.scan(0, vp)
}

func (s *Scanner) scan(limit int, until bgzf.Offset) (*batch.Stream, error) {
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
// region, resolved through a CSI index. Records are filtered by exact
// coordinate overlap; a reference unknown to the header yields an
// empty stream.
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
	rid := s.h.ContigID(reg.Ref)
	if rid >= 0 {
		end := int(reg.End)
		if reg.End == oxbow.MaxEnd {
			if l := s.h.Contigs[rid].Length; l > 0 {
				end = l
			} else {
				end = 1<<31 - 1
			}
		}
		chunks = idx.Chunks(rid, int(reg.Start), end)
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
			if rec.ChromID() != rid || !reg.Overlaps(int64(rec.Pos()), int64(rec.End())) {
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
