// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vcf

import (
	"bufio"
	"errors"
	"io"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/batch"
	"github.com/abdenlab/oxbow-go/bgzf"
	"github.com/abdenlab/oxbow-go/csi"
)

// A ChunkIndex answers name-addressed interval queries with virtual
// offset chunks. tabix.Index satisfies it directly; use CSIIndex to
// adapt a csi.Index through a header's contig dictionary.
type ChunkIndex interface {
	Chunks(ref string, beg, end int) []bgzf.Chunk
}

// CSIIndex adapts a CSI index to name-addressed queries using the
// header's contig dictionary.
func CSIIndex(h *Header, idx *csi.Index) ChunkIndex {
	return csiAdapter{h: h, idx: idx}
}

type csiAdapter struct {
	h   *Header
	idx *csi.Index
}

func (a csiAdapter) Chunks(ref string, beg, end int) []bgzf.Chunk {
	id := a.h.ContigID(ref)
	if id < 0 {
		return nil
	}
	return a.idx.Chunks(id, beg, end)
}

// Options configures a VCF Scanner.
type Options struct {
	// Fields projects the fixed columns; nil means all.
	Fields []string

	// InfoFields projects the INFO struct children; nil means all
	// header-declared fields, an empty non-nil slice omits the info
	// column.
	InfoFields []string

	// GenotypeFields projects the FORMAT fields; nil means all
	// header-declared fields, an empty non-nil slice omits genotype
	// columns.
	GenotypeFields []string

	// Samples projects the samples; nil means all.
	Samples []string

	// GenotypeBy selects genotype column nesting.
	GenotypeBy GenotypeBy

	// BatchSize is the maximum rows per emitted batch.
	BatchSize int

	// Compressed wraps the source in BGZF decoding.
	Compressed bool
}

// A Scanner decodes VCF text into Arrow record batches.
type Scanner struct {
	src  oxbow.Source
	opts Options

	h       *Header
	builder *Builder
	schema  *arrow.Schema
}

// NewScanner returns a Scanner for the VCF data supplied by src. The
// header is read eagerly.
func NewScanner(src oxbow.Source, opts Options) (*Scanner, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = oxbow.DefaultBatchSize
	}
	s := &Scanner{src: src, opts: opts}
	rc, _, h, err := s.open()
	if err != nil {
		return nil, err
	}
	s.h = h
	return s, rc.Close()
}

// Header returns the VCF header.
func (s *Scanner) Header() *Header { return s.h }

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

func (s *Scanner) open() (io.ReadCloser, *bufio.Reader, *Header, error) {
	rc, err := s.src.Open()
	if err != nil {
		return nil, nil, nil, err
	}
	var in io.Reader = rc
	if s.opts.Compressed {
		bg, err := bgzf.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, nil, nil, err
		}
		in = bg
	}
	br := bufio.NewReader(in)
	h, err := ReadHeader(br)
	if err != nil {
		rc.Close()
		return nil, nil, nil, err
	}
	return rc, br, h, nil
}

func (s *Scanner) freeze() error {
	if s.builder != nil {
		return nil
	}
	b, err := NewBuilder(s.h, s.opts.Fields, s.opts.InfoFields, s.opts.GenotypeFields, s.opts.Samples, s.opts.GenotypeBy)
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
// uncompressed byte position reaches pos. Offsets are measured from
// the first byte after the header in the decompressed text; header
// lines are not counted.
func (s *Scanner) ScanUntil(pos int64) (*batch.Stream, error) {
	return s.scan(0, pos)
}

func (s *Scanner) scan(limit int, until int64) (*batch.Stream, error) {
	if err := s.freeze(); err != nil {
		return nil, err
	}
	rc, br, _, err := s.open()
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
			if len(line) == 0 {
				continue
			}
			rec, err := ParseRecord(s.h, line)
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
// region, resolved through a tabix or CSI index over the
// BGZF-compressed text. Records are filtered by exact coordinate
// overlap; a reference absent from the index yields an empty stream.
func (s *Scanner) ScanQuery(region string, idx ChunkIndex) (*batch.Stream, error) {
	reg, err := oxbow.ParseRegion(region)
	if err != nil {
		return nil, err
	}
	if err := s.freeze(); err != nil {
		return nil, err
	}
	if !s.opts.Compressed {
		return nil, errors.New("vcf: range queries require a BGZF source")
	}
	if !s.src.Seekable {
		return nil, oxbow.ErrNotSeekable
	}
	end := int(clampRegionEnd(reg, s.h))
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
	lr := bgzf.NewLineReader(bg)

	seeked := false
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
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
			if len(line) == 0 || line[0] == '#' {
				continue
			}
			rec, err := ParseRecord(s.h, line)
			if err != nil {
				return n, err
			}
			if rec.Chrom() != reg.Ref || !reg.Overlaps(int64(rec.Pos()), int64(rec.End())) {
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

func trimEOL(line []byte) []byte {
	if len(line) != 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) != 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line
}

func clampRegionEnd(reg oxbow.Region, h *Header) int64 {
	if reg.End != oxbow.MaxEnd {
		return reg.End
	}
	if id := h.ContigID(reg.Ref); id >= 0 && h.Contigs[id].Length > 0 {
		return int64(h.Contigs[id].Length)
	}
	return int64(1)<<31 - 1
}
