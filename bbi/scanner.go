// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bbi

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/batch"
	"github.com/abdenlab/oxbow-go/bed"
)

// Options configures the BBI scanners.
type Options struct {
	// Schema selects the BigBed tail interpretation: "autosql"
	// (default) derives columns from the embedded AutoSql
	// definition, "rest" collapses the tail into one column, and a
	// "bedN+M" specifier names columns positionally.
	Schema string

	// BatchSize is the maximum rows per emitted batch.
	BatchSize int
}

type base struct {
	src  oxbow.Source
	file *File

	batchSize int
}

func newBase(src oxbow.Source, batchSize int) (*base, error) {
	if !src.Seekable {
		return nil, oxbow.ErrNotSeekable
	}
	if batchSize == 0 {
		batchSize = oxbow.DefaultBatchSize
	}
	rc, rs, err := openSeekable(src)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	f, err := Read(rs)
	if err != nil {
		return nil, err
	}
	return &base{src: src, file: f, batchSize: batchSize}, nil
}

func openSeekable(src oxbow.Source) (io.ReadCloser, io.ReadSeeker, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, nil, err
	}
	rs, ok := rc.(io.ReadSeeker)
	if !ok {
		rc.Close()
		return nil, nil, oxbow.ErrNotSeekable
	}
	return rc, rs, nil
}

// File returns the decoded file metadata.
func (b *base) File() *File { return b.file }

// ChromNames returns the chromosome names in id order.
func (b *base) ChromNames() []string { return b.file.ChromNames() }

// ChromSizes returns the chromosome names and lengths.
func (b *base) ChromSizes() map[string]int { return b.file.ChromSizes() }

// ZoomLevels returns the reduction levels of the precomputed zoom
// levels.
func (b *base) ZoomLevels() []uint32 { return b.file.ZoomLevels() }

// resolve maps a region onto a chromosome id and clamped bounds.
// The boolean return is false when the reference is unknown, which
// yields an empty stream rather than an error.
func (b *base) resolve(region string) (Chrom, uint32, uint32, bool, error) {
	reg, err := oxbow.ParseRegion(region)
	if err != nil {
		return Chrom{}, 0, 0, false, err
	}
	c, ok := b.file.ChromByName(reg.Ref)
	if !ok {
		return Chrom{}, 0, 0, false, nil
	}
	start := uint32(reg.Start)
	end := c.Size
	if reg.End != oxbow.MaxEnd && uint32(reg.End) < end {
		end = uint32(reg.End)
	}
	return c, start, end, true, nil
}

// A BigWigScanner decodes BigWig value intervals into Arrow record
// batches.
type BigWigScanner struct {
	*base
	schema *arrow.Schema
	seeded bool
}

// NewBigWigScanner returns a scanner for the BigWig data supplied by
// src. The header, chromosome tree and zoom directory are read
// eagerly.
func NewBigWigScanner(src oxbow.Source, opts Options) (*BigWigScanner, error) {
	b, err := newBase(src, opts.BatchSize)
	if err != nil {
		return nil, err
	}
	if b.file.Header.Magic != BigWigMagic {
		return nil, errors.New("bbi: not a BigWig file")
	}
	schema := arrow.NewSchema([]arrow.Field{
		batch.Field("chrom", batch.DictionaryType()),
		batch.Field("start", arrow.PrimitiveTypes.Int32),
		batch.Field("end", arrow.PrimitiveTypes.Int32),
		batch.Field("value", arrow.PrimitiveTypes.Float32),
	}, nil)
	return &BigWigScanner{base: b, schema: schema}, nil
}

// Schema returns the computed Arrow schema without consuming records.
func (s *BigWigScanner) Schema() *arrow.Schema { return s.schema }

// Scan returns a stream over all value intervals in file order. A
// positive limit stops the scan after that many rows.
func (s *BigWigScanner) Scan(limit int) (*batch.Stream, error) {
	return s.stream(^uint32(0), 0, 0, limit)
}

// ScanQuery returns a stream over value intervals overlapping the
// given region. An unknown reference yields an empty stream.
func (s *BigWigScanner) ScanQuery(region string) (*batch.Stream, error) {
	c, start, end, ok, err := s.resolve(region)
	if err != nil {
		return nil, err
	}
	if !ok {
		return batch.NewStream(s.schema, s.batchSize, emptyFill), nil
	}
	return s.stream(c.ID, start, end, 0)
}

func (s *BigWigScanner) stream(chromID, start, end uint32, limit int) (*batch.Stream, error) {
	rc, rs, err := openSeekable(s.src)
	if err != nil {
		return nil, err
	}
	leaves, err := queryRTree(rs, s.file.Header.FullIndexOffset, chromID, start, end)
	if err != nil {
		rc.Close()
		return nil, err
	}
	var pending []Interval
	count := 0
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			if limit > 0 && count == limit {
				return n, io.EOF
			}
			if len(pending) == 0 {
				if len(leaves) == 0 {
					return n, io.EOF
				}
				block, err := s.file.readBlock(rs, leaves[0])
				if err != nil {
					return n, err
				}
				leaves = leaves[1:]
				pending, err = decodeWigBlock(block)
				if err != nil {
					return n, err
				}
				continue
			}
			iv := pending[0]
			pending = pending[1:]
			if chromID != ^uint32(0) && (iv.ChromID != chromID || iv.Start >= end || iv.End <= start) {
				continue
			}
			if err := s.appendInterval(rb, iv); err != nil {
				return n, err
			}
			n++
			count++
		}
		return n, nil
	}
	stream := batch.NewStream(s.schema, s.batchSize, fill)
	stream.AttachCloser(rc)
	return stream, nil
}

func (s *BigWigScanner) appendInterval(rb *array.RecordBuilder, iv Interval) error {
	db := rb.Field(0).(*array.BinaryDictionaryBuilder)
	if !s.seeded {
		if err := batch.SeedDictionary(db, s.file.ChromNames()); err != nil {
			return err
		}
		s.seeded = true
	}
	name := ""
	if int(iv.ChromID) < len(s.file.Chroms) {
		name = s.file.Chroms[iv.ChromID].Name
	}
	if err := batch.AppendDictString(db, name, name != ""); err != nil {
		return err
	}
	rb.Field(1).(*array.Int32Builder).Append(int32(iv.Start))
	rb.Field(2).(*array.Int32Builder).Append(int32(iv.End))
	rb.Field(3).(*array.Float32Builder).Append(iv.Value)
	return nil
}

func emptyFill(*array.RecordBuilder, int) (int, error) { return 0, io.EOF }

// A BigBedScanner decodes BigBed records into Arrow record batches.
type BigBedScanner struct {
	*base
	schema *arrow.Schema
	rest   []string // Names of the tail columns; nil collapses to "rest".
	seeded bool
}

// NewBigBedScanner returns a scanner for the BigBed data supplied by
// src.
func NewBigBedScanner(src oxbow.Source, opts Options) (*BigBedScanner, error) {
	b, err := newBase(src, opts.BatchSize)
	if err != nil {
		return nil, err
	}
	if b.file.Header.Magic != BigBedMagic {
		return nil, errors.New("bbi: not a BigBed file")
	}
	s := &BigBedScanner{base: b}
	switch sel := opts.Schema; {
	case sel == "rest":
		// One collapsed tail column.
	case sel == "" || sel == "autosql":
		names := AutoSqlFields(b.file.AutoSql)
		if len(names) > 3 {
			s.rest = names[3:]
		}
	case strings.HasPrefix(strings.ToLower(sel), "bed"):
		bs, err := bed.ParseSchema(sel)
		if err != nil {
			return nil, err
		}
		s.rest = bs.FieldNames()[3:]
	default:
		return nil, fmt.Errorf("bbi: unknown schema selector %q", sel)
	}
	fields := []arrow.Field{
		batch.Field("chrom", batch.DictionaryType()),
		batch.Field("start", arrow.PrimitiveTypes.Int32),
		batch.Field("end", arrow.PrimitiveTypes.Int32),
	}
	if s.rest == nil {
		fields = append(fields, batch.Field("rest", arrow.BinaryTypes.String))
	} else {
		for _, name := range s.rest {
			fields = append(fields, batch.Field(name, arrow.BinaryTypes.String))
		}
	}
	s.schema = arrow.NewSchema(fields, nil)
	return s, nil
}

// Schema returns the computed Arrow schema without consuming records.
func (s *BigBedScanner) Schema() *arrow.Schema { return s.schema }

// Scan returns a stream over all records in file order. A positive
// limit stops the scan after that many rows.
func (s *BigBedScanner) Scan(limit int) (*batch.Stream, error) {
	return s.stream(^uint32(0), 0, 0, limit)
}

// ScanQuery returns a stream over records overlapping the given
// region. An unknown reference yields an empty stream.
func (s *BigBedScanner) ScanQuery(region string) (*batch.Stream, error) {
	c, start, end, ok, err := s.resolve(region)
	if err != nil {
		return nil, err
	}
	if !ok {
		return batch.NewStream(s.schema, s.batchSize, emptyFill), nil
	}
	return s.stream(c.ID, start, end, 0)
}

func (s *BigBedScanner) stream(chromID, start, end uint32, limit int) (*batch.Stream, error) {
	rc, rs, err := openSeekable(s.src)
	if err != nil {
		return nil, err
	}
	leaves, err := queryRTree(rs, s.file.Header.FullIndexOffset, chromID, start, end)
	if err != nil {
		rc.Close()
		return nil, err
	}
	var pending []BedEntry
	count := 0
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			if limit > 0 && count == limit {
				return n, io.EOF
			}
			if len(pending) == 0 {
				if len(leaves) == 0 {
					return n, io.EOF
				}
				block, err := s.file.readBlock(rs, leaves[0])
				if err != nil {
					return n, err
				}
				leaves = leaves[1:]
				pending, err = decodeBedBlock(block)
				if err != nil {
					return n, err
				}
				continue
			}
			e := pending[0]
			pending = pending[1:]
			if chromID != ^uint32(0) && (e.ChromID != chromID || e.Start >= end || e.End <= start) {
				continue
			}
			if err := s.appendEntry(rb, e); err != nil {
				return n, err
			}
			n++
			count++
		}
		return n, nil
	}
	stream := batch.NewStream(s.schema, s.batchSize, fill)
	stream.AttachCloser(rc)
	return stream, nil
}

func (s *BigBedScanner) appendEntry(rb *array.RecordBuilder, e BedEntry) error {
	db := rb.Field(0).(*array.BinaryDictionaryBuilder)
	if !s.seeded {
		if err := batch.SeedDictionary(db, s.file.ChromNames()); err != nil {
			return err
		}
		s.seeded = true
	}
	name := ""
	if int(e.ChromID) < len(s.file.Chroms) {
		name = s.file.Chroms[e.ChromID].Name
	}
	if err := batch.AppendDictString(db, name, name != ""); err != nil {
		return err
	}
	rb.Field(1).(*array.Int32Builder).Append(int32(e.Start))
	rb.Field(2).(*array.Int32Builder).Append(int32(e.End))
	if s.rest == nil {
		sb := rb.Field(3).(*array.StringBuilder)
		if e.Rest == "" {
			sb.AppendNull()
		} else {
			sb.Append(e.Rest)
		}
		return nil
	}
	values := strings.Split(e.Rest, "\t")
	for i := range s.rest {
		sb := rb.Field(3 + i).(*array.StringBuilder)
		if i >= len(values) || values[i] == "" || values[i] == "." {
			sb.AppendNull()
			continue
		}
		sb.Append(values[i])
	}
	return nil
}

// A ZoomScanner decodes the fixed-width summary tuples of one zoom
// level into Arrow record batches. It works over both BigWig and
// BigBed sources.
type ZoomScanner struct {
	*base
	level  int
	schema *arrow.Schema
	seeded bool
}

// NewZoomScanner returns a scanner over the zoom level with the given
// index, counted from the finest precomputed level.
func NewZoomScanner(src oxbow.Source, level int, opts Options) (*ZoomScanner, error) {
	b, err := newBase(src, opts.BatchSize)
	if err != nil {
		return nil, err
	}
	if level < 0 || level >= len(b.file.Header.Zooms) {
		return nil, fmt.Errorf("bbi: zoom level %d out of range: file has %d levels", level, len(b.file.Header.Zooms))
	}
	schema := arrow.NewSchema([]arrow.Field{
		batch.Field("chrom", batch.DictionaryType()),
		batch.Field("start", arrow.PrimitiveTypes.Int32),
		batch.Field("end", arrow.PrimitiveTypes.Int32),
		batch.Field("validCount", arrow.PrimitiveTypes.Uint32),
		batch.Field("min", arrow.PrimitiveTypes.Float32),
		batch.Field("max", arrow.PrimitiveTypes.Float32),
		batch.Field("sum", arrow.PrimitiveTypes.Float32),
		batch.Field("sumSquares", arrow.PrimitiveTypes.Float32),
	}, nil)
	return &ZoomScanner{base: b, level: level, schema: schema}, nil
}

// Schema returns the computed Arrow schema without consuming records.
func (s *ZoomScanner) Schema() *arrow.Schema { return s.schema }

// ReductionLevel returns the bin width of the scanned zoom level.
func (s *ZoomScanner) ReductionLevel() uint32 {
	return s.file.Header.Zooms[s.level].ReductionLevel
}

// Scan returns a stream over all summary tuples in file order. A
// positive limit stops the scan after that many rows.
func (s *ZoomScanner) Scan(limit int) (*batch.Stream, error) {
	return s.stream(^uint32(0), 0, 0, limit)
}

// ScanQuery returns a stream over summary tuples overlapping the
// given region. An unknown reference yields an empty stream.
func (s *ZoomScanner) ScanQuery(region string) (*batch.Stream, error) {
	c, start, end, ok, err := s.resolve(region)
	if err != nil {
		return nil, err
	}
	if !ok {
		return batch.NewStream(s.schema, s.batchSize, emptyFill), nil
	}
	return s.stream(c.ID, start, end, 0)
}

func (s *ZoomScanner) stream(chromID, start, end uint32, limit int) (*batch.Stream, error) {
	rc, rs, err := openSeekable(s.src)
	if err != nil {
		return nil, err
	}
	leaves, err := queryRTree(rs, s.file.Header.Zooms[s.level].IndexOffset, chromID, start, end)
	if err != nil {
		rc.Close()
		return nil, err
	}
	var pending []ZoomRecord
	count := 0
	fill := func(rb *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max {
			if limit > 0 && count == limit {
				return n, io.EOF
			}
			if len(pending) == 0 {
				if len(leaves) == 0 {
					return n, io.EOF
				}
				block, err := s.file.readBlock(rs, leaves[0])
				if err != nil {
					return n, err
				}
				leaves = leaves[1:]
				pending, err = decodeZoomBlock(block)
				if err != nil {
					return n, err
				}
				continue
			}
			z := pending[0]
			pending = pending[1:]
			if chromID != ^uint32(0) && (z.ChromID != chromID || z.Start >= end || z.End <= start) {
				continue
			}
			if err := s.appendRecord(rb, z); err != nil {
				return n, err
			}
			n++
			count++
		}
		return n, nil
	}
	stream := batch.NewStream(s.schema, s.batchSize, fill)
	stream.AttachCloser(rc)
	return stream, nil
}

func (s *ZoomScanner) appendRecord(rb *array.RecordBuilder, z ZoomRecord) error {
	db := rb.Field(0).(*array.BinaryDictionaryBuilder)
	if !s.seeded {
		if err := batch.SeedDictionary(db, s.file.ChromNames()); err != nil {
			return err
		}
		s.seeded = true
	}
	name := ""
	if int(z.ChromID) < len(s.file.Chroms) {
		name = s.file.Chroms[z.ChromID].Name
	}
	if err := batch.AppendDictString(db, name, name != ""); err != nil {
		return err
	}
	rb.Field(1).(*array.Int32Builder).Append(int32(z.Start))
	rb.Field(2).(*array.Int32Builder).Append(int32(z.End))
	rb.Field(3).(*array.Uint32Builder).Append(z.ValidCount)
	rb.Field(4).(*array.Float32Builder).Append(z.Min)
	rb.Field(5).(*array.Float32Builder).Append(z.Max)
	rb.Field(6).(*array.Float32Builder).Append(z.Sum)
	rb.Field(7).(*array.Float32Builder).Append(z.SumSquares)
	return nil
}
