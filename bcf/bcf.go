// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bcf implements BCF2 reading and the BCF scanner. The format
// is described in the VCF specification, section 6.
//
// http://samtools.github.io/hts-specs/VCFv4.3.pdf
package bcf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/abdenlab/oxbow-go/bgzf"
	"github.com/abdenlab/oxbow-go/vcf"
)

var bcfMagic = [3]byte{'B', 'C', 'F'}

// Typed value encodings.
const (
	typeMissing = 0
	typeInt8    = 1
	typeInt16   = 2
	typeInt32   = 3
	typeFloat   = 5
	typeChar    = 7
)

// Reserved bit patterns for missing and end-of-vector values.
const (
	int8Missing  = int32(-128)
	int8EOV      = int32(-127)
	int16Missing = int32(-32768)
	int16EOV     = int32(-32767)
	int32Missing = int32(-2147483648)
	int32EOV     = int32(-2147483647)

	floatMissingBits = uint32(0x7f800001)
	floatEOVBits     = uint32(0x7f800002)
)

// Reader implements BCF data reading.
type Reader struct {
	r *bgzf.Reader
	h *vcf.Header

	buf      []byte
	lastVPos bgzf.Offset
}

// NewReader returns a new Reader using the given bgzf.Reader. The
// header is decoded eagerly; unknown major versions are fatal.
func NewReader(bg *bgzf.Reader) (*Reader, error) {
	var magic [3]byte
	err := binary.Read(bg, binary.LittleEndian, &magic)
	if err != nil {
		return nil, err
	}
	if magic != bcfMagic {
		return nil, errors.New("bcf: magic number mismatch")
	}
	var version [2]byte
	err = binary.Read(bg, binary.LittleEndian, &version)
	if err != nil {
		return nil, err
	}
	if version[0] != 2 {
		return nil, fmt.Errorf("bcf: unsupported version: %d.%d", version[0], version[1])
	}
	var lText uint32
	err = binary.Read(bg, binary.LittleEndian, &lText)
	if err != nil {
		return nil, err
	}
	text := make([]byte, lText)
	if _, err = io.ReadFull(bg, text); err != nil {
		return nil, errors.New("bcf: truncated header")
	}
	text = bytes.TrimRight(text, "\x00")
	h, err := vcf.ReadHeader(bufio.NewReader(bytes.NewReader(text)))
	if err != nil {
		return nil, err
	}
	return &Reader{r: bg, h: h, lastVPos: bg.Tell()}, nil
}

// Header returns the decoded header.
func (br *Reader) Header() *vcf.Header { return br.h }

// Tell returns the virtual position of the next record.
func (br *Reader) Tell() bgzf.Offset { return br.r.Tell() }

// LastVPos returns the virtual position at which the last returned
// record started.
func (br *Reader) LastVPos() bgzf.Offset { return br.lastVPos }

// Seek positions the Reader at the given virtual position.
func (br *Reader) Seek(off bgzf.Offset) error { return br.r.Seek(off) }

// Read returns the next Record in the BCF stream.
func (br *Reader) Read() (*Record, error) {
	br.lastVPos = br.r.Tell()
	var lengths [8]byte
	_, err := io.ReadFull(br.r, lengths[:])
	if err != nil {
		return nil, err
	}
	lShared := binary.LittleEndian.Uint32(lengths[0:4])
	lIndiv := binary.LittleEndian.Uint32(lengths[4:8])
	if lShared < 24 {
		return nil, errors.New("bcf: invalid record: short shared block")
	}
	size := int(lShared) + int(lIndiv)
	if cap(br.buf) < size {
		br.buf = make([]byte, size)
	}
	data := br.buf[:size]
	if _, err = io.ReadFull(br.r, data); err != nil {
		return nil, errors.New("bcf: truncated record")
	}
	return decodeRecord(br.h, data[:lShared], data[lShared:])
}

// Record is a decoded BCF record. It satisfies vcf.Variant.
type Record struct {
	h *vcf.Header

	chromID int32
	pos     int32
	rlen    int32
	qual    float32
	hasQual bool

	id      string
	alleles []string
	filters []int32

	infoKeys []int
	info     map[int]vcf.Value

	fmtKeys []int
	fmts    map[int][]vcf.Value // Per sample values, keyed like info.
}

func decodeRecord(h *vcf.Header, shared, indiv []byte) (*Record, error) {
	d := decoder{b: shared}
	rec := &Record{h: h}
	rec.chromID = d.int32()
	rec.pos = d.int32()
	rec.rlen = d.int32()
	qualBits := d.uint32()
	if qualBits != floatMissingBits {
		rec.qual = math.Float32frombits(qualBits)
		rec.hasQual = true
	}
	nAlleleInfo := d.uint32()
	nInfo := int(nAlleleInfo & 0xffff)
	nAllele := int(nAlleleInfo >> 16)
	nFmtSample := d.uint32()
	nSample := int(nFmtSample & 0xffffff)
	nFmt := int(nFmtSample >> 24)
	if d.err != nil {
		return nil, d.err
	}

	id, err := d.typedString()
	if err != nil {
		return nil, err
	}
	rec.id = id

	rec.alleles = make([]string, 0, nAllele)
	for i := 0; i < nAllele; i++ {
		al, err := d.typedString()
		if err != nil {
			return nil, err
		}
		rec.alleles = append(rec.alleles, al)
	}

	rec.filters, err = d.typedInts()
	if err != nil {
		return nil, err
	}

	rec.info = make(map[int]vcf.Value, nInfo)
	for i := 0; i < nInfo; i++ {
		key, err := d.typedInt()
		if err != nil {
			return nil, err
		}
		v, err := d.typedValue(1)
		if err != nil {
			return nil, err
		}
		rec.infoKeys = append(rec.infoKeys, key)
		rec.info[key] = scalarize(v)
	}

	// Per-sample blocks.
	d = decoder{b: indiv}
	rec.fmts = make(map[int][]vcf.Value, nFmt)
	for i := 0; i < nFmt; i++ {
		key, err := d.typedInt()
		if err != nil {
			return nil, err
		}
		values, err := d.typedVector(nSample)
		if err != nil {
			return nil, err
		}
		rec.fmtKeys = append(rec.fmtKeys, key)
		rec.fmts[key] = values
	}
	return rec, nil
}

// Chrom returns the record's contig name.
func (r *Record) Chrom() string {
	if int(r.chromID) < len(r.h.Contigs) {
		return r.h.Contigs[r.chromID].Name
	}
	return ""
}

// ChromID returns the record's contig id.
func (r *Record) ChromID() int { return int(r.chromID) }

// Pos returns the 0-based start position.
func (r *Record) Pos() int { return int(r.pos) }

// End returns the 0-based exclusive end position.
func (r *Record) End() int { return int(r.pos + r.rlen) }

// ID returns the record identifier; ok is false when missing.
func (r *Record) ID() (string, bool) {
	if r.id == "" || r.id == "." {
		return "", false
	}
	return r.id, true
}

// Ref returns the reference allele.
func (r *Record) Ref() string {
	if len(r.alleles) == 0 {
		return ""
	}
	return r.alleles[0]
}

// Alts returns the alternate alleles.
func (r *Record) Alts() []string {
	if len(r.alleles) < 2 {
		return nil
	}
	return r.alleles[1:]
}

// Qual returns the quality score; ok is false when missing.
func (r *Record) Qual() (float32, bool) { return r.qual, r.hasQual }

// Filters returns the filter names resolved through the header
// dictionary, or nil for a missing set.
func (r *Record) Filters() []string {
	if r.filters == nil {
		return nil
	}
	names := make([]string, 0, len(r.filters))
	for _, idx := range r.filters {
		if name, ok := r.h.DictString(int(idx)); ok {
			names = append(names, name)
		}
	}
	return names
}

// Info returns the decoded value of the named INFO field.
func (r *Record) Info(key string) (vcf.Value, bool) {
	for _, idx := range r.infoKeys {
		if name, ok := r.h.DictString(idx); ok && name == key {
			v := r.info[idx]
			if decl, ok := r.h.Info(key); ok && decl.Type == "Flag" {
				return true, true
			}
			return v, true
		}
	}
	return nil, false
}

// Genotype returns the decoded value of the named FORMAT field for
// the sample with the given header index. A missing subfield and an
// explicitly null-valued one are both reported as a nil Value.
func (r *Record) Genotype(sample int, key string) (vcf.Value, bool) {
	for _, idx := range r.fmtKeys {
		name, ok := r.h.DictString(idx)
		if !ok || name != key {
			continue
		}
		values := r.fmts[idx]
		if sample < 0 || sample >= len(values) {
			return nil, false
		}
		v := values[sample]
		if key == "GT" {
			return decodeGT(v), true
		}
		return v, true
	}
	return nil, false
}

// decodeGT converts genotype integers to allele indices: each value
// encodes allele+1 shifted left once with a phasing bit.
func decodeGT(v vcf.Value) vcf.Value {
	ints, ok := v.([]int32)
	if !ok {
		return nil
	}
	alleles := make([]int32, len(ints))
	for i, g := range ints {
		alleles[i] = (g >> 1) - 1
	}
	return alleles
}

// scalarize maps empty decoded vectors to nil so missing and
// zero-length values collapse to Arrow nulls.
func scalarize(v vcf.Value) vcf.Value {
	switch t := v.(type) {
	case []int32:
		if len(t) == 0 {
			return nil
		}
	case []float32:
		if len(t) == 0 {
			return nil
		}
	case []string:
		if len(t) == 0 {
			return nil
		}
	}
	return v
}

// decoder reads the BCF typed encoding.
type decoder struct {
	b   []byte
	off int
	err error
}

func (d *decoder) int32() int32  { return int32(d.uint32()) }
func (d *decoder) uint32() uint32 {
	if d.err != nil {
		return 0
	}
	if d.off+4 > len(d.b) {
		d.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(d.b[d.off:])
	d.off += 4
	return v
}

func (d *decoder) byte() (byte, error) {
	if d.off >= len(d.b) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.b[d.off]
	d.off++
	return b, nil
}

// descriptor reads a type descriptor byte, expanding a 15 length
// marker through the following typed integer.
func (d *decoder) descriptor() (typ byte, n int, err error) {
	b, err := d.byte()
	if err != nil {
		return 0, 0, err
	}
	typ = b & 0x0f
	n = int(b >> 4)
	if n == 15 {
		n, err = d.typedInt()
		if err != nil {
			return 0, 0, err
		}
	}
	return typ, n, nil
}

// typedInt reads a complete typed scalar integer.
func (d *decoder) typedInt() (int, error) {
	typ, n, err := d.descriptor()
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, fmt.Errorf("bcf: expected scalar integer, got %d values", n)
	}
	v, err := d.intValue(typ)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (d *decoder) intValue(typ byte) (int32, error) {
	switch typ {
	case typeInt8:
		b, err := d.byte()
		return int32(int8(b)), err
	case typeInt16:
		if d.off+2 > len(d.b) {
			return 0, io.ErrUnexpectedEOF
		}
		v := int32(int16(binary.LittleEndian.Uint16(d.b[d.off:])))
		d.off += 2
		return v, nil
	case typeInt32:
		if d.off+4 > len(d.b) {
			return 0, io.ErrUnexpectedEOF
		}
		v := int32(binary.LittleEndian.Uint32(d.b[d.off:]))
		d.off += 4
		return v, nil
	}
	return 0, fmt.Errorf("bcf: unexpected integer type: %d", typ)
}

// typedString reads a complete typed character vector.
func (d *decoder) typedString() (string, error) {
	typ, n, err := d.descriptor()
	if err != nil {
		return "", err
	}
	if typ == typeMissing || n == 0 {
		return "", nil
	}
	if typ != typeChar {
		return "", fmt.Errorf("bcf: expected character vector, got type %d", typ)
	}
	if d.off+n > len(d.b) {
		return "", io.ErrUnexpectedEOF
	}
	s := string(d.b[d.off : d.off+n])
	d.off += n
	return s, nil
}

// typedInts reads a complete typed integer vector, preserving every
// value.
func (d *decoder) typedInts() ([]int32, error) {
	typ, n, err := d.descriptor()
	if err != nil {
		return nil, err
	}
	if typ == typeMissing {
		return nil, nil
	}
	v := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		e, err := d.intValue(typ)
		if err != nil {
			return nil, err
		}
		v = append(v, e)
	}
	return v, nil
}

// typedValue reads one typed vector holding count logical values and
// returns the decoded vcf.Value for one of them. count is 1 for INFO
// values.
func (d *decoder) typedValue(count int) (vcf.Value, error) {
	values, err := d.typedVector(count)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// typedVector reads one typed vector holding count groups of values.
// The descriptor length is the per-group value count, as used by the
// per-sample FORMAT encoding; INFO values use a single group.
// End-of-vector markers and float missing markers are stripped, as is
// the integer missing marker of a single-value group; an integer
// missing marker inside a multi-value group is kept as its raw value.
// Fully missing groups decode to nil.
func (d *decoder) typedVector(count int) ([]vcf.Value, error) {
	typ, per, err := d.descriptor()
	if err != nil {
		return nil, err
	}
	if count < 1 {
		count = 1
	}
	values := make([]vcf.Value, 0, count)
	switch typ {
	case typeMissing:
		for i := 0; i < count; i++ {
			values = append(values, nil)
		}
		return values, nil
	case typeInt8, typeInt16, typeInt32:
		missing, eov := missingFor(typ)
		for i := 0; i < count; i++ {
			group := make([]int32, 0, per)
			for j := 0; j < per; j++ {
				e, err := d.intValue(typ)
				if err != nil {
					return nil, err
				}
				if e == eov {
					continue
				}
				if e == missing && per == 1 {
					continue
				}
				group = append(group, e)
			}
			if len(group) == 0 {
				values = append(values, nil)
			} else {
				values = append(values, group)
			}
		}
	case typeFloat:
		for i := 0; i < count; i++ {
			group := make([]float32, 0, per)
			for j := 0; j < per; j++ {
				bits := d.uint32()
				if d.err != nil {
					return nil, d.err
				}
				if bits == floatEOVBits {
					continue
				}
				if bits == floatMissingBits {
					continue
				}
				group = append(group, math.Float32frombits(bits))
			}
			if len(group) == 0 {
				values = append(values, nil)
			} else {
				values = append(values, group)
			}
		}
	case typeChar:
		total := per * count
		if d.off+total > len(d.b) {
			return nil, io.ErrUnexpectedEOF
		}
		raw := d.b[d.off : d.off+total]
		d.off += total
		for i := 0; i < count; i++ {
			s := string(bytes.TrimRight(raw[i*per:(i+1)*per], "\x00"))
			if s == "" || s == "." {
				values = append(values, nil)
			} else {
				values = append(values, strings.Split(s, ","))
			}
		}
	default:
		return nil, fmt.Errorf("bcf: unknown value type: %d", typ)
	}
	return values, nil
}

func missingFor(typ byte) (missing, eov int32) {
	switch typ {
	case typeInt8:
		return int8Missing, int8EOV
	case typeInt16:
		return int16Missing, int16EOV
	}
	return int32Missing, int32EOV
}
