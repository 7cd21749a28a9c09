// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bbi implements reading of the UCSC Big Binary Indexed
// formats, BigWig and BigBed: the common header, the chromosome
// B-tree, the disk-resident interval R-tree and the zoom level
// summaries, plus the scanners over them.
package bbi

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

// Format magic numbers, little endian.
const (
	BigWigMagic = 0x888ffc26
	BigBedMagic = 0x8789f2eb

	chromTreeMagic = 0x78ca8c91
	rTreeMagic     = 0x2468ace0
)

// Header is the fixed BBI file header together with the zoom level
// directory.
type Header struct {
	Magic              uint32
	Version            uint16
	ZoomLevels         uint16
	ChromTreeOffset    uint64
	FullDataOffset     uint64
	FullIndexOffset    uint64
	FieldCount         uint16
	DefinedFieldCount  uint16
	AutoSqlOffset      uint64
	TotalSummaryOffset uint64
	UncompressBufSize  uint32
	Reserved           uint64

	Zooms []ZoomHeader
}

// ZoomHeader describes one precomputed summary level.
type ZoomHeader struct {
	ReductionLevel uint32
	Reserved       uint32
	DataOffset     uint64
	IndexOffset    uint64
}

// Summary is the total summary block.
type Summary struct {
	BasesCovered uint64
	Min          float64
	Max          float64
	Sum          float64
	SumSquares   float64
}

// Chrom is one chromosome B-tree entry.
type Chrom struct {
	Name string
	ID   uint32
	Size uint32
}

// File is the decoded metadata of a BigWig or BigBed file: header,
// chromosome dictionary, AutoSql text and total summary. It carries
// no open handle; scans bind a fresh reader per pass.
type File struct {
	Header  Header
	Chroms  []Chrom
	AutoSql string
	Summary *Summary

	byName map[string]int
}

// Read decodes the file metadata from r. The magic number selects
// the format; an unrecognized magic or byte order is fatal.
func Read(r io.ReadSeeker) (*File, error) {
	f := &File{byName: map[string]int{}}
	h := &f.Header
	err := readLittle(r, &h.Magic)
	if err != nil {
		return nil, err
	}
	if h.Magic != BigWigMagic && h.Magic != BigBedMagic {
		return nil, fmt.Errorf("bbi: magic number mismatch: %#08x", h.Magic)
	}
	for _, v := range []interface{}{
		&h.Version, &h.ZoomLevels, &h.ChromTreeOffset, &h.FullDataOffset,
		&h.FullIndexOffset, &h.FieldCount, &h.DefinedFieldCount,
		&h.AutoSqlOffset, &h.TotalSummaryOffset, &h.UncompressBufSize,
		&h.Reserved,
	} {
		if err = readLittle(r, v); err != nil {
			return nil, err
		}
	}
	if h.Version < 3 {
		return nil, fmt.Errorf("bbi: unsupported version: %d", h.Version)
	}
	h.Zooms = make([]ZoomHeader, h.ZoomLevels)
	for i := range h.Zooms {
		z := &h.Zooms[i]
		for _, v := range []interface{}{
			&z.ReductionLevel, &z.Reserved, &z.DataOffset, &z.IndexOffset,
		} {
			if err = readLittle(r, v); err != nil {
				return nil, err
			}
		}
	}

	if h.AutoSqlOffset != 0 {
		if _, err = r.Seek(int64(h.AutoSqlOffset), io.SeekStart); err != nil {
			return nil, err
		}
		f.AutoSql, err = readCString(r)
		if err != nil {
			return nil, err
		}
	}
	if h.TotalSummaryOffset != 0 {
		if _, err = r.Seek(int64(h.TotalSummaryOffset), io.SeekStart); err != nil {
			return nil, err
		}
		s := &Summary{}
		for _, v := range []interface{}{
			&s.BasesCovered, &s.Min, &s.Max, &s.Sum, &s.SumSquares,
		} {
			if err = readLittle(r, v); err != nil {
				return nil, err
			}
		}
		f.Summary = s
	}

	if _, err = r.Seek(int64(h.ChromTreeOffset), io.SeekStart); err != nil {
		return nil, err
	}
	err = f.readChromTree(r)
	if err != nil {
		return nil, err
	}
	sort.Slice(f.Chroms, func(i, j int) bool { return f.Chroms[i].ID < f.Chroms[j].ID })
	for i, c := range f.Chroms {
		f.byName[c.Name] = i
	}
	return f, nil
}

// ChromByName returns the chromosome entry with the given name.
func (f *File) ChromByName(name string) (Chrom, bool) {
	i, ok := f.byName[name]
	if !ok {
		return Chrom{}, false
	}
	return f.Chroms[i], true
}

// ChromNames returns the chromosome names in id order.
func (f *File) ChromNames() []string {
	names := make([]string, len(f.Chroms))
	for i, c := range f.Chroms {
		names[i] = c.Name
	}
	return names
}

// ChromSizes returns the chromosome names and lengths.
func (f *File) ChromSizes() map[string]int {
	sizes := make(map[string]int, len(f.Chroms))
	for _, c := range f.Chroms {
		sizes[c.Name] = int(c.Size)
	}
	return sizes
}

// ZoomLevels returns the reduction level of each zoom level in file
// order.
func (f *File) ZoomLevels() []uint32 {
	levels := make([]uint32, len(f.Header.Zooms))
	for i, z := range f.Header.Zooms {
		levels[i] = z.ReductionLevel
	}
	return levels
}

// readChromTree parses the chromosome B-tree rooted at the current
// position of r.
func (f *File) readChromTree(r io.ReadSeeker) error {
	var magic uint32
	err := readLittle(r, &magic)
	if err != nil {
		return err
	}
	if magic != chromTreeMagic {
		return errors.New("bbi: invalid chromosome tree")
	}
	var (
		blockSize, keySize, valSize uint32
		itemCount, padding          uint64
	)
	for _, v := range []interface{}{&blockSize, &keySize, &valSize, &itemCount, &padding} {
		if err = readLittle(r, v); err != nil {
			return err
		}
	}
	if valSize != 8 {
		return fmt.Errorf("bbi: unexpected chromosome value size: %d", valSize)
	}
	return f.readChromVertex(r, keySize)
}

func (f *File) readChromVertex(r io.ReadSeeker, keySize uint32) error {
	var (
		isLeaf, padding uint8
		n               uint16
	)
	for _, v := range []interface{}{&isLeaf, &padding, &n} {
		if err := readLittle(r, v); err != nil {
			return err
		}
	}
	key := make([]byte, keySize)
	if isLeaf != 0 {
		for i := 0; i < int(n); i++ {
			if _, err := io.ReadFull(r, key); err != nil {
				return err
			}
			var id, size uint32
			if err := readLittle(r, &id); err != nil {
				return err
			}
			if err := readLittle(r, &size); err != nil {
				return err
			}
			f.Chroms = append(f.Chroms, Chrom{
				Name: string(bytes.TrimRight(key, "\x00")),
				ID:   id,
				Size: size,
			})
		}
		return nil
	}
	offsets := make([]uint64, n)
	for i := 0; i < int(n); i++ {
		if _, err := io.ReadFull(r, key); err != nil {
			return err
		}
		if err := readLittle(r, &offsets[i]); err != nil {
			return err
		}
	}
	for _, off := range offsets {
		if _, err := r.Seek(int64(off), io.SeekStart); err != nil {
			return err
		}
		if err := f.readChromVertex(r, keySize); err != nil {
			return err
		}
	}
	return nil
}

// A Leaf is one R-tree leaf item: a byte range of the data section
// covering an interval range.
type Leaf struct {
	StartChrom uint32
	StartBase  uint32
	EndChrom   uint32
	EndBase    uint32
	Offset     uint64
	Size       uint64
}

// queryRTree descends the R-tree rooted at indexOffset, returning the
// leaves whose interval bounds overlap [start, end) on the given
// chromosome, in file offset order. A chromID of ^uint32(0) matches
// every chromosome.
func queryRTree(r io.ReadSeeker, indexOffset uint64, chromID, start, end uint32) ([]Leaf, error) {
	if _, err := r.Seek(int64(indexOffset), io.SeekStart); err != nil {
		return nil, err
	}
	var magic uint32
	err := readLittle(r, &magic)
	if err != nil {
		return nil, err
	}
	if magic != rTreeMagic {
		return nil, errors.New("bbi: invalid interval tree")
	}
	var (
		blockSize              uint32
		nItems                 uint64
		chrIdxStart, baseStart uint32
		chrIdxEnd, baseEnd     uint32
		idxSize                uint64
		nItemsPerSlot, padding uint32
	)
	for _, v := range []interface{}{
		&blockSize, &nItems, &chrIdxStart, &baseStart, &chrIdxEnd,
		&baseEnd, &idxSize, &nItemsPerSlot, &padding,
	} {
		if err = readLittle(r, v); err != nil {
			return nil, err
		}
	}
	rootOffset, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	var leaves []Leaf
	err = walkRTree(r, uint64(rootOffset), chromID, start, end, &leaves)
	if err != nil {
		return nil, err
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Offset < leaves[j].Offset })
	return leaves, nil
}

func walkRTree(r io.ReadSeeker, nodeOffset uint64, chromID, start, end uint32, leaves *[]Leaf) error {
	if _, err := r.Seek(int64(nodeOffset), io.SeekStart); err != nil {
		return err
	}
	var (
		isLeaf, padding uint8
		n               uint16
	)
	for _, v := range []interface{}{&isLeaf, &padding, &n} {
		if err := readLittle(r, v); err != nil {
			return err
		}
	}
	type child struct {
		offset uint64
	}
	var children []child
	for i := 0; i < int(n); i++ {
		var sc, sb, ec, eb uint32
		for _, v := range []interface{}{&sc, &sb, &ec, &eb} {
			if err := readLittle(r, v); err != nil {
				return err
			}
		}
		var offset uint64
		if err := readLittle(r, &offset); err != nil {
			return err
		}
		if isLeaf != 0 {
			var size uint64
			if err := readLittle(r, &size); err != nil {
				return err
			}
			if overlapsRange(sc, sb, ec, eb, chromID, start, end) {
				*leaves = append(*leaves, Leaf{
					StartChrom: sc, StartBase: sb,
					EndChrom: ec, EndBase: eb,
					Offset: offset, Size: size,
				})
			}
		} else if overlapsRange(sc, sb, ec, eb, chromID, start, end) {
			children = append(children, child{offset: offset})
		}
	}
	for _, c := range children {
		if err := walkRTree(r, c.offset, chromID, start, end, leaves); err != nil {
			return err
		}
	}
	return nil
}

// overlapsRange reports whether the node interval range overlaps the
// query interval on chromID. The all-ones chromID matches everything.
func overlapsRange(sc, sb, ec, eb, chromID, start, end uint32) bool {
	if chromID == ^uint32(0) {
		return true
	}
	if ec < chromID || (ec == chromID && eb <= start) {
		return false
	}
	if sc > chromID || (sc == chromID && sb >= end) {
		return false
	}
	return true
}

// readBlock reads and, when the header declares compression,
// zlib-inflates one data block.
func (f *File) readBlock(r io.ReadSeeker, leaf Leaf) ([]byte, error) {
	if _, err := r.Seek(int64(leaf.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	block := make([]byte, leaf.Size)
	if _, err := io.ReadFull(r, block); err != nil {
		return nil, err
	}
	if f.Header.UncompressBufSize == 0 {
		return block, nil
	}
	z, err := zlib.NewReader(bytes.NewReader(block))
	if err != nil {
		return nil, err
	}
	defer z.Close()
	out, err := io.ReadAll(z)
	if err != nil {
		return nil, err
	}
	if len(out) > int(f.Header.UncompressBufSize) {
		return nil, errors.New("bbi: block larger than declared buffer size")
	}
	return out, nil
}

// A dataHeader is the 24 byte header of a BigWig section.
type dataHeader struct {
	ChromID   uint32
	Start     uint32
	End       uint32
	Step      uint32
	Span      uint32
	Type      byte
	Reserved  byte
	ItemCount uint16
}

// Section encodings.
const (
	typeBedGraph     = 1
	typeVariableStep = 2
	typeFixedStep    = 3
)

func (h *dataHeader) readBuffer(buf []byte) {
	h.ChromID = binary.LittleEndian.Uint32(buf[0:4])
	h.Start = binary.LittleEndian.Uint32(buf[4:8])
	h.End = binary.LittleEndian.Uint32(buf[8:12])
	h.Step = binary.LittleEndian.Uint32(buf[12:16])
	h.Span = binary.LittleEndian.Uint32(buf[16:20])
	h.Type = buf[20]
	h.Reserved = buf[21]
	h.ItemCount = binary.LittleEndian.Uint16(buf[22:24])
}

// An Interval is one decoded BigWig value interval.
type Interval struct {
	ChromID uint32
	Start   uint32
	End     uint32
	Value   float32
}

// decodeWigBlock decodes one BigWig data block into value intervals.
func decodeWigBlock(block []byte) ([]Interval, error) {
	if len(block) < 24 {
		return nil, errors.New("bbi: block shorter than 24 bytes")
	}
	var h dataHeader
	h.readBuffer(block)
	buf := block[24:]
	var out []Interval
	switch h.Type {
	case typeBedGraph:
		if len(buf)%12 != 0 {
			return nil, errors.New("bbi: bedgraph data block has invalid length")
		}
		for i := 0; i+12 <= len(buf); i += 12 {
			out = append(out, Interval{
				ChromID: h.ChromID,
				Start:   binary.LittleEndian.Uint32(buf[i : i+4]),
				End:     binary.LittleEndian.Uint32(buf[i+4 : i+8]),
				Value:   math.Float32frombits(binary.LittleEndian.Uint32(buf[i+8 : i+12])),
			})
		}
	case typeVariableStep:
		if len(buf)%8 != 0 {
			return nil, errors.New("bbi: variable step data block has invalid length")
		}
		for i := 0; i+8 <= len(buf); i += 8 {
			start := binary.LittleEndian.Uint32(buf[i : i+4])
			out = append(out, Interval{
				ChromID: h.ChromID,
				Start:   start,
				End:     start + h.Span,
				Value:   math.Float32frombits(binary.LittleEndian.Uint32(buf[i+4 : i+8])),
			})
		}
	case typeFixedStep:
		if len(buf)%4 != 0 {
			return nil, errors.New("bbi: fixed step data block has invalid length")
		}
		for i := 0; i+4 <= len(buf); i += 4 {
			start := h.Start + uint32(i/4)*h.Step
			out = append(out, Interval{
				ChromID: h.ChromID,
				Start:   start,
				End:     start + h.Span,
				Value:   math.Float32frombits(binary.LittleEndian.Uint32(buf[i : i+4])),
			})
		}
	default:
		return nil, errors.New("bbi: unsupported block type")
	}
	return out, nil
}

// A BedEntry is one decoded BigBed record: the mandatory BED3 prefix
// plus the null-terminated AutoSql-described tail.
type BedEntry struct {
	ChromID uint32
	Start   uint32
	End     uint32
	Rest    string
}

// decodeBedBlock decodes one BigBed data block.
func decodeBedBlock(block []byte) ([]BedEntry, error) {
	var out []BedEntry
	for off := 0; off < len(block); {
		if off+12 > len(block) {
			return nil, errors.New("bbi: truncated bed record")
		}
		e := BedEntry{
			ChromID: binary.LittleEndian.Uint32(block[off : off+4]),
			Start:   binary.LittleEndian.Uint32(block[off+4 : off+8]),
			End:     binary.LittleEndian.Uint32(block[off+8 : off+12]),
		}
		off += 12
		zero := bytes.IndexByte(block[off:], 0)
		if zero < 0 {
			return nil, errors.New("bbi: unterminated bed record")
		}
		e.Rest = string(block[off : off+zero])
		off += zero + 1
		out = append(out, e)
	}
	return out, nil
}

// A ZoomRecord is one fixed-width summary tuple from a zoom level.
type ZoomRecord struct {
	ChromID    uint32
	Start      uint32
	End        uint32
	ValidCount uint32
	Min        float32
	Max        float32
	Sum        float32
	SumSquares float32
}

// decodeZoomBlock decodes one zoom data block.
func decodeZoomBlock(block []byte) ([]ZoomRecord, error) {
	if len(block)%32 != 0 {
		return nil, errors.New("bbi: zoom data block has invalid length")
	}
	out := make([]ZoomRecord, 0, len(block)/32)
	for i := 0; i+32 <= len(block); i += 32 {
		out = append(out, ZoomRecord{
			ChromID:    binary.LittleEndian.Uint32(block[i : i+4]),
			Start:      binary.LittleEndian.Uint32(block[i+4 : i+8]),
			End:        binary.LittleEndian.Uint32(block[i+8 : i+12]),
			ValidCount: binary.LittleEndian.Uint32(block[i+12 : i+16]),
			Min:        math.Float32frombits(binary.LittleEndian.Uint32(block[i+16 : i+20])),
			Max:        math.Float32frombits(binary.LittleEndian.Uint32(block[i+20 : i+24])),
			Sum:        math.Float32frombits(binary.LittleEndian.Uint32(block[i+24 : i+28])),
			SumSquares: math.Float32frombits(binary.LittleEndian.Uint32(block[i+28 : i+32])),
		})
	}
	return out, nil
}

// AutoSqlFields returns the declared field names of an AutoSql table
// definition in order.
func AutoSqlFields(autoSql string) []string {
	open := strings.IndexByte(autoSql, '(')
	if open < 0 {
		return nil
	}
	body := autoSql[open+1:]
	if close := strings.LastIndexByte(body, ')'); close >= 0 {
		body = body[:close]
	}
	var names []string
	for _, line := range strings.Split(body, "\n") {
		// Each declaration line is `type name; "comment"`.
		decl, _, ok := strings.Cut(line, ";")
		if !ok {
			continue
		}
		fields := strings.Fields(strings.TrimSpace(decl))
		if len(fields) < 2 {
			continue
		}
		name := fields[len(fields)-1]
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		names = append(names, name)
	}
	return names
}

func readLittle(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}

func readCString(r io.Reader) (string, error) {
	var buf []byte
	one := []byte{0}
	for {
		_, err := io.ReadFull(r, one)
		if err != nil {
			return "", err
		}
		if one[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, one[0])
	}
}
