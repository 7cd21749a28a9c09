// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/abdenlab/oxbow-go/bgzf"
	"github.com/abdenlab/oxbow-go/sam"
)

// Reader implements BAM data reading.
type Reader struct {
	r *bgzf.Reader
	h *sam.Header

	// buf is used to read the block size of each record and is
	// reused as the record decode buffer.
	buf  [4]byte
	data []byte

	lastVPos bgzf.Offset
}

// NewReader returns a new Reader using the given bgzf.Reader. The
// header is decoded eagerly.
func NewReader(bg *bgzf.Reader) (*Reader, error) {
	h := sam.NewHeader()
	err := h.DecodeBinary(bg)
	if err != nil {
		return nil, err
	}
	return &Reader{r: bg, h: h, lastVPos: bg.Tell()}, nil
}

// Header returns the SAM Header held by the Reader.
func (br *Reader) Header() *sam.Header {
	return br.h
}

// Tell returns the virtual position of the next record.
func (br *Reader) Tell() bgzf.Offset { return br.r.Tell() }

// LastVPos returns the virtual position at which the last returned
// record started.
func (br *Reader) LastVPos() bgzf.Offset { return br.lastVPos }

// Seek positions the Reader at the given virtual position.
func (br *Reader) Seek(off bgzf.Offset) error { return br.r.Seek(off) }

// Read returns the next sam.Record in the BAM stream.
func (br *Reader) Read() (*sam.Record, error) {
	br.lastVPos = br.r.Tell()
	_, err := io.ReadFull(br.r, br.buf[:4])
	if err != nil {
		return nil, err
	}
	size := int(int32(binary.LittleEndian.Uint32(br.buf[:4])))
	if size < bamFixedRemainder {
		return nil, errors.New("bam: invalid record: short block size")
	}
	if cap(br.data) < size {
		br.data = make([]byte, size)
	}
	b := buffer{data: br.data[:size]}
	_, err = io.ReadFull(br.r, b.data)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.New("bam: truncated record")
	}

	var rec sam.Record
	refID := b.readInt32()
	rec.Pos = int(b.readInt32())
	nLen := int(b.readUint8())
	rec.MapQ = b.readUint8()
	b.discard(2) // bin
	nCigar := int(b.readUint16())
	rec.Flags = sam.Flags(b.readUint16())
	lSeq := int(b.readInt32())
	nextRefID := b.readInt32()
	rec.MatePos = int(b.readInt32())
	rec.TempLen = int(b.readInt32())

	// Variable length data. All slices taken from b are copied:
	// record views may not outlive the decode buffer.
	if nLen < 1 {
		return nil, errors.New("bam: invalid read name length")
	}
	rec.Name = string(b.bytes(nLen - 1))
	b.discard(1)

	rec.Cigar = readCigarOps(b.bytes(nCigar * 4))

	seq := make([]sam.Doublet, (lSeq+1)>>1)
	for i, d := range b.bytes((lSeq + 1) >> 1) {
		seq[i] = sam.Doublet(d)
	}
	rec.Seq = sam.Seq{Length: lSeq, Seq: seq}
	rec.Qual = append([]byte(nil), b.bytes(lSeq)...)

	rec.AuxFields = parseAux(b.bytes(b.len()))

	refs := len(br.h.Refs())
	if refID != -1 {
		if refID < -1 || int(refID) >= refs {
			return nil, errors.New("bam: reference id out of range")
		}
		rec.Ref = br.h.Refs()[refID]
	}
	if nextRefID != -1 {
		if nextRefID < -1 || int(nextRefID) >= refs {
			return nil, errors.New("bam: mate reference id out of range")
		}
		rec.MateRef = br.h.Refs()[nextRefID]
	}
	return &rec, nil
}

// bamFixedRemainder is the length of the fixed BAM record layout
// beyond the block size word.
const bamFixedRemainder = 32

// len(cb) must be a multiple of 4.
func readCigarOps(cb []byte) []sam.CigarOp {
	co := make([]sam.CigarOp, len(cb)/4)
	for i := range co {
		co[i] = sam.CigarOp(binary.LittleEndian.Uint32(cb[i*4 : (i+1)*4]))
	}
	return co
}

var jumps = [256]int{
	'A': 1,
	'c': 1, 'C': 1,
	's': 2, 'S': 2,
	'i': 4, 'I': 4,
	'f': 4,
	'Z': -1,
	'H': -1,
	'B': -1,
}

// parseAux examines the data of a BAM record's aux fields, returning
// a slice of sam.Aux copied out of the decode buffer.
func parseAux(aux []byte) []sam.Aux {
	if len(aux) == 0 {
		return nil
	}
	aa := make([]sam.Aux, 0, 4)
	for i := 0; i+2 < len(aux); {
		t := aux[i+2]
		switch j := jumps[t]; {
		case j > 0:
			j += 3
			aa = append(aa, sam.Aux(copyBytes(aux[i:i+j])))
			i += j
		case j < 0:
			switch t {
			case 'Z', 'H':
				var (
					j int
					v byte
				)
				for j, v = range aux[i:] {
					if v == 0 { // C string termination.
						break // Truncate terminal zero.
					}
				}
				aa = append(aa, sam.Aux(copyBytes(aux[i:i+j])))
				i += j + 1
			case 'B':
				if i+8 > len(aux) {
					return aa
				}
				length := int32(binary.LittleEndian.Uint32(aux[i+4 : i+8]))
				j = int(length)*jumps[aux[i+3]] + 8
				if i+j > len(aux) {
					return aa
				}
				aa = append(aa, sam.Aux(copyBytes(aux[i:i+j])))
				i += j
			}
		default:
			return aa
		}
	}
	return aa
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

// buffer is a light-weight read buffer.
type buffer struct {
	off  int
	data []byte
}

func (b *buffer) bytes(n int) []byte {
	s := b.off
	b.off += n
	return b.data[s:b.off]
}

func (b *buffer) len() int {
	return len(b.data) - b.off
}

func (b *buffer) discard(n int) {
	b.off += n
}

func (b *buffer) readUint8() uint8 {
	b.off++
	return b.data[b.off-1]
}

func (b *buffer) readUint16() uint16 {
	return binary.LittleEndian.Uint16(b.bytes(2))
}

func (b *buffer) readInt32() int32 {
	return int32(binary.LittleEndian.Uint32(b.bytes(4)))
}
