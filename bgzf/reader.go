// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
)

// Reader implements BGZF decompression with virtual position
// addressing. Reads are satisfied from one decompressed block at a
// time; a single Read call never spans a block boundary, so the
// position reported by Tell between calls is always exact.
type Reader struct {
	gzip.Header
	r io.Reader

	cr *countReader
	gz *gzip.Reader

	// Current decompressed block.
	base int64 // File offset of the block's gzip member.
	next int64 // File offset of the following member.
	data []byte
	off  int

	buf [MaxBlockSize]byte

	cache Cache

	err error
}

// NewReader returns a Reader decompressing the BGZF stream read from r.
func NewReader(r io.Reader) (*Reader, error) {
	cr := makeReader(r)
	gz, err := gzip.NewReader(cr)
	if err != nil {
		return nil, err
	}
	if expectedMemberSize(gz.Header) < 0 {
		return nil, ErrNoBlockSize
	}
	bg := &Reader{
		Header: gz.Header,
		r:      r,
		cr:     cr,
		gz:     gz,
	}
	err = bg.fill(true)
	if err != nil {
		return nil, err
	}
	return bg, nil
}

// SetCache sets the block cache used by the Reader. A nil cache
// disables caching. The cache is only consulted by Seek.
func (bg *Reader) SetCache(c Cache) { bg.cache = c }

// fill decompresses the next gzip member into the block buffer. When
// first is true the member header has already been consumed by
// gzip.NewReader; otherwise the gzip stream is Reset at the current
// compressed offset.
func (bg *Reader) fill(first bool) error {
	bg.base = bg.cr.n
	if !first {
		err := bg.gz.Reset(bg.cr)
		if err != nil {
			return err
		}
		if expectedMemberSize(bg.gz.Header) < 0 {
			return ErrNoBlockSize
		}
		bg.Header = bg.gz.Header
	} else {
		// The header was consumed by gzip.NewReader, so base is
		// the stream origin rather than cr.n.
		bg.base = 0
	}
	bg.gz.Multistream(false)

	buf := bytes.NewBuffer(bg.buf[:0])
	n, err := io.Copy(buf, bg.gz)
	if err != nil {
		return err
	}
	if n > MaxBlockSize {
		return ErrBlockOverflow
	}
	bg.next = bg.cr.n
	if want := int64(expectedMemberSize(bg.Header)); bg.next-bg.base != want {
		return ErrCorrupt
	}
	bg.data = buf.Bytes()
	bg.off = 0
	if bg.cache != nil {
		blk := make([]byte, len(bg.data))
		copy(blk, bg.data)
		bg.cache.Put(bg.base, Block{Base: bg.base, Next: bg.next, Data: blk})
	}
	return nil
}

// Read satisfies the io.Reader interface. A single call returns data
// from at most one decompressed block.
func (bg *Reader) Read(p []byte) (int, error) {
	if bg.err != nil {
		return 0, bg.err
	}
	for bg.off == len(bg.data) {
		bg.err = bg.fill(false)
		if bg.err != nil {
			return 0, bg.err
		}
		// Skip empty blocks, including the EOF magic block.
	}
	n := copy(p, bg.data[bg.off:])
	bg.off += n
	return n, nil
}

// ReadByte satisfies the io.ByteReader interface.
func (bg *Reader) ReadByte() (byte, error) {
	if bg.err != nil {
		return 0, bg.err
	}
	for bg.off == len(bg.data) {
		bg.err = bg.fill(false)
		if bg.err != nil {
			return 0, bg.err
		}
	}
	b := bg.data[bg.off]
	bg.off++
	return b, nil
}

// Tell returns the virtual position of the next byte to be read.
// When the current block is exhausted the position names the start of
// the following gzip member.
func (bg *Reader) Tell() Offset {
	if bg.off == len(bg.data) {
		return Offset{File: bg.next}
	}
	return Offset{File: bg.base, Block: uint16(bg.off)}
}

// BlockLen returns the number of bytes remaining in the current block.
func (bg *Reader) BlockLen() int { return len(bg.data) - bg.off }

// Seek positions the Reader at the given virtual position. The File
// offset must name the start of a gzip member; callers ensure this by
// sourcing offsets from an index or a prior Tell. Seek is only valid
// when the underlying reader is an io.ReadSeeker.
func (bg *Reader) Seek(off Offset) error {
	rs, ok := bg.r.(io.ReadSeeker)
	if !ok {
		return ErrNotASeeker
	}
	if bg.cache != nil {
		if blk, ok := bg.cache.Get(off.File); ok {
			if int(off.Block) > len(blk.Data) {
				return ErrBlockOverflow
			}
			if _, err := rs.Seek(blk.Next, io.SeekStart); err != nil {
				return err
			}
			bg.cr.reset(rs, blk.Next)
			bg.base = blk.Base
			bg.next = blk.Next
			bg.data = blk.Data
			bg.off = int(off.Block)
			bg.err = nil
			return nil
		}
	}
	if _, err := rs.Seek(off.File, io.SeekStart); err != nil {
		return err
	}
	bg.cr.reset(rs, off.File)
	bg.err = nil
	err := bg.fill(false)
	if err != nil {
		bg.err = err
		return err
	}
	if int(off.Block) > len(bg.data) {
		bg.err = ErrBlockOverflow
		return bg.err
	}
	bg.off = int(off.Block)
	return nil
}

// Close closes the gzip stream. The underlying reader is not closed.
func (bg *Reader) Close() error {
	return bg.gz.Close()
}

func makeReader(r io.Reader) *countReader {
	switch r := r.(type) {
	case *countReader:
		panic("bgzf: illegal use of internal type")
	case flate.Reader:
		return &countReader{r: r}
	default:
		return &countReader{r: bufio.NewReader(r)}
	}
}

type countReader struct {
	r flate.Reader
	n int64
}

func (r *countReader) reset(rd io.Reader, off int64) {
	switch under := r.r.(type) {
	case *bufio.Reader:
		under.Reset(rd)
	default:
		if fr, ok := rd.(flate.Reader); ok {
			r.r = fr
		} else {
			r.r = bufio.NewReader(rd)
		}
	}
	r.n = off
}

func (r *countReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)
	return n, err
}

func (r *countReader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	r.n++
	return b, err
}

// expectedMemberSize returns the size of the gzip member described by
// the BGZF BC extra subfield in h, or -1 if the subfield is absent.
func expectedMemberSize(h gzip.Header) int {
	i := bytes.Index(h.Extra, bgzfExtraPrefix)
	if i < 0 || i+5 >= len(h.Extra) {
		return -1
	}
	return (int(h.Extra[i+4]) | int(h.Extra[i+5])<<8) + 1
}
