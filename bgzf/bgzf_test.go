// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

// block assembles a single BGZF gzip member holding the given
// payload.
func block(c *check.C, payload []byte) []byte {
	var deflated bytes.Buffer
	fw, err := flate.NewWriter(&deflated, flate.DefaultCompression)
	c.Assert(err, check.Equals, nil)
	_, err = fw.Write(payload)
	c.Assert(err, check.Equals, nil)
	c.Assert(fw.Close(), check.Equals, nil)

	var b bytes.Buffer
	b.Write([]byte{0x1f, 0x8b, 8, 4, 0, 0, 0, 0, 0, 0xff})
	binary.Write(&b, binary.LittleEndian, uint16(6))
	b.Write([]byte{'B', 'C', 2, 0})
	bsizePos := b.Len()
	binary.Write(&b, binary.LittleEndian, uint16(0))
	b.Write(deflated.Bytes())
	binary.Write(&b, binary.LittleEndian, crc32.ChecksumIEEE(payload))
	binary.Write(&b, binary.LittleEndian, uint32(len(payload)))

	out := b.Bytes()
	binary.LittleEndian.PutUint16(out[bsizePos:], uint16(len(out)-1))
	return out
}

func conc(blocks ...[]byte) []byte {
	var all []byte
	for _, b := range blocks {
		all = append(all, b...)
	}
	return all
}

func (s *S) TestReadSpanningBlocks(c *check.C) {
	data := conc(
		block(c, []byte("hello ")),
		block(c, []byte("bgzf ")),
		block(c, []byte("world")),
		block(c, nil),
	)
	r, err := NewReader(bytes.NewReader(data))
	c.Assert(err, check.Equals, nil)
	got, err := io.ReadAll(r)
	c.Check(err, check.Equals, nil)
	c.Check(string(got), check.Equals, "hello bgzf world")
}

func (s *S) TestTellSeek(c *check.C) {
	b0 := block(c, []byte("0123456789"))
	b1 := block(c, []byte("abcdefghij"))
	data := conc(b0, b1, block(c, nil))

	r, err := NewReader(bytes.NewReader(data))
	c.Assert(err, check.Equals, nil)
	c.Check(r.Tell(), check.Equals, Offset{File: 0, Block: 0})

	buf := make([]byte, 4)
	_, err = io.ReadFull(r, buf)
	c.Assert(err, check.Equals, nil)
	c.Check(string(buf), check.Equals, "0123")
	c.Check(r.Tell(), check.Equals, Offset{File: 0, Block: 4})

	// Seek into the second block.
	err = r.Seek(Offset{File: int64(len(b0)), Block: 3})
	c.Assert(err, check.Equals, nil)
	_, err = io.ReadFull(r, buf)
	c.Assert(err, check.Equals, nil)
	c.Check(string(buf), check.Equals, "defg")

	// And back to the first.
	err = r.Seek(Offset{File: 0, Block: 8})
	c.Assert(err, check.Equals, nil)
	_, err = io.ReadFull(r, buf[:2])
	c.Assert(err, check.Equals, nil)
	c.Check(string(buf[:2]), check.Equals, "89")
}

func (s *S) TestSeekWithCache(c *check.C) {
	b0 := block(c, []byte("0123456789"))
	data := conc(b0, block(c, []byte("abcdefghij")), block(c, nil))

	r, err := NewReader(bytes.NewReader(data))
	c.Assert(err, check.Equals, nil)
	r.SetCache(NewLRUCache(4))

	buf := make([]byte, 10)
	for _, want := range []struct {
		off Offset
		s   string
	}{
		{Offset{File: int64(len(b0)), Block: 0}, "abcdefghij"},
		{Offset{File: 0, Block: 0}, "0123456789"},
		{Offset{File: int64(len(b0)), Block: 5}, "fghij"},
	} {
		err = r.Seek(want.off)
		c.Assert(err, check.Equals, nil)
		_, err = io.ReadFull(r, buf[:len(want.s)])
		c.Assert(err, check.Equals, nil)
		c.Check(string(buf[:len(want.s)]), check.Equals, want.s)
	}
}

func (s *S) TestMissingBlockSize(c *check.C) {
	// A plain gzip member has no BC extra subfield.
	var b bytes.Buffer
	b.Write([]byte{0x1f, 0x8b, 8, 0, 0, 0, 0, 0, 0, 0xff})
	fw, _ := flate.NewWriter(&b, flate.DefaultCompression)
	fw.Write([]byte("payload"))
	fw.Close()
	binary.Write(&b, binary.LittleEndian, crc32.ChecksumIEEE([]byte("payload")))
	binary.Write(&b, binary.LittleEndian, uint32(7))

	_, err := NewReader(bytes.NewReader(b.Bytes()))
	c.Check(err, check.Equals, ErrNoBlockSize)
}

func (s *S) TestCheckEOF(c *check.C) {
	with := conc(block(c, []byte("x")), []byte(magicBlock))
	ok, err := CheckEOF(bytes.NewReader(with), int64(len(with)))
	c.Assert(err, check.Equals, nil)
	c.Check(ok, check.Equals, true)

	without := block(c, []byte("x"))
	ok, err = CheckEOF(bytes.NewReader(without), int64(len(without)))
	c.Assert(err, check.Equals, nil)
	c.Check(ok, check.Equals, false)
}

func (s *S) TestVirtualOffsetRoundTrip(c *check.C) {
	for _, off := range []Offset{
		{File: 0, Block: 0},
		{File: 1, Block: 0},
		{File: 98979, Block: 12},
		{File: 1 << 40, Block: 65535},
	} {
		c.Check(OffsetFromVirtual(off.Virtual()), check.Equals, off)
	}
}

func (s *S) TestLineReader(c *check.C) {
	data := conc(
		block(c, []byte("one\ntwo\nthr")),
		block(c, []byte("ee\nfour")),
		block(c, nil),
	)
	r, err := NewReader(bytes.NewReader(data))
	c.Assert(err, check.Equals, nil)
	lr := NewLineReader(r)

	var lines []string
	var starts []Offset
	for {
		line, start, err := lr.ReadLine()
		if err == io.EOF {
			break
		}
		c.Assert(err, check.Equals, nil)
		lines = append(lines, string(line))
		starts = append(starts, start)
	}
	c.Check(lines, check.DeepEquals, []string{"one", "two", "three", "four"})
	c.Check(starts[0], check.Equals, Offset{File: 0, Block: 0})
	c.Check(starts[1], check.Equals, Offset{File: 0, Block: 4})
	c.Check(starts[2], check.Equals, Offset{File: 0, Block: 8})
}
