// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tabix

import (
	"bytes"
	"encoding/binary"
	"testing"

	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

// testIndexBytes assembles an uncompressed TBI payload with one
// reference carrying a single bin and linear interval.
func testIndexBytes() []byte {
	var b bytes.Buffer
	b.WriteString("TBI\x01")
	binary.Write(&b, binary.LittleEndian, int32(1)) // n_ref
	binary.Write(&b, binary.LittleEndian, int32(2)) // format: VCF
	binary.Write(&b, binary.LittleEndian, int32(1)) // col_seq
	binary.Write(&b, binary.LittleEndian, int32(2)) // col_beg
	binary.Write(&b, binary.LittleEndian, int32(0)) // col_end
	binary.Write(&b, binary.LittleEndian, int32('#'))
	binary.Write(&b, binary.LittleEndian, int32(0)) // skip
	binary.Write(&b, binary.LittleEndian, int32(5)) // l_nm
	b.WriteString("chr1\x00")

	binary.Write(&b, binary.LittleEndian, int32(1)) // n_bin
	binary.Write(&b, binary.LittleEndian, uint32(4681))
	binary.Write(&b, binary.LittleEndian, int32(1)) // n_chunk
	binary.Write(&b, binary.LittleEndian, uint64(1000))
	binary.Write(&b, binary.LittleEndian, uint64(2000))
	binary.Write(&b, binary.LittleEndian, int32(1)) // n_intv
	binary.Write(&b, binary.LittleEndian, uint64(1000))
	return b.Bytes()
}

func (s *S) TestReadFrom(c *check.C) {
	idx, err := ReadFrom(bytes.NewReader(testIndexBytes()))
	c.Assert(err, check.Equals, nil)
	c.Check(idx.Format, check.Equals, byte(2))
	c.Check(idx.ZeroBased, check.Equals, false)
	c.Check(idx.NameColumn, check.Equals, int32(1))
	c.Check(idx.BeginColumn, check.Equals, int32(2))
	c.Check(idx.MetaChar, check.Equals, '#')
	c.Check(idx.Names(), check.DeepEquals, []string{"chr1"})
	c.Check(idx.NumRefs(), check.Equals, 1)

	chunks := idx.Chunks("chr1", 0, 100)
	c.Assert(len(chunks), check.Equals, 1)
	c.Check(chunks[0].Begin.Virtual(), check.Equals, int64(1000))
	c.Check(chunks[0].End.Virtual(), check.Equals, int64(2000))

	// Names absent from the index yield no chunks.
	c.Check(idx.Chunks("chrX", 0, 100), check.IsNil)
}

func (s *S) TestBadMagic(c *check.C) {
	_, err := ReadFrom(bytes.NewReader([]byte("CRAM")))
	c.Check(err, check.Not(check.IsNil))
}
