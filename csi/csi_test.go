// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package csi

import (
	"bytes"
	"encoding/binary"
	"testing"

	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

func testIndexBytes(version byte) []byte {
	var b bytes.Buffer
	b.WriteString("CSI")
	b.WriteByte(version)
	binary.Write(&b, binary.LittleEndian, int32(14)) // min_shift
	binary.Write(&b, binary.LittleEndian, int32(5))  // depth
	binary.Write(&b, binary.LittleEndian, int32(0))  // l_aux
	binary.Write(&b, binary.LittleEndian, int32(1))  // n_ref

	binary.Write(&b, binary.LittleEndian, int32(1)) // n_bin
	binary.Write(&b, binary.LittleEndian, uint32(4681))
	binary.Write(&b, binary.LittleEndian, uint64(500)) // loffset
	if version == 0x2 {
		binary.Write(&b, binary.LittleEndian, uint64(3)) // n_rec
	}
	binary.Write(&b, binary.LittleEndian, int32(1)) // n_chunk
	binary.Write(&b, binary.LittleEndian, uint64(1000))
	binary.Write(&b, binary.LittleEndian, uint64(2000))
	binary.Write(&b, binary.LittleEndian, uint64(9)) // n_no_coor
	return b.Bytes()
}

func (s *S) TestReadFrom(c *check.C) {
	for _, version := range []byte{0x1, 0x2} {
		idx, err := ReadFrom(bytes.NewReader(testIndexBytes(version)))
		c.Assert(err, check.Equals, nil, check.Commentf("version %d", version))
		c.Check(idx.Version, check.Equals, version)
		c.Check(idx.MinShift(), check.Equals, uint32(14))
		c.Check(idx.Depth(), check.Equals, uint32(5))
		c.Check(idx.NumRefs(), check.Equals, 1)

		n, ok := idx.Unmapped()
		c.Check(ok, check.Equals, true)
		c.Check(n, check.Equals, uint64(9))

		chunks := idx.Chunks(0, 0, 100)
		c.Assert(len(chunks), check.Equals, 1)
		c.Check(chunks[0].Begin.Virtual(), check.Equals, int64(1000))

		c.Check(idx.Chunks(5, 0, 100), check.IsNil)
	}
}

func (s *S) TestUnknownVersion(c *check.C) {
	data := testIndexBytes(0x3)
	_, err := ReadFrom(bytes.NewReader(data))
	c.Check(err, check.ErrorMatches, "csi: unknown version: 3")
}

func (s *S) TestBadMagic(c *check.C) {
	_, err := ReadFrom(bytes.NewReader([]byte("TBI\x01")))
	c.Check(err, check.ErrorMatches, "csi: magic number mismatch")
}
