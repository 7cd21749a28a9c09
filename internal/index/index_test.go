// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"testing"

	"gopkg.in/check.v1"

	"github.com/abdenlab/oxbow-go/bgzf"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

func (s *S) TestBinFor(c *check.C) {
	for _, test := range []struct {
		beg, end int
		bin      uint32
	}{
		{0, 1, 4681},
		{0, 0x4000, 4681},
		{0x4000, 0x8000, 4682},
		{0, 0x8000, 585},
		{0, 0x20000, 585},
		{0x20000, 0x28000, 586},
		{0, 1 << 29, 0},
	} {
		c.Check(BinFor(test.beg, test.end, DefaultShift, DefaultDepth), check.Equals, test.bin,
			check.Commentf("beg=%d end=%d", test.beg, test.end))
	}
}

func (s *S) TestOverlappingBinsFor(c *check.C) {
	bins := OverlappingBinsFor(0, 0x4000, DefaultShift, DefaultDepth)
	c.Check(bins, check.DeepEquals, []uint32{0, 1, 9, 73, 585, 4681})

	bins = OverlappingBinsFor(0x4000, 0x8000, DefaultShift, DefaultDepth)
	c.Check(bins, check.DeepEquals, []uint32{0, 1, 9, 73, 585, 4682})
}

func (s *S) TestIsValidPos(c *check.C) {
	c.Check(IsValidPos(-1, DefaultShift, DefaultDepth), check.Equals, true)
	c.Check(IsValidPos(0, DefaultShift, DefaultDepth), check.Equals, true)
	c.Check(IsValidPos(1<<29-2, DefaultShift, DefaultDepth), check.Equals, true)
	c.Check(IsValidPos(1<<29-1, DefaultShift, DefaultDepth), check.Equals, false)
}

func chunk(b, e int64) bgzf.Chunk {
	return bgzf.Chunk{
		Begin: bgzf.OffsetFromVirtual(b),
		End:   bgzf.OffsetFromVirtual(e),
	}
}

func (s *S) TestChunks(c *check.C) {
	idx := Index{
		MinShift: DefaultShift,
		Depth:    DefaultDepth,
		Refs: []RefIndex{{
			Bins: []Bin{
				{Bin: 585, Chunks: []bgzf.Chunk{chunk(150, 250)}},
				{Bin: 4681, Chunks: []bgzf.Chunk{chunk(100, 200)}},
				{Bin: 4682, Chunks: []bgzf.Chunk{chunk(300, 400)}},
			},
			Intervals: []bgzf.Offset{
				bgzf.OffsetFromVirtual(100),
				bgzf.OffsetFromVirtual(300),
			},
		}},
	}

	// A query in the first tile unions the covering bins and merges
	// the abutting chunks.
	got := idx.Chunks(0, 0, 0x4000)
	c.Assert(len(got), check.Equals, 1)
	c.Check(got[0], check.Equals, chunk(100, 250))

	// A query in the second tile prunes chunks below the linear
	// index lower bound.
	got = idx.Chunks(0, 0x4000, 0x8000)
	c.Assert(len(got), check.Equals, 1)
	c.Check(got[0], check.Equals, chunk(300, 400))

	// Unknown reference ids yield no chunks and no error.
	c.Check(idx.Chunks(7, 0, 100), check.IsNil)
	c.Check(idx.Chunks(-1, 0, 100), check.IsNil)
}

func (s *S) TestPartition(c *check.C) {
	idx := Index{
		MinShift: DefaultShift,
		Depth:    DefaultDepth,
		Refs: []RefIndex{{
			Bins: []Bin{{
				Bin: 4681,
				Chunks: []bgzf.Chunk{
					chunk(0<<16, 10<<16),
					chunk(10<<16, 200<<16),
					chunk(200<<16, 300<<16),
				},
			}},
		}},
	}
	offsets := idx.Partition(100)
	c.Assert(len(offsets) >= 2, check.Equals, true)
	c.Check(offsets[0], check.Equals, bgzf.OffsetFromVirtual(0))
	c.Check(offsets[len(offsets)-1], check.Equals, bgzf.OffsetFromVirtual(300<<16))
	for i := 1; i < len(offsets); i++ {
		c.Check(offsets[i-1].Virtual() < offsets[i].Virtual(), check.Equals, true)
	}
}
