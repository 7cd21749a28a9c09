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

func chunk(b, e int64) bgzf.Chunk {
	return bgzf.Chunk{
		Begin: bgzf.OffsetFromVirtual(b),
		End:   bgzf.OffsetFromVirtual(e),
	}
}

func (s *S) TestAdjacent(c *check.C) {
	c.Check(Adjacent(nil), check.IsNil)
	c.Check(
		Adjacent([]bgzf.Chunk{chunk(0, 10), chunk(10, 20), chunk(30, 40)}),
		check.DeepEquals,
		[]bgzf.Chunk{chunk(0, 20), chunk(30, 40)},
	)
	c.Check(
		Adjacent([]bgzf.Chunk{chunk(0, 25), chunk(10, 20), chunk(21, 40)}),
		check.DeepEquals,
		[]bgzf.Chunk{chunk(0, 40)},
	)
}

func (s *S) TestSquash(c *check.C) {
	c.Check(Squash(nil), check.IsNil)
	c.Check(
		Squash([]bgzf.Chunk{chunk(0, 10), chunk(50, 60), chunk(20, 30)}),
		check.DeepEquals,
		[]bgzf.Chunk{chunk(0, 60)},
	)
}

func (s *S) TestCompressorStrategy(c *check.C) {
	near := CompressorStrategy(1 << 16)
	c.Check(
		near([]bgzf.Chunk{
			{Begin: bgzf.Offset{File: 0}, End: bgzf.Offset{File: 100}},
			{Begin: bgzf.Offset{File: 200}, End: bgzf.Offset{File: 300}},
			{Begin: bgzf.Offset{File: 1 << 20}, End: bgzf.Offset{File: 1<<20 + 10}},
		}),
		check.DeepEquals,
		[]bgzf.Chunk{
			{Begin: bgzf.Offset{File: 0}, End: bgzf.Offset{File: 300}},
			{Begin: bgzf.Offset{File: 1 << 20}, End: bgzf.Offset{File: 1<<20 + 10}},
		},
	)
}

func (s *S) TestIdentity(c *check.C) {
	chunks := []bgzf.Chunk{chunk(0, 10), chunk(5, 15)}
	c.Check(Identity(chunks), check.DeepEquals, chunks)
}
