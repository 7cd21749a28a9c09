// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fai

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"gopkg.in/check.v1"

	"github.com/abdenlab/oxbow-go/bgzf"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

const fastaData = ">chr1 test sequence\n" +
	"ACGTACGTAC\n" +
	"GTACGTACGT\n" +
	"ACGTA\n" +
	">chr2\n" +
	"TTTTGGGGCC\n" +
	"AATT\n"

func (s *S) TestNewIndex(c *check.C) {
	idx, err := NewIndex(strings.NewReader(fastaData))
	c.Assert(err, check.Equals, nil)
	c.Check(idx.Names, check.DeepEquals, []string{"chr1", "chr2"})

	chr1, ok := idx.Get("chr1")
	c.Assert(ok, check.Equals, true)
	c.Check(chr1.Length, check.Equals, 25)
	c.Check(chr1.Start, check.Equals, int64(20))
	c.Check(chr1.BasesPerLine, check.Equals, 10)
	c.Check(chr1.BytesPerLine, check.Equals, 11)

	chr2, ok := idx.Get("chr2")
	c.Assert(ok, check.Equals, true)
	c.Check(chr2.Length, check.Equals, 14)
}

func (s *S) TestReadFrom(c *check.C) {
	idx, err := ReadFrom(strings.NewReader("chr1\t25\t20\t10\t11\nchr2\t14\t64\t10\t11\n"))
	c.Assert(err, check.Equals, nil)
	c.Check(idx.Names, check.DeepEquals, []string{"chr1", "chr2"})
	rec, ok := idx.Get("chr1")
	c.Assert(ok, check.Equals, true)
	c.Check(rec, check.Equals, Record{Name: "chr1", Length: 25, Start: 20, BasesPerLine: 10, BytesPerLine: 11})

	_, err = ReadFrom(strings.NewReader("chr1\t25\t20\t10\t11\nchr1\t14\t64\t10\t11\n"))
	c.Check(err, check.Not(check.IsNil))
}

func (s *S) TestPosition(c *check.C) {
	rec := Record{Name: "chr1", Length: 25, Start: 20, BasesPerLine: 10, BytesPerLine: 11}
	for _, test := range []struct {
		p   int
		off int64
	}{
		{0, 20},
		{9, 29},
		{10, 31}, // First base of the second line skips the newline.
		{24, 46},
	} {
		off, err := rec.Position(test.p)
		c.Assert(err, check.Equals, nil)
		c.Check(off, check.Equals, test.off, check.Commentf("p=%d", test.p))
	}
	_, err := rec.Position(26)
	c.Check(err, check.Not(check.IsNil))

	c.Check(rec.EndOfLineOffset(0), check.Equals, 10)
	c.Check(rec.EndOfLineOffset(7), check.Equals, 3)
	c.Check(rec.EndOfLineOffset(22), check.Equals, 3)
}

func (s *S) TestGZI(c *check.C) {
	// Two block boundaries: uncompressed 100 at compressed 50,
	// uncompressed 200 at compressed 120.
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint64(2))
	binary.Write(&b, binary.LittleEndian, uint64(50))
	binary.Write(&b, binary.LittleEndian, uint64(100))
	binary.Write(&b, binary.LittleEndian, uint64(120))
	binary.Write(&b, binary.LittleEndian, uint64(200))

	g, err := ReadGZI(&b)
	c.Assert(err, check.Equals, nil)
	c.Check(g.Translate(0), check.Equals, bgzf.Offset{File: 0, Block: 0})
	c.Check(g.Translate(99), check.Equals, bgzf.Offset{File: 0, Block: 99})
	c.Check(g.Translate(100), check.Equals, bgzf.Offset{File: 50, Block: 0})
	c.Check(g.Translate(150), check.Equals, bgzf.Offset{File: 50, Block: 50})
	c.Check(g.Translate(250), check.Equals, bgzf.Offset{File: 120, Block: 50})
}
