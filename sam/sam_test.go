// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"strings"
	"testing"

	"github.com/apache/arrow/go/v11/arrow"
	"gopkg.in/check.v1"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/batch"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

const samData = "" +
	"@HD\tVN:1.6\tSO:coordinate\n" +
	"@SQ\tSN:chr1\tLN:1000\n" +
	"@SQ\tSN:chr2\tLN:500\n" +
	"r001\t0\tchr1\t7\t30\t8M2I4M\t=\t37\t39\tTTAGATAAAGGATA\t*\tNM:i:1\tXS:Z:ok\n" +
	"r002\t16\tchr1\t9\t30\t6M\t*\t0\t0\tAAAAGA\t*\tNM:i:0\n" +
	"r003\t0\tchr2\t5\t17\t5M\t*\t0\t0\tATTGC\t*\tZB:B:i,1,2,3\n" +
	"r004\t4\t*\t0\t0\t*\t*\t0\t0\t*\t*\n"

func (s *S) TestHeaderParse(c *check.C) {
	h := NewHeader()
	err := h.UnmarshalText([]byte("@HD\tVN:1.6\n@SQ\tSN:chr1\tLN:1000\n@SQ\tSN:chr2\tLN:500\n@CO\ta comment\n"))
	c.Assert(err, check.Equals, nil)
	c.Check(h.Version, check.Equals, "1.6")
	c.Check(h.RefNames(), check.DeepEquals, []string{"chr1", "chr2"})
	c.Check(h.RefByName("chr2").Len(), check.Equals, 500)
	c.Check(h.RefByName("chr2").ID(), check.Equals, 1)
	c.Check(h.RefByName("chrX"), check.IsNil)
	c.Check(h.Comments, check.DeepEquals, []string{"a comment"})
}

func (s *S) TestRecordParse(c *check.C) {
	h := NewHeader()
	err := h.UnmarshalText([]byte("@HD\tVN:1.6\n@SQ\tSN:chr1\tLN:1000\n"))
	c.Assert(err, check.Equals, nil)

	var rec Record
	err = rec.UnmarshalSAM(h, []byte("r001\t0\tchr1\t7\t30\t8M2I4M\t=\t37\t39\tTTAGATAAAGGATA\t*\tNM:i:1"))
	c.Assert(err, check.Equals, nil)
	c.Check(rec.Name, check.Equals, "r001")
	c.Check(rec.Pos, check.Equals, 6)
	c.Check(rec.End(), check.Equals, 18)
	c.Check(rec.Ref.Name(), check.Equals, "chr1")
	c.Check(rec.MateRef, check.Equals, rec.Ref)
	c.Check(rec.Cigar.String(), check.Equals, "8M2I4M")
	c.Check(string(rec.Seq.Expand()), check.Equals, "TTAGATAAAGGATA")
	v, ok := rec.AuxFields.Get(NewTag("NM")).Int64()
	c.Check(ok, check.Equals, true)
	c.Check(v, check.Equals, int64(1))
}

func (s *S) TestParseCigar(c *check.C) {
	cig, err := ParseCigar([]byte("5S10M3D2=1X"))
	c.Assert(err, check.Equals, nil)
	c.Check(cig.String(), check.Equals, "5S10M3D2=1X")
	ref, read := cig.Lengths()
	c.Check(ref, check.Equals, 16)
	c.Check(read, check.Equals, 18)

	cig, err = ParseCigar([]byte("*"))
	c.Assert(err, check.Equals, nil)
	c.Check(cig, check.IsNil)

	_, err = ParseCigar([]byte("5Q"))
	c.Check(err, check.Not(check.IsNil))
}

func (s *S) TestParseAux(c *check.C) {
	aux, err := ParseAux([]byte("ZB:B:f,1.5,2.5"))
	c.Assert(err, check.Equals, nil)
	c.Check(aux.Tag().String(), check.Equals, "ZB")
	c.Check(aux.Type(), check.Equals, byte('B'))
	c.Check(aux.ArrayType(), check.Equals, byte('f'))
	v, ok := aux.Floats()
	c.Check(ok, check.Equals, true)
	c.Check(v, check.DeepEquals, []float32{1.5, 2.5})

	aux, err = ParseAux([]byte("NM:i:42"))
	c.Assert(err, check.Equals, nil)
	i, ok := aux.Int64()
	c.Check(ok, check.Equals, true)
	c.Check(i, check.Equals, int64(42))
}

func (s *S) TestTagScanner(c *check.C) {
	h := NewHeader()
	c.Assert(h.UnmarshalText([]byte("@HD\tVN:1.6\n@SQ\tSN:chr1\tLN:1000\n")), check.Equals, nil)
	ts := NewTagScanner()
	for _, line := range []string{
		"r1\t4\t*\t0\t0\t*\t*\t0\t0\t*\t*\tNM:i:1\tXS:Z:x",
		"r2\t4\t*\t0\t0\t*\t*\t0\t0\t*\t*\tNM:i:300",
	} {
		var rec Record
		c.Assert(rec.UnmarshalSAM(h, []byte(line)), check.Equals, nil)
		ts.Push(&rec)
	}
	defs := ts.Defs()
	c.Assert(len(defs), check.Equals, 2)
	c.Check(defs[0].Name, check.Equals, "NM")
	// 300 does not fit in an int8, so the definition widens.
	c.Check(defs[0].Code, check.Equals, "s")
	c.Check(defs[1], check.Equals, TagDef{Name: "XS", Code: "Z"})
}

func (s *S) TestBuilderSchema(c *check.C) {
	h := NewHeader()
	c.Assert(h.UnmarshalText([]byte("@HD\tVN:1.6\n@SQ\tSN:chr1\tLN:1000\n")), check.Equals, nil)

	b, err := NewBuilder(h, nil, []TagDef{{Name: "NM", Code: "i"}})
	c.Assert(err, check.Equals, nil)
	schema := b.Schema()
	c.Check(len(schema.Fields()), check.Equals, len(FieldNames)+1)
	c.Check(schema.Field(0).Name, check.Equals, "qname")
	c.Check(schema.Field(1).Type, check.Equals, arrow.PrimitiveTypes.Uint16)
	tags, ok := schema.FieldsByName("tags")
	c.Assert(ok, check.Equals, true)
	c.Check(tags[0].Type.(*arrow.StructType).Field(0).Name, check.Equals, "NM")

	// Empty tag projection omits the tags column entirely.
	b, err = NewBuilder(h, []string{"rname", "pos"}, []TagDef{})
	c.Assert(err, check.Equals, nil)
	schema = b.Schema()
	c.Check(len(schema.Fields()), check.Equals, 2)
	_, ok = schema.FieldsByName("tags")
	c.Check(ok, check.Equals, false)

	// Unknown projections fail before any I/O.
	_, err = NewBuilder(h, []string{"bogus"}, nil)
	c.Check(err, check.Not(check.IsNil))
}

func (s *S) TestScannerScan(c *check.C) {
	src := oxbow.BytesSource([]byte(samData))
	sc, err := NewScanner(src, Options{})
	c.Assert(err, check.Equals, nil)
	c.Check(sc.ChromNames(), check.DeepEquals, []string{"chr1", "chr2"})

	schema, err := sc.Schema()
	c.Assert(err, check.Equals, nil)
	// Tags are discovered from the data.
	tags, ok := schema.FieldsByName("tags")
	c.Assert(ok, check.Equals, true)
	st := tags[0].Type.(*arrow.StructType)
	c.Check(len(st.Fields()), check.Equals, 3)

	stream, err := sc.Scan(0)
	c.Assert(err, check.Equals, nil)
	defer stream.Close()
	var rows int64
	for stream.Next() {
		c.Check(stream.Batch().Schema().Equal(schema), check.Equals, true)
		rows += stream.Batch().NumRows()
	}
	c.Assert(stream.Err(), check.Equals, nil)
	c.Check(rows, check.Equals, int64(4))
}

func (s *S) TestScannerBatchSizeInvariance(c *check.C) {
	for _, size := range []int{1, 2, 3, 100} {
		src := oxbow.BytesSource([]byte(samData))
		sc, err := NewScanner(src, Options{BatchSize: size, TagDefs: []TagDef{}})
		c.Assert(err, check.Equals, nil)
		stream, err := sc.Scan(0)
		c.Assert(err, check.Equals, nil)
		var rows int64
		for stream.Next() {
			c.Check(stream.Batch().NumRows() <= int64(size), check.Equals, true)
			rows += stream.Batch().NumRows()
		}
		c.Assert(stream.Err(), check.Equals, nil)
		c.Check(rows, check.Equals, int64(4))
		stream.Close()
	}
}

func (s *S) TestScannerLimitAndUnmapped(c *check.C) {
	sc, err := NewScanner(oxbow.BytesSource([]byte(samData)), Options{TagDefs: []TagDef{}})
	c.Assert(err, check.Equals, nil)

	stream, err := sc.Scan(2)
	c.Assert(err, check.Equals, nil)
	var rows int64
	for stream.Next() {
		rows += stream.Batch().NumRows()
	}
	c.Assert(stream.Err(), check.Equals, nil)
	c.Check(rows, check.Equals, int64(2))
	stream.Close()

	stream, err = sc.ScanUnmapped()
	c.Assert(err, check.Equals, nil)
	rows = 0
	for stream.Next() {
		rows += stream.Batch().NumRows()
	}
	c.Assert(stream.Err(), check.Equals, nil)
	c.Check(rows, check.Equals, int64(1))
	stream.Close()
}

func (s *S) TestIPCRoundTripSchema(c *check.C) {
	sc, err := NewScanner(oxbow.BytesSource([]byte(samData)), Options{TagDefs: []TagDef{}})
	c.Assert(err, check.Equals, nil)
	stream, err := sc.Scan(0)
	c.Assert(err, check.Equals, nil)
	blob, err := batch.IPCBytes(stream)
	c.Assert(err, check.Equals, nil)
	c.Check(len(blob) > 0, check.Equals, true)
	c.Check(strings.HasPrefix(string(blob), "ARROW1"), check.Equals, true)
}
