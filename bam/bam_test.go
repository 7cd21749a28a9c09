// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"hash/crc32"
	"strconv"
	"testing"

	"github.com/apache/arrow/go/v11/arrow/array"
	"gopkg.in/check.v1"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/bgzf"
	"github.com/abdenlab/oxbow-go/sam"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

// bgzfBlock assembles a single BGZF gzip member holding the payload.
func bgzfBlock(c *check.C, payload []byte) []byte {
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

// bamHeader encodes a binary BAM header with the given references.
func bamHeader(refs ...[2]interface{}) []byte {
	var text bytes.Buffer
	text.WriteString("@HD\tVN:1.6\n")
	for _, r := range refs {
		text.WriteString("@SQ\tSN:" + r[0].(string) + "\tLN:")
		text.WriteString(strconv.Itoa(r[1].(int)))
		text.WriteString("\n")
	}
	var b bytes.Buffer
	b.WriteString("BAM\x01")
	binary.Write(&b, binary.LittleEndian, int32(text.Len()))
	b.Write(text.Bytes())
	binary.Write(&b, binary.LittleEndian, int32(len(refs)))
	for _, r := range refs {
		name := r[0].(string)
		binary.Write(&b, binary.LittleEndian, int32(len(name)+1))
		b.WriteString(name)
		b.WriteByte(0)
		binary.Write(&b, binary.LittleEndian, int32(r[1].(int)))
	}
	return b.Bytes()
}

// bamRecord encodes one alignment with a match-only CIGAR of the
// given length.
func bamRecord(name string, refID, pos int32, flag uint16, matchLen int) []byte {
	seq := bytes.Repeat([]byte{'A'}, 4)
	packed := sam.NewSeq(seq)
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, refID)
	binary.Write(&body, binary.LittleEndian, pos)
	body.WriteByte(byte(len(name) + 1))
	body.WriteByte(30) // mapq
	binary.Write(&body, binary.LittleEndian, uint16(0)) // bin
	binary.Write(&body, binary.LittleEndian, uint16(1)) // n_cigar
	binary.Write(&body, binary.LittleEndian, flag)
	binary.Write(&body, binary.LittleEndian, int32(len(seq)))
	binary.Write(&body, binary.LittleEndian, int32(-1)) // next_refID
	binary.Write(&body, binary.LittleEndian, int32(-1)) // next_pos
	binary.Write(&body, binary.LittleEndian, int32(0))  // tlen
	body.WriteString(name)
	body.WriteByte(0)
	binary.Write(&body, binary.LittleEndian, uint32(matchLen)<<4) // M op
	for _, d := range packed.Seq {
		body.WriteByte(byte(d))
	}
	body.Write(bytes.Repeat([]byte{20}, len(seq)))
	// One aux tag.
	body.Write([]byte{'N', 'M', 'c', 1})

	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, int32(body.Len()))
	b.Write(body.Bytes())
	return b.Bytes()
}

// testBAM builds a two reference BAM with three placed reads and one
// unmapped read, returning the compressed bytes and the uncompressed
// offset of each record.
func testBAM(c *check.C) ([]byte, []int) {
	var raw bytes.Buffer
	raw.Write(bamHeader([2]interface{}{"chr1", 1000}, [2]interface{}{"chr2", 500}))
	var offsets []int
	for _, rec := range [][]byte{
		bamRecord("r001", 0, 99, 0, 50),
		bamRecord("r002", 0, 300, 16, 20),
		bamRecord("r003", 1, 5, 0, 10),
		bamRecord("r004", -1, -1, 4, 0),
	} {
		offsets = append(offsets, raw.Len())
		raw.Write(rec)
	}
	offsets = append(offsets, raw.Len())
	return bgzfBlock(c, raw.Bytes()), offsets
}

func (s *S) TestScan(c *check.C) {
	data, _ := testBAM(c)
	sc, err := NewScanner(oxbow.BytesSource(data), Options{TagDefs: []sam.TagDef{}})
	c.Assert(err, check.Equals, nil)
	c.Check(sc.ChromNames(), check.DeepEquals, []string{"chr1", "chr2"})

	schema, err := sc.Schema()
	c.Assert(err, check.Equals, nil)

	stream, err := sc.Scan(0)
	c.Assert(err, check.Equals, nil)
	defer stream.Close()

	var rows int64
	var names []string
	for stream.Next() {
		rec := stream.Batch()
		c.Check(rec.Schema().Equal(schema), check.Equals, true)
		rows += rec.NumRows()
		qname := rec.Column(0).(*array.String)
		for i := 0; i < qname.Len(); i++ {
			names = append(names, qname.Value(i))
		}
	}
	c.Assert(stream.Err(), check.Equals, nil)
	c.Check(rows, check.Equals, int64(4))
	c.Check(names, check.DeepEquals, []string{"r001", "r002", "r003", "r004"})
}

func (s *S) TestTagDiscovery(c *check.C) {
	data, _ := testBAM(c)
	sc, err := NewScanner(oxbow.BytesSource(data), Options{})
	c.Assert(err, check.Equals, nil)
	defs, err := sc.TagDefs(0)
	c.Assert(err, check.Equals, nil)
	c.Check(defs, check.DeepEquals, []sam.TagDef{{Name: "NM", Code: "c"}})
}

// knownChunks is a test double standing in for a BAI or CSI index.
type knownChunks map[int][]bgzf.Chunk

func (k knownChunks) Chunks(rid, beg, end int) []bgzf.Chunk { return k[rid] }

func (s *S) TestScanQuery(c *check.C) {
	data, offsets := testBAM(c)
	sc, err := NewScanner(oxbow.BytesSource(data), Options{TagDefs: []sam.TagDef{}})
	c.Assert(err, check.Equals, nil)

	idx := knownChunks{
		0: {{
			Begin: bgzf.Offset{File: 0, Block: uint16(offsets[0])},
			End:   bgzf.Offset{File: 0, Block: uint16(offsets[2])},
		}},
	}

	stream, err := sc.ScanQuery("chr1:100-200", idx)
	c.Assert(err, check.Equals, nil)
	defer stream.Close()
	var rows int64
	for stream.Next() {
		rec := stream.Batch()
		rows += rec.NumRows()
		qname := rec.Column(0).(*array.String)
		c.Check(qname.Value(0), check.Equals, "r001")
	}
	c.Assert(stream.Err(), check.Equals, nil)
	// Only r001 at [99, 149) overlaps [99, 200); r002 is a false
	// positive dropped by the exact filter.
	c.Check(rows, check.Equals, int64(1))

	// Unknown references yield an empty stream, not an error.
	stream, err = sc.ScanQuery("chrX:1-100", idx)
	c.Assert(err, check.Equals, nil)
	c.Check(stream.Next(), check.Equals, false)
	c.Check(stream.Err(), check.Equals, nil)
	stream.Close()
}

func (s *S) TestScanUntilVPos(c *check.C) {
	data, offsets := testBAM(c)
	sc, err := NewScanner(oxbow.BytesSource(data), Options{TagDefs: []sam.TagDef{}})
	c.Assert(err, check.Equals, nil)

	stream, err := sc.ScanUntilVPos(bgzf.Offset{File: 0, Block: uint16(offsets[1])})
	c.Assert(err, check.Equals, nil)
	defer stream.Close()
	var rows int64
	for stream.Next() {
		rows += stream.Batch().NumRows()
	}
	c.Assert(stream.Err(), check.Equals, nil)
	c.Check(rows, check.Equals, int64(1))
}

func (s *S) TestReadIndex(c *check.C) {
	var b bytes.Buffer
	b.WriteString("BAI\x01")
	binary.Write(&b, binary.LittleEndian, int32(1)) // n_ref
	binary.Write(&b, binary.LittleEndian, int32(1)) // n_bin
	binary.Write(&b, binary.LittleEndian, uint32(4681))
	binary.Write(&b, binary.LittleEndian, int32(1)) // n_chunk
	binary.Write(&b, binary.LittleEndian, uint64(100))
	binary.Write(&b, binary.LittleEndian, uint64(200))
	binary.Write(&b, binary.LittleEndian, int32(1)) // n_intv
	binary.Write(&b, binary.LittleEndian, uint64(100))
	binary.Write(&b, binary.LittleEndian, uint64(7)) // n_no_coor

	idx, err := ReadIndex(bytes.NewReader(b.Bytes()))
	c.Assert(err, check.Equals, nil)
	c.Check(idx.NumRefs(), check.Equals, 1)
	n, ok := idx.Unmapped()
	c.Check(ok, check.Equals, true)
	c.Check(n, check.Equals, uint64(7))

	chunks := idx.Chunks(0, 0, 100)
	c.Assert(len(chunks), check.Equals, 1)
	c.Check(chunks[0].Begin.Virtual(), check.Equals, int64(100))
	c.Check(chunks[0].End.Virtual(), check.Equals, int64(200))

	_, err = ReadIndex(bytes.NewReader([]byte("JUNK")))
	c.Check(err, check.Not(check.IsNil))
}
