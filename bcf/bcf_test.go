// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdenlab/oxbow-go/vcf"
)

func typedInt8s(vs ...int8) []byte {
	b := []byte{byte(len(vs))<<4 | typeInt8}
	for _, v := range vs {
		b = append(b, byte(v))
	}
	return b
}

func typedStr(s string) []byte {
	return append([]byte{byte(len(s))<<4 | typeChar}, s...)
}

func TestDecoderTypedValues(t *testing.T) {
	d := decoder{b: typedStr("A")}
	s, err := d.typedString()
	require.NoError(t, err)
	assert.Equal(t, "A", s)

	d = decoder{b: typedInt8s(42)}
	i, err := d.typedInt()
	require.NoError(t, err)
	assert.Equal(t, 42, i)

	// A 15 length marker defers the count to a following typed int.
	long := append([]byte{15<<4 | typeChar}, typedInt8s(20)...)
	long = append(long, bytes.Repeat([]byte{'x'}, 20)...)
	d = decoder{b: long}
	s, err = d.typedString()
	require.NoError(t, err)
	assert.Equal(t, 20, len(s))
}

func TestDecoderMissingPatterns(t *testing.T) {
	// An int8 vector of two samples, one value each: 7 and missing.
	b := []byte{1<<4 | typeInt8, 7, 0x80}
	d := decoder{b: b}
	values, err := d.typedVector(2)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, []int32{7}, values[0])
	assert.Nil(t, values[1])

	// Float missing and end-of-vector markers are stripped.
	var fb bytes.Buffer
	fb.WriteByte(3<<4 | typeFloat)
	binary.Write(&fb, binary.LittleEndian, math.Float32bits(1.5))
	binary.Write(&fb, binary.LittleEndian, floatMissingBits)
	binary.Write(&fb, binary.LittleEndian, floatEOVBits)
	d = decoder{b: fb.Bytes()}
	values, err = d.typedVector(1)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, []float32{1.5}, values[0])
}

func TestDecodeGT(t *testing.T) {
	// 0/1 encodes as (0+1)<<1, (1+1)<<1 with phasing bits clear.
	v := decodeGT([]int32{2, 4})
	assert.Equal(t, []int32{0, 1}, v)
	// A phased 0|1.
	v = decodeGT([]int32{2, 5})
	assert.Equal(t, []int32{0, 1}, v)
	// Missing alleles decode to -1.
	v = decodeGT([]int32{0, 0})
	assert.Equal(t, []int32{-1, -1}, v)
}

func TestDecodeRecord(t *testing.T) {
	hdrText := "##fileformat=VCFv4.3\n" +
		"##contig=<ID=chr1,length=1000>\n" +
		"##FILTER=<ID=q10,Description=\"x\">\n" +
		"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"x\">\n" +
		"##FORMAT=<ID=GT,Number=1,Type=String,Description=\"x\">\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\ts1\ts2\n"
	h, err := vcf.ReadHeader(bufio.NewReader(strings.NewReader(hdrText)))
	require.NoError(t, err)

	var shared bytes.Buffer
	binary.Write(&shared, binary.LittleEndian, int32(0))   // chrom
	binary.Write(&shared, binary.LittleEndian, int32(99))  // pos
	binary.Write(&shared, binary.LittleEndian, int32(1))   // rlen
	binary.Write(&shared, binary.LittleEndian, floatMissingBits)
	binary.Write(&shared, binary.LittleEndian, uint32(2<<16|1)) // n_allele=2, n_info=1
	binary.Write(&shared, binary.LittleEndian, uint32(1<<24|2)) // n_fmt=1, n_sample=2
	shared.Write(typedStr("rs7"))
	shared.Write(typedStr("A"))
	shared.Write(typedStr("G"))
	shared.Write(typedInt8s(0)) // FILTER: PASS
	// INFO DP=14. The DP dictionary index is 2: PASS, q10, DP.
	shared.Write(typedInt8s(2))
	shared.Write(typedInt8s(14))

	var indiv bytes.Buffer
	indiv.Write(typedInt8s(3)) // GT key index.
	// Two samples, two alleles each: 0/1 and 1/1.
	indiv.Write([]byte{2 << 4 | typeInt8, 2, 4, 4, 4})

	rec, err := decodeRecord(h, shared.Bytes(), indiv.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "chr1", rec.Chrom())
	assert.Equal(t, 99, rec.Pos())
	assert.Equal(t, 100, rec.End())
	id, ok := rec.ID()
	assert.True(t, ok)
	assert.Equal(t, "rs7", id)
	assert.Equal(t, "A", rec.Ref())
	assert.Equal(t, []string{"G"}, rec.Alts())
	_, ok = rec.Qual()
	assert.False(t, ok)
	assert.Equal(t, []string{"PASS"}, rec.Filters())

	dp, ok := rec.Info("DP")
	require.True(t, ok)
	assert.Equal(t, []int32{14}, dp)

	gt, ok := rec.Genotype(0, "GT")
	require.True(t, ok)
	assert.Equal(t, []int32{0, 1}, gt)
	gt, ok = rec.Genotype(1, "GT")
	require.True(t, ok)
	assert.Equal(t, []int32{1, 1}, gt)
}
