// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bbi

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataHeaderBytes(chromID, start, end, step, span uint32, typ byte, count uint16) []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint32(buf[0:4], chromID)
	binary.LittleEndian.PutUint32(buf[4:8], start)
	binary.LittleEndian.PutUint32(buf[8:12], end)
	binary.LittleEndian.PutUint32(buf[12:16], step)
	binary.LittleEndian.PutUint32(buf[16:20], span)
	buf[20] = typ
	binary.LittleEndian.PutUint16(buf[22:24], count)
	return buf
}

func f32(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func TestDecodeWigBedGraph(t *testing.T) {
	block := dataHeaderBytes(3, 0, 100, 0, 0, typeBedGraph, 2)
	block = append(block, u32(10)...)
	block = append(block, u32(20)...)
	block = append(block, f32(1.5)...)
	block = append(block, u32(20)...)
	block = append(block, u32(40)...)
	block = append(block, f32(2.5)...)

	ivs, err := decodeWigBlock(block)
	require.NoError(t, err)
	assert.Equal(t, []Interval{
		{ChromID: 3, Start: 10, End: 20, Value: 1.5},
		{ChromID: 3, Start: 20, End: 40, Value: 2.5},
	}, ivs)
}

func TestDecodeWigVariableStep(t *testing.T) {
	block := dataHeaderBytes(1, 0, 100, 0, 5, typeVariableStep, 2)
	block = append(block, u32(10)...)
	block = append(block, f32(1)...)
	block = append(block, u32(30)...)
	block = append(block, f32(2)...)

	ivs, err := decodeWigBlock(block)
	require.NoError(t, err)
	assert.Equal(t, []Interval{
		{ChromID: 1, Start: 10, End: 15, Value: 1},
		{ChromID: 1, Start: 30, End: 35, Value: 2},
	}, ivs)
}

func TestDecodeWigFixedStep(t *testing.T) {
	block := dataHeaderBytes(1, 100, 130, 10, 10, typeFixedStep, 3)
	block = append(block, f32(1)...)
	block = append(block, f32(2)...)
	block = append(block, f32(3)...)

	ivs, err := decodeWigBlock(block)
	require.NoError(t, err)
	assert.Equal(t, []Interval{
		{ChromID: 1, Start: 100, End: 110, Value: 1},
		{ChromID: 1, Start: 110, End: 120, Value: 2},
		{ChromID: 1, Start: 120, End: 130, Value: 3},
	}, ivs)

	_, err = decodeWigBlock(dataHeaderBytes(1, 0, 0, 0, 0, 9, 0))
	assert.Error(t, err)
	_, err = decodeWigBlock([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeBedBlock(t *testing.T) {
	var b bytes.Buffer
	b.Write(u32(0))
	b.Write(u32(10))
	b.Write(u32(20))
	b.WriteString("name1\t100\x00")
	b.Write(u32(1))
	b.Write(u32(5))
	b.Write(u32(9))
	b.WriteString("\x00")

	entries, err := decodeBedBlock(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []BedEntry{
		{ChromID: 0, Start: 10, End: 20, Rest: "name1\t100"},
		{ChromID: 1, Start: 5, End: 9, Rest: ""},
	}, entries)

	_, err = decodeBedBlock(u32(1))
	assert.Error(t, err)
}

func TestDecodeZoomBlock(t *testing.T) {
	var b bytes.Buffer
	b.Write(u32(2))
	b.Write(u32(1000))
	b.Write(u32(2000))
	b.Write(u32(500))
	b.Write(f32(-1))
	b.Write(f32(3))
	b.Write(f32(700))
	b.Write(f32(2100))

	zs, err := decodeZoomBlock(b.Bytes())
	require.NoError(t, err)
	require.Len(t, zs, 1)
	assert.Equal(t, ZoomRecord{
		ChromID: 2, Start: 1000, End: 2000, ValidCount: 500,
		Min: -1, Max: 3, Sum: 700, SumSquares: 2100,
	}, zs[0])

	_, err = decodeZoomBlock(make([]byte, 31))
	assert.Error(t, err)
}

func TestOverlapsRange(t *testing.T) {
	// Node spanning chr1:100 through chr2:50.
	const sc, sb, ec, eb = 1, 100, 2, 50
	assert.True(t, overlapsRange(sc, sb, ec, eb, 1, 150, 200))
	assert.True(t, overlapsRange(sc, sb, ec, eb, 2, 0, 10))
	assert.False(t, overlapsRange(sc, sb, ec, eb, 1, 0, 100))
	assert.False(t, overlapsRange(sc, sb, ec, eb, 2, 50, 60))
	assert.False(t, overlapsRange(sc, sb, ec, eb, 0, 0, 1000))
	assert.True(t, overlapsRange(sc, sb, ec, eb, ^uint32(0), 0, 0))
}

func TestAutoSqlFields(t *testing.T) {
	autoSql := `table bedExample
"An example"
(
string chrom; "Reference sequence chromosome"
uint chromStart; "Start position"
uint chromEnd; "End position"
string name; "Item name"
uint score; "Score from 0-1000"
)`
	names := AutoSqlFields(autoSql)
	assert.Equal(t, []string{"chrom", "chromStart", "chromEnd", "name", "score"}, names)
	assert.Nil(t, AutoSqlFields(""))
}
