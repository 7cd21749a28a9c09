// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fasta

import (
	"strings"
	"testing"

	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/fai"
)

const fastaData = ">chr1 test sequence\n" +
	"ACGTACGTAC\n" +
	"GTACGTACGT\n" +
	"ACGTA\n" +
	">chr2\n" +
	"TTTTGGGGCC\n" +
	"AATT\n"

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(fastaData))
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "chr1", rec.Name)
	assert.Equal(t, "test sequence", rec.Description)
	assert.Equal(t, "ACGTACGTACGTACGTACGTACGTA", string(rec.Sequence))

	rec, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, "chr2", rec.Name)
	assert.Equal(t, "", rec.Description)
	assert.Equal(t, "TTTTGGGGCCAATT", string(rec.Sequence))

	_, err = r.Read()
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	sc, err := NewScanner(oxbow.BytesSource([]byte(fastaData)), Options{})
	require.NoError(t, err)
	stream, err := sc.Scan(0)
	require.NoError(t, err)
	defer stream.Close()

	var rows int64
	for stream.Next() {
		rec := stream.Batch()
		assert.True(t, rec.Schema().Equal(sc.Schema()))
		rows += rec.NumRows()
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, int64(2), rows)
}

func TestScanRegions(t *testing.T) {
	idx, err := fai.NewIndex(strings.NewReader(fastaData))
	require.NoError(t, err)

	sc, err := NewScanner(oxbow.BytesSource([]byte(fastaData)), Options{})
	require.NoError(t, err)

	stream, err := sc.ScanRegions([]string{"chr1:10-20", "chr2:5-14"}, idx, nil)
	require.NoError(t, err)
	defer stream.Close()

	var names, seqs []string
	for stream.Next() {
		rec := stream.Batch()
		name := rec.Column(0).(*array.String)
		seq := rec.Column(2).(*array.String)
		for i := 0; i < name.Len(); i++ {
			names = append(names, name.Value(i))
			seqs = append(seqs, seq.Value(i))
		}
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, []string{"chr1", "chr2"}, names)
	// chr1 is ACGTACGTAC GTACGTACGT ACGTA; 1-based 10..20 spans the
	// line boundary.
	assert.Equal(t, []string{"CGTACGTACGT", "GGGGCCAATT"}, seqs)
}

func TestScanRegionsProjection(t *testing.T) {
	idx, err := fai.NewIndex(strings.NewReader(fastaData))
	require.NoError(t, err)
	sc, err := NewScanner(oxbow.BytesSource([]byte(fastaData)), Options{Fields: []string{"sequence"}})
	require.NoError(t, err)
	stream, err := sc.ScanRegions([]string{"chr1:1-5"}, idx, nil)
	require.NoError(t, err)
	defer stream.Close()
	require.True(t, stream.Next())
	rec := stream.Batch()
	require.Equal(t, int64(1), rec.NumCols())
	assert.Equal(t, "ACGTA", rec.Column(0).(*array.String).Value(0))
}
