// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fastq

import (
	"strings"
	"testing"

	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oxbow "github.com/abdenlab/oxbow-go"
)

const fastqData = "@read1 first\n" +
	"ACGT\n" +
	"+\n" +
	"IIII\n" +
	"@read2\n" +
	"GGCCA\n" +
	"+read2\n" +
	"IIIIH\n"

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(fastqData))
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "read1", rec.Name)
	assert.Equal(t, "first", rec.Description)
	assert.Equal(t, "ACGT", string(rec.Sequence))
	assert.Equal(t, "IIII", string(rec.Quality))

	rec, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, "read2", rec.Name)
	assert.Equal(t, "GGCCA", string(rec.Sequence))
}

func TestReaderMalformed(t *testing.T) {
	// Length mismatch between sequence and quality.
	r := NewReader(strings.NewReader("@r\nACGT\n+\nII\n"))
	_, err := r.Read()
	assert.Error(t, err)

	// Missing separator line.
	r = NewReader(strings.NewReader("@r\nACGT\nIIII\nX\n"))
	_, err = r.Read()
	assert.Error(t, err)

	// Truncated record.
	r = NewReader(strings.NewReader("@r\nACGT\n"))
	_, err = r.Read()
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	sc, err := NewScanner(oxbow.BytesSource([]byte(fastqData)), Options{})
	require.NoError(t, err)
	stream, err := sc.Scan(0)
	require.NoError(t, err)
	defer stream.Close()

	var names []string
	var rows int64
	for stream.Next() {
		rec := stream.Batch()
		assert.True(t, rec.Schema().Equal(sc.Schema()))
		rows += rec.NumRows()
		name := rec.Column(0).(*array.String)
		for i := 0; i < name.Len(); i++ {
			names = append(names, name.Value(i))
		}
		// read2 has no description.
		desc := rec.Column(1).(*array.String)
		assert.False(t, desc.IsNull(0))
		assert.True(t, desc.IsNull(1))
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, int64(2), rows)
	assert.Equal(t, []string{"read1", "read2"}, names)
}
