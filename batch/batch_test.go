// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package batch

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		Field("n", arrow.PrimitiveTypes.Int32),
	}, nil)
}

// countFill appends sequential integers up to total.
func countFill(total int) FillFunc {
	next := 0
	return func(b *array.RecordBuilder, max int) (int, error) {
		n := 0
		for n < max && next < total {
			b.Field(0).(*array.Int32Builder).Append(int32(next))
			next++
			n++
		}
		if next == total {
			return n, io.EOF
		}
		return n, nil
	}
}

func TestStreamBatching(t *testing.T) {
	s := NewStream(testSchema(), 4, countFill(10))
	defer s.Close()

	var sizes []int64
	var values []int32
	for s.Next() {
		rec := s.Batch()
		assert.True(t, rec.Schema().Equal(s.Schema()))
		sizes = append(sizes, rec.NumRows())
		col := rec.Column(0).(*array.Int32)
		for i := 0; i < col.Len(); i++ {
			values = append(values, col.Value(i))
		}
	}
	require.NoError(t, s.Err())
	// Only the final batch may be short.
	assert.Equal(t, []int64{4, 4, 2}, sizes)
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, values)
}

func TestStreamError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	s := NewStream(testSchema(), 4, func(b *array.RecordBuilder, max int) (int, error) {
		calls++
		b.Field(0).(*array.Int32Builder).Append(1)
		return 1, boom
	})
	defer s.Close()

	// A mid-batch error discards partial rows and terminates the
	// stream.
	assert.False(t, s.Next())
	assert.Equal(t, boom, s.Err())
	assert.False(t, s.Next())
	assert.Equal(t, 1, calls)
}

func TestStreamEmpty(t *testing.T) {
	s := NewStream(testSchema(), 4, countFill(0))
	defer s.Close()
	assert.False(t, s.Next())
	require.NoError(t, s.Err())

	empty := s.EmptyBatch()
	defer empty.Release()
	assert.Equal(t, int64(0), empty.NumRows())
	assert.True(t, empty.Schema().Equal(s.Schema()))
}

func TestProject(t *testing.T) {
	all := []arrow.Field{
		Field("a", arrow.PrimitiveTypes.Int32),
		Field("b", arrow.BinaryTypes.String),
	}
	got, err := Project(all, nil)
	require.NoError(t, err)
	assert.Equal(t, all, got)

	got, err = Project(all, []string{"b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Name)

	_, err = Project(all, []string{"c"})
	assert.Error(t, err)
}

func TestIPCBytes(t *testing.T) {
	blob, err := IPCBytes(NewStream(testSchema(), 4, countFill(6)))
	require.NoError(t, err)

	fr, err := ipc.NewFileReader(bytes.NewReader(blob))
	require.NoError(t, err)
	defer fr.Close()
	assert.True(t, fr.Schema().Equal(testSchema()))
	var rows int64
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		require.NoError(t, err)
		rows += rec.NumRows()
	}
	assert.Equal(t, int64(6), rows)
}

func TestSeedDictionary(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{Field("chrom", DictionaryType())}, nil)
	s := NewStream(schema, 4, func(b *array.RecordBuilder, max int) (int, error) {
		db := b.Field(0).(*array.BinaryDictionaryBuilder)
		require.NoError(t, SeedDictionary(db, []string{"chr1", "chr2"}))
		require.NoError(t, AppendDictString(db, "chr2", true))
		require.NoError(t, AppendDictString(db, "", false))
		return 2, io.EOF
	})
	defer s.Close()
	require.True(t, s.Next())
	col := s.Batch().Column(0).(*array.Dictionary)
	assert.Equal(t, 2, col.Len())
	// Seeded codes follow the provided order, so chr2 has code 1.
	assert.Equal(t, 1, col.GetValueIndex(0))
	assert.True(t, col.IsNull(1))
}
