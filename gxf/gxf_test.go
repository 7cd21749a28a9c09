// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gxf

import (
	"testing"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oxbow "github.com/abdenlab/oxbow-go"
)

const gtfData = "" +
	"#!genome-build GRCh38\n" +
	"chr1\thavana\tgene\t11869\t14409\t.\t+\t.\tgene_id \"ENSG1\"; gene_name \"DDX11L1\";\n" +
	"chr1\thavana\ttranscript\t11869\t12227\t0.9\t+\t.\tgene_id \"ENSG1\"; transcript_id \"ENST1\";\n" +
	"chr2\thavana\tgene\t100\t200\t.\t-\t0\tgene_id \"ENSG2\";\n"

const gffData = "" +
	"##gff-version 3\n" +
	"chr1\t.\tgene\t1000\t9000\t.\t+\t.\tID=gene1;Name=EDEN;Alias=g1,g-one\n" +
	"chr1\t.\tmRNA\t1050\t9000\t.\t+\t.\tID=mRNA1;Parent=gene1\n"

func TestParseGTFRecord(t *testing.T) {
	rec, err := ParseRecord(GTF, []byte("chr1\thavana\tgene\t11869\t14409\t.\t+\t.\tgene_id \"ENSG1\"; gene_name \"DDX11L1\";"))
	require.NoError(t, err)
	assert.Equal(t, "chr1", rec.Seqid)
	assert.Equal(t, "havana", rec.Source)
	assert.Equal(t, "gene", rec.Type)
	assert.Equal(t, 11868, rec.Start)
	assert.Equal(t, 14409, rec.End)
	assert.False(t, rec.HasScore)
	assert.Equal(t, "+", rec.Strand)
	assert.Equal(t, -1, rec.Phase)
	v, ok := rec.Attr("gene_id")
	require.True(t, ok)
	assert.Equal(t, []string{"ENSG1"}, v)
	v, ok = rec.Attr("gene_name")
	require.True(t, ok)
	assert.Equal(t, []string{"DDX11L1"}, v)
}

func TestParseGFFRecord(t *testing.T) {
	rec, err := ParseRecord(GFF, []byte("chr1\t.\tgene\t1000\t9000\t.\t+\t.\tID=gene1;Alias=g1,g%2Done"))
	require.NoError(t, err)
	assert.Equal(t, 999, rec.Start)
	assert.Equal(t, "", rec.Source)
	v, ok := rec.Attr("Alias")
	require.True(t, ok)
	assert.Equal(t, []string{"g1", "g-one"}, v)
}

func TestAttrDiscovery(t *testing.T) {
	sc, err := NewGFFScanner(oxbow.BytesSource([]byte(gffData)), Options{})
	require.NoError(t, err)
	defs, err := sc.AttrDefs(0)
	require.NoError(t, err)
	assert.Equal(t, []AttrDef{
		{Name: "ID"},
		{Name: "Name"},
		{Name: "Alias", List: true},
		{Name: "Parent"},
	}, defs)
}

func TestGTFScan(t *testing.T) {
	sc, err := NewGTFScanner(oxbow.BytesSource([]byte(gtfData)), Options{})
	require.NoError(t, err)
	schema, err := sc.Schema()
	require.NoError(t, err)
	attrs, ok := schema.FieldsByName("attributes")
	require.True(t, ok)
	st := attrs[0].Type.(*arrow.StructType)
	assert.Equal(t, 3, len(st.Fields()))
	assert.Equal(t, "gene_id", st.Field(0).Name)

	stream, err := sc.Scan(0)
	require.NoError(t, err)
	defer stream.Close()
	var rows int64
	for stream.Next() {
		rec := stream.Batch()
		assert.True(t, rec.Schema().Equal(schema))
		rows += rec.NumRows()
		// Coordinates are 0-based half-open regardless of the
		// 1-based input.
		start := rec.Column(3).(*array.Int32)
		assert.Equal(t, int32(11868), start.Value(0))
	}
	require.NoError(t, stream.Err())
	assert.Equal(t, int64(3), rows)
}

func TestProjectionOmitsAttributes(t *testing.T) {
	sc, err := NewGTFScanner(oxbow.BytesSource([]byte(gtfData)), Options{
		Fields:   []string{"seqid", "start", "end"},
		AttrDefs: []AttrDef{},
	})
	require.NoError(t, err)
	schema, err := sc.Schema()
	require.NoError(t, err)
	assert.Equal(t, 3, len(schema.Fields()))

	_, err = NewGTFScanner(oxbow.BytesSource([]byte(gtfData)), Options{Fields: []string{"nope"}})
	assert.Error(t, err)
}
