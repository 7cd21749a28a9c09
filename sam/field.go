// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"github.com/apache/arrow/go/v11/arrow"

	"github.com/abdenlab/oxbow-go/batch"
)

// FieldNames lists the standard alignment columns in schema order.
// The trailing "end" column is the computed alignment end, included so
// coordinate range predicates can be evaluated without re-parsing the
// CIGAR.
var FieldNames = []string{
	"qname", "flag", "rname", "pos", "mapq", "cigar",
	"rnext", "pnext", "tlen", "seq", "qual", "end",
}

// alignmentFields returns the arrow fields for the named standard
// columns, or all of them when names is nil. Reference-name columns
// are dictionary encoded against the header's reference list.
func alignmentFields(names []string) ([]arrow.Field, error) {
	all := []arrow.Field{
		batch.Field("qname", arrow.BinaryTypes.String),
		batch.Field("flag", arrow.PrimitiveTypes.Uint16),
		batch.Field("rname", batch.DictionaryType()),
		batch.Field("pos", arrow.PrimitiveTypes.Int32),
		batch.Field("mapq", arrow.PrimitiveTypes.Uint8),
		batch.Field("cigar", arrow.BinaryTypes.String),
		batch.Field("rnext", batch.DictionaryType()),
		batch.Field("pnext", arrow.PrimitiveTypes.Int32),
		batch.Field("tlen", arrow.PrimitiveTypes.Int32),
		batch.Field("seq", arrow.BinaryTypes.String),
		batch.Field("qual", arrow.BinaryTypes.String),
		batch.Field("end", arrow.PrimitiveTypes.Int32),
	}
	return batch.Project(all, names)
}
