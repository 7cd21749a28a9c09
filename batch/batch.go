// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package batch

import (
	"fmt"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
)

// Field returns a nullable arrow.Field with the given name and type.
func Field(name string, t arrow.DataType) arrow.Field {
	return arrow.Field{Name: name, Type: t, Nullable: true}
}

// DictionaryType is the Arrow type used for reference-name columns:
// int32 codes over a utf8 dictionary seeded from a header's reference
// list.
func DictionaryType() *arrow.DictionaryType {
	return &arrow.DictionaryType{
		IndexType: arrow.PrimitiveTypes.Int32,
		ValueType: arrow.BinaryTypes.String,
	}
}

// SeedDictionary inserts the given values into a dictionary builder so
// dictionary codes are stable across batches regardless of the order
// in which values are observed.
func SeedDictionary(b *array.BinaryDictionaryBuilder, values []string) error {
	if len(values) == 0 {
		return nil
	}
	sb := array.NewStringBuilder(memory.DefaultAllocator)
	defer sb.Release()
	for _, v := range values {
		sb.Append(v)
	}
	arr := sb.NewStringArray()
	defer arr.Release()
	return b.InsertStringDictValues(arr)
}

// AppendDictString appends a string value, or a null when ok is false,
// to a dictionary builder.
func AppendDictString(b *array.BinaryDictionaryBuilder, v string, ok bool) error {
	if !ok {
		b.AppendNull()
		return nil
	}
	return b.AppendString(v)
}

// Project returns the subset of all whose names appear in names, in
// the order given by names. A nil names selects every field. Unknown
// names are reported as errors so misprojections surface before any
// I/O is performed.
func Project(all []arrow.Field, names []string) ([]arrow.Field, error) {
	if names == nil {
		return all, nil
	}
	byName := make(map[string]arrow.Field, len(all))
	for _, f := range all {
		byName[f.Name] = f
	}
	fields := make([]arrow.Field, 0, len(names))
	for _, n := range names {
		f, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("batch: unknown field %q", n)
		}
		fields = append(fields, f)
	}
	return fields, nil
}
