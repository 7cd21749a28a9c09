// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"fmt"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
)

// A TagDef describes one auxiliary tag column: a two character tag
// name and its type code. Codes follow the SAM tag grammar: one of
// AcCsSiIfZH, or B followed by an integer or float subtype for array
// tags.
type TagDef struct {
	Name string
	Code string
}

// NewTagDef returns a validated TagDef.
func NewTagDef(name, code string) (TagDef, error) {
	if len(name) != 2 {
		return TagDef{}, fmt.Errorf("sam: tag name must be 2 characters: %q", name)
	}
	d := TagDef{Name: name, Code: code}
	if d.arrowType() == nil {
		return TagDef{}, fmt.Errorf("sam: invalid tag type: %q", code)
	}
	return d, nil
}

func (d TagDef) arrowType() arrow.DataType {
	switch d.Code {
	case "A", "Z", "H":
		return arrow.BinaryTypes.String
	case "c":
		return arrow.PrimitiveTypes.Int8
	case "C":
		return arrow.PrimitiveTypes.Uint8
	case "s":
		return arrow.PrimitiveTypes.Int16
	case "S":
		return arrow.PrimitiveTypes.Uint16
	case "i":
		return arrow.PrimitiveTypes.Int32
	case "I":
		return arrow.PrimitiveTypes.Uint32
	case "f":
		return arrow.PrimitiveTypes.Float32
	case "Bc", "BC", "Bs", "BS", "Bi", "BI":
		return arrow.ListOf(arrow.PrimitiveTypes.Int32)
	case "Bf":
		return arrow.ListOf(arrow.PrimitiveTypes.Float32)
	}
	return nil
}

func (d TagDef) field() arrow.Field {
	return arrow.Field{Name: d.Name, Type: d.arrowType(), Nullable: true}
}

// append appends the record's value for the tag described by d to
// the given child builder, or a null when the tag is absent or its
// type is incompatible with the definition.
func (d TagDef) append(b array.Builder, rec *Record) {
	aux := rec.AuxFields.Get(NewTag(d.Name))
	if aux == nil {
		b.AppendNull()
		return
	}
	switch bld := b.(type) {
	case *array.StringBuilder:
		if v, ok := aux.Text(); ok {
			bld.Append(v)
		} else {
			bld.AppendNull()
		}
	case *array.Int8Builder:
		if v, ok := aux.Int64(); ok {
			bld.Append(int8(v))
		} else {
			bld.AppendNull()
		}
	case *array.Uint8Builder:
		if v, ok := aux.Int64(); ok {
			bld.Append(uint8(v))
		} else {
			bld.AppendNull()
		}
	case *array.Int16Builder:
		if v, ok := aux.Int64(); ok {
			bld.Append(int16(v))
		} else {
			bld.AppendNull()
		}
	case *array.Uint16Builder:
		if v, ok := aux.Int64(); ok {
			bld.Append(uint16(v))
		} else {
			bld.AppendNull()
		}
	case *array.Int32Builder:
		if v, ok := aux.Int64(); ok {
			bld.Append(int32(v))
		} else {
			bld.AppendNull()
		}
	case *array.Uint32Builder:
		if v, ok := aux.Int64(); ok {
			bld.Append(uint32(v))
		} else {
			bld.AppendNull()
		}
	case *array.Float32Builder:
		if v, ok := aux.Float(); ok {
			bld.Append(v)
		} else {
			bld.AppendNull()
		}
	case *array.ListBuilder:
		switch vb := bld.ValueBuilder().(type) {
		case *array.Int32Builder:
			v, ok := aux.Ints()
			if !ok {
				bld.AppendNull()
				return
			}
			bld.Append(true)
			for _, e := range v {
				vb.Append(int32(e))
			}
		case *array.Float32Builder:
			v, ok := aux.Floats()
			if !ok {
				bld.AppendNull()
				return
			}
			bld.Append(true)
			for _, e := range v {
				vb.Append(e)
			}
		default:
			bld.AppendNull()
		}
	default:
		b.AppendNull()
	}
}

// A TagScanner accumulates tag definitions observed over records,
// preserving first-seen order and widening integer types as needed.
type TagScanner struct {
	order []string
	defs  map[string]TagDef
}

// NewTagScanner returns an empty TagScanner.
func NewTagScanner() *TagScanner {
	return &TagScanner{defs: map[string]TagDef{}}
}

var intWidth = map[string]int{"c": 0, "C": 1, "s": 2, "S": 3, "i": 4, "I": 5}

// Push records the tags present on rec.
func (s *TagScanner) Push(rec *Record) {
	for _, aux := range rec.AuxFields {
		name := aux.Tag().String()
		code := string(aux.Type())
		if code == "B" {
			code += string(aux.ArrayType())
		}
		seen, ok := s.defs[name]
		if !ok {
			s.order = append(s.order, name)
			s.defs[name] = TagDef{Name: name, Code: code}
			continue
		}
		// Widen differing integer observations; any other conflict
		// coerces to string.
		if seen.Code == code {
			continue
		}
		sw, sok := intWidth[seen.Code]
		cw, cok := intWidth[code]
		switch {
		case sok && cok:
			if cw > sw {
				s.defs[name] = TagDef{Name: name, Code: code}
			}
		default:
			s.defs[name] = TagDef{Name: name, Code: "Z"}
		}
	}
}

// Defs returns the accumulated definitions in first-seen order.
func (s *TagScanner) Defs() []TagDef {
	defs := make([]TagDef, 0, len(s.order))
	for _, name := range s.order {
		defs = append(defs, s.defs[name])
	}
	return defs
}
