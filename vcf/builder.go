// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vcf

import (
	"fmt"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	"github.com/abdenlab/oxbow-go/batch"
)

// GenotypeBy selects the nesting order of genotype columns.
type GenotypeBy int

const (
	// BySample yields one struct column per sample, each a struct
	// of genotype fields.
	BySample GenotypeBy = iota

	// ByField yields one struct column per genotype field, each a
	// struct of samples.
	ByField
)

// ParseGenotypeBy parses "sample" or "field".
func ParseGenotypeBy(s string) (GenotypeBy, error) {
	switch s {
	case "", "sample":
		return BySample, nil
	case "field":
		return ByField, nil
	}
	return 0, fmt.Errorf("vcf: unknown genotype nesting: %q", s)
}

// FieldNames lists the fixed variant columns in schema order.
var FieldNames = []string{"chrom", "pos", "id", "ref", "alt", "qual", "filter"}

func fixedFields(names []string) ([]arrow.Field, error) {
	all := []arrow.Field{
		batch.Field("chrom", batch.DictionaryType()),
		batch.Field("pos", arrow.PrimitiveTypes.Int32),
		batch.Field("id", arrow.BinaryTypes.String),
		batch.Field("ref", arrow.BinaryTypes.String),
		batch.Field("alt", arrow.ListOf(arrow.BinaryTypes.String)),
		batch.Field("qual", arrow.PrimitiveTypes.Float32),
		batch.Field("filter", arrow.ListOf(arrow.BinaryTypes.String)),
	}
	return batch.Project(all, names)
}

// arrowType maps a declaration to its Arrow type. The GT field is
// decoded to allele indices regardless of its declared type.
func arrowType(decl FieldDecl, format bool) arrow.DataType {
	if format && decl.ID == "GT" {
		return arrow.ListOf(arrow.PrimitiveTypes.Int32)
	}
	var elem arrow.DataType
	switch decl.Type {
	case "Integer":
		elem = arrow.PrimitiveTypes.Int32
	case "Float":
		elem = arrow.PrimitiveTypes.Float32
	case "Flag":
		return arrow.FixedWidthTypes.Boolean
	default:
		elem = arrow.BinaryTypes.String
	}
	if decl.IsList() {
		return arrow.ListOf(elem)
	}
	return elem
}

// A Builder maps variant records onto projected Arrow columns. It is
// shared by the VCF and BCF scanners through the Variant view.
type Builder struct {
	h *Header

	fields  []arrow.Field
	infos   []FieldDecl
	formats []FieldDecl
	samples []string
	sidx    []int

	by     GenotypeBy
	seeded bool
}

// NewBuilder returns a Builder for the given projection. Nil
// infoFields, genotypeFields or samples select everything declared in
// the header; empty non-nil slices omit the corresponding columns.
func NewBuilder(h *Header, fields, infoFields, genotypeFields, samples []string, by GenotypeBy) (*Builder, error) {
	fixed, err := fixedFields(fields)
	if err != nil {
		return nil, fmt.Errorf("vcf: %v", err)
	}
	b := &Builder{h: h, fields: fixed, by: by}

	if infoFields == nil {
		b.infos = h.Infos
	} else {
		for _, id := range infoFields {
			decl, ok := h.Info(id)
			if !ok {
				return nil, fmt.Errorf("vcf: unknown INFO field %q", id)
			}
			b.infos = append(b.infos, decl)
		}
	}
	if genotypeFields == nil {
		b.formats = h.Formats
	} else {
		for _, id := range genotypeFields {
			decl, ok := h.Format(id)
			if !ok {
				return nil, fmt.Errorf("vcf: unknown FORMAT field %q", id)
			}
			b.formats = append(b.formats, decl)
		}
	}
	if samples == nil {
		b.samples = h.Samples
		b.sidx = make([]int, len(h.Samples))
		for i := range b.sidx {
			b.sidx[i] = i
		}
	} else {
		for _, name := range samples {
			i := h.SampleIndex(name)
			if i < 0 {
				return nil, fmt.Errorf("vcf: unknown sample %q", name)
			}
			b.samples = append(b.samples, name)
			b.sidx = append(b.sidx, i)
		}
	}
	if len(b.samples) == 0 || len(b.formats) == 0 {
		// No genotype columns without both a sample and a field.
		b.formats = nil
		b.samples = nil
		b.sidx = nil
	}
	return b, nil
}

// Schema returns the Arrow schema of the projection.
func (b *Builder) Schema() *arrow.Schema {
	fields := append([]arrow.Field(nil), b.fields...)
	if len(b.infos) != 0 {
		children := make([]arrow.Field, len(b.infos))
		for i, decl := range b.infos {
			children[i] = batch.Field(decl.ID, arrowType(decl, false))
		}
		fields = append(fields, batch.Field("info", arrow.StructOf(children...)))
	}
	switch b.by {
	case BySample:
		children := make([]arrow.Field, len(b.formats))
		for i, decl := range b.formats {
			children[i] = batch.Field(decl.ID, arrowType(decl, true))
		}
		for _, name := range b.samples {
			fields = append(fields, batch.Field(name, arrow.StructOf(children...)))
		}
	case ByField:
		for _, decl := range b.formats {
			children := make([]arrow.Field, len(b.samples))
			for i, name := range b.samples {
				children[i] = batch.Field(name, arrowType(decl, true))
			}
			fields = append(fields, batch.Field(decl.ID, arrow.StructOf(children...)))
		}
	}
	return arrow.NewSchema(fields, nil)
}

func (b *Builder) seed(rb *array.RecordBuilder) error {
	if b.seeded {
		return nil
	}
	b.seeded = true
	for i, f := range b.fields {
		if f.Name == "chrom" {
			db, ok := rb.Field(i).(*array.BinaryDictionaryBuilder)
			if !ok {
				return fmt.Errorf("vcf: unexpected builder for chrom")
			}
			if err := batch.SeedDictionary(db, b.h.ContigNames()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Append appends one record across all projected columns.
func (b *Builder) Append(rb *array.RecordBuilder, rec Variant) error {
	if err := b.seed(rb); err != nil {
		return err
	}
	for i, f := range b.fields {
		bld := rb.Field(i)
		switch f.Name {
		case "chrom":
			err := batch.AppendDictString(bld.(*array.BinaryDictionaryBuilder), rec.Chrom(), true)
			if err != nil {
				return err
			}
		case "pos":
			bld.(*array.Int32Builder).Append(int32(rec.Pos()))
		case "id":
			sb := bld.(*array.StringBuilder)
			if id, ok := rec.ID(); ok {
				sb.Append(id)
			} else {
				sb.AppendNull()
			}
		case "ref":
			bld.(*array.StringBuilder).Append(rec.Ref())
		case "alt":
			lb := bld.(*array.ListBuilder)
			lb.Append(true)
			vb := lb.ValueBuilder().(*array.StringBuilder)
			for _, alt := range rec.Alts() {
				vb.Append(alt)
			}
		case "qual":
			fb := bld.(*array.Float32Builder)
			if q, ok := rec.Qual(); ok {
				fb.Append(q)
			} else {
				fb.AppendNull()
			}
		case "filter":
			lb := bld.(*array.ListBuilder)
			filters := rec.Filters()
			if filters == nil {
				lb.AppendNull()
				continue
			}
			lb.Append(true)
			vb := lb.ValueBuilder().(*array.StringBuilder)
			for _, name := range filters {
				vb.Append(name)
			}
		}
	}
	col := len(b.fields)
	if len(b.infos) != 0 {
		sb := rb.Field(col).(*array.StructBuilder)
		sb.Append(true)
		for i, decl := range b.infos {
			v, ok := rec.Info(decl.ID)
			if !ok {
				sb.FieldBuilder(i).AppendNull()
				continue
			}
			appendValue(sb.FieldBuilder(i), decl, v)
		}
		col++
	}
	switch b.by {
	case BySample:
		for si, idx := range b.sidx {
			sb := rb.Field(col + si).(*array.StructBuilder)
			sb.Append(true)
			for fi, decl := range b.formats {
				v, ok := rec.Genotype(idx, decl.ID)
				if !ok {
					sb.FieldBuilder(fi).AppendNull()
					continue
				}
				appendValue(sb.FieldBuilder(fi), decl, v)
			}
		}
	case ByField:
		for fi, decl := range b.formats {
			sb := rb.Field(col + fi).(*array.StructBuilder)
			sb.Append(true)
			for si, idx := range b.sidx {
				v, ok := rec.Genotype(idx, decl.ID)
				if !ok {
					sb.FieldBuilder(si).AppendNull()
					continue
				}
				appendValue(sb.FieldBuilder(si), decl, v)
			}
		}
	}
	return nil
}

// appendValue appends a decoded Value to the given builder, coercing
// per the declared type. A nil value and an explicitly missing value
// both append a null.
func appendValue(b array.Builder, decl FieldDecl, v Value) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch bld := b.(type) {
	case *array.BooleanBuilder:
		flag, ok := v.(bool)
		if !ok {
			bld.AppendNull()
			return
		}
		bld.Append(flag)
	case *array.Int32Builder:
		ints, ok := v.([]int32)
		if !ok || len(ints) == 0 {
			bld.AppendNull()
			return
		}
		bld.Append(ints[0])
	case *array.Float32Builder:
		floats, ok := v.([]float32)
		if !ok || len(floats) == 0 {
			bld.AppendNull()
			return
		}
		bld.Append(floats[0])
	case *array.StringBuilder:
		strs, ok := v.([]string)
		if !ok || len(strs) == 0 {
			bld.AppendNull()
			return
		}
		bld.Append(strs[0])
	case *array.ListBuilder:
		switch vb := bld.ValueBuilder().(type) {
		case *array.Int32Builder:
			ints, ok := v.([]int32)
			if !ok {
				bld.AppendNull()
				return
			}
			bld.Append(true)
			for _, e := range ints {
				vb.Append(e)
			}
		case *array.Float32Builder:
			floats, ok := v.([]float32)
			if !ok {
				bld.AppendNull()
				return
			}
			bld.Append(true)
			for _, e := range floats {
				vb.Append(e)
			}
		case *array.StringBuilder:
			strs, ok := v.([]string)
			if !ok {
				bld.AppendNull()
				return
			}
			bld.Append(true)
			for _, e := range strs {
				vb.Append(e)
			}
		default:
			bld.AppendNull()
		}
	default:
		b.AppendNull()
	}
}
