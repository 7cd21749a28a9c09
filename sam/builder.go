// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"fmt"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"

	"github.com/abdenlab/oxbow-go/batch"
)

// A Builder maps alignment records onto projected Arrow columns. It
// is shared by the SAM and BAM scanners, which both decode into
// Record.
type Builder struct {
	header *Header
	fields []arrow.Field
	tags   []TagDef
	seeded bool
}

// NewBuilder returns a Builder for the given projection. A nil fields
// slice selects all standard columns. A nil or empty tags slice omits
// the tags column entirely.
func NewBuilder(h *Header, fields []string, tags []TagDef) (*Builder, error) {
	std, err := alignmentFields(fields)
	if err != nil {
		return nil, fmt.Errorf("sam: %v", err)
	}
	for _, d := range tags {
		if d.arrowType() == nil {
			return nil, fmt.Errorf("sam: invalid tag type: %q", d.Code)
		}
	}
	return &Builder{header: h, fields: std, tags: tags}, nil
}

// Schema returns the Arrow schema of the projection.
func (b *Builder) Schema() *arrow.Schema {
	fields := append([]arrow.Field(nil), b.fields...)
	if len(b.tags) != 0 {
		children := make([]arrow.Field, len(b.tags))
		for i, d := range b.tags {
			children[i] = d.field()
		}
		fields = append(fields, batch.Field("tags", arrow.StructOf(children...)))
	}
	return arrow.NewSchema(fields, nil)
}

// seed installs the header's reference names into the dictionary
// builders so rname codes equal header reference ids.
func (b *Builder) seed(rb *array.RecordBuilder) error {
	if b.seeded {
		return nil
	}
	b.seeded = true
	names := b.header.RefNames()
	for i, f := range b.fields {
		if f.Name == "rname" || f.Name == "rnext" {
			db, ok := rb.Field(i).(*array.BinaryDictionaryBuilder)
			if !ok {
				return fmt.Errorf("sam: unexpected builder for %s", f.Name)
			}
			if err := batch.SeedDictionary(db, names); err != nil {
				return err
			}
		}
	}
	return nil
}

// Append appends one record across all projected columns.
func (b *Builder) Append(rb *array.RecordBuilder, rec *Record) error {
	if err := b.seed(rb); err != nil {
		return err
	}
	for i, f := range b.fields {
		bld := rb.Field(i)
		switch f.Name {
		case "qname":
			sb := bld.(*array.StringBuilder)
			if rec.Name == "" || rec.Name == "*" {
				sb.AppendNull()
			} else {
				sb.Append(rec.Name)
			}
		case "flag":
			bld.(*array.Uint16Builder).Append(uint16(rec.Flags))
		case "rname":
			err := batch.AppendDictString(bld.(*array.BinaryDictionaryBuilder), rec.Ref.Name(), rec.Ref != nil)
			if err != nil {
				return err
			}
		case "pos":
			ib := bld.(*array.Int32Builder)
			if rec.Pos < 0 {
				ib.AppendNull()
			} else {
				ib.Append(int32(rec.Pos))
			}
		case "mapq":
			mb := bld.(*array.Uint8Builder)
			if rec.MapQ == 0xff {
				mb.AppendNull()
			} else {
				mb.Append(rec.MapQ)
			}
		case "cigar":
			sb := bld.(*array.StringBuilder)
			if len(rec.Cigar) == 0 {
				sb.AppendNull()
			} else {
				sb.Append(rec.Cigar.String())
			}
		case "rnext":
			err := batch.AppendDictString(bld.(*array.BinaryDictionaryBuilder), rec.MateRef.Name(), rec.MateRef != nil)
			if err != nil {
				return err
			}
		case "pnext":
			ib := bld.(*array.Int32Builder)
			if rec.MatePos < 0 {
				ib.AppendNull()
			} else {
				ib.Append(int32(rec.MatePos))
			}
		case "tlen":
			bld.(*array.Int32Builder).Append(int32(rec.TempLen))
		case "seq":
			sb := bld.(*array.StringBuilder)
			if rec.Seq.Length == 0 {
				sb.AppendNull()
			} else {
				sb.Append(string(rec.Seq.Expand()))
			}
		case "qual":
			sb := bld.(*array.StringBuilder)
			if q := rec.QualString(); q == "" {
				sb.AppendNull()
			} else {
				sb.Append(q)
			}
		case "end":
			ib := bld.(*array.Int32Builder)
			if rec.Unmapped() {
				ib.AppendNull()
			} else {
				ib.Append(int32(rec.End()))
			}
		}
	}
	if len(b.tags) != 0 {
		sb := rb.Field(len(b.fields)).(*array.StructBuilder)
		sb.Append(true)
		for i, d := range b.tags {
			d.append(sb.FieldBuilder(i), rec)
		}
	}
	return nil
}
