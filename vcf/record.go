// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// A Value is a decoded INFO or FORMAT field value: one of []int32,
// []float32, []string or bool, or nil for a missing value. Scalar
// declarations use a one element slice.
type Value interface{}

// A Variant is the decoded view shared by VCF text records and BCF
// binary records. Coordinates are 0-based half-open.
type Variant interface {
	Chrom() string
	Pos() int
	End() int
	ID() (string, bool)
	Ref() string
	Alts() []string
	Qual() (float32, bool)
	Filters() []string
	Info(key string) (Value, bool)
	Genotype(sample int, key string) (Value, bool)
}

// Record is a parsed VCF text record.
type Record struct {
	h *Header

	chrom   string
	pos     int
	id      string
	ref     string
	alts    []string
	qual    float32
	hasQual bool
	filters []string

	info    map[string]string
	infoKey []string

	format  []string
	samples []string // Raw per-sample genotype strings.
}

// ParseRecord parses one VCF data line against the given header.
func ParseRecord(h *Header, line []byte) (*Record, error) {
	f := strings.Split(string(line), "\t")
	if len(f) < 8 {
		return nil, fmt.Errorf("vcf: missing fields: %q", line)
	}
	r := &Record{h: h, chrom: f[0], id: f[2], ref: f[3]}
	pos, err := strconv.Atoi(f[1])
	if err != nil {
		return nil, fmt.Errorf("vcf: failed to parse position: %v", err)
	}
	r.pos = pos - 1
	if f[4] != "." && f[4] != "" {
		r.alts = strings.Split(f[4], ",")
	}
	if f[5] != "." {
		q, err := strconv.ParseFloat(f[5], 32)
		if err != nil {
			return nil, fmt.Errorf("vcf: failed to parse quality: %v", err)
		}
		r.qual = float32(q)
		r.hasQual = true
	}
	if f[6] != "." && f[6] != "" {
		r.filters = strings.Split(f[6], ";")
	}
	if f[7] != "." && f[7] != "" {
		r.info = map[string]string{}
		for _, kv := range strings.Split(f[7], ";") {
			key, value, _ := strings.Cut(kv, "=")
			r.infoKey = append(r.infoKey, key)
			r.info[key] = value
		}
	}
	if len(f) > 8 {
		r.format = strings.Split(f[8], ":")
		r.samples = f[9:]
	}
	return r, nil
}

// Chrom returns the record's reference name.
func (r *Record) Chrom() string { return r.chrom }

// Pos returns the 0-based start position.
func (r *Record) Pos() int { return r.pos }

// End returns the 0-based exclusive end position: the INFO END field
// when present, otherwise pos + len(ref).
func (r *Record) End() int {
	if v, ok := r.info["END"]; ok {
		if end, err := strconv.Atoi(v); err == nil {
			return end
		}
	}
	return r.pos + len(r.ref)
}

// ID returns the record identifier; ok is false for a missing (".")
// identifier.
func (r *Record) ID() (string, bool) {
	if r.id == "." || r.id == "" {
		return "", false
	}
	return r.id, true
}

// Ref returns the reference allele.
func (r *Record) Ref() string { return r.ref }

// Alts returns the alternate alleles.
func (r *Record) Alts() []string { return r.alts }

// Qual returns the quality score; ok is false for a missing (".")
// score. A present zero is preserved.
func (r *Record) Qual() (float32, bool) { return r.qual, r.hasQual }

// Filters returns the filter names, nil for a missing (".") set.
func (r *Record) Filters() []string { return r.filters }

// InfoKeys returns the INFO keys present in this record in order.
func (r *Record) InfoKeys() []string { return r.infoKey }

// Info returns the decoded value of the named INFO field.
func (r *Record) Info(key string) (Value, bool) {
	raw, ok := r.info[key]
	if !ok {
		return nil, false
	}
	decl, declared := r.h.Info(key)
	if !declared {
		decl = FieldDecl{ID: key, Number: ".", Type: "String"}
	}
	if decl.Type == "Flag" {
		return true, true
	}
	return parseTyped(raw, decl), true
}

// FormatKeys returns the record's FORMAT field names.
func (r *Record) FormatKeys() []string { return r.format }

// Genotype returns the decoded value of the named FORMAT field for
// the sample with the given header index.
func (r *Record) Genotype(sample int, key string) (Value, bool) {
	if sample < 0 || sample >= len(r.samples) {
		return nil, false
	}
	ki := -1
	for i, k := range r.format {
		if k == key {
			ki = i
			break
		}
	}
	if ki < 0 {
		return nil, false
	}
	parts := strings.Split(r.samples[sample], ":")
	if ki >= len(parts) {
		// Trailing fields may be dropped from a sample.
		return nil, false
	}
	raw := parts[ki]
	if raw == "." || raw == "" {
		return nil, true
	}
	if key == "GT" {
		return parseGT(raw), true
	}
	decl, declared := r.h.Format(key)
	if !declared {
		decl = FieldDecl{ID: key, Number: ".", Type: "String"}
	}
	return parseTyped(raw, decl), true
}

// parseGT decodes a genotype call into allele indices. Missing
// alleles decode to -1; phasing separators are not preserved.
func parseGT(raw string) Value {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '/' || r == '|' })
	alleles := make([]int32, 0, len(fields))
	for _, f := range fields {
		if f == "." {
			alleles = append(alleles, -1)
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil
		}
		alleles = append(alleles, int32(v))
	}
	return alleles
}

func parseTyped(raw string, decl FieldDecl) Value {
	switch decl.Type {
	case "Integer":
		parts := strings.Split(raw, ",")
		v := make([]int32, 0, len(parts))
		for _, p := range parts {
			if p == "." || p == "" {
				continue
			}
			i, err := strconv.Atoi(p)
			if err != nil {
				return nil
			}
			v = append(v, int32(i))
		}
		if len(v) == 0 {
			return nil
		}
		return v
	case "Float":
		parts := strings.Split(raw, ",")
		v := make([]float32, 0, len(parts))
		for _, p := range parts {
			if p == "." || p == "" {
				continue
			}
			f, err := strconv.ParseFloat(p, 32)
			if err != nil {
				return nil
			}
			v = append(v, float32(f))
		}
		if len(v) == 0 {
			return nil
		}
		return v
	default:
		if decl.IsList() {
			return strings.Split(raw, ",")
		}
		return []string{raw}
	}
}
