// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gxf implements GTF and GFF3 reading and their scanners.
// The two dialects share the nine column layout and differ in the
// attribute grammar of the final column.
package gxf

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Dialect selects the attribute grammar.
type Dialect int

const (
	// GTF attributes are `key "value";` pairs, all string valued.
	GTF Dialect = iota

	// GFF attributes are `key=val[,val...];` pairs; values may be
	// lists and use %XX escapes.
	GFF
)

// Record is a parsed GTF/GFF feature line.
type Record struct {
	Seqid    string
	Source   string // Empty for ".".
	Type     string
	Start    int // 0-based.
	End      int // Exclusive.
	Score    float32
	HasScore bool
	Strand   string // Empty for ".".
	Phase    int // -1 for ".".

	attrKeys []string
	attrs    map[string][]string
}

// Attr returns the values of the named attribute.
func (r *Record) Attr(key string) ([]string, bool) {
	v, ok := r.attrs[key]
	return v, ok
}

// AttrKeys returns the record's attribute keys in order.
func (r *Record) AttrKeys() []string { return r.attrKeys }

// ParseRecord parses one feature line using the given attribute
// dialect.
func ParseRecord(dialect Dialect, line []byte) (*Record, error) {
	f := strings.Split(string(line), "\t")
	if len(f) < 8 {
		return nil, fmt.Errorf("gxf: missing fields: %q", line)
	}
	r := &Record{Seqid: f[0], Type: f[2]}
	if f[1] != "." {
		r.Source = f[1]
	}
	start, err := strconv.Atoi(f[3])
	if err != nil {
		return nil, fmt.Errorf("gxf: failed to parse start: %v", err)
	}
	r.Start = start - 1
	r.End, err = strconv.Atoi(f[4])
	if err != nil {
		return nil, fmt.Errorf("gxf: failed to parse end: %v", err)
	}
	if f[5] != "." {
		score, err := strconv.ParseFloat(f[5], 32)
		if err != nil {
			return nil, fmt.Errorf("gxf: failed to parse score: %v", err)
		}
		r.Score = float32(score)
		r.HasScore = true
	}
	if f[6] != "." {
		r.Strand = f[6]
	}
	r.Phase = -1
	if f[7] != "." {
		phase, err := strconv.Atoi(f[7])
		if err != nil {
			return nil, fmt.Errorf("gxf: failed to parse phase: %v", err)
		}
		r.Phase = phase
	}
	if len(f) > 8 && f[8] != "." && f[8] != "" {
		switch dialect {
		case GTF:
			r.attrKeys, r.attrs = parseGTFAttrs(f[8])
		case GFF:
			r.attrKeys, r.attrs = parseGFFAttrs(f[8])
		}
	}
	return r, nil
}

// parseGTFAttrs parses `key "value"; key "value";` pairs. Repeated
// keys accumulate values.
func parseGTFAttrs(s string) ([]string, map[string][]string) {
	var keys []string
	attrs := map[string][]string{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, " ")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.TrimPrefix(value, `"`)
		value = strings.TrimSuffix(value, `"`)
		if _, seen := attrs[key]; !seen {
			keys = append(keys, key)
		}
		attrs[key] = append(attrs[key], value)
	}
	return keys, attrs
}

// parseGFFAttrs parses `key=val[,val...];` pairs with %XX escapes.
func parseGFFAttrs(s string) ([]string, map[string][]string) {
	var keys []string
	attrs := map[string][]string{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		var values []string
		for _, v := range strings.Split(value, ",") {
			if u, err := url.QueryUnescape(v); err == nil {
				v = u
			}
			values = append(values, v)
		}
		if _, seen := attrs[key]; !seen {
			keys = append(keys, key)
		}
		attrs[key] = append(attrs[key], values...)
	}
	return keys, attrs
}

// An AttrDef describes one attribute column. List marks attributes
// observed or declared with multiple values, which materialize as
// list columns.
type AttrDef struct {
	Name string
	List bool
}

// An AttrScanner accumulates attribute definitions observed over
// records, preserving first-seen order.
type AttrScanner struct {
	order []string
	defs  map[string]AttrDef
}

// NewAttrScanner returns an empty AttrScanner.
func NewAttrScanner() *AttrScanner {
	return &AttrScanner{defs: map[string]AttrDef{}}
}

// Push records the attributes present on rec.
func (s *AttrScanner) Push(rec *Record) {
	for _, key := range rec.attrKeys {
		def, ok := s.defs[key]
		if !ok {
			s.order = append(s.order, key)
			def = AttrDef{Name: key}
		}
		if len(rec.attrs[key]) > 1 {
			def.List = true
		}
		s.defs[key] = def
	}
}

// Defs returns the accumulated definitions in first-seen order.
func (s *AttrScanner) Defs() []AttrDef {
	defs := make([]AttrDef, 0, len(s.order))
	for _, key := range s.order {
		defs = append(defs, s.defs[key])
	}
	return defs
}
