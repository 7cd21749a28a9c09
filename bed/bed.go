// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bed implements BED reading and the BED scanner using the
// BEDn+m schema notation.
package bed

import (
	"fmt"
	"strconv"
	"strings"
)

// A Schema is a BEDn+[m] column interpretation: n standard columns
// followed by m custom string columns. A negative m marks an
// undefined number of custom columns, collapsed into a single "rest"
// column.
type Schema struct {
	N int
	M int
}

// StandardNames lists the canonical names of the twelve standard BED
// columns.
var StandardNames = []string{
	"chrom", "start", "end", "name", "score", "strand",
	"thickStart", "thickEnd", "itemRgb", "blockCount",
	"blockSizes", "blockStarts",
}

// ParseSchema parses a BEDn+[m] specifier, case-insensitively:
// "bed" (equivalent to bed6), "bedN", "bedN+M" or "bedN+".
func ParseSchema(s string) (Schema, error) {
	t := strings.ToLower(s)
	if t == "bed" {
		return Schema{N: 6}, nil
	}
	if !strings.HasPrefix(t, "bed") {
		return Schema{}, fmt.Errorf("bed: invalid schema %q", s)
	}
	t = t[3:]
	rest := ""
	m := 0
	if i := strings.IndexByte(t, '+'); i >= 0 {
		t, rest = t[:i], t[i+1:]
		if rest == "" {
			m = -1
		} else {
			var err error
			m, err = strconv.Atoi(rest)
			if err != nil || m < 0 {
				return Schema{}, fmt.Errorf("bed: invalid schema %q", s)
			}
		}
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return Schema{}, fmt.Errorf("bed: invalid schema %q", s)
	}
	if n < 3 || n > 12 {
		return Schema{}, fmt.Errorf("bed: invalid schema %q: n must be in [3, 12]", s)
	}
	switch n {
	case 10, 11:
		return Schema{}, fmt.Errorf("bed: invalid schema %q: block columns come in threes", s)
	}
	return Schema{N: n, M: m}, nil
}

// FieldNames returns the column names of the schema: the first N
// standard names followed by the custom columns, named col_K by their
// 1-based overall position. An undefined custom count yields one
// "rest" column.
func (s Schema) FieldNames() []string {
	names := append([]string(nil), StandardNames[:s.N]...)
	if s.M < 0 {
		return append(names, "rest")
	}
	for i := 0; i < s.M; i++ {
		names = append(names, fmt.Sprintf("col_%d", s.N+i+1))
	}
	return names
}

// String returns the specifier form of the schema.
func (s Schema) String() string {
	switch {
	case s.M < 0:
		return fmt.Sprintf("bed%d+", s.N)
	case s.M == 0:
		return fmt.Sprintf("bed%d", s.N)
	}
	return fmt.Sprintf("bed%d+%d", s.N, s.M)
}

// Record is a parsed BED line: the standard columns followed by the
// custom column values.
type Record struct {
	Chrom string
	Start int
	End   int

	// Standard holds the raw text of standard columns 4..N.
	Standard []string

	// Custom holds the custom column values.
	Custom []string
}

// ParseRecord parses one BED line against the schema. Lines with
// fewer than N columns are an error; with a defined custom count,
// missing custom columns are empty and extras are an error.
func ParseRecord(schema Schema, line []byte) (*Record, error) {
	f := strings.Split(string(line), "\t")
	if len(f) < schema.N {
		return nil, fmt.Errorf("bed: expected at least %d columns, got %d", schema.N, len(f))
	}
	if schema.M >= 0 && len(f) > schema.N+schema.M {
		return nil, fmt.Errorf("bed: expected at most %d columns, got %d", schema.N+schema.M, len(f))
	}
	start, err := strconv.Atoi(f[1])
	if err != nil {
		return nil, fmt.Errorf("bed: failed to parse start: %v", err)
	}
	end, err := strconv.Atoi(f[2])
	if err != nil {
		return nil, fmt.Errorf("bed: failed to parse end: %v", err)
	}
	return &Record{
		Chrom:    f[0],
		Start:    start,
		End:      end,
		Standard: f[3:schema.N],
		Custom:   f[schema.N:],
	}, nil
}
