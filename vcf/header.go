// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vcf implements VCF reading and the shared variant model
// used by the VCF and BCF scanners. The formats are described in the
// VCF specification.
//
// http://samtools.github.io/hts-specs/VCFv4.3.pdf
package vcf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// A Contig is one ##contig header entry.
type Contig struct {
	Name   string
	Length int
}

// A FieldDecl is one ##INFO or ##FORMAT header entry. Number holds
// the declared cardinality: a non-negative integer, or one of "A",
// "R", "G" and "." for per-allele, per-allele-with-ref, per-genotype
// and unknown counts.
type FieldDecl struct {
	ID          string
	Number      string
	Type        string
	Description string
}

// IsList reports whether the declared cardinality implies a list
// column.
func (d FieldDecl) IsList() bool {
	switch d.Number {
	case "0", "1":
		return false
	}
	return true
}

// Header is a VCF or BCF header: the contig dictionary, the INFO,
// FORMAT and FILTER declarations, and the sample names.
type Header struct {
	FileFormat string
	Contigs    []Contig
	Infos      []FieldDecl
	Formats    []FieldDecl
	Filters    []string
	Samples    []string

	// Lines retains all ## lines verbatim.
	Lines []string

	contigIDs map[string]int
	infoIDs   map[string]int
	formatIDs map[string]int

	// dict is the BCF dictionary of strings: FILTER, INFO and
	// FORMAT identifiers addressed by their IDX.
	dict []string
}

// NewHeader returns an empty Header.
func NewHeader() *Header {
	return &Header{
		contigIDs: map[string]int{},
		infoIDs:   map[string]int{},
		formatIDs: map[string]int{},
	}
}

// ContigID returns the id of the named contig, or -1.
func (h *Header) ContigID(name string) int {
	id, ok := h.contigIDs[name]
	if !ok {
		return -1
	}
	return id
}

// ContigNames returns the contig names in dictionary order.
func (h *Header) ContigNames() []string {
	names := make([]string, len(h.Contigs))
	for i, c := range h.Contigs {
		names[i] = c.Name
	}
	return names
}

// Info returns the declaration of the named INFO field.
func (h *Header) Info(id string) (FieldDecl, bool) {
	i, ok := h.infoIDs[id]
	if !ok {
		return FieldDecl{}, false
	}
	return h.Infos[i], true
}

// Format returns the declaration of the named FORMAT field.
func (h *Header) Format(id string) (FieldDecl, bool) {
	i, ok := h.formatIDs[id]
	if !ok {
		return FieldDecl{}, false
	}
	return h.Formats[i], true
}

// DictString returns the string with the given BCF dictionary index.
func (h *Header) DictString(idx int) (string, bool) {
	if idx < 0 || idx >= len(h.dict) {
		return "", false
	}
	return h.dict[idx], true
}

// SampleIndex returns the index of the named sample, or -1.
func (h *Header) SampleIndex(name string) int {
	for i, s := range h.Samples {
		if s == name {
			return i
		}
	}
	return -1
}

// ReadHeader parses a VCF header from r, consuming all ## lines and
// the #CHROM column line.
func ReadHeader(r *bufio.Reader) (*Header, error) {
	h := NewHeader()
	dictIdx := map[int]string{}
	next := 0
	// PASS occupies dictionary index 0 unless redeclared.
	ensurePass := func() {
		if next == 0 {
			dictIdx[0] = "PASS"
			next = 1
		}
	}
	for {
		p, err := r.Peek(1)
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		if p[0] != '#' {
			break
		}
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, "##") {
			h.Lines = append(h.Lines, line)
			key, value, _ := strings.Cut(line[2:], "=")
			switch key {
			case "fileformat":
				h.FileFormat = value
			case "contig":
				attrs := parseStructured(value)
				length, _ := strconv.Atoi(attrs["length"])
				h.contigIDs[attrs["ID"]] = len(h.Contigs)
				h.Contigs = append(h.Contigs, Contig{Name: attrs["ID"], Length: length})
			case "INFO", "FORMAT", "FILTER":
				attrs := parseStructured(value)
				id := attrs["ID"]
				if key != "FILTER" || id != "PASS" {
					ensurePass()
				}
				idx := next
				if s, ok := attrs["IDX"]; ok {
					idx, err = strconv.Atoi(s)
					if err != nil {
						return nil, fmt.Errorf("vcf: invalid IDX in header line: %q", line)
					}
				}
				if _, taken := dictIdx[idx]; !taken {
					dictIdx[idx] = id
					if idx >= next {
						next = idx + 1
					}
				}
				switch key {
				case "FILTER":
					h.Filters = append(h.Filters, id)
				case "INFO":
					if _, dup := h.infoIDs[id]; !dup {
						h.infoIDs[id] = len(h.Infos)
						h.Infos = append(h.Infos, FieldDecl{
							ID:          id,
							Number:      attrs["Number"],
							Type:        attrs["Type"],
							Description: attrs["Description"],
						})
					}
				case "FORMAT":
					if _, dup := h.formatIDs[id]; !dup {
						h.formatIDs[id] = len(h.Formats)
						h.Formats = append(h.Formats, FieldDecl{
							ID:          id,
							Number:      attrs["Number"],
							Type:        attrs["Type"],
							Description: attrs["Description"],
						})
					}
				}
			}
			continue
		}
		// #CHROM line.
		cols := strings.Split(line, "\t")
		if len(cols) < 8 || cols[0] != "#CHROM" {
			return nil, fmt.Errorf("vcf: malformed column header line: %q", line)
		}
		if len(cols) > 9 {
			h.Samples = append(h.Samples, cols[9:]...)
		}
		ensurePass()
		h.dict = make([]string, next)
		for idx, id := range dictIdx {
			if idx < len(h.dict) {
				h.dict[idx] = id
			}
		}
		return h, nil
	}
	return nil, errors.New("vcf: missing column header line")
}

// parseStructured parses a <key=value,...> structured header value.
// Quoted values may contain commas and escaped quotes.
func parseStructured(s string) map[string]string {
	attrs := map[string]string{}
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := s[:eq]
		s = s[eq+1:]
		var value string
		if len(s) > 0 && s[0] == '"' {
			end := 1
			for end < len(s) && (s[end] != '"' || s[end-1] == '\\') {
				end++
			}
			value = strings.ReplaceAll(s[1:end], `\"`, `"`)
			s = s[end:]
			s = strings.TrimPrefix(s, `"`)
			s = strings.TrimPrefix(s, ",")
		} else {
			end := strings.IndexByte(s, ',')
			if end < 0 {
				value, s = s, ""
			} else {
				value, s = s[:end], s[end+1:]
			}
		}
		attrs[key] = value
	}
	return attrs
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
