// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fai implements FAI fasta sequence file index handling,
// including the GZI offset map used with BGZF-compressed sequence
// files.
package fai

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	oxbow "github.com/abdenlab/oxbow-go"
)

const (
	nameField = iota
	lengthField
	startField
	basesField
	bytesField
)

// ErrNonUnique is returned for input with repeated sequence names.
var ErrNonUnique = errors.New("fai: non-unique record name")

// Index is an FAI index. Names preserves the order of the records in
// the index file.
type Index struct {
	Names   []string
	records map[string]Record
}

// Get returns the Record with the given name and whether it exists.
func (idx Index) Get(name string) (Record, bool) {
	r, ok := idx.records[name]
	return r, ok
}

// Record is a single FAI index record.
type Record struct {
	// Name is the name of the sequence.
	Name string
	// Length is the length of the sequence.
	Length int
	// Start is the starting seek offset of the sequence.
	Start int64
	// BasesPerLine is the number of sequence bases per line.
	BasesPerLine int
	// BytesPerLine is the number of bytes used to represent each
	// line.
	BytesPerLine int
}

// Position returns the uncompressed seek offset of the sequence
// position p for the given Record.
func (r Record) Position(p int) (int64, error) {
	if p < 0 || r.Length < p {
		return 0, fmt.Errorf("fai: position out of range: %d", p)
	}
	return r.position(p), nil
}

func (r Record) position(p int) int64 {
	return r.Start + int64(p/r.BasesPerLine*r.BytesPerLine+p%r.BasesPerLine)
}

// EndOfLineOffset returns the number of sequence bytes until the end
// of the line holding position p.
func (r Record) EndOfLineOffset(p int) int {
	if p/r.BasesPerLine == r.Length/r.BasesPerLine {
		return r.Length - p
	}
	return r.BasesPerLine - p%r.BasesPerLine
}

// NewIndex returns an Index constructed from the FASTA sequence in
// the provided io.Reader. It allows region slicing of sequence files
// that ship without a .fai sidecar.
func NewIndex(fasta io.Reader) (Index, error) {
	sc := bufio.NewScanner(fasta)
	sc.Buffer(nil, 1<<20)

	idx := Index{records: make(map[string]Record)}
	var (
		rec          Record
		offset       int64
		wantDescLine bool
	)
	flush := func() {
		if rec.Name != "" {
			idx.Names = append(idx.Names, rec.Name)
			idx.records[rec.Name] = rec
			rec = Record{}
		}
	}
	for sc.Scan() {
		line := sc.Bytes()
		width := len(line) + 1
		b := bytes.TrimSpace(line)
		if len(b) == 0 {
			offset += int64(width)
			continue
		}
		if b[0] == '>' {
			flush()
			rec.Name = string(bytes.SplitN(b[1:], []byte{' '}, 2)[0])
			if _, exists := idx.records[rec.Name]; exists {
				return Index{}, fmt.Errorf("fai: duplicate sequence identifier %s at %d", rec.Name, offset)
			}
			rec.Start = offset + int64(width)
			wantDescLine = false
		} else {
			if wantDescLine {
				return Index{}, fmt.Errorf("fai: unexpected short line before offset %d", offset)
			}
			switch {
			case rec.BytesPerLine == 0:
				rec.BytesPerLine = width
			case width > rec.BytesPerLine:
				return Index{}, fmt.Errorf("fai: unexpected long line at offset %d", offset)
			case width < rec.BytesPerLine:
				wantDescLine = true
			}
			if rec.BasesPerLine == 0 {
				rec.BasesPerLine = len(b)
			}
			rec.Length += len(b)
		}
		offset += int64(width)
	}
	flush()
	return idx, sc.Err()
}

// ReadFrom returns an Index from the stream provided by an io.Reader.
func ReadFrom(r io.Reader) (Index, error) {
	tr := csv.NewReader(r)
	tr.Comma = '\t'
	tr.FieldsPerRecord = 5
	idx := Index{records: make(map[string]Record)}
	for line := 1; ; line++ {
		rec, err := tr.Read()
		if err == io.EOF {
			return idx, nil
		}
		if err != nil {
			return Index{}, err
		}
		if _, exists := idx.records[rec[nameField]]; exists {
			return Index{}, fmt.Errorf("fai: line %d: %v", line, ErrNonUnique)
		}
		length, err := strconv.Atoi(rec[lengthField])
		if err != nil {
			return Index{}, fmt.Errorf("fai: line %d: %v", line, err)
		}
		start, err := strconv.ParseInt(rec[startField], 10, 64)
		if err != nil {
			return Index{}, fmt.Errorf("fai: line %d: %v", line, err)
		}
		bases, err := strconv.Atoi(rec[basesField])
		if err != nil {
			return Index{}, fmt.Errorf("fai: line %d: %v", line, err)
		}
		width, err := strconv.Atoi(rec[bytesField])
		if err != nil {
			return Index{}, fmt.Errorf("fai: line %d: %v", line, err)
		}
		idx.Names = append(idx.Names, rec[nameField])
		idx.records[rec[nameField]] = Record{
			Name:         rec[nameField],
			Length:       length,
			Start:        start,
			BasesPerLine: bases,
			BytesPerLine: width,
		}
	}
}

// Open reads an FAI index from the given source.
func Open(src oxbow.Source) (Index, error) {
	rc, err := src.Open()
	if err != nil {
		return Index{}, err
	}
	defer rc.Close()
	return ReadFrom(rc)
}
