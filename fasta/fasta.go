// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fasta implements FASTA reading and the FASTA scanner.
package fasta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// Record is a FASTA record.
type Record struct {
	Name        string
	Description string
	Sequence    []byte
}

// Reader parses FASTA records from a byte stream.
type Reader struct {
	r    *bufio.Reader
	next []byte // Pending description line.
	eof  bool
}

// NewReader returns a Reader parsing FASTA records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read returns the next Record. The sequence is unwrapped across
// lines.
func (r *Reader) Read() (*Record, error) {
	if r.eof && r.next == nil {
		return nil, io.EOF
	}
	desc := r.next
	r.next = nil
	for desc == nil {
		line, err := r.readLine()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		if line[0] != '>' {
			return nil, fmt.Errorf("fasta: unexpected line before header: %q", line)
		}
		desc = line
	}

	rec := &Record{}
	name, description, _ := bytes.Cut(bytes.TrimSpace(desc[1:]), []byte{' '})
	rec.Name = string(name)
	rec.Description = string(description)

	for {
		line, err := r.readLine()
		if err == io.EOF {
			r.eof = true
			break
		}
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			r.next = append([]byte(nil), line...)
			break
		}
		rec.Sequence = append(rec.Sequence, bytes.TrimSpace(line)...)
	}
	return rec, nil
}

func (r *Reader) readLine() ([]byte, error) {
	line, err := r.r.ReadBytes('\n')
	if len(line) == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	if line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) != 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, nil
}
