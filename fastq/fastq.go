// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fastq implements FASTQ reading and the FASTQ scanner.
package fastq

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// Record is a FASTQ record.
type Record struct {
	Name        string
	Description string
	Sequence    []byte
	Quality     []byte
}

// Reader parses FASTQ records from a byte stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a Reader parsing FASTQ records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read returns the next Record. The four record lines are validated:
// the sequence and quality lines must have equal length and the third
// line must begin with '+'.
func (r *Reader) Read() (*Record, error) {
	head, err := r.readLine()
	if err != nil {
		return nil, err
	}
	if len(head) == 0 || head[0] != '@' {
		return nil, fmt.Errorf("fastq: malformed header line: %q", head)
	}
	seq, err := r.readLine()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	plus, err := r.readLine()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if len(plus) == 0 || plus[0] != '+' {
		return nil, fmt.Errorf("fastq: malformed separator line: %q", plus)
	}
	qual, err := r.readLine()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if len(seq) != len(qual) {
		return nil, fmt.Errorf("fastq: sequence/quality length mismatch: %d != %d", len(seq), len(qual))
	}
	rec := &Record{
		Sequence: append([]byte(nil), seq...),
		Quality:  append([]byte(nil), qual...),
	}
	name, description, _ := bytes.Cut(bytes.TrimSpace(head[1:]), []byte{' '})
	rec.Name = string(name)
	rec.Description = string(description)
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

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
