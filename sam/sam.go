// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sam implements SAM format reading and the shared alignment
// record model used by the SAM and BAM scanners. The SAM format is
// described in the SAM specification.
//
// http://samtools.github.io/hts-specs/SAMv1.pdf
package sam

import (
	"bufio"
	"io"
)

// Reader implements SAM text format reading.
type Reader struct {
	r *bufio.Reader
	h *Header

	offset int64 // Uncompressed byte offset of the next line.
}

// NewReader returns a new Reader, reading from the given io.Reader.
// Header lines are consumed eagerly.
func NewReader(r io.Reader) (*Reader, error) {
	sr := &Reader{
		r: bufio.NewReader(r),
		h: NewHeader(),
	}

	var b []byte
	for {
		p, err := sr.r.Peek(1)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if p[0] != '@' {
			break
		}
		l, err := sr.r.ReadBytes('\n')
		if err != nil {
			return nil, io.ErrUnexpectedEOF
		}
		sr.offset += int64(len(l))
		b = append(b, l...)
	}

	if len(b) != 0 {
		err := sr.h.UnmarshalText(b)
		if err != nil {
			return nil, err
		}
	}
	return sr, nil
}

// Header returns the SAM Header held by the Reader.
func (r *Reader) Header() *Header {
	return r.h
}

// Offset returns the uncompressed byte offset of the next record.
func (r *Reader) Offset() int64 { return r.offset }

// Read returns the next Record in the SAM stream.
func (r *Reader) Read() (*Record, error) {
	b, err := r.r.ReadBytes('\n')
	if len(b) == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	r.offset += int64(len(b))
	if b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	if len(b) != 0 && b[len(b)-1] == '\r' {
		b = b[:len(b)-1]
	}
	var rec Record
	if len(r.h.Refs()) == 0 {
		// Headerless SAM: records carry free reference names.
		err = rec.UnmarshalSAM(nil, b)
	} else {
		err = rec.UnmarshalSAM(r.h, b)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

const wordBits = 31

func validLen(i int) bool { return 1 <= i && i <= 1<<wordBits-1 }
func validPos(i int) bool { return -1 <= i && i <= (1<<wordBits-1)-1 } // 0-based.
