// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import "io"

// A LineReader reads newline-terminated lines from a BGZF stream,
// reporting the virtual position of the start of each line. It is used
// by the tabix-indexed text formats, where index chunks bound lines by
// virtual position.
type LineReader struct {
	r   *Reader
	buf []byte
}

// NewLineReader returns a LineReader reading from r.
func NewLineReader(r *Reader) *LineReader {
	return &LineReader{r: r, buf: make([]byte, 0, 512)}
}

// Tell returns the virtual position of the next line to be read.
func (l *LineReader) Tell() Offset { return l.r.Tell() }

// Seek positions the underlying Reader at the given virtual position.
func (l *LineReader) Seek(off Offset) error { return l.r.Seek(off) }

// ReadLine returns the next line with its terminating newline and any
// preceding carriage return removed, along with the virtual position
// of the line's first byte. The returned slice is reused by subsequent
// calls. At end of input a final unterminated line is returned with a
// nil error; the next call returns io.EOF.
func (l *LineReader) ReadLine() ([]byte, Offset, error) {
	start := l.r.Tell()
	l.buf = l.buf[:0]
	for {
		b, err := l.r.ReadByte()
		if err != nil {
			if err == io.EOF && len(l.buf) != 0 {
				return trimCR(l.buf), start, nil
			}
			return nil, start, err
		}
		if b == '\n' {
			return trimCR(l.buf), start, nil
		}
		l.buf = append(l.buf, b)
	}
}

func trimCR(b []byte) []byte {
	if len(b) != 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}
