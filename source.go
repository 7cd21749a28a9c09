// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package oxbow

import (
	"errors"
	"io"
	"os"
)

// ErrNotSeekable is returned when an operation requiring random access
// is attempted on a source that is not seekable.
var ErrNotSeekable = errors.New("oxbow: source is not seekable")

// A Source describes how to obtain a byte stream for a scanner. Open
// must return a fresh stream positioned at offset zero each time it is
// invoked. Seekable reports whether streams returned by Open implement
// io.Seeker; operations that require random access assert this.
//
// A Source may be invoked more than once if the scanner is restarted,
// otherwise exactly once. Index files are delivered as a separate
// Source so the data and its index may use independent transports.
type Source struct {
	Open     func() (io.ReadCloser, error)
	Seekable bool
}

// FileSource returns a Source reading from the file at the given path.
func FileSource(path string) Source {
	return Source{
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
		Seekable: true,
	}
}

// ReaderSource returns a one-shot Source reading from r. The returned
// Source is not seekable unless r implements io.Seeker, and is not
// restartable.
func ReaderSource(r io.Reader) Source {
	_, seekable := r.(io.Seeker)
	used := false
	return Source{
		Open: func() (io.ReadCloser, error) {
			if used {
				return nil, errors.New("oxbow: source is not restartable")
			}
			used = true
			if rc, ok := r.(io.ReadCloser); ok {
				return rc, nil
			}
			return io.NopCloser(r), nil
		},
		Seekable: seekable,
	}
}

// BytesSource returns a restartable, seekable Source over the given
// byte slice. The slice is shared, not copied, and must not be altered
// while the Source is in use.
func BytesSource(b []byte) Source {
	return Source{
		Open: func() (io.ReadCloser, error) {
			return newBytesReader(b), nil
		},
		Seekable: true,
	}
}

type bytesReader struct {
	b   []byte
	off int64
}

func newBytesReader(b []byte) *bytesReader { return &bytesReader{b: b} }

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.off >= int64(len(r.b)) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.off:])
	r.off += int64(n)
	return n, nil
}

func (r *bytesReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.b)) {
		return 0, io.EOF
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *bytesReader) Close() error { return nil }

func (r *bytesReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		r.off = offset
	case io.SeekCurrent:
		r.off += offset
	case io.SeekEnd:
		r.off = int64(len(r.b)) + offset
	default:
		return 0, errors.New("oxbow: invalid whence")
	}
	if r.off < 0 {
		return 0, errors.New("oxbow: negative position")
	}
	return r.off, nil
}
