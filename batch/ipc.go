// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package batch

import (
	"bytes"
	"errors"
	"io"

	"github.com/apache/arrow/go/v11/arrow/ipc"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"go.uber.org/multierr"
)

var (
	errInvalidWhence    = errors.New("batch: invalid seek whence")
	errNegativePosition = errors.New("batch: negative seek position")
)

// seekBuffer is an in-memory io.WriteSeeker, used to satisfy the Arrow
// IPC file writer's seeking requirement when the caller only provides
// an io.Writer.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	copy(s.buf[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, errInvalidWhence
	}
	if abs < 0 {
		return 0, errNegativePosition
	}
	s.pos = int(abs)
	return abs, nil
}

// WriteIPC drains the stream into w in the Arrow IPC file (Feather)
// format. The stream is closed afterwards.
func WriteIPC(w io.Writer, s *Stream) error {
	sb := &seekBuffer{}
	fw, err := ipc.NewFileWriter(sb,
		ipc.WithSchema(s.Schema()),
		ipc.WithAllocator(memory.DefaultAllocator),
	)
	if err != nil {
		s.Close()
		return err
	}
	for s.Next() {
		err = fw.Write(s.Batch())
		if err != nil {
			break
		}
	}
	err = multierr.Combine(err, s.Err(), fw.Close(), s.Close())
	if err != nil {
		return err
	}
	_, err = w.Write(sb.buf)
	return err
}

// IPCBytes drains the stream and returns the Arrow IPC file encoding
// as a single blob.
func IPCBytes(s *Stream) ([]byte, error) {
	var buf bytes.Buffer
	err := WriteIPC(&buf, s)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
