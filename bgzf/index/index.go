// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package index provides common code for index-driven access to BGZF
// streams: chunk merge strategies and a chunk-limited reader.
package index

import (
	"errors"
	"io"

	"github.com/abdenlab/oxbow-go/bgzf"
)

var (
	ErrNoReference = errors.New("index: no reference")
	ErrInvalid     = errors.New("index: invalid interval")
)

// A ChunkReader reads the decompressed content of a sorted set of
// chunks, seeking over the gaps between them. Reads never return data
// at or beyond the End of the current chunk.
type ChunkReader struct {
	r      *bgzf.Reader
	chunks []bgzf.Chunk
}

// NewChunkReader returns a ChunkReader reading from r, limited to the
// provided chunks, which must be sorted by Begin virtual offset.
func NewChunkReader(r *bgzf.Reader, chunks []bgzf.Chunk) (*ChunkReader, error) {
	if len(chunks) != 0 {
		err := r.Seek(chunks[0].Begin)
		if err != nil {
			return nil, err
		}
	}
	return &ChunkReader{r: r, chunks: chunks}, nil
}

// Read satisfies the io.Reader interface.
func (r *ChunkReader) Read(p []byte) (int, error) {
	for {
		if len(r.chunks) == 0 {
			return 0, io.EOF
		}
		cur := r.r.Tell()
		end := r.chunks[0].End
		if cur.Virtual() >= end.Virtual() {
			r.chunks = r.chunks[1:]
			if len(r.chunks) == 0 {
				return 0, io.EOF
			}
			err := r.r.Seek(r.chunks[0].Begin)
			if err != nil {
				return 0, err
			}
			continue
		}
		// Limit the read so it cannot pass the chunk end. A single
		// bgzf read never spans a block, so only a shared final
		// block needs truncation.
		want := len(p)
		if cur.File == end.File {
			want = min(want, int(end.Block)-int(cur.Block))
		}
		n, err := r.r.Read(p[:want])
		if n != 0 && err == io.EOF {
			err = nil
		}
		if n != 0 || err != nil {
			return n, err
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
