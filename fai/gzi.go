// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fai

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/bgzf"
)

// GZI maps uncompressed byte offsets to BGZF virtual positions. It is
// required to use an FAI index over a BGZF-compressed sequence file:
// FAI offsets address the uncompressed text and must be translated to
// virtual positions before seeking.
type GZI struct {
	// entries hold one (compressed, uncompressed) offset pair per
	// block boundary, excluding the implicit (0, 0) first entry.
	compressed   []int64
	uncompressed []int64
}

// ReadGZI reads a GZI offset map from the given io.Reader.
func ReadGZI(r io.Reader) (*GZI, error) {
	var n uint64
	err := binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return nil, err
	}
	idx := &GZI{
		compressed:   make([]int64, n),
		uncompressed: make([]int64, n),
	}
	for i := uint64(0); i < n; i++ {
		var centry, uentry uint64
		err = binary.Read(r, binary.LittleEndian, &centry)
		if err != nil {
			return nil, fmt.Errorf("fai: failed to read gzi entry: %v", err)
		}
		err = binary.Read(r, binary.LittleEndian, &uentry)
		if err != nil {
			return nil, fmt.Errorf("fai: failed to read gzi entry: %v", err)
		}
		idx.compressed[i] = int64(centry)
		idx.uncompressed[i] = int64(uentry)
		if i > 0 && idx.uncompressed[i] <= idx.uncompressed[i-1] {
			return nil, errors.New("fai: gzi entries out of order")
		}
	}
	return idx, nil
}

// OpenGZI reads a GZI offset map from the given source.
func OpenGZI(src oxbow.Source) (*GZI, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadGZI(rc)
}

// Translate returns the virtual position of the given uncompressed
// offset.
func (g *GZI) Translate(off int64) bgzf.Offset {
	// Find the last block whose uncompressed start is at or before
	// off. The implicit first block starts at (0, 0).
	i := sort.Search(len(g.uncompressed), func(i int) bool { return g.uncompressed[i] > off })
	if i == 0 {
		return bgzf.Offset{File: 0, Block: uint16(off)}
	}
	return bgzf.Offset{
		File:  g.compressed[i-1],
		Block: uint16(off - g.uncompressed[i-1]),
	}
}
