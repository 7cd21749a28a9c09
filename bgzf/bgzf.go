// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bgzf implements BGZF block decompression with virtual
// position addressing, as used by the BAM, BCF and tabix ecosystems.
package bgzf

import (
	"errors"
	"io"
)

const (
	// BlockSize is the size of an input data block.
	BlockSize = 0x0ff00

	// MaxBlockSize is the maximum size of a decompressed block.
	MaxBlockSize = 0x10000
)

const (
	bgzfExtra = "BC\x02\x00\x00\x00"
	minFrame  = 20 + len(bgzfExtra) // Minimum bgzf header+footer length.

	// Magic EOF block.
	magicBlock = "\x1f\x8b\x08\x04\x00\x00\x00\x00\x00\xff\x06\x00\x42\x43\x02\x00\x1b\x00\x03\x00\x00\x00\x00\x00\x00\x00\x00\x00"
)

var bgzfExtraPrefix = []byte(bgzfExtra[:4])

var (
	// ErrNoBlockSize is returned when a gzip member lacks the BGZF
	// BC extra subfield.
	ErrNoBlockSize = errors.New("bgzf: could not determine block size")

	// ErrBlockOverflow is returned when a block decompresses to more
	// than MaxBlockSize bytes.
	ErrBlockOverflow = errors.New("bgzf: block overflow")

	// ErrCorrupt is returned when a block's compressed length does
	// not agree with the BC extra subfield.
	ErrCorrupt = errors.New("bgzf: corrupt block")

	// ErrNotASeeker is returned by Seek when the underlying reader
	// does not support random access.
	ErrNotASeeker = errors.New("bgzf: not a seeker")
)

// An Offset is a virtual position in a BGZF stream: the file offset of
// the start of a gzip member and an offset within that member's
// decompressed data.
type Offset struct {
	File  int64
	Block uint16
}

// Virtual returns the 64-bit on-disk encoding of the Offset,
// File<<16 | Block.
func (o Offset) Virtual() int64 {
	return o.File<<16 | int64(o.Block)
}

// OffsetFromVirtual returns the Offset encoded by the given 64-bit
// virtual position.
func OffsetFromVirtual(v int64) Offset {
	return Offset{File: v >> 16, Block: uint16(v)}
}

// A Chunk is a half-open interval of virtual positions, normally
// obtained from an index query.
type Chunk struct {
	Begin Offset
	End   Offset
}

// IsZero reports whether the chunk is the zero value.
func (c Chunk) IsZero() bool { return c == Chunk{} }

// CheckEOF returns whether the end of the stream readable from ra,
// which has the given size, holds the BGZF magic EOF block.
func CheckEOF(ra io.ReaderAt, size int64) (bool, error) {
	if size < int64(len(magicBlock)) {
		return false, nil
	}
	b := make([]byte, len(magicBlock))
	_, err := ra.ReadAt(b, size-int64(len(magicBlock)))
	if err != nil {
		return false, err
	}
	for i := range b {
		if b[i] != magicBlock[i] {
			return false, nil
		}
	}
	return true, nil
}
