// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bam implements BAM reading: binary alignment record decode,
// BAI index reading and the BAM scanner. The BAM format is described
// in the SAM specification.
//
// http://samtools.github.io/hts-specs/SAMv1.pdf
package bam

import (
	"encoding/binary"
	"errors"
	"io"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/bgzf"
	"github.com/abdenlab/oxbow-go/internal/index"
)

var baiMagic = [4]byte{'B', 'A', 'I', 0x1}

// Index is a BAI index.
type Index struct {
	idx index.Index
}

// NumRefs returns the number of references in the index.
func (i *Index) NumRefs() int { return len(i.idx.Refs) }

// Unmapped returns the number of unplaced reads and true if the count
// is valid.
func (i *Index) Unmapped() (n uint64, ok bool) {
	if i.idx.Unmapped == nil {
		return 0, false
	}
	return *i.idx.Unmapped, true
}

// Chunks returns the sorted, coalesced chunks that may hold records
// overlapping the interval [beg,end) on the reference with the given
// id. A reference id not present in the index yields no chunks.
func (i *Index) Chunks(rid, beg, end int) []bgzf.Chunk {
	return i.idx.Chunks(rid, beg, end)
}

// LastOffset returns the highest chunk end virtual offset recorded in
// the index. Unmapped records with no coordinate are stored after
// this position.
func (i *Index) LastOffset() bgzf.Offset {
	var last bgzf.Offset
	for _, ref := range i.idx.Refs {
		for _, b := range ref.Bins {
			for _, c := range b.Chunks {
				if c.End.Virtual() > last.Virtual() {
					last = c.End
				}
			}
		}
		if ref.Stats != nil && ref.Stats.Chunk.End.Virtual() > last.Virtual() {
			last = ref.Stats.Chunk.End
		}
	}
	return last
}

// Partition returns virtual offsets splitting the indexed stream into
// segments of roughly chunksize compressed bytes.
func (i *Index) Partition(chunksize int64) []bgzf.Offset {
	return i.idx.Partition(chunksize)
}

// ReadIndex reads a BAI index from the given io.Reader.
func ReadIndex(r io.Reader) (*Index, error) {
	var magic [4]byte
	err := binary.Read(r, binary.LittleEndian, &magic)
	if err != nil {
		return nil, err
	}
	if magic != baiMagic {
		return nil, errors.New("bam: magic number mismatch")
	}

	var n int32
	err = binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return nil, err
	}
	var idx Index
	idx.idx, err = index.ReadIndex(r, n, "bam")
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// OpenIndex reads a BAI index from the given source.
func OpenIndex(src oxbow.Source) (*Index, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadIndex(rc)
}
