// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package index provides shared code for the BAI, CSI and tabix
// binning index implementations.
package index

import (
	"sort"

	"github.com/abdenlab/oxbow-go/bgzf"
	bgzfindex "github.com/abdenlab/oxbow-go/bgzf/index"
)

const (
	// TileWidth is the length of the interval tiling used
	// in BAI and tabix linear indexes.
	TileWidth = 0x4000

	// StatsDummyBin is the bin number of the reference
	// statistics bin used in BAI and tabix indexes.
	StatsDummyBin = 0x924a

	// DefaultShift is the minimum shift of the BAI and tabix
	// binning schemes. CSI generalizes it.
	DefaultShift = 14

	// DefaultDepth is the depth of the BAI and tabix binning
	// schemes. CSI generalizes it.
	DefaultDepth = 5

	nextBinShift = 3
)

// Index is a coordinate based binning index over one BGZF stream.
// MinShift and Depth parameterize the binning scheme; BAI and tabix
// fix them at DefaultShift and DefaultDepth, CSI reads them from the
// index header.
type Index struct {
	MinShift uint32
	Depth    uint32

	Refs     []RefIndex
	Unmapped *uint64
}

// RefIndex is the index of a single reference. Bins are sorted by bin
// number. Intervals is the linear index for BAI/tabix; it is nil for
// CSI, whose bins carry a left offset instead.
type RefIndex struct {
	Bins      []Bin
	Stats     *ReferenceStats
	Intervals []bgzf.Offset
}

// Bin is an index bin. Left is the CSI loffset lower bound; it is the
// zero Offset for BAI and tabix bins.
type Bin struct {
	Bin     uint32
	Left    bgzf.Offset
	Records uint64
	Chunks  []bgzf.Chunk
}

// ReferenceStats holds mapping statistics for a genomic reference.
type ReferenceStats struct {
	// Chunk is the span of the indexed BGZF holding records
	// mapped to the reference.
	Chunk bgzf.Chunk

	// Mapped is the count of mapped reads.
	Mapped uint64

	// Unmapped is the count of unmapped reads.
	Unmapped uint64
}

// IsValidPos returns whether the given 0-based position is within the
// range indexable with the given minimum shift and depth.
func IsValidPos(i int, minShift, depth uint32) bool {
	return -1 <= i && i <= (1<<(minShift+depth*nextBinShift)-1)-1
}

// BinFor returns the bin number for an interval covering [beg,end)
// (zero-based, half-close-half-open) under the given binning scheme.
func BinFor(beg, end int, minShift, depth uint32) uint32 {
	end--
	s := minShift
	t := uint32(((1 << (depth * nextBinShift)) - 1) / 7)
	for level := depth; level > 0; level-- {
		if offset := beg >> s; offset == end>>s {
			return t + uint32(offset)
		}
		s += nextBinShift
		t -= 1 << ((level - 1) * nextBinShift)
	}
	return 0
}

// OverlappingBinsFor returns the bin numbers for all bins overlapping
// an interval covering [beg,end) (zero-based, half-close-half-open)
// under the given binning scheme.
func OverlappingBinsFor(beg, end int, minShift, depth uint32) []uint32 {
	end--
	var list []uint32
	s := minShift + depth*nextBinShift
	for level, t := uint32(0), uint32(0); level <= depth; level++ {
		b := t + uint32(beg>>s)
		e := t + uint32(end>>s)
		for i := b; i <= e; i++ {
			list = append(list, i)
		}
		s -= nextBinShift
		t += 1 << (level * nextBinShift)
	}
	return list
}

// Chunks returns the sorted, coalesced chunks that may hold records
// overlapping the interval [beg,end) on the reference with the given
// id. A reference id not present in the index yields no chunks and no
// error.
func (i *Index) Chunks(rid, beg, end int) []bgzf.Chunk {
	if rid < 0 || rid >= len(i.Refs) {
		return nil
	}
	if beg < 0 {
		beg = 0
	}
	if end <= beg {
		return nil
	}
	ref := i.Refs[rid]

	// The linear index lower bound prunes chunks that end before the
	// first record tile overlapping the query.
	var lower int64
	if len(ref.Intervals) != 0 {
		iv := beg / TileWidth
		if iv >= len(ref.Intervals) {
			iv = len(ref.Intervals) - 1
		}
		lower = ref.Intervals[iv].Virtual()
	}

	// Collect candidate chunks according to the scheme described in
	// the SAM spec under section 5 Indexing BAM.
	var chunks []bgzf.Chunk
	for _, b := range OverlappingBinsFor(beg, end, i.MinShift, i.Depth) {
		c := sort.Search(len(ref.Bins), func(i int) bool { return ref.Bins[i].Bin >= b })
		if c == len(ref.Bins) || ref.Bins[c].Bin != b {
			continue
		}
		bound := lower
		if left := ref.Bins[c].Left.Virtual(); left > bound {
			bound = left
		}
		for _, chunk := range ref.Bins[c].Chunks {
			if chunk.End.Virtual() > bound {
				chunks = append(chunks, chunk)
			}
		}
	}

	sort.Sort(byBeginOffset(chunks))
	return bgzfindex.Adjacent(chunks)
}

type byBeginOffset []bgzf.Chunk

func (c byBeginOffset) Len() int { return len(c) }
func (c byBeginOffset) Less(i, j int) bool {
	return c[i].Begin.Virtual() < c[j].Begin.Virtual()
}
func (c byBeginOffset) Swap(i, j int) { c[i], c[j] = c[j], c[i] }
