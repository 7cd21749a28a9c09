// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package csi implements CSIv1 and CSIv2 coordinate sorted index
// reading.
package csi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	oxbow "github.com/abdenlab/oxbow-go"
	"github.com/abdenlab/oxbow-go/bgzf"
	"github.com/abdenlab/oxbow-go/internal/index"
)

var csiMagic = [3]byte{'C', 'S', 'I'}

// Index implements coordinate sorted indexing with configurable
// minimum shift and depth.
type Index struct {
	Auxilliary []byte
	Version    byte

	idx index.Index

	unmapped *uint64
}

// NumRefs returns the number of references in the index.
func (i *Index) NumRefs() int {
	return len(i.idx.Refs)
}

// MinShift returns the minimum width shift of the binning scheme.
func (i *Index) MinShift() uint32 { return i.idx.MinShift }

// Depth returns the depth of the binning scheme.
func (i *Index) Depth() uint32 { return i.idx.Depth }

// Unmapped returns the number of unplaced reads and true if the count
// is valid.
func (i *Index) Unmapped() (n uint64, ok bool) {
	if i.unmapped == nil {
		return 0, false
	}
	return *i.unmapped, true
}

// Chunks returns the sorted, coalesced chunks that may hold records
// overlapping the interval [beg,end) on the reference with the given
// id. A reference id not present in the index yields no chunks.
func (i *Index) Chunks(rid, beg, end int) []bgzf.Chunk {
	return i.idx.Chunks(rid, beg, end)
}

// Partition returns virtual offsets splitting the indexed stream into
// segments of roughly chunksize compressed bytes.
func (i *Index) Partition(chunksize int64) []bgzf.Offset {
	return i.idx.Partition(chunksize)
}

// ReadFrom reads a CSI index from the given io.Reader. The CSI
// specification stores the index as BGZF; ReadFrom expects the
// decompressed bytes. Use Open to read a compressed index from a
// source.
func ReadFrom(r io.Reader) (*Index, error) {
	var (
		idx   Index
		magic [3]byte
		err   error
	)
	err = binary.Read(r, binary.LittleEndian, &magic)
	if err != nil {
		return nil, err
	}
	if magic != csiMagic {
		return nil, errors.New("csi: magic number mismatch")
	}
	version := []byte{0}
	_, err = io.ReadFull(r, version)
	if err != nil {
		return nil, err
	}
	idx.Version = version[0]
	if idx.Version != 0x1 && idx.Version != 0x2 {
		return nil, fmt.Errorf("csi: unknown version: %d", version[0])
	}
	var minShift, depth int32
	err = binary.Read(r, binary.LittleEndian, &minShift)
	if err != nil {
		return nil, err
	}
	if minShift < 0 {
		return nil, errors.New("csi: invalid minimum shift value")
	}
	err = binary.Read(r, binary.LittleEndian, &depth)
	if err != nil {
		return nil, err
	}
	if depth < 0 {
		return nil, errors.New("csi: invalid index depth value")
	}
	idx.idx.MinShift = uint32(minShift)
	idx.idx.Depth = uint32(depth)
	var n int32
	err = binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		idx.Auxilliary = make([]byte, n)
		_, err = io.ReadFull(r, idx.Auxilliary)
		if err != nil {
			return nil, err
		}
	}
	idx.idx.Refs, err = readIndices(r, idx.Version)
	if err != nil {
		return nil, err
	}
	var nUnmapped uint64
	err = binary.Read(r, binary.LittleEndian, &nUnmapped)
	if err == nil {
		idx.unmapped = &nUnmapped
	} else if err != io.EOF {
		return nil, err
	}
	return &idx, nil
}

// Open reads a BGZF-compressed CSI index from the given source.
func Open(src oxbow.Source) (*Index, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	bg, err := bgzf.NewReader(rc)
	if err != nil {
		return nil, err
	}
	return ReadFrom(bg)
}

func readIndices(r io.Reader, version byte) ([]index.RefIndex, error) {
	var n int32
	err := binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	idx := make([]index.RefIndex, n)
	for i := range idx {
		idx[i].Bins, idx[i].Stats, err = readBins(r, version)
		if err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func readBins(r io.Reader, version byte) ([]index.Bin, *index.ReferenceStats, error) {
	var n int32
	err := binary.Read(r, binary.LittleEndian, &n)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 {
		return nil, nil, nil
	}
	var stats *index.ReferenceStats
	bins := make([]index.Bin, n)
	for i := 0; i < len(bins); i++ {
		err = binary.Read(r, binary.LittleEndian, &bins[i].Bin)
		if err != nil {
			return nil, nil, fmt.Errorf("csi: failed to read bin number: %v", err)
		}
		var vOff uint64
		err = binary.Read(r, binary.LittleEndian, &vOff)
		if err != nil {
			return nil, nil, fmt.Errorf("csi: failed to read left virtual offset: %v", err)
		}
		bins[i].Left = bgzf.OffsetFromVirtual(int64(vOff))
		if version == 0x2 {
			err = binary.Read(r, binary.LittleEndian, &bins[i].Records)
			if err != nil {
				return nil, nil, fmt.Errorf("csi: failed to read record count: %v", err)
			}
		}
		err = binary.Read(r, binary.LittleEndian, &n)
		if err != nil {
			return nil, nil, fmt.Errorf("csi: failed to read bin count: %v", err)
		}
		if bins[i].Bin == index.StatsDummyBin {
			if n != 2 {
				return nil, nil, errors.New("csi: malformed dummy bin header")
			}
			stats, err = readStats(r)
			if err != nil {
				return nil, nil, err
			}
			bins = bins[:len(bins)-1]
			i--
			continue
		}
		bins[i].Chunks, err = readChunks(r, n)
		if err != nil {
			return nil, nil, err
		}
	}
	if !sort.IsSorted(byBinNumber(bins)) {
		sort.Sort(byBinNumber(bins))
	}
	return bins, stats, nil
}

func readChunks(r io.Reader, n int32) ([]bgzf.Chunk, error) {
	if n == 0 {
		return nil, nil
	}
	var (
		vOff uint64
		err  error
	)
	chunks := make([]bgzf.Chunk, n)
	for i := range chunks {
		err = binary.Read(r, binary.LittleEndian, &vOff)
		if err != nil {
			return nil, fmt.Errorf("csi: failed to read chunk begin virtual offset: %v", err)
		}
		chunks[i].Begin = bgzf.OffsetFromVirtual(int64(vOff))
		err = binary.Read(r, binary.LittleEndian, &vOff)
		if err != nil {
			return nil, fmt.Errorf("csi: failed to read chunk end virtual offset: %v", err)
		}
		chunks[i].End = bgzf.OffsetFromVirtual(int64(vOff))
	}
	return chunks, nil
}

func readStats(r io.Reader) (*index.ReferenceStats, error) {
	var (
		vOff  uint64
		stats index.ReferenceStats
		err   error
	)
	err = binary.Read(r, binary.LittleEndian, &vOff)
	if err != nil {
		return nil, fmt.Errorf("csi: failed to read index stats chunk begin virtual offset: %v", err)
	}
	stats.Chunk.Begin = bgzf.OffsetFromVirtual(int64(vOff))
	err = binary.Read(r, binary.LittleEndian, &vOff)
	if err != nil {
		return nil, fmt.Errorf("csi: failed to read index stats chunk end virtual offset: %v", err)
	}
	stats.Chunk.End = bgzf.OffsetFromVirtual(int64(vOff))
	err = binary.Read(r, binary.LittleEndian, &stats.Mapped)
	if err != nil {
		return nil, fmt.Errorf("csi: failed to read index stats mapped count: %v", err)
	}
	err = binary.Read(r, binary.LittleEndian, &stats.Unmapped)
	if err != nil {
		return nil, fmt.Errorf("csi: failed to read index stats unmapped count: %v", err)
	}
	return &stats, nil
}

type byBinNumber []index.Bin

func (b byBinNumber) Len() int           { return len(b) }
func (b byBinNumber) Less(i, j int) bool { return b[i].Bin < b[j].Bin }
func (b byBinNumber) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
