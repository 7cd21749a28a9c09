// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"golang.org/x/exp/slices"

	"github.com/abdenlab/oxbow-go/bgzf"
)

// Partition returns virtual offsets that split the indexed BGZF
// stream into segments of roughly chunksize compressed bytes. The
// offsets are record boundaries drawn from the index, sorted and
// deduplicated, so consecutive pairs can be scanned as independent
// fragments.
func (i *Index) Partition(chunksize int64) []bgzf.Offset {
	var offsets []bgzf.Offset
	for _, ref := range i.Refs {
		if len(ref.Bins) == 0 {
			continue
		}
		var last bgzf.Offset
		for _, b := range ref.Bins {
			for _, c := range b.Chunks {
				offsets = append(offsets, c.Begin)
				if c.End.Virtual() > last.Virtual() {
					last = c.End
				}
			}
		}
		for _, off := range ref.Intervals {
			if off != (bgzf.Offset{}) {
				offsets = append(offsets, off)
			}
		}
		offsets = append(offsets, last)
	}
	if len(offsets) == 0 {
		return nil
	}

	slices.SortFunc(offsets, func(a, b bgzf.Offset) bool {
		return a.Virtual() < b.Virtual()
	})
	offsets = slices.Compact(offsets)

	consolidated := offsets[:1]
	lastFile := offsets[0].File
	for _, off := range offsets[1 : len(offsets)-1] {
		if off.File >= lastFile+chunksize {
			consolidated = append(consolidated, off)
			lastFile = off.File
		}
	}
	if len(offsets) > 1 {
		consolidated = append(consolidated, offsets[len(offsets)-1])
	}
	return consolidated
}
