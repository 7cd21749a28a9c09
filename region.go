// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package oxbow

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// A Region is a genomic interval over a named reference sequence.
// Start and End are 0-based half-open; End == MaxEnd means the
// interval extends to the end of the reference.
type Region struct {
	Ref   string
	Start int64
	End   int64
}

// MaxEnd is the End value of a Region with an unbounded right end.
const MaxEnd = int64(math.MaxInt64)

// ParseRegion parses the textual region grammar
//
//	reference(:start(-end)?)?
//
// where start and end are 1-based inclusive. The returned Region uses
// 0-based half-open coordinates. Malformed strings are reported
// synchronously.
func ParseRegion(s string) (Region, error) {
	if s == "" {
		return Region{}, fmt.Errorf("oxbow: empty region")
	}
	// The reference name may itself contain a colon, so split on the
	// last one; the text after it must be a well-formed interval.
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return Region{Ref: s, Start: 0, End: MaxEnd}, nil
	}
	ref, bounds := s[:i], s[i+1:]
	if ref == "" {
		return Region{}, fmt.Errorf("oxbow: invalid region %q", s)
	}
	start, end, err := parseBounds(bounds)
	if err != nil {
		return Region{}, fmt.Errorf("oxbow: invalid region %q: %v", s, err)
	}
	return Region{Ref: ref, Start: start, End: end}, nil
}

func parseBounds(s string) (start, end int64, err error) {
	start64 := int64(1)
	end64 := MaxEnd
	if i := strings.IndexByte(s, '-'); i >= 0 {
		start64, err = strconv.ParseInt(s[:i], 10, 64)
		if err != nil {
			return 0, 0, err
		}
		end64, err = strconv.ParseInt(s[i+1:], 10, 64)
		if err != nil {
			return 0, 0, err
		}
	} else {
		start64, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, err
		}
	}
	if start64 < 1 || (end64 != MaxEnd && end64 < start64) {
		return 0, 0, fmt.Errorf("bounds out of order")
	}
	return start64 - 1, end64, nil
}

// Overlaps reports whether the half-open interval [start, end) overlaps
// the region interval.
func (r Region) Overlaps(start, end int64) bool {
	return start < r.End && end > r.Start
}

// String returns the region in textual form using 1-based inclusive
// bounds.
func (r Region) String() string {
	if r.Start == 0 && r.End == MaxEnd {
		return r.Ref
	}
	if r.End == MaxEnd {
		return fmt.Sprintf("%s:%d", r.Ref, r.Start+1)
	}
	return fmt.Sprintf("%s:%d-%d", r.Ref, r.Start+1, r.End)
}
