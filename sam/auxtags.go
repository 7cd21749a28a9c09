// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// An Aux represents an auxiliary data field from a SAM alignment
// record. The bytes are laid out as in a BAM record: a two byte tag, a
// type byte and the value in little-endian encoding.
type Aux []byte

// A Tag represents an auxiliary tag label.
type Tag [2]byte

// NewTag returns a Tag from the tag string. It panics if
// len(tag) != 2.
func NewTag(tag string) Tag {
	var t Tag
	if copy(t[:], tag) != 2 {
		panic("sam: illegal tag length")
	}
	return t
}

// String returns a string representation of a Tag.
func (t Tag) String() string { return string(t[:]) }

// Tag returns the Tag representation of the Aux tag ID.
func (a Aux) Tag() Tag { var t Tag; copy(t[:], a[:2]); return t }

// Type returns a byte corresponding to the type of the auxiliary tag.
// Returned values are in {'A', 'c', 'C', 's', 'S', 'i', 'I', 'f', 'Z', 'H', 'B'}.
func (a Aux) Type() byte { return a[2] }

// ArrayType returns the element type byte of a 'B' array tag, or zero
// for non-array tags.
func (a Aux) ArrayType() byte {
	if a.Type() != 'B' {
		return 0
	}
	return a[3]
}

// Int64 returns the value of an integer-typed Aux widened to int64.
// The boolean return is false if the Aux is not integer typed.
func (a Aux) Int64() (int64, bool) {
	switch a.Type() {
	case 'c':
		return int64(int8(a[3])), true
	case 'C':
		return int64(a[3]), true
	case 's':
		return int64(int16(binary.LittleEndian.Uint16(a[3:5]))), true
	case 'S':
		return int64(binary.LittleEndian.Uint16(a[3:5])), true
	case 'i':
		return int64(int32(binary.LittleEndian.Uint32(a[3:7]))), true
	case 'I':
		return int64(binary.LittleEndian.Uint32(a[3:7])), true
	}
	return 0, false
}

// Float returns the value of an 'f' typed Aux. The boolean return is
// false if the Aux is not float typed.
func (a Aux) Float() (float32, bool) {
	if a.Type() != 'f' {
		return 0, false
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(a[3:7])), true
}

// Text returns the value of an 'A', 'Z' or 'H' typed Aux. The boolean
// return is false otherwise. 'H' values are returned as their hex
// text.
func (a Aux) Text() (string, bool) {
	switch a.Type() {
	case 'Z', 'H':
		return string(a[3:]), true
	case 'A':
		return string(a[3:4]), true
	}
	return "", false
}

// Ints returns the elements of an integer array tag widened to int64.
// The boolean return is false if the Aux is not an integer array.
func (a Aux) Ints() ([]int64, bool) {
	if a.Type() != 'B' {
		return nil, false
	}
	n := int(binary.LittleEndian.Uint32(a[4:8]))
	v := make([]int64, n)
	el := a[8:]
	switch a[3] {
	case 'c':
		for i := 0; i < n; i++ {
			v[i] = int64(int8(el[i]))
		}
	case 'C':
		for i := 0; i < n; i++ {
			v[i] = int64(el[i])
		}
	case 's':
		for i := 0; i < n; i++ {
			v[i] = int64(int16(binary.LittleEndian.Uint16(el[2*i:])))
		}
	case 'S':
		for i := 0; i < n; i++ {
			v[i] = int64(binary.LittleEndian.Uint16(el[2*i:]))
		}
	case 'i':
		for i := 0; i < n; i++ {
			v[i] = int64(int32(binary.LittleEndian.Uint32(el[4*i:])))
		}
	case 'I':
		for i := 0; i < n; i++ {
			v[i] = int64(binary.LittleEndian.Uint32(el[4*i:]))
		}
	default:
		return nil, false
	}
	return v, true
}

// Floats returns the elements of an 'f' array tag. The boolean return
// is false if the Aux is not a float array.
func (a Aux) Floats() ([]float32, bool) {
	if a.Type() != 'B' || a[3] != 'f' {
		return nil, false
	}
	n := int(binary.LittleEndian.Uint32(a[4:8]))
	v := make([]float32, n)
	el := a[8:]
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(el[4*i:]))
	}
	return v, true
}

// String returns the string representation of an Aux type.
func (a Aux) String() string {
	return fmt.Sprintf("%s:%c", []byte(a[:2]), a.Type())
}

// ParseAux returns an Aux parsed from the given XX:Y:value text form.
func ParseAux(text []byte) (Aux, error) {
	tf := bytes.SplitN(text, []byte{':'}, 3)
	if len(tf) != 3 || len(tf[0]) != 2 || len(tf[1]) != 1 {
		return nil, fmt.Errorf("sam: invalid aux tag field: %q", text)
	}
	tag, val := tf[0], tf[2]
	switch typ := tf[1][0]; typ {
	case 'A':
		if len(val) != 1 {
			return nil, fmt.Errorf("sam: invalid aux tag field: %q", text)
		}
		return Aux{tag[0], tag[1], 'A', val[0]}, nil
	case 'i':
		i, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sam: invalid aux tag field: %v", err)
		}
		return intAux(tag, i)
	case 'f':
		f, err := strconv.ParseFloat(string(val), 32)
		if err != nil {
			return nil, fmt.Errorf("sam: invalid aux tag field: %v", err)
		}
		a := Aux{tag[0], tag[1], 'f', 0, 0, 0, 0}
		binary.LittleEndian.PutUint32(a[3:7], math.Float32bits(float32(f)))
		return a, nil
	case 'Z', 'H':
		return append(Aux{tag[0], tag[1], typ}, val...), nil
	case 'B':
		if len(val) < 1 {
			return nil, fmt.Errorf("sam: invalid aux tag field: %q", text)
		}
		return arrayAux(tag, val)
	}
	return nil, fmt.Errorf("sam: invalid aux tag field: %q", text)
}

func intAux(tag []byte, i int64) (Aux, error) {
	switch {
	case math.MinInt8 <= i && i <= math.MaxInt8:
		return Aux{tag[0], tag[1], 'c', byte(int8(i))}, nil
	case math.MinInt16 <= i && i <= math.MaxInt16:
		a := Aux{tag[0], tag[1], 's', 0, 0}
		binary.LittleEndian.PutUint16(a[3:5], uint16(i))
		return a, nil
	case math.MinInt32 <= i && i <= math.MaxInt32:
		a := Aux{tag[0], tag[1], 'i', 0, 0, 0, 0}
		binary.LittleEndian.PutUint32(a[3:7], uint32(i))
		return a, nil
	case i <= math.MaxUint32:
		a := Aux{tag[0], tag[1], 'I', 0, 0, 0, 0}
		binary.LittleEndian.PutUint32(a[3:7], uint32(i))
		return a, nil
	}
	return nil, fmt.Errorf("sam: integer value out of range: %d", i)
}

func arrayAux(tag, val []byte) (Aux, error) {
	sub := val[0]
	var elems [][]byte
	if len(val) > 1 {
		if val[1] != ',' {
			return nil, fmt.Errorf("sam: invalid aux array: %q", val)
		}
		elems = bytes.Split(val[2:], []byte{','})
	}
	a := Aux{tag[0], tag[1], 'B', sub, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(a[4:8], uint32(len(elems)))
	var width int
	switch sub {
	case 'c', 'C':
		width = 1
	case 's', 'S':
		width = 2
	case 'i', 'I', 'f':
		width = 4
	default:
		return nil, fmt.Errorf("sam: invalid aux array subtype: %q", sub)
	}
	scratch := make([]byte, width)
	for _, e := range elems {
		if sub == 'f' {
			f, err := strconv.ParseFloat(string(e), 32)
			if err != nil {
				return nil, fmt.Errorf("sam: invalid aux array element: %v", err)
			}
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(float32(f)))
		} else {
			i, err := strconv.ParseInt(string(e), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("sam: invalid aux array element: %v", err)
			}
			switch width {
			case 1:
				scratch[0] = byte(i)
			case 2:
				binary.LittleEndian.PutUint16(scratch, uint16(i))
			case 4:
				binary.LittleEndian.PutUint32(scratch, uint32(i))
			}
		}
		a = append(a, scratch...)
	}
	return a, nil
}

// AuxFields is a set of auxiliary fields.
type AuxFields []Aux

// Get returns the auxiliary field identified by the given tag, or nil
// if no field matches.
func (a AuxFields) Get(tag Tag) Aux {
	for _, f := range a {
		if f.Tag() == tag {
			return f
		}
	}
	return nil
}
