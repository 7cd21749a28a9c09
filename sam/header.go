// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	errBadHeader     = errors.New("sam: malformed header line")
	errBadLen        = errors.New("sam: reference length out of range")
	errDupReference  = errors.New("sam: duplicate reference name")
	errUsedReference = errors.New("sam: reference already used")
)

var bamMagic = [4]byte{'B', 'A', 'M', 0x1}

// Header is a SAM or BAM header. The reference dictionary, the @HD
// version and @CO comments are interpreted; other lines, such as @RG
// and @PG, are retained verbatim in Other.
type Header struct {
	Version  string
	Comments []string

	// Other holds header lines that are carried but not
	// interpreted.
	Other []string

	refs     []*Reference
	seenRefs map[string]int32
}

// NewHeader returns a new empty Header.
func NewHeader() *Header {
	return &Header{seenRefs: map[string]int32{}}
}

// Refs returns the Header's list of References. The returned slice
// should not be altered.
func (bh *Header) Refs() []*Reference {
	return bh.refs
}

// RefByName returns the Reference with the given name, or nil if the
// name is not in the reference dictionary.
func (bh *Header) RefByName(name string) *Reference {
	id, ok := bh.seenRefs[name]
	if !ok {
		return nil
	}
	return bh.refs[id]
}

// RefNames returns the names of the Header's references in dictionary
// order.
func (bh *Header) RefNames() []string {
	names := make([]string, len(bh.refs))
	for i, r := range bh.refs {
		names[i] = r.name
	}
	return names
}

// AddReference adds r to the Header.
func (bh *Header) AddReference(r *Reference) error {
	if _, dup := bh.seenRefs[r.name]; dup {
		return errDupReference
	}
	if r.id >= 0 {
		return errUsedReference
	}
	r.id = int32(len(bh.refs))
	bh.seenRefs[r.name] = r.id
	bh.refs = append(bh.refs, r)
	return nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (bh *Header) UnmarshalText(text []byte) error {
	for i, l := range bytes.Split(text, []byte{'\n'}) {
		if len(l) > 0 && l[len(l)-1] == '\r' {
			l = l[:len(l)-1]
		}
		if len(l) == 0 {
			continue
		}
		if l[0] != '@' || len(l) < 3 {
			return errBadHeader
		}
		var err error
		switch string(l[1:3]) {
		case "HD":
			err = headerLine(l, bh)
		case "SQ":
			err = referenceLine(l, bh)
		case "CO":
			err = commentLine(l, bh)
		default:
			bh.Other = append(bh.Other, string(l))
		}
		if err != nil {
			return fmt.Errorf("%v: line %d: %q", err, i+1, l)
		}
	}
	return nil
}

func headerLine(l []byte, bh *Header) error {
	fields := bytes.Split(l, []byte{'\t'})
	if len(fields) < 2 {
		return errBadHeader
	}
	for _, f := range fields[1:] {
		if len(f) < 4 || f[2] != ':' {
			return errBadHeader
		}
		if string(f[:2]) == "VN" {
			bh.Version = string(f[3:])
		}
	}
	if bh.Version == "" {
		return errBadHeader
	}
	return nil
}

func referenceLine(l []byte, bh *Header) error {
	fields := bytes.Split(l, []byte{'\t'})
	if len(fields) < 3 {
		return errBadHeader
	}
	var (
		name     string
		length   int
		nok, lok bool
	)
	for _, f := range fields[1:] {
		if len(f) < 4 || f[2] != ':' {
			return errBadHeader
		}
		fs := string(f[3:])
		switch string(f[:2]) {
		case "SN":
			name = fs
			nok = true
		case "LN":
			l, err := strconv.Atoi(fs)
			if err != nil {
				return errBadHeader
			}
			if !validLen(l) {
				return errBadLen
			}
			length = l
			lok = true
		}
	}
	if !nok || !lok {
		return errBadHeader
	}
	ref, err := NewReference(name, length)
	if err != nil {
		return err
	}
	return bh.AddReference(ref)
}

func commentLine(l []byte, bh *Header) error {
	fields := bytes.SplitN(l, []byte{'\t'}, 2)
	if len(fields) < 2 {
		return errBadHeader
	}
	bh.Comments = append(bh.Comments, string(fields[1]))
	return nil
}

// DecodeBinary unmarshals a Header from the given io.Reader. The byte
// stream must be in the format described in the SAM specification,
// section 4.2.
func (bh *Header) DecodeBinary(r io.Reader) error {
	var (
		lText, nRef int32
		err         error
	)
	var magic [4]byte
	err = binary.Read(r, binary.LittleEndian, &magic)
	if err != nil {
		return err
	}
	if magic != bamMagic {
		return errors.New("sam: magic number mismatch")
	}
	err = binary.Read(r, binary.LittleEndian, &lText)
	if err != nil {
		return err
	}
	text := make([]byte, lText)
	if _, err = io.ReadFull(r, text); err != nil {
		return errors.New("sam: truncated header")
	}
	// The plain text dictionary is parsed first; binary reference
	// records below add references missing from it, and a binary
	// length that disagrees with the text is an error.
	err = bh.UnmarshalText(text)
	if err != nil {
		return err
	}
	err = binary.Read(r, binary.LittleEndian, &nRef)
	if err != nil {
		return err
	}
	for i := int32(0); i < nRef; i++ {
		var lName int32
		err = binary.Read(r, binary.LittleEndian, &lName)
		if err != nil {
			return err
		}
		name := make([]byte, lName)
		if _, err = io.ReadFull(r, name); err != nil {
			return err
		}
		if lName == 0 || name[lName-1] != 0 {
			return errors.New("sam: truncated reference name")
		}
		var lRef int32
		err = binary.Read(r, binary.LittleEndian, &lRef)
		if err != nil {
			return err
		}
		sn := string(name[:lName-1])
		if ref := bh.RefByName(sn); ref != nil {
			if ref.lRef != lRef && ref.lRef != 0 {
				return fmt.Errorf("sam: reference length mismatch for %s", sn)
			}
			continue
		}
		ref, err := NewReference(sn, int(lRef))
		if err != nil {
			return err
		}
		err = bh.AddReference(ref)
		if err != nil {
			return err
		}
	}
	return nil
}
