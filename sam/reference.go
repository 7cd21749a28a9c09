// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import "errors"

// Reference is a mapping reference.
type Reference struct {
	id   int32
	name string
	lRef int32
}

// NewReference returns a new Reference with the given name and length.
// The length must be a valid reference length according to the SAM
// specification, [1, 1<<31).
func NewReference(name string, length int) (*Reference, error) {
	if !validLen(length) {
		return nil, errors.New("sam: length out of range")
	}
	if name == "" {
		return nil, errors.New("sam: no name provided")
	}
	return &Reference{id: -1, name: name, lRef: int32(length)}, nil
}

// ID returns the header ID of the Reference, or -1 for a nil
// Reference.
func (r *Reference) ID() int {
	if r == nil {
		return -1
	}
	return int(r.id)
}

// Name returns the reference name, or "*" for a nil Reference.
func (r *Reference) Name() string {
	if r == nil {
		return "*"
	}
	return r.name
}

// Len returns the length of the reference sequence, or -1 for a nil
// Reference.
func (r *Reference) Len() int {
	if r == nil {
		return -1
	}
	return int(r.lRef)
}
