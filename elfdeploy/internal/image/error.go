// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package image

import (
	"errors"
	"fmt"
)

var (
	ErrNoLoadableSegments = errors.New("no loadable segments with file data")
	ErrOverlap            = errors.New("overlapping regions")
	ErrAddressRange       = errors.New("region exceeds the address space")
	ErrTooLarge           = errors.New("image too large")
)

// Span identifies the address range of a region in error messages.
type Span struct {
	Name string
	Addr uint64
	End  uint64
}

func (s Span) String() string {
	return fmt.Sprintf("%s [%#x, %#x)", s.Name, s.Addr, s.End)
}

// LayoutError describes why the regions cannot be laid out as one flat image.
// Err is one of ErrNoLoadableSegments, ErrOverlap, ErrAddressRange,
// ErrTooLarge. A and B are the offending regions (B only for ErrOverlap).
type LayoutError struct {
	Err  error
	A, B Span
	Size uint64 // image size for ErrTooLarge
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

func (e *LayoutError) Error() string {
	s := "image: " + e.Err.Error()
	switch e.Err {
	case ErrOverlap:
		s += ": " + e.A.String() + " and " + e.B.String()
	case ErrAddressRange:
		s += ": " + e.A.Name + fmt.Sprintf(" at %#x", e.A.Addr)
	case ErrTooLarge:
		s += fmt.Sprintf(": %d bytes from %s to %s", e.Size, e.A, e.B)
	}
	return s
}
