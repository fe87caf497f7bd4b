// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elffile

import (
	"errors"
	"strconv"
)

var (
	ErrNotELF           = errors.New("not an ELF file")
	ErrUnsupportedClass = errors.New("unsupported ELF class or data encoding")
	ErrTruncated        = errors.New("truncated or malformed ELF file")
)

// FormatError describes why the input cannot be parsed as an ELF file. Err is
// one of ErrNotELF, ErrUnsupportedClass, ErrTruncated.
type FormatError struct {
	Err error
	Off int64 // file offset the problem was detected at, -1 if unknown
	Msg string
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *FormatError) Error() string {
	s := "elffile: " + e.Err.Error()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Off >= 0 {
		s += " at offset 0x" + strconv.FormatInt(e.Off, 16)
	}
	return s
}

func formatErr(err error, off int64, msg string) *FormatError {
	return &FormatError{Err: err, Off: off, Msg: msg}
}
