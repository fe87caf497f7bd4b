// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hex writes images in the Intel HEX format.
package hex

import (
	"errors"
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/image"
)

var ErrAddressRange = errors.New("hex: region exceeds the 32-bit address space")

// DefaultLineLen is the number of data bytes per record used if Encode is
// called with lineLen == 0.
const DefaultLineLen = 16

// Encode writes the regions of img to w as Intel HEX records. The gaps between
// regions are not written. If entry is not nil the start linear address record
// is added.
func Encode(w io.Writer, img *image.Image, lineLen int, entry *uint32) error {
	if lineLen == 0 {
		lineLen = DefaultLineLen
	}
	if lineLen < 1 || lineLen > 255 {
		return fmt.Errorf("hex: bad line length: %d", lineLen)
	}
	mem := gohex.NewMemory()
	for _, r := range img.Regions {
		if r.End() > 1<<32 {
			return fmt.Errorf("%w: %s at %#x", ErrAddressRange, r.Name, r.Addr)
		}
		if err := mem.AddBinary(uint32(r.Addr), r.Data); err != nil {
			return fmt.Errorf("hex: %s: %w", r.Name, err)
		}
	}
	if entry != nil {
		mem.SetStartAddress(*entry)
	}
	return mem.DumpIntelHex(w, byte(lineLen))
}
