// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package image builds a flat binary image from the loadable segments of an
// ELF file the same way objcopy -O binary does: the file-backed bytes of every
// PT_LOAD segment are placed at its load (physical) address, the image starts
// at the lowest such address and the gaps between segments are filled with a
// pad byte.
package image

import (
	"cmp"
	"debug/elf"
	"fmt"
	"io"
	"slices"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/elffile"
)

// Region is a contiguous run of bytes placed at Addr.
type Region struct {
	Name string // LOAD[i], section or file name, used in diagnostics
	Addr uint64
	Data []byte
}

// End returns the address just after the region.
func (r Region) End() uint64 {
	return r.Addr + uint64(len(r.Data))
}

func (r Region) span() Span {
	return Span{r.Name, r.Addr, r.End()}
}

type Options struct {
	// GapFill is the byte used for address ranges not covered by any region.
	GapFill byte

	// Include contains additional binary blobs to be placed in the image.
	Include []Region

	// SectionTrim selects the file-backed parts of the loadable segments using
	// the allocatable sections they contain instead of the whole segment file
	// images. The bytes between sections are filled with GapFill and segments
	// without allocatable sections are skipped.
	SectionTrim bool

	// MaxSize limits the image size if not zero.
	MaxSize uint64
}

// Image is a flat binary image. It must not be modified once built.
type Image struct {
	Base    uint64   // address of Data[0]
	Data    []byte   // image content
	Regions []Region // sorted, non-overlapping, Data of every region is a view into Image.Data
	GapFill byte
}

// Size returns the image size in bytes.
func (img *Image) Size() int {
	return len(img.Data)
}

// End returns the address just after the image.
func (img *Image) End() uint64 {
	return img.Base + uint64(len(img.Data))
}

// WriteTo writes the raw image to w.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(img.Data)
	return int64(n), err
}

// Align returns the image padded with the gap fill byte up to a multiple of
// n bytes. It returns img itself if no padding is needed.
func (img *Image) Align(n int) *Image {
	if n <= 1 || len(img.Data)%n == 0 {
		return img
	}
	size := (len(img.Data) + n - 1) / n * n
	data := make([]byte, size)
	copy(data, img.Data)
	var padCache []byte
	copy(data[len(img.Data):], PadBytes(&padCache, size-len(img.Data), img.GapFill))
	return newImage(img.Base, data, img.Regions, img.GapFill)
}

func newImage(base uint64, data []byte, regions []Region, gapFill byte) *Image {
	img := &Image{Base: base, Data: data, GapFill: gapFill}
	img.Regions = make([]Region, len(regions))
	for i, r := range regions {
		o := r.Addr - base
		img.Regions[i] = Region{r.Name, r.Addr, data[o : o+uint64(len(r.Data))]}
	}
	return img
}

// Build builds the image of the program described by f.
func Build(f *elffile.File, opts Options) (*Image, error) {
	var regions []Region
	if opts.SectionTrim {
		regions = SectionRegions(f)
	} else {
		regions = SegmentRegions(f, opts.GapFill)
	}
	regions = append(regions, opts.Include...)
	return Flatten(regions, opts.GapFill, opts.MaxSize)
}

// SegmentRegions returns the file-backed part of every PT_LOAD segment with
// non-zero file size, in program header order. The zero-initialized tail of
// a segment (Filesz..Memsz) is never included. Bytes that belong to
// non-allocatable sections (symbols, strings, debug info) enclosed in the
// segment file image are replaced with pad.
func SegmentRegions(f *elffile.File, pad byte) []Region {
	regions := make([]Region, 0, len(f.Progs))
	for i := range f.Progs {
		p := &f.Progs[i]
		if p.Type != elf.PT_LOAD || p.Filesz == 0 {
			continue
		}
		regions = append(regions, Region{
			Name: fmt.Sprintf("LOAD[%d]", i),
			Addr: p.Paddr,
			Data: maskMetadata(f, p, f.SegmentData(p), pad),
		})
	}
	return regions
}

// maskMetadata returns data (the file image of p) with the ranges of the
// non-allocatable sections filled with pad. data is copied before the first
// change so the file buffer stays untouched.
func maskMetadata(f *elffile.File, p *elffile.ProgramHeader, data []byte, pad byte) []byte {
	copied := false
	for k := range f.Sections {
		s := &f.Sections[k]
		if s.Allocatable() || !s.HasFileData() {
			continue
		}
		start, end := max(s.Off, p.Off), min(s.FileEnd(), p.FileEnd())
		if start >= end {
			continue
		}
		if !copied {
			data = slices.Clone(data)
			copied = true
		}
		hole := data[start-p.Off : end-p.Off]
		for i := range hole {
			hole[i] = pad
		}
	}
	return data
}

// SectionRegions returns the allocatable sections with file data that lie in
// the file image of a PT_LOAD segment, placed at their load addresses.
func SectionRegions(f *elffile.File) []Region {
	regions := make([]Region, 0, len(f.Sections))
	for i := range f.Progs {
		p := &f.Progs[i]
		if p.Type != elf.PT_LOAD || p.Filesz == 0 {
			continue
		}
		for k := range f.Sections {
			s := &f.Sections[k]
			if !s.Allocatable() || !s.HasFileData() {
				continue
			}
			if s.Off < p.Off || s.FileEnd() > p.FileEnd() {
				continue
			}
			regions = append(regions, Region{
				Name: s.Name,
				Addr: p.Paddr + s.Off - p.Off,
				Data: f.SectionData(s),
			})
		}
	}
	return regions
}

// SortByAddr sorts regions according to the Addr field. The order of regions
// with the same address is preserved.
func SortByAddr(regions []Region) {
	slices.SortStableFunc(regions, func(a, b Region) int {
		return cmp.Compare(a.Addr, b.Addr)
	})
}

// Flatten lays the regions out in one contiguous image starting at the lowest
// region address. The gaps between regions are filled using the pad byte.
// Empty regions are ignored. The regions slice is sorted in place.
func Flatten(regions []Region, pad byte, maxSize uint64) (*Image, error) {
	regions = slices.DeleteFunc(regions, func(r Region) bool {
		return len(r.Data) == 0
	})
	if len(regions) == 0 {
		return nil, &LayoutError{Err: ErrNoLoadableSegments}
	}
	SortByAddr(regions)
	for i := range regions {
		r := &regions[i]
		if r.End() < r.Addr {
			return nil, &LayoutError{Err: ErrAddressRange, A: r.span()}
		}
		if i > 0 {
			if prev := &regions[i-1]; prev.End() > r.Addr {
				return nil, &LayoutError{Err: ErrOverlap, A: prev.span(), B: r.span()}
			}
		}
	}
	first, last := &regions[0], &regions[len(regions)-1]
	base := first.Addr
	size := last.End() - base
	if (maxSize != 0 && size > maxSize) || size != uint64(int(size)) {
		return nil, &LayoutError{
			Err: ErrTooLarge, A: first.span(), B: last.span(), Size: size,
		}
	}
	data := make([]byte, size)
	if pad != 0 {
		var padCache []byte
		for i, r := range regions {
			gapStart := base
			if i > 0 {
				gapStart = regions[i-1].End()
			}
			copy(data[gapStart-base:], PadBytes(&padCache, int(r.Addr-gapStart), pad))
		}
	}
	for _, r := range regions {
		copy(data[r.Addr-base:], r.Data)
	}
	return newImage(base, data, regions, pad), nil
}

// PadBytes returns the slice containing n bytes equal b.
func PadBytes(cache *[]byte, n int, b byte) []byte {
	if len(*cache) < n || (n > 0 && (*cache)[0] != b) {
		*cache = make([]byte, n)
		for i := range *cache {
			(*cache)[i] = b
		}
	}
	return (*cache)[:n]
}

// Compare compares the image data with a reference binary. It returns the
// offset of the first differing byte (or the length of the shorter slice if
// one is a prefix of the other) and whether both are identical.
func Compare(data, ref []byte) (off int, equal bool) {
	n := min(len(data), len(ref))
	for i := 0; i < n; i++ {
		if data[i] != ref[i] {
			return i, false
		}
	}
	return n, len(data) == len(ref)
}
