// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package image

import (
	"debug/elf"
	"fmt"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/elffile"
)

// Finding is a suspicious relation between sections and loadable segments.
type Finding struct {
	Section string
	Segment int // index in the program header table, -1 if none
	Msg     string
}

func (f Finding) String() string {
	if f.Segment < 0 {
		return fmt.Sprintf("section '%s': %s", f.Section, f.Msg)
	}
	return fmt.Sprintf("section '%s', LOAD[%d]: %s", f.Section, f.Segment, f.Msg)
}

// Check cross-validates the section headers against the loadable segments. It
// reports:
//   - non-allocatable sections (symbols, strings, debug info) whose contents
//     lie in the file image of a loadable segment (Build fills them with the
//     gap fill byte),
//   - zero-initialized allocatable sections that overlap the file-backed part
//     of a loadable segment,
//   - allocatable sections with contents that are not covered by any loadable
//     segment and so are missing from the image.
func Check(f *elffile.File) []Finding {
	var fs []Finding
	for k := range f.Sections {
		s := &f.Sections[k]
		if s.Type == elf.SHT_NULL {
			continue
		}
		covered := false
		for i := range f.Progs {
			p := &f.Progs[i]
			if p.Type != elf.PT_LOAD || p.Filesz == 0 {
				continue
			}
			switch {
			case s.HasFileData() && s.Off >= p.Off && s.FileEnd() <= p.FileEnd():
				covered = true
				if !s.Allocatable() {
					fs = append(fs, Finding{s.Name, i, fmt.Sprintf(
						"non-allocatable section (%d bytes) inside the segment file image",
						s.Size,
					)})
				}
			case s.Allocatable() && s.Type == elf.SHT_NOBITS && s.Size != 0 &&
				s.Addr < p.Vaddr+p.Filesz && p.Vaddr < s.Addr+s.Size:
				fs = append(fs, Finding{s.Name, i, fmt.Sprintf(
					"NOBITS section at %#x overlaps the file-backed part of the segment",
					s.Addr,
				)})
			}
		}
		if !covered && s.Allocatable() && s.HasFileData() {
			fs = append(fs, Finding{s.Name, -1, fmt.Sprintf(
				"allocatable section at %#x (%d bytes) is not in any loadable segment",
				s.Addr, s.Size,
			)})
		}
	}
	return fs
}
