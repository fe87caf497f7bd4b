// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elffile reads the parts of an ELF executable that are needed to
// extract a loadable image from it: the file header, the program header table,
// the section header table with section names and the raw file contents.
//
// Both ELF classes (32 and 64-bit) in both byte orders are supported. The
// class and data encoding are taken from the identification bytes, nothing is
// assumed about the target.
package elffile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
)

// ProgramHeader describes one segment.
type ProgramHeader struct {
	Type   elf.ProgType
	Flags  elf.ProgFlag
	Off    uint64 // offset of the segment data in the file
	Vaddr  uint64 // address in the memory during execution
	Paddr  uint64 // physical location of the segment in the Flash/ROM
	Filesz uint64 // number of bytes backed by the file
	Memsz  uint64 // size in memory, Memsz-Filesz bytes are zero-initialized
	Align  uint64
}

// FileEnd returns the offset just after the file-backed part of the segment.
func (p *ProgramHeader) FileEnd() uint64 {
	return p.Off + p.Filesz
}

func (p *ProgramHeader) String() string {
	return fmt.Sprintf(
		"%v off=%#x vaddr=%#x paddr=%#x filesz=%#x memsz=%#x %v",
		p.Type, p.Off, p.Vaddr, p.Paddr, p.Filesz, p.Memsz, p.Flags,
	)
}

// SectionHeader describes one section.
type SectionHeader struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	Off   uint64
	Size  uint64
	Link  uint32
	Info  uint32
}

// Allocatable reports whether the section occupies memory at run time.
func (s *SectionHeader) Allocatable() bool {
	return s.Flags&elf.SHF_ALLOC != 0
}

// HasFileData reports whether the section has non-empty contents in the file.
func (s *SectionHeader) HasFileData() bool {
	return s.Type != elf.SHT_NOBITS && s.Type != elf.SHT_NULL && s.Size != 0
}

// FileEnd returns the offset just after the section contents in the file.
func (s *SectionHeader) FileEnd() uint64 {
	if !s.HasFileData() {
		return s.Off
	}
	return s.Off + s.Size
}

// File is a parsed ELF file. It must not be modified after Parse returns.
type File struct {
	Class     elf.Class
	Data      elf.Data
	ByteOrder binary.ByteOrder
	Type      elf.Type
	Machine   elf.Machine
	Entry     uint64
	Progs     []ProgramHeader
	Sections  []SectionHeader

	buf []byte
}

// Open reads the named file and parses it.
func Open(name string) (*File, error) {
	buf, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

// header holds the class independent part of the ELF file header.
type header struct {
	typ       uint16
	machine   uint16
	entry     uint64
	phoff     uint64
	shoff     uint64
	phentsize uint16
	phnum     uint16
	shentsize uint16
	shnum     uint16
	shstrndx  uint16
}

// Sizes of the on-disk structures.
const (
	header32Size  = 52
	header64Size  = 64
	prog32Size    = 32
	prog64Size    = 56
	section32Size = 40
	section64Size = 64
)

// Parse parses the ELF file stored in buf. The returned File refers to buf so
// buf must not be modified as long as the File is in use.
func Parse(buf []byte) (*File, error) {
	if len(buf) < elf.EI_NIDENT || string(buf[:4]) != elf.ELFMAG {
		return nil, formatErr(ErrNotELF, 0, "bad magic number")
	}
	f := &File{
		Class: elf.Class(buf[elf.EI_CLASS]),
		Data:  elf.Data(buf[elf.EI_DATA]),
		buf:   buf,
	}
	switch f.Data {
	case elf.ELFDATA2LSB:
		f.ByteOrder = binary.LittleEndian
	case elf.ELFDATA2MSB:
		f.ByteOrder = binary.BigEndian
	default:
		return nil, formatErr(
			ErrUnsupportedClass, elf.EI_DATA, "data encoding "+f.Data.String(),
		)
	}
	if f.Class != elf.ELFCLASS32 && f.Class != elf.ELFCLASS64 {
		return nil, formatErr(
			ErrUnsupportedClass, elf.EI_CLASS, "class "+f.Class.String(),
		)
	}
	h, err := f.readHeader()
	if err != nil {
		return nil, err
	}
	f.Type = elf.Type(h.typ)
	f.Machine = elf.Machine(h.machine)
	f.Entry = h.entry

	// Section 0 holds the real counts if they don't fit in the file header.
	phnum, shnum, shstrndx := int(h.phnum), int(h.shnum), int(h.shstrndx)
	if h.shoff != 0 && (phnum == 0xffff || shnum == 0 || shstrndx == int(elf.SHN_XINDEX)) {
		s0, _, err := f.readSection(h, 0)
		if err != nil {
			return nil, err
		}
		if phnum == 0xffff {
			phnum = int(s0.Info)
		}
		if shnum == 0 {
			if s0.Size > 1<<24 {
				return nil, formatErr(ErrTruncated, int64(h.shoff), "section count")
			}
			shnum = int(s0.Size)
		}
		if shstrndx == int(elf.SHN_XINDEX) {
			shstrndx = int(s0.Link)
		}
	}
	if h.shoff == 0 {
		shnum = 0
	}

	f.Progs = make([]ProgramHeader, phnum)
	for i := range f.Progs {
		p, err := f.readProg(h, i)
		if err != nil {
			return nil, err
		}
		if p.Filesz != 0 && !f.inFile(p.Off, p.Filesz) {
			return nil, formatErr(
				ErrTruncated, int64(p.Off),
				fmt.Sprintf("segment %d data (%#x bytes) exceeds file size %#x", i, p.Filesz, len(buf)),
			)
		}
		f.Progs[i] = p
	}

	f.Sections = make([]SectionHeader, shnum)
	nameOffs := make([]uint32, shnum)
	for i := range f.Sections {
		s, nameOff, err := f.readSection(h, i)
		if err != nil {
			return nil, err
		}
		if s.HasFileData() && !f.inFile(s.Off, s.Size) {
			return nil, formatErr(
				ErrTruncated, int64(s.Off),
				fmt.Sprintf("section %d data (%#x bytes) exceeds file size %#x", i, s.Size, len(buf)),
			)
		}
		f.Sections[i] = s
		nameOffs[i] = nameOff
	}
	if err := f.readSectionNames(shstrndx, nameOffs); err != nil {
		return nil, err
	}
	return f, nil
}

// inFile reports whether [off, off+size) lies within the file.
func (f *File) inFile(off, size uint64) bool {
	end := off + size
	return end >= off && end <= uint64(len(f.buf))
}

// entry returns the bytes of the i-th table entry of the given size.
func (f *File) entry(tableOff uint64, entsize uint16, i int, size int, what string) ([]byte, error) {
	if int(entsize) < size {
		return nil, formatErr(
			ErrTruncated, int64(tableOff),
			fmt.Sprintf("%s entry size %d < %d", what, entsize, size),
		)
	}
	off := tableOff + uint64(i)*uint64(entsize)
	if off < tableOff || !f.inFile(off, uint64(size)) {
		return nil, formatErr(
			ErrTruncated, int64(off), fmt.Sprintf("%s %d out of file bounds", what, i),
		)
	}
	return f.buf[off : off+uint64(size)], nil
}

func (f *File) readHeader() (h header, err error) {
	var size int
	if f.Class == elf.ELFCLASS32 {
		size = header32Size
	} else {
		size = header64Size
	}
	if len(f.buf) < size {
		return h, formatErr(ErrTruncated, int64(len(f.buf)), "file header")
	}
	r := bytes.NewReader(f.buf[:size])
	if f.Class == elf.ELFCLASS32 {
		var h32 elf.Header32
		if err = binary.Read(r, f.ByteOrder, &h32); err != nil {
			return h, formatErr(ErrTruncated, 0, err.Error())
		}
		h = header{
			h32.Type, h32.Machine, uint64(h32.Entry), uint64(h32.Phoff),
			uint64(h32.Shoff), h32.Phentsize, h32.Phnum, h32.Shentsize,
			h32.Shnum, h32.Shstrndx,
		}
	} else {
		var h64 elf.Header64
		if err = binary.Read(r, f.ByteOrder, &h64); err != nil {
			return h, formatErr(ErrTruncated, 0, err.Error())
		}
		h = header{
			h64.Type, h64.Machine, h64.Entry, h64.Phoff, h64.Shoff,
			h64.Phentsize, h64.Phnum, h64.Shentsize, h64.Shnum, h64.Shstrndx,
		}
	}
	return h, nil
}

func (f *File) readProg(h header, i int) (p ProgramHeader, err error) {
	if f.Class == elf.ELFCLASS32 {
		b, err := f.entry(h.phoff, h.phentsize, i, prog32Size, "program header")
		if err != nil {
			return p, err
		}
		var p32 elf.Prog32
		binary.Read(bytes.NewReader(b), f.ByteOrder, &p32)
		return ProgramHeader{
			Type:   elf.ProgType(p32.Type),
			Flags:  elf.ProgFlag(p32.Flags),
			Off:    uint64(p32.Off),
			Vaddr:  uint64(p32.Vaddr),
			Paddr:  uint64(p32.Paddr),
			Filesz: uint64(p32.Filesz),
			Memsz:  uint64(p32.Memsz),
			Align:  uint64(p32.Align),
		}, nil
	}
	b, err := f.entry(h.phoff, h.phentsize, i, prog64Size, "program header")
	if err != nil {
		return p, err
	}
	var p64 elf.Prog64
	binary.Read(bytes.NewReader(b), f.ByteOrder, &p64)
	return ProgramHeader{
		Type:   elf.ProgType(p64.Type),
		Flags:  elf.ProgFlag(p64.Flags),
		Off:    p64.Off,
		Vaddr:  p64.Vaddr,
		Paddr:  p64.Paddr,
		Filesz: p64.Filesz,
		Memsz:  p64.Memsz,
		Align:  p64.Align,
	}, nil
}

// readSection reads the i-th section header. The name is resolved later by
// readSectionNames using the returned offset into the section name table.
func (f *File) readSection(h header, i int) (s SectionHeader, nameOff uint32, err error) {
	if f.Class == elf.ELFCLASS32 {
		b, err := f.entry(h.shoff, h.shentsize, i, section32Size, "section header")
		if err != nil {
			return s, 0, err
		}
		var s32 elf.Section32
		binary.Read(bytes.NewReader(b), f.ByteOrder, &s32)
		nameOff = s32.Name
		s = SectionHeader{
			Type:  elf.SectionType(s32.Type),
			Flags: elf.SectionFlag(s32.Flags),
			Addr:  uint64(s32.Addr),
			Off:   uint64(s32.Off),
			Size:  uint64(s32.Size),
			Link:  s32.Link,
			Info:  s32.Info,
		}
	} else {
		b, err := f.entry(h.shoff, h.shentsize, i, section64Size, "section header")
		if err != nil {
			return s, 0, err
		}
		var s64 elf.Section64
		binary.Read(bytes.NewReader(b), f.ByteOrder, &s64)
		nameOff = s64.Name
		s = SectionHeader{
			Type:  elf.SectionType(s64.Type),
			Flags: elf.SectionFlag(s64.Flags),
			Addr:  s64.Addr,
			Off:   s64.Off,
			Size:  s64.Size,
			Link:  s64.Link,
			Info:  s64.Info,
		}
	}
	return s, nameOff, nil
}

func (f *File) readSectionNames(shstrndx int, nameOffs []uint32) error {
	var strtab []byte
	if shstrndx != int(elf.SHN_UNDEF) && len(f.Sections) != 0 {
		if shstrndx >= len(f.Sections) {
			return formatErr(
				ErrTruncated, -1,
				fmt.Sprintf("section name table index %d >= %d", shstrndx, len(f.Sections)),
			)
		}
		ss := &f.Sections[shstrndx]
		if ss.HasFileData() {
			strtab = f.buf[ss.Off:ss.FileEnd()]
		}
	}
	for i := range f.Sections {
		off := nameOffs[i]
		if off == 0 || strtab == nil {
			continue
		}
		if uint64(off) >= uint64(len(strtab)) {
			return formatErr(
				ErrTruncated, -1,
				fmt.Sprintf("section %d name offset %#x out of bounds", i, off),
			)
		}
		name := strtab[off:]
		if n := bytes.IndexByte(name, 0); n >= 0 {
			name = name[:n]
		}
		f.Sections[i].Name = string(name)
	}
	return nil
}

// SegmentData returns the file-backed bytes of p. The returned slice refers
// to the parsed buffer and must not be modified.
func (f *File) SegmentData(p *ProgramHeader) []byte {
	return f.buf[p.Off:p.FileEnd():p.FileEnd()]
}

// SectionData returns the contents of s or nil if s has no data in the file.
func (f *File) SectionData(s *SectionHeader) []byte {
	if !s.HasFileData() {
		return nil
	}
	return f.buf[s.Off:s.FileEnd():s.FileEnd()]
}

// Section returns the first section with the given name or nil.
func (f *File) Section(name string) *SectionHeader {
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			return &f.Sections[i]
		}
	}
	return nil
}

// MinLoadVaddr returns the lowest virtual address of all PT_LOAD segments.
// The ok result is false if there are no PT_LOAD segments.
func (f *File) MinLoadVaddr() (addr uint64, ok bool) {
	addr = ^uint64(0)
	for i := range f.Progs {
		if p := &f.Progs[i]; p.Type == elf.PT_LOAD && p.Vaddr <= addr {
			addr, ok = p.Vaddr, true
		}
	}
	if !ok {
		addr = 0
	}
	return
}
