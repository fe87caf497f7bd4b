// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elftest writes small synthetic ELF executables for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

type Segment struct {
	Type  elf.ProgType // PT_LOAD if zero
	Flags elf.ProgFlag
	Paddr uint64
	Vaddr uint64 // Paddr if zero
	Data  []byte
	Memsz uint64 // len(Data) if less than len(Data)
}

// Section describes a section header. A section with nil Data and an Addr
// inside a segment's file image refers to the segment data. A section with
// non-nil Data gets its own place in the file.
type Section struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	Size  uint64 // len(Data) if Data != nil
	Data  []byte
}

type File struct {
	Class    elf.Class   // ELFCLASS32 if zero
	Data     elf.Data    // ELFDATA2LSB if zero
	Machine  elf.Machine // EM_ARM if zero
	Entry    uint64
	Segments []Segment
	Sections []Section

	// MapHeaders makes the first segment start at file offset 0 so it also
	// covers the file header and the program header table, as linkers do for
	// hosted executables.
	MapHeaders bool
}

func align(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}

// Bytes returns the encoded ELF file.
func (f *File) Bytes() []byte {
	class, data, machine := f.Class, f.Data, f.Machine
	if class == elf.ELFCLASSNONE {
		class = elf.ELFCLASS32
	}
	if data == elf.ELFDATANONE {
		data = elf.ELFDATA2LSB
	}
	if machine == elf.EM_NONE {
		machine = elf.EM_ARM
	}
	var bo binary.ByteOrder = binary.LittleEndian
	if data == elf.ELFDATA2MSB {
		bo = binary.BigEndian
	}
	is64 := class == elf.ELFCLASS64
	ehsize, phentsize, shentsize := uint64(52), uint64(32), uint64(40)
	if is64 {
		ehsize, phentsize, shentsize = 64, 56, 64
	}

	// Layout: header, program headers, segment data, section data, section
	// name table, section headers.
	off := ehsize + uint64(len(f.Segments))*phentsize
	segOff := make([]uint64, len(f.Segments))
	for i, s := range f.Segments {
		if !(i == 0 && f.MapHeaders) {
			off = align(off, 4)
		}
		segOff[i] = off
		off += uint64(len(s.Data))
	}
	var sections []Section
	var secOff []uint64
	var shstrtab []byte
	var nameOff []uint32
	if len(f.Sections) != 0 {
		sections = append([]Section{{}}, f.Sections...)
		sections = append(sections, Section{Name: ".shstrtab", Type: elf.SHT_STRTAB})
		shstrtab = []byte{0}
		nameOff = make([]uint32, len(sections))
		for i, s := range sections[1:] {
			nameOff[i+1] = uint32(len(shstrtab))
			shstrtab = append(append(shstrtab, s.Name...), 0)
		}
		sections[len(sections)-1].Data = shstrtab
		secOff = make([]uint64, len(sections))
		for i := range sections {
			s := &sections[i]
			if s.Data != nil {
				s.Size = uint64(len(s.Data))
				off = align(off, 4)
				secOff[i] = off
				off += s.Size
				continue
			}
			secOff[i] = off // NOBITS or unmapped
			for k, seg := range f.Segments {
				vaddr := seg.Vaddr
				if vaddr == 0 {
					vaddr = seg.Paddr
				}
				if s.Addr >= vaddr && s.Addr < vaddr+uint64(len(seg.Data)) {
					secOff[i] = segOff[k] + s.Addr - vaddr
					break
				}
			}
		}
	}
	shoff := uint64(0)
	if len(sections) != 0 {
		off = align(off, 8)
		shoff = off
		off += uint64(len(sections)) * shentsize
	}

	buf := bytes.NewBuffer(make([]byte, 0, off))
	ident := [elf.EI_NIDENT]byte{0x7f, 'E', 'L', 'F', byte(class), byte(data), byte(elf.EV_CURRENT)}
	shstrndx := uint16(0)
	if len(sections) != 0 {
		shstrndx = uint16(len(sections) - 1)
	}
	if is64 {
		binary.Write(buf, bo, &elf.Header64{
			Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(machine),
			Version: uint32(elf.EV_CURRENT), Entry: f.Entry, Phoff: ehsize,
			Shoff: shoff, Ehsize: uint16(ehsize), Phentsize: uint16(phentsize),
			Phnum: uint16(len(f.Segments)), Shentsize: uint16(shentsize),
			Shnum: uint16(len(sections)), Shstrndx: shstrndx,
		})
	} else {
		binary.Write(buf, bo, &elf.Header32{
			Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(machine),
			Version: uint32(elf.EV_CURRENT), Entry: uint32(f.Entry),
			Phoff: uint32(ehsize), Shoff: uint32(shoff), Ehsize: uint16(ehsize),
			Phentsize: uint16(phentsize), Phnum: uint16(len(f.Segments)),
			Shentsize: uint16(shentsize), Shnum: uint16(len(sections)),
			Shstrndx: shstrndx,
		})
	}
	for i, s := range f.Segments {
		typ := s.Type
		if typ == elf.PT_NULL {
			typ = elf.PT_LOAD
		}
		vaddr := s.Vaddr
		if vaddr == 0 {
			vaddr = s.Paddr
		}
		o, paddr, filesz := segOff[i], s.Paddr, uint64(len(s.Data))
		memsz := max(s.Memsz, filesz)
		if i == 0 && f.MapHeaders {
			o, paddr, vaddr = 0, paddr-segOff[0], vaddr-segOff[0]
			filesz += segOff[0]
			memsz += segOff[0]
		}
		if is64 {
			binary.Write(buf, bo, &elf.Prog64{
				Type: uint32(typ), Flags: uint32(s.Flags), Off: o,
				Vaddr: vaddr, Paddr: paddr, Filesz: filesz, Memsz: memsz, Align: 4,
			})
		} else {
			binary.Write(buf, bo, &elf.Prog32{
				Type: uint32(typ), Off: uint32(o), Vaddr: uint32(vaddr),
				Paddr: uint32(paddr), Filesz: uint32(filesz), Memsz: uint32(memsz),
				Flags: uint32(s.Flags), Align: 4,
			})
		}
	}
	pad := func(to uint64) {
		for uint64(buf.Len()) < to {
			buf.WriteByte(0)
		}
	}
	for i, s := range f.Segments {
		pad(segOff[i])
		buf.Write(s.Data)
	}
	for i, s := range sections {
		if s.Data != nil {
			pad(secOff[i])
			buf.Write(s.Data)
		}
	}
	pad(shoff)
	for i, s := range sections {
		if i == 0 {
			binary.Write(buf, bo, make([]byte, shentsize))
			continue
		}
		if is64 {
			binary.Write(buf, bo, &elf.Section64{
				Name: nameOff[i], Type: uint32(s.Type), Flags: uint64(s.Flags),
				Addr: s.Addr, Off: secOff[i], Size: s.Size, Addralign: 1,
			})
		} else {
			binary.Write(buf, bo, &elf.Section32{
				Name: nameOff[i], Type: uint32(s.Type), Flags: uint32(s.Flags),
				Addr: uint32(s.Addr), Off: uint32(secOff[i]), Size: uint32(s.Size),
				Addralign: 1,
			})
		}
	}
	return buf.Bytes()
}

// Seq returns n bytes: first, first+1, ...
func Seq(first byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = first + byte(i)
	}
	return b
}
