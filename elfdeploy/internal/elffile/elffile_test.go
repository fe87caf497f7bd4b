// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elffile

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/elftest"
)

func firmware(class elf.Class, data elf.Data) *elftest.File {
	return &elftest.File{
		Class: class,
		Data:  data,
		Entry: 0x1001,
		Segments: []elftest.Segment{
			{Paddr: 0x1000, Data: elftest.Seq(0xa0, 16), Flags: elf.PF_R | elf.PF_X},
			{Paddr: 0x1020, Vaddr: 0x2000_0000, Data: elftest.Seq(0xb0, 8), Memsz: 64, Flags: elf.PF_R | elf.PF_W},
		},
		Sections: []elftest.Section{
			{Name: ".text", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: 0x1000, Size: 16},
			{Name: ".data", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: 0x2000_0000, Size: 8},
			{Name: ".bss", Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: 0x2000_0008, Size: 56},
			{Name: ".comment", Type: elf.SHT_PROGBITS, Data: []byte("GCC 14\x00")},
		},
	}
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		name  string
		class elf.Class
		data  elf.Data
		order binary.ByteOrder
	}{
		{"elf32le", elf.ELFCLASS32, elf.ELFDATA2LSB, binary.LittleEndian},
		{"elf32be", elf.ELFCLASS32, elf.ELFDATA2MSB, binary.BigEndian},
		{"elf64le", elf.ELFCLASS64, elf.ELFDATA2LSB, binary.LittleEndian},
		{"elf64be", elf.ELFCLASS64, elf.ELFDATA2MSB, binary.BigEndian},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Parse(firmware(tc.class, tc.data).Bytes())
			require.NoError(t, err)
			assert.Equal(t, tc.class, f.Class)
			assert.Equal(t, tc.data, f.Data)
			assert.Equal(t, tc.order, f.ByteOrder)
			assert.Equal(t, elf.EM_ARM, f.Machine)
			assert.Equal(t, elf.ET_EXEC, f.Type)
			assert.Equal(t, uint64(0x1001), f.Entry)

			require.Len(t, f.Progs, 2)
			p0, p1 := &f.Progs[0], &f.Progs[1]
			assert.Equal(t, elf.PT_LOAD, p0.Type)
			assert.Equal(t, uint64(0x1000), p0.Paddr)
			assert.Equal(t, uint64(16), p0.Filesz)
			assert.Equal(t, elftest.Seq(0xa0, 16), f.SegmentData(p0))
			assert.Equal(t, uint64(0x1020), p1.Paddr)
			assert.Equal(t, uint64(0x2000_0000), p1.Vaddr)
			assert.Equal(t, uint64(8), p1.Filesz)
			assert.Equal(t, uint64(64), p1.Memsz)
			assert.Equal(t, elf.PF_R|elf.PF_W, p1.Flags)
			assert.Equal(t, elftest.Seq(0xb0, 8), f.SegmentData(p1))

			// null section, 4 sections, .shstrtab
			require.Len(t, f.Sections, 6)
			names := make([]string, len(f.Sections))
			for i, s := range f.Sections {
				names[i] = s.Name
			}
			assert.Equal(t, []string{"", ".text", ".data", ".bss", ".comment", ".shstrtab"}, names)

			text := f.Section(".text")
			require.NotNil(t, text)
			assert.True(t, text.Allocatable())
			assert.True(t, text.HasFileData())
			assert.Equal(t, p0.Off, text.Off)
			assert.Equal(t, elftest.Seq(0xa0, 16), f.SectionData(text))

			bss := f.Section(".bss")
			require.NotNil(t, bss)
			assert.True(t, bss.Allocatable())
			assert.False(t, bss.HasFileData())
			assert.Nil(t, f.SectionData(bss))

			comment := f.Section(".comment")
			require.NotNil(t, comment)
			assert.False(t, comment.Allocatable())
			assert.Equal(t, []byte("GCC 14\x00"), f.SectionData(comment))

			assert.Nil(t, f.Section(".missing"))
		})
	}
}

func TestParseNoSections(t *testing.T) {
	ef := &elftest.File{Segments: []elftest.Segment{{Paddr: 0x0800_0000, Data: []byte{1, 2, 3}}}}
	f, err := Parse(ef.Bytes())
	require.NoError(t, err)
	assert.Empty(t, f.Sections)
	require.Len(t, f.Progs, 1)
	assert.Equal(t, []byte{1, 2, 3}, f.SegmentData(&f.Progs[0]))
}

func TestParseErrors(t *testing.T) {
	valid := firmware(elf.ELFCLASS32, elf.ELFDATA2LSB).Bytes()
	clone := func(f func(b []byte) []byte) []byte {
		b := append([]byte(nil), valid...)
		return f(b)
	}
	le := binary.LittleEndian
	tests := map[string]struct {
		data []byte
		err  error
	}{
		"empty":      {nil, ErrNotELF},
		"text":       {[]byte("#!/bin/sh\necho hello, world\n"), ErrNotELF},
		"shortIdent": {valid[:8], ErrNotELF},
		"badMagic":   {clone(func(b []byte) []byte { b[1] = 'e'; return b }), ErrNotELF},
		"classNone":  {clone(func(b []byte) []byte { b[elf.EI_CLASS] = 0; return b }), ErrUnsupportedClass},
		"class3":     {clone(func(b []byte) []byte { b[elf.EI_CLASS] = 3; return b }), ErrUnsupportedClass},
		"dataNone":   {clone(func(b []byte) []byte { b[elf.EI_DATA] = 0; return b }), ErrUnsupportedClass},
		"header":     {valid[:40], ErrTruncated},
		"progTable":  {valid[:52+40], ErrTruncated},
		"segment":    {valid[:52+2*32+10], ErrTruncated},
		"phentsize": {clone(func(b []byte) []byte {
			le.PutUint16(b[42:], 16)
			return b
		}), ErrTruncated},
		"phoff": {clone(func(b []byte) []byte {
			le.PutUint32(b[28:], 0xffff_fff0)
			return b
		}), ErrTruncated},
		"shoff": {clone(func(b []byte) []byte {
			le.PutUint32(b[32:], uint32(len(b)-8))
			return b
		}), ErrTruncated},
		"shstrndx": {clone(func(b []byte) []byte {
			le.PutUint16(b[50:], 100)
			return b
		}), ErrTruncated},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f, err := Parse(tc.data)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.ErrorIs(t, err, tc.err)
			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Contains(t, fe.Error(), "elffile: ")
		})
	}
}

func TestParseDoesNotModifyInput(t *testing.T) {
	b := firmware(elf.ELFCLASS64, elf.ELFDATA2LSB).Bytes()
	orig := append([]byte(nil), b...)
	_, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, orig, b)
}

func TestOpen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "fw.elf")
	require.NoError(t, os.WriteFile(name, firmware(elf.ELFCLASS32, elf.ELFDATA2LSB).Bytes(), 0o644))
	f, err := Open(name)
	require.NoError(t, err)
	assert.Len(t, f.Progs, 2)

	_, err = Open(filepath.Join(t.TempDir(), "missing.elf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMinLoadVaddr(t *testing.T) {
	f, err := Parse(firmware(elf.ELFCLASS32, elf.ELFDATA2LSB).Bytes())
	require.NoError(t, err)
	addr, ok := f.MinLoadVaddr()
	assert.True(t, ok)
	assert.Equal(t, uint64(0x1000), addr)

	ef := &elftest.File{Segments: []elftest.Segment{{Type: elf.PT_NOTE, Paddr: 0x10, Data: []byte{1}}}}
	f, err = Parse(ef.Bytes())
	require.NoError(t, err)
	addr, ok = f.MinLoadVaddr()
	assert.False(t, ok)
	assert.Zero(t, addr)
}

func TestFormatErrorString(t *testing.T) {
	err := &FormatError{Err: ErrTruncated, Off: 0x34, Msg: "program header 1 out of file bounds"}
	assert.Equal(t, "elffile: truncated or malformed ELF file: program header 1 out of file bounds at offset 0x34", err.Error())
	err = &FormatError{Err: ErrNotELF, Off: -1}
	assert.Equal(t, "elffile: not an ELF file", err.Error())
}
