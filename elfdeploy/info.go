// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"debug/elf"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/elffile"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/image"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/profile"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

func hexStr(v uint64) string {
	return fmt.Sprintf("%#08x", v)
}

func progFlags(f elf.ProgFlag) string {
	b := []byte("---")
	if f&elf.PF_R != 0 {
		b[0] = 'R'
	}
	if f&elf.PF_W != 0 {
		b[1] = 'W'
	}
	if f&elf.PF_X != 0 {
		b[2] = 'X'
	}
	return string(b)
}

func sectionFlags(f elf.SectionFlag) string {
	var b strings.Builder
	if f&elf.SHF_WRITE != 0 {
		b.WriteByte('W')
	}
	if f&elf.SHF_ALLOC != 0 {
		b.WriteByte('A')
	}
	if f&elf.SHF_EXECINSTR != 0 {
		b.WriteByte('X')
	}
	return b.String()
}

func info(ctx context.Context, name string) error {
	name, _, err := util.InOutFiles(name, ".elf", "", "")
	if err != nil {
		return err
	}
	f, err := elffile.Open(name)
	if err != nil {
		return err
	}
	out := output(ctx)
	fmt.Fprintf(out, "%s: %s %s %s, entry %#x\n", name, f.Class, f.Data, f.Machine, f.Entry)

	fmt.Fprintln(out, "\nProgram headers:")
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Idx", "Type", "Offset", "VirtAddr", "PhysAddr", "FileSiz", "MemSiz", "Flg"})
	for i, p := range f.Progs {
		table.Append([]string{
			fmt.Sprint(i), strings.TrimPrefix(p.Type.String(), "PT_"),
			hexStr(p.Off), hexStr(p.Vaddr), hexStr(p.Paddr),
			hexStr(p.Filesz), hexStr(p.Memsz), progFlags(p.Flags),
		})
	}
	table.Render()

	if len(f.Sections) != 0 {
		fmt.Fprintln(out, "\nSection headers:")
		table = tablewriter.NewWriter(out)
		table.SetHeader([]string{"Idx", "Name", "Type", "Addr", "Offset", "Size", "Flg"})
		for i, s := range f.Sections {
			table.Append([]string{
				fmt.Sprint(i), s.Name, strings.TrimPrefix(s.Type.String(), "SHT_"),
				hexStr(s.Addr), hexStr(s.Off), hexStr(s.Size), sectionFlags(s.Flags),
			})
		}
		table.Render()
	}

	if fs := image.Check(f); len(fs) != 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, fd := range fs {
			fmt.Fprintln(out, "  "+fd.String())
		}
	}

	img, err := image.Build(f, image.Options{})
	if err != nil {
		return err
	}
	fmt.Fprintf(
		out, "\nImage: %#x-%#x, %d bytes (%s), %d regions\n",
		img.Base, img.End(), img.Size(), humanize.IBytes(uint64(img.Size())), len(img.Regions),
	)
	return nil
}

func families(ctx context.Context, profiles *profile.Set) error {
	table := tablewriter.NewWriter(output(ctx))
	table.SetHeader([]string{"Name", "Family", "Transport", "Description"})
	table.SetAutoWrapText(false)
	for _, p := range profiles.List() {
		family := "-"
		if p.Family != 0 {
			family = fmt.Sprintf("%#010x", p.Family)
		}
		table.Append([]string{p.Name, family, p.Transport, p.Description})
	}
	table.Render()
	return nil
}
