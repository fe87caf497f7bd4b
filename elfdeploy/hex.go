// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"math"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/convert"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/hex"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/profile"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

type hexParams struct {
	*convertParams
	ELF     string
	Output  string
	LineLen int
}

func addHexParams(cmd commander) *hexParams {
	params := new(hexParams)
	params.convertParams = addConvertParams(cmd, "target", "Target profile used for the default gap fill and alignment.")
	cmd.Flag("line-len", "Number of data bytes per record.").Default("16").IntVar(&params.LineLen)
	cmd.Arg("elf", "ELF file.").StringVar(&params.ELF)
	cmd.Arg("hex", "Output file.").StringVar(&params.Output)
	return params
}

func hexConvert(ctx context.Context, profiles *profile.Set, params *hexParams) error {
	_, opts, align, err := params.build(profiles)
	if err != nil {
		return err
	}
	elf, out, err := util.InOutFiles(params.ELF, ".elf", params.Output, ".hex")
	if err != nil {
		return err
	}
	r, err := convert.Convert(ctx, elf, opts)
	if err != nil {
		return err
	}
	img := r.Image.Align(align)
	var entry *uint32
	if r.File.Entry <= math.MaxUint32 {
		e := uint32(r.File.Entry)
		entry = &e
	}
	var buf bytes.Buffer
	if err := hex.Encode(&buf, img, params.LineLen, entry); err != nil {
		return err
	}
	return writeFile(ctx, out, buf.Bytes(), "hex", img)
}
