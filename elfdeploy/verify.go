// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-kit/log/level"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/convert"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/image"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/profile"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

type verifyParams struct {
	*convertParams
	ELF string
	Ref string
}

func addVerifyParams(cmd commander) *verifyParams {
	params := new(verifyParams)
	params.convertParams = addConvertParams(cmd, "target", "Target profile used for the default gap fill and alignment.")
	cmd.Arg("elf", "ELF file.").Required().StringVar(&params.ELF)
	cmd.Arg("ref", "Reference binary, e.g. produced by objcopy -O binary.").Required().StringVar(&params.Ref)
	return params
}

// MismatchError reports the first difference between the image and the
// reference binary.
type MismatchError struct {
	Off      int
	Addr     uint64
	Got      int
	Want     int
	GotByte  int // -1 past the end
	WantByte int // -1 past the end
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf(
		"image differs from the reference at offset %#x (address %#x): %s != %s (image %d bytes, reference %d bytes)",
		e.Off, e.Addr, byteStr(e.GotByte), byteStr(e.WantByte), e.Got, e.Want,
	)
}

func byteStr(b int) string {
	if b < 0 {
		return "EOF"
	}
	return fmt.Sprintf("0x%02x", b)
}

func at(data []byte, i int) int {
	if i < len(data) {
		return int(data[i])
	}
	return -1
}

func verify(ctx context.Context, profiles *profile.Set, params *verifyParams) error {
	_, opts, align, err := params.build(profiles)
	if err != nil {
		return err
	}
	ref, err := os.ReadFile(params.Ref)
	if err != nil {
		return err
	}
	r, err := convert.Convert(ctx, params.ELF, opts)
	if err != nil {
		return err
	}
	img := r.Image.Align(align)
	off, equal := image.Compare(img.Data, ref)
	if !equal {
		return &MismatchError{
			Off: off, Addr: img.Base + uint64(off),
			Got: img.Size(), Want: len(ref),
			GotByte: at(img.Data, off), WantByte: at(ref, off),
		}
	}
	level.Info(util.Logger(ctx)).Log(
		"msg", "image is identical to the reference", "ref", params.Ref, "size", img.Size(),
	)
	return nil
}
