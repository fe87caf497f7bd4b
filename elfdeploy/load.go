// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/convert"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/dfu"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/profile"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

type loadParams struct {
	*convertParams
	ELF     string
	BusAddr string
	Quiet   bool
}

func addLoadParams(cmd commander) *loadParams {
	params := new(loadParams)
	params.convertParams = addConvertParams(cmd, "target", "Target device and transport (stm32: STM32 via USB DFU).")
	cmd.Flag("usb", "Select the USB device by BUS:ADDR.").StringVar(&params.BusAddr)
	cmd.Flag("quiet", "Do not draw the progress bar.").Short('q').BoolVar(&params.Quiet)
	cmd.Arg("elf", "ELF file.").StringVar(&params.ELF)
	return params
}

// dfuTarget returns the DFU target for the profile.
func dfuTarget(prof *profile.Profile) (*dfu.Target, error) {
	if prof.Transport != profile.DFU {
		return nil, fmt.Errorf("target %s cannot be loaded using USB DFU", prof.Name)
	}
	t := dfu.Targets[prof.Name]
	if t == nil {
		return nil, fmt.Errorf("no USB DFU parameters for target %s", prof.Name)
	}
	return t, nil
}

func load(ctx context.Context, profiles *profile.Set, params *loadParams) error {
	if params.Target == "" {
		params.Target = "stm32"
	}
	prof, opts, _, err := params.build(profiles)
	if err != nil {
		return err
	}
	t, err := dfuTarget(prof)
	if err != nil {
		return err
	}
	if params.GapFill == "" {
		opts.GapFill = t.GapFill
	}
	elf, _, err := util.InOutFiles(params.ELF, ".elf", "", "")
	if err != nil {
		return err
	}
	r, err := convert.Convert(ctx, elf, opts)
	if err != nil {
		return err
	}
	var progress func(done, total int)
	if !params.Quiet {
		progress = func(done, total int) {
			util.Progress(os.Stderr, "Loading:", done, total, 1024, "KiB")
		}
	}
	return dfu.Load(ctx, t, params.BusAddr, r.Image, progress)
}
