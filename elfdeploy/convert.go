// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/convert"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/image"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/profile"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

var errUnknownCommand = errors.New("unknown command")

// convertParams are the image building options shared by all commands.
type convertParams struct {
	Target       string
	GapFill      string
	Include      string
	TrimSections bool
	MaxSize      string
	Align        string
}

func addConvertParams(cmd commander, targetFlag, targetHelp string) *convertParams {
	params := new(convertParams)
	cmd.Flag(targetFlag, targetHelp).StringVar(&params.Target)
	cmd.Flag("gap-fill", "Byte used to fill the gaps between segments (default 0 or the target's erase value).").StringVar(&params.GapFill)
	cmd.Flag("inc", "Binary files to be included BIN1:ADDR1[,BIN2:ADDR2[,...]].").StringVar(&params.Include)
	cmd.Flag("trim-sections", "Use allocatable sections instead of whole segments (objcopy section mode).").BoolVar(&params.TrimSections)
	cmd.Flag("max-size", "Fail if the image is larger than this (e.g. 2MiB).").StringVar(&params.MaxSize)
	cmd.Flag("align", "Pad the image to a multiple of this many bytes.").StringVar(&params.Align)
	return params
}

// build resolves the target profile and the image options.
func (p *convertParams) build(profiles *profile.Set) (*profile.Profile, image.Options, int, error) {
	var (
		prof  *profile.Profile
		opts  image.Options
		align int
		err   error
	)
	if p.Target != "" {
		if prof, err = profiles.Lookup(p.Target); err != nil {
			return nil, opts, 0, err
		}
		opts.GapFill = prof.GapFill
		align = prof.Align
	}
	if p.GapFill != "" {
		b, err := util.ParseUint(p.GapFill, 8)
		if err != nil {
			return nil, opts, 0, errors.Wrap(err, "bad --gap-fill")
		}
		opts.GapFill = byte(b)
	}
	if p.Include != "" {
		if opts.Include, err = util.ReadBins(p.Include); err != nil {
			return nil, opts, 0, errors.Wrap(err, "bad --inc")
		}
	}
	opts.SectionTrim = p.TrimSections
	if p.MaxSize != "" {
		if opts.MaxSize, err = humanize.ParseBytes(p.MaxSize); err != nil {
			return nil, opts, 0, errors.Wrap(err, "bad --max-size")
		}
	}
	if p.Align != "" {
		a, err := util.ParseUint(p.Align, 31)
		if err != nil {
			return nil, opts, 0, errors.Wrap(err, "bad --align")
		}
		align = int(a)
	}
	return prof, opts, align, nil
}

func writeFile(ctx context.Context, name string, data []byte, what string, img *image.Image) error {
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s file", what)
	}
	level.Info(util.Logger(ctx)).Log(
		"msg", what+" file is generated", "file", name,
		"size", humanize.IBytes(uint64(len(data))),
		"base", fmt.Sprintf("%#x", img.Base),
	)
	return nil
}

type binParams struct {
	*convertParams
	ELFs     []string
	Output   string
	Parallel int
}

func addBinParams(cmd commander) *binParams {
	params := new(binParams)
	params.convertParams = addConvertParams(cmd, "target", "Target profile used for the default gap fill and alignment.")
	cmd.Flag("output", "Output file (only with a single ELF file).").Short('o').StringVar(&params.Output)
	cmd.Flag("parallel", "Number of files converted at the same time (0 means the number of CPUs).").Default("0").IntVar(&params.Parallel)
	cmd.Arg("elf", "ELF files (default: inferred from the module in the current directory).").StringsVar(&params.ELFs)
	return params
}

func binConvert(ctx context.Context, profiles *profile.Set, params *binParams) error {
	_, opts, align, err := params.build(profiles)
	if err != nil {
		return err
	}
	elfs := params.ELFs
	if len(elfs) > 1 && params.Output != "" {
		return errors.New("--output can be used only with a single ELF file")
	}
	if len(elfs) == 0 {
		elfs = []string{""}
	}
	outs := make([]string, len(elfs))
	for i, name := range elfs {
		if elfs[i], outs[i], err = util.InOutFiles(name, ".elf", params.Output, ".bin"); err != nil {
			return err
		}
	}
	results, err := convert.All(ctx, elfs, convert.Options{Image: opts, Parallel: params.Parallel})
	if err != nil {
		return err
	}
	for i, r := range results {
		img := r.Image.Align(align)
		if err := writeFile(ctx, outs[i], img.Data, "bin", img); err != nil {
			return err
		}
	}
	return nil
}
