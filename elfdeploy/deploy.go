// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"
	"github.com/spf13/afero"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/deploy"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/profile"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

type deployParams struct {
	*uf2Params
	Path     string
	Retry    int
	Interval time.Duration
	Quiet    bool

	fs afero.Fs
}

func addDeployParams(cmd commander) *deployParams {
	params := &deployParams{fs: afero.NewOsFs()}
	params.uf2Params = addUF2Params(cmd)
	cmd.Flag("path", "Directory to copy the UF2 file to or 'auto' to find the mounted bootloader drive.").Short('p').StringVar(&params.Path)
	cmd.Flag("deploy-retry-count", "Number of attempts to copy the UF2 file.").Default("40").IntVar(&params.Retry)
	cmd.Flag("deploy-retry-interval", "Delay between attempts.").Default("500ms").DurationVar(&params.Interval)
	cmd.Flag("quiet", "Do not draw the progress bar.").Short('q').BoolVar(&params.Quiet)
	return params
}

// deployUF2 writes the BIN and UF2 files next to the ELF file and, if the path
// is set, copies the UF2 file to the device.
func deployUF2(ctx context.Context, profiles *profile.Set, params *deployParams) error {
	logger := util.Logger(ctx)
	elf, uf2Name, err := util.InOutFiles(params.ELF, ".elf", params.Output, ".uf2")
	if err != nil {
		return err
	}
	if fi, err := os.Stat(elf); err == nil {
		level.Info(logger).Log("msg", "deploying", "elf", elf, "size", humanize.IBytes(uint64(fi.Size())))
	}
	r, data, err := uf2Build(ctx, profiles, params.uf2Params, elf)
	if err != nil {
		return err
	}
	_, binName, err := util.InOutFiles(elf, ".elf", "", ".bin")
	if err != nil {
		return err
	}
	if err := writeFile(ctx, binName, r.Image.Data, "bin", r.Image); err != nil {
		return err
	}
	if err := writeFile(ctx, uf2Name, data, "uf2", r.Image); err != nil {
		return err
	}
	if params.Path == "" {
		level.Info(logger).Log("msg", "path is not specified, skipping deploy")
		return nil
	}
	opts := deploy.Options{
		Path:     params.Path,
		Retry:    params.Retry,
		Interval: params.Interval,
	}
	if !params.Quiet {
		opts.Progress = func(done, total int) {
			util.Progress(os.Stderr, "Copying:", done, total, 1024, "KiB")
		}
	}
	dst, err := deploy.UF2(ctx, params.fs, uf2Name, data, opts)
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "copied UF2 file", "dst", dst)
	return nil
}
