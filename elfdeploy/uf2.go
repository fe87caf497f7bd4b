// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/convert"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/profile"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/uf2"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

type uf2Params struct {
	*convertParams
	ELF      string
	Output   string
	BaseAddr string
}

func addUF2Params(cmd commander) *uf2Params {
	params := new(uf2Params)
	params.convertParams = addConvertParams(cmd, "family", "UF2 family name or ID (see the families command).")
	cmd.Flag("base-addr", "Target address of the image (default: the lowest virtual address of the loadable segments).").StringVar(&params.BaseAddr)
	cmd.Arg("elf", "ELF file.").StringVar(&params.ELF)
	cmd.Arg("uf2", "Output file.").StringVar(&params.Output)
	return params
}

// uf2Build converts the ELF file to UF2. It returns the result of the
// conversion and the UF2 data.
func uf2Build(ctx context.Context, profiles *profile.Set, params *uf2Params, elf string) (*convert.Result, []byte, error) {
	if params.Target == "" {
		return nil, nil, errors.New("the UF2 family is required (--family)")
	}
	prof, opts, align, err := params.build(profiles)
	if err != nil {
		return nil, nil, err
	}
	if prof.Family == 0 {
		return nil, nil, fmt.Errorf("target %s has no UF2 family ID", prof.Name)
	}
	r, err := convert.Convert(ctx, elf, opts)
	if err != nil {
		return nil, nil, err
	}
	img := r.Image.Align(align)
	var base uint64
	switch {
	case params.BaseAddr != "":
		if base, err = util.ParseUint(params.BaseAddr, 32); err != nil {
			return nil, nil, errors.Wrap(err, "bad --base-addr")
		}
	default:
		var ok bool
		if base, ok = r.File.MinLoadVaddr(); !ok {
			base = img.Base
		}
	}
	level.Info(util.Logger(ctx)).Log(
		"msg", "generating UF2", "family", fmt.Sprintf("0x%08x", prof.Family),
		"base", fmt.Sprintf("0x%08x", base),
	)
	var buf bytes.Buffer
	if err := uf2.Encode(&buf, img, uf2.Options{Family: prof.Family, Addr: base}); err != nil {
		return nil, nil, err
	}
	r.Image = img
	return r, buf.Bytes(), nil
}

func uf2Convert(ctx context.Context, profiles *profile.Set, params *uf2Params) (string, error) {
	elf, out, err := util.InOutFiles(params.ELF, ".elf", params.Output, ".uf2")
	if err != nil {
		return "", err
	}
	r, data, err := uf2Build(ctx, profiles, params, elf)
	if err != nil {
		return "", err
	}
	return out, writeFile(ctx, out, data, "uf2", r.Image)
}
