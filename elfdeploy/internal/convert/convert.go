// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package convert turns ELF files into flat binary images.
package convert

import (
	"context"
	"fmt"
	"runtime"

	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/elffile"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/image"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

type Options struct {
	Image image.Options

	// Parallel limits the number of files converted at the same time by All.
	// Zero means runtime.GOMAXPROCS(0).
	Parallel int
}

// Result is the outcome of converting one ELF file.
type Result struct {
	Path     string
	File     *elffile.File
	Image    *image.Image
	Findings []image.Finding
}

// Convert reads the ELF file and builds its binary image. The section headers
// are cross-validated against the loadable segments and every finding is
// logged as a warning.
func Convert(ctx context.Context, path string, opts image.Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := util.Logger(ctx)
	f, err := elffile.Open(path)
	if err != nil {
		return nil, err
	}
	level.Debug(logger).Log(
		"msg", "read ELF file", "path", path, "class", f.Class,
		"machine", f.Machine, "progs", len(f.Progs), "sections", len(f.Sections),
	)
	r := &Result{Path: path, File: f, Findings: image.Check(f)}
	for _, fd := range r.Findings {
		level.Warn(logger).Log("path", path, "msg", fd.String())
	}
	r.Image, err = image.Build(f, opts)
	if err != nil {
		return nil, err
	}
	level.Debug(logger).Log(
		"msg", "built image", "path", path, "base", fmt.Sprintf("%#x", r.Image.Base),
		"size", r.Image.Size(), "regions", len(r.Image.Regions),
	)
	return r, nil
}

// All converts the files in parallel. The results are in the order of paths.
// The first error cancels the remaining conversions.
func All(ctx context.Context, paths []string, opts Options) ([]*Result, error) {
	results := make([]*Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			r, err := Convert(gctx, path, opts.Image)
			if err != nil {
				return &Error{Path: path, Err: err}
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Error records the file whose conversion failed.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return e.Path + ": " + e.Err.Error()
}
