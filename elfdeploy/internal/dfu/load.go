// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dfu

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"
	usb "github.com/google/gousb"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/image"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

// Target describes how to load an image onto a device family.
type Target struct {
	Vendor, Product usb.ID
	FirstBlock      uint16 // block number of the first image block
	BlockSize       int
	PollSpeed       uint
	Erase           []byte // command sent as block 0 before the image, if any
	GapFill         byte

	// ResetErr ignores the error of the final zero-length download, which
	// resets some devices before they can respond.
	ResetErr bool
}

var Targets = map[string]*Target{
	// The wTransferSize in the DFU functional descriptor allows 2048 byte
	// blocks but gousb does not expose the extra descriptors.
	"stm32": {
		Vendor: 0x0483, Product: 0xdf11,
		FirstBlock: 2, BlockSize: 1024, PollSpeed: 64,
		Erase:    []byte{0x41},
		GapFill:  0xff,
		ResetErr: true,
	},
}

// Load finds the device of target t in the DFU mode, erases it if required
// and downloads img block by block. If busAddr is not empty it selects the
// device by its BUS:ADDR USB address. The progress function, if not nil, is
// called after every block.
func Load(ctx context.Context, t *Target, busAddr string, img *image.Image, progress func(done, total int)) (err error) {
	defer wrapErr("Load", &err)

	if t.BlockSize <= 0 {
		return fmt.Errorf("%w: %d", errBadBlockSize, t.BlockSize)
	}
	uc, err := openUSB(t, busAddr)
	if err != nil {
		return err
	}
	defer uc.close()
	c := &conn{dev: uc.dev, iface: uc.iface, pollSpeed: t.PollSpeed}
	return load(ctx, c, t, img, progress)
}

func load(ctx context.Context, c *conn, t *Target, img *image.Image, progress func(done, total int)) error {
	if t.BlockSize <= 0 {
		return fmt.Errorf("%w: %d", errBadBlockSize, t.BlockSize)
	}
	logger := util.Logger(ctx)
	if t.Erase != nil {
		level.Info(logger).Log("msg", "erasing flash")
		if err := c.download(ctx, 0, t.Erase); err != nil {
			return fmt.Errorf("erase: %w", err)
		}
	}
	data := img.Align(t.BlockSize).Data
	blk := t.FirstBlock
	for i := 0; i < len(data); i += t.BlockSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+t.BlockSize, len(data))
		if err := c.download(ctx, blk, data[i:end]); err != nil {
			return fmt.Errorf("block %d at %#x: %w", blk, img.Base+uint64(i), err)
		}
		blk++
		if progress != nil {
			progress(end, len(data))
		}
	}
	err := c.download(ctx, blk, nil)
	if err != nil && t.ResetErr {
		level.Debug(logger).Log("msg", "leave request failed", "err", err)
		err = nil
	}
	return err
}
