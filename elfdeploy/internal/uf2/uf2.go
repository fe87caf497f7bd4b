// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uf2 implements the USB Flashing Format used by the mass storage
// bootloaders of many microcontrollers.
package uf2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/image"
)

// Block flags
const (
	NotMainFlash         = 0x00000001
	FileContainer        = 0x00001000
	FamilyIDPresent      = 0x00002000
	MD5ChecksumPresent   = 0x00004000
	ExtensionTagsPresent = 0x00008000
)

const (
	magic0 = 0x0a324655
	magic1 = 0x9e5d5157
	magic2 = 0x0ab16f30

	// BlockSize is the size of one UF2 block.
	BlockSize = 512

	// PayloadSize is the number of image bytes stored in one block.
	PayloadSize = 256
)

var (
	ErrAddressRange = errors.New("uf2: image exceeds the 32-bit address space")
	ErrBadBlock     = errors.New("uf2: bad block")
)

type block struct {
	Magic0 uint32
	Magic1 uint32
	Flags  uint32
	Addr   uint32
	Len    uint32
	Seq    uint32
	Total  uint32
	Family uint32 // or file size if FileContainer is set
	Data   [476]byte
	Magic2 uint32
}

type writer struct {
	w   io.Writer
	b   block
	len int
}

func newWriter(w io.Writer, addr, flags, family uint32, size int) *writer {
	u := new(writer)
	u.w = w
	u.b.Magic0 = magic0
	u.b.Magic1 = magic1
	u.b.Flags = flags
	u.b.Addr = addr
	u.b.Len = PayloadSize
	u.b.Total = uint32((size + PayloadSize - 1) / PayloadSize)
	u.b.Family = family
	u.b.Magic2 = magic2
	return u
}

func (u *writer) Write(p []byte) (n int, err error) {
	b := &u.b
	for len(p) != 0 {
		m := copy(b.Data[u.len:PayloadSize], p)
		n += m
		p = p[m:]
		u.len += m
		if u.len == PayloadSize {
			if err = u.emit(); err != nil {
				return
			}
		}
	}
	return
}

func (u *writer) emit() error {
	b := &u.b
	err := binary.Write(u.w, binary.LittleEndian, b)
	b.Addr += PayloadSize
	b.Seq++
	u.len = 0
	return err
}

// Flush writes the last partial block, padded with zeros.
func (u *writer) Flush() error {
	if u.len == 0 {
		return nil
	}
	clear(u.b.Data[u.len:PayloadSize])
	return u.emit()
}

type Options struct {
	Family uint32 // written to every block if not zero
	Addr   uint64 // target address of the first image byte
	Flags  uint32
}

// Encode writes the flat image data as a sequence of UF2 blocks, each carrying
// PayloadSize bytes. The last block is padded with zeros.
func Encode(w io.Writer, img *image.Image, opts Options) error {
	if opts.Addr+uint64(img.Size()) > 1<<32 {
		return fmt.Errorf("%w: %#x + %d bytes", ErrAddressRange, opts.Addr, img.Size())
	}
	flags := opts.Flags
	if opts.Family != 0 {
		flags |= FamilyIDPresent
	}
	u := newWriter(w, uint32(opts.Addr), flags, opts.Family, img.Size())
	if _, err := u.Write(img.Data); err != nil {
		return err
	}
	return u.Flush()
}

// Block is a decoded UF2 block.
type Block struct {
	Flags  uint32
	Addr   uint32
	Seq    uint32
	Total  uint32
	Family uint32
	Data   []byte
}

// Decode reads UF2 blocks from r until EOF.
func Decode(r io.Reader) ([]Block, error) {
	var (
		b      block
		blocks []Block
	)
	for i := 0; ; i++ {
		err := binary.Read(r, binary.LittleEndian, &b)
		if err == io.EOF {
			return blocks, nil
		}
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				err = fmt.Errorf("%w %d: truncated", ErrBadBlock, i)
			}
			return nil, err
		}
		if b.Magic0 != magic0 || b.Magic1 != magic1 || b.Magic2 != magic2 {
			return nil, fmt.Errorf("%w %d: bad magic number", ErrBadBlock, i)
		}
		if int(b.Len) > len(b.Data) {
			return nil, fmt.Errorf("%w %d: payload size %d", ErrBadBlock, i, b.Len)
		}
		blocks = append(blocks, Block{
			Flags:  b.Flags,
			Addr:   b.Addr,
			Seq:    b.Seq,
			Total:  b.Total,
			Family: b.Family,
			Data:   append([]byte(nil), b.Data[:b.Len]...),
		})
	}
}

// Flatten lays the payloads of the blocks out as one image. Blocks marked
// NotMainFlash are skipped.
func Flatten(blocks []Block, pad byte) (*image.Image, error) {
	regions := make([]image.Region, 0, len(blocks))
	for _, b := range blocks {
		if b.Flags&NotMainFlash != 0 {
			continue
		}
		regions = append(regions, image.Region{
			Name: fmt.Sprintf("block %d", b.Seq),
			Addr: uint64(b.Addr),
			Data: b.Data,
		})
	}
	return image.Flatten(regions, pad, 0)
}
