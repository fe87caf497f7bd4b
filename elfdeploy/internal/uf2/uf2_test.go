// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uf2

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/elftest"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/image"
)

func testImage(t *testing.T, addr uint64, size int) *image.Image {
	t.Helper()
	img, err := image.Flatten([]image.Region{{Name: "a", Addr: addr, Data: elftest.Seq(1, size)}}, 0, 0)
	require.NoError(t, err)
	return img
}

func TestEncode(t *testing.T) {
	img := testImage(t, 0x1000_0000, 600)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, Options{Family: 0xe48bff59, Addr: 0x1000_0000}))
	require.Equal(t, 3*BlockSize, buf.Len())

	le := binary.LittleEndian
	raw := buf.Bytes()
	for i := 0; i < 3; i++ {
		b := raw[i*BlockSize : (i+1)*BlockSize]
		assert.Equal(t, uint32(magic0), le.Uint32(b[0:]))
		assert.Equal(t, uint32(magic1), le.Uint32(b[4:]))
		assert.Equal(t, uint32(FamilyIDPresent), le.Uint32(b[8:]))
		assert.Equal(t, uint32(0x1000_0000+i*PayloadSize), le.Uint32(b[12:]))
		assert.Equal(t, uint32(PayloadSize), le.Uint32(b[16:]))
		assert.Equal(t, uint32(i), le.Uint32(b[20:]))
		assert.Equal(t, uint32(3), le.Uint32(b[24:]))
		assert.Equal(t, uint32(0xe48bff59), le.Uint32(b[28:]))
		assert.Equal(t, uint32(magic2), le.Uint32(b[508:]))
	}
	// last block: 88 image bytes followed by zeros
	last := raw[2*BlockSize+32:]
	assert.Equal(t, img.Data[512:], last[:88])
	assert.Equal(t, make([]byte, 476-88), last[88:476])
}

func TestEncodeNoFamily(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testImage(t, 0, PayloadSize), Options{Flags: NotMainFlash}))
	blocks, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, uint32(NotMainFlash), blocks[0].Flags)
	assert.Zero(t, blocks[0].Family)
}

func TestRoundTrip(t *testing.T) {
	img := testImage(t, 0x2000, 1000)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, Options{Family: 0x1234, Addr: 0x0800_2000}))
	blocks, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, blocks, 4)
	for i, b := range blocks {
		assert.Equal(t, uint32(i), b.Seq)
		assert.Equal(t, uint32(4), b.Total)
		assert.Equal(t, uint32(0x1234), b.Family)
	}
	out, err := Flatten(blocks, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0800_2000), out.Base)
	assert.Equal(t, img.Data, out.Data[:img.Size()])
	assert.Equal(t, 4*PayloadSize, out.Size())
}

func TestEncodeAddressRange(t *testing.T) {
	err := Encode(&bytes.Buffer{}, testImage(t, 0, 16), Options{Addr: 0xffff_fff8})
	assert.ErrorIs(t, err, ErrAddressRange)
}

func TestDecodeErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testImage(t, 0, 300), Options{}))
	valid := buf.Bytes()

	_, err := Decode(bytes.NewReader(valid[:BlockSize+100]))
	assert.ErrorIs(t, err, ErrBadBlock)

	bad := append([]byte(nil), valid...)
	bad[BlockSize+508] ^= 1
	_, err = Decode(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrBadBlock)

	bad = append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(bad[16:], 477)
	_, err = Decode(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrBadBlock)

	blocks, err := Decode(bytes.NewReader(nil))
	assert.NoError(t, err)
	assert.Empty(t, blocks)
}
