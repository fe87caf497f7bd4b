// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hex

import (
	"bytes"
	"strings"
	"testing"

	"github.com/marcinbor85/gohex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/image"
)

func flatten(t *testing.T, pad byte, regions ...image.Region) *image.Image {
	t.Helper()
	img, err := image.Flatten(regions, pad, 0)
	require.NoError(t, err)
	return img
}

func TestEncode(t *testing.T) {
	img := flatten(t, 0xff,
		image.Region{Name: "a", Addr: 0x0800_0000, Data: bytes.Repeat([]byte{0x11}, 40)},
		image.Region{Name: "b", Addr: 0x0801_fff0, Data: bytes.Repeat([]byte{0x22}, 0x20)},
	)
	var buf bytes.Buffer
	entry := uint32(0x0800_0101)
	require.NoError(t, Encode(&buf, img, 0, &entry))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.True(t, strings.EqualFold(":00000001FF", strings.TrimSpace(lines[len(lines)-1])))

	mem := gohex.NewMemory()
	require.NoError(t, mem.ParseIntelHex(&buf))
	start, ok := mem.GetStartAddress()
	assert.True(t, ok)
	assert.Equal(t, entry, start)

	// HEX records are sparse, the decoder fills gaps with its own padding.
	data := mem.ToBinary(uint32(img.Base), uint32(img.Size()), 0xff)
	assert.Equal(t, img.Data, data)
}

func TestEncodeLineLen(t *testing.T) {
	img := flatten(t, 0, image.Region{Name: "a", Addr: 0x100, Data: make([]byte, 64)})
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, 32, nil))
	n := 0
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(l, ":20") {
			n++
		}
	}
	assert.Equal(t, 2, n)

	assert.Error(t, Encode(&buf, img, 256, nil))
	assert.Error(t, Encode(&buf, img, -1, nil))
}

func TestEncodeAddressRange(t *testing.T) {
	img := flatten(t, 0, image.Region{Name: "high", Addr: 0xffff_fffe, Data: make([]byte, 4)})
	err := Encode(&bytes.Buffer{}, img, 0, nil)
	assert.ErrorIs(t, err, ErrAddressRange)
	assert.Contains(t, err.Error(), "high at 0xfffffffe")
}
