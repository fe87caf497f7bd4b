// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dfu

import (
	"errors"
	"testing"

	usb "github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBusAddr(t *testing.T) {
	bus, addr, err := parseBusAddr("")
	require.NoError(t, err)
	assert.Equal(t, -1, bus)
	assert.Equal(t, -1, addr)

	bus, addr, err = parseBusAddr("3:17")
	require.NoError(t, err)
	assert.Equal(t, 3, bus)
	assert.Equal(t, 17, addr)

	for _, s := range []string{"3", "3:", ":4", "a:b", "1:256", "1:2:3"} {
		_, _, err := parseBusAddr(s)
		assert.Error(t, err, s)
	}
}

func testDevice(settings ...usb.InterfaceSetting) *usb.Device {
	return &usb.Device{Desc: &usb.DeviceDesc{
		Bus: 1, Address: 5,
		Configs: map[int]usb.ConfigDesc{
			1: {Number: 1, Interfaces: []usb.InterfaceDesc{{Number: 0, AltSettings: settings}}},
		},
	}}
}

func dfuSetting(alt int) usb.InterfaceSetting {
	return usb.InterfaceSetting{Number: 0, Alternate: alt, Class: 0xfe, SubClass: 1, Protocol: 2}
}

func TestDFUDevice(t *testing.T) {
	app := testDevice(usb.InterfaceSetting{Class: usb.ClassVendorSpec})
	dev := testDevice(dfuSetting(0), dfuSetting(1))

	d, alts, err := dfuDevice([]*usb.Device{app, dev})
	require.NoError(t, err)
	assert.Same(t, dev, d)
	assert.Equal(t, []altSetting{{1, 0, 0}, {1, 0, 1}}, alts)

	_, _, err = dfuDevice([]*usb.Device{app})
	assert.Error(t, err)
	_, _, err = dfuDevice([]*usb.Device{dev, testDevice(dfuSetting(0))})
	assert.Error(t, err)
}

func TestFlashAlt(t *testing.T) {
	names := map[int]string{
		0: "@Internal Flash  /0x08000000/04*016Kg,01*064Kg,07*128Kg",
		1: "@Option Bytes  /0x1FFFC000/01*016 e",
		2: "@OTP Memory /0x1FFF7800/01*512 e,01*016 e",
	}
	describe := func(a altSetting) (string, error) {
		return names[a.Alternate], nil
	}
	alt, err := flashAlt([]altSetting{{1, 0, 0}, {1, 0, 1}, {1, 0, 2}}, describe)
	require.NoError(t, err)
	assert.Equal(t, altSetting{1, 0, 0}, alt)

	_, err = flashAlt([]altSetting{{1, 0, 1}, {1, 0, 2}}, describe)
	assert.EqualError(t, err, "no DFU interface for the flash memory")

	names[2] = "@External Flash"
	_, err = flashAlt([]altSetting{{1, 0, 0}, {1, 0, 2}}, describe)
	assert.EqualError(t, err, "more than one DFU interface for the flash memory")

	_, err = flashAlt([]altSetting{{1, 0, 0}}, func(altSetting) (string, error) {
		return "", errors.New("no string descriptor")
	})
	assert.Error(t, err)
}
