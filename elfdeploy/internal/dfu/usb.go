// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dfu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	usb "github.com/google/gousb"
)

// parseBusAddr parses the BUS:ADDR USB device address. It returns -1, -1 for
// the empty string.
func parseBusAddr(busAddr string) (bus, addr int, err error) {
	if busAddr == "" {
		return -1, -1, nil
	}
	bad := errors.New("bad USB device address: " + busAddr)
	b, a, ok := strings.Cut(busAddr, ":")
	if !ok {
		return -1, -1, bad
	}
	ub, err := strconv.ParseUint(b, 10, 8)
	if err != nil {
		return -1, -1, bad
	}
	ua, err := strconv.ParseUint(a, 10, 8)
	if err != nil {
		return -1, -1, bad
	}
	return int(ub), int(ua), nil
}

// altSetting identifies a DFU mode interface alternate setting.
type altSetting struct {
	Config, Interface, Alternate int
}

// isDFUMode reports whether the interface setting is the DFU mode interface
// (application specific class, DFU subclass, DFU mode protocol).
func isDFUMode(is usb.InterfaceSetting) bool {
	return is.Class == 0xfe && is.SubClass == 1 && is.Protocol == 2 && len(is.Endpoints) == 0
}

// dfuDevice returns the only device in devs that has DFU mode interfaces and
// the list of its DFU alternate settings.
func dfuDevice(devs []*usb.Device) (dev *usb.Device, alts []altSetting, err error) {
	for _, d := range devs {
		var da []altSetting
		for _, cfg := range d.Desc.Configs {
			for _, id := range cfg.Interfaces {
				for _, is := range id.AltSettings {
					if isDFUMode(is) {
						da = append(da, altSetting{cfg.Number, is.Number, is.Alternate})
					}
				}
			}
		}
		if da == nil {
			continue
		}
		if dev != nil {
			return nil, nil, errors.New("found more than one USB device in DFU mode")
		}
		dev, alts = d, da
	}
	if dev == nil {
		return nil, nil, errors.New("no USB devices in DFU mode were found")
	}
	return dev, alts, nil
}

// flashAlt selects the alternate setting whose description mentions the flash
// memory.
func flashAlt(alts []altSetting, describe func(a altSetting) (string, error)) (alt altSetting, err error) {
	found := false
	for _, a := range alts {
		name, err := describe(a)
		if err != nil {
			return alt, err
		}
		if !strings.Contains(strings.ToLower(name), "flash") {
			continue
		}
		if found {
			return alt, errors.New("more than one DFU interface for the flash memory")
		}
		alt, found = a, true
	}
	if !found {
		return alt, errors.New("no DFU interface for the flash memory")
	}
	return alt, nil
}

// usbConn is a claimed DFU interface of an open USB device.
type usbConn struct {
	ctx   *usb.Context
	dev   *usb.Device
	cfg   *usb.Config
	intf  *usb.Interface
	iface uint16
}

// openUSB opens the DFU mode device of target t, selected by BUS:ADDR if
// busAddr is not empty, and claims its flash memory interface.
func openUSB(t *Target, busAddr string) (c *usbConn, err error) {
	bus, addr, err := parseBusAddr(busAddr)
	if err != nil {
		return nil, err
	}
	c = &usbConn{ctx: usb.NewContext()}
	devs, err := c.ctx.OpenDevices(func(desc *usb.DeviceDesc) bool {
		if bus >= 0 && (desc.Bus != bus || desc.Address != addr) {
			return false
		}
		return desc.Vendor == t.Vendor && desc.Product == t.Product
	})
	defer func() {
		for _, d := range devs {
			if d != c.dev {
				d.Close()
			}
		}
		if err != nil {
			c.close()
			c = nil
		}
	}()
	if err != nil {
		return
	}
	dev, alts, err := dfuDevice(devs)
	if err != nil {
		return
	}
	c.dev = dev
	alt, err := flashAlt(alts, func(a altSetting) (string, error) {
		return dev.InterfaceDescription(a.Config, a.Interface, a.Alternate)
	})
	if err != nil {
		err = fmt.Errorf("device %d:%d: %w", dev.Desc.Bus, dev.Desc.Address, err)
		return
	}
	if err = dev.SetAutoDetach(true); err != nil {
		return
	}
	if c.cfg, err = dev.Config(alt.Config); err != nil {
		return
	}
	if c.intf, err = c.cfg.Interface(alt.Interface, alt.Alternate); err != nil {
		return
	}
	c.iface = uint16(alt.Interface)
	return c, nil
}

func (c *usbConn) close() error {
	if c.intf != nil {
		c.intf.Close()
	}
	if c.cfg != nil {
		c.cfg.Close()
	}
	if c.dev != nil {
		c.dev.Close()
	}
	return c.ctx.Close()
}
