// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dfu loads flat images into devices using the download part of the
// USB Device Firmware Upgrade 1.1 protocol.
package dfu

import (
	"context"
	"errors"
	"fmt"
	"time"

	usb "github.com/google/gousb"
)

type Error struct {
	Op  string
	Err error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return "dfu: " + e.Op + ": " + e.Err.Error()
}

func wrapErr(op string, err *error) {
	if *err != nil {
		*err = &Error{op, *err}
	}
}

// State is the DFU state reported by DFU_GETSTATUS.
type State uint8

const (
	AppIdle State = iota
	AppDetach
	Idle
	DnloadSync
	Dnbusy
	DnloadIdle
	ManifestSync
	Manifest
	ManifestWaitReset
	UploadIdle
	StateError
)

var stateNames = [...]string{
	AppIdle:           "app idle",
	AppDetach:         "app detach",
	Idle:              "DFU idle",
	DnloadSync:        "DFU download sync",
	Dnbusy:            "DFU download busy",
	DnloadIdle:        "DFU download idle",
	ManifestSync:      "DFU manifest sync",
	Manifest:          "DFU manifest",
	ManifestWaitReset: "DFU manifest wait reset",
	UploadIdle:        "DFU upload idle",
	StateError:        "DFU error",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state %d", uint8(s))
}

// Status is the bStatus field of the DFU_GETSTATUS response.
type Status uint8

var statusNames = [...]string{
	0:  "OK",
	1:  "file is not for this target",
	2:  "file fails a vendor-specific verification test",
	3:  "unable to write memory",
	4:  "memory erase function failed",
	5:  "memory erase check failed",
	6:  "program memory function failed",
	7:  "programmed memory failed verification",
	8:  "memory address is out of range",
	9:  "premature DFU_DNLOAD with wLength = 0",
	10: "firmware is corrupt",
	11: "vendor-specific error",
	12: "unexpected USB reset signaling",
	13: "unexpected power on reset",
	14: "unknown error",
	15: "stalled an unexpected request",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown error"
}

// StatusError is returned when the device reports an error status.
type StatusError struct {
	Status Status
	State  State
}

func (e *StatusError) Error() string {
	return e.Status.String() + " in " + e.State.String() + " state"
}

// class-specific requests
const (
	reqDnload    uint8 = 0x01
	reqGetStatus uint8 = 0x03
	reqClrStatus uint8 = 0x04
)

const (
	reqOut = uint8(usb.ControlOut | usb.ControlClass | usb.ControlInterface)
	reqIn  = uint8(usb.ControlIn | usb.ControlClass | usb.ControlInterface)
)

// controller issues USB control transfers. It is implemented by
// *gousb.Device.
type controller interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
}

// conn talks to the DFU interface iface of a device.
type conn struct {
	dev       controller
	iface     uint16
	pollSpeed uint // poll timeouts reported by the device are divided by it
	buf       [6]byte
}

type status struct {
	Status Status
	Poll   time.Duration
	State  State
}

func (c *conn) getStatus() (s status, err error) {
	defer wrapErr("GetStatus", &err)
	n, err := c.dev.Control(reqIn, reqGetStatus, 0, c.iface, c.buf[:])
	if err != nil {
		return s, err
	}
	if n != len(c.buf) {
		return s, fmt.Errorf("short response: %d bytes", n)
	}
	b := c.buf[:]
	s.Status = Status(b[0])
	s.Poll = time.Duration(uint32(b[1])|uint32(b[2])<<8|uint32(b[3])<<16) * time.Millisecond
	s.State = State(b[4])
	return s, nil
}

func (c *conn) clrStatus() (err error) {
	defer wrapErr("ClrStatus", &err)
	_, err = c.dev.Control(reqOut, reqClrStatus, 0, c.iface, nil)
	return err
}

// wait polls the device status until it leaves the download busy state.
func (c *conn) wait(ctx context.Context) error {
	speed := time.Duration(max(c.pollSpeed, 1))
	for {
		s, err := c.getStatus()
		if err != nil {
			return err
		}
		if s.State == StateError {
			if err := c.clrStatus(); err != nil {
				return err
			}
		}
		if s.Status != 0 {
			return &StatusError{s.Status, s.State}
		}
		if s.State != Dnbusy {
			return nil
		}
		if d := s.Poll / speed; d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
}

// download sends one DFU_DNLOAD request and waits for the device to process
// it. An empty p ends the download.
func (c *conn) download(ctx context.Context, blockNum uint16, p []byte) (err error) {
	defer wrapErr("Download", &err)
	if _, err = c.dev.Control(reqOut, reqDnload, blockNum, c.iface, p); err != nil {
		return err
	}
	return c.wait(ctx)
}

var errBadBlockSize = errors.New("bad block size")
