// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package deploy copies UF2 files onto the mass storage devices exposed by
// UF2 bootloaders.
package deploy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/spf13/afero"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

const (
	// Auto selects the first mounted device with the InfoFile.
	Auto = "auto"

	// InfoFile is the file that identifies a UF2 bootloader drive.
	InfoFile = "INFO_UF2.TXT"

	DefaultRetry    = 40
	DefaultInterval = 500 * time.Millisecond

	mountTable = "/proc/self/mounts"
	chunkSize  = 16 * 1024
)

var ErrNoDevice = errors.New("no mounted device with " + InfoFile)

type Error struct {
	Op  string
	Err error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return "deploy: " + e.Op + ": " + e.Err.Error()
}

func wrapErr(op string, err *error) {
	if *err != nil {
		*err = &Error{op, *err}
	}
}

type Options struct {
	// Path is the destination directory or Auto.
	Path string

	// Retry is the number of attempts. Zero means DefaultRetry.
	Retry int

	// Interval is the delay between attempts. Zero means DefaultInterval.
	Interval time.Duration

	// Mounts lists the directories searched in the Auto mode. If nil the
	// mount points are read from /proc/self/mounts.
	Mounts []string

	// Progress, if not nil, is called after every written chunk.
	Progress func(done, total int)
}

// UF2 writes data to the file name in the destination directory. The
// destination (or in the Auto mode the device) often appears some time after
// the board is reset into the bootloader, so UF2 retries every failed attempt
// up to opts.Retry times. It returns the path of the written file.
func UF2(ctx context.Context, fsys afero.Fs, name string, data []byte, opts Options) (dst string, err error) {
	defer wrapErr("UF2", &err)

	retry := opts.Retry
	if retry <= 0 {
		retry = DefaultRetry
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := util.Logger(ctx)
	name = filepath.Base(name)
	for i := 0; i < retry; i++ {
		if i > 0 {
			t := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		}
		var dir string
		dir, err = destDir(fsys, opts)
		if err == nil {
			dst = filepath.Join(dir, name)
			err = copyFile(fsys, dst, data, opts.Progress)
			if err == nil {
				return dst, nil
			}
		}
		level.Debug(logger).Log(
			"msg", "deploy attempt failed", "attempt", i+1, "of", retry, "err", err,
		)
	}
	return "", fmt.Errorf("giving up after %d attempts: %w", retry, err)
}

func destDir(fsys afero.Fs, opts Options) (string, error) {
	if opts.Path != Auto {
		fi, err := fsys.Stat(opts.Path)
		if err != nil {
			return "", err
		}
		if !fi.IsDir() {
			return "", fmt.Errorf("%s is not a directory", opts.Path)
		}
		return opts.Path, nil
	}
	mounts := opts.Mounts
	if mounts == nil {
		var err error
		if mounts, err = MountPoints(fsys); err != nil {
			return "", err
		}
	}
	return FindDevice(fsys, mounts)
}

// FindDevice returns the first of dirs that contains the InfoFile.
func FindDevice(fsys afero.Fs, dirs []string) (string, error) {
	for _, dir := range dirs {
		ok, err := afero.Exists(fsys, filepath.Join(dir, InfoFile))
		if err == nil && ok {
			return dir, nil
		}
	}
	return "", ErrNoDevice
}

// MountPoints reads the mount points from /proc/self/mounts.
func MountPoints(fsys afero.Fs) ([]string, error) {
	f, err := fsys.Open(mountTable)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var mounts []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 2 {
			continue
		}
		mounts = append(mounts, unescapeMount(fields[1]))
	}
	return mounts, s.Err()
}

// unescapeMount decodes the octal escapes (\040 for space) used in the mount
// table.
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if c, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(c))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func copyFile(fsys afero.Fs, dst string, data []byte, progress func(done, total int)) (err error) {
	f, err := fsys.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(); err == nil {
			err = e
		}
	}()
	for done := 0; done < len(data); {
		n := min(chunkSize, len(data)-done)
		if _, err = f.Write(data[done : done+n]); err != nil {
			return err
		}
		done += n
		if progress != nil {
			progress(done, len(data))
		}
	}
	return f.Sync()
}
