// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type contextKey int

const loggerKey contextKey = iota

var defaultLogger = log.NewLogfmtLogger(os.Stderr)

// NewLogger returns a logfmt logger writing to w. Debug messages are
// filtered out unless verbose is set.
func NewLogger(w io.Writer, verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

func WithLogger(ctx context.Context, logger log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func Logger(ctx context.Context) log.Logger {
	if logger, ok := ctx.Value(loggerKey).(log.Logger); ok {
		return logger
	}
	return defaultLogger
}

// DirName returns the last element of the path to the current working
// directory.
func DirName() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir = filepath.Base(dir)
	if dir == "/" || dir == "." {
		dir = ""
	}
	return dir, nil
}

// InOutFiles infers the name of the input and output files from the name of
// the module in the current directory or from the name of the current working
// directory if the inName is an empty string.
func InOutFiles(inName, inSuffix, outName, outSuffix string) (string, string, error) {
	if inName == "" {
		fi, err := os.Stat("go.mod")
		if err != nil || !fi.Mode().IsRegular() {
			inName, err = DirName()
		} else {
			inName, err = Module(".")
			inName = filepath.Base(inName)
		}
		if err != nil {
			return "", "", err
		}
		inName += inSuffix
	}
	if outName == "" {
		outName = strings.TrimSuffix(inName, inSuffix) + outSuffix
	}
	return inName, outName, nil
}

// ParseUint parses an unsigned integer with an optional 0x, 0o or 0b prefix.
// Numbers without a prefix are decimal, even with leading zeros. Underscores
// are allowed between digits.
func ParseUint(s string, bitSize int) (uint64, error) {
	if len(s) > 1 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			return strconv.ParseUint(s, 0, bitSize)
		}
	}
	d := strings.TrimLeft(s, "0")
	if d == "" && s != "" {
		d = "0"
	}
	u, err := strconv.ParseUint(d, 0, bitSize)
	if ne, ok := err.(*strconv.NumError); ok {
		ne.Num = s
	}
	return u, err
}

var pbuf = make([]byte, 80)

const (
	ptodo = "                         ] "
	pdone = " [========================="
)

// Progress draws a progress bar on w.
func Progress(w io.Writer, pre string, cur, max, scale int, post string) {
	if max <= 0 {
		return
	}
	pbuf = pbuf[:0]
	pbuf = append(pbuf, '\r')
	pbuf = append(pbuf, pre...)
	done := 25 * cur / max
	pbuf = append(pbuf, pdone[:2+done]...)
	pbuf = append(pbuf, ptodo[done:]...)
	pbuf = strconv.AppendInt(pbuf, int64(cur/scale), 10)
	pbuf = append(pbuf, ' ')
	pbuf = append(pbuf, post...)
	if cur == max {
		pbuf = append(pbuf, '\n')
	}
	w.Write(pbuf)
}
