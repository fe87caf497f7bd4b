// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// FindGoMod looks for the go.mod file in dir and its parents.
func FindGoMod(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		gomod := filepath.Join(dir, "go.mod")
		fi, err := os.Stat(gomod)
		if err == nil {
			if !fi.Mode().IsRegular() {
				return "", fmt.Errorf("%s is not a regular file", gomod)
			}
			return gomod, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(
				"go.mod file not found in current directory or any parent directory",
			)
		}
		dir = parent
	}
}

// Module returns the module path from the go.mod file found in dir or its
// parents.
func Module(dir string) (string, error) {
	gomod, err := FindGoMod(dir)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(gomod)
	if err != nil {
		return "", err
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", errors.New("there is no module directive in " + gomod)
	}
	return path, nil
}
