// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/image"
)

// ReadBins reads binary files according to the description
// BIN1:ADDR1[,BIN2:ADDR2[,...]] and returns them as image regions.
func ReadBins(descr string) ([]image.Region, error) {
	bins := strings.Split(descr, ",")
	rs := make([]image.Region, len(bins))
	for k, ba := range bins {
		i := strings.LastIndexByte(ba, ':')
		if i <= 0 {
			return nil, fmt.Errorf("bad '%s' in the include list (want BIN:ADDR)", ba)
		}
		bin, addr := ba[:i], ba[i+1:]
		r := &rs[k]
		var err error
		r.Addr, err = ParseUint(addr, 64)
		if err != nil {
			return nil, fmt.Errorf("bad address in '%s': %w", ba, err)
		}
		r.Data, err = os.ReadFile(bin)
		if err != nil {
			return nil, err
		}
		r.Name = filepath.Base(bin)
	}
	return rs, nil
}
