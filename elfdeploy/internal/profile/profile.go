// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package profile resolves target names to the parameters used to build and
// deliver images: the UF2 family ID, the gap fill byte, the image alignment
// and the transport.
package profile

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

// Transports
const (
	UF2 = "uf2" // copy a UF2 file to the bootloader mass storage device
	DFU = "dfu" // USB DFU download
)

var ErrUnknown = errors.New("unknown target")

type Profile struct {
	Name        string
	Family      uint32 // UF2 family ID, 0 if none
	GapFill     byte
	Align       int
	Transport   string
	Description string
}

// Set is a collection of profiles indexed by lower case name.
type Set struct {
	m map[string]*Profile
}

// Builtin returns a new set that contains the built-in profiles.
func Builtin() *Set {
	s := &Set{m: make(map[string]*Profile, len(builtin))}
	for i := range builtin {
		p := builtin[i]
		s.m[p.Name] = &p
	}
	return s
}

// Add adds p to the set replacing a profile with the same name.
func (s *Set) Add(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Name = strings.ToLower(p.Name)
	s.m[p.Name] = p
	return nil
}

// Lookup finds the profile by name, case-insensitively. A name that is a
// number (decimal or with a 0x, 0o, 0b prefix) is treated as a raw UF2 family
// ID.
func (s *Set) Lookup(name string) (*Profile, error) {
	if p := s.m[strings.ToLower(name)]; p != nil {
		return p, nil
	}
	id, err := util.ParseUint(name, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return &Profile{
		Name:      fmt.Sprintf("0x%08x", id),
		Family:    uint32(id),
		Transport: UF2,
	}, nil
}

// List returns all profiles sorted by name.
func (s *Set) List() []*Profile {
	ps := make([]*Profile, 0, len(s.m))
	for _, p := range s.m {
		ps = append(ps, p)
	}
	slices.SortFunc(ps, func(a, b *Profile) int {
		return strings.Compare(a.Name, b.Name)
	})
	return ps
}

func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	switch p.Transport {
	case UF2:
		if p.Family == 0 {
			return fmt.Errorf("%s: uf2 transport requires a family ID", p.Name)
		}
	case DFU, "":
	default:
		return fmt.Errorf("%s: unknown transport: %s", p.Name, p.Transport)
	}
	if p.Align < 0 {
		return fmt.Errorf("%s: negative alignment: %d", p.Name, p.Align)
	}
	return nil
}

type fileConfig struct {
	Profiles []profileConfig `yaml:"profiles"`
}

type profileConfig struct {
	Name        string `yaml:"name"`
	Family      string `yaml:"family"`
	GapFill     uint8  `yaml:"gap_fill"`
	Align       int    `yaml:"align"`
	Transport   string `yaml:"transport"`
	Description string `yaml:"description"`
}

// Parse parses YAML profile definitions and adds them to the set.
func (s *Set) Parse(data []byte) error {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse profiles: %w", err)
	}
	for i, pc := range cfg.Profiles {
		p := &Profile{
			Name:        pc.Name,
			GapFill:     pc.GapFill,
			Align:       pc.Align,
			Transport:   pc.Transport,
			Description: pc.Description,
		}
		if pc.Family != "" {
			id, err := util.ParseUint(pc.Family, 32)
			if err != nil {
				return fmt.Errorf("profiles[%d]: bad family ID: %w", i, err)
			}
			p.Family = uint32(id)
		}
		if p.Transport == "" && p.Family != 0 {
			p.Transport = UF2
		}
		if err := s.Add(p); err != nil {
			return fmt.Errorf("profiles[%d]: %w", i, err)
		}
	}
	return nil
}

// LoadFile reads profiles from the YAML file. They take precedence over the
// profiles already in the set.
func (s *Set) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.Parse(data)
}
