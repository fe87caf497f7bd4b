// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Elfdeploy converts linked ELF programs into flashable images (raw binary,
// Intel HEX, UF2) and delivers them to the target devices.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-kit/log/level"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/profile"
	"github.com/embeddedgo/elfdeploy/elfdeploy/internal/util"
)

var cfg struct {
	verbose  bool
	profiles string
}

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Convert ELF programs into flashable images and load them onto devices.").UsageWriter(os.Stdout)
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("false").BoolVar(&cfg.verbose)
	app.Flag("profiles", "YAML file with additional target profiles.").Envar("ELFDEPLOY_PROFILES").StringVar(&cfg.profiles)

	binCmd := app.Command("bin", "Convert ELF files to raw binary images (objcopy -O binary).")
	binParams := addBinParams(binCmd)

	hexCmd := app.Command("hex", "Convert an ELF file to the Intel HEX format.")
	hexParams := addHexParams(hexCmd)

	uf2Cmd := app.Command("uf2", "Convert an ELF file to the UF2 format.")
	uf2Params := addUF2Params(uf2Cmd)

	deployCmd := app.Command("deploy", "Generate the UF2 file from an ELF file and optionally copy it to the device.")
	deployParams := addDeployParams(deployCmd)

	loadCmd := app.Command("load", "Load the program stored in an ELF file onto the device using USB DFU.")
	loadParams := addLoadParams(loadCmd)

	verifyCmd := app.Command("verify", "Compare the image built from an ELF file with a reference binary.")
	verifyParams := addVerifyParams(verifyCmd)

	infoCmd := app.Command("info", "Print the loadable segments and sections of an ELF file.")
	infoELF := infoCmd.Arg("elf", "ELF file.").String()

	familiesCmd := app.Command("families", "Show the known targets and UF2 families.").Alias("list-families")

	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := util.NewLogger(os.Stderr, cfg.verbose)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = util.WithLogger(ctx, logger)
	ctx = withOutput(ctx, os.Stdout)

	profiles := profile.Builtin()
	if cfg.profiles != "" {
		if err := profiles.LoadFile(cfg.profiles); err != nil {
			os.Exit(checkError(err))
		}
	}

	var err error
	switch parsedCmd {
	case binCmd.FullCommand():
		err = binConvert(ctx, profiles, binParams)
	case hexCmd.FullCommand():
		err = hexConvert(ctx, profiles, hexParams)
	case uf2Cmd.FullCommand():
		_, err = uf2Convert(ctx, profiles, uf2Params)
	case deployCmd.FullCommand():
		err = deployUF2(ctx, profiles, deployParams)
	case loadCmd.FullCommand():
		err = load(ctx, profiles, loadParams)
	case verifyCmd.FullCommand():
		err = verify(ctx, profiles, verifyParams)
	case infoCmd.FullCommand():
		err = info(ctx, *infoELF)
	case familiesCmd.FullCommand():
		err = families(ctx, profiles)
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
		err = errUnknownCommand
	}
	stop()
	os.Exit(checkError(err))
}

func checkError(err error) int {
	switch err {
	case nil:
		return 0
	case errUnknownCommand:
		// Already reported.
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return 1
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}

type commander interface {
	Flag(name, help string) *kingpin.FlagClause
	Arg(name, help string) *kingpin.ArgClause
}
