// Mgmt
// Copyright (C) James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/purpleidea/probgraph/cli"
	cliUtil "github.com/purpleidea/probgraph/cli/util"
)

// These constants are some global variables that are used throughout the code.
const (
	tagline = "compiles probabilistic programs into dependency graphs"
	Debug   = false // add additional log messages
	Verbose = false // add extra log message output
)

// set at compile time
var (
	program string
	version string
)

func main() {
	if program == "" {
		program = "probgraph"
	}
	if version == "" {
		version = "0.0.0-dev"
	}
	data := &cliUtil.Data{
		Program: program,
		Version: version,
		Tagline: tagline,
		Flags: cliUtil.Flags{
			Debug:   Debug,
			Verbose: Verbose,
			Logf: func(format string, v ...interface{}) {
				log.Printf(cliUtil.SafeProgram(program)+": "+format, v...)
			},
		},
		Args: os.Args,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// install the exit signal handler
	go func() {
		signals := make(chan os.Signal, 1+1) // 1 * ^C + 1 * SIGTERM
		signal.Notify(signals, os.Interrupt) // catch ^C
		signal.Notify(signals, syscall.SIGTERM)
		defer signal.Stop(signals)

		select {
		case sig := <-signals:
			data.Flags.Logf("interrupted by %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := cli.CLI(ctx, data); err != nil {
		fmt.Println(err)
		os.Exit(1)
		return
	}
}
