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

// Package cli handles all of the core command line parsing. It's the first
// entry point after the real main function, and it runs the compiler in the
// lang package.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	cliUtil "github.com/purpleidea/probgraph/cli/util"
	"github.com/purpleidea/probgraph/util/errwrap"

	"github.com/alexflint/go-arg"
)

// command is a subcommand of the CLI.
type command interface {
	// Run executes the subcommand. The name is the subcommand path, eg:
	// "compile".
	Run(ctx context.Context, name string, data *cliUtil.Data) error
}

// CLI is the entry point for using probgraph normally from the CLI.
func CLI(ctx context.Context, data *cliUtil.Data) error {
	if err := data.Validate(); err != nil {
		return err
	}

	args := &Args{
		version:     data.Version,
		description: data.Tagline,
	}
	parser, err := arg.NewParser(arg.Config{Program: data.Program}, args)
	if err != nil {
		// programming error
		return errwrap.Wrapf(err, "cli config error")
	}

	switch err := parser.Parse(data.Args[1:]); {
	case err == arg.ErrHelp:
		parser.WriteHelp(os.Stdout)
		return nil
	case err == arg.ErrVersion:
		fmt.Printf("%s\n", data.Version) // byon: bring your own newline
		return nil
	case err != nil:
		return cliUtil.CliParseError(err) // consistent errors
	}

	cmd, ok := parser.Subcommand().(command)
	if !ok {
		// print help if no subcommands are set
		parser.WriteHelp(os.Stdout)
		return nil
	}
	return cmd.Run(ctx, strings.Join(parser.SubcommandNames(), " "), data)
}

// Args is the CLI parsing structure and type of the parsed result. This
// particular struct is the top-most one.
type Args struct {
	CompileCmd *CompileArgs `arg:"subcommand:compile" help:"compile a program into a dependency graph"`

	DistributionsCmd *DistributionsArgs `arg:"subcommand:distributions" help:"list the known distribution families"`

	// version is a private handle for our version string.
	version string `arg:"-"` // ignored from parsing

	// description is a private handle for our description string.
	description string `arg:"-"` // ignored from parsing
}

// Version returns the version string. Implementing this signature is part of
// the API for the cli library.
func (obj *Args) Version() string {
	return obj.version
}

// Description returns a description string. Implementing this signature is part
// of the API for the cli library.
func (obj *Args) Description() string {
	return obj.description
}
