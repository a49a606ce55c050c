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

// Package util has some CLI related utility code.
package util

import (
	"fmt"
	"strings"

	"github.com/purpleidea/probgraph/util/errwrap"
)

// Error is a constant error type that implements error.
type Error string

// Error fulfills the error interface of this type.
func (e Error) Error() string { return string(e) }

// UnknownFormat means an output format that we can't produce.
const UnknownFormat = Error("unknown output format")

// CliParseError returns a consistent error if we have a CLI parsing issue.
func CliParseError(err error) error {
	return errwrap.Wrapf(err, "cli parse error")
}

// Flags are some constant flags which are used throughout the program.
type Flags struct {
	Debug   bool // add additional log messages
	Verbose bool // add extra log message output

	Logf func(format string, v ...interface{})
}

// Data is what main passes to the CLI.
type Data struct {
	Program string
	Version string
	Tagline string
	Flags   Flags
	Args    []string // os.Args usually
}

// Validate checks that main filled in the data correctly.
func (obj *Data) Validate() error {
	if obj == nil {
		return fmt.Errorf("this CLI was not run correctly")
	}
	if obj.Program == "" || obj.Version == "" {
		return fmt.Errorf("program was not compiled correctly")
	}
	if len(obj.Args) == 0 {
		return fmt.Errorf("missing program name in args")
	}
	if obj.Flags.Logf == nil {
		return fmt.Errorf("missing logger")
	}
	return nil
}

// SafeProgram returns the program name without any subcommand that the arg
// parser appended to it, eg: "probgraph compile" becomes "probgraph".
func SafeProgram(program string) string {
	return strings.SplitN(program, " ", 2)[0]
}
