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

package util

import (
	"log"
	"os"
	"runtime"
	"time"
)

// Hello sets up the standard logger, which the Logf of the flags usually
// wraps, and logs who we are.
func Hello(program, version string, flags Flags) {
	logFlags := log.Ltime
	if flags.Debug {
		logFlags |= log.Lmicroseconds | log.Lshortfile
	}
	log.SetFlags(logFlags)
	log.SetOutput(os.Stderr)

	if !flags.Verbose && !flags.Debug {
		return
	}
	flags.Logf("this is: %s, version: %s (%s)", SafeProgram(program), version, runtime.Version())
	flags.Logf("start: %s", time.Now().Format(time.RFC3339))
}
