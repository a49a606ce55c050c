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

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	cliUtil "github.com/purpleidea/probgraph/cli/util"
	"github.com/purpleidea/probgraph/lang/distributions"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/util/errwrap"
)

// DistributionsArgs is the CLI parsing structure and type of the parsed result.
// This particular one lists the distribution families.
type DistributionsArgs struct {
	Continuous bool `arg:"--continuous" help:"only list the continuous families"`
	Discrete   bool `arg:"--discrete" help:"only list the discrete families"`
}

// Run checks the registry and lists the families on stdout.
func (obj *DistributionsArgs) Run(ctx context.Context, name string, data *cliUtil.Data) error {
	if err := check(distributions.Default(), data.Flags.Logf); err != nil {
		return err
	}
	return obj.List(os.Stdout)
}

// check validates a registry and logs each of the problems that it has.
func check(registry *distributions.Registry, logf func(format string, v ...interface{})) error {
	errs := errwrap.Flatten(registry.Validate())
	for _, err := range errs {
		logf("distributions: %v", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("the registry has %d problems", len(errs))
	}
	return nil
}

// List writes one line per family that passes the filter.
func (obj *DistributionsArgs) List(w io.Writer) error {
	if obj.Continuous && obj.Discrete {
		return fmt.Errorf("can't filter on both --continuous and --discrete")
	}
	for _, d := range distributions.Default().Families() {
		if obj.Continuous && !d.Continuous || obj.Discrete && d.Continuous {
			continue
		}
		if _, err := fmt.Fprintln(w, describe(d)); err != nil {
			return err
		}
	}
	return nil
}

// describe returns one line about a family, eg: Normal(loc, scale) continuous.
func describe(d *interfaces.Distribution) string {
	params := "..."
	if d.Params != nil {
		params = strings.Join(d.Params, ", ")
	}
	kind := "discrete"
	if d.Continuous {
		kind = "continuous"
	}
	return fmt.Sprintf("%s(%s) %s", d.Name, params, kind)
}
