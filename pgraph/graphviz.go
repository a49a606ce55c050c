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

package pgraph

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/purpleidea/probgraph/util/errwrap"
)

// ErrMissingFilter is returned when the graphviz filter program isn't found.
// The graphviz data is still written out when this happens.
var ErrMissingFilter = errors.New("graphviz filter program is missing")

// Filters are the graphviz layout programs that ExecGraphviz can run.
var Filters = []string{"circo", "dot", "fdp", "neato", "sfdp", "twopi"}

// ExecGraphviz writes the graphviz data to filename and renders it as a png
// next to it with the filter program.
func (g *Graph) ExecGraphviz(filter, filename string) error {
	known := false
	for _, f := range Filters {
		known = known || f == filter
	}
	if !known {
		return fmt.Errorf("invalid graphviz filter `%s`", filter)
	}
	if filename == "" {
		return fmt.Errorf("no filename given")
	}

	if err := os.WriteFile(filename, []byte(g.Graphviz()), 0644); err != nil {
		return errwrap.Wrapf(err, "could not write graphviz data")
	}

	path, err := exec.LookPath(filter)
	if err != nil {
		return ErrMissingFilter
	}

	cmd := exec.Command(path, "-Tpng", "-o"+filename+".png", filename)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errwrap.Wrapf(err, "%s failed: %s", filter, strings.TrimSpace(string(out)))
	}
	return nil
}
