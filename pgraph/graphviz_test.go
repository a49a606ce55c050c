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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGraphviz1(t *testing.T) {
	G, _ := NewGraph("g2")
	v1 := NV("v1")
	v2 := NV("v2")
	v3 := NV("v3")
	e1 := NE("e1")
	e2 := NE("e2")
	G.AddEdge(v1, v2, e1)
	G.AddEdge(v1, v3, e2)

	expected := strings.Join([]string{
		`digraph "g2" {`,
		`	label="g2";`,
		`	"v1" [label="v1"];`,
		`	"v2" [label="v2"];`,
		`	"v3" [label="v3"];`,
		`	"v1" -> "v2" [label="e1"];`,
		`	"v1" -> "v3" [label="e2"];`,
		`}`,
	}, "\n") + "\n"

	if out := G.Graphviz(); out != expected {
		t.Errorf("conversion to graphviz format done incorrectly")
		t.Logf("actual: \n%s", out)
		t.Logf("expected: \n%s", expected)
	}
}

func TestExecGraphviz0(t *testing.T) {
	G, _ := NewGraph("g")
	G.AddEdge(NV("a"), NV("b"), NE("arc"))
	if err := G.ExecGraphviz("paint", "out.dot"); err == nil {
		t.Errorf("expected an error for an unknown filter")
	}
	if err := G.ExecGraphviz("dot", ""); err == nil {
		t.Errorf("expected an error for an empty filename")
	}

	filename := filepath.Join(t.TempDir(), "g.dot")
	if err := G.ExecGraphviz("dot", filename); err != nil && !errors.Is(err, ErrMissingFilter) {
		t.Errorf("unexpected error: %+v", err)
	}
	b, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("graphviz data was not written: %+v", err)
	}
	if string(b) != G.Graphviz() {
		t.Errorf("unexpected graphviz data:\n%s", b)
	}
}
