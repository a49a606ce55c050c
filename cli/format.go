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
	"sort"

	cliUtil "github.com/purpleidea/probgraph/cli/util"
	"github.com/purpleidea/probgraph/lang"
	"github.com/purpleidea/probgraph/model"
	"github.com/purpleidea/probgraph/util/errwrap"

	"gopkg.in/yaml.v2"
)

// DefaultFormat is the output format used when none is chosen.
const DefaultFormat = "text"

// formatter renders the result of a compilation.
type formatter func(l *lang.Lang, output *lang.Output) (string, error)

var formats = map[string]formatter{
	"text": func(l *lang.Lang, output *lang.Output) (string, error) {
		return output.Graph.String() + "\n", nil
	},
	"dot": func(l *lang.Lang, output *lang.Output) (string, error) {
		g, err := output.Graph.PGraph(output.Name)
		if err != nil {
			return "", err
		}
		return g.Graphviz(), nil
	},
	"yaml": func(l *lang.Lang, output *lang.Output) (string, error) {
		b, err := yaml.Marshal(Export(output.Name, output.Graph))
		if err != nil {
			return "", err
		}
		return string(b), nil
	},
	"python": func(l *lang.Lang, output *lang.Output) (string, error) {
		return l.Python(output)
	},
}

// Formats returns the sorted names of the output formats.
func Formats() []string {
	names := []string{}
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format renders the result of a compilation in the named format.
func Format(format string, l *lang.Lang, output *lang.Output) (string, error) {
	fn, exists := formats[format]
	if !exists {
		return "", errwrap.Wrapf(cliUtil.UnknownFormat, "format `%s`", format)
	}
	return fn(l, output)
}

// ExportGraph is the yaml form of a graph.
type ExportGraph struct {
	Name    string        `yaml:"name"`
	Imports []string      `yaml:"imports,omitempty"`
	Nodes   []*ExportNode `yaml:"nodes"`
	Arcs    []*ExportArc  `yaml:"arcs,omitempty"`
}

// ExportNode is the yaml form of a single node of the graph.
type ExportNode struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Family     string   `yaml:"family,omitempty"`
	Args       []string `yaml:"args,omitempty"`
	Value      string   `yaml:"value,omitempty"`
	Size       int      `yaml:"size,omitempty"`
	Test       string   `yaml:"test,omitempty"`
	Data       string   `yaml:"data,omitempty"`
	Ancestors  []string `yaml:"ancestors,omitempty"`
	Conditions []string `yaml:"conditions,omitempty"`
	Original   string   `yaml:"original,omitempty"`
	Line       int      `yaml:"line,omitempty"`
}

// ExportArc is the yaml form of an arc.
type ExportArc struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Export builds the yaml form of a graph.
func Export(name string, graph *model.Graph) *ExportGraph {
	out := &ExportGraph{
		Name:  name,
		Nodes: []*ExportNode{},
	}
	if imports := graph.Imports(); len(imports) > 0 {
		out.Imports = imports
	}
	for _, n := range graph.Nodes() {
		node := &ExportNode{
			Name: n.Name(),
		}
		if ancestors := n.Ancestors().Names(); len(ancestors) > 0 {
			node.Ancestors = ancestors
		}
		switch x := n.(type) {
		case *model.Vertex:
			node.Kind = "sampled"
			if x.IsObserved() {
				node.Kind = "observed"
				node.Value = x.Value.String()
			}
			node.Family = x.Family
			for _, a := range x.Args {
				node.Args = append(node.Args, a.String())
			}
			node.Size = x.SampleSize
			for _, c := range x.Conditions {
				node.Conditions = append(node.Conditions, c.String())
			}
			node.Original = x.OriginalName
			node.Line = x.Line

		case *model.ConditionNode:
			node.Kind = "condition"
			node.Test = x.Test.String()

		case *model.DataNode:
			node.Kind = "data"
			node.Data = x.Data.String()
		}
		out.Nodes = append(out.Nodes, node)
	}
	for _, arc := range graph.Arcs() {
		out.Arcs = append(out.Arcs, &ExportArc{
			From: arc.From.Name(),
			To:   arc.To.Name(),
		})
	}
	return out
}
