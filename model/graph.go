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

package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/purpleidea/probgraph/pgraph"
	"github.com/purpleidea/probgraph/util"
)

// Graph is a set of graph nodes together with the imports of the program. A
// graph is a value: Merge returns a new graph, and is associative, commutative
// and idempotent.
type Graph struct {
	nodes   map[Node]struct{}
	imports map[string]struct{}
}

// NewGraph returns a graph holding the given nodes.
func NewGraph(nodes ...Node) *Graph {
	g := &Graph{
		nodes:   make(map[Node]struct{}),
		imports: make(map[string]struct{}),
	}
	for _, n := range nodes {
		g.nodes[n] = struct{}{}
	}
	return g
}

// Merge returns the union of this graph and the others.
func (obj *Graph) Merge(graphs ...*Graph) *Graph {
	g := NewGraph()
	for _, x := range append([]*Graph{obj}, graphs...) {
		if x == nil {
			continue
		}
		for n := range x.nodes {
			g.nodes[n] = struct{}{}
		}
		for i := range x.imports {
			g.imports[i] = struct{}{}
		}
	}
	return g
}

// WithImports returns a copy of the graph which also records the imports.
func (obj *Graph) WithImports(imports ...string) *Graph {
	g := obj.Merge()
	for _, i := range imports {
		g.imports[i] = struct{}{}
	}
	return g
}

// Imports returns the imports of the program in sorted order.
func (obj *Graph) Imports() []string {
	imports := []string{}
	for i := range obj.imports {
		imports = append(imports, i)
	}
	sort.Strings(imports)
	return imports
}

// Len returns the number of nodes in the graph.
func (obj *Graph) Len() int {
	return len(obj.nodes)
}

// Nodes returns every node in creation order.
func (obj *Graph) Nodes() []Node {
	nodes := []Node{}
	for n := range obj.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Index() < nodes[j].Index() })
	return nodes
}

// Lookup returns the node with the given name.
func (obj *Graph) Lookup(name string) (Node, bool) {
	for n := range obj.nodes {
		if n.Name() == name {
			return n, true
		}
	}
	return nil, false
}

// Vertices returns the vertices in creation order.
func (obj *Graph) Vertices() []*Vertex {
	vs := []*Vertex{}
	for _, n := range obj.Nodes() {
		if v, ok := n.(*Vertex); ok {
			vs = append(vs, v)
		}
	}
	return vs
}

// Conditions returns the condition nodes in creation order.
func (obj *Graph) Conditions() []*ConditionNode {
	cs := []*ConditionNode{}
	for _, n := range obj.Nodes() {
		if c, ok := n.(*ConditionNode); ok {
			cs = append(cs, c)
		}
	}
	return cs
}

// Data returns the data nodes in creation order.
func (obj *Graph) Data() []*DataNode {
	ds := []*DataNode{}
	for _, n := range obj.Nodes() {
		if d, ok := n.(*DataNode); ok {
			ds = append(ds, d)
		}
	}
	return ds
}

// Arc is a direct stochastic dependency of a vertex on an ancestor.
type Arc struct {
	From *Vertex
	To   *Vertex
}

// String returns a human readable form of the arc.
func (obj Arc) String() string {
	return fmt.Sprintf("%s -> %s", obj.From, obj.To)
}

// Arcs returns every (ancestor, vertex) pair, ordered by the dependent vertex
// and then by the ancestor.
func (obj *Graph) Arcs() []Arc {
	arcs := []Arc{}
	for _, v := range obj.Vertices() {
		for _, a := range v.Ancestors().Sorted() {
			arcs = append(arcs, Arc{From: a, To: v})
		}
	}
	return arcs
}

// edge labels the pgraph edges of an exported graph.
type edge string

func (obj edge) String() string { return string(obj) }

// PGraph exports the graph. Every node becomes a vertex. Arcs are labelled
// "arc", the edges from a test to its ancestors' dependents are labelled with
// the required truth value, and the edges from an ancestor to a test are
// labelled "test".
func (obj *Graph) PGraph(name string) (*pgraph.Graph, error) {
	g, err := pgraph.NewGraph(name)
	if err != nil {
		return nil, err
	}
	for _, n := range obj.Nodes() {
		g.AddVertex(n)
	}
	for _, n := range obj.Nodes() {
		switch x := n.(type) {
		case *Vertex:
			for _, a := range x.Ancestors().Sorted() {
				g.AddEdge(a, x, edge("arc"))
			}
			for _, c := range x.Conditions {
				g.AddEdge(c.Node, x, edge(fmt.Sprintf("%t", c.Truth)))
			}
		case *ConditionNode:
			for _, a := range x.Ancestors().Sorted() {
				g.AddEdge(a, x, edge("test"))
			}
		}
	}
	return g, nil
}

// Validate checks that every dependency points from an earlier node to a later
// one, so that creation order is a valid evaluation order, and that the export
// is acyclic.
func (obj *Graph) Validate() error {
	g, err := obj.PGraph("validate")
	if err != nil {
		return err
	}
	for _, v1 := range g.Vertices() {
		for _, v2 := range g.OutgoingGraphVertices(v1) {
			if v1.(Node).Index() >= v2.(Node).Index() {
				return fmt.Errorf("%s depends on %s which is created after it", v2, v1)
			}
		}
	}
	if _, err := g.TopologicalSort(); err != nil {
		return err
	}
	return nil
}

// String returns a deterministic human readable listing of the graph.
func (obj *Graph) String() string {
	lines := []string{}
	if imports := obj.Imports(); len(imports) > 0 {
		lines = append(lines, "import "+strings.Join(imports, ", "))
	}
	for _, n := range obj.Nodes() {
		switch x := n.(type) {
		case *Vertex:
			lines = append(lines, x.Describe())
		case *ConditionNode:
			lines = append(lines, x.Describe())
		case *DataNode:
			lines = append(lines, x.Describe())
		}
	}
	if arcs := obj.Arcs(); len(arcs) > 0 {
		lines = append(lines, "arcs:")
		for _, a := range arcs {
			lines = append(lines, util.Indent(a.String(), "\t"))
		}
	}
	return strings.Join(lines, "\n")
}
