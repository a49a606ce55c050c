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
	"fmt"
	"strings"
)

// label is a vertex and an edge that is only its name. Each one is a distinct
// pointer, so two vertices may share a name.
type label struct {
	name string
}

func (obj *label) String() string { return obj.name }

// NV makes a test vertex.
func NV(s string) Vertex { return &label{s} }

// NE makes a test edge.
func NE(s string) Edge { return &label{s} }

// dump lists the vertices and then the edges of the graph, one per line.
func dump(g *Graph) string {
	lines := []string{}
	for _, v := range g.Vertices() {
		lines = append(lines, v.String())
	}
	for _, v1 := range g.Vertices() {
		for _, v2 := range g.OutgoingGraphVertices(v1) {
			lines = append(lines, fmt.Sprintf("%s -> %s (%s)", v1, v2, g.adjacency[v1][v2]))
		}
	}
	return strings.Join(lines, "\n")
}

// build makes a graph from a list of "from -> to" arcs, plus some isolated
// vertices. Vertices are created in order of first appearance.
func build(name string, arcs []string, isolated ...string) (*Graph, map[string]Vertex) {
	g, _ := NewGraph(name)
	vs := make(map[string]Vertex)
	get := func(s string) Vertex {
		if _, exists := vs[s]; !exists {
			vs[s] = NV(s)
			g.AddVertex(vs[s])
		}
		return vs[s]
	}
	for _, arc := range arcs {
		split := strings.Split(arc, " -> ")
		v1, v2 := get(split[0]), get(split[1])
		g.AddEdge(v1, v2, NE(arc))
	}
	for _, s := range isolated {
		get(s)
	}
	return g, vs
}

// names returns the names of the vertices in order.
func names(vs []Vertex) []string {
	out := []string{}
	for _, v := range vs {
		out = append(out, v.String())
	}
	return out
}
