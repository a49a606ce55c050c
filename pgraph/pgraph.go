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

// Package pgraph represents the internal "pointer graph" that we use. It is a
// small directed graph library which the stochastic model exports its arcs to
// for ordering checks and graphviz output.
package pgraph

import (
	"fmt"
	"sort"
	"strings"
)

// Vertex is the primary vertex struct in this library. It can be anything that
// implements Stringer. The string output must be unique in the graph.
type Vertex interface {
	fmt.Stringer // String() string
}

// Edge is the primary edge struct in this library. It can be anything that
// implements Stringer.
type Edge interface {
	fmt.Stringer // String() string
}

// Graph is the graph structure in this library. The directed graph arrows point
// from left to right ( -> ) and away from their dependencies, so an arc from an
// ancestor to a dependent vertex means the ancestor must be evaluated first.
// The zero value is an empty graph that is ready to use.
type Graph struct {
	Name string

	adjacency map[Vertex]map[Vertex]Edge // Vertex -> Vertex (edge)
	index     map[Vertex]int             // insertion order
	order     []Vertex
}

// NewGraph builds a new graph.
func NewGraph(name string) (*Graph, error) {
	if name == "" {
		return nil, fmt.Errorf("empty graph name")
	}
	g := &Graph{
		Name: name,
	}
	g.init()
	return g, nil
}

func (g *Graph) init() {
	if g.adjacency == nil {
		g.adjacency = make(map[Vertex]map[Vertex]Edge)
		g.index = make(map[Vertex]int)
	}
}

// String makes the graph pretty print.
func (g *Graph) String() string {
	return fmt.Sprintf("%s: Vertices(%d), Edges(%d)", g.Name, g.NumVertices(), g.NumEdges())
}

// AddVertex uses variadic input to add all listed vertices to the graph. Adding
// a vertex that already exists is a no-op.
func (g *Graph) AddVertex(xv ...Vertex) {
	g.init()
	for _, v := range xv {
		if _, exists := g.adjacency[v]; exists {
			continue
		}
		g.adjacency[v] = make(map[Vertex]Edge)
		g.index[v] = len(g.order)
		g.order = append(g.order, v)
	}
}

// AddEdge adds a directed edge to the graph from v1 to v2. Both vertices are
// added if they are missing.
func (g *Graph) AddEdge(v1, v2 Vertex, e Edge) {
	g.AddVertex(v1, v2)
	g.adjacency[v1][v2] = e
}

// NumVertices returns the number of vertices in the graph.
func (g *Graph) NumVertices() int {
	return len(g.order)
}

// NumEdges returns the number of edges in the graph.
func (g *Graph) NumEdges() int {
	count := 0
	for k := range g.adjacency {
		count += len(g.adjacency[k])
	}
	return count
}

// Vertices returns all the vertices of the graph in the order they were added.
func (g *Graph) Vertices() []Vertex {
	return append([]Vertex{}, g.order...)
}

// sorted orders a set of vertices by insertion order.
func (g *Graph) sorted(vs []Vertex) []Vertex {
	sort.Slice(vs, func(i, j int) bool { return g.index[vs[i]] < g.index[vs[j]] })
	return vs
}

// OutgoingGraphVertices returns an array (slice) of all vertices that vertex v
// points to (v -> ???).
func (g *Graph) OutgoingGraphVertices(v Vertex) []Vertex {
	s := []Vertex{}
	for k := range g.adjacency[v] { // forward paths
		s = append(s, k)
	}
	return g.sorted(s)
}

// InDegree returns the count of vertices that point to me in one big lookup map.
func (g *Graph) InDegree() map[Vertex]int {
	result := make(map[Vertex]int)
	for k := range g.adjacency {
		result[k] = 0 // initialize
	}

	for k := range g.adjacency {
		for z := range g.adjacency[k] {
			result[z]++
		}
	}
	return result
}

// TopologicalSort returns the sort of graph vertices in that order. Ties are
// broken by insertion order, so the result is deterministic.
// based on descriptions and code from wikipedia and rosetta code
func (g *Graph) TopologicalSort() ([]Vertex, error) { // kahn's algorithm
	L := []Vertex{}                   // empty list that will contain the sorted elements
	S := []Vertex{}                   // set of all nodes with no incoming edges
	remaining := make(map[Vertex]int) // amount of edges remaining

	indegree := g.InDegree()
	for _, v := range g.order {
		if d := indegree[v]; d == 0 {
			// accumulate set of all nodes with no incoming edges
			S = append(S, v)
		} else {
			// initialize remaining edge count from indegree
			remaining[v] = d
		}
	}

	for len(S) > 0 {
		v := S[0] // remove a node v from S
		S = S[1:]
		L = append(L, v) // add v to tail of L
		for _, n := range g.OutgoingGraphVertices(v) {
			// for each node n remaining in the graph, consume from
			// remaining, so for remaining[n] > 0
			if remaining[n] > 0 {
				remaining[n]--         // remove edge from the graph
				if remaining[n] == 0 { // if n has no other incoming edges
					S = append(S, n) // insert n into S
				}
			}
		}
	}

	// if graph has edges, eg if any value in rem is > 0
	for _, v := range g.order {
		if remaining[v] > 0 {
			return nil, fmt.Errorf("not a dag: %s is on a cycle", v)
		}
	}

	return L, nil
}

// Graphviz outputs the graph in graphviz format. The output is deterministic.
// https://en.wikipedia.org/wiki/DOT_%28graph_description_language%29
func (g *Graph) Graphviz() string {
	//digraph g {
	//	label="hello world";
	//	A [label="A"];
	//	B [label="B"];
	//	A -> B [label=f];
	//}
	out := []string{}
	out = append(out, fmt.Sprintf("digraph %q {", g.Name))
	out = append(out, fmt.Sprintf("\tlabel=%q;", g.Name))
	edges := []string{} // use a separate list for clearer output ordering
	for _, v1 := range g.order {
		out = append(out, fmt.Sprintf("\t%q [label=%q];", v1.String(), v1.String()))
		for _, v2 := range g.OutgoingGraphVertices(v1) {
			e := g.adjacency[v1][v2]
			label := ""
			if e != nil {
				label = e.String()
			}
			edges = append(edges, fmt.Sprintf("\t%q -> %q [label=%q];", v1.String(), v2.String(), label))
		}
	}
	out = append(out, edges...)
	out = append(out, "}")
	return strings.Join(out, "\n") + "\n"
}
