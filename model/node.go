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

// Package model contains the stochastic dependency graph that the compiler
// produces, and the model assembly built on top of it. A graph is made up of
// vertices, one per sample or observe site, condition nodes, one per branch
// test, and data nodes, one per hoisted literal block.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/purpleidea/probgraph/lang/ast"
)

const (
	// SampledPrefix is the name prefix of sampled vertices.
	SampledPrefix = "x"

	// ObservedPrefix is the name prefix of observed vertices.
	ObservedPrefix = "y"

	// ConditionPrefix is the name prefix of condition nodes.
	ConditionPrefix = "cond_"

	// DataPrefix is the name prefix of data nodes.
	DataPrefix = "data_"
)

// Node is implemented by the three kinds of graph nodes. The index is unique
// within a compilation and gives the creation order, which is also a valid
// define before use order.
type Node interface {
	fmt.Stringer

	// Name returns the unique identity of the node.
	Name() string

	// Index returns the creation order of the node.
	Index() int

	// Ancestors returns the vertices that this node depends on directly.
	Ancestors() VertexSet
}

// VertexSet is a set of vertices. The zero value is an empty set. Sets are
// treated as values, and the operations return new sets.
type VertexSet map[*Vertex]struct{}

// NewVertexSet returns a set of the given vertices.
func NewVertexSet(vertices ...*Vertex) VertexSet {
	s := make(VertexSet, len(vertices))
	for _, v := range vertices {
		s[v] = struct{}{}
	}
	return s
}

// Union returns a new set with the members of every set.
func (obj VertexSet) Union(sets ...VertexSet) VertexSet {
	s := make(VertexSet, len(obj))
	for v := range obj {
		s[v] = struct{}{}
	}
	for _, x := range sets {
		for v := range x {
			s[v] = struct{}{}
		}
	}
	return s
}

// Contains returns true if the vertex is a member of the set.
func (obj VertexSet) Contains(v *Vertex) bool {
	_, exists := obj[v]
	return exists
}

// Sorted returns the members of the set in creation order.
func (obj VertexSet) Sorted() []*Vertex {
	vs := []*Vertex{}
	for v := range obj {
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].index < vs[j].index })
	return vs
}

// Names returns the names of the members of the set in creation order.
func (obj VertexSet) Names() []string {
	names := []string{}
	for _, v := range obj.Sorted() {
		names = append(names, v.Name())
	}
	return names
}

// String returns a human readable list of the names in the set.
func (obj VertexSet) String() string {
	return "{" + strings.Join(obj.Names(), ", ") + "}"
}

// Condition is a branch test together with the truth value it must have for a
// vertex to be evaluated.
type Condition struct {
	Node  *ConditionNode
	Truth bool
}

// String returns a human readable form of the condition.
func (obj Condition) String() string {
	if obj.Truth {
		return obj.Node.Name()
	}
	return "not " + obj.Node.Name()
}

// Vertex is a single sample or observe site.
type Vertex struct {
	index int

	// Observed is true for observe sites, and false for sample sites.
	Observed bool

	// Family is the name of the distribution family.
	Family string

	// Args are the lowered arguments of the distribution.
	Args []ast.Node

	// ArgNames are the parameter names of the family, if known.
	ArgNames []string

	// Code is the emitted distribution constructor.
	Code string

	// Value is the lowered observed value. It is nil for sampled vertices.
	Value ast.Node

	// ValueCode is the emitted observed value.
	ValueCode string

	// SampleSize is the number of draws, zero for a single draw.
	SampleSize int

	// Dimension is the dimensionality of a single draw.
	Dimension int

	// Continuous is the continuity of the distribution family.
	Continuous bool

	// OriginalName is the source name the site was bound to, if any.
	OriginalName string

	// Line is the source line of the site, or zero if unknown.
	Line int

	// Conditions are the branch tests which must all hold for the site to
	// be evaluated, from the outermost to the innermost.
	Conditions []Condition

	ancestors          VertexSet
	conditionAncestors VertexSet
	dependent          []*ConditionNode
}

// NewVertex builds a vertex. The conditions are copied, and the ancestors of
// their tests become the condition ancestors of the vertex.
func NewVertex(index int, observed bool, ancestors VertexSet, conditions []Condition) *Vertex {
	v := &Vertex{
		index:              index,
		Observed:           observed,
		Conditions:         append([]Condition{}, conditions...),
		ancestors:          VertexSet{}.Union(ancestors),
		conditionAncestors: VertexSet{},
	}
	for _, c := range conditions {
		v.conditionAncestors = v.conditionAncestors.Union(c.Node.ancestors)
		c.Node.gate(v)
	}
	return v
}

// Name returns the unique identity of the vertex.
func (obj *Vertex) Name() string {
	if obj.Observed {
		return fmt.Sprintf("%s%d", ObservedPrefix, obj.index)
	}
	return fmt.Sprintf("%s%d", SampledPrefix, obj.index)
}

// String returns the name of the vertex.
func (obj *Vertex) String() string {
	return obj.Name()
}

// Index returns the creation order of the vertex.
func (obj *Vertex) Index() int {
	return obj.index
}

// Ancestors returns the vertices that the arguments or the observed value of
// this vertex refer to. Vertices that only gate it through a branch test are
// in ConditionAncestors instead.
func (obj *Vertex) Ancestors() VertexSet {
	return obj.ancestors
}

// ConditionAncestors returns the vertices that the conditions of this vertex
// depend on.
func (obj *Vertex) ConditionAncestors() VertexSet {
	return obj.conditionAncestors
}

// DependentConditions returns the conditions which depend on this vertex in
// creation order.
func (obj *Vertex) DependentConditions() []*ConditionNode {
	return append([]*ConditionNode{}, obj.dependent...)
}

// AddDependentCondition records a condition which depends on this vertex. The
// condition is propagated to the ancestors of the vertex.
func (obj *Vertex) AddDependentCondition(c *ConditionNode) {
	for _, x := range obj.dependent {
		if x == c {
			return // already known, and so are the ancestors
		}
	}
	obj.dependent = append(obj.dependent, c)
	sort.Slice(obj.dependent, func(i, j int) bool { return obj.dependent[i].index < obj.dependent[j].index })
	for _, a := range obj.ancestors.Sorted() {
		a.AddDependentCondition(c)
	}
}

// IsSampled returns true for sample sites.
func (obj *Vertex) IsSampled() bool { return !obj.Observed }

// IsObserved returns true for observe sites.
func (obj *Vertex) IsObserved() bool { return obj.Observed }

// IsConditional returns true if a branch test depends on this vertex.
func (obj *Vertex) IsConditional() bool { return len(obj.dependent) > 0 }

// Satisfied returns true if every condition of the vertex has its required
// truth value in the state. A missing condition value counts as unsatisfied.
func (obj *Vertex) Satisfied(state map[string]interface{}) bool {
	for _, c := range obj.Conditions {
		b, ok := state[c.Node.Name()].(bool)
		if !ok || b != c.Truth {
			return false
		}
	}
	return true
}

// Describe returns a one line human readable summary of the vertex.
func (obj *Vertex) Describe() string {
	args := []string{}
	for _, a := range obj.Args {
		args = append(args, a.String())
	}
	s := fmt.Sprintf("%s(%s)", obj.Family, strings.Join(args, ", "))
	if obj.SampleSize > 0 {
		s = fmt.Sprintf("%s[size=%d]", s, obj.SampleSize)
	}
	if obj.Observed {
		s = fmt.Sprintf("%s = observe(%s, %s)", obj.Name(), s, obj.Value)
	} else {
		s = fmt.Sprintf("%s = sample(%s)", obj.Name(), s)
	}
	if len(obj.Conditions) > 0 {
		cs := []string{}
		for _, c := range obj.Conditions {
			cs = append(cs, c.String())
		}
		s += " if " + strings.Join(cs, " and ")
	}
	return s
}

// ConditionNode is a single branch test.
type ConditionNode struct {
	index int

	// Test is the lowered test expression.
	Test ast.Node

	// Code is the emitted test expression.
	Code string

	ancestors VertexSet
	gated     []*Vertex
}

// NewConditionNode builds a condition node, and registers it as a dependent
// condition of its ancestors.
func NewConditionNode(index int, test ast.Node, ancestors VertexSet) *ConditionNode {
	c := &ConditionNode{
		index:     index,
		Test:      test,
		ancestors: VertexSet{}.Union(ancestors),
	}
	for _, a := range c.ancestors.Sorted() {
		a.AddDependentCondition(c)
	}
	return c
}

// Name returns the unique identity of the condition node.
func (obj *ConditionNode) Name() string {
	return fmt.Sprintf("%s%d", ConditionPrefix, obj.index)
}

// String returns the name of the condition node.
func (obj *ConditionNode) String() string {
	return obj.Name()
}

// Index returns the creation order of the condition node.
func (obj *ConditionNode) Index() int {
	return obj.index
}

// Ancestors returns the vertices that the test refers to.
func (obj *ConditionNode) Ancestors() VertexSet {
	return obj.ancestors
}

// Gated returns the vertices whose evaluation depends on this test, in
// creation order.
func (obj *ConditionNode) Gated() []*Vertex {
	return append([]*Vertex{}, obj.gated...)
}

func (obj *ConditionNode) gate(v *Vertex) {
	obj.gated = append(obj.gated, v)
}

// Describe returns a one line human readable summary of the condition node.
func (obj *ConditionNode) Describe() string {
	return fmt.Sprintf("%s = %s", obj.Name(), obj.Test)
}

// DataNode is a hoisted literal block.
type DataNode struct {
	index int

	// Data is the literal.
	Data ast.Node

	// Code is the emitted literal.
	Code string
}

// NewDataNode builds a data node.
func NewDataNode(index int, data ast.Node) *DataNode {
	return &DataNode{
		index: index,
		Data:  data,
	}
}

// Name returns the unique identity of the data node.
func (obj *DataNode) Name() string {
	return fmt.Sprintf("%s%d", DataPrefix, obj.index)
}

// String returns the name of the data node.
func (obj *DataNode) String() string {
	return obj.Name()
}

// Index returns the creation order of the data node.
func (obj *DataNode) Index() int {
	return obj.index
}

// Ancestors returns the empty set, since data is constant.
func (obj *DataNode) Ancestors() VertexSet {
	return VertexSet{}
}

// Describe returns a one line human readable summary of the data node.
func (obj *DataNode) Describe() string {
	return fmt.Sprintf("%s = %s", obj.Name(), obj.Data)
}
