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

// Package ast contains the structs implementing and some utility functions for
// interacting with the intermediate representation of probabilistic programs.
// Nodes are immutable once built. Every compiler pass builds new nodes instead
// of modifying the ones it was given.
package ast

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Node is the interface implemented by every node kind. The set of kinds is
// closed and is made up of the structs in this package.
type Node interface {
	fmt.Stringer

	// Apply is a general purpose iterator method that operates on any
	// node. It visits the children first and then the node itself.
	Apply(fn func(Node) error) error

	// Pos returns the source line of this node, or zero if unknown.
	Pos() int
}

// Textarea stores the source position of a node. It is embedded into every
// node struct.
type Textarea struct {
	// Line is the one-based source line, or zero if unknown.
	Line int
}

// Pos returns the source line of this node, or zero if unknown.
func (obj Textarea) Pos() int {
	return obj.Line
}

// Value is a constant. V is one of nil, bool, int64, float64 or string.
type Value struct {
	Textarea

	V interface{}
}

// String returns the canonical form of this node.
func (obj *Value) String() string {
	return ValueString(obj.V)
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Value) Apply(fn func(Node) error) error {
	return fn(obj)
}

// Symbol is a reference to a name. Name is the resolved name, and Original is
// the name as it was written in the source. If Graph is true, the name refers
// to a graph node.
type Symbol struct {
	Textarea

	Name     string
	Original string
	Graph    bool
}

// String returns the canonical form of this node.
func (obj *Symbol) String() string {
	return obj.Name
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Symbol) Apply(fn func(Node) error) error {
	return fn(obj)
}

// Unary is a prefix operator such as "-" or "not".
type Unary struct {
	Textarea

	Op   string
	Item Node
}

// String returns the canonical form of this node.
func (obj *Unary) String() string {
	if obj.Op == OpNot {
		return fmt.Sprintf("(not %s)", obj.Item)
	}
	return fmt.Sprintf("(%s%s)", obj.Op, obj.Item)
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Unary) Apply(fn func(Node) error) error {
	if err := obj.Item.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// Binary is an infix arithmetic or boolean operator.
type Binary struct {
	Textarea

	Op    string
	Left  Node
	Right Node
}

// String returns the canonical form of this node.
func (obj *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", obj.Left, obj.Op, obj.Right)
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Binary) Apply(fn func(Node) error) error {
	if err := obj.Left.Apply(fn); err != nil {
		return err
	}
	if err := obj.Right.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// Compare is a comparison operator.
type Compare struct {
	Textarea

	Op    string
	Left  Node
	Right Node
}

// String returns the canonical form of this node.
func (obj *Compare) String() string {
	return fmt.Sprintf("(%s %s %s)", obj.Left, obj.Op, obj.Right)
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Compare) Apply(fn func(Node) error) error {
	if err := obj.Left.Apply(fn); err != nil {
		return err
	}
	if err := obj.Right.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// Call is a function call. If Func names a known function it gets inlined,
// otherwise it is an opaque builtin.
type Call struct {
	Textarea

	Func Node
	Args []Node
}

// String returns the canonical form of this node.
func (obj *Call) String() string {
	return fmt.Sprintf("%s(%s)", obj.Func, joinNodes(obj.Args))
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Call) Apply(fn func(Node) error) error {
	if err := obj.Func.Apply(fn); err != nil {
		return err
	}
	for _, x := range obj.Args {
		if err := x.Apply(fn); err != nil {
			return err
		}
	}
	return fn(obj)
}

// Name returns the name of the called function if it is a plain or dotted
// name, and the empty string otherwise.
func (obj *Call) Name() string {
	switch x := obj.Func.(type) {
	case *Symbol:
		return x.Name
	case *Attribute:
		return x.Attr
	}
	return ""
}

// Attribute is a field access such as "math.pi".
type Attribute struct {
	Textarea

	Base Node
	Attr string
}

// String returns the canonical form of this node.
func (obj *Attribute) String() string {
	return fmt.Sprintf("%s.%s", obj.Base, obj.Attr)
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Attribute) Apply(fn func(Node) error) error {
	if err := obj.Base.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// Subscript is an index operation. The index can be a Slice.
type Subscript struct {
	Textarea

	Base  Node
	Index Node
}

// String returns the canonical form of this node.
func (obj *Subscript) String() string {
	return fmt.Sprintf("%s[%s]", obj.Base, obj.Index)
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Subscript) Apply(fn func(Node) error) error {
	if err := obj.Base.Apply(fn); err != nil {
		return err
	}
	if err := obj.Index.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// Slice is a range of indexes used inside a Subscript. Either end can be nil.
type Slice struct {
	Textarea

	Start Node
	Stop  Node
}

// String returns the canonical form of this node.
func (obj *Slice) String() string {
	start, stop := "", ""
	if obj.Start != nil {
		start = obj.Start.String()
	}
	if obj.Stop != nil {
		stop = obj.Stop.String()
	}
	return fmt.Sprintf("%s:%s", start, stop)
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Slice) Apply(fn func(Node) error) error {
	if obj.Start != nil {
		if err := obj.Start.Apply(fn); err != nil {
			return err
		}
	}
	if obj.Stop != nil {
		if err := obj.Stop.Apply(fn); err != nil {
			return err
		}
	}
	return fn(obj)
}

// Vector is a literal list.
type Vector struct {
	Textarea

	Items []Node
}

// String returns the canonical form of this node.
func (obj *Vector) String() string {
	return fmt.Sprintf("[%s]", joinNodes(obj.Items))
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Vector) Apply(fn func(Node) error) error {
	for _, x := range obj.Items {
		if err := x.Apply(fn); err != nil {
			return err
		}
	}
	return fn(obj)
}

// Dict is a literal mapping. Keys and Values have the same length.
type Dict struct {
	Textarea

	Keys   []Node
	Values []Node
}

// String returns the canonical form of this node.
func (obj *Dict) String() string {
	s := []string{}
	for i := range obj.Keys {
		s = append(s, fmt.Sprintf("%s: %s", obj.Keys[i], obj.Values[i]))
	}
	return fmt.Sprintf("{%s}", strings.Join(s, ", "))
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Dict) Apply(fn func(Node) error) error {
	for i := range obj.Keys {
		if err := obj.Keys[i].Apply(fn); err != nil {
			return err
		}
		if err := obj.Values[i].Apply(fn); err != nil {
			return err
		}
	}
	return fn(obj)
}

// If is a conditional. It is used both as a statement and as an expression.
// Else can be nil in a statement. The canonical form of an if with two pure
// arms is the expression form.
type If struct {
	Textarea

	Test Node
	Then Node
	Else Node
}

// String returns the canonical form of this node.
func (obj *If) String() string {
	if obj.Else != nil && IsPure(obj.Then) && IsPure(obj.Else) {
		return fmt.Sprintf("(%s if %s else %s)", obj.Then, obj.Test, obj.Else)
	}
	s := fmt.Sprintf("if %s:\n%s", obj.Test, block(obj.Then))
	if obj.Else != nil {
		s += fmt.Sprintf("\nelse:\n%s", block(obj.Else))
	}
	return s
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *If) Apply(fn func(Node) error) error {
	if err := obj.Test.Apply(fn); err != nil {
		return err
	}
	if err := obj.Then.Apply(fn); err != nil {
		return err
	}
	if obj.Else != nil {
		if err := obj.Else.Apply(fn); err != nil {
			return err
		}
	}
	return fn(obj)
}

// For is a loop over the items of a source.
type For struct {
	Textarea

	Target string
	Source Node
	Body   Node
}

// String returns the canonical form of this node.
func (obj *For) String() string {
	return fmt.Sprintf("for %s in %s:\n%s", obj.Target, obj.Source, block(obj.Body))
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *For) Apply(fn func(Node) error) error {
	if err := obj.Source.Apply(fn); err != nil {
		return err
	}
	if err := obj.Body.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// ListFor is a list comprehension. Test can be nil.
type ListFor struct {
	Textarea

	Target string
	Source Node
	Expr   Node
	Test   Node
}

// String returns the canonical form of this node.
func (obj *ListFor) String() string {
	if obj.Test != nil {
		return fmt.Sprintf("[%s for %s in %s if %s]", inline(obj.Expr), obj.Target, obj.Source, inline(obj.Test))
	}
	return fmt.Sprintf("[%s for %s in %s]", inline(obj.Expr), obj.Target, obj.Source)
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *ListFor) Apply(fn func(Node) error) error {
	if err := obj.Source.Apply(fn); err != nil {
		return err
	}
	if err := obj.Expr.Apply(fn); err != nil {
		return err
	}
	if obj.Test != nil {
		if err := obj.Test.Apply(fn); err != nil {
			return err
		}
	}
	return fn(obj)
}

// While is a loop with a dynamic bound. It can't be compiled into a graph, and
// exists so that it can be reported properly.
type While struct {
	Textarea

	Test Node
	Body Node
}

// String returns the canonical form of this node.
func (obj *While) String() string {
	return fmt.Sprintf("while %s:\n%s", obj.Test, block(obj.Body))
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *While) Apply(fn func(Node) error) error {
	if err := obj.Test.Apply(fn); err != nil {
		return err
	}
	if err := obj.Body.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// Let binds Target to Source and then runs Body. This is what a statically
// unrolled loop iteration looks like. The binding, and any bindings made in the
// body, remain visible after it.
type Let struct {
	Textarea

	Target string
	Source Node
	Body   Node
}

// String returns the canonical form of this node.
func (obj *Let) String() string {
	return fmt.Sprintf("let %s = %s:\n%s", obj.Target, obj.Source, block(obj.Body))
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Let) Apply(fn func(Node) error) error {
	if err := obj.Source.Apply(fn); err != nil {
		return err
	}
	if err := obj.Body.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// Def binds a name to a value.
type Def struct {
	Textarea

	Name  string
	Value Node
}

// String returns the canonical form of this node.
func (obj *Def) String() string {
	return fmt.Sprintf("%s := %s", obj.Name, inline(obj.Value))
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Def) Apply(fn func(Node) error) error {
	if err := obj.Value.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// Function is a function definition.
type Function struct {
	Textarea

	Name   string
	Params []string
	Body   Node
}

// String returns the canonical form of this node.
func (obj *Function) String() string {
	return fmt.Sprintf("def %s(%s):\n%s", obj.Name, strings.Join(obj.Params, ", "), block(obj.Body))
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Function) Apply(fn func(Node) error) error {
	if err := obj.Body.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// Return returns a value from a function. Value can be nil.
type Return struct {
	Textarea

	Value Node
}

// String returns the canonical form of this node.
func (obj *Return) String() string {
	if obj.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", inline(obj.Value))
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Return) Apply(fn func(Node) error) error {
	if obj.Value != nil {
		if err := obj.Value.Apply(fn); err != nil {
			return err
		}
	}
	return fn(obj)
}

// Break leaves the innermost loop.
type Break struct {
	Textarea
}

// String returns the canonical form of this node.
func (obj *Break) String() string {
	return "break"
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Break) Apply(fn func(Node) error) error {
	return fn(obj)
}

// Sample draws a value from a distribution. Size can be nil for one draw.
type Sample struct {
	Textarea

	Dist Node
	Size Node
}

// String returns the canonical form of this node.
func (obj *Sample) String() string {
	if obj.Size != nil {
		return fmt.Sprintf("sample(%s, size=%s)", obj.Dist, obj.Size)
	}
	return fmt.Sprintf("sample(%s)", obj.Dist)
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Sample) Apply(fn func(Node) error) error {
	if err := obj.Dist.Apply(fn); err != nil {
		return err
	}
	if obj.Size != nil {
		if err := obj.Size.Apply(fn); err != nil {
			return err
		}
	}
	return fn(obj)
}

// Observe conditions the model on a distribution having produced Value.
type Observe struct {
	Textarea

	Dist  Node
	Value Node
}

// String returns the canonical form of this node.
func (obj *Observe) String() string {
	return fmt.Sprintf("observe(%s, %s)", obj.Dist, obj.Value)
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Observe) Apply(fn func(Node) error) error {
	if err := obj.Dist.Apply(fn); err != nil {
		return err
	}
	if err := obj.Value.Apply(fn); err != nil {
		return err
	}
	return fn(obj)
}

// Import makes a module, or some names from it, available.
type Import struct {
	Textarea

	Module string
	Names  []string
}

// String returns the canonical form of this node.
func (obj *Import) String() string {
	if len(obj.Names) == 0 {
		return fmt.Sprintf("import %s", obj.Module)
	}
	return fmt.Sprintf("from %s import %s", obj.Module, strings.Join(obj.Names, ", "))
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Import) Apply(fn func(Node) error) error {
	return fn(obj)
}

// Body is a sequence of nodes. When used as a value, it evaluates to the value
// of its last item. Use MakeBody to build one.
type Body struct {
	Textarea

	Items []Node
}

// String returns the canonical form of this node.
func (obj *Body) String() string {
	if len(obj.Items) == 0 {
		return "pass"
	}
	s := []string{}
	for _, x := range obj.Items {
		s = append(s, x.String())
	}
	return strings.Join(s, "\n")
}

// Apply is a general purpose iterator method that operates on any node.
func (obj *Body) Apply(fn func(Node) error) error {
	for _, x := range obj.Items {
		if err := x.Apply(fn); err != nil {
			return err
		}
	}
	return fn(obj)
}

// ValueString returns the canonical form of a constant. Floats always carry a
// decimal point so that they are never confused with integers.
func ValueString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsInf(x, 1) {
			return "inf"
		}
		if math.IsInf(x, -1) {
			return "-inf"
		}
		if math.IsNaN(x) {
			return "nan"
		}
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case string:
		return strconv.Quote(x)
	}
	return fmt.Sprintf("%v", v)
}

func joinNodes(nodes []Node) string {
	s := []string{}
	for _, x := range nodes {
		s = append(s, x.String())
	}
	return strings.Join(s, ", ")
}

// block indents the canonical form of a node for use as a nested block.
func block(node Node) string {
	if node == nil {
		return "\tpass"
	}
	lines := strings.Split(node.String(), "\n")
	for i := range lines {
		lines[i] = "\t" + lines[i]
	}
	return strings.Join(lines, "\n")
}

// inline prints a node on one line, which is needed for bodies used as values.
func inline(node Node) string {
	if b, ok := node.(*Body); ok && len(b.Items) > 1 {
		s := []string{}
		for _, x := range b.Items {
			s = append(s, x.String())
		}
		return fmt.Sprintf("{%s}", strings.Join(s, "; "))
	}
	return node.String()
}
