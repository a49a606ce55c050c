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

package ast

import (
	"fmt"
)

// These are the operators that the passes know about. Anything else is passed
// through untouched.
const (
	OpAdd      = "+"
	OpSub      = "-"
	OpMul      = "*"
	OpDiv      = "/"
	OpFloorDiv = "//"
	OpMod      = "%"
	OpPow      = "**"
	OpAnd      = "and"
	OpOr       = "or"
	OpNot      = "not"

	OpEq    = "=="
	OpNe    = "!="
	OpLt    = "<"
	OpLe    = "<="
	OpGt    = ">"
	OpGe    = ">="
	OpIn    = "in"
	OpNotIn = "not in"
	OpIs    = "is"
	OpIsNot = "is not"
)

// Inverse maps each comparison operator to its negation.
var Inverse = map[string]string{
	OpEq:    OpNe,
	OpNe:    OpEq,
	OpLt:    OpGe,
	OpLe:    OpGt,
	OpGt:    OpLe,
	OpGe:    OpLt,
	OpIn:    OpNotIn,
	OpNotIn: OpIn,
	OpIs:    OpIsNot,
	OpIsNot: OpIs,
}

// NewValue builds a constant node. It normalizes the go integer and float
// types into int64 and float64.
func NewValue(v interface{}) *Value {
	switch x := v.(type) {
	case int:
		v = int64(x)
	case int32:
		v = int64(x)
	case float32:
		v = float64(x)
	}
	return &Value{V: v}
}

// None returns a constant node for the absence of a value.
func None() *Value {
	return &Value{V: nil}
}

// NewSymbol builds a reference to a name.
func NewSymbol(name string) *Symbol {
	return &Symbol{Name: name, Original: name}
}

// Equal returns true if both nodes have the same canonical form.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// IsExpr returns true if the node is an expression, and false if it can only
// be used as a statement.
func IsExpr(node Node) bool {
	switch x := node.(type) {
	case *Def, *For, *While, *Function, *Return, *Break, *Import:
		return false
	case *If:
		return x.Else != nil && IsExpr(x.Then) && IsExpr(x.Else)
	case *Body:
		for _, item := range x.Items {
			if !IsExpr(item) {
				return false
			}
		}
		return true
	}
	return true
}

// IsAtom returns true for constants and symbols.
func IsAtom(node Node) bool {
	switch node.(type) {
	case *Value, *Symbol:
		return true
	}
	return false
}

// IsPure returns true if evaluating the node can't have an effect or bind a
// name. Calls are never pure, because the callee is unknown.
func IsPure(node Node) bool {
	switch x := node.(type) {
	case nil:
		return true
	case *Value, *Symbol:
		return true
	case *Unary:
		return IsPure(x.Item)
	case *Binary:
		return IsPure(x.Left) && IsPure(x.Right)
	case *Compare:
		return IsPure(x.Left) && IsPure(x.Right)
	case *Attribute:
		return IsPure(x.Base)
	case *Subscript:
		return IsPure(x.Base) && IsPure(x.Index)
	case *Slice:
		return IsPure(x.Start) && IsPure(x.Stop)
	case *Vector:
		return allPure(x.Items)
	case *Dict:
		return allPure(x.Keys) && allPure(x.Values)
	case *If:
		return IsPure(x.Test) && IsPure(x.Then) && IsPure(x.Else)
	case *ListFor:
		return IsPure(x.Source) && IsPure(x.Expr) && IsPure(x.Test)
	case *Body:
		return allPure(x.Items)
	}
	return false
}

func allPure(nodes []Node) bool {
	for _, x := range nodes {
		if !IsPure(x) {
			return false
		}
	}
	return true
}

// IsConstant returns true if the node is a constant or a vector of constants.
func IsConstant(node Node) bool {
	switch x := node.(type) {
	case *Value:
		return true
	case *Vector:
		for _, item := range x.Items {
			if !IsConstant(item) {
				return false
			}
		}
		return true
	}
	return false
}

// IsTerminal returns true for the nodes after which nothing else in the same
// body can run.
func IsTerminal(node Node) bool {
	switch node.(type) {
	case *Return, *Break:
		return true
	}
	return false
}

// Int returns the integer of a constant integer node.
func Int(node Node) (int64, bool) {
	if v, ok := node.(*Value); ok {
		i, ok := v.V.(int64)
		return i, ok
	}
	return 0, false
}

// Bool returns the boolean of a constant boolean node.
func Bool(node Node) (bool, bool) {
	if v, ok := node.(*Value); ok {
		b, ok := v.V.(bool)
		return b, ok
	}
	return false, false
}

// Items returns the items of a body, or the node itself as a single item.
func Items(node Node) []Node {
	switch x := node.(type) {
	case nil:
		return []Node{}
	case *Body:
		return x.Items
	}
	return []Node{node}
}

// MakeBody builds a body out of the items. Nested bodies are flattened, pure
// items that aren't last are dropped, and anything that follows a return or a
// break is cut off. A single remaining item is returned as is.
func MakeBody(items ...Node) Node {
	flat := []Node{}
	var add func(Node) bool
	add = func(node Node) bool { // returns true if terminated
		if b, ok := node.(*Body); ok {
			for _, x := range b.Items {
				if add(x) {
					return true
				}
			}
			return false
		}
		flat = append(flat, node)
		return IsTerminal(node)
	}
	for _, x := range items {
		if x == nil {
			continue
		}
		if add(x) {
			break
		}
	}

	result := []Node{}
	for i, x := range flat {
		if i < len(flat)-1 && IsPure(x) {
			continue
		}
		result = append(result, x)
	}
	if len(result) == 1 {
		return result[0]
	}
	return &Body{Items: result}
}

// IsEmpty returns true if the node is an empty body.
func IsEmpty(node Node) bool {
	if node == nil {
		return true
	}
	b, ok := node.(*Body)
	return ok && len(b.Items) == 0
}

// Map returns a copy of the node where each direct child has been replaced by
// the result of fn. Nil children stay nil. The Textarea is preserved.
func Map(node Node, fn func(Node) (Node, error)) (Node, error) {
	f := func(n Node) (Node, error) {
		if n == nil {
			return nil, nil
		}
		return fn(n)
	}
	list := func(nodes []Node) ([]Node, error) {
		if nodes == nil {
			return nil, nil
		}
		out := []Node{}
		for _, x := range nodes {
			y, err := f(x)
			if err != nil {
				return nil, err
			}
			out = append(out, y)
		}
		return out, nil
	}

	switch x := node.(type) {
	case *Value, *Symbol, *Break, *Import:
		return node, nil

	case *Unary:
		item, err := f(x.Item)
		if err != nil {
			return nil, err
		}
		return &Unary{Textarea: x.Textarea, Op: x.Op, Item: item}, nil

	case *Binary:
		left, err := f(x.Left)
		if err != nil {
			return nil, err
		}
		right, err := f(x.Right)
		if err != nil {
			return nil, err
		}
		return &Binary{Textarea: x.Textarea, Op: x.Op, Left: left, Right: right}, nil

	case *Compare:
		left, err := f(x.Left)
		if err != nil {
			return nil, err
		}
		right, err := f(x.Right)
		if err != nil {
			return nil, err
		}
		return &Compare{Textarea: x.Textarea, Op: x.Op, Left: left, Right: right}, nil

	case *Call:
		fun, err := f(x.Func)
		if err != nil {
			return nil, err
		}
		args, err := list(x.Args)
		if err != nil {
			return nil, err
		}
		return &Call{Textarea: x.Textarea, Func: fun, Args: args}, nil

	case *Attribute:
		base, err := f(x.Base)
		if err != nil {
			return nil, err
		}
		return &Attribute{Textarea: x.Textarea, Base: base, Attr: x.Attr}, nil

	case *Subscript:
		base, err := f(x.Base)
		if err != nil {
			return nil, err
		}
		index, err := f(x.Index)
		if err != nil {
			return nil, err
		}
		return &Subscript{Textarea: x.Textarea, Base: base, Index: index}, nil

	case *Slice:
		start, err := f(x.Start)
		if err != nil {
			return nil, err
		}
		stop, err := f(x.Stop)
		if err != nil {
			return nil, err
		}
		return &Slice{Textarea: x.Textarea, Start: start, Stop: stop}, nil

	case *Vector:
		items, err := list(x.Items)
		if err != nil {
			return nil, err
		}
		return &Vector{Textarea: x.Textarea, Items: items}, nil

	case *Dict:
		keys, err := list(x.Keys)
		if err != nil {
			return nil, err
		}
		values, err := list(x.Values)
		if err != nil {
			return nil, err
		}
		return &Dict{Textarea: x.Textarea, Keys: keys, Values: values}, nil

	case *If:
		test, err := f(x.Test)
		if err != nil {
			return nil, err
		}
		th, err := f(x.Then)
		if err != nil {
			return nil, err
		}
		el, err := f(x.Else)
		if err != nil {
			return nil, err
		}
		return &If{Textarea: x.Textarea, Test: test, Then: th, Else: el}, nil

	case *For:
		source, err := f(x.Source)
		if err != nil {
			return nil, err
		}
		body, err := f(x.Body)
		if err != nil {
			return nil, err
		}
		return &For{Textarea: x.Textarea, Target: x.Target, Source: source, Body: body}, nil

	case *ListFor:
		source, err := f(x.Source)
		if err != nil {
			return nil, err
		}
		expr, err := f(x.Expr)
		if err != nil {
			return nil, err
		}
		test, err := f(x.Test)
		if err != nil {
			return nil, err
		}
		return &ListFor{Textarea: x.Textarea, Target: x.Target, Source: source, Expr: expr, Test: test}, nil

	case *While:
		test, err := f(x.Test)
		if err != nil {
			return nil, err
		}
		body, err := f(x.Body)
		if err != nil {
			return nil, err
		}
		return &While{Textarea: x.Textarea, Test: test, Body: body}, nil

	case *Let:
		source, err := f(x.Source)
		if err != nil {
			return nil, err
		}
		body, err := f(x.Body)
		if err != nil {
			return nil, err
		}
		return &Let{Textarea: x.Textarea, Target: x.Target, Source: source, Body: body}, nil

	case *Def:
		value, err := f(x.Value)
		if err != nil {
			return nil, err
		}
		return &Def{Textarea: x.Textarea, Name: x.Name, Value: value}, nil

	case *Function:
		body, err := f(x.Body)
		if err != nil {
			return nil, err
		}
		params := append([]string{}, x.Params...)
		return &Function{Textarea: x.Textarea, Name: x.Name, Params: params, Body: body}, nil

	case *Return:
		value, err := f(x.Value)
		if err != nil {
			return nil, err
		}
		return &Return{Textarea: x.Textarea, Value: value}, nil

	case *Sample:
		dist, err := f(x.Dist)
		if err != nil {
			return nil, err
		}
		size, err := f(x.Size)
		if err != nil {
			return nil, err
		}
		return &Sample{Textarea: x.Textarea, Dist: dist, Size: size}, nil

	case *Observe:
		dist, err := f(x.Dist)
		if err != nil {
			return nil, err
		}
		value, err := f(x.Value)
		if err != nil {
			return nil, err
		}
		return &Observe{Textarea: x.Textarea, Dist: dist, Value: value}, nil

	case *Body:
		items, err := list(x.Items)
		if err != nil {
			return nil, err
		}
		return &Body{Textarea: x.Textarea, Items: items}, nil
	}

	return nil, fmt.Errorf("unknown node kind: %T", node)
}

// Rename returns a copy of the node where every binding and reference of a
// name found in the mapping is renamed. Names that are not in the mapping are
// left alone.
func Rename(node Node, mapping map[string]string) (Node, error) {
	name := func(s string) string {
		if r, exists := mapping[s]; exists {
			return r
		}
		return s
	}
	var fn func(Node) (Node, error)
	fn = func(n Node) (Node, error) {
		switch x := n.(type) {
		case *Symbol:
			if r, exists := mapping[x.Name]; exists {
				return &Symbol{Textarea: x.Textarea, Name: r, Original: x.Original, Graph: x.Graph}, nil
			}
			return x, nil
		case *Function:
			// parameters are renamed along with the name
			out, err := Map(x, fn)
			if err != nil {
				return nil, err
			}
			f := out.(*Function)
			for i, p := range f.Params {
				f.Params[i] = name(p)
			}
			f.Name = name(f.Name)
			return f, nil
		}
		out, err := Map(n, fn)
		if err != nil {
			return nil, err
		}
		switch x := out.(type) {
		case *Def:
			x.Name = name(x.Name)
		case *For:
			x.Target = name(x.Target)
		case *ListFor:
			x.Target = name(x.Target)
		case *Let:
			x.Target = name(x.Target)
		}
		return out, nil
	}
	return fn(node)
}

// Bound returns the names bound anywhere inside the node, in the order that
// they are first found. Nested function definitions are included by name, but
// their parameters and contents are not.
func Bound(node Node) []string {
	names := []string{}
	seen := make(map[string]struct{})
	add := func(s string) {
		if _, exists := seen[s]; exists {
			return
		}
		seen[s] = struct{}{}
		names = append(names, s)
	}
	var walk func(Node)
	walk = func(n Node) {
		switch x := n.(type) {
		case nil:
			return
		case *Function:
			add(x.Name)
			return
		case *Def:
			add(x.Name)
		case *For:
			add(x.Target)
		case *ListFor:
			add(x.Target)
		case *Let:
			add(x.Target)
		}
		_, _ = Map(n, func(c Node) (Node, error) {
			walk(c)
			return c, nil
		})
	}
	walk(node)
	return names
}

// Uses counts the references to each name inside the node.
func Uses(node Node) map[string]int {
	uses := make(map[string]int)
	_ = node.Apply(func(n Node) error {
		if s, ok := n.(*Symbol); ok {
			uses[s.Name]++
		}
		return nil
	})
	return uses
}
