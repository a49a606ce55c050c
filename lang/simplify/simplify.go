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

// Package simplify folds constants, drops dead branches and factors parallel
// branches of a program. It can run both before and after the ssa pass.
package simplify

import (
	"fmt"

	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/util/errwrap"
)

// MaxPasses is the maximum number of passes that Simplify runs while looking
// for a fixed point.
const MaxPasses = 16

// Simplify runs the simplifier over the program until it stops changing, so
// that running it again on its own output changes nothing. The data can be nil
// if no logging is wanted.
func Simplify(data *interfaces.Data, node ast.Node) (ast.Node, error) {
	before := node.String()
	for i := 0; i < MaxPasses; i++ {
		obj := &Simplifier{
			data:       data,
			candidates: candidates(node),
		}
		out, err := obj.stmt(node)
		if err != nil {
			return nil, err
		}
		after := out.String()
		if after == before {
			obj.logf("fixed point after %d passes", i+1)
			return out, nil
		}
		node, before = out, after
	}
	return nil, fmt.Errorf("simplify: no fixed point after %d passes", MaxPasses)
}

// Expr folds the constants of a single expression. It doesn't know about any
// bindings, so it never propagates anything.
func Expr(node ast.Node) (ast.Node, error) {
	obj := &Simplifier{
		candidates: make(map[string]ast.Node),
	}
	return obj.node(node)
}

// Simplifier holds the state of a single pass.
type Simplifier struct {
	data *interfaces.Data

	// candidates are the names which get replaced by their value, and
	// whose definitions get removed.
	candidates map[string]ast.Node
}

func (obj *Simplifier) logf(format string, v ...interface{}) {
	if obj.data != nil && obj.data.Debug && obj.data.Logf != nil {
		obj.data.Logf("simplify: "+format, v...)
	}
}

// stmt simplifies a node in statement position.
func (obj *Simplifier) stmt(node ast.Node) (ast.Node, error) {
	switch x := node.(type) {
	case *ast.Body:
		items := []ast.Node{}
		for _, item := range x.Items {
			out, err := obj.stmt(item)
			if err != nil {
				return nil, err
			}
			items = append(items, out)
		}
		return ast.MakeBody(items...), nil

	case *ast.If:
		return obj.ifNode(x, false)
	}
	return obj.node(node)
}

// node simplifies a node in value position, bottom up. Nested blocks are
// simplified in statement position.
func (obj *Simplifier) node(node ast.Node) (ast.Node, error) {
	switch x := node.(type) {
	case *ast.Symbol:
		if value, exists := obj.resolve(x.Name); exists {
			return value, nil
		}
		return x, nil

	case *ast.Def:
		if _, exists := obj.candidates[x.Name]; exists {
			obj.logf("propagated `%s`", x.Name)
			return &ast.Body{Items: []ast.Node{}}, nil
		}

	case *ast.Body:
		if len(x.Items) == 0 {
			return x, nil
		}
		items := []ast.Node{}
		for i, item := range x.Items {
			f := obj.stmt
			if i == len(x.Items)-1 {
				f = obj.node
			}
			out, err := f(item)
			if err != nil {
				return nil, err
			}
			items = append(items, out)
		}
		return ast.MakeBody(items...), nil

	case *ast.If:
		return obj.ifNode(x, true)

	case *ast.For:
		source, err := obj.node(x.Source)
		if err != nil {
			return nil, err
		}
		body, err := obj.stmt(x.Body)
		if err != nil {
			return nil, err
		}
		return &ast.For{Textarea: x.Textarea, Target: x.Target, Source: source, Body: body}, nil

	case *ast.While:
		test, err := obj.node(x.Test)
		if err != nil {
			return nil, err
		}
		body, err := obj.stmt(x.Body)
		if err != nil {
			return nil, err
		}
		return &ast.While{Textarea: x.Textarea, Test: test, Body: body}, nil

	case *ast.Let:
		source, err := obj.node(x.Source)
		if err != nil {
			return nil, err
		}
		body, err := obj.stmt(x.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Let{Textarea: x.Textarea, Target: x.Target, Source: source, Body: body}, nil

	case *ast.Function:
		body, err := obj.stmt(x.Body)
		if err != nil {
			return nil, err
		}
		params := append([]string{}, x.Params...)
		return &ast.Function{Textarea: x.Textarea, Name: x.Name, Params: params, Body: body}, nil
	}

	out, err := ast.Map(node, obj.node)
	if err != nil {
		return nil, err
	}
	return obj.fold(out)
}

// resolve follows a chain of propagated names. A chain that loops back onto
// itself isn't propagated at all.
func (obj *Simplifier) resolve(name string) (ast.Node, bool) {
	seen := map[string]struct{}{}
	value, exists := obj.candidates[name]
	if !exists {
		return nil, false
	}
	for {
		seen[name] = struct{}{}
		sym, ok := value.(*ast.Symbol)
		if !ok {
			return value, true
		}
		next, exists := obj.candidates[sym.Name]
		if !exists {
			return value, true
		}
		if _, loop := seen[sym.Name]; loop {
			return nil, false
		}
		name, value = sym.Name, next
	}
}

// candidates finds every name that is bound exactly once, outside of any loop
// or function, to a constant or to another such name.
func candidates(node ast.Node) map[string]ast.Node {
	defs := make(map[string]int)
	values := make(map[string]ast.Node)
	blocked := make(map[string]struct{})

	var walk func(ast.Node, bool)
	walk = func(n ast.Node, nested bool) {
		switch x := n.(type) {
		case nil:
			return
		case *ast.Def:
			defs[x.Name]++
			values[x.Name] = x.Value
			if nested {
				blocked[x.Name] = struct{}{}
			}
		case *ast.For:
			blocked[x.Target] = struct{}{}
			walk(x.Source, nested)
			walk(x.Body, true)
			return
		case *ast.While:
			walk(x.Test, true)
			walk(x.Body, true)
			return
		case *ast.ListFor:
			blocked[x.Target] = struct{}{}
			walk(x.Source, nested)
			walk(x.Expr, true)
			walk(x.Test, true)
			return
		case *ast.Let:
			blocked[x.Target] = struct{}{}
		case *ast.Function:
			blocked[x.Name] = struct{}{}
			for _, p := range x.Params {
				blocked[p] = struct{}{}
			}
			walk(x.Body, true)
			return
		case *ast.Import:
			blocked[x.Module] = struct{}{}
			for _, name := range x.Names {
				blocked[name] = struct{}{}
			}
		}
		_, _ = ast.Map(n, func(c ast.Node) (ast.Node, error) {
			walk(c, nested)
			return c, nil
		})
	}
	walk(node, false)

	result := make(map[string]ast.Node)
	for name, count := range defs {
		if _, exists := blocked[name]; exists || count != 1 {
			continue
		}
		value := values[name]
		if ast.IsConstant(value) {
			result[name] = value
			continue
		}
		sym, ok := value.(*ast.Symbol)
		if !ok || sym.Graph || sym.Name == name {
			continue
		}
		if _, exists := blocked[sym.Name]; exists || defs[sym.Name] > 1 {
			continue // the alias target could change under us
		}
		result[name] = sym
	}
	return result
}

// ifNode simplifies a conditional, both in statement and in value position.
func (obj *Simplifier) ifNode(x *ast.If, expr bool) (ast.Node, error) {
	test, err := obj.node(x.Test)
	if err != nil {
		return nil, err
	}

	if v, ok := test.(*ast.Value); ok {
		b, ok := v.V.(bool)
		if !ok {
			return nil, errwrap.Wrapf(interfaces.ErrShape, "if test `%s` at line %d is not a boolean", v, x.Pos())
		}
		arm := obj.stmt
		if expr {
			arm = obj.node
		}
		if b {
			return arm(x.Then)
		}
		if x.Else == nil {
			return &ast.Body{Items: []ast.Node{}}, nil
		}
		return arm(x.Else)
	}

	arm := obj.stmt
	if expr {
		arm = obj.node
	}
	th, err := arm(x.Then)
	if err != nil {
		return nil, err
	}
	var el ast.Node
	if x.Else != nil {
		if el, err = arm(x.Else); err != nil {
			return nil, err
		}
		if !expr && ast.IsEmpty(el) {
			el = nil
		}
	}

	if ast.IsPure(test) {
		if !expr && ast.IsEmpty(th) && el == nil {
			return &ast.Body{Items: []ast.Node{}}, nil
		}
		if el != nil && ast.Equal(th, el) {
			obj.logf("if at line %d has equal arms", x.Pos())
			return th, nil
		}
		if !expr && el != nil {
			if out, ok := factor(test, th, el); ok {
				obj.logf("factored if at line %d", x.Pos())
				return out, nil
			}
		}
	}

	return &ast.If{Textarea: x.Textarea, Test: test, Then: th, Else: el}, nil
}

// factor merges two parallel arms of an if statement into one sequence that
// runs unconditionally. Each pair of items must be factorable on its own.
func factor(test, a, b ast.Node) (ast.Node, bool) {
	ai, bi := ast.Items(a), ast.Items(b)
	if len(ai) != len(bi) || len(ai) == 0 {
		return nil, false
	}
	out := []ast.Node{}
	for i := range ai {
		item, ok := factorItem(test, ai[i], bi[i])
		if !ok {
			return nil, false
		}
		out = append(out, item)
	}
	return ast.MakeBody(out...), true
}

// factorItem merges two parallel statements. Two observes of the same
// distribution become one observe of a conditional value. Two calls of the
// same function become one call with conditional arguments. Two definitions of
// the same name become one conditional definition. Distribution constructors
// of different sample or observe sites are never merged, since each of them is
// its own random variable.
func factorItem(test, a, b ast.Node) (ast.Node, bool) {
	if ast.Equal(a, b) {
		return a, true
	}
	switch x := a.(type) {
	case *ast.Observe:
		y, ok := b.(*ast.Observe)
		if !ok || !ast.Equal(x.Dist, y.Dist) {
			return nil, false
		}
		value, ok := factorExpr(test, x.Value, y.Value)
		if !ok {
			return nil, false
		}
		return &ast.Observe{Textarea: x.Textarea, Dist: x.Dist, Value: value}, true

	case *ast.Def:
		y, ok := b.(*ast.Def)
		if !ok || x.Name != y.Name {
			return nil, false
		}
		value, ok := factorExpr(test, x.Value, y.Value)
		if !ok {
			return nil, false
		}
		return &ast.Def{Textarea: x.Textarea, Name: x.Name, Value: value}, true

	case *ast.Call:
		return factorExpr(test, a, b)
	}
	return nil, false
}

// factorExpr merges two parallel expressions.
func factorExpr(test, a, b ast.Node) (ast.Node, bool) {
	if ast.Equal(a, b) {
		return a, true
	}
	if ast.IsPure(a) && ast.IsPure(b) {
		return &ast.If{Textarea: ast.Textarea{Line: a.Pos()}, Test: test, Then: a, Else: b}, true
	}
	x, ok := a.(*ast.Call)
	if !ok {
		return nil, false
	}
	y, ok := b.(*ast.Call)
	if !ok || !ast.Equal(x.Func, y.Func) || len(x.Args) != len(y.Args) {
		return nil, false
	}
	args := []ast.Node{}
	for i := range x.Args {
		arg, ok := factorExpr(test, x.Args[i], y.Args[i])
		if !ok {
			return nil, false
		}
		args = append(args, arg)
	}
	return &ast.Call{Textarea: x.Textarea, Func: x.Func, Args: args}, true
}
