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

	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/simplify"
	"github.com/purpleidea/probgraph/util/errwrap"
)

// Runtime is the numeric backend that a model is run against. It is the only
// place where distribution math happens.
type Runtime interface {
	// Sample draws from a distribution. A size of zero means one draw.
	Sample(family string, args []interface{}, size int) (interface{}, error)

	// LogDensity returns the log density of a value under a distribution.
	LogDensity(family string, args []interface{}, value interface{}) (float64, error)

	// Call runs a builtin function which the compiler kept opaque.
	Call(name string, args []interface{}) (interface{}, error)
}

// Eval evaluates a lowered expression. Graph symbols are looked up in the
// state, and calls that can't be folded are handed to the runtime. The result
// is one of nil, bool, int64, float64, string or []interface{}.
func Eval(node ast.Node, state map[string]interface{}, runtime Runtime) (interface{}, error) {
	obj := &evaluator{
		state:   state,
		runtime: runtime,
	}
	out, err := obj.eval(node)
	if err != nil {
		return nil, err
	}
	return FromNode(out)
}

type evaluator struct {
	state   map[string]interface{}
	runtime Runtime
}

func (obj *evaluator) eval(node ast.Node) (ast.Node, error) {
	switch x := node.(type) {
	case *ast.Value:
		return x, nil

	case *ast.Symbol:
		v, exists := obj.state[x.Name]
		if !exists {
			return nil, fmt.Errorf("`%s` has no value in the state", x.Name)
		}
		return ToNode(v)

	case *ast.Attribute:
		base, ok := x.Base.(*ast.Symbol)
		if !ok {
			break
		}
		if _, exists := obj.state[base.Name]; exists {
			break
		}
		// a module constant such as math.pi
		return obj.call(&ast.Call{Textarea: x.Textarea, Func: &ast.Symbol{Name: base.Name + "." + x.Attr}})

	case *ast.If:
		test, err := obj.eval(x.Test)
		if err != nil {
			return nil, err
		}
		b, ok := ast.Bool(test)
		if !ok {
			return nil, fmt.Errorf("test `%s` is not a boolean", test)
		}
		if b {
			return obj.eval(x.Then)
		}
		if x.Else == nil {
			return ast.None(), nil
		}
		return obj.eval(x.Else)

	case *ast.Call:
		args := []ast.Node{}
		for _, a := range x.Args {
			v, err := obj.eval(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		call := &ast.Call{Textarea: x.Textarea, Func: x.Func, Args: args}
		folded, err := simplify.Expr(call)
		if err != nil {
			return nil, err
		}
		if ast.IsConstant(folded) {
			return folded, nil
		}
		return obj.call(call)
	}

	out, err := ast.Map(node, obj.eval)
	if err != nil {
		return nil, err
	}
	if _, ok := out.(*ast.Slice); ok {
		return out, nil // folded by the enclosing subscript
	}
	folded, err := simplify.Expr(out)
	if err != nil {
		return nil, err
	}
	if !ast.IsConstant(folded) {
		return nil, fmt.Errorf("`%s` can't be evaluated", folded)
	}
	return folded, nil
}

func (obj *evaluator) call(x *ast.Call) (ast.Node, error) {
	if obj.runtime == nil {
		return nil, fmt.Errorf("no runtime for call to `%s`", x.Name())
	}
	args := []interface{}{}
	for _, a := range x.Args {
		v, err := FromNode(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	v, err := obj.runtime.Call(x.Name(), args)
	if err != nil {
		return nil, errwrap.Wrapf(err, "call to `%s` failed", x.Name())
	}
	return ToNode(v)
}

// ToNode converts a runtime value into a constant node.
func ToNode(v interface{}) (ast.Node, error) {
	switch x := v.(type) {
	case nil, bool, int, int64, float64, string:
		return ast.NewValue(x), nil
	case float32:
		return ast.NewValue(float64(x)), nil
	case []float64:
		items := []ast.Node{}
		for _, f := range x {
			items = append(items, ast.NewValue(f))
		}
		return &ast.Vector{Items: items}, nil
	case []int64:
		items := []ast.Node{}
		for _, i := range x {
			items = append(items, ast.NewValue(i))
		}
		return &ast.Vector{Items: items}, nil
	case []interface{}:
		items := []ast.Node{}
		for _, item := range x {
			n, err := ToNode(item)
			if err != nil {
				return nil, err
			}
			items = append(items, n)
		}
		return &ast.Vector{Items: items}, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

// FromNode converts a constant node into a runtime value.
func FromNode(node ast.Node) (interface{}, error) {
	switch x := node.(type) {
	case *ast.Value:
		return x.V, nil
	case *ast.Vector:
		items := []interface{}{}
		for _, item := range x.Items {
			v, err := FromNode(item)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	}
	return nil, fmt.Errorf("`%s` is not a constant", node)
}
