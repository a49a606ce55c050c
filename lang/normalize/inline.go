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

package normalize

import (
	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/util/errwrap"
)

// inline replaces a call to a known function by the function body. Parameters
// are bound to the compiled arguments, and every local name of the body gets a
// fresh name so that it can't capture or clobber a name at the call site.
func (obj *Normalizer) inline(call *ast.Call, fn *ast.Function) ([]ast.Node, ast.Node, error) {
	if obj.depth >= obj.maxDepth() {
		return nil, nil, errwrap.Wrapf(interfaces.ErrRecursiveInline, "function `%s` at line %d exceeds the inline depth of %d", fn.Name, call.Pos(), obj.maxDepth())
	}
	if len(call.Args) != len(fn.Params) {
		return nil, nil, errwrap.Wrapf(interfaces.ErrArity, "function `%s` at line %d takes %d arguments but %d were given", fn.Name, call.Pos(), len(fn.Params), len(call.Args))
	}

	prefix, args, err := obj.operands(call.Args)
	if err != nil {
		return nil, nil, err
	}

	mapping := make(map[string]string)
	for _, name := range append(append([]string{}, fn.Params...), ast.Bound(fn.Body)...) {
		if _, exists := mapping[name]; !exists {
			mapping[name] = obj.data.Session.Rename(name)
		}
	}
	body, err := ast.Rename(fn.Body, mapping)
	if err != nil {
		return nil, nil, errwrap.Wrapf(err, "normalize: could not rename `%s`", fn.Name)
	}
	obj.logf("inlining `%s` at line %d with depth %d", fn.Name, call.Pos(), obj.depth)

	items := ast.Items(ast.MakeBody(body))
	var result ast.Node
	if n := len(items); n > 0 && isTailReturn(items) {
		result = items[n-1].(*ast.Return).Value
		items = items[:n-1]
	} else {
		tmp := obj.data.Session.TempName()
		items = returns(items, tmp)
		result = &ast.Symbol{Textarea: call.Textarea, Name: tmp, Original: tmp}
	}
	if result == nil {
		result = ast.None()
	}

	obj.depth++
	obj.scope.Enter()
	for i, p := range fn.Params {
		name := mapping[p]
		obj.scope.Define(name, nil)
		prefix = append(prefix, &ast.Def{Textarea: call.Textarea, Name: name, Value: args[i]})
	}
	for _, item := range items {
		s, err := obj.stmt(item)
		if err != nil {
			return nil, nil, err
		}
		prefix = append(prefix, s...)
	}
	p, value, err := obj.expr(result)
	if err != nil {
		return nil, nil, err
	}
	if err := obj.leave(); err != nil {
		return nil, nil, err
	}
	obj.depth--

	return append(prefix, p...), value, nil
}

// isTailReturn returns true if the only return in the items is the last one.
func isTailReturn(items []ast.Node) bool {
	n := len(items)
	if _, ok := items[n-1].(*ast.Return); !ok {
		return false
	}
	for _, x := range items[:n-1] {
		if hasReturn(x) {
			return false
		}
	}
	return true
}

// hasReturn looks for a return that would leave the function from this node.
// Returns nested inside loops aren't supported, and are not found here.
func hasReturn(node ast.Node) bool {
	switch x := node.(type) {
	case *ast.Return:
		return true
	case *ast.If:
		return hasReturn(x.Then) || (x.Else != nil && hasReturn(x.Else))
	case *ast.Body:
		for _, item := range x.Items {
			if hasReturn(item) {
				return true
			}
		}
	}
	return false
}

// returns rewrites a function body so that every path through it assigns the
// returned value to tmp instead of returning. If an arm of an if returns, the
// code that follows the if is moved into the other arm, so that it only runs on
// the paths which didn't return. A path that falls off the end assigns None.
func returns(items []ast.Node, tmp string) []ast.Node {
	out := []ast.Node{}
	for i, item := range items {
		switch x := item.(type) {
		case *ast.Return:
			var value ast.Node = ast.None()
			if x.Value != nil {
				value = x.Value
			}
			return append(out, &ast.Def{Textarea: x.Textarea, Name: tmp, Value: value})

		case *ast.If:
			if !hasReturn(x) {
				break
			}
			rest := items[i+1:]
			th := returns(join(ast.Items(x.Then), rest), tmp)
			el := returns(join(ast.Items(x.Else), rest), tmp)
			return append(out, &ast.If{
				Textarea: x.Textarea,
				Test:     x.Test,
				Then:     ast.MakeBody(th...),
				Else:     ast.MakeBody(el...),
			})
		}
		out = append(out, item)
	}
	return append(out, &ast.Def{Name: tmp, Value: ast.None()})
}

func join(a, b []ast.Node) []ast.Node {
	out := make([]ast.Node, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
