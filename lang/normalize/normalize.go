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

// Package normalize rewrites a program into administrative normal form, where
// every call, sample and observe that isn't in tail position is bound to its
// own name first. Calls to functions that are known statically are inlined.
package normalize

import (
	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/lang/simplify"
	"github.com/purpleidea/probgraph/util/errwrap"
)

// Normalize runs the normalizer over a whole program and returns the new one.
func Normalize(data *interfaces.Data, node ast.Node) (ast.Node, error) {
	obj := &Normalizer{
		data:  data,
		scope: interfaces.NewScope(),
	}
	return obj.Run(node)
}

// Normalizer holds the state of one normalization. The scope maps each name to
// the function it is bound to, or to nil if it is bound to anything else.
type Normalizer struct {
	data  *interfaces.Data
	scope *interfaces.Scope
	depth int
}

// Run normalizes the program.
func (obj *Normalizer) Run(node ast.Node) (ast.Node, error) {
	if obj.data == nil || obj.data.Session == nil {
		return nil, errwrap.Wrapf(interfaces.ErrScopeDiscipline, "normalize: missing session")
	}
	obj.data.Session.ReserveSource(node)
	stmts, err := obj.stmt(node)
	if err != nil {
		return nil, err
	}
	if d := obj.scope.Depth(); d != 0 {
		return nil, errwrap.Wrapf(interfaces.ErrScopeDiscipline, "normalize: %d scopes left open", d)
	}
	return ast.MakeBody(stmts...), nil
}

func (obj *Normalizer) logf(format string, v ...interface{}) {
	if obj.data.Debug && obj.data.Logf != nil {
		obj.data.Logf("normalize: "+format, v...)
	}
}

func (obj *Normalizer) maxDepth() int {
	if obj.data.MaxInlineDepth > 0 {
		return obj.data.MaxInlineDepth
	}
	return interfaces.DefaultMaxInlineDepth
}

// leave is Leave with the error wrapped for this pass.
func (obj *Normalizer) leave() error {
	if err := obj.scope.Leave(); err != nil {
		return errwrap.Wrapf(err, "normalize")
	}
	return nil
}

// stmt compiles a node in statement position.
func (obj *Normalizer) stmt(node ast.Node) ([]ast.Node, error) {
	switch x := node.(type) {
	case *ast.Body:
		stmts := []ast.Node{}
		for _, item := range x.Items {
			s, err := obj.stmt(item)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s...)
		}
		return stmts, nil

	case *ast.Function:
		obj.logf("function `%s` registered for inlining", x.Name)
		obj.scope.Define(x.Name, x)
		return []ast.Node{}, nil

	case *ast.Def:
		if fn := obj.function(x.Value); fn != nil { // alias of a function
			obj.scope.Define(x.Name, fn)
			return []ast.Node{}, nil
		}
		prefix, value, err := obj.expr(x.Value)
		if err != nil {
			return nil, err
		}
		obj.scope.Define(x.Name, nil)
		return append(prefix, &ast.Def{Textarea: x.Textarea, Name: x.Name, Value: value}), nil

	case *ast.If:
		prefix, test, err := obj.operand(x.Test)
		if err != nil {
			return nil, err
		}
		th, err := obj.arm(x.Then)
		if err != nil {
			return nil, err
		}
		var el ast.Node
		if x.Else != nil {
			if el, err = obj.arm(x.Else); err != nil {
				return nil, err
			}
		}
		return append(prefix, &ast.If{Textarea: x.Textarea, Test: test, Then: th, Else: el}), nil

	case *ast.For:
		prefix, source, err := obj.operand(x.Source)
		if err != nil {
			return nil, err
		}
		obj.scope.Enter()
		obj.scope.Define(x.Target, nil)
		body, err := obj.stmt(x.Body)
		if err != nil {
			return nil, err
		}
		if err := obj.leave(); err != nil {
			return nil, err
		}
		loop := &ast.For{Textarea: x.Textarea, Target: x.Target, Source: source, Body: ast.MakeBody(body...)}
		return append(prefix, loop), nil

	case *ast.While:
		prefix, test, err := obj.operand(x.Test)
		if err != nil {
			return nil, err
		}
		body, err := obj.arm(x.Body)
		if err != nil {
			return nil, err
		}
		return append(prefix, &ast.While{Textarea: x.Textarea, Test: test, Body: body}), nil

	case *ast.Let:
		prefix, source, err := obj.operand(x.Source)
		if err != nil {
			return nil, err
		}
		obj.scope.Define(x.Target, nil)
		body, err := obj.stmt(x.Body)
		if err != nil {
			return nil, err
		}
		let := &ast.Let{Textarea: x.Textarea, Target: x.Target, Source: source, Body: ast.MakeBody(body...)}
		return append(prefix, let), nil

	case *ast.Return:
		if x.Value == nil {
			return []ast.Node{x}, nil
		}
		prefix, value, err := obj.expr(x.Value)
		if err != nil {
			return nil, err
		}
		return append(prefix, &ast.Return{Textarea: x.Textarea, Value: value}), nil

	case *ast.Import:
		for _, name := range importNames(x) {
			obj.scope.Define(name, nil)
		}
		return []ast.Node{x}, nil

	case *ast.Break:
		return []ast.Node{x}, nil
	}

	prefix, value, err := obj.expr(node)
	if err != nil {
		return nil, err
	}
	return append(prefix, value), nil
}

// arm compiles a nested block in its own scope, so that functions defined in
// it are forgotten afterwards.
func (obj *Normalizer) arm(node ast.Node) (ast.Node, error) {
	obj.scope.Enter()
	stmts, err := obj.stmt(node)
	if err != nil {
		return nil, err
	}
	if err := obj.leave(); err != nil {
		return nil, err
	}
	return ast.MakeBody(stmts...), nil
}

// expr compiles a node in value position. It returns the statements that must
// run first, and the resulting expression. The expression can have an effect
// at its top, but never below it.
func (obj *Normalizer) expr(node ast.Node) ([]ast.Node, ast.Node, error) {
	switch x := node.(type) {
	case *ast.Value, *ast.Symbol, *ast.Function:
		return []ast.Node{}, node, nil

	case *ast.Call:
		return obj.call(x)

	case *ast.Sample:
		prefix, dist, err := obj.dist(x.Dist)
		if err != nil {
			return nil, nil, err
		}
		var size ast.Node
		if x.Size != nil {
			p, s, err := obj.operand(x.Size)
			if err != nil {
				return nil, nil, err
			}
			prefix, size = append(prefix, p...), s
		}
		return prefix, &ast.Sample{Textarea: x.Textarea, Dist: dist, Size: size}, nil

	case *ast.Observe:
		prefix, dist, err := obj.dist(x.Dist)
		if err != nil {
			return nil, nil, err
		}
		p, value, err := obj.operand(x.Value)
		if err != nil {
			return nil, nil, err
		}
		return append(prefix, p...), &ast.Observe{Textarea: x.Textarea, Dist: dist, Value: value}, nil

	case *ast.If:
		return obj.ifExpr(x)

	case *ast.ListFor:
		prefix, source, err := obj.operand(x.Source)
		if err != nil {
			return nil, nil, err
		}
		obj.scope.Enter()
		obj.scope.Define(x.Target, nil)
		// per item effects must stay inside the comprehension
		ep, e, err := obj.expr(x.Expr)
		if err != nil {
			return nil, nil, err
		}
		var test ast.Node
		if x.Test != nil {
			tp, t, err := obj.expr(x.Test)
			if err != nil {
				return nil, nil, err
			}
			test = ast.MakeBody(append(tp, t)...)
		}
		if err := obj.leave(); err != nil {
			return nil, nil, err
		}
		lf := &ast.ListFor{
			Textarea: x.Textarea,
			Target:   x.Target,
			Source:   source,
			Expr:     ast.MakeBody(append(ep, e)...),
			Test:     test,
		}
		return prefix, lf, nil

	case *ast.Body:
		if len(x.Items) == 0 {
			return []ast.Node{}, ast.None(), nil
		}
		prefix := []ast.Node{}
		for _, item := range x.Items[:len(x.Items)-1] {
			s, err := obj.stmt(item)
			if err != nil {
				return nil, nil, err
			}
			prefix = append(prefix, s...)
		}
		p, value, err := obj.expr(x.Items[len(x.Items)-1])
		if err != nil {
			return nil, nil, err
		}
		return append(prefix, p...), value, nil

	case *ast.Let:
		prefix, source, err := obj.operand(x.Source)
		if err != nil {
			return nil, nil, err
		}
		obj.scope.Define(x.Target, nil)
		bp, value, err := obj.expr(x.Body)
		if err != nil {
			return nil, nil, err
		}
		let := &ast.Let{Textarea: x.Textarea, Target: x.Target, Source: source, Body: ast.MakeBody(bp...)}
		return append(prefix, let), value, nil

	case *ast.Def, *ast.For, *ast.While, *ast.Return, *ast.Break, *ast.Import:
		stmts, err := obj.stmt(node)
		if err != nil {
			return nil, nil, err
		}
		return stmts, ast.None(), nil
	}

	// the remaining kinds only need their children to be operands
	prefix := []ast.Node{}
	out, err := ast.Map(node, func(child ast.Node) (ast.Node, error) {
		p, c, err := obj.operand(child)
		if err != nil {
			return nil, err
		}
		prefix = append(prefix, p...)
		return c, nil
	})
	if err != nil {
		return nil, nil, errwrap.Wrapf(err, "normalize")
	}
	return prefix, out, nil
}

// operand compiles a node that is used inside of another one. Anything with an
// effect is bound to a fresh temporary, and the temporary is returned instead.
func (obj *Normalizer) operand(node ast.Node) ([]ast.Node, ast.Node, error) {
	prefix, value, err := obj.expr(node)
	if err != nil {
		return nil, nil, err
	}
	if ast.IsPure(value) {
		return prefix, value, nil
	}
	// a builtin call that folds to a constant, eg: range(3), has no effect
	if folded, err := simplify.Expr(value); err == nil && ast.IsConstant(folded) {
		return prefix, value, nil
	}
	tmp := obj.data.Session.TempName()
	def := &ast.Def{Textarea: ast.Textarea{Line: node.Pos()}, Name: tmp, Value: value}
	sym := &ast.Symbol{Textarea: def.Textarea, Name: tmp, Original: tmp}
	return append(prefix, def), sym, nil
}

// dist compiles the distribution of a sample or an observe. A constructor call
// stays in place, since it is part of the effect, and only its arguments are
// turned into operands.
func (obj *Normalizer) dist(node ast.Node) ([]ast.Node, ast.Node, error) {
	call, ok := node.(*ast.Call)
	if !ok || obj.function(call.Func) != nil {
		return obj.operand(node)
	}
	prefix, args, err := obj.operands(call.Args)
	if err != nil {
		return nil, nil, err
	}
	return prefix, &ast.Call{Textarea: call.Textarea, Func: call.Func, Args: args}, nil
}

func (obj *Normalizer) operands(nodes []ast.Node) ([]ast.Node, []ast.Node, error) {
	prefix := []ast.Node{}
	out := []ast.Node{}
	for _, x := range nodes {
		p, a, err := obj.operand(x)
		if err != nil {
			return nil, nil, err
		}
		prefix = append(prefix, p...)
		out = append(out, a)
	}
	return prefix, out, nil
}

// function returns the function that the node refers to statically, or nil.
func (obj *Normalizer) function(node ast.Node) *ast.Function {
	switch x := node.(type) {
	case *ast.Function:
		return x
	case *ast.Symbol:
		if v, exists := obj.scope.Resolve(x.Name); exists {
			if fn, ok := v.(*ast.Function); ok {
				return fn
			}
		}
	}
	return nil
}

// call compiles a call. Known functions are inlined, and anything else is an
// opaque builtin.
func (obj *Normalizer) call(x *ast.Call) ([]ast.Node, ast.Node, error) {
	if fn := obj.function(x.Func); fn != nil {
		return obj.inline(x, fn)
	}
	prefix := []ast.Node{}
	fun := x.Func
	if !ast.IsAtom(fun) {
		p, f, err := obj.operand(fun)
		if err != nil {
			return nil, nil, err
		}
		prefix, fun = p, f
	}
	p, args, err := obj.operands(x.Args)
	if err != nil {
		return nil, nil, err
	}
	return append(prefix, p...), &ast.Call{Textarea: x.Textarea, Func: fun, Args: args}, nil
}

// ifExpr compiles an if in value position. If either arm needs statements or
// has an effect, it becomes an if statement that assigns a temporary in both
// arms.
func (obj *Normalizer) ifExpr(x *ast.If) ([]ast.Node, ast.Node, error) {
	prefix, test, err := obj.operand(x.Test)
	if err != nil {
		return nil, nil, err
	}
	obj.scope.Enter()
	tp, th, err := obj.expr(x.Then)
	if err != nil {
		return nil, nil, err
	}
	if err := obj.leave(); err != nil {
		return nil, nil, err
	}
	var el ast.Node = ast.None()
	if x.Else != nil {
		el = x.Else
	}
	obj.scope.Enter()
	ep, el, err := obj.expr(el)
	if err != nil {
		return nil, nil, err
	}
	if err := obj.leave(); err != nil {
		return nil, nil, err
	}

	if len(tp) == 0 && len(ep) == 0 && ast.IsPure(th) && ast.IsPure(el) {
		return prefix, &ast.If{Textarea: x.Textarea, Test: test, Then: th, Else: el}, nil
	}

	tmp := obj.data.Session.TempName()
	stmt := &ast.If{
		Textarea: x.Textarea,
		Test:     test,
		Then:     ast.MakeBody(append(tp, &ast.Def{Textarea: x.Textarea, Name: tmp, Value: th})...),
		Else:     ast.MakeBody(append(ep, &ast.Def{Textarea: x.Textarea, Name: tmp, Value: el})...),
	}
	return append(prefix, stmt), &ast.Symbol{Textarea: x.Textarea, Name: tmp, Original: tmp}, nil
}

func importNames(x *ast.Import) []string {
	if len(x.Names) == 0 {
		return []string{x.Module}
	}
	return x.Names
}
