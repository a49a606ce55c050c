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

// Package ssa converts a normalized program into single assignment form. Every
// binding gets a fresh version of its name, the arms of a conditional each get
// a branch scope whose rebindings are merged afterwards by phi definitions, and
// every loop is unrolled statically.
package ssa

import (
	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/lang/simplify"
	"github.com/purpleidea/probgraph/util/errwrap"
)

// Convert runs the converter over a whole program and returns the new one.
func Convert(data *interfaces.Data, node ast.Node) (ast.Node, error) {
	obj := &Converter{
		data: data,
	}
	return obj.Run(node)
}

// Converter holds the state of one conversion. The scope maps source names to
// their current version, and consts remembers the versions that are bound to
// values which are known statically.
type Converter struct {
	data *interfaces.Data

	scope   *interfaces.Scope
	symbols map[string]*Symbol
	consts  map[string]ast.Node
}

// Run converts the program.
func (obj *Converter) Run(node ast.Node) (ast.Node, error) {
	if obj.data == nil || obj.data.Session == nil {
		return nil, errwrap.Wrapf(interfaces.ErrScopeDiscipline, "ssa: missing session")
	}
	obj.scope = interfaces.NewScope()
	obj.symbols = make(map[string]*Symbol)
	obj.consts = make(map[string]ast.Node)
	obj.data.Session.ReserveSource(node)

	stmts, err := obj.stmt(node)
	if err != nil {
		return nil, err
	}
	if d := obj.scope.Depth(); d != 0 {
		return nil, errwrap.Wrapf(interfaces.ErrScopeDiscipline, "ssa: %d scopes left open", d)
	}
	return ast.MakeBody(stmts...), nil
}

func (obj *Converter) logf(format string, v ...interface{}) {
	if obj.data.Debug && obj.data.Logf != nil {
		obj.data.Logf("ssa: "+format, v...)
	}
}

// symbol returns the version counter of a source name.
func (obj *Converter) symbol(name string) *Symbol {
	s, exists := obj.symbols[name]
	if !exists {
		s = NewSymbol(name)
		s.Session = obj.data.Session
		obj.symbols[name] = s
	}
	return s
}

// bind allocates a fresh version for a source name, and remembers its value
// if that is known statically.
func (obj *Converter) bind(name string, value ast.Node) string {
	version := obj.symbol(name).NewInstance(obj.scope)
	if value == nil {
		return version
	}
	if folded, err := obj.fold(value); err == nil && ast.IsConstant(folded) {
		obj.consts[version] = folded
	}
	return version
}

// stmt converts a node in statement position.
func (obj *Converter) stmt(node ast.Node) ([]ast.Node, error) {
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

	case *ast.Def:
		prefix, value, err := obj.expr(x.Value)
		if err != nil {
			return nil, err
		}
		if o, ok := value.(*ast.Observe); ok {
			// the observation runs, and the name is bound to nothing
			prefix = append(prefix, o)
			value = &ast.Value{Textarea: x.Textarea, V: nil}
		}
		name := obj.bind(x.Name, value)
		return append(prefix, &ast.Def{Textarea: x.Textarea, Name: name, Value: value}), nil

	case *ast.If:
		return obj.ifStmt(x)

	case *ast.For:
		prefix, source, err := obj.expr(x.Source)
		if err != nil {
			return nil, err
		}
		items, err := obj.items(source, x.Pos())
		if err != nil {
			return nil, err
		}
		obj.logf("unrolling loop at line %d into %d iterations", x.Pos(), len(items))
		for _, item := range items {
			target := obj.bind(x.Target, item)
			body, err := obj.stmt(x.Body)
			if err != nil {
				return nil, err
			}
			prefix = append(prefix, &ast.Let{
				Textarea: x.Textarea,
				Target:   target,
				Source:   item,
				Body:     ast.MakeBody(body...),
			})
		}
		return prefix, nil

	case *ast.Let:
		prefix, source, err := obj.expr(x.Source)
		if err != nil {
			return nil, err
		}
		target := obj.bind(x.Target, source)
		body, err := obj.stmt(x.Body)
		if err != nil {
			return nil, err
		}
		let := &ast.Let{Textarea: x.Textarea, Target: target, Source: source, Body: ast.MakeBody(body...)}
		return append(prefix, let), nil

	case *ast.While:
		return nil, errwrap.Wrapf(interfaces.ErrUnresolvable, "while loop at line %d has no static bound", x.Pos())

	case *ast.Break:
		return nil, errwrap.Wrapf(interfaces.ErrUnresolvable, "break at line %d can't be unrolled", x.Pos())

	case *ast.Return:
		if x.Value == nil {
			return []ast.Node{x}, nil
		}
		prefix, value, err := obj.expr(x.Value)
		if err != nil {
			return nil, err
		}
		return append(prefix, &ast.Return{Textarea: x.Textarea, Value: value}), nil

	case *ast.Function, *ast.Import:
		return []ast.Node{node}, nil
	}

	prefix, value, err := obj.expr(node)
	if err != nil {
		return nil, err
	}
	return append(prefix, value), nil
}

// arm converts one arm of a conditional in its own branch scope. It returns the
// statements of the arm and the versions of every name that the arm rebound.
func (obj *Converter) arm(node ast.Node) ([]ast.Node, []string, map[string]string, error) {
	obj.scope.Enter()
	stmts := []ast.Node{}
	if node != nil {
		s, err := obj.stmt(node)
		if err != nil {
			return nil, nil, nil, err
		}
		stmts = s
	}
	names := obj.scope.Local()
	versions := make(map[string]string)
	for _, name := range names {
		v, _ := obj.symbol(name).CurrentInstance(obj.scope)
		versions[name] = v
	}
	if err := obj.scope.Leave(); err != nil {
		return nil, nil, nil, errwrap.Wrapf(err, "ssa")
	}
	return stmts, names, versions, nil
}

// ifStmt converts a conditional statement. Each arm keeps its own statements,
// and every name rebound in either arm gets a phi definition after the if.
func (obj *Converter) ifStmt(x *ast.If) ([]ast.Node, error) {
	prefix, test, err := obj.expr(x.Test)
	if err != nil {
		return nil, err
	}

	if b, ok, err := obj.constTest(test, x.Pos()); err != nil {
		return nil, err
	} else if ok {
		arm := x.Then
		if !b {
			arm = x.Else
		}
		obj.logf("if at line %d is always %t", x.Pos(), b)
		if arm == nil {
			return prefix, nil
		}
		stmts, err := obj.stmt(arm)
		if err != nil {
			return nil, err
		}
		return append(prefix, stmts...), nil
	}

	thenStmts, thenNames, thenVersions, err := obj.arm(x.Then)
	if err != nil {
		return nil, err
	}
	elseStmts, elseNames, elseVersions, err := obj.arm(x.Else)
	if err != nil {
		return nil, err
	}

	names := append([]string{}, thenNames...)
	for _, name := range elseNames {
		if _, exists := thenVersions[name]; !exists {
			names = append(names, name)
		}
	}

	type phi struct {
		name string
		a, b string
	}
	phis := []phi{}
	for _, name := range names {
		pre, hasPre := obj.symbol(name).CurrentInstance(obj.scope)
		a, inThen := thenVersions[name]
		b, inElse := elseVersions[name]
		if (!inThen || !inElse) && !hasPre {
			continue // bound on one path only
		}
		if !inThen {
			a = pre
		}
		if !inElse {
			b = pre
		}
		phis = append(phis, phi{name: name, a: a, b: b})
	}

	if len(phis) > 0 && !ast.IsAtom(test) {
		tmp := obj.bind(obj.data.Session.TempName(), nil)
		prefix = append(prefix, &ast.Def{Textarea: x.Textarea, Name: tmp, Value: test})
		test = &ast.Symbol{Textarea: x.Textarea, Name: tmp, Original: tmp}
	}

	var el ast.Node
	if x.Else != nil {
		el = ast.MakeBody(elseStmts...)
	}
	out := append(prefix, &ast.If{
		Textarea: x.Textarea,
		Test:     test,
		Then:     ast.MakeBody(thenStmts...),
		Else:     el,
	})

	for _, p := range phis {
		version := obj.bind(p.name, nil)
		obj.logf("phi `%s` merges `%s` and `%s`", version, p.a, p.b)
		out = append(out, &ast.Def{
			Textarea: x.Textarea,
			Name:     version,
			Value: &ast.If{
				Textarea: x.Textarea,
				Test:     test,
				Then:     &ast.Symbol{Textarea: x.Textarea, Name: p.a, Original: p.name},
				Else:     &ast.Symbol{Textarea: x.Textarea, Name: p.b, Original: p.name},
			},
		})
	}
	return out, nil
}

// constTest returns the value of a test if it is known statically. A constant
// that isn't a boolean is an error.
func (obj *Converter) constTest(test ast.Node, line int) (bool, bool, error) {
	folded, err := obj.fold(test)
	if err != nil {
		return false, false, err
	}
	v, ok := folded.(*ast.Value)
	if !ok {
		return false, false, nil
	}
	b, ok := v.V.(bool)
	if !ok {
		return false, false, errwrap.Wrapf(interfaces.ErrShape, "if test `%s` at line %d is not a boolean", v, line)
	}
	return b, true, nil
}

// expr converts a node in value position. Comprehensions are unrolled, so it
// can return statements that must run first.
func (obj *Converter) expr(node ast.Node) ([]ast.Node, ast.Node, error) {
	switch x := node.(type) {
	case *ast.Symbol:
		s, exists := obj.symbols[x.Name]
		if !exists || x.Graph {
			return []ast.Node{}, x, nil // builtin
		}
		version, ok := s.CurrentInstance(obj.scope)
		if !ok {
			return nil, nil, errwrap.Wrapf(interfaces.ErrUnbound, "`%s` at line %d is not bound on every path", x.Name, x.Pos())
		}
		original := x.Original
		if original == "" {
			original = x.Name
		}
		return []ast.Node{}, &ast.Symbol{Textarea: x.Textarea, Name: version, Original: original}, nil

	case *ast.ListFor:
		return obj.listFor(x)

	case *ast.If:
		prefix, test, err := obj.expr(x.Test)
		if err != nil {
			return nil, nil, err
		}
		if b, ok, err := obj.constTest(test, x.Pos()); err != nil {
			return nil, nil, err
		} else if ok {
			arm := x.Then
			if !b {
				arm = x.Else
			}
			p, value, err := obj.expr(arm)
			if err != nil {
				return nil, nil, err
			}
			return append(prefix, p...), value, nil
		}
		tp, th, err := obj.expr(x.Then)
		if err != nil {
			return nil, nil, err
		}
		ep, el, err := obj.expr(x.Else)
		if err != nil {
			return nil, nil, err
		}
		prefix = append(append(prefix, tp...), ep...)
		return prefix, &ast.If{Textarea: x.Textarea, Test: test, Then: th, Else: el}, nil

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
		prefix, source, err := obj.expr(x.Source)
		if err != nil {
			return nil, nil, err
		}
		target := obj.bind(x.Target, source)
		bp, value, err := obj.expr(x.Body)
		if err != nil {
			return nil, nil, err
		}
		let := &ast.Let{Textarea: x.Textarea, Target: target, Source: source, Body: ast.MakeBody(bp...)}
		return append(prefix, let), value, nil

	case *ast.Def, *ast.For, *ast.While, *ast.Break, *ast.Return, *ast.Import, *ast.Function:
		stmts, err := obj.stmt(node)
		if err != nil {
			return nil, nil, err
		}
		return stmts, ast.None(), nil
	}

	prefix := []ast.Node{}
	out, err := ast.Map(node, func(child ast.Node) (ast.Node, error) {
		p, c, err := obj.expr(child)
		if err != nil {
			return nil, err
		}
		prefix = append(prefix, p...)
		return c, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return prefix, out, nil
}

// listFor unrolls a comprehension into one let per item, and returns the vector
// of the values it produced.
func (obj *Converter) listFor(x *ast.ListFor) ([]ast.Node, ast.Node, error) {
	prefix, source, err := obj.expr(x.Source)
	if err != nil {
		return nil, nil, err
	}
	items, err := obj.items(source, x.Pos())
	if err != nil {
		return nil, nil, err
	}
	results := []ast.Node{}
	for _, item := range items {
		target := obj.bind(x.Target, item)
		stmts := []ast.Node{}
		keep := true
		if x.Test != nil {
			tp, test, err := obj.expr(x.Test)
			if err != nil {
				return nil, nil, err
			}
			b, ok, err := obj.constTest(test, x.Pos())
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				return nil, nil, errwrap.Wrapf(interfaces.ErrUnresolvable, "filter `%s` at line %d can't be resolved statically", test, x.Pos())
			}
			stmts, keep = append(stmts, tp...), b
		}
		if keep {
			p, value, err := obj.expr(x.Expr)
			if err != nil {
				return nil, nil, err
			}
			stmts = append(stmts, p...)
			if !ast.IsPure(value) {
				tmp := obj.bind(obj.data.Session.TempName(), nil)
				stmts = append(stmts, &ast.Def{Textarea: x.Textarea, Name: tmp, Value: value})
				value = &ast.Symbol{Textarea: x.Textarea, Name: tmp, Original: tmp}
			}
			results = append(results, value)
		}
		prefix = append(prefix, &ast.Let{
			Textarea: x.Textarea,
			Target:   target,
			Source:   item,
			Body:     ast.MakeBody(stmts...),
		})
	}
	return prefix, &ast.Vector{Textarea: x.Textarea, Items: results}, nil
}

// items returns the items of a loop source, which must be known statically.
func (obj *Converter) items(source ast.Node, line int) ([]ast.Node, error) {
	folded, err := obj.fold(source)
	if err != nil {
		return nil, err
	}
	if v, ok := folded.(*ast.Vector); ok {
		return v.Items, nil
	}
	return nil, errwrap.Wrapf(interfaces.ErrUnresolvable, "loop source `%s` at line %d has no static length", source, line)
}

// fold replaces every version bound to a static value by that value, and then
// folds the constants of the result.
func (obj *Converter) fold(node ast.Node) (ast.Node, error) {
	var substitute func(ast.Node) (ast.Node, error)
	substitute = func(n ast.Node) (ast.Node, error) {
		if s, ok := n.(*ast.Symbol); ok {
			if value, exists := obj.consts[s.Name]; exists && !s.Graph {
				return value, nil
			}
			return s, nil
		}
		return ast.Map(n, substitute)
	}
	out, err := substitute(node)
	if err != nil {
		return nil, err
	}
	return simplify.Expr(out)
}
