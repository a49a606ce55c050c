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

// Package graphgen builds the stochastic dependency graph of a program. It
// walks the simplified single assignment form once, creating a vertex for each
// sample and observe site, a condition node for each distinct branch test and
// a data node for each distinct large literal.
package graphgen

import (
	"fmt"

	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/distributions"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/lang/simplify"
	"github.com/purpleidea/probgraph/model"
	"github.com/purpleidea/probgraph/util/errwrap"
)

// DistributionNamespace is the module that lowered distribution constructors
// refer to.
const DistributionNamespace = "dist"

// Build runs a builder over a whole program and returns the graph.
func Build(data *interfaces.Data, node ast.Node) (*model.Graph, error) {
	obj := &Builder{
		data: data,
	}
	return obj.Run(node)
}

// binding is what a name is bound to: its lowered value, and the vertices that
// the value depends on.
type binding struct {
	node      ast.Node
	ancestors model.VertexSet
}

// fragment is the result of compiling a node: the lowered node, the vertices
// it depends on, and the part of the graph that was created while compiling
// it.
type fragment struct {
	node      ast.Node
	ancestors model.VertexSet
	graph     *model.Graph
}

// Builder holds the state of one graph building walk.
type Builder struct {
	data *interfaces.Data

	distributions interfaces.Distributions
	threshold     int

	scope   *interfaces.Scope
	context []model.Condition // the active branch tests, outermost first

	nodes map[string]model.Node           // every node created, by name
	conds map[string]*model.ConditionNode // by canonical test
	datas map[string]*model.DataNode      // by canonical literal

	imports []string
	name    string // the name that the next site is bound to
}

// Run builds the graph.
func (obj *Builder) Run(node ast.Node) (*model.Graph, error) {
	if obj.data == nil || obj.data.Session == nil {
		return nil, errwrap.Wrapf(interfaces.ErrScopeDiscipline, "graphgen: missing session")
	}
	obj.distributions = obj.data.Distributions
	if obj.distributions == nil {
		obj.distributions = distributions.Default()
	}
	obj.threshold = obj.data.DataThreshold
	if obj.threshold <= 0 {
		obj.threshold = interfaces.DefaultDataThreshold
	}
	obj.scope = interfaces.NewScope()
	obj.context = []model.Condition{}
	obj.nodes = make(map[string]model.Node)
	obj.conds = make(map[string]*model.ConditionNode)
	obj.datas = make(map[string]*model.DataNode)
	obj.imports = []string{}

	f, err := obj.stmt(node)
	if err != nil {
		return nil, err
	}
	if len(obj.context) != 0 {
		return nil, errwrap.Wrapf(interfaces.ErrScopeDiscipline, "graphgen: %d branch tests left open", len(obj.context))
	}
	graph := f.graph.WithImports(obj.imports...)
	if err := graph.Validate(); err != nil {
		return nil, errwrap.Wrapf(err, "graphgen")
	}
	obj.logf("built %d nodes with %d arcs", graph.Len(), len(graph.Arcs()))
	return graph, nil
}

func (obj *Builder) logf(format string, v ...interface{}) {
	if obj.data.Debug && obj.data.Logf != nil {
		obj.data.Logf("graphgen: "+format, v...)
	}
}

// leaf returns a fragment which created nothing.
func leaf(node ast.Node, ancestors model.VertexSet) *fragment {
	if ancestors == nil {
		ancestors = model.VertexSet{}
	}
	return &fragment{node: node, ancestors: ancestors, graph: model.NewGraph()}
}

// join merges the graphs of fragments. The ancestors of the result are the
// ones that its lowered node still refers to, so an operand that was dropped by
// folding or by selecting an item doesn't leave a dependency behind.
func (obj *Builder) join(node ast.Node, frags ...*fragment) *fragment {
	f := leaf(node, obj.ancestors(node))
	for _, x := range frags {
		f.graph = f.graph.Merge(x.graph)
	}
	return f
}

// ancestors returns the sampled vertices that a lowered node refers to. A
// reference to a condition node stands for the vertices of its test.
// Observations are never depended on.
func (obj *Builder) ancestors(node ast.Node) model.VertexSet {
	out := model.VertexSet{}
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		if n == nil {
			return
		}
		if x, ok := n.(*ast.Symbol); ok {
			if !x.Graph {
				return
			}
			switch g := obj.nodes[x.Name].(type) {
			case *model.Vertex:
				if g.IsSampled() {
					out[g] = struct{}{}
				}
			case *model.ConditionNode:
				out = out.Union(g.Ancestors())
			}
			return
		}
		_, _ = ast.Map(n, func(c ast.Node) (ast.Node, error) {
			walk(c)
			return c, nil
		})
	}
	walk(node)
	return out
}

// ref returns a symbol referring to a graph node.
func ref(n model.Node, original string, line int) *ast.Symbol {
	if original == "" {
		original = n.Name()
	}
	return &ast.Symbol{Textarea: ast.Textarea{Line: line}, Name: n.Name(), Original: original, Graph: true}
}

// emit returns the code of a lowered node, or nothing if there is no emitter.
func (obj *Builder) emit(node ast.Node) (string, error) {
	if obj.data.Emitter == nil || node == nil {
		return "", nil
	}
	return obj.data.Emitter.Emit(node, nil)
}

// stmt compiles a node in statement position. The lowered node of the result
// is meaningless.
func (obj *Builder) stmt(node ast.Node) (*fragment, error) {
	switch x := node.(type) {
	case *ast.Body:
		frags := []*fragment{}
		for _, item := range x.Items {
			f, err := obj.stmt(item)
			if err != nil {
				return nil, err
			}
			frags = append(frags, f)
		}
		return obj.join(ast.None(), frags...), nil

	case *ast.If:
		return obj.ifStmt(x)

	case *ast.Function:
		obj.logf("ignoring function `%s` at line %d", x.Name, x.Pos())
		return leaf(ast.None(), nil), nil
	}

	return obj.expr(node)
}

// expr compiles a node in value position.
func (obj *Builder) expr(node ast.Node) (*fragment, error) {
	switch x := node.(type) {
	case *ast.Value:
		return leaf(x, nil), nil

	case *ast.Symbol:
		return obj.symbol(x)

	case *ast.Def:
		obj.name = x.Name
		f, err := obj.expr(x.Value)
		obj.name = ""
		if err != nil {
			return nil, err
		}
		obj.scope.Define(x.Name, &binding{node: f.node, ancestors: f.ancestors})
		return obj.join(ast.None(), f), nil

	case *ast.Let:
		src, err := obj.expr(x.Source)
		if err != nil {
			return nil, err
		}
		obj.scope.Define(x.Target, &binding{node: src.node, ancestors: src.ancestors})
		body, err := obj.stmt(x.Body)
		if err != nil {
			return nil, err
		}
		return obj.join(body.node, src, body), nil

	case *ast.Body:
		if len(x.Items) == 0 {
			return leaf(ast.None(), nil), nil
		}
		frags := []*fragment{}
		for _, item := range x.Items[:len(x.Items)-1] {
			f, err := obj.stmt(item)
			if err != nil {
				return nil, err
			}
			frags = append(frags, f)
		}
		last, err := obj.expr(x.Items[len(x.Items)-1])
		if err != nil {
			return nil, err
		}
		return obj.join(last.node, append(frags, last)...), nil

	case *ast.Sample:
		return obj.sample(x)

	case *ast.Observe:
		return obj.observe(x)

	case *ast.If:
		return obj.ifExpr(x)

	case *ast.Vector:
		return obj.vector(x)

	case *ast.Subscript:
		base, err := obj.expr(x.Base)
		if err != nil {
			return nil, err
		}
		index, err := obj.expr(x.Index)
		if err != nil {
			return nil, err
		}
		if v, ok := base.node.(*ast.Vector); ok {
			if i, ok := ast.Int(index.node); ok && i >= 0 && i < int64(len(v.Items)) {
				return obj.join(v.Items[i], base, index), nil
			}
		}
		sub := &ast.Subscript{Textarea: x.Textarea, Base: base.node, Index: index.node}
		return obj.join(sub, base, index), nil

	case *ast.Call:
		args := []*fragment{}
		nodes := []ast.Node{}
		for _, a := range x.Args {
			f, err := obj.expr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, f)
			nodes = append(nodes, f.node)
		}
		// the callee is an opaque builtin
		call, err := simplify.Expr(&ast.Call{Textarea: x.Textarea, Func: x.Func, Args: nodes})
		if err != nil {
			return nil, err
		}
		return obj.join(call, args...), nil

	case *ast.Attribute:
		if base, ok := x.Base.(*ast.Symbol); ok && !obj.bound(base.Name) {
			return leaf(x, nil), nil // a module attribute
		}

	case *ast.Import:
		obj.imports = append(obj.imports, x.Module)
		for _, name := range x.Names {
			obj.scope.Define(name, &binding{node: ast.NewSymbol(name), ancestors: model.VertexSet{}})
		}
		if len(x.Names) == 0 {
			obj.scope.Define(x.Module, &binding{node: ast.NewSymbol(x.Module), ancestors: model.VertexSet{}})
		}
		return leaf(ast.None(), nil), nil

	case *ast.For, *ast.While, *ast.ListFor:
		return nil, errwrap.Wrapf(interfaces.ErrUnresolvable, "loop at line %d was not unrolled", node.Pos())

	case *ast.Return, *ast.Break:
		return nil, errwrap.Wrapf(interfaces.ErrUnresolvable, "`%s` at line %d is outside of any function or loop", node, node.Pos())
	}

	frags := []*fragment{}
	out, err := ast.Map(node, func(child ast.Node) (ast.Node, error) {
		f, err := obj.expr(child)
		if err != nil {
			return nil, err
		}
		frags = append(frags, f)
		return f.node, nil
	})
	if err != nil {
		return nil, err
	}
	// bindings were substituted, so more constants can fold
	if out, err = simplify.Expr(out); err != nil {
		return nil, err
	}
	return obj.join(out, frags...), nil
}

// bound returns true if a name is bound in the scope.
func (obj *Builder) bound(name string) bool {
	_, exists := obj.scope.Resolve(name)
	return exists
}

// symbol resolves a name to its lowered value.
func (obj *Builder) symbol(x *ast.Symbol) (*fragment, error) {
	if x.Graph {
		if _, exists := obj.nodes[x.Name]; !exists {
			return nil, errwrap.Wrapf(interfaces.ErrUnbound, "unknown graph node `%s` at line %d", x.Name, x.Pos())
		}
		return leaf(x, obj.ancestors(x)), nil
	}
	v, exists := obj.scope.Resolve(x.Name)
	if !exists {
		name := x.Original
		if name == "" {
			name = x.Name
		}
		return nil, errwrap.Wrapf(interfaces.ErrUnbound, "symbol `%s` not found at line %d", name, x.Pos())
	}
	b := v.(*binding)
	return leaf(b.node, b.ancestors), nil
}

// vector lowers a vector. A vector of constants at or above the threshold
// becomes a data node.
func (obj *Builder) vector(x *ast.Vector) (*fragment, error) {
	frags := []*fragment{}
	items := []ast.Node{}
	for _, item := range x.Items {
		f, err := obj.expr(item)
		if err != nil {
			return nil, err
		}
		frags = append(frags, f)
		items = append(items, f.node)
	}
	v := &ast.Vector{Textarea: x.Textarea, Items: items}
	if len(items) < obj.threshold || !ast.IsConstant(v) {
		return obj.join(v, frags...), nil
	}

	key := v.String()
	if d, exists := obj.datas[key]; exists {
		return leaf(ref(d, "", x.Pos()), nil), nil
	}
	d := model.NewDataNode(obj.data.Session.NextNodeIndex(), v)
	code, err := obj.emit(v)
	if err != nil {
		return nil, err
	}
	d.Code = code
	obj.datas[key] = d
	obj.nodes[d.Name()] = d
	obj.logf("hoisted %d items into `%s`", len(items), d.Name())
	return &fragment{node: ref(d, "", x.Pos()), ancestors: model.VertexSet{}, graph: model.NewGraph(d)}, nil
}

// distribution resolves the family of a constructor call and lowers its
// arguments.
func (obj *Builder) distribution(node ast.Node) (*interfaces.Distribution, []ast.Node, *fragment, error) {
	call, ok := node.(*ast.Call)
	if !ok {
		return nil, nil, nil, errwrap.Wrapf(interfaces.ErrShape, "`%s` at line %d is not a distribution", node, node.Pos())
	}
	d, err := obj.distributions.Lookup(call.Name())
	if err != nil {
		return nil, nil, nil, errwrap.Wrapf(err, "line %d", call.Pos())
	}
	if a := d.Arity(); a >= 0 && a != len(call.Args) {
		return nil, nil, nil, errwrap.Wrapf(interfaces.ErrArity, "distribution `%s` at line %d takes %d arguments, got %d", d.Name, call.Pos(), a, len(call.Args))
	}
	frags := []*fragment{}
	args := []ast.Node{}
	for _, a := range call.Args {
		f, err := obj.expr(a)
		if err != nil {
			return nil, nil, nil, err
		}
		frags = append(frags, f)
		args = append(args, f.node)
	}
	lowered := &ast.Call{Textarea: call.Textarea, Func: call.Func, Args: args}
	return d, args, obj.join(lowered, frags...), nil
}

// vertex fills in the fields of a new vertex that come from the family.
func (obj *Builder) vertex(v *model.Vertex, d *interfaces.Distribution, args []ast.Node, line int) error {
	v.Family = d.Name
	v.Args = args
	v.Continuous = d.Continuous
	v.Dimension = 1
	if d.Dimension != nil {
		v.Dimension = d.Dimension(args)
	}
	if d.Params != nil {
		v.ArgNames = d.Params[:len(args)]
	}
	v.OriginalName = obj.name
	v.Line = line
	code, err := obj.emit(&ast.Call{
		Func: &ast.Attribute{Base: ast.NewSymbol(DistributionNamespace), Attr: d.Name},
		Args: args,
	})
	if err != nil {
		return err
	}
	v.Code = code
	obj.nodes[v.Name()] = v
	return nil
}

// sample creates a sampled vertex. The reference to it depends on the vertex
// itself, and not on its ancestors.
func (obj *Builder) sample(x *ast.Sample) (*fragment, error) {
	d, args, dist, err := obj.distribution(x.Dist)
	if err != nil {
		return nil, err
	}
	size := 0
	ancestors := dist.ancestors
	if x.Size != nil {
		s, err := obj.expr(x.Size)
		if err != nil {
			return nil, err
		}
		folded, err := simplify.Expr(s.node)
		if err != nil {
			return nil, err
		}
		i, ok := ast.Int(folded)
		if !ok || i < 0 {
			return nil, errwrap.Wrapf(interfaces.ErrShape, "sample size `%s` at line %d is not a static integer", s.node, x.Pos())
		}
		size = int(i)
	}

	v := model.NewVertex(obj.data.Session.NextNodeIndex(), false, ancestors, obj.context)
	v.SampleSize = size
	if err := obj.vertex(v, d, args, x.Pos()); err != nil {
		return nil, err
	}
	obj.logf("sample `%s` of %s with ancestors %s", v, d.Name, v.Ancestors())
	return &fragment{
		node:      ref(v, obj.name, x.Pos()),
		ancestors: model.NewVertexSet(v),
		graph:     dist.graph.Merge(model.NewGraph(v)),
	}, nil
}

// observe creates an observed vertex. Nothing can depend on an observation, so
// the reference to it carries no ancestors.
func (obj *Builder) observe(x *ast.Observe) (*fragment, error) {
	d, args, dist, err := obj.distribution(x.Dist)
	if err != nil {
		return nil, err
	}
	value, err := obj.expr(x.Value)
	if err != nil {
		return nil, err
	}

	v := model.NewVertex(obj.data.Session.NextNodeIndex(), true, dist.ancestors.Union(value.ancestors), obj.context)
	v.Value = value.node
	if err := obj.vertex(v, d, args, x.Pos()); err != nil {
		return nil, err
	}
	code, err := obj.emit(value.node)
	if err != nil {
		return nil, err
	}
	v.ValueCode = code
	obj.logf("observe `%s` of %s with ancestors %s", v, d.Name, v.Ancestors())
	return &fragment{
		node:      ref(v, obj.name, x.Pos()),
		ancestors: model.VertexSet{},
		graph:     dist.graph.Merge(value.graph, model.NewGraph(v)),
	}, nil
}

// test lowers a branch test. The boolean is true if the test is a constant.
func (obj *Builder) test(node ast.Node) (*fragment, bool, bool, error) {
	f, err := obj.expr(node)
	if err != nil {
		return nil, false, false, err
	}
	v, ok := f.node.(*ast.Value)
	if !ok {
		return f, false, false, nil
	}
	b, ok := v.V.(bool)
	if !ok {
		return nil, false, false, errwrap.Wrapf(interfaces.ErrShape, "test `%s` at line %d is not a boolean", v, node.Pos())
	}
	return f, b, true, nil
}

// condition returns the condition node of a lowered test, creating it if it
// doesn't exist yet.
func (obj *Builder) condition(test *fragment) (*model.ConditionNode, *model.Graph, error) {
	key := test.node.String()
	if c, exists := obj.conds[key]; exists {
		if err := cycle(c, test.ancestors); err != nil {
			return nil, nil, err
		}
		return c, model.NewGraph(), nil
	}
	c := model.NewConditionNode(obj.data.Session.NextNodeIndex(), test.node, test.ancestors)
	code, err := obj.emit(test.node)
	if err != nil {
		return nil, nil, err
	}
	c.Code = code
	obj.conds[key] = c
	obj.nodes[c.Name()] = c
	obj.logf("condition `%s` tests %s", c, key)
	return c, model.NewGraph(c), nil
}

// cycle returns an error if a test depends on a vertex that the test itself
// gates.
func cycle(c *model.ConditionNode, ancestors model.VertexSet) error {
	for _, a := range ancestors.Sorted() {
		for _, x := range a.Conditions {
			if x.Node == c {
				return errwrap.Wrapf(interfaces.ErrConditionCycle, "test of `%s` depends on `%s` which it gates", c, a)
			}
		}
	}
	return nil
}

// arm compiles one arm of a conditional statement with the branch context
// extended by the condition.
func (obj *Builder) arm(c *model.ConditionNode, truth bool, node ast.Node) (*fragment, error) {
	if node == nil {
		return leaf(ast.None(), nil), nil
	}
	obj.context = append(obj.context, model.Condition{Node: c, Truth: truth})
	f, err := obj.stmt(node)
	obj.context = obj.context[:len(obj.context)-1]
	return f, err
}

// ifStmt compiles a conditional statement. The arms are compiled one after the
// other, so that creation order follows execution order.
func (obj *Builder) ifStmt(x *ast.If) (*fragment, error) {
	test, b, constant, err := obj.test(x.Test)
	if err != nil {
		return nil, err
	}
	if constant {
		arm := x.Then
		if !b {
			arm = x.Else
		}
		if arm == nil {
			return test, nil
		}
		f, err := obj.stmt(arm)
		if err != nil {
			return nil, err
		}
		return obj.join(ast.None(), test, f), nil
	}

	c, g, err := obj.condition(test)
	if err != nil {
		return nil, err
	}
	a, err := obj.arm(c, true, x.Then)
	if err != nil {
		return nil, err
	}
	e, err := obj.arm(c, false, x.Else)
	if err != nil {
		return nil, err
	}
	return obj.join(ast.None(), test, &fragment{ancestors: model.VertexSet{}, graph: g}, a, e), nil
}

// ifExpr lowers a conditional expression. Its arms are pure, so nothing is
// gated by it, but a test that already has a condition node refers to it.
func (obj *Builder) ifExpr(x *ast.If) (*fragment, error) {
	if x.Else == nil {
		return obj.ifStmt(x)
	}
	test, b, constant, err := obj.test(x.Test)
	if err != nil {
		return nil, err
	}
	if constant {
		arm := x.Then
		if !b {
			arm = x.Else
		}
		f, err := obj.expr(arm)
		if err != nil {
			return nil, err
		}
		return obj.join(f.node, test, f), nil
	}
	a, err := obj.expr(x.Then)
	if err != nil {
		return nil, err
	}
	e, err := obj.expr(x.Else)
	if err != nil {
		return nil, err
	}
	node := test.node
	if c, exists := obj.conds[node.String()]; exists {
		node = ref(c, "", x.Pos())
	}
	out := &ast.If{Textarea: x.Textarea, Test: node, Then: a.node, Else: e.node}
	return obj.join(out, test, a, e), nil
}

// String returns a short description of the builder state.
func (obj *Builder) String() string {
	return fmt.Sprintf("graphgen: %d nodes, %d conditions, %d data", len(obj.nodes), len(obj.conds), len(obj.datas))
}
