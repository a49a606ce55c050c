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
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/purpleidea/probgraph/lang/ast"
)

func ref(n Node) *ast.Symbol {
	return &ast.Symbol{Name: n.Name(), Original: n.Name(), Graph: true}
}

func val(v interface{}) *ast.Value { return ast.NewValue(v) }

// fakeRuntime draws the mean of every distribution, and scores values with an
// unnormalized gaussian.
type fakeRuntime struct {
	samples int
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return math.NaN()
}

func (obj *fakeRuntime) Sample(family string, args []interface{}, size int) (interface{}, error) {
	obj.samples++
	if len(args) == 0 {
		return nil, fmt.Errorf("no args for %s", family)
	}
	return toFloat(args[0]), nil
}

func (obj *fakeRuntime) LogDensity(family string, args []interface{}, value interface{}) (float64, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("bad args for %s", family)
	}
	z := (toFloat(value) - toFloat(args[0])) / toFloat(args[1])
	return -0.5 * z * z, nil
}

func (obj *fakeRuntime) Call(name string, args []interface{}) (interface{}, error) {
	switch name {
	case "exp":
		return math.Exp(toFloat(args[0])), nil
	case "math.pi":
		return math.Pi, nil
	}
	return nil, fmt.Errorf("unknown builtin %s", name)
}

// scenario builds the graph of a program that samples x and y, and observes a
// value with a mean of either x or y depending on the sign of x.
func scenario() (*Graph, map[string]Node) {
	x := NewVertex(30001, false, nil, nil)
	x.Family, x.Args, x.Continuous = "normal", []ast.Node{val(0), val(1)}, true
	y := NewVertex(30002, false, nil, nil)
	y.Family, y.Args, y.Continuous = "normal", []ast.Node{val(0), val(1)}, true
	c := NewConditionNode(30003, &ast.Compare{Op: ast.OpGt, Left: ref(x), Right: val(0)}, NewVertexSet(x))
	o1 := NewVertex(30004, true, NewVertexSet(x), []Condition{{Node: c, Truth: true}})
	o1.Family, o1.Args, o1.Value, o1.Continuous = "normal", []ast.Node{ref(x), val(1)}, val(2), true
	o2 := NewVertex(30005, true, NewVertexSet(y), []Condition{{Node: c, Truth: false}})
	o2.Family, o2.Args, o2.Value, o2.Continuous = "normal", []ast.Node{ref(y), val(1)}, val(2), true

	nodes := map[string]Node{"x": x, "y": y, "c": c, "o1": o1, "o2": o2}
	return NewGraph(x, y, c, o1, o2), nodes
}

func TestScenario0(t *testing.T) {
	g, nodes := scenario()
	x, y := nodes["x"].(*Vertex), nodes["y"].(*Vertex)
	c := nodes["c"].(*ConditionNode)
	o1, o2 := nodes["o1"].(*Vertex), nodes["o2"].(*Vertex)

	if names := []string{x.Name(), y.Name(), c.Name(), o1.Name(), o2.Name()}; !reflect.DeepEqual(names, []string{"x30001", "x30002", "cond_30003", "y30004", "y30005"}) {
		t.Errorf("unexpected names: %v", names)
	}
	if s := o2.Ancestors().String(); s != "{x30002}" {
		t.Errorf("unexpected ancestors: %s", s)
	}
	if s := o2.ConditionAncestors().String(); s != "{x30001}" {
		t.Errorf("unexpected condition ancestors: %s", s)
	}
	if !x.IsConditional() || y.IsConditional() {
		t.Errorf("only x should be conditional")
	}
	if gated := c.Gated(); !reflect.DeepEqual(gated, []*Vertex{o1, o2}) {
		t.Errorf("unexpected gated vertices: %v", gated)
	}

	arcs := []string{}
	for _, a := range g.Arcs() {
		arcs = append(arcs, a.String())
	}
	if exp := []string{"x30001 -> y30004", "x30002 -> y30005"}; !reflect.DeepEqual(arcs, exp) {
		t.Errorf("unexpected arcs: %v", arcs)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("validate failed with: %+v", err)
	}

	exp := strings.Join([]string{
		"x30001 = sample(normal(0, 1))",
		"x30002 = sample(normal(0, 1))",
		"cond_30003 = (x30001 > 0)",
		"y30004 = observe(normal(x30001, 1), 2) if cond_30003",
		"y30005 = observe(normal(x30002, 1), 2) if not cond_30003",
		"arcs:",
		"\tx30001 -> y30004",
		"\tx30002 -> y30005",
	}, "\n")
	if s := g.String(); s != exp {
		t.Errorf("unexpected listing:\n%s", s)
	}
}

func TestDependentConditionPropagation(t *testing.T) {
	a := NewVertex(1, false, nil, nil)
	b := NewVertex(2, false, NewVertexSet(a), nil)
	d := NewVertex(3, false, NewVertexSet(b), nil)
	c := NewConditionNode(4, ref(d), NewVertexSet(d))

	for _, v := range []*Vertex{a, b, d} {
		if deps := v.DependentConditions(); len(deps) != 1 || deps[0] != c {
			t.Errorf("%s: unexpected dependent conditions: %v", v, deps)
		}
	}
	d.AddDependentCondition(c) // idempotent
	if n := len(a.DependentConditions()); n != 1 {
		t.Errorf("dependent condition was added twice")
	}
}

func TestMerge0(t *testing.T) {
	a := NewVertex(1, false, nil, nil)
	b := NewVertex(2, true, nil, nil)
	d := NewDataNode(3, &ast.Vector{Items: []ast.Node{val(1), val(2)}})
	g1 := NewGraph(a).WithImports("math")
	g2 := NewGraph(b, a)
	g3 := NewGraph(d)

	left := g1.Merge(g2).Merge(g3)
	right := g1.Merge(g2.Merge(g3))
	if left.String() != right.String() || left.Len() != 3 {
		t.Errorf("merge is not associative:\n%s\n%s", left, right)
	}
	if g1.Merge(g2).String() != g2.Merge(g1).String() {
		t.Errorf("merge is not commutative")
	}
	if g1.Merge(g1).String() != g1.String() || g1.Merge(g1).Len() != 1 {
		t.Errorf("merge is not idempotent")
	}
	if g1.Len() != 1 || g2.Len() != 2 {
		t.Errorf("merge modified its inputs")
	}
	if imports := left.Imports(); !reflect.DeepEqual(imports, []string{"math"}) {
		t.Errorf("unexpected imports: %v", imports)
	}
	if ds := left.Data(); len(ds) != 1 || ds[0].Name() != "data_3" {
		t.Errorf("unexpected data nodes: %v", ds)
	}
	if n, ok := left.Lookup("y2"); !ok || n != b {
		t.Errorf("lookup failed")
	}
}

func TestValidate0(t *testing.T) {
	late := NewVertex(5, false, nil, nil)
	early := NewVertex(1, false, NewVertexSet(late), nil)
	if err := NewGraph(early, late).Validate(); err == nil {
		t.Errorf("expected an error for a dependency on a later vertex")
	}
	if _, err := NewModel(NewGraph(early, late)); err == nil {
		t.Errorf("expected an error building a model")
	}
}

func TestPGraph0(t *testing.T) {
	g, _ := scenario()
	pg, err := g.PGraph("scenario")
	if err != nil {
		t.Errorf("export failed with: %+v", err)
		return
	}
	if n := pg.NumVertices(); n != 5 {
		t.Errorf("unexpected vertex count: %d", n)
	}
	// two arcs, two gates and one test edge
	if n := pg.NumEdges(); n != 5 {
		t.Errorf("unexpected edge count: %d", n)
	}
	if _, err := pg.TopologicalSort(); err != nil {
		t.Errorf("export is not a dag: %+v", err)
	}
}

func TestSamplePrior0(t *testing.T) {
	g, _ := scenario()
	m, err := NewModel(g)
	if err != nil {
		t.Errorf("model failed with: %+v", err)
		return
	}
	runtime := &fakeRuntime{}
	state := map[string]interface{}{}
	if err := m.SamplePrior(state, runtime); err != nil {
		t.Errorf("sample prior failed with: %+v", err)
		return
	}
	if runtime.samples != 2 {
		t.Errorf("unexpected number of draws: %d", runtime.samples)
	}
	if b, ok := state["cond_30003"].(bool); !ok || b {
		t.Errorf("unexpected condition value: %v", state["cond_30003"])
	}
	if _, exists := state["y30004"]; exists {
		t.Errorf("the untaken observation has a value")
	}
	if v := state["y30005"]; v != int64(2) {
		t.Errorf("unexpected observation value: %v", v)
	}

	lp, err := m.LogDensity(state, runtime)
	if err != nil {
		t.Errorf("log density failed with: %+v", err)
		return
	}
	if lp != -2.0 {
		t.Errorf("unexpected log density: %f", lp)
	}

	state["x30001"] = 1.0 // take the other branch
	lp, err = m.LogDensity(state, runtime)
	if err != nil {
		t.Errorf("log density failed with: %+v", err)
		return
	}
	// x30001 contributes -0.5 and y30004 contributes -0.5
	if lp != -1.0 {
		t.Errorf("unexpected log density: %f", lp)
	}
}

func TestSubsets0(t *testing.T) {
	g, nodes := scenario()
	nodes["y"].(*Vertex).Continuous = false
	m, err := NewModel(g)
	if err != nil {
		t.Errorf("model failed with: %+v", err)
		return
	}
	names := func(vs []*Vertex) []string {
		s := []string{}
		for _, v := range vs {
			s = append(s, v.Name())
		}
		return s
	}
	if s := names(m.Sampled()); !reflect.DeepEqual(s, []string{"x30001", "x30002"}) {
		t.Errorf("unexpected sampled: %v", s)
	}
	if s := names(m.Observed()); !reflect.DeepEqual(s, []string{"y30004", "y30005"}) {
		t.Errorf("unexpected observed: %v", s)
	}
	if s := names(m.Continuous()); !reflect.DeepEqual(s, []string{"x30001"}) {
		t.Errorf("unexpected continuous: %v", s)
	}
	if s := names(m.Discrete()); !reflect.DeepEqual(s, []string{"x30002"}) {
		t.Errorf("unexpected discrete: %v", s)
	}
	if s := names(m.Conditional()); !reflect.DeepEqual(s, []string{"x30001"}) {
		t.Errorf("unexpected conditional: %v", s)
	}
	if s := names(m.ConditionalContinuous()); !reflect.DeepEqual(s, []string{"x30001"}) {
		t.Errorf("unexpected conditional continuous: %v", s)
	}
}

func TestEval0(t *testing.T) {
	type test struct { // an individual test
		name  string
		node  ast.Node
		state map[string]interface{}
		fail  bool
		exp   interface{}
	}
	testCases := []test{}

	testCases = append(testCases, test{
		name:  "arithmetic on the state",
		node:  &ast.Binary{Op: ast.OpMul, Left: &ast.Symbol{Name: "x1", Graph: true}, Right: val(2)},
		state: map[string]interface{}{"x1": 1.5},
		exp:   3.0,
	})
	testCases = append(testCases, test{
		name:  "subscript of data",
		node:  &ast.Subscript{Base: &ast.Symbol{Name: "data_1", Graph: true}, Index: val(-1)},
		state: map[string]interface{}{"data_1": []interface{}{int64(1), int64(2), int64(7)}},
		exp:   int64(7),
	})
	testCases = append(testCases, test{
		name:  "slice of data",
		node:  &ast.Subscript{Base: &ast.Symbol{Name: "data_1", Graph: true}, Index: &ast.Slice{Start: val(1)}},
		state: map[string]interface{}{"data_1": []float64{1, 2, 3}},
		exp:   []interface{}{2.0, 3.0},
	})
	testCases = append(testCases, test{
		name: "if expression",
		node: &ast.If{Test: &ast.Symbol{Name: "cond_1", Graph: true}, Then: val(1), Else: val(2)},
		state: map[string]interface{}{"cond_1": false},
		exp:   int64(2),
	})
	testCases = append(testCases, test{
		name:  "builtin call",
		node:  &ast.Call{Func: ast.NewSymbol("exp"), Args: []ast.Node{val(0)}},
		state: map[string]interface{}{},
		exp:   1.0,
	})
	testCases = append(testCases, test{
		name:  "module constant",
		node:  &ast.Attribute{Base: ast.NewSymbol("math"), Attr: "pi"},
		state: map[string]interface{}{},
		exp:   math.Pi,
	})
	testCases = append(testCases, test{
		name:  "folded call",
		node:  &ast.Call{Func: ast.NewSymbol("len"), Args: []ast.Node{&ast.Symbol{Name: "data_1", Graph: true}}},
		state: map[string]interface{}{"data_1": []int64{4, 5}},
		exp:   int64(2),
	})
	testCases = append(testCases, test{
		name:  "missing value",
		node:  &ast.Symbol{Name: "x9", Graph: true},
		state: map[string]interface{}{},
		fail:  true,
	})
	testCases = append(testCases, test{
		name:  "non boolean test",
		node:  &ast.If{Test: val(3), Then: val(1), Else: val(2)},
		state: map[string]interface{}{},
		fail:  true,
	})

	for index, tc := range testCases { // run all the tests
		t.Run(fmt.Sprintf("test #%d (%s)", index, tc.name), func(t *testing.T) {
			out, err := Eval(tc.node, tc.state, &fakeRuntime{})
			if !tc.fail && err != nil {
				t.Errorf("test #%d: FAIL", index)
				t.Errorf("test #%d: eval failed with: %+v", index, err)
				return
			}
			if tc.fail && err == nil {
				t.Errorf("test #%d: FAIL", index)
				t.Errorf("test #%d: eval passed, expected fail", index)
				return
			}
			if !tc.fail && !reflect.DeepEqual(out, tc.exp) {
				t.Errorf("test #%d: FAIL", index)
				t.Errorf("test #%d: got %#v, expected %#v", index, out, tc.exp)
			}
		})
	}
}
