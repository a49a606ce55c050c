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

package simplify

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/util"
)

func sym(name string) *ast.Symbol { return ast.NewSymbol(name) }

func val(v interface{}) *ast.Value { return ast.NewValue(v) }

func call(name string, args ...ast.Node) *ast.Call {
	return &ast.Call{Func: sym(name), Args: args}
}

func bin(op string, left, right ast.Node) *ast.Binary {
	return &ast.Binary{Op: op, Left: left, Right: right}
}

func def(name string, value ast.Node) *ast.Def {
	return &ast.Def{Name: name, Value: value}
}

func body(items ...ast.Node) *ast.Body {
	return &ast.Body{Items: items}
}

func observe(dist, value ast.Node) *ast.Observe {
	return &ast.Observe{Dist: dist, Value: value}
}

type test struct { // an individual test
	name string
	prog ast.Node
	fail bool
	err  error
	exp  string // canonical form of the expected program
}

func testCases() []test {
	testCases := []test{}

	testCases = append(testCases, test{
		name: "fold arithmetic",
		prog: body(def("x", bin(ast.OpAdd, val(1), bin(ast.OpMul, val(2), val(3)))), call("f", sym("x"))),
		exp:  "f(7)",
	})
	testCases = append(testCases, test{
		name: "dead branch",
		prog: &ast.If{Test: val(true), Then: call("f", val(1)), Else: call("f", val(2))},
		exp:  "f(1)",
	})
	testCases = append(testCases, test{
		name: "dead branch without else",
		prog: body(&ast.If{Test: bin(ast.OpAnd, val(false), sym("t")), Then: call("f", val(1))}, call("g")),
		exp:  "g()",
	})
	testCases = append(testCases, test{
		name: "non boolean test",
		prog: &ast.If{Test: val(1), Then: call("f", val(1))},
		fail: true,
		err:  interfaces.ErrShape,
	})
	testCases = append(testCases, test{
		name: "subscript of scalar",
		prog: call("f", &ast.Subscript{Base: val(3), Index: val(0)}),
		fail: true,
		err:  interfaces.ErrShape,
	})
	testCases = append(testCases, test{
		name: "index out of range",
		prog: call("f", &ast.Subscript{Base: &ast.Vector{Items: []ast.Node{val(1)}}, Index: val(4)}),
		fail: true,
		err:  interfaces.ErrShape,
	})
	testCases = append(testCases, test{
		name: "not pushed into compare",
		prog: def("y", &ast.Unary{Op: ast.OpNot, Item: &ast.Compare{Op: ast.OpLt, Left: sym("a"), Right: sym("b")}}),
		exp:  "y := (a >= b)",
	})
	testCases = append(testCases, test{
		name: "double negation",
		prog: call("f", &ast.Unary{Op: ast.OpNot, Item: &ast.Unary{Op: ast.OpNot, Item: sym("t")}}),
		exp:  "f(t)",
	})
	testCases = append(testCases, test{
		name: "identities",
		prog: call("f", bin(ast.OpAdd, sym("x"), val(0)), bin(ast.OpMul, sym("x"), val(1)), bin(ast.OpMul, val(0), sym("x"))),
		exp:  "f(x, x, 0)",
	})
	testCases = append(testCases, test{
		name: "range and len",
		prog: call("f", call("len", call("range", val(4)))),
		exp:  "f(4)",
	})
	testCases = append(testCases, test{
		name: "range with start and step",
		prog: call("f", call("range", val(1), val(7), val(2))),
		exp:  "f([1, 3, 5])",
	})
	testCases = append(testCases, test{
		name: "vector slice",
		prog: call("f", &ast.Subscript{
			Base:  &ast.Vector{Items: []ast.Node{val(1), val(2), val(3)}},
			Index: &ast.Slice{Start: val(-2)},
		}),
		exp: "f([2, 3])",
	})
	testCases = append(testCases, test{
		name: "factor observe values",
		prog: &ast.If{
			Test: sym("t"),
			Then: observe(call("normal", sym("m"), val(1)), val(1)),
			Else: observe(call("normal", sym("m"), val(1)), val(2)),
		},
		exp: "observe(normal(m, 1), (1 if t else 2))",
	})
	testCases = append(testCases, test{
		name: "different distributions stay apart",
		prog: &ast.If{
			Test: sym("t"),
			Then: observe(call("normal", sym("x"), val(1)), val(2)),
			Else: observe(call("normal", sym("y"), val(1)), val(2)),
		},
		exp: strings.Join([]string{
			"if t:",
			"\tobserve(normal(x, 1), 2)",
			"else:",
			"\tobserve(normal(y, 1), 2)",
		}, "\n"),
	})
	testCases = append(testCases, test{
		name: "factor calls",
		prog: &ast.If{
			Test: sym("t"),
			Then: call("f", sym("a"), val(1)),
			Else: call("f", sym("b"), val(1)),
		},
		exp: "f((a if t else b), 1)",
	})
	testCases = append(testCases, test{
		name: "equal arms",
		prog: &ast.If{
			Test: sym("t"),
			Then: call("g", val(1)),
			Else: call("g", val(1)),
		},
		exp: "g(1)",
	})
	testCases = append(testCases, test{
		name: "factor defs",
		prog: body(
			&ast.If{Test: sym("t"), Then: def("z", sym("a")), Else: def("z", sym("b"))},
			call("h", sym("z")),
		),
		exp: "z := (a if t else b)\nh(z)",
	})
	testCases = append(testCases, test{
		name: "propagate alias",
		prog: body(def("a", sym("b")), call("f", sym("a"))),
		exp:  "f(b)",
	})
	testCases = append(testCases, test{
		name: "propagate alias chain",
		prog: body(def("a", sym("b")), def("b", val(2)), call("f", sym("a"))),
		exp:  "f(2)",
	})
	testCases = append(testCases, test{
		name: "propagate vector",
		prog: body(def("xs", &ast.Vector{Items: []ast.Node{val(1), val(2), val(3)}}), call("f", &ast.Subscript{Base: sym("xs"), Index: val(1)})),
		exp:  "f(2)",
	})
	testCases = append(testCases, test{
		name: "no propagation in loops",
		prog: &ast.For{Target: "i", Source: sym("xs"), Body: body(def("a", val(1)), call("f", sym("a")))},
		exp:  "for i in xs:\n\ta := 1\n\tf(a)",
	})
	testCases = append(testCases, test{
		name: "no propagation when rebound",
		prog: body(def("a", val(1)), def("a", val(2)), call("f", sym("a"))),
		exp:  "a := 1\na := 2\nf(a)",
	})
	testCases = append(testCases, test{
		name: "empty if is removed",
		prog: body(&ast.If{Test: sym("t"), Then: def("a", val(1))}, call("f", val(2))),
		exp:  "f(2)",
	})
	testCases = append(testCases, test{
		name: "strings",
		prog: call("f", &ast.Compare{Op: ast.OpEq, Left: bin(ast.OpAdd, val("a"), val("b")), Right: val("ab")}),
		exp:  "f(True)",
	})
	testCases = append(testCases, test{
		name: "python division",
		prog: call("f",
			bin(ast.OpFloorDiv, &ast.Unary{Op: ast.OpSub, Item: val(7)}, val(2)),
			bin(ast.OpMod, &ast.Unary{Op: ast.OpSub, Item: val(7)}, val(2)),
			bin(ast.OpDiv, val(3), val(2)),
			bin(ast.OpDiv, val(4), val(2)),
			bin(ast.OpPow, val(2), val(10)),
		),
		exp: "f(-4, 1, 1.5, 2.0, 1024)",
	})
	testCases = append(testCases, test{
		name: "division by zero is left alone",
		prog: call("f", bin(ast.OpDiv, val(1), val(0))),
		exp:  "f((1 / 0))",
	})
	testCases = append(testCases, test{
		name: "boolean operators",
		prog: call("f", bin(ast.OpAnd, val(true), sym("t")), bin(ast.OpAnd, val(false), sym("t")), bin(ast.OpOr, val(false), sym("t"))),
		exp:  "f(t, False, t)",
	})
	testCases = append(testCases, test{
		name: "membership",
		prog: call("f", &ast.Compare{Op: ast.OpIn, Left: val(2), Right: &ast.Vector{Items: []ast.Node{val(1), val(2.0)}}}),
		exp:  "f(True)",
	})
	testCases = append(testCases, test{
		name: "phi with equal arms",
		prog: body(def("x__2", &ast.If{Test: sym("t"), Then: sym("x"), Else: sym("x")}), call("f", sym("x__2"))),
		exp:  "f(x)",
	})

	return testCases
}

func TestSimplify0(t *testing.T) {
	names := []string{}
	for index, tc := range testCases() { // run all the tests
		if tc.name == "" {
			t.Errorf("test #%d: not named", index)
			continue
		}
		if util.StrInList(tc.name, names) {
			t.Errorf("test #%d: duplicate sub test name of: %s", index, tc.name)
			continue
		}
		names = append(names, tc.name)
		t.Run(fmt.Sprintf("test #%d (%s)", index, tc.name), func(t *testing.T) {
			data := &interfaces.Data{
				Debug: testing.Verbose(), // set via the -test.v flag to `go test`
				Logf: func(format string, v ...interface{}) {
					t.Logf(fmt.Sprintf("test #%d: ", index)+format, v...)
				},
			}
			out, err := Simplify(data, tc.prog)

			if !tc.fail && err != nil {
				t.Errorf("test #%d: FAIL", index)
				t.Errorf("test #%d: simplify failed with: %+v", index, err)
				return
			}
			if tc.fail && err == nil {
				t.Errorf("test #%d: FAIL", index)
				t.Errorf("test #%d: simplify passed, expected fail", index)
				return
			}
			if tc.fail {
				if tc.err != nil && !errors.Is(err, tc.err) {
					t.Errorf("test #%d: FAIL", index)
					t.Errorf("test #%d: unexpected error: %+v", index, err)
				}
				return
			}

			if s := out.String(); s != tc.exp {
				t.Errorf("test #%d: FAIL", index)
				t.Logf("test #%d:   actual: \n%s", index, s)
				t.Logf("test #%d: expected: \n%s", index, tc.exp)
			}
		})
	}
}

// TestSimplifyIdempotent runs the simplifier on its own output, and expects to
// get the same program back.
func TestSimplifyIdempotent(t *testing.T) {
	for index, tc := range testCases() {
		if tc.fail {
			continue
		}
		once, err := Simplify(nil, tc.prog)
		if err != nil {
			t.Errorf("test #%d: simplify failed with: %+v", index, err)
			continue
		}
		twice, err := Simplify(nil, once)
		if err != nil {
			t.Errorf("test #%d: second simplify failed with: %+v", index, err)
			continue
		}
		if !ast.Equal(once, twice) {
			t.Errorf("test #%d (%s): not idempotent", index, tc.name)
			t.Logf("test #%d:  once: \n%s", index, once)
			t.Logf("test #%d: twice: \n%s", index, twice)
		}
	}
}

func TestExpr0(t *testing.T) {
	out, err := Expr(bin(ast.OpAdd, val(1), bin(ast.OpMul, sym("x"), val(1))))
	if err != nil {
		t.Errorf("expr failed with: %+v", err)
		return
	}
	if s := out.String(); s != "(1 + x)" {
		t.Errorf("unexpected output: %s", s)
	}
}

func TestRange0(t *testing.T) {
	items, ok := Range([]ast.Node{val(3)})
	if !ok || len(items) != 3 {
		t.Errorf("unexpected range: %v", items)
	}
	if _, ok := Range([]ast.Node{sym("n")}); ok {
		t.Errorf("expected a symbolic range to fail")
	}
	if _, ok := Range([]ast.Node{val(0), val(3), val(0)}); ok {
		t.Errorf("expected a zero step to fail")
	}
	items, ok = Range([]ast.Node{val(3), val(0), val(-1)})
	if !ok || len(items) != 3 || items[0].String() != "3" {
		t.Errorf("unexpected range: %v", items)
	}
}
