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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/util"

	"github.com/davecgh/go-spew/spew"
)

func sym(name string) *ast.Symbol { return ast.NewSymbol(name) }

func val(v interface{}) *ast.Value { return ast.NewValue(v) }

func call(name string, args ...ast.Node) *ast.Call {
	return &ast.Call{Func: sym(name), Args: args}
}

func def(name string, value ast.Node) *ast.Def {
	return &ast.Def{Name: name, Value: value}
}

func body(items ...ast.Node) *ast.Body {
	return &ast.Body{Items: items}
}

func TestNormalize0(t *testing.T) {
	type test struct { // an individual test
		name string
		prog ast.Node
		fail bool
		err  error
		exp  string // canonical form of the expected program
	}
	testCases := []test{}

	{
		testCases = append(testCases, test{
			name: "nested sample is hoisted",
			prog: def("x", call("f", &ast.Sample{Dist: call("normal", val(0), val(1))})),
			exp: strings.Join([]string{
				"__tmp_1__ := sample(normal(0, 1))",
				"x := f(__tmp_1__)",
			}, "\n"),
		})
	}
	{
		testCases = append(testCases, test{
			name: "constructor stays under sample",
			prog: &ast.Sample{Dist: call("normal", call("g", val(1)), val(1))},
			exp: strings.Join([]string{
				"__tmp_1__ := g(1)",
				"sample(normal(__tmp_1__, 1))",
			}, "\n"),
		})
	}
	{
		testCases = append(testCases, test{
			name: "opaque builtin call",
			prog: call("foo", val(1), call("bar", val(2))),
			exp: strings.Join([]string{
				"__tmp_1__ := bar(2)",
				"foo(1, __tmp_1__)",
			}, "\n"),
		})
	}
	{
		testCases = append(testCases, test{
			name: "pure operators stay nested",
			prog: def("z", &ast.Binary{Op: ast.OpAdd, Left: sym("x"), Right: &ast.Binary{Op: ast.OpMul, Left: sym("y"), Right: val(2)}}),
			exp:  "z := (x + (y * 2))",
		})
	}
	{
		fn := &ast.Function{
			Name:   "f",
			Params: []string{"a"},
			Body:   &ast.Return{Value: &ast.Binary{Op: ast.OpAdd, Left: sym("a"), Right: val(1)}},
		}
		testCases = append(testCases, test{
			name: "inline tail return",
			prog: body(fn, def("y", call("f", val(2)))),
			exp: strings.Join([]string{
				"a__i1 := 2",
				"y := (a__i1 + 1)",
			}, "\n"),
		})
	}
	{
		fn := &ast.Function{
			Name:   "h",
			Params: []string{"x"},
			Body: body(
				def("y", &ast.Binary{Op: ast.OpMul, Left: sym("x"), Right: val(2)}),
				&ast.Return{Value: sym("y")},
			),
		}
		testCases = append(testCases, test{
			name: "inline avoids capture",
			prog: body(fn, def("y", val(1)), def("z", call("h", sym("y")))),
			exp: strings.Join([]string{
				"y := 1",
				"x__i1 := y",
				"y__i2 := (x__i1 * 2)",
				"z := y__i2",
			}, "\n"),
		})
	}
	{
		fn := &ast.Function{
			Name:   "g",
			Params: []string{"t"},
			Body: &ast.If{
				Test: sym("t"),
				Then: &ast.Return{Value: val(1)},
				Else: &ast.Return{Value: val(2)},
			},
		}
		testCases = append(testCases, test{
			name: "inline returns in both arms",
			prog: body(fn, def("z", call("g", sym("c")))),
			exp: strings.Join([]string{
				"t__i1 := c",
				"if t__i1:",
				"\t__tmp_1__ := 1",
				"else:",
				"\t__tmp_1__ := 2",
				"z := __tmp_1__",
			}, "\n"),
		})
	}
	{
		fn := &ast.Function{
			Name:   "g",
			Params: []string{"t"},
			Body: body(
				&ast.If{
					Test: sym("t"),
					Then: &ast.Return{Value: val(1)},
				},
				&ast.Return{Value: val(2)},
			),
		}
		testCases = append(testCases, test{
			name: "inline early return",
			prog: body(fn, def("z", call("g", sym("c")))),
			exp: strings.Join([]string{
				"t__i1 := c",
				"if t__i1:",
				"\t__tmp_1__ := 1",
				"else:",
				"\t__tmp_1__ := 2",
				"z := __tmp_1__",
			}, "\n"),
		})
	}
	{
		fn := &ast.Function{
			Name:   "prior",
			Params: []string{},
			Body:   &ast.Return{Value: &ast.Sample{Dist: call("normal", val(0), val(1))}},
		}
		testCases = append(testCases, test{
			name: "inline sample",
			prog: body(fn, def("x", call("prior")), def("y", call("prior"))),
			exp: strings.Join([]string{
				"x := sample(normal(0, 1))",
				"y := sample(normal(0, 1))",
			}, "\n"),
		})
	}
	{
		testCases = append(testCases, test{
			name: "effectful if expression",
			prog: def("x", &ast.If{
				Test: sym("t"),
				Then: &ast.Sample{Dist: call("normal", val(0), val(1))},
				Else: val(0),
			}),
			exp: strings.Join([]string{
				"if t:",
				"\t__tmp_1__ := sample(normal(0, 1))",
				"else:",
				"\t__tmp_1__ := 0",
				"x := __tmp_1__",
			}, "\n"),
		})
	}
	{
		testCases = append(testCases, test{
			name: "pure if expression",
			prog: def("x", &ast.If{Test: sym("t"), Then: sym("a"), Else: sym("b")}),
			exp:  "x := (a if t else b)",
		})
	}
	{
		testCases = append(testCases, test{
			name: "if test is hoisted",
			prog: &ast.If{
				Test: &ast.Compare{Op: ast.OpGt, Left: call("f"), Right: val(0)},
				Then: &ast.Observe{Dist: call("normal", val(0), val(1)), Value: val(2)},
			},
			exp: strings.Join([]string{
				"__tmp_1__ := f()",
				"if (__tmp_1__ > 0):",
				"\tobserve(normal(0, 1), 2)",
			}, "\n"),
		})
	}
	{
		testCases = append(testCases, test{
			name: "comprehension keeps effects inside",
			prog: def("xs", &ast.ListFor{
				Target: "i",
				Source: call("range", val(3)),
				Expr:   &ast.Sample{Dist: call("normal", sym("i"), val(1))},
			}),
			exp: strings.Join([]string{
				"xs := [sample(normal(i, 1)) for i in range(3)]",
			}, "\n"),
		})
	}
	{
		fn := &ast.Function{
			Name:   "f",
			Params: []string{"a", "b"},
			Body:   &ast.Return{Value: sym("a")},
		}
		testCases = append(testCases, test{
			name: "arity",
			prog: body(fn, call("f", val(1))),
			fail: true,
			err:  interfaces.ErrArity,
		})
	}
	{
		fn := &ast.Function{
			Name:   "f",
			Params: []string{"n"},
			Body:   &ast.Return{Value: call("f", sym("n"))},
		}
		testCases = append(testCases, test{
			name: "recursion",
			prog: body(fn, call("f", val(1))),
			fail: true,
			err:  interfaces.ErrRecursiveInline,
		})
	}

	names := []string{}
	for index, tc := range testCases { // run all the tests
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
				Session:        interfaces.NewSession(),
				MaxInlineDepth: 8,
				Debug:          testing.Verbose(), // set via the -test.v flag to `go test`
				Logf: func(format string, v ...interface{}) {
					t.Logf(fmt.Sprintf("test #%d: ", index)+format, v...)
				},
			}
			out, err := Normalize(data, tc.prog)

			if !tc.fail && err != nil {
				t.Errorf("test #%d: FAIL", index)
				t.Errorf("test #%d: normalize failed with: %+v", index, err)
				return
			}
			if tc.fail && err == nil {
				t.Errorf("test #%d: FAIL", index)
				t.Errorf("test #%d: normalize passed, expected fail", index)
				t.Logf("test #%d: output: \n%s", index, spew.Sdump(out))
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

// TestNormalizeNoEffectBelowTop checks that after normalization no call, sample
// or observe is nested inside of another expression.
func TestNormalizeNoEffectBelowTop(t *testing.T) {
	prog := body(
		def("a", &ast.Binary{
			Op:   ast.OpAdd,
			Left: &ast.Sample{Dist: call("normal", call("f", val(1)), val(1))},
			Right: &ast.Vector{Items: []ast.Node{
				call("g", &ast.Observe{Dist: call("normal", val(0), val(1)), Value: val(3)}),
			}},
		}),
	)
	data := &interfaces.Data{Session: interfaces.NewSession()}
	out, err := Normalize(data, prog)
	if err != nil {
		t.Errorf("normalize failed with: %+v", err)
		return
	}
	for _, item := range ast.Items(out) {
		def, ok := item.(*ast.Def)
		if !ok {
			t.Errorf("unexpected item: %s", item)
			continue
		}
		top := def.Value
		var inner ast.Node = top
		if s, ok := top.(*ast.Sample); ok {
			for _, arg := range s.Dist.(*ast.Call).Args {
				if !ast.IsPure(arg) {
					t.Errorf("impure distribution argument: %s", arg)
				}
			}
			continue
		}
		if o, ok := top.(*ast.Observe); ok {
			inner = o.Value
		}
		if c, ok := top.(*ast.Call); ok {
			for _, arg := range c.Args {
				if !ast.IsPure(arg) {
					t.Errorf("impure argument: %s", arg)
				}
			}
			continue
		}
		if !ast.IsPure(inner) {
			t.Errorf("impure nested expression: %s", inner)
		}
	}
}

func TestNormalizeMissingSession(t *testing.T) {
	_, err := Normalize(&interfaces.Data{}, call("f"))
	if !errors.Is(err, interfaces.ErrScopeDiscipline) {
		t.Errorf("expected a scope discipline error, got: %+v", err)
	}
}
