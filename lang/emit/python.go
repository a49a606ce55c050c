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

// Package emit turns lowered nodes and finished graphs into python code which
// runs against a torch style distributions module.
package emit

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/purpleidea/probgraph/lang/ast"
)

// DefaultStateObject is the name of the dictionary that emitted code keeps the
// values of graph nodes in.
const DefaultStateObject = "state"

// Python is an emitter for python expressions. It implements the
// interfaces.Emitter interface.
type Python struct {
	// StateObject is the dictionary that graph references are looked up
	// in. If empty, references are emitted as bare names.
	StateObject string
}

// Emit returns the python form of a lowered expression. Graph references whose
// value is in the state are replaced by that value.
func (obj *Python) Emit(node ast.Node, state map[string]interface{}) (string, error) {
	switch x := node.(type) {
	case nil:
		return "None", nil

	case *ast.Value:
		return Literal(x.V)

	case *ast.Symbol:
		if !x.Graph {
			return x.Name, nil
		}
		if v, exists := state[x.Name]; exists {
			return Literal(v)
		}
		if obj.StateObject == "" {
			return x.Name, nil
		}
		return fmt.Sprintf("%s[%s]", obj.StateObject, strconv.Quote(x.Name)), nil

	case *ast.Unary:
		item, err := obj.Emit(x.Item, state)
		if err != nil {
			return "", err
		}
		if x.Op == ast.OpNot {
			return fmt.Sprintf("(not %s)", item), nil
		}
		return fmt.Sprintf("(%s%s)", x.Op, item), nil

	case *ast.Binary:
		return obj.operator(x.Op, x.Left, x.Right, state)

	case *ast.Compare:
		return obj.operator(x.Op, x.Left, x.Right, state)

	case *ast.Call:
		fn, err := obj.Emit(x.Func, state)
		if err != nil {
			return "", err
		}
		args, err := obj.list(x.Args, state)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", fn, args), nil

	case *ast.Attribute:
		base, err := obj.Emit(x.Base, state)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.%s", base, x.Attr), nil

	case *ast.Subscript:
		base, err := obj.Emit(x.Base, state)
		if err != nil {
			return "", err
		}
		index, err := obj.Emit(x.Index, state)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s]", base, index), nil

	case *ast.Slice:
		start, stop := "", ""
		if x.Start != nil {
			s, err := obj.Emit(x.Start, state)
			if err != nil {
				return "", err
			}
			start = s
		}
		if x.Stop != nil {
			s, err := obj.Emit(x.Stop, state)
			if err != nil {
				return "", err
			}
			stop = s
		}
		return start + ":" + stop, nil

	case *ast.Vector:
		items, err := obj.list(x.Items, state)
		if err != nil {
			return "", err
		}
		return "[" + items + "]", nil

	case *ast.Dict:
		s := []string{}
		for i := range x.Keys {
			k, err := obj.Emit(x.Keys[i], state)
			if err != nil {
				return "", err
			}
			v, err := obj.Emit(x.Values[i], state)
			if err != nil {
				return "", err
			}
			s = append(s, k+": "+v)
		}
		return "{" + strings.Join(s, ", ") + "}", nil

	case *ast.If:
		if x.Else == nil {
			return "", fmt.Errorf("can't emit an if without else as an expression")
		}
		test, err := obj.Emit(x.Test, state)
		if err != nil {
			return "", err
		}
		a, err := obj.Emit(x.Then, state)
		if err != nil {
			return "", err
		}
		b, err := obj.Emit(x.Else, state)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s if %s else %s)", a, test, b), nil

	case *ast.ListFor:
		e, err := obj.Emit(x.Expr, state)
		if err != nil {
			return "", err
		}
		src, err := obj.Emit(x.Source, state)
		if err != nil {
			return "", err
		}
		s := fmt.Sprintf("[%s for %s in %s", e, x.Target, src)
		if x.Test != nil {
			test, err := obj.Emit(x.Test, state)
			if err != nil {
				return "", err
			}
			s += " if " + test
		}
		return s + "]", nil

	case *ast.Body:
		if len(x.Items) == 1 {
			return obj.Emit(x.Items[0], state)
		}
	}
	return "", fmt.Errorf("can't emit `%s` as an expression", node)
}

func (obj *Python) operator(op string, left, right ast.Node, state map[string]interface{}) (string, error) {
	a, err := obj.Emit(left, state)
	if err != nil {
		return "", err
	}
	b, err := obj.Emit(right, state)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", a, op, b), nil
}

func (obj *Python) list(nodes []ast.Node, state map[string]interface{}) (string, error) {
	s := []string{}
	for _, x := range nodes {
		item, err := obj.Emit(x, state)
		if err != nil {
			return "", err
		}
		s = append(s, item)
	}
	return strings.Join(s, ", "), nil
}

// Literal returns the python form of a runtime value.
func Literal(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "None", nil
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		switch {
		case math.IsInf(x, 1):
			return "float('inf')", nil
		case math.IsInf(x, -1):
			return "float('-inf')", nil
		case math.IsNaN(x):
			return "float('nan')", nil
		}
		return ast.ValueString(x), nil
	case string:
		return strconv.Quote(x), nil
	case []interface{}:
		s := []string{}
		for _, item := range x {
			l, err := Literal(item)
			if err != nil {
				return "", err
			}
			s = append(s, l)
		}
		return "[" + strings.Join(s, ", ") + "]", nil
	case []float64:
		s := []string{}
		for _, f := range x {
			l, _ := Literal(f)
			s = append(s, l)
		}
		return "[" + strings.Join(s, ", ") + "]", nil
	case map[string]interface{}:
		keys := []string{}
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		s := []string{}
		for _, k := range keys {
			l, err := Literal(x[k])
			if err != nil {
				return "", err
			}
			s = append(s, strconv.Quote(k)+": "+l)
		}
		return "{" + strings.Join(s, ", ") + "}", nil
	}
	return "", fmt.Errorf("unsupported value of type %T", v)
}
