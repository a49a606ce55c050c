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
	"math"
	"strings"

	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/util/errwrap"
)

// maxRange is the longest range that gets folded into a literal vector.
const maxRange = 1 << 16

// fold rewrites a node whose children are already simplified.
func (obj *Simplifier) fold(node ast.Node) (ast.Node, error) {
	switch x := node.(type) {
	case *ast.Unary:
		return foldUnary(x), nil
	case *ast.Binary:
		return foldBinary(x), nil
	case *ast.Compare:
		return foldCompare(x), nil
	case *ast.Call:
		return foldCall(x), nil
	case *ast.Subscript:
		return foldSubscript(x)
	}
	return node, nil
}

func foldUnary(x *ast.Unary) ast.Node {
	switch item := x.Item.(type) {
	case *ast.Value:
		switch x.Op {
		case ast.OpNot:
			if b, ok := item.V.(bool); ok {
				return &ast.Value{Textarea: x.Textarea, V: !b}
			}
		case ast.OpSub:
			switch v := item.V.(type) {
			case int64:
				return &ast.Value{Textarea: x.Textarea, V: -v}
			case float64:
				return &ast.Value{Textarea: x.Textarea, V: -v}
			}
		case ast.OpAdd:
			switch item.V.(type) {
			case int64, float64:
				return item
			}
		}

	case *ast.Unary:
		if item.Op == x.Op && (x.Op == ast.OpNot || x.Op == ast.OpSub) {
			return item.Item // double negation
		}

	case *ast.Compare:
		if x.Op != ast.OpNot {
			break
		}
		if op, exists := ast.Inverse[item.Op]; exists {
			return &ast.Compare{Textarea: item.Textarea, Op: op, Left: item.Left, Right: item.Right}
		}
	}
	return x
}

func foldBinary(x *ast.Binary) ast.Node {
	lv, lok := x.Left.(*ast.Value)
	rv, rok := x.Right.(*ast.Value)

	switch x.Op {
	case ast.OpAnd, ast.OpOr:
		if !lok {
			return x
		}
		b, ok := lv.V.(bool)
		if !ok {
			return x
		}
		if (x.Op == ast.OpAnd) == b {
			return x.Right
		}
		return lv
	}

	if lok && rok {
		if v, ok := arith(x.Op, lv.V, rv.V); ok {
			return &ast.Value{Textarea: x.Textarea, V: v}
		}
		return x
	}

	if l, ok := x.Left.(*ast.Vector); ok && x.Op == ast.OpAdd {
		if r, ok := x.Right.(*ast.Vector); ok {
			items := append(append([]ast.Node{}, l.Items...), r.Items...)
			return &ast.Vector{Textarea: x.Textarea, Items: items}
		}
	}

	// identities
	switch x.Op {
	case ast.OpAdd:
		if rok && isNumber(rv, 0) {
			return x.Left
		}
		if lok && isNumber(lv, 0) {
			return x.Right
		}
	case ast.OpSub:
		if rok && isNumber(rv, 0) {
			return x.Left
		}
	case ast.OpMul:
		if rok && isNumber(rv, 1) {
			return x.Left
		}
		if lok && isNumber(lv, 1) {
			return x.Right
		}
		if rok && isNumber(rv, 0) && ast.IsPure(x.Left) {
			return rv
		}
		if lok && isNumber(lv, 0) && ast.IsPure(x.Right) {
			return lv
		}
	case ast.OpDiv:
		if rok && isNumber(rv, 1) {
			return x.Left
		}
	}
	return x
}

func foldCompare(x *ast.Compare) ast.Node {
	lv, lok := x.Left.(*ast.Value)
	if !lok {
		return x
	}

	if x.Op == ast.OpIn || x.Op == ast.OpNotIn {
		vec, ok := x.Right.(*ast.Vector)
		if !ok || !ast.IsConstant(vec) {
			return x
		}
		found := false
		for _, item := range vec.Items {
			if v, ok := item.(*ast.Value); ok && equalValues(lv.V, v.V) {
				found = true
				break
			}
		}
		return &ast.Value{Textarea: x.Textarea, V: found == (x.Op == ast.OpIn)}
	}

	rv, rok := x.Right.(*ast.Value)
	if !rok {
		return x
	}
	switch x.Op {
	case ast.OpEq, ast.OpIs:
		return &ast.Value{Textarea: x.Textarea, V: equalValues(lv.V, rv.V)}
	case ast.OpNe, ast.OpIsNot:
		return &ast.Value{Textarea: x.Textarea, V: !equalValues(lv.V, rv.V)}
	}

	var c int
	if a, ok := number(lv.V); ok {
		b, ok := number(rv.V)
		if !ok {
			return x
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	} else if a, ok := lv.V.(string); ok {
		b, ok := rv.V.(string)
		if !ok {
			return x
		}
		c = strings.Compare(a, b)
	} else {
		return x
	}

	var result bool
	switch x.Op {
	case ast.OpLt:
		result = c < 0
	case ast.OpLe:
		result = c <= 0
	case ast.OpGt:
		result = c > 0
	case ast.OpGe:
		result = c >= 0
	default:
		return x
	}
	return &ast.Value{Textarea: x.Textarea, V: result}
}

func foldCall(x *ast.Call) ast.Node {
	sym, ok := x.Func.(*ast.Symbol)
	if !ok || sym.Graph {
		return x
	}
	switch sym.Name {
	case "range":
		items, ok := Range(x.Args)
		if !ok {
			return x
		}
		return &ast.Vector{Textarea: x.Textarea, Items: items}

	case "len":
		if len(x.Args) != 1 {
			return x
		}
		switch arg := x.Args[0].(type) {
		case *ast.Vector:
			return &ast.Value{Textarea: x.Textarea, V: int64(len(arg.Items))}
		case *ast.Value:
			if s, ok := arg.V.(string); ok {
				return &ast.Value{Textarea: x.Textarea, V: int64(len([]rune(s)))}
			}
		}
	}
	return x
}

// Range returns the items of a call to range with constant integer arguments.
func Range(args []ast.Node) ([]ast.Node, bool) {
	ints := []int64{}
	for _, arg := range args {
		i, ok := ast.Int(arg)
		if !ok {
			return nil, false
		}
		ints = append(ints, i)
	}
	var start, stop, step int64 = 0, 0, 1
	switch len(ints) {
	case 1:
		stop = ints[0]
	case 2:
		start, stop = ints[0], ints[1]
	case 3:
		start, stop, step = ints[0], ints[1], ints[2]
	default:
		return nil, false
	}
	if step == 0 {
		return nil, false
	}
	items := []ast.Node{}
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if len(items) >= maxRange {
			return nil, false
		}
		items = append(items, &ast.Value{V: i})
	}
	return items, true
}

func foldSubscript(x *ast.Subscript) (ast.Node, error) {
	switch base := x.Base.(type) {
	case *ast.Value:
		if base.V == nil {
			return nil, errwrap.Wrapf(interfaces.ErrShape, "subscript of None at line %d", x.Pos())
		}
		s, ok := base.V.(string)
		if !ok {
			return nil, errwrap.Wrapf(interfaces.ErrShape, "subscript of scalar `%s` at line %d", base, x.Pos())
		}
		i, ok := ast.Int(x.Index)
		if !ok {
			return x, nil
		}
		runes := []rune(s)
		if i < 0 {
			i += int64(len(runes))
		}
		if i < 0 || i >= int64(len(runes)) {
			return nil, errwrap.Wrapf(interfaces.ErrShape, "index %d out of range at line %d", i, x.Pos())
		}
		return &ast.Value{Textarea: x.Textarea, V: string(runes[i])}, nil

	case *ast.Vector:
		if slice, ok := x.Index.(*ast.Slice); ok {
			start, stop, ok := bounds(slice, int64(len(base.Items)))
			if !ok {
				return x, nil
			}
			items := append([]ast.Node{}, base.Items[start:stop]...)
			return &ast.Vector{Textarea: x.Textarea, Items: items}, nil
		}
		v, ok := x.Index.(*ast.Value)
		if !ok {
			return x, nil
		}
		i, ok := v.V.(int64)
		if !ok {
			return nil, errwrap.Wrapf(interfaces.ErrShape, "index `%s` at line %d is not an integer", v, x.Pos())
		}
		n := int64(len(base.Items))
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return nil, errwrap.Wrapf(interfaces.ErrShape, "index %d out of range at line %d", i, x.Pos())
		}
		return base.Items[i], nil

	case *ast.Dict:
		key, ok := x.Index.(*ast.Value)
		if !ok {
			return x, nil
		}
		for i, k := range base.Keys {
			if kv, ok := k.(*ast.Value); ok && equalValues(kv.V, key.V) {
				return base.Values[i], nil
			}
		}
	}
	return x, nil
}

// bounds returns the clamped bounds of a constant slice.
func bounds(slice *ast.Slice, n int64) (int64, int64, bool) {
	get := func(node ast.Node, def int64) (int64, bool) {
		if node == nil {
			return def, true
		}
		i, ok := ast.Int(node)
		if !ok {
			return 0, false
		}
		if i < 0 {
			i += n
		}
		if i < 0 {
			i = 0
		}
		if i > n {
			i = n
		}
		return i, true
	}
	start, ok := get(slice.Start, 0)
	if !ok {
		return 0, 0, false
	}
	stop, ok := get(slice.Stop, n)
	if !ok {
		return 0, 0, false
	}
	if stop < start {
		stop = start
	}
	return start, stop, true
}

func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func isNumber(v *ast.Value, n float64) bool {
	f, ok := number(v.V)
	return ok && f == n
}

func equalValues(a, b interface{}) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	return a == b
}

// arith folds an arithmetic operator over two constants. Integers stay
// integers except for true division.
func arith(op string, a, b interface{}) (interface{}, bool) {
	if x, ok := a.(string); ok {
		y, ok := b.(string)
		if ok && op == ast.OpAdd {
			return x + y, true
		}
		return nil, false
	}

	x, xInt := a.(int64)
	y, yInt := b.(int64)
	if xInt && yInt {
		switch op {
		case ast.OpAdd:
			return x + y, true
		case ast.OpSub:
			return x - y, true
		case ast.OpMul:
			return x * y, true
		case ast.OpDiv:
			if y == 0 {
				return nil, false
			}
			return float64(x) / float64(y), true
		case ast.OpFloorDiv:
			if y == 0 {
				return nil, false
			}
			q := x / y
			if (x%y != 0) && ((x < 0) != (y < 0)) {
				q--
			}
			return q, true
		case ast.OpMod:
			if y == 0 {
				return nil, false
			}
			m := x % y
			if m != 0 && ((m < 0) != (y < 0)) {
				m += y
			}
			return m, true
		case ast.OpPow:
			if y < 0 {
				return math.Pow(float64(x), float64(y)), true
			}
			if y > 63 {
				return nil, false // leave big powers alone
			}
			r := int64(1)
			for i := int64(0); i < y; i++ {
				r *= x
			}
			return r, true
		}
		return nil, false
	}

	f, ok := number(a)
	if !ok {
		return nil, false
	}
	g, ok := number(b)
	if !ok {
		return nil, false
	}
	switch op {
	case ast.OpAdd:
		return f + g, true
	case ast.OpSub:
		return f - g, true
	case ast.OpMul:
		return f * g, true
	case ast.OpDiv:
		if g == 0 {
			return nil, false
		}
		return f / g, true
	case ast.OpFloorDiv:
		if g == 0 {
			return nil, false
		}
		return math.Floor(f / g), true
	case ast.OpMod:
		if g == 0 {
			return nil, false
		}
		return f - g*math.Floor(f/g), true
	case ast.OpPow:
		return math.Pow(f, g), true
	}
	return nil, false
}
