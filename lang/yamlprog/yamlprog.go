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

// Package yamlprog provides the facilities for loading a program from a yaml
// file. A program is a list of statements, and each statement or expression is
// a yaml value:
//
//	name: coin
//	program:
//	  - import: math
//	  - p: {sample: {beta: [1, 1]}}
//	  - if: {">": [p, 0.5]}
//	    then:
//	      - observe: [{bernoulli: [p]}, 1]
//	    else:
//	      - observe: [{bernoulli: [p]}, 0]
//
// Plain scalars are numbers, booleans, null or names. A dotted name is an
// attribute. Quoted scalars are strings. A sequence is a vector. A mapping with
// a single key is an operator, a keyword or a call of the function with that
// name.
package yamlprog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/util"
	"github.com/purpleidea/probgraph/util/errwrap"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrSyntax is returned when a yaml value doesn't describe a valid program.
const ErrSyntax = util.Error("invalid program")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var binaryOps = map[string]struct{}{
	ast.OpAdd: {}, ast.OpSub: {}, ast.OpMul: {}, ast.OpDiv: {},
	ast.OpFloorDiv: {}, ast.OpMod: {}, ast.OpPow: {},
	ast.OpAnd: {}, ast.OpOr: {},
}

var compareOps = map[string]struct{}{
	ast.OpEq: {}, ast.OpNe: {}, ast.OpLt: {}, ast.OpLe: {}, ast.OpGt: {},
	ast.OpGe: {}, ast.OpIn: {}, ast.OpNotIn: {}, ast.OpIs: {}, ast.OpIsNot: {},
}

// keywords are the statement keys which can't be assigned to.
var keywords = []string{
	"def", "if", "for", "while", "return", "break", "import", "from",
	"expr", "sample", "observe", "let", "pass",
}

// Program is a parsed program.
type Program struct {
	// Name is an optional name for the program.
	Name string

	// Body is the list of statements.
	Body ast.Node
}

// Parse parses a program from yaml. The document is either a list of
// statements, or a mapping with an optional `name` and a `program` list.
func Parse(data []byte) (*Program, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errwrap.Wrapf(err, "yamlprog: could not parse yaml")
	}
	if len(doc.Content) == 0 { // empty document
		return &Program{Body: ast.MakeBody()}, nil
	}
	root := resolve(doc.Content[0])

	program := &Program{}
	list := root
	if root.Kind == yaml.MappingNode {
		list = nil
		for i := 0; i+1 < len(root.Content); i += 2 {
			key, value := root.Content[i], resolve(root.Content[i+1])
			switch key.Value {
			case "name":
				program.Name = value.Value
			case "program":
				list = value
			default:
				return nil, syntax(key, "unknown top level key `%s`", key.Value)
			}
		}
		if list == nil {
			return nil, syntax(root, "missing `program`")
		}
	}

	body, err := block(list)
	if err != nil {
		return nil, err
	}
	program.Body = body
	return program, nil
}

// ParseFile parses the program in a file.
func ParseFile(fs afero.Fs, filename string) (*Program, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, errwrap.Wrapf(err, "yamlprog: could not read `%s`", filename)
	}
	program, err := Parse(data)
	if err != nil {
		return nil, errwrap.Wrapf(err, "%s", filename)
	}
	return program, nil
}

func syntax(node *yaml.Node, format string, v ...interface{}) error {
	return errwrap.Wrapf(ErrSyntax, "yamlprog: line %d: %s", node.Line, fmt.Sprintf(format, v...))
}

func pos(node *yaml.Node) ast.Textarea {
	return ast.Textarea{Line: node.Line}
}

// resolve follows aliases.
func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

// field is one key and value of a mapping.
type field struct {
	key   *yaml.Node
	value *yaml.Node
}

// fields returns the keys and values of a mapping, keyed by name.
func fields(node *yaml.Node) (map[string]field, []string, error) {
	m := make(map[string]field)
	keys := []string{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], resolve(node.Content[i+1])
		if _, exists := m[key.Value]; exists {
			return nil, nil, syntax(key, "duplicate key `%s`", key.Value)
		}
		m[key.Value] = field{key: key, value: value}
		keys = append(keys, key.Value)
	}
	return m, keys, nil
}

// block parses a list of statements. A single statement is also accepted.
func block(node *yaml.Node) (ast.Node, error) {
	node = resolve(node)
	if node.Kind != yaml.SequenceNode {
		return statement(node)
	}
	items := []ast.Node{}
	for _, x := range node.Content {
		item, err := statement(resolve(x))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &ast.Body{Textarea: pos(node), Items: items}, nil
}

// statement parses one statement.
func statement(node *yaml.Node) (ast.Node, error) {
	if node.Kind == yaml.ScalarNode {
		switch node.Value {
		case "pass":
			return &ast.Body{Textarea: pos(node), Items: []ast.Node{}}, nil
		case "break":
			return &ast.Break{Textarea: pos(node)}, nil
		case "return":
			return &ast.Return{Textarea: pos(node)}, nil
		}
		return expr(node)
	}
	if node.Kind != yaml.MappingNode {
		return expr(node)
	}

	m, keys, err := fields(node)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, syntax(node, "empty statement")
	}
	head := m[keys[0]]

	switch keys[0] {
	case "def":
		return function(node, m)

	case "if":
		if err := only(node, keys, "if", "then", "else"); err != nil {
			return nil, err
		}
		test, err := expr(head.value)
		if err != nil {
			return nil, err
		}
		th, ok := m["then"]
		if !ok {
			return nil, syntax(node, "if without `then`")
		}
		then, err := block(th.value)
		if err != nil {
			return nil, err
		}
		var el ast.Node
		if e, ok := m["else"]; ok {
			if el, err = block(e.value); err != nil {
				return nil, err
			}
		}
		return &ast.If{Textarea: pos(head.key), Test: test, Then: then, Else: el}, nil

	case "for":
		if err := only(node, keys, "for", "in", "do"); err != nil {
			return nil, err
		}
		target, err := name(head.value)
		if err != nil {
			return nil, err
		}
		source, err := required(node, m, "in", expr)
		if err != nil {
			return nil, err
		}
		body, err := required(node, m, "do", block)
		if err != nil {
			return nil, err
		}
		return &ast.For{Textarea: pos(head.key), Target: target, Source: source, Body: body}, nil

	case "let":
		if err := only(node, keys, "let", "be", "in"); err != nil {
			return nil, err
		}
		target, err := name(head.value)
		if err != nil {
			return nil, err
		}
		source, err := required(node, m, "be", expr)
		if err != nil {
			return nil, err
		}
		body, err := required(node, m, "in", block)
		if err != nil {
			return nil, err
		}
		return &ast.Let{Textarea: pos(head.key), Target: target, Source: source, Body: body}, nil

	case "while":
		if err := only(node, keys, "while", "do"); err != nil {
			return nil, err
		}
		test, err := expr(head.value)
		if err != nil {
			return nil, err
		}
		body, err := required(node, m, "do", block)
		if err != nil {
			return nil, err
		}
		return &ast.While{Textarea: pos(head.key), Test: test, Body: body}, nil

	case "return":
		if err := only(node, keys, "return"); err != nil {
			return nil, err
		}
		r := &ast.Return{Textarea: pos(head.key)}
		if head.value.ShortTag() != "!!null" {
			if r.Value, err = expr(head.value); err != nil {
				return nil, err
			}
		}
		return r, nil

	case "import":
		if err := only(node, keys, "import"); err != nil {
			return nil, err
		}
		return &ast.Import{Textarea: pos(head.key), Module: head.value.Value}, nil

	case "from":
		if err := only(node, keys, "from", "import"); err != nil {
			return nil, err
		}
		imp := &ast.Import{Textarea: pos(head.key), Module: head.value.Value}
		names, ok := m["import"]
		if !ok {
			return nil, syntax(node, "from without `import`")
		}
		list := []*yaml.Node{names.value}
		if names.value.Kind == yaml.SequenceNode {
			list = names.value.Content
		}
		for _, x := range list {
			n, err := name(resolve(x))
			if err != nil {
				return nil, err
			}
			imp.Names = append(imp.Names, n)
		}
		return imp, nil

	case "expr":
		if err := only(node, keys, "expr"); err != nil {
			return nil, err
		}
		return expr(head.value)
	}

	// an assignment, or an expression such as a call
	if len(keys) == 1 && identifier.MatchString(keys[0]) && !util.StrInList(keys[0], keywords) && !callable(head.value) {
		value, err := expr(head.value)
		if err != nil {
			return nil, err
		}
		return &ast.Def{Textarea: pos(head.key), Name: keys[0], Value: value}, nil
	}
	return expr(node)
}

// callable returns true if a statement value looks like call arguments rather
// than an assigned value. Calls are written with a list of arguments, while an
// assigned list is written as {list: [...]}.
func callable(node *yaml.Node) bool {
	return node.Kind == yaml.SequenceNode
}

// only checks that a mapping has no keys other than the allowed ones.
func only(node *yaml.Node, keys []string, allowed ...string) error {
	for _, k := range keys {
		if !util.StrInList(k, allowed) {
			return syntax(node, "unexpected key `%s`, expected one of: %s", k, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// required parses a mandatory field of a mapping.
func required(node *yaml.Node, m map[string]field, key string, fn func(*yaml.Node) (ast.Node, error)) (ast.Node, error) {
	f, ok := m[key]
	if !ok {
		return nil, syntax(node, "missing `%s`", key)
	}
	return fn(f.value)
}

// name parses a plain identifier.
func name(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode || !identifier.MatchString(node.Value) {
		return "", syntax(node, "`%s` is not a name", node.Value)
	}
	return node.Value, nil
}

// function parses a function definition.
func function(node *yaml.Node, m map[string]field) (ast.Node, error) {
	keys := []string{}
	for k := range m {
		keys = append(keys, k)
	}
	if err := only(node, keys, "def", "params", "body"); err != nil {
		return nil, err
	}
	head := m["def"]
	fn, err := name(head.value)
	if err != nil {
		return nil, err
	}
	params := []string{}
	if p, ok := m["params"]; ok {
		if p.value.Kind != yaml.SequenceNode {
			return nil, syntax(p.value, "params must be a list")
		}
		for _, x := range p.value.Content {
			n, err := name(resolve(x))
			if err != nil {
				return nil, err
			}
			if util.StrInList(n, params) {
				return nil, syntax(x, "duplicate parameter `%s`", n)
			}
			params = append(params, n)
		}
	}
	body, err := required(node, m, "body", block)
	if err != nil {
		return nil, err
	}
	return &ast.Function{Textarea: pos(head.key), Name: fn, Params: params, Body: body}, nil
}

// args returns the argument nodes of an operator or call. A sequence is a list
// of arguments, and anything else is a single argument.
func args(node *yaml.Node) ([]ast.Node, error) {
	list := []*yaml.Node{node}
	if node.Kind == yaml.SequenceNode {
		list = node.Content
	} else if node.ShortTag() == "!!null" {
		list = nil
	}
	out := []ast.Node{}
	for _, x := range list {
		n, err := expr(resolve(x))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// scalar parses a scalar.
func scalar(node *yaml.Node) (ast.Node, error) {
	if node.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return &ast.Value{Textarea: pos(node), V: node.Value}, nil
	}
	switch node.ShortTag() {
	case "!!null":
		return &ast.Value{Textarea: pos(node), V: nil}, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, syntax(node, "bad boolean `%s`", node.Value)
		}
		return &ast.Value{Textarea: pos(node), V: b}, nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return nil, syntax(node, "bad integer `%s`", node.Value)
		}
		return &ast.Value{Textarea: pos(node), V: i}, nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, syntax(node, "bad float `%s`", node.Value)
		}
		return &ast.Value{Textarea: pos(node), V: f}, nil
	}

	// a name, possibly dotted
	parts := strings.Split(node.Value, ".")
	for _, p := range parts {
		if !identifier.MatchString(p) {
			return &ast.Value{Textarea: pos(node), V: node.Value}, nil
		}
	}
	var out ast.Node = &ast.Symbol{Textarea: pos(node), Name: parts[0], Original: parts[0]}
	for _, p := range parts[1:] {
		out = &ast.Attribute{Textarea: pos(node), Base: out, Attr: p}
	}
	return out, nil
}

// expr parses an expression.
func expr(node *yaml.Node) (ast.Node, error) {
	node = resolve(node)
	switch node.Kind {
	case yaml.ScalarNode:
		return scalar(node)

	case yaml.SequenceNode:
		items, err := args(node)
		if err != nil {
			return nil, err
		}
		return &ast.Vector{Textarea: pos(node), Items: items}, nil

	case yaml.MappingNode:
		// pass

	default:
		return nil, syntax(node, "unexpected yaml node")
	}

	m, keys, err := fields(node)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return &ast.Dict{Textarea: pos(node), Keys: []ast.Node{}, Values: []ast.Node{}}, nil
	}
	head := m[keys[0]]
	op, tx := keys[0], pos(head.key)

	switch op {
	case "if": // if expression
		if err := only(node, keys, "if", "then", "else"); err != nil {
			return nil, err
		}
		test, err := expr(head.value)
		if err != nil {
			return nil, err
		}
		th, err := required(node, m, "then", expr)
		if err != nil {
			return nil, err
		}
		el, err := required(node, m, "else", expr)
		if err != nil {
			return nil, err
		}
		return &ast.If{Textarea: tx, Test: test, Then: th, Else: el}, nil

	case "for": // list comprehension
		if err := only(node, keys, "for", "in", "yield", "when"); err != nil {
			return nil, err
		}
		target, err := name(head.value)
		if err != nil {
			return nil, err
		}
		source, err := required(node, m, "in", expr)
		if err != nil {
			return nil, err
		}
		e, err := required(node, m, "yield", expr)
		if err != nil {
			return nil, err
		}
		lf := &ast.ListFor{Textarea: tx, Target: target, Source: source, Expr: e}
		if w, ok := m["when"]; ok {
			if lf.Test, err = expr(w.value); err != nil {
				return nil, err
			}
		}
		return lf, nil

	case "sample":
		if err := only(node, keys, "sample", "size"); err != nil {
			return nil, err
		}
		dist, err := expr(head.value)
		if err != nil {
			return nil, err
		}
		s := &ast.Sample{Textarea: tx, Dist: dist}
		if f, ok := m["size"]; ok {
			if s.Size, err = expr(f.value); err != nil {
				return nil, err
			}
		}
		return s, nil

	case "dict":
		if err := only(node, keys, "dict"); err != nil {
			return nil, err
		}
		if head.value.Kind != yaml.MappingNode {
			return nil, syntax(head.value, "dict must be a mapping")
		}
		d := &ast.Dict{Textarea: tx, Keys: []ast.Node{}, Values: []ast.Node{}}
		for i := 0; i+1 < len(head.value.Content); i += 2 {
			k, v := head.value.Content[i], resolve(head.value.Content[i+1])
			value, err := expr(v)
			if err != nil {
				return nil, err
			}
			d.Keys = append(d.Keys, &ast.Value{Textarea: pos(k), V: k.Value})
			d.Values = append(d.Values, value)
		}
		return d, nil
	}

	if len(keys) != 1 {
		return nil, syntax(node, "expected a single key, got: %s", strings.Join(keys, ", "))
	}
	list, err := args(head.value)
	if err != nil {
		return nil, err
	}
	arity := func(n int) error {
		if len(list) != n {
			return syntax(head.key, "`%s` takes %d arguments, got %d", op, n, len(list))
		}
		return nil
	}

	if _, exists := binaryOps[op]; exists {
		if op == ast.OpSub && len(list) == 1 {
			return &ast.Unary{Textarea: tx, Op: op, Item: list[0]}, nil
		}
		if len(list) < 2 {
			return nil, syntax(head.key, "`%s` takes at least 2 arguments, got %d", op, len(list))
		}
		out := list[0]
		for _, x := range list[1:] { // left associative
			out = &ast.Binary{Textarea: tx, Op: op, Left: out, Right: x}
		}
		return out, nil
	}
	if _, exists := compareOps[op]; exists {
		if err := arity(2); err != nil {
			return nil, err
		}
		return &ast.Compare{Textarea: tx, Op: op, Left: list[0], Right: list[1]}, nil
	}

	switch op {
	case ast.OpNot:
		if err := arity(1); err != nil {
			return nil, err
		}
		return &ast.Unary{Textarea: tx, Op: op, Item: list[0]}, nil

	case "observe":
		if err := arity(2); err != nil {
			return nil, err
		}
		return &ast.Observe{Textarea: tx, Dist: list[0], Value: list[1]}, nil

	case "index":
		if err := arity(2); err != nil {
			return nil, err
		}
		return &ast.Subscript{Textarea: tx, Base: list[0], Index: list[1]}, nil

	case "slice":
		if len(list) != 2 && len(list) != 3 {
			return nil, syntax(head.key, "`slice` takes 2 or 3 arguments, got %d", len(list))
		}
		s := &ast.Slice{Textarea: tx, Start: list[1]}
		if len(list) == 3 {
			s.Stop = list[2]
		}
		return &ast.Subscript{Textarea: tx, Base: list[0], Index: s}, nil

	case "list":
		return &ast.Vector{Textarea: tx, Items: list}, nil

	case "str":
		if err := arity(1); err != nil {
			return nil, err
		}
		return &ast.Value{Textarea: tx, V: head.value.Value}, nil
	}

	// a call
	fn, err := scalar(head.key)
	if err != nil {
		return nil, err
	}
	if _, ok := fn.(*ast.Value); ok {
		return nil, syntax(head.key, "`%s` is not a function name", op)
	}
	return &ast.Call{Textarea: tx, Func: fn, Args: list}, nil
}
