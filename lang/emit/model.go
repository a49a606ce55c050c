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

package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/model"
	"github.com/purpleidea/probgraph/util"
)

// DistributionsModule is the python module that distribution families are
// emitted from.
const DistributionsModule = "torch.distributions"

// Program emits the python module of a finished graph. It has a sample_prior
// and a log_density function, both of which visit the nodes in creation order.
func (obj *Python) Program(graph *model.Graph) (string, error) {
	state := obj.StateObject
	if state == "" {
		state = DefaultStateObject
	}
	p := &Python{StateObject: state}

	prior := []string{}
	density := []string{}
	for _, n := range graph.Nodes() {
		key := fmt.Sprintf("%s[%s]", state, strconv.Quote(n.Name()))
		switch x := n.(type) {
		case *model.DataNode:
			code, err := p.code(x.Code, x.Data)
			if err != nil {
				return "", err
			}
			line := fmt.Sprintf("%s = %s", key, code)
			prior = append(prior, line)
			density = append(density, line)

		case *model.ConditionNode:
			code, err := p.code(x.Code, x.Test)
			if err != nil {
				return "", err
			}
			line := fmt.Sprintf("%s = %s", key, code)
			// the test can only run if everything it refers to ran
			conds := []model.Condition{}
			for _, a := range x.Ancestors().Sorted() {
				conds = append(conds, a.Conditions...)
			}
			prior = append(prior, guard(p, conds, line)...)
			density = append(density, guard(p, conds, line)...)

		case *model.Vertex:
			d, err := p.code(x.Code, distribution(x))
			if err != nil {
				return "", err
			}
			if x.Observed {
				v, err := p.code(x.ValueCode, x.Value)
				if err != nil {
					return "", err
				}
				prior = append(prior, guard(p, x.Conditions, fmt.Sprintf("%s = %s", key, v))...)
				density = append(density, guard(p, x.Conditions, fmt.Sprintf("log_pdf = log_pdf + %s.log_prob(%s).sum()", d, v))...)
				continue
			}
			size := ""
			if x.SampleSize > 0 {
				size = fmt.Sprintf("(%d,)", x.SampleSize)
			}
			prior = append(prior, guard(p, x.Conditions, fmt.Sprintf("%s = %s.sample(%s)", key, d, size))...)
			density = append(density, guard(p, x.Conditions, fmt.Sprintf("log_pdf = log_pdf + %s.log_prob(%s).sum()", d, key))...)
		}
	}

	lines := []string{}
	lines = append(lines, "import math")
	lines = append(lines, fmt.Sprintf("import %s as dist", DistributionsModule))
	for _, i := range graph.Imports() {
		lines = append(lines, fmt.Sprintf("import %s", i))
	}
	lines = append(lines, "", "")
	lines = append(lines, fmt.Sprintf("def sample_prior(%s):", state))
	for _, l := range prior {
		lines = append(lines, util.Indent(l, "    "))
	}
	lines = append(lines, fmt.Sprintf("    return %s", state))
	lines = append(lines, "", "")
	lines = append(lines, fmt.Sprintf("def log_density(%s):", state))
	lines = append(lines, "    log_pdf = 0.0")
	for _, l := range density {
		lines = append(lines, util.Indent(l, "    "))
	}
	lines = append(lines, "    return log_pdf")
	return strings.Join(lines, "\n") + "\n", nil
}

// code returns the stored code of a node, or emits it again if there is none.
func (obj *Python) code(code string, node ast.Node) (string, error) {
	if code != "" {
		return code, nil
	}
	return obj.Emit(node, nil)
}

// distribution rebuilds the constructor call of a vertex.
func distribution(v *model.Vertex) ast.Node {
	return &ast.Call{
		Func: &ast.Attribute{Base: ast.NewSymbol("dist"), Attr: v.Family},
		Args: v.Args,
	}
}

// guard wraps a line into an if statement which checks the conditions.
func guard(p *Python, conds []model.Condition, line string) []string {
	if len(conds) == 0 {
		return []string{line}
	}
	tests := []string{}
	seen := []string{}
	for _, c := range conds {
		if util.StrInList(c.String(), seen) {
			continue
		}
		seen = append(seen, c.String())
		ref := fmt.Sprintf("%s[%s]", p.StateObject, strconv.Quote(c.Node.Name()))
		if c.Truth {
			tests = append(tests, ref)
		} else {
			tests = append(tests, "not "+ref)
		}
	}
	return []string{
		fmt.Sprintf("if %s:", strings.Join(tests, " and ")),
		"    " + line,
	}
}
