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

	"github.com/purpleidea/probgraph/util/errwrap"
)

// Model is a finished graph prepared for an inference algorithm. It evaluates
// the nodes of the graph in creation order.
type Model struct {
	Graph *Graph

	nodes []Node
}

// NewModel validates the graph and builds a model out of it.
func NewModel(graph *Graph) (*Model, error) {
	if graph == nil {
		return nil, fmt.Errorf("no graph")
	}
	if err := graph.Validate(); err != nil {
		return nil, errwrap.Wrapf(err, "invalid graph")
	}
	return &Model{
		Graph: graph,
		nodes: graph.Nodes(),
	}, nil
}

// args evaluates the arguments of a vertex.
func (obj *Model) args(v *Vertex, state map[string]interface{}, runtime Runtime) ([]interface{}, error) {
	args := []interface{}{}
	for _, a := range v.Args {
		x, err := Eval(a, state, runtime)
		if err != nil {
			return nil, errwrap.Wrapf(err, "argument of %s", v)
		}
		args = append(args, x)
	}
	return args, nil
}

// prepare writes the value of a data or condition node into the state.
func (obj *Model) prepare(n Node, state map[string]interface{}, runtime Runtime) error {
	switch x := n.(type) {
	case *DataNode:
		v, err := Eval(x.Data, state, runtime)
		if err != nil {
			return errwrap.Wrapf(err, "data %s", x)
		}
		state[x.Name()] = v

	case *ConditionNode:
		v, err := Eval(x.Test, state, runtime)
		if err != nil {
			if !obj.reachable(x, state) {
				return nil // a test under an untaken branch
			}
			return errwrap.Wrapf(err, "condition %s", x)
		}
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("condition %s is not a boolean: %v", x, v)
		}
		state[x.Name()] = b
	}
	return nil
}

// reachable returns false if some vertex that the test refers to wasn't
// evaluated.
func (obj *Model) reachable(c *ConditionNode, state map[string]interface{}) bool {
	for _, a := range c.Ancestors().Sorted() {
		if !a.Satisfied(state) {
			return false
		}
	}
	return true
}

// SamplePrior runs the model forwards. Data and condition values are written
// into the state, as are the drawn values of sampled vertices and the values
// of observed vertices. Vertices whose conditions don't hold are skipped.
func (obj *Model) SamplePrior(state map[string]interface{}, runtime Runtime) error {
	for _, n := range obj.nodes {
		v, ok := n.(*Vertex)
		if !ok {
			if err := obj.prepare(n, state, runtime); err != nil {
				return err
			}
			continue
		}
		if !v.Satisfied(state) {
			delete(state, v.Name())
			continue
		}
		if v.Observed {
			value, err := Eval(v.Value, state, runtime)
			if err != nil {
				return errwrap.Wrapf(err, "observed value of %s", v)
			}
			state[v.Name()] = value
			continue
		}
		args, err := obj.args(v, state, runtime)
		if err != nil {
			return err
		}
		value, err := runtime.Sample(v.Family, args, v.SampleSize)
		if err != nil {
			return errwrap.Wrapf(err, "sampling %s failed", v)
		}
		state[v.Name()] = value
	}
	return nil
}

// LogDensity returns the joint log density of the state. Data and condition
// values are recomputed from the state. Vertices whose conditions don't hold
// contribute nothing.
func (obj *Model) LogDensity(state map[string]interface{}, runtime Runtime) (float64, error) {
	result := 0.0
	for _, n := range obj.nodes {
		v, ok := n.(*Vertex)
		if !ok {
			if err := obj.prepare(n, state, runtime); err != nil {
				return 0, err
			}
			continue
		}
		if !v.Satisfied(state) {
			continue
		}
		var value interface{}
		if v.Observed {
			x, err := Eval(v.Value, state, runtime)
			if err != nil {
				return 0, errwrap.Wrapf(err, "observed value of %s", v)
			}
			value = x
		} else {
			x, exists := state[v.Name()]
			if !exists {
				return 0, fmt.Errorf("%s has no value in the state", v)
			}
			value = x
		}
		args, err := obj.args(v, state, runtime)
		if err != nil {
			return 0, err
		}
		lp, err := runtime.LogDensity(v.Family, args, value)
		if err != nil {
			return 0, errwrap.Wrapf(err, "log density of %s failed", v)
		}
		result += lp
	}
	return result, nil
}

func (obj *Model) filter(fn func(*Vertex) bool) []*Vertex {
	vs := []*Vertex{}
	for _, v := range obj.Graph.Vertices() {
		if fn(v) {
			vs = append(vs, v)
		}
	}
	return vs
}

// Sampled returns the sampled vertices.
func (obj *Model) Sampled() []*Vertex {
	return obj.filter(func(v *Vertex) bool { return v.IsSampled() })
}

// Observed returns the observed vertices.
func (obj *Model) Observed() []*Vertex {
	return obj.filter(func(v *Vertex) bool { return v.IsObserved() })
}

// Continuous returns the sampled vertices of continuous families.
func (obj *Model) Continuous() []*Vertex {
	return obj.filter(func(v *Vertex) bool { return v.IsSampled() && v.Continuous })
}

// Discrete returns the sampled vertices of discrete families.
func (obj *Model) Discrete() []*Vertex {
	return obj.filter(func(v *Vertex) bool { return v.IsSampled() && !v.Continuous })
}

// Conditional returns the sampled vertices that some branch test depends on.
func (obj *Model) Conditional() []*Vertex {
	return obj.filter(func(v *Vertex) bool { return v.IsSampled() && v.IsConditional() })
}

// ConditionalContinuous returns the conditional vertices of continuous
// families.
func (obj *Model) ConditionalContinuous() []*Vertex {
	return obj.filter(func(v *Vertex) bool { return v.IsSampled() && v.IsConditional() && v.Continuous })
}
