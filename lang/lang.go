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

// Package lang is the probabilistic program compiler. It loads a program, runs
// the compiler passes over it and builds the stochastic dependency graph.
package lang

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/distributions"
	"github.com/purpleidea/probgraph/lang/emit"
	"github.com/purpleidea/probgraph/lang/graphgen"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/lang/normalize"
	"github.com/purpleidea/probgraph/lang/simplify"
	"github.com/purpleidea/probgraph/lang/ssa"
	"github.com/purpleidea/probgraph/lang/yamlprog"
	"github.com/purpleidea/probgraph/model"
	"github.com/purpleidea/probgraph/prometheus"
	"github.com/purpleidea/probgraph/util/errwrap"

	"github.com/sanity-io/litter"
	"github.com/spf13/afero"
)

// DefaultName is the graph name used when neither the program nor the input
// file name one.
const DefaultName = "probgraph"

// Lang is the main compiler object. Run Init() on it.
type Lang struct {
	Fs afero.Fs // fs where the input exists, the os fs if nil

	// Input is the path of the yaml program to compile.
	Input string

	// DataThreshold is the length at or above which a literal vector is
	// hoisted into a data node.
	DataThreshold int

	// MaxInlineDepth bounds nested function inlining.
	MaxInlineDepth int

	// SimplifyBeforeSSA runs an extra simplifier pass before the ssa pass.
	SimplifyBeforeSSA bool

	// StateObject is the name of the state dictionary in emitted code.
	StateObject string

	// Distributions is the family registry, the default one if nil.
	Distributions interfaces.Distributions

	// Metrics, if set, records every compilation.
	Metrics *prometheus.Prometheus

	Debug bool
	Logf  func(format string, v ...interface{})

	emitter *emit.Python
}

// Output is the result of a compilation.
type Output struct {
	// Name is the name of the program.
	Name string

	// Program is the program after the last tree pass.
	Program ast.Node

	// Graph is the stochastic dependency graph.
	Graph *model.Graph

	// Model is the graph assembled for sampling and scoring.
	Model *model.Model

	// Session is the session of this compilation.
	Session *interfaces.Session
}

// pass is a tree to tree compiler pass.
type pass struct {
	name string
	fn   func(*interfaces.Data, ast.Node) (ast.Node, error)
}

// Init validates the struct and fills in the defaults.
func (obj *Lang) Init() error {
	if obj.Fs == nil {
		obj.Fs = afero.NewOsFs()
	}
	if obj.Logf == nil {
		obj.Logf = func(format string, v ...interface{}) {} // noop
	}
	if obj.DataThreshold < 0 {
		return fmt.Errorf("data threshold must not be negative")
	}
	if obj.DataThreshold == 0 {
		obj.DataThreshold = interfaces.DefaultDataThreshold
	}
	if obj.MaxInlineDepth < 0 {
		return fmt.Errorf("max inline depth must not be negative")
	}
	if obj.MaxInlineDepth == 0 {
		obj.MaxInlineDepth = interfaces.DefaultMaxInlineDepth
	}
	if obj.StateObject == "" {
		obj.StateObject = emit.DefaultStateObject
	}
	if obj.Distributions == nil {
		obj.Distributions = distributions.Default()
	}
	obj.emitter = &emit.Python{StateObject: obj.StateObject}
	return nil
}

// Load parses the input program.
func (obj *Lang) Load() (*yamlprog.Program, error) {
	if obj.Input == "" {
		return nil, fmt.Errorf("no input specified")
	}
	obj.Logf("input: %s", obj.Input)
	program, err := yamlprog.ParseFile(obj.Fs, obj.Input)
	if err != nil {
		return nil, errwrap.Wrapf(err, "could not load program")
	}
	if program.Name == "" {
		base := filepath.Base(obj.Input)
		program.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return program, nil
}

// Run loads and compiles the input program.
func (obj *Lang) Run() (*Output, error) {
	program, err := obj.Load()
	if err != nil {
		return nil, err
	}
	return obj.Compile(program)
}

// Compile runs every pass over a program. Each compilation gets a fresh
// session, so that node names always start from the same index.
func (obj *Lang) Compile(program *yamlprog.Program) (*Output, error) {
	output, err := obj.compile(program)
	if obj.Metrics != nil {
		obj.Metrics.UpdateCompileTotal(err != nil)
	}
	return output, err
}

func (obj *Lang) compile(program *yamlprog.Program) (*Output, error) {
	if obj.emitter == nil {
		return nil, fmt.Errorf("the compiler is not initialized")
	}
	session := interfaces.NewSession()
	prefix := fmt.Sprintf("compile[%s]: ", session.ID[:8])
	data := &interfaces.Data{
		Session:        session,
		Distributions:  obj.Distributions,
		Emitter:        obj.emitter,
		DataThreshold:  obj.DataThreshold,
		MaxInlineDepth: obj.MaxInlineDepth,
		Debug:          obj.Debug,
		Logf: func(format string, v ...interface{}) {
			obj.Logf(prefix+format, v...)
		},
	}

	name := program.Name
	if name == "" {
		name = DefaultName
	}
	node := program.Body
	if node == nil {
		node = ast.MakeBody()
	}
	if obj.Debug {
		obj.Logf(prefix+"behold, the program:\n%s", node)
	}

	passes := []pass{{"normalize", normalize.Normalize}}
	if obj.SimplifyBeforeSSA {
		passes = append(passes, pass{"simplify", simplify.Simplify})
	}
	passes = append(passes, pass{"ssa", ssa.Convert}, pass{"simplify", simplify.Simplify})

	for _, p := range passes {
		obj.Logf(prefix+"running %s...", p.name)
		start := time.Now()
		out, err := p.fn(data, node)
		obj.observe(p.name, start)
		if err != nil {
			return nil, errwrap.Wrapf(err, "could not %s", p.name)
		}
		node = out
		if obj.Debug {
			obj.Logf(prefix+"after %s:\n%s", p.name, node)
			obj.Logf(prefix+"tree:\n%s", dump(node))
		}
	}

	obj.Logf(prefix + "building graph...")
	start := time.Now()
	graph, err := graphgen.Build(data, node)
	obj.observe("graphgen", start)
	if err != nil {
		return nil, errwrap.Wrapf(err, "could not build graph")
	}

	m, err := model.NewModel(graph)
	if err != nil {
		return nil, errwrap.Wrapf(err, "could not assemble model")
	}
	obj.count(graph)
	obj.Logf(prefix+"%s: %d vertices, %d conditions, %d data", name, len(graph.Vertices()), len(graph.Conditions()), len(graph.Data()))

	return &Output{
		Name:    name,
		Program: node,
		Graph:   graph,
		Model:   m,
		Session: session,
	}, nil
}

// Python returns the runtime code of a compiled program.
func (obj *Lang) Python(output *Output) (string, error) {
	if obj.emitter == nil {
		return "", fmt.Errorf("the compiler is not initialized")
	}
	return obj.emitter.Program(output.Graph)
}

func (obj *Lang) observe(name string, start time.Time) {
	if obj.Metrics != nil {
		obj.Metrics.ObservePass(name, time.Since(start))
	}
}

func (obj *Lang) count(graph *model.Graph) {
	if obj.Metrics == nil {
		return
	}
	sampled, observed := 0, 0
	for _, v := range graph.Vertices() {
		if v.IsObserved() {
			observed++
			continue
		}
		sampled++
	}
	obj.Metrics.AddNodes(prometheus.KindSampled, sampled)
	obj.Metrics.AddNodes(prometheus.KindObserved, observed)
	obj.Metrics.AddNodes(prometheus.KindCondition, len(graph.Conditions()))
	obj.Metrics.AddNodes(prometheus.KindData, len(graph.Data()))
}

// dump returns a detailed dump of a tree for debugging.
func dump(node ast.Node) string {
	return litter.Options{
		HidePrivateFields: true,
		StripPackageNames: true,
		HideZeroValues:    true,
	}.Sdump(node)
}
