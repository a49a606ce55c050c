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

// Package interfaces contains the common interfaces and structs that are used
// by the compiler passes.
package interfaces

import (
	"github.com/purpleidea/probgraph/lang/ast"
)

// DefaultDataThreshold is the length at or above which a literal vector of
// constants is hoisted into its own data node.
const DefaultDataThreshold = 4

// DefaultMaxInlineDepth is the default bound on nested function inlining.
const DefaultMaxInlineDepth = 64

// Data provides some data to each compiler pass. Every pass of a compilation
// receives the same struct.
type Data struct {
	// Session holds the counters for this compilation.
	Session *Session

	// Distributions is used to look up distribution families.
	Distributions Distributions

	// Emitter is used to generate the code stored on each graph node.
	Emitter Emitter

	// DataThreshold is the length at or above which a literal vector is
	// hoisted into a data node. If zero, DefaultDataThreshold is used.
	DataThreshold int

	// MaxInlineDepth bounds nested function inlining. If zero,
	// DefaultMaxInlineDepth is used.
	MaxInlineDepth int

	// Debug represents if we're running in debug mode or not.
	Debug bool

	// Logf is a logger which should be used.
	Logf func(format string, v ...interface{})
}

// Distribution describes a distribution family. The graph builder only looks at
// the arity and the continuity of a family, never at its math.
type Distribution struct {
	// Name is the canonical family name, eg: Normal.
	Name string

	// Params is the ordered list of parameter names. If nil, the family
	// accepts any number of arguments.
	Params []string

	// Continuous is true for continuous families and false for discrete
	// ones.
	Continuous bool

	// Dimension returns the dimensionality of one draw given the lowered
	// arguments. If nil, draws are scalar.
	Dimension func(args []ast.Node) int
}

// Arity returns the number of parameters, or -1 if any number is accepted.
func (obj *Distribution) Arity() int {
	if obj.Params == nil {
		return -1
	}
	return len(obj.Params)
}

// Distributions is the interface of a distribution family library.
type Distributions interface {
	// Lookup returns the family with this name. It returns an error that
	// wraps ErrUnknownDistribution if none exists.
	Lookup(name string) (*Distribution, error)
}

// Emitter turns a lowered node into code for the target runtime. The state can
// be nil, otherwise graph references found in it are replaced by their value.
type Emitter interface {
	Emit(node ast.Node, state map[string]interface{}) (string, error)
}
