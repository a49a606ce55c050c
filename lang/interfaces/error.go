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

package interfaces

import (
	"github.com/purpleidea/probgraph/util"
)

const (
	// ErrArity is returned when a function, distribution or operator is
	// given the wrong number of arguments.
	ErrArity = util.Error("wrong number of arguments")

	// ErrShape is returned when a value has the wrong shape for where it is
	// used. Examples are a non-boolean if test or a subscript of a scalar.
	ErrShape = util.Error("value has the wrong shape")

	// ErrUnresolvable is returned when something must be known at compile
	// time but can't be determined, such as the length of a loop source.
	ErrUnresolvable = util.Error("can't be resolved statically")

	// ErrUnbound is returned when a symbol is used outside of any binding
	// that could define it.
	ErrUnbound = util.Error("unbound reference")

	// ErrScopeDiscipline is returned when a scope is left without having
	// been entered. This is always a programming error in a compiler pass.
	ErrScopeDiscipline = util.Error("scope left without being entered")

	// ErrRecursiveInline is returned when function inlining exceeds the
	// maximum depth, which happens for recursive functions.
	ErrRecursiveInline = util.Error("recursive inlining")

	// ErrConditionCycle is returned when a branch test depends on a vertex
	// that is itself gated by the condition of that same test.
	ErrConditionCycle = util.Error("condition depends on a vertex it gates")

	// ErrUnknownDistribution is returned when a sample or observe uses a
	// distribution family that isn't known.
	ErrUnknownDistribution = util.Error("unknown distribution")
)
