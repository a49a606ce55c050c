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
	"fmt"

	"github.com/purpleidea/probgraph/lang/ast"

	"github.com/google/uuid"
)

// NodeIndexStart is the value of the graph node counter at the start of each
// compilation. The first graph node that is created gets the next value.
const NodeIndexStart = 30000

// Session is the explicit context of a single compilation. It owns the
// counters that every pass draws unique names from. It is not safe for
// concurrent use, and each compilation should get its own.
type Session struct {
	// ID is a unique identifier for this compilation. It is only used to
	// tell apart log messages.
	ID string

	tmp    int
	rename int
	node   int

	taken map[string]struct{} // every name that a fresh name must avoid
}

// NewSession returns a new session with reset counters.
func NewSession() *Session {
	obj := &Session{
		ID: uuid.New().String(),
	}
	obj.Reset()
	return obj
}

// Reset puts all the counters back to their initial values.
func (obj *Session) Reset() {
	obj.tmp = 0
	obj.rename = 0
	obj.node = NodeIndexStart
	obj.taken = make(map[string]struct{})
}

// Reserve marks names as taken, so that no fresh name is ever equal to one of
// them. Every source name of a program should be reserved before any pass hands
// out names.
func (obj *Session) Reserve(names ...string) {
	for _, name := range names {
		obj.taken[name] = struct{}{}
	}
}

// ReserveSource reserves every name that a program binds or refers to.
func (obj *Session) ReserveSource(node ast.Node) {
	obj.Reserve(ast.Bound(node)...)
	for name := range ast.Uses(node) {
		obj.Reserve(name)
	}
}

// Taken returns true if the name was reserved or handed out already.
func (obj *Session) Taken(name string) bool {
	_, exists := obj.taken[name]
	return exists
}

// TempName returns a fresh temporary name.
func (obj *Session) TempName() string {
	for {
		obj.tmp++
		name := fmt.Sprintf("__tmp_%d__", obj.tmp)
		if !obj.Taken(name) {
			obj.Reserve(name)
			return name
		}
	}
}

// Rename returns a fresh name derived from the given one. It is used to avoid
// capturing names when inlining function bodies.
func (obj *Session) Rename(name string) string {
	for {
		obj.rename++
		fresh := fmt.Sprintf("%s__i%d", name, obj.rename)
		if !obj.Taken(fresh) {
			obj.Reserve(fresh)
			return fresh
		}
	}
}

// NextNodeIndex returns the next graph node index. These are handed out in
// strictly increasing order, which is also the order that graph nodes must be
// evaluated in.
func (obj *Session) NextNodeIndex() int {
	obj.node++
	return obj.node
}
