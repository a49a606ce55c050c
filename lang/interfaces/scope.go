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
	"sort"
)

// Scope represents a stack of nested lexical frames, each of which maps a name
// to some bound value. The values are opaque to the scope, and every pass which
// uses one decides what it stores. The outermost frame always exists and can't
// be left.
type Scope struct {
	frames []*frame
}

// frame is a single level of the scope. The order list remembers the order in
// which names were first bound in this frame.
type frame struct {
	values map[string]interface{}
	order  []string
}

func newFrame() *frame {
	return &frame{
		values: make(map[string]interface{}),
		order:  []string{},
	}
}

// NewScope returns a new scope with only the outermost frame.
func NewScope() *Scope {
	return &Scope{
		frames: []*frame{newFrame()},
	}
}

// InitScope initializes any uninitialized part of the struct. It is safe to use
// on scopes with existing data.
func (obj *Scope) InitScope() {
	if len(obj.frames) == 0 {
		obj.frames = []*frame{newFrame()}
	}
}

// Define binds the name to the value in the innermost frame. Rebinding a name
// in the same frame replaces the previous value.
func (obj *Scope) Define(name string, value interface{}) {
	obj.InitScope() // safety
	f := obj.frames[len(obj.frames)-1]
	if _, exists := f.values[name]; !exists {
		f.order = append(f.order, name)
	}
	f.values[name] = value
}

// Resolve walks outward from the innermost frame and returns the nearest value
// bound to this name. The boolean is false if the name is unbound.
func (obj *Scope) Resolve(name string) (interface{}, bool) {
	for i := len(obj.frames) - 1; i >= 0; i-- {
		if value, exists := obj.frames[i].values[name]; exists {
			return value, true
		}
	}
	return nil, false
}

// Local returns the names bound in the innermost frame, in the order that they
// were first bound.
func (obj *Scope) Local() []string {
	if len(obj.frames) == 0 {
		return []string{}
	}
	f := obj.frames[len(obj.frames)-1]
	names := make([]string, len(f.order))
	copy(names, f.order)
	return names
}

// Enter pushes a new empty frame.
func (obj *Scope) Enter() {
	obj.InitScope() // safety
	obj.frames = append(obj.frames, newFrame())
}

// Leave pops the innermost frame. It is an error to leave the outermost frame,
// since that means Leave was called more often than Enter.
func (obj *Scope) Leave() error {
	if len(obj.frames) <= 1 {
		return ErrScopeDiscipline
	}
	obj.frames = obj.frames[:len(obj.frames)-1]
	return nil
}

// Depth returns the number of frames entered on top of the outermost one.
func (obj *Scope) Depth() int {
	if len(obj.frames) == 0 {
		return 0
	}
	return len(obj.frames) - 1
}

// Names returns the sorted list of every name visible from the innermost frame.
func (obj *Scope) Names() []string {
	seen := make(map[string]struct{})
	names := []string{}
	for _, f := range obj.frames {
		for name := range f.values {
			if _, exists := seen[name]; exists {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// String returns a short representation of the scope for debugging.
func (obj *Scope) String() string {
	return fmt.Sprintf("scope(depth: %d, names: %v)", obj.Depth(), obj.Names())
}
