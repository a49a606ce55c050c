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

package ssa

import (
	"fmt"

	"github.com/purpleidea/probgraph/lang/interfaces"
)

// Symbol is a source name together with the number of versions of it that
// have been handed out. Versions are never reused.
type Symbol struct {
	Name string

	// Session, if set, is where versions are reserved. A version that is
	// already taken, for example by a source name of the same shape, is
	// skipped.
	Session *interfaces.Session

	count int
}

// NewSymbol returns a symbol which hasn't been versioned yet.
func NewSymbol(name string) *Symbol {
	return &Symbol{
		Name: name,
	}
}

// Count returns the number of versions handed out so far.
func (obj *Symbol) Count() int {
	return obj.count
}

// NewInstance bumps the counter and makes the resulting version the current one
// in the innermost frame of the scope. The first version is the bare name, and
// later ones get a numeric suffix, eg: x, x__2, x__3.
func (obj *Symbol) NewInstance(scope *interfaces.Scope) string {
	name := obj.version()
	if obj.Session != nil {
		for obj.count > 1 && obj.Session.Taken(name) {
			name = obj.version()
		}
		obj.Session.Reserve(name)
	}
	scope.Define(obj.Name, name)
	return name
}

// version bumps the counter and returns the name of the new version.
func (obj *Symbol) version() string {
	obj.count++
	if obj.count == 1 {
		return obj.Name
	}
	return fmt.Sprintf("%s__%d", obj.Name, obj.count)
}

// CurrentInstance returns the version visible from the innermost frame of the
// scope. The boolean is false if no version is visible.
func (obj *Symbol) CurrentInstance(scope *interfaces.Scope) (string, bool) {
	v, exists := scope.Resolve(obj.Name)
	if !exists {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}
