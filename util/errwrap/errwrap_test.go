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

package errwrap

import (
	"fmt"
	"testing"
)

func TestWrapfErr1(t *testing.T) {
	if err := Wrapf(nil, "whatever: %d", 42); err != nil {
		t.Errorf("expected nil result")
	}
}

func TestWrapfCause1(t *testing.T) {
	base := fmt.Errorf("base")
	err := Wrapf(Wrapf(base, "inner"), "outer %s", "x")
	if Cause(err) != base {
		t.Errorf("expected cause to be the base error")
	}
	if s := err.Error(); s != "outer x: inner: base" {
		t.Errorf("unexpected message: %s", s)
	}
}

func TestAppendErr1(t *testing.T) {
	if err := Append(nil, nil); err != nil {
		t.Errorf("expected nil result")
	}
}

func TestAppendErr2(t *testing.T) {
	reterr := fmt.Errorf("reterr")
	if err := Append(reterr, nil); err != reterr {
		t.Errorf("expected reterr")
	}
}

func TestAppendErr3(t *testing.T) {
	err := fmt.Errorf("err")
	if reterr := Append(nil, err); reterr != err {
		t.Errorf("expected err")
	}
}

func TestFlatten1(t *testing.T) {
	if l := len(Flatten(nil)); l != 0 {
		t.Errorf("expected empty list, got %d", l)
	}
	e1 := fmt.Errorf("e1")
	e2 := fmt.Errorf("e2")
	e3 := fmt.Errorf("e3")
	var err error
	err = Append(err, e1)
	err = Append(err, e2)
	err = Append(err, e3)
	errs := Flatten(err)
	if len(errs) != 3 {
		t.Errorf("expected three errors, got %d", len(errs))
		return
	}
	if errs[0] != e1 || errs[2] != e3 {
		t.Errorf("errors are out of order")
	}
}

func TestString1(t *testing.T) {
	var err error
	if String(err) != "" {
		t.Errorf("expected empty result")
	}

	msg := "this is an error"
	if err := fmt.Errorf(msg); String(err) != msg {
		t.Errorf("expected different result")
	}
}
