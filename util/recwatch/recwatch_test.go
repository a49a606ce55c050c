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

package recwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecWatcher0(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "model.yaml")
	f2 := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(f1, []byte("- x: 1\n"), 0644); err != nil {
		t.Fatalf("could not write file: %+v", err)
	}

	watcher, err := NewRecWatcher([]string{f1}, Debounce(10*time.Millisecond), Debug(testing.Verbose()), Logf(t.Logf))
	if err != nil {
		t.Fatalf("could not start watcher: %+v", err)
	}
	defer watcher.Close()

	// a file that isn't watched
	if err := os.WriteFile(f2, []byte("- y: 1\n"), 0644); err != nil {
		t.Fatalf("could not write file: %+v", err)
	}
	select {
	case event := <-watcher.Events():
		t.Fatalf("unexpected event: %+v", event.Body)
	case <-time.After(200 * time.Millisecond):
	}

	if err := os.WriteFile(f1, []byte("- x: 2\n"), 0644); err != nil {
		t.Fatalf("could not write file: %+v", err)
	}
	select {
	case event := <-watcher.Events():
		if event.Error != nil {
			t.Fatalf("watcher failed with: %+v", event.Error)
		}
		if event.Body.Name != f1 {
			t.Errorf("unexpected event for: %s", event.Body.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no event")
	}

	if err := watcher.Close(); err != nil {
		t.Errorf("close failed with: %+v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Errorf("second close failed with: %+v", err)
	}
	if _, ok := <-watcher.Events(); ok {
		t.Errorf("events should be closed")
	}
}

func TestRecWatcherInit(t *testing.T) {
	if _, err := NewRecWatcher(nil); err == nil {
		t.Errorf("expected an error without paths")
	}
	if _, err := NewRecWatcher([]string{"/nonexistent/dir/file"}); err == nil {
		t.Errorf("expected an error for a missing directory")
	}
}
