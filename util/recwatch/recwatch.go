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

// Package recwatch provides file watching events via fsnotify. It watches the
// directories that contain the files of interest, so that a file which is
// replaced by an editor, or created after the watch started, is still seen.
package recwatch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a burst of events on the same files is merged
// into a single event.
const DefaultDebounce = 100 * time.Millisecond

// Event represents a watcher event. These can include errors.
type Event struct {
	Error error
	Body  *fsnotify.Event
}

// RecWatcher is the struct for the file watcher. Run Init() on it.
type RecWatcher struct {
	// Paths are the files that we're watching.
	Paths []string

	// Opts are the list of options that we are using this with.
	Opts []Option

	options *recwatchOptions    // computed options
	files   map[string]struct{} // cleaned absolute paths of interest
	dirs    map[string]struct{} // directories that are watched
	watcher *fsnotify.Watcher
	events  chan Event // one channel for events and err...
	wg      sync.WaitGroup
	exit    chan struct{}
	once    sync.Once
}

// NewRecWatcher creates and initializes a new watcher.
func NewRecWatcher(paths []string, opts ...Option) (*RecWatcher, error) {
	obj := &RecWatcher{
		Paths: paths,
		Opts:  opts,
	}
	return obj, obj.Init()
}

// Init starts the file watcher.
func (obj *RecWatcher) Init() error {
	obj.files = make(map[string]struct{})
	obj.dirs = make(map[string]struct{})
	obj.events = make(chan Event)
	obj.exit = make(chan struct{})
	obj.options = &recwatchOptions{ // default recwatch options
		debug:    false,
		debounce: DefaultDebounce,
		logf: func(format string, v ...interface{}) {
			// noop
		},
	}
	for _, optionFunc := range obj.Opts { // apply the recwatch options
		optionFunc(obj.options)
	}
	if obj.options.logf == nil {
		return fmt.Errorf("recwatch: logf must not be nil")
	}
	if len(obj.Paths) == 0 {
		return fmt.Errorf("recwatch: no paths to watch")
	}

	var err error
	obj.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, p := range obj.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			obj.watcher.Close()
			return err
		}
		obj.files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, exists := obj.dirs[dir]; exists {
			continue
		}
		if obj.options.debug {
			obj.options.logf("watching: %s", dir)
		}
		if err := obj.watcher.Add(dir); err != nil {
			obj.watcher.Close()
			return fmt.Errorf("recwatch: could not watch %s: %v", dir, err)
		}
		obj.dirs[dir] = struct{}{}
	}

	obj.wg.Add(1)
	go func() {
		defer obj.wg.Done()
		defer close(obj.events)
		if err := obj.Watch(); err != nil {
			select {
			case obj.events <- Event{Error: err}:
			case <-obj.exit:
				// pass
			}
		}
	}()
	return nil
}

// Close shuts down the watcher. It is safe to call more than once.
func (obj *RecWatcher) Close() error {
	var err error
	obj.once.Do(func() {
		close(obj.exit) // send exit signal
		if obj.watcher != nil {
			err = obj.watcher.Close()
		}
		obj.wg.Wait()
	})
	return err
}

// Events returns a channel of events. These include events for errors. It is
// closed when the watcher shuts down.
func (obj *RecWatcher) Events() <-chan Event { return obj.events }

// Watch is the primary listener and it outputs events. Events for the same
// files that arrive within the debounce interval are merged, and the last one
// is sent.
func (obj *RecWatcher) Watch() error {
	if obj.watcher == nil {
		return fmt.Errorf("the watcher is not initialized")
	}

	var pending *fsnotify.Event
	var timer <-chan time.Time
	for {
		select {
		case event, ok := <-obj.watcher.Events:
			if !ok {
				return nil
			}
			if obj.options.debug {
				obj.options.logf("event(%s): %v", event.Name, event.Op)
			}
			if !obj.interesting(event) {
				continue
			}
			ev := event
			pending = &ev
			timer = time.After(obj.options.debounce)

		case <-timer:
			timer = nil
			select {
			// exit even when we're blocked on event sending
			case obj.events <- Event{Body: pending}:
			case <-obj.exit:
				return nil
			}
			pending = nil

		case err, ok := <-obj.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("unknown watcher error: %v", err)

		case <-obj.exit:
			return nil
		}
	}
}

// interesting returns true if an event is about one of the watched files.
// Chmod only events are ignored, since the content didn't change.
func (obj *RecWatcher) interesting(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, exists := obj.files[name]
	return exists
}

// Option is a type that can be used to configure the recwatcher.
type Option func(*recwatchOptions)

type recwatchOptions struct {
	debug    bool
	debounce time.Duration
	logf     func(format string, v ...interface{})
}

// Debug specifies whether we should run in debug mode or not.
func Debug(debug bool) Option {
	return func(rwo *recwatchOptions) {
		rwo.debug = debug
	}
}

// Logf passes a logger function that we can use if so desired.
func Logf(logf func(format string, v ...interface{})) Option {
	return func(rwo *recwatchOptions) {
		rwo.logf = logf
	}
}

// Debounce sets the interval within which events are merged.
func Debounce(d time.Duration) Option {
	return func(rwo *recwatchOptions) {
		rwo.debounce = d
	}
}
