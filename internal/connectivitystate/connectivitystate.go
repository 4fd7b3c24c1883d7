/*
 *
 * Copyright 2023 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package connectivitystate provides functionality to report and track
// connectivity state changes of a subchannel transport.
package connectivitystate

import (
	"sync"

	"github.com/latticerpc/subchannel/connectivity"
)

// Change describes one connectivity-state transition, including the reason
// the entity moved to that state. Cause is non-nil only for TransientFailure
// and error-carrying Idle transitions.
type Change struct {
	State  connectivity.State
	Reason string
	Cause  error
}

// Watcher wraps the functionality to be implemented by components
// interested in watching connectivity state changes.
type Watcher interface {
	// OnStateChange is invoked to report connectivity state changes on the
	// entity being watched.
	OnStateChange(Change)
}

// Tracker provides pubsub-like functionality for connectivity state changes.
//
// The entity whose connectivity state is being tracked publishes updates by
// calling the SetState method. Updates are delivered to watchers
// synchronously, in the order SetState was called, with Tracker's own mutex
// held; watchers must not call back into the Tracker from OnStateChange.
type Tracker struct {
	mu       sync.Mutex
	state    connectivity.State
	watchers map[Watcher]bool
	stopped  bool
}

// NewTracker returns a new Tracker instance initialized with the provided
// connectivity state.
func NewTracker(state connectivity.State) *Tracker {
	return &Tracker{
		state:    state,
		watchers: map[Watcher]bool{},
	}
}

// AddWatcher adds the provided watcher to the set of watchers in Tracker.
// The OnStateChange callback is invoked immediately with the current state,
// and subsequently for every state change.
//
// Returns a function to remove the provided watcher from the set of
// watchers.
func (t *Tracker) AddWatcher(watcher Watcher) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return func() {}
	}

	t.watchers[watcher] = true
	watcher.OnStateChange(Change{State: t.state})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.watchers, watcher)
	}
}

// SetState updates the connectivity state of the entity being tracked, and
// invokes the OnStateChange callback of all registered watchers.
func (t *Tracker) SetState(state connectivity.State, reason string, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.state = state
	change := Change{State: state, Reason: reason, Cause: cause}
	for watcher := range t.watchers {
		watcher.OnStateChange(change)
	}
}

// CurrentState returns the last state passed to SetState (or the initial
// state, if SetState has never been called).
func (t *Tracker) CurrentState() connectivity.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stop shuts down the Tracker. No further watcher callbacks are invoked
// after Stop returns.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}
