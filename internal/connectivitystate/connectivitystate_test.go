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

package connectivitystate

import (
	"errors"
	"testing"

	"github.com/latticerpc/subchannel/connectivity"
)

type recorder struct {
	changes []Change
}

func (r *recorder) OnStateChange(c Change) {
	r.changes = append(r.changes, c)
}

func TestAddWatcherDeliversCurrentState(t *testing.T) {
	tr := NewTracker(connectivity.Ready)
	r := &recorder{}
	tr.AddWatcher(r)

	if len(r.changes) != 1 || r.changes[0].State != connectivity.Ready {
		t.Fatalf("AddWatcher did not deliver current state immediately: %+v", r.changes)
	}
}

func TestSetStateNotifiesInOrder(t *testing.T) {
	tr := NewTracker(connectivity.Idle)
	r := &recorder{}
	tr.AddWatcher(r)

	tr.SetState(connectivity.Connecting, "", nil)
	tr.SetState(connectivity.Ready, "", nil)
	cause := errors.New("boom")
	tr.SetState(connectivity.TransientFailure, "dial failed", cause)

	want := []connectivity.State{connectivity.Idle, connectivity.Connecting, connectivity.Ready, connectivity.TransientFailure}
	if len(r.changes) != len(want) {
		t.Fatalf("got %d changes, want %d: %+v", len(r.changes), len(want), r.changes)
	}
	for i, c := range r.changes {
		if c.State != want[i] {
			t.Errorf("changes[%d].State = %v, want %v", i, c.State, want[i])
		}
	}
	last := r.changes[len(r.changes)-1]
	if last.Reason != "dial failed" || !errors.Is(last.Cause, cause) {
		t.Errorf("last change = %+v, want reason %q cause %v", last, "dial failed", cause)
	}
	if got := tr.CurrentState(); got != connectivity.TransientFailure {
		t.Errorf("CurrentState() = %v, want %v", got, connectivity.TransientFailure)
	}
}

func TestRemoveWatcherStopsDelivery(t *testing.T) {
	tr := NewTracker(connectivity.Idle)
	r := &recorder{}
	remove := tr.AddWatcher(r)
	remove()

	tr.SetState(connectivity.Ready, "", nil)
	if len(r.changes) != 1 {
		t.Fatalf("watcher received updates after removal: %+v", r.changes)
	}
}

func TestStopSuppressesFurtherUpdates(t *testing.T) {
	tr := NewTracker(connectivity.Idle)
	r := &recorder{}
	tr.AddWatcher(r)
	tr.Stop()

	tr.SetState(connectivity.Ready, "", nil)
	if len(r.changes) != 1 {
		t.Fatalf("watcher received updates after Stop: %+v", r.changes)
	}

	r2 := &recorder{}
	tr.AddWatcher(r2)
	if len(r2.changes) != 0 {
		t.Fatalf("AddWatcher delivered state after Stop: %+v", r2.changes)
	}
}
