/*
 *
 * Copyright 2024 gRPC authors.
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

// Package subchannel provides a minimal, concrete Subchannel a load
// balancing policy can embed (or a test can construct directly) to drive an
// internal/transport.Transport. It is NOT itself a load balancing policy: it
// owns only the candidate-address list and connectivity-state pubsub that
// the transport's contract requires, nothing about picking or backoff.
package subchannel

import (
	"sync"

	"github.com/latticerpc/subchannel/connectivity"
	"github.com/latticerpc/subchannel/internal/connectivitystate"
	"github.com/latticerpc/subchannel/resolver"
)

// Subchannel implements internal/transport.Subchannel. Its mutex is the one
// the transport shares: GetAddresses and UpdateConnectivityState assume the
// caller already holds it via Lock/Unlock, exactly as the transport does.
// UpdateAddresses, called by the owning policy rather than the transport,
// must take the lock itself before mutating.
type Subchannel struct {
	mu sync.Mutex
	id string

	addrs   []resolver.Address
	tracker *connectivitystate.Tracker
}

// New constructs a Subchannel identified by id (used only in logs) with the
// given initial candidate addresses.
func New(id string, addrs []resolver.Address) *Subchannel {
	return &Subchannel{
		id:      id,
		addrs:   append([]resolver.Address(nil), addrs...),
		tracker: connectivitystate.NewTracker(connectivity.Idle),
	}
}

// Lock and Unlock guard every field below, including the ones the transport
// touches directly. Holding this lock permits only non-blocking work.
func (s *Subchannel) Lock()   { s.mu.Lock() }
func (s *Subchannel) Unlock() { s.mu.Unlock() }

// ID returns the identifier this Subchannel was constructed with.
func (s *Subchannel) ID() string { return s.id }

// GetAddresses returns a snapshot of the candidate addresses. Callers must
// hold the lock.
func (s *Subchannel) GetAddresses() []resolver.Address {
	out := make([]resolver.Address, len(s.addrs))
	copy(out, s.addrs)
	return out
}

// UpdateAddresses replaces the candidate address list. Unlike GetAddresses
// and UpdateConnectivityState, this is called by the owning policy, not the
// transport, so it takes the lock itself.
func (s *Subchannel) UpdateAddresses(addrs []resolver.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addrs = append([]resolver.Address(nil), addrs...)
}

// UpdateConnectivityState publishes a transition to every registered
// watcher. Callers must hold the lock; the tracker's own mutex is separate
// from s.mu and does not reenter it.
func (s *Subchannel) UpdateConnectivityState(state connectivity.State, reason string, cause error) {
	s.tracker.SetState(state, reason, cause)
}

// Watch registers w for connectivity-state changes and returns a function
// to unregister it. Safe to call without holding the lock.
func (s *Subchannel) Watch(w connectivitystate.Watcher) func() {
	return s.tracker.AddWatcher(w)
}

// CurrentState returns the last published connectivity state. Safe to call
// without holding the lock.
func (s *Subchannel) CurrentState() connectivity.State {
	return s.tracker.CurrentState()
}

// Close stops delivering connectivity-state changes. It does not touch any
// transport built on top of this Subchannel; callers are expected to
// Dispose the transport first.
func (s *Subchannel) Close() {
	s.tracker.Stop()
}
