/*
 *
 * Copyright 2017 gRPC authors.
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

// Package connectivity defines the connectivity semantics that a subchannel
// transport moves through and reports to its parent subchannel.
package connectivity

// State indicates the state of connectivity of a subchannel (or any entity
// that is driven through this state machine, such as the transport defined
// in package transport).
type State int

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Connecting:
		return "CONNECTING"
	case Ready:
		return "READY"
	case TransientFailure:
		return "TRANSIENT_FAILURE"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return "INVALID_STATE"
	}
}

const (
	// Idle indicates the entity has not attempted to connect, or has
	// disconnected deliberately (no active streams remain) and is waiting to
	// be asked to connect again.
	Idle State = iota
	// Connecting indicates the entity is currently attempting to connect to
	// one of its addresses.
	Connecting
	// Ready indicates the entity has a usable connection.
	Ready
	// TransientFailure indicates the entity has seen a failure but expects to
	// recover.
	TransientFailure
	// Shutdown indicates the entity has stopped permanently.
	Shutdown
)
