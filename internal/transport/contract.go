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

package transport

import (
	"io"
	"sync"

	"github.com/latticerpc/subchannel/connectivity"
	"github.com/latticerpc/subchannel/resolver"
)

// Subchannel is the parent collaborator's contract, as consumed by the
// transport: the shared lock, the candidate address list, connectivity-state
// publication, and an opaque identifier for logs. The load balancing policy
// owns the concrete implementation; package subchannel provides a minimal
// reference one.
type Subchannel interface {
	sync.Locker

	// GetAddresses returns a snapshot of the current candidate addresses.
	GetAddresses() []resolver.Address

	// UpdateConnectivityState publishes a transition. cause is non-nil only
	// for TransientFailure and lost-connection Idle transitions.
	UpdateConnectivityState(state connectivity.State, reason string, cause error)

	// ID returns an opaque identifier used only for logging.
	ID() string
}

// Stream is a readable/writable byte stream handed to the upper protocol
// layer by GetStream. Reads observe any bytes buffered by the health prober
// before the upper layer attached, followed by live socket bytes. Closing
// the stream releases the underlying socket exactly once.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// ConnectResult is the caller-visible outcome of TryConnect.
type ConnectResult int

const (
	// ConnectSuccess indicates a socket was established and parked.
	ConnectSuccess ConnectResult = iota
	// ConnectFailure indicates every candidate address failed to connect.
	ConnectFailure
	// ConnectTimeout indicates every candidate address failed because the
	// configured connect timeout (not caller cancellation) elapsed.
	ConnectTimeout
)

func (r ConnectResult) String() string {
	switch r {
	case ConnectSuccess:
		return "Success"
	case ConnectFailure:
		return "Failure"
	case ConnectTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}
