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

// Package transport implements a per-subchannel socket transport: it parks at
// most one connected TCP socket to one of a subchannel's candidate addresses
// at a time, health-probes it while idle, and hands it off as a byte stream to
// the upper protocol layer on demand. A stream that cannot take over the
// parked socket gets a freshly dialed connection of its own.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/latticerpc/subchannel/connectivity"
	"github.com/latticerpc/subchannel/grpclog"
	"github.com/latticerpc/subchannel/resolver"
)

var logger = grpclog.Component("transport")

const (
	defaultMaxInitialSocketBytes = 16384
	defaultProbeInterval         = 5 * time.Second
)

// Config carries everything a Transport needs to operate. Subchannel is
// required; the rest have sane defaults.
type Config struct {
	// Subchannel is the parent collaborator providing the shared lock, the
	// candidate address list, and connectivity-state publication.
	Subchannel Subchannel

	// ConnectTimeout bounds a single TryConnect call, independent of any
	// deadline on the context the caller passes in. Zero means unbounded.
	ConnectTimeout time.Duration

	// ProbeInterval is the delay between health-probe ticks on a parked
	// socket. Defaults to 5s if zero.
	ProbeInterval time.Duration

	// MaxInitialSocketBytes bounds how many bytes the health prober will
	// buffer from a peer before the upper layer attaches. Defaults to
	// 16384 if zero.
	MaxInitialSocketBytes int

	// Dial creates outbound connections. Defaults to a plain TCP dial with
	// Nagle's algorithm disabled. Tests substitute a controllable dialer.
	Dial DialFunc

	// Logger receives operational messages. Defaults to a component logger
	// scoped to this package.
	Logger grpclog.Logger
}

// Transport owns, on behalf of a single subchannel, at most one parked TCP
// connection plus the connections behind the streams it has handed out. All
// mutable state is guarded by the subchannel's own
// lock, shared rather than duplicated, so that a connectivity-state
// transition and the state change that produced it are always observed
// together.
type Transport struct {
	sc                    Subchannel
	dial                  DialFunc
	connectTimeout        time.Duration
	probeInterval         time.Duration
	maxInitialSocketBytes int
	logger                grpclog.Logger

	// Guarded by sc.Lock/Unlock.
	lastEndpointIndex     int
	hasCurrentAddress     bool
	currentAddress        resolver.Address
	initialSocket         *socket
	initialSocketAddress  resolver.Address
	initialSocketData     *initialDataBuffer
	activeStreams         map[uuid.UUID]*stream
	probeTimer            *time.Timer
	disposed              bool
}

// New constructs a Transport. It does not connect; call TryConnect.
func New(cfg Config) *Transport {
	dial := cfg.Dial
	if dial == nil {
		dial = defaultDial
	}
	lg := cfg.Logger
	if lg == nil {
		lg = logger
	}
	maxBytes := cfg.MaxInitialSocketBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxInitialSocketBytes
	}
	probeInterval := cfg.ProbeInterval
	if probeInterval == 0 {
		probeInterval = defaultProbeInterval
	}
	return &Transport{
		sc:                    cfg.Subchannel,
		dial:                  dial,
		connectTimeout:        cfg.ConnectTimeout,
		probeInterval:         probeInterval,
		maxInitialSocketBytes: maxBytes,
		logger:                lg,
	}
}

// TryConnect attempts to establish a socket to one of the subchannel's
// candidate addresses, resuming the round-robin scan where the previous
// attempt left off. On success, the socket is parked and health-probed
// until GetStream or Disconnect claims or releases it.
//
// The caller must not invoke TryConnect again while one is already in
// flight on the same Transport; the precondition is that no address is
// currently current when called.
func (t *Transport) TryConnect(ctx context.Context) (ConnectResult, error) {
	if t.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.connectTimeout)
		defer cancel()
	}

	t.sc.Lock()
	if t.disposed {
		t.sc.Unlock()
		return ConnectFailure, errDisposed
	}
	addrs := t.sc.GetAddresses()
	startIdx := t.lastEndpointIndex
	t.sc.UpdateConnectivityState(connectivity.Connecting, "", nil)
	t.sc.Unlock()

	if len(addrs) == 0 {
		t.sc.Lock()
		if !t.disposed {
			t.sc.UpdateConnectivityState(connectivity.TransientFailure, "no candidate addresses", errNoAddresses)
		}
		t.sc.Unlock()
		return ConnectFailure, errNoAddresses
	}

	var firstErr error
	for i := 0; i < len(addrs); i++ {
		idx := (startIdx + i) % len(addrs)
		addr := addrs[idx]

		conn, err := t.dial(ctx, "tcp", addr.Addr)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		sock := newSocket(conn)
		t.sc.Lock()
		if t.disposed {
			t.sc.Unlock()
			sock.Close()
			return ConnectFailure, errDisposed
		}
		t.lastEndpointIndex = idx
		t.hasCurrentAddress = true
		t.currentAddress = addr
		t.initialSocket = sock
		t.initialSocketAddress = addr
		t.initialSocketData = &initialDataBuffer{}
		t.armProbeTimerLocked()
		t.sc.UpdateConnectivityState(connectivity.Ready, "", nil)
		t.sc.Unlock()
		t.logger.Infof("%v: connected to %v, attributes %v", t.sc.ID(), addr, addr.Attributes)
		return ConnectSuccess, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		timeoutErr := fmt.Errorf("transport: connect timed out: %w", firstErr)
		t.sc.Lock()
		if !t.disposed {
			t.sc.UpdateConnectivityState(connectivity.TransientFailure, "connect timed out", timeoutErr)
		}
		t.sc.Unlock()
		return ConnectTimeout, timeoutErr
	}

	t.sc.Lock()
	if !t.disposed {
		t.sc.UpdateConnectivityState(connectivity.TransientFailure, "all candidate addresses failed", firstErr)
	}
	t.sc.Unlock()
	return ConnectFailure, firstErr
}

// GetStream hands the upper protocol layer a byte stream to addr. If a
// socket is parked from a prior TryConnect and was dialed to the same
// address, and it still passes a liveness check, it is reused (along with
// any bytes the prober already buffered from it); otherwise a fresh socket
// is dialed.
func (t *Transport) GetStream(ctx context.Context, addr resolver.Address) (Stream, error) {
	t.sc.Lock()
	if t.disposed {
		t.sc.Unlock()
		return nil, errDisposed
	}

	var reuse *socket
	var data *initialDataBuffer
	if t.initialSocket != nil {
		captured := t.initialSocket
		capturedAddr := t.initialSocketAddress
		capturedData := t.initialSocketData
		t.initialSocket = nil
		t.initialSocketAddress = resolver.Address{}
		t.initialSocketData = nil
		t.disarmProbeTimerLocked()

		if capturedAddr.Equal(addr) && !isSocketInBadState(captured) {
			reuse = captured
			data = capturedData
		} else {
			captured.Close()
			// The parked socket is gone and nothing has replaced it yet;
			// clear currentAddress now rather than leaving it pointing at a
			// dead connection if the fresh dial below also fails.
			t.hasCurrentAddress = false
			t.currentAddress = resolver.Address{}
		}
	}
	t.sc.Unlock()

	sock := reuse
	if sock == nil {
		conn, err := t.dial(ctx, "tcp", addr.Addr)
		if err != nil {
			return nil, err
		}
		sock = newSocket(conn)
		data = nil
	}

	id := uuid.New()
	st := newStream(sock, data, func() { t.onStreamClosed(id) })

	t.sc.Lock()
	if t.disposed {
		t.sc.Unlock()
		st.discard()
		return nil, errDisposed
	}
	if t.activeStreams == nil {
		t.activeStreams = make(map[uuid.UUID]*stream)
	}
	t.activeStreams[id] = st
	t.hasCurrentAddress = true
	t.currentAddress = addr
	t.sc.Unlock()

	return st, nil
}

// CurrentAddress returns the address of the connection currently in use —
// either a parked initial socket or at least one live stream — and whether
// one is present at all. The upper layer uses this to correlate a
// connectivity-state transition with the address it concerns.
func (t *Transport) CurrentAddress() (resolver.Address, bool) {
	t.sc.Lock()
	defer t.sc.Unlock()
	return t.currentAddress, t.hasCurrentAddress
}

// onStreamClosed removes a stream from the active registry and, if that was
// the last one, triggers a normal Disconnect. A panic here (none expected,
// but the dispose hook runs arbitrary bookkeeping) is logged and swallowed
// rather than allowed to escape a deferred Close.
func (t *Transport) onStreamClosed(id uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorf("%v: panic handling stream close: %v", t.sc.ID(), r)
		}
	}()

	t.sc.Lock()
	if t.disposed {
		t.sc.Unlock()
		return
	}
	delete(t.activeStreams, id)
	becameEmpty := len(t.activeStreams) == 0
	t.sc.Unlock()

	if becameEmpty {
		t.Disconnect()
	}
}

// Disconnect releases any parked socket and publishes Idle. It is a no-op
// once disposed. It does not touch streams already handed to the upper
// layer; those close independently.
func (t *Transport) Disconnect() {
	t.sc.Lock()
	if t.disposed {
		t.sc.Unlock()
		return
	}
	addr, hadAddr := t.currentAddress, t.hasCurrentAddress
	t.releaseInitialSocketLocked()
	t.sc.Unlock()

	if hadAddr {
		t.logger.Infof("%v: disconnecting from %v", t.sc.ID(), addr)
	}

	t.sc.Lock()
	if !t.disposed {
		t.sc.UpdateConnectivityState(connectivity.Idle, "Disconnected", nil)
	}
	t.sc.Unlock()
}

// Dispose permanently retires the transport: the parked socket is released,
// the probe timer is stopped, subsequent TryConnect and GetStream calls fail
// with errDisposed, and Disconnect becomes a no-op. No further
// connectivity-state transitions are published.
// Streams already handed out are unaffected by Dispose itself; closing them
// afterward is a no-op against the registry since disposed is checked first.
func (t *Transport) Dispose() {
	t.sc.Lock()
	defer t.sc.Unlock()
	if t.disposed {
		return
	}
	t.logger.Infof("%v: disposing transport", t.sc.ID())
	t.releaseInitialSocketLocked()
	t.disposed = true
}

// releaseInitialSocketLocked closes and clears any parked socket and
// disarms the probe timer. Callers must already hold the subchannel lock.
func (t *Transport) releaseInitialSocketLocked() {
	if t.initialSocket != nil {
		t.initialSocket.Close()
		t.initialSocket = nil
	}
	t.initialSocketAddress = resolver.Address{}
	t.initialSocketData = nil
	t.disarmProbeTimerLocked()
	if len(t.activeStreams) == 0 {
		t.hasCurrentAddress = false
		t.currentAddress = resolver.Address{}
	}
}
