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
	"errors"
	"io"
	"time"

	"github.com/latticerpc/subchannel/connectivity"
)

// newTimer is overridden in tests. The prober never uses a repeating
// ticker: each fire rearms itself explicitly at the end of
// its own handler, so a slow or crashing handler cannot pile up overlapping
// ticks.
var newTimer = time.AfterFunc

// armProbeTimerLocked schedules the first probe tick. Callers must already
// hold the subchannel lock.
func (t *Transport) armProbeTimerLocked() {
	t.probeTimer = newTimer(t.probeInterval, t.probeTick)
}

// disarmProbeTimerLocked cancels a pending tick, if any. Callers must already
// hold the subchannel lock. Stopping a timer whose handler is already
// running has no effect on that in-flight handler; probeTick re-validates
// state after reacquiring the lock to stay consistent under that race.
func (t *Transport) disarmProbeTimerLocked() {
	if t.probeTimer != nil {
		t.probeTimer.Stop()
		t.probeTimer = nil
	}
}

// probeTick is the prober's one-shot handler. It drains any bytes the peer
// has sent on the parked socket into the initial-data buffer, and retires
// the socket if it finds the connection dead or the buffer bound exceeded.
// Any panic escaping the body is logged and swallowed: a probe crash must
// never take down the process, and must never leave the timer disarmed.
func (t *Transport) probeTick() {
	defer t.rearmAfterProbe()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorf("%v: health probe panic: %v", t.sc.ID(), r)
		}
	}()

	closeSocket, sock, probeErr := t.drainParkedSocketLocked()
	if !closeSocket {
		return
	}

	t.sc.Lock()
	stillParked := !t.disposed && t.initialSocket == sock
	lostAddr, hadAddr := t.currentAddress, t.hasCurrentAddress
	if stillParked {
		t.releaseInitialSocketLocked()
	}
	t.sc.Unlock()

	if stillParked {
		if hadAddr {
			t.logger.Warningf("%v: lost connection to %v: %v", t.sc.ID(), lostAddr, probeErr)
		}
		t.sc.UpdateConnectivityState(connectivity.Idle, "Lost connection to socket", probeErr)
	}
}

// drainParkedSocketLocked reads everything currently available on the
// parked socket into the initial-data buffer. It reports whether the socket
// should be retired: because the peer closed it, because a read failed, or
// because draining would exceed the configured byte bound.
//
// A short read deadline stands in for a non-blocking poll (Poll/Available):
// Go's net.Conn has no such primitive, so SetReadDeadline(time.Now().Add(
// pollTimeout)) immediately before each Read bounds it, and the shared
// bufio.Reader means nothing peeked this way is ever lost to a later real
// read. Each drain therefore waits up to pollTimeout, under the lock, for its
// final empty read.
func (t *Transport) drainParkedSocketLocked() (closeSocket bool, sock *socket, probeErr error) {
	t.sc.Lock()
	defer t.sc.Unlock()

	if t.disposed || t.initialSocket == nil {
		return false, nil, nil
	}
	sock = t.initialSocket
	data := t.initialSocketData
	defer sock.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, pollBufSize)
	for {
		_ = sock.conn.SetReadDeadline(time.Now().Add(pollTimeout))
		n, err := sock.br.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if appendErr := data.append(chunk, t.maxInitialSocketBytes); appendErr != nil {
				return true, sock, appendErr
			}
		}
		if err != nil {
			if isTimeout(err) {
				return false, sock, nil
			}
			if errors.Is(err, io.EOF) {
				return true, sock, nil
			}
			return true, sock, err
		}
		if n == 0 {
			return false, sock, nil
		}
	}
}

// rearmAfterProbe reschedules the next tick. It only does so if a socket is
// still parked and the transport isn't disposed: invariant holds that the
// probe timer is armed only while initialSocket is present, so a tick that
// raced with GetStream consuming (and disarming) the socket must not revive
// it, even though the prose description of this loop describes an
// unconditional reschedule.
func (t *Transport) rearmAfterProbe() {
	t.sc.Lock()
	defer t.sc.Unlock()
	if t.disposed || t.initialSocket == nil {
		return
	}
	t.probeTimer = newTimer(t.probeInterval, t.probeTick)
}
