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

package transport_test

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/latticerpc/subchannel/connectivity"
	"github.com/latticerpc/subchannel/internal/connectivitystate"
	"github.com/latticerpc/subchannel/internal/testutils"
	"github.com/latticerpc/subchannel/internal/transport"
	"github.com/latticerpc/subchannel/resolver"
	"github.com/latticerpc/subchannel/subchannel"
)

const testTimeout = 5 * time.Second

// changeRecorder is a connectivitystate.Watcher that records every
// transition it sees, safe for concurrent use since the prober fires on its
// own goroutine.
type changeRecorder struct {
	mu      sync.Mutex
	changes []connectivitystate.Change
}

func (r *changeRecorder) OnStateChange(c connectivitystate.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) snapshot() []connectivitystate.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]connectivitystate.Change(nil), r.changes...)
}

func (r *changeRecorder) waitForState(t *testing.T, want connectivity.State) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		for _, c := range r.snapshot() {
			if c.State == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, saw: %+v", want, r.snapshot())
}

func (r *changeRecorder) waitForReason(t *testing.T, reason string) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		for _, c := range r.snapshot() {
			if c.Reason == reason {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for reason %q, saw: %+v", reason, r.snapshot())
}

func newTestSubchannel(t *testing.T, addrs ...string) (*subchannel.Subchannel, *changeRecorder) {
	t.Helper()
	var ras []resolver.Address
	for _, a := range addrs {
		ras = append(ras, resolver.Address{Addr: a})
	}
	sc := subchannel.New(t.Name(), ras)
	r := &changeRecorder{}
	sc.Watch(r)
	return sc, r
}

func dialFuncFor(d *testutils.BlockingDialer) transport.DialFunc {
	return func(ctx context.Context, _, addr string) (net.Conn, error) {
		return d.DialContext(ctx, addr)
	}
}

func TestTryConnectAllAddressesFail(t *testing.T) {
	// Nothing listens on loopback ports 1 and 2; connecting to them fails
	// immediately.
	sc, rec := newTestSubchannel(t, "127.0.0.1:1", "127.0.0.1:2")
	tr := transport.New(transport.Config{Subchannel: sc})
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	result, err := tr.TryConnect(ctx)
	if err == nil || result != transport.ConnectFailure {
		t.Fatalf("TryConnect() = (%v, %v), want (Failure, non-nil error)", result, err)
	}
	rec.waitForState(t, connectivity.TransientFailure)
}

func TestTryConnectTimeout(t *testing.T) {
	lis, err := testutils.LocalTCPListener()
	if err != nil {
		t.Fatalf("LocalTCPListener() failed: %v", err)
	}
	defer lis.Close()

	dialer := testutils.NewBlockingDialer()
	hold := dialer.Hold(lis.Addr().String())

	sc, _ := newTestSubchannel(t, lis.Addr().String())
	tr := transport.New(transport.Config{
		Subchannel:     sc,
		ConnectTimeout: 30 * time.Millisecond,
		Dial:           dialFuncFor(dialer),
	})
	defer tr.Dispose()

	go func() {
		if hold.Wait(context.Background()) {
			// Never resumed: the connect timeout fires first.
		}
	}()

	result, err := tr.TryConnect(context.Background())
	if err == nil || result != transport.ConnectTimeout {
		t.Fatalf("TryConnect() = (%v, %v), want (Timeout, non-nil error)", result, err)
	}
}

func TestGetStreamDialsFreshWhenNothingParked(t *testing.T) {
	lis, err := testutils.LocalTCPListener()
	if err != nil {
		t.Fatalf("LocalTCPListener() failed: %v", err)
	}
	defer lis.Close()

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	sc, _ := newTestSubchannel(t, lis.Addr().String())
	tr := transport.New(transport.Config{Subchannel: sc})
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	st, err := tr.GetStream(ctx, resolver.Address{Addr: lis.Addr().String()})
	if err != nil {
		t.Fatalf("GetStream() failed: %v", err)
	}
	st.Close()
}

func TestDisconnectPublishesIdleAndReleasesSocket(t *testing.T) {
	lis, err := testutils.LocalTCPListener()
	if err != nil {
		t.Fatalf("LocalTCPListener() failed: %v", err)
	}
	defer lis.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := lis.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	sc, rec := newTestSubchannel(t, lis.Addr().String())
	tr := transport.New(transport.Config{
		Subchannel:    sc,
		ProbeInterval: time.Hour, // don't let the prober race this test
	})
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if result, err := tr.TryConnect(ctx); err != nil || result != transport.ConnectSuccess {
		t.Fatalf("TryConnect() = (%v, %v), want (Success, nil)", result, err)
	}
	rec.waitForState(t, connectivity.Ready)

	select {
	case conn := <-accepted:
		conn.Close()
	case <-time.After(testTimeout):
		t.Fatal("server never observed the connection")
	}

	tr.Disconnect()
	rec.waitForReason(t, "Disconnected")
	if _, ok := tr.CurrentAddress(); ok {
		t.Fatal("CurrentAddress() still present after Disconnect released the parked socket")
	}
}

func TestDisposeFailsSubsequentOperations(t *testing.T) {
	sc, _ := newTestSubchannel(t, "127.0.0.1:1")
	tr := transport.New(transport.Config{Subchannel: sc})
	tr.Dispose()
	tr.Dispose() // must be a harmless no-op the second time

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if _, err := tr.TryConnect(ctx); err == nil {
		t.Fatal("TryConnect() after Dispose() succeeded, want error")
	}
	if _, err := tr.GetStream(ctx, resolver.Address{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("GetStream() after Dispose() succeeded, want error")
	}
}

func TestLastStreamCloseTriggersDisconnect(t *testing.T) {
	lis, err := testutils.LocalTCPListener()
	if err != nil {
		t.Fatalf("LocalTCPListener() failed: %v", err)
	}
	defer lis.Close()

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go io.Copy(io.Discard, conn)
		}
	}()

	sc, rec := newTestSubchannel(t, lis.Addr().String())
	tr := transport.New(transport.Config{Subchannel: sc})
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	addr := resolver.Address{Addr: lis.Addr().String()}
	st, err := tr.GetStream(ctx, addr)
	if err != nil {
		t.Fatalf("GetStream() failed: %v", err)
	}

	st.Close()
	rec.waitForReason(t, "Disconnected")
}

// TestTryConnectRoundRobinResumesAfterDisconnect exercises S2: a connect
// attempt that fails over past a dead address must leave lastEndpointIndex
// at the address that succeeded, so the next attempt (after a Disconnect)
// tries that address first instead of restarting the scan from zero.
func TestTryConnectRoundRobinResumesAfterDisconnect(t *testing.T) {
	const addrA = "unreachable-addr:1"

	lisB, err := testutils.LocalTCPListener()
	if err != nil {
		t.Fatalf("LocalTCPListener() failed: %v", err)
	}
	defer lisB.Close()
	go func() {
		for {
			conn, err := lisB.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	addrB := lisB.Addr().String()

	dialer := testutils.NewBlockingDialer()
	sc, rec := newTestSubchannel(t, addrA, addrB)
	tr := transport.New(transport.Config{
		Subchannel: sc,
		Dial:       dialFuncFor(dialer),
	})
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	// Round 1: addrA fails, addrB succeeds. The cursor should land on
	// addrB's index.
	holdA1 := dialer.Hold(addrA)
	holdB1 := dialer.Hold(addrB)

	done := make(chan struct{})
	var result transport.ConnectResult
	go func() {
		result, err = tr.TryConnect(ctx)
		close(done)
	}()

	if !holdA1.Wait(ctx) {
		t.Fatal("dial to addrA never started")
	}
	holdA1.Fail(errors.New("refused"))

	if !holdB1.Wait(ctx) {
		t.Fatal("dial to addrB never started")
	}
	holdB1.Resume()

	<-done
	if err != nil || result != transport.ConnectSuccess {
		t.Fatalf("TryConnect() round 1 = (%v, %v), want (Success, nil)", result, err)
	}
	rec.waitForState(t, connectivity.Ready)

	tr.Disconnect()
	rec.waitForState(t, connectivity.Idle)

	// Round 2: both addresses are held so either order is observable
	// without the test hanging or depending on real DNS/dial failures.
	// If the cursor resumed correctly, addrB is dialed first and addrA is
	// never dialed at all.
	holdA2 := dialer.Hold(addrA)
	holdB2 := dialer.Hold(addrB)

	started := make(chan string, 2)
	go func() {
		if holdA2.Wait(ctx) {
			started <- "A"
		}
	}()
	go func() {
		if holdB2.Wait(ctx) {
			started <- "B"
		}
	}()

	done2 := make(chan struct{})
	go func() {
		result, err = tr.TryConnect(ctx)
		close(done2)
	}()

	select {
	case which := <-started:
		if which != "B" {
			holdA2.Fail(errors.New("should not have been dialed"))
			t.Fatalf("round-robin did not resume: addr %s was dialed first, want B", which)
		}
	case <-ctx.Done():
		t.Fatal("neither address was dialed in round 2")
	}
	holdB2.Resume()

	<-done2
	if err != nil || result != transport.ConnectSuccess {
		t.Fatalf("TryConnect() round 2 = (%v, %v), want (Success, nil)", result, err)
	}
	if holdA2.IsStarted() {
		t.Fatal("round-robin dialed addrA in round 2 after already resuming at addrB")
	}
}

// TestGetStreamClearsCurrentAddressWhenFreshDialFails is a regression test:
// discarding a parked socket for a mismatched address must clear
// currentAddress immediately rather than leaving it pointing at the dead
// connection if the replacement dial then also fails.
func TestGetStreamClearsCurrentAddressWhenFreshDialFails(t *testing.T) {
	lis, err := testutils.LocalTCPListener()
	if err != nil {
		t.Fatalf("LocalTCPListener() failed: %v", err)
	}
	defer lis.Close()

	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(testTimeout)
	}()

	sc, _ := newTestSubchannel(t, lis.Addr().String())
	tr := transport.New(transport.Config{
		Subchannel:    sc,
		ProbeInterval: time.Hour,
	})
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if result, err := tr.TryConnect(ctx); err != nil || result != transport.ConnectSuccess {
		t.Fatalf("TryConnect() = (%v, %v), want (Success, nil)", result, err)
	}
	if _, ok := tr.CurrentAddress(); !ok {
		t.Fatal("CurrentAddress() absent right after a successful TryConnect")
	}

	// Port 1 never listens; the fresh dial this GetStream triggers fails.
	if _, err := tr.GetStream(ctx, resolver.Address{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("GetStream() to an unreachable address succeeded, want error")
	}

	if _, ok := tr.CurrentAddress(); ok {
		t.Fatal("CurrentAddress() still reported present after GetStream's fresh dial failed")
	}
}

// TestCurrentAddressTracksConnectAndDisconnect exercises the upper-layer
// reader of currentAddress directly.
func TestCurrentAddressTracksConnectAndDisconnect(t *testing.T) {
	lis, err := testutils.LocalTCPListener()
	if err != nil {
		t.Fatalf("LocalTCPListener() failed: %v", err)
	}
	defer lis.Close()

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	sc, rec := newTestSubchannel(t, lis.Addr().String())
	tr := transport.New(transport.Config{
		Subchannel:    sc,
		ProbeInterval: time.Hour,
	})
	defer tr.Dispose()

	if _, ok := tr.CurrentAddress(); ok {
		t.Fatal("CurrentAddress() present before any connect attempt")
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if result, err := tr.TryConnect(ctx); err != nil || result != transport.ConnectSuccess {
		t.Fatalf("TryConnect() = (%v, %v), want (Success, nil)", result, err)
	}
	rec.waitForState(t, connectivity.Ready)

	got, ok := tr.CurrentAddress()
	if !ok || got.Addr != lis.Addr().String() {
		t.Fatalf("CurrentAddress() = (%v, %v), want (%v, true)", got, ok, lis.Addr().String())
	}

	tr.Disconnect()
	rec.waitForState(t, connectivity.Idle)

	if _, ok := tr.CurrentAddress(); ok {
		t.Fatal("CurrentAddress() still present after Disconnect")
	}
}

// TestGetStreamReplaysPrebufferedBytesFromPeer grounds scenario S6 through
// testutils.PipeListener: the prober buffers bytes the peer sends before
// the upper layer attaches, and GetStream replays them ahead of live socket
// reads.
func TestGetStreamReplaysPrebufferedBytesFromPeer(t *testing.T) {
	pl := testutils.NewPipeListener()

	const greeting = "hello from peer"
	go func() {
		conn, err := pl.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(greeting))
		// Keep the connection open so GetStream can reuse it.
		time.Sleep(testTimeout)
	}()

	sc, rec := newTestSubchannel(t, "pipe")
	dial := pl.Dialer()
	tr := transport.New(transport.Config{
		Subchannel:    sc,
		ProbeInterval: 20 * time.Millisecond,
		Dial: func(_ context.Context, _, _ string) (net.Conn, error) {
			return dial("", 0)
		},
	})
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	// Give the Accept goroutine time to start blocking on pl.C before the
	// first dial.
	time.Sleep(20 * time.Millisecond)

	result, err := tr.TryConnect(ctx)
	if err != nil || result != transport.ConnectSuccess {
		t.Fatalf("TryConnect() = (%v, %v), want (Success, nil)", result, err)
	}
	rec.waitForState(t, connectivity.Ready)

	// Give the prober a couple of ticks to drain the greeting.
	time.Sleep(100 * time.Millisecond)

	st, err := tr.GetStream(ctx, resolver.Address{Addr: "pipe"})
	if err != nil {
		t.Fatalf("GetStream() failed: %v", err)
	}
	defer st.Close()

	buf := make([]byte, len(greeting))
	if _, err := io.ReadFull(st, buf); err != nil {
		t.Fatalf("reading from stream: %v", err)
	}
	if string(buf) != greeting {
		t.Fatalf("stream prefix = %q, want %q (prober-buffered bytes were not replayed)", buf, greeting)
	}
}

// TestProbeRetiresSocketClosedByPeerThroughPipeListener grounds scenario S5
// through testutils.PipeListener: the peer hanging up on a parked socket is
// detected by the health prober (not by any explicit Disconnect call) and
// published as a Lost-connection Idle transition.
func TestProbeRetiresSocketClosedByPeerThroughPipeListener(t *testing.T) {
	pl := testutils.NewPipeListener()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := pl.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	sc, rec := newTestSubchannel(t, "pipe")
	dial := pl.Dialer()
	tr := transport.New(transport.Config{
		Subchannel:    sc,
		ProbeInterval: 20 * time.Millisecond,
		Dial: func(_ context.Context, _, _ string) (net.Conn, error) {
			return dial("", 0)
		},
	})
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	time.Sleep(20 * time.Millisecond)

	result, err := tr.TryConnect(ctx)
	if err != nil || result != transport.ConnectSuccess {
		t.Fatalf("TryConnect() = (%v, %v), want (Success, nil)", result, err)
	}
	rec.waitForState(t, connectivity.Ready)

	select {
	case conn := <-accepted:
		conn.Close() // peer hangs up while the socket is still parked
	case <-time.After(testTimeout):
		t.Fatal("server never observed the connection")
	}

	rec.waitForReason(t, "Lost connection to socket")
}
