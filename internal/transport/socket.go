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
	"bufio"
	"context"
	"net"
)

// DialFunc creates a connection to addr. It is the transport's sole
// injection point for tests; production use wraps net.Dialer.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// defaultDial dials addr over TCP and disables Nagle's algorithm, matching
// the spec's "create a new TCP socket with Nagle disabled" step.
func defaultDial(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}

// pollBufSize is the size of the bufio.Reader wrapping every socket this
// transport owns. Wrapping once, at connect time, and routing every
// subsequent read (probe drain, liveness peek, and the eventual live-socket
// reads handed to the upper layer) through the same *bufio.Reader ensures
// a byte peeked to test for readability is never lost: bufio buffers it for
// the next real Read instead of the data being consumed and discarded.
const pollBufSize = 4096

// socket bundles a connected net.Conn with the buffered reader every probe
// and liveness check must share with it.
type socket struct {
	conn net.Conn
	br   *bufio.Reader
}

func newSocket(conn net.Conn) *socket {
	return &socket{conn: conn, br: bufio.NewReaderSize(conn, pollBufSize)}
}

func (s *socket) Close() error {
	return s.conn.Close()
}
