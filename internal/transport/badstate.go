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
	"net"
	"time"
)

// isSocketInBadState reports whether s is unusable: closed by the peer, or
// broken in a way that makes it unsafe to hand to the upper layer.
//
// It polls with a Peek(1) on the socket's shared bufio.Reader under a
// pollTimeout read deadline:
//   - Peek times out (nothing pending)       -> healthy, no data available.
//   - Peek succeeds (data pending)            -> healthy, connection live.
//   - Peek returns io.EOF                     -> peer closed cleanly, bad.
//   - Peek returns any other error            -> bad.
//
// Using the socket's own bufio.Reader (rather than a throwaway one) means a
// byte observed during the poll is buffered for the next real Read, never
// lost — this is what lets the prober later drain exactly those bytes into
// the initial-data buffer without disturbing them.
func isSocketInBadState(s *socket) bool {
	_ = s.conn.SetReadDeadline(time.Now().Add(pollTimeout))
	defer s.conn.SetReadDeadline(time.Time{})

	_, err := s.br.Peek(1)
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF):
		return true
	case isTimeout(err):
		return false
	default:
		return true
	}
}

// pollTimeout is the read deadline used when polling a socket. A deadline
// that has already passed makes the read fail with a timeout before the
// connection is looked at, so a poll sets one slightly in the future to
// observe pending bytes or a peer close.
const pollTimeout = time.Millisecond

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
