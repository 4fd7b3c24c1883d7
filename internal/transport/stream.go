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
)

// stream implements Stream. Reads are served first from any bytes the
// health prober buffered before the upper layer attached, then fall through
// to the live socket; the switch is a one-time, one-directional handoff.
type stream struct {
	sock *socket
	pre  io.Reader

	closeOnce sync.Once
	onClose   func()
}

// newStream wraps sock for handoff to the upper layer. data may be nil,
// meaning nothing was buffered ahead of this stream.
func newStream(sock *socket, data *initialDataBuffer, onClose func()) *stream {
	return &stream{
		sock:    sock,
		pre:     data.reader(),
		onClose: onClose,
	}
}

func (s *stream) Read(p []byte) (int, error) {
	if s.pre != nil {
		n, err := s.pre.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		s.pre = nil
	}
	return s.sock.br.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	return s.sock.conn.Write(p)
}

// Close releases the socket exactly once and fires the dispose hook. A
// panic escaping the hook is swallowed: a stream consumer's bookkeeping bug
// must not prevent the socket itself from closing, and must not propagate
// out of Close.
func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.sock.Close()
		s.runOnClose()
	})
	return err
}

func (s *stream) runOnClose() {
	if s.onClose == nil {
		return
	}
	defer func() { recover() }()
	s.onClose()
}

// discard closes the underlying socket without running the dispose hook.
// Used when a stream is abandoned before it was ever registered as active,
// e.g. because Dispose raced GetStream's registration step.
func (s *stream) discard() {
	s.closeOnce.Do(func() {
		_ = s.sock.Close()
	})
}
