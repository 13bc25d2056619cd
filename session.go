// go-uhf
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-uhf.
//
// go-uhf is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-uhf is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-uhf; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package uhf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-uhf/internal/frame"
)

const (
	// responseTimeout bounds how long a request waits for its answer
	responseTimeout = time.Second
	// readTimeout is how often the I/O loop wakes up to check for shutdown
	readTimeout = 100 * time.Millisecond
	// requestRetries is the number of extra attempts after a response timeout
	requestRetries = 2
	readBufferSize = 4096
)

// pendingRequest is the single outstanding request of a session.
type pendingRequest struct {
	ch  chan frame.Frame
	cmd byte
}

// matches reports whether f answers the request.
func (p *pendingRequest) matches(f frame.Frame) bool {
	if f.Command == p.cmd {
		return true
	}
	return f.Command == CmdError && len(f.Payload) > 0 && f.Payload[0] == p.cmd
}

// session is one live connection: a transport, the goroutine reading it and
// the request waiter. A session is never reused after it ends.
type session struct {
	transport Transport
	pending   *pendingRequest
	onReport  func(frame.Frame)
	onFailure func(error)
	onDiscard func(reason string, err error)
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	// reqMu allows one outstanding request at a time
	reqMu     sync.Mutex
	pendingMu sync.Mutex
	address   byte
}

func newSession(t Transport, address byte) *session {
	return &session{
		transport: t,
		address:   address,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		onReport:  func(frame.Frame) {},
		onFailure: func(error) {},
		onDiscard: func(string, error) {},
	}
}

func (s *session) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// run is the I/O loop. It exits when the session is closed or the transport
// fails; a failure is reported through onFailure exactly once.
func (s *session) run() {
	defer close(s.done)

	var stream frame.Stream
	buf := make([]byte, readBufferSize)
	for !s.stopping() {
		n, err := s.transport.Read(buf)
		if err != nil {
			if s.stopping() {
				return
			}
			_ = s.transport.Close()
			s.onFailure(err)
			return
		}
		if n == 0 {
			continue
		}
		_, _ = stream.Write(buf[:n])
		s.drain(&stream)
	}
}

func (s *session) drain(stream *frame.Stream) {
	for {
		f, err := stream.Next()
		switch {
		case err == nil:
			s.dispatch(f)
		case errors.Is(err, frame.ErrChecksum):
			s.onDiscard("corrupt frame", err)
		default:
			return
		}
	}
}

func (s *session) dispatch(f frame.Frame) {
	if f.Command == CmdInventoryReport {
		s.onReport(f)
		return
	}

	s.pendingMu.Lock()
	p := s.pending
	if p != nil && p.matches(f) {
		s.pending = nil
	} else {
		p = nil
	}
	s.pendingMu.Unlock()

	if p == nil {
		s.onDiscard("unsolicited "+f.String(), nil)
		return
	}
	p.ch <- f
}

// send writes a frame without waiting for an answer.
func (s *session) send(cmd byte, payload []byte) error {
	data, err := frame.Encode(cmd, s.address, payload)
	if err != nil {
		return err
	}
	if _, err := s.transport.Write(data); err != nil {
		return fmt.Errorf("%s: %w", CommandName(cmd), err)
	}
	return nil
}

// request writes a frame and waits for its answer. An error frame is returned
// as *ProtocolError.
func (s *session) request(ctx context.Context, cmd byte, payload []byte, timeout time.Duration) (frame.Frame, error) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	p := &pendingRequest{cmd: cmd, ch: make(chan frame.Frame, 1)}
	s.pendingMu.Lock()
	s.pending = p
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		if s.pending == p {
			s.pending = nil
		}
		s.pendingMu.Unlock()
	}()

	if err := s.send(cmd, payload); err != nil {
		return frame.Frame{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-p.ch:
		if f.Command == CmdError {
			status := StatusUnknownCommand
			if len(f.Payload) > 1 {
				status = f.Payload[1]
			}
			return f, &ProtocolError{Cmd: cmd, Status: status}
		}
		return f, nil
	case <-timer.C:
		return frame.Frame{}, fmt.Errorf("%s: %w", CommandName(cmd), ErrResponseTimeout)
	case <-s.done:
		return frame.Frame{}, fmt.Errorf("%s: %w", CommandName(cmd), ErrSessionClosed)
	case <-ctx.Done():
		return frame.Frame{}, fmt.Errorf("%s: %w", CommandName(cmd), ctx.Err())
	}
}

// close stops the I/O loop, closes the transport and waits for the loop to
// exit. It must not be called from the I/O goroutine.
func (s *session) close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stop)
		err = s.transport.Close()
	})
	<-s.done
	return err
}
