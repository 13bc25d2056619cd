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
	"sync"
	"time"

	"github.com/ZaparooProject/go-uhf/internal/frame"
)

// MockTransport is an in-memory Transport for tests. Every written frame is
// recorded and passed to ResponseFunc; the frames it returns become readable.
// A read error can be injected to simulate a dropped link.
type MockTransport struct {
	ResponseFunc func(cmd byte, payload []byte) [][]byte
	readErr      error
	dataCh       chan struct{}
	written      []frame.Frame
	pending      []byte
	timeout      time.Duration
	mu           sync.Mutex
	closed       bool
}

// NewMockTransport creates a mock that answers nothing until ResponseFunc is
// set.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		dataCh:  make(chan struct{}, 1),
		timeout: readTimeout,
	}
}

// NewMockTransportWithFunc creates a mock transport with a response function
func NewMockTransportWithFunc(fn func(cmd byte, payload []byte) [][]byte) *MockTransport {
	m := NewMockTransport()
	m.ResponseFunc = fn
	return m
}

// Read returns queued bytes, waiting up to the read timeout.
func (m *MockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	timeout := m.timeout
	m.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		m.mu.Lock()
		switch {
		case m.closed:
			m.mu.Unlock()
			return 0, ErrTransportClosed
		case m.readErr != nil:
			err := m.readErr
			m.mu.Unlock()
			return 0, err
		case len(m.pending) > 0:
			n := copy(p, m.pending)
			m.pending = m.pending[n:]
			m.mu.Unlock()
			return n, nil
		}
		m.mu.Unlock()

		select {
		case <-m.dataCh:
		case <-deadline.C:
			return 0, nil
		}
	}
}

// Write records the frame and queues the configured answer.
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrTransportClosed
	}
	f, _, err := frame.Decode(p)
	if err != nil {
		m.mu.Unlock()
		return 0, err
	}
	m.written = append(m.written, f)
	fn := m.ResponseFunc
	m.mu.Unlock()

	if fn != nil {
		for _, resp := range fn(f.Command, f.Payload) {
			m.Inject(resp)
		}
	}
	return len(p), nil
}

// Inject makes raw bytes readable, as if the device had sent them.
func (m *MockTransport) Inject(data []byte) {
	m.mu.Lock()
	m.pending = append(m.pending, data...)
	m.mu.Unlock()
	m.signal()
}

// FailRead makes every following Read return err.
func (m *MockTransport) FailRead(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
	m.signal()
}

// Written returns the frames written so far.
func (m *MockTransport) Written() []frame.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]frame.Frame(nil), m.written...)
}

// Commands returns the command codes written so far.
func (m *MockTransport) Commands() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, 0, len(m.written))
	for _, f := range m.written {
		out = append(out, f.Command)
	}
	return out
}

// SetReadTimeout configures how long Read waits for data
func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// Close unblocks all operations and marks transport as closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
	return nil
}

// IsConnected returns false after Close
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

func (m *MockTransport) signal() {
	select {
	case m.dataCh <- struct{}{}:
	default:
	}
}

// AckAll answers every command with an OK acknowledgement, firmware queries
// with version and StartInventory with nothing.
func AckAll(version string) func(cmd byte, payload []byte) [][]byte {
	return func(cmd byte, _ []byte) [][]byte {
		switch cmd {
		case CmdStartInventory:
			return nil
		case CmdGetFirmwareVersion:
			return [][]byte{frame.MustEncode(cmd, DefaultDeviceAddress, []byte(version))}
		case CmdStopInventory:
			stats, _ := StopStats{}.MarshalBinary()
			return [][]byte{frame.MustEncode(cmd, DefaultDeviceAddress, stats)}
		default:
			return [][]byte{frame.MustEncode(cmd, DefaultDeviceAddress, []byte{StatusOK})}
		}
	}
}

// MockDialer returns a Dialer handing out t.
func MockDialer(t Transport) Dialer {
	return func(ctx context.Context) (Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return t, nil
	}
}
