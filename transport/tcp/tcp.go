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

// Package tcp provides the network transport for fixed readers
package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = time.Second
	defaultReadTimeout  = 100 * time.Millisecond
)

// Transport implements the uhf.Transport interface over a net.Conn
type Transport struct {
	conn         net.Conn
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	mu           sync.RWMutex
	closed       bool
}

// Dial connects to addr ("host:port").
func Dial(ctx context.Context, addr string) (*Transport, error) {
	d := net.Dialer{Timeout: defaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, uhf.NewTransportError("dial", addr, err, uhf.ErrorTypeTransient)
	}
	return Wrap(conn), nil
}

// Dialer returns a uhf.Dialer connecting to addr.
func Dialer(addr string) uhf.Dialer {
	return func(ctx context.Context) (uhf.Transport, error) {
		return Dial(ctx, addr)
	}
}

// Wrap adapts an established connection, such as one end of a net.Pipe.
func Wrap(conn net.Conn) *Transport {
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &Transport{
		conn:         conn,
		addr:         addr,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
	}
}

// Read reads available bytes, returning (0, nil) when the read timeout
// elapses without data.
func (t *Transport) Read(p []byte) (int, error) {
	t.mu.RLock()
	conn, timeout, closed := t.conn, t.readTimeout, t.closed
	t.mu.RUnlock()
	if closed {
		return 0, uhf.ErrTransportClosed
	}

	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}
	n, err := conn.Read(p)
	if err == nil {
		return n, nil
	}
	if isTimeout(err) {
		return n, nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return n, uhf.NewTransportError("read", t.addr, uhf.ErrTransportClosed, uhf.ErrorTypePermanent)
	}
	return n, uhf.NewTransportError("read", t.addr, errors.Join(uhf.ErrTransportRead, err), uhf.ErrorTypeTransient)
}

// Write writes p, bounded by the write timeout.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.RLock()
	conn, timeout, closed := t.conn, t.writeTimeout, t.closed
	t.mu.RUnlock()
	if closed {
		return 0, uhf.ErrTransportClosed
	}

	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	n, err := conn.Write(p)
	if err != nil {
		if isTimeout(err) {
			return n, uhf.NewTimeoutError("write", t.addr)
		}
		return n, uhf.NewTransportError("write", t.addr, errors.Join(uhf.ErrTransportWrite, err), uhf.ErrorTypeTransient)
	}
	return n, nil
}

// SetReadTimeout sets how long Read waits for data
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = timeout
	return nil
}

// Close closes the connection. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// IsConnected returns true until Close is called
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.closed
}

// Type returns the transport type
func (*Transport) Type() uhf.TransportType {
	return uhf.TransportTCP
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
