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

// Package serial provides the RS-232/USB serial transport for fixed readers
package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	uhf "github.com/ZaparooProject/go-uhf"
)

// DefaultBaudRate is the factory baud rate of most fixed UHF readers.
const DefaultBaudRate = 115200

// Transport implements the uhf.Transport interface over a serial port
type Transport struct {
	port     serial.Port
	portName string
	mu       sync.Mutex
	closed   bool
}

// New opens portName at baud.
func New(portName string, baud int) (*Transport, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, uhf.NewTransportError("open", portName, err, uhf.ErrorTypeTransient)
	}
	return &Transport{port: port, portName: portName}, nil
}

// Dialer returns a uhf.Dialer that opens portName.
func Dialer(portName string, baud int) uhf.Dialer {
	return func(ctx context.Context) (uhf.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(portName, baud)
	}
}

// Read reads available bytes. go.bug.st/serial already returns (0, nil)
// when the read timeout expires.
func (t *Transport) Read(p []byte) (int, error) {
	if !t.IsConnected() {
		return 0, uhf.ErrTransportClosed
	}
	n, err := t.port.Read(p)
	if err != nil {
		if isDisconnect(err) {
			return n, uhf.NewTransportError("read", t.portName, errors.Join(uhf.ErrTransportClosed, err), uhf.ErrorTypePermanent)
		}
		return n, uhf.NewTransportError("read", t.portName, errors.Join(uhf.ErrTransportRead, err), uhf.ErrorTypeTransient)
	}
	return n, nil
}

// Write writes one encoded frame and waits for it to leave the buffer
func (t *Transport) Write(p []byte) (int, error) {
	if !t.IsConnected() {
		return 0, uhf.ErrTransportClosed
	}
	n, err := t.port.Write(p)
	if err != nil {
		return n, uhf.NewTransportError("write", t.portName, errors.Join(uhf.ErrTransportWrite, err), uhf.ErrorTypeTransient)
	}
	if err := t.port.Drain(); err != nil {
		return n, uhf.NewTransportError("drain", t.portName, err, uhf.ErrorTypeTransient)
	}
	return n, nil
}

// SetReadTimeout sets how long Read waits for data
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set read timeout on %s: %w", t.portName, err)
	}
	return nil
}

// Close closes the serial port. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.port.Close()
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil && !t.closed
}

// Type returns the transport type
func (*Transport) Type() uhf.TransportType {
	return uhf.TransportSerial
}

// isDisconnect reports whether err means the device is gone.
func isDisconnect(err error) bool {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return false
	}
	switch portErr.Code() {
	case serial.PortClosed, serial.PortNotFound, serial.InvalidSerialPort:
		return true
	default:
		return false
	}
}
