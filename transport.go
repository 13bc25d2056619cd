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
	"time"
)

// Transport is a byte stream to one reader. It abstracts TCP and serial
// links.
type Transport interface {
	// Read reads available bytes. It returns (0, nil) when the read timeout
	// elapses without data so I/O loops can poll for shutdown.
	Read(p []byte) (int, error)

	// Write writes one encoded frame
	Write(p []byte) (int, error)

	// SetReadTimeout sets how long Read waits for data
	SetReadTimeout(timeout time.Duration) error

	// Close closes the transport connection
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportTCP represents a network link to a reader.
	TransportTCP TransportType = "tcp"
	// TransportSerial represents a UART/RS-232/USB serial link.
	TransportSerial TransportType = "serial"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// Dialer opens a new transport to a reader.
type Dialer func(ctx context.Context) (Transport, error)
