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

package serial

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uhf "github.com/ZaparooProject/go-uhf"
)

// TestTransportCreation verifies basic transport properties without a port
func TestTransportCreation(t *testing.T) {
	t.Parallel()

	transport := &Transport{portName: "/dev/ttyUSB0"}

	assert.Equal(t, "/dev/ttyUSB0", transport.portName)
	assert.Equal(t, uhf.TransportSerial, transport.Type())
	assert.False(t, transport.IsConnected())

	_, err := transport.Read(make([]byte, 4))
	require.ErrorIs(t, err, uhf.ErrTransportClosed)
	_, err = transport.Write([]byte{0x01})
	require.ErrorIs(t, err, uhf.ErrTransportClosed)
}

func TestNew_MissingPort(t *testing.T) {
	t.Parallel()

	_, err := New("/dev/does-not-exist-uhf", 0)
	require.Error(t, err)

	var te *uhf.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "open", te.Op)
}

func TestDialer_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Dialer("/dev/ttyUSB0", DefaultBaudRate)(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
