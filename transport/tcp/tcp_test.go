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

package tcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uhf "github.com/ZaparooProject/go-uhf"
)

func TestTransport_ReadTimeoutReturnsNoData(t *testing.T) {
	t.Parallel()

	host, device := net.Pipe()
	defer func() { _ = device.Close() }()
	tr := Wrap(host)
	defer func() { _ = tr.Close() }()

	require.NoError(t, tr.SetReadTimeout(10*time.Millisecond))
	buf := make([]byte, 16)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransport_ReadWrite(t *testing.T) {
	t.Parallel()

	host, device := net.Pipe()
	defer func() { _ = device.Close() }()
	tr := Wrap(host)
	defer func() { _ = tr.Close() }()

	go func() {
		buf := make([]byte, 3)
		n, _ := device.Read(buf)
		_, _ = device.Write(buf[:n])
	}()

	n, err := tr.Write([]byte{0xA5, 0x5A, 0x01})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buf := make([]byte, 8)
	require.Eventually(t, func() bool {
		n, err = tr.Read(buf)
		return err != nil || n > 0
	}, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA5, 0x5A, 0x01}, buf[:n])
}

func TestTransport_RemoteClose(t *testing.T) {
	t.Parallel()

	host, device := net.Pipe()
	tr := Wrap(host)
	defer func() { _ = tr.Close() }()
	require.NoError(t, device.Close())

	_, err := tr.Read(make([]byte, 4))
	require.ErrorIs(t, err, uhf.ErrTransportClosed)
	assert.False(t, uhf.IsRetryable(err))
}

func TestTransport_Close(t *testing.T) {
	t.Parallel()

	host, device := net.Pipe()
	defer func() { _ = device.Close() }()
	tr := Wrap(host)

	assert.True(t, tr.IsConnected())
	assert.Equal(t, uhf.TransportTCP, tr.Type())
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())

	_, err := tr.Read(make([]byte, 1))
	require.ErrorIs(t, err, uhf.ErrTransportClosed)
	_, err = tr.Write([]byte{1})
	require.ErrorIs(t, err, uhf.ErrTransportClosed)
}

func TestDial(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	tr, err := Dialer(ln.Addr().String())(context.Background())
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	conn := <-accepted
	defer func() { _ = conn.Close() }()
	assert.True(t, tr.IsConnected())

	_, err = Dial(context.Background(), "127.0.0.1:1")
	require.Error(t, err)
}
