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

package emulator_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/emulator"
	"github.com/ZaparooProject/go-uhf/transport/tcp"
)

func TestServer_ServesReaders(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := emulator.NewServer(nil,
		emulator.WithIdentity("SIM-1", "SIM-SN"),
		emulator.WithReportInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	addr := ln.Addr().String()
	tags := make(chan uhf.TagSighting, 64)
	readers := make([]*uhf.Reader, 0, 2)
	for _, name := range []string{"one", "two"} {
		r := uhf.NewReader(uhf.ReaderConfig{Name: name, Dial: tcp.Dialer(addr), Settings: uhf.DefaultSettings()},
			uhf.WithListener(uhf.ListenerFuncs{Tag: func(_ string, s uhf.TagSighting) {
				select {
				case tags <- s:
				default:
				}
			}}))
		require.NoError(t, r.Connect(ctx))
		assert.Equal(t, "SIM-1", r.FirmwareVersion())
		readers = append(readers, r)
	}

	require.NoError(t, readers[0].StartInventory(ctx))
	select {
	case s := <-tags:
		assert.True(t, s.CRCValid)
	case <-time.After(2 * time.Second):
		t.Fatal("no inventory report received")
	}

	// the second connection has its own device
	params, err := readers[1].SystemParams(ctx)
	require.NoError(t, err)
	assert.False(t, params.Inventory)

	_, err = readers[0].StopInventory(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	for _, r := range readers {
		require.Eventually(t, func() bool { return r.Status() == uhf.StatusError }, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, r.Disconnect(context.Background()))
	}
}
