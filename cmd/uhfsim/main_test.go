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

package main

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

func TestParseFlags(t *testing.T) {
	t.Parallel()

	f, err := parseFlags([]string{
		"-l", ":7000", "--epcs", "E2801170000002085C1A1C50, 300833B2DDD9014000000000",
		"--interval", "50ms", "--reject-unknown", "--firmware", "SIM-2",
	})
	require.NoError(t, err)
	assert.Equal(t, ":7000", f.listen)
	assert.Equal(t, []string{"E2801170000002085C1A1C50", "300833B2DDD9014000000000"}, f.epcs)
	assert.Equal(t, 50*time.Millisecond, f.interval)
	assert.True(t, f.rejectUnknown)
	assert.Len(t, f.options(), 6)

	f, err = parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6000", f.listen)
	assert.Len(t, f.options(), 4)
}

func TestServedIdentity(t *testing.T) {
	t.Parallel()

	f, err := parseFlags([]string{"--firmware", "SIM-2"})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- emulator.NewServer(nil, f.options()...).Serve(ctx, ln) }()

	r := uhf.NewReader(uhf.ReaderConfig{
		Name:     "sim",
		Dial:     tcp.Dialer(ln.Addr().String()),
		Settings: uhf.DefaultSettings(),
	})
	require.NoError(t, r.Connect(ctx))
	assert.Equal(t, "SIM-2", r.FirmwareVersion())
	sn, err := r.SerialNumber(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, sn, "default serial kept")
	require.NoError(t, r.Disconnect(ctx))

	cancel()
	require.NoError(t, <-done)
}
