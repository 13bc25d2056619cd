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
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/emulator"
)

type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	o, err := parseFlags([]string{"-a", "10.0.0.21:6000", "--power", "20,22", "-t", "3s", "-q"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.21:6000", o.reader.Address)
	assert.Equal(t, []uint8{20, 22}, o.reader.Power)
	assert.Equal(t, 3*time.Second, o.timeout)
	assert.True(t, o.quiet)

	_, err = parseFlags([]string{"--power", "40"})
	require.ErrorContains(t, err, "exceeds")

	_, err = parseFlags([]string{"--transport", "usb"})
	require.Error(t, err)
}

func TestTally(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC)
	tl := newTally()
	tl.add(uhf.TagSighting{EPC: "AA01", RSSI: -60, Antenna: 1, Timestamp: base})
	tl.add(uhf.TagSighting{EPC: "AA01", RSSI: -45, Antenna: 3, Timestamp: base.Add(2 * time.Second)})
	tl.add(uhf.TagSighting{EPC: "BB02", RSSI: -70, Antenna: 2, Timestamp: base})

	sums := tl.summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, "AA01", sums[0].epc)
	assert.Equal(t, 2, sums[0].count)
	assert.Equal(t, int8(-45), sums[0].bestRSSI)
	assert.Equal(t, uint8(0b101), sums[0].antennas)
	assert.Equal(t, "BB02", sums[1].epc)

	var out bytes.Buffer
	printSummary(&out, sums)
	assert.Contains(t, out.String(), "2 unique tags")
	assert.Contains(t, out.String(), "span=2s")
}

func TestRun(t *testing.T) {
	t.Parallel()

	const epc = "E2801170000002085C1A1C50"
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srvCtx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- emulator.NewServer(nil,
			emulator.WithEPCs([]string{epc}),
			emulator.WithReportInterval(10*time.Millisecond)).Serve(srvCtx, ln)
	}()

	o, err := parseFlags([]string{"-a", ln.Addr().String()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var out syncBuffer
	require.NoError(t, run(ctx, o, &out))

	stop()
	require.NoError(t, <-done)

	text := out.String()
	assert.Contains(t, text, "Connected, firmware")
	assert.Contains(t, text, "1 unique tags")
	assert.Contains(t, text, epc)
}
