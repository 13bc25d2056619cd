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

package gate_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/assets"
	"github.com/ZaparooProject/go-uhf/emulator"
	"github.com/ZaparooProject/go-uhf/gate"
	"github.com/ZaparooProject/go-uhf/pipeline"
	"github.com/ZaparooProject/go-uhf/transport/tcp"
)

type register []assets.Record

func (r register) LoadAssets(context.Context) ([]assets.Record, error) { return r, nil }

func (register) LoadPermissions(context.Context, time.Time) ([]assets.Permission, error) {
	return nil, nil
}

type emulatedReaders struct {
	devices map[string]*emulator.Device
	wg      sync.WaitGroup
	mu      sync.Mutex
}

func (e *emulatedReaders) dialer(name string, opts ...emulator.Option) uhf.Dialer {
	return func(context.Context) (uhf.Transport, error) {
		host, device := net.Pipe()
		d := emulator.New(opts...)
		e.mu.Lock()
		e.devices[name] = d
		e.mu.Unlock()

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			_ = d.Serve(context.Background(), device)
			_ = device.Close()
		}()
		return tcp.Wrap(host), nil
	}
}

func (e *emulatedReaders) light(name string) bool {
	e.mu.Lock()
	d := e.devices[name]
	e.mu.Unlock()
	on, _ := d.Indicators()
	return on
}

type countingWriter[T any] struct {
	items []T
	mu    sync.Mutex
}

func (w *countingWriter[T]) WriteBatch(_ context.Context, batch []T) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, batch...)
	return nil
}

func (w *countingWriter[T]) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

func TestGate_EmulatedReadersEndToEnd(t *testing.T) {
	t.Parallel()

	const assetEPC = "E2801170000002085C1A1C50"
	readers := &emulatedReaders{devices: map[string]*emulator.Device{}}
	defer readers.wg.Wait()

	emuOpts := []emulator.Option{
		emulator.WithReportInterval(10 * time.Millisecond),
		emulator.WithEPCs([]string{assetEPC, "DEADBEEF"}),
		emulator.WithSeed(3),
	}
	m, err := uhf.NewManager([]uhf.ReaderConfig{
		{Name: "dock-1", Dial: readers.dialer("dock-1", emuOpts...), Settings: uhf.DefaultSettings()},
	})
	require.NoError(t, err)

	cache := assets.New(register{{EPC: assetEPC, AssetNumber: "A-100", AssetName: "Laptop"}})
	require.NoError(t, cache.Refresh(context.Background()))

	readWriter := &countingWriter[gate.TagRead]{}
	alertWriter := &countingWriter[gate.AlertEvent]{}
	reads := pipeline.NewBatcher[gate.TagRead](readWriter, pipeline.Config{MaxBatch: 8, MaxWait: 10 * time.Millisecond})
	alerts := pipeline.NewBatcher[gate.AlertEvent](alertWriter, pipeline.Config{MaxWait: 10 * time.Millisecond})

	svc := gate.New(cache,
		gate.WithReadQueue(reads),
		gate.WithAlertQueue(alerts),
		gate.WithWarning(gate.ManagerLookup(m), 500*time.Millisecond, false))
	unsubscribe := m.Subscribe(svc)
	defer unsubscribe()

	ctx := context.Background()
	require.NoError(t, m.ConnectAll(ctx))
	require.NoError(t, m.StartAll(ctx))

	require.Eventually(t, func() bool { return alertWriter.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return readers.light("dock-1") }, 2*time.Second, 5*time.Millisecond)

	// the dedup window keeps further sightings from alerting while reads
	// keep flowing
	before := readWriter.count()
	require.Eventually(t, func() bool { return readWriter.count() > before+5 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, alertWriter.count())

	// shutdown in reverse order of construction
	require.NoError(t, m.Close(ctx))
	require.NoError(t, svc.Close(ctx))
	require.NoError(t, reads.Close(ctx))
	require.NoError(t, alerts.Close(ctx))

	alertWriter.mu.Lock()
	assert.Equal(t, "A-100", alertWriter.items[0].AssetNumber)
	assert.Equal(t, "dock-1", alertWriter.items[0].ReaderName)
	alertWriter.mu.Unlock()
}
