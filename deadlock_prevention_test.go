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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ZaparooProject/go-uhf/internal/frame"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestConcurrentCommandsDuringInventory verifies that indicator commands
// issued from several goroutines each get their own answer while reports
// keep streaming in.
func TestConcurrentCommandsDuringInventory(t *testing.T) {
	t.Parallel()

	mock := NewMockTransportWithFunc(AckAll("FW"))
	r, rec := newMockReader(t, mock)
	ctx := context.Background()
	require.NoError(t, r.Connect(ctx))
	require.NoError(t, r.StartInventory(ctx))

	report := frame.MustEncode(CmdInventoryReport, DefaultDeviceAddress,
		EncodeReport([]byte{0xAB, 0xCD}, 1, -40, 1))

	const workers = 4
	var wg sync.WaitGroup
	wg.Add(workers + 1)
	go func() {
		defer wg.Done()
		for range 20 {
			mock.Inject(report)
			time.Sleep(time.Millisecond)
		}
	}()
	errs := make(chan error, workers*10)
	for i := range workers {
		go func() {
			defer wg.Done()
			for j := range 10 {
				if (i+j)%2 == 0 {
					errs <- r.LightOn(ctx)
				} else {
					errs <- r.BuzzerOff(ctx)
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("commands deadlocked")
	}
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(rec.Tags()) == 20 }, time.Second, 5*time.Millisecond)
	_, err := r.StopInventory(ctx)
	require.NoError(t, err)
}

// TestDisconnectDuringPendingRequest verifies that tearing a session down
// releases a request blocked on an answer that will never come.
func TestDisconnectDuringPendingRequest(t *testing.T) {
	t.Parallel()

	mock := NewMockTransportWithFunc(func(cmd byte, payload []byte) [][]byte {
		if cmd == CmdHeartbeat {
			return nil
		}
		return AckAll("FW")(cmd, payload)
	})
	r, _ := newMockReader(t, mock)
	ctx := context.Background()
	require.NoError(t, r.Connect(ctx))

	result := make(chan error, 1)
	go func() { result <- r.Heartbeat(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, r.Disconnect(ctx))

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("request was not released")
	}
	assert.Equal(t, StatusDisconnected, r.Status())
}

// TestListenerMayQueryReader verifies callbacks run without reader locks
// held, so a listener can read state from inside a callback.
func TestListenerMayQueryReader(t *testing.T) {
	t.Parallel()

	mock := NewMockTransportWithFunc(AckAll("FW"))
	var r *Reader
	var seen []Status
	var mu sync.Mutex
	r = NewReader(ReaderConfig{Name: "dock-5", Dial: MockDialer(mock)}, WithListener(ListenerFuncs{
		Status: func(_ string, _ Status) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, r.Status())
		},
	}))

	require.NoError(t, r.Connect(context.Background()))
	require.NoError(t, r.Disconnect(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusConnecting, StatusConnected, StatusDisconnected}, seen)
}
