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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AfterFuncOrderAndStop(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	cancelled := c.AfterFunc(1500*time.Millisecond, func() { fired = append(fired, "x") })

	assert.Equal(t, 3, c.PendingCount())
	assert.True(t, cancelled.Stop())
	assert.False(t, cancelled.Stop())

	c.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)
	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Zero(t, c.PendingCount())
	assert.Equal(t, epoch.Add(5999*time.Millisecond), c.Now())
}

func TestFake_StopAfterFire(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	timer := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, timer.Stop())

	ran := false
	c.AfterFunc(0, func() { ran = true })
	assert.True(t, ran)
}

func TestFake_After(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	ch := c.After(time.Minute)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}
	c.Advance(time.Minute)
	select {
	case got := <-ch:
		assert.Equal(t, epoch.Add(time.Minute), got)
	default:
		t.Fatal("did not fire")
	}
}

func TestFake_Ticker(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)

	c.Advance(time.Second)
	require.Len(t, ticker.C, 1)
	<-ticker.C

	// missed ticks are dropped, not queued
	c.Advance(3 * time.Second)
	assert.Len(t, ticker.C, 1)
	<-ticker.C

	ticker.Stop()
	c.Advance(10 * time.Second)
	assert.Empty(t, ticker.C)

	assert.Panics(t, func() { c.NewTicker(0) })
}

func TestFake_WaitForTimers(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	go func() {
		time.Sleep(10 * time.Millisecond)
		c.AfterFunc(time.Second, func() {})
	}()
	c.WaitForTimers(1)
	assert.Equal(t, 1, c.PendingCount())
}

func TestReal(t *testing.T) {
	t.Parallel()

	c := Real()
	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real AfterFunc did not fire")
	}
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
}
