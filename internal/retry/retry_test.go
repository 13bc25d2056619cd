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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestDo_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()
	calls := 0
	var retried []int

	got, err := Do(context.Background(), Config{
		MaxRetries: 3,
		OnRetry:    func(attempt int, _ error) { retried = append(retried, attempt) },
	}, func(context.Context) (string, bool, error) {
		calls++
		if calls < 3 {
			return "", true, errFlaky
		}
		return "ok", false, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_PermanentErrorStops(t *testing.T) {
	t.Parallel()
	calls := 0
	permanent := errors.New("permanent")

	_, err := Do(context.Background(), Config{MaxRetries: 5}, func(context.Context) (int, bool, error) {
		calls++
		return 0, false, permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_Exhausted(t *testing.T) {
	t.Parallel()
	calls := 0

	_, err := Do(context.Background(), Config{MaxRetries: 2, Description: "send"}, func(context.Context) (int, bool, error) {
		calls++
		return 0, true, errFlaky
	})

	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, errFlaky)
	assert.Contains(t, err.Error(), "send")
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, Config{MaxRetries: 10, RetryDelay: time.Hour}, func(context.Context) (int, bool, error) {
		calls++
		cancel()
		return 0, true, errFlaky
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
