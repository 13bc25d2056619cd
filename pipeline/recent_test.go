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

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqs[T any](entries []Entry[T]) []uint64 {
	out := make([]uint64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Seq)
	}
	return out
}

func TestRecent_Eviction(t *testing.T) {
	t.Parallel()

	r := NewRecent[string](3)
	assert.Empty(t, r.Snapshot())
	assert.Zero(t, r.LastSeq())

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		r.Add(s)
	}
	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []uint64{3, 4, 5}, seqs(snap))
	assert.Equal(t, "c", snap[0].Item)
	assert.Equal(t, "e", snap[2].Item)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, uint64(5), r.LastSeq())
}

func TestRecent_Since(t *testing.T) {
	t.Parallel()

	r := NewRecent[int](4)
	for i := range 6 {
		assert.Equal(t, uint64(i+1), r.Add(i))
	}

	tests := []struct {
		name  string
		since uint64
		want  []uint64
	}{
		{name: "from zero", since: 0, want: []uint64{3, 4, 5, 6}},
		{name: "evicted cursor", since: 1, want: []uint64{3, 4, 5, 6}},
		{name: "inside window", since: 4, want: []uint64{5, 6}},
		{name: "caught up", since: 6, want: []uint64{}},
		{name: "ahead", since: 9, want: []uint64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, seqs(r.Since(tt.since)))
		})
	}
}

func TestRecent_DefaultCapacity(t *testing.T) {
	t.Parallel()

	r := NewRecent[int](0)
	for i := range DefaultRecentCapacity + 5 {
		r.Add(i)
	}
	assert.Equal(t, DefaultRecentCapacity, r.Len())
	assert.Equal(t, 5, r.Snapshot()[0].Item)
}
