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

import "sync"

// DefaultRecentCapacity is the live-view window size.
const DefaultRecentCapacity = 200

// Entry is one item in a Recent window with its sequence number.
type Entry[T any] struct {
	Item T
	Seq  uint64
}

// Recent is a fixed-capacity ring of the latest items. Sequence numbers
// start at 1 and increase by one per Add, so a consumer can poll with
// Since(lastSeen) and detect gaps.
type Recent[T any] struct {
	buf  []Entry[T]
	head int
	size int
	seq  uint64
	mu   sync.RWMutex
}

// NewRecent creates a window holding capacity items.
func NewRecent[T any](capacity int) *Recent[T] {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	return &Recent[T]{buf: make([]Entry[T], capacity)}
}

// Add stores item, evicting the oldest entry when full, and returns its
// sequence number.
func (r *Recent[T]) Add(item T) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	idx := (r.head + r.size) % len(r.buf)
	r.buf[idx] = Entry[T]{Seq: r.seq, Item: item}
	if r.size < len(r.buf) {
		r.size++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
	return r.seq
}

// Snapshot returns the window from oldest to newest.
func (r *Recent[T]) Snapshot() []Entry[T] {
	return r.Since(0)
}

// Since returns entries with a sequence number greater than seq, oldest
// first.
func (r *Recent[T]) Since(seq uint64) []Entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 || seq >= r.seq {
		return nil
	}
	oldest := r.seq - uint64(r.size) + 1
	skip := 0
	if seq >= oldest {
		skip = int(seq - oldest + 1)
	}

	out := make([]Entry[T], 0, r.size-skip)
	for i := skip; i < r.size; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

// Len returns the number of stored entries.
func (r *Recent[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// LastSeq returns the sequence number of the newest entry, or 0.
func (r *Recent[T]) LastSeq() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}
