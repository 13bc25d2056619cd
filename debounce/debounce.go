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

// Package debounce runs an action when a key is triggered and its revert
// action once the key has been quiet for a fixed delay.
package debounce

import (
	"sync"
	"time"

	"github.com/ZaparooProject/go-uhf/internal/clock"
)

// Action is run for a key.
type Action[K comparable] func(key K)

type pending struct {
	timer *clock.Timer
	gen   uint64
}

// Scheduler holds at most one pending revert per key. Retriggering a key
// restarts its delay, so off runs once per burst of triggers, timed from the
// last one.
type Scheduler[K comparable] struct {
	clock   clock.Clock
	on      Action[K]
	off     Action[K]
	keys    map[K]*pending
	delay   time.Duration
	gen     uint64
	mu      sync.Mutex
	stopped bool
}

// Option configures a Scheduler.
type Option[K comparable] func(*Scheduler[K])

// WithClock sets the time source for revert timers.
func WithClock[K comparable](c clock.Clock) Option[K] {
	return func(s *Scheduler[K]) { s.clock = c }
}

// New creates a scheduler. Either action may be nil.
func New[K comparable](delay time.Duration, on, off Action[K], opts ...Option[K]) *Scheduler[K] {
	s := &Scheduler[K]{
		clock: clock.Real(),
		on:    on,
		off:   off,
		keys:  make(map[K]*pending),
		delay: delay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger runs on(key) and (re)schedules off(key) after the delay. It
// returns false once the scheduler is stopped.
func (s *Scheduler[K]) Trigger(key K) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	if p, ok := s.keys[key]; ok && p.timer != nil {
		p.timer.Stop()
	}
	s.gen++
	gen := s.gen
	p := &pending{gen: gen}
	s.keys[key] = p
	s.mu.Unlock()

	if s.on != nil {
		s.on(key)
	}

	timer := s.clock.AfterFunc(s.delay, func() { s.expire(key, gen) })

	s.mu.Lock()
	defer s.mu.Unlock()
	// a zero delay may already have expired the entry
	if cur, ok := s.keys[key]; ok && cur.gen == gen {
		cur.timer = timer
	} else {
		timer.Stop()
	}
	return true
}

// expire runs off(key) unless a newer trigger superseded gen.
func (s *Scheduler[K]) expire(key K, gen uint64) {
	s.mu.Lock()
	p, ok := s.keys[key]
	if !ok || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.keys, key)
	s.mu.Unlock()

	if s.off != nil {
		s.off(key)
	}
}

// Pending returns the number of keys waiting for their revert.
func (s *Scheduler[K]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Stop cancels every pending timer and runs the revert actions right away.
// Later triggers are ignored.
func (s *Scheduler[K]) Stop() {
	s.mu.Lock()
	s.stopped = true
	keys := make([]K, 0, len(s.keys))
	for key, p := range s.keys {
		if p.timer != nil {
			p.timer.Stop()
		}
		keys = append(keys, key)
	}
	clear(s.keys)
	s.mu.Unlock()

	if s.off == nil {
		return
	}
	for _, key := range keys {
		s.off(key)
	}
}
