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

import "sync"

// Status is the lifecycle state of a reader connection.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReading
	StatusError
)

// String implements fmt.Stringer
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReading:
		return "reading"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether the status has a live session.
func (s Status) Active() bool {
	return s == StatusConnected || s == StatusReading
}

// LogLevel tags lines delivered through Listener.OnLog.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

// String implements fmt.Stringer
func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	default:
		return "unknown"
	}
}

// Listener receives reader events.
//
// Callbacks are invoked synchronously on the goroutine that caused the
// event: lifecycle events on the caller of Connect/Disconnect/etc., tag
// events on the reader's I/O goroutine. Implementations that hand events to
// a UI must do their own marshalling and must not block for long.
type Listener interface {
	OnStatus(reader string, status Status)
	OnIndicator(reader string, lightOn, buzzerOn bool)
	OnLog(reader string, level LogLevel, message string)
	OnTag(reader string, sighting TagSighting)
}

// ListenerFuncs adapts optional callback functions to a Listener.
type ListenerFuncs struct {
	Status    func(reader string, status Status)
	Indicator func(reader string, lightOn, buzzerOn bool)
	Log       func(reader string, level LogLevel, message string)
	Tag       func(reader string, sighting TagSighting)
}

// OnStatus implements Listener
func (f ListenerFuncs) OnStatus(reader string, status Status) {
	if f.Status != nil {
		f.Status(reader, status)
	}
}

// OnIndicator implements Listener
func (f ListenerFuncs) OnIndicator(reader string, lightOn, buzzerOn bool) {
	if f.Indicator != nil {
		f.Indicator(reader, lightOn, buzzerOn)
	}
}

// OnLog implements Listener
func (f ListenerFuncs) OnLog(reader string, level LogLevel, message string) {
	if f.Log != nil {
		f.Log(reader, level, message)
	}
}

// OnTag implements Listener
func (f ListenerFuncs) OnTag(reader string, sighting TagSighting) {
	if f.Tag != nil {
		f.Tag(reader, sighting)
	}
}

// listenerSet is a copy-on-write list so broadcasts never hold a lock while
// calling out.
type listenerSet struct {
	mu    sync.Mutex
	items []*listenerEntry
}

type listenerEntry struct {
	l Listener
}

func (s *listenerSet) add(l Listener) func() {
	entry := &listenerEntry{l: l}
	s.mu.Lock()
	next := make([]*listenerEntry, 0, len(s.items)+1)
	next = append(next, s.items...)
	s.items = append(next, entry)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(entry) })
	}
}

func (s *listenerSet) remove(entry *listenerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]*listenerEntry, 0, len(s.items))
	for _, e := range s.items {
		if e != entry {
			next = append(next, e)
		}
	}
	s.items = next
}

func (s *listenerSet) snapshot() []*listenerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items
}

func (s *listenerSet) each(fn func(Listener)) {
	for _, e := range s.snapshot() {
		fn(e.l)
	}
}
