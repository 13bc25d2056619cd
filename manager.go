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
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Manager owns the set of configured readers.
//
// Listeners registered with Subscribe see events from every reader,
// including readers created later by Reload.
type Manager struct {
	listeners *listenerSet
	readers   map[string]*Reader
	order     []string
	opts      []Option
	mu        sync.RWMutex
}

// NewManager builds one disconnected Reader per config. opts are applied to
// every reader.
func NewManager(configs []ReaderConfig, opts ...Option) (*Manager, error) {
	m := &Manager{
		listeners: &listenerSet{},
		opts:      opts,
	}
	readers, order, err := m.build(configs)
	if err != nil {
		return nil, err
	}
	m.readers, m.order = readers, order
	return m, nil
}

func (m *Manager) build(configs []ReaderConfig) (map[string]*Reader, []string, error) {
	readers := make(map[string]*Reader, len(configs))
	order := make([]string, 0, len(configs))
	fanout := managerFanout{set: m.listeners}

	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, nil, fmt.Errorf("reader config %d: name is required", len(order))
		}
		if _, dup := readers[cfg.Name]; dup {
			return nil, nil, fmt.Errorf("reader %q configured twice", cfg.Name)
		}
		opts := append(append([]Option(nil), m.opts...), WithListener(fanout))
		readers[cfg.Name] = NewReader(cfg, opts...)
		order = append(order, cfg.Name)
	}
	return readers, order, nil
}

// Subscribe registers l for events from all readers.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	return m.listeners.add(l)
}

// Reader returns the reader with the given name.
func (m *Manager) Reader(name string) (*Reader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.readers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReader, name)
	}
	return r, nil
}

// Readers returns every reader in configuration order.
func (m *Manager) Readers() []*Reader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Reader, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.readers[name])
	}
	return out
}

// ConnectAll connects every disconnected reader in parallel. Readers that
// fail stay in Error; the first failure is returned after all attempts end.
func (m *Manager) ConnectAll(ctx context.Context) error {
	return m.each(ctx, func(ctx context.Context, r *Reader) error {
		if r.Status().Active() {
			return nil
		}
		return r.Connect(ctx)
	})
}

// StartAll starts inventory on every connected reader.
func (m *Manager) StartAll(ctx context.Context) error {
	return m.each(ctx, func(ctx context.Context, r *Reader) error {
		if r.Status() != StatusConnected {
			return nil
		}
		return r.StartInventory(ctx)
	})
}

// DisconnectAll disconnects every reader.
func (m *Manager) DisconnectAll(ctx context.Context) error {
	return m.each(ctx, func(ctx context.Context, r *Reader) error {
		return r.Disconnect(ctx)
	})
}

// Reload disconnects all readers and replaces them with readers built from
// configs. Subscriptions made through the Manager carry over.
func (m *Manager) Reload(ctx context.Context, configs []ReaderConfig) error {
	readers, order, err := m.build(configs)
	if err != nil {
		return err
	}
	if err := m.DisconnectAll(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.readers, m.order = readers, order
	m.mu.Unlock()
	return nil
}

// Close disconnects every reader and forgets them.
func (m *Manager) Close(ctx context.Context) error {
	err := m.DisconnectAll(ctx)
	m.mu.Lock()
	m.readers, m.order = map[string]*Reader{}, nil
	m.mu.Unlock()
	return err
}

// Names returns the reader names sorted alphabetically.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := append([]string(nil), m.order...)
	sort.Strings(names)
	return names
}

// each runs fn for every reader concurrently and waits for all of them.
// A failing reader does not cancel the others.
func (m *Manager) each(ctx context.Context, fn func(context.Context, *Reader) error) error {
	var g errgroup.Group
	for _, r := range m.Readers() {
		g.Go(func() error {
			if err := fn(ctx, r); err != nil {
				return fmt.Errorf("%s: %w", r.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// managerFanout forwards one reader's events to the manager's listeners.
type managerFanout struct {
	set *listenerSet
}

func (f managerFanout) OnStatus(reader string, status Status) {
	f.set.each(func(l Listener) { l.OnStatus(reader, status) })
}

func (f managerFanout) OnIndicator(reader string, lightOn, buzzerOn bool) {
	f.set.each(func(l Listener) { l.OnIndicator(reader, lightOn, buzzerOn) })
}

func (f managerFanout) OnLog(reader string, level LogLevel, message string) {
	f.set.each(func(l Listener) { l.OnLog(reader, level, message) })
}

func (f managerFanout) OnTag(reader string, sighting TagSighting) {
	f.set.each(func(l Listener) { l.OnTag(reader, sighting) })
}
