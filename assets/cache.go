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

// Package assets correlates tag sightings with the asset register and the
// export permissions granted for each asset.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/internal/clock"
)

// DefaultAlertTTL is how long an alerted EPC stays muted.
const DefaultAlertTTL = 30 * time.Second

// pruneThreshold is the alert map size above which expired entries are
// swept on the next ShouldAlert call.
const pruneThreshold = 256

// ErrNoSource is returned by Refresh on a cache built without a Source.
var ErrNoSource = errors.New("asset cache has no source")

// Record is one registered asset, keyed by normalized EPC.
type Record struct {
	EPC         string
	AssetNumber string
	AssetName   string
	Department  string
}

// Permission allows an asset to leave during [ValidFrom, ValidUntil].
type Permission struct {
	ValidFrom  time.Time
	ValidUntil time.Time
	EPC        string
	Reason     string
}

// Covers reports whether t falls inside the window, bounds included.
func (p Permission) Covers(t time.Time) bool {
	return !t.Before(p.ValidFrom) && !t.After(p.ValidUntil)
}

// Source loads the data a snapshot is built from.
type Source interface {
	// LoadAssets returns the full asset register.
	LoadAssets(ctx context.Context) ([]Record, error)
	// LoadPermissions returns the permission windows valid at now.
	LoadPermissions(ctx context.Context, now time.Time) ([]Permission, error)
}

// snapshot is immutable once published.
type snapshot struct {
	loaded  time.Time
	assets  map[string]Record
	permits map[string][]Permission
	windows int
}

// Stats describes the snapshot currently serving lookups.
type Stats struct {
	Loaded      time.Time
	Assets      int
	Permissions int
}

// Cache serves lookups from an atomically swapped snapshot so refreshes
// never block the ingestion path. A failed refresh keeps the previous
// snapshot.
type Cache struct {
	source   Source
	clock    clock.Clock
	logger   logrus.FieldLogger
	onReload func(Stats, error)
	snap     atomic.Pointer[snapshot]
	alerted  map[string]time.Time
	alertTTL time.Duration
	mu       sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source for window checks and alert TTLs.
func WithClock(c clock.Clock) Option {
	return func(cache *Cache) { cache.clock = c }
}

// WithLogger sets the cache logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(cache *Cache) {
		if logger != nil {
			cache.logger = logger
		}
	}
}

// WithAlertTTL overrides DefaultAlertTTL.
func WithAlertTTL(ttl time.Duration) Option {
	return func(cache *Cache) {
		if ttl > 0 {
			cache.alertTTL = ttl
		}
	}
}

// WithRefreshHook is called after every refresh attempt with the serving
// snapshot's stats and the refresh error, if any.
func WithRefreshHook(fn func(Stats, error)) Option {
	return func(cache *Cache) { cache.onReload = fn }
}

// New creates an empty cache. Call Refresh or Run to load it.
func New(source Source, opts ...Option) *Cache {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Cache{
		source:   source,
		clock:    clock.Real(),
		logger:   discard,
		alertTTL: DefaultAlertTTL,
		alerted:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap.Store(&snapshot{assets: map[string]Record{}, permits: map[string][]Permission{}})
	return c
}

// Refresh loads a new snapshot and swaps it in.
func (c *Cache) Refresh(ctx context.Context) error {
	err := c.refresh(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("asset refresh failed, keeping previous snapshot")
	}
	if c.onReload != nil {
		c.onReload(c.Stats(), err)
	}
	return err
}

func (c *Cache) refresh(ctx context.Context) error {
	if c.source == nil {
		return ErrNoSource
	}
	now := c.clock.Now()

	records, err := c.source.LoadAssets(ctx)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	permissions, err := c.source.LoadPermissions(ctx, now)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}

	next := &snapshot{
		loaded:  now,
		assets:  make(map[string]Record, len(records)),
		permits: make(map[string][]Permission),
	}
	for _, rec := range records {
		epc := uhf.NormalizeEPC(rec.EPC)
		if epc == "" {
			c.logger.WithField("asset", rec.AssetNumber).Debug("skipping asset with invalid EPC")
			continue
		}
		rec.EPC = epc
		next.assets[epc] = rec
	}
	for _, p := range permissions {
		epc := uhf.NormalizeEPC(p.EPC)
		if epc == "" || p.ValidUntil.Before(p.ValidFrom) {
			continue
		}
		p.EPC = epc
		next.permits[epc] = append(next.permits[epc], p)
		next.windows++
	}

	c.snap.Store(next)
	c.logger.WithFields(logrus.Fields{
		"assets":      len(next.assets),
		"permissions": next.windows,
	}).Debug("asset snapshot refreshed")
	return nil
}

// Run refreshes immediately and then every interval until ctx ends.
// Refresh failures are logged and retried on the next tick.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	_ = c.Refresh(ctx)

	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Lookup returns the asset registered for epc.
func (c *Cache) Lookup(epc string) (Record, bool) {
	rec, ok := c.snap.Load().assets[uhf.NormalizeEPC(epc)]
	return rec, ok
}

// Permitted reports whether epc holds a permission window covering now.
func (c *Cache) Permitted(epc string) bool {
	return c.snap.Load().permitted(uhf.NormalizeEPC(epc), c.clock.Now())
}

func (s *snapshot) permitted(epc string, now time.Time) bool {
	for _, p := range s.permits[epc] {
		if p.Covers(now) {
			return true
		}
	}
	return false
}

// CheckUnauthorizedExport returns the asset when epc is a registered asset
// that has no permission window covering the current time. Unknown EPCs
// and permitted assets return false.
func (c *Cache) CheckUnauthorizedExport(epc string) (Record, bool) {
	epc = uhf.NormalizeEPC(epc)
	if epc == "" {
		return Record{}, false
	}
	snap := c.snap.Load()
	rec, ok := snap.assets[epc]
	if !ok {
		return Record{}, false
	}
	if snap.permitted(epc, c.clock.Now()) {
		return Record{}, false
	}
	return rec, true
}

// ShouldAlert returns true the first time it sees epc within the alert TTL
// and marks it; repeats inside the window return false.
func (c *Cache) ShouldAlert(epc string) bool {
	epc = uhf.NormalizeEPC(epc)
	if epc == "" {
		return false
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.alerted) > pruneThreshold {
		for k, at := range c.alerted {
			if now.Sub(at) >= c.alertTTL {
				delete(c.alerted, k)
			}
		}
	}
	if at, ok := c.alerted[epc]; ok && now.Sub(at) < c.alertTTL {
		return false
	}
	c.alerted[epc] = now
	return true
}

// Stats returns counts for the serving snapshot.
func (c *Cache) Stats() Stats {
	snap := c.snap.Load()
	return Stats{Loaded: snap.loaded, Assets: len(snap.assets), Permissions: snap.windows}
}
