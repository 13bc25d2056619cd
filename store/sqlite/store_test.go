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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-uhf/assets"
	"github.com/ZaparooProject/go-uhf/gate"
	"github.com/ZaparooProject/go-uhf/pipeline"
)

var noon = time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "gate.db")})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gate.db")
	ctx := context.Background()

	s, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.UpsertAsset(ctx, assets.Record{EPC: "AABB", AssetNumber: "A-1"}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	records, err := s.LoadAssets(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestUpsertAsset(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAsset(ctx, assets.Record{EPC: " e2801170 ", AssetNumber: "A-1", AssetName: "Laptop"}))
	require.NoError(t, s.UpsertAsset(ctx, assets.Record{EPC: "E2801170", AssetNumber: "A-1", AssetName: "Laptop 14in", Department: "IT"}))

	records, err := s.LoadAssets(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, assets.Record{EPC: "E2801170", AssetNumber: "A-1", AssetName: "Laptop 14in", Department: "IT"}, records[0])

	err = s.UpsertAsset(ctx, assets.Record{EPC: "zz", AssetNumber: "A-2"})
	require.ErrorIs(t, err, ErrInvalidEPC)
}

func TestLoadPermissions_CurrentWindowsOnly(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	windows := []assets.Permission{
		{EPC: "AA01", ValidFrom: noon.Add(-time.Hour), ValidUntil: noon.Add(time.Hour), Reason: "repair"},
		{EPC: "AA02", ValidFrom: noon.Add(-2 * time.Hour), ValidUntil: noon.Add(-time.Hour)},
		{EPC: "AA03", ValidFrom: noon.Add(time.Minute), ValidUntil: noon.Add(time.Hour)},
		{EPC: "AA04", ValidFrom: noon, ValidUntil: noon},
	}
	for _, w := range windows {
		_, err := s.AddPermission(ctx, w)
		require.NoError(t, err)
	}

	got, err := s.LoadPermissions(ctx, noon)
	require.NoError(t, err)
	require.Len(t, got, 2)
	epcs := []string{got[0].EPC, got[1].EPC}
	assert.ElementsMatch(t, []string{"AA01", "AA04"}, epcs)
	for _, p := range got {
		if p.EPC == "AA01" {
			assert.Equal(t, "repair", p.Reason)
			assert.True(t, p.ValidFrom.Equal(noon.Add(-time.Hour)))
		}
	}

	_, err = s.AddPermission(ctx, assets.Permission{EPC: "AA05", ValidFrom: noon, ValidUntil: noon.Add(-time.Second)})
	require.Error(t, err)
}

func TestWriteTagReads_ThroughBatcher(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	b := pipeline.NewBatcher(s.TagReadWriter(), pipeline.Config{MaxBatch: 10, MaxWait: 5 * time.Millisecond})
	for i := range 25 {
		epc := "AA01"
		if i%5 == 0 {
			epc = "BB02"
		}
		require.NoError(t, b.Enqueue(gate.TagRead{
			EPC: epc, ReaderName: "dock-1", RSSI: -50, Antenna: 1, ReadTime: noon.Add(time.Duration(i) * time.Second),
		}))
	}
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, b.Close(closeCtx))

	total, err := s.CountTagReads(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 25, total)

	n, err := s.CountTagReads(ctx, "bb02")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, s.WriteTagReads(ctx, nil))
}

func TestWriteAlerts_ListNewestFirst(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertAsset(ctx, assets.Record{EPC: "AA01", AssetNumber: "A-1", AssetName: "Laptop"}))

	err := s.AlertWriter().WriteBatch(ctx, []gate.AlertEvent{
		{EPC: "AA01", AssetNumber: "A-1", ReaderName: "dock-1", RSSI: -41, Timestamp: noon},
		{EPC: "AA01", AssetNumber: "A-1", ReaderName: "dock-2", RSSI: -63, Timestamp: noon.Add(31 * time.Second)},
		{EPC: "CC03", AssetNumber: "A-9", ReaderName: "dock-1", RSSI: -70, Timestamp: noon.Add(time.Minute)},
	})
	require.NoError(t, err)

	alerts, err := s.ListAlerts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "CC03", alerts[0].EPC)
	assert.Empty(t, alerts[0].AssetName)
	assert.Equal(t, "dock-2", alerts[1].ReaderName)
	assert.Equal(t, "Laptop", alerts[1].AssetName)
	assert.Equal(t, int8(-63), alerts[1].RSSI)
	assert.True(t, alerts[1].Timestamp.Equal(noon.Add(31*time.Second)))
}

func TestStoreAsCacheSource(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertAsset(ctx, assets.Record{EPC: "AA01", AssetNumber: "A-1"}))
	require.NoError(t, s.UpsertAsset(ctx, assets.Record{EPC: "AA02", AssetNumber: "A-2"}))
	_, err := s.AddPermission(ctx, assets.Permission{EPC: "AA02", ValidFrom: time.Now().Add(-time.Hour), ValidUntil: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	c := assets.New(s)
	require.NoError(t, c.Refresh(ctx))

	_, flagged := c.CheckUnauthorizedExport("AA01")
	assert.True(t, flagged)
	_, flagged = c.CheckUnauthorizedExport("AA02")
	assert.False(t, flagged)
}
