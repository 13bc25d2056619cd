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

// Package sqlite is the SQLite backing store: the asset register and export
// permissions read by the asset cache, and the tag reads and alerts written
// by the gate pipelines.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/assets"
	"github.com/ZaparooProject/go-uhf/gate"
	"github.com/ZaparooProject/go-uhf/pipeline"
)

// DefaultPoolSize is used when Config.PoolSize is zero.
const DefaultPoolSize = 4

// ErrInvalidEPC is returned when a row is written with an EPC that does not
// normalize.
var ErrInvalidEPC = errors.New("invalid EPC")

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	epc          TEXT PRIMARY KEY,
	asset_number TEXT NOT NULL,
	asset_name   TEXT NOT NULL DEFAULT '',
	department   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS export_permissions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	epc          TEXT NOT NULL,
	permit_start INTEGER NOT NULL,
	permit_end   INTEGER NOT NULL,
	reason       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS export_permissions_window
	ON export_permissions (permit_start, permit_end);

CREATE TABLE IF NOT EXISTS tag_reads (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	epc         TEXT NOT NULL,
	reader_name TEXT NOT NULL,
	rssi        INTEGER NOT NULL,
	antenna     INTEGER NOT NULL,
	read_time   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS export_alerts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	epc          TEXT NOT NULL,
	asset_number TEXT NOT NULL,
	reader_name  TEXT NOT NULL,
	rssi         INTEGER NOT NULL,
	alert_time   INTEGER NOT NULL
);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// Config holds the parameters for opening a Store.
type Config struct {
	Logger logrus.FieldLogger
	// Path is the database file; it is created if missing
	Path     string
	PoolSize int
}

// Store is safe for concurrent use. Each call borrows its own connection.
type Store struct {
	pool   *sqlitex.Pool
	logger logrus.FieldLogger
	path   string
}

var _ assets.Source = (*Store)(nil)

// Open opens the pool and creates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite store: path is required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    cfg.PoolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", cfg.Path, err)
	}
	s := &Store{pool: pool, logger: cfg.Logger, path: cfg.Path}

	if err := s.createSchema(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	s.logger.WithField("path", cfg.Path).Info("sqlite store opened")
	return s, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: take: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite store: create schema: %w", err)
	}
	return nil
}

// Close closes every connection. Borrowed connections must be returned
// first.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite store: close %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: take: %w", err)
	}
	return conn, nil
}

// LoadAssets returns the full asset register.
func (s *Store) LoadAssets(ctx context.Context) ([]assets.Record, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var records []assets.Record
	err = sqlitex.Execute(conn,
		`SELECT epc, asset_number, asset_name, department FROM assets`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				records = append(records, assets.Record{
					EPC:         stmt.ColumnText(0),
					AssetNumber: stmt.ColumnText(1),
					AssetName:   stmt.ColumnText(2),
					Department:  stmt.ColumnText(3),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: load assets: %w", err)
	}
	return records, nil
}

// LoadPermissions returns the windows covering now. Windows that have not
// started yet are not returned.
func (s *Store) LoadPermissions(ctx context.Context, now time.Time) ([]assets.Permission, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	at := now.UnixMilli()
	var permissions []assets.Permission
	err = sqlitex.Execute(conn,
		`SELECT epc, permit_start, permit_end, reason FROM export_permissions
		 WHERE permit_start <= ? AND permit_end >= ?`,
		&sqlitex.ExecOptions{
			Args: []any{at, at},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				permissions = append(permissions, assets.Permission{
					EPC:        stmt.ColumnText(0),
					ValidFrom:  time.UnixMilli(stmt.ColumnInt64(1)),
					ValidUntil: time.UnixMilli(stmt.ColumnInt64(2)),
					Reason:     stmt.ColumnText(3),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: load permissions: %w", err)
	}
	return permissions, nil
}

// UpsertAsset inserts or replaces the asset registered for rec.EPC.
func (s *Store) UpsertAsset(ctx context.Context, rec assets.Record) error {
	epc := uhf.NormalizeEPC(rec.EPC)
	if epc == "" {
		return fmt.Errorf("sqlite store: upsert asset %q: %w", rec.AssetNumber, ErrInvalidEPC)
	}

	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO assets (epc, asset_number, asset_name, department) VALUES (?, ?, ?, ?)
		 ON CONFLICT (epc) DO UPDATE SET
			asset_number = excluded.asset_number,
			asset_name = excluded.asset_name,
			department = excluded.department`,
		&sqlitex.ExecOptions{Args: []any{epc, rec.AssetNumber, rec.AssetName, rec.Department}})
	if err != nil {
		return fmt.Errorf("sqlite store: upsert asset: %w", err)
	}
	return nil
}

// AddPermission stores a permission window and returns its row id.
func (s *Store) AddPermission(ctx context.Context, p assets.Permission) (int64, error) {
	epc := uhf.NormalizeEPC(p.EPC)
	if epc == "" {
		return 0, fmt.Errorf("sqlite store: add permission: %w", ErrInvalidEPC)
	}
	if p.ValidUntil.Before(p.ValidFrom) {
		return 0, fmt.Errorf("sqlite store: add permission: window ends before it starts")
	}

	conn, err := s.take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO export_permissions (epc, permit_start, permit_end, reason) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{epc, p.ValidFrom.UnixMilli(), p.ValidUntil.UnixMilli(), p.Reason}})
	if err != nil {
		return 0, fmt.Errorf("sqlite store: add permission: %w", err)
	}
	return conn.LastInsertRowID(), nil
}

// WriteTagReads inserts a batch in one transaction.
func (s *Store) WriteTagReads(ctx context.Context, reads []gate.TagRead) (err error) {
	if len(reads) == 0 {
		return nil
	}
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	end, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlite store: begin: %w", err)
	}
	defer end(&err)

	for _, r := range reads {
		err = sqlitex.Execute(conn,
			`INSERT INTO tag_reads (epc, reader_name, rssi, antenna, read_time) VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{r.EPC, r.ReaderName, int64(r.RSSI), int64(r.Antenna), r.ReadTime.UnixMilli()}})
		if err != nil {
			return fmt.Errorf("sqlite store: insert tag read: %w", err)
		}
	}
	return nil
}

// WriteAlerts inserts a batch in one transaction.
func (s *Store) WriteAlerts(ctx context.Context, alerts []gate.AlertEvent) (err error) {
	if len(alerts) == 0 {
		return nil
	}
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	end, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlite store: begin: %w", err)
	}
	defer end(&err)

	for _, a := range alerts {
		err = sqlitex.Execute(conn,
			`INSERT INTO export_alerts (epc, asset_number, reader_name, rssi, alert_time) VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{a.EPC, a.AssetNumber, a.ReaderName, int64(a.RSSI), a.Timestamp.UnixMilli()}})
		if err != nil {
			return fmt.Errorf("sqlite store: insert alert: %w", err)
		}
	}
	return nil
}

// TagReadWriter adapts WriteTagReads to a pipeline writer.
func (s *Store) TagReadWriter() pipeline.Writer[gate.TagRead] {
	return pipeline.WriterFunc[gate.TagRead](s.WriteTagReads)
}

// AlertWriter adapts WriteAlerts to a pipeline writer.
func (s *Store) AlertWriter() pipeline.Writer[gate.AlertEvent] {
	return pipeline.WriterFunc[gate.AlertEvent](s.WriteAlerts)
}

// CountTagReads returns the number of stored reads, optionally for one
// EPC. An empty epc counts all.
func (s *Store) CountTagReads(ctx context.Context, epc string) (int, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	query := `SELECT count(*) FROM tag_reads`
	var args []any
	if epc != "" {
		query += ` WHERE epc = ?`
		args = append(args, uhf.NormalizeEPC(epc))
	}
	var n int
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite store: count tag reads: %w", err)
	}
	return n, nil
}

// ListAlerts returns up to limit alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]gate.AlertEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var alerts []gate.AlertEvent
	err = sqlitex.Execute(conn,
		`SELECT a.epc, a.asset_number, coalesce(s.asset_name, ''), a.reader_name, a.rssi, a.alert_time
		 FROM export_alerts a LEFT JOIN assets s ON s.epc = a.epc
		 ORDER BY a.alert_time DESC, a.id DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				alerts = append(alerts, gate.AlertEvent{
					EPC:         stmt.ColumnText(0),
					AssetNumber: stmt.ColumnText(1),
					AssetName:   stmt.ColumnText(2),
					ReaderName:  stmt.ColumnText(3),
					RSSI:        int8(stmt.ColumnInt64(4)),
					Timestamp:   time.UnixMilli(stmt.ColumnInt64(5)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list alerts: %w", err)
	}
	return alerts, nil
}
