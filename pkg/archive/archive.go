// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package archive persists decoded telemetry records in SQLite. Each row
// keeps the indexed header columns next to the full record as CBOR.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS telemetry (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subsystem TEXT NOT NULL,
	apid INTEGER NOT NULL,
	sequence_count INTEGER NOT NULL,
	coarse INTEGER NOT NULL,
	fine INTEGER NOT NULL,
	received_at INTEGER NOT NULL,
	status TEXT NOT NULL,
	record BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_telemetry_subsystem ON telemetry (subsystem, id);
CREATE INDEX IF NOT EXISTS idx_telemetry_status ON telemetry (status, id);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// ErrClosed is returned by operations on a closed archive
var ErrClosed = errors.New("archive closed")

// Archive is a SQLite-backed record store
type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive at path. Use ":memory:" for a
// throwaway store.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the database
func (a *Archive) Close() error {
	if a.db == nil {
		return ErrClosed
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// Insert stores one record and returns its row id
func (a *Archive) Insert(ctx context.Context, r ccsds.Record) (int64, error) {
	if a.db == nil {
		return 0, ErrClosed
	}
	blob, err := ccsds.EncodeRecordCBOR(r)
	if err != nil {
		return 0, err
	}
	res, err := a.db.ExecContext(ctx,
		`INSERT INTO telemetry (subsystem, apid, sequence_count, coarse, fine, received_at, status, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToUpper(r.Subsystem), r.APID, r.SequenceCount, r.Coarse, r.Fine,
		r.Timestamp.UnixNano(), r.Status, blob)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	return res.LastInsertId()
}

// InsertPacket converts a decoded packet to a record and stores it
func (a *Archive) InsertPacket(ctx context.Context, p *ccsds.Packet) (int64, error) {
	return a.Insert(ctx, ccsds.NewRecord(p))
}

// Query selects stored records, newest first
type Query struct {
	Subsystem   string
	AnomalyOnly bool
	Since       time.Time
	Limit       int
}

// Find returns records matching q
func (a *Archive) Find(ctx context.Context, q Query) ([]ccsds.Record, error) {
	if a.db == nil {
		return nil, ErrClosed
	}

	var where []string
	var args []any
	if q.Subsystem != "" {
		if !ccsds.IsValidSubsystem(q.Subsystem) {
			return nil, fmt.Errorf("%w: %q", ccsds.ErrUnknownSubsystem, q.Subsystem)
		}
		where = append(where, "subsystem = ?")
		args = append(args, strings.ToUpper(q.Subsystem))
	}
	if q.AnomalyOnly {
		where = append(where, "status = ?")
		args = append(args, ccsds.StatusAnomaly)
	}
	if !q.Since.IsZero() {
		where = append(where, "received_at >= ?")
		args = append(args, q.Since.UnixNano())
	}

	stmt := "SELECT record FROM telemetry"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY id DESC"
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []ccsds.Record
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		r, err := ccsds.DecodeRecordCBOR(blob)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Count holds per-subsystem totals
type Count struct {
	Subsystem string
	Total     int64
	Anomalies int64
}

// Counts summarizes the archive per subsystem in APID order
func (a *Archive) Counts(ctx context.Context) ([]Count, error) {
	if a.db == nil {
		return nil, ErrClosed
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT subsystem, COUNT(*), SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		FROM telemetry GROUP BY subsystem, apid ORDER BY apid`, ccsds.StatusAnomaly)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	var counts []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Subsystem, &c.Total, &c.Anomalies); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
