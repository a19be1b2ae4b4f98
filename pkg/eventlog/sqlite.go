// Copyright 2026 © The Taxis Authors
// SPDX-License-Identifier: Apache-2.0

package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLog persists events in SQLite.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog creates a SQLite-backed event log and ensures schema.
func NewSQLiteLog(db *sql.DB) (*SQLiteLog, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureEventSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteLog{db: db}, nil
}

// Append stores a single event.
func (l *SQLiteLog) Append(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	payload, err := encodePayload(entry.Payload)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO taxis_events (ts, agent_id, kind, correlation_id, payload_json)
		VALUES (?, ?, ?, ?, ?)
	`,
		entry.Timestamp.UTC(),
		entry.AgentID,
		string(entry.Kind),
		entry.CorrelationID,
		string(payload),
	)
	return err
}

// Query returns events matching the filter, oldest first.
func (l *SQLiteLog) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT ts, agent_id, kind, correlation_id, payload_json
		FROM taxis_events
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.AgentID != "" {
		addFilter("agent_id = ?", filter.AgentID)
	}
	if filter.CorrelationID != "" {
		addFilter("correlation_id = ?", filter.CorrelationID)
	}
	if filter.Kind != "" {
		addFilter("kind = ?", string(filter.Kind))
	}
	query += where + " ORDER BY ts ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry       Entry
			kind        string
			payloadJSON string
			ts          sql.NullTime
		)
		if err := rows.Scan(&ts, &entry.AgentID, &kind, &entry.CorrelationID, &payloadJSON); err != nil {
			return nil, err
		}
		entry.Kind = Kind(kind)
		if ts.Valid {
			entry.Timestamp = ts.Time
		}
		if payloadJSON != "" {
			if payload, err := decodePayload([]byte(payloadJSON)); err == nil {
				entry.Payload = payload
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func ensureEventSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS taxis_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TIMESTAMP NOT NULL,
			agent_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			correlation_id TEXT,
			payload_json TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_taxis_events_agent ON taxis_events(agent_id);
		CREATE INDEX IF NOT EXISTS idx_taxis_events_correlation ON taxis_events(correlation_id);
		CREATE INDEX IF NOT EXISTS idx_taxis_events_kind ON taxis_events(kind);
	`)
	return err
}
