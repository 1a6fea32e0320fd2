package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const createEventsTable = `CREATE TABLE IF NOT EXISTS security_events (
	id          TEXT PRIMARY KEY,
	ts          INTEGER NOT NULL,
	type        TEXT NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	session_id  TEXT NOT NULL DEFAULT '',
	ip          TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	method      TEXT NOT NULL DEFAULT '',
	path        TEXT NOT NULL DEFAULT '',
	suspicious  INTEGER NOT NULL DEFAULT 0,
	metadata    TEXT NOT NULL DEFAULT '{}'
)`

const createEventsIndex = `CREATE INDEX IF NOT EXISTS idx_security_events_type_ts ON security_events(type, ts)`

// SQLiteSink persists events to a SQLite database.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSink opens (or creates) the database at path and migrates the events table.
// Use ":memory:" for an in-memory database.
func NewSQLiteSink(path string, logger *slog.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// every connection to ":memory:" is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	for _, stmt := range []string{createEventsTable, createEventsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate security_events: %w", err)
		}
	}

	return &SQLiteSink{
		db:     db,
		logger: logger.With("component", "audit_sqlite"),
	}, nil
}

// Emit inserts event. Failures are logged and otherwise ignored.
func (s *SQLiteSink) Emit(ctx context.Context, event Event) {
	if err := s.Write(ctx, event); err != nil {
		s.logger.Warn("persist security event failed", slog.String("event_id", event.ID), slog.Any("error", err))
	}
}

// Write inserts event and returns the insert error.
func (s *SQLiteSink) Write(ctx context.Context, event Event) error {
	md := "{}"
	if len(event.Metadata) > 0 {
		if raw, err := json.Marshal(event.Metadata); err == nil {
			md = string(raw)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO security_events
		 (id, ts, type, user_id, session_id, ip, user_agent, method, path, suspicious, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UnixMilli(),
		string(event.Type),
		event.UserID,
		event.SessionID,
		event.IP,
		event.UserAgent,
		event.Method,
		event.Path,
		boolToInt(event.Suspicious),
		md,
	)
	if err != nil {
		return fmt.Errorf("insert security event %s: %w", event.ID, err)
	}
	return nil
}

// Recent returns up to limit events, newest first. An empty eventType matches all.
func (s *SQLiteSink) Recent(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, ts, type, user_id, session_id, ip, user_agent, method, path, suspicious, metadata
		FROM security_events`
	args := []any{}
	if eventType != "" {
		query += ` WHERE type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY ts DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query security_events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev         Event
			ts         int64
			typ        string
			suspicious int
			md         string
		)
		if err := rows.Scan(&ev.ID, &ts, &typ, &ev.UserID, &ev.SessionID, &ev.IP, &ev.UserAgent,
			&ev.Method, &ev.Path, &suspicious, &md); err != nil {
			return nil, fmt.Errorf("scan security_events: %w", err)
		}
		ev.Timestamp = time.UnixMilli(ts).UTC()
		ev.Type = EventType(typ)
		ev.Suspicious = suspicious == 1
		if md != "" && md != "{}" {
			if err := json.Unmarshal([]byte(md), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", ev.ID, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
