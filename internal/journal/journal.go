// Package journal records webhook delivery outcomes in a local SQLite
// database. The journal is advisory: it supports operator inspection and
// dedup debugging, and its failures never affect request handling.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded delivery attempt.
type Entry struct {
	DeliveryID  string
	RecordingID string
	Title       string
	Status      string
	Detail      string
	CreatedAt   time.Time
}

// Journal is a SQLite-backed delivery log.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS deliveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		delivery_id TEXT NOT NULL,
		recording_id TEXT NOT NULL,
		title TEXT,
		status TEXT NOT NULL,
		detail TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_recording ON deliveries(recording_id);
	CREATE INDEX IF NOT EXISTS idx_deliveries_created ON deliveries(created_at);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends a delivery entry. CreatedAt is set if zero.
func (j *Journal) Record(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	query := `INSERT INTO deliveries (delivery_id, recording_id, title, status, detail, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := j.db.Exec(query,
		e.DeliveryID, e.RecordingID, e.Title, e.Status, e.Detail, e.CreatedAt); err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT delivery_id, recording_id, title, status, detail, created_at
	          FROM deliveries ORDER BY id DESC LIMIT ?`

	rows, err := j.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.DeliveryID, &e.RecordingID, &e.Title, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
