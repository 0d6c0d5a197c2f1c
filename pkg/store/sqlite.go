package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/psantana5/costime/pkg/costime"
)

// SQLiteStore persists every measurement so history survives across runs
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL plus a busy timeout lets `costime report` read while `serve` writes.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tag TEXT NOT NULL,
		label TEXT NOT NULL,
		kind TEXT NOT NULL,
		started_at_ms INTEGER NOT NULL,
		ended_at_ms INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_measurements_key ON measurements(tag, label, kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one measurement
func (s *SQLiteStore) Record(m costime.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO measurements (tag, label, kind, started_at_ms, ended_at_ms, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.Tag, m.Label, string(m.Kind), m.StartedAt.UnixMilli(), m.EndedAt.UnixMilli(), m.ElapsedMillis())
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	return nil
}

// Summaries aggregates all stored measurements
func (s *SQLiteStore) Summaries() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT tag, label, kind, COUNT(*), SUM(elapsed_ms), MIN(elapsed_ms), MAX(elapsed_ms), MAX(ended_at_ms)
		FROM measurements
		GROUP BY tag, label, kind
		ORDER BY tag, label, kind
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	var out []Summary
	for rows.Next() {
		var (
			sum                       Summary
			kind                      string
			total, minMs, maxMs, last int64
		)
		if err := rows.Scan(&sum.Tag, &sum.Label, &kind, &sum.Count, &total, &minMs, &maxMs, &last); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		sum.Kind = costime.Kind(kind)
		sum.Total = time.Duration(total) * time.Millisecond
		sum.Min = time.Duration(minMs) * time.Millisecond
		sum.Max = time.Duration(maxMs) * time.Millisecond
		sum.Last = time.UnixMilli(last)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read summaries: %w", err)
	}
	return out, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
