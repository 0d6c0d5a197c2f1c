package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/psantana5/costime/pkg/costime"
)

// PostgreSQLStore keeps history in a shared PostgreSQL database, for several
// hosts reporting into one place
type PostgreSQLStore struct {
	db *sql.DB
}

// NewPostgreSQLStore connects to dsn and creates the schema if needed
func NewPostgreSQLStore(config Config) (*PostgreSQLStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgreSQLStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgreSQLStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS costime_measurements (
		id BIGSERIAL PRIMARY KEY,
		tag TEXT NOT NULL,
		label TEXT NOT NULL,
		kind TEXT NOT NULL,
		started_at_ms BIGINT NOT NULL,
		ended_at_ms BIGINT NOT NULL,
		elapsed_ms BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_costime_measurements_key ON costime_measurements(tag, label, kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one measurement
func (s *PostgreSQLStore) Record(m costime.Measurement) error {
	_, err := s.db.Exec(`
		INSERT INTO costime_measurements (tag, label, kind, started_at_ms, ended_at_ms, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.Tag, m.Label, string(m.Kind), m.StartedAt.UnixMilli(), m.EndedAt.UnixMilli(), m.ElapsedMillis())
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	return nil
}

// Summaries aggregates all stored measurements
func (s *PostgreSQLStore) Summaries() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT tag, label, kind, COUNT(*), SUM(elapsed_ms), MIN(elapsed_ms), MAX(elapsed_ms), MAX(ended_at_ms)
		FROM costime_measurements
		GROUP BY tag, label, kind
		ORDER BY tag, label, kind
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// Close closes the connection pool
func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
