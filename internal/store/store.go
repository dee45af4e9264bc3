// Package store is the SQLite repository of event series and their
// instances.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// ErrNotFound is returned when a series does not exist.
var ErrNotFound = errors.New("store: not found")

// Store provides SQLite persistence for series, instances and their metadata.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// busy_timeout avoids "database locked" errors while the seed import and
	// feed builds overlap.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS branches (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			address_line1 TEXT NOT NULL DEFAULT '',
			postal_code TEXT NOT NULL DEFAULT '',
			locality TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS series (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			teaser TEXT NOT NULL DEFAULT '',
			changed INTEGER NOT NULL DEFAULT 0,
			path TEXT NOT NULL DEFAULT '',
			image_path TEXT NOT NULL DEFAULT '',
			ticket_url TEXT NOT NULL DEFAULT '',
			place TEXT NOT NULL DEFAULT '',
			address_line1 TEXT NOT NULL DEFAULT '',
			postal_code TEXT NOT NULL DEFAULT '',
			locality TEXT NOT NULL DEFAULT '',
			branch_id INTEGER REFERENCES branches(id),
			district TEXT NOT NULL DEFAULT '',
			recur_type TEXT NOT NULL,
			start_value TEXT NOT NULL DEFAULT '',
			end_value TEXT NOT NULL DEFAULT '',
			time TEXT NOT NULL DEFAULT '',
			duration_or_end_time TEXT NOT NULL DEFAULT 'duration',
			duration INTEGER NOT NULL DEFAULT 0,
			end_time TEXT NOT NULL DEFAULT '',
			days TEXT NOT NULL DEFAULT '',
			monthly_type TEXT NOT NULL DEFAULT '',
			day_occurrence TEXT NOT NULL DEFAULT '',
			day_of_month INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS series_terms (
			series_id INTEGER NOT NULL REFERENCES series(id) ON DELETE CASCADE,
			vocabulary TEXT NOT NULL CHECK(vocabulary IN ('target_group', 'category', 'tag')),
			label TEXT NOT NULL,
			weight INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS series_paragraphs (
			series_id INTEGER NOT NULL REFERENCES series(id) ON DELETE CASCADE,
			bundle TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			weight INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ticket_categories (
			series_id INTEGER NOT NULL REFERENCES series(id) ON DELETE CASCADE,
			bundle TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			weight INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS custom_dates (
			series_id INTEGER NOT NULL REFERENCES series(id) ON DELETE CASCADE,
			start_at INTEGER NOT NULL,
			end_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS instances (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			series_id INTEGER NOT NULL REFERENCES series(id) ON DELETE CASCADE,
			start_at INTEGER NOT NULL,
			end_at INTEGER NOT NULL,
			status INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_series_terms_series ON series_terms(series_id)`,
		`CREATE INDEX IF NOT EXISTS idx_series_paragraphs_series ON series_paragraphs(series_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_categories_series ON ticket_categories(series_id)`,
		`CREATE INDEX IF NOT EXISTS idx_custom_dates_series ON custom_dates(series_id)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_series ON instances(series_id)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_start ON instances(start_at, status)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

func unixTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}
