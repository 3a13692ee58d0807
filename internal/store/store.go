// Package store persists the engine's caches in SQLite: public-holiday
// payloads by (country, year), monthly weather summaries by
// (city, month, year-kind), the curated school-holiday override table, and
// the industry-event catalog.
//
// The holiday and weather caches are read/insert only. No update or delete
// path exists; a cache row is permanent once written.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/plannerhq/datecompass/internal/observability"
)

// Store wraps the SQLite database holding all persistent engine state.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, logger: logger, metrics: metrics}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS holiday_cache (
			country_code TEXT NOT NULL,
			year         INTEGER NOT NULL,
			payload      TEXT NOT NULL,
			fetched_at   TEXT NOT NULL,
			PRIMARY KEY (country_code, year)
		)`,
		`CREATE TABLE IF NOT EXISTS weather_cache (
			city          TEXT NOT NULL,
			month         INTEGER NOT NULL,
			year_kind     TEXT NOT NULL,
			target_year   INTEGER NOT NULL DEFAULT 0,
			avg_high      REAL NOT NULL,
			avg_low       REAL NOT NULL,
			avg_rain_days REAL NOT NULL,
			avg_humidity  REAL NOT NULL,
			typical_sunset TEXT NOT NULL DEFAULT '',
			history       TEXT,
			created_at    TEXT NOT NULL,
			PRIMARY KEY (city, month, year_kind, target_year)
		)`,
		`CREATE TABLE IF NOT EXISTS school_holiday_overrides (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			country_code TEXT NOT NULL,
			region_code  TEXT NOT NULL DEFAULT '',
			name         TEXT NOT NULL,
			start_date   TEXT NOT NULL,
			end_date     TEXT NOT NULL,
			verified     INTEGER NOT NULL DEFAULT 0,
			source_url   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_country_region
			ON school_holiday_overrides (country_code, region_code)`,
		`CREATE TABLE IF NOT EXISTS industry_events (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			start_date     TEXT NOT NULL,
			end_date       TEXT NOT NULL,
			city           TEXT NOT NULL DEFAULT '',
			country_code   TEXT NOT NULL,
			industries     TEXT NOT NULL DEFAULT '[]',
			audience_types TEXT NOT NULL DEFAULT '[]',
			scale          TEXT NOT NULL DEFAULT '',
			risk_level     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_country_dates
			ON industry_events (country_code, start_date, end_date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}
