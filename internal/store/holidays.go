package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plannerhq/datecompass/internal/domain"
)

// GetHolidays returns the cached holiday set for (country, year). The second
// return value reports whether a cache row exists.
func (s *Store) GetHolidays(ctx context.Context, countryCode string, year int) ([]domain.HolidayEntry, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM holiday_cache WHERE country_code = ? AND year = ?`,
		normalizeCountry(countryCode), year,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		s.metrics.CacheLookups.WithLabelValues("holiday", "miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("holiday cache lookup: %w", err)
	}

	var entries []domain.HolidayEntry
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return nil, false, fmt.Errorf("holiday cache payload for %s/%d: %w", countryCode, year, err)
	}
	s.metrics.CacheLookups.WithLabelValues("holiday", "hit").Inc()
	return entries, true, nil
}

// PutHolidays inserts a holiday set for (country, year). Empty sets are not
// cached so an origin outage never gets frozen into the permanent cache.
func (s *Store) PutHolidays(ctx context.Context, countryCode string, year int, entries []domain.HolidayEntry) error {
	if len(entries) == 0 {
		return nil
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode holiday payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO holiday_cache (country_code, year, payload, fetched_at) VALUES (?, ?, ?, ?)`,
		normalizeCountry(countryCode), year, string(payload), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert holiday cache row: %w", err)
	}
	return nil
}

func normalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
