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

// GetWeatherSummary returns the cached monthly summary for the exact
// (city, month, year-key) variant. Generic and year-specific rows are
// distinct cache entries and are never coalesced.
//
// A row whose retained-history column is present but not a well-formed
// sample sequence is sanitized in place: the scalar aggregates are returned
// and the history is treated as absent.
func (s *Store) GetWeatherSummary(ctx context.Context, city string, month time.Month, key domain.YearKey) (*domain.MonthlyWeatherSummary, bool, error) {
	var (
		summary domain.MonthlyWeatherSummary
		history sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT avg_high, avg_low, avg_rain_days, avg_humidity, typical_sunset, history
		 FROM weather_cache
		 WHERE city = ? AND month = ? AND year_kind = ? AND target_year = ?`,
		normalizeCity(city), int(month), key.Kind, key.Year,
	).Scan(&summary.AvgHigh, &summary.AvgLow, &summary.AvgRainDays, &summary.AvgHumidity,
		&summary.TypicalSunset, &history)
	if errors.Is(err, sql.ErrNoRows) {
		s.metrics.CacheLookups.WithLabelValues("weather", "miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("weather cache lookup: %w", err)
	}

	summary.City = city
	summary.Month = month
	if history.Valid && history.String != "" {
		var samples []domain.DailySample
		if err := json.Unmarshal([]byte(history.String), &samples); err != nil {
			s.logger.Warn("weather cache row has malformed history, treating as absent",
				"city", city, "month", int(month), "year_kind", key.Kind, "error", err)
		} else {
			summary.HistoryData = samples
		}
	}
	s.metrics.CacheLookups.WithLabelValues("weather", "hit").Inc()
	return &summary, true, nil
}

// PutWeatherSummary inserts a computed summary under the given key variant.
func (s *Store) PutWeatherSummary(ctx context.Context, city string, month time.Month, key domain.YearKey, summary *domain.MonthlyWeatherSummary) error {
	history, err := json.Marshal(summary.HistoryData)
	if err != nil {
		return fmt.Errorf("encode weather history: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO weather_cache
		 (city, month, year_kind, target_year, avg_high, avg_low, avg_rain_days, avg_humidity, typical_sunset, history, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		normalizeCity(city), int(month), key.Kind, key.Year,
		summary.AvgHigh, summary.AvgLow, summary.AvgRainDays, summary.AvgHumidity,
		summary.TypicalSunset, string(history), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert weather cache row: %w", err)
	}
	return nil
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
