package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/plannerhq/datecompass/internal/domain"
)

// GlobalCountryCode marks events relevant everywhere; they match any country.
const GlobalCountryCode = "Global"

// EventQuery selects industry events by date overlap and country. Industry,
// audience, and scale filters are applied in memory after the row fetch.
type EventQuery struct {
	Range   domain.DateRange
	Country string
	Filters domain.EventFilters
}

// QueryEvents returns events whose interval overlaps the query range and
// whose country matches exactly or is "Global", post-filtered in memory.
func (s *Store) QueryEvents(ctx context.Context, q EventQuery) ([]domain.IndustryEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, start_date, end_date, city, country_code, industries, audience_types, scale, risk_level
		 FROM industry_events
		 WHERE (country_code = ? OR country_code = ?)
		   AND start_date <= ? AND end_date >= ?
		 ORDER BY start_date, id`,
		normalizeCountry(q.Country), GlobalCountryCode,
		q.Range.End.Format(domain.DayFormat), q.Range.Start.Format(domain.DayFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("query industry events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	return filterEvents(events, q.Filters), nil
}

// CountTracked returns the number of tracked events for the country matching
// the filters, deliberately ignoring the date range. This date-unfiltered
// count feeds confidence classification.
func (s *Store) CountTracked(ctx context.Context, country string, filters domain.EventFilters) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, start_date, end_date, city, country_code, industries, audience_types, scale, risk_level
		 FROM industry_events
		 WHERE country_code = ? OR country_code = ?`,
		normalizeCountry(country), GlobalCountryCode,
	)
	if err != nil {
		return 0, fmt.Errorf("count tracked events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return 0, err
	}
	return len(filterEvents(events, filters)), nil
}

// InsertEvent adds one event to the catalog. Existing IDs are left untouched.
func (s *Store) InsertEvent(ctx context.Context, ev domain.IndustryEvent) error {
	industries, err := json.Marshal(ev.Industries)
	if err != nil {
		return fmt.Errorf("encode industries: %w", err)
	}
	audiences, err := json.Marshal(ev.AudienceTypes)
	if err != nil {
		return fmt.Errorf("encode audience types: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO industry_events
		 (id, name, start_date, end_date, city, country_code, industries, audience_types, scale, risk_level)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Name,
		ev.Start.Format(domain.DayFormat), ev.End.Format(domain.DayFormat),
		ev.City, eventCountry(ev.CountryCode), string(industries), string(audiences),
		ev.Scale, ev.RiskLevel,
	)
	if err != nil {
		return fmt.Errorf("insert industry event: %w", err)
	}
	return nil
}

func eventCountry(code string) string {
	if strings.EqualFold(code, GlobalCountryCode) {
		return GlobalCountryCode
	}
	return normalizeCountry(code)
}

type eventRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows eventRows) ([]domain.IndustryEvent, error) {
	var out []domain.IndustryEvent
	for rows.Next() {
		var (
			ev                    domain.IndustryEvent
			start, end            string
			industries, audiences string
		)
		if err := rows.Scan(&ev.ID, &ev.Name, &start, &end, &ev.City, &ev.CountryCode,
			&industries, &audiences, &ev.Scale, &ev.RiskLevel); err != nil {
			return nil, fmt.Errorf("scan industry event: %w", err)
		}
		var err error
		if ev.Start, err = time.ParseInLocation(domain.DayFormat, start, time.UTC); err != nil {
			return nil, fmt.Errorf("event start date %q: %w", start, err)
		}
		if ev.End, err = time.ParseInLocation(domain.DayFormat, end, time.UTC); err != nil {
			return nil, fmt.Errorf("event end date %q: %w", end, err)
		}
		if err := json.Unmarshal([]byte(industries), &ev.Industries); err != nil {
			return nil, fmt.Errorf("event industries %q: %w", industries, err)
		}
		if err := json.Unmarshal([]byte(audiences), &ev.AudienceTypes); err != nil {
			return nil, fmt.Errorf("event audience types %q: %w", audiences, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func filterEvents(events []domain.IndustryEvent, f domain.EventFilters) []domain.IndustryEvent {
	if len(f.Industries) == 0 && len(f.AudienceTypes) == 0 && len(f.Scales) == 0 {
		return events
	}
	out := make([]domain.IndustryEvent, 0, len(events))
	for _, ev := range events {
		if !matchesAny(f.Industries, ev.Industries) {
			continue
		}
		if !matchesAny(f.AudienceTypes, ev.AudienceTypes) {
			continue
		}
		if len(f.Scales) > 0 && !containsFold(f.Scales, ev.Scale) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// matchesAny reports whether any wanted value appears in the event's values.
// An empty wanted list matches everything.
func matchesAny(wanted, have []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if containsFold(have, w) {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
