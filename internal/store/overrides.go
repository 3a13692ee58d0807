package store

import (
	"context"
	"fmt"
	"time"

	"github.com/plannerhq/datecompass/internal/domain"
)

// SchoolHolidayOverride is one manually curated school-holiday record.
// Overrides exist because the public school-holiday API is incomplete for
// some regions; curated rows take precedence over it.
type SchoolHolidayOverride struct {
	Interval  domain.SchoolHolidayInterval
	Verified  bool
	SourceURL string
}

// ListSchoolOverrides returns curated records matched by (country, region,
// year-overlap): every override whose interval touches any calendar year
// covered by [from, to].
func (s *Store) ListSchoolOverrides(ctx context.Context, countryCode, regionCode string, from, to time.Time) ([]SchoolHolidayOverride, error) {
	yearStart := time.Date(from.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(to.Year(), 12, 31, 0, 0, 0, 0, time.UTC)

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, start_date, end_date, verified, source_url
		 FROM school_holiday_overrides
		 WHERE country_code = ? AND region_code = ? AND start_date <= ? AND end_date >= ?
		 ORDER BY start_date, id`,
		normalizeCountry(countryCode), regionCode,
		yearEnd.Format(domain.DayFormat), yearStart.Format(domain.DayFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("list school overrides: %w", err)
	}
	defer rows.Close()

	var out []SchoolHolidayOverride
	for rows.Next() {
		var (
			o          SchoolHolidayOverride
			start, end string
		)
		if err := rows.Scan(&o.Interval.Name, &start, &end, &o.Verified, &o.SourceURL); err != nil {
			return nil, fmt.Errorf("scan school override: %w", err)
		}
		if o.Interval.Start, err = time.ParseInLocation(domain.DayFormat, start, time.UTC); err != nil {
			return nil, fmt.Errorf("school override start date %q: %w", start, err)
		}
		if o.Interval.End, err = time.ParseInLocation(domain.DayFormat, end, time.UTC); err != nil {
			return nil, fmt.Errorf("school override end date %q: %w", end, err)
		}
		o.Interval.CountryCode = normalizeCountry(countryCode)
		o.Interval.RegionCode = regionCode
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertSchoolOverride adds one curated record.
func (s *Store) InsertSchoolOverride(ctx context.Context, o SchoolHolidayOverride) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO school_holiday_overrides
		 (country_code, region_code, name, start_date, end_date, verified, source_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		normalizeCountry(o.Interval.CountryCode), o.Interval.RegionCode, o.Interval.Name,
		o.Interval.Start.Format(domain.DayFormat), o.Interval.End.Format(domain.DayFormat),
		o.Verified, o.SourceURL,
	)
	if err != nil {
		return fmt.Errorf("insert school override: %w", err)
	}
	return nil
}
