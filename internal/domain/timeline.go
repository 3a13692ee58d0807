package domain

import "time"

// BuildTimeline projects every source onto a day-indexed map spanning the
// range. One empty DayRecord is created per day before any source is merged,
// so the map always has exactly Days() entries regardless of source content.
//
// Merges are idempotent set/overwrite operations keyed by date: holidays are
// placed into their single matching day (out-of-range dates are silently
// dropped), interval sources are clipped to the range and expanded day by
// day, and every day adopts the shared weather summary for its calendar
// month. Given identical inputs the output is identical; merge order is not
// observable in the result.
func BuildTimeline(
	rng DateRange,
	holidays []HolidayEntry,
	events []IndustryEvent,
	schoolIntervals []SchoolHolidayInterval,
	weatherByMonth map[string]*MonthlyWeatherSummary,
) map[string]*DayRecord {
	days := make(map[string]*DayRecord, rng.Days())
	rng.EachDay(func(day time.Time) {
		days[DayKey(day)] = &DayRecord{Date: day}
	})

	for _, h := range holidays {
		rec, ok := days[DayKey(h.Date)]
		if !ok {
			continue
		}
		if containsHoliday(rec.Holidays, h) {
			continue
		}
		rec.Holidays = append(rec.Holidays, h)
	}

	for _, ev := range events {
		start, end, ok := rng.Clip(ev.Start, ev.End)
		if !ok {
			continue
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			rec := days[DayKey(d)]
			if containsEvent(rec.IndustryEvents, ev) {
				continue
			}
			rec.IndustryEvents = append(rec.IndustryEvents, ev)
		}
	}

	// First interval wins per day. The source only ever covers one region
	// per analysis, so true overlap resolution is deliberately not done here.
	for _, si := range schoolIntervals {
		start, end, ok := rng.Clip(si.Start, si.End)
		if !ok {
			continue
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			rec := days[DayKey(d)]
			if rec.SchoolHoliday == "" {
				rec.SchoolHoliday = si.Name
			}
		}
	}

	if len(weatherByMonth) > 0 {
		rng.EachDay(func(day time.Time) {
			if summary, ok := weatherByMonth[MonthKey(day)]; ok && summary != nil {
				days[DayKey(day)].Weather = summary
			}
		})
	}

	return days
}

func containsHoliday(list []HolidayEntry, h HolidayEntry) bool {
	for _, have := range list {
		if have.Name == h.Name && have.CountryCode == h.CountryCode && have.Date.Equal(h.Date) {
			return true
		}
	}
	return false
}

func containsEvent(list []IndustryEvent, ev IndustryEvent) bool {
	for _, have := range list {
		if have.ID != "" && have.ID == ev.ID {
			return true
		}
		if have.ID == "" && have.Name == ev.Name && have.CountryCode == ev.CountryCode {
			return true
		}
	}
	return false
}
