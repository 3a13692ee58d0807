package domain

import (
	"fmt"
	"time"
)

// DayFormat is the ISO date layout used for timeline keys.
const DayFormat = "2006-01-02"

// MonthFormat is the layout used for per-month weather keys.
const MonthFormat = "2006-01"

// DateRange is an inclusive span of calendar days, normalized to UTC midnights.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a validated range from two timestamps. The times are
// truncated to UTC midnight; an inverted or zero range is rejected.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, fmt.Errorf("date range: start and end are required")
	}
	s := DayOf(start)
	e := DayOf(end)
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("date range: end %s is before start %s",
			e.Format(DayFormat), s.Format(DayFormat))
	}
	return DateRange{Start: s, End: e}, nil
}

// ParseDateRange builds a validated range from two ISO date strings.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.ParseInLocation(DayFormat, start, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("date range: invalid start %q: %w", start, err)
	}
	e, err := time.ParseInLocation(DayFormat, end, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("date range: invalid end %q: %w", end, err)
	}
	return NewDateRange(s, e)
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats a timestamp as its ISO timeline key.
func DayKey(t time.Time) string {
	return DayOf(t).Format(DayFormat)
}

// MonthKey formats a timestamp as its per-month weather key.
func MonthKey(t time.Time) string {
	return DayOf(t).Format(MonthFormat)
}

// Days returns the number of calendar days in the range, inclusive.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// EachDay calls fn once per day in the range, in ascending order.
func (r DateRange) EachDay(fn func(day time.Time)) {
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}

// Contains reports whether the given timestamp's calendar day falls in the range.
func (r DateRange) Contains(t time.Time) bool {
	d := DayOf(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps reports whether the interval [start, end] touches the range,
// using the standard interval test: start <= rangeEnd && end >= rangeStart.
func (r DateRange) Overlaps(start, end time.Time) bool {
	s, e := DayOf(start), DayOf(end)
	return !s.After(r.End) && !e.Before(r.Start)
}

// Clip returns the interval [start, end] clipped to the range. ok is false
// when the interval lies entirely outside the range.
func (r DateRange) Clip(start, end time.Time) (clippedStart, clippedEnd time.Time, ok bool) {
	s, e := DayOf(start), DayOf(end)
	if s.Before(r.Start) {
		s = r.Start
	}
	if e.After(r.End) {
		e = r.End
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, false
	}
	return s, e, true
}

// Months returns the first day of every distinct calendar month the range
// touches, in ascending order.
func (r DateRange) Months() []time.Time {
	var months []time.Time
	m := time.Date(r.Start.Year(), r.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(r.End.Year(), r.End.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !m.After(last) {
		months = append(months, m)
		m = m.AddDate(0, 1, 0)
	}
	return months
}

// Years returns every distinct calendar year the range touches, ascending.
func (r DateRange) Years() []int {
	var years []int
	for y := r.Start.Year(); y <= r.End.Year(); y++ {
		years = append(years, y)
	}
	return years
}
