package domain

// WatchlistData holds the resolved source records for one watchlist location.
// Watchlist records are joined against the shared date range at query time
// only; they are never merged into the primary DayRecord timeline.
type WatchlistData struct {
	Location        WatchlistLocation
	Holidays        []HolidayEntry
	SchoolIntervals []SchoolHolidayInterval
}

// ResolveConflicts evaluates every watchlist location against the range.
// A location's conflict count is its holidays dated within the range plus its
// school-holiday intervals overlapping the range. Count sums across all
// locations; ImpactedLocations dedups by label and keeps first-seen order.
func ResolveConflicts(rng DateRange, locations []WatchlistData) ConflictSummary {
	summary := ConflictSummary{}
	seen := make(map[string]struct{})

	for _, loc := range locations {
		n := conflictCount(rng, loc)
		if n == 0 {
			continue
		}
		summary.Count += n
		if _, dup := seen[loc.Location.Label]; !dup {
			seen[loc.Location.Label] = struct{}{}
			summary.ImpactedLocations = append(summary.ImpactedLocations, loc.Location.Label)
		}
	}
	return summary
}

// ConflictDays returns the set of day keys within the range on which at least
// one watchlist location has a holiday or an overlapping school interval.
// Used to feed the per-day watchlist-conflict input of ClassifyDay.
func ConflictDays(rng DateRange, locations []WatchlistData) map[string]bool {
	days := make(map[string]bool)
	for _, loc := range locations {
		for _, h := range loc.Holidays {
			if rng.Contains(h.Date) {
				days[DayKey(h.Date)] = true
			}
		}
		for _, si := range loc.SchoolIntervals {
			start, end, ok := rng.Clip(si.Start, si.End)
			if !ok {
				continue
			}
			for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
				days[DayKey(d)] = true
			}
		}
	}
	return days
}

func conflictCount(rng DateRange, loc WatchlistData) int {
	n := 0
	for _, h := range loc.Holidays {
		if rng.Contains(h.Date) {
			n++
		}
	}
	for _, si := range loc.SchoolIntervals {
		if rng.Overlaps(si.Start, si.End) {
			n++
		}
	}
	return n
}
