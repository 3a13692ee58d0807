package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConflicts_CountsSumAcrossLocations(t *testing.T) {
	rng := mustRange(t, "2026-06-01", "2026-06-07")

	locations := []WatchlistData{
		{
			Location: WatchlistLocation{ID: "w1", Country: "FR", Label: "Paris office"},
			Holidays: []HolidayEntry{
				{Date: day("2026-06-02"), Name: "Pentecost Monday", CountryCode: "FR"},
				{Date: day("2026-06-05"), Name: "Regional Day", CountryCode: "FR"},
			},
		},
		{
			Location: WatchlistLocation{ID: "w2", Country: "NL", Label: "Amsterdam office"},
			SchoolIntervals: []SchoolHolidayInterval{
				{Name: "Summer Break", Start: day("2026-06-06"), End: day("2026-07-15"), CountryCode: "NL"},
			},
		},
	}

	summary := ResolveConflicts(rng, locations)

	assert.Equal(t, 3, summary.Count, "count is the sum of records, not locations")
	assert.Equal(t, []string{"Paris office", "Amsterdam office"}, summary.ImpactedLocations)
}

func TestResolveConflicts_OnlyContributingLocationsListed(t *testing.T) {
	rng := mustRange(t, "2026-06-01", "2026-06-07")

	locations := []WatchlistData{
		{
			Location: WatchlistLocation{ID: "w1", Country: "FR", Label: "Paris office"},
			Holidays: []HolidayEntry{{Date: day("2026-08-15"), Name: "Assumption", CountryCode: "FR"}},
		},
		{
			Location: WatchlistLocation{ID: "w2", Country: "NL", Label: "Amsterdam office"},
			Holidays: []HolidayEntry{{Date: day("2026-06-03"), Name: "Observance", CountryCode: "NL"}},
		},
	}

	summary := ResolveConflicts(rng, locations)

	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, []string{"Amsterdam office"}, summary.ImpactedLocations)
}

func TestResolveConflicts_DedupByLabel(t *testing.T) {
	rng := mustRange(t, "2026-06-01", "2026-06-07")

	// Two watchlist rows resolving to the same label count once in the set.
	locations := []WatchlistData{
		{
			Location: WatchlistLocation{ID: "w1", Country: "FR", Label: "Paris office"},
			Holidays: []HolidayEntry{{Date: day("2026-06-02"), Name: "Pentecost Monday", CountryCode: "FR"}},
		},
		{
			Location: WatchlistLocation{ID: "w2", Country: "FR", Region: "IDF", Label: "Paris office"},
			Holidays: []HolidayEntry{{Date: day("2026-06-03"), Name: "Observance", CountryCode: "FR"}},
		},
	}

	summary := ResolveConflicts(rng, locations)

	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, []string{"Paris office"}, summary.ImpactedLocations)
}

func TestResolveConflicts_IntervalOverlapBoundaries(t *testing.T) {
	rng := mustRange(t, "2026-06-05", "2026-06-07")

	touchingEnd := WatchlistData{
		Location: WatchlistLocation{ID: "w1", Label: "A"},
		SchoolIntervals: []SchoolHolidayInterval{
			{Name: "Break", Start: day("2026-06-07"), End: day("2026-06-30")},
		},
	}
	touchingStart := WatchlistData{
		Location: WatchlistLocation{ID: "w2", Label: "B"},
		SchoolIntervals: []SchoolHolidayInterval{
			{Name: "Break", Start: day("2026-05-20"), End: day("2026-06-05")},
		},
	}
	outside := WatchlistData{
		Location: WatchlistLocation{ID: "w3", Label: "C"},
		SchoolIntervals: []SchoolHolidayInterval{
			{Name: "Break", Start: day("2026-06-08"), End: day("2026-06-09")},
		},
	}

	summary := ResolveConflicts(rng, []WatchlistData{touchingEnd, touchingStart, outside})

	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, []string{"A", "B"}, summary.ImpactedLocations)
}

func TestResolveConflicts_Empty(t *testing.T) {
	rng := mustRange(t, "2026-06-01", "2026-06-07")
	summary := ResolveConflicts(rng, nil)
	assert.Equal(t, 0, summary.Count)
	assert.Empty(t, summary.ImpactedLocations)
}

func TestConflictDays(t *testing.T) {
	rng := mustRange(t, "2026-06-01", "2026-06-07")

	locations := []WatchlistData{
		{
			Location: WatchlistLocation{ID: "w1", Label: "Paris office"},
			Holidays: []HolidayEntry{{Date: day("2026-06-02"), Name: "Pentecost Monday", CountryCode: "FR"}},
			SchoolIntervals: []SchoolHolidayInterval{
				{Name: "Break", Start: day("2026-06-06"), End: day("2026-06-20")},
			},
		},
	}

	days := ConflictDays(rng, locations)

	require.Len(t, days, 3)
	assert.True(t, days["2026-06-02"])
	assert.True(t, days["2026-06-06"])
	assert.True(t, days["2026-06-07"])
	assert.False(t, days["2026-06-08"], "clipped at range end")
}
