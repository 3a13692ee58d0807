package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannerhq/datecompass/internal/domain"
	"github.com/plannerhq/datecompass/internal/observability"
	"github.com/plannerhq/datecompass/internal/store"
	"github.com/plannerhq/datecompass/internal/weather"
)

// --- stubs ---

type stubHolidays struct {
	byKey map[string][]domain.HolidayEntry // keyed "CC/2026"
	err   error
}

func (s *stubHolidays) GetHolidays(_ context.Context, countryCode string, year int) ([]domain.HolidayEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byKey[fmt.Sprintf("%s/%d", countryCode, year)], nil
}

type stubSchool struct {
	res domain.SchoolHolidayResult
	err error
}

func (s *stubSchool) GetSchoolHolidays(_ context.Context, _, _ string, _, _ time.Time) (domain.SchoolHolidayResult, error) {
	if s.err != nil {
		return domain.SchoolHolidayResult{}, s.err
	}
	return s.res, nil
}

type stubEvents struct {
	byCountry map[string][]domain.IndustryEvent
	total     int
	failFor   string // QueryEvents fails for this country
	countErr  error
}

func (s *stubEvents) QueryEvents(_ context.Context, q store.EventQuery) ([]domain.IndustryEvent, error) {
	if s.failFor != "" && q.Country == s.failFor {
		return nil, errors.New("event store unavailable")
	}
	return s.byCountry[q.Country], nil
}

func (s *stubEvents) CountTracked(_ context.Context, _ string, _ domain.EventFilters) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.total, nil
}

type stubWeather struct {
	summary *domain.MonthlyWeatherSummary
	err     error
	calls   []weather.Request
}

func (s *stubWeather) ResolveMonthly(_ context.Context, req weather.Request) (*domain.MonthlyWeatherSummary, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

type stubLocator struct {
	lat, lon float64
	found    bool
	err      error
}

func (s *stubLocator) LocateCity(_ context.Context, _, _ string) (float64, float64, bool, error) {
	return s.lat, s.lon, s.found, s.err
}

type stubSink struct {
	summaries []domain.RunSummary
	err       error
}

func (s *stubSink) PublishSummary(_ context.Context, summary domain.RunSummary) error {
	if s.err != nil {
		return s.err
	}
	s.summaries = append(s.summaries, summary)
	return nil
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustRange(t *testing.T, start, end string) domain.DateRange {
	t.Helper()
	rng, err := domain.ParseDateRange(start, end)
	require.NoError(t, err)
	return rng
}

func day(s string) time.Time {
	d, err := time.ParseInLocation(domain.DayFormat, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	holidays *stubHolidays
	school   *stubSchool
	events   *stubEvents
	weather  *stubWeather
	locator  *stubLocator
	sink     *stubSink
}

func newFixture() *fixture {
	return &fixture{
		holidays: &stubHolidays{byKey: map[string][]domain.HolidayEntry{}},
		school:   &stubSchool{},
		events:   &stubEvents{byCountry: map[string][]domain.IndustryEvent{}},
		weather:  &stubWeather{},
		locator:  &stubLocator{},
		sink:     &stubSink{},
	}
}

func (f *fixture) analyzer() *Analyzer {
	return New(f.holidays, f.school, f.events, f.weather, f.locator, f.sink,
		domain.NewHubSet(domain.DefaultHubCountries...),
		discardLogger(), observability.NewMetricsForTesting())
}

func riskByDate(res *Result) map[string]domain.RiskLevel {
	out := make(map[string]domain.RiskLevel)
	for _, d := range res.Days {
		out[domain.DayKey(d.Date)] = d.Risk
	}
	return out
}

// --- tests ---

func TestRun_ValidatesBeforeFetching(t *testing.T) {
	f := newFixture()
	f.holidays.err = errors.New("should never be called")
	a := f.analyzer()

	cases := []struct {
		name string
		req  Request
	}{
		{"missing country", Request{Range: mustRange(t, "2026-06-01", "2026-06-03")}},
		{"missing range", Request{Country: "DE"}},
		{"range too long", Request{Country: "DE", Range: mustRange(t, "2025-01-01", "2026-06-01")}},
		{"watchlist location without country", Request{
			Country:   "DE",
			Range:     mustRange(t, "2026-06-01", "2026-06-03"),
			Watchlist: []domain.WatchlistLocation{{ID: "w1", Label: "Paris office"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Run(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestRun_HubHolidayIsCautionNotHigh(t *testing.T) {
	f := newFixture()
	f.holidays.byKey["CN/2026"] = []domain.HolidayEntry{
		{Date: day("2026-06-02"), Name: "Dragon Boat Festival", CountryCode: "CN"},
	}
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
	})
	require.NoError(t, err)

	risks := riskByDate(res)
	assert.Equal(t, domain.RiskSafe, risks["2026-06-01"])
	assert.Equal(t, domain.RiskCaution, risks["2026-06-02"])
	assert.Equal(t, domain.RiskSafe, risks["2026-06-03"])
}

func TestRun_LocalHolidayDominates(t *testing.T) {
	f := newFixture()
	f.holidays.byKey["DE/2026"] = []domain.HolidayEntry{
		{Date: day("2026-06-02"), Name: "Local Day", CountryCode: "DE"},
	}
	f.school.res = domain.SchoolHolidayResult{Intervals: []domain.SchoolHolidayInterval{
		{Name: "Pfingstferien", Start: day("2026-06-01"), End: day("2026-06-03"), CountryCode: "DE"},
	}}
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
	})
	require.NoError(t, err)

	risks := riskByDate(res)
	assert.Equal(t, domain.RiskHigh, risks["2026-06-02"], "local holiday wins over school holiday")
	assert.Equal(t, domain.RiskCaution, risks["2026-06-01"], "school holiday alone is caution")
}

func TestRun_PrimaryHolidayFailureFailsRun(t *testing.T) {
	f := newFixture()
	f.holidays.err = errors.New("holiday API down")
	a := f.analyzer()

	_, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holiday API down")
}

func TestRun_PrimaryEventFailureFailsRun(t *testing.T) {
	f := newFixture()
	f.events.failFor = "DE"
	a := f.analyzer()

	_, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
	})
	require.Error(t, err)
}

func TestRun_RadarFailureDegrades(t *testing.T) {
	f := newFixture()
	f.events.failFor = "FR"
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country:        "DE",
		Range:          mustRange(t, "2026-06-01", "2026-06-03"),
		RadarCountries: []string{"FR"},
	})
	require.NoError(t, err, "radar failure must not fail the run")
	assert.Contains(t, res.Metadata.DegradedSources, "radar")
}

func TestRun_RadarEventsAreTagged(t *testing.T) {
	f := newFixture()
	f.events.byCountry["FR"] = []domain.IndustryEvent{
		{ID: "e1", Name: "VivaTech", Start: day("2026-06-02"), End: day("2026-06-02"), CountryCode: "FR"},
	}
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country:        "DE",
		Range:          mustRange(t, "2026-06-01", "2026-06-03"),
		RadarCountries: []string{"FR"},
	})
	require.NoError(t, err)

	risks := riskByDate(res)
	assert.Equal(t, domain.RiskCaution, risks["2026-06-02"])
	for _, d := range res.Days {
		for _, ev := range d.IndustryEvents {
			assert.True(t, ev.IsRadar)
		}
	}
}

func TestRun_WeatherResolvedPerMonthWithYearlyKeys(t *testing.T) {
	f := newFixture()
	f.weather.summary = &domain.MonthlyWeatherSummary{City: "Berlin", AvgHigh: 24}
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-28", "2026-07-03"),
		City:    "Berlin",
		Lat:     52.52,
		Lon:     13.405,
	})
	require.NoError(t, err)

	require.Len(t, f.weather.calls, 2, "one resolve per distinct month")
	assert.Equal(t, domain.ForYear(2026), f.weather.calls[0].Key)
	assert.Equal(t, time.June, f.weather.calls[0].Month)
	assert.Equal(t, time.July, f.weather.calls[1].Month)
	require.NotNil(t, f.weather.calls[0].TargetDate)
	assert.Equal(t, day("2026-06-28"), *f.weather.calls[0].TargetDate)

	assert.True(t, res.Metadata.WeatherAvailable)
	for _, d := range res.Days {
		assert.Same(t, f.weather.summary, d.Weather)
	}
}

func TestRun_UnlocatableCityMeansNoWeather(t *testing.T) {
	f := newFixture()
	f.locator.found = false
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
		City:    "Atlantis",
	})
	require.NoError(t, err)
	assert.False(t, res.Metadata.WeatherAvailable)
	assert.Empty(t, f.weather.calls)
	assert.NotContains(t, res.Metadata.DegradedSources, "weather",
		"an unknown city is absence of data, not a degraded source")
}

func TestRun_WeatherErrorDegrades(t *testing.T) {
	f := newFixture()
	f.weather.err = errors.New("cache write failed")
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
		City:    "Berlin",
		Lat:     52.52,
		Lon:     13.405,
	})
	require.NoError(t, err, "weather trouble must not fail the run")
	assert.False(t, res.Metadata.WeatherAvailable)
	assert.Contains(t, res.Metadata.DegradedSources, "weather")
}

func TestRun_WatchlistConflicts(t *testing.T) {
	f := newFixture()
	f.holidays.byKey["FR/2026"] = []domain.HolidayEntry{
		{Date: day("2026-06-02"), Name: "Fête nationale locale", CountryCode: "FR"},
	}
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
		Watchlist: []domain.WatchlistLocation{
			{ID: "w1", Country: "FR", Label: "Paris office"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Conflicts.Count)
	assert.Equal(t, []string{"Paris office"}, res.Conflicts.ImpactedLocations)

	risks := riskByDate(res)
	assert.Equal(t, domain.RiskCaution, risks["2026-06-02"], "watchlist conflict marks the day")
	assert.Equal(t, domain.RiskSafe, risks["2026-06-01"])

	// Watchlist holidays never leak into the primary timeline.
	for _, d := range res.Days {
		assert.Empty(t, d.Holidays)
	}
}

func TestRun_ConfidenceFromDateUnfilteredTotal(t *testing.T) {
	f := newFixture()
	f.events.total = 12
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
	})
	require.NoError(t, err)

	assert.Equal(t, 12, res.Metadata.TotalTracked)
	assert.Equal(t, domain.ConfidenceMedium, res.Metadata.Confidence)
}

func TestRun_RegionVerificationPassthrough(t *testing.T) {
	f := newFixture()
	f.school.res = domain.SchoolHolidayResult{
		Verified:  true,
		SourceURL: "https://km.bayern.de/ferien",
	}
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country: "DE",
		Region:  "BY",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
	})
	require.NoError(t, err)

	assert.True(t, res.Metadata.RegionVerified)
	assert.Equal(t, "https://km.bayern.de/ferien", res.Metadata.RegionSourceURL)
}

func TestRun_PublishesSummary(t *testing.T) {
	f := newFixture()
	f.holidays.byKey["DE/2026"] = []domain.HolidayEntry{
		{Date: day("2026-06-02"), Name: "Local Day", CountryCode: "DE"},
	}
	a := f.analyzer()

	res, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
	})
	require.NoError(t, err)

	require.Len(t, f.sink.summaries, 1)
	s := f.sink.summaries[0]
	assert.Equal(t, res.RunID, s.RunID)
	assert.Equal(t, "DE", s.Country)
	assert.Equal(t, "2026-06-01", s.RangeStart)
	assert.Equal(t, "2026-06-03", s.RangeEnd)
	assert.Equal(t, 1, s.RiskCounts[domain.RiskHigh])
	assert.Equal(t, 2, s.RiskCounts[domain.RiskSafe])
}

func TestRun_SinkFailureDoesNotFailRun(t *testing.T) {
	f := newFixture()
	f.sink.err = errors.New("broker unreachable")
	a := f.analyzer()

	_, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
	})
	require.NoError(t, err)
}

func TestCheckReadiness(t *testing.T) {
	f := newFixture()
	a := f.analyzer()

	require.Error(t, a.CheckReadiness(context.Background()))

	_, err := a.Run(context.Background(), Request{
		Country: "DE",
		Range:   mustRange(t, "2026-06-01", "2026-06-03"),
	})
	require.NoError(t, err)
	assert.NoError(t, a.CheckReadiness(context.Background()))
}

func TestResolveWatchlist(t *testing.T) {
	f := newFixture()
	f.holidays.byKey["FR/2026"] = []domain.HolidayEntry{
		{Date: day("2026-06-02"), Name: "Jour férié", CountryCode: "FR"},
	}
	f.school.res = domain.SchoolHolidayResult{Intervals: []domain.SchoolHolidayInterval{
		{Name: "Vacances", Start: day("2026-05-20"), End: day("2026-06-01"), CountryCode: "FR"},
	}}
	a := f.analyzer()

	got, err := a.ResolveWatchlist(context.Background(),
		mustRange(t, "2026-06-01", "2026-06-03"),
		[]domain.WatchlistLocation{{ID: "w1", Country: "FR", Label: "Paris office"}})
	require.NoError(t, err)

	assert.Equal(t, 2, got.Count, "one holiday plus one overlapping school interval")
	assert.Equal(t, []string{"Paris office"}, got.ImpactedLocations)
}

func TestResolveWatchlist_FetchFailurePropagates(t *testing.T) {
	f := newFixture()
	f.holidays.err = errors.New("holiday API down")
	a := f.analyzer()

	_, err := a.ResolveWatchlist(context.Background(),
		mustRange(t, "2026-06-01", "2026-06-03"),
		[]domain.WatchlistLocation{{ID: "w1", Country: "FR", Label: "Paris office"}})
	require.Error(t, err)
}

func TestRun_DistinctRunIDs(t *testing.T) {
	f := newFixture()
	a := f.analyzer()
	req := Request{Country: "DE", Range: mustRange(t, "2026-06-01", "2026-06-03")}

	first, err := a.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := a.Run(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
}
