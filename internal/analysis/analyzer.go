// Package analysis orchestrates one date-risk analysis run: it fans out to
// every data source, merges the results into a day-indexed timeline, and
// annotates each day with a risk level and run-wide metadata.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/plannerhq/datecompass/internal/domain"
	"github.com/plannerhq/datecompass/internal/observability"
	"github.com/plannerhq/datecompass/internal/store"
	"github.com/plannerhq/datecompass/internal/weather"
)

// ErrInvalidRequest marks validation failures rejected before any fetch.
var ErrInvalidRequest = errors.New("invalid analysis request")

// maxRangeDays caps one analysis run at a little over a year.
const maxRangeDays = 400

// HolidaySource returns the public holidays of one country and year.
type HolidaySource interface {
	GetHolidays(ctx context.Context, countryCode string, year int) ([]domain.HolidayEntry, error)
}

// SchoolHolidaySource resolves school-holiday intervals for a region.
type SchoolHolidaySource interface {
	GetSchoolHolidays(ctx context.Context, countryCode, regionCode string, from, to time.Time) (domain.SchoolHolidayResult, error)
}

// EventSource queries tracked industry events.
type EventSource interface {
	QueryEvents(ctx context.Context, q store.EventQuery) ([]domain.IndustryEvent, error)
	CountTracked(ctx context.Context, country string, filters domain.EventFilters) (int, error)
}

// WeatherSource resolves one monthly weather summary.
type WeatherSource interface {
	ResolveMonthly(ctx context.Context, req weather.Request) (*domain.MonthlyWeatherSummary, error)
}

// CityLocator turns a venue city into coordinates. found is false when the
// city is unknown or resolves outside the requested country.
type CityLocator interface {
	LocateCity(ctx context.Context, city, countryCode string) (lat, lon float64, found bool, err error)
}

// SummarySink receives a compact record of each successful run.
type SummarySink interface {
	PublishSummary(ctx context.Context, summary domain.RunSummary) error
}

// Request describes one analysis run.
type Request struct {
	Country string
	// Region narrows the school-holiday lookup, e.g. "BY" for Bavaria.
	Region string
	Range  domain.DateRange
	// City is the venue city; with coordinates or a locator available it
	// drives the weather lookup.
	City string
	// Lat and Lon override geocoding when the caller already knows the venue
	// coordinates.
	Lat, Lon float64
	Filters  domain.EventFilters
	// RadarCountries are extra regions whose events are injected as radar
	// occurrences. Their fetch failures degrade, never fail the run.
	RadarCountries []string
	Watchlist      []domain.WatchlistLocation
}

// DayAssessment is one classified day of the result timeline.
type DayAssessment struct {
	*domain.DayRecord
	Risk domain.RiskLevel `json:"risk"`
}

// Result is the outcome of one successful analysis run.
type Result struct {
	RunID     string                  `json:"run_id"`
	Country   string                  `json:"country"`
	Days      []DayAssessment         `json:"days"`
	Conflicts domain.ConflictSummary  `json:"watchlist_conflicts"`
	Metadata  domain.AnalysisMetadata `json:"metadata"`
}

// Analyzer coordinates the sources for analysis runs. Safe for concurrent use.
type Analyzer struct {
	holidays HolidaySource
	school   SchoolHolidaySource
	events   EventSource
	weather  WeatherSource
	locator  CityLocator
	sink     SummarySink
	hubs     domain.HubSet
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates an Analyzer. locator and sink are optional; pass nil to run
// without geocoding or summary publishing.
func New(
	holidays HolidaySource,
	school SchoolHolidaySource,
	events EventSource,
	weatherSrc WeatherSource,
	locator CityLocator,
	sink SummarySink,
	hubs domain.HubSet,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Analyzer {
	return &Analyzer{
		holidays: holidays,
		school:   school,
		events:   events,
		weather:  weatherSrc,
		locator:  locator,
		sink:     sink,
		hubs:     hubs,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once at least one analysis has completed.
func (a *Analyzer) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("no analysis completed yet")
	}
	return nil
}

// sourceResults collects the per-source fetch outputs. Each goroutine of a
// run writes only its own slot; the struct is read after the WaitGroup is
// done, so no lock is needed.
type sourceResults struct {
	holidays     []domain.HolidayEntry
	holidayErr   error
	events       []domain.IndustryEvent
	totalTracked int
	eventsErr    error
	school       domain.SchoolHolidayResult
	schoolErr    error

	// Degradable sources: failures leave the zero value and set the flag.
	radar             []domain.IndustryEvent
	radarDegraded     bool
	weatherByMonth    map[string]*domain.MonthlyWeatherSummary
	weatherDegraded   bool
	watchlist         []domain.WatchlistData
	watchlistDegraded bool
}

// Run executes one analysis. Validation failures return ErrInvalidRequest
// wrapped with a human-readable reason; primary source failures fail the
// whole run; radar, weather, and watchlist failures degrade the result and
// are reported through the metadata instead.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	req.Country = strings.ToUpper(strings.TrimSpace(req.Country))
	for i := range req.RadarCountries {
		req.RadarCountries[i] = strings.ToUpper(strings.TrimSpace(req.RadarCountries[i]))
	}

	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID, "country", req.Country)
	logger.Info("analysis started",
		"from", domain.DayKey(req.Range.Start), "to", domain.DayKey(req.Range.End))

	a.metrics.AnalysesStarted.Inc()
	start := time.Now()

	res := a.fetchAll(ctx, req, logger)
	if err := firstError(res.holidayErr, res.eventsErr, res.schoolErr); err != nil {
		a.metrics.AnalysesFailed.Inc()
		logger.Error("analysis failed", "error", err)
		return nil, err
	}

	result := a.assemble(runID, req, res)
	a.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	a.ready.Store(true)
	logger.Info("analysis completed",
		"days", len(result.Days),
		"conflicts", result.Conflicts.Count,
		"confidence", string(result.Metadata.Confidence))

	a.publish(ctx, req, result, logger)
	return result, nil
}

// ResolveWatchlist evaluates a watchlist against a range outside any full
// analysis run, for per-date-click queries. Unlike the in-run watchlist
// branch this is the caller's primary concern, so fetch failures propagate.
func (a *Analyzer) ResolveWatchlist(ctx context.Context, rng domain.DateRange, locations []domain.WatchlistLocation) (domain.ConflictSummary, error) {
	req := Request{Range: rng, Watchlist: locations}
	if req.Range.Start.IsZero() || req.Range.End.IsZero() {
		return domain.ConflictSummary{}, fmt.Errorf("%w: date range is required", ErrInvalidRequest)
	}
	if req.Range.Days() > maxRangeDays {
		return domain.ConflictSummary{}, fmt.Errorf("%w: range exceeds %d days", ErrInvalidRequest, maxRangeDays)
	}
	for _, loc := range locations {
		if loc.Country == "" {
			return domain.ConflictSummary{}, fmt.Errorf("%w: watchlist location %q has no country", ErrInvalidRequest, loc.Label)
		}
	}

	data, err := a.fetchWatchlist(ctx, req)
	if err != nil {
		return domain.ConflictSummary{}, err
	}
	return domain.ResolveConflicts(rng, data), nil
}

// fetchAll fans out one goroutine per source group and waits for all of them.
func (a *Analyzer) fetchAll(ctx context.Context, req Request, logger *slog.Logger) *sourceResults {
	res := &sourceResults{}
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.holidays, res.holidayErr = a.fetchHolidays(ctx, req)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.events, res.totalTracked, res.eventsErr = a.fetchEvents(ctx, req)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.school, res.schoolErr = a.school.GetSchoolHolidays(ctx, req.Country, req.Region, req.Range.Start, req.Range.End)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		radar, err := a.fetchRadar(ctx, req)
		if err != nil {
			a.metrics.SourceDegraded.WithLabelValues("radar").Inc()
			logger.Warn("radar events degraded to empty", "error", err)
			res.radarDegraded = true
			return
		}
		res.radar = radar
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		byMonth, err := a.fetchWeather(ctx, req)
		if err != nil {
			a.metrics.SourceDegraded.WithLabelValues("weather").Inc()
			logger.Warn("weather degraded to unavailable", "error", err)
			res.weatherDegraded = true
			return
		}
		res.weatherByMonth = byMonth
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		data, err := a.fetchWatchlist(ctx, req)
		if err != nil {
			a.metrics.SourceDegraded.WithLabelValues("watchlist").Inc()
			logger.Warn("watchlist degraded to empty", "error", err)
			res.watchlistDegraded = true
			return
		}
		res.watchlist = data
	}()

	wg.Wait()
	return res
}

// fetchHolidays collects holidays for the target country and every proxy hub
// country, one fetch per (country, year) in the range. Part of the primary
// path: any failure here fails the run. Hub countries are visited in sorted
// order so the merged holiday lists come out identical across runs.
func (a *Analyzer) fetchHolidays(ctx context.Context, req Request) ([]domain.HolidayEntry, error) {
	countries := []string{req.Country}
	var hubs []string
	for hub := range a.hubs {
		if hub != req.Country {
			hubs = append(hubs, hub)
		}
	}
	sort.Strings(hubs)
	countries = append(countries, hubs...)

	var all []domain.HolidayEntry
	for _, cc := range countries {
		for _, year := range req.Range.Years() {
			entries, err := a.holidays.GetHolidays(ctx, cc, year)
			if err != nil {
				return nil, fmt.Errorf("holidays for %s/%d: %w", cc, year, err)
			}
			all = append(all, entries...)
		}
	}
	return all, nil
}

// fetchEvents queries the target country's events plus the date-unfiltered
// tracked total used for confidence scoring. Primary path.
func (a *Analyzer) fetchEvents(ctx context.Context, req Request) ([]domain.IndustryEvent, int, error) {
	events, err := a.events.QueryEvents(ctx, store.EventQuery{
		Range:   req.Range,
		Country: req.Country,
		Filters: req.Filters,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("industry events for %s: %w", req.Country, err)
	}
	total, err := a.events.CountTracked(ctx, req.Country, req.Filters)
	if err != nil {
		return nil, 0, fmt.Errorf("tracked event count for %s: %w", req.Country, err)
	}
	return events, total, nil
}

// fetchRadar queries each monitored cross-border country and tags its events
// as radar occurrences.
func (a *Analyzer) fetchRadar(ctx context.Context, req Request) ([]domain.IndustryEvent, error) {
	var radar []domain.IndustryEvent
	for _, cc := range req.RadarCountries {
		if cc == req.Country {
			continue
		}
		events, err := a.events.QueryEvents(ctx, store.EventQuery{
			Range:   req.Range,
			Country: cc,
			Filters: req.Filters,
		})
		if err != nil {
			return nil, fmt.Errorf("radar events for %s: %w", cc, err)
		}
		for i := range events {
			events[i].IsRadar = true
		}
		radar = append(radar, events...)
	}
	return radar, nil
}

// fetchWeather resolves one summary per distinct calendar month of the
// range, keyed by that month's year. Missing coordinates or an unlocatable
// city simply mean no weather, not an error.
func (a *Analyzer) fetchWeather(ctx context.Context, req Request) (map[string]*domain.MonthlyWeatherSummary, error) {
	// The city names the cache row, so coordinates alone are not enough.
	if req.City == "" {
		return nil, nil
	}
	lat, lon := req.Lat, req.Lon
	if lat == 0 && lon == 0 {
		if a.locator == nil {
			return nil, nil
		}
		var found bool
		var err error
		lat, lon, found, err = a.locator.LocateCity(ctx, req.City, req.Country)
		if err != nil {
			return nil, err
		}
		if !found {
			a.logger.Info("venue city not located, weather unavailable",
				"city", req.City, "country", req.Country)
			return nil, nil
		}
	}

	byMonth := make(map[string]*domain.MonthlyWeatherSummary)
	for _, month := range req.Range.Months() {
		target := targetDateIn(req.Range, month)
		summary, err := a.weather.ResolveMonthly(ctx, weather.Request{
			City:       req.City,
			Month:      month.Month(),
			Lat:        lat,
			Lon:        lon,
			Key:        domain.ForYear(month.Year()),
			TargetDate: &target,
		})
		if err != nil {
			return nil, err
		}
		if summary != nil {
			byMonth[domain.MonthKey(month)] = summary
		}
	}
	return byMonth, nil
}

// fetchWatchlist resolves holidays and school intervals per watched location.
func (a *Analyzer) fetchWatchlist(ctx context.Context, req Request) ([]domain.WatchlistData, error) {
	var out []domain.WatchlistData
	for _, loc := range req.Watchlist {
		data := domain.WatchlistData{Location: loc}
		for _, year := range req.Range.Years() {
			entries, err := a.holidays.GetHolidays(ctx, loc.Country, year)
			if err != nil {
				return nil, fmt.Errorf("watchlist holidays for %s/%d: %w", loc.Country, year, err)
			}
			data.Holidays = append(data.Holidays, entries...)
		}
		school, err := a.school.GetSchoolHolidays(ctx, loc.Country, loc.Region, req.Range.Start, req.Range.End)
		if err != nil {
			return nil, fmt.Errorf("watchlist school holidays for %s: %w", loc.Country, err)
		}
		data.SchoolIntervals = school.Intervals
		out = append(out, data)
	}
	return out, nil
}

// assemble merges the fetched sources into the classified result.
func (a *Analyzer) assemble(runID string, req Request, res *sourceResults) *Result {
	events := append(append([]domain.IndustryEvent{}, res.events...), res.radar...)
	timeline := domain.BuildTimeline(req.Range, res.holidays, events, res.school.Intervals, res.weatherByMonth)

	conflicts := domain.ResolveConflicts(req.Range, res.watchlist)
	conflictDays := domain.ConflictDays(req.Range, res.watchlist)

	days := make([]DayAssessment, 0, req.Range.Days())
	req.Range.EachDay(func(day time.Time) {
		key := domain.DayKey(day)
		rec := timeline[key]
		days = append(days, DayAssessment{
			DayRecord: rec,
			Risk:      domain.ClassifyDay(rec, a.hubs, conflictDays[key]),
		})
	})

	meta := domain.AnalysisMetadata{
		Confidence:       domain.ClassifyConfidence(res.totalTracked),
		TotalTracked:     res.totalTracked,
		RegionVerified:   res.school.Verified,
		RegionSourceURL:  res.school.SourceURL,
		WeatherAvailable: len(res.weatherByMonth) == len(req.Range.Months()),
	}
	if res.radarDegraded {
		meta.DegradedSources = append(meta.DegradedSources, "radar")
	}
	if res.weatherDegraded {
		meta.DegradedSources = append(meta.DegradedSources, "weather")
	}
	if res.watchlistDegraded {
		meta.DegradedSources = append(meta.DegradedSources, "watchlist")
	}

	return &Result{
		RunID:     runID,
		Country:   req.Country,
		Days:      days,
		Conflicts: conflicts,
		Metadata:  meta,
	}
}

// publish sends the run summary to the optional sink. Failures are logged
// and counted, never surfaced to the caller.
func (a *Analyzer) publish(ctx context.Context, req Request, result *Result, logger *slog.Logger) {
	if a.sink == nil {
		return
	}
	counts := make(map[domain.RiskLevel]int)
	for _, d := range result.Days {
		counts[d.Risk]++
	}
	summary := domain.RunSummary{
		RunID:           result.RunID,
		Country:         req.Country,
		RangeStart:      domain.DayKey(req.Range.Start),
		RangeEnd:        domain.DayKey(req.Range.End),
		RiskCounts:      counts,
		Confidence:      result.Metadata.Confidence,
		ConflictCount:   result.Conflicts.Count,
		DegradedSources: result.Metadata.DegradedSources,
		GeneratedAt:     time.Now().UTC(),
	}
	if err := a.sink.PublishSummary(ctx, summary); err != nil {
		a.metrics.PublishErrors.Inc()
		logger.Warn("summary publish failed", "error", err)
		return
	}
	a.metrics.SummariesPublished.Inc()
}

func validate(req Request) error {
	if req.Country == "" {
		return fmt.Errorf("%w: country is required", ErrInvalidRequest)
	}
	if req.Range.Start.IsZero() || req.Range.End.IsZero() {
		return fmt.Errorf("%w: date range is required", ErrInvalidRequest)
	}
	if req.Range.End.Before(req.Range.Start) {
		return fmt.Errorf("%w: range end precedes start", ErrInvalidRequest)
	}
	if req.Range.Days() > maxRangeDays {
		return fmt.Errorf("%w: range exceeds %d days", ErrInvalidRequest, maxRangeDays)
	}
	for _, loc := range req.Watchlist {
		if loc.Country == "" {
			return fmt.Errorf("%w: watchlist location %q has no country", ErrInvalidRequest, loc.Label)
		}
	}
	return nil
}

// targetDateIn picks the day that centers the weather window for a month:
// the range start when the month begins the range, otherwise the first day
// of that month inside the range.
func targetDateIn(rng domain.DateRange, month time.Time) time.Time {
	if rng.Start.Year() == month.Year() && rng.Start.Month() == month.Month() {
		return rng.Start
	}
	return time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
