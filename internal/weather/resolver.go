// Package weather normalizes multi-year daily archive samples into one
// immutable summary per (city, calendar month), persisted in the permanent
// weather cache.
package weather

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/plannerhq/datecompass/internal/domain"
	"github.com/plannerhq/datecompass/internal/observability"
)

// ArchiveDay is one daily observation from the weather archive provider.
// Fields may be missing upstream; the Has flags mark which ones are usable.
type ArchiveDay struct {
	Date          time.Time
	High          float64
	Low           float64
	HasTemps      bool
	Precipitation float64
	Humidity      float64
	HasHumidity   bool
	Sunset        string // clock time "15:04", empty when unreported
}

// ArchiveProvider fetches a daily archive window for a coordinate pair.
type ArchiveProvider interface {
	FetchDailyWindow(ctx context.Context, lat, lon float64, start, end time.Time) ([]ArchiveDay, error)
}

// SummaryCache is the persistent weather cache contract (implemented by store.Store).
type SummaryCache interface {
	GetWeatherSummary(ctx context.Context, city string, month time.Month, key domain.YearKey) (*domain.MonthlyWeatherSummary, bool, error)
	PutWeatherSummary(ctx context.Context, city string, month time.Month, key domain.YearKey, summary *domain.MonthlyWeatherSummary) error
}

// Options tune the normalization; zero values fall back to the defaults.
type Options struct {
	// HistoricalYears is how many years strictly before the current year are
	// sampled. Default 4.
	HistoricalYears int
	// RainThresholdMM is the daily precipitation above which a day counts as
	// a rain day. Default 1.0.
	RainThresholdMM float64
	// FetchDelay is the pause between per-year archive requests. The archive
	// enforces a per-IP rate limit, so the per-year fetches of one location
	// are serialized with this delay rather than parallelized.
	FetchDelay time.Duration
}

const (
	defaultHistoricalYears = 4
	defaultRainThresholdMM = 1.0

	// Half-width of the sampling window around the target day-of-month.
	windowHalfDays = 7

	// Day-of-month used when no target date pins the window.
	defaultTargetDay = 15
)

// Request identifies one monthly summary to resolve.
type Request struct {
	City  string
	Month time.Month
	Lat   float64
	Lon   float64
	// Key selects the generic or the year-specific cache row.
	Key domain.YearKey
	// TargetDate, when set and inside the requested month, pins the sampling
	// window to its day-of-month.
	TargetDate *time.Time
}

// Resolver computes and caches monthly weather summaries.
type Resolver struct {
	provider ArchiveProvider
	cache    SummaryCache
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options
}

// NewResolver creates a Resolver. Pass a real clock in production; tests
// inject a fake to pin the current year and skip fetch delays.
func NewResolver(provider ArchiveProvider, cache SummaryCache, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Resolver {
	if opts.HistoricalYears <= 0 {
		opts.HistoricalYears = defaultHistoricalYears
	}
	if opts.RainThresholdMM <= 0 {
		opts.RainThresholdMM = defaultRainThresholdMM
	}
	return &Resolver{
		provider: provider,
		cache:    cache,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// ResolveMonthly returns the summary for the request's cache-key variant,
// computing and persisting it on a cache miss.
//
// A nil, nil return means "weather unavailable": archive fetch or parse
// failures are caught here and degrade the result rather than failing the
// caller. Only cache persistence failures surface as errors.
func (r *Resolver) ResolveMonthly(ctx context.Context, req Request) (*domain.MonthlyWeatherSummary, error) {
	if cached, found, err := r.cache.GetWeatherSummary(ctx, req.City, req.Month, req.Key); err != nil {
		return nil, err
	} else if found {
		r.metrics.WeatherResolves.WithLabelValues("cached").Inc()
		return cached, nil
	}

	samples, ok := r.fetchHistory(ctx, req)
	if !ok {
		r.metrics.WeatherResolves.WithLabelValues("unavailable").Inc()
		return nil, nil
	}

	summary := r.aggregate(req, samples)

	if err := r.cache.PutWeatherSummary(ctx, req.City, req.Month, req.Key, summary); err != nil {
		return nil, fmt.Errorf("persist weather summary for %s/%s: %w", req.City, req.Month, err)
	}
	r.metrics.WeatherResolves.WithLabelValues("computed").Inc()
	return summary, nil
}

// yearSamples holds one historical year's fetched window.
type yearSamples struct {
	year        int
	windowLabel string
	days        []ArchiveDay
}

// fetchHistory fetches one window per historical year, strictly sequentially
// with the configured delay between requests. ok is false when any fetch
// fails; partial histories are not aggregated.
func (r *Resolver) fetchHistory(ctx context.Context, req Request) ([]yearSamples, bool) {
	targetDay := defaultTargetDay
	if req.TargetDate != nil && req.TargetDate.Month() == req.Month {
		targetDay = req.TargetDate.Day()
	}

	// The most recent N years strictly before the current year, so no
	// archive request is ever future-dated regardless of the analysis year.
	currentYear := r.clock.Now().UTC().Year()
	firstYear := currentYear - r.opts.HistoricalYears

	var history []yearSamples
	for year := firstYear; year < currentYear; year++ {
		if len(history) > 0 && r.opts.FetchDelay > 0 {
			if !r.sleep(ctx, r.opts.FetchDelay) {
				return nil, false
			}
		}

		target := time.Date(year, req.Month, targetDay, 0, 0, 0, 0, time.UTC)
		windowStart := target.AddDate(0, 0, -windowHalfDays)
		windowEnd := target.AddDate(0, 0, windowHalfDays)

		start := r.clock.Now()
		days, err := r.provider.FetchDailyWindow(ctx, req.Lat, req.Lon, windowStart, windowEnd)
		r.metrics.ArchiveFetchDuration.Observe(r.clock.Since(start).Seconds())
		if err != nil {
			r.metrics.ArchiveFetches.WithLabelValues("error").Inc()
			r.logger.Warn("weather archive fetch failed, weather unavailable",
				"city", req.City, "year", year, "month", int(req.Month), "error", err)
			return nil, false
		}
		r.metrics.ArchiveFetches.WithLabelValues("success").Inc()

		history = append(history, yearSamples{
			year: year,
			windowLabel: fmt.Sprintf("%s - %s, %d",
				windowStart.Format("Jan 2"), windowEnd.Format("Jan 2"), year),
			days: days,
		})
	}
	return history, true
}

// aggregate reduces the fetched windows into one summary. Every division is
// guarded against an empty denominator and every scalar is forced finite
// before it can be persisted.
func (r *Resolver) aggregate(req Request, history []yearSamples) *domain.MonthlyWeatherSummary {
	var (
		highSum, lowSum float64
		tempSamples     int
		humiditySum     float64
		humiditySamples int
		rainDayCountSum int
		sunsetCounts    = make(map[string]int)
		sunsetOrder     []string
		retained        []domain.DailySample
	)

	for _, ys := range history {
		for _, d := range ys.days {
			if d.Precipitation > r.opts.RainThresholdMM {
				rainDayCountSum++
			}
			if d.HasHumidity {
				humiditySum += d.Humidity
				humiditySamples++
			}
			if d.Sunset != "" {
				if _, seen := sunsetCounts[d.Sunset]; !seen {
					sunsetOrder = append(sunsetOrder, d.Sunset)
				}
				sunsetCounts[d.Sunset]++
			}
			if !d.HasTemps {
				continue
			}
			highSum += d.High
			lowSum += d.Low
			tempSamples++
			retained = append(retained, domain.DailySample{
				Date:          d.Date.Format(domain.DayFormat),
				Year:          ys.year,
				High:          d.High,
				Low:           d.Low,
				Precipitation: d.Precipitation,
				WindowLabel:   ys.windowLabel,
			})
		}
	}

	summary := &domain.MonthlyWeatherSummary{
		City:          req.City,
		Month:         req.Month,
		AvgHigh:       r.finite("avg_high", req, safeDivide(highSum, tempSamples)),
		AvgLow:        r.finite("avg_low", req, safeDivide(lowSum, tempSamples)),
		AvgRainDays:   r.finite("avg_rain_days", req, safeDivide(float64(rainDayCountSum), len(history))),
		AvgHumidity:   r.finite("avg_humidity", req, safeDivide(humiditySum, humiditySamples)),
		TypicalSunset: modalValue(sunsetOrder, sunsetCounts),
		HistoryData:   retained,
	}
	return summary
}

// finite replaces NaN/Inf with 0 and logs the anomaly for diagnosis. A bad
// intermediate value must never reach the permanent cache.
func (r *Resolver) finite(field string, req Request, v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r.logger.Warn("non-finite weather aggregate replaced with 0",
			"field", field, "city", req.City, "month", int(req.Month))
		return 0
	}
	return v
}

func safeDivide(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// modalValue picks the most frequent value, breaking ties by first-seen order.
func modalValue(order []string, counts map[string]int) string {
	best := ""
	bestCount := 0
	for _, v := range order {
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best
}

func (r *Resolver) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-r.clock.After(d):
		return true
	}
}
