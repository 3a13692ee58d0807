package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// analysis engine.
type Metrics struct {
	AnalysesStarted  prometheus.Counter
	AnalysesFailed   prometheus.Counter
	AnalysisDuration prometheus.Histogram

	// Per-source degradation (radar countries, weather months, watchlist
	// locations) where the run continues with reduced data.
	SourceDegraded *prometheus.CounterVec // labels: source={radar,weather,watchlist}

	// Persistent cache metrics.
	CacheLookups *prometheus.CounterVec // labels: store={holiday,weather}, result={hit,miss}

	// Weather archive fetches.
	ArchiveFetches       *prometheus.CounterVec // labels: outcome={success,error}
	ArchiveFetchDuration prometheus.Histogram
	WeatherResolves      *prometheus.CounterVec // labels: outcome={cached,computed,unavailable}

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={hit,miss,country_mismatch,error}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Summary publishing.
	SummariesPublished prometheus.Counter
	PublishErrors      prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.AnalysesStarted,
		m.AnalysesFailed,
		m.AnalysisDuration,
		m.SourceDegraded,
		m.CacheLookups,
		m.ArchiveFetches,
		m.ArchiveFetchDuration,
		m.WeatherResolves,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.SummariesPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering collectors, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		AnalysesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datecompass",
			Name:      "analyses_started_total",
			Help:      "Total analysis runs started.",
		}),
		AnalysesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datecompass",
			Name:      "analyses_failed_total",
			Help:      "Total analysis runs that failed on a primary source.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "datecompass",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete analysis run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SourceDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datecompass",
			Name:      "source_degraded_total",
			Help:      "Secondary-source failures degraded to empty results.",
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datecompass",
			Name:      "cache_lookups_total",
			Help:      "Persistent cache lookups by store and result.",
		}, []string{"store", "result"}),
		ArchiveFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datecompass",
			Name:      "archive_fetches_total",
			Help:      "Weather archive window fetches by outcome.",
		}, []string{"outcome"}),
		ArchiveFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "datecompass",
			Name:      "archive_fetch_duration_seconds",
			Help:      "Weather archive request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		WeatherResolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datecompass",
			Name:      "weather_resolves_total",
			Help:      "Monthly weather resolutions by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datecompass",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datecompass",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		SummariesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datecompass",
			Name:      "summaries_published_total",
			Help:      "Analysis summaries published to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datecompass",
			Name:      "publish_errors_total",
			Help:      "Failed summary publishes (non-fatal).",
		}),
	}
}
