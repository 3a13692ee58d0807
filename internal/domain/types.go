package domain

import (
	"strings"
	"time"
)

// HolidayEntry is one public holiday as reported by the holiday provider.
type HolidayEntry struct {
	Date        time.Time `json:"date"`
	Name        string    `json:"name"`
	LocalName   string    `json:"local_name,omitempty"`
	CountryCode string    `json:"country_code"`
}

// HubSet is the injected set of proxy hub country codes used to tag holidays
// as global-impact rather than local.
type HubSet map[string]struct{}

// DefaultHubCountries approximate worldwide cultural reach; see package doc.
var DefaultHubCountries = []string{"IL", "AE", "CN"}

// NewHubSet builds a HubSet from country codes, case-insensitively.
func NewHubSet(codes ...string) HubSet {
	s := make(HubSet, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			s[c] = struct{}{}
		}
	}
	return s
}

// Contains reports whether the country code belongs to the hub set.
func (s HubSet) Contains(countryCode string) bool {
	_, ok := s[strings.ToUpper(countryCode)]
	return ok
}

// GlobalImpact reports whether the holiday is tagged global-impact, i.e. its
// country code belongs to the proxy hub set. The tag is derived, never stored.
func (h HolidayEntry) GlobalImpact(hubs HubSet) bool {
	return hubs.Contains(h.CountryCode)
}

// IndustryEvent is a tracked industry or competitor event. An event spanning
// several days appears once per overlapped DayRecord after clipping.
type IndustryEvent struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	City          string    `json:"city,omitempty"`
	CountryCode   string    `json:"country_code"`
	Industries    []string  `json:"industries,omitempty"`
	AudienceTypes []string  `json:"audience_types,omitempty"`
	Scale         string    `json:"scale,omitempty"`
	RiskLevel     string    `json:"risk_level,omitempty"`

	// IsRadar marks events injected from a monitored cross-border region
	// rather than the primary target country. Carried per occurrence.
	IsRadar bool `json:"is_radar"`
}

// EventFilters narrow industry-event queries. Empty slices match everything.
type EventFilters struct {
	Industries    []string `json:"industries,omitempty"`
	AudienceTypes []string `json:"audience_types,omitempty"`
	Scales        []string `json:"scales,omitempty"`
}

// SchoolHolidayInterval is one school-holiday period for a (country, region).
type SchoolHolidayInterval struct {
	Name        string    `json:"name"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	CountryCode string    `json:"country_code"`
	RegionCode  string    `json:"region_code,omitempty"`
}

// SchoolHolidayResult is a resolved school-holiday set plus provenance
// metadata for the region it was resolved against.
type SchoolHolidayResult struct {
	Intervals []SchoolHolidayInterval
	// Verified is true when the intervals come from curated override rows
	// rather than the public API.
	Verified  bool
	SourceURL string
}

// DailySample is one retained historical weather observation.
type DailySample struct {
	Date          string  `json:"date"`
	Year          int     `json:"year"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Precipitation float64 `json:"precipitation"`
	WindowLabel   string  `json:"window_label"`
}

// MonthlyWeatherSummary aggregates several years of daily archive samples for
// one (city, calendar month). Immutable once resolved; all days of that month
// within one analysis share the summary by reference.
type MonthlyWeatherSummary struct {
	City          string        `json:"city"`
	Month         time.Month    `json:"month"`
	AvgHigh       float64       `json:"avg_high"`
	AvgLow        float64       `json:"avg_low"`
	AvgRainDays   float64       `json:"avg_rain_days"`
	AvgHumidity   float64       `json:"avg_humidity"`
	TypicalSunset string        `json:"typical_sunset,omitempty"`
	HistoryData   []DailySample `json:"history_data,omitempty"`
}

// YearKindGeneric and YearKindYearly are the two weather cache-key variants.
// A generic key requests the year-agnostic row; a yearly key requests the
// row specific to one target year. The two are never coalesced.
const (
	YearKindGeneric = "generic"
	YearKindYearly  = "yearly"
)

// YearKey tags the weather cache key's target-year dimension explicitly
// instead of relying on a nullable field.
type YearKey struct {
	Kind string `json:"kind"`
	Year int    `json:"year,omitempty"`
}

// GenericYear returns the year-agnostic cache-key variant.
func GenericYear() YearKey { return YearKey{Kind: YearKindGeneric} }

// ForYear returns the year-specific cache-key variant.
func ForYear(year int) YearKey { return YearKey{Kind: YearKindYearly, Year: year} }

// DayRecord is one calendar day of the merged timeline.
type DayRecord struct {
	Date           time.Time              `json:"date"`
	Holidays       []HolidayEntry         `json:"holidays,omitempty"`
	IndustryEvents []IndustryEvent        `json:"industry_events,omitempty"`
	Weather        *MonthlyWeatherSummary `json:"weather,omitempty"`
	SchoolHoliday  string                 `json:"school_holiday,omitempty"`
}

// WatchlistLocation is a user-maintained auxiliary location whose holidays are
// checked for conflicts but never merged into the primary timeline.
type WatchlistLocation struct {
	ID      string `json:"id"`
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	Label   string `json:"label"`
}

// ConflictSummary is the watchlist evaluation result for one date range.
// Count sums every conflicting record across all locations; ImpactedLocations
// holds the distinct labels of locations that contributed at least one.
type ConflictSummary struct {
	Count             int      `json:"count"`
	ImpactedLocations []string `json:"impacted_locations,omitempty"`
}

// AnalysisMetadata is derived once per analysis run and discarded with it.
type AnalysisMetadata struct {
	Confidence       Confidence `json:"confidence"`
	TotalTracked     int        `json:"total_tracked"`
	RegionVerified   bool       `json:"region_verified"`
	RegionSourceURL  string     `json:"region_source_url,omitempty"`
	WeatherAvailable bool       `json:"weather_available"`
	DegradedSources  []string   `json:"degraded_sources,omitempty"`
}

// RunSummary is the compact per-run record published to downstream consumers
// after a successful analysis.
type RunSummary struct {
	RunID           string            `json:"run_id"`
	Country         string            `json:"country"`
	RangeStart      string            `json:"range_start"`
	RangeEnd        string            `json:"range_end"`
	RiskCounts      map[RiskLevel]int `json:"risk_counts"`
	Confidence      Confidence        `json:"confidence"`
	ConflictCount   int               `json:"conflict_count"`
	DegradedSources []string          `json:"degraded_sources,omitempty"`
	GeneratedAt     time.Time         `json:"generated_at"`
}
