package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Persistent cache database (holiday + weather caches, industry events,
	// school-holiday overrides).
	DBPath string

	// Upstream providers.
	HolidayAPIURL       string
	SchoolHolidayAPIURL string
	WeatherArchiveURL   string
	UpstreamTimeout     time.Duration

	// Geocoder configuration. The geocoder requires a token; without one the
	// service refuses to start unless geocoding is explicitly disabled, in
	// which case weather resolution degrades to unavailable.
	GeocoderURL       string
	GeocoderToken     string
	GeocoderEnabled   bool
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int

	// Weather normalization.
	HistoricalYears   int
	RainThresholdMM   float64
	ArchiveFetchDelay time.Duration

	// Proxy hub country codes for global-impact holiday tagging.
	HubCountries []string

	// Optional analysis-summary publishing.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaSummaryTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	upstreamTimeout, err := parseDuration("UPSTREAM_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	archiveDelay, err := parseDuration("ARCHIVE_FETCH_DELAY", "300ms")
	if err != nil {
		return nil, err
	}
	historicalYears, err := parsePositiveInt("HISTORICAL_YEARS", 4)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("GEOCODER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	rainThreshold, err := parseFloat("RAIN_THRESHOLD_MM", 1.0)
	if err != nil {
		return nil, err
	}

	geocoderToken := os.Getenv("GEOCODER_TOKEN")
	geocoderEnabled := geocoderToken != ""
	if v := os.Getenv("GEOCODER_ENABLED"); v != "" {
		geocoderEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBPath: envOrDefault("DB_PATH", "datecompass.db"),

		HolidayAPIURL:       envOrDefault("HOLIDAY_API_URL", "https://date.nager.at/api/v3"),
		SchoolHolidayAPIURL: envOrDefault("SCHOOL_HOLIDAY_API_URL", "https://openholidaysapi.org"),
		WeatherArchiveURL:   envOrDefault("WEATHER_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1/archive"),
		UpstreamTimeout:     upstreamTimeout,

		GeocoderURL:       envOrDefault("GEOCODER_URL", "https://api.mapbox.com/geocoding/v5/mapbox.places"),
		GeocoderToken:     geocoderToken,
		GeocoderEnabled:   geocoderEnabled,
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: cacheSize,

		HistoricalYears:   historicalYears,
		RainThresholdMM:   rainThreshold,
		ArchiveFetchDelay: archiveDelay,

		HubCountries: parseList(envOrDefault("PROXY_HUB_COUNTRIES", "IL,AE,CN")),

		KafkaEnabled:      os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:      parseList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSummaryTopic: envOrDefault("KAFKA_SUMMARY_TOPIC", "analysis-summaries"),
	}

	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if cfg.GeocoderEnabled && cfg.GeocoderToken == "" {
		return nil, errors.New("GEOCODER_ENABLED is true but GEOCODER_TOKEN is not set")
	}
	if len(cfg.HubCountries) == 0 {
		return nil, errors.New("PROXY_HUB_COUNTRIES must name at least one country code")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return f, nil
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
