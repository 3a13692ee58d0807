package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/plannerhq/datecompass/internal/adapter/geocode"
	httpadapter "github.com/plannerhq/datecompass/internal/adapter/http"
	kafkaadapter "github.com/plannerhq/datecompass/internal/adapter/kafka"
	"github.com/plannerhq/datecompass/internal/adapter/nager"
	"github.com/plannerhq/datecompass/internal/adapter/openholidays"
	"github.com/plannerhq/datecompass/internal/adapter/openmeteo"
	"github.com/plannerhq/datecompass/internal/analysis"
	"github.com/plannerhq/datecompass/internal/config"
	"github.com/plannerhq/datecompass/internal/domain"
	"github.com/plannerhq/datecompass/internal/observability"
	"github.com/plannerhq/datecompass/internal/store"
	"github.com/plannerhq/datecompass/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.DBPath, logger, metrics)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	holidays := nager.NewClient(cfg.HolidayAPIURL, cfg.UpstreamTimeout, db, logger)
	school := openholidays.NewClient(cfg.SchoolHolidayAPIURL, cfg.UpstreamTimeout, db, logger)

	archive := openmeteo.NewClient(cfg.WeatherArchiveURL, cfg.UpstreamTimeout, logger)
	resolver := weather.NewResolver(archive, db, clockwork.NewRealClock(), logger, metrics, weather.Options{
		HistoricalYears: cfg.HistoricalYears,
		RainThresholdMM: cfg.RainThresholdMM,
		FetchDelay:      cfg.ArchiveFetchDelay,
	})

	// Geocoding is feature-flagged via GEOCODER_ENABLED / GEOCODER_TOKEN.
	var locator analysis.CityLocator
	if cfg.GeocoderEnabled {
		client := geocode.NewClient(cfg.GeocoderURL, cfg.GeocoderToken, cfg.GeocoderTimeout, logger, metrics)
		locator = geocode.NewCachedGeocoder(client, cfg.GeocoderCacheSize, metrics)
		logger.Info("geocoding enabled", "cache_size", cfg.GeocoderCacheSize, "timeout", cfg.GeocoderTimeout)
	} else {
		logger.Info("geocoding disabled, weather needs explicit coordinates")
	}

	// Summary publishing is feature-flagged via KAFKA_ENABLED.
	var sink analysis.SummarySink
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		sink = publisher
		logger.Info("summary publishing enabled", "topic", cfg.KafkaSummaryTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("summary publishing disabled")
	}

	analyzer := analysis.New(holidays, school, db, resolver, locator, sink,
		domain.NewHubSet(cfg.HubCountries...), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, analyzer, analyzer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
