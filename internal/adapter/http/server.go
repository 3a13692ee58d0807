// Package http exposes the analysis service over HTTP: health, readiness,
// and metrics endpoints plus the analyze and watchlist-conflict operations.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plannerhq/datecompass/internal/analysis"
	"github.com/plannerhq/datecompass/internal/domain"
)

// AnalysisRunner executes analysis runs and watchlist evaluations.
type AnalysisRunner interface {
	Run(ctx context.Context, req analysis.Request) (*analysis.Result, error)
	ResolveWatchlist(ctx context.Context, rng domain.DateRange, locations []domain.WatchlistLocation) (domain.ConflictSummary, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the service HTTP surface.
type Server struct {
	httpServer *http.Server
	runner     AnalysisRunner
	logger     *slog.Logger
}

// NewServer creates an HTTP server with health, metrics, and analysis routes.
func NewServer(addr string, runner AnalysisRunner, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runner: runner,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /v1/watchlist/conflicts", s.handleWatchlistConflicts)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// analyzeRequest is the JSON shape of POST /v1/analyze.
type analyzeRequest struct {
	Country        string                     `json:"country"`
	Region         string                     `json:"region,omitempty"`
	Start          string                     `json:"start"`
	End            string                     `json:"end"`
	City           string                     `json:"city,omitempty"`
	Lat            float64                    `json:"lat,omitempty"`
	Lon            float64                    `json:"lon,omitempty"`
	Filters        domain.EventFilters        `json:"filters,omitempty"`
	RadarCountries []string                   `json:"radar_countries,omitempty"`
	Watchlist      []domain.WatchlistLocation `json:"watchlist,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	rng, err := domain.ParseDateRange(body.Start, body.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.runner.Run(r.Context(), analysis.Request{
		Country:        body.Country,
		Region:         body.Region,
		Range:          rng,
		City:           body.City,
		Lat:            body.Lat,
		Lon:            body.Lon,
		Filters:        body.Filters,
		RadarCountries: body.RadarCountries,
		Watchlist:      body.Watchlist,
	})
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("analysis request failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// conflictsRequest is the JSON shape of POST /v1/watchlist/conflicts.
type conflictsRequest struct {
	Start     string                     `json:"start"`
	End       string                     `json:"end"`
	Locations []domain.WatchlistLocation `json:"locations"`
}

func (s *Server) handleWatchlistConflicts(w http.ResponseWriter, r *http.Request) {
	var body conflictsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	rng, err := domain.ParseDateRange(body.Start, body.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.runner.ResolveWatchlist(r.Context(), rng, body.Locations)
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("watchlist conflict request failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
