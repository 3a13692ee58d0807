// Package geocode resolves venue cities to coordinates using the Mapbox
// Geocoding API. It is optional wiring: when no access token is configured
// the analyzer runs without it and callers must supply coordinates
// themselves.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/plannerhq/datecompass/internal/observability"
)

// Result is one resolved city location. Found is false when the API had no
// match or the best match sits in a different country than requested.
type Result struct {
	Lat   float64
	Lon   float64
	Label string
	Found bool
}

// Geocoder resolves a city within a country to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, city, countryCode string) (Result, error)
}

// Client implements Geocoder against Mapbox.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Mapbox geocoding client.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve forward-geocodes a city and validates the hit against the
// requested country. A wrong-country hit means the city name was ambiguous;
// that reads as not found rather than as an error so the analysis can
// proceed without weather instead of failing.
func (c *Client) Resolve(ctx context.Context, city, countryCode string) (Result, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(city))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality"},
		"country":      {strings.ToLower(countryCode)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("miss").Inc()
		return Result{}, nil
	}

	f := mapboxResp.Features[0]
	if !f.inCountry(countryCode) {
		c.metrics.GeocodeRequests.WithLabelValues("country_mismatch").Inc()
		c.logger.Warn("geocode hit in wrong country, treating as not found",
			"city", city, "country", countryCode, "place", f.PlaceName)
		return Result{}, nil
	}

	c.metrics.GeocodeRequests.WithLabelValues("hit").Inc()
	result := Result{Label: f.PlaceName, Found: true}
	if len(f.Center) == 2 {
		result.Lon = f.Center[0]
		result.Lat = f.Center[1]
	}
	return result, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64        `json:"center"` // [lon, lat]
	PlaceName string           `json:"place_name"`
	Text      string           `json:"text"`
	Context   []featureContext `json:"context"`
	ShortCode string           `json:"short_code"` // set when the feature itself is a country
}

type featureContext struct {
	ID        string `json:"id"`
	ShortCode string `json:"short_code"`
}

// inCountry reports whether the feature's country context matches the
// requested ISO code. Region-qualified short codes like "US-TX" match on
// their country prefix.
func (f feature) inCountry(countryCode string) bool {
	want := strings.ToLower(countryCode)
	codes := []string{f.ShortCode}
	for _, c := range f.Context {
		if strings.HasPrefix(c.ID, "country") || strings.HasPrefix(c.ID, "region") {
			codes = append(codes, c.ShortCode)
		}
	}
	for _, code := range codes {
		code = strings.ToLower(code)
		if code == want || strings.HasPrefix(code, want+"-") {
			return true
		}
	}
	return false
}
