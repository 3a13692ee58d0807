// Package openmeteo fetches historical daily weather from the Open-Meteo
// archive API.
package openmeteo

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

	"github.com/plannerhq/datecompass/internal/domain"
	"github.com/plannerhq/datecompass/internal/weather"
)

// Client implements weather.ArchiveProvider against the Open-Meteo archive.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an archive client. baseURL points at the archive
// endpoint itself, e.g. https://archive-api.open-meteo.com/v1/archive.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchDailyWindow fetches daily observations for the inclusive date window.
func (c *Client) FetchDailyWindow(ctx context.Context, lat, lon float64, start, end time.Time) ([]weather.ArchiveDay, error) {
	params := url.Values{
		"latitude":   {fmt.Sprintf("%.4f", lat)},
		"longitude":  {fmt.Sprintf("%.4f", lon)},
		"start_date": {start.Format(domain.DayFormat)},
		"end_date":   {end.Format(domain.DayFormat)},
		"daily":      {"temperature_2m_max,temperature_2m_min,precipitation_sum,relative_humidity_2m_mean,sunset"},
		"timezone":   {"UTC"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("archive API error: status %d: %s", resp.StatusCode, body)
	}

	var archive response
	if err := json.NewDecoder(resp.Body).Decode(&archive); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return c.toDays(archive.Daily), nil
}

// toDays zips the column-oriented daily arrays into per-day records. The
// arrays are supposed to be equally long; when they are not, trailing
// entries without a date are dropped and shorter value columns read as
// missing for the overflow days.
func (c *Client) toDays(d daily) []weather.ArchiveDay {
	days := make([]weather.ArchiveDay, 0, len(d.Time))
	for i, raw := range d.Time {
		date, err := time.ParseInLocation(domain.DayFormat, raw, time.UTC)
		if err != nil {
			c.logger.Warn("skipping archive day with unparseable date", "date", raw, "error", err)
			continue
		}

		day := weather.ArchiveDay{Date: date}

		high := at(d.TempMax, i)
		low := at(d.TempMin, i)
		if high != nil && low != nil {
			day.High = *high
			day.Low = *low
			day.HasTemps = true
		}
		if p := at(d.Precipitation, i); p != nil {
			day.Precipitation = *p
		}
		if h := at(d.Humidity, i); h != nil {
			day.Humidity = *h
			day.HasHumidity = true
		}
		if i < len(d.Sunset) {
			day.Sunset = clockTime(d.Sunset[i])
		}

		days = append(days, day)
	}
	return days
}

func at(col []*float64, i int) *float64 {
	if i >= len(col) {
		return nil
	}
	return col[i]
}

// clockTime extracts "HH:MM" from an ISO 8601 timestamp like
// "2025-06-08T21:10". Anything unrecognizable yields empty.
func clockTime(iso string) string {
	_, rest, found := strings.Cut(iso, "T")
	if !found || len(rest) < 5 {
		return ""
	}
	return rest[:5]
}

// Open-Meteo archive response types. Missing observations come through as
// JSON nulls, hence the pointer columns.

type response struct {
	Daily daily `json:"daily"`
}

type daily struct {
	Time          []string   `json:"time"`
	TempMax       []*float64 `json:"temperature_2m_max"`
	TempMin       []*float64 `json:"temperature_2m_min"`
	Precipitation []*float64 `json:"precipitation_sum"`
	Humidity      []*float64 `json:"relative_humidity_2m_mean"`
	Sunset        []string   `json:"sunset"`
}
