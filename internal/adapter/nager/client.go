// Package nager fetches public holidays from a Nager.Date compatible API,
// backed by the permanent (country, year) cache.
package nager

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
)

// Cache is the persistent holiday cache contract (implemented by store.Store).
type Cache interface {
	GetHolidays(ctx context.Context, countryCode string, year int) ([]domain.HolidayEntry, bool, error)
	PutHolidays(ctx context.Context, countryCode string, year int, entries []domain.HolidayEntry) error
}

// Client resolves public holidays cache-first, falling back to the origin API
// and inserting the result. Empty origin results are never cached.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	logger     *slog.Logger
}

// NewClient creates a holiday provider client.
func NewClient(baseURL string, timeout time.Duration, cache Cache, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		logger:     logger,
	}
}

// GetHolidays returns all public holidays for (country, year).
func (c *Client) GetHolidays(ctx context.Context, countryCode string, year int) ([]domain.HolidayEntry, error) {
	cc := strings.ToUpper(strings.TrimSpace(countryCode))

	if cached, found, err := c.cache.GetHolidays(ctx, cc, year); err != nil {
		return nil, err
	} else if found {
		return cached, nil
	}

	entries, err := c.fetchOrigin(ctx, cc, year)
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		if err := c.cache.PutHolidays(ctx, cc, year, entries); err != nil {
			// The fetched data is still good; only the cache write is lost.
			c.logger.Warn("holiday cache insert failed", "country", cc, "year", year, "error", err)
		}
	}
	return entries, nil
}

func (c *Client) fetchOrigin(ctx context.Context, countryCode string, year int) ([]domain.HolidayEntry, error) {
	u := fmt.Sprintf("%s/PublicHolidays/%d/%s", c.baseURL, year, url.PathEscape(countryCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("holiday request for %s/%d: %w", countryCode, year, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("holiday API error: status %d: %s", resp.StatusCode, body)
	}

	var rows []holidayRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode holiday response: %w", err)
	}

	entries := make([]domain.HolidayEntry, 0, len(rows))
	for _, row := range rows {
		date, err := time.ParseInLocation(domain.DayFormat, row.Date, time.UTC)
		if err != nil {
			c.logger.Warn("skipping holiday with unparseable date",
				"country", countryCode, "date", row.Date, "name", row.Name)
			continue
		}
		entries = append(entries, domain.HolidayEntry{
			Date:        date,
			Name:        row.Name,
			LocalName:   row.LocalName,
			CountryCode: strings.ToUpper(row.CountryCode),
		})
	}
	return entries, nil
}

// Nager.Date API response row.
type holidayRow struct {
	Date        string `json:"date"`
	LocalName   string `json:"localName"`
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
}
