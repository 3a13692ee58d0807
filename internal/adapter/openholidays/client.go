// Package openholidays resolves school-holiday intervals for a
// (country, region). Manually curated override records take precedence; the
// public OpenHolidays-compatible API is consulted only when no override
// matches the key.
package openholidays

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
	"github.com/plannerhq/datecompass/internal/store"
)

// OverrideStore lists curated school-holiday records (implemented by store.Store).
type OverrideStore interface {
	ListSchoolOverrides(ctx context.Context, countryCode, regionCode string, from, to time.Time) ([]store.SchoolHolidayOverride, error)
}

// Client resolves school holidays override-first.
type Client struct {
	baseURL    string
	httpClient *http.Client
	overrides  OverrideStore
	logger     *slog.Logger
}

// NewClient creates a school-holiday provider client.
func NewClient(baseURL string, timeout time.Duration, overrides OverrideStore, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		overrides:  overrides,
		logger:     logger,
	}
}

// GetSchoolHolidays returns all school-holiday intervals for the region that
// overlap [from, to]. When the curated override set for (country, region,
// year-overlap) is non-empty it is used exclusively; the API is not queried.
func (c *Client) GetSchoolHolidays(ctx context.Context, countryCode, regionCode string, from, to time.Time) (domain.SchoolHolidayResult, error) {
	curated, err := c.overrides.ListSchoolOverrides(ctx, countryCode, regionCode, from, to)
	if err != nil {
		return domain.SchoolHolidayResult{}, err
	}
	if len(curated) > 0 {
		res := domain.SchoolHolidayResult{Verified: true}
		for _, o := range curated {
			res.Intervals = append(res.Intervals, o.Interval)
			if res.SourceURL == "" && o.SourceURL != "" {
				res.SourceURL = o.SourceURL
			}
		}
		return res, nil
	}

	intervals, err := c.fetchAPI(ctx, countryCode, regionCode, from, to)
	if err != nil {
		return domain.SchoolHolidayResult{}, err
	}
	return domain.SchoolHolidayResult{Intervals: intervals}, nil
}

func (c *Client) fetchAPI(ctx context.Context, countryCode, regionCode string, from, to time.Time) ([]domain.SchoolHolidayInterval, error) {
	cc := strings.ToUpper(strings.TrimSpace(countryCode))

	params := url.Values{
		"countryIsoCode":  {cc},
		"languageIsoCode": {"EN"},
		"validFrom":       {from.Format(domain.DayFormat)},
		"validTo":         {to.Format(domain.DayFormat)},
	}
	if regionCode != "" {
		params.Set("subdivisionCode", subdivisionCode(cc, regionCode))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/SchoolHolidays?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("school holiday request for %s/%s: %w", cc, regionCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("school holiday API error: status %d: %s", resp.StatusCode, body)
	}

	var rows []schoolHolidayRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode school holiday response: %w", err)
	}

	intervals := make([]domain.SchoolHolidayInterval, 0, len(rows))
	for _, row := range rows {
		start, err := time.ParseInLocation(domain.DayFormat, row.StartDate, time.UTC)
		if err != nil {
			c.logger.Warn("skipping school holiday with unparseable start date",
				"country", cc, "region", regionCode, "date", row.StartDate)
			continue
		}
		end, err := time.ParseInLocation(domain.DayFormat, row.EndDate, time.UTC)
		if err != nil {
			c.logger.Warn("skipping school holiday with unparseable end date",
				"country", cc, "region", regionCode, "date", row.EndDate)
			continue
		}
		intervals = append(intervals, domain.SchoolHolidayInterval{
			Name:        row.displayName(),
			Start:       start,
			End:         end,
			CountryCode: cc,
			RegionCode:  regionCode,
		})
	}
	return intervals, nil
}

// subdivisionCode builds an ISO 3166-2 style code ("DE-BY") unless the
// region already carries the country prefix.
func subdivisionCode(countryCode, regionCode string) string {
	if strings.Contains(regionCode, "-") {
		return regionCode
	}
	return countryCode + "-" + strings.ToUpper(regionCode)
}

// OpenHolidays API response types.

type schoolHolidayRow struct {
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Name      []localizedText `json:"name"`
}

type localizedText struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

func (r schoolHolidayRow) displayName() string {
	for _, n := range r.Name {
		if strings.EqualFold(n.Language, "EN") && n.Text != "" {
			return n.Text
		}
	}
	if len(r.Name) > 0 {
		return r.Name[0].Text
	}
	return "School holiday"
}
