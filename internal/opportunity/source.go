// Package opportunity turns raw search-performance metrics into a ranked
// list of content opportunities worth writing for.
package opportunity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Row is one keyword's performance over a date window.
type Row struct {
	Keyword     string  `json:"keyword"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// Source provides performance rows for a date range. Configured reports
// whether the rows come from a live backend or the deterministic mock.
type Source interface {
	Rows(ctx context.Context, start, end time.Time) ([]Row, error)
	Configured() bool
}

// SearchConsoleSource queries a search-analytics API for keyword rows.
type SearchConsoleSource struct {
	apiKey     string
	siteURL    string
	baseURL    string
	httpClient *http.Client
}

const defaultSearchBaseURL = "https://searchanalytics.googleapis.com/v1"

// NewSearchConsoleSource creates a live source for the given site.
func NewSearchConsoleSource(apiKey, siteURL string) *SearchConsoleSource {
	return &SearchConsoleSource{
		apiKey:     apiKey,
		siteURL:    siteURL,
		baseURL:    defaultSearchBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewSearchConsoleSourceWithBaseURL points the source at a custom endpoint (for testing).
func NewSearchConsoleSourceWithBaseURL(apiKey, siteURL, baseURL string) *SearchConsoleSource {
	s := NewSearchConsoleSource(apiKey, siteURL)
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

func (s *SearchConsoleSource) Configured() bool { return true }

type queryRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	RowLimit   int      `json:"rowLimit"`
}

type queryResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		CTR         float64  `json:"ctr"`
		Position    float64  `json:"position"`
	} `json:"rows"`
}

// Rows fetches per-query performance rows for [start, end].
func (s *SearchConsoleSource) Rows(ctx context.Context, start, end time.Time) ([]Row, error) {
	body, err := json.Marshal(queryRequest{
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		Dimensions: []string{"query"},
		RowLimit:   500,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/sites/%s/searchAnalytics/query?key=%s",
		s.baseURL, url.PathEscape(s.siteURL), url.QueryEscape(s.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying search analytics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search analytics returned status %d", resp.StatusCode)
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	rows := make([]Row, 0, len(decoded.Rows))
	for _, r := range decoded.Rows {
		if len(r.Keys) == 0 {
			continue
		}
		rows = append(rows, Row{
			Keyword:     r.Keys[0],
			Clicks:      int(r.Clicks),
			Impressions: int(r.Impressions),
			CTR:         r.CTR,
			Position:    r.Position,
		})
	}
	return rows, nil
}

// MockSource returns a fixed dataset with the same shape as the live
// source. Used when the performance backend is unconfigured; substituting
// it is a configuration fallback, not an error.
type MockSource struct{}

func (MockSource) Configured() bool { return false }

// Rows returns deterministic rows. The recent window (end within the last
// 28 days) and the earlier window differ so trend scoring has material to
// work with.
func (MockSource) Rows(_ context.Context, _, end time.Time) ([]Row, error) {
	recent := time.Since(end) < 28*24*time.Hour
	if recent {
		return []Row{
			{Keyword: "metal roofing cost", Clicks: 4, Impressions: 520, CTR: 0.008, Position: 12.4},
			{Keyword: "roof repair near me", Clicks: 42, Impressions: 880, CTR: 0.048, Position: 4.1},
			{Keyword: "how long does a roof last", Clicks: 3, Impressions: 310, CTR: 0.010, Position: 18.7},
			{Keyword: "shingle colors", Clicks: 2, Impressions: 150, CTR: 0.013, Position: 22.0},
			{Keyword: "gutter installation cost", Clicks: 1, Impressions: 95, CTR: 0.011, Position: 27.3},
			{Keyword: "roof inspection checklist", Clicks: 5, Impressions: 72, CTR: 0.069, Position: 9.8},
			{Keyword: "best pizza dough", Clicks: 9, Impressions: 400, CTR: 0.023, Position: 8.0},
		}, nil
	}
	return []Row{
		{Keyword: "metal roofing cost", Clicks: 2, Impressions: 300, CTR: 0.007, Position: 19.2},
		{Keyword: "roof repair near me", Clicks: 40, Impressions: 860, CTR: 0.047, Position: 4.3},
		{Keyword: "how long does a roof last", Clicks: 2, Impressions: 290, CTR: 0.007, Position: 19.5},
		{Keyword: "shingle colors", Clicks: 2, Impressions: 160, CTR: 0.013, Position: 21.5},
	}, nil
}
