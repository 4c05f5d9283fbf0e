// Package research produces a structured competitive snapshot for a
// keyword: what ranks, what questions searchers ask, and which topics and
// heading patterns the ranking pages share.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const serpTimeout = 15 * time.Second

// SerpClient queries a SERP provider for organic results and related
// questions.
type SerpClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewSerpClient creates a client for the given provider base URL.
func NewSerpClient(apiKey, baseURL string) *SerpClient {
	return &SerpClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: serpTimeout},
	}
}

type serpResponse struct {
	OrganicResults []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
	RelatedQuestions []struct {
		Question string `json:"question"`
	} `json:"related_questions"`
}

// Search runs a query and returns the decoded provider response.
func (c *SerpClient) Search(ctx context.Context, query string) (serpResponse, error) {
	endpoint := fmt.Sprintf("%s/search?engine=google&q=%s&num=10&api_key=%s",
		c.baseURL, url.QueryEscape(query), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return serpResponse{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return serpResponse{}, fmt.Errorf("querying serp provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serpResponse{}, fmt.Errorf("serp provider returned status %d", resp.StatusCode)
	}

	var decoded serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return serpResponse{}, fmt.Errorf("decoding serp response: %w", err)
	}
	return decoded, nil
}
