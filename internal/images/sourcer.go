// Package images sources article illustrations from configured providers
// in a fixed priority order, with a placeholder fallback when none are
// configured.
package images

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/madigan/contentpipe/internal/content"
)

const providerTimeout = 60 * time.Second

// Provider fetches one image for a descriptive prompt.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, prompt string) (content.Image, error)
}

// Sourcer tries providers in order; the first usable result per prompt
// wins.
type Sourcer struct {
	providers []Provider
	logger    *slog.Logger
}

// New creates a Sourcer over the given providers, highest priority first.
// With no providers it serves fixed placeholders.
func New(providers ...Provider) *Sourcer {
	return &Sourcer{providers: providers, logger: slog.Default()}
}

// Configured reports whether any provider is available.
func (s *Sourcer) Configured() bool { return len(s.providers) > 0 }

// maxImages bounds how many prompts are sourced per article.
const maxImages = 3

// Source fetches one image per prompt. Unconfigured providers are a
// fallback path (placeholders); configured providers that all fail are an
// adapter failure.
func (s *Sourcer) Source(ctx context.Context, prompts []string) ([]content.Image, error) {
	if len(prompts) > maxImages {
		prompts = prompts[:maxImages]
	}

	if len(s.providers) == 0 {
		s.logger.Debug("no image providers configured, returning placeholders", "prompts", len(prompts))
		return placeholders(prompts), nil
	}

	var out []content.Image
	for _, prompt := range prompts {
		img, err := s.fetchOne(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("sourcing image for %q: %w", prompt, err)
		}
		out = append(out, img)
	}
	return out, nil
}

func (s *Sourcer) fetchOne(ctx context.Context, prompt string) (content.Image, error) {
	var errs []error
	for _, p := range s.providers {
		img, err := p.Fetch(ctx, prompt)
		if err == nil && img.URL != "" {
			return img, nil
		}
		if err != nil {
			s.logger.Warn("image provider failed, trying next", "provider", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return content.Image{}, errors.Join(errs...)
}

func placeholders(prompts []string) []content.Image {
	out := make([]content.Image, len(prompts))
	for i, prompt := range prompts {
		out[i] = content.Image{
			URL:    fmt.Sprintf("https://placehold.co/1200x630?text=%s", url.QueryEscape(prompt)),
			Alt:    prompt,
			Source: "custom",
			Width:  1200,
			Height: 630,
		}
	}
	return out
}

// --- OpenAI image generation provider ---

// OpenAIProvider generates images via the OpenAI images endpoint.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider creates a generation provider.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{Timeout: providerTimeout},
	}
}

// NewOpenAIProviderWithBaseURL points the provider at a custom endpoint (for testing).
func NewOpenAIProviderWithBaseURL(apiKey, baseURL string) *OpenAIProvider {
	p := NewOpenAIProvider(apiKey)
	p.baseURL = strings.TrimRight(baseURL, "/")
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Fetch(ctx context.Context, prompt string) (content.Image, error) {
	body, err := json.Marshal(map[string]any{
		"model":  "gpt-image-1",
		"prompt": prompt,
		"size":   "1536x1024",
		"n":      1,
	})
	if err != nil {
		return content.Image{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return content.Image{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return content.Image{}, fmt.Errorf("generating image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return content.Image{}, fmt.Errorf("image generation returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return content.Image{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Data) == 0 || decoded.Data[0].URL == "" {
		return content.Image{}, fmt.Errorf("image generation returned no image")
	}

	return content.Image{
		URL:    decoded.Data[0].URL,
		Alt:    prompt,
		Source: "generated",
		Width:  1536,
		Height: 1024,
	}, nil
}

// --- Pexels stock photo provider ---

// PexelsProvider searches Pexels for a stock photo matching the prompt.
type PexelsProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewPexelsProvider creates a stock photo provider.
func NewPexelsProvider(apiKey string) *PexelsProvider {
	return &PexelsProvider{
		apiKey:     apiKey,
		baseURL:    "https://api.pexels.com/v1",
		httpClient: &http.Client{Timeout: providerTimeout},
	}
}

// NewPexelsProviderWithBaseURL points the provider at a custom endpoint (for testing).
func NewPexelsProviderWithBaseURL(apiKey, baseURL string) *PexelsProvider {
	p := NewPexelsProvider(apiKey)
	p.baseURL = strings.TrimRight(baseURL, "/")
	return p
}

func (p *PexelsProvider) Name() string { return "pexels" }

func (p *PexelsProvider) Fetch(ctx context.Context, prompt string) (content.Image, error) {
	endpoint := fmt.Sprintf("%s/search?query=%s&per_page=1", p.baseURL, url.QueryEscape(prompt))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return content.Image{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return content.Image{}, fmt.Errorf("searching stock photos: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return content.Image{}, fmt.Errorf("stock photo search returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Photos []struct {
			Width  int    `json:"width"`
			Height int    `json:"height"`
			Alt    string `json:"alt"`
			Src    struct {
				Large string `json:"large"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return content.Image{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Photos) == 0 {
		return content.Image{}, fmt.Errorf("no stock photos found")
	}

	photo := decoded.Photos[0]
	alt := photo.Alt
	if alt == "" {
		alt = prompt
	}
	return content.Image{
		URL:    photo.Src.Large,
		Alt:    alt,
		Source: "stock",
		Width:  photo.Width,
		Height: photo.Height,
	}, nil
}
