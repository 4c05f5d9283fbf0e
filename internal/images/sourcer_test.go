package images

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/madigan/contentpipe/internal/content"
)

type stubProvider struct {
	name string
	img  content.Image
	err  error
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Fetch(_ context.Context, _ string) (content.Image, error) {
	return p.img, p.err
}

func TestPlaceholdersWhenUnconfigured(t *testing.T) {
	s := New()
	if s.Configured() {
		t.Fatal("sourcer without providers must report unconfigured")
	}

	imgs, err := s.Source(context.Background(), []string{"metal roof", "gutter detail"})
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if len(imgs) != 2 {
		t.Fatalf("got %d images, want 2", len(imgs))
	}
	for i, img := range imgs {
		if img.Source != "custom" {
			t.Errorf("images[%d].Source = %q, want custom", i, img.Source)
		}
		if img.URL == "" || img.Alt == "" {
			t.Errorf("images[%d] incomplete: %+v", i, img)
		}
	}
}

func TestProviderPriority(t *testing.T) {
	first := stubProvider{name: "first", img: content.Image{URL: "https://a/img.png", Source: "generated"}}
	second := stubProvider{name: "second", img: content.Image{URL: "https://b/img.jpg", Source: "stock"}}
	s := New(first, second)

	imgs, err := s.Source(context.Background(), []string{"prompt"})
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if len(imgs) != 1 || imgs[0].URL != "https://a/img.png" {
		t.Errorf("higher-priority provider not preferred: %+v", imgs)
	}
}

func TestFallbackToNextProvider(t *testing.T) {
	failing := stubProvider{name: "failing", err: errors.New("quota exceeded")}
	backup := stubProvider{name: "backup", img: content.Image{URL: "https://b/img.jpg", Source: "stock"}}
	s := New(failing, backup)

	imgs, err := s.Source(context.Background(), []string{"prompt"})
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if len(imgs) != 1 || imgs[0].Source != "stock" {
		t.Errorf("backup provider not used: %+v", imgs)
	}
}

func TestAllProvidersFailing(t *testing.T) {
	s := New(
		stubProvider{name: "one", err: errors.New("down")},
		stubProvider{name: "two", err: errors.New("also down")},
	)

	if _, err := s.Source(context.Background(), []string{"prompt"}); err == nil {
		t.Fatal("configured providers all failing must be an error")
	}
}

func TestPromptsCapped(t *testing.T) {
	s := New()
	prompts := []string{"a", "b", "c", "d", "e"}

	imgs, err := s.Source(context.Background(), prompts)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if len(imgs) != maxImages {
		t.Errorf("got %d images, want cap of %d", len(imgs), maxImages)
	}
}

func TestOpenAIProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth = %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"url":"https://img.example/gen.png"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProviderWithBaseURL("test-key", srv.URL)
	img, err := p.Fetch(context.Background(), "a metal roof at sunset")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if img.URL != "https://img.example/gen.png" || img.Source != "generated" {
		t.Errorf("image = %+v", img)
	}
	if img.Alt != "a metal roof at sunset" {
		t.Errorf("alt = %q, want the prompt", img.Alt)
	}
}

func TestPexelsProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/search") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "test-key" {
			t.Errorf("auth = %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"photos":[{"width":1880,"height":1253,"alt":"Roof with shingles","src":{"large":"https://img.example/stock.jpg"}}]}`))
	}))
	defer srv.Close()

	p := NewPexelsProviderWithBaseURL("test-key", srv.URL)
	img, err := p.Fetch(context.Background(), "roof shingles")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if img.URL != "https://img.example/stock.jpg" || img.Source != "stock" {
		t.Errorf("image = %+v", img)
	}
	if img.Alt != "Roof with shingles" || img.Width != 1880 {
		t.Errorf("photo fields not mapped: %+v", img)
	}
}

func TestPexelsNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"photos":[]}`))
	}))
	defer srv.Close()

	p := NewPexelsProviderWithBaseURL("test-key", srv.URL)
	if _, err := p.Fetch(context.Background(), "anything"); err == nil {
		t.Fatal("expected error when no photos match")
	}
}
