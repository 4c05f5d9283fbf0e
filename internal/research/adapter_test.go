package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/madigan/contentpipe/internal/content"
)

func TestTopicLabels(t *testing.T) {
	tests := []struct {
		corpus string
		want   []string
	}{
		{"average cost to install a new roof", []string{"Cost & Pricing", "Installation"}},
		{"fixing a leak and filing an insurance claim", []string{"Repair & Damage", "Warranty & Insurance"}},
		{"metal vs asphalt shingle lifespan", []string{"Materials", "Lifespan & Durability"}},
		{"nothing relevant here", nil},
	}

	for _, tt := range tests {
		if got := matchLabels(topicPatterns, tt.corpus); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("matchLabels(%q) = %v, want %v", tt.corpus, got, tt.want)
		}
	}
}

func TestHeadingLabels(t *testing.T) {
	tests := []struct {
		titles string
		want   []string
	}{
		{"How to Replace Roof Shingles", []string{"How-To Guide"}},
		{"7 Signs You Need a New Roof", []string{"Listicle"}},
		{"Best Roofing Companies of 2026", []string{"Roundup"}},
		{"Metal vs Asphalt Roofing", []string{"Comparison"}},
		{"Roof Replacement Cost Breakdown", []string{"Cost Breakdown"}},
		{"What Is Flashing?", []string{"Question Answer"}},
	}

	for _, tt := range tests {
		if got := matchLabels(headingPatterns, tt.titles); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("matchLabels(%q) = %v, want %v", tt.titles, got, tt.want)
		}
	}
}

func TestResearchLive(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"organic_results": [
				{"position": 1, "title": "How to Install a Metal Roof", "link": "https://a.example/install",
				 "snippet": "Step by step installation guide covering cost and materials for a metal roof project today now"},
				{"position": 2, "title": "Metal Roof Cost Guide", "link": "https://b.example/cost",
				 "snippet": "What homeowners pay for metal roofing including labor and regional price differences overall"}
			],
			"related_questions": [
				{"question": "How long does a metal roof last?"}
			]
		}`))
	}))
	defer srv.Close()

	a := New(NewSerpClient("test-key", srv.URL))
	if !a.Configured() {
		t.Fatal("adapter with a client must report configured")
	}

	analysis, err := a.Research(context.Background(), "metal roof")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}

	if gotQuery != "metal roof" {
		t.Errorf("provider queried with %q, want %q", gotQuery, "metal roof")
	}
	if analysis.Source != content.SourceLive {
		t.Errorf("source = %s, want live", analysis.Source)
	}
	if len(analysis.TopResults) != 2 {
		t.Fatalf("got %d top results, want 2", len(analysis.TopResults))
	}
	if analysis.TopResults[0].URL != "https://a.example/install" || analysis.TopResults[0].Position != 1 {
		t.Errorf("first result mapped wrong: %+v", analysis.TopResults[0])
	}
	if len(analysis.RelatedQuestions) != 1 || !strings.Contains(analysis.RelatedQuestions[0], "last") {
		t.Errorf("related questions mapped wrong: %v", analysis.RelatedQuestions)
	}

	// Snippets are 16 and 13 words: (16+13)/2 = 14, scaled.
	if analysis.AvgWordCount != 14*wordsPerSnippetWord {
		t.Errorf("avg word count = %d, want %d", analysis.AvgWordCount, 14*wordsPerSnippetWord)
	}

	wantTopics := []string{"Cost & Pricing", "Installation", "Materials"}
	if !reflect.DeepEqual(analysis.CommonTopics, wantTopics) {
		t.Errorf("common topics = %v, want %v", analysis.CommonTopics, wantTopics)
	}
	wantHeadings := []string{"How-To Guide", "Cost Breakdown", "Complete Guide"}
	if !reflect.DeepEqual(analysis.CommonHeadings, wantHeadings) {
		t.Errorf("common headings = %v, want %v", analysis.CommonHeadings, wantHeadings)
	}
}

func TestResearchProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := New(NewSerpClient("test-key", srv.URL))
	if _, err := a.Research(context.Background(), "metal roof"); err == nil {
		t.Fatal("expected error from failing provider")
	}
}

func TestResearchMock(t *testing.T) {
	a := New(nil)
	if a.Configured() {
		t.Fatal("adapter without a client must report unconfigured")
	}

	analysis, err := a.Research(context.Background(), "metal roofing cost")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if analysis.Source != content.SourceMock {
		t.Errorf("source = %s, want mock", analysis.Source)
	}
	if analysis.Keyword != "metal roofing cost" {
		t.Errorf("keyword = %q", analysis.Keyword)
	}
	if len(analysis.TopResults) == 0 || len(analysis.RelatedQuestions) == 0 {
		t.Error("mock analysis must carry results and questions")
	}
	if analysis.AvgWordCount <= 0 {
		t.Errorf("avg word count = %d, want positive", analysis.AvgWordCount)
	}

	// Deterministic: the same keyword yields the same snapshot.
	again, err := a.Research(context.Background(), "metal roofing cost")
	if err != nil {
		t.Fatalf("Research (repeat): %v", err)
	}
	if !reflect.DeepEqual(analysis, again) {
		t.Error("mock analysis not deterministic")
	}
}
