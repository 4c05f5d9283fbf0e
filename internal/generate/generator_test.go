package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/madigan/contentpipe/internal/content"
)

// stubChat returns canned responses per model name.
type stubChat struct {
	bodyResponse string
	metaResponse string
	metaErr      error
	calls        []string
}

func (s *stubChat) Chat(_ context.Context, model string, _ []Message, jsonSchema *Schema) (string, error) {
	s.calls = append(s.calls, model)
	if jsonSchema != nil {
		return s.metaResponse, s.metaErr
	}
	return s.bodyResponse, nil
}

func TestGenerateLive(t *testing.T) {
	chat := &stubChat{
		bodyResponse: "## Metal Roofing Basics\n\nMetal roofs last a long time.",
		metaResponse: `{"title":"Metal Roofing 101","excerpt":"All about metal roofs.","tags":["roofing"],"keywords":["metal roofing"],"imagePrompts":["metal roof on a house"]}`,
	}
	g := New(chat, "body-model", "meta-model", Options{})

	draft, err := g.Generate(context.Background(), "metal roofing", content.CompetitorAnalysis{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if draft.Title != "Metal Roofing 101" || draft.Excerpt != "All about metal roofs." {
		t.Errorf("metadata not applied: %+v", draft)
	}
	if draft.Source != content.SourceLive {
		t.Errorf("source = %s, want live", draft.Source)
	}
	if !strings.Contains(draft.Body, "Metal Roofing Basics") {
		t.Errorf("body not preserved: %q", draft.Body)
	}
	if draft.ReadingTime < 1 {
		t.Errorf("reading time = %d, want >= 1", draft.ReadingTime)
	}
	if len(chat.calls) != 2 || chat.calls[0] != "body-model" || chat.calls[1] != "meta-model" {
		t.Errorf("model calls = %v, want [body-model meta-model]", chat.calls)
	}
}

func TestGenerateMetadataMalformedFallsBack(t *testing.T) {
	tests := []struct {
		name string
		stub *stubChat
	}{
		{"invalid json", &stubChat{bodyResponse: "body text", metaResponse: "not json at all"}},
		{"missing title", &stubChat{bodyResponse: "body text", metaResponse: `{"excerpt":"e"}`}},
		{"call error", &stubChat{bodyResponse: "body text", metaErr: errors.New("model unavailable")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.stub, "b", "m", Options{})

			draft, err := g.Generate(context.Background(), "metal roofing", content.CompetitorAnalysis{})
			if err != nil {
				t.Fatalf("metadata failure must not surface as error, got: %v", err)
			}

			// Every metadata field must be populated from the keyword.
			if draft.Title != "Metal Roofing: A Complete Guide" {
				t.Errorf("default title = %q", draft.Title)
			}
			if draft.Excerpt == "" || len(draft.Tags) == 0 || len(draft.Keywords) == 0 || len(draft.ImagePrompts) == 0 {
				t.Errorf("default metadata incomplete: %+v", draft)
			}
			if draft.Body != "body text" {
				t.Errorf("body = %q, want the model body", draft.Body)
			}
		})
	}
}

func TestGeneratePartialMetadataBackfilled(t *testing.T) {
	chat := &stubChat{
		bodyResponse: "body text",
		metaResponse: `{"title":"Real Title"}`,
	}
	g := New(chat, "b", "m", Options{})

	draft, err := g.Generate(context.Background(), "metal roofing", content.CompetitorAnalysis{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if draft.Title != "Real Title" {
		t.Errorf("title = %q, want the model title kept", draft.Title)
	}
	if draft.Excerpt == "" || len(draft.Tags) == 0 || len(draft.ImagePrompts) == 0 {
		t.Errorf("missing fields not backfilled: %+v", draft)
	}
}

func TestGenerateEmptyBodyFails(t *testing.T) {
	g := New(&stubChat{bodyResponse: "   "}, "b", "m", Options{})

	if _, err := g.Generate(context.Background(), "metal roofing", content.CompetitorAnalysis{}); err == nil {
		t.Fatal("empty body must be a generation error")
	}
}

func TestTemplateDraft(t *testing.T) {
	g := New(nil, "", "", Options{})
	if g.Configured() {
		t.Fatal("generator without a client must report unconfigured")
	}

	analysis := content.CompetitorAnalysis{
		RelatedQuestions: []string{"How much does metal roofing cost?"},
	}
	draft, err := g.Generate(context.Background(), "metal roofing", analysis)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if draft.Source != content.SourceMock {
		t.Errorf("source = %s, want mock", draft.Source)
	}
	if !strings.Contains(draft.Body, "## Understanding Metal Roofing") {
		t.Errorf("template body missing keyword section: %q", draft.Body)
	}
	if !strings.Contains(draft.Body, "### How much does metal roofing cost?") {
		t.Error("related questions not woven into the template draft")
	}
	if draft.Title == "" || draft.Excerpt == "" || len(draft.ImagePrompts) == 0 {
		t.Errorf("template metadata incomplete: %+v", draft)
	}
}

func TestRenderAndWordCount(t *testing.T) {
	html, err := Render("## Heading\n\nOne two three four five.")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(html, "<h2") || !strings.Contains(html, "<p>") {
		t.Errorf("markdown not rendered: %q", html)
	}
	// "Heading" plus the five body words.
	if got := WordCount(html); got != 6 {
		t.Errorf("WordCount = %d, want 6", got)
	}
}

func TestExcerpt(t *testing.T) {
	html := "<h2>Title</h2><p>First paragraph with some words in it.</p><p>Second paragraph.</p>"

	if got := Excerpt(html, 200); got != "First paragraph with some words in it." {
		t.Errorf("Excerpt = %q", got)
	}

	short := Excerpt(html, 20)
	if !strings.HasSuffix(short, "…") {
		t.Errorf("truncated excerpt missing ellipsis: %q", short)
	}
	if len(short) > 25 {
		t.Errorf("excerpt not truncated: %q", short)
	}
}

func TestExcerptTruncatesOnRuneBoundary(t *testing.T) {
	// A spaceless multi-byte paragraph forces the hard cut; it must not
	// split a rune.
	got := Excerpt("<p>"+strings.Repeat("€", 100)+"</p>", 160)
	if !utf8.ValidString(got) {
		t.Fatalf("excerpt is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated excerpt missing ellipsis: %q", got)
	}
	if len(got) > 160+len("…") {
		t.Errorf("excerpt over limit: %d bytes", len(got))
	}
}

func TestReadingTime(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 1},
		{1, 1},
		{200, 1},
		{201, 2},
		{1500, 8},
	}
	for _, tt := range tests {
		if got := ReadingTime(tt.words); got != tt.want {
			t.Errorf("ReadingTime(%d) = %d, want %d", tt.words, got, tt.want)
		}
	}
}

func TestClientRetriesRateLimit(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "draft text"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key", srv.URL)
	text, err := c.Chat(context.Background(), "model", []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if text != "draft text" {
		t.Errorf("text = %q", text)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestClientNonRetryableError(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key", srv.URL)
	if _, err := c.Chat(context.Background(), "model", nil, nil); err == nil {
		t.Fatal("expected error on 400")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on client error)", attempts)
	}
}

func TestClientRequestsStrictSchema(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "{}"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key", srv.URL)
	_, err := c.Chat(context.Background(), "model", nil, metadataSchema())
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	rf, ok := gotBody["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_schema" {
		t.Fatalf("response_format not requested: %v", gotBody["response_format"])
	}
	js, ok := rf["json_schema"].(map[string]any)
	if !ok || js["strict"] != true {
		t.Errorf("strict schema not requested: %v", rf)
	}
}
