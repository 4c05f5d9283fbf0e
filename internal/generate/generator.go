package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"

	"github.com/madigan/contentpipe/internal/content"
)

// wordsPerMinute is the fixed reading speed used for reading-time estimates.
const wordsPerMinute = 200

// Options tune a generation run.
type Options struct {
	TargetWordCount int
	Tone            string
	ReadingLevel    string
	// LinkKeywords are internal-link candidate phrases the body should
	// mention verbatim where natural.
	LinkKeywords []string
}

// Generator produces article drafts. With a nil client it serves a static
// templated draft instead of calling a model.
type Generator struct {
	client    ChatClient
	bodyModel string
	metaModel string
	opts      Options
	logger    *slog.Logger
}

// New creates a Generator. Pass a nil client when no generation backend is
// configured.
func New(client ChatClient, bodyModel, metaModel string, opts Options) *Generator {
	if opts.TargetWordCount <= 0 {
		opts.TargetWordCount = 1500
	}
	if opts.Tone == "" {
		opts.Tone = "professional"
	}
	if opts.ReadingLevel == "" {
		opts.ReadingLevel = "8th grade"
	}
	return &Generator{
		client:    client,
		bodyModel: bodyModel,
		metaModel: metaModel,
		opts:      opts,
		logger:    slog.Default(),
	}
}

// Configured reports whether a live generation backend is available.
func (g *Generator) Configured() bool { return g.client != nil }

// metadata mirrors the strict JSON payload requested from the metadata call.
type metadata struct {
	Title        string   `json:"title"`
	Excerpt      string   `json:"excerpt"`
	Tags         []string `json:"tags"`
	Keywords     []string `json:"keywords"`
	ImagePrompts []string `json:"imagePrompts"`
}

// Generate produces a structured draft for the keyword: one model call
// for the body, one for the metadata. Malformed metadata output falls
// back to deterministic defaults derived from the keyword; it never
// surfaces as a generation error.
func (g *Generator) Generate(ctx context.Context, keyword string, analysis content.CompetitorAnalysis) (content.GeneratedContent, error) {
	if g.client == nil {
		g.logger.Debug("generation backend unconfigured, returning templated draft", "keyword", keyword)
		return g.templateDraft(keyword, analysis), nil
	}

	body, err := g.client.Chat(ctx, g.bodyModel, buildBodyPrompt(keyword, g.opts, analysis), nil)
	if err != nil {
		return content.GeneratedContent{}, fmt.Errorf("generating body for %q: %w", keyword, err)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return content.GeneratedContent{}, fmt.Errorf("generating body for %q: empty response", keyword)
	}

	meta := g.fetchMetadata(ctx, keyword, body)

	return content.GeneratedContent{
		Body:         body,
		Title:        meta.Title,
		Excerpt:      meta.Excerpt,
		Tags:         meta.Tags,
		Keywords:     meta.Keywords,
		ImagePrompts: meta.ImagePrompts,
		ReadingTime:  ReadingTime(countWords(body)),
		Source:       content.SourceLive,
	}, nil
}

// fetchMetadata runs the metadata call and decodes it strictly. Any
// failure yields fully-specified defaults so downstream code never
// branches on partially-populated fields.
func (g *Generator) fetchMetadata(ctx context.Context, keyword, body string) metadata {
	raw, err := g.client.Chat(ctx, g.metaModel, buildMetadataPrompt(keyword, body), metadataSchema())
	if err != nil {
		g.logger.Warn("metadata call failed, using defaults", "keyword", keyword, "error", err)
		return defaultMetadata(keyword)
	}

	var meta metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta.Title == "" {
		g.logger.Warn("metadata response malformed, using defaults", "keyword", keyword, "error", err)
		return defaultMetadata(keyword)
	}
	if meta.Excerpt == "" {
		meta.Excerpt = defaultMetadata(keyword).Excerpt
	}
	if len(meta.Tags) == 0 {
		meta.Tags = []string{keyword}
	}
	if len(meta.Keywords) == 0 {
		meta.Keywords = []string{keyword}
	}
	if len(meta.ImagePrompts) == 0 {
		meta.ImagePrompts = defaultMetadata(keyword).ImagePrompts
	}
	return meta
}

// defaultMetadata builds a complete metadata value from the keyword alone.
func defaultMetadata(keyword string) metadata {
	title := titleCase(keyword)
	return metadata{
		Title:        title + ": A Complete Guide",
		Excerpt:      fmt.Sprintf("Learn everything you need to know about %s, from costs and materials to maintenance.", keyword),
		Tags:         []string{keyword},
		Keywords:     []string{keyword, keyword + " guide", keyword + " cost"},
		ImagePrompts: []string{"professional photo related to " + keyword, "detail shot related to " + keyword},
	}
}

// templateDraft is the configuration fallback: a static structured draft
// interpolated with the keyword.
func (g *Generator) templateDraft(keyword string, analysis content.CompetitorAnalysis) content.GeneratedContent {
	meta := defaultMetadata(keyword)
	title := titleCase(keyword)

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Understanding %s\n\n", title)
	fmt.Fprintf(&sb, "%s is one of the most common topics homeowners research before starting a project. This guide walks through what matters and what to expect.\n\n", title)
	fmt.Fprintf(&sb, "## What Affects the Cost\n\nMaterials, labor, and the scope of the work all drive the final price of %s. Get at least three written estimates before committing.\n\n", keyword)
	fmt.Fprintf(&sb, "## How to Choose a Contractor\n\nLook for licensing, insurance, and local references. A reputable contractor will inspect the site before quoting %s.\n\n", keyword)
	for _, q := range analysis.RelatedQuestions {
		fmt.Fprintf(&sb, "### %s\n\nThe answer depends on your home, your climate, and your budget. A local professional can give a precise answer after an inspection.\n\n", q)
	}
	fmt.Fprintf(&sb, "## Next Steps\n\nStart with a professional inspection and a written estimate. Careful planning up front saves money over the life of the project.\n")

	body := sb.String()
	return content.GeneratedContent{
		Body:         body,
		Title:        meta.Title,
		Excerpt:      meta.Excerpt,
		Tags:         meta.Tags,
		Keywords:     meta.Keywords,
		ImagePrompts: meta.ImagePrompts,
		ReadingTime:  ReadingTime(countWords(body)),
		Source:       content.SourceMock,
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Render converts a markdown body to HTML.
func Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// WordCount counts the words in an HTML body's visible text.
func WordCount(renderedHTML string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
	if err != nil {
		return countWords(renderedHTML)
	}
	return countWords(doc.Text())
}

// Excerpt derives a short plain-text excerpt from an HTML body.
func Excerpt(renderedHTML string, maxLen int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
	if err != nil {
		return ""
	}
	text := strings.Join(strings.Fields(doc.Find("p").First().Text()), " ")
	if len(text) > maxLen {
		cut := strings.LastIndex(text[:maxLen], " ")
		if cut <= 0 {
			// No space to break on; back up to a rune boundary instead
			// of slicing mid-sequence.
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		text = text[:cut] + "…"
	}
	return text
}

// ReadingTime converts a word count to whole minutes, rounding up.
func ReadingTime(words int) int {
	if words <= 0 {
		return 1
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
