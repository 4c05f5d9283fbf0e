package research

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/madigan/contentpipe/internal/content"
)

// wordsPerSnippetWord scales snippet length up to an article-length
// estimate. Word count is a heuristic derived from snippet length, not a
// measurement of the ranking pages.
const wordsPerSnippetWord = 40

// labeledPattern maps a regular expression over the result corpus to a
// human-readable label.
type labeledPattern struct {
	re    *regexp.Regexp
	label string
}

// topicPatterns classify the concatenated title+snippet corpus.
var topicPatterns = []labeledPattern{
	{regexp.MustCompile(`(?i)\b(cost|price|pricing|estimate|budget)\b`), "Cost & Pricing"},
	{regexp.MustCompile(`(?i)\b(install|installation|installing)\b`), "Installation"},
	{regexp.MustCompile(`(?i)\b(repair|fix|leak|damage)\b`), "Repair & Damage"},
	{regexp.MustCompile(`(?i)\b(material|metal|asphalt|shingle|tile|slate)\b`), "Materials"},
	{regexp.MustCompile(`(?i)\b(lifespan|last|longevity|durab)\w*`), "Lifespan & Durability"},
	{regexp.MustCompile(`(?i)\b(maintenance|maintain|inspect|inspection)\b`), "Maintenance"},
	{regexp.MustCompile(`(?i)\b(warranty|insurance|claim)\b`), "Warranty & Insurance"},
	{regexp.MustCompile(`(?i)\b(diy|yourself|homeowner)\b`), "DIY & Homeowner Tips"},
	{regexp.MustCompile(`(?i)\b(contractor|company|professional|hire)\b`), "Hiring a Contractor"},
	{regexp.MustCompile(`(?i)\b(energy|efficien|insulat)\w*`), "Energy Efficiency"},
}

// headingPatterns classify title phrasing into common page structures.
var headingPatterns = []labeledPattern{
	{regexp.MustCompile(`(?i)^how to\b|\bhow to\b`), "How-To Guide"},
	{regexp.MustCompile(`(?i)\b\d+\s+(ways|tips|steps|things|reasons|signs)\b`), "Listicle"},
	{regexp.MustCompile(`(?i)\b(best|top)\b`), "Roundup"},
	{regexp.MustCompile(`(?i)\bvs\.?\b|\bversus\b|\bcompar`), "Comparison"},
	{regexp.MustCompile(`(?i)\b(cost|price)s?\b`), "Cost Breakdown"},
	{regexp.MustCompile(`(?i)\b(guide|complete|ultimate|everything)\b`), "Complete Guide"},
	{regexp.MustCompile(`(?i)\?$|\bwhat\b|\bwhy\b|\bwhen\b`), "Question Answer"},
}

// Adapter wraps the SERP dependency behind a stable contract. With a nil
// client it serves a structurally identical mock snapshot.
type Adapter struct {
	client *SerpClient
	logger *slog.Logger
}

// New creates an Adapter. Pass a nil client when the SERP provider is
// unconfigured.
func New(client *SerpClient) *Adapter {
	return &Adapter{client: client, logger: slog.Default()}
}

// Configured reports whether a live SERP provider backs this adapter.
func (a *Adapter) Configured() bool { return a.client != nil }

// Research returns the competitive snapshot for a keyword.
func (a *Adapter) Research(ctx context.Context, keyword string) (content.CompetitorAnalysis, error) {
	if a.client == nil {
		a.logger.Debug("serp provider unconfigured, returning mock analysis", "keyword", keyword)
		return mockAnalysis(keyword), nil
	}

	resp, err := a.client.Search(ctx, keyword)
	if err != nil {
		return content.CompetitorAnalysis{}, fmt.Errorf("researching %q: %w", keyword, err)
	}

	analysis := content.CompetitorAnalysis{
		Keyword: keyword,
		Source:  content.SourceLive,
	}

	var corpus strings.Builder
	var titles []string
	var snippetWords int
	for _, r := range resp.OrganicResults {
		analysis.TopResults = append(analysis.TopResults, content.SearchResult{
			Title:    r.Title,
			URL:      r.Link,
			Snippet:  r.Snippet,
			Position: r.Position,
		})
		corpus.WriteString(r.Title)
		corpus.WriteString(" ")
		corpus.WriteString(r.Snippet)
		corpus.WriteString(" ")
		titles = append(titles, r.Title)
		snippetWords += len(strings.Fields(r.Snippet))
	}
	for _, q := range resp.RelatedQuestions {
		analysis.RelatedQuestions = append(analysis.RelatedQuestions, q.Question)
	}

	analysis.CommonTopics = matchLabels(topicPatterns, corpus.String())
	analysis.CommonHeadings = matchLabels(headingPatterns, strings.Join(titles, "\n"))
	if n := len(resp.OrganicResults); n > 0 {
		analysis.AvgWordCount = snippetWords / n * wordsPerSnippetWord
	}
	return analysis, nil
}

func matchLabels(patterns []labeledPattern, corpus string) []string {
	var labels []string
	for _, p := range patterns {
		if p.re.MatchString(corpus) {
			labels = append(labels, p.label)
		}
	}
	return labels
}

// titleCase capitalizes the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// mockAnalysis builds a deterministic snapshot from the keyword alone.
func mockAnalysis(keyword string) content.CompetitorAnalysis {
	title := titleCase(keyword)
	results := []content.SearchResult{
		{Title: title + ": The Complete Guide", URL: "https://example.org/guide", Position: 1,
			Snippet: "Everything homeowners need to know about " + keyword + ", from materials and installation to long-term maintenance."},
		{Title: "How Much Does " + title + " Cost?", URL: "https://example.org/cost", Position: 2,
			Snippet: "A detailed cost breakdown for " + keyword + " including labor, materials, and regional price differences."},
		{Title: "7 Things to Know Before You Start", URL: "https://example.org/tips", Position: 3,
			Snippet: "Expert tips on " + keyword + " covering common mistakes, repair options, and how to hire a contractor."},
	}

	var corpus strings.Builder
	var titles []string
	snippetWords := 0
	for _, r := range results {
		corpus.WriteString(r.Title + " " + r.Snippet + " ")
		titles = append(titles, r.Title)
		snippetWords += len(strings.Fields(r.Snippet))
	}

	return content.CompetitorAnalysis{
		Keyword:    keyword,
		TopResults: results,
		RelatedQuestions: []string{
			"How much does " + keyword + " cost?",
			"Is " + keyword + " worth it?",
			"How long does " + keyword + " take?",
		},
		CommonTopics:   matchLabels(topicPatterns, corpus.String()),
		CommonHeadings: matchLabels(headingPatterns, strings.Join(titles, "\n")),
		AvgWordCount:   snippetWords / len(results) * wordsPerSnippetWord,
		Source:         content.SourceMock,
	}
}
