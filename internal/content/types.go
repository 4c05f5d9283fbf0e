// Package content defines the domain types shared across the pipeline:
// content jobs, their lifecycle statuses, and the per-stage value objects
// accumulated on a job as it moves toward publication.
package content

import (
	"strings"
	"time"
	"unicode"
)

// JobStatus is the lifecycle state of a content job. Statuses advance
// strictly forward; failed is reachable from any non-terminal state.
type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusResearching JobStatus = "researching"
	StatusGenerating  JobStatus = "generating"
	StatusReviewing   JobStatus = "reviewing"
	StatusPublished   JobStatus = "published"
	StatusFailed      JobStatus = "failed"
)

// stageOrder gives each forward status its position in the pipeline.
var stageOrder = map[JobStatus]int{
	StatusPending:     0,
	StatusResearching: 1,
	StatusGenerating:  2,
	StatusReviewing:   3,
	StatusPublished:   4,
}

// Terminal reports whether no further transition is possible from s.
func (s JobStatus) Terminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := stageOrder[s]
	return ok
}

// CanTransition reports whether moving from s to next is a legal step:
// one stage forward, or to failed from any non-terminal state.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if next == StatusFailed {
		return !s.Terminal()
	}
	from, ok := stageOrder[s]
	if !ok {
		return false
	}
	to, ok := stageOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

// Category classifies a job at creation. The set is closed.
type Category string

const (
	CategoryGuides      Category = "guides"
	CategoryCost        Category = "cost"
	CategoryComparison  Category = "comparison"
	CategoryMaintenance Category = "maintenance"
	CategoryLocal       Category = "local"
)

// Categories lists every valid category.
func Categories() []Category {
	return []Category{CategoryGuides, CategoryCost, CategoryComparison, CategoryMaintenance, CategoryLocal}
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ResultSource marks whether a stage result came from a live dependency
// or the deterministic fallback used when that dependency is unconfigured.
type ResultSource string

const (
	SourceLive ResultSource = "live"
	SourceMock ResultSource = "mock"
)

// ContentJob tracks one keyword's journey through the pipeline. Stage
// results accumulate on the record and are never cleared by a later
// stage's failure.
type ContentJob struct {
	ID                 string              `json:"id"`
	Status             JobStatus           `json:"status"`
	Keyword            string              `json:"keyword"`
	Category           Category            `json:"category"`
	CompetitorAnalysis *CompetitorAnalysis `json:"competitorAnalysis,omitempty"`
	GeneratedContent   *GeneratedContent   `json:"generatedContent,omitempty"`
	FinalPost          *FinalPost          `json:"finalPost,omitempty"`
	Error              string              `json:"error,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// SearchResult is one ranked competitor result.
type SearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// CompetitorAnalysis is the research stage output: a structured snapshot
// of what already ranks for the keyword.
type CompetitorAnalysis struct {
	Keyword          string         `json:"keyword"`
	TopResults       []SearchResult `json:"topResults"`
	RelatedQuestions []string       `json:"relatedQuestions"`
	CommonTopics     []string       `json:"commonTopics"`
	CommonHeadings   []string       `json:"commonHeadings"`
	// AvgWordCount is estimated from snippet length, not measured.
	AvgWordCount int          `json:"avgWordCount"`
	Source       ResultSource `json:"source"`
}

// GeneratedContent is the generation stage output: a structured draft
// with a markdown body and SEO metadata.
type GeneratedContent struct {
	Body         string       `json:"body"`
	Title        string       `json:"title"`
	Excerpt      string       `json:"excerpt"`
	Tags         []string     `json:"tags"`
	Keywords     []string     `json:"keywords"`
	ImagePrompts []string     `json:"imagePrompts"`
	ReadingTime  int          `json:"readingTime"`
	Source       ResultSource `json:"source"`
}

// Image is a sourced illustration with attribution metadata.
type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	Source string `json:"source"` // "generated", "stock", or "custom"
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// FinalPost is the publishable artifact, present only once every stage
// has completed (status reviewing or published).
type FinalPost struct {
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Excerpt      string   `json:"excerpt"`
	Body         string   `json:"body"`
	RenderedBody string   `json:"renderedBody"`
	Tags         []string `json:"tags"`
	Keywords     []string `json:"keywords"`
	Images       []Image  `json:"images"`
	ReadingTime  int      `json:"readingTime"`
}

// KeywordOpportunity is an under-optimized keyword surfaced by the
// opportunity scorer. Ephemeral; it has no identity beyond the keyword
// string within one scoring run.
type KeywordOpportunity struct {
	Keyword string `json:"keyword"`
	// Kind is why the keyword surfaced: "fruit" (high visibility, poor
	// conversion) or "rising" (trending upward between windows).
	Kind        string  `json:"kind"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// Slugify turns a title into a URL-safe slug.
func Slugify(title string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
