package opportunity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/madigan/contentpipe/internal/content"
)

const (
	// KindFruit and KindRising tag why an opportunity surfaced.
	KindFruit  = "fruit"
	KindRising = "rising"

	// window is the length of each comparison period.
	window = 28 * 24 * time.Hour
	// listCap bounds each derived list after sorting.
	listCap = 20
)

// Scorer derives ranked opportunity lists from a performance source.
type Scorer struct {
	source     Source
	vocabulary []string
	logger     *slog.Logger
	now        func() time.Time
}

// NewScorer creates a Scorer. vocabulary narrows results to on-topic
// keywords via substring match; an empty vocabulary disables the filter.
func NewScorer(source Source, vocabulary []string) *Scorer {
	return &Scorer{
		source:     source,
		vocabulary: vocabulary,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

// Configured reports whether the underlying performance source is live.
func (s *Scorer) Configured() bool { return s.source.Configured() }

// Opportunities returns the vocabulary-filtered union of low-hanging
// fruit and rising keywords, fruit first, deduplicated by keyword.
func (s *Scorer) Opportunities(ctx context.Context) ([]content.KeywordOpportunity, error) {
	fruit, err := s.LowHangingFruit(ctx)
	if err != nil {
		return nil, err
	}
	rising, err := s.Rising(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(fruit))
	out := make([]content.KeywordOpportunity, 0, len(fruit)+len(rising))
	for _, opp := range append(fruit, rising...) {
		if seen[opp.Keyword] || !s.onTopic(opp.Keyword) {
			continue
		}
		seen[opp.Keyword] = true
		out = append(out, opp)
	}
	return out, nil
}

// LowHangingFruit returns keywords with high visibility but poor
// conversion, positioned for quick gains: impressions > 100, ctr < 0.02,
// position strictly between 5 and 30. Sorted by impressions descending,
// capped.
func (s *Scorer) LowHangingFruit(ctx context.Context) ([]content.KeywordOpportunity, error) {
	rows, err := s.recentRows(ctx)
	if err != nil {
		return nil, err
	}

	var out []content.KeywordOpportunity
	for _, row := range rows {
		if isLowHangingFruit(row) {
			out = append(out, toOpportunity(row, KindFruit))
		}
	}
	return capSorted(out), nil
}

func isLowHangingFruit(r Row) bool {
	return r.Impressions > 100 && r.CTR < 0.02 && r.Position > 5 && r.Position < 30
}

// Rising returns keywords trending upward between the earlier and recent
// windows: impressions grew by more than 50%, or position improved by
// more than 5 places, or the keyword is new with impressions > 50.
func (s *Scorer) Rising(ctx context.Context) ([]content.KeywordOpportunity, error) {
	end := s.now()
	recentStart := end.Add(-window)
	recent, err := s.source.Rows(ctx, recentStart, end)
	if err != nil {
		return nil, fmt.Errorf("fetching recent window: %w", err)
	}
	older, err := s.source.Rows(ctx, recentStart.Add(-window), recentStart)
	if err != nil {
		return nil, fmt.Errorf("fetching earlier window: %w", err)
	}

	olderByKeyword := make(map[string]Row, len(older))
	for _, row := range older {
		olderByKeyword[row.Keyword] = row
	}

	var out []content.KeywordOpportunity
	for _, row := range recent {
		prev, existed := olderByKeyword[row.Keyword]
		if isRising(row, prev, existed) {
			out = append(out, toOpportunity(row, KindRising))
		}
	}
	return capSorted(out), nil
}

func isRising(recent, older Row, existed bool) bool {
	// A zero-impression earlier window has no meaningful growth ratio, so
	// it gets the same floor as a keyword absent from that window.
	if !existed || older.Impressions == 0 {
		return recent.Impressions > 50
	}
	growth := float64(recent.Impressions-older.Impressions) / float64(older.Impressions)
	if growth > 0.5 {
		return true
	}
	return older.Position-recent.Position > 5
}

func (s *Scorer) recentRows(ctx context.Context) ([]Row, error) {
	end := s.now()
	rows, err := s.source.Rows(ctx, end.Add(-window), end)
	if err != nil {
		return nil, fmt.Errorf("fetching performance rows: %w", err)
	}
	if !s.source.Configured() {
		s.logger.Debug("performance source unconfigured, using mock dataset", "rows", len(rows))
	}
	return rows, nil
}

// onTopic reports whether the keyword matches the curated vocabulary.
func (s *Scorer) onTopic(keyword string) bool {
	if len(s.vocabulary) == 0 {
		return true
	}
	lower := strings.ToLower(keyword)
	for _, term := range s.vocabulary {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func toOpportunity(r Row, kind string) content.KeywordOpportunity {
	return content.KeywordOpportunity{
		Keyword:     r.Keyword,
		Kind:        kind,
		Clicks:      r.Clicks,
		Impressions: r.Impressions,
		CTR:         r.CTR,
		Position:    r.Position,
	}
}

func capSorted(opps []content.KeywordOpportunity) []content.KeywordOpportunity {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Impressions > opps[j].Impressions
	})
	if len(opps) > listCap {
		opps = opps[:listCap]
	}
	return opps
}
