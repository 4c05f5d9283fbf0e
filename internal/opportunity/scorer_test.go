package opportunity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// stubSource serves one fixed dataset per window, keyed off the query end
// date: the recent window ends at fixedNow, the earlier one before it.
type stubSource struct {
	recent []Row
	older  []Row
	live   bool
	err    error
}

func (s stubSource) Configured() bool { return s.live }

func (s stubSource) Rows(_ context.Context, _, end time.Time) ([]Row, error) {
	if s.err != nil {
		return nil, s.err
	}
	if end.Equal(fixedNow) {
		return s.recent, nil
	}
	return s.older, nil
}

func newTestScorer(src Source, vocabulary []string) *Scorer {
	s := NewScorer(src, vocabulary)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestLowHangingFruitRule(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want bool
	}{
		{"qualifies", Row{Keyword: "roof cost", Impressions: 500, CTR: 0.01, Position: 12}, true},
		{"impressions at threshold", Row{Keyword: "k", Impressions: 100, CTR: 0.01, Position: 12}, false},
		{"ctr at threshold", Row{Keyword: "k", Impressions: 500, CTR: 0.02, Position: 12}, false},
		{"position too good", Row{Keyword: "k", Impressions: 500, CTR: 0.01, Position: 5}, false},
		{"position too deep", Row{Keyword: "k", Impressions: 500, CTR: 0.01, Position: 30}, false},
		{"just inside position band", Row{Keyword: "k", Impressions: 101, CTR: 0.019, Position: 29.9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isLowHangingFruit(tt.row); got != tt.want {
				t.Errorf("isLowHangingFruit(%+v) = %v, want %v", tt.row, got, tt.want)
			}
		})
	}
}

func TestRisingRules(t *testing.T) {
	tests := []struct {
		name    string
		recent  Row
		older   Row
		existed bool
		want    bool
	}{
		{"impressions grew over 50%", Row{Impressions: 160}, Row{Impressions: 100}, true, true},
		{"impressions grew exactly 50%", Row{Impressions: 150}, Row{Impressions: 100}, true, false},
		{"position improved over 5", Row{Impressions: 100, Position: 10}, Row{Impressions: 100, Position: 16}, true, true},
		{"position improved exactly 5", Row{Impressions: 100, Position: 10}, Row{Impressions: 100, Position: 15}, true, false},
		{"new keyword above 50", Row{Impressions: 51}, Row{}, false, true},
		{"new keyword at 50", Row{Impressions: 50}, Row{}, false, false},
		{"zero earlier impressions above floor", Row{Impressions: 51}, Row{Impressions: 0, Position: 40}, true, true},
		{"zero earlier impressions below floor", Row{Impressions: 50, Position: 10}, Row{Impressions: 0, Position: 40}, true, false},
		{"flat", Row{Impressions: 100, Position: 12}, Row{Impressions: 100, Position: 12}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRising(tt.recent, tt.older, tt.existed); got != tt.want {
				t.Errorf("isRising = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpportunitiesVocabularyFilterAndOrder(t *testing.T) {
	src := stubSource{
		recent: []Row{
			{Keyword: "metal roofing cost", Impressions: 520, CTR: 0.008, Position: 12.4},
			{Keyword: "best pizza dough", Impressions: 400, CTR: 0.01, Position: 8.0},
			{Keyword: "roof inspection checklist", Impressions: 72, CTR: 0.069, Position: 9.8},
		},
		older: []Row{
			{Keyword: "metal roofing cost", Impressions: 300, CTR: 0.007, Position: 19.2},
		},
		live: true,
	}
	s := newTestScorer(src, []string{"roof"})

	opps, err := s.Opportunities(context.Background())
	if err != nil {
		t.Fatalf("Opportunities: %v", err)
	}

	// "metal roofing cost" is both fruit and rising but must appear once,
	// tagged fruit because fruit is merged first. "best pizza dough" is
	// off-vocabulary. "roof inspection checklist" is a new keyword over 50
	// impressions, so rising.
	if len(opps) != 2 {
		t.Fatalf("got %d opportunities, want 2: %+v", len(opps), opps)
	}
	if opps[0].Keyword != "metal roofing cost" || opps[0].Kind != KindFruit {
		t.Errorf("opps[0] = %q (%s), want metal roofing cost (fruit)", opps[0].Keyword, opps[0].Kind)
	}
	if opps[1].Keyword != "roof inspection checklist" || opps[1].Kind != KindRising {
		t.Errorf("opps[1] = %q (%s), want roof inspection checklist (rising)", opps[1].Keyword, opps[1].Kind)
	}
}

func TestEmptyVocabularyDisablesFilter(t *testing.T) {
	src := stubSource{
		recent: []Row{{Keyword: "best pizza dough", Impressions: 400, CTR: 0.01, Position: 8.0}},
		live:   true,
	}
	s := newTestScorer(src, nil)

	opps, err := s.Opportunities(context.Background())
	if err != nil {
		t.Fatalf("Opportunities: %v", err)
	}
	if len(opps) != 1 || opps[0].Keyword != "best pizza dough" {
		t.Errorf("got %+v, want the off-topic keyword included", opps)
	}
}

func TestLowHangingFruitSortedAndCapped(t *testing.T) {
	var rows []Row
	for i := 0; i < 25; i++ {
		rows = append(rows, Row{
			Keyword:     fmt.Sprintf("roof keyword %d", i),
			Impressions: 200 + i,
			CTR:         0.01,
			Position:    15,
		})
	}
	s := newTestScorer(stubSource{recent: rows, live: true}, nil)

	fruit, err := s.LowHangingFruit(context.Background())
	if err != nil {
		t.Fatalf("LowHangingFruit: %v", err)
	}
	if len(fruit) != listCap {
		t.Fatalf("got %d results, want cap of %d", len(fruit), listCap)
	}
	for i := 1; i < len(fruit); i++ {
		if fruit[i].Impressions > fruit[i-1].Impressions {
			t.Fatalf("results not sorted by impressions desc at %d: %+v", i, fruit)
		}
	}
}

func TestSourceErrorPropagates(t *testing.T) {
	srcErr := errors.New("backend down")
	s := newTestScorer(stubSource{err: srcErr, live: true}, nil)

	if _, err := s.Opportunities(context.Background()); !errors.Is(err, srcErr) {
		t.Errorf("Opportunities error = %v, want wrapped %v", err, srcErr)
	}
}

func TestMockSourceProducesOpportunities(t *testing.T) {
	s := NewScorer(MockSource{}, []string{"roof", "roofing", "shingle", "gutter"})

	if s.Configured() {
		t.Error("mock-backed scorer must report unconfigured")
	}

	opps, err := s.Opportunities(context.Background())
	if err != nil {
		t.Fatalf("Opportunities: %v", err)
	}
	if len(opps) == 0 {
		t.Fatal("expected opportunities from the mock dataset")
	}

	byKeyword := make(map[string]string, len(opps))
	for _, o := range opps {
		byKeyword[o.Keyword] = o.Kind
	}
	if kind, ok := byKeyword["metal roofing cost"]; !ok || kind != KindFruit {
		t.Errorf("metal roofing cost: kind %q, ok %v; want fruit", kind, ok)
	}
	if _, ok := byKeyword["best pizza dough"]; ok {
		t.Error("off-vocabulary keyword leaked through the filter")
	}
}
