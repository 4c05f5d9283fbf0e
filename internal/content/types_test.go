package content

import "testing"

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{StatusPending, StatusResearching, true},
		{StatusResearching, StatusGenerating, true},
		{StatusGenerating, StatusReviewing, true},
		{StatusReviewing, StatusPublished, true},
		{StatusPending, StatusFailed, true},
		{StatusReviewing, StatusFailed, true},
		{StatusPublished, StatusFailed, false},
		{StatusFailed, StatusResearching, false},
		{StatusPending, StatusReviewing, false},
		{StatusReviewing, StatusPending, false},
		{StatusPublished, StatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []JobStatus{StatusPublished, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
	for _, s := range []JobStatus{StatusPending, StatusResearching, StatusGenerating, StatusReviewing} {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Errorf("%s must be valid", c)
		}
	}
	if Category("recipes").Valid() {
		t.Error("unknown category must be invalid")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Metal Roofing Cost: A Complete Guide", "metal-roofing-cost-a-complete-guide"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Symbols & punctuation!?", "symbols-punctuation"},
		{"already-a-slug", "already-a-slug"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
