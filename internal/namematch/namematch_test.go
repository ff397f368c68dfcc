package namematch_test

import (
	"testing"

	"github.com/MrWong99/crossing/internal/namematch"
)

func TestMatcher_Best(t *testing.T) {
	t.Parallel()

	members := []string{"Alice", "bob", "Grey_Wolf", "Tinker Bell"}

	tests := []struct {
		name      string
		query     string
		wantOK    bool
		wantIndex int
	}{
		{name: "exact ignores case", query: "ALICE", wantOK: true, wantIndex: 0},
		{name: "misspelled sounds alike", query: "alise", wantOK: true, wantIndex: 0},
		{name: "separator differences", query: "greywolf", wantOK: true, wantIndex: 2},
		{name: "spaced multi-word name", query: "tinkerbell", wantOK: true, wantIndex: 3},
		{name: "unrelated name", query: "zebra", wantOK: false},
		{name: "blank query", query: "   ", wantOK: false},
	}

	m := namematch.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, ok := m.Best(tt.query, members)
			if ok != tt.wantOK {
				t.Fatalf("Best(%q) ok = %v, want %v (res=%+v)", tt.query, ok, tt.wantOK, res)
			}
			if !ok {
				return
			}
			if res.Index != tt.wantIndex {
				t.Errorf("Best(%q) index = %d (%q), want %d", tt.query, res.Index, res.Name, tt.wantIndex)
			}
			if res.Name != members[res.Index] {
				t.Errorf("Best(%q) name = %q, want %q", tt.query, res.Name, members[res.Index])
			}
		})
	}
}

func TestMatcher_ExactScoresOne(t *testing.T) {
	t.Parallel()

	res, ok := namematch.New().Best("bob", []string{"Bobby", "Bob"})
	if !ok {
		t.Fatal("Best: ok = false, want true")
	}
	if res.Index != 1 || res.Score != 1 {
		t.Errorf("Best = %+v, want index 1 with score 1", res)
	}
}

func TestMatcher_NoCandidates(t *testing.T) {
	t.Parallel()

	if _, ok := namematch.New().Best("alice", nil); ok {
		t.Error("Best with no candidates: ok = true, want false")
	}
}

func TestMatcher_Thresholds(t *testing.T) {
	t.Parallel()

	strict := namematch.New(namematch.WithPhoneticThreshold(0.99), namematch.WithFuzzyThreshold(0.99))
	if res, ok := strict.Best("alise", []string{"Alice"}); ok {
		t.Errorf("strict Best(alise) = %+v, want no match", res)
	}

	loose := namematch.New(namematch.WithPhoneticThreshold(0.5))
	if _, ok := loose.Best("alise", []string{"Alice"}); !ok {
		t.Error("loose Best(alise): ok = false, want true")
	}
}
