package store

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRankBetween_Ordering(t *testing.T) {
	cases := [][2]string{
		{"", ""},
		{"", "h"},
		{"h", ""},
		{"h", "i"},
		{"h5z", "h6"},
		{"y", "z"},
		{"zz", ""},
		{"", "01"},
		{"10", "20"},
	}
	for _, c := range cases {
		r, err := RankBetween(c[0], c[1])
		if err != nil {
			t.Fatalf("RankBetween(%q, %q): %v", c[0], c[1], err)
		}
		if c[0] != "" && !(c[0] < r) {
			t.Fatalf("RankBetween(%q, %q) = %q, not above lower", c[0], c[1], r)
		}
		if c[1] != "" && !(r < c[1]) {
			t.Fatalf("RankBetween(%q, %q) = %q, not below upper", c[0], c[1], r)
		}
	}
}

func TestRankBetween_PrefixAdjacent_NoSpace(t *testing.T) {
	// Nothing sorts strictly between "y" and "y0".
	if _, err := RankBetween("y", "y0"); !errors.Is(err, ErrNoRankSpace) {
		t.Fatalf("expected ErrNoRankSpace, got %v", err)
	}
	if _, err := RankBetween("b", "a"); err == nil {
		t.Fatalf("expected error for reversed bounds")
	}
	if _, err := RankBetween("A!", ""); err == nil {
		t.Fatalf("expected error for invalid characters")
	}
}

func TestRankBetweenUnique(t *testing.T) {
	cases := []struct {
		name   string
		taken  map[string]bool
		lo, hi string
	}{
		{name: "midpoint taken", taken: map[string]bool{"p": true, "q": true}, lo: "m", hi: "t"},
		{name: "open upper bound", taken: map[string]bool{"h0": true, "hi": true, "hr": true}, lo: "h"},
		{name: "open lower bound", taken: map[string]bool{"i": true}, hi: "z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := RankBetweenUnique(tc.taken, tc.lo, tc.hi)
			if err != nil {
				t.Fatalf("RankBetweenUnique: %v", err)
			}
			if tc.taken[r] {
				t.Fatalf("returned taken rank %q", r)
			}
			if (tc.lo != "" && r <= tc.lo) || (tc.hi != "" && r >= tc.hi) {
				t.Fatalf("rank %q outside (%q, %q)", r, tc.lo, tc.hi)
			}
		})
	}
}

func TestRankBetweenUnique_NoSpace(t *testing.T) {
	_, err := RankBetweenUnique(map[string]bool{}, "y", "y0")
	if !errors.Is(err, ErrNoRankSpace) {
		t.Fatalf("expected ErrNoRankSpace, got %v", err)
	}
}

// A topic's seeded order keeps room for tests dropped at either end or between two rows.
func TestSeedRanks_TopicInsertions(t *testing.T) {
	ids := []string{"solar", "wind", "coal"}
	ranks := SeedRanks(ids)

	first, err := RankBefore(ranks["solar"])
	if err != nil {
		t.Fatalf("RankBefore: %v", err)
	}
	last, err := RankAfter(ranks["coal"])
	if err != nil {
		t.Fatalf("RankAfter: %v", err)
	}
	taken := map[string]bool{first: true, last: true}
	for _, r := range ranks {
		taken[r] = true
	}
	mid, err := RankBetweenUnique(taken, ranks["solar"], ranks["wind"])
	if err != nil {
		t.Fatalf("RankBetweenUnique: %v", err)
	}
	ranks["tidal"], ranks["hydro"], ranks["nuclear"] = first, mid, last

	got := OrderByRank([]string{"solar", "wind", "coal", "tidal", "hydro", "nuclear", "geo"}, ranks)
	want := []string{"tidal", "solar", "hydro", "wind", "coal", "nuclear", "geo"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("topic order mismatch (-want +got):\n%s", diff)
	}
}

func TestSeedRanks_FixedWidthAndOrdered(t *testing.T) {
	ids := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		ids = append(ids, string(rune('a'+i%26))+string(rune('0'+i/26)))
	}
	ranks := SeedRanks(ids)
	got := make([]string, 0, len(ids))
	for _, id := range ids {
		got = append(got, ranks[id])
	}
	if !sort.StringsAreSorted(got) {
		t.Fatalf("seeded ranks are not in order: %v", got)
	}
	for i := 1; i < len(got); i++ {
		if len(got[i]) != len(got[0]) {
			t.Fatalf("expected fixed width ranks, got %q and %q", got[0], got[i])
		}
		if _, err := RankBetween(got[i-1], got[i]); err != nil {
			t.Fatalf("expected room between %q and %q: %v", got[i-1], got[i], err)
		}
	}
}
