package session

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"verdict-cli/internal/api"
	"verdict-cli/internal/rows"
)

func TestLoad_StaleTopicDiscarded(t *testing.T) {
	ctx := context.Background()
	d := New(seededService())

	energy, _ := d.SelectTopic(ctx, "Energy")
	motion, ok := d.SelectTopic(ctx, "Motion")
	if !ok {
		t.Fatalf("expected switching topics to start a new load")
	}

	// Energy's response arrives after the switch.
	late := d.Load(ctx, energy)
	current := d.Load(ctx, motion)

	if res := d.ApplyLoad(ctx, late); !res.Stale {
		t.Fatalf("expected Energy response to be discarded, got %+v", res)
	}
	if d.Table().Len() != 0 {
		t.Fatalf("stale response must not populate the table")
	}
	if res := d.ApplyLoad(ctx, current); !res.OK {
		t.Fatalf("expected Motion response to apply, got %+v", res)
	}
	if diff := cmp.Diff([]string{"M1"}, canonicalIDs(d)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if d.Loading() || !d.Loaded() {
		t.Fatalf("expected loaded state after the current response")
	}
}

func TestLoad_OlderFetchOfSameTopicDiscarded(t *testing.T) {
	ctx := context.Background()
	d := New(seededService())

	first, _ := d.SelectTopic(ctx, "Energy")
	d.SelectTopic(ctx, "Motion")
	second, _ := d.SelectTopic(ctx, "Energy")

	if res := d.ApplyLoad(ctx, d.Load(ctx, first)); !res.Stale {
		t.Fatalf("expected the first Energy fetch to be stale, got %+v", res)
	}
	if res := d.ApplyLoad(ctx, d.Load(ctx, second)); !res.OK {
		t.Fatalf("expected the latest Energy fetch to apply, got %+v", res)
	}
}

func TestSelectTopic_DedupesInFlightLoad(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	d := New(svc)

	req, ok := d.SelectTopic(ctx, "Energy")
	if !ok {
		t.Fatalf("expected first selection to load")
	}
	if _, ok := d.SelectTopic(ctx, "Energy"); ok {
		t.Fatalf("expected re-selecting a loading topic to be ignored")
	}
	if _, ok := d.Refresh(); ok {
		t.Fatalf("expected refresh during a load to be ignored")
	}
	d.ApplyLoad(ctx, d.Load(ctx, req))
	if n := svc.called("FetchTests"); n != 1 {
		t.Fatalf("expected one fetch, got %d", n)
	}
	if _, ok := d.Refresh(); !ok {
		t.Fatalf("expected refresh after the load to start a fetch")
	}
}

func TestLoad_PopulatesCacheAndCriteriaColumn(t *testing.T) {
	d := New(seededService())
	loadTopic(t, d, "Energy")

	if !d.Cache().Has("A") || d.Cache().Len() != 1 {
		t.Fatalf("expected perturbations of A to be cached")
	}
	if !d.Table().ColumnVisible(rows.ColCriteria) {
		t.Fatalf("expected the criteria column to be shown when variants exist")
	}
	d.ToggleExpanded("A")
	if diff := cmp.Diff([]string{"A", "a1", "B", "C"}, d.View().IDs()); diff != "" {
		t.Fatalf("view mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingPerturbationsTolerated(t *testing.T) {
	svc := seededService()
	svc.failOn["FetchPerturbations:Motion"] = &api.RequestError{Op: "fetch perturbations", Status: 404}
	d := New(svc)
	loadTopic(t, d, "Motion")
	if d.Cache().Len() != 0 || d.Table().Len() != 1 {
		t.Fatalf("expected tests without variants, got %d rows %d cached", d.Table().Len(), d.Cache().Len())
	}
}

func TestLoad_FailureKeepsRowsAndExplains(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	d := New(svc)
	loadTopic(t, d, "Energy")

	svc.failOn["FetchTests:Energy"] = errBoom
	req, _ := d.Refresh()
	res := d.ApplyLoad(ctx, d.Load(ctx, req))
	if res.OK || res.Message != "Failed to fetch tests for topic Energy" {
		t.Fatalf("unexpected result %+v", res)
	}
	if d.Table().Len() != 3 || d.Loading() {
		t.Fatalf("expected previous rows kept and loading cleared")
	}

	svc.failOn["FetchTests:Energy"] = &api.RequestError{Status: 401}
	req, _ = d.Refresh()
	if res := d.Load(ctx, req); !IsNotAuthenticated(res) {
		t.Fatalf("expected a not-authenticated failure, got %v", res.Err)
	}
}

func TestRefresh_KeepsSelectionOfCachedChildren(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	d := New(svc)
	loadTopic(t, d, "Energy")
	d.Table().SetSelected("a1", true)
	d.Table().SetSelected("gone", true)

	req, ok := d.Refresh()
	if !ok {
		t.Fatalf("expected refresh to start")
	}
	if res := d.ApplyLoad(ctx, d.Load(ctx, req)); !res.OK {
		t.Fatalf("unexpected result %+v", res)
	}
	if !d.Table().IsSelected("a1") {
		t.Fatalf("expected cached child a1 to stay selected")
	}
	if d.Table().IsSelected("gone") {
		t.Fatalf("expected an unknown id to be pruned")
	}
}
