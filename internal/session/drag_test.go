package session

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"verdict-cli/internal/store"
)

func TestDrag_PersistsManualOrder(t *testing.T) {
	ctx := context.Background()
	st := store.Store{Dir: t.TempDir()}
	svc := seededService()

	d := New(svc, WithStore(st))
	loadTopic(t, d, "Energy")
	if !d.DragStart("C") {
		t.Fatalf("expected drag of C to start")
	}
	d.DragOver("A")
	if !d.DragDrop(ctx) {
		t.Fatalf("expected drop to reorder")
	}
	if diff := cmp.Diff([]string{"C", "A", "B"}, canonicalIDs(d)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	// A fresh session restores the manual order from the snapshot and keeps it once the
	// server, which knows nothing about it, answers.
	next := New(svc, WithStore(st))
	req, _ := next.SelectTopic(ctx, "Energy")
	if diff := cmp.Diff([]string{"C", "A", "B"}, canonicalIDs(next)); diff != "" {
		t.Fatalf("restored order mismatch (-want +got):\n%s", diff)
	}
	next.ApplyLoad(ctx, next.Load(ctx, req))
	if diff := cmp.Diff([]string{"C", "A", "B"}, canonicalIDs(next)); diff != "" {
		t.Fatalf("order after reload mismatch (-want +got):\n%s", diff)
	}
}

func TestDrag_RejectsChildrenAndMoveBy(t *testing.T) {
	ctx := context.Background()
	d := New(seededService())
	loadTopic(t, d, "Energy")
	d.ToggleExpanded("A")

	if d.DragStart("a1") {
		t.Fatalf("expected a child to be rejected as drag source")
	}
	if d.DragMove(ctx, "B", "a1") {
		t.Fatalf("expected a child to be rejected as drop target")
	}
	if !d.MoveBy(ctx, "B", -1) {
		t.Fatalf("expected B to move up")
	}
	if diff := cmp.Diff([]string{"B", "A", "C"}, canonicalIDs(d)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if d.MoveBy(ctx, "B", -1) {
		t.Fatalf("expected moving the first row up to be a no-op")
	}
	if diff := cmp.Diff([]string{"B", "A", "a1", "C"}, d.View().IDs()); diff != "" {
		t.Fatalf("children must follow their parent (-want +got):\n%s", diff)
	}
}
