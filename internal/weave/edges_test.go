package weave

import (
	"fmt"
	"testing"

	"polyvis/internal/storage"
	"polyvis/internal/tokenizer"
)

func testLexicon() *tokenizer.Index {
	return tokenizer.NewIndex([]tokenizer.LexiconItem{
		{ID: "term-flow-state", Title: "Flow State"},
		{ID: "term-deep-work", Title: "Deep Work"},
		{ID: "kubernetes", Title: "Kubernetes", Category: "Tool"},
	})
}

func newTestWeaver(t *testing.T, store *storage.Store, stubs bool) *EdgeWeaver {
	t.Helper()
	gate := NewGate(store, 50, testLogger())
	return NewEdgeWeaver(store, gate, testLexicon(), stubs, testLogger())
}

func edgeTypes(t *testing.T, store *storage.Store, nodeID string) map[string]int {
	t.Helper()
	edges, err := store.GetEdges(nodeID)
	if err != nil {
		t.Fatalf("GetEdges failed: %v", err)
	}
	types := make(map[string]int)
	for _, e := range edges {
		types[e.Type]++
	}
	return types
}

func TestWeaveInlineTag(t *testing.T) {
	store := setupTestStore(t)
	weaver := newTestWeaver(t, store, false)
	mustNode(t, store, "note-1")
	mustNode(t, store, "term-flow-state")

	stats, err := weaver.Weave("note-1", "Hit a groove today. [Tag: Flow State] Kept it for hours.")
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 1 {
		t.Errorf("Added = %d, want 1", stats.Added)
	}

	edges, err := store.GetEdges("note-1")
	if err != nil {
		t.Fatalf("GetEdges failed: %v", err)
	}
	if len(edges) != 1 || edges[0].Target != "term-flow-state" || edges[0].Type != TypeTaggedAs {
		t.Errorf("unexpected edges: %+v", edges)
	}
}

func TestWeaveInlineTagCaseInsensitive(t *testing.T) {
	store := setupTestStore(t)
	weaver := newTestWeaver(t, store, false)
	mustNode(t, store, "note-1")

	stats, err := weaver.Weave("note-1", "[tag: flow state] and [TAG: FLOW STATE]")
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 1 {
		t.Errorf("Added = %d, want 1 (duplicate suppressed by idempotent insert)", stats.Added)
	}
}

func TestWeaveUnresolvableTagSkipped(t *testing.T) {
	store := setupTestStore(t)
	weaver := newTestWeaver(t, store, false)
	mustNode(t, store, "note-1")

	stats, err := weaver.Weave("note-1", "[Tag: Nonexistent Concept] nothing else")
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 0 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want Added 0 Skipped 1", stats)
	}
	if edges, _ := store.GetEdges("note-1"); len(edges) != 0 {
		t.Errorf("ghost edges created: %+v", edges)
	}
}

func TestWeaveStubsWhenEnabled(t *testing.T) {
	store := setupTestStore(t)
	weaver := newTestWeaver(t, store, true)
	mustNode(t, store, "note-1")
	mustNode(t, store, "term-deep-work")

	stats, err := weaver.Weave("note-1", "Morning block was pure tag-deep-work focus.")
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 1 {
		t.Errorf("Added = %d, want 1", stats.Added)
	}
	if types := edgeTypes(t, store, "note-1"); types[TypeExemplifies] != 1 {
		t.Errorf("edge types = %v, want one EXEMPLIFIES", types)
	}
}

func TestWeaveStubsIgnoredWhenDisabled(t *testing.T) {
	store := setupTestStore(t)
	weaver := newTestWeaver(t, store, false)
	mustNode(t, store, "note-1")

	stats, err := weaver.Weave("note-1", "Morning block was pure tag-deep-work focus.")
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 0 {
		t.Errorf("Added = %d, want 0 when stub weaving is off", stats.Added)
	}
}

func TestWeaveTagsBlock(t *testing.T) {
	store := setupTestStore(t)
	weaver := newTestWeaver(t, store, false)
	mustNode(t, store, "note-1")
	mustNode(t, store, "Deep Work")
	mustNode(t, store, "Q3 Launch")

	content := "Body text.\n<!-- tags: [Strategy: Deep Work] [Project: Q3 Launch] [Quality: excellent] [#internal: hidden] -->\n"
	stats, err := weaver.Weave("note-1", content)
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 2 {
		t.Errorf("Added = %d, want 2", stats.Added)
	}
	if stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2 (quality and hash-prefixed keys)", stats.Skipped)
	}

	types := edgeTypes(t, store, "note-1")
	if types["STRATEGY"] != 1 || types["PROJECT"] != 1 {
		t.Errorf("edge types = %v, want STRATEGY and PROJECT", types)
	}
	if types["QUALITY"] != 0 {
		t.Error("quality key must never become an edge")
	}
}

func TestWeaveTagsBlockVerbatimTarget(t *testing.T) {
	store := setupTestStore(t)
	weaver := newTestWeaver(t, store, false)
	mustNode(t, store, "note-1")

	// Target does not exist yet. The edge is still written verbatim,
	// the validator reports it as dangling until the node appears.
	if _, err := weaver.Weave("note-1", "<!-- tags: [Theme: Unwritten Essay] -->"); err != nil {
		t.Fatalf("Weave failed: %v", err)
	}

	edges, err := store.GetEdges("note-1")
	if err != nil {
		t.Fatalf("GetEdges failed: %v", err)
	}
	if len(edges) != 1 || edges[0].Target != "Unwritten Essay" {
		t.Errorf("unexpected edges: %+v", edges)
	}

	dangling, err := store.OrphanEdgeCount()
	if err != nil {
		t.Fatalf("OrphanEdgeCount failed: %v", err)
	}
	if dangling != 1 {
		t.Errorf("dangling edges = %d, want 1", dangling)
	}
}

func TestWeaveWikilinks(t *testing.T) {
	store := setupTestStore(t)
	weaver := newTestWeaver(t, store, false)
	mustNode(t, store, "note-1")
	mustNode(t, store, "term-flow-state")

	content := "See [[Flow State]] and also [[Flow State|the zone]], but [[No Such Page]] is unknown."
	stats, err := weaver.Weave("note-1", content)
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 1 {
		t.Errorf("Added = %d, want 1", stats.Added)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 for the unresolved link", stats.Skipped)
	}
	if types := edgeTypes(t, store, "note-1"); types[TypeCites] != 1 {
		t.Errorf("edge types = %v, want one CITES", types)
	}
}

func TestWeaveSelfReferenceSkipped(t *testing.T) {
	store := setupTestStore(t)
	weaver := newTestWeaver(t, store, false)
	mustNode(t, store, "term-flow-state")

	stats, err := weaver.Weave("term-flow-state", "[Tag: Flow State]")
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 0 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want self-loop skipped", stats)
	}
}

func TestWeaveGateRejection(t *testing.T) {
	store := setupTestStore(t)
	gate := NewGate(store, 2, testLogger())
	weaver := NewEdgeWeaver(store, gate, testLexicon(), false, testLogger())

	mustNode(t, store, "term-flow-state")
	for i := 0; i < 3; i++ {
		spoke := fmt.Sprintf("spoke-%d", i)
		mustNode(t, store, spoke)
		mustEdge(t, store, spoke, "term-flow-state", TypeTaggedAs)
	}
	mustNode(t, store, "stranger")

	stats, err := weaver.Weave("stranger", "[Tag: Flow State]")
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Rejected != 1 || stats.Added != 0 {
		t.Errorf("stats = %+v, want one gate rejection", stats)
	}
}

func TestWeaveNoSignals(t *testing.T) {
	store := setupTestStore(t)
	weaver := newTestWeaver(t, store, true)
	mustNode(t, store, "note-1")

	stats, err := weaver.Weave("note-1", "Plain prose with no markers at all.")
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("stats = %+v, want zero", stats)
	}
}
