package storage

import (
	"testing"
)

func mustNode(t *testing.T, store *Store, id string) {
	t.Helper()
	if err := store.UpsertNode(&Node{ID: id, Type: "note"}); err != nil {
		t.Fatalf("upsert %s failed: %v", id, err)
	}
}

func mustEdge(t *testing.T, store *Store, source, target, edgeType string) {
	t.Helper()
	if _, err := store.InsertEdge(Edge{Source: source, Target: target, Type: edgeType}); err != nil {
		t.Fatalf("insert edge %s->%s failed: %v", source, target, err)
	}
}

func TestInsertEdgeIdempotent(t *testing.T) {
	store := setupTestStore(t)
	mustNode(t, store, "a")
	mustNode(t, store, "b")

	inserted, err := store.InsertEdge(Edge{Source: "a", Target: "b", Type: "CITES"})
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if !inserted {
		t.Error("first insert should report a new row")
	}

	inserted, err = store.InsertEdge(Edge{Source: "a", Target: "b", Type: "CITES"})
	if err != nil {
		t.Fatalf("second insert failed: %v", err)
	}
	if inserted {
		t.Error("duplicate insert should be ignored")
	}

	// Same endpoints under a different type is a distinct edge.
	inserted, err = store.InsertEdge(Edge{Source: "a", Target: "b", Type: "RELATED_TO"})
	if err != nil {
		t.Fatalf("typed insert failed: %v", err)
	}
	if !inserted {
		t.Error("different edge type should insert")
	}

	edges, err := store.GetEdges("a")
	if err != nil {
		t.Fatalf("GetEdges failed: %v", err)
	}
	if len(edges) != 2 {
		t.Errorf("got %d edges, want 2", len(edges))
	}
}

func TestInsertEdgeRejectsEmptyFields(t *testing.T) {
	store := setupTestStore(t)

	tests := []Edge{
		{Target: "b", Type: "CITES"},
		{Source: "a", Type: "CITES"},
		{Source: "a", Target: "b"},
	}
	for _, e := range tests {
		if _, err := store.InsertEdge(e); err == nil {
			t.Errorf("expected error for edge %+v", e)
		}
	}
}

func TestGetEdgesBothDirections(t *testing.T) {
	store := setupTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		mustNode(t, store, id)
	}
	mustEdge(t, store, "a", "b", "CITES")
	mustEdge(t, store, "c", "a", "SUCCEEDS")

	edges, err := store.GetEdges("a")
	if err != nil {
		t.Fatalf("GetEdges failed: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2 (outgoing and incoming)", len(edges))
	}
}

func TestNodeDegree(t *testing.T) {
	store := setupTestStore(t)
	for _, id := range []string{"hub", "x", "y", "z"} {
		mustNode(t, store, id)
	}
	mustEdge(t, store, "hub", "x", "CITES")
	mustEdge(t, store, "hub", "y", "CITES")
	mustEdge(t, store, "z", "hub", "CITES")

	degree, err := store.NodeDegree("hub")
	if err != nil {
		t.Fatalf("NodeDegree failed: %v", err)
	}
	if degree != 3 {
		t.Errorf("degree = %d, want 3", degree)
	}

	degree, err = store.NodeDegree("isolated")
	if err != nil {
		t.Fatalf("NodeDegree for isolated id failed: %v", err)
	}
	if degree != 0 {
		t.Errorf("degree = %d, want 0", degree)
	}
}

func TestSharedNeighbor(t *testing.T) {
	store := setupTestStore(t)
	for _, id := range []string{"a", "b", "m", "c", "d"} {
		mustNode(t, store, id)
	}
	// a and b share m; c and d share nothing.
	mustEdge(t, store, "a", "m", "CITES")
	mustEdge(t, store, "m", "b", "CITES")
	mustEdge(t, store, "c", "a", "CITES")

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"shared via middle node", "a", "b", true},
		{"direction does not matter", "b", "a", true},
		{"no common neighbor", "c", "d", false},
		{"direct edge is not a shared neighbor", "c", "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.SharedNeighbor(tt.a, tt.b)
			if err != nil {
				t.Fatalf("SharedNeighbor failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("SharedNeighbor(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestOrphanNodeIDs(t *testing.T) {
	store := setupTestStore(t)

	vec := []float32{1, 0, 0}
	nodes := []*Node{
		{ID: "connected", Type: "note", Embedding: vec},
		{ID: "orphan-2", Type: "note", Embedding: vec},
		{ID: "orphan-1", Type: "note", Embedding: vec},
		{ID: "no-vector", Type: "note"},
		{ID: "root", Type: NodeTypeRoot, Embedding: vec},
		{ID: "domain-experience", Type: NodeTypeDomain, Embedding: vec},
		{ID: "peer", Type: "note"},
	}
	for _, n := range nodes {
		if err := store.UpsertNode(n); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}
	mustEdge(t, store, "connected", "peer", "CITES")

	ids, err := store.OrphanNodeIDs()
	if err != nil {
		t.Fatalf("OrphanNodeIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "orphan-1" || ids[1] != "orphan-2" {
		t.Errorf("orphans = %v, want [orphan-1 orphan-2]", ids)
	}
}

func TestOrphanEdgeCount(t *testing.T) {
	store := setupTestStore(t)
	mustNode(t, store, "real")

	// Edges may reference ids that never became nodes; the validator
	// counts them.
	mustEdge(t, store, "real", "ghost", "TAGGED_AS")
	mustEdge(t, store, "phantom", "real", "CITES")

	count, err := store.OrphanEdgeCount()
	if err != nil {
		t.Fatalf("OrphanEdgeCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("orphan edges = %d, want 2", count)
	}

	mustNode(t, store, "ghost")
	count, err = store.OrphanEdgeCount()
	if err != nil {
		t.Fatalf("OrphanEdgeCount after repair failed: %v", err)
	}
	if count != 1 {
		t.Errorf("orphan edges = %d, want 1 after adding ghost", count)
	}
}
