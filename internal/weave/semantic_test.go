package weave

import (
	"context"
	"testing"

	"polyvis/internal/storage"
)

func mustEmbedded(t *testing.T, store *storage.Store, id, domain string, vec []float32) {
	t.Helper()
	node := &storage.Node{
		ID:        id,
		Type:      storage.NodeTypeConcept,
		Title:     id,
		Content:   "body of " + id,
		Domain:    domain,
		Embedding: vec,
	}
	if err := store.UpsertNode(node); err != nil {
		t.Fatalf("upsert %s failed: %v", id, err)
	}
}

func TestSemanticConnectsOrphan(t *testing.T) {
	store := setupTestStore(t)
	mustEmbedded(t, store, "orphan", storage.DomainExperience, []float32{1, 0, 0})
	mustEmbedded(t, store, "anchor", storage.DomainExperience, []float32{1, 0, 0})
	mustEmbedded(t, store, "offaxis", storage.DomainExperience, []float32{0, 1, 0})
	mustNode(t, store, "hub")
	mustEdge(t, store, "anchor", "hub", TypeCites)
	mustEdge(t, store, "offaxis", "hub", TypeCites)

	gate := NewGate(store, 50, testLogger())
	weaver := NewSemanticWeaver(store, gate, 0, testLogger())

	stats, err := weaver.Weave(context.Background())
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 1 {
		t.Errorf("Added = %d, want 1", stats.Added)
	}

	edges, err := store.GetEdges("orphan")
	if err != nil {
		t.Fatalf("GetEdges failed: %v", err)
	}
	if len(edges) != 1 || edges[0].Target != "anchor" || edges[0].Type != TypeRelatedTo {
		t.Errorf("unexpected edges: %+v", edges)
	}
}

func TestSemanticRespectsThreshold(t *testing.T) {
	store := setupTestStore(t)
	// cos(orphan, weak) = 0.8, below the default cutoff.
	mustEmbedded(t, store, "orphan", storage.DomainExperience, []float32{1, 0, 0})
	mustEmbedded(t, store, "weak", storage.DomainExperience, []float32{0.8, 0.6, 0})
	mustNode(t, store, "hub")
	mustEdge(t, store, "weak", "hub", TypeCites)

	gate := NewGate(store, 50, testLogger())

	stats, err := NewSemanticWeaver(store, gate, 0, testLogger()).Weave(context.Background())
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 0 || stats.Skipped != 1 {
		t.Errorf("default threshold stats = %+v, want the weak match skipped", stats)
	}

	stats, err = NewSemanticWeaver(store, gate, 0.75, testLogger()).Weave(context.Background())
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 1 {
		t.Errorf("lowered threshold stats = %+v, want the weak match connected", stats)
	}
}

func TestSemanticOnlyConsidersExperienceDomain(t *testing.T) {
	store := setupTestStore(t)
	mustEmbedded(t, store, "orphan", storage.DomainExperience, []float32{1, 0, 0})
	mustEmbedded(t, store, "persona-twin", storage.DomainPersona, []float32{1, 0, 0})
	mustNode(t, store, "hub")
	mustEdge(t, store, "persona-twin", "hub", TypeCites)

	gate := NewGate(store, 50, testLogger())
	stats, err := NewSemanticWeaver(store, gate, 0, testLogger()).Weave(context.Background())
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 0 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want persona twin ignored", stats)
	}
}

func TestSemanticGateStillApplies(t *testing.T) {
	store := setupTestStore(t)
	mustEmbedded(t, store, "orphan", storage.DomainExperience, []float32{1, 0, 0})
	mustEmbedded(t, store, "anchor", storage.DomainExperience, []float32{1, 0, 0})
	for _, spoke := range []string{"s1", "s2", "s3"} {
		mustNode(t, store, spoke)
		mustEdge(t, store, "anchor", spoke, TypeCites)
	}

	gate := NewGate(store, 2, testLogger())
	stats, err := NewSemanticWeaver(store, gate, 0, testLogger()).Weave(context.Background())
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Rejected != 1 || stats.Added != 0 {
		t.Errorf("stats = %+v, want the super-node edge rejected", stats)
	}
}

func TestSemanticSecondRunFindsNothing(t *testing.T) {
	store := setupTestStore(t)
	mustEmbedded(t, store, "orphan", storage.DomainExperience, []float32{1, 0, 0})
	mustEmbedded(t, store, "anchor", storage.DomainExperience, []float32{1, 0, 0})
	mustNode(t, store, "hub")
	mustEdge(t, store, "anchor", "hub", TypeCites)

	gate := NewGate(store, 50, testLogger())
	weaver := NewSemanticWeaver(store, gate, 0, testLogger())

	if _, err := weaver.Weave(context.Background()); err != nil {
		t.Fatalf("first Weave failed: %v", err)
	}
	stats, err := weaver.Weave(context.Background())
	if err != nil {
		t.Fatalf("second Weave failed: %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("second run stats = %+v, want zero (orphan is connected now)", stats)
	}
}
