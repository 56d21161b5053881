package weave

import (
	"testing"
	"time"

	"polyvis/internal/storage"
)

func mustDebrief(t *testing.T, store *storage.Store, id string, meta map[string]interface{}) {
	t.Helper()
	node := &storage.Node{
		ID:      id,
		Type:    storage.NodeTypeDebrief,
		Title:   id,
		Content: "debrief " + id,
		Domain:  storage.DomainExperience,
		Meta:    meta,
	}
	if err := store.UpsertNode(node); err != nil {
		t.Fatalf("upsert %s failed: %v", id, err)
	}
}

func succeedsPairs(t *testing.T, store *storage.Store, ids []string) map[string]string {
	t.Helper()
	pairs := make(map[string]string)
	for _, id := range ids {
		edges, err := store.GetEdges(id)
		if err != nil {
			t.Fatalf("GetEdges failed: %v", err)
		}
		for _, e := range edges {
			if e.Type == TypeSucceeds {
				pairs[e.Source] = e.Target
			}
		}
	}
	return pairs
}

func TestTimelineChainsByMetaDate(t *testing.T) {
	store := setupTestStore(t)
	mustDebrief(t, store, "first", map[string]interface{}{"date": "2026-01-01"})
	mustDebrief(t, store, "second", map[string]interface{}{"date": "2026-01-02"})
	mustDebrief(t, store, "third", map[string]interface{}{"date": "2026-01-03"})

	stats, err := NewTimelineWeaver(store, testLogger()).Weave()
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 2 {
		t.Errorf("Added = %d, want 2", stats.Added)
	}

	pairs := succeedsPairs(t, store, []string{"first", "second", "third"})
	if pairs["third"] != "second" || pairs["second"] != "first" {
		t.Errorf("chain = %v, want third->second->first", pairs)
	}
	if _, ok := pairs["first"]; ok {
		t.Error("oldest debrief must not succeed anything")
	}
}

func TestTimelineNormalizesTimestampDates(t *testing.T) {
	store := setupTestStore(t)
	// YAML bare dates arrive as time.Time and leave storage as
	// RFC3339 strings. Both must sort against plain dates.
	mustDebrief(t, store, "typed", map[string]interface{}{"date": time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)})
	mustDebrief(t, store, "plain", map[string]interface{}{"date": "2026-04-01"})
	mustDebrief(t, store, "stamped", map[string]interface{}{"date": "2026-04-03T09:30:00Z"})

	stats, err := NewTimelineWeaver(store, testLogger()).Weave()
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 2 {
		t.Errorf("Added = %d, want 2", stats.Added)
	}

	pairs := succeedsPairs(t, store, []string{"typed", "plain", "stamped"})
	if pairs["stamped"] != "typed" || pairs["typed"] != "plain" {
		t.Errorf("chain = %v, want stamped->typed->plain", pairs)
	}
}

func TestTimelineFilenameDateFallback(t *testing.T) {
	store := setupTestStore(t)
	mustDebrief(t, store, "from-file", map[string]interface{}{"source": "journal/2026-02-10-retro.md"})
	mustDebrief(t, store, "from-meta", map[string]interface{}{"date": "2026-02-11"})

	stats, err := NewTimelineWeaver(store, testLogger()).Weave()
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Added != 1 {
		t.Errorf("Added = %d, want 1", stats.Added)
	}

	pairs := succeedsPairs(t, store, []string{"from-file", "from-meta"})
	if pairs["from-meta"] != "from-file" {
		t.Errorf("chain = %v, want from-meta->from-file", pairs)
	}
}

func TestTimelineSkipsUndated(t *testing.T) {
	store := setupTestStore(t)
	mustDebrief(t, store, "dated-1", map[string]interface{}{"date": "2026-05-01"})
	mustDebrief(t, store, "dated-2", map[string]interface{}{"date": "2026-05-02"})
	mustDebrief(t, store, "undated", map[string]interface{}{"source": "notes/reflections.md"})

	stats, err := NewTimelineWeaver(store, testLogger()).Weave()
	if err != nil {
		t.Fatalf("Weave failed: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
	if stats.Added != 1 {
		t.Errorf("Added = %d, want 1", stats.Added)
	}

	edges, err := store.GetEdges("undated")
	if err != nil {
		t.Fatalf("GetEdges failed: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("undated debrief should stay out of the chain, got %+v", edges)
	}
}

func TestTimelineTieBreaksByID(t *testing.T) {
	store := setupTestStore(t)
	mustDebrief(t, store, "beta", map[string]interface{}{"date": "2026-03-01"})
	mustDebrief(t, store, "alpha", map[string]interface{}{"date": "2026-03-01"})

	if _, err := NewTimelineWeaver(store, testLogger()).Weave(); err != nil {
		t.Fatalf("Weave failed: %v", err)
	}

	pairs := succeedsPairs(t, store, []string{"alpha", "beta"})
	if pairs["alpha"] != "beta" {
		t.Errorf("chain = %v, want alpha->beta on equal dates", pairs)
	}
}

func TestTimelineIdempotent(t *testing.T) {
	store := setupTestStore(t)
	mustDebrief(t, store, "one", map[string]interface{}{"date": "2026-06-01"})
	mustDebrief(t, store, "two", map[string]interface{}{"date": "2026-06-02"})

	weaver := NewTimelineWeaver(store, testLogger())
	if _, err := weaver.Weave(); err != nil {
		t.Fatalf("first Weave failed: %v", err)
	}
	stats, err := weaver.Weave()
	if err != nil {
		t.Fatalf("second Weave failed: %v", err)
	}
	if stats.Added != 0 {
		t.Errorf("second run Added = %d, want 0", stats.Added)
	}
}

func TestTimelineTooFewDebriefs(t *testing.T) {
	store := setupTestStore(t)

	stats, err := NewTimelineWeaver(store, testLogger()).Weave()
	if err != nil {
		t.Fatalf("Weave on empty store failed: %v", err)
	}
	if stats.Added != 0 {
		t.Errorf("Added = %d, want 0", stats.Added)
	}

	mustDebrief(t, store, "solo", map[string]interface{}{"date": "2026-07-01"})
	stats, err = NewTimelineWeaver(store, testLogger()).Weave()
	if err != nil {
		t.Fatalf("Weave with one debrief failed: %v", err)
	}
	if stats.Added != 0 {
		t.Errorf("single debrief Added = %d, want 0", stats.Added)
	}
}
