package storage

import (
	"testing"
)

func ftsRowCount(t *testing.T, store *Store) int {
	t.Helper()
	var n int
	if err := store.conn.QueryRow("SELECT COUNT(*) FROM nodes_fts").Scan(&n); err != nil {
		t.Fatalf("counting nodes_fts failed: %v", err)
	}
	return n
}

func TestUpsertAndGetNode(t *testing.T) {
	store := setupTestStore(t)

	node := &Node{
		ID:      "box-1",
		Type:    "note",
		Title:   "First Box",
		Content: "# First Box\n\nSome body text.",
		Domain:  DomainExperience,
		Layer:   LayerNote,
		Hash:    "abc123",
		Meta:    map[string]interface{}{"date": "2026-02-14", "source": "debrief.md"},
	}
	if err := store.UpsertNode(node); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}

	got, err := store.GetNode("box-1")
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if got.Title != node.Title {
		t.Errorf("Title = %q, want %q", got.Title, node.Title)
	}
	if got.Content != node.Content {
		t.Errorf("Content = %q, want %q", got.Content, node.Content)
	}
	if got.Domain != DomainExperience || got.Layer != LayerNote {
		t.Errorf("Domain/Layer = %q/%q, want %q/%q", got.Domain, got.Layer, DomainExperience, LayerNote)
	}
	if got.Hash != "abc123" {
		t.Errorf("Hash = %q, want %q", got.Hash, "abc123")
	}
	if got.Meta["date"] != "2026-02-14" || got.Meta["source"] != "debrief.md" {
		t.Errorf("Meta = %v, want date and source preserved", got.Meta)
	}
	if got.CreatedAt == "" {
		t.Error("CreatedAt should be stamped on insert")
	}
}

func TestUpsertNodeRejectsEmptyID(t *testing.T) {
	store := setupTestStore(t)

	if err := store.UpsertNode(&Node{Type: "note"}); err == nil {
		t.Fatal("expected error for node without id")
	}
}

func TestUpsertReplacesWithoutDuplicating(t *testing.T) {
	store := setupTestStore(t)

	if err := store.UpsertNode(&Node{ID: "n", Type: "note", Title: "old", Content: "first version"}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := store.UpsertNode(&Node{ID: "n", Type: "note", Title: "new", Content: "second version"}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := store.GetNode("n")
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if got.Title != "new" || got.Content != "second version" {
		t.Errorf("node not replaced: title=%q content=%q", got.Title, got.Content)
	}

	dupes, err := store.DuplicateIDCount()
	if err != nil {
		t.Fatalf("DuplicateIDCount failed: %v", err)
	}
	if dupes != 0 {
		t.Errorf("DuplicateIDCount = %d, want 0", dupes)
	}

	// The search index mirror must track the replace, not grow.
	if n := ftsRowCount(t, store); n != 1 {
		t.Errorf("nodes_fts rows = %d, want 1 after replace", n)
	}
}

func TestSearchIndexMirrorsNodeTable(t *testing.T) {
	store := setupTestStore(t)

	for _, n := range []*Node{
		{ID: "a", Type: "note", Content: "alpha"},
		{ID: "b", Type: "note", Content: "beta"},
		{ID: "c", Type: "note", Content: "gamma"},
	} {
		if err := store.UpsertNode(n); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}
	if err := store.UpsertNode(&Node{ID: "b", Type: "note", Content: "beta revised"}); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if _, err := store.conn.Exec("DELETE FROM nodes WHERE id = 'c'"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var nodes int
	if err := store.conn.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&nodes); err != nil {
		t.Fatalf("counting nodes failed: %v", err)
	}
	if fts := ftsRowCount(t, store); fts != nodes {
		t.Errorf("nodes_fts rows = %d, nodes rows = %d, want equal", fts, nodes)
	}
}

func TestGetNodesByType(t *testing.T) {
	store := setupTestStore(t)

	for _, n := range []*Node{
		{ID: "c2", Type: NodeTypeConcept, Title: "Kubernetes"},
		{ID: "c1", Type: NodeTypeConcept, Title: "Terraform"},
		{ID: "x1", Type: "note", Title: "not a concept"},
	} {
		if err := store.UpsertNode(n); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	got, err := store.GetNodesByType(NodeTypeConcept)
	if err != nil {
		t.Fatalf("GetNodesByType failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d concepts, want 2", len(got))
	}
	// Ordered by id for stable output.
	if got[0].ID != "c1" || got[1].ID != "c2" {
		t.Errorf("order = [%s %s], want [c1 c2]", got[0].ID, got[1].ID)
	}
}

func TestGetNodeHash(t *testing.T) {
	store := setupTestStore(t)

	if err := store.UpsertNode(&Node{ID: "h1", Type: "note", Hash: "deadbeef"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	hash, err := store.GetNodeHash("h1")
	if err != nil {
		t.Fatalf("GetNodeHash failed: %v", err)
	}
	if hash != "deadbeef" {
		t.Errorf("hash = %q, want %q", hash, "deadbeef")
	}

	// Unknown ids report no hash rather than an error, so callers can
	// treat a miss as "content changed".
	hash, err = store.GetNodeHash("missing")
	if err != nil {
		t.Fatalf("GetNodeHash for missing id failed: %v", err)
	}
	if hash != "" {
		t.Errorf("hash for missing id = %q, want empty", hash)
	}
}

func TestGetLexicon(t *testing.T) {
	store := setupTestStore(t)

	entries := []*Node{
		{ID: "kubernetes", Type: NodeTypeConcept, Title: "Kubernetes", Meta: map[string]interface{}{"tag": "Protocol"}},
		{ID: "consensus", Type: NodeTypeConcept, Title: "Consensus"},
		{ID: "note-1", Type: "note", Title: "ignored"},
	}
	for _, n := range entries {
		if err := store.UpsertNode(n); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	lexicon, err := store.GetLexicon()
	if err != nil {
		t.Fatalf("GetLexicon failed: %v", err)
	}
	if len(lexicon) != 2 {
		t.Fatalf("lexicon size = %d, want 2", len(lexicon))
	}
	byID := make(map[string]LexiconEntry, len(lexicon))
	for _, e := range lexicon {
		byID[e.ID] = e
	}
	if byID["kubernetes"].Title != "Kubernetes" {
		t.Errorf("kubernetes title = %q", byID["kubernetes"].Title)
	}
	if byID["kubernetes"].Meta["tag"] != "Protocol" {
		t.Errorf("kubernetes tag = %q, want Protocol", byID["kubernetes"].Meta["tag"])
	}
	if _, ok := byID["note-1"]; ok {
		t.Error("non-concept node leaked into lexicon")
	}
}

func TestGetNodeNotFound(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.GetNode("nope"); err == nil {
		t.Fatal("expected error for unknown node id")
	}
}
