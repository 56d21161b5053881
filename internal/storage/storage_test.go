package storage

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"polyvis/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Output: io.Discard})
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "graph.db"), testLogger())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenFreshStore(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("fresh store version = %d, want %d", version, currentSchemaVersion)
	}

	cols, err := store.tableColumns("nodes")
	if err != nil {
		t.Fatalf("tableColumns failed: %v", err)
	}
	for _, want := range []string{"id", "type", "title", "content", "domain", "layer", "embedding", "hash", "meta", "created_at"} {
		if !cols[want] {
			t.Errorf("nodes table missing column %q", want)
		}
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "graph.db")

	store, err := Open(dbPath, testLogger())
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := store.UpsertNode(&Node{ID: "n1", Type: "note", Content: "hello"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	store2, err := Open(dbPath, testLogger())
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer store2.Close()

	version, err := store2.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("reopened version = %d, want %d", version, currentSchemaVersion)
	}

	node, err := store2.GetNode("n1")
	if err != nil {
		t.Fatalf("GetNode after reopen failed: %v", err)
	}
	if node.Content != "hello" {
		t.Errorf("content = %q, want %q", node.Content, "hello")
	}
}

func TestLegacyDetection(t *testing.T) {
	tests := []struct {
		name      string
		extraCols string
	}{
		{"v1 base schema", ""},
		{"v2 with hash", ", hash TEXT"},
		{"v3 with hash and meta", ", hash TEXT, meta TEXT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), "legacy.db")

			// Build a pre-tracking database by hand: tables but no
			// user_version stamp.
			raw, err := sql.Open("sqlite", dbPath)
			if err != nil {
				t.Fatalf("raw open failed: %v", err)
			}
			stmts := []string{
				`CREATE TABLE nodes (
					id TEXT PRIMARY KEY, type TEXT NOT NULL, title TEXT, content TEXT,
					domain TEXT, layer TEXT, embedding BLOB, created_at TEXT NOT NULL` + tt.extraCols + `)`,
				`CREATE TABLE edges (
					source TEXT NOT NULL, target TEXT NOT NULL, type TEXT NOT NULL,
					created_at TEXT NOT NULL, PRIMARY KEY (source, target, type))`,
				`INSERT INTO nodes (id, type, content, created_at) VALUES ('old-1', 'note', 'legacy content', '2026-01-01T00:00:00Z')`,
			}
			for _, stmt := range stmts {
				if _, err := raw.Exec(stmt); err != nil {
					t.Fatalf("raw exec failed: %v", err)
				}
			}
			if err := raw.Close(); err != nil {
				t.Fatalf("raw close failed: %v", err)
			}

			store, err := Open(dbPath, testLogger())
			if err != nil {
				t.Fatalf("open legacy store failed: %v", err)
			}
			defer store.Close()

			version, err := store.SchemaVersion()
			if err != nil {
				t.Fatalf("SchemaVersion failed: %v", err)
			}
			if version != currentSchemaVersion {
				t.Errorf("migrated version = %d, want %d", version, currentSchemaVersion)
			}

			// Data must survive the migrations.
			node, err := store.GetNode("old-1")
			if err != nil {
				t.Fatalf("GetNode after migration failed: %v", err)
			}
			if node.Content != "legacy content" {
				t.Errorf("content = %q, want preserved", node.Content)
			}

			cols, err := store.tableColumns("nodes")
			if err != nil {
				t.Fatalf("tableColumns failed: %v", err)
			}
			if !cols["hash"] || !cols["meta"] {
				t.Error("migrated nodes table should carry hash and meta columns")
			}
		})
	}
}

func TestNewerSchemaRejected(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "future.db")

	store, err := Open(dbPath, testLogger())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := store.conn.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("stamping future version failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, err := Open(dbPath, testLogger()); err == nil {
		t.Fatal("expected error opening a database from a newer version")
	}
}

func TestStats(t *testing.T) {
	store := setupTestStore(t)

	nodes := []*Node{
		{ID: "a", Type: "note", Domain: DomainExperience, Embedding: []float32{1, 0}},
		{ID: "b", Type: "note", Domain: DomainExperience},
		{ID: "c", Type: "concept", Domain: DomainPersona},
	}
	for _, n := range nodes {
		if err := store.UpsertNode(n); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}
	if _, err := store.InsertEdge(Edge{Source: "a", Target: "b", Type: "RELATED_TO"}); err != nil {
		t.Fatalf("insert edge failed: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.Nodes != 3 {
		t.Errorf("Nodes = %d, want 3", stats.Nodes)
	}
	if stats.Edges != 1 {
		t.Errorf("Edges = %d, want 1", stats.Edges)
	}
	if stats.Vectors != 1 {
		t.Errorf("Vectors = %d, want 1", stats.Vectors)
	}
	if stats.SizeBytes <= 0 {
		t.Errorf("SizeBytes = %d, want > 0", stats.SizeBytes)
	}
	if stats.SchemaVersion != currentSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", stats.SchemaVersion, currentSchemaVersion)
	}
}

func TestCountByDomain(t *testing.T) {
	store := setupTestStore(t)

	nodes := []*Node{
		{ID: "e1", Type: "note", Domain: DomainExperience, Embedding: []float32{1}},
		{ID: "e2", Type: "note", Domain: DomainExperience},
		{ID: "p1", Type: "concept", Domain: DomainPersona},
	}
	for _, n := range nodes {
		if err := store.UpsertNode(n); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	total, err := store.CountByDomain(DomainExperience)
	if err != nil {
		t.Fatalf("CountByDomain failed: %v", err)
	}
	if total != 2 {
		t.Errorf("experience count = %d, want 2", total)
	}

	embedded, err := store.CountEmbeddedByDomain(DomainExperience)
	if err != nil {
		t.Fatalf("CountEmbeddedByDomain failed: %v", err)
	}
	if embedded != 1 {
		t.Errorf("embedded experience count = %d, want 1", embedded)
	}
}

func TestCheckpoint(t *testing.T) {
	store := setupTestStore(t)

	if err := store.UpsertNode(&Node{ID: "x", Type: "note", Content: "body"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := store.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	// Store stays usable after a checkpoint.
	if _, err := store.GetNode("x"); err != nil {
		t.Fatalf("GetNode after checkpoint failed: %v", err)
	}
}
