// Full-text search over the nodes table via the nodes_fts FTS5 index.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// TextHit is one FTS match. Rank is the raw bm25 score, where more
// negative means more relevant.
type TextHit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Rank    float64 `json:"rank"`
}

// SearchText runs a bm25-ranked FTS5 query over titles, content, and
// meta. The raw query is sanitized into an OR of quoted words so user
// input can never break MATCH syntax.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]TextHit, error) {
	if limit <= 0 {
		limit = 10
	}

	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	// Weights: id is unindexed, title and meta count more than body text.
	rows, err := s.conn.QueryContext(ctx, `
		SELECT
			f.id,
			n.title,
			snippet(nodes_fts, 2, '', '', '…', 16) AS snip,
			bm25(nodes_fts, 0, 5.0, 1.0, 3.0) AS rank
		FROM nodes_fts f
		JOIN nodes n ON n.id = f.id
		WHERE nodes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, sanitized, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search text: %w", err)
	}
	defer rows.Close()

	var hits []TextHit
	for rows.Next() {
		var (
			hit   TextHit
			title *string
		)
		if err := rows.Scan(&hit.ID, &title, &hit.Snippet, &hit.Rank); err != nil {
			return nil, err
		}
		if title != nil {
			hit.Title = *title
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// RebuildSearchIndex repopulates nodes_fts from the nodes table.
// Useful after bulk edits made outside the triggers.
func (s *Store) RebuildSearchIndex(ctx context.Context) error {
	return s.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM nodes_fts"); err != nil {
			return fmt.Errorf("failed to clear search index: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO nodes_fts(id, title, content, meta)
			SELECT id, title, content, meta FROM nodes
		`); err != nil {
			return fmt.Errorf("failed to repopulate search index: %w", err)
		}
		return nil
	})
}

// OptimizeSearchIndex merges the FTS b-tree segments.
func (s *Store) OptimizeSearchIndex(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, "INSERT INTO nodes_fts(nodes_fts) VALUES('optimize')")
	return err
}

// sanitizeFTSQuery turns arbitrary user input into a safe FTS5 MATCH
// expression: strip operator characters, quote each word, OR-join.
func sanitizeFTSQuery(query string) string {
	replacer := strings.NewReplacer(
		`"`, " ",
		`*`, " ",
		`(`, " ",
		`)`, " ",
		`^`, " ",
		`:`, " ",
		`-`, " ",
		`{`, " ",
		`}`, " ",
		`[`, " ",
		`]`, " ",
		`+`, " ",
	)
	cleaned := replacer.Replace(query)

	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return ""
	}
	// Cap the term count so pathological queries stay cheap.
	if len(words) > 12 {
		words = words[:12]
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + w + `"`
	}
	return strings.Join(quoted, " OR ")
}
