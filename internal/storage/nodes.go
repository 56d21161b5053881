package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Node domains group the graph into its ontology and corpus halves.
const (
	DomainPersona    = "persona"
	DomainExperience = "experience"
)

// Node layers describe where a node sits in the stack.
const (
	LayerOntology   = "ontology"
	LayerDirective  = "directive"
	LayerNote       = "note"
	LayerExperience = "experience"
)

// Node types with dedicated pipeline behavior. Experience nodes carry
// the type of their source directory (playbook, debrief, note, ...).
const (
	NodeTypeConcept   = "concept"
	NodeTypeDirective = "directive"
	NodeTypeDocument  = "document"
	NodeTypeDebrief   = "debrief"
	NodeTypeRoot      = "root"
	NodeTypeDomain    = "domain"
)

// Node is one vertex of the knowledge graph.
type Node struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	Domain    string                 `json:"domain"`
	Layer     string                 `json:"layer"`
	Embedding []float32              `json:"-"`
	Hash      string                 `json:"hash,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

// LexiconEntry is the slice of a concept node the tokenizer needs.
type LexiconEntry struct {
	ID    string
	Title string
	Meta  map[string]interface{}
}

// UpsertNode writes a node, replacing any previous row with the same id.
func (s *Store) UpsertNode(node *Node) error {
	if node.ID == "" {
		return fmt.Errorf("upsert node: empty id")
	}

	var metaJSON interface{}
	if len(node.Meta) > 0 {
		data, err := json.Marshal(node.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal node meta: %w", err)
		}
		metaJSON = string(data)
	}

	var embedding []byte
	if node.Embedding != nil {
		embedding = Pack(node.Embedding)
	}

	createdAt := node.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO nodes (id, type, title, content, domain, layer, embedding, hash, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, node.ID, node.Type, node.Title, node.Content, node.Domain, node.Layer, embedding, node.Hash, metaJSON, createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert node %s: %w", node.ID, err)
	}
	return nil
}

// GetNode fetches a single node by id. Returns sql.ErrNoRows when absent.
func (s *Store) GetNode(id string) (*Node, error) {
	row := s.conn.QueryRow(`
		SELECT id, type, title, content, domain, layer, embedding, hash, meta, created_at
		FROM nodes WHERE id = ?
	`, id)
	return scanNode(row)
}

// GetNodesByType returns all nodes of the given type.
func (s *Store) GetNodesByType(nodeType string) ([]*Node, error) {
	rows, err := s.conn.Query(`
		SELECT id, type, title, content, domain, layer, embedding, hash, meta, created_at
		FROM nodes WHERE type = ? ORDER BY id
	`, nodeType)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes by type: %w", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// AllNodes returns every node ordered by id. Export-sized reads only;
// everything else should query by id, type, or FTS.
func (s *Store) AllNodes(ctx context.Context) ([]*Node, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, type, title, content, domain, layer, embedding, hash, meta, created_at
		FROM nodes ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// GetNodeHash returns the stored content hash for id, or "" when the
// node does not exist.
func (s *Store) GetNodeHash(id string) (string, error) {
	var hash sql.NullString
	err := s.conn.QueryRow("SELECT hash FROM nodes WHERE id = ?", id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read node hash: %w", err)
	}
	return hash.String, nil
}

// GetLexicon returns the concept nodes that seed the tokenizer
// vocabulary: id, title, and meta only.
func (s *Store) GetLexicon() ([]LexiconEntry, error) {
	rows, err := s.conn.Query(`
		SELECT id, title, meta FROM nodes WHERE type = ? ORDER BY id
	`, NodeTypeConcept)
	if err != nil {
		return nil, fmt.Errorf("failed to query lexicon: %w", err)
	}
	defer rows.Close()

	var entries []LexiconEntry
	for rows.Next() {
		var (
			entry LexiconEntry
			title sql.NullString
			meta  sql.NullString
		)
		if err := rows.Scan(&entry.ID, &title, &meta); err != nil {
			return nil, err
		}
		entry.Title = title.String
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &entry.Meta); err != nil {
				return nil, fmt.Errorf("failed to parse meta for %s: %w", entry.ID, err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DuplicateIDCount counts node ids that appear more than once. The id
// primary key should keep this at zero; the validator checks anyway.
func (s *Store) DuplicateIDCount() (int, error) {
	var count int
	err := s.conn.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT id FROM nodes GROUP BY id HAVING COUNT(*) > 1
		)
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count duplicate ids: %w", err)
	}
	return count, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*Node, error) {
	var (
		node      Node
		title     sql.NullString
		content   sql.NullString
		domain    sql.NullString
		layer     sql.NullString
		embedding []byte
		hash      sql.NullString
		meta      sql.NullString
	)

	err := row.Scan(&node.ID, &node.Type, &title, &content, &domain, &layer, &embedding, &hash, &meta, &node.CreatedAt)
	if err != nil {
		return nil, err
	}

	node.Title = title.String
	node.Content = content.String
	node.Domain = domain.String
	node.Layer = layer.String
	node.Hash = hash.String

	if len(embedding) > 0 {
		node.Embedding = Unpack(embedding)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &node.Meta); err != nil {
			return nil, fmt.Errorf("failed to parse meta for %s: %w", node.ID, err)
		}
	}

	return &node, nil
}
