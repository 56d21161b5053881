package storage

import (
	"context"
	"fmt"
	"time"
)

// Edge is one directed relationship between two node ids.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// InsertEdge inserts an edge unless the same (source, target, type)
// triple already exists. Returns true when a new row was written.
func (s *Store) InsertEdge(edge Edge) (bool, error) {
	if edge.Source == "" || edge.Target == "" || edge.Type == "" {
		return false, fmt.Errorf("insert edge: empty source, target, or type")
	}

	res, err := s.conn.Exec(`
		INSERT OR IGNORE INTO edges (source, target, type, created_at)
		VALUES (?, ?, ?, ?)
	`, edge.Source, edge.Target, edge.Type, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to insert edge %s-[%s]->%s: %w", edge.Source, edge.Type, edge.Target, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetEdges returns all edges touching the given node id, in either
// direction.
func (s *Store) GetEdges(nodeID string) ([]Edge, error) {
	rows, err := s.conn.Query(`
		SELECT source, target, type FROM edges
		WHERE source = ? OR target = ?
		ORDER BY type, source, target
	`, nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Type); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// AllEdges returns every edge ordered deterministically.
func (s *Store) AllEdges(ctx context.Context) ([]Edge, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT source, target, type FROM edges
		ORDER BY source, target, type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Type); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// NodeDegree counts edges incident to the node in either direction.
func (s *Store) NodeDegree(nodeID string) (int, error) {
	var degree int
	err := s.conn.QueryRow(`
		SELECT COUNT(*) FROM edges WHERE source = ? OR target = ?
	`, nodeID, nodeID).Scan(&degree)
	if err != nil {
		return 0, fmt.Errorf("failed to count degree: %w", err)
	}
	return degree, nil
}

// SharedNeighbor reports whether a and b have at least one common
// neighbor, treating edges as undirected.
func (s *Store) SharedNeighbor(a, b string) (bool, error) {
	var exists int
	err := s.conn.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM (
				SELECT target AS n FROM edges WHERE source = ?1
				UNION
				SELECT source AS n FROM edges WHERE target = ?1
			)
			WHERE n IN (
				SELECT target FROM edges WHERE source = ?2
				UNION
				SELECT source FROM edges WHERE target = ?2
			)
			AND n NOT IN (?1, ?2)
		)
	`, a, b).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check shared neighbor: %w", err)
	}
	return exists == 1, nil
}

// OrphanNodeIDs returns embedded nodes with zero incident edges,
// excluding structural root and domain nodes. These are the semantic
// weaver's rescue candidates.
func (s *Store) OrphanNodeIDs() ([]string, error) {
	rows, err := s.conn.Query(`
		SELECT id FROM nodes
		WHERE embedding IS NOT NULL
		  AND type NOT IN (?, ?)
		  AND id NOT IN (SELECT source FROM edges)
		  AND id NOT IN (SELECT target FROM edges)
		ORDER BY id
	`, NodeTypeRoot, NodeTypeDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphan nodes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OrphanEdgeCount counts edges whose source or target is not a node.
func (s *Store) OrphanEdgeCount() (int, error) {
	var count int
	err := s.conn.QueryRow(`
		SELECT COUNT(*) FROM edges e
		WHERE e.source NOT IN (SELECT id FROM nodes)
		   OR e.target NOT IN (SELECT id FROM nodes)
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orphan edges: %w", err)
	}
	return count, nil
}
