package storage

import (
	"fmt"
)

// Stats summarizes the store for status output and validation.
type Stats struct {
	Nodes         int   `json:"nodes"`
	Edges         int   `json:"edges"`
	Vectors       int   `json:"vectors"`
	SizeBytes     int64 `json:"sizeBytes"`
	SchemaVersion int   `json:"schemaVersion"`
}

// Stats counts nodes, edges, and stored vectors, and estimates the
// database size from page_count and page_size.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM nodes", &stats.Nodes},
		{"SELECT COUNT(*) FROM edges", &stats.Edges},
		{"SELECT COUNT(*) FROM nodes WHERE embedding IS NOT NULL", &stats.Vectors},
	}
	for _, c := range counts {
		if err := s.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to collect stats: %w", err)
		}
	}

	var pageCount, pageSize int64
	if err := s.conn.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("failed to read page_count: %w", err)
	}
	if err := s.conn.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("failed to read page_size: %w", err)
	}
	stats.SizeBytes = pageCount * pageSize

	version, err := s.schemaVersion()
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version

	return stats, nil
}

// CountByDomain counts nodes in one domain.
func (s *Store) CountByDomain(domain string) (int, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM nodes WHERE domain = ?", domain).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count domain nodes: %w", err)
	}
	return count, nil
}

// CountEmbeddedByDomain counts nodes in one domain that carry a vector.
func (s *Store) CountEmbeddedByDomain(domain string) (int, error) {
	var count int
	err := s.conn.QueryRow(
		"SELECT COUNT(*) FROM nodes WHERE domain = ? AND embedding IS NOT NULL", domain,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count embedded domain nodes: %w", err)
	}
	return count, nil
}
