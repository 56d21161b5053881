package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Embeddings are stored as flat little-endian float32 blobs,
// L2-normalized before packing so a dot product is cosine similarity.

// Normalize returns an L2-normalized copy of vec. Vectors with a norm
// at or below 1e-6 are returned unchanged so zero vectors stay zero.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(vec))
	if norm <= 1e-6 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// Pack encodes a float32 vector as a little-endian byte blob.
func Pack(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Unpack decodes a little-endian byte blob into a float32 vector.
// Trailing bytes that do not fill a float32 are ignored.
func Unpack(data []byte) []float32 {
	n := len(data) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}

// Dot computes the dot product of two equal-length vectors.
// Accumulation runs in float64 to limit rounding drift.
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// SimilarityHit is one result of a vector scan.
type SimilarityHit struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// FindSimilar scans every stored embedding and returns the limit
// highest dot-product matches, optionally filtered to one domain.
// The scan is brute force; corpus sizes here do not justify an index.
func (s *Store) FindSimilar(ctx context.Context, query []float32, limit int, domain string) ([]SimilarityHit, error) {
	if limit <= 0 {
		limit = 10
	}

	stmt := "SELECT id, embedding FROM nodes WHERE embedding IS NOT NULL"
	args := []interface{}{}
	if domain != "" {
		stmt += " AND domain = ?"
		args = append(args, domain)
	}

	rows, err := s.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan embeddings: %w", err)
	}
	defer rows.Close()

	var hits []SimilarityHit
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}

		vec := Unpack(blob)
		if len(vec) != len(query) {
			// Dimension drift from an older model; not comparable.
			continue
		}

		hits = append(hits, SimilarityHit{ID: id, Score: Dot(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
