package weave

import (
	"context"

	"polyvis/internal/logging"
	"polyvis/internal/storage"
)

const semanticCandidates = 3

// SemanticWeaver connects orphaned nodes to their nearest embedded
// neighbor. It only proposes edges, the gate still decides.
type SemanticWeaver struct {
	store     *storage.Store
	gate      *Gate
	threshold float32
	logger    *logging.Logger
}

// NewSemanticWeaver builds a weaver. threshold is the minimum cosine
// similarity a candidate must clear; zero and below falls back to 0.85.
func NewSemanticWeaver(store *storage.Store, gate *Gate, threshold float32, logger *logging.Logger) *SemanticWeaver {
	if threshold <= 0 {
		threshold = 0.85
	}
	return &SemanticWeaver{store: store, gate: gate, threshold: threshold, logger: logger}
}

// Weave finds every embedded orphan and links it to its single best
// experience-domain neighbor above the threshold. Orphans with no
// strong neighbor stay orphans, the validator reports them.
func (s *SemanticWeaver) Weave(ctx context.Context) (Stats, error) {
	var stats Stats

	orphans, err := s.store.OrphanNodeIDs()
	if err != nil {
		return stats, err
	}

	for _, id := range orphans {
		node, err := s.store.GetNode(id)
		if err != nil {
			return stats, err
		}
		if node == nil || len(node.Embedding) == 0 {
			stats.Skipped++
			continue
		}

		hits, err := s.store.FindSimilar(ctx, node.Embedding, semanticCandidates, storage.DomainExperience)
		if err != nil {
			return stats, err
		}

		best, ok := bestMatch(id, hits, s.threshold)
		if !ok {
			stats.Skipped++
			continue
		}

		allowed, reason, err := s.gate.Check(id, best.ID)
		if err != nil {
			return stats, err
		}
		if !allowed {
			stats.Rejected++
			s.logger.Debug("semantic edge rejected", logging.Fields{
				"source": id,
				"reason": reason,
			})
			continue
		}

		inserted, err := s.store.InsertEdge(storage.Edge{
			Source: id,
			Target: best.ID,
			Type:   TypeRelatedTo,
		})
		if err != nil {
			return stats, err
		}
		if inserted {
			stats.Added++
			s.logger.Debug("orphan connected", logging.Fields{
				"source": id,
				"target": best.ID,
				"score":  best.Score,
			})
		}
	}

	return stats, nil
}

// bestMatch picks the highest hit that clears the threshold and is not
// the node itself.
func bestMatch(selfID string, hits []storage.SimilarityHit, threshold float32) (storage.SimilarityHit, bool) {
	for _, hit := range hits {
		if hit.ID == selfID {
			continue
		}
		if hit.Score <= threshold {
			continue
		}
		return hit, true
	}
	return storage.SimilarityHit{}, false
}
