// Package weave emits graph edges from explicit content signals and
// post-ingest passes, with a local-modularity gate deciding admission.
package weave

import (
	"fmt"

	"polyvis/internal/logging"
	"polyvis/internal/storage"
)

// Edge types emitted by the weavers. The tags block can introduce
// further custom uppercase labels.
const (
	TypeTaggedAs    = "TAGGED_AS"
	TypeExemplifies = "EXEMPLIFIES"
	TypeCites       = "CITES"
	TypeSucceeds    = "SUCCEEDS"
	TypeRelatedTo   = "RELATED_TO"
)

// Gate suppresses edges that would attach arbitrary nodes to hubs and
// degrade community structure. An edge to a super-node (degree over
// the threshold) is admitted only when source and target already share
// a neighbor.
type Gate struct {
	store     *storage.Store
	threshold int
	logger    *logging.Logger
}

// NewGate builds a gate. A threshold of zero or below falls back to 50.
func NewGate(store *storage.Store, threshold int, logger *logging.Logger) *Gate {
	if threshold <= 0 {
		threshold = 50
	}
	return &Gate{store: store, threshold: threshold, logger: logger}
}

// Check reports whether an edge from source to target may be inserted.
// The reason is non-empty only on rejection.
func (g *Gate) Check(source, target string) (bool, string, error) {
	degree, err := g.store.NodeDegree(target)
	if err != nil {
		return false, "", err
	}
	if degree <= g.threshold {
		return true, "", nil
	}

	shared, err := g.store.SharedNeighbor(source, target)
	if err != nil {
		return false, "", err
	}
	if shared {
		return true, "", nil
	}

	reason := fmt.Sprintf("target %s is a super-node (degree %d > %d) with no shared neighbor", target, degree, g.threshold)
	g.logger.Debug("edge rejected by modularity gate", logging.Fields{
		"source": source,
		"target": target,
		"reason": reason,
	})
	return false, reason, nil
}

// Threshold returns the configured super-node degree limit.
func (g *Gate) Threshold() int { return g.threshold }
