package weave

import (
	"regexp"
	"strings"

	"polyvis/internal/logging"
	"polyvis/internal/storage"
	"polyvis/internal/tokenizer"
)

// Content signals the weaver reads. Strict mode: only explicit markers
// produce edges, never fuzzy inference.
var (
	inlineTagPattern = regexp.MustCompile(`(?i)\[tag:\s*([^\]]+)\]`)
	// StubPattern matches legacy tag-<slug> stubs; harvest reuses it
	// to report stubs that resolve nowhere.
	StubPattern      = regexp.MustCompile(`\btag-([a-z0-9][a-z0-9-]*)\b`)
	tagsBlockPattern = regexp.MustCompile(`<!-- tags:([^>]*)-->`)
	tagPairPattern   = regexp.MustCompile(`\[([^:\[\]]+):\s*([^\]]+)\]`)
	wikiLinkPattern  = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]*)?\]\]`)
)

// Stats counts one weaving pass.
type Stats struct {
	Added    int
	Rejected int
	Skipped  int
}

// EdgeWeaver scans box content for explicit relationship signals and
// inserts the edges the gate admits.
type EdgeWeaver struct {
	store          *storage.Store
	gate           *Gate
	lexicon        *tokenizer.Index
	exemplifyStubs bool
	logger         *logging.Logger
}

// NewEdgeWeaver builds a weaver. exemplifyStubs controls whether legacy
// tag-<slug> stubs still emit EXEMPLIFIES edges.
func NewEdgeWeaver(store *storage.Store, gate *Gate, lexicon *tokenizer.Index, exemplifyStubs bool, logger *logging.Logger) *EdgeWeaver {
	return &EdgeWeaver{
		store:          store,
		gate:           gate,
		lexicon:        lexicon,
		exemplifyStubs: exemplifyStubs,
		logger:         logger,
	}
}

// Weave extracts every explicit signal from content and emits edges
// from sourceID. Unresolvable references are skipped silently: no
// ghost edges from typos.
func (w *EdgeWeaver) Weave(sourceID, content string) (Stats, error) {
	var stats Stats

	// Inline [Tag: Concept-Name] markers.
	for _, m := range inlineTagPattern.FindAllStringSubmatch(content, -1) {
		slug := tokenizer.Slugify(m[1])
		conceptID, ok := w.lexicon.Resolve(slug)
		if !ok {
			stats.Skipped++
			continue
		}
		if err := w.emit(&stats, sourceID, conceptID, TypeTaggedAs); err != nil {
			return stats, err
		}
	}

	// Legacy tag-<slug> stubs.
	if w.exemplifyStubs {
		for _, m := range StubPattern.FindAllStringSubmatch(content, -1) {
			conceptID, ok := w.lexicon.Resolve(m[1])
			if !ok {
				stats.Skipped++
				continue
			}
			if err := w.emit(&stats, sourceID, conceptID, TypeExemplifies); err != nil {
				return stats, err
			}
		}
	}

	// Metadata tags block: targets are taken verbatim, dangling ones
	// surface later in validation.
	for _, block := range tagsBlockPattern.FindAllStringSubmatch(content, -1) {
		for _, pair := range tagPairPattern.FindAllStringSubmatch(block[1], -1) {
			key := strings.TrimSpace(pair[1])
			value := strings.TrimSpace(pair[2])
			if key == "" || value == "" {
				continue
			}
			if strings.EqualFold(key, "quality") || strings.HasPrefix(key, "#") {
				stats.Skipped++
				continue
			}
			if err := w.emit(&stats, sourceID, value, strings.ToUpper(key)); err != nil {
				return stats, err
			}
		}
	}

	// Wiki-links, label form included.
	for _, m := range wikiLinkPattern.FindAllStringSubmatch(content, -1) {
		slug := tokenizer.Slugify(m[1])
		targetID, ok := w.lexicon.Resolve(slug)
		if !ok {
			stats.Skipped++
			continue
		}
		if err := w.emit(&stats, sourceID, targetID, TypeCites); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// emit runs one edge through the gate and inserts it when admitted.
func (w *EdgeWeaver) emit(stats *Stats, source, target, edgeType string) error {
	if source == target {
		stats.Skipped++
		return nil
	}

	allowed, _, err := w.gate.Check(source, target)
	if err != nil {
		return err
	}
	if !allowed {
		stats.Rejected++
		return nil
	}

	inserted, err := w.store.InsertEdge(storage.Edge{Source: source, Target: target, Type: edgeType})
	if err != nil {
		return err
	}
	if inserted {
		stats.Added++
		w.logger.Debug("edge added", logging.Fields{
			"source": source,
			"target": target,
			"type":   edgeType,
		})
	}
	return nil
}
