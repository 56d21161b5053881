package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"polyvis/internal/errors"
	"polyvis/internal/ledger"
	"polyvis/internal/logging"
	"polyvis/internal/storage"
	"polyvis/internal/tokenizer"
	"polyvis/internal/weave"
)

// Skeleton node ids. The root and domain anchors exist from the first
// run so structural queries always resolve; the orphan scan excludes
// them by type.
const (
	RootNodeID             = "root"
	PersonaDomainNodeID    = "persona"
	ExperienceDomainNodeID = "experience"
)

// EdgeTypeHasDomain links the root node to each domain anchor.
const EdgeTypeHasDomain = "HAS_DOMAIN"

// lexiconTerm is one entry of the persona lexicon JSON array.
type lexiconTerm struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Type        string   `json:"type,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// directiveEntry is one entry of the directive catalog (CDA) JSON array.
type directiveEntry struct {
	ID            string              `json:"id"`
	Title         string              `json:"title,omitempty"`
	Description   string              `json:"description,omitempty"`
	Relationships []directiveRelation `json:"relationships,omitempty"`
}

type directiveRelation struct {
	Type      string `json:"type"`
	Target    string `json:"target"`
	Validated bool   `json:"validated"`
}

// runPersona seeds the skeleton, the lexicon, and the directive
// catalog, then builds the tokenizer index and the edge weaver used
// by Phase 2. Missing persona artifacts downgrade to warnings; the
// pipeline still runs on whatever the store already holds.
func (ing *Ingestor) runPersona(ctx context.Context, stats *RunStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ing.ensureSkeleton(); err != nil {
		return err
	}

	items := make(map[string]tokenizer.LexiconItem)

	// Concepts from previous runs keep tokenizing even when the
	// lexicon file is gone.
	stored, err := ing.store.GetLexicon()
	if err != nil {
		return err
	}
	for _, entry := range stored {
		items[entry.ID] = lexiconItemFromStore(entry)
	}

	if path := ing.cfg.Paths.Sources.Persona.Lexicon; path != "" {
		if err := ing.loadLexicon(path, items, stats); err != nil {
			ing.logger.Warn("lexicon not loaded", logging.Fields{"path": path, "error": err.Error()})
		}
	}

	list := make([]tokenizer.LexiconItem, 0, len(items))
	for _, item := range items {
		list = append(list, item)
	}
	ing.index = tokenizer.NewIndex(list)
	ing.weaver = weave.NewEdgeWeaver(ing.store, ing.gate, ing.index, ing.cfg.Weave.ExemplifyStubs, ing.logger)

	if path := ing.cfg.Paths.Sources.Persona.CDA; path != "" {
		if err := ing.loadDirectives(ctx, path, stats); err != nil {
			ing.logger.Warn("directive catalog not loaded", logging.Fields{"path": path, "error": err.Error()})
		}
	}
	return nil
}

func (ing *Ingestor) ensureSkeleton() error {
	// Anchors carry no Domain of their own: CountByDomain then means
	// "content nodes in the domain", which the coverage check relies on.
	nodes := []*storage.Node{
		{ID: RootNodeID, Type: storage.NodeTypeRoot, Title: "Polyvis", Layer: storage.LayerOntology},
		{ID: PersonaDomainNodeID, Type: storage.NodeTypeDomain, Title: "Persona", Layer: storage.LayerOntology},
		{ID: ExperienceDomainNodeID, Type: storage.NodeTypeDomain, Title: "Experience", Layer: storage.LayerOntology},
	}
	for _, node := range nodes {
		if err := ing.store.UpsertNode(node); err != nil {
			return err
		}
	}
	for _, domainID := range []string{PersonaDomainNodeID, ExperienceDomainNodeID} {
		if _, err := ing.store.InsertEdge(storage.Edge{Source: RootNodeID, Target: domainID, Type: EdgeTypeHasDomain}); err != nil {
			return err
		}
	}
	return nil
}

func (ing *Ingestor) loadLexicon(path string, items map[string]tokenizer.LexiconItem, stats *RunStats) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.SourceUnreadable, fmt.Sprintf("cannot read lexicon %s", path), err)
	}

	var terms []lexiconTerm
	if err := json.Unmarshal(raw, &terms); err != nil {
		return errors.Wrap(errors.ParseFailed, fmt.Sprintf("malformed lexicon %s", path), err)
	}

	for _, term := range terms {
		if term.ID == "" {
			ing.logger.Warn("lexicon entry without id skipped", logging.Fields{"path": path})
			continue
		}

		title := term.Title
		if title == "" {
			title = term.ID
		}
		content := term.Description
		if content == "" {
			content = title
		}

		meta := map[string]interface{}{}
		if term.Category != "" {
			meta["category"] = term.Category
		}
		if term.Type != "" {
			meta["type"] = term.Type
		}
		if len(term.Aliases) > 0 {
			meta["aliases"] = term.Aliases
		}
		if len(term.Tags) > 0 {
			meta["tags"] = term.Tags
		}

		node := &storage.Node{
			ID:      term.ID,
			Type:    storage.NodeTypeConcept,
			Title:   title,
			Content: content,
			Domain:  storage.DomainPersona,
			Layer:   storage.LayerOntology,
			Hash:    ledger.Hash(content),
			Meta:    meta,
		}
		if err := ing.store.UpsertNode(node); err != nil {
			return err
		}
		stats.NodesUpserted++

		items[term.ID] = tokenizer.LexiconItem{
			ID:       term.ID,
			Title:    term.Title,
			Aliases:  term.Aliases,
			Category: term.Category,
			Type:     term.Type,
			Tags:     term.Tags,
		}
	}
	return nil
}

func (ing *Ingestor) loadDirectives(ctx context.Context, path string, stats *RunStats) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.SourceUnreadable, fmt.Sprintf("cannot read directive catalog %s", path), err)
	}

	var directives []directiveEntry
	if err := json.Unmarshal(raw, &directives); err != nil {
		return errors.Wrap(errors.ParseFailed, fmt.Sprintf("malformed directive catalog %s", path), err)
	}

	for _, directive := range directives {
		if err := ctx.Err(); err != nil {
			return err
		}
		if directive.ID == "" {
			ing.logger.Warn("directive without id skipped", logging.Fields{"path": path})
			continue
		}

		title := directive.Title
		if title == "" {
			title = directive.ID
		}
		content := directive.Description
		if content == "" {
			content = title
		}

		node := &storage.Node{
			ID:      directive.ID,
			Type:    storage.NodeTypeDirective,
			Title:   title,
			Content: content,
			Domain:  storage.DomainPersona,
			Layer:   storage.LayerDirective,
			Hash:    ledger.Hash(content),
		}
		if err := ing.store.UpsertNode(node); err != nil {
			return err
		}
		stats.NodesUpserted++

		for _, rel := range directive.Relationships {
			if !rel.Validated || rel.Type == "" || rel.Target == "" {
				continue
			}

			allowed, _, err := ing.gate.Check(directive.ID, rel.Target)
			if err != nil {
				return err
			}
			if !allowed {
				stats.GateRejections++
				continue
			}

			inserted, err := ing.store.InsertEdge(storage.Edge{
				Source: directive.ID,
				Target: rel.Target,
				Type:   strings.ToUpper(rel.Type),
			})
			if err != nil {
				return err
			}
			if inserted {
				stats.EdgesAdded++
			}
		}
	}
	return nil
}

func lexiconItemFromStore(entry storage.LexiconEntry) tokenizer.LexiconItem {
	item := tokenizer.LexiconItem{ID: entry.ID, Title: entry.Title}
	if entry.Meta == nil {
		return item
	}
	if v, ok := entry.Meta["category"].(string); ok {
		item.Category = v
	}
	if v, ok := entry.Meta["type"].(string); ok {
		item.Type = v
	}
	item.Aliases = stringSlice(entry.Meta["aliases"])
	item.Tags = stringSlice(entry.Meta["tags"])
	return item
}

// stringSlice recovers a string list from JSON-round-tripped meta.
func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
