// Package search merges vector similarity and BM25 keyword retrieval
// into one ranked result list. Either path may fail independently; the
// engine degrades to whichever side answered.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"polyvis/internal/config"
	"polyvis/internal/embed"
	"polyvis/internal/logging"
	"polyvis/internal/storage"
)

const previewLength = 200

// Result is one ranked hit. Source records which retrieval path
// produced it: "vector", "keyword", or "hybrid" when both agreed.
type Result struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
	Preview string  `json:"preview"`
}

// Response carries the merged ranking plus any per-path failures.
// IsError is set only when neither path produced a result and at
// least one of them failed, so callers can tell "no matches" from
// "search is broken".
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
	Errors  []string `json:"errors,omitempty"`
	IsError bool     `json:"isError,omitempty"`
}

// Engine runs hybrid queries against one store.
type Engine struct {
	store       *storage.Store
	embedder    embed.Embedder
	keywordBase float64
	hybridBoost float64
	logger      *logging.Logger
}

// NewEngine wires a search engine. embedder may be nil, in which case
// only the keyword path runs.
func NewEngine(store *storage.Store, embedder embed.Embedder, cfg config.SearchConfig, logger *logging.Logger) *Engine {
	base := cfg.KeywordBase
	if base == 0 {
		base = 0.5
	}
	boost := cfg.HybridBoost
	if boost == 0 {
		boost = 0.2
	}
	return &Engine{
		store:       store,
		embedder:    embedder,
		keywordBase: base,
		hybridBoost: boost,
		logger:      logger,
	}
}

// Search runs both retrieval paths and merges the candidates.
//
// Vector hits enter at their raw dot-product score. Keyword hits enter
// at the configured base score, or boost an existing vector hit into a
// hybrid one. The merged set is sorted by score descending and cut to
// limit.
func (e *Engine) Search(ctx context.Context, query string, limit int) *Response {
	if limit <= 0 {
		limit = 10
	}

	resp := &Response{Query: query}
	candidates := make(map[string]*Result)

	if err := e.vectorPath(ctx, query, limit, candidates); err != nil {
		resp.Errors = append(resp.Errors, fmt.Sprintf("vector search: %v", err))
		e.logger.Warn("vector search path failed", logging.Fields{"error": err.Error()})
	}
	if err := e.keywordPath(ctx, query, limit, candidates); err != nil {
		resp.Errors = append(resp.Errors, fmt.Sprintf("keyword search: %v", err))
		e.logger.Warn("keyword search path failed", logging.Fields{"error": err.Error()})
	}

	results := make([]Result, 0, len(candidates))
	for _, cand := range candidates {
		results = append(results, *cand)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	resp.Results = results
	resp.IsError = len(results) == 0 && len(resp.Errors) > 0
	return resp
}

// vectorPath embeds the query and folds similarity hits into the
// candidate map at their raw dot-product score.
func (e *Engine) vectorPath(ctx context.Context, query string, limit int, candidates map[string]*Result) error {
	if e.embedder == nil {
		return nil
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	hits, err := e.store.FindSimilar(ctx, storage.Normalize(vec), limit, "")
	if err != nil {
		return err
	}

	for _, hit := range hits {
		node, err := e.store.GetNode(hit.ID)
		if err != nil || node == nil {
			continue
		}
		candidates[hit.ID] = &Result{
			ID:      hit.ID,
			Title:   node.Title,
			Score:   float64(hit.Score),
			Source:  "vector",
			Preview: preview(node.Content),
		}
	}
	return nil
}

// keywordPath runs the FTS query and merges its hits: ids already
// found by the vector path get the hybrid boost, fresh ids enter at
// the keyword base score.
func (e *Engine) keywordPath(ctx context.Context, query string, limit int, candidates map[string]*Result) error {
	hits, err := e.store.SearchText(ctx, query, limit)
	if err != nil {
		return err
	}

	for _, hit := range hits {
		if existing, ok := candidates[hit.ID]; ok {
			existing.Score += e.hybridBoost
			existing.Source = "hybrid"
			continue
		}
		cand := &Result{
			ID:      hit.ID,
			Title:   hit.Title,
			Score:   e.keywordBase,
			Source:  "keyword",
			Preview: preview(hit.Snippet),
		}
		if cand.Preview == "" {
			if node, err := e.store.GetNode(hit.ID); err == nil && node != nil {
				cand.Preview = preview(node.Content)
			}
		}
		candidates[hit.ID] = cand
	}
	return nil
}

// preview collapses whitespace and truncates to previewLength runes,
// keeping the cut on a rune boundary.
func preview(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(collapsed) <= previewLength {
		return collapsed
	}
	runes := []rune(collapsed)
	return string(runes[:previewLength]) + "…"
}
