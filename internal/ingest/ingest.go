// Package ingest drives the two-phase pipeline: persona artifacts
// first, then the Markdown corpus, then the post-passes that weave
// timeline and semantic edges and validate the result.
//
// The ingestor owns skip-vs-abort policy. Unreadable files and
// malformed entries are logged and skipped; store failures and
// cancellation abort the run.
package ingest

import (
	"context"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"polyvis/internal/boxer"
	"polyvis/internal/config"
	"polyvis/internal/embed"
	"polyvis/internal/errors"
	"polyvis/internal/ledger"
	"polyvis/internal/logging"
	"polyvis/internal/storage"
	"polyvis/internal/tokenizer"
	"polyvis/internal/validate"
	"polyvis/internal/weave"
)

// Boxes at or under this many characters stay FTS-only.
const minEmbedLength = 50

// maxEmbedWorkers bounds concurrent embedder calls per file.
const maxEmbedWorkers = 4

// Options narrows Phase 2 to one file or directory. The zero value
// ingests every configured source.
type Options struct {
	File string
	Dir  string
}

// RunStats accumulates counters across one ingestion run.
type RunStats struct {
	RunID           string        `json:"runId"`
	StartedAt       time.Time     `json:"startedAt"`
	Duration        time.Duration `json:"duration"`
	FilesScanned    int           `json:"filesScanned"`
	FilesSkipped    int           `json:"filesSkipped"`
	BoxesSeen       int           `json:"boxesSeen"`
	BoxesSkipped    int           `json:"boxesSkipped"`
	NodesUpserted   int           `json:"nodesUpserted"`
	EdgesAdded      int           `json:"edgesAdded"`
	VectorsComputed int           `json:"vectorsComputed"`
	GateRejections  int           `json:"gateRejections"`
	EmbedFailures   int           `json:"embedFailures"`
}

// Ingestor wires the pipeline components around one store.
type Ingestor struct {
	cfg      *config.Config
	store    *storage.Store
	ledger   *ledger.Ledger
	boxer    *boxer.Boxer
	embedder embed.Embedder
	logger   *logging.Logger

	gate   *weave.Gate
	index  *tokenizer.Index
	weaver *weave.EdgeWeaver
}

// New builds an ingestor. embedder may be nil; boxes are then upserted
// without vectors and remain searchable through FTS.
func New(cfg *config.Config, store *storage.Store, led *ledger.Ledger, embedder embed.Embedder, logger *logging.Logger) (*Ingestor, error) {
	counter, err := boxer.NewTokenCounter(cfg.Boxer.TokenCounter)
	if err != nil {
		return nil, err
	}
	return &Ingestor{
		cfg:      cfg,
		store:    store,
		ledger:   led,
		boxer:    boxer.New(cfg.Boxer.MaxTokens, counter, led, ledger.Hash, logger),
		embedder: embedder,
		logger:   logger,
		gate:     weave.NewGate(store, cfg.Weave.LouvainThreshold, logger),
	}, nil
}

// Run executes the full pipeline: Phase 1 persona, Phase 2 experience,
// timeline and semantic weaving, then validation against the baseline
// captured at the start.
func (ing *Ingestor) Run(ctx context.Context, opts Options) (*RunStats, *validate.Report, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, nil, errors.Wrap(errors.InternalError, "cannot mint run id", err)
	}

	stats := &RunStats{RunID: runID, StartedAt: time.Now()}
	defer func() { stats.Duration = time.Since(stats.StartedAt) }()

	baseline, err := validate.CaptureBaseline(ing.store)
	if err != nil {
		return stats, nil, err
	}

	if err := ing.runPersona(ctx, stats); err != nil {
		return stats, nil, err
	}
	if err := ing.runExperience(ctx, opts, stats); err != nil {
		return stats, nil, err
	}
	if err := ing.weavePost(ctx, stats); err != nil {
		return stats, nil, err
	}

	report, err := validate.Validate(ing.store, baseline, validate.DefaultExpectations())
	if err != nil {
		return stats, nil, err
	}

	ing.logger.Info("ingestion finished", logging.Fields{
		"run_id":   stats.RunID,
		"files":    stats.FilesScanned,
		"nodes":    stats.NodesUpserted,
		"edges":    stats.EdgesAdded,
		"vectors":  stats.VectorsComputed,
		"duration": time.Since(stats.StartedAt).String(),
	})
	return stats, report, nil
}

// weavePost runs the chronology chain, then the orphan rescue, in that
// order so fresh timeline edges count as neighbors.
func (ing *Ingestor) weavePost(ctx context.Context, stats *RunStats) error {
	timeline, err := weave.NewTimelineWeaver(ing.store, ing.logger).Weave()
	if err != nil {
		return err
	}
	stats.EdgesAdded += timeline.Added

	semantic := weave.NewSemanticWeaver(ing.store, ing.gate, float32(ing.cfg.Weave.SemanticThreshold), ing.logger)
	rescued, err := semantic.Weave(ctx)
	if err != nil {
		return err
	}
	stats.EdgesAdded += rescued.Added
	stats.GateRejections += rescued.Rejected
	return nil
}
