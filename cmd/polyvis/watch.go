package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"polyvis/internal/embed"
	"polyvis/internal/errors"
	"polyvis/internal/ingest"
	"polyvis/internal/logging"
	"polyvis/internal/watcher"
)

var watchDebounce int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-ingest on Markdown changes",
	Long: `Watches every configured experience source for .md changes and runs
the ingest pipeline after each debounced batch. The pipeline is
idempotent, so a full run per batch only touches what changed.
Ctrl+C stops.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchDebounce, "debounce", 2000, "Quiet period in milliseconds before a batch triggers")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	root := mustProjectRoot()
	cfg := loadConfig(root, logger)

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(root, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	led, err := openLedger(root, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = led.Close() }()

	embedder, err := embed.Resolve(ctx, cfg, logger)
	if err != nil {
		logger.Warn("no embedder reachable, boxes stay keyword-only", logging.Fields{"error": err.Error()})
		embedder = nil
	}

	ing, err := ingest.New(cfg, store, led, embedder, logger)
	if err != nil {
		return err
	}

	var roots []string
	for _, src := range cfg.Paths.Sources.Experience {
		roots = append(roots, src.Path)
	}
	if len(roots) == 0 {
		return errors.New(errors.ConfigInvalid, "no experience sources configured; nothing to watch")
	}

	handler := func(events []watcher.Event) {
		logger.Info("change batch", logging.Fields{"events": len(events)})
		stats, report, err := ing.Run(ctx, ingest.Options{})
		if err != nil {
			logger.Error("re-ingest failed", logging.Fields{"error": err.Error()})
			return
		}
		fields := logging.Fields{
			"nodes":   stats.NodesUpserted,
			"edges":   stats.EdgesAdded,
			"vectors": stats.VectorsComputed,
		}
		if report.Passed {
			logger.Info("re-ingest complete", fields)
		} else {
			fields["summary"] = report.Summary
			logger.Warn("re-ingest completed with validation failures", fields)
		}
	}

	w, err := watcher.New(roots, time.Duration(watchDebounce)*time.Millisecond, logger, handler)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}

	fmt.Printf("Watching %d source(s). Ctrl+C to stop.\n", len(roots))
	<-ctx.Done()
	fmt.Println("\nStopping watcher...")
	return w.Stop()
}
