package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"polyvis/internal/embed"
	"polyvis/internal/ingest"
	"polyvis/internal/logging"
	"polyvis/internal/validate"
)

var (
	ingestFile   string
	ingestDir    string
	ingestFormat string
)

// ingestResponse is the run result shown to the user: counters plus
// the post-run validation report.
type ingestResponse struct {
	Stats  *ingest.RunStats `json:"stats"`
	Report *validate.Report `json:"report"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the Markdown corpus into the knowledge graph",
	Long: `Runs the full pipeline: persona artifacts first, then every configured
experience source (or just --file/--dir), then timeline and semantic
weaving, then validation against the pre-run baseline.

Exit codes: 0 success, 1 operational failure, 2 when the run finished
but validation failed.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "Ingest a single Markdown file")
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "Ingest a single directory tree")
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "human", "Output format: json or human")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := newLogger(ingestFormat)
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

	opts, err := ingestScope()
	if err != nil {
		return err
	}
	stats, report, err := ing.Run(ctx, opts)
	if err != nil {
		return err
	}

	output, err := FormatResponse(&ingestResponse{Stats: stats, Report: report}, OutputFormat(ingestFormat))
	if err != nil {
		return err
	}
	fmt.Println(output)

	if !report.Passed {
		os.Exit(2)
	}
	return nil
}

// ingestScope absolutizes the --file/--dir flags so the pipeline sees
// unambiguous paths regardless of the working directory.
func ingestScope() (ingest.Options, error) {
	var opts ingest.Options
	if ingestFile != "" && ingestDir != "" {
		return opts, fmt.Errorf("--file and --dir are mutually exclusive")
	}
	if ingestFile != "" {
		abs, err := filepath.Abs(ingestFile)
		if err != nil {
			return opts, err
		}
		opts.File = abs
	}
	if ingestDir != "" {
		abs, err := filepath.Abs(ingestDir)
		if err != nil {
			return opts, err
		}
		opts.Dir = abs
	}
	return opts, nil
}
