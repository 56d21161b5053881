package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"polyvis/internal/embed"
	"polyvis/internal/logging"
	"polyvis/internal/search"
)

var (
	searchLimit  int
	searchFormat string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid search across the knowledge graph",
	Long: `Runs the query through both retrieval paths: cosine similarity over
stored vectors (when an embedder is reachable) and BM25 keyword rank
over the FTS index. Hits found by both paths are boosted. Without an
embedder the keyword path still answers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.Flags().StringVar(&searchFormat, "format", "human", "Output format: json or human")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger := newLogger(searchFormat)
	root := mustProjectRoot()
	cfg := loadConfig(root, logger)

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(root, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	embedder, err := embed.Resolve(ctx, cfg, logger)
	if err != nil {
		logger.Debug("vector path unavailable", logging.Fields{"error": err.Error()})
		embedder = nil
	}

	engine := search.NewEngine(store, embedder, cfg.Search, logger)
	resp := engine.Search(ctx, strings.Join(args, " "), searchLimit)

	output, err := FormatResponse(resp, OutputFormat(searchFormat))
	if err != nil {
		return err
	}
	fmt.Println(output)

	if resp.IsError {
		os.Exit(1)
	}
	return nil
}
