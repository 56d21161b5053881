package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"polyvis/internal/export"
)

var (
	exportOutput   string
	exportCompress bool
	exportFormat   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the graph as JSON",
	Long: `Serializes every node and edge (embeddings omitted) into one JSON
document. --compress wraps the output in a zstd frame. Without
--output the document streams to stdout and the summary moves to
stderr so pipes stay clean.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Write the export here instead of stdout")
	exportCmd.Flags().BoolVar(&exportCompress, "compress", false, "zstd-compress the output")
	exportCmd.Flags().StringVar(&exportFormat, "format", "human", "Summary format: json or human")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	logger := newLogger(exportFormat)
	root := mustProjectRoot()
	cfg := loadConfig(root, logger)

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(root, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	exporter := export.NewExporter(store, logger)

	var summary *export.Summary
	if exportOutput == "" {
		summary, err = exporter.Write(ctx, os.Stdout, exportCompress)
	} else {
		summary, err = exporter.WriteFile(ctx, exportOutput, exportCompress)
	}
	if err != nil {
		return err
	}

	output, err := FormatResponse(summary, OutputFormat(exportFormat))
	if err != nil {
		return err
	}

	dst := os.Stdout
	if exportOutput == "" {
		dst = os.Stderr
	}
	fmt.Fprintln(dst, output)
	return nil
}
