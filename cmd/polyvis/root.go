package main

import (
	"polyvis/internal/version"

	"github.com/spf13/cobra"
)

var (
	// projectFlag overrides project root discovery.
	projectFlag string
)

var rootCmd = &cobra.Command{
	Use:   "polyvis",
	Short: "polyvis - Markdown knowledge graph",
	Long: `polyvis turns a Markdown corpus into a typed knowledge graph with hybrid
(vector + keyword) retrieval. Documents are segmented into locus-marked
bento boxes, persona artifacts seed the concept layer, and weavers
connect experience to the concepts it exercises.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("polyvis version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "",
		"Project root (default: nearest ancestor with polyvis.settings.json)")
}
