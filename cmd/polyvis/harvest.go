package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"polyvis/internal/harvest"
	"polyvis/internal/tokenizer"
)

var (
	harvestOutput string
	harvestFormat string
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [<dir>]",
	Short: "Report tag-<slug> stubs missing from the lexicon",
	Long: `Scans Markdown for tag-<slug> stubs that no lexicon entry resolves and
aggregates them into a report: which slugs, how often, in which files.
Feed the report back into persona/lexicon.json.

Without a directory argument the whole project tree is scanned.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().StringVar(&harvestOutput, "output", "", "Write the report here instead of stdout")
	harvestCmd.Flags().StringVar(&harvestFormat, "format", "human", "Output format: json or human (Markdown)")
	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	logger := newLogger(harvestFormat)
	root := mustProjectRoot()
	cfg := loadConfig(root, logger)

	dir := root
	if len(args) == 1 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		dir = abs
	}

	items, err := readLexiconItems(cfg.Paths.Sources.Persona.Lexicon)
	if err != nil {
		return err
	}

	harvester := harvest.New(tokenizer.NewIndex(items), logger)
	report, err := harvester.Run(dir)
	if err != nil {
		return err
	}

	var out string
	if OutputFormat(harvestFormat) == FormatJSON {
		if out, err = formatJSON(report); err != nil {
			return err
		}
	} else {
		out = report.Markdown()
	}

	if harvestOutput != "" {
		if err := os.WriteFile(harvestOutput, []byte(out), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", harvestOutput, err)
		}
		fmt.Printf("✅ harvest report written to %s (%d unknown stub(s))\n", harvestOutput, len(report.Findings))
		return nil
	}
	fmt.Println(out)
	return nil
}

// readLexiconItems loads the persona lexicon. A missing file is not an
// error; harvesting then treats every stub as unknown.
func readLexiconItems(path string) ([]tokenizer.LexiconItem, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var items []tokenizer.LexiconItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %s: %w", path, err)
	}
	return items, nil
}
