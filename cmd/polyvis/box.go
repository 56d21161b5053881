package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"polyvis/internal/boxer"
	"polyvis/internal/config"
	"polyvis/internal/ledger"
	"polyvis/internal/logging"
	"polyvis/internal/tagger"
)

var (
	boxFile   string
	boxOutput string
	boxTag    bool
)

var boxCmd = &cobra.Command{
	Use:   "box",
	Short: "Segment a Markdown file into locus-marked boxes",
	Long: `Normalizes a Markdown document and splits it into bento boxes, each
opened by a <!-- locus:ID --> marker. Ids come from the locus ledger,
so re-boxing unchanged content yields the same markers. Output goes
to stdout unless --output names a file.

With --tag, each box is sent to the configured chat model and the
suggested relationships are written as <!-- tags: ... --> lines.`,
	RunE: runBox,
}

func init() {
	boxCmd.Flags().StringVar(&boxFile, "file", "", "Markdown file to segment (required)")
	boxCmd.Flags().StringVar(&boxOutput, "output", "", "Write boxed Markdown here instead of stdout")
	boxCmd.Flags().BoolVar(&boxTag, "tag", false, "Append LLM tag suggestions per box")
	_ = boxCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(boxCmd)
}

func runBox(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	root := mustProjectRoot()
	cfg := loadConfig(root, logger)

	source, err := os.ReadFile(boxFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", boxFile, err)
	}

	led, err := openLedger(root, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = led.Close() }()

	counter, err := boxer.NewTokenCounter(cfg.Boxer.TokenCounter)
	if err != nil {
		return err
	}
	b := boxer.New(cfg.Boxer.MaxTokens, counter, led, ledger.Hash, logger)

	boxes, fm, err := b.Process(source, filepath.Base(boxFile))
	if err != nil {
		return err
	}
	out := boxer.Render(fm, boxes)

	if boxTag {
		if out, err = tagBoxes(out, boxes, cfg, logger); err != nil {
			return err
		}
	}

	if boxOutput == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(boxOutput, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", boxOutput, err)
	}
	fmt.Printf("✅ boxed %s into %d box(es) -> %s\n", boxFile, len(boxes), boxOutput)
	return nil
}

// tagBoxes asks the chat model for tags per box and splices the
// resulting markers into the rendered document. A failed suggestion
// leaves that box untagged; the document stays valid either way.
func tagBoxes(rendered []byte, boxes []boxer.Box, cfg *config.Config, logger *logging.Logger) ([]byte, error) {
	tg, err := tagger.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := signalContext()
	defer cancel()

	for _, box := range boxes {
		tags, err := tg.SuggestTags(ctx, box.Content)
		if err != nil {
			logger.Warn("tag suggestion failed", logging.Fields{"locus": box.ID, "error": err.Error()})
			continue
		}
		if len(tags) == 0 {
			continue
		}
		next, err := boxer.InjectTags(rendered, box.ID, tagger.Marker(tags)+"\n")
		if err != nil {
			return nil, err
		}
		rendered = next
	}
	return rendered, nil
}
