package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"polyvis/internal/storage"
	"polyvis/internal/validate"
)

var (
	validateExpectations  string
	validateWriteBaseline string
	validateTolerance     float64
	validateFormat        string
)

// validateResponse bundles the structural report with any expectation
// violations.
type validateResponse struct {
	Report       *validate.Report     `json:"report,omitempty"`
	Stats        *storage.Stats       `json:"stats"`
	Expectations string               `json:"expectations,omitempty"`
	Violations   []validate.Violation `json:"violations,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check graph health and compare against expectations",
	Long: `Runs the structural checks (orphan edges, duplicate ids, vector
coverage) against the store. With --expectations the current counts
are also compared to the recorded tolerance bands; --write-baseline
records the current counts as a new expectations file instead.

Exit codes: 0 healthy, 1 operational failure, 2 validation failure.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateExpectations, "expectations", "", "TOML expectations file to compare against")
	validateCmd.Flags().StringVar(&validateWriteBaseline, "write-baseline", "", "Write current counts as an expectations file and exit")
	validateCmd.Flags().Float64Var(&validateTolerance, "tolerance", 0.10, "Relative tolerance recorded with --write-baseline")
	validateCmd.Flags().StringVar(&validateFormat, "format", "human", "Output format: json or human")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := newLogger(validateFormat)
	root := mustProjectRoot()
	cfg := loadConfig(root, logger)

	store, err := openStore(root, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	if validateWriteBaseline != "" {
		if err := validate.WriteBaseline(validateWriteBaseline, stats, validateTolerance); err != nil {
			return err
		}
		fmt.Printf("✅ baseline written to %s (nodes=%d edges=%d vectors=%d, tolerance %.0f%%)\n",
			validateWriteBaseline, stats.Nodes, stats.Edges, stats.Vectors, validateTolerance*100)
		return nil
	}

	baseline, err := validate.CaptureBaseline(store)
	if err != nil {
		return err
	}
	report, err := validate.Validate(store, baseline, validate.DefaultExpectations())
	if err != nil {
		return err
	}

	resp := &validateResponse{Report: report, Stats: stats}
	if validateExpectations != "" {
		exp, err := validate.LoadExpectations(validateExpectations)
		if err != nil {
			return err
		}
		resp.Expectations = validateExpectations
		resp.Violations = validate.CompareStats(stats, exp)
	}

	output, err := FormatResponse(resp, OutputFormat(validateFormat))
	if err != nil {
		return err
	}
	fmt.Println(output)

	if !report.Passed || len(resp.Violations) > 0 {
		os.Exit(2)
	}
	return nil
}
