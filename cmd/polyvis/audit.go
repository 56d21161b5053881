package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"polyvis/internal/boxer"
)

var (
	auditFile   string
	auditOutput string
	auditFormat string
)

// auditResponse pairs the compared paths with the audit outcome.
type auditResponse struct {
	Source string            `json:"source"`
	Boxed  string            `json:"boxed"`
	Result boxer.AuditResult `json:"result"`
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Verify a boxed file still carries its source content",
	Long: `Strips locus and tags markers from the boxed document, normalizes
whitespace on both sides, and compares the word streams. On drift the
first divergence is reported and the command exits 1.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditFile, "file", "", "Original source file (required)")
	auditCmd.Flags().StringVar(&auditOutput, "output", "", "Boxed counterpart to audit (required)")
	auditCmd.Flags().StringVar(&auditFormat, "format", "human", "Output format: json or human")
	_ = auditCmd.MarkFlagRequired("file")
	_ = auditCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(auditFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", auditFile, err)
	}
	boxed, err := os.ReadFile(auditOutput)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", auditOutput, err)
	}

	resp := &auditResponse{
		Source: auditFile,
		Boxed:  auditOutput,
		Result: boxer.Audit(source, boxed, filepath.Base(auditFile)),
	}

	output, err := FormatResponse(resp, OutputFormat(auditFormat))
	if err != nil {
		return err
	}
	fmt.Println(output)

	if !resp.Result.Passed {
		os.Exit(1)
	}
	return nil
}
