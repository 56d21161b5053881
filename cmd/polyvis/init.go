package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"polyvis/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a polyvis project",
	Long: `Writes polyvis.settings.json with defaults and creates the data/,
docs/, and persona/ skeleton. Running it in an initialized project is
a no-op unless --force is given.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing settings file with defaults")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}
	if projectFlag != "" {
		if root, err = filepath.Abs(projectFlag); err != nil {
			return err
		}
	}

	settingsPath := filepath.Join(root, config.SettingsFileName)
	if _, statErr := os.Stat(settingsPath); statErr == nil && !initForce {
		// Idempotent: already initialized is success, so init is safe in CI.
		fmt.Println("polyvis already initialized.")
		fmt.Printf("Settings at: %s\n", settingsPath)
		fmt.Println("\nRun 'polyvis init --force' to reset the settings file.")
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.Paths.Sources.Experience = []config.ExperienceSource{{Path: "docs", Type: "note"}}

	for _, dir := range []string{"data", "docs", "persona"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return fmt.Errorf("failed to create %s/: %w", dir, err)
		}
	}
	if err := cfg.Save(root); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	// Empty persona artifacts keep the first ingest warning-free; both
	// are plain JSON arrays the user fills in over time.
	for _, rel := range []string{cfg.Paths.Sources.Persona.Lexicon, cfg.Paths.Sources.Persona.CDA} {
		path := filepath.Join(root, rel)
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", rel, err)
			}
		}
	}

	fmt.Println("✅ polyvis initialized.")
	fmt.Printf("Settings written to: %s\n", settingsPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Drop Markdown into docs/ (or point paths.sources.experience elsewhere)")
	fmt.Println("  2. Fill persona/lexicon.json with your concept terms")
	fmt.Println("  3. Run 'polyvis ingest' to build the graph")
	return nil
}
