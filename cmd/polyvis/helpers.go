package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"polyvis/internal/config"
	"polyvis/internal/ledger"
	"polyvis/internal/logging"
	"polyvis/internal/paths"
	"polyvis/internal/storage"
)

// newLogger creates a logger for command execution. Output goes to
// stderr so stdout stays clean for command results; the level comes
// from POLYVIS_LOG_LEVEL.
func newLogger(format string) *logging.Logger {
	logFormat := logging.HumanFormat
	if format == "json" {
		logFormat = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: logFormat,
	})
}

// resolveProjectRoot locates the project root: the --project flag when
// given, otherwise the nearest ancestor carrying polyvis.settings.json,
// otherwise the working directory.
func resolveProjectRoot() (string, error) {
	if projectFlag != "" {
		return filepath.Abs(projectFlag)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if root, err := paths.FindProjectRoot(cwd); err == nil {
		return root, nil
	}
	return cwd, nil
}

// mustProjectRoot returns the project root or exits on error.
func mustProjectRoot() string {
	root, err := resolveProjectRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return root
}

// loadConfig reads the settings file at root and anchors every
// relative path there, falling back to defaults for uninitialized
// projects.
func loadConfig(root string, logger *logging.Logger) *config.Config {
	cfg, err := config.LoadConfig(root)
	if err != nil {
		logger.Warn("failed to load settings, using defaults", logging.Fields{"error": err.Error()})
		cfg = config.DefaultConfig()
	}
	return cfg.Anchored(root)
}

func openStore(root string, cfg *config.Config, logger *logging.Logger) (*storage.Store, error) {
	return storage.Open(cfg.ResonancePath(root), logger)
}

func openLedger(root string, cfg *config.Config, logger *logging.Logger) (*ledger.Ledger, error) {
	return ledger.Open(cfg.LedgerPath(root), logger)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
