package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"polyvis/internal/config"
	"polyvis/internal/daemon"
	"polyvis/internal/embed"
	"polyvis/internal/storage"
	"polyvis/internal/version"
)

var statusFormat string

// daemonStatus describes the embedding daemon as seen from outside.
type daemonStatus struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	URL     string `json:"url,omitempty"`
	Healthy bool   `json:"healthy"`
}

// statusResponse is the full status snapshot.
type statusResponse struct {
	Version     string         `json:"version"`
	Root        string         `json:"root"`
	Initialized bool           `json:"initialized"`
	Database    string         `json:"database"`
	Stats       *storage.Stats `json:"stats,omitempty"`
	Loci        int            `json:"loci"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model,omitempty"`
	Dimensions  int            `json:"dimensions"`
	Daemon      daemonStatus   `json:"daemon"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store, ledger, and daemon health",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format: json or human")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger(statusFormat)
	root := mustProjectRoot()
	cfg := loadConfig(root, logger)

	resp := &statusResponse{
		Version:    version.Version,
		Root:       root,
		Database:   cfg.ResonancePath(root),
		Provider:   cfg.LLM.ActiveProvider,
		Dimensions: cfg.Embedding.Dimensions,
	}
	if _, provider, ok := cfg.ActiveProvider(); ok {
		resp.Model = provider.Model
	}
	if _, err := os.Stat(filepath.Join(root, config.SettingsFileName)); err == nil {
		resp.Initialized = true
	}

	// Stats only when the database exists; status must not create one.
	if _, err := os.Stat(resp.Database); err == nil {
		store, err := openStore(root, cfg, logger)
		if err != nil {
			return err
		}
		stats, statsErr := store.Stats()
		_ = store.Close()
		if statsErr != nil {
			return statsErr
		}
		resp.Stats = stats
	}
	if ledgerPath := cfg.LedgerPath(root); ledgerPath != "" {
		if _, err := os.Stat(ledgerPath); err == nil {
			led, err := openLedger(root, cfg, logger)
			if err != nil {
				return err
			}
			count, countErr := led.Count()
			_ = led.Close()
			if countErr != nil {
				return countErr
			}
			resp.Loci = count
		}
	}

	resp.Daemon = probeDaemon(cfg)

	output, err := FormatResponse(resp, OutputFormat(statusFormat))
	if err != nil {
		return err
	}
	fmt.Println(output)
	return nil
}

// probeDaemon checks the PID file, then asks a live daemon for /health.
func probeDaemon(cfg *config.Config) daemonStatus {
	var status daemonStatus

	running, pid, err := daemon.IsRunning()
	if err != nil || !running {
		return status
	}
	status.Running = true
	status.PID = pid
	status.URL = fmt.Sprintf("http://%s:%d", cfg.Embedding.Daemon.Bind, cfg.Embedding.Daemon.Port)

	client := embed.NewDaemonClient(cfg.Embedding.Daemon.Bind, cfg.Embedding.Daemon.Port, "", cfg.Embedding.Dimensions)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	status.Healthy = client.Healthy(ctx, time.Second)
	cancel()

	return status
}
