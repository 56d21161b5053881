// Package daemon runs the always-on embedding service. It keeps one
// provider client warm behind a loopback HTTP endpoint so CLI runs can
// embed without paying model startup per invocation.
package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"polyvis/internal/config"
	"polyvis/internal/embed"
	"polyvis/internal/logging"
	"polyvis/internal/paths"
	"polyvis/internal/version"
)

const shutdownTimeout = 30 * time.Second

// Daemon owns the embedder, the HTTP server, and the PID file.
type Daemon struct {
	cfg       *config.Config
	bind      string
	port      int
	embedder  embed.Embedder
	cache     *embedCache
	tokenHash string

	server        *http.Server
	pid           *PIDFile
	logger        *log.Logger
	structuredLog *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startedAt time.Time
	mu        sync.RWMutex
}

// State is a point-in-time snapshot for `daemon status`.
type State struct {
	PID          int           `json:"pid"`
	StartedAt    time.Time     `json:"startedAt"`
	Bind         string        `json:"bind"`
	Port         int           `json:"port"`
	Version      string        `json:"version"`
	Uptime       time.Duration `json:"uptime"`
	Embedder     string        `json:"embedder"`
	CacheEntries int           `json:"cacheEntries"`
	AuthEnabled  bool          `json:"authEnabled"`
}

// New prepares a daemon: log file, loggers, embed cache, and the
// stored token hash when one exists. Nothing listens until Start.
func New(cfg *config.Config, bind string, port int) (*Daemon, error) {
	if _, err := paths.EnsureDaemonDir(); err != nil {
		return nil, fmt.Errorf("failed to create daemon directory: %w", err)
	}

	logPath, err := paths.GetDaemonLogPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get log path: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	if bind == "" {
		bind = cfg.Embedding.Daemon.Bind
	}
	if port == 0 {
		port = cfg.Embedding.Daemon.Port
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		cfg:    cfg,
		bind:   bind,
		port:   port,
		cache:  newEmbedCache(defaultCacheTTL, defaultCacheSize),
		logger: log.New(logFile, "[polyvis-daemon] ", log.LstdFlags|log.Lmicroseconds),
		structuredLog: logging.NewLogger(logging.Config{
			Level:  logging.InfoLevel,
			Format: logging.JSONFormat,
			Output: logFile,
		}),
		ctx:    ctx,
		cancel: cancel,
	}

	hash, err := LoadTokenHash()
	if err != nil {
		cancel()
		return nil, err
	}
	d.tokenHash = hash

	return d, nil
}

// Start acquires the PID file, resolves and warms the embedder, and
// brings up the HTTP endpoint.
func (d *Daemon) Start() error {
	d.logger.Printf("Starting polyvis daemon v%s", version.Version)

	pidPath, err := paths.GetPIDFilePath()
	if err != nil {
		return fmt.Errorf("failed to get PID path: %w", err)
	}
	d.pid = NewPIDFile(pidPath)
	if err := d.pid.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire PID file: %w", err)
	}

	d.startedAt = time.Now()

	// The daemon always embeds through a direct provider; probing the
	// loopback endpoint here would find ourselves.
	embedder, err := embed.ResolveDirect(d.cfg, d.structuredLog)
	if err != nil {
		_ = d.pid.Release()
		return fmt.Errorf("failed to resolve embedding provider: %w", err)
	}
	d.embedder = embedder
	d.logger.Printf("Embedding provider: %s", embedder.Name())

	// Warm the model so the first real request does not eat the load time.
	warmCtx, cancel := context.WithTimeout(d.ctx, 60*time.Second)
	if _, err := embedder.Embed(warmCtx, "warmup"); err != nil {
		d.logger.Printf("Warmup embed failed (continuing): %v", err)
	}
	cancel()

	d.server = d.setupServer()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.logger.Printf("HTTP server listening on %s", d.server.Addr)
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Printf("HTTP server error: %v", err)
		}
	}()

	if d.tokenHash != "" {
		d.logger.Println("Bearer auth enabled for /embed")
	}
	d.logger.Printf("Daemon started (PID: %d)", os.Getpid())
	return nil
}

// Stop shuts the server down gracefully and releases the PID file.
func (d *Daemon) Stop() error {
	d.logger.Println("Stopping daemon...")
	d.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Printf("HTTP server shutdown error: %v", err)
		}
	}

	d.wg.Wait()

	if d.pid != nil {
		if err := d.pid.Release(); err != nil {
			d.logger.Printf("Failed to release PID file: %v", err)
		}
	}

	d.logger.Println("Daemon stopped")
	return nil
}

// Wait blocks until SIGINT/SIGTERM or internal cancellation.
func (d *Daemon) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		d.logger.Printf("Received signal: %v", sig)
	case <-d.ctx.Done():
		d.logger.Println("Context cancelled")
	}
}

// State reports the running daemon's vitals.
func (d *Daemon) State() *State {
	d.mu.RLock()
	defer d.mu.RUnlock()

	state := &State{
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		Bind:         d.bind,
		Port:         d.port,
		Version:      version.Version,
		Uptime:       time.Since(d.startedAt),
		CacheEntries: d.cache.Len(),
		AuthEnabled:  d.tokenHash != "",
	}
	if d.embedder != nil {
		state.Embedder = d.embedder.Name()
	}
	return state
}

// IsRunning reports whether a daemon process holds the PID file.
func IsRunning() (bool, int, error) {
	pidPath, err := paths.GetPIDFilePath()
	if err != nil {
		return false, 0, err
	}
	return NewPIDFile(pidPath).IsRunning()
}

// StopRemote signals a running daemon with SIGTERM and waits for the
// process to exit.
func StopRemote() error {
	pidPath, err := paths.GetPIDFilePath()
	if err != nil {
		return err
	}

	pid := NewPIDFile(pidPath)
	running, processID, err := pid.IsRunning()
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(processID)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}

	timeout := time.After(shutdownTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return fmt.Errorf("timeout waiting for daemon to stop")
		case <-ticker.C:
			if running, _, _ := pid.IsRunning(); !running {
				return nil
			}
		}
	}
}
