package embed

import (
	"context"
	"io"
	"strconv"
	"strings"
	"testing"

	"polyvis/internal/config"
	"polyvis/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Output: io.Discard})
}

func TestFit(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
		dim  int
		want int
	}{
		{"exact", []float32{1, 2, 3}, 3, 3},
		{"truncate", []float32{1, 2, 3, 4, 5}, 3, 3},
		{"pad", []float32{1}, 4, 4},
		{"zero dim passthrough", []float32{1, 2}, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fit(tt.vec, tt.dim)
			if len(got) != tt.want {
				t.Errorf("fit len = %d, want %d", len(got), tt.want)
			}
			for i := range got {
				if i < len(tt.vec) && got[i] != tt.vec[i] {
					t.Errorf("component %d = %v, want %v", i, got[i], tt.vec[i])
				}
				if i >= len(tt.vec) && got[i] != 0 {
					t.Errorf("padding component %d = %v, want 0", i, got[i])
				}
			}
		})
	}
}

func TestResolvePrefersDaemon(t *testing.T) {
	srv := stubDaemon(t, []float32{1})
	probe := daemonClientFor(t, srv.URL, "", 1)

	cfg := config.DefaultConfig()
	u := strings.TrimPrefix(probe.BaseURL(), "http://")
	host, port, _ := strings.Cut(u, ":")
	cfg.Embedding.Daemon.Bind = host
	n, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("bad port %q: %v", port, err)
	}
	cfg.Embedding.Daemon.Port = n

	embedder, err := Resolve(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if embedder.Name() != "daemon" {
		t.Errorf("embedder = %q, want daemon", embedder.Name())
	}
}

func TestResolveUsesConfiguredProbeBudget(t *testing.T) {
	cfg := config.DefaultConfig()
	if cfg.Embedding.Daemon.ProbeTimeoutMs != 200 {
		t.Errorf("default probe budget = %dms, want 200", cfg.Embedding.Daemon.ProbeTimeoutMs)
	}
}

func TestResolveFallsBackToProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	// Port 1 refuses connections immediately.
	cfg.Embedding.Daemon.Port = 1
	cfg.Embedding.Daemon.ProbeTimeoutMs = 50

	cfg.LLM.ActiveProvider = "ollama"
	embedder, err := Resolve(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if embedder.Name() != "ollama" {
		t.Errorf("embedder = %q, want ollama", embedder.Name())
	}

	cfg.LLM.ActiveProvider = "openai"
	provider := cfg.LLM.Providers["openai"]
	provider.APIKey = "sk-test"
	cfg.LLM.Providers["openai"] = provider

	embedder, err = Resolve(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if embedder.Name() != "openai" {
		t.Errorf("embedder = %q, want openai", embedder.Name())
	}
}

func TestResolveUnavailable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Embedding.Daemon.Port = 1
	cfg.Embedding.Daemon.ProbeTimeoutMs = 50
	cfg.LLM.ActiveProvider = "mystery"

	_, err := Resolve(context.Background(), cfg, testLogger())
	if err == nil {
		t.Fatal("expected error for unconfigured provider")
	}
	if !strings.Contains(err.Error(), "EMBEDDER_UNAVAILABLE") {
		t.Errorf("error %q should carry the EMBEDDER_UNAVAILABLE code", err)
	}
}
