// Package embed turns box text into fixed-dimension vectors.
//
// The loopback daemon is preferred when it answers its health probe in
// time; otherwise the provider named in config is called directly.
// Providers deliver the configured dimension (truncating or zero-padding
// model output); callers re-normalize before storage.
package embed

import (
	"context"
	"fmt"
	"os"
	"time"

	"polyvis/internal/config"
	"polyvis/internal/errors"
	"polyvis/internal/logging"
)

// TokenEnvVar carries the raw daemon token on the client side.
const TokenEnvVar = "POLYVIS_DAEMON_TOKEN"

// maxParallelRequests bounds in-flight requests per provider client.
const maxParallelRequests = 4

// Embedder is the one contract the rest of the system sees.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Resolve picks the embedder for this run. The daemon wins when its
// health probe answers within the configured budget, otherwise the
// active provider from config is used directly.
func Resolve(ctx context.Context, cfg *config.Config, logger *logging.Logger) (Embedder, error) {
	daemon := NewDaemonClient(cfg.Embedding.Daemon.Bind, cfg.Embedding.Daemon.Port, os.Getenv(TokenEnvVar), cfg.Embedding.Dimensions)
	probe := time.Duration(cfg.Embedding.Daemon.ProbeTimeoutMs) * time.Millisecond
	if daemon.Healthy(ctx, probe) {
		logger.Debug("embedding via daemon", logging.Fields{"base_url": daemon.BaseURL()})
		return daemon, nil
	}

	return ResolveDirect(cfg, logger)
}

// ResolveDirect builds the active provider's client without probing
// the daemon. The daemon process itself resolves this way, so it can
// never route embedding calls back into its own endpoint.
func ResolveDirect(cfg *config.Config, logger *logging.Logger) (Embedder, error) {
	name := cfg.LLM.ActiveProvider
	provider, ok := cfg.LLM.Providers[name]
	if !ok {
		return nil, errors.New(errors.EmbedderUnavailable,
			fmt.Sprintf("daemon is not running and provider %q is not configured", name))
	}

	switch name {
	case "ollama":
		client, err := NewOllamaClient(provider.BaseURL, provider.Model, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, err
		}
		logger.Debug("embedding via ollama", logging.Fields{"model": provider.Model})
		return client, nil
	case "openai":
		apiKey := provider.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New(errors.EmbedderUnavailable, "openai provider selected but no API key configured")
		}
		logger.Debug("embedding via openai", logging.Fields{"model": provider.Model})
		return NewOpenAIClient(provider.BaseURL, apiKey, provider.Model, cfg.Embedding.Dimensions), nil
	default:
		return nil, errors.New(errors.EmbedderUnavailable, fmt.Sprintf("unknown embedding provider %q", name))
	}
}

// fit truncates or zero-pads vec so every stored embedding has the
// store's fixed dimension.
func fit(vec []float32, dim int) []float32 {
	if dim <= 0 || len(vec) == dim {
		return vec
	}
	if len(vec) > dim {
		return vec[:dim]
	}
	padded := make([]float32, dim)
	copy(padded, vec)
	return padded
}
