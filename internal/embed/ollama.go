package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"

	"polyvis/internal/errors"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaClient embeds through a local Ollama server.
type OllamaClient struct {
	client *api.Client
	model  string
	dim    int
	sem    *semaphore.Weighted
}

func NewOllamaClient(baseURL, model string, dim int) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid, fmt.Sprintf("invalid ollama base URL %q", baseURL), err)
	}
	return &OllamaClient{
		client: api.NewClient(u, http.DefaultClient),
		model:  model,
		dim:    dim,
		sem:    semaphore.NewWeighted(maxParallelRequests),
	}, nil
}

func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, c.dim), nil
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	res, err := c.client.Embed(ctx, &api.EmbedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, errors.Wrap(errors.EmbedderUnavailable,
			fmt.Sprintf("ollama embed with model %q failed", c.model), err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, errors.New(errors.EmbedderUnavailable, "ollama returned no embedding")
	}
	return fit(res.Embeddings[0], c.dim), nil
}

func (c *OllamaClient) Name() string { return "ollama" }
