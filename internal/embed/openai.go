package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"

	"polyvis/internal/errors"
)

// OpenAIClient embeds through the OpenAI API or any compatible server.
type OpenAIClient struct {
	client *openai.Client
	model  string
	dim    int
	sem    *semaphore.Weighted
}

func NewOpenAIClient(baseURL, apiKey, model string, dim int) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{
		client: &client,
		model:  model,
		dim:    dim,
		sem:    semaphore.NewWeighted(maxParallelRequests),
	}
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, c.dim), nil
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	res, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: c.model,
	})
	if err != nil {
		return nil, errors.Wrap(errors.EmbedderUnavailable,
			fmt.Sprintf("openai embed with model %q failed", c.model), err)
	}
	if len(res.Data) == 0 || len(res.Data[0].Embedding) == 0 {
		return nil, errors.New(errors.EmbedderUnavailable, "openai returned no embedding")
	}

	vec := make([]float32, 0, len(res.Data[0].Embedding))
	for _, v := range res.Data[0].Embedding {
		vec = append(vec, float32(v))
	}
	return fit(vec, c.dim), nil
}

func (c *OpenAIClient) Name() string { return "openai" }
