package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"polyvis/internal/errors"
)

// DaemonClient talks to the loopback embedding daemon.
type DaemonClient struct {
	baseURL string
	token   string
	dim     int
	client  *http.Client
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

func NewDaemonClient(bind string, port int, token string, dim int) *DaemonClient {
	if bind == "" {
		bind = "localhost"
	}
	return &DaemonClient{
		baseURL: fmt.Sprintf("http://%s:%d", bind, port),
		token:   token,
		dim:     dim,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the endpoint this client targets.
func (c *DaemonClient) BaseURL() string { return c.baseURL }

// Healthy probes GET /health within the given budget. Any failure
// counts as unhealthy and the caller falls back to a direct provider.
func (c *DaemonClient) Healthy(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Embed posts text to the daemon and returns the vector fitted to the
// store dimension.
func (c *DaemonClient) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, errors.Wrap(errors.InternalError, "failed to encode embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(errors.EmbedderUnavailable, "failed to build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.EmbedderUnavailable, "daemon embed request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(errors.EmbedderUnavailable,
			fmt.Sprintf("daemon returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(errors.EmbedderUnavailable, "failed to decode daemon response", err)
	}
	if len(out.Vector) == 0 {
		return nil, errors.New(errors.EmbedderUnavailable, "daemon returned an empty vector")
	}
	return fit(out.Vector, c.dim), nil
}

func (c *DaemonClient) Name() string { return "daemon" }
