package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"polyvis/internal/ledger"
	"polyvis/internal/logging"
	"polyvis/internal/version"
)

// maxEmbedBody caps the /embed request body. A box is a few KB; a
// megabyte of headroom is generous.
const maxEmbedBody = 1 << 20

// setupServer wires the two endpoints. /health stays unauthenticated
// so CLI probes work without a token; /embed goes through auth.
func (d *Daemon) setupServer() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", d.handleHealth)
	mux.Handle("/embed", d.withAuth(http.HandlerFunc(d.handleEmbed)))

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", d.bind, d.port),
		Handler:      d.withRequestID(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// withRequestID stamps every request with an id, echoes it in the
// response header, and logs the round trip.
func (d *Daemon) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)

		start := time.Now()
		next.ServeHTTP(w, r)

		d.structuredLog.Info("http request", logging.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"durationMs": time.Since(start).Milliseconds(),
			"requestID":  reqID,
		})
	})
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		d.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	d.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Uptime:  formatDuration(time.Since(d.startedAt)),
	})
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
	Cached bool      `json:"cached,omitempty"`
}

func (d *Daemon) handleEmbed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		d.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req embedRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEmbedBody))
	if err := decoder.Decode(&req); err != nil {
		d.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		d.writeError(w, http.StatusBadRequest, "missing 'text' field")
		return
	}

	// Identical text embeds identically; the cache absorbs re-ingests
	// of unchanged corpora.
	key := ledger.Hash(req.Text)
	if vec, ok := d.cache.Get(key); ok {
		d.writeJSON(w, http.StatusOK, embedResponse{Vector: vec, Cached: true})
		return
	}

	vec, err := d.embedder.Embed(r.Context(), req.Text)
	if err != nil {
		d.logger.Printf("Embed failed: %v", err)
		d.writeError(w, http.StatusInternalServerError, "embedding failed")
		return
	}

	d.cache.Set(key, vec)
	d.writeJSON(w, http.StatusOK, embedResponse{Vector: vec})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (d *Daemon) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		d.logger.Printf("Failed to encode JSON response: %v", err)
	}
}

func (d *Daemon) writeError(w http.ResponseWriter, status int, message string) {
	d.writeJSON(w, status, errorResponse{Error: message})
}

func formatDuration(dur time.Duration) string {
	dur = dur.Round(time.Second)
	h := dur / time.Hour
	dur -= h * time.Hour
	m := dur / time.Minute
	s := (dur - m*time.Minute) / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
