// Package export serializes the whole graph — nodes, edges, and run
// metadata — as one JSON document, optionally zstd-compressed, so a
// store can be inspected, diffed, or loaded elsewhere.
package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"polyvis/internal/logging"
	"polyvis/internal/storage"
	"polyvis/internal/version"
)

// Graph is the export envelope. Node embeddings are omitted by the
// Node JSON tags; they are model-specific and dwarf everything else.
type Graph struct {
	Version     string          `json:"version"`
	GeneratedAt time.Time       `json:"generatedAt"`
	NodeCount   int             `json:"nodeCount"`
	EdgeCount   int             `json:"edgeCount"`
	Nodes       []*storage.Node `json:"nodes"`
	Edges       []storage.Edge  `json:"edges"`
}

// Summary reports what one export wrote.
type Summary struct {
	Nodes      int    `json:"nodes"`
	Edges      int    `json:"edges"`
	Bytes      int64  `json:"bytes"`
	Compressed bool   `json:"compressed"`
	Path       string `json:"path,omitempty"`
}

// Exporter reads one store and writes export documents.
type Exporter struct {
	store  *storage.Store
	logger *logging.Logger
}

func NewExporter(store *storage.Store, logger *logging.Logger) *Exporter {
	return &Exporter{store: store, logger: logger}
}

// Write streams the graph to w. With compress set the JSON is wrapped
// in a zstd frame.
func (e *Exporter) Write(ctx context.Context, w io.Writer, compress bool) (*Summary, error) {
	nodes, err := e.store.AllNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	edges, err := e.store.AllEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}

	graph := Graph{
		Version:     version.Version,
		GeneratedAt: time.Now().UTC(),
		NodeCount:   len(nodes),
		EdgeCount:   len(edges),
		Nodes:       nodes,
		Edges:       edges,
	}

	counter := &countingWriter{w: w}
	sink := io.Writer(counter)

	var enc *zstd.Encoder
	if compress {
		enc, err = zstd.NewWriter(counter)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		sink = enc
	}

	encoder := json.NewEncoder(sink)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(graph); err != nil {
		if enc != nil {
			_ = enc.Close()
		}
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to flush zstd frame: %w", err)
		}
	}

	summary := &Summary{
		Nodes:      len(nodes),
		Edges:      len(edges),
		Bytes:      counter.n,
		Compressed: compress,
	}
	e.logger.Info("graph exported", logging.Fields{
		"nodes":      summary.Nodes,
		"edges":      summary.Edges,
		"bytes":      summary.Bytes,
		"compressed": compress,
	})
	return summary, nil
}

// WriteFile exports to a path, appending .zst for compressed output
// when the name does not already carry it.
func (e *Exporter) WriteFile(ctx context.Context, path string, compress bool) (*Summary, error) {
	if compress && !strings.HasSuffix(path, ".zst") {
		path += ".zst"
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}

	summary, err := e.Write(ctx, f, compress)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close export file: %w", err)
	}

	summary.Path = path
	return summary, nil
}

// zstdMagic opens every zstd frame (RFC 8878).
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ReadGraph loads an export document, transparently handling zstd
// frames by their magic bytes.
func ReadGraph(r io.Reader) (*Graph, error) {
	buffered := bufio.NewReader(r)

	magic, err := buffered.Peek(4)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read export header: %w", err)
	}

	src := io.Reader(buffered)
	if bytes.Equal(magic, zstdMagic) {
		dec, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd frame: %w", err)
		}
		defer dec.Close()
		src = dec
	}

	var graph Graph
	if err := json.NewDecoder(src).Decode(&graph); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	return &graph, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
