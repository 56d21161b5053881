// Package mcp serves the knowledge graph to MCP clients over stdio.
//
// Five tools are exposed: hybrid search, node reads, link exploration,
// corpus layout, and tag injection into source documents. Every tool
// returns structured JSON so agents can chain calls without scraping
// prose output.
package mcp

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"polyvis/internal/config"
	"polyvis/internal/embed"
	"polyvis/internal/logging"
	"polyvis/internal/search"
	"polyvis/internal/storage"
	"polyvis/internal/version"
)

// Server wraps the SDK server around one project's graph store.
type Server struct {
	server *sdk.Server
	cfg    *config.Config
	store  *storage.Store
	engine *search.Engine
	root   string
	logger *logging.Logger
}

// NewServer opens the graph store under root and registers the polyvis
// tool set. Embedding is best-effort: when no embedder is reachable the
// search tool serves keyword results only.
func NewServer(ctx context.Context, root string, cfg *config.Config, logger *logging.Logger) (*Server, error) {
	store, err := storage.Open(cfg.ResonancePath(root), logger)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.Resolve(ctx, cfg, logger)
	if err != nil {
		logger.Warn("no embedder reachable, search degrades to keyword-only", logging.Fields{
			"error": err.Error(),
		})
		embedder = nil
	}

	s := &Server{
		server: sdk.NewServer(&sdk.Implementation{
			Name:    "polyvis",
			Version: version.Version,
		}, &sdk.ServerOptions{
			InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
				logger.Info("mcp client initialized", nil)
			},
		}),
		cfg:    cfg,
		store:  store,
		engine: search.NewEngine(store, embedder, cfg.Search, logger),
		root:   root,
		logger: logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves the stdio transport until the client disconnects or a
// termination signal arrives. The store is closed on the way out.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})
	s.store.Close()
	return err
}

// Close releases the store without serving. Used when construction
// succeeds but the caller aborts before Run.
func (s *Server) Close() error {
	return s.store.Close()
}
