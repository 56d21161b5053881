package main

import (
	"os"

	"github.com/spf13/cobra"

	"polyvis/internal/logging"
	"polyvis/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the knowledge graph over MCP (stdio)",
	Long: `Starts a Model Context Protocol server on stdin/stdout. Logs go to
stderr so the protocol stream stays clean.

Tools:
  search_documents          hybrid search over the graph
  read_node_content         full content of one node
  explore_links             edges around one node
  list_directory_structure  configured sources and their files
  inject_tags               write a tags marker into a source file`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol; structured JSON logs go to stderr.
	logger := logging.NewLogger(logging.Config{
		Format: logging.JSONFormat,
		Output: os.Stderr,
	})

	root := mustProjectRoot()
	cfg := loadConfig(root, logger)

	ctx, cancel := signalContext()
	defer cancel()

	server, err := mcp.NewServer(ctx, root, cfg, logger)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
