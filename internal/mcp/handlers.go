package mcp

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"polyvis/internal/boxer"
	"polyvis/internal/logging"
	"polyvis/internal/tagger"
)

// defaultSearchLimit caps search_documents when the client omits limit.
const defaultSearchLimit = 10

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "search_documents",
		Description: "Hybrid vector + keyword search over the knowledge graph; results carry scores and previews",
	}, s.handleSearchDocuments)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "read_node_content",
		Description: "Read one node's full content by id",
	}, s.handleReadNodeContent)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "explore_links",
		Description: "List the edges touching a node, with the titles of the nodes on the far end",
	}, s.handleExploreLinks)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "list_directory_structure",
		Description: "List the configured corpus sources and their Markdown files",
	}, s.handleListDirectoryStructure)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "inject_tags",
		Description: "Write a tags annotation line onto one box of a source document",
	}, s.handleInjectTags)
}

func (s *Server) handleSearchDocuments(ctx context.Context, req *sdk.CallToolRequest, args SearchDocumentsInput) (*sdk.CallToolResult, SearchDocumentsOutput, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return nil, SearchDocumentsOutput{}, fmt.Errorf("query must not be empty")
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	resp := s.engine.Search(ctx, query, limit)
	if resp.IsError {
		return nil, SearchDocumentsOutput{}, fmt.Errorf("search failed: %s", strings.Join(resp.Errors, "; "))
	}
	return nil, SearchDocumentsOutput{
		Query:   resp.Query,
		Results: resp.Results,
		Errors:  resp.Errors,
	}, nil
}

func (s *Server) handleReadNodeContent(ctx context.Context, req *sdk.CallToolRequest, args ReadNodeContentInput) (*sdk.CallToolResult, ReadNodeContentOutput, error) {
	id := strings.TrimSpace(args.ID)
	if id == "" {
		return nil, ReadNodeContentOutput{}, fmt.Errorf("id must not be empty")
	}

	node, err := s.store.GetNode(id)
	if err == sql.ErrNoRows {
		return nil, ReadNodeContentOutput{}, fmt.Errorf("no node with id %q", id)
	}
	if err != nil {
		return nil, ReadNodeContentOutput{}, fmt.Errorf("failed to read node: %w", err)
	}

	return nil, ReadNodeContentOutput{
		ID:        node.ID,
		Type:      node.Type,
		Title:     node.Title,
		Content:   node.Content,
		Domain:    node.Domain,
		Layer:     node.Layer,
		CreatedAt: node.CreatedAt,
	}, nil
}

func (s *Server) handleExploreLinks(ctx context.Context, req *sdk.CallToolRequest, args ExploreLinksInput) (*sdk.CallToolResult, ExploreLinksOutput, error) {
	id := strings.TrimSpace(args.ID)
	if id == "" {
		return nil, ExploreLinksOutput{}, fmt.Errorf("id must not be empty")
	}

	node, err := s.store.GetNode(id)
	if err == sql.ErrNoRows {
		return nil, ExploreLinksOutput{}, fmt.Errorf("no node with id %q", id)
	}
	if err != nil {
		return nil, ExploreLinksOutput{}, fmt.Errorf("failed to read node: %w", err)
	}

	edges, err := s.store.GetEdges(id)
	if err != nil {
		return nil, ExploreLinksOutput{}, fmt.Errorf("failed to read edges: %w", err)
	}

	out := ExploreLinksOutput{ID: node.ID, Title: node.Title, Links: make([]Link, 0, len(edges))}
	for _, edge := range edges {
		link := Link{Direction: "out", Type: edge.Type, Other: edge.Target}
		if edge.Target == id && edge.Source != id {
			link = Link{Direction: "in", Type: edge.Type, Other: edge.Source}
		}
		if other, err := s.store.GetNode(link.Other); err == nil {
			link.Title = other.Title
		}
		out.Links = append(out.Links, link)
	}
	sort.SliceStable(out.Links, func(i, j int) bool {
		return out.Links[i].Direction > out.Links[j].Direction // "out" before "in"
	})
	out.Count = len(out.Links)
	return nil, out, nil
}

func (s *Server) handleListDirectoryStructure(ctx context.Context, req *sdk.CallToolRequest, args ListDirectoryStructureInput) (*sdk.CallToolResult, ListDirectoryStructureOutput, error) {
	out := ListDirectoryStructureOutput{Root: s.root}

	for _, src := range s.cfg.Paths.Sources.Experience {
		tree := SourceTree{Path: src.Path, Type: src.Type, Files: []string{}}
		dir := s.resolve(src.Path)
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && p != dir {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.EqualFold(filepath.Ext(p), ".md") {
				return nil
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			tree.Files = append(tree.Files, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", src.Path, err))
			continue
		}
		sort.Strings(tree.Files)
		out.Sources = append(out.Sources, tree)
	}

	if p := s.cfg.Paths.Sources.Persona.Lexicon; p != "" {
		if _, err := os.Stat(s.resolve(p)); err == nil {
			out.Persona.Lexicon = p
		}
	}
	if p := s.cfg.Paths.Sources.Persona.CDA; p != "" {
		if _, err := os.Stat(s.resolve(p)); err == nil {
			out.Persona.CDA = p
		}
	}
	return nil, out, nil
}

func (s *Server) handleInjectTags(ctx context.Context, req *sdk.CallToolRequest, args InjectTagsInput) (*sdk.CallToolResult, InjectTagsOutput, error) {
	path := strings.TrimSpace(args.Path)
	locus := strings.TrimSpace(args.Locus)
	if path == "" || locus == "" {
		return nil, InjectTagsOutput{}, fmt.Errorf("path and locus are required")
	}
	if len(args.Tags) == 0 {
		return nil, InjectTagsOutput{}, fmt.Errorf("at least one tag is required")
	}

	tags := make([]tagger.Tag, 0, len(args.Tags))
	for i, raw := range args.Tags {
		tag := tagger.Tag{
			Type:   strings.ToUpper(strings.TrimSpace(raw.Type)),
			Target: strings.TrimSpace(raw.Target),
		}
		if tag.Type == "" || tag.Target == "" {
			return nil, InjectTagsOutput{}, fmt.Errorf("tag %d needs both type and target", i)
		}
		tags = append(tags, tag)
	}

	abs := s.resolve(path)
	body, err := os.ReadFile(abs)
	if err != nil {
		return nil, InjectTagsOutput{}, fmt.Errorf("cannot read %s: %w", path, err)
	}

	marker := tagger.Marker(tags)
	updated, err := boxer.InjectTags(body, locus, marker+"\n")
	if err != nil {
		return nil, InjectTagsOutput{}, fmt.Errorf("cannot annotate %s: %w", path, err)
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(abs); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(abs, updated, mode); err != nil {
		return nil, InjectTagsOutput{}, fmt.Errorf("cannot write %s: %w", path, err)
	}

	s.logger.Info("tags injected", logging.Fields{
		"file":  path,
		"locus": locus,
		"tags":  len(tags),
	})
	return nil, InjectTagsOutput{Path: path, Locus: locus, Marker: marker, Tags: len(tags)}, nil
}

// resolve anchors a relative settings path at the project root.
func (s *Server) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}
