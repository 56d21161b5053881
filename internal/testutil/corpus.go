// Package testutil builds throwaway corpus projects for integration
// tests: a temp root with a docs directory, persona artifacts, and a
// configuration whose paths all point inside it.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"polyvis/internal/config"
)

// LexiconSeed is one lexicon entry written by WriteLexicon.
type LexiconSeed struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// DirectiveSeed is one directive catalog entry written by WriteCDA.
type DirectiveSeed struct {
	ID            string         `json:"id"`
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"`
	Relationships []RelationSeed `json:"relationships,omitempty"`
}

// RelationSeed is one pre-validated relationship on a directive.
type RelationSeed struct {
	Type      string `json:"type"`
	Target    string `json:"target"`
	Validated bool   `json:"validated"`
}

// Project is a corpus rooted in a temp directory that the test
// framework removes afterwards.
type Project struct {
	Root string
	Docs string
}

// NewProject lays out an empty corpus project.
func NewProject(t *testing.T) *Project {
	t.Helper()
	root := t.TempDir()
	docs := filepath.Join(root, "docs")
	for _, dir := range []string{docs, filepath.Join(root, "persona")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to lay out project: %v", err)
		}
	}
	return &Project{Root: root, Docs: docs}
}

// Config returns settings with every path anchored inside the project,
// so tests never depend on the working directory.
func (p *Project) Config(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Paths.Database.Resonance = filepath.Join(p.Root, "data", "resonance.db")
	cfg.Paths.Database.Ledger = filepath.Join(p.Root, "data", "loci.db")
	cfg.Paths.Sources.Experience = []config.ExperienceSource{{Path: p.Docs, Type: "note"}}
	cfg.Paths.Sources.Persona.Lexicon = filepath.Join(p.Root, "persona", "lexicon.json")
	cfg.Paths.Sources.Persona.CDA = filepath.Join(p.Root, "persona", "cda.json")
	return cfg
}

// WriteDoc puts a Markdown file under docs/ and returns its absolute
// path. Parent directories are created as needed.
func (p *Project) WriteDoc(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(p.Docs, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create doc directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write doc %s: %v", rel, err)
	}
	return path
}

// ReadDoc returns the current content of a docs/ file.
func (p *Project) ReadDoc(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(p.Docs, rel))
	if err != nil {
		t.Fatalf("failed to read doc %s: %v", rel, err)
	}
	return string(data)
}

// WriteLexicon writes the persona lexicon JSON array.
func (p *Project) WriteLexicon(t *testing.T, terms []LexiconSeed) {
	t.Helper()
	p.writeJSON(t, filepath.Join(p.Root, "persona", "lexicon.json"), terms)
}

// WriteCDA writes the directive catalog JSON array.
func (p *Project) WriteCDA(t *testing.T, directives []DirectiveSeed) {
	t.Helper()
	p.writeJSON(t, filepath.Join(p.Root, "persona", "cda.json"), directives)
}

// WriteSettings materializes cfg as polyvis.settings.json at the root,
// for tests that exercise configuration loading itself.
func (p *Project) WriteSettings(t *testing.T, cfg *config.Config) {
	t.Helper()
	if err := cfg.Save(p.Root); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}
}

func (p *Project) writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal %s: %v", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", filepath.Base(path), err)
	}
}
