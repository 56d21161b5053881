package harvest

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"polyvis/internal/logging"
	"polyvis/internal/tokenizer"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel, Output: io.Discard})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s failed: %v", name, err)
	}
}

func testHarvester() *Harvester {
	lex := tokenizer.NewIndex([]tokenizer.LexiconItem{
		{ID: "term-known", Title: "Known"},
	})
	return New(lex, testLogger())
}

func TestHarvestFindsUnknownStubs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Mentions tag-known once and tag-mystery twice: tag-mystery.")
	writeFile(t, dir, "sub/b.md", "Another tag-mystery plus tag-solo.")
	writeFile(t, dir, "c.txt", "tag-ignored lives in a non-markdown file")

	report, err := testHarvester().Run(dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", report.FilesScanned)
	}
	if report.StubsSeen != 5 {
		t.Errorf("StubsSeen = %d, want 5", report.StubsSeen)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("got %d findings, want 2: %+v", len(report.Findings), report.Findings)
	}

	// Sorted by count descending: mystery (3) before solo (1).
	top := report.Findings[0]
	if top.Slug != "mystery" || top.Count != 3 {
		t.Errorf("top finding = %+v, want mystery x3", top)
	}
	if len(top.Files) != 2 {
		t.Errorf("mystery files = %v, want both files", top.Files)
	}
	if report.Findings[1].Slug != "solo" {
		t.Errorf("second finding = %+v, want solo", report.Findings[1])
	}
}

func TestHarvestResolvedStubsExcluded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Only tag-known here.")

	report, err := testHarvester().Run(dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.StubsSeen != 1 {
		t.Errorf("StubsSeen = %d, want 1", report.StubsSeen)
	}
	if len(report.Findings) != 0 {
		t.Errorf("findings = %+v, want none", report.Findings)
	}
}

func TestHarvestSkipsHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".git/notes.md", "tag-hidden should not be seen")
	writeFile(t, dir, "visible.md", "tag-visible")

	report, err := testHarvester().Run(dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", report.FilesScanned)
	}
	for _, f := range report.Findings {
		if f.Slug == "hidden" {
			t.Error("stub from hidden directory reported")
		}
	}
}

func TestHarvestMissingDir(t *testing.T) {
	if _, err := testHarvester().Run(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestReportMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "tag-gap appears here")

	report, err := testHarvester().Run(dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	md := report.Markdown()
	for _, want := range []string{"# Tag Harvest Report", "tag-gap", "a.md", "Files scanned: 1"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestReportMarkdownClean(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "no stubs at all")

	report, err := testHarvester().Run(dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(report.Markdown(), "Nothing to do") {
		t.Error("clean report should say there is nothing to do")
	}
}
