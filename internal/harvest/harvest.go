// Package harvest scans Markdown sources for tag-<slug> stubs that do
// not resolve against the lexicon and reports them, so vocabulary gaps
// surface before they silently skip edges during ingestion.
package harvest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"polyvis/internal/errors"
	"polyvis/internal/logging"
	"polyvis/internal/tokenizer"
	"polyvis/internal/weave"
)

// Finding is one unknown stub with every file it appears in.
type Finding struct {
	Slug  string   `json:"slug"`
	Count int      `json:"count"`
	Files []string `json:"files"`
}

// Report is the outcome of one harvest pass.
type Report struct {
	Dir          string    `json:"dir"`
	FilesScanned int       `json:"filesScanned"`
	StubsSeen    int       `json:"stubsSeen"`
	Findings     []Finding `json:"findings"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// Harvester walks a directory tree with one lexicon snapshot.
type Harvester struct {
	lexicon *tokenizer.Index
	logger  *logging.Logger
}

func New(lexicon *tokenizer.Index, logger *logging.Logger) *Harvester {
	return &Harvester{lexicon: lexicon, logger: logger}
}

// Run scans every .md file under dir. Unreadable files are logged and
// skipped; only an unwalkable root is a hard error.
func (h *Harvester) Run(dir string) (*Report, error) {
	report := &Report{Dir: dir, GeneratedAt: time.Now().UTC()}

	type hit struct {
		count int
		files map[string]bool
	}
	unknown := make(map[string]*hit)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			h.logger.Warn("skipping unreadable file", logging.Fields{
				"path":  path,
				"error": err.Error(),
			})
			return nil
		}
		report.FilesScanned++

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}

		for _, m := range weave.StubPattern.FindAllStringSubmatch(string(data), -1) {
			report.StubsSeen++
			slug := m[1]
			if _, ok := h.lexicon.Resolve(slug); ok {
				continue
			}
			entry := unknown[slug]
			if entry == nil {
				entry = &hit{files: make(map[string]bool)}
				unknown[slug] = entry
			}
			entry.count++
			entry.files[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.SourceUnreadable,
			fmt.Sprintf("cannot walk %s", dir), err)
	}

	for slug, entry := range unknown {
		files := make([]string, 0, len(entry.files))
		for f := range entry.files {
			files = append(files, f)
		}
		sort.Strings(files)
		report.Findings = append(report.Findings, Finding{
			Slug:  slug,
			Count: entry.count,
			Files: files,
		})
	}
	sort.Slice(report.Findings, func(i, j int) bool {
		if report.Findings[i].Count != report.Findings[j].Count {
			return report.Findings[i].Count > report.Findings[j].Count
		}
		return report.Findings[i].Slug < report.Findings[j].Slug
	})

	return report, nil
}

// Markdown renders the report for humans: a summary line and one
// section per unknown slug with its occurrence count and files.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Tag Harvest Report\n\n")
	fmt.Fprintf(&b, "- Directory: `%s`\n", r.Dir)
	fmt.Fprintf(&b, "- Files scanned: %d\n", r.FilesScanned)
	fmt.Fprintf(&b, "- Tag stubs seen: %d\n", r.StubsSeen)
	fmt.Fprintf(&b, "- Unknown slugs: %d\n", len(r.Findings))
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))

	if len(r.Findings) == 0 {
		b.WriteString("\nEvery tag stub resolves against the lexicon. Nothing to do.\n")
		return b.String()
	}

	b.WriteString("\n## Unknown stubs\n")
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "\n### tag-%s (%d occurrence", f.Slug, f.Count)
		if f.Count != 1 {
			b.WriteString("s")
		}
		b.WriteString(")\n\n")
		for _, file := range f.Files {
			fmt.Fprintf(&b, "- `%s`\n", file)
		}
	}
	return b.String()
}
