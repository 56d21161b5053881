package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"polyvis/internal/boxer"
	"polyvis/internal/config"
	"polyvis/internal/errors"
	"polyvis/internal/ledger"
	"polyvis/internal/logging"
	"polyvis/internal/storage"
	"polyvis/internal/tokenizer"
)

// boxWork is one box headed for upsert.
type boxWork struct {
	id       string
	content  string
	hash     string
	heading  string
	vector   []float32
	embedErr error
}

func (ing *Ingestor) runExperience(ctx context.Context, opts Options, stats *RunStats) error {
	for _, src := range ing.sources(opts) {
		files, err := listMarkdown(src.Path)
		if err != nil {
			ing.logger.Error("source not readable", logging.Fields{"path": src.Path, "error": err.Error()})
			continue
		}
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := ing.processFile(ctx, path, src.Type, stats); err != nil {
				if ctx.Err() != nil {
					return err
				}
				stats.FilesSkipped++
				ing.logger.Error("file skipped", logging.Fields{"file": path, "error": err.Error()})
				continue
			}
			stats.FilesScanned++
		}
	}
	return nil
}

// sources resolves which paths Phase 2 visits.
func (ing *Ingestor) sources(opts Options) []config.ExperienceSource {
	if opts.File != "" {
		return []config.ExperienceSource{{Path: opts.File, Type: ing.typeForPath(opts.File)}}
	}
	if opts.Dir != "" {
		return []config.ExperienceSource{{Path: opts.Dir, Type: ing.typeForPath(opts.Dir)}}
	}
	return ing.cfg.Paths.Sources.Experience
}

// typeForPath finds the configured source containing path. Paths
// outside every source ingest as generic documents.
func (ing *Ingestor) typeForPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return storage.NodeTypeDocument
	}
	for _, src := range ing.cfg.Paths.Sources.Experience {
		srcAbs, err := filepath.Abs(src.Path)
		if err != nil {
			continue
		}
		if abs == srcAbs || strings.HasPrefix(abs, srcAbs+string(filepath.Separator)) {
			return src.Type
		}
	}
	return storage.NodeTypeDocument
}

// listMarkdown returns the .md files under path in deterministic
// order. A path that is itself a Markdown file is returned alone.
func listMarkdown(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.SourceUnreadable, "cannot stat source", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".md") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.SourceUnreadable, "cannot walk source directory", err)
	}
	sort.Strings(files)
	return files, nil
}

// processFile segments one Markdown file into boxes and upserts every
// box whose content changed since the last run.
func (ing *Ingestor) processFile(ctx context.Context, path, fileType string, stats *RunStats) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.SourceUnreadable, "cannot read file", err)
	}

	fm, body, fmErr := boxer.SplitFrontmatter(raw)
	if fmErr != nil {
		ing.logger.Warn("frontmatter ignored", logging.Fields{"file": path, "error": fmErr.Error()})
	}

	work, err := ing.collectWork(path, body, stats)
	if err != nil {
		return err
	}
	if len(work) == 0 {
		return nil
	}

	ing.embedWork(ctx, work)
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range work {
		box := &work[i]

		if box.embedErr != nil {
			stats.EmbedFailures++
			ing.logger.Warn("embedding failed, box stays FTS-only", logging.Fields{
				"file":  path,
				"box":   box.id,
				"error": box.embedErr.Error(),
			})
		} else if box.vector != nil {
			stats.VectorsComputed++
		}

		title := box.heading
		if title == "" {
			title = boxer.TitleFromFilename(path)
		}

		meta := map[string]interface{}{"source": path}
		if tokens := ing.index.Extract(box.content).Flatten(); len(tokens) > 0 {
			meta["semantic_tokens"] = tokens
		}
		for key, value := range fm.Fields {
			if _, taken := meta[key]; !taken {
				meta[key] = value
			}
		}

		node := &storage.Node{
			ID:        box.id,
			Type:      fileType,
			Title:     title,
			Content:   box.content,
			Domain:    storage.DomainExperience,
			Layer:     storage.LayerNote,
			Embedding: box.vector,
			Hash:      box.hash,
			Meta:      meta,
		}
		if err := ing.store.UpsertNode(node); err != nil {
			return err
		}
		stats.NodesUpserted++

		woven, err := ing.weaver.Weave(box.id, box.content)
		if err != nil {
			return err
		}
		stats.EdgesAdded += woven.Added
		stats.GateRejections += woven.Rejected
	}
	return nil
}

// collectWork segments body and keeps the boxes whose hash differs
// from the stored node. Marked files split at their locus markers;
// markerless files are boxed in memory, and a single-box result takes
// the filename slug as its id.
func (ing *Ingestor) collectWork(path string, body []byte, stats *RunStats) ([]boxWork, error) {
	var work []boxWork

	appendBox := func(id, heading, content string) error {
		if strings.TrimSpace(content) == "" {
			return nil
		}
		stats.BoxesSeen++

		hash := ledger.Hash(content)
		stored, err := ing.store.GetNodeHash(id)
		if err != nil {
			return err
		}
		if stored == hash {
			stats.BoxesSkipped++
			return nil
		}

		work = append(work, boxWork{
			id:      id,
			content: content,
			hash:    hash,
			heading: heading,
		})
		return nil
	}

	if boxer.HasMarkers(body) {
		for _, segment := range boxer.SplitMarked(body) {
			content := boxer.StripMarkers(segment.Content)
			id := segment.ID
			if id == "" {
				// Text above the first marker gets a ledger id so it
				// is never silently dropped.
				minted, err := ing.ledger.GetOrMint(ledger.Hash(content))
				if err != nil {
					return nil, err
				}
				id = minted
			}
			if err := appendBox(id, firstHeading(content), content); err != nil {
				return nil, err
			}
		}
		return work, nil
	}

	boxes, err := ing.boxer.BoxBody(body)
	if err != nil {
		return nil, err
	}
	if len(boxes) == 1 {
		if err := appendBox(fileSlug(path), boxes[0].Heading, boxes[0].Content); err != nil {
			return nil, err
		}
		return work, nil
	}
	for _, box := range boxes {
		if err := appendBox(box.ID, box.Heading, box.Content); err != nil {
			return nil, err
		}
	}
	return work, nil
}

// embedWork fills vectors for boxes above the length floor, a bounded
// number at a time. Failures are recorded per box, never aborting the
// file; the single writer applies results afterwards.
func (ing *Ingestor) embedWork(ctx context.Context, work []boxWork) {
	if ing.embedder == nil {
		return
	}

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(maxEmbedWorkers)
	for i := range work {
		box := &work[i]
		if len(box.content) <= minEmbedLength {
			continue
		}
		eg.Go(func() error {
			vec, err := ing.embedder.Embed(ectx, box.content)
			if err != nil {
				box.embedErr = err
				return nil
			}
			box.vector = storage.Normalize(vec)
			return nil
		})
	}
	_ = eg.Wait()
}

// fileSlug derives a node id from the file name.
func fileSlug(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return tokenizer.Slugify(stem)
}

// firstHeading returns the text of the leading heading line, if the
// box opens with one.
func firstHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
		return ""
	}
	return ""
}
