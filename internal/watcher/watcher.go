// Package watcher reacts to Markdown edits in configured source
// directories. Raw fsnotify events are noisy; editors write temp
// files and fire several events per save. Everything funnels through
// a batch debouncer so the handler sees one quiet-period batch.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"polyvis/internal/logging"
)

// DefaultDebounce is the quiet period before a batch fires.
const DefaultDebounce = 2 * time.Second

// Event is one observed Markdown change.
type Event struct {
	Path string    `json:"path"`
	Op   string    `json:"op"`
	At   time.Time `json:"at"`
}

// ChangeHandler receives each debounced batch.
type ChangeHandler func(events []Event)

// Watcher tails a set of directory trees for .md changes.
type Watcher struct {
	roots    []string
	fsw      *fsnotify.Watcher
	batch    *BatchDebouncer
	logger   *logging.Logger
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a watcher over the given roots. debounce <= 0 uses the
// default quiet period.
func New(roots []string, debounce time.Duration, logger *logging.Logger, handler ChangeHandler) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no directories to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		roots:    roots,
		fsw:      fsw,
		batch:    NewBatchDebouncer(debounce, handler),
		logger:   logger,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Roots returns the watched directory roots.
func (w *Watcher) Roots() []string { return w.roots }

// Start registers every subdirectory of the roots and begins the
// event loop.
func (w *Watcher) Start() error {
	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		w.logger.Info("watching directory", logging.Fields{
			"path":       root,
			"debounceMs": w.debounce.Milliseconds(),
		})
	}

	w.wg.Add(1)
	go w.eventLoop()
	return nil
}

// Stop tears down the event loop. Pending batched events are dropped;
// the next run's change detection picks them up anyway.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()
	w.batch.Cancel()
	w.wg.Wait()
	return err
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Fields{"error": err.Error()})

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	// New directories must be registered before files land in them.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", logging.Fields{
					"path":  event.Name,
					"error": err.Error(),
				})
			}
			return
		}
	}

	if !strings.EqualFold(filepath.Ext(event.Name), ".md") {
		return
	}

	op := ""
	switch {
	case event.Op&fsnotify.Create != 0:
		op = "create"
	case event.Op&fsnotify.Write != 0:
		op = "write"
	case event.Op&fsnotify.Remove != 0:
		op = "remove"
	case event.Op&fsnotify.Rename != 0:
		op = "rename"
	default:
		return // chmod and friends
	}

	w.logger.Debug("file event", logging.Fields{"path": event.Name, "op": op})
	w.batch.Add(Event{Path: event.Name, Op: op, At: time.Now()})
}
