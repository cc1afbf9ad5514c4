// Package watcher keeps a directory and the knowledge base in step: files
// created or modified under the directory are ingested, removed files are
// deleted.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// DefaultDebounce is how long a path must be quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// pathNamespace seeds document ids derived from file paths.
var pathNamespace = uuid.MustParse("6f1c4a2e-8d3b-5e7f-9a0c-2b4d6e8f1a3c")

// Watcher ingests files from a directory as they change.
type Watcher struct {
	dir       string
	documents driving.DocumentService
	rag       driving.RAGService
	debounce  time.Duration
	tags      []string

	mu      sync.Mutex
	pending map[string]time.Time
	hashes  map[string]string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must stay unchanged before ingestion.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithTags attaches tags to every document the watcher ingests.
func WithTags(tags ...string) Option {
	return func(w *Watcher) {
		w.tags = tags
	}
}

// New creates a watcher for dir.
func New(dir string, documents driving.DocumentService, rag driving.RAGService, opts ...Option) (*Watcher, error) {
	if documents == nil || rag == nil {
		return nil, errors.New("watcher: document and rag services are required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: watch directory: %v", domain.ErrInvalidConfiguration, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: watch path %s is not a directory", domain.ErrInvalidConfiguration, abs)
	}

	w := &Watcher{
		dir:       abs,
		documents: documents,
		rag:       rag,
		debounce:  DefaultDebounce,
		pending:   make(map[string]time.Time),
		hashes:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// DocumentIDForPath returns the stable document id used for a watched file.
func DocumentIDForPath(path string) string {
	return uuid.NewSHA1(pathNamespace, []byte(filepath.Clean(path))).String()
}

// Run scans the directory, then processes change events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()

	logger.Info("Watching %s", w.dir)
	if err := w.addTree(ctx, fsw, w.dir); err != nil {
		return err
	}

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopped watching %s", w.dir)
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// addTree watches root and every visible directory below it, scheduling
// each supported file for ingestion.
func (w *Watcher) addTree(ctx context.Context, fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			return nil
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			return ctx.Err()
		}
		if supported(path) {
			w.schedule(path, time.Time{})
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if isHidden(filepath.Base(event.Name)) {
		return
	}
	logger.Debug("Watcher event: %s", event)

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) && fsw != nil {
				if err := w.addTree(ctx, fsw, event.Name); err != nil {
					logger.Warn("Could not watch %s: %v", event.Name, err)
				}
			}
			return
		}
		if supported(event.Name) {
			w.schedule(event.Name, time.Now())
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.remove(ctx, event.Name)
	}
}

// schedule marks path for ingestion once it has been quiet for the
// debounce interval. A zero time makes it due on the next flush.
func (w *Watcher) schedule(path string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = at
}

// flush ingests every pending path whose last change is old enough.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var due []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			due = append(due, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range due {
		if err := w.ingest(ctx, path); err != nil {
			logger.Warn("Could not ingest %s: %v", path, err)
		}
	}
}

// ingest uploads path unless its content is unchanged since the last run.
func (w *Watcher) ingest(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	w.mu.Lock()
	unchanged := w.hashes[path] == hash
	w.mu.Unlock()
	if unchanged {
		logger.Debug("Unchanged: %s", path)
		return nil
	}

	res, err := w.documents.IngestFile(ctx, driving.IngestFileRequest{
		Filename:   filepath.Base(path),
		Content:    content,
		DocumentID: DocumentIDForPath(path),
		Tags:       w.tags,
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.hashes[path] = hash
	w.mu.Unlock()
	logger.Info("Ingested %s as %s (%d chunks)", path, res.DocumentID, res.ChunkCount)
	return nil
}

// remove deletes the document for path, or for every file below it when
// path was a directory.
func (w *Watcher) remove(ctx context.Context, path string) {
	w.mu.Lock()
	var targets []string
	prefix := path + string(filepath.Separator)
	for p := range w.hashes {
		if p == path || strings.HasPrefix(p, prefix) {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 && supported(path) {
		targets = append(targets, path)
	}
	for _, p := range targets {
		delete(w.hashes, p)
		delete(w.pending, p)
	}
	w.mu.Unlock()

	for _, p := range targets {
		err := w.rag.DeleteDocument(ctx, DocumentIDForPath(p))
		switch {
		case err == nil:
			logger.Info("Removed %s", p)
		case errors.Is(err, domain.ErrNotFound):
		default:
			logger.Warn("Could not remove %s: %v", p, err)
		}
	}
}

func supported(path string) bool {
	ft, err := domain.DetectFileType(path)
	return err == nil && ft != domain.FileTypeSpreadsheet
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
