package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// recordingDocuments records uploads.
type recordingDocuments struct {
	driving.DocumentService

	mu      sync.Mutex
	uploads []driving.IngestFileRequest
	err     error
}

func (d *recordingDocuments) IngestFile(
	_ context.Context, req driving.IngestFileRequest,
) (*domain.IngestResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.uploads = append(d.uploads, req)
	return &domain.IngestResult{DocumentID: req.DocumentID, Filename: req.Filename, ChunkCount: 1}, nil
}

func (d *recordingDocuments) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.uploads)
}

func (d *recordingDocuments) last() driving.IngestFileRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uploads[len(d.uploads)-1]
}

// recordingRAG records deletions.
type recordingRAG struct {
	driving.RAGService

	mu      sync.Mutex
	deleted []string
	err     error
}

func (r *recordingRAG) DeleteDocument(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return r.err
}

func (r *recordingRAG) deletedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

func newTestWatcher(t *testing.T) (*Watcher, *recordingDocuments, *recordingRAG) {
	t.Helper()
	docs := &recordingDocuments{}
	rag := &recordingRAG{}
	w, err := New(t.TempDir(), docs, rag, WithDebounce(20*time.Millisecond), WithTags("inbox"))
	require.NoError(t, err)
	return w, docs, rag
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(t.TempDir(), nil, &recordingRAG{})
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "missing"), &recordingDocuments{}, &recordingRAG{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	file := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, file, "hello world")
	_, err = New(file, &recordingDocuments{}, &recordingRAG{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestDocumentIDForPath(t *testing.T) {
	a := DocumentIDForPath("/data/notes.txt")
	assert.Equal(t, a, DocumentIDForPath("/data/./notes.txt"))
	assert.NotEqual(t, a, DocumentIDForPath("/data/other.txt"))
	assert.Len(t, a, 36)
}

func TestHandleEvent_IngestsAfterDebounce(t *testing.T) {
	w, docs, _ := newTestWatcher(t)
	w.debounce = time.Minute
	ctx := context.Background()
	path := filepath.Join(w.dir, "notes.md")
	writeFile(t, path, "# Notes\n\nSome text.")

	w.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Create})
	w.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Write})

	w.flush(ctx, time.Now())
	assert.Zero(t, docs.count(), "not yet quiet")

	w.flush(ctx, time.Now().Add(2*time.Minute))
	require.Equal(t, 1, docs.count())
	req := docs.last()
	assert.Equal(t, "notes.md", req.Filename)
	assert.Equal(t, DocumentIDForPath(path), req.DocumentID)
	assert.Equal(t, []string{"inbox"}, req.Tags)
	assert.Equal(t, []byte("# Notes\n\nSome text."), req.Content)
}

func TestHandleEvent_SkipsUnchangedContent(t *testing.T) {
	w, docs, _ := newTestWatcher(t)
	ctx := context.Background()
	path := filepath.Join(w.dir, "notes.txt")
	writeFile(t, path, "unchanged content")

	require.NoError(t, w.ingest(ctx, path))
	require.NoError(t, w.ingest(ctx, path))
	assert.Equal(t, 1, docs.count())

	writeFile(t, path, "changed content")
	require.NoError(t, w.ingest(ctx, path))
	assert.Equal(t, 2, docs.count())
}

func TestHandleEvent_IgnoresHiddenAndUnsupported(t *testing.T) {
	w, docs, rag := newTestWatcher(t)
	ctx := context.Background()

	hidden := filepath.Join(w.dir, ".swap.txt")
	binary := filepath.Join(w.dir, "tool.exe")
	sheet := filepath.Join(w.dir, "budget.xlsx")
	for _, p := range []string{hidden, binary, sheet} {
		writeFile(t, p, "some file content")
		w.handleEvent(ctx, nil, fsnotify.Event{Name: p, Op: fsnotify.Create})
	}
	w.handleEvent(ctx, nil, fsnotify.Event{Name: binary, Op: fsnotify.Remove})

	w.flush(ctx, time.Now().Add(time.Second))
	assert.Zero(t, docs.count())
	assert.Empty(t, rag.deletedIDs())
}

func TestHandleEvent_RemoveDeletesDocument(t *testing.T) {
	w, docs, rag := newTestWatcher(t)
	ctx := context.Background()
	path := filepath.Join(w.dir, "notes.txt")
	writeFile(t, path, "some notes here")
	require.NoError(t, w.ingest(ctx, path))
	require.Equal(t, 1, docs.count())

	require.NoError(t, os.Remove(path))
	w.handleEvent(ctx, nil, fsnotify.Event{Name: path, Op: fsnotify.Remove})

	assert.Equal(t, []string{DocumentIDForPath(path)}, rag.deletedIDs())

	// Re-creating the same content ingests again.
	writeFile(t, path, "some notes here")
	require.NoError(t, w.ingest(ctx, path))
	assert.Equal(t, 2, docs.count())
}

func TestHandleEvent_RemoveDirectory(t *testing.T) {
	w, _, rag := newTestWatcher(t)
	ctx := context.Background()
	sub := filepath.Join(w.dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	a := filepath.Join(sub, "a.txt")
	b := filepath.Join(sub, "b.md")
	writeFile(t, a, "first document")
	writeFile(t, b, "second document")
	require.NoError(t, w.ingest(ctx, a))
	require.NoError(t, w.ingest(ctx, b))

	require.NoError(t, os.RemoveAll(sub))
	w.handleEvent(ctx, nil, fsnotify.Event{Name: sub, Op: fsnotify.Remove})

	assert.ElementsMatch(t, []string{DocumentIDForPath(a), DocumentIDForPath(b)}, rag.deletedIDs())
}

func TestFlush_IngestErrorIsNotFatal(t *testing.T) {
	w, docs, _ := newTestWatcher(t)
	docs.err = domain.ErrCorruptFile
	ctx := context.Background()
	path := filepath.Join(w.dir, "broken.pdf")
	writeFile(t, path, "not really a pdf")

	w.schedule(path, time.Time{})
	w.flush(ctx, time.Now())

	// The hash is not recorded, so a later write retries.
	docs.err = nil
	require.NoError(t, w.ingest(ctx, path))
	assert.Equal(t, 1, docs.count())
}

func TestRun_ScansAndWatches(t *testing.T) {
	w, docs, rag := newTestWatcher(t)
	existing := filepath.Join(w.dir, "existing.txt")
	writeFile(t, existing, "already here before the watcher")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return docs.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	added := filepath.Join(w.dir, "added.md")
	writeFile(t, added, "# Added\n\nWritten while watching.")
	assert.Eventually(t, func() bool { return docs.count() >= 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "added.md", docs.last().Filename)

	require.NoError(t, os.Remove(existing))
	assert.Eventually(t, func() bool {
		for _, id := range rag.deletedIDs() {
			if id == DocumentIDForPath(existing) {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
