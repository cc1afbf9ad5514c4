package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	vectormemory "github.com/custodia-labs/sercha-rag/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// --- Mock implementations ---

// paragraphChunker splits text on blank lines, one segment per paragraph.
type paragraphChunker struct {
	err error
}

func (c *paragraphChunker) Split(text string) ([]domain.Segment, error) {
	if c.err != nil {
		return nil, c.err
	}
	var segs []domain.Segment
	offset := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			segs = append(segs, domain.Segment{Content: p, Offset: offset})
		}
		offset += len([]rune(p)) + 2
	}
	return segs, nil
}

func (c *paragraphChunker) ChunkSize() int { return 1000 }
func (c *paragraphChunker) Overlap() int   { return 0 }

// testVocabulary gives keywordEmbedder one dimension per word.
var testVocabulary = []string{"go", "rust", "cats", "dogs", "pasta", "space", "rockets", "garden"}

// keywordEmbedder maps texts onto testVocabulary counts plus a small
// constant component, so cosine scores follow word overlap.
type keywordEmbedder struct {
	mu sync.Mutex

	// errs are returned by successive calls before succeeding.
	errs  []error
	dims  int
	calls atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration

	// short drops the last vector from each batch.
	short bool
}

func (e *keywordEmbedder) nextErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	err := e.errs[0]
	e.errs = e.errs[1:]
	return err
}

func (e *keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(testVocabulary)+1)
	v[len(testVocabulary)] = 0.1
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,?!")
		for i, word := range testVocabulary {
			if w == word {
				v[i]++
			}
		}
	}
	return v
}

func (e *keywordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		m := e.maxInFlight.Load()
		if n <= m || e.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := e.nextErr(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	if e.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if err := e.nextErr(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *keywordEmbedder) Dimensions() int {
	if e.dims > 0 {
		return e.dims
	}
	return len(testVocabulary) + 1
}

func (e *keywordEmbedder) ModelName() string           { return "keyword" }
func (e *keywordEmbedder) Ping(_ context.Context) error { return nil }
func (e *keywordEmbedder) Close() error                 { return nil }

// recordingLLM returns answer and records every prompt it was given.
type recordingLLM struct {
	mu      sync.Mutex
	answer  string
	errs    []error
	prompts []string
	opts    []driven.GenerateOptions
}

func (l *recordingLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	l.opts = append(l.opts, opts)
	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		return "", err
	}
	if l.answer == "" {
		return "  generated answer  ", nil
	}
	return l.answer, nil
}

func (l *recordingLLM) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

func (l *recordingLLM) lastPrompt() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.prompts) == 0 {
		return ""
	}
	return l.prompts[len(l.prompts)-1]
}

func (l *recordingLLM) ModelName() string           { return "recording" }
func (l *recordingLLM) Ping(_ context.Context) error { return nil }
func (l *recordingLLM) Close() error                 { return nil }

// staticPrompts serves fixed templates.
type staticPrompts map[string]string

func (p staticPrompts) Load(name string) (string, error) {
	if t, ok := p[name]; ok {
		return t, nil
	}
	return "", domain.ErrNotFound
}

func (p staticPrompts) Reload() {}

func testPrompts() staticPrompts {
	return staticPrompts{
		driven.PromptRAGAnswer: "CONTEXT:\n{{context}}\n{{history}}Q: {{question}}",
		driven.PromptSummarise: "SUMMARISE {{filename}}:\n{{content}}",
		driven.PromptSystem:    "be grounded",
	}
}

// faultyVectors injects failures into a memory vector store.
type faultyVectors struct {
	*vectormemory.Store
	upsertErr error
	deleteErr error
	countErr  error
	resetErr  error

	// failDeletes, when positive, limits deleteErr to that many calls.
	failDeletes int

	mu      sync.Mutex
	deletes [][]string
}

func (v *faultyVectors) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if v.upsertErr != nil {
		return v.upsertErr
	}
	return v.Store.Upsert(ctx, records)
}

func (v *faultyVectors) Delete(ctx context.Context, ids []string) error {
	v.mu.Lock()
	v.deletes = append(v.deletes, ids)
	err := v.deleteErr
	if v.failDeletes > 0 {
		v.failDeletes--
		if v.failDeletes == 0 {
			v.deleteErr = nil
		}
	}
	v.mu.Unlock()
	if err != nil {
		return err
	}
	return v.Store.Delete(ctx, ids)
}

func (v *faultyVectors) Reset(ctx context.Context) error {
	if v.resetErr != nil {
		return v.resetErr
	}
	return v.Store.Reset(ctx)
}

func (v *faultyVectors) Count(ctx context.Context) (int, error) {
	if v.countErr != nil {
		return 0, v.countErr
	}
	return v.Store.Count(ctx)
}

// faultyDocuments injects failures into a memory document store.
type faultyDocuments struct {
	*memory.DocumentStore
	saveDocErr    error
	saveChunksErr error
}

func (d *faultyDocuments) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if d.saveDocErr != nil {
		return d.saveDocErr
	}
	return d.DocumentStore.SaveDocument(ctx, doc)
}

func (d *faultyDocuments) SaveChunks(ctx context.Context, id string, chunks []domain.Chunk) error {
	if d.saveChunksErr != nil {
		return d.saveChunksErr
	}
	return d.DocumentStore.SaveChunks(ctx, id, chunks)
}

// testEngine bundles an engine with its collaborators.
type testEngine struct {
	*RAGService
	embedder *keywordEmbedder
	llm      *recordingLLM
	vectors  *faultyVectors
	docs     *faultyDocuments
}

// newTestEngine builds an engine over memory stores. Retries do not sleep.
func newTestEngine(t *testing.T, cfg EngineConfig) *testEngine {
	t.Helper()
	te := &testEngine{
		embedder: &keywordEmbedder{},
		llm:      &recordingLLM{},
		vectors:  &faultyVectors{Store: vectormemory.New()},
		docs:     &faultyDocuments{DocumentStore: memory.NewDocumentStore()},
	}
	svc, err := NewRAGService(cfg, Dependencies{
		Chunker:   &paragraphChunker{},
		Embedder:  te.embedder,
		LLM:       te.llm,
		Vectors:   te.vectors,
		Documents: te.docs,
		Prompts:   testPrompts(),
	})
	require.NoError(t, err)
	svc.retry.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	te.RAGService = svc
	return te
}

func rateLimited() error {
	return &domain.ProviderError{
		Op:       domain.ErrEmbeddingProvider,
		Kind:     domain.ErrRateLimited,
		Provider: "test",
		Message:  "slow down",
	}
}
