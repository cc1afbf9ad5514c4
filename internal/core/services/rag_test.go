package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	vectormemory "github.com/custodia-labs/sercha-rag/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

const notesText = "Go is a language for servers.\n\nCats sleep most of the day."

func ingestNotes(t *testing.T, e *testEngine, id string) *domain.IngestResult {
	t.Helper()
	res, err := e.Ingest(context.Background(), domain.IngestRequest{
		DocumentID: id,
		Filename:   "notes.txt",
		FileType:   domain.FileTypeText,
		Text:       notesText,
		SizeBytes:  int64(len(notesText)),
		Tags:       []string{"Pets", "code"},
	})
	require.NoError(t, err)
	return res
}

func vectorCount(t *testing.T, e *testEngine) int {
	t.Helper()
	n, err := e.vectors.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestNewRAGService_MissingDependency(t *testing.T) {
	deps := Dependencies{
		Chunker:   &paragraphChunker{},
		Embedder:  &keywordEmbedder{},
		LLM:       &recordingLLM{},
		Vectors:   vectormemory.New(),
		Documents: memory.NewDocumentStore(),
	}

	_, err := NewRAGService(EngineConfig{}, deps)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestNewRAGService_InvalidConfig(t *testing.T) {
	deps := Dependencies{
		Chunker:   &paragraphChunker{},
		Embedder:  &keywordEmbedder{},
		LLM:       &recordingLLM{},
		Vectors:   vectormemory.New(),
		Documents: memory.NewDocumentStore(),
		Prompts:   testPrompts(),
	}

	tests := []struct {
		name string
		cfg  EngineConfig
	}{
		{name: "default k above max", cfg: EngineConfig{RAG: domain.RAGSettings{DefaultK: 20, MaxK: 10}}},
		{name: "threshold out of range", cfg: EngineConfig{RAG: domain.RAGSettings{SimilarityThreshold: 1.5}}},
		{name: "negative history", cfg: EngineConfig{RAG: domain.RAGSettings{HistoryMessages: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRAGService(tt.cfg, deps)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}

func TestNewRAGService_Defaults(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	assert.Equal(t, domain.DefaultK, e.DefaultK())
	assert.Equal(t, domain.DefaultMaxK, e.cfg.RAG.MaxK)
	assert.Equal(t, domain.DefaultMaxAttempts, e.cfg.Retry.MaxAttempts)
	assert.Equal(t, 1024, e.cfg.MaxTokens)
}

func TestRAGService_Ingest(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()

	res := ingestNotes(t, e, "")
	require.NotEmpty(t, res.DocumentID)
	assert.Equal(t, "notes.txt", res.Filename)
	assert.Equal(t, 2, res.ChunkCount)
	assert.False(t, res.Replaced)

	doc, err := e.docs.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "notes", doc.Title)
	assert.Equal(t, 2, doc.ChunkCount)
	assert.Equal(t, []string{"code", "pets"}, doc.Tags)
	assert.False(t, doc.UploadedAt.IsZero())

	chunks, err := e.docs.GetChunks(ctx, res.DocumentID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, 1, chunks[1].Position)
	assert.Equal(t, "Go is a language for servers.", chunks[0].Content)
	assert.Equal(t, "Cats sleep most of the day.", chunks[1].Content)

	assert.Equal(t, 2, vectorCount(t, e))
}

func TestRAGService_Ingest_InvalidInput(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	tests := []struct {
		name string
		req  domain.IngestRequest
	}{
		{name: "empty text", req: domain.IngestRequest{Filename: "a.txt", Text: "   \n\n "}},
		{name: "missing filename", req: domain.IngestRequest{Text: "Go is fun."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Ingest(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	assert.Zero(t, e.embedder.calls.Load())
}

func TestRAGService_Ingest_ChunkerError(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	e.chunker = &paragraphChunker{err: errors.New("boom")}

	_, err := e.Ingest(context.Background(), domain.IngestRequest{Filename: "a.txt", Text: "Go"})
	assert.Error(t, err)
	assert.Zero(t, vectorCount(t, e))
}

func TestRAGService_Ingest_ReplacesPreviousVersion(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()

	first := ingestNotes(t, e, "doc-1")
	oldChunks, err := e.docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)

	res, err := e.Ingest(ctx, domain.IngestRequest{
		DocumentID: "doc-1",
		Filename:   "notes.txt",
		Text:       "Rockets go to space.",
	})
	require.NoError(t, err)
	assert.Equal(t, first.DocumentID, res.DocumentID)
	assert.True(t, res.Replaced)
	assert.Equal(t, 1, res.ChunkCount)

	assert.Equal(t, 1, vectorCount(t, e))
	chunks, err := e.docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	for _, old := range oldChunks {
		assert.NotEqual(t, old.ID, chunks[0].ID)
	}

	// Tags survive a re-ingest that does not set them.
	doc, err := e.docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "pets"}, doc.Tags)
}

func TestRAGService_Ingest_ProviderFailureStoresNothing(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	e.embedder.errs = []error{&domain.ProviderError{
		Op:       domain.ErrEmbeddingProvider,
		Kind:     domain.ErrAuthentication,
		Provider: "test",
		Message:  "bad key",
	}}

	_, err := e.Ingest(context.Background(), domain.IngestRequest{Filename: "a.txt", Text: notesText})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.Equal(t, int32(1), e.embedder.calls.Load())

	assert.Zero(t, vectorCount(t, e))
	docs, err := e.docs.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRAGService_Ingest_RetriesRateLimits(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	e.embedder.errs = []error{rateLimited(), rateLimited()}

	res, err := e.Ingest(context.Background(), domain.IngestRequest{Filename: "a.txt", Text: "Go is fun."})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, int32(3), e.embedder.calls.Load())
}

func TestRAGService_Ingest_RetriesExhausted(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	e.embedder.errs = []error{rateLimited(), rateLimited(), rateLimited(), rateLimited()}

	_, err := e.Ingest(context.Background(), domain.IngestRequest{Filename: "a.txt", Text: "Go is fun."})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(domain.DefaultMaxAttempts), e.embedder.calls.Load())
}

func TestRAGService_Ingest_DimensionMismatch(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	e.embedder.dims = 3

	_, err := e.Ingest(context.Background(), domain.IngestRequest{Filename: "a.txt", Text: "Go is fun."})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Zero(t, vectorCount(t, e))
}

func TestRAGService_Ingest_ShortBatch(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	e.embedder.short = true

	_, err := e.Ingest(context.Background(), domain.IngestRequest{Filename: "a.txt", Text: notesText})
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
}

func TestRAGService_Ingest_UpsertFailureKeepsPreviousVersion(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()
	ingestNotes(t, e, "doc-1")

	e.vectors.upsertErr = domain.ErrVectorStore
	_, err := e.Ingest(ctx, domain.IngestRequest{DocumentID: "doc-1", Filename: "notes.txt", Text: "Rockets."})
	assert.ErrorIs(t, err, domain.ErrVectorStore)

	assert.Equal(t, 2, vectorCount(t, e))
	chunks, err := e.docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestRAGService_Ingest_SaveChunksFailureRollsBack(t *testing.T) {
	t.Run("replace restores previous document", func(t *testing.T) {
		e := newTestEngine(t, EngineConfig{})
		ctx := context.Background()
		ingestNotes(t, e, "doc-1")

		e.docs.saveChunksErr = errors.New("disk full")
		_, err := e.Ingest(ctx, domain.IngestRequest{DocumentID: "doc-1", Filename: "other.txt", Text: "Rockets."})
		require.Error(t, err)

		assert.Equal(t, 2, vectorCount(t, e))
		doc, err := e.docs.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", doc.Filename)
		assert.Equal(t, 2, doc.ChunkCount)
	})

	t.Run("new document is removed", func(t *testing.T) {
		e := newTestEngine(t, EngineConfig{})
		ctx := context.Background()

		e.docs.saveChunksErr = errors.New("disk full")
		_, err := e.Ingest(ctx, domain.IngestRequest{DocumentID: "doc-2", Filename: "a.txt", Text: notesText})
		require.Error(t, err)

		assert.Zero(t, vectorCount(t, e))
		_, err = e.docs.GetDocument(ctx, "doc-2")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRAGService_Ingest_SupersededVectorDeleteFailureRollsBack(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()
	ingestNotes(t, e, "doc-1")
	oldChunks, err := e.docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)

	e.vectors.deleteErr = errors.New("flaky")
	e.vectors.failDeletes = 1
	_, err = e.Ingest(ctx, domain.IngestRequest{DocumentID: "doc-1", Filename: "n.txt", Text: "Rockets to space."})
	require.Error(t, err)
	assert.ErrorContains(t, err, "flaky")

	doc, err := e.docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, 2, doc.ChunkCount)
	chunks, err := e.docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, oldChunks, chunks)
	assert.Equal(t, doc.ChunkCount, vectorCount(t, e))

	hits, err := e.Retrieve(ctx, "rockets space", 5, driven.VectorFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		assert.NotContains(t, h.Content, "Rockets")
		assert.Contains(t, []string{oldChunks[0].ID, oldChunks[1].ID}, h.ChunkID)
	}

	// The next replacement goes through and leaves one vector per chunk.
	res, err := e.Ingest(ctx, domain.IngestRequest{DocumentID: "doc-1", Filename: "n.txt", Text: "Rockets to space."})
	require.NoError(t, err)
	assert.True(t, res.Replaced)
	assert.Equal(t, 1, vectorCount(t, e))

	hits, err = e.Retrieve(ctx, "cats", 5, driven.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Rockets to space.", hits[0].Content)
}

func TestRAGService_Ingest_BoundedConcurrencyPreservesOrder(t *testing.T) {
	e := newTestEngine(t, EngineConfig{RAG: domain.RAGSettings{EmbedBatchSize: 1, EmbedConcurrency: 2}})
	e.embedder.delay = 5 * time.Millisecond

	words := []string{"go", "rust", "cats", "dogs", "pasta", "space", "rockets", "garden"}
	res, err := e.Ingest(context.Background(), domain.IngestRequest{
		DocumentID: "doc-1",
		Filename:   "words.txt",
		Text:       strings.Join(words, "\n\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, len(words), res.ChunkCount)
	assert.LessOrEqual(t, e.embedder.maxInFlight.Load(), int32(2))
	assert.Equal(t, int32(len(words)), e.embedder.calls.Load())

	// Each word must be retrieved as its own best match.
	for _, w := range words {
		hits, err := e.Retrieve(context.Background(), w, 1, driven.VectorFilter{})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, w, hits[0].Content)
	}
}

func TestRAGService_Ingest_IgnoresCancellation(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Ingest(ctx, domain.IngestRequest{Filename: "a.txt", Text: notesText})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChunkCount)
}

func TestRAGService_Ingest_ConcurrentSameDocument(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := notesText
			if i%2 == 0 {
				text = "Rockets go to space."
			}
			_, err := e.Ingest(ctx, domain.IngestRequest{DocumentID: "shared", Filename: "s.txt", Text: text})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := e.docs.GetDocument(ctx, "shared")
	require.NoError(t, err)
	chunks, err := e.docs.GetChunks(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, chunks, doc.ChunkCount)
	assert.Equal(t, doc.ChunkCount, vectorCount(t, e))
	assert.Zero(t, e.locks.size())
}

func TestRAGService_Query_InvalidK(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ingestNotes(t, e, "doc-1")
	before := e.embedder.calls.Load()

	for _, k := range []int{0, -1, domain.DefaultMaxK + 1} {
		_, err := e.Query(context.Background(), "go?", domain.QueryOptions{K: k})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "k=%d", k)
	}
	assert.Equal(t, before, e.embedder.calls.Load())
	assert.Zero(t, e.llm.calls())
}

func TestRAGService_Query_EmptyQuestion(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	_, err := e.Query(context.Background(), "  ", domain.QueryOptions{K: 4})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRAGService_Query_EmptyStore(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	res, err := e.Query(context.Background(), "What is Go?", domain.QueryOptions{K: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.NoContextAnswer, res.Answer)
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Sources)
	assert.False(t, res.Grounded)
	assert.Zero(t, e.embedder.calls.Load())
	assert.Zero(t, e.llm.calls())
}

func TestRAGService_Query_Grounded(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	res := ingestNotes(t, e, "doc-1")

	out, err := e.Query(context.Background(), " What is Go? ", domain.QueryOptions{K: 1})
	require.NoError(t, err)
	assert.Equal(t, "generated answer", out.Answer)
	assert.True(t, out.Grounded)
	require.Len(t, out.Sources, 1)

	src := out.Sources[0]
	assert.Equal(t, res.DocumentID, src.DocumentID)
	assert.Equal(t, "notes.txt", src.Filename)
	assert.Equal(t, 0, src.Position)
	assert.Equal(t, "Go is a language for servers.", src.Snippet)
	assert.InDelta(t, 1.0, src.Score, 0.01)
	assert.False(t, src.BelowThreshold)

	prompt := e.llm.lastPrompt()
	assert.Contains(t, prompt, "[Source 1: notes.txt]")
	assert.Contains(t, prompt, "Go is a language for servers.")
	assert.Contains(t, prompt, "Q: What is Go?")
	assert.NotContains(t, prompt, "Cats")

	opts := e.llm.opts[0]
	assert.Equal(t, "be grounded", opts.System)
	assert.Equal(t, 1024, opts.MaxTokens)
}

func TestRAGService_Query_BelowThreshold(t *testing.T) {
	e := newTestEngine(t, EngineConfig{RAG: domain.RAGSettings{SimilarityThreshold: 0.5}})
	ingestNotes(t, e, "doc-1")

	out, err := e.Query(context.Background(), "Best pasta recipe?", domain.QueryOptions{K: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.LowRelevanceAnswer, out.Answer)
	assert.False(t, out.Grounded)
	require.Len(t, out.Sources, 2)
	for _, s := range out.Sources {
		assert.True(t, s.BelowThreshold)
		assert.Less(t, s.Score, 0.5)
	}
	assert.Zero(t, e.llm.calls())
}

func TestRAGService_Query_ThresholdExcludesNoise(t *testing.T) {
	e := newTestEngine(t, EngineConfig{RAG: domain.RAGSettings{SimilarityThreshold: 0.5}})
	ingestNotes(t, e, "doc-1")

	out, err := e.Query(context.Background(), "cats", domain.QueryOptions{K: 4})
	require.NoError(t, err)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, 1, out.Sources[0].Position)
	assert.NotContains(t, e.llm.lastPrompt(), "servers")
}

func TestRAGService_Query_DocumentFilter(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ingestNotes(t, e, "doc-a")
	_, err := e.Ingest(context.Background(), domain.IngestRequest{DocumentID: "doc-b", Filename: "b.txt", Text: "Go rockets."})
	require.NoError(t, err)

	out, err := e.Query(context.Background(), "go", domain.QueryOptions{K: 10, DocumentIDs: []string{"doc-b"}})
	require.NoError(t, err)
	require.NotEmpty(t, out.Sources)
	for _, s := range out.Sources {
		assert.Equal(t, "doc-b", s.DocumentID)
	}
}

func TestRAGService_Query_ConversationMemory(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ingestNotes(t, e, "doc-1")
	ctx := context.Background()

	_, err := e.Query(ctx, "What is Go?", domain.QueryOptions{K: 1, ConversationID: "c1"})
	require.NoError(t, err)
	assert.NotContains(t, e.llm.lastPrompt(), "Previous conversation")

	_, err = e.Query(ctx, "And cats?", domain.QueryOptions{K: 1, ConversationID: "c1"})
	require.NoError(t, err)
	prompt := e.llm.lastPrompt()
	assert.Contains(t, prompt, "Previous conversation:")
	assert.Contains(t, prompt, "User: What is Go?")
	assert.Contains(t, prompt, "Assistant: generated answer")

	_, err = e.Query(ctx, "Go?", domain.QueryOptions{K: 1, ConversationID: "other"})
	require.NoError(t, err)
	assert.NotContains(t, e.llm.lastPrompt(), "Previous conversation")
}

func TestRAGService_Query_LLMFailure(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ingestNotes(t, e, "doc-1")
	e.llm.errs = []error{&domain.ProviderError{
		Op:       domain.ErrLLMProvider,
		Kind:     domain.ErrProviderUnavailable,
		Provider: "test",
		Message:  "503",
	}}

	_, err := e.Query(context.Background(), "go", domain.QueryOptions{K: 1})
	assert.ErrorIs(t, err, domain.ErrLLMProvider)
	assert.Equal(t, 1, e.llm.calls())
}

func TestRAGService_Query_ContextBudget(t *testing.T) {
	e := newTestEngine(t, EngineConfig{RAG: domain.RAGSettings{MaxContextChars: 60}})
	ingestNotes(t, e, "doc-1")

	out, err := e.Query(context.Background(), "go cats", domain.QueryOptions{K: 4})
	require.NoError(t, err)
	assert.Len(t, out.Sources, 1)
}

func TestRAGService_Summarize(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ingestNotes(t, e, "doc-1")

	summary, err := e.Summarize(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", summary)

	prompt := e.llm.lastPrompt()
	assert.Contains(t, prompt, "SUMMARISE notes.txt:")
	assert.Contains(t, prompt, "Go is a language for servers.")
	assert.Contains(t, prompt, "Cats sleep most of the day.")
}

func TestRAGService_Summarize_Truncates(t *testing.T) {
	e := newTestEngine(t, EngineConfig{RAG: domain.RAGSettings{SummaryMaxChars: 10}})
	ingestNotes(t, e, "doc-1")

	_, err := e.Summarize(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(e.llm.lastPrompt(), "Go is a la"))
}

func TestRAGService_Summarize_NotFound(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	_, err := e.Summarize(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.Summarize(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, e.llm.calls())
}

func TestRAGService_DeleteDocument(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()
	ingestNotes(t, e, "doc-1")
	ingestNotes(t, e, "doc-2")

	require.NoError(t, e.DeleteDocument(ctx, "doc-1"))

	assert.Equal(t, 2, vectorCount(t, e))
	_, err := e.docs.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	out, err := e.Query(ctx, "go", domain.QueryOptions{K: 10})
	require.NoError(t, err)
	for _, s := range out.Sources {
		assert.Equal(t, "doc-2", s.DocumentID)
	}

	assert.ErrorIs(t, e.DeleteDocument(ctx, "doc-1"), domain.ErrNotFound)
	assert.ErrorIs(t, e.DeleteDocument(ctx, ""), domain.ErrInvalidInput)
}

func TestRAGService_Reset(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()
	ingestNotes(t, e, "doc-1")
	ingestNotes(t, e, "doc-2")
	_, err := e.Query(ctx, "cats", domain.QueryOptions{K: 2, ConversationID: "conv-1"})
	require.NoError(t, err)
	require.NotEmpty(t, e.memory.History("conv-1"))

	n, err := e.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Zero(t, vectorCount(t, e))
	assert.Zero(t, e.vectors.Dimension())
	docs, err := e.docs.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, e.memory.History("conv-1"))

	out, err := e.Query(ctx, "cats", domain.QueryOptions{K: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.NoContextAnswer, out.Answer)

	// The emptied collection accepts vectors of any dimension again.
	require.NoError(t, e.vectors.Upsert(ctx, []driven.VectorRecord{{ChunkID: "c1", DocumentID: "d1", Vector: []float32{1, 0}}}))
	assert.Equal(t, 2, e.vectors.Dimension())
}

func TestRAGService_Reset_Empty(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	n, err := e.Reset(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRAGService_Reset_VectorFailureKeepsDocuments(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()
	ingestNotes(t, e, "doc-1")

	e.vectors.resetErr = fmt.Errorf("%w: connection refused", domain.ErrVectorStore)
	_, err := e.Reset(ctx)
	assert.ErrorIs(t, err, domain.ErrVectorStore)

	_, err = e.docs.GetDocument(ctx, "doc-1")
	assert.NoError(t, err)
	assert.Equal(t, 2, vectorCount(t, e))
}

func TestRAGService_Reset_WaitsForWriters(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()
	ingestNotes(t, e, "doc-1")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := e.Ingest(ctx, domain.IngestRequest{
				DocumentID: fmt.Sprintf("doc-%d", n+2),
				Filename:   "n.txt",
				Text:       notesText,
			})
			assert.NoError(t, err)
		}(i)
	}
	_, err := e.Reset(ctx)
	require.NoError(t, err)
	wg.Wait()

	// Whatever order the writers ran in, each stored document has its vectors.
	docs, err := e.docs.ListDocuments(ctx)
	require.NoError(t, err)
	total := 0
	for _, d := range docs {
		total += d.ChunkCount
	}
	assert.Equal(t, total, vectorCount(t, e))
}

func TestRAGService_UpdateMetadata(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()
	ingestNotes(t, e, "doc-1")

	later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return later }

	tags := []string{" Work ", "work", "Q3"}
	desc := "  quarterly notes "
	doc, err := e.UpdateMetadata(ctx, "doc-1", domain.MetadataUpdate{Tags: &tags, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, []string{"q3", "work"}, doc.Tags)
	assert.Equal(t, "quarterly notes", doc.Description)
	assert.Equal(t, later, doc.UpdatedAt)

	stored, err := e.docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"q3", "work"}, stored.Tags)

	// Nil fields are untouched.
	doc, err = e.UpdateMetadata(ctx, "doc-1", domain.MetadataUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "quarterly notes", doc.Description)

	_, err = e.UpdateMetadata(ctx, "missing", domain.MetadataUpdate{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRAGService_Stats(t *testing.T) {
	e := newTestEngine(t, EngineConfig{
		EmbeddingProvider: "local/hashing",
		LLMProvider:       "ollama/llama3.2",
		VectorBackend:     "memory",
	})
	ctx := context.Background()

	ingestNotes(t, e, "doc-1")
	_, err := e.Ingest(ctx, domain.IngestRequest{
		DocumentID: "doc-2",
		Filename:   "guide.md",
		FileType:   domain.FileTypeMarkdown,
		Text:       "Rockets go to space.",
		SizeBytes:  5000,
		Tags:       []string{"code"},
	})
	require.NoError(t, err)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocuments)
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Equal(t, "local/hashing", stats.EmbeddingProvider)
	assert.Equal(t, "ollama/llama3.2", stats.LLMProvider)
	assert.Equal(t, len(testVocabulary)+1, stats.EmbeddingDimensions)
	assert.Equal(t, "memory", stats.VectorBackend)
	assert.Equal(t, int64(5000+len(notesText)), stats.TotalBytes)
	assert.Equal(t, map[domain.FileType]int{domain.FileTypeText: 1, domain.FileTypeMarkdown: 1}, stats.FileTypes)
	assert.Equal(t, []domain.TagCount{{Tag: "code", Count: 2}, {Tag: "pets", Count: 1}}, stats.TopTags)
	require.Len(t, stats.LargestDocuments, 2)
	assert.Equal(t, "doc-2", stats.LargestDocuments[0].DocumentID)
	assert.Equal(t, 1, stats.LargestDocuments[0].ChunkCount)
}

func TestRAGService_Stats_Empty(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDocuments)
	assert.Zero(t, stats.TotalChunks)
	assert.Empty(t, stats.TopTags)
	assert.Empty(t, stats.LargestDocuments)
}
