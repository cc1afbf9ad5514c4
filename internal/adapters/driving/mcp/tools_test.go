package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests text content", func(t *testing.T) {
		docs := &mockDocumentService{
			ingest: &domain.IngestResult{DocumentID: "doc-1", Filename: "notes.md", ChunkCount: 3},
		}
		server := newTestServer(t, &mockRAGService{}, docs)

		_, output, err := server.handleIngest(ctx, nil, IngestInput{
			Filename: "notes.md",
			Content:  "# Notes\n\nSome text.",
			Tags:     []string{"work"},
		})

		require.NoError(t, err)
		assert.Equal(t, "doc-1", output.DocumentID)
		assert.Equal(t, 3, output.ChunkCount)
		assert.False(t, output.Replaced)
		assert.Equal(t, []byte("# Notes\n\nSome text."), docs.ingestReq.Content)
		assert.Equal(t, []string{"work"}, docs.ingestReq.Tags)
	})

	t.Run("decodes base64 content", func(t *testing.T) {
		docs := &mockDocumentService{ingest: &domain.IngestResult{DocumentID: "doc-2"}}
		server := newTestServer(t, &mockRAGService{}, docs)

		raw := []byte{0x25, 0x50, 0x44, 0x46, 0x2d}
		_, _, err := server.handleIngest(ctx, nil, IngestInput{
			Filename:      "paper.pdf",
			ContentBase64: base64.StdEncoding.EncodeToString(raw),
			DocumentID:    "doc-2",
		})

		require.NoError(t, err)
		assert.Equal(t, raw, docs.ingestReq.Content)
		assert.Equal(t, "doc-2", docs.ingestReq.DocumentID)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		tests := []struct {
			name  string
			input IngestInput
			msg   string
		}{
			{name: "missing filename", input: IngestInput{Content: "text"}, msg: "filename is required"},
			{name: "missing content", input: IngestInput{Filename: "a.txt"}, msg: "content is required"},
			{name: "both contents", input: IngestInput{Filename: "a.txt", Content: "x", ContentBase64: "eA=="}, msg: "content cannot be combined"},
			{name: "bad base64", input: IngestInput{Filename: "a.txt", ContentBase64: "%%%"}, msg: "content_base64"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				docs := &mockDocumentService{}
				server := newTestServer(t, &mockRAGService{}, docs)

				_, _, err := server.handleIngest(ctx, nil, tt.input)

				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				assert.Contains(t, err.Error(), tt.msg)
				assert.Contains(t, err.Error(), "invalid_input:")
				assert.Empty(t, docs.ingestReq.Filename)
			})
		}
	})

	t.Run("reports the error kind", func(t *testing.T) {
		docs := &mockDocumentService{err: fmt.Errorf("%w: .exe", domain.ErrUnsupportedFormat)}
		server := newTestServer(t, &mockRAGService{}, docs)

		_, _, err := server.handleIngest(ctx, nil, IngestInput{Filename: "a.exe", Content: "MZ..."})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
		assert.Contains(t, err.Error(), "unsupported_format:")
	})
}

func TestServer_handleQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer and sources", func(t *testing.T) {
		rag := &mockRAGService{
			result: &domain.QueryResult{
				Answer:   "Go is a language.",
				Grounded: true,
				Sources: []domain.Source{
					{ChunkID: "c1", DocumentID: "doc-1", Filename: "go.md", Snippet: "Go is...", Score: 0.9},
				},
			},
		}
		server := newTestServer(t, rag, &mockDocumentService{})

		_, output, err := server.handleQuery(ctx, nil, QueryInput{
			Question:       "what is go?",
			DocumentIDs:    []string{"doc-1"},
			ConversationID: "conv-1",
		})

		require.NoError(t, err)
		assert.Equal(t, "Go is a language.", output.Answer)
		assert.True(t, output.Grounded)
		require.Len(t, output.Sources, 1)
		assert.Equal(t, "go.md", output.Sources[0].Filename)
		assert.Equal(t, 0.9, output.Sources[0].Score)

		assert.Equal(t, "what is go?", rag.question)
		assert.Equal(t, domain.DefaultK, rag.queryOpts.K)
		assert.Equal(t, []string{"doc-1"}, rag.queryOpts.DocumentIDs)
		assert.Equal(t, "conv-1", rag.queryOpts.ConversationID)
	})

	t.Run("passes explicit k", func(t *testing.T) {
		rag := &mockRAGService{result: &domain.QueryResult{Answer: domain.NoContextAnswer, Sources: []domain.Source{}}}
		server := newTestServer(t, rag, &mockDocumentService{})

		_, output, err := server.handleQuery(ctx, nil, QueryInput{Question: "q", K: intPtr(12)})

		require.NoError(t, err)
		assert.Equal(t, 12, rag.queryOpts.K)
		assert.False(t, output.Grounded)
		assert.NotNil(t, output.Sources)
	})

	t.Run("rejects empty question and negative k", func(t *testing.T) {
		server := newTestServer(t, &mockRAGService{}, &mockDocumentService{})

		_, _, err := server.handleQuery(ctx, nil, QueryInput{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Contains(t, err.Error(), "question is required")

		_, _, err = server.handleQuery(ctx, nil, QueryInput{Question: "q", K: intPtr(-1)})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Contains(t, err.Error(), "k must be at least 1")
	})

	t.Run("rejects explicit zero k", func(t *testing.T) {
		rag := &mockRAGService{}
		server := newTestServer(t, rag, &mockDocumentService{})

		_, _, err := server.handleQuery(ctx, nil, QueryInput{Question: "How long do cats sleep?", K: intPtr(0)})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Empty(t, rag.question, "the engine is never called")
	})

	t.Run("provider failure", func(t *testing.T) {
		rag := &mockRAGService{err: &domain.ProviderError{
			Op:       domain.ErrLLMProvider,
			Kind:     domain.ErrRateLimited,
			Provider: "openai",
			Message:  "slow down",
		}}
		server := newTestServer(t, rag, &mockDocumentService{})

		_, _, err := server.handleQuery(ctx, nil, QueryInput{Question: "q"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRateLimited)
		assert.Contains(t, err.Error(), "rate_limited:")
	})
}

func TestServer_handleSummarize(t *testing.T) {
	ctx := context.Background()

	rag := &mockRAGService{summary: "A short summary."}
	server := newTestServer(t, rag, &mockDocumentService{})

	_, output, err := server.handleSummarize(ctx, nil, DocumentIDInput{DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", output.DocumentID)
	assert.Equal(t, "A short summary.", output.Summary)

	_, _, err = server.handleSummarize(ctx, nil, DocumentIDInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rag.err = fmt.Errorf("%w: document doc-9", domain.ErrNotFound)
	_, _, err = server.handleSummarize(ctx, nil, DocumentIDInput{DocumentID: "doc-9"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "not_found:")
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		docs := &mockDocumentService{
			results: []domain.SearchResult{
				{
					Document: domain.Document{
						ID:       "doc-1",
						Title:    "Test Doc",
						Filename: "test.md",
					},
					Chunk: domain.Chunk{
						ID:       "chunk-1",
						Content:  "This is the content",
						Position: 2,
					},
					Score: 0.95,
				},
			},
		}
		server := newTestServer(t, &mockRAGService{}, docs)

		input := SearchInput{Query: "test", K: intPtr(10), FileType: "markdown", Tags: []string{"a"}}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "doc-1", output.Results[0].DocumentID)
		assert.Equal(t, "Test Doc", output.Results[0].Title)
		assert.Equal(t, "test.md", output.Results[0].Filename)
		assert.Equal(t, "chunk-1", output.Results[0].ChunkID)
		assert.Equal(t, 2, output.Results[0].Position)
		assert.Equal(t, 0.95, output.Results[0].Score)
		assert.Equal(t, "This is the content", output.Results[0].Content)

		assert.Equal(t, 10, docs.searchOpts.K)
		assert.Equal(t, domain.FileTypeMarkdown, docs.searchOpts.FileType)
		assert.Equal(t, []string{"a"}, docs.searchOpts.Tags)
	})

	t.Run("omitted k takes the default, zero is rejected", func(t *testing.T) {
		docs := &mockDocumentService{}
		server := newTestServer(t, &mockRAGService{}, docs)

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultK, docs.searchOpts.K)

		docs.searchOpts = domain.SearchOptions{}
		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test", K: intPtr(0)})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Zero(t, docs.searchOpts.K)
	})

	t.Run("rejects unknown file type", func(t *testing.T) {
		server := newTestServer(t, &mockRAGService{}, &mockDocumentService{})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "test", FileType: "xlsx"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Contains(t, err.Error(), "file_type must be one of")
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		docs := &mockDocumentService{err: errors.New("search failed")}
		server := newTestServer(t, &mockRAGService{}, docs)

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
		assert.Contains(t, err.Error(), "internal:")
	})
}

func TestServer_handleList(t *testing.T) {
	ctx := context.Background()

	docs := &mockDocumentService{
		documents: []domain.Document{
			{ID: "doc-1", Filename: "a.md", FileType: domain.FileTypeMarkdown, Tags: []string{"x"}},
			{ID: "doc-2", Filename: "b.txt", FileType: domain.FileTypeText},
		},
	}
	server := newTestServer(t, &mockRAGService{}, docs)

	_, output, err := server.handleList(ctx, nil, ListInput{FileType: "markdown", Tag: "x"})

	require.NoError(t, err)
	assert.Equal(t, 2, output.Count)
	assert.Equal(t, "markdown", output.Documents[0].FileType)
	assert.Equal(t, []string{}, output.Documents[1].Tags)
	assert.Equal(t, domain.ListFilter{FileType: domain.FileTypeMarkdown, Tag: "x"}, docs.listFilter)
}

func TestServer_handleUpdate(t *testing.T) {
	ctx := context.Background()

	rag := &mockRAGService{doc: &domain.Document{ID: "doc-1", Tags: []string{"new"}}}
	server := newTestServer(t, rag, &mockDocumentService{})

	tags := []string{"New"}
	_, output, err := server.handleUpdate(ctx, nil, UpdateInput{DocumentID: "doc-1", Tags: &tags})

	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, output.Tags)
	require.NotNil(t, rag.update.Tags)
	assert.Equal(t, tags, *rag.update.Tags)
	assert.Nil(t, rag.update.Description)
}

func TestServer_handleDelete(t *testing.T) {
	ctx := context.Background()

	rag := &mockRAGService{}
	server := newTestServer(t, rag, &mockDocumentService{})

	_, output, err := server.handleDelete(ctx, nil, DocumentIDInput{DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.True(t, output.Deleted)
	assert.Equal(t, "doc-1", rag.deleted)

	rag.err = domain.ErrNotFound
	_, _, err = server.handleDelete(ctx, nil, DocumentIDInput{DocumentID: "doc-2"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServer_handleReset(t *testing.T) {
	ctx := context.Background()

	t.Run("removes everything when confirmed", func(t *testing.T) {
		rag := &mockRAGService{removed: 3}
		server := newTestServer(t, rag, &mockDocumentService{})

		_, output, err := server.handleReset(ctx, nil, ResetInput{Confirm: true})
		require.NoError(t, err)
		assert.Equal(t, 3, output.DocumentsRemoved)
		assert.Equal(t, 1, rag.resets)
	})

	t.Run("requires confirmation", func(t *testing.T) {
		rag := &mockRAGService{}
		server := newTestServer(t, rag, &mockDocumentService{})

		_, _, err := server.handleReset(ctx, nil, ResetInput{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Zero(t, rag.resets)
	})

	t.Run("reports store failures", func(t *testing.T) {
		rag := &mockRAGService{err: fmt.Errorf("%w: connection refused", domain.ErrVectorStore)}
		server := newTestServer(t, rag, &mockDocumentService{})

		_, _, err := server.handleReset(ctx, nil, ResetInput{Confirm: true})
		assert.ErrorIs(t, err, domain.ErrVectorStore)
	})
}

func TestServer_handleStats(t *testing.T) {
	ctx := context.Background()

	rag := &mockRAGService{stats: &domain.Stats{
		TotalDocuments:      2,
		TotalChunks:         7,
		EmbeddingProvider:   "local/hashing-v1",
		EmbeddingDimensions: 384,
		LLMProvider:         "ollama/llama3.2",
		VectorBackend:       "sqlite",
		FileTypes:           map[domain.FileType]int{domain.FileTypePDF: 2},
		TopTags:             []domain.TagCount{{Tag: "work", Count: 2}},
	}}
	server := newTestServer(t, rag, &mockDocumentService{})

	_, output, err := server.handleStats(ctx, nil, StatsInput{})

	require.NoError(t, err)
	assert.Equal(t, 7, output.TotalChunks)
	assert.Equal(t, "local/hashing-v1", output.EmbeddingProvider)
	assert.Equal(t, map[string]int{"pdf": 2}, output.FileTypes)
	assert.Equal(t, map[string]int{"work": 2}, output.TopTags)
}

func intPtr(v int) *int {
	return &v
}
