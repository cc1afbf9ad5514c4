package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// mockRAGService is a mock implementation of driving.RAGService.
type mockRAGService struct {
	result  *domain.QueryResult
	summary string
	doc     *domain.Document
	stats   *domain.Stats
	err     error

	question  string
	queryOpts domain.QueryOptions
	deleted   string
	update    domain.MetadataUpdate
	removed   int
	resets    int
}

func (m *mockRAGService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	return &domain.IngestResult{DocumentID: req.DocumentID, Filename: req.Filename}, m.err
}

func (m *mockRAGService) Query(_ context.Context, question string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	m.question = question
	m.queryOpts = opts
	return m.result, m.err
}

func (m *mockRAGService) Summarize(_ context.Context, _ string) (string, error) {
	return m.summary, m.err
}

func (m *mockRAGService) DeleteDocument(_ context.Context, id string) error {
	m.deleted = id
	return m.err
}

func (m *mockRAGService) UpdateMetadata(
	_ context.Context, _ string, update domain.MetadataUpdate,
) (*domain.Document, error) {
	m.update = update
	return m.doc, m.err
}

func (m *mockRAGService) Reset(_ context.Context) (int, error) {
	m.resets++
	return m.removed, m.err
}

func (m *mockRAGService) Stats(_ context.Context) (*domain.Stats, error) {
	return m.stats, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	content   string
	results   []domain.SearchResult
	ingest    *domain.IngestResult
	err       error

	ingestReq  driving.IngestFileRequest
	searchOpts domain.SearchOptions
	listFilter domain.ListFilter
}

func (m *mockDocumentService) IngestFile(
	_ context.Context, req driving.IngestFileRequest,
) (*domain.IngestResult, error) {
	m.ingestReq = req
	return m.ingest, m.err
}

func (m *mockDocumentService) List(_ context.Context, filter domain.ListFilter) ([]domain.Document, error) {
	m.listFilter = filter
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) GetContent(_ context.Context, _ string) (string, error) {
	return m.content, m.err
}

func (m *mockDocumentService) Search(
	_ context.Context, _ string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.searchOpts = opts
	return m.results, m.err
}

func newTestServer(t *testing.T, rag *mockRAGService, docs *mockDocumentService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{RAG: rag, Document: docs})
	require.NoError(t, err)
	return server
}
