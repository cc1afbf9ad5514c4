package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// maxFilenameRunes bounds sanitised filenames.
const maxFilenameRunes = 255

// ingester is the part of the engine the document service drives.
type ingester interface {
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error)
	Retrieve(ctx context.Context, query string, k int, filter driven.VectorFilter) ([]driven.VectorHit, error)
}

// DocumentService turns uploaded files into engine ingestions and serves
// document listings and retrieval without generation.
type DocumentService struct {
	extractors   driven.ExtractorRegistry
	docStore     driven.DocumentStore
	engine       ingester
	maxFileBytes int64
}

// NewDocumentService creates a new document service.
// A maxFileBytes of zero uses domain.DefaultMaxFileBytes.
func NewDocumentService(
	extractors driven.ExtractorRegistry,
	docStore driven.DocumentStore,
	engine *RAGService,
	maxFileBytes int64,
) *DocumentService {
	return newDocumentService(extractors, docStore, engine, maxFileBytes)
}

func newDocumentService(
	extractors driven.ExtractorRegistry,
	docStore driven.DocumentStore,
	engine ingester,
	maxFileBytes int64,
) *DocumentService {
	if maxFileBytes <= 0 {
		maxFileBytes = domain.DefaultMaxFileBytes
	}
	return &DocumentService{
		extractors:   extractors,
		docStore:     docStore,
		engine:       engine,
		maxFileBytes: maxFileBytes,
	}
}

// IngestFile validates, extracts and ingests an uploaded file.
func (s *DocumentService) IngestFile(
	ctx context.Context, req driving.IngestFileRequest,
) (*domain.IngestResult, error) {
	filename := SanitiseFilename(req.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}

	size := int64(len(req.Content))
	if size < domain.MinFileBytes {
		return nil, fmt.Errorf("%w: %s is too small (%d bytes, minimum %d)",
			domain.ErrInvalidInput, filename, size, domain.MinFileBytes)
	}
	if size > s.maxFileBytes {
		return nil, fmt.Errorf("%w: %s is too large (%d bytes, maximum %d)",
			domain.ErrInvalidInput, filename, size, s.maxFileBytes)
	}

	fileType, err := domain.DetectFileType(filename)
	if err != nil {
		return nil, err
	}
	logger.Debug("Extracting %s as %s", filename, fileType)

	extraction, err := s.extractors.Extract(ctx, &domain.RawFile{
		Filename: filename,
		FileType: fileType,
		Content:  req.Content,
	})
	if err != nil {
		return nil, err
	}

	return s.engine.Ingest(ctx, domain.IngestRequest{
		DocumentID:  req.DocumentID,
		Filename:    filename,
		FileType:    fileType,
		Text:        extraction.Text,
		Title:       extraction.Title,
		Description: req.Description,
		Tags:        req.Tags,
		SizeBytes:   size,
		Metadata:    extraction.Metadata,
	})
}

// List returns documents matching filter, newest first.
func (s *DocumentService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Document, error) {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Document, 0, len(docs))
	for i := range docs {
		if filter.Matches(&docs[i]) {
			out = append(out, docs[i])
		}
	}
	return out, nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetContent reconstructs the extracted text of a document from its chunks.
func (s *DocumentService) GetContent(ctx context.Context, documentID string) (string, error) {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return "", err
	}
	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return "", err
	}
	return domain.ReconstructText(chunks), nil
}

// Search performs semantic retrieval without generation.
// FileType and Tags are resolved to a document id pre-filter.
func (s *DocumentService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	k := opts.K
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Document, len(docs))
	var filter driven.VectorFilter
	filtered := opts.FileType != "" || len(opts.Tags) > 0
	for i := range docs {
		d := docs[i]
		if !matchesSearch(&d, opts) {
			continue
		}
		byID[d.ID] = d
		if filtered {
			filter.DocumentIDs = append(filter.DocumentIDs, d.ID)
		}
	}
	if filtered && len(filter.DocumentIDs) == 0 {
		logger.Debug("No documents match the filter")
		return []domain.SearchResult{}, nil
	}

	hits, err := s.engine.Retrieve(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		doc, ok := byID[h.DocumentID]
		if !ok {
			// Vector without a document row, e.g. mid-ingest.
			continue
		}
		results = append(results, domain.SearchResult{
			Document: doc,
			Chunk: domain.Chunk{
				ID:         h.ChunkID,
				DocumentID: h.DocumentID,
				Content:    h.Content,
				Position:   h.Position,
			},
			Score: h.Score,
		})
	}
	logger.Info("Final results: %d", len(results))
	return results, nil
}

func matchesSearch(doc *domain.Document, opts domain.SearchOptions) bool {
	if opts.FileType != "" && doc.FileType != opts.FileType {
		return false
	}
	for _, tag := range opts.Tags {
		if !doc.HasTag(strings.TrimSpace(tag)) {
			return false
		}
	}
	return true
}

// SanitiseFilename reduces an uploaded name to a safe base name:
// directories are dropped, control and reserved characters removed and the
// result bounded in length. An empty result means the name was unusable.
func SanitiseFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			continue
		}
		b.WriteRune(r)
	}

	name = strings.TrimLeft(strings.TrimSpace(b.String()), ".")
	if runes := []rune(name); len(runes) > maxFilenameRunes {
		ext := []rune(path.Ext(name))
		if len(ext) >= maxFilenameRunes {
			ext = nil
		}
		name = string(runes[:maxFilenameRunes-len(ext)]) + string(ext)
	}
	return name
}
