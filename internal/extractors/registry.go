package extractors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/extractors/docx"
	"github.com/custodia-labs/sercha-rag/internal/extractors/epub"
	"github.com/custodia-labs/sercha-rag/internal/extractors/html"
	"github.com/custodia-labs/sercha-rag/internal/extractors/markdown"
	"github.com/custodia-labs/sercha-rag/internal/extractors/pdf"
	"github.com/custodia-labs/sercha-rag/internal/extractors/plaintext"
)

// Verify interface compliance.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry dispatches extraction by file type.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.FileType]driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[domain.FileType]driven.Extractor),
	}
}

// RegisterDefaults registers all built-in extractors with the registry.
// pdfLicenseKey may be empty.
func RegisterDefaults(r *Registry, pdfLicenseKey string) {
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(epub.New())
	r.Register(pdf.New(pdf.WithLicenseKey(pdfLicenseKey)))
}

// Register adds an extractor for each of its file types.
// A later registration for the same type replaces the earlier one.
func (r *Registry) Register(extractor driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ft := range extractor.FileTypes() {
		r.extractors[ft] = extractor
	}
}

// Extract dispatches raw to the extractor for raw.FileType.
func (r *Registry) Extract(ctx context.Context, raw *domain.RawFile) (*domain.Extraction, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	extractor, ok := r.extractors[raw.FileType]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.FormatError{Kind: domain.ErrUnsupportedFormat, Detail: fmt.Sprintf("file type %q", raw.FileType)}
	}

	result, err := extractor.Extract(ctx, raw)
	if err != nil {
		return nil, err
	}
	if result.Title == "" {
		result.Title = domain.TitleFromFilename(raw.Filename)
	}
	if result.Metadata == nil {
		result.Metadata = make(map[string]any)
	}
	return result, nil
}

// SupportedFileTypes returns all file types that can be extracted, sorted.
func (r *Registry) SupportedFileTypes() []domain.FileType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.FileType, 0, len(r.extractors))
	for ft := range r.extractors {
		types = append(types, ft)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
