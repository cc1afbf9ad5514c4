// Package pdf extracts page text from PDF documents using UniPDF.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var licenseOnce sync.Once

// Extractor handles PDF documents.
type Extractor struct {
	licenseKey string
}

// Option configures the extractor.
type Option func(*Extractor)

// WithLicenseKey sets the UniDoc metered license key. Empty keys are ignored.
func WithLicenseKey(key string) Option {
	return func(e *Extractor) {
		e.licenseKey = key
	}
}

// New creates a new PDF extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.licenseKey != "" {
		licenseOnce.Do(func() {
			if err := license.SetMeteredKey(e.licenseKey); err != nil {
				logger.Warn("pdf: failed to set license key: %v", err)
			}
		})
	}
	return e
}

// FileTypes returns the file types this extractor handles.
func (e *Extractor) FileTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypePDF}
}

// Extract returns the text of every page, pages separated by a blank line.
func (e *Extractor) Extract(ctx context.Context, raw *domain.RawFile) (*domain.Extraction, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := model.NewPdfReader(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, domain.CorruptFile(raw.Filename, err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, domain.CorruptFile(raw.Filename, err)
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := reader.GetPage(i)
		if err != nil {
			return nil, domain.CorruptFile(raw.Filename, fmt.Errorf("page %d: %w", i, err))
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, domain.CorruptFile(raw.Filename, fmt.Errorf("page %d: %w", i, err))
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, domain.CorruptFile(raw.Filename, fmt.Errorf("page %d: %w", i, err))
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	return &domain.Extraction{
		Text: strings.Join(pages, "\n\n"),
		Metadata: map[string]any{
			"format":     "pdf",
			"page_count": numPages,
		},
	}, nil
}
