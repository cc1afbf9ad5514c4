// Package plaintext extracts text files as-is.
package plaintext

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// FileTypes returns the file types this extractor handles.
func (e *Extractor) FileTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeText}
}

// Extract returns the file content with a leading byte order mark and
// Windows line endings normalised away.
func (e *Extractor) Extract(_ context.Context, raw *domain.RawFile) (*domain.Extraction, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, domain.CorruptFile(raw.Filename, errInvalidUTF8)
	}

	text := strings.TrimPrefix(string(raw.Content), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	return &domain.Extraction{
		Text: text,
		Metadata: map[string]any{
			"format":     "text",
			"line_count": strings.Count(text, "\n") + 1,
		},
	}, nil
}
