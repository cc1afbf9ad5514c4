package mcp

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// RAG answers questions and manages stored documents.
	RAG driving.RAGService

	// Document ingests files and serves listings and search.
	Document driving.DocumentService

	// DefaultK is used when a query omits k. Zero means domain.DefaultK.
	DefaultK int
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.RAG == nil {
		return ErrMissingRAGService
	}
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	return nil
}

func (p *Ports) defaultK() int {
	if p.DefaultK > 0 {
		return p.DefaultK
	}
	return domain.DefaultK
}

// resolveK returns k, or the default when the caller omitted it.
func (p *Ports) resolveK(k *int) int {
	if k == nil {
		return p.defaultK()
	}
	return *k
}
