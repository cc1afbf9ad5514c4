// Package domain defines the core business entities for sercha-rag.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: an ingested file with its user-facing metadata
//   - Chunk: a retrievable, embedded segment of a document
//   - Segment: raw chunker output before identity is assigned
//   - RawFile / Extraction: the extractor input and output contract
//   - QueryResult / Source: the answer to a question and its citations
//   - AppSettings: process-wide provider and pipeline configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
