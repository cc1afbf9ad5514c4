package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	Filename      string   `json:"filename" jsonschema:"file name including extension, which selects the extractor" validate:"required"`
	Content       string   `json:"content,omitempty" jsonschema:"text content of the file" validate:"required_without=ContentBase64,excluded_with=ContentBase64"`
	ContentBase64 string   `json:"content_base64,omitempty" jsonschema:"base64 encoded bytes for binary formats such as pdf or docx" validate:"omitempty,base64"`
	DocumentID    string   `json:"document_id,omitempty" jsonschema:"existing document id to replace"`
	Tags          []string `json:"tags,omitempty" jsonschema:"labels to attach to the document"`
	Description   string   `json:"description,omitempty" jsonschema:"free text description"`
}

// IngestOutput is the output schema for the ingest_document tool.
type IngestOutput struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Replaced   bool   `json:"replaced"`
}

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Question       string   `json:"question" jsonschema:"the question to answer from the uploaded documents" validate:"required"`
	K              *int     `json:"k,omitempty" jsonschema:"number of chunks to retrieve" validate:"omitempty,min=1"`
	DocumentIDs    []string `json:"document_ids,omitempty" jsonschema:"restrict retrieval to these documents"`
	ConversationID string   `json:"conversation_id,omitempty" jsonschema:"conversation to continue"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Answer   string         `json:"answer"`
	Grounded bool           `json:"grounded"`
	Sources  []SourceOutput `json:"sources"`
}

// SourceOutput is a chunk cited by an answer.
type SourceOutput struct {
	DocumentID     string  `json:"document_id"`
	ChunkID        string  `json:"chunk_id"`
	Filename       string  `json:"filename"`
	Snippet        string  `json:"snippet"`
	Score          float64 `json:"score"`
	Position       int     `json:"position"`
	BelowThreshold bool    `json:"below_threshold,omitempty"`
}

// DocumentIDInput identifies a single document.
type DocumentIDInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document id" validate:"required"`
}

// SummaryOutput is the output schema for the summarize_document tool.
type SummaryOutput struct {
	DocumentID string `json:"document_id"`
	Summary    string `json:"summary"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query    string   `json:"query" jsonschema:"text to find semantically similar chunks for" validate:"required"`
	K        *int     `json:"k,omitempty" jsonschema:"maximum number of results to return" validate:"omitempty,min=1"`
	FileType string   `json:"file_type,omitempty" jsonschema:"restrict to one file type" validate:"omitempty,oneof=text markdown html docx epub pdf"`
	Tags     []string `json:"tags,omitempty" jsonschema:"restrict to documents carrying all of these tags"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Title      string  `json:"title"`
	ChunkID    string  `json:"chunk_id"`
	Position   int     `json:"position"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// ListInput is the input schema for the list_documents tool.
type ListInput struct {
	FileType string `json:"file_type,omitempty" jsonschema:"only list documents of this type" validate:"omitempty,oneof=text markdown html docx epub pdf"`
	Tag      string `json:"tag,omitempty" jsonschema:"only list documents carrying this tag"`
}

// ListOutput is the output schema for the list_documents tool.
type ListOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput describes a stored document.
type DocumentOutput struct {
	ID          string   `json:"id"`
	Filename    string   `json:"filename"`
	FileType    string   `json:"file_type"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	SizeBytes   int64    `json:"size_bytes"`
	ChunkCount  int      `json:"chunk_count"`
	UploadedAt  string   `json:"uploaded_at"`
}

// UpdateInput is the input schema for the update_document tool.
// Omitted fields are left unchanged.
type UpdateInput struct {
	DocumentID  string    `json:"document_id" jsonschema:"the document id" validate:"required"`
	Tags        *[]string `json:"tags,omitempty" jsonschema:"replacement tag set"`
	Description *string   `json:"description,omitempty" jsonschema:"replacement description"`
}

// DeleteOutput is the output schema for the delete_document tool.
type DeleteOutput struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

// ResetInput is the input schema for the reset_knowledge_base tool.
type ResetInput struct {
	Confirm bool `json:"confirm" jsonschema:"must be true; every document is removed" validate:"required"`
}

// ResetOutput is the output schema for the reset_knowledge_base tool.
type ResetOutput struct {
	DocumentsRemoved int `json:"documents_removed"`
}

// StatsInput takes no arguments.
type StatsInput struct{}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	TotalDocuments      int            `json:"total_documents"`
	TotalChunks         int            `json:"total_chunks"`
	TotalBytes          int64          `json:"total_bytes"`
	EmbeddingProvider   string         `json:"embedding_provider"`
	EmbeddingDimensions int            `json:"embedding_dimensions"`
	LLMProvider         string         `json:"llm_provider"`
	VectorBackend       string         `json:"vector_backend"`
	FileTypes           map[string]int `json:"file_types"`
	TopTags             map[string]int `json:"top_tags"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Add a document to the knowledge base, or replace one when document_id is given",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Answer a question using only the uploaded documents, with cited sources",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "summarize_document",
		Description: "Summarise a single uploaded document",
	}, s.handleSummarize)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find the chunks most similar to a query without generating an answer",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List uploaded documents",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_document",
		Description: "Change the tags or description of a document",
	}, s.handleUpdate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document and all of its chunks",
	}, s.handleDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reset_knowledge_base",
		Description: "Remove every document and vector so a different embedding model can be used",
	}, s.handleReset)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "stats",
		Description: "Report knowledge base totals and the configured providers",
	}, s.handleStats)
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, IngestOutput{}, toolError(err)
	}

	content := []byte(input.Content)
	if input.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(input.ContentBase64)
		if err != nil {
			return nil, IngestOutput{}, toolError(fmt.Errorf("%w: content_base64: %v", domain.ErrInvalidInput, err))
		}
		content = decoded
	}

	res, err := s.ports.Document.IngestFile(ctx, driving.IngestFileRequest{
		Filename:    input.Filename,
		Content:     content,
		DocumentID:  input.DocumentID,
		Tags:        input.Tags,
		Description: input.Description,
	})
	if err != nil {
		return nil, IngestOutput{}, toolError(err)
	}

	return nil, IngestOutput{
		DocumentID: res.DocumentID,
		Filename:   res.Filename,
		ChunkCount: res.ChunkCount,
		Replaced:   res.Replaced,
	}, nil
}

func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, QueryOutput{}, toolError(err)
	}

	res, err := s.ports.RAG.Query(ctx, input.Question, domain.QueryOptions{
		K:              s.ports.resolveK(input.K),
		DocumentIDs:    input.DocumentIDs,
		ConversationID: input.ConversationID,
	})
	if err != nil {
		return nil, QueryOutput{}, toolError(err)
	}

	output := QueryOutput{
		Answer:   res.Answer,
		Grounded: res.Grounded,
		Sources:  make([]SourceOutput, len(res.Sources)),
	}
	for i, src := range res.Sources {
		output.Sources[i] = SourceOutput{
			DocumentID:     src.DocumentID,
			ChunkID:        src.ChunkID,
			Filename:       src.Filename,
			Snippet:        src.Snippet,
			Score:          src.Score,
			Position:       src.Position,
			BelowThreshold: src.BelowThreshold,
		}
	}
	return nil, output, nil
}

func (s *Server) handleSummarize(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentIDInput,
) (*mcp.CallToolResult, SummaryOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, SummaryOutput{}, toolError(err)
	}

	summary, err := s.ports.RAG.Summarize(ctx, input.DocumentID)
	if err != nil {
		return nil, SummaryOutput{}, toolError(err)
	}
	return nil, SummaryOutput{DocumentID: input.DocumentID, Summary: summary}, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, SearchOutput{}, toolError(err)
	}

	opts := domain.SearchOptions{
		K:        s.ports.resolveK(input.K),
		FileType: domain.FileType(input.FileType),
		Tags:     input.Tags,
	}
	results, err := s.ports.Document.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, toolError(err)
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			DocumentID: results[i].Document.ID,
			Filename:   results[i].Document.Filename,
			Title:      results[i].Document.Title,
			ChunkID:    results[i].Chunk.ID,
			Position:   results[i].Chunk.Position,
			Score:      results[i].Score,
			Content:    results[i].Chunk.Content,
		}
	}

	return nil, output, nil
}

func (s *Server) handleList(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListInput,
) (*mcp.CallToolResult, ListOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, ListOutput{}, toolError(err)
	}

	docs, err := s.ports.Document.List(ctx, domain.ListFilter{
		FileType: domain.FileType(input.FileType),
		Tag:      input.Tag,
	})
	if err != nil {
		return nil, ListOutput{}, toolError(err)
	}

	output := ListOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = documentOutput(&docs[i])
	}
	return nil, output, nil
}

func (s *Server) handleUpdate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UpdateInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, DocumentOutput{}, toolError(err)
	}

	doc, err := s.ports.RAG.UpdateMetadata(ctx, input.DocumentID, domain.MetadataUpdate{
		Tags:        input.Tags,
		Description: input.Description,
	})
	if err != nil {
		return nil, DocumentOutput{}, toolError(err)
	}
	return nil, documentOutput(doc), nil
}

func (s *Server) handleDelete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentIDInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, DeleteOutput{}, toolError(err)
	}

	if err := s.ports.RAG.DeleteDocument(ctx, input.DocumentID); err != nil {
		return nil, DeleteOutput{}, toolError(err)
	}
	return nil, DeleteOutput{DocumentID: input.DocumentID, Deleted: true}, nil
}

func (s *Server) handleReset(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResetInput,
) (*mcp.CallToolResult, ResetOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, ResetOutput{}, toolError(err)
	}

	n, err := s.ports.RAG.Reset(ctx)
	if err != nil {
		return nil, ResetOutput{}, toolError(err)
	}
	return nil, ResetOutput{DocumentsRemoved: n}, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.RAG.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, toolError(err)
	}

	output := StatsOutput{
		TotalDocuments:      stats.TotalDocuments,
		TotalChunks:         stats.TotalChunks,
		TotalBytes:          stats.TotalBytes,
		EmbeddingProvider:   stats.EmbeddingProvider,
		EmbeddingDimensions: stats.EmbeddingDimensions,
		LLMProvider:         stats.LLMProvider,
		VectorBackend:       stats.VectorBackend,
		FileTypes:           make(map[string]int, len(stats.FileTypes)),
		TopTags:             make(map[string]int, len(stats.TopTags)),
	}
	for ft, n := range stats.FileTypes {
		output.FileTypes[string(ft)] = n
	}
	for _, tc := range stats.TopTags {
		output.TopTags[tc.Tag] = tc.Count
	}
	return nil, output, nil
}

func documentOutput(doc *domain.Document) DocumentOutput {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return DocumentOutput{
		ID:          doc.ID,
		Filename:    doc.Filename,
		FileType:    string(doc.FileType),
		Title:       doc.Title,
		Description: doc.Description,
		Tags:        tags,
		SizeBytes:   doc.SizeBytes,
		ChunkCount:  doc.ChunkCount,
		UploadedAt:  doc.UploadedAt.Format(time.RFC3339),
	}
}
