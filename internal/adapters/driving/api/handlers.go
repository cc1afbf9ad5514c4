package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

type queryRequest struct {
	Question       string   `json:"question" binding:"required"`
	K              *int     `json:"k" binding:"omitempty,min=1"`
	DocumentIDs    []string `json:"document_ids"`
	ConversationID string   `json:"conversation_id"`
}

type searchRequest struct {
	Query    string   `json:"query" binding:"required"`
	K        *int     `json:"k" binding:"omitempty,min=1"`
	FileType string   `json:"file_type" binding:"omitempty,filetype"`
	Tags     []string `json:"tags"`
}

type updateRequest struct {
	Tags        *[]string `json:"tags"`
	Description *string   `json:"description"`
}

type ingestResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Replaced   bool   `json:"replaced"`
}

type documentResponse struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	FileType    string         `json:"file_type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	SizeBytes   int64          `json:"size_bytes"`
	ChunkCount  int            `json:"chunk_count"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type sourceResponse struct {
	DocumentID     string  `json:"document_id"`
	ChunkID        string  `json:"chunk_id"`
	Filename       string  `json:"filename"`
	Snippet        string  `json:"snippet"`
	Score          float64 `json:"score"`
	Position       int     `json:"position"`
	BelowThreshold bool    `json:"below_threshold"`
}

type queryResponse struct {
	Answer   string           `json:"answer"`
	Grounded bool             `json:"grounded"`
	Sources  []sourceResponse `json:"sources"`
}

type searchResultResponse struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Title      string  `json:"title"`
	ChunkID    string  `json:"chunk_id"`
	Position   int     `json:"position"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

type tagCountResponse struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type documentSizeResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	SizeBytes  int64  `json:"size_bytes"`
	ChunkCount int    `json:"chunk_count"`
}

type statsResponse struct {
	TotalDocuments      int                    `json:"total_documents"`
	TotalChunks         int                    `json:"total_chunks"`
	TotalBytes          int64                  `json:"total_bytes"`
	EmbeddingProvider   string                 `json:"embedding_provider"`
	EmbeddingDimensions int                    `json:"embedding_dimensions"`
	LLMProvider         string                 `json:"llm_provider"`
	VectorBackend       string                 `json:"vector_backend"`
	FileTypes           map[string]int         `json:"file_types"`
	TopTags             []tagCountResponse     `json:"top_tags"`
	LargestDocuments    []documentSizeResponse `json:"largest_documents"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "sercha-rag",
		"version": s.ports.Version,
	})
}

// handleUpload ingests a multipart upload as a new document.
func (s *Server) handleUpload(c *gin.Context) {
	req, err := s.readUpload(c)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := s.ports.Document.IngestFile(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toIngestResponse(res))
}

// handleReplace re-ingests an upload under an existing document id.
func (s *Server) handleReplace(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.ports.Document.Get(ctx, id); err != nil {
		writeError(c, err)
		return
	}

	req, err := s.readUpload(c)
	if err != nil {
		writeError(c, err)
		return
	}
	req.DocumentID = id

	res, err := s.ports.Document.IngestFile(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIngestResponse(res))
}

// readUpload reads the "file" part plus optional tags and description.
func (s *Server) readUpload(c *gin.Context) (driving.IngestFileRequest, error) {
	limit := s.maxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return driving.IngestFileRequest{}, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrInvalidInput, limit)
		}
		return driving.IngestFileRequest{}, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidInput)
	}

	f, err := fh.Open()
	if err != nil {
		return driving.IngestFileRequest{}, fmt.Errorf("%w: reading upload: %v", domain.ErrInvalidInput, err)
	}
	defer f.Close()

	// One byte past the limit lets the document service report the size.
	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return driving.IngestFileRequest{}, fmt.Errorf("%w: reading upload: %v", domain.ErrInvalidInput, err)
	}

	return driving.IngestFileRequest{
		Filename:    fh.Filename,
		Content:     content,
		Tags:        formTags(c),
		Description: strings.TrimSpace(c.PostForm("description")),
	}, nil
}

// formTags accepts repeated tags fields and comma separated lists.
// Nil means no tags were sent.
func formTags(c *gin.Context) []string {
	var tags []string
	for _, field := range c.PostFormArray("tags") {
		for _, tag := range strings.Split(field, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func (s *Server) handleListDocuments(c *gin.Context) {
	filter := domain.ListFilter{
		FileType: domain.FileType(c.Query("file_type")),
		Tag:      c.Query("tag"),
	}
	if filter.FileType != "" && !filter.FileType.IsValid() {
		writeError(c, fmt.Errorf("%w: unknown file type %q", domain.ErrInvalidInput, filter.FileType))
		return
	}

	docs, err := s.ports.Document.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]documentResponse, len(docs))
	for i := range docs {
		out[i] = toDocumentResponse(&docs[i])
	}
	c.JSON(http.StatusOK, gin.H{"documents": out, "count": len(out)})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	doc, err := s.ports.Document.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleDocumentContent(c *gin.Context) {
	content, err := s.ports.Document.GetContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.String(http.StatusOK, content)
}

func (s *Server) handleUpdateDocument(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	if req.Tags == nil && req.Description == nil {
		writeError(c, fmt.Errorf("%w: tags or description is required", domain.ErrInvalidInput))
		return
	}

	doc, err := s.ports.RAG.UpdateMetadata(c.Request.Context(), c.Param("id"), domain.MetadataUpdate{
		Tags:        req.Tags,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	if err := s.ports.RAG.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleReset empties the knowledge base. The confirm=true query parameter
// guards against a stray DELETE on the collection.
func (s *Server) handleReset(c *gin.Context) {
	if c.Query("confirm") != "true" {
		writeError(c, fmt.Errorf("%w: deleting every document requires confirm=true", domain.ErrInvalidInput))
		return
	}
	n, err := s.ports.RAG.Reset(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) handleSummarize(c *gin.Context) {
	id := c.Param("id")
	summary, err := s.ports.RAG.Summarize(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": id, "summary": summary})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	res, err := s.ports.RAG.Query(c.Request.Context(), req.Question, domain.QueryOptions{
		K:              s.resolveK(req.K),
		DocumentIDs:    req.DocumentIDs,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	out := queryResponse{
		Answer:   res.Answer,
		Grounded: res.Grounded,
		Sources:  make([]sourceResponse, len(res.Sources)),
	}
	for i, src := range res.Sources {
		out.Sources[i] = sourceResponse{
			DocumentID:     src.DocumentID,
			ChunkID:        src.ChunkID,
			Filename:       src.Filename,
			Snippet:        src.Snippet,
			Score:          src.Score,
			Position:       src.Position,
			BelowThreshold: src.BelowThreshold,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	results, err := s.ports.Document.Search(c.Request.Context(), req.Query, domain.SearchOptions{
		K:        s.resolveK(req.K),
		FileType: domain.FileType(req.FileType),
		Tags:     req.Tags,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]searchResultResponse, len(results))
	for i := range results {
		out[i] = searchResultResponse{
			DocumentID: results[i].Document.ID,
			Filename:   results[i].Document.Filename,
			Title:      results[i].Document.Title,
			ChunkID:    results[i].Chunk.ID,
			Position:   results[i].Chunk.Position,
			Score:      results[i].Score,
			Content:    results[i].Chunk.Content,
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "count": len(out)})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.ports.RAG.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	out := statsResponse{
		TotalDocuments:      stats.TotalDocuments,
		TotalChunks:         stats.TotalChunks,
		TotalBytes:          stats.TotalBytes,
		EmbeddingProvider:   stats.EmbeddingProvider,
		EmbeddingDimensions: stats.EmbeddingDimensions,
		LLMProvider:         stats.LLMProvider,
		VectorBackend:       stats.VectorBackend,
		FileTypes:           make(map[string]int, len(stats.FileTypes)),
		TopTags:             make([]tagCountResponse, len(stats.TopTags)),
		LargestDocuments:    make([]documentSizeResponse, len(stats.LargestDocuments)),
	}
	for ft, n := range stats.FileTypes {
		out.FileTypes[string(ft)] = n
	}
	for i, tc := range stats.TopTags {
		out.TopTags[i] = tagCountResponse{Tag: tc.Tag, Count: tc.Count}
	}
	for i, d := range stats.LargestDocuments {
		out.LargestDocuments[i] = documentSizeResponse{
			DocumentID: d.DocumentID,
			Filename:   d.Filename,
			SizeBytes:  d.SizeBytes,
			ChunkCount: d.ChunkCount,
		}
	}
	c.JSON(http.StatusOK, out)
}

func toIngestResponse(res *domain.IngestResult) ingestResponse {
	return ingestResponse{
		DocumentID: res.DocumentID,
		Filename:   res.Filename,
		ChunkCount: res.ChunkCount,
		Replaced:   res.Replaced,
	}
}

func toDocumentResponse(doc *domain.Document) documentResponse {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return documentResponse{
		ID:          doc.ID,
		Filename:    doc.Filename,
		FileType:    string(doc.FileType),
		Title:       doc.Title,
		Description: doc.Description,
		Tags:        tags,
		SizeBytes:   doc.SizeBytes,
		ChunkCount:  doc.ChunkCount,
		Metadata:    doc.Metadata,
		UploadedAt:  doc.UploadedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
