package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure RAGService implements the interface.
var _ driving.RAGService = (*RAGService)(nil)

// Stats breakdown sizes.
const (
	statsTopTags          = 10
	statsLargestDocuments = 5
)

// EngineConfig is the immutable configuration of a RAGService.
type EngineConfig struct {
	RAG   domain.RAGSettings
	Retry domain.RetrySettings

	// EmbeddingProvider and LLMProvider are "provider/model" labels for Stats.
	EmbeddingProvider string
	LLMProvider       string

	// VectorBackend names the vector store for Stats.
	VectorBackend string

	// MaxTokens and Temperature are passed to every generation call.
	MaxTokens   int
	Temperature float64
}

// Dependencies are the driven ports the engine orchestrates. All are required.
type Dependencies struct {
	Chunker   driven.Chunker
	Embedder  driven.EmbeddingService
	LLM       driven.LLMService
	Vectors   driven.VectorStore
	Documents driven.DocumentStore
	Prompts   driven.PromptStore
}

// RAGService ingests documents and answers questions grounded in them.
//
// Writes to a document (ingest, delete, metadata updates) are serialised per
// document id and exclude Reset. Reads never take the lock.
type RAGService struct {
	cfg       EngineConfig
	chunker   driven.Chunker
	embedder  driven.EmbeddingService
	llm       driven.LLMService
	vectors   driven.VectorStore
	documents driven.DocumentStore
	prompts   driven.PromptStore

	retry  retryPolicy
	writes sync.RWMutex
	locks  *keyedMutex
	memory *conversationMemory
	now    func() time.Time
}

// NewRAGService creates the engine. Zero-valued tuning fields take the
// defaults from domain.DefaultAppSettings.
func NewRAGService(cfg EngineConfig, deps Dependencies) (*RAGService, error) {
	switch {
	case deps.Chunker == nil:
		return nil, fmt.Errorf("%w: chunker is required", domain.ErrInvalidConfiguration)
	case deps.Embedder == nil:
		return nil, fmt.Errorf("%w: embedding service is required", domain.ErrInvalidConfiguration)
	case deps.LLM == nil:
		return nil, fmt.Errorf("%w: LLM service is required", domain.ErrInvalidConfiguration)
	case deps.Vectors == nil:
		return nil, fmt.Errorf("%w: vector store is required", domain.ErrInvalidConfiguration)
	case deps.Documents == nil:
		return nil, fmt.Errorf("%w: document store is required", domain.ErrInvalidConfiguration)
	case deps.Prompts == nil:
		return nil, fmt.Errorf("%w: prompt store is required", domain.ErrInvalidConfiguration)
	}

	cfg = withEngineDefaults(cfg)
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}

	return &RAGService{
		cfg:       cfg,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		llm:       deps.LLM,
		vectors:   deps.Vectors,
		documents: deps.Documents,
		prompts:   deps.Prompts,
		retry:     newRetryPolicy(cfg.Retry, cfg.RAG.ProviderTimeout),
		locks:     newKeyedMutex(),
		memory:    newConversationMemory(cfg.RAG.HistoryMessages),
		now:       time.Now,
	}, nil
}

func withEngineDefaults(cfg EngineConfig) EngineConfig {
	d := domain.DefaultAppSettings()
	r := &cfg.RAG
	if r.DefaultK == 0 {
		r.DefaultK = d.RAG.DefaultK
	}
	if r.MaxK == 0 {
		r.MaxK = d.RAG.MaxK
	}
	if r.MaxContextChars == 0 {
		r.MaxContextChars = d.RAG.MaxContextChars
	}
	if r.SummaryMaxChars == 0 {
		r.SummaryMaxChars = d.RAG.SummaryMaxChars
	}
	if r.SnippetLength == 0 {
		r.SnippetLength = d.RAG.SnippetLength
	}
	if r.EmbedBatchSize == 0 {
		r.EmbedBatchSize = d.RAG.EmbedBatchSize
	}
	if r.EmbedConcurrency == 0 {
		r.EmbedConcurrency = d.RAG.EmbedConcurrency
	}
	if r.ProviderTimeout == 0 {
		r.ProviderTimeout = d.RAG.ProviderTimeout
	}
	if r.HistoryMessages == 0 {
		r.HistoryMessages = d.RAG.HistoryMessages
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = d.Retry
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = d.LLM.MaxTokens
	}
	return cfg
}

func validateEngineConfig(cfg EngineConfig) error {
	r := cfg.RAG
	switch {
	case r.SimilarityThreshold < -1 || r.SimilarityThreshold > 1:
		return fmt.Errorf("%w: similarity threshold %v outside [-1, 1]", domain.ErrInvalidConfiguration, r.SimilarityThreshold)
	case r.MaxK < 1:
		return fmt.Errorf("%w: max k must be positive", domain.ErrInvalidConfiguration)
	case r.DefaultK < 1 || r.DefaultK > r.MaxK:
		return fmt.Errorf("%w: default k %d outside [1, %d]", domain.ErrInvalidConfiguration, r.DefaultK, r.MaxK)
	case r.EmbedBatchSize < 1 || r.EmbedConcurrency < 1:
		return fmt.Errorf("%w: embed batch size and concurrency must be positive", domain.ErrInvalidConfiguration)
	case r.HistoryMessages < 0:
		return fmt.Errorf("%w: history messages must not be negative", domain.ErrInvalidConfiguration)
	case cfg.Retry.MaxAttempts < 1:
		return fmt.Errorf("%w: retry max attempts must be positive", domain.ErrInvalidConfiguration)
	}
	return nil
}

// DefaultK returns the k used by transports when the caller gives none.
func (s *RAGService) DefaultK() int {
	return s.cfg.RAG.DefaultK
}

// Ingest chunks, embeds and stores a document, replacing any previous
// version with the same id.
//
// Cancellation of ctx is ignored once ingestion starts: a client that
// disconnects mid-upload still gets its document indexed. Provider calls run
// before the document lock is taken. If any store write fails, the new
// vectors are removed and the previous version is left intact.
func (s *RAGService) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	ctx = context.WithoutCancel(ctx)
	logger.Section("Ingest")

	req.Filename = strings.TrimSpace(req.Filename)
	if req.Filename == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: %s has no text content", domain.ErrInvalidInput, req.Filename)
	}

	docID := req.DocumentID
	if docID == "" {
		docID = uuid.NewString()
	}
	logger.Debug("Document: %s (%s), %d bytes of text", req.Filename, docID, len(req.Text))

	segments, err := s.chunker.Split(req.Text)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", req.Filename, err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s produced no chunks", domain.ErrInvalidInput, req.Filename)
	}
	logger.Debug("Chunks: %d", len(segments))

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Content
	}

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := s.checkVectors(vectors); err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(segments))
	records := make([]driven.VectorRecord, len(segments))
	newIDs := make([]string, len(segments))
	for i, seg := range segments {
		id := uuid.NewString()
		newIDs[i] = id
		chunks[i] = domain.Chunk{
			ID:         id,
			DocumentID: docID,
			Content:    seg.Content,
			Position:   i,
			Overlap:    seg.Overlap,
		}
		records[i] = driven.VectorRecord{
			ChunkID:    id,
			DocumentID: docID,
			Filename:   req.Filename,
			Position:   i,
			Content:    seg.Content,
			Vector:     vectors[i],
		}
	}

	s.writes.RLock()
	defer s.writes.RUnlock()
	unlock := s.locks.Lock(docID)
	defer unlock()

	prev, prevChunks, err := s.previousVersion(ctx, docID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := &domain.Document{
		ID:          docID,
		Filename:    req.Filename,
		FileType:    req.FileType,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Tags:        domain.NormaliseTags(req.Tags),
		SizeBytes:   req.SizeBytes,
		ChunkCount:  len(chunks),
		Metadata:    req.Metadata,
		UploadedAt:  now,
		UpdatedAt:   now,
	}
	if doc.Title == "" {
		doc.Title = domain.TitleFromFilename(req.Filename)
	}
	if prev != nil {
		if req.Tags == nil {
			doc.Tags = prev.Tags
		}
		if doc.Description == "" {
			doc.Description = prev.Description
		}
	}

	if err := s.vectors.Upsert(ctx, records); err != nil {
		s.rollback(ctx, docID, newIDs, nil, nil, false)
		return nil, fmt.Errorf("storing vectors for %s: %w", req.Filename, err)
	}
	if err := s.documents.SaveDocument(ctx, doc); err != nil {
		s.rollback(ctx, docID, newIDs, nil, nil, false)
		return nil, fmt.Errorf("saving document %s: %w", req.Filename, err)
	}
	if err := s.documents.SaveChunks(ctx, docID, chunks); err != nil {
		s.rollback(ctx, docID, newIDs, prev, nil, true)
		return nil, fmt.Errorf("saving chunks for %s: %w", req.Filename, err)
	}

	// The old vectors must go before the new version counts as committed,
	// otherwise both versions stay searchable.
	if oldIDs := chunkIDs(prevChunks); len(oldIDs) > 0 {
		if err := s.vectors.Delete(ctx, oldIDs); err != nil {
			s.rollback(ctx, docID, newIDs, prev, prevChunks, true)
			return nil, fmt.Errorf("removing superseded vectors of %s: %w", req.Filename, err)
		}
	}

	logger.Info("Ingested %s: %d chunks (replaced=%t)", req.Filename, len(chunks), prev != nil)
	return &domain.IngestResult{
		DocumentID: docID,
		Filename:   req.Filename,
		ChunkCount: len(chunks),
		Replaced:   prev != nil,
	}, nil
}

// previousVersion returns the stored document and its chunks, or nil when
// the id is new.
func (s *RAGService) previousVersion(ctx context.Context, docID string) (*domain.Document, []domain.Chunk, error) {
	prev, err := s.documents.GetDocument(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading document %s: %w", docID, err)
	}

	chunks, err := s.documents.GetChunks(ctx, docID)
	if err != nil {
		return nil, nil, fmt.Errorf("reading chunks of %s: %w", docID, err)
	}
	return prev, chunks, nil
}

func chunkIDs(chunks []domain.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

// rollback removes newly upserted vectors. When docSaved is set the document
// row is restored to prev, or removed if there was no previous version.
// Non-nil prevChunks replace the chunks written by the failed ingest.
func (s *RAGService) rollback(
	ctx context.Context, docID string, newIDs []string,
	prev *domain.Document, prevChunks []domain.Chunk, docSaved bool,
) {
	if err := s.vectors.Delete(ctx, newIDs); err != nil {
		logger.Error("Rollback: failed to remove %d vectors of %s: %v", len(newIDs), docID, err)
	}
	if !docSaved {
		return
	}
	if prev != nil {
		if err := s.documents.SaveDocument(ctx, prev); err != nil {
			logger.Error("Rollback: failed to restore document %s: %v", docID, err)
		}
		if prevChunks != nil {
			if err := s.documents.SaveChunks(ctx, docID, prevChunks); err != nil {
				logger.Error("Rollback: failed to restore chunks of %s: %v", docID, err)
			}
		}
		return
	}
	if err := s.documents.DeleteDocument(ctx, docID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Error("Rollback: failed to remove document %s: %v", docID, err)
	}
}

// embedAll embeds texts in batches with bounded concurrency.
// The result is index-aligned with texts.
func (s *RAGService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	batchSize := s.cfg.RAG.EmbedBatchSize
	out := make([][]float32, len(texts))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	sem := make(chan struct{}, s.cfg.RAG.EmbedConcurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			defer func() { <-sem }()

			batch := texts[start:end]
			var vecs [][]float32
			err := s.retry.do(ctx, "embedding batch", func(ctx context.Context) error {
				var err error
				vecs, err = s.embedder.EmbedDocuments(ctx, batch)
				return err
			})
			if err == nil && len(vecs) != len(batch) {
				err = &domain.ProviderError{
					Op:       domain.ErrEmbeddingProvider,
					Kind:     domain.ErrProviderUnavailable,
					Provider: s.embedder.ModelName(),
					Message:  fmt.Sprintf("returned %d vectors for %d texts", len(vecs), len(batch)),
				}
			}
			if err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			copy(out[start:end], vecs)
			logger.Debug("Embedded chunks %d-%d", start, end-1)
		}(start, end)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// checkVectors verifies all vectors share the embedder's dimension.
func (s *RAGService) checkVectors(vectors [][]float32) error {
	want := s.embedder.Dimensions()
	if want == 0 && len(vectors) > 0 {
		want = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) == 0 {
			return &domain.ProviderError{
				Op:       domain.ErrEmbeddingProvider,
				Kind:     domain.ErrProviderUnavailable,
				Provider: s.embedder.ModelName(),
				Message:  "returned an empty vector",
			}
		}
		if err := domain.CheckDimensions(want, len(v)); err != nil {
			return err
		}
	}
	return nil
}

// Retrieve embeds query and returns the k most similar chunks.
// An empty store returns no hits without calling the embedder.
func (s *RAGService) Retrieve(
	ctx context.Context, query string, k int, filter driven.VectorFilter,
) ([]driven.VectorHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if k <= 0 || k > s.cfg.RAG.MaxK {
		return nil, fmt.Errorf("%w: k must be between 1 and %d, got %d", domain.ErrInvalidInput, s.cfg.RAG.MaxK, k)
	}

	count, err := s.vectors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting vectors: %w", err)
	}
	if count == 0 {
		logger.Debug("Vector store is empty")
		return nil, nil
	}

	var qvec []float32
	err = s.retry.do(ctx, "query embedding", func(ctx context.Context) error {
		var err error
		qvec, err = s.embedder.EmbedQuery(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	hits, err := s.vectors.SimilaritySearch(ctx, qvec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	logger.Debug("Retrieved %d chunks (k=%d)", len(hits), k)
	return hits, nil
}

// Query answers question from the indexed documents.
//
// Hits scoring below the similarity threshold never reach the LLM. When
// nothing clears the threshold the canned LowRelevanceAnswer is returned with
// all hits as informational sources. An empty store or empty retrieval
// returns NoContextAnswer. Neither case calls the LLM.
func (s *RAGService) Query(
	ctx context.Context, question string, opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	logger.Section("Query")
	logger.Debug("Question: %q", question)

	hits, err := s.Retrieve(ctx, question, opts.K, driven.VectorFilter{DocumentIDs: opts.DocumentIDs})
	if err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)

	if len(hits) == 0 {
		s.memory.Append(opts.ConversationID, question, domain.NoContextAnswer)
		return &domain.QueryResult{Answer: domain.NoContextAnswer, Sources: []domain.Source{}}, nil
	}

	relevant := make([]driven.VectorHit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= s.cfg.RAG.SimilarityThreshold {
			relevant = append(relevant, h)
		}
	}
	if len(relevant) == 0 {
		logger.Info("No chunk cleared threshold %.2f (best %.3f)", s.cfg.RAG.SimilarityThreshold, hits[0].Score)
		s.memory.Append(opts.ConversationID, question, domain.LowRelevanceAnswer)
		return &domain.QueryResult{
			Answer:  domain.LowRelevanceAnswer,
			Sources: s.sources(hits, true),
		}, nil
	}

	contextBlock, used := buildContext(relevant, s.cfg.RAG.MaxContextChars)
	logger.Debug("Context: %d chunks, %d chars", len(used), len(contextBlock))

	tmpl, err := s.prompts.Load(driven.PromptRAGAnswer)
	if err != nil {
		return nil, fmt.Errorf("loading prompt: %w", err)
	}
	prompt := renderPrompt(tmpl, map[string]string{
		"context":  contextBlock,
		"history":  formatHistory(s.memory.History(opts.ConversationID)),
		"question": question,
	})

	answer, err := s.generate(ctx, "answer generation", prompt)
	if err != nil {
		return nil, err
	}

	s.memory.Append(opts.ConversationID, question, answer)
	return &domain.QueryResult{
		Answer:   answer,
		Sources:  s.sources(used, false),
		Grounded: true,
	}, nil
}

// Summarize generates a summary of the whole document, truncated to the
// configured size. The similarity threshold does not apply.
func (s *RAGService) Summarize(ctx context.Context, documentID string) (string, error) {
	logger.Section("Summarize")
	if documentID == "" {
		return "", fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("document %s: %w", documentID, err)
	}
	chunks, err := s.documents.GetChunks(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("reading chunks of %s: %w", documentID, err)
	}

	text := strings.TrimSpace(domain.ReconstructText(chunks))
	if text == "" {
		return "", fmt.Errorf("%w: %s has no content", domain.ErrInvalidInput, doc.Filename)
	}
	if runes := []rune(text); len(runes) > s.cfg.RAG.SummaryMaxChars {
		logger.Debug("Truncating %s from %d to %d chars", doc.Filename, len(runes), s.cfg.RAG.SummaryMaxChars)
		text = string(runes[:s.cfg.RAG.SummaryMaxChars])
	}

	tmpl, err := s.prompts.Load(driven.PromptSummarise)
	if err != nil {
		return "", fmt.Errorf("loading prompt: %w", err)
	}
	prompt := renderPrompt(tmpl, map[string]string{
		"content":  text,
		"filename": doc.Filename,
	})

	return s.generate(ctx, "summary generation", prompt)
}

func (s *RAGService) generate(ctx context.Context, op, prompt string) (string, error) {
	system, err := s.prompts.Load(driven.PromptSystem)
	if err != nil {
		system = ""
	}
	opts := driven.GenerateOptions{
		System:      system,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}

	var answer string
	err = s.retry.do(ctx, op, func(ctx context.Context) error {
		var err error
		answer, err = s.llm.Generate(ctx, prompt, opts)
		return err
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (s *RAGService) sources(hits []driven.VectorHit, below bool) []domain.Source {
	out := make([]domain.Source, len(hits))
	for i, h := range hits {
		out[i] = domain.Source{
			ChunkID:        h.ChunkID,
			DocumentID:     h.DocumentID,
			Filename:       h.Filename,
			Snippet:        snippet(h.Content, s.cfg.RAG.SnippetLength),
			Score:          h.Score,
			Position:       h.Position,
			BelowThreshold: below,
		}
	}
	return out
}

// DeleteDocument removes a document, its chunks and its vectors.
func (s *RAGService) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	s.writes.RLock()
	defer s.writes.RUnlock()
	unlock := s.locks.Lock(documentID)
	defer unlock()

	if _, err := s.documents.GetDocument(ctx, documentID); err != nil {
		return fmt.Errorf("document %s: %w", documentID, err)
	}
	if err := s.vectors.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("deleting vectors of %s: %w", documentID, err)
	}
	if err := s.documents.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}

	logger.Info("Deleted document %s", documentID)
	return nil
}

// UpdateMetadata replaces the tags and/or description of a document.
func (s *RAGService) UpdateMetadata(
	ctx context.Context, documentID string, update domain.MetadataUpdate,
) (*domain.Document, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	s.writes.RLock()
	defer s.writes.RUnlock()
	unlock := s.locks.Lock(documentID)
	defer unlock()

	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", documentID, err)
	}
	if update.Tags != nil {
		doc.Tags = domain.NormaliseTags(*update.Tags)
	}
	if update.Description != nil {
		doc.Description = strings.TrimSpace(*update.Description)
	}
	doc.UpdatedAt = s.now()

	if err := s.documents.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("saving document %s: %w", documentID, err)
	}
	return doc, nil
}

// Reset empties the knowledge base. Every document, chunk and vector is
// removed, the vector collection forgets its dimension and conversation
// history is dropped, so a different embedding model can be configured
// afterwards. It returns the number of documents removed.
func (s *RAGService) Reset(ctx context.Context) (int, error) {
	logger.Section("Reset")
	s.writes.Lock()
	defer s.writes.Unlock()

	docs, err := s.documents.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing documents: %w", err)
	}
	if err := s.vectors.Reset(ctx); err != nil {
		return 0, fmt.Errorf("resetting vector store: %w", err)
	}
	for i := range docs {
		if err := s.documents.DeleteDocument(ctx, docs[i].ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return i, fmt.Errorf("deleting document %s: %w", docs[i].ID, err)
		}
	}
	s.memory.Clear()

	logger.Info("Reset knowledge base: removed %d documents", len(docs))
	return len(docs), nil
}

// Stats summarises the knowledge base.
func (s *RAGService) Stats(ctx context.Context) (*domain.Stats, error) {
	docs, err := s.documents.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	count, err := s.vectors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting vectors: %w", err)
	}

	stats := &domain.Stats{
		TotalDocuments:      len(docs),
		TotalChunks:         count,
		EmbeddingProvider:   s.cfg.EmbeddingProvider,
		LLMProvider:         s.cfg.LLMProvider,
		EmbeddingDimensions: s.embedder.Dimensions(),
		VectorBackend:       s.cfg.VectorBackend,
		FileTypes:           make(map[domain.FileType]int),
		TopTags:             []domain.TagCount{},
		LargestDocuments:    []domain.DocumentSize{},
	}

	tagCounts := make(map[string]int)
	for i := range docs {
		d := &docs[i]
		stats.TotalBytes += d.SizeBytes
		stats.FileTypes[d.FileType]++
		for _, t := range d.Tags {
			tagCounts[t]++
		}
	}

	for tag, n := range tagCounts {
		stats.TopTags = append(stats.TopTags, domain.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(stats.TopTags, func(i, j int) bool {
		if stats.TopTags[i].Count != stats.TopTags[j].Count {
			return stats.TopTags[i].Count > stats.TopTags[j].Count
		}
		return stats.TopTags[i].Tag < stats.TopTags[j].Tag
	})
	if len(stats.TopTags) > statsTopTags {
		stats.TopTags = stats.TopTags[:statsTopTags]
	}

	sorted := make([]domain.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SizeBytes > sorted[j].SizeBytes
	})
	for i := 0; i < len(sorted) && i < statsLargestDocuments; i++ {
		stats.LargestDocuments = append(stats.LargestDocuments, domain.DocumentSize{
			DocumentID: sorted[i].ID,
			Filename:   sorted[i].Filename,
			SizeBytes:  sorted[i].SizeBytes,
			ChunkCount: sorted[i].ChunkCount,
		})
	}

	return stats, nil
}
