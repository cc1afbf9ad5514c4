package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderDeepSeek is the DeepSeek OpenAI-compatible API.
	AIProviderDeepSeek AIProvider = "deepseek"

	// AIProviderGemini is Google Gemini API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderLocal is the in-process hashing embedder.
	AIProviderLocal AIProvider = "local"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic,
		AIProviderDeepSeek, AIProviderGemini, AIProviderLocal:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOpenAI, AIProviderAnthropic, AIProviderDeepSeek, AIProviderGemini:
		return true
	default:
		return false
	}
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// SupportsEmbeddings returns true if the provider can embed text.
func (p AIProvider) SupportsEmbeddings() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGemini, AIProviderLocal:
		return true
	default:
		return false
	}
}

// SupportsLLM returns true if the provider can generate text.
func (p AIProvider) SupportsLLM() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderDeepSeek, AIProviderGemini:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderDeepSeek:
		return "DeepSeek (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	case AIProviderLocal:
		return "Local hashing embedder"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Dimensions overrides the model's output dimensionality. Zero means model default.
	Dimensions int

	// RequestsPerSecond limits outbound calls. Zero disables limiting.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.SupportsEmbeddings() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// EffectiveDimensions returns the configured dimensionality or the known model default.
func (e EmbeddingSettings) EffectiveDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	if d, ok := EmbeddingDimensions()[e.Model]; ok {
		return d
	}
	return 0
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// MaxTokens caps generated output.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// RequestsPerSecond limits outbound calls. Zero disables limiting.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.SupportsLLM() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorBackend identifies a vector store implementation.
type VectorBackend string

// Available vector store backends.
const (
	VectorBackendMemory VectorBackend = "memory"
	VectorBackendSQLite VectorBackend = "sqlite"
	VectorBackendChroma VectorBackend = "chroma"
	VectorBackendQdrant VectorBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendMemory, VectorBackendSQLite, VectorBackendChroma, VectorBackendQdrant:
		return true
	default:
		return false
	}
}

// IsRemote returns true if the backend is a network service.
func (b VectorBackend) IsRemote() bool {
	return b == VectorBackendChroma || b == VectorBackendQdrant
}

// VectorStoreSettings holds vector store configuration.
type VectorStoreSettings struct {
	// Backend selects the implementation.
	Backend VectorBackend

	// Collection is the collection name for remote backends and sqlite.
	Collection string

	// URL is the server address for remote backends.
	URL string

	// APIKey authenticates against remote backends.
	APIKey string

	// Path is the database file for the sqlite backend. Empty means the app database.
	Path string
}

// ChunkerStrategy selects the text splitting implementation.
type ChunkerStrategy string

// Available chunker strategies.
const (
	// ChunkerRecursive is the boundary-aware splitter with exact reconstruction.
	ChunkerRecursive ChunkerStrategy = "recursive"

	// ChunkerLangchain delegates to the langchaingo recursive character splitter.
	ChunkerLangchain ChunkerStrategy = "langchain"
)

// ChunkerSettings holds chunking configuration.
type ChunkerSettings struct {
	Strategy     ChunkerStrategy
	ChunkSize    int
	ChunkOverlap int
}

// RAGSettings holds engine tuning. Immutable after the engine is built.
type RAGSettings struct {
	// SimilarityThreshold is the minimum score for a chunk to enter the LLM context.
	SimilarityThreshold float64

	// DefaultK is the number of chunks retrieved when the caller does not specify one.
	DefaultK int

	// MaxK is the largest accepted k. Larger values are rejected.
	MaxK int

	// MaxContextChars bounds the assembled context block.
	MaxContextChars int

	// SummaryMaxChars truncates reconstructed documents before summarisation.
	SummaryMaxChars int

	// SnippetLength is the rune length of source snippets.
	SnippetLength int

	// EmbedBatchSize is the number of chunks per embedding request.
	EmbedBatchSize int

	// EmbedConcurrency bounds parallel embedding requests during ingestion.
	EmbedConcurrency int

	// ProviderTimeout bounds every embedding and LLM call.
	ProviderTimeout time.Duration

	// HistoryMessages is the number of conversation messages kept per conversation.
	HistoryMessages int
}

// RetrySettings holds provider retry policy.
type RetrySettings struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// ServerSettings holds listen addresses for the driving adapters.
type ServerSettings struct {
	// Addr is the HTTP API listen address.
	Addr string

	// MCPAddr is the streamable HTTP MCP listen address. Empty means stdio only.
	MCPAddr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding   EmbeddingSettings
	LLM         LLMSettings
	VectorStore VectorStoreSettings
	Chunker     ChunkerSettings
	RAG         RAGSettings
	Retry       RetrySettings
	Server      ServerSettings

	// CacheEnabled wraps the embedder with a persistent embedding cache.
	CacheEnabled bool

	// MaxFileBytes is the largest accepted upload.
	MaxFileBytes int64

	// WatchDir is the directory auto-ingested by the watch command.
	WatchDir string

	// PDFLicenseKey is an optional metered key for the PDF extractor.
	PDFLicenseKey string
}

// Defaults for AppSettings.
const (
	DefaultChunkSize        = 1000
	DefaultChunkOverlap     = 200
	DefaultK                = 4
	DefaultMaxK             = 100
	DefaultMaxContextChars  = 12000
	DefaultSummaryMaxChars  = 10000
	DefaultSnippetLength    = 200
	DefaultEmbedBatchSize   = 32
	DefaultEmbedConcurrency = 4
	DefaultProviderTimeout  = 60 * time.Second
	DefaultHistoryMessages  = 5
	DefaultMaxAttempts      = 3
	DefaultBaseDelay        = 500 * time.Millisecond
	DefaultMaxDelay         = 8 * time.Second
	DefaultMaxFileBytes     = 35 << 20
	MinFileBytes            = 10
	DefaultCollection       = "documents"
	DefaultServerAddr       = "127.0.0.1:8080"
)

// DefaultAppSettings returns settings with sensible defaults.
// The default providers need no network credentials: local hashing embeddings
// and a local Ollama model.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderLocal,
			Model:      "hashing-v1",
			Dimensions: 384,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       DefaultLLMModels()[AIProviderOllama],
			BaseURL:     "http://localhost:11434",
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		VectorStore: VectorStoreSettings{
			Backend:    VectorBackendSQLite,
			Collection: DefaultCollection,
		},
		Chunker: ChunkerSettings{
			Strategy:     ChunkerRecursive,
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		RAG: RAGSettings{
			SimilarityThreshold: 0.0,
			DefaultK:            DefaultK,
			MaxK:                DefaultMaxK,
			MaxContextChars:     DefaultMaxContextChars,
			SummaryMaxChars:     DefaultSummaryMaxChars,
			SnippetLength:       DefaultSnippetLength,
			EmbedBatchSize:      DefaultEmbedBatchSize,
			EmbedConcurrency:    DefaultEmbedConcurrency,
			ProviderTimeout:     DefaultProviderTimeout,
			HistoryMessages:     DefaultHistoryMessages,
		},
		Retry: RetrySettings{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   DefaultBaseDelay,
			MaxDelay:    DefaultMaxDelay,
		},
		Server: ServerSettings{
			Addr: DefaultServerAddr,
		},
		CacheEnabled: true,
		MaxFileBytes: DefaultMaxFileBytes,
	}
}

// Validate checks settings that would make the engine unusable.
// All failures wrap ErrInvalidConfiguration.
func (s AppSettings) Validate() error {
	if s.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfiguration, s.Chunker.ChunkSize)
	}
	if s.Chunker.ChunkOverlap < 0 || s.Chunker.ChunkOverlap >= s.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d",
			ErrInvalidConfiguration, s.Chunker.ChunkOverlap)
	}
	switch s.Chunker.Strategy {
	case ChunkerRecursive, ChunkerLangchain:
	default:
		return fmt.Errorf("%w: unknown chunker strategy %q", ErrInvalidConfiguration, s.Chunker.Strategy)
	}
	if !s.Embedding.Provider.SupportsEmbeddings() {
		return fmt.Errorf("%w: unsupported embedding provider %q", ErrInvalidConfiguration, s.Embedding.Provider)
	}
	if !s.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %s requires an API key", ErrInvalidConfiguration, s.Embedding.Provider)
	}
	if s.Embedding.Provider == AIProviderLocal && s.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: local embedder requires embedding.dimensions", ErrInvalidConfiguration)
	}
	if !s.LLM.Provider.SupportsLLM() {
		return fmt.Errorf("%w: unsupported LLM provider %q", ErrInvalidConfiguration, s.LLM.Provider)
	}
	if !s.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider %s requires an API key", ErrInvalidConfiguration, s.LLM.Provider)
	}
	if !s.VectorStore.Backend.IsValid() {
		return fmt.Errorf("%w: unknown vector store backend %q", ErrInvalidConfiguration, s.VectorStore.Backend)
	}
	if s.VectorStore.Backend.IsRemote() && s.VectorStore.URL == "" {
		return fmt.Errorf("%w: vector store %s requires a url", ErrInvalidConfiguration, s.VectorStore.Backend)
	}
	if s.RAG.SimilarityThreshold < -1 || s.RAG.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be in [-1, 1]", ErrInvalidConfiguration)
	}
	if s.RAG.DefaultK <= 0 || s.RAG.MaxK < s.RAG.DefaultK {
		return fmt.Errorf("%w: require 0 < default_k <= max_k", ErrInvalidConfiguration)
	}
	if s.RAG.EmbedBatchSize <= 0 || s.RAG.EmbedConcurrency <= 0 {
		return fmt.Errorf("%w: embed batch size and concurrency must be positive", ErrInvalidConfiguration)
	}
	if s.RAG.MaxContextChars <= 0 || s.RAG.SummaryMaxChars <= 0 {
		return fmt.Errorf("%w: context and summary limits must be positive", ErrInvalidConfiguration)
	}
	if s.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("%w: retry.max_attempts must be positive", ErrInvalidConfiguration)
	}
	if s.MaxFileBytes < MinFileBytes {
		return fmt.Errorf("%w: documents.max_file_bytes too small", ErrInvalidConfiguration)
	}
	return nil
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderLocal,
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderDeepSeek,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:  "hashing-v1",
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderDeepSeek:  "deepseek-chat",
		AIProviderGemini:    "gemini-2.0-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}
