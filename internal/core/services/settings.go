package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"
	keyEmbedDims     = "embedding.dimensions"
	keyEmbedRPS      = "embedding.requests_per_second"

	keyLLMProvider    = "llm.provider"
	keyLLMModel       = "llm.model"
	keyLLMBaseURL     = "llm.base_url"
	keyLLMAPIKey      = "llm.api_key"
	keyLLMMaxTokens   = "llm.max_tokens"
	keyLLMTemperature = "llm.temperature"
	keyLLMRPS         = "llm.requests_per_second"

	keyVectorBackend    = "vector_store.backend"
	keyVectorCollection = "vector_store.collection"
	keyVectorURL        = "vector_store.url"
	keyVectorAPIKey     = "vector_store.api_key"
	keyVectorPath       = "vector_store.path"

	keyChunkStrategy = "chunker.strategy"
	keyChunkSize     = "chunker.chunk_size"
	keyChunkOverlap  = "chunker.chunk_overlap"

	keyThreshold        = "rag.similarity_threshold"
	keyDefaultK         = "rag.default_k"
	keyMaxK             = "rag.max_k"
	keyMaxContextChars  = "rag.max_context_chars"
	keySummaryMaxChars  = "rag.summary_max_chars"
	keySnippetLength    = "rag.snippet_length"
	keyEmbedBatchSize   = "rag.embed_batch_size"
	keyEmbedConcurrency = "rag.embed_concurrency"
	keyProviderTimeout  = "rag.provider_timeout"
	keyHistoryMessages  = "rag.history_messages"

	keyRetryAttempts  = "retry.max_attempts"
	keyRetryBaseDelay = "retry.base_delay"
	keyRetryMaxDelay  = "retry.max_delay"

	keyCacheEnabled  = "cache.enabled"
	keyMaxFileBytes  = "documents.max_file_bytes"
	keyServerAddr    = "server.addr"
	keyMCPAddr       = "server.mcp_addr"
	keyWatchDir      = "watch.dir"
	keyPDFLicenseKey = "pdf.license_key"
)

// keyKinds lists every recognised key with the type Set accepts.
var keyKinds = map[string]string{
	keyEmbedProvider: "string", keyEmbedModel: "string", keyEmbedBaseURL: "string",
	keyEmbedAPIKey: "string", keyEmbedDims: "int", keyEmbedRPS: "float",
	keyLLMProvider: "string", keyLLMModel: "string", keyLLMBaseURL: "string",
	keyLLMAPIKey: "string", keyLLMMaxTokens: "int", keyLLMTemperature: "float", keyLLMRPS: "float",
	keyVectorBackend: "string", keyVectorCollection: "string", keyVectorURL: "string",
	keyVectorAPIKey: "string", keyVectorPath: "string",
	keyChunkStrategy: "string", keyChunkSize: "int", keyChunkOverlap: "int",
	keyThreshold: "float", keyDefaultK: "int", keyMaxK: "int", keyMaxContextChars: "int",
	keySummaryMaxChars: "int", keySnippetLength: "int", keyEmbedBatchSize: "int",
	keyEmbedConcurrency: "int", keyProviderTimeout: "duration", keyHistoryMessages: "int",
	keyRetryAttempts: "int", keyRetryBaseDelay: "duration", keyRetryMaxDelay: "duration",
	keyCacheEnabled: "bool", keyMaxFileBytes: "int", keyServerAddr: "string", keyMCPAddr: "string",
	keyWatchDir: "string", keyPDFLicenseKey: "string",
}

// SettingKeys returns every recognised configuration key, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
// Missing keys take their defaults; the result is not validated.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	embedProvider := s.getProvider(keyEmbedProvider, d.Embedding.Provider)
	embedModel := s.getString(keyEmbedModel, "")
	if embedModel == "" {
		embedModel = d.Embedding.Model
		if embedProvider != d.Embedding.Provider {
			embedModel = domain.DefaultEmbeddingModels()[embedProvider]
		}
	}
	embedDims := s.getInt(keyEmbedDims, 0)
	if embedDims == 0 && embedProvider == domain.AIProviderLocal {
		embedDims = d.Embedding.Dimensions
	}

	llmProvider := s.getProvider(keyLLMProvider, d.LLM.Provider)
	llmModel := s.getString(keyLLMModel, "")
	if llmModel == "" {
		llmModel = domain.DefaultLLMModels()[llmProvider]
	}
	llmBaseURL := s.configStore.GetString(keyLLMBaseURL)
	if llmBaseURL == "" && llmProvider == domain.AIProviderOllama {
		llmBaseURL = d.LLM.BaseURL
	}

	timeout, err := s.getDuration(keyProviderTimeout, d.RAG.ProviderTimeout)
	if err != nil {
		return nil, err
	}
	baseDelay, err := s.getDuration(keyRetryBaseDelay, d.Retry.BaseDelay)
	if err != nil {
		return nil, err
	}
	maxDelay, err := s.getDuration(keyRetryMaxDelay, d.Retry.MaxDelay)
	if err != nil {
		return nil, err
	}

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          embedProvider,
			Model:             embedModel,
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:        embedDims,
			RequestsPerSecond: s.getFloat(keyEmbedRPS, 0),
		},
		LLM: domain.LLMSettings{
			Provider:          llmProvider,
			Model:             llmModel,
			BaseURL:           llmBaseURL,
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			MaxTokens:         s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
			Temperature:       s.getFloat(keyLLMTemperature, d.LLM.Temperature),
			RequestsPerSecond: s.getFloat(keyLLMRPS, 0),
		},
		VectorStore: domain.VectorStoreSettings{
			Backend:    domain.VectorBackend(s.getString(keyVectorBackend, string(d.VectorStore.Backend))),
			Collection: s.getString(keyVectorCollection, d.VectorStore.Collection),
			URL:        s.configStore.GetString(keyVectorURL),
			APIKey:     s.configStore.GetString(keyVectorAPIKey),
			Path:       s.configStore.GetString(keyVectorPath),
		},
		Chunker: domain.ChunkerSettings{
			Strategy:     domain.ChunkerStrategy(s.getString(keyChunkStrategy, string(d.Chunker.Strategy))),
			ChunkSize:    s.getInt(keyChunkSize, d.Chunker.ChunkSize),
			ChunkOverlap: s.getInt(keyChunkOverlap, d.Chunker.ChunkOverlap),
		},
		RAG: domain.RAGSettings{
			SimilarityThreshold: s.getFloat(keyThreshold, d.RAG.SimilarityThreshold),
			DefaultK:            s.getInt(keyDefaultK, d.RAG.DefaultK),
			MaxK:                s.getInt(keyMaxK, d.RAG.MaxK),
			MaxContextChars:     s.getInt(keyMaxContextChars, d.RAG.MaxContextChars),
			SummaryMaxChars:     s.getInt(keySummaryMaxChars, d.RAG.SummaryMaxChars),
			SnippetLength:       s.getInt(keySnippetLength, d.RAG.SnippetLength),
			EmbedBatchSize:      s.getInt(keyEmbedBatchSize, d.RAG.EmbedBatchSize),
			EmbedConcurrency:    s.getInt(keyEmbedConcurrency, d.RAG.EmbedConcurrency),
			ProviderTimeout:     timeout,
			HistoryMessages:     s.getInt(keyHistoryMessages, d.RAG.HistoryMessages),
		},
		Retry: domain.RetrySettings{
			MaxAttempts: s.getInt(keyRetryAttempts, d.Retry.MaxAttempts),
			BaseDelay:   baseDelay,
			MaxDelay:    maxDelay,
		},
		Server: domain.ServerSettings{
			Addr:    s.getString(keyServerAddr, d.Server.Addr),
			MCPAddr: s.configStore.GetString(keyMCPAddr),
		},
		CacheEnabled:  s.getBool(keyCacheEnabled, d.CacheEnabled),
		MaxFileBytes:  int64(s.getInt(keyMaxFileBytes, int(d.MaxFileBytes))),
		WatchDir:      s.configStore.GetString(keyWatchDir),
		PDFLicenseKey: s.configStore.GetString(keyPDFLicenseKey),
	}

	return settings, nil
}

// Save persists application settings.
// Empty API keys are not written so environment fallbacks keep working.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMMaxTokens, settings.LLM.MaxTokens},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyLLMRPS, settings.LLM.RequestsPerSecond},
		{keyVectorBackend, string(settings.VectorStore.Backend)},
		{keyVectorCollection, settings.VectorStore.Collection},
		{keyVectorURL, settings.VectorStore.URL},
		{keyVectorPath, settings.VectorStore.Path},
		{keyChunkStrategy, string(settings.Chunker.Strategy)},
		{keyChunkSize, settings.Chunker.ChunkSize},
		{keyChunkOverlap, settings.Chunker.ChunkOverlap},
		{keyThreshold, settings.RAG.SimilarityThreshold},
		{keyDefaultK, settings.RAG.DefaultK},
		{keyMaxK, settings.RAG.MaxK},
		{keyMaxContextChars, settings.RAG.MaxContextChars},
		{keySummaryMaxChars, settings.RAG.SummaryMaxChars},
		{keySnippetLength, settings.RAG.SnippetLength},
		{keyEmbedBatchSize, settings.RAG.EmbedBatchSize},
		{keyEmbedConcurrency, settings.RAG.EmbedConcurrency},
		{keyProviderTimeout, settings.RAG.ProviderTimeout.String()},
		{keyHistoryMessages, settings.RAG.HistoryMessages},
		{keyRetryAttempts, settings.Retry.MaxAttempts},
		{keyRetryBaseDelay, settings.Retry.BaseDelay.String()},
		{keyRetryMaxDelay, settings.Retry.MaxDelay.String()},
		{keyCacheEnabled, settings.CacheEnabled},
		{keyMaxFileBytes, int(settings.MaxFileBytes)},
		{keyServerAddr, settings.Server.Addr},
		{keyMCPAddr, settings.Server.MCPAddr},
		{keyWatchDir, settings.WatchDir},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	secrets := map[string]string{
		keyEmbedAPIKey:   settings.Embedding.APIKey,
		keyLLMAPIKey:     settings.LLM.APIKey,
		keyVectorAPIKey:  settings.VectorStore.APIKey,
		keyPDFLicenseKey: settings.PDFLicenseKey,
	}
	for key, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	return nil
}

// Set stores a single key after converting value to the key's type.
// Unknown keys and unparsable values wrap domain.ErrInvalidInput.
func (s *SettingsService) Set(key string, value any) error {
	kind, ok := keyKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	converted, err := convertSetting(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	return s.configStore.Set(key, converted)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}
	if !provider.SupportsEmbeddings() {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" && settings.Embedding.Provider == provider {
		apiKey = settings.Embedding.APIKey
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	// Only Ollama needs a base URL by default
	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// A new model means a new vector space; reset any explicit override.
	settings.Embedding.Dimensions = 0
	if provider == domain.AIProviderLocal {
		settings.Embedding.Dimensions = domain.DefaultAppSettings().Embedding.Dimensions
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() || !provider.SupportsLLM() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" && settings.LLM.Provider == provider {
		apiKey = settings.LLM.APIKey
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		// Cloud providers use their adapter default unless overridden later
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that current settings can build an engine.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// ConfigPath returns the path of the backing configuration file.
func (s *SettingsService) ConfigPath() string {
	return s.configStore.Path()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

// getDuration accepts Go duration strings ("500ms") or whole seconds.
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal, nil
	}
	d, err := convertSetting("duration", val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfiguration, key, err)
	}
	return time.ParseDuration(d.(string))
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	// Unknown providers are kept so Validate can report them.
	return domain.AIProvider(val)
}

// convertSetting coerces a raw value, often a CLI string, to the kind a key stores.
// Durations are normalised to their string form.
func convertSetting(kind string, value any) (any, error) {
	switch kind {
	case "string":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprint(value), nil

	case "int":
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != float64(int(v)) {
				return nil, fmt.Errorf("%v is not a whole number", v)
			}
			return int(v), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", v)
			}
			return n, nil
		}

	case "float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", v)
			}
			return f, nil
		}

	case "bool":
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", v)
			}
			return b, nil
		}

	case "duration":
		switch v := value.(type) {
		case time.Duration:
			return v.String(), nil
		case int:
			return (time.Duration(v) * time.Second).String(), nil
		case int64:
			return (time.Duration(v) * time.Second).String(), nil
		case float64:
			return time.Duration(v * float64(time.Second)).String(), nil
		case string:
			v = strings.TrimSpace(v)
			if n, err := strconv.Atoi(v); err == nil {
				return (time.Duration(n) * time.Second).String(), nil
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%q is not a duration", v)
			}
			return d.String(), nil
		}
	}
	return nil, fmt.Errorf("unsupported value %v (%T) for %s setting", value, value, kind)
}
