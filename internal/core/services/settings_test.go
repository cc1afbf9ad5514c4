package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// mockAIValidator implements driven.AIConfigValidator for testing.
type mockAIValidator struct {
	embedErr  error
	llmErr    error
	embedSeen *domain.EmbeddingSettings
	llmSeen   *domain.LLMSettings
}

func (m *mockAIValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	m.embedSeen = config
	return m.embedErr
}

func (m *mockAIValidator) ValidateLLM(config *domain.LLMSettings) error {
	m.llmSeen = config
	return m.llmErr
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultAppSettings(), *settings)
	assert.NoError(t, settings.Validate())
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"embedding.provider":       "openai",
		"embedding.api_key":        "sk-test",
		"llm.provider":             "anthropic",
		"llm.temperature":          0.7,
		"vector_store.backend":     "qdrant",
		"vector_store.url":         "localhost:6334",
		"chunker.chunk_size":       500,
		"chunker.chunk_overlap":    50,
		"rag.similarity_threshold": "0.3",
		"rag.default_k":            int64(6),
		"rag.provider_timeout":     "90s",
		"retry.base_delay":         "250ms",
		"cache.enabled":            false,
		"server.mcp_addr":          ":9091",
	})
	service := NewSettingsService(store, nil)

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
	assert.Zero(t, settings.Embedding.Dimensions)
	assert.Equal(t, "sk-test", settings.Embedding.APIKey)

	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], settings.LLM.Model)
	assert.Empty(t, settings.LLM.BaseURL)
	assert.InDelta(t, 0.7, settings.LLM.Temperature, 1e-9)

	assert.Equal(t, domain.VectorBackendQdrant, settings.VectorStore.Backend)
	assert.Equal(t, "localhost:6334", settings.VectorStore.URL)
	assert.Equal(t, domain.DefaultCollection, settings.VectorStore.Collection)

	assert.Equal(t, 500, settings.Chunker.ChunkSize)
	assert.Equal(t, 50, settings.Chunker.ChunkOverlap)
	assert.InDelta(t, 0.3, settings.RAG.SimilarityThreshold, 1e-9)
	assert.Equal(t, 6, settings.RAG.DefaultK)
	assert.Equal(t, 90*time.Second, settings.RAG.ProviderTimeout)
	assert.Equal(t, 250*time.Millisecond, settings.Retry.BaseDelay)
	assert.Equal(t, domain.DefaultMaxDelay, settings.Retry.MaxDelay)
	assert.False(t, settings.CacheEnabled)
	assert.Equal(t, ":9091", settings.Server.MCPAddr)
}

func TestSettingsService_Get_InvalidDuration(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{"retry.max_delay": "soon"})
	service := NewSettingsService(store, nil)

	_, err := service.Get()
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	settings := domain.DefaultAppSettings()
	settings.Embedding.Provider = domain.AIProviderOllama
	settings.Embedding.Model = "nomic-embed-text"
	settings.Embedding.BaseURL = "http://gpu:11434"
	settings.Embedding.Dimensions = 0
	settings.RAG.SimilarityThreshold = 0.25
	settings.RAG.ProviderTimeout = 2 * time.Minute
	settings.Retry.MaxAttempts = 5
	settings.WatchDir = "/srv/inbox"

	require.NoError(t, service.Save(&settings))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, settings, *got)

	// Empty secrets are not written.
	_, ok := store.Get("llm.api_key")
	assert.False(t, ok)
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	tests := []struct {
		key   string
		value any
		want  any
	}{
		{key: "rag.default_k", value: "8", want: 8},
		{key: "rag.similarity_threshold", value: "0.4", want: 0.4},
		{key: "cache.enabled", value: "false", want: false},
		{key: "rag.provider_timeout", value: "30", want: "30s"},
		{key: "retry.base_delay", value: "750ms", want: "750ms"},
		{key: "retry.max_delay", value: 2 * time.Second, want: "2s"},
		{key: "llm.model", value: "gpt-4o", want: "gpt-4o"},
		{key: "chunker.chunk_size", value: float64(800), want: 800},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.NoError(t, service.Set(tt.key, tt.value))
			got, ok := store.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingsService_Set_Invalid(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "unknown key", key: "search.mode", value: "hybrid"},
		{name: "not an integer", key: "rag.max_k", value: "many"},
		{name: "fractional integer", key: "rag.max_k", value: 2.5},
		{name: "not a bool", key: "cache.enabled", value: "maybe"},
		{name: "not a duration", key: "retry.base_delay", value: "later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, service.Set(tt.key, tt.value), domain.ErrInvalidInput)
		})
	}
}

func TestSettingKeys(t *testing.T) {
	keys := SettingKeys()
	assert.Contains(t, keys, "rag.similarity_threshold")
	assert.Contains(t, keys, "vector_store.backend")
	assert.IsIncreasing(t, keys)
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOpenAI, "", "sk-1"))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
	assert.Equal(t, "sk-1", settings.Embedding.APIKey)
	assert.Zero(t, settings.Embedding.Dimensions)

	// Same provider keeps the stored key.
	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOpenAI, "text-embedding-3-large", ""))
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", settings.Embedding.Model)
	assert.Equal(t, "sk-1", settings.Embedding.APIKey)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOllama, "", ""))
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderLocal, "", ""))
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, 384, settings.Embedding.Dimensions)
	assert.Empty(t, settings.Embedding.BaseURL)
}

func TestSettingsService_SetEmbeddingProvider_Errors(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	assert.ErrorIs(t, service.SetEmbeddingProvider("nope", "", ""), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.SetEmbeddingProvider(domain.AIProviderAnthropic, "", "k"), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.SetEmbeddingProvider(domain.AIProviderGemini, "", ""), domain.ErrInvalidInput)
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	require.NoError(t, service.SetLLMProvider(domain.AIProviderDeepSeek, "", "sk-ds"))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderDeepSeek, settings.LLM.Provider)
	assert.Equal(t, "deepseek-chat", settings.LLM.Model)
	assert.Empty(t, settings.LLM.BaseURL)

	require.NoError(t, service.SetLLMProvider(domain.AIProviderOllama, "mistral", ""))
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, "mistral", settings.LLM.Model)
	assert.Equal(t, "http://localhost:11434", settings.LLM.BaseURL)

	assert.ErrorIs(t, service.SetLLMProvider(domain.AIProviderLocal, "", ""), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.SetLLMProvider(domain.AIProviderOpenAI, "", ""), domain.ErrInvalidInput)
}

func TestSettingsService_Validate(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)
	require.NoError(t, service.Validate())

	require.NoError(t, store.Set("chunker.chunk_overlap", 1000))
	assert.ErrorIs(t, service.Validate(), domain.ErrInvalidConfiguration)
}

func TestSettingsService_ValidateProviders(t *testing.T) {
	validator := &mockAIValidator{llmErr: errors.New("unreachable")}
	service := NewSettingsService(memory.NewConfigStore(), validator)

	require.NoError(t, service.ValidateEmbeddingConfig())
	require.NotNil(t, validator.embedSeen)
	assert.Equal(t, domain.AIProviderLocal, validator.embedSeen.Provider)

	assert.EqualError(t, service.ValidateLLMConfig(), "unreachable")
	assert.Equal(t, domain.AIProviderOllama, validator.llmSeen.Provider)

	// Without a validator both checks are skipped.
	bare := NewSettingsService(memory.NewConfigStore(), nil)
	assert.NoError(t, bare.ValidateEmbeddingConfig())
	assert.NoError(t, bare.ValidateLLMConfig())
}

func TestSettingsService_Defaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)
	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
	assert.Equal(t, ":memory:", service.ConfigPath())
}
