package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIProvider_IsValid(t *testing.T) {
	for _, p := range append(AllEmbeddingProviders(), AllLLMProviders()...) {
		assert.True(t, p.IsValid(), p)
	}
	assert.False(t, AIProvider("").IsValid())
	assert.False(t, AIProvider("cohere").IsValid())
}

func TestAIProvider_Capabilities(t *testing.T) {
	assert.True(t, AIProviderLocal.SupportsEmbeddings())
	assert.False(t, AIProviderLocal.SupportsLLM())
	assert.False(t, AIProviderAnthropic.SupportsEmbeddings())
	assert.True(t, AIProviderDeepSeek.SupportsLLM())
	assert.True(t, AIProviderGemini.SupportsEmbeddings())
	assert.True(t, AIProviderGemini.RequiresAPIKey())
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.True(t, AIProviderOllama.IsLocal())
}

func TestAIProvider_Description(t *testing.T) {
	assert.Equal(t, "DeepSeek (cloud)", AIProviderDeepSeek.Description())
	assert.Equal(t, unknownDescription, AIProvider("x").Description())
}

// TestDefaultAppSettings_Valid tests that defaults pass validation
func TestDefaultAppSettings_Valid(t *testing.T) {
	s := DefaultAppSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, 1000, s.Chunker.ChunkSize)
	assert.Equal(t, 200, s.Chunker.ChunkOverlap)
	assert.Equal(t, 100, s.RAG.MaxK)
	assert.Equal(t, 0.0, s.RAG.SimilarityThreshold)
	assert.Equal(t, 3, s.Retry.MaxAttempts)
	assert.Equal(t, int64(35<<20), s.MaxFileBytes)
}

func TestAppSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppSettings)
	}{
		{"zero chunk size", func(s *AppSettings) { s.Chunker.ChunkSize = 0 }},
		{"overlap equals size", func(s *AppSettings) { s.Chunker.ChunkOverlap = s.Chunker.ChunkSize }},
		{"negative overlap", func(s *AppSettings) { s.Chunker.ChunkOverlap = -1 }},
		{"unknown strategy", func(s *AppSettings) { s.Chunker.Strategy = "semantic" }},
		{"llm as embedder", func(s *AppSettings) { s.Embedding.Provider = AIProviderAnthropic }},
		{"missing api key", func(s *AppSettings) { s.LLM.Provider = AIProviderOpenAI }},
		{"unknown backend", func(s *AppSettings) { s.VectorStore.Backend = "faiss" }},
		{"remote without url", func(s *AppSettings) { s.VectorStore.Backend = VectorBackendQdrant }},
		{"threshold out of range", func(s *AppSettings) { s.RAG.SimilarityThreshold = 1.5 }},
		{"max k below default", func(s *AppSettings) { s.RAG.MaxK = 1 }},
		{"zero retries", func(s *AppSettings) { s.Retry.MaxAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultAppSettings()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidConfiguration)
		})
	}
}

func TestEmbeddingSettings_EffectiveDimensions(t *testing.T) {
	assert.Equal(t, 1536, EmbeddingSettings{Model: "text-embedding-3-small"}.EffectiveDimensions())
	assert.Equal(t, 256, EmbeddingSettings{Model: "text-embedding-3-small", Dimensions: 256}.EffectiveDimensions())
	assert.Equal(t, 0, EmbeddingSettings{Model: "mystery"}.EffectiveDimensions())
}

func TestVectorBackend(t *testing.T) {
	assert.True(t, VectorBackendChroma.IsRemote())
	assert.False(t, VectorBackendSQLite.IsRemote())
	assert.False(t, VectorBackend("x").IsValid())
}
