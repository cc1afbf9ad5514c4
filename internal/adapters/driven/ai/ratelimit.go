package ai

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure decorators implement the interfaces.
var (
	_ driven.EmbeddingService = (*RateLimitedEmbedding)(nil)
	_ driven.LLMService       = (*RateLimitedLLM)(nil)
)

// burstFor allows short bursts of roughly one second's worth of requests.
func burstFor(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}

// RateLimitedEmbedding waits on a token bucket before each outbound embedding call.
type RateLimitedEmbedding struct {
	driven.EmbeddingService
	limiter *rate.Limiter
}

// NewRateLimitedEmbedding wraps svc with a limiter of rps requests per second.
func NewRateLimitedEmbedding(svc driven.EmbeddingService, rps float64) *RateLimitedEmbedding {
	return &RateLimitedEmbedding{
		EmbeddingService: svc,
		limiter:          rate.NewLimiter(rate.Limit(rps), burstFor(rps)),
	}
}

// EmbedDocuments waits for a token then delegates.
func (r *RateLimitedEmbedding) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.EmbeddingService.EmbedDocuments(ctx, texts)
}

// EmbedQuery waits for a token then delegates.
func (r *RateLimitedEmbedding) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.EmbeddingService.EmbedQuery(ctx, text)
}

// RateLimitedLLM waits on a token bucket before each generation call.
type RateLimitedLLM struct {
	driven.LLMService
	limiter *rate.Limiter
}

// NewRateLimitedLLM wraps svc with a limiter of rps requests per second.
func NewRateLimitedLLM(svc driven.LLMService, rps float64) *RateLimitedLLM {
	return &RateLimitedLLM{
		LLMService: svc,
		limiter:    rate.NewLimiter(rate.Limit(rps), burstFor(rps)),
	}
}

// Generate waits for a token then delegates.
func (r *RateLimitedLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.LLMService.Generate(ctx, prompt, opts)
}
