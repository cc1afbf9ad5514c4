package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid request input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration indicates unusable settings, such as chunk overlap >= chunk size.
	// Fatal at startup.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Extraction Errors.

	// ErrUnsupportedFormat indicates no extractor handles the file type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCorruptFile indicates the file could not be parsed.
	ErrCorruptFile = errors.New("corrupt file")

	// Provider Errors.

	// ErrEmbeddingProvider indicates the embedding provider failed.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrLLMProvider indicates the LLM provider failed.
	ErrLLMProvider = errors.New("LLM provider error")

	// ErrAuthentication indicates rejected or missing credentials. Not retried.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRateLimited indicates the provider rate limit was exceeded. Retried.
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExceeded indicates exhausted credit or billing quota. Not retried.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates the provider call timed out. Retried.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidRequest indicates the provider rejected the request. Not retried.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrProviderUnavailable indicates a network failure, 5xx or malformed response.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// Storage Errors.

	// ErrVectorStore indicates a vector store I/O or corruption failure.
	ErrVectorStore = errors.New("vector store error")

	// ErrDimensionMismatch indicates a vector whose length differs from the collection.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrModelMismatch indicates a collection built by a different embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// ProviderError is a structured failure from an embedding or LLM provider.
// errors.Is matches both Op (ErrEmbeddingProvider / ErrLLMProvider) and Kind.
type ProviderError struct {
	// Op is ErrEmbeddingProvider or ErrLLMProvider.
	Op error

	// Kind is the sub-kind, e.g. ErrRateLimited.
	Kind error

	// Provider is the provider identifier, e.g. "openai".
	Provider string

	// Message is a human-readable description.
	Message string

	// RetryAfter is the server-suggested delay, zero if none.
	RetryAfter time.Duration

	// Err is the underlying cause, if any.
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s: %s", e.Op, e.Provider, e.Kind, e.Message)
}

// Unwrap exposes Op, Kind and the cause to errors.Is.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Op, e.Kind}
	}
	return []error{e.Op, e.Kind, e.Err}
}

// IsRetryable reports whether err is a rate-limit or timeout failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

// RetryAfter returns the provider-suggested delay carried by err, if any.
func RetryAfter(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// Error kinds returned by ErrorKind.
const (
	KindInvalidInput         = "invalid_input"
	KindInvalidConfiguration = "invalid_configuration"
	KindNotFound             = "not_found"
	KindUnsupportedFormat    = "unsupported_format"
	KindCorruptFile          = "corrupt_file"
	KindAuthentication       = "authentication"
	KindRateLimited          = "rate_limited"
	KindQuotaExceeded        = "quota_exceeded"
	KindTimeout              = "timeout"
	KindInvalidRequest       = "invalid_request"
	KindProviderUnavailable  = "provider_unavailable"
	KindDimensionMismatch    = "dimension_mismatch"
	KindModelMismatch        = "model_mismatch"
	KindVectorStore          = "vector_store"
	KindInternal             = "internal"
)

// ErrorKind classifies err into a stable kind string for transport layers.
// The most specific kind wins.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidConfiguration):
		return KindInvalidConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrCorruptFile):
		return KindCorruptFile
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, ErrModelMismatch):
		return KindModelMismatch
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrEmbeddingProvider),
		errors.Is(err, ErrLLMProvider):
		return KindProviderUnavailable
	case errors.Is(err, ErrVectorStore):
		return KindVectorStore
	default:
		return KindInternal
	}
}
