// Package apierror maps provider HTTP responses and transport failures onto
// the domain provider error taxonomy.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// maxMessageLen bounds error bodies copied into messages.
const maxMessageLen = 300

// KindForStatus returns the error kind for an HTTP status code.
// The code is the provider's machine-readable error code, if any.
func KindForStatus(status int, code string) error {
	switch code {
	case "insufficient_quota", "billing_hard_limit_reached":
		return domain.ErrQuotaExceeded
	case "rate_limit_exceeded", "rate_limit_error", "RESOURCE_EXHAUSTED":
		return domain.ErrRateLimited
	case "invalid_api_key", "authentication_error", "permission_error":
		return domain.ErrAuthentication
	}

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrAuthentication
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return domain.ErrTimeout
	case status >= 400 && status < 500:
		return domain.ErrInvalidRequest
	default:
		return domain.ErrProviderUnavailable
	}
}

// errorBody covers the error envelopes of OpenAI, Anthropic, Ollama and Gemini.
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

type errorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
	Status  string `json:"status"`
}

// FromResponse builds a provider error from a non-2xx response.
// op is domain.ErrEmbeddingProvider or domain.ErrLLMProvider.
func FromResponse(op error, provider string, resp *http.Response, body []byte) error {
	message, code := parseBody(body)
	if message == "" {
		message = fmt.Sprintf("status %d", resp.StatusCode)
	} else {
		message = fmt.Sprintf("status %d: %s", resp.StatusCode, message)
	}
	return &domain.ProviderError{
		Op:         op,
		Kind:       KindForStatus(resp.StatusCode, code),
		Provider:   provider,
		Message:    message,
		RetryAfter: RetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

// FromTransport classifies a failure to complete the HTTP exchange.
func FromTransport(op error, provider string, err error) error {
	kind := domain.ErrProviderUnavailable
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.ErrTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = domain.ErrTimeout
	}
	return &domain.ProviderError{
		Op:       op,
		Kind:     kind,
		Provider: provider,
		Message:  err.Error(),
		Err:      err,
	}
}

// FromGenAI classifies an error returned by the Gemini SDK.
func FromGenAI(op error, provider string, err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return FromTransport(op, provider, err)
	}
	message := apiErr.Message
	if message == "" {
		message = fmt.Sprintf("status %d", apiErr.Code)
	}
	return &domain.ProviderError{
		Op:       op,
		Kind:     KindForStatus(apiErr.Code, apiErr.Status),
		Provider: provider,
		Message:  truncate(message),
		Err:      err,
	}
}

// Malformed reports a response that could not be decoded or was incomplete.
func Malformed(op error, provider string, format string, args ...any) error {
	return &domain.ProviderError{
		Op:       op,
		Kind:     domain.ErrProviderUnavailable,
		Provider: provider,
		Message:  "malformed response: " + fmt.Sprintf(format, args...),
	}
}

// Invalid reports a request rejected before it was sent, such as a missing API key.
func Invalid(op error, provider string, kind error, message string) error {
	return &domain.ProviderError{Op: op, Kind: kind, Provider: provider, Message: message}
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
func RetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(header, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(header); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func parseBody(body []byte) (message, code string) {
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var obj errorObject
		if err := json.Unmarshal(envelope.Error, &obj); err == nil {
			code = obj.Type
			if s, ok := obj.Code.(string); ok && s != "" {
				code = s
			}
			if obj.Status != "" {
				code = obj.Status
			}
			return truncate(obj.Message), code
		}
		var text string
		if err := json.Unmarshal(envelope.Error, &text); err == nil {
			return truncate(text), ""
		}
	}
	return truncate(strings.TrimSpace(string(body))), ""
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen] + "..."
}
