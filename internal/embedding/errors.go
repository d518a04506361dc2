package embedding

import (
	"fmt"

	"github.com/jonathan/resume-optimizer/internal/apperr"
)

// TimeoutError is returned when the provider did not answer within the call timeout.
type TimeoutError struct {
	Attempts int
	Cause    error
}

func (e *TimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("embedding timeout after %d attempt(s): %v", e.Attempts, e.Cause)
	}
	return fmt.Sprintf("embedding timeout after %d attempt(s)", e.Attempts)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Kind returns apperr.KindEmbeddingTimeout.
func (e *TimeoutError) Kind() apperr.Kind {
	return apperr.KindEmbeddingTimeout
}

// ProviderError is an error response from the embedding provider.
// StatusCode is 0 when the request never produced an HTTP response.
type ProviderError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("embedding provider error (status %d): %s", e.StatusCode, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Kind returns apperr.KindEmbeddingProvider.
func (e *ProviderError) Kind() apperr.Kind {
	return apperr.KindEmbeddingProvider
}

// Retryable reports whether the failure is transient: 5xx, 429 or a transport failure.
// Other 4xx responses indicate a bad request and are never retried.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// FormatError is returned when the provider answered with an unexpected shape.
type FormatError struct {
	Message string
	Cause   error
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("embedding format error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("embedding format error: %s", e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

// Kind returns apperr.KindEmbeddingFormat.
func (e *FormatError) Kind() apperr.Kind {
	return apperr.KindEmbeddingFormat
}
