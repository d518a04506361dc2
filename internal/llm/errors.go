package llm

import (
	"errors"
	"fmt"
)

// ErrNoModel is returned when neither the request nor the config names a model.
var ErrNoModel = errors.New("no generation model configured")

// ProviderError is an error response from the generation provider. StatusCode is 0 when
// the request never produced a response. Message never carries provider payload text.
type ProviderError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("generation provider error (status %d): %s", e.StatusCode, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure is transient (rate limits and 5xx).
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
