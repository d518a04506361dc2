package generation

import (
	"fmt"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/apperr"
)

// GenerationTimeoutError means the provider did not answer in time on the last attempt,
// or the caller's deadline expired.
type GenerationTimeoutError struct {
	Attempts int
	Cause    error
}

func (e *GenerationTimeoutError) Error() string {
	return fmt.Sprintf("generation timed out after %d attempt(s)", e.Attempts)
}

func (e *GenerationTimeoutError) Unwrap() error {
	return e.Cause
}

func (e *GenerationTimeoutError) Kind() apperr.Kind {
	return apperr.KindGenerationTimeout
}

// GenerationProviderError is a provider failure. Message never carries provider text.
type GenerationProviderError struct {
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

func (e *GenerationProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("generation provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("generation provider error: %s", e.Message)
}

func (e *GenerationProviderError) Unwrap() error {
	return e.Cause
}

func (e *GenerationProviderError) Kind() apperr.Kind {
	return apperr.KindGenerationProvider
}

// ValidationFailedError describes why a model answer was rejected. It is retried
// internally through the repair prompt and only escapes wrapped in GenerationError.
type ValidationFailedError struct {
	Problems []string
}

func (e *ValidationFailedError) Error() string {
	return "model output failed validation: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationFailedError) Kind() apperr.Kind {
	return apperr.KindValidationFailed
}

// GenerationError is raised when every attempt produced invalid output. LastRaw is the
// final answer, PII-masked and truncated, for diagnostics only; Error() never includes it.
type GenerationError struct {
	Attempts int
	LastRaw  string
	Problems []string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("model output still invalid after %d attempt(s)", e.Attempts)
}

func (e *GenerationError) Kind() apperr.Kind {
	return apperr.KindGenerationExhausted
}
