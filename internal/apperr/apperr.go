// Package apperr defines the machine-readable error kinds surfaced by the optimization pipeline.
package apperr

import "errors"

// Kind is a stable, machine-readable error category.
type Kind string

// Error kinds exposed to callers of the pipeline.
const (
	KindInvalidInput           Kind = "invalid_input"
	KindEmbeddingTimeout       Kind = "embedding_timeout"
	KindEmbeddingProvider      Kind = "embedding_provider_error"
	KindEmbeddingFormat        Kind = "embedding_format_error"
	KindIncompatibleEmbeddings Kind = "incompatible_embeddings"
	KindGenerationTimeout      Kind = "generation_timeout"
	KindGenerationProvider     Kind = "generation_provider_error"
	KindValidationFailed       Kind = "optimization_validation_failed"
	KindGenerationExhausted    Kind = "optimization_generation_error"
	KindOptimizationTimeout    Kind = "optimization_timeout"
	KindInternal               Kind = "internal"
)

// Kinded is implemented by every typed error of the pipeline.
type Kinded interface {
	error
	Kind() Kind
}

// KindOf returns the kind of the first Kinded error in err's chain,
// or KindInternal when none is found.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// Transient reports whether a caller should present a generic "try again" message.
func Transient(kind Kind) bool {
	switch kind {
	case KindEmbeddingTimeout, KindEmbeddingProvider, KindGenerationTimeout,
		KindGenerationProvider, KindOptimizationTimeout:
		return true
	default:
		return false
	}
}

// Error is a generic kinded error for conditions that do not warrant their own type.
type Error struct {
	K       Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Kind returns the error kind.
func (e *Error) Kind() Kind {
	return e.K
}

// InvalidInput builds a precondition error that must never be retried.
func InvalidInput(message string) *Error {
	return &Error{K: KindInvalidInput, Message: message}
}
