package similarity

import (
	"fmt"

	"github.com/jonathan/resume-optimizer/internal/apperr"
)

// IncompatibleEmbeddingsError is returned when two vectors come from different models
// or have different dimensions. It signals a caller bug and is never retried.
type IncompatibleEmbeddingsError struct {
	ModelA, ModelB string
	DimA, DimB     int
}

func (e *IncompatibleEmbeddingsError) Error() string {
	return fmt.Sprintf("incompatible embeddings: %s[%d] vs %s[%d]", e.ModelA, e.DimA, e.ModelB, e.DimB)
}

// Kind returns apperr.KindIncompatibleEmbeddings.
func (e *IncompatibleEmbeddingsError) Kind() apperr.Kind {
	return apperr.KindIncompatibleEmbeddings
}
