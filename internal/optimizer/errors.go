package optimizer

import (
	"fmt"
	"time"

	"github.com/jonathan/resume-optimizer/internal/apperr"
)

// OptimizationTimeoutError means the overall wall-clock budget expired. Intermediate
// results computed before expiry are discarded.
type OptimizationTimeoutError struct {
	Budget time.Duration
	Stage  string
	Cause  error
}

func (e *OptimizationTimeoutError) Error() string {
	return fmt.Sprintf("optimization exceeded its %s budget during %s", e.Budget, e.Stage)
}

func (e *OptimizationTimeoutError) Unwrap() error {
	return e.Cause
}

func (e *OptimizationTimeoutError) Kind() apperr.Kind {
	return apperr.KindOptimizationTimeout
}
