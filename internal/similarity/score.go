// Package similarity computes the bounded match score between two embedding vectors.
package similarity

import (
	"math"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Result is the outcome of Score.
type Result struct {
	Score types.MatchScore
	// Degenerate is set when either vector has zero norm; Score is then 0.
	Degenerate bool
	Cosine     float64
}

// Score returns the cosine similarity of a and b rescaled from [-1, 1] to [0, 1].
// The reduction runs once, left to right, so results are reproducible.
func Score(a, b types.EmbeddingVector) (Result, error) {
	if a.Model != b.Model || a.Dim() != b.Dim() {
		return Result{}, &IncompatibleEmbeddingsError{
			ModelA: a.Model, ModelB: b.Model,
			DimA: a.Dim(), DimB: b.Dim(),
		}
	}

	var dot, normA, normB float64
	for i := range a.Values {
		x, y := a.Values[i], b.Values[i]
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 || math.IsNaN(dot) || math.IsInf(dot, 0) {
		return Result{Score: 0, Degenerate: true}, nil
	}

	// sqrt(n*n) == n exactly, so a vector compared with itself scores exactly 1.
	denom := math.Sqrt(normA * normB)
	if math.IsInf(denom, 0) || denom == 0 {
		denom = math.Sqrt(normA) * math.Sqrt(normB)
	}
	cos := dot / denom
	// Floating point error can push |cos| marginally above 1.
	cos = math.Max(-1, math.Min(1, cos))

	return Result{Score: types.MatchScore((cos + 1) / 2), Cosine: cos}, nil
}

// Blend combines the embedding similarity with the model's own score.
// weight is the share of similarity and is clamped into [0, 1].
func Blend(similarity, model types.MatchScore, weight float64) types.MatchScore {
	weight = math.Max(0, math.Min(1, weight))
	blended := weight*float64(similarity) + (1-weight)*float64(model)
	return types.MatchScore(math.Max(0, math.Min(1, blended)))
}
