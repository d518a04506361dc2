package types

// EmbeddingVector is a fixed-dimension vector tagged with the model that produced it.
// Two vectors are only comparable when Model and dimension match.
type EmbeddingVector struct {
	Model  string    `json:"model"`
	Values []float64 `json:"values"`
}

// Dim returns the vector dimension.
func (v EmbeddingVector) Dim() int {
	return len(v.Values)
}

// Clone returns a deep copy so callers cannot mutate shared cache entries.
func (v EmbeddingVector) Clone() EmbeddingVector {
	values := make([]float64, len(v.Values))
	copy(values, v.Values)
	return EmbeddingVector{Model: v.Model, Values: values}
}

// MatchScore is a similarity score in [0, 1].
type MatchScore float64
