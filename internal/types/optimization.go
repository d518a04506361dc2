package types

// OptimizationOptions are per-request overrides of the configured defaults.
// Zero values mean "use the configured default".
type OptimizationOptions struct {
	EmbeddingModel  string `json:"embedding_model,omitempty" validate:"max=128"`
	GenerationModel string `json:"generation_model,omitempty" validate:"max=128"`
	MaxRetries      int    `json:"max_retries,omitempty" validate:"gte=0,lte=10"`
	TimeoutMs       int    `json:"timeout_ms,omitempty" validate:"gte=0,lte=600000"`
}

// OptimizationResult is the all-or-nothing output of one optimization call.
// Score is serialized as match_score, a float in [0, 1].
type OptimizationResult struct {
	OptimizedText       MaskedText `json:"optimized_text"`
	Score               MatchScore `json:"match_score"`
	SimilarityScore     MatchScore `json:"similarity_score"`
	ModelScore          MatchScore `json:"model_score"`
	Suggestions         []string   `json:"suggestions"`
	Keywords            []string   `json:"keywords"`
	AttemptCount        int        `json:"attempt_count"`
	ScoreClamped        bool       `json:"score_clamped,omitempty"`
	DegenerateEmbedding bool       `json:"degenerate_embedding,omitempty"`
}
