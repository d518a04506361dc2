package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-optimizer/internal/optimizer"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// Optimization is a stored optimization. Texts are masked before they reach this type.
type Optimization struct {
	ID              uuid.UUID                 `json:"id"`
	RequestID       string                    `json:"request_id"`
	MaskedResume    types.MaskedText          `json:"masked_resume"`
	MaskedJob       types.MaskedText          `json:"masked_job"`
	Result          types.OptimizationResult  `json:"result"`
	ResumePII       map[types.PIICategory]int `json:"resume_pii"`
	JobPII          map[types.PIICategory]int `json:"job_pii"`
	EmbeddingModel  string                    `json:"embedding_model"`
	GenerationModel string                    `json:"generation_model"`
	DurationMs      int64                     `json:"duration_ms"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// OptimizationFromReport converts a finished report into a record ready to save.
func OptimizationFromReport(report *optimizer.Report) *Optimization {
	o := &Optimization{
		RequestID:       report.RequestID,
		MaskedResume:    report.MaskedResume,
		MaskedJob:       report.MaskedJob,
		ResumePII:       nonNilCounts(report.ResumePII),
		JobPII:          nonNilCounts(report.JobPII),
		EmbeddingModel:  report.EmbeddingModel,
		GenerationModel: report.GenerationModel,
		DurationMs:      report.Duration.Milliseconds(),
	}
	if report.Result != nil {
		o.Result = *report.Result
	}
	return o
}

func nonNilCounts(m map[types.PIICategory]int) map[types.PIICategory]int {
	if m == nil {
		return map[types.PIICategory]int{}
	}
	return m
}
