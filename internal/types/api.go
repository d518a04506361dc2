package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// OptimizeRequest is the body of POST /v1/optimize.
type OptimizeRequest struct {
	ResumeText string              `json:"resume_text" validate:"required"`
	JobText    string              `json:"job_text" validate:"required"`
	JobTitle   string              `json:"job_title,omitempty" validate:"max=200"`
	Company    string              `json:"company,omitempty" validate:"max=200"`
	Options    OptimizationOptions `json:"options"`
}

// Resume returns the résumé part of the request.
func (r *OptimizeRequest) Resume() ResumeText {
	return ResumeText{Text: r.ResumeText}
}

// Job returns the job part of the request.
func (r *OptimizeRequest) Job() JobText {
	return JobText{Text: r.JobText, Title: r.JobTitle, Company: r.Company}
}

// Validate validates the OptimizeRequest using the validator.
func (r *OptimizeRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// OptimizeResponse is returned by POST /v1/optimize. ID is empty when persistence is off.
type OptimizeResponse struct {
	ID        string              `json:"id,omitempty"`
	RequestID string              `json:"request_id"`
	Result    *OptimizationResult `json:"result"`
	ResumePII map[PIICategory]int `json:"resume_pii"`
	JobPII    map[PIICategory]int `json:"job_pii"`
}

// ScanRequest is the body of POST /v1/scan.
type ScanRequest struct {
	Text string `json:"text" validate:"required"`
}

// Validate validates the ScanRequest using the validator.
func (r *ScanRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ScanResponse carries the masked text and the finding spans, never the matched values.
type ScanResponse struct {
	MaskedText MaskedText          `json:"masked_text"`
	Findings   []PIIFinding        `json:"findings"`
	Summary    map[PIICategory]int `json:"summary"`
}

// StoredOptimization is returned by GET /v1/optimizations/{id}.
type StoredOptimization struct {
	ID              string              `json:"id"`
	RequestID       string              `json:"request_id"`
	MaskedResume    MaskedText          `json:"masked_resume"`
	Result          OptimizationResult  `json:"result"`
	ResumePII       map[PIICategory]int `json:"resume_pii"`
	JobPII          map[PIICategory]int `json:"job_pii"`
	EmbeddingModel  string              `json:"embedding_model"`
	GenerationModel string              `json:"generation_model"`
	DurationMs      int64               `json:"duration_ms"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ErrorBody is the JSON error envelope of the HTTP API.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the error kind and a message safe to show to a user.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
