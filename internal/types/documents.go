// Package types provides type definitions for structured data used throughout the resume-optimizer system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// ResumeText is the raw résumé text of one optimization request.
type ResumeText struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"` // Upload identifier, never parsed
}

// JobText is the job description a résumé is optimized against.
type JobText struct {
	Text    string `json:"text"`
	Title   string `json:"title,omitempty"`
	Company string `json:"company,omitempty"`
}

// MaskedText is text in which every detected PII span was replaced by a placeholder.
// Only the PII scanner creates values of this type from raw text.
type MaskedText string

// String returns the masked text.
func (m MaskedText) String() string {
	return string(m)
}
