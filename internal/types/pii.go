package types

// PIICategory identifies a kind of personal data.
type PIICategory string

// Documented categories. The scanner registry may be extended with others.
const (
	PIIEmail PIICategory = "email"
	PIIPhone PIICategory = "phone"
	PIICPF   PIICategory = "cpf"
	PIIRG    PIICategory = "rg"
)

// PIIFinding is one detected PII span. It carries byte offsets into the scanned text
// and never the matched content, so it is safe to log and persist.
type PIIFinding struct {
	Category   PIICategory `json:"category"`
	Start      int         `json:"start"`
	End        int         `json:"end"`
	Confidence float64     `json:"confidence"`
}

// Len returns the span length in bytes.
func (f PIIFinding) Len() int {
	return f.End - f.Start
}

// Overlaps reports whether the half-open spans [Start, End) of f and other intersect.
func (f PIIFinding) Overlaps(other PIIFinding) bool {
	return f.Start < other.End && other.Start < f.End
}
