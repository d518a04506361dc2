package observability

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/resume-optimizer/internal/types"
)

func TestPrintOptimization(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintOptimization(&types.OptimizeResponse{
		ID: "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		Result: &types.OptimizationResult{
			OptimizedText:   "Engenheira de software com foco em APIs Go.",
			Score:           0.9,
			SimilarityScore: 1,
			ModelScore:      0.8,
			Suggestions:     []string{"Quantifique resultados", "Cite Kubernetes"},
			Keywords:        []string{"go", "apis"},
			AttemptCount:    2,
			ScoreClamped:    true,
		},
		ResumePII: map[types.PIICategory]int{types.PIIEmail: 1, types.PIICPF: 1},
	})
	output := buf.String()

	assert.Contains(t, output, "MATCH")
	assert.Contains(t, output, "Match score:  0.90")
	assert.Contains(t, output, "(clamped)")
	assert.Contains(t, output, "Attempts:     2")
	assert.Contains(t, output, "cpf=1, email=1")
	assert.Contains(t, output, "• Quantifique resultados")
	assert.Contains(t, output, "go, apis")
	assert.Contains(t, output, "OPTIMIZED RÉSUMÉ")
	assert.Contains(t, output, "7c9e6679-7425-40de-944b-e07fc1f90ae7")
}

func TestPrintOptimization_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintOptimization(nil)
	p.PrintOptimization(&types.OptimizeResponse{})

	assert.Empty(t, buf.String())
}

func TestPrintScan(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	findings := make([]types.PIIFinding, 7)
	for i := range findings {
		findings[i] = types.PIIFinding{Category: types.PIIPhone, Start: i * 20, End: i*20 + 13, Confidence: 0.9}
	}
	p.PrintScan(&types.ScanResponse{
		MaskedText: "Tel [MASKED_PHONE]",
		Findings:   findings,
		Summary:    map[types.PIICategory]int{types.PIIPhone: 7},
	})
	output := buf.String()

	assert.Contains(t, output, "Findings: 7 (phone=7)")
	assert.Contains(t, output, "phone at 0-13 (0.90)")
	assert.Contains(t, output, "... and 2 more")
	assert.Contains(t, output, "Tel [MASKED_PHONE]")
}

func TestPrintScan_NoFindings(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintScan(&types.ScanResponse{MaskedText: "ok"})

	assert.Contains(t, buf.String(), "No personal data found")
}

func TestPrintBox_LinesHaveEqualWidth(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TÍTULO", "Experiência em integração contínua e observabilidade "+strings.Repeat("palavra ", 20)+
		"\n"+strings.Repeat("x", 130))

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), line)
	}
}

func TestWrap(t *testing.T) {
	assert.Equal(t, []string{"short"}, wrap("short", 10))
	assert.Equal(t, []string{"one two", "three"}, wrap("one two three", 8))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, wrap("abcdefghij", 4))
	assert.Equal(t, []string{""}, wrap("", 4))
}
