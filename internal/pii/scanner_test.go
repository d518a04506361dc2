package pii

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"testing"

	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_Categories(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		category    types.PIICategory
		placeholder string
		secret      string
	}{
		{
			name:        "email",
			text:        "contato: joao@example.com",
			category:    types.PIIEmail,
			placeholder: PlaceholderEmail,
			secret:      "joao@example.com",
		},
		{
			name:        "formatted cpf",
			text:        "CPF 529.982.247-25 válido",
			category:    types.PIICPF,
			placeholder: PlaceholderCPF,
			secret:      "529.982.247-25",
		},
		{
			name:        "bare cpf with valid check digits",
			text:        "documento 52998224725 anexado",
			category:    types.PIICPF,
			placeholder: PlaceholderCPF,
			secret:      "52998224725",
		},
		{
			name:        "formatted rg",
			text:        "RG 12.345.678-9 SSP/SP",
			category:    types.PIIRG,
			placeholder: PlaceholderRG,
			secret:      "12.345.678-9",
		},
		{
			name:        "labelled rg",
			text:        "RG: 123456789",
			category:    types.PIIRG,
			placeholder: PlaceholderRG,
			secret:      "123456789",
		},
		{
			name:        "mobile phone with area code",
			text:        "Telefone: (11) 98765-4321",
			category:    types.PIIPhone,
			placeholder: PlaceholderPhone,
			secret:      "(11) 98765-4321",
		},
		{
			name:        "phone with country code",
			text:        "WhatsApp +55 21 3456-7890",
			category:    types.PIIPhone,
			placeholder: PlaceholderPhone,
			secret:      "+55 21 3456-7890",
		},
	}

	scanner := NewScanner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masked, findings := scanner.Scan(tt.text)

			require.Len(t, findings, 1)
			assert.Equal(t, tt.category, findings[0].Category)
			assert.Equal(t, tt.secret, tt.text[findings[0].Start:findings[0].End])
			assert.Contains(t, string(masked), tt.placeholder)
			assert.NotContains(t, string(masked), tt.secret)
		})
	}
}

func TestScan_NoPIIReturnsInputUnchanged(t *testing.T) {
	inputs := []string{
		"",
		"Engenheiro de software com 8 anos de experiência em Go e Kubernetes.",
		"Formado em 2015, pós-graduação em 2019.",
		"CEP 01310-100, São Paulo",
	}

	scanner := NewScanner()
	for _, in := range inputs {
		masked, findings := scanner.Scan(in)
		assert.Equal(t, in, string(masked))
		assert.NotNil(t, findings)
		assert.Empty(t, findings)
	}
}

func TestScan_BareElevenDigitsWithoutValidChecksumIsIgnored(t *testing.T) {
	masked, findings := NewScanner().Scan("pedido 12345678901")

	assert.Empty(t, findings)
	assert.Equal(t, "pedido 12345678901", string(masked))
}

func TestScan_Idempotent(t *testing.T) {
	inputs := []string{
		"contato: joao@example.com, (11) 98765-4321",
		"CPF 529.982.247-25 / RG 12.345.678-9 / maria.silva+cv@empresa.com.br",
		"Tel 11 3456-7890 e celular 11987654321",
		"RG nº 98765432-X emitido em 2010",
		"email:joao@example.com;cpf:529.982.247-25",
		"\xff\xfe bytes inválidos joao@example.com",
	}

	scanner := NewScanner()
	for _, in := range inputs {
		masked, first := scanner.Scan(in)
		require.NotEmpty(t, first, in)

		again, second := scanner.Scan(string(masked))
		assert.Empty(t, second, "rescan of %q", masked)
		assert.Equal(t, masked, again)
	}
}

func TestScan_PlaceholderCompletingAnotherMatchIsMasked(t *testing.T) {
	masked, findings := NewScanner().Scan("x@y.RG11987654321")

	assert.Equal(t, PlaceholderEmail+PlaceholderRG, string(masked))
	require.Len(t, findings, 2)
	assert.Equal(t, types.PIIEmail, findings[0].Category)
	assert.Equal(t, 0, findings[0].Start)
	assert.Equal(t, 6, findings[0].End)
	assert.Equal(t, types.PIIRG, findings[1].Category)
	assert.Equal(t, 6, findings[1].Start)
	assert.Equal(t, 17, findings[1].End)
}

func TestScan_IdempotentOnGeneratedText(t *testing.T) {
	fragments := []string{
		"joao@example.com", "x@y.", ".RG", "RG", "RG: ", "RG 12.345.678-9", "123456789",
		"529.982.247-25", "52998224725", "(11) 98765-4321", "+55 11 98765-4321", "3456-7890",
		"@", ".", "-", "[", "]", "_", "a", "br", "9", "11", "nº ", "cv", " ", "\n",
	}
	rng := rand.New(rand.NewPCG(7, 11))
	scanner := NewScanner()

	for i := 0; i < 2000; i++ {
		var sb strings.Builder
		for n := 1 + rng.IntN(8); n > 0; n-- {
			sb.WriteString(fragments[rng.IntN(len(fragments))])
		}
		in := sb.String()

		masked, findings := scanner.Scan(in)
		for j, f := range findings {
			require.True(t, f.Start >= 0 && f.End <= len(in) && f.Start < f.End, "span of %q", in)
			if j > 0 {
				require.LessOrEqual(t, findings[j-1].End, f.Start, "order of %q", in)
			}
		}

		again, second := scanner.Scan(string(masked))
		require.Empty(t, second, "rescan of %q from %q", masked, in)
		require.Equal(t, masked, again)
		require.False(t, scanner.ContainsPII(string(masked)), in)
	}
}

func TestScan_CategoryPriorityAvoidsDoubleMasking(t *testing.T) {
	// A valid bare CPF is also a plausible phone number; the national ID wins.
	masked, findings := NewScanner().Scan("52998224725")

	require.Len(t, findings, 1)
	assert.Equal(t, types.PIICPF, findings[0].Category)
	assert.Equal(t, PlaceholderCPF, string(masked))
}

func TestScan_FindingsOrderedByOffset(t *testing.T) {
	text := "(11) 98765-4321 joao@example.com 529.982.247-25"
	_, findings := NewScanner().Scan(text)

	require.Len(t, findings, 3)
	assert.Equal(t, types.PIIPhone, findings[0].Category)
	assert.Equal(t, types.PIIEmail, findings[1].Category)
	assert.Equal(t, types.PIICPF, findings[2].Category)
	for i := 1; i < len(findings); i++ {
		assert.Less(t, findings[i-1].Start, findings[i].Start)
	}
}

func TestScan_Deterministic(t *testing.T) {
	text := "joao@example.com (11) 98765-4321 RG: 123456789"
	scanner := NewScanner()

	m1, f1 := scanner.Scan(text)
	m2, f2 := scanner.Scan(text)

	assert.Equal(t, m1, m2)
	assert.Equal(t, f1, f2)
}

func TestScan_CustomCategory(t *testing.T) {
	passport := Category{
		Name:        types.PIICategory("passport"),
		Placeholder: "[MASKED_PASSPORT]",
		Patterns:    []Pattern{{Regexp: regexp.MustCompile(`\b[A-Z]{2}\d{6}\b`), Confidence: 0.7}},
	}
	scanner := NewScanner(append([]Category{passport}, DefaultCategories()...)...)

	masked, findings := scanner.Scan("passaporte FZ123456")

	require.Len(t, findings, 1)
	assert.Equal(t, types.PIICategory("passport"), findings[0].Category)
	assert.Equal(t, "passaporte [MASKED_PASSPORT]", string(masked))
	assert.Equal(t, types.PIICategory("passport"), scanner.Categories()[0])
}

func TestScan_FindingsNeverCarryContent(t *testing.T) {
	_, findings := NewScanner().Scan("joao@example.com")
	require.Len(t, findings, 1)

	assert.Equal(t, types.PIIFinding{Category: types.PIIEmail, Start: 0, End: 16, Confidence: 0.99}, findings[0])
}

func TestSummary(t *testing.T) {
	_, findings := NewScanner().Scan("a@b.com c@d.com (11) 98765-4321")

	summary := Summary(findings)
	assert.Equal(t, 2, summary[types.PIIEmail])
	assert.Equal(t, 1, summary[types.PIIPhone])
	assert.Zero(t, summary[types.PIICPF])
}

func TestContainsPII(t *testing.T) {
	scanner := NewScanner()
	assert.True(t, scanner.ContainsPII("me escreva em ana@site.com"))
	assert.False(t, scanner.ContainsPII("nenhum dado pessoal aqui"))
	assert.False(t, scanner.ContainsPII(strings.Repeat(PlaceholderEmail, 3)))
}

func TestValidCPF(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"529.982.247-25", true},
		{"52998224725", true},
		{"529.982.247-26", false},
		{"111.111.111-11", false},
		{"1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidCPF(tt.in))
		})
	}
}
