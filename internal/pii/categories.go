package pii

import (
	"regexp"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Pattern is one matcher of a category.
type Pattern struct {
	Regexp *regexp.Regexp
	// Group selects the submatch that is masked; 0 masks the whole match.
	Group int
	// Validate inspects the masked span and returns its confidence. A false result discards the match.
	// When nil every match is accepted with Confidence.
	Validate   func(match string) (float64, bool)
	Confidence float64
}

// Category is a named set of patterns sharing one placeholder token.
type Category struct {
	Name        types.PIICategory
	Placeholder string
	Patterns    []Pattern
}

// Placeholder tokens contain no digits and no '@', so no default pattern can match them.
const (
	PlaceholderEmail = "[MASKED_EMAIL]"
	PlaceholderPhone = "[MASKED_PHONE]"
	PlaceholderCPF   = "[MASKED_CPF]"
	PlaceholderRG    = "[MASKED_RG]"
)

var (
	emailRe        = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}\b`)
	cpfFormattedRe = regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`)
	cpfBareRe      = regexp.MustCompile(`\b\d{11}\b`)
	rgFormattedRe  = regexp.MustCompile(`\b\d{1,2}\.\d{3}\.\d{3}-[\dXx]\b`)
	rgLabelledRe   = regexp.MustCompile(`(?i)\bRG\s*(?:n[º°o]\.?\s*)?[:.\-]?\s*(\d{5,10}(?:-?[\dXx])?)\b`)
	phoneRe        = regexp.MustCompile(`(?:\+55[\s.\-]?)?(?:\(\d{2}\)[\s.\-]?|\b\d{2}[\s.\-]?)9?\d{4}[\s.\-]?\d{4}\b`)
)

// DefaultCategories returns the Brazilian registry in priority order:
// email, national IDs (CPF, RG), then the generic phone digit sequences.
func DefaultCategories() []Category {
	return []Category{
		EmailCategory(),
		CPFCategory(),
		RGCategory(),
		PhoneCategory(),
	}
}

// EmailCategory matches e-mail addresses.
func EmailCategory() Category {
	return Category{
		Name:        types.PIIEmail,
		Placeholder: PlaceholderEmail,
		Patterns:    []Pattern{{Regexp: emailRe, Confidence: 0.99}},
	}
}

// CPFCategory matches Cadastro de Pessoas Físicas numbers. Bare eleven-digit runs
// are only accepted when their check digits validate.
func CPFCategory() Category {
	return Category{
		Name:        types.PIICPF,
		Placeholder: PlaceholderCPF,
		Patterns: []Pattern{
			{
				Regexp: cpfFormattedRe,
				Validate: func(match string) (float64, bool) {
					if ValidCPF(match) {
						return 0.95, true
					}
					return 0.6, true
				},
			},
			{
				Regexp: cpfBareRe,
				Validate: func(match string) (float64, bool) {
					if ValidCPF(match) {
						return 0.85, true
					}
					return 0, false
				},
			},
		},
	}
}

// RGCategory matches Registro Geral numbers, either formatted or preceded by an "RG" label.
func RGCategory() Category {
	return Category{
		Name:        types.PIIRG,
		Placeholder: PlaceholderRG,
		Patterns: []Pattern{
			{Regexp: rgFormattedRe, Confidence: 0.8},
			{Regexp: rgLabelledRe, Group: 1, Confidence: 0.9},
		},
	}
}

// PhoneCategory matches Brazilian landline and mobile numbers.
func PhoneCategory() Category {
	return Category{
		Name:        types.PIIPhone,
		Placeholder: PlaceholderPhone,
		Patterns:    []Pattern{{Regexp: phoneRe, Confidence: 0.75}},
	}
}

// ValidCPF checks the two CPF check digits. Formatting characters are ignored.
func ValidCPF(s string) bool {
	digits := make([]int, 0, 11)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) != 11 {
		return false
	}

	allSame := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	return cpfCheckDigit(digits[:9]) == digits[9] && cpfCheckDigit(digits[:10]) == digits[10]
}

func cpfCheckDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	r := (sum * 10) % 11
	if r == 10 {
		return 0
	}
	return r
}
