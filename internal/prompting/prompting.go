// Package prompting assembles generation prompts from masked résumé and job text.
// Assembly is pure: fixed instruction blocks come from the embedded templates and user
// content is only ever placed inside delimited sections.
package prompting

import (
	"strconv"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/prompts"
	"github.com/jonathan/resume-optimizer/internal/schemas"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// Section delimiters around user-supplied content.
const (
	ResumeBegin = "<<<CURRICULO>>>"
	ResumeEnd   = "<<<FIM_CURRICULO>>>"
	JobBegin    = "<<<VAGA>>>"
	JobEnd      = "<<<FIM_VAGA>>>"
)

const (
	maxProblems   = 10
	maxProblemLen = 240
)

// Payload is a prompt ready to be sent to a generation provider.
type Payload struct {
	System string // Fixed instructions, never containing user content
	User   string // Delimited masked content
	Score  types.MatchScore
	Repair bool
}

var neutralizer = strings.NewReplacer("<<<", "‹‹‹", ">>>", "›››")

// Neutralize rewrites delimiter tokens so user content cannot open or close a section.
func Neutralize(s string) string {
	return neutralizer.Replace(s)
}

// Build assembles the optimization prompt.
func Build(resume, job types.MaskedText, score types.MatchScore) Payload {
	return Payload{
		System: systemPrompt(),
		User: prompts.Format(prompts.MustGet(prompts.OptimizationFile, "user"), map[string]string{
			"Score":       strconv.FormatFloat(float64(score), 'f', 4, 64),
			"ResumeBegin": ResumeBegin,
			"ResumeEnd":   ResumeEnd,
			"JobBegin":    JobBegin,
			"JobEnd":      JobEnd,
			"Resume":      Neutralize(resume.String()),
			"Job":         Neutralize(job.String()),
		}),
		Score: score,
	}
}

// BuildRepair derives the repair variant of base: the same sections followed by a
// notice that the previous answer was malformed, the problems found and the schema.
// The previous raw answer itself is never included.
func BuildRepair(base Payload, problems []string) Payload {
	var list strings.Builder
	for i, p := range problems {
		if i == maxProblems {
			list.WriteString("- (demais problemas omitidos)\n")
			break
		}
		list.WriteString("- ")
		list.WriteString(Neutralize(clip(strings.TrimSpace(p), maxProblemLen)))
		list.WriteString("\n")
	}
	if len(problems) == 0 {
		list.WriteString("- resposta fora do formato\n")
	}

	notice := prompts.Format(prompts.MustGet(prompts.OptimizationFile, "repair"), map[string]string{
		"Problems": strings.TrimRight(list.String(), "\n"),
		"Schema":   schemas.MustGet(schemas.OptimizationOutput),
	})

	return Payload{
		System: base.System,
		User:   base.User + "\n\n" + notice,
		Score:  base.Score,
		Repair: true,
	}
}

func systemPrompt() string {
	get := func(key string) string { return prompts.MustGet(prompts.OptimizationFile, key) }

	isolation := prompts.Format(get("isolation"), map[string]string{
		"ResumeBegin": ResumeBegin,
		"ResumeEnd":   ResumeEnd,
		"JobBegin":    JobBegin,
		"JobEnd":      JobEnd,
	})
	contract := prompts.Format(get("output-contract"), map[string]string{
		"Schema": schemas.MustGet(schemas.OptimizationOutput),
	})

	return prompts.Format(get("system"), map[string]string{
		"Guardrails":     get("guardrails"),
		"Privacy":        get("privacy"),
		"Isolation":      isolation,
		"OutputContract": contract,
	})
}

func clip(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i] + "..."
		}
		count++
	}
	return s
}
