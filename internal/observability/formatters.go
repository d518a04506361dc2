// Package observability renders optimization and scan results as boxed, human-readable
// text for the command line.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/resume-optimizer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for text mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content. Long lines are wrapped on
// word boundaries.
//
//nolint:errcheck // writing to the terminal; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		for _, wrapped := range wrap(line, inner) {
			fmt.Fprintf(p.out, "│ %s │\n", pad(wrapped, inner))
		}
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad right-pads s with spaces to width runes. fmt's width counts bytes for accented text.
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func wrap(line string, width int) []string {
	if utf8.RuneCountInString(line) <= width {
		return []string{line}
	}
	var out []string
	var cur []rune
	for _, word := range strings.Fields(line) {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			out = append(out, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(cur) == 0:
			cur = append(cur, w...)
		case len(cur)+1+len(w) <= width:
			cur = append(append(cur, ' '), w...)
		default:
			out = append(out, string(cur))
			cur = append([]rune(nil), w...)
		}
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

// PrintOptimization outputs the score, suggestions, keywords and the rewritten résumé.
func (p *Printer) PrintOptimization(resp *types.OptimizeResponse) {
	if resp == nil || resp.Result == nil {
		return
	}
	r := resp.Result

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Match score:  %.2f\n", float64(r.Score)))
	sb.WriteString(fmt.Sprintf("Similarity:   %.2f\n", float64(r.SimilarityScore)))
	sb.WriteString(fmt.Sprintf("Model score:  %.2f", float64(r.ModelScore)))
	if r.ScoreClamped {
		sb.WriteString(" (clamped)")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Attempts:     %d\n", r.AttemptCount))
	if r.DegenerateEmbedding {
		sb.WriteString("Warning: an embedding had zero norm\n")
	}
	if resp.ID != "" {
		sb.WriteString(fmt.Sprintf("Stored as:    %s\n", resp.ID))
	}
	if pii := formatCounts(resp.ResumePII); pii != "" {
		sb.WriteString(fmt.Sprintf("Masked PII:   %s\n", pii))
	}
	p.printBox("MATCH", strings.TrimSuffix(sb.String(), "\n"))

	if len(r.Suggestions) > 0 {
		p.printBox("SUGGESTIONS", bulletList(r.Suggestions))
	}
	if len(r.Keywords) > 0 {
		p.printBox("KEYWORDS", strings.Join(r.Keywords, ", "))
	}
	p.printBox("OPTIMIZED RÉSUMÉ", string(r.OptimizedText))
}

// PrintScan outputs the finding counts and spans of a scan, then the masked text.
func (p *Printer) PrintScan(resp *types.ScanResponse) {
	if resp == nil {
		return
	}

	var sb strings.Builder
	if len(resp.Findings) == 0 {
		sb.WriteString("No personal data found")
	} else {
		sb.WriteString(fmt.Sprintf("Findings: %d (%s)\n\n", len(resp.Findings), formatCounts(resp.Summary)))
		count := min(len(resp.Findings), maxItemsToShow)
		for i := 0; i < count; i++ {
			f := resp.Findings[i]
			sb.WriteString(fmt.Sprintf("  • %s at %d-%d (%.2f)\n", f.Category, f.Start, f.End, f.Confidence))
		}
		if len(resp.Findings) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(resp.Findings)-maxItemsToShow))
		}
	}
	p.printBox("PII SCAN", strings.TrimSuffix(sb.String(), "\n"))
	p.printBox("MASKED TEXT", string(resp.MaskedText))
}

func bulletList(items []string) string {
	var sb strings.Builder
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString("• " + items[i] + "\n")
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(items)-maxItemsToShow))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// formatCounts renders category counts in a stable order, e.g. "cpf=1, email=2".
func formatCounts(counts map[types.PIICategory]int) string {
	keys := make([]string, 0, len(counts))
	for k, n := range counts {
		if n > 0 {
			keys = append(keys, string(k))
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[types.PIICategory(k)])
	}
	return strings.Join(parts, ", ")
}
