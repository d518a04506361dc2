// Package pii detects and masks personal data before any text leaves the trust boundary.
package pii

import (
	"sort"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Scanner applies an ordered registry of categories to text. It is immutable and safe
// for concurrent use.
type Scanner struct {
	categories []Category
}

// NewScanner builds a scanner over the given categories, highest priority first.
// With no arguments the Brazilian default registry is used.
func NewScanner(categories ...Category) *Scanner {
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	cp := make([]Category, len(categories))
	copy(cp, categories)
	return &Scanner{categories: cp}
}

// Categories returns the registered category names in priority order.
func (s *Scanner) Categories() []types.PIICategory {
	names := make([]types.PIICategory, 0, len(s.categories))
	for _, c := range s.categories {
		names = append(names, c.Name)
	}
	return names
}

// Scan returns a masked copy of text and the findings, ordered by offset.
// Offsets refer to the input text. Scan never fails: any input is treated as plain text.
// Placeholders can complete a match with their neighbours (an e-mail ending right before
// a masked RG, for instance), so the masked text is re-scanned until nothing new matches.
func (s *Scanner) Scan(text string) (types.MaskedText, []types.PIIFinding) {
	findings := s.find(text)
	if len(findings) == 0 {
		return types.MaskedText(text), []types.PIIFinding{}
	}

	placeholders := make(map[types.PIICategory]string, len(s.categories))
	for _, c := range s.categories {
		placeholders[c.Name] = c.Placeholder
	}

	masked, segments := applyMask(text, findings, placeholders)
	for {
		merged, grew := absorb(findings, s.find(masked), segments)
		if !grew {
			break
		}
		findings = merged
		masked, segments = applyMask(text, findings, placeholders)
	}

	return types.MaskedText(masked), findings
}

// segment maps a run of masked text back to the input it replaced.
type segment struct {
	maskedStart, maskedEnd int
	origStart, origEnd     int
	placeholder            bool
}

func applyMask(text string, findings []types.PIIFinding, placeholders map[types.PIICategory]string) (string, []segment) {
	var sb strings.Builder
	sb.Grow(len(text))
	segments := make([]segment, 0, 2*len(findings)+1)

	last := 0
	literal := func(end int) {
		if end > last {
			start := sb.Len()
			sb.WriteString(text[last:end])
			segments = append(segments, segment{start, sb.Len(), last, end, false})
		}
	}
	for _, f := range findings {
		literal(f.Start)
		start := sb.Len()
		sb.WriteString(placeholders[f.Category])
		segments = append(segments, segment{start, sb.Len(), f.Start, f.End, true})
		last = f.End
	}
	literal(len(text))

	return sb.String(), segments
}

// absorb translates matches found in masked text to input offsets. A match touching a
// placeholder takes over that placeholder's whole span and replaces its finding. Matches
// that cover no unmasked input are ignored, so every round masks strictly more input.
func absorb(findings, extra []types.PIIFinding, segments []segment) ([]types.PIIFinding, bool) {
	var added []types.PIIFinding
	for _, e := range extra {
		mapped, ok := toInput(e, segments)
		if !ok || overlapsAny(mapped, added) {
			continue
		}
		added = append(added, mapped)
	}
	if len(added) == 0 {
		return findings, false
	}

	out := make([]types.PIIFinding, 0, len(findings)+len(added))
	for _, f := range findings {
		if !overlapsAny(f, added) {
			out = append(out, f)
		}
	}
	out = append(out, added...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out, true
}

func toInput(f types.PIIFinding, segments []segment) (types.PIIFinding, bool) {
	start, end := -1, -1
	literal := false
	for _, sg := range segments {
		if sg.maskedEnd <= f.Start || sg.maskedStart >= f.End {
			continue
		}
		if start < 0 {
			start = sg.origStart
			if !sg.placeholder {
				start += f.Start - sg.maskedStart
			}
		}
		if sg.placeholder {
			end = sg.origEnd
			continue
		}
		end = sg.origStart + min(f.End, sg.maskedEnd) - sg.maskedStart
		literal = true
	}
	if !literal {
		return types.PIIFinding{}, false
	}
	f.Start, f.End = start, end
	return f, true
}

// ContainsPII reports whether text has at least one finding.
func (s *Scanner) ContainsPII(text string) bool {
	return len(s.find(text)) > 0
}

// Mask is Scan without the findings.
func (s *Scanner) Mask(text string) types.MaskedText {
	masked, _ := s.Scan(text)
	return masked
}

func (s *Scanner) find(text string) []types.PIIFinding {
	var claimed []types.PIIFinding
	for _, category := range s.categories {
		for _, pattern := range category.Patterns {
			if pattern.Regexp == nil {
				continue
			}
			for _, idx := range pattern.Regexp.FindAllStringSubmatchIndex(text, -1) {
				g := pattern.Group
				if 2*g+1 >= len(idx) || idx[2*g] < 0 {
					continue
				}
				candidate := types.PIIFinding{
					Category:   category.Name,
					Start:      idx[2*g],
					End:        idx[2*g+1],
					Confidence: pattern.Confidence,
				}
				if candidate.Len() == 0 {
					continue
				}
				if pattern.Validate != nil {
					confidence, ok := pattern.Validate(text[candidate.Start:candidate.End])
					if !ok {
						continue
					}
					candidate.Confidence = confidence
				}
				if overlapsAny(candidate, claimed) {
					continue
				}
				claimed = append(claimed, candidate)
			}
		}
	}

	sort.Slice(claimed, func(i, j int) bool {
		return claimed[i].Start < claimed[j].Start
	})
	return claimed
}

func overlapsAny(f types.PIIFinding, claimed []types.PIIFinding) bool {
	for _, c := range claimed {
		if f.Overlaps(c) {
			return true
		}
	}
	return false
}

// Summary counts findings per category. This is the only view of findings
// that may reach the audit log.
func Summary(findings []types.PIIFinding) map[types.PIICategory]int {
	counts := make(map[types.PIICategory]int)
	for _, f := range findings {
		counts[f.Category]++
	}
	return counts
}
