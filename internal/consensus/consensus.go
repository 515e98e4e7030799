// Package consensus reconciles two independent structured extractions of
// the same document into one result with a confidence tier.
package consensus

import (
	"slices"
	"sort"
	"strings"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/schema"
	"github.com/sells-group/docextract/internal/textmatch"
)

// Compare reconciles a and b field by field. Fields are visited in schema
// order followed by any extra fields either source returned, sorted by
// name. Compare is deterministic and never mutates its inputs.
//
// A field is settled when both normalized values are equal. Otherwise it
// is a discrepancy and the value comes from the non-empty side, or from
// a when both are non-empty. The persisted value keeps the chosen
// source's original text with surrounding whitespace trimmed.
func Compare(s *schema.Schema, a, b *model.StructuredExtraction) *model.ConsensusResult {
	order := fieldOrder(s, a, b)
	res := &model.ConsensusResult{
		Consensus:     make(map[string]string, len(order)),
		Discrepancies: []string{},
		Confidence:    model.ConfidenceConsensus,
		FieldOrder:    order,
		Comparisons:   make([]model.FieldComparison, 0, len(order)),
	}

	for _, field := range order {
		rawA, rawB := rawValue(a, field), rawValue(b, field)
		normA, normB := textmatch.Normalize(rawA), textmatch.Normalize(rawB)
		agreed := normA == normB

		var value string
		fromA := true
		switch {
		case normA != "":
			value = strings.TrimSpace(rawA)
		case normB != "":
			value = strings.TrimSpace(rawB)
			fromA = false
		}
		res.Consensus[field] = value

		if words := chosenWords(a, b, field, fromA, value); words != "" {
			if res.Words == nil {
				res.Words = make(map[string]string)
			}
			res.Words[field] = words
		}

		res.Comparisons = append(res.Comparisons, model.FieldComparison{
			Field:      field,
			SourceA:    rawA,
			SourceB:    rawB,
			Similarity: textmatch.Ratio(normA, normB),
			Agreed:     agreed,
		})

		if agreed {
			continue
		}
		res.Discrepancies = append(res.Discrepancies, field)
		if s.IsCritical(field) {
			res.Confidence = res.Confidence.Max(model.ConfidenceReviewRequired)
		} else {
			res.Confidence = res.Confidence.Max(model.ConfidencePartial)
		}
	}
	return res
}

// Escalate records that verification cast doubt on field: the field joins
// the discrepancy set and the tier moves to REVIEW_REQUIRED. Escalation
// never lowers the tier. It reports whether anything changed.
func Escalate(r *model.ConsensusResult, field string) bool {
	changed := false
	if !r.HasDiscrepancy(field) {
		r.Discrepancies = append(r.Discrepancies, field)
		sortByOrder(r.Discrepancies, r.FieldOrder)
		changed = true
	}
	next := r.Confidence.Max(model.ConfidenceReviewRequired)
	if next != r.Confidence {
		r.Confidence = next
		changed = true
	}
	return changed
}

// ToExtractedFields projects r into its persisted field list. Order is the
// zero-based position in r.FieldOrder; a field needs review when it is a
// discrepancy, which includes every field escalated by verification.
func ToExtractedFields(r *model.ConsensusResult) []model.ExtractedField {
	out := make([]model.ExtractedField, 0, len(r.FieldOrder))
	for i, name := range r.FieldOrder {
		f := model.ExtractedField{
			Name:        name,
			Value:       r.Consensus[name],
			Order:       i,
			NeedsReview: r.HasDiscrepancy(name),
		}
		if w, ok := r.Words[name]; ok {
			f.ValueInWords = &w
		}
		out = append(out, f)
	}
	return out
}

func fieldOrder(s *schema.Schema, a, b *model.StructuredExtraction) []string {
	order := s.FieldOrder()
	seen := make(map[string]bool, len(order))
	for _, f := range order {
		seen[f] = true
	}

	var extra []string
	for _, src := range []*model.StructuredExtraction{a, b} {
		if src == nil {
			continue
		}
		for f := range src.Fields {
			if !seen[f] {
				seen[f] = true
				extra = append(extra, f)
			}
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func rawValue(e *model.StructuredExtraction, field string) string {
	if e == nil {
		return ""
	}
	return e.Fields[field]
}

// chosenWords returns the written-out form from the source whose value
// was kept. Nothing is returned for an empty consensus value.
func chosenWords(a, b *model.StructuredExtraction, field string, fromA bool, value string) string {
	if value == "" {
		return ""
	}
	src := b
	if fromA {
		src = a
	}
	if src == nil {
		return ""
	}
	w := strings.TrimSpace(src.Words[field])
	if textmatch.Normalize(w) == "" {
		return ""
	}
	return w
}

func sortByOrder(fields, order []string) {
	pos := make(map[string]int, len(order))
	for i, f := range order {
		pos[f] = i
	}
	slices.SortStableFunc(fields, func(x, y string) int {
		px, okx := pos[x]
		py, oky := pos[y]
		switch {
		case okx && oky:
			return px - py
		case okx:
			return -1
		case oky:
			return 1
		}
		return strings.Compare(x, y)
	})
}
