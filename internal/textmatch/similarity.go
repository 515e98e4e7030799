package textmatch

import (
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// Distance is the unit-cost Levenshtein edit distance between a and b,
// counted in runes.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// Similarity returns a score in [0,1] for a and b after normalization:
// 1.0 when the normalized forms match (including both empty), otherwise
// (maxLen - distance) / maxLen over the normalized forms.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1.0
	}
	return Ratio(na, nb)
}

// Ratio scores two already-normalized strings without re-normalizing them.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	d := Distance(a, b)
	return float64(maxLen-d) / float64(maxLen)
}
