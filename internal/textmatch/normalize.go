// Package textmatch canonicalizes extracted field values for comparison and
// scores string similarity. Diacritics are never removed: á, é, í, ó, ú, ñ
// and ü are legally significant in the source documents.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/docextract/internal/model"
)

// trailingPunct is stripped from the end of a normalized value.
const trailingPunct = ".,;:"

var sentinels = map[string]struct{}{
	model.SentinelEmpty:         {},
	model.SentinelNotApplicable: {},
	model.SentinelIllegible:     {},
}

// IsSentinel reports whether v is one of the "no value" markers.
func IsSentinel(v string) bool {
	_, ok := sentinels[strings.ToUpper(strings.TrimSpace(v))]
	return ok
}

// Normalize returns the comparison form of v: sentinels become "", the
// text is uppercased and NFC-composed, internal whitespace runs collapse to a
// single space and trailing ". , ; :" are removed. Normalize is idempotent.
func Normalize(v string) string {
	if IsSentinel(v) {
		return ""
	}
	s := norm.NFC.String(strings.ToUpper(v))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return strings.ContainsRune(trailingPunct, r) || unicode.IsSpace(r)
	})
	// "EMPTY." only reveals itself as a sentinel after punctuation is gone.
	if _, ok := sentinels[s]; ok {
		return ""
	}
	return s
}

// DigitsOnly drops every non-digit rune from s.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DigitRuns returns the digit sequences in s. A single '.', ',', '-' or '/'
// between two digits joins the groups on either side ("12,345" yields
// "12345"). The joined run comes first, followed by every shorter
// contiguous span of its groups, so "12345-2019" yields "123452019",
// "12345" and "2019".
func DigitRuns(s string) []string {
	rs := []rune(s)
	var runs, groups []string
	var cur strings.Builder
	endGroup := func() {
		if cur.Len() > 0 {
			groups = append(groups, cur.String())
			cur.Reset()
		}
	}
	flush := func() {
		endGroup()
		if len(groups) == 0 {
			return
		}
		runs = append(runs, strings.Join(groups, ""))
		for i := range groups {
			for j := i + 1; j <= len(groups); j++ {
				if i == 0 && j == len(groups) {
					continue
				}
				runs = append(runs, strings.Join(groups[i:j], ""))
			}
		}
		groups = groups[:0]
	}
	for i, r := range rs {
		switch {
		case r >= '0' && r <= '9':
			cur.WriteRune(r)
		case isGroupSeparator(r) && cur.Len() > 0 && i+1 < len(rs) && rs[i+1] >= '0' && rs[i+1] <= '9':
			endGroup()
		default:
			flush()
		}
	}
	flush()
	return runs
}

func isGroupSeparator(r rune) bool {
	return r == '.' || r == ',' || r == '-' || r == '/'
}
