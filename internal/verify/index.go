package verify

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/textmatch"
)

// ErrMalformedTokens is returned when the OCR token list cannot be indexed.
var ErrMalformedTokens = eris.New("verify: malformed OCR tokens")

// sameLineTolerance groups WORD blocks into a line when no LINE blocks exist.
const sameLineTolerance = 0.005

type line struct {
	text  string
	norm  string
	words []string
	page  int
}

type digitRun struct {
	digits string
	line   string
	page   int
}

// index is the flat, read-only search corpus for one document.
type index struct {
	lines []line
	runs  []digitRun
}

func buildIndex(tokens []model.OcrToken) (*index, error) {
	sorted := make([]model.OcrToken, 0, len(tokens))
	for i, t := range tokens {
		if t.Page < 0 {
			return nil, eris.Wrapf(ErrMalformedTokens, "token %d: negative page %d", i, t.Page)
		}
		if math.IsNaN(t.Top) || math.IsInf(t.Top, 0) {
			return nil, eris.Wrapf(ErrMalformedTokens, "token %d: invalid position", i)
		}
		switch t.BlockType {
		case model.BlockTypeLine, model.BlockTypeWord:
		default:
			return nil, eris.Wrapf(ErrMalformedTokens, "token %d: unknown block type %q", i, t.BlockType)
		}
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		sorted = append(sorted, t)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Page != sorted[j].Page {
			return sorted[i].Page < sorted[j].Page
		}
		return sorted[i].Top < sorted[j].Top
	})

	idx := &index{}
	for _, t := range sorted {
		if t.BlockType == model.BlockTypeLine {
			idx.addLine(t.Text, t.Page)
		}
	}
	if len(idx.lines) == 0 {
		idx.linesFromWords(sorted)
	}
	return idx, nil
}

// linesFromWords rebuilds lines from WORD blocks sharing a page and
// vertical position.
func (idx *index) linesFromWords(words []model.OcrToken) {
	var cur []string
	page, top := -1, 0.0
	flush := func() {
		if len(cur) > 0 {
			idx.addLine(strings.Join(cur, " "), page)
			cur = cur[:0]
		}
	}
	for _, w := range words {
		if w.Page != page || math.Abs(w.Top-top) > sameLineTolerance {
			flush()
			page, top = w.Page, w.Top
		}
		cur = append(cur, w.Text)
	}
	flush()
}

func (idx *index) addLine(text string, page int) {
	n := textmatch.Normalize(text)
	if n == "" {
		return
	}
	idx.lines = append(idx.lines, line{
		text:  text,
		norm:  n,
		words: strings.Fields(n),
		page:  page,
	})
	for _, r := range textmatch.DigitRuns(text) {
		idx.runs = append(idx.runs, digitRun{digits: r, line: text, page: page})
	}
	for _, r := range spacedRuns(text) {
		idx.runs = append(idx.runs, digitRun{digits: r, line: text, page: page})
	}
}

// spacedRuns joins consecutive whitespace-separated numeric groups, so an
// ID printed as "2456 78901 0101" can be matched as one number. Every
// contiguous span of two or more groups is emitted.
func spacedRuns(text string) []string {
	var out []string
	var groups []string
	emit := func() {
		for i := 0; i < len(groups); i++ {
			joined := groups[i]
			for j := i + 1; j < len(groups); j++ {
				joined += groups[j]
				out = append(out, joined)
			}
		}
		groups = groups[:0]
	}
	for _, tok := range strings.Fields(text) {
		if isNumericGroup(tok) {
			groups = append(groups, textmatch.DigitsOnly(tok))
			continue
		}
		emit()
	}
	emit()
	return out
}

func isNumericGroup(tok string) bool {
	tok = strings.TrimRight(tok, ".,;:")
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if (r < '0' || r > '9') && r != '.' && r != ',' && r != '-' && r != '/' {
			return false
		}
	}
	return textmatch.DigitsOnly(tok) != ""
}
