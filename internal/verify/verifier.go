// Package verify cross-checks candidate field values against the raw OCR
// token stream of a document. Verification is advisory: it can raise
// suspicion about a value but never certifies it beyond source agreement.
package verify

import (
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/schema"
	"github.com/sells-group/docextract/internal/textmatch"
)

// ErrEmptyValue is returned when asked to verify a value that normalizes
// to nothing.
var ErrEmptyValue = eris.New("verify: empty value")

// Thresholds are the policy constants separating the verification outcomes.
type Thresholds struct {
	// TextConfirm is the minimum line similarity for CONFIRMED.
	TextConfirm float64
	// TextSuspicious is the minimum line similarity for SUSPICIOUS.
	TextSuspicious float64
	// NumericMaxDigitEdits is the largest digit edit distance still reported
	// as SUSPICIOUS.
	NumericMaxDigitEdits int
	// NumericSuspiciousSimilarity also flags a digit run as SUSPICIOUS when
	// its similarity reaches this value.
	NumericSuspiciousSimilarity float64
}

// DefaultThresholds returns the shipped policy values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TextConfirm:                 0.90,
		TextSuspicious:              0.70,
		NumericMaxDigitEdits:        1,
		NumericSuspiciousSimilarity: 0.80,
	}
}

// Result is the outcome of verifying one field.
type Result struct {
	Field   string
	Status  model.VerificationStatus
	Score   float64
	Matched string
	Page    int
}

// Verifier checks values against one document's OCR tokens. The index is
// built on first use and shared by every subsequent call. A Verifier is
// safe for concurrent use.
type Verifier struct {
	tokens []model.OcrToken
	th     Thresholds

	once sync.Once
	idx  *index
	err  error
}

// New creates a Verifier over tokens. The slice is not modified.
func New(tokens []model.OcrToken, th Thresholds) *Verifier {
	return &Verifier{tokens: tokens, th: th}
}

func (v *Verifier) index() (*index, error) {
	v.once.Do(func() {
		v.idx, v.err = buildIndex(v.tokens)
		if v.err == nil {
			zap.L().Debug("verify: index built",
				zap.Int("tokens", len(v.tokens)),
				zap.Int("lines", len(v.idx.lines)),
				zap.Int("digit_runs", len(v.idx.runs)),
			)
		}
	})
	return v.idx, v.err
}

// VerifyField classifies value as CONFIRMED, SUSPICIOUS or NOT_FOUND
// against the OCR corpus using the strategy for vt.
func (v *Verifier) VerifyField(field, value string, vt schema.ValueType) (Result, error) {
	res := Result{Field: field}
	if textmatch.Normalize(value) == "" {
		return res, eris.Wrapf(ErrEmptyValue, "field %s", field)
	}

	idx, err := v.index()
	if err != nil {
		return res, err
	}

	switch vt {
	case schema.ValueNumeric:
		return v.verifyNumeric(idx, res, value), nil
	case schema.ValueText, "":
		return v.verifyText(idx, res, value), nil
	default:
		return res, eris.Errorf("verify: field %s has unsupported value type %q", field, vt)
	}
}

func (v *Verifier) verifyNumeric(idx *index, res Result, value string) Result {
	want := textmatch.DigitsOnly(value)
	res.Status = model.VerificationNotFound
	if want == "" {
		return res
	}

	for _, r := range idx.runs {
		if abs(len(r.digits)-len(want)) > 1 {
			continue
		}
		if r.digits == want {
			res.Status = model.VerificationConfirmed
			res.Score = 1.0
			res.Matched = r.line
			res.Page = r.page
			return res
		}
		dist := textmatch.Distance(r.digits, want)
		sim := textmatch.Ratio(r.digits, want)
		if dist > v.th.NumericMaxDigitEdits && sim < v.th.NumericSuspiciousSimilarity {
			continue
		}
		if sim > res.Score || res.Status != model.VerificationSuspicious {
			res.Status = model.VerificationSuspicious
			res.Score = sim
			res.Matched = r.line
			res.Page = r.page
		}
	}
	return res
}

func (v *Verifier) verifyText(idx *index, res Result, value string) Result {
	want := textmatch.Normalize(value)
	wantWords := len(strings.Fields(want))

	for _, l := range idx.lines {
		score, matched := bestLineScore(want, wantWords, l)
		if score > res.Score {
			res.Score = score
			res.Matched = matched
			res.Page = l.page
		}
		if score == 1.0 {
			break
		}
	}

	switch {
	case res.Score >= v.th.TextConfirm:
		res.Status = model.VerificationConfirmed
	case res.Score >= v.th.TextSuspicious:
		res.Status = model.VerificationSuspicious
	default:
		res.Status = model.VerificationNotFound
	}
	return res
}

// bestLineScore compares want against the whole line and against every
// window of the line's words whose length is within one word of want.
func bestLineScore(want string, wantWords int, l line) (float64, string) {
	if strings.Contains(" "+l.norm+" ", " "+want+" ") {
		return 1.0, l.text
	}
	best, matched := textmatch.Ratio(want, l.norm), l.text
	for size := max(1, wantWords-1); size <= wantWords+1; size++ {
		for i := 0; i+size <= len(l.words); i++ {
			window := strings.Join(l.words[i:i+size], " ")
			if s := textmatch.Ratio(want, window); s > best {
				best, matched = s, window
			}
		}
	}
	return best, matched
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
