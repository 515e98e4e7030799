package model

import (
	"slices"
	"time"
)

// BlockType distinguishes OCR line blocks from word blocks.
type BlockType string

const (
	BlockTypeLine BlockType = "LINE"
	BlockTypeWord BlockType = "WORD"
)

// OcrToken is a positional text block produced once by OCR.
type OcrToken struct {
	Text      string    `json:"text"`
	Page      int       `json:"page"`
	Top       float64   `json:"top"`
	BlockType BlockType `json:"block_type"`
}

// OcrResult is the raw output of an OCR provider for one document.
type OcrResult struct {
	Text   string     `json:"text"`
	Blocks []OcrToken `json:"blocks"`
}

// Empty-value sentinels an extraction source may return.
const (
	SentinelEmpty         = "EMPTY"
	SentinelNotApplicable = "NOT_APPLICABLE"
	SentinelIllegible     = "ILLEGIBLE"
)

// StructuredExtraction is one source's field set for a document.
// Words optionally carries the written-out form of numeric values
// ("doce mil trescientos cuarenta y cinco").
type StructuredExtraction struct {
	Source string            `json:"source"`
	Fields map[string]string `json:"fields"`
	Words  map[string]string `json:"words,omitempty"`
}

// IsEmpty reports whether the extraction carries no fields at all.
func (e *StructuredExtraction) IsEmpty() bool {
	return e == nil || len(e.Fields) == 0
}

// ConfidenceTier is a coarse trust label on a whole extraction result.
type ConfidenceTier string

const (
	ConfidenceConsensus      ConfidenceTier = "CONSENSUS"
	ConfidencePartial        ConfidenceTier = "PARTIAL"
	ConfidenceReviewRequired ConfidenceTier = "REVIEW_REQUIRED"
)

var confidenceRank = map[ConfidenceTier]int{
	ConfidenceConsensus:      0,
	ConfidencePartial:        1,
	ConfidenceReviewRequired: 2,
}

// Rank returns the tier's position; higher means less trusted.
func (t ConfidenceTier) Rank() int {
	return confidenceRank[t]
}

// Max returns the less trusted of t and other.
func (t ConfidenceTier) Max(other ConfidenceTier) ConfidenceTier {
	if other.Rank() > t.Rank() {
		return other
	}
	return t
}

// VerificationStatus is the outcome of checking one field against OCR tokens.
type VerificationStatus string

const (
	VerificationConfirmed  VerificationStatus = "CONFIRMED"
	VerificationSuspicious VerificationStatus = "SUSPICIOUS"
	VerificationNotFound   VerificationStatus = "NOT_FOUND"
)

// FieldComparison records how the two sources compared on one field.
type FieldComparison struct {
	Field      string  `json:"field"`
	SourceA    string  `json:"source_a"`
	SourceB    string  `json:"source_b"`
	Similarity float64 `json:"similarity"`
	Agreed     bool    `json:"agreed"`
}

// FieldVerification is the persisted outcome of verifying a critical field.
// Status is empty when verification degraded and nothing was asserted.
type FieldVerification struct {
	Field   string             `json:"field"`
	Status  VerificationStatus `json:"status,omitempty"`
	Score   float64            `json:"score"`
	Matched string             `json:"matched,omitempty"`
	Page    int                `json:"page,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// ConsensusResult is the reconciled view of two structured extractions.
type ConsensusResult struct {
	Consensus     map[string]string `json:"consensus"`
	Words         map[string]string `json:"words,omitempty"`
	Discrepancies []string          `json:"discrepancies"`
	Confidence    ConfidenceTier    `json:"confidence"`
	FieldOrder    []string          `json:"field_order"`
	Comparisons   []FieldComparison `json:"comparisons,omitempty"`
}

// HasDiscrepancy reports whether field is in the discrepancy set.
func (r *ConsensusResult) HasDiscrepancy(field string) bool {
	return slices.Contains(r.Discrepancies, field)
}

// ExtractedField is the persisted, ordered projection of a consensus field.
type ExtractedField struct {
	Name         string  `json:"name"`
	Value        string  `json:"value"`
	ValueInWords *string `json:"value_in_words,omitempty"`
	Order        int     `json:"order"`
	NeedsReview  bool    `json:"needs_review"`
}

// ExtractionResult is the persisted outcome of one successful job.
type ExtractionResult struct {
	ID            string               `json:"id"`
	DocumentID    string               `json:"document_id"`
	JobID         string               `json:"job_id"`
	SourceA       StructuredExtraction `json:"source_a"`
	SourceB       StructuredExtraction `json:"source_b"`
	Consensus     map[string]string    `json:"consensus"`
	Confidence    ConfidenceTier       `json:"confidence"`
	Discrepancies []string             `json:"discrepancies"`
	Verification  []FieldVerification  `json:"verification,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}
