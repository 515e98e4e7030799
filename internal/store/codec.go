package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/model"
)

// resultJSON holds the JSON-encoded columns of an extraction_results row.
type resultJSON struct {
	sourceA       []byte
	sourceB       []byte
	consensus     []byte
	discrepancies []byte
	verification  []byte
}

func marshalResult(r *model.ExtractionResult) (resultJSON, error) {
	var c resultJSON
	var err error
	if c.sourceA, err = json.Marshal(r.SourceA); err != nil {
		return c, eris.Wrap(err, "source_a")
	}
	if c.sourceB, err = json.Marshal(r.SourceB); err != nil {
		return c, eris.Wrap(err, "source_b")
	}
	if c.consensus, err = json.Marshal(r.Consensus); err != nil {
		return c, eris.Wrap(err, "consensus")
	}
	discrepancies := r.Discrepancies
	if discrepancies == nil {
		discrepancies = []string{}
	}
	if c.discrepancies, err = json.Marshal(discrepancies); err != nil {
		return c, eris.Wrap(err, "discrepancies")
	}
	verification := r.Verification
	if verification == nil {
		verification = []model.FieldVerification{}
	}
	if c.verification, err = json.Marshal(verification); err != nil {
		return c, eris.Wrap(err, "verification")
	}
	return c, nil
}

func (c resultJSON) unmarshalInto(r *model.ExtractionResult) error {
	if err := json.Unmarshal(c.sourceA, &r.SourceA); err != nil {
		return eris.Wrap(err, "source_a")
	}
	if err := json.Unmarshal(c.sourceB, &r.SourceB); err != nil {
		return eris.Wrap(err, "source_b")
	}
	if err := json.Unmarshal(c.consensus, &r.Consensus); err != nil {
		return eris.Wrap(err, "consensus")
	}
	if err := json.Unmarshal(c.discrepancies, &r.Discrepancies); err != nil {
		return eris.Wrap(err, "discrepancies")
	}
	if len(c.verification) > 0 {
		if err := json.Unmarshal(c.verification, &r.Verification); err != nil {
			return eris.Wrap(err, "verification")
		}
	}
	return nil
}
