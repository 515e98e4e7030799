package model

import "time"

// SourceVersions identifies the model and prompt revision behind one
// extraction call.
type SourceVersions struct {
	Model         string `json:"model"`
	PromptVersion string `json:"prompt_version"`
}

// PromptProvenance links an extraction result to the versions each source used.
type PromptProvenance struct {
	ID         int64          `json:"id,omitempty"`
	ResultID   string         `json:"result_id"`
	Source     string         `json:"source"`
	Versions   SourceVersions `json:"versions"`
	RecordedAt time.Time      `json:"recorded_at"`
}
