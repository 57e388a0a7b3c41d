package datastore

import (
	"encoding/json"
	"time"
)

// Result models. A single-model job stores its rows with ModelSingle; a
// comparison job stores one row per model.
const (
	ModelSingle = ""
	ModelA      = "a"
	ModelB      = "b"
)

// ASREvaluationResult maps to the asr_evaluation_results table. Rates are
// kept as raw numerator/denominator pairs so dataset figures can be
// recomputed exactly.
type ASREvaluationResult struct {
	ID             int64           `json:"id"`
	JobID          int64           `json:"job_id"`
	UtteranceIndex int             `json:"utterance_index"`
	UtteranceKey   string          `json:"utterance_key"`
	Model          string          `json:"model,omitempty"`
	ReferenceText  string          `json:"reference_text"`
	RecognizedText *string         `json:"recognized_text,omitempty"`
	WordCounts     json.RawMessage `json:"word_counts,omitempty"`
	CharCounts     json.RawMessage `json:"char_counts,omitempty"`
	WER            RateColumns     `json:"wer"`
	CER            RateColumns     `json:"cer"`
	Classification string          `json:"classification,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RateColumns is the stored form of an exact rate.
type RateColumns struct {
	Numerator   int  `json:"numerator"`
	Denominator int  `json:"denominator"`
	Undefined   bool `json:"undefined,omitempty"`
}
