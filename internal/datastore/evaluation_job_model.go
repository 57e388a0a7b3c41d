package datastore

import (
	"encoding/json"
	"time"
)

// Job types.
const (
	JobTypeSingle  = "single"
	JobTypeCompare = "compare"
)

// Job statuses. A job moves PENDING -> RUNNING -> COMPLETED or FAILED.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// EvaluationJob maps to the evaluation_jobs table in the database.
type EvaluationJob struct {
	ID              int64           `json:"id"`
	JobName         string          `json:"job_name,omitempty"`
	JobType         string          `json:"job_type"` // single or compare
	Status          string          `json:"status"`
	Normalization   string          `json:"normalization"`
	CharGranularity string          `json:"char_granularity"`
	Utterances      int             `json:"utterances"`
	Scored          int             `json:"scored"`
	Failed          int             `json:"failed"`
	Summary         json.RawMessage `json:"summary,omitempty"` // dataset metrics or comparison summary
	ReportObject    string          `json:"report_object,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// JobOutcome is what a finished run writes back onto its job row.
type JobOutcome struct {
	Status       string
	Scored       int
	Failed       int
	Summary      json.RawMessage
	ReportObject string
	ErrorMessage string
}

// IsFinished reports whether the job reached a terminal status.
func (j *EvaluationJob) IsFinished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
