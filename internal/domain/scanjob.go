package domain

import (
	"database/sql"
	"time"
)

// Job statuses. The worker moves a job through
// queued -> collecting -> parsing -> upserting -> completed|failed.
// Cancellation and pausing are cooperative: the API layer sets the request
// flags, the worker honors them only at safe checkpoints during collecting.
const (
	StatusQueued     = "queued"
	StatusCollecting = "collecting"
	StatusParsing    = "parsing"
	StatusUpserting  = "upserting"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelling = "cancelling"
	StatusCancelled  = "cancelled"
	StatusPaused     = "paused"
)

// Job types.
const (
	JobTypeSingle = "single"
	JobTypeMulti  = "multi"
	JobTypeFile   = "file"
)

// TerminalStatuses are statuses a job never leaves.
var TerminalStatuses = map[string]bool{
	StatusCompleted: true,
	StatusFailed:    true,
	StatusCancelled: true,
}

// NonInterruptibleStatuses are phases during which cancel/pause requests
// are rejected rather than queued.
var NonInterruptibleStatuses = map[string]bool{
	StatusParsing:   true,
	StatusUpserting: true,
}

// ScanJob tracks one execution unit of a credential scan.
type ScanJob struct {
	ID              string `db:"id"               json:"id"`
	JobType         string `db:"job_type"         json:"job_type"`
	Name            string `db:"name"             json:"name,omitempty"`
	Query           string `db:"query"            json:"query"`
	TimeFilter      string `db:"time_filter"      json:"time_filter"`
	Status          string `db:"status"           json:"status"`
	QueueMessageID  string `db:"queue_message_id" json:"queue_message_id,omitempty"`
	CancelRequested bool   `db:"cancel_requested" json:"cancel_requested"`
	PauseRequested  bool   `db:"pause_requested"  json:"pause_requested"`

	TotalRaw        int `db:"total_raw"        json:"total_raw"`
	TotalParsed     int `db:"total_parsed"     json:"total_parsed"`
	TotalNew        int `db:"total_new"        json:"total_new"`
	TotalDuplicates int `db:"total_duplicates" json:"total_duplicates"`

	FilePath sql.NullString `db:"file_path" json:"file_path,omitempty"`

	StartedAt   sql.NullTime `db:"started_at"   json:"started_at"`
	CompletedAt sql.NullTime `db:"completed_at" json:"completed_at"`
	CreatedAt   time.Time    `db:"created_at"   json:"created_at"`

	ErrorMessage sql.NullString `db:"error_message" json:"error_message"`
}

// IsTerminal reports whether the job has finished for good.
func (j *ScanJob) IsTerminal() bool {
	return TerminalStatuses[j.Status]
}

// Duration returns how long the job ran, or zero if it has not finished.
func (j *ScanJob) Duration() time.Duration {
	if !j.StartedAt.Valid || !j.CompletedAt.Valid {
		return 0
	}
	return j.CompletedAt.Time.Sub(j.StartedAt.Time)
}
