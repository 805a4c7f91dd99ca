package model

import "time"

// ImportSource selects which CSV columns carry the title and year.
type ImportSource string

const (
	SourceLetterboxd ImportSource = "letterboxd"
	SourceIMDb       ImportSource = "imdb"
)

// JobStatus is the lifecycle state of an ImportJob.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ImportJob is the status record of one background CSV import.
type ImportJob struct {
	ID           string       `json:"id"`
	UserID       int64        `json:"userId"`
	Source       ImportSource `json:"source"`
	Target       string       `json:"target"`
	Status       JobStatus    `json:"status"`
	TotalRows    int          `json:"totalRows"`
	Imported     int          `json:"imported"`
	Skipped      int          `json:"skipped"`
	Errors       int          `json:"errors"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	FinishedAt   *time.Time   `json:"finishedAt,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j *ImportJob) Done() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
