package model

import "time"

// JobState is the lifecycle state of an asynchronous import.
type JobState string

// Job states.
const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// ImportJob carries extract text from submission to a worker.
type ImportJob struct {
	ID          string    `json:"id"`
	Source      string    `json:"source,omitempty"`
	Text        string    `json:"-"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// JobStatus is the externally visible state of an import job.
type JobStatus struct {
	ID          string     `json:"id"`
	Source      string     `json:"source,omitempty"`
	State       JobState   `json:"state"`
	SubmittedAt time.Time  `json:"submittedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	Imported    int        `json:"imported"`
	Skipped     int        `json:"skipped"`
	Duplicates  int        `json:"duplicates"`
	Warnings    int        `json:"warnings"`
	Grades      []string   `json:"grades,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (s JobStatus) Done() bool {
	return s.State == JobSucceeded || s.State == JobFailed
}
