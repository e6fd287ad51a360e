// Package loadtest drives a running fitrep service with synthetic extracts
// and checks that the published cohorts account for every generated line.
package loadtest

import "time"

// Config holds the settings of one load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Records    int           // Number of extract lines to generate
	BatchSize  int           // Lines per import job
	Workers    int           // Concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	JobWait    time.Duration // Upper bound on waiting for all jobs
	Seed       uint64        // Generator seed; 0 picks one from the clock
	OutputFile string        // Optional file for the generated extract
	Verbose    bool
}

// Line is one generated extract line.
type Line struct {
	EDIPI   int64
	Rank    string
	Last    string
	First   string
	From    time.Time
	To      time.Time
	Type    string
	Average float64
}

// Stats holds run statistics.
type Stats struct {
	LinesGenerated   int
	BatchesSubmitted int
	BatchesRejected  int
	JobsSucceeded    int
	JobsFailed       int
	Imported         int
	Duplicates       int
	Skipped          int
	Warnings         int
	Grades           int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
