package loadtest

import "time"

// Submission tuning.
const (
	maxSubmitAttempts = 5
	retryBackoff      = 50 * time.Millisecond
	pollInterval      = 25 * time.Millisecond
	dateLayout        = "2006 01 02"
)

// Relative value band published by the service.
const (
	rvFloor = 80.0
	rvCeil  = 100.0
)
