package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrNotStarted  = errors.New("service not started")
	ErrJobNotFound = errors.New("import job not found")
	ErrUnknownRank = errors.New("unknown rank")
	ErrEmptyImport = errors.New("extract text is empty")
)
