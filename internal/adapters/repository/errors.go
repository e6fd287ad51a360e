package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrCorrupt       = errors.New("record file is corrupt")
	ErrClosed        = errors.New("store closed")
)
