package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrAlreadyCompleted = errors.New("already completed")
	ErrUnknownFormat    = errors.New("unknown result format")
	ErrMalformedResult  = errors.New("malformed result file")
	ErrEmptyBatch       = errors.New("empty submission batch")
)
