package repository

import "errors"

// Sentinel kinds for journal errors.
var (
	ErrNotFound    = errors.New("submission not found")
	ErrInvalidHash = errors.New("invalid transaction hash")
)
