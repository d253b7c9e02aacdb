package service

import "errors"

// ErrInvalidInput wraps every argument that fails to parse before the ledger is reached.
var ErrInvalidInput = errors.New("invalid input")
