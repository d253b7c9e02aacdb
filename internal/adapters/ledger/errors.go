package ledger

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel kinds for ledger errors.
var (
	ErrUninitialized   = errors.New("ledger gateway is not initialized")
	ErrRejected        = errors.New("transaction rejected by ledger")
	ErrEventNotFound   = errors.New("expected event not found in confirmation")
	ErrDecode          = errors.New("unexpected ledger output")
	ErrUnknownContract = errors.New("unknown contract")
	ErrNilConnection   = errors.New("nil ledger connection")
)

// RejectedError is returned when the ledger refuses or reverts a transaction.
// Error returns the ledger's reason text as is.
type RejectedError struct {
	Reason string
	TxHash common.Hash // zero when rejected before submission
	Err    error
}

func (e *RejectedError) Error() string { return e.Reason }

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

func (e *RejectedError) Unwrap() error { return e.Err }
