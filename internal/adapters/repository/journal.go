// Package repository keeps a journal of every transaction sent to the ledger.
package repository

import (
	"context"
	"time"
)

// Status is the lifecycle stage of a submitted transaction.
type Status string

const (
	// StatusSubmitted means the transaction was sent but no receipt has been seen.
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Submission is one journal row, keyed by transaction hash.
type Submission struct {
	Hash        string    `json:"hash"`
	Contract    string    `json:"contract"`
	Method      string    `json:"method"`
	Status      Status    `json:"status"`
	Block       uint64    `json:"block,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Journal records transactions by hash.
// A row left in StatusSubmitted is a write whose outcome nobody waited for;
// it may still land on the ledger.
type Journal interface {
	// Record inserts s or moves an existing row forward. SubmittedAt of an
	// existing row is kept.
	Record(ctx context.Context, s Submission) error

	// Get returns the row for hash or ErrNotFound.
	Get(ctx context.Context, hash string) (Submission, error)

	// Recent returns up to limit rows, most recently submitted first.
	Recent(ctx context.Context, limit int) ([]Submission, error)
}

var (
	_ Journal = (*MemoryJournal)(nil)
	_ Journal = (*PostgresJournal)(nil)
)
