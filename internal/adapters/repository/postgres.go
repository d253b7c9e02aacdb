package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_submissions (
	hash         TEXT PRIMARY KEY,
	contract     TEXT NOT NULL,
	method       TEXT NOT NULL,
	status       TEXT NOT NULL,
	block_number BIGINT NOT NULL DEFAULT 0,
	reason       TEXT NOT NULL DEFAULT '',
	submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ledger_submissions_submitted_at_idx
	ON ledger_submissions (submitted_at DESC);
`

// defaultRecentLimit caps Recent when the caller passes no positive limit.
const defaultRecentLimit = 100

// DB is the part of *pgxpool.Pool the journal uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresJournal stores submissions in the ledger_submissions table.
type PostgresJournal struct {
	db DB
}

// NewPostgresJournal wraps an open pool.
func NewPostgresJournal(db DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// ConnectPostgres opens a pool and makes sure the table exists.
func ConnectPostgres(ctx context.Context, url string) (*PostgresJournal, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping journal database: %w", err)
	}
	j := NewPostgresJournal(pool)
	if err := j.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

// Migrate creates the table if needed.
func (j *PostgresJournal) Migrate(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Record(ctx context.Context, s Submission) error {
	key, err := normalizeHash(s.Hash)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	query := `
		INSERT INTO ledger_submissions (hash, contract, method, status, block_number, reason, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (hash) DO UPDATE
		SET status = EXCLUDED.status,
			block_number = EXCLUDED.block_number,
			reason = EXCLUDED.reason,
			updated_at = EXCLUDED.updated_at
	`
	_, err = j.db.Exec(ctx, query, key, s.Contract, s.Method, string(s.Status),
		int64(s.Block), s.Reason, s.SubmittedAt, s.UpdatedAt)
	return err
}

func (j *PostgresJournal) Get(ctx context.Context, hash string) (Submission, error) {
	key, err := normalizeHash(hash)
	if err != nil {
		return Submission{}, err
	}
	query := `
		SELECT hash, contract, method, status, block_number, reason, submitted_at, updated_at
		FROM ledger_submissions
		WHERE hash = $1
	`
	s, err := scanSubmission(j.db.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	return s, err
}

func (j *PostgresJournal) Recent(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	query := `
		SELECT hash, contract, method, status, block_number, reason, submitted_at, updated_at
		FROM ledger_submissions
		ORDER BY submitted_at DESC
		LIMIT $1
	`
	rows, err := j.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (j *PostgresJournal) Close() {
	j.db.Close()
}

func scanSubmission(row pgx.Row) (Submission, error) {
	var (
		s      Submission
		status string
		block  int64
	)
	if err := row.Scan(&s.Hash, &s.Contract, &s.Method, &status, &block, &s.Reason, &s.SubmittedAt, &s.UpdatedAt); err != nil {
		return Submission{}, err
	}
	s.Status = Status(status)
	s.Block = uint64(block)
	return s, nil
}
