package repository

import (
	"context"
	"strings"
	"sync"
	"time"
)

const defaultCapacity = 10_000

// MemoryJournal is an in-process Journal. Rows do not survive a restart.
type MemoryJournal struct {
	mu       sync.RWMutex
	rows     map[string]Submission
	order    []string // oldest first
	capacity int
	now      func() time.Time
}

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal(opts ...Option) *MemoryJournal {
	j := &MemoryJournal{
		rows:     make(map[string]Submission),
		capacity: defaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *MemoryJournal) Record(_ context.Context, s Submission) error {
	key, err := normalizeHash(s.Hash)
	if err != nil {
		return err
	}
	s.Hash = key

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now().UTC()
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	if prev, ok := j.rows[key]; ok {
		s.SubmittedAt = prev.SubmittedAt
		j.rows[key] = s
		return nil
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = now
	}
	j.rows[key] = s
	j.order = append(j.order, key)

	if j.capacity > 0 {
		for len(j.order) > j.capacity {
			delete(j.rows, j.order[0])
			j.order = j.order[1:]
		}
	}
	return nil
}

func (j *MemoryJournal) Get(_ context.Context, hash string) (Submission, error) {
	key, err := normalizeHash(hash)
	if err != nil {
		return Submission{}, err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	s, ok := j.rows[key]
	if !ok {
		return Submission{}, ErrNotFound
	}
	return s, nil
}

func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]Submission, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if limit <= 0 || limit > len(j.order) {
		limit = len(j.order)
	}
	out := make([]Submission, 0, limit)
	for i := len(j.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.rows[j.order[i]])
	}
	return out, nil
}

// Len reports the number of rows held.
func (j *MemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.rows)
}

// normalizeHash lower-cases a 0x-prefixed 32-byte hex hash.
func normalizeHash(hash string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(hash))
	if len(h) != 66 || !strings.HasPrefix(h, "0x") {
		return "", ErrInvalidHash
	}
	for _, c := range h[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", ErrInvalidHash
		}
	}
	return h, nil
}
