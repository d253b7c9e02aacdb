// Package dedupe tracks idempotency keys so that a fee-bearing write is
// submitted to the ledger at most once per key.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxSize = 50_000

// Deduper records seen idempotency keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets a key so the request may be retried. Only call it when
	// nothing was submitted to the ledger for that key.
	Unrecord(ctx context.Context, key string)

	// Remember attaches the result of the write made under a recorded key.
	// Unknown or expired keys are ignored.
	Remember(ctx context.Context, key string, result []byte)

	// Recall returns the result attached to key, if any.
	Recall(ctx context.Context, key string) ([]byte, bool)

	Size() int64
}

type entry struct {
	key     string
	expires time.Time
	result  []byte
}

// inMemoryDeduper keeps keys in insertion order and evicts the oldest once
// maxSize is reached. A zero ttl keeps keys until evicted; maxSize <= 0 is unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = newest
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if el, ok := d.seen[key]; ok {
		e := el.Value.(*entry)
		if e.expires.IsZero() || now.Before(e.expires) {
			return true
		}
		d.remove(el)
	}

	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.remove(d.order.Back())
		}
	}

	e := &entry{key: key}
	if d.ttl > 0 {
		e.expires = now.Add(d.ttl)
	}
	d.seen[key] = d.order.PushFront(e)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.remove(el)
	}
}

func (d *inMemoryDeduper) Remember(_ context.Context, key string, result []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.live(key); ok {
		e.result = append([]byte(nil), result...)
	}
}

func (d *inMemoryDeduper) Recall(_ context.Context, key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.live(key)
	if !ok || e.result == nil {
		return nil, false
	}
	return append([]byte(nil), e.result...), true
}

// live returns the unexpired entry for key. Must be called with d.mu held.
func (d *inMemoryDeduper) live(key string) (*entry, bool) {
	el, ok := d.seen[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !e.expires.IsZero() && !d.now().Before(e.expires) {
		return nil, false
	}
	return e, true
}

// remove drops el from both indexes. Must be called with d.mu held.
func (d *inMemoryDeduper) remove(el *list.Element) {
	if el == nil {
		return
	}
	e := d.order.Remove(el).(*entry)
	delete(d.seen, e.key)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
