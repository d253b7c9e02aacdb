// Package worker runs batches of independent ledger reads with a bounded
// number of goroutines.
package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/okian/gigledger/pkg/logger"
	"github.com/okian/gigledger/pkg/metrics"
)

const defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()

// Pool bounds how many reads of one batch are in flight at once.
// A Pool has no goroutines of its own and is safe for concurrent use.
type Pool struct {
	limit  int
	name   string
	logger logger.Logger
}

// NewPool creates a pool with configuration options.
func NewPool(opts ...Option) *Pool {
	p := &Pool{
		limit:  runtime.NumCPU() * defaultWorkerMultiplier,
		name:   "fanout",
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Limit returns the concurrency cap.
func (p *Pool) Limit() int { return p.limit }

// Map calls fn once per key with at most p.Limit() calls running and returns
// the results in key order. The first error cancels the calls that have not
// finished and is returned; no partial result is returned with it.
func Map[K, T any](ctx context.Context, p *Pool, keys []K, fn func(context.Context, K) (T, error)) ([]T, error) {
	out := make([]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	metrics.RecordFanoutBatch(len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for i, key := range keys {
		g.Go(func() error {
			metrics.AddFanoutInflight(1)
			defer metrics.AddFanoutInflight(-1)

			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := fn(gctx, key)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordFanoutError()
		p.logger.Debug(ctx, "fan-out batch failed",
			logger.String("pool", p.name),
			logger.Int("size", len(keys)),
			logger.Error(err))
		return nil, err
	}
	return out, nil
}
