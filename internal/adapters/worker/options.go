package worker

import (
	"github.com/okian/gigledger/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithLimit caps the reads in flight per batch. Values below one are ignored.
func WithLimit(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithName sets the pool name for identification and logging.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(logger logger.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}
