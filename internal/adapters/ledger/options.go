package ledger

import (
	"github.com/okian/gigledger/internal/adapters/repository"
	"github.com/okian/gigledger/pkg/logger"
)

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

// WithJournal records every sent transaction in j.
func WithJournal(j repository.Journal) Option {
	return func(g *Gateway) {
		if j != nil {
			g.journal = j
		}
	}
}
