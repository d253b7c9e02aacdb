// Package service coordinates the marketplace lifecycle on the ledger:
// projects, milestones, proposals and reviews.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/okian/gigledger/internal/adapters/ledger"
	"github.com/okian/gigledger/internal/adapters/mq/publisher"
	"github.com/okian/gigledger/internal/adapters/repository"
	"github.com/okian/gigledger/internal/adapters/worker"
	"github.com/okian/gigledger/internal/domain/dedupe"
	"github.com/okian/gigledger/pkg/logger"
	"github.com/okian/gigledger/pkg/metrics"
)

const defaultMetricsInterval = 15 * time.Second

// core is what every manager shares: one gateway, one pool, one publisher.
type core struct {
	gateway   *ledger.Gateway
	pool      *worker.Pool
	publisher publisher.Publisher
	logger    logger.Logger
}

// ready reports ErrUninitialized before any input is parsed.
func (c *core) ready() error {
	if !c.gateway.Initialized() {
		metrics.RecordUninitializedCall()
		return ledger.ErrUninitialized
	}
	return nil
}

// publish announces a confirmed write. The write is already committed, so
// failures are logged and counted only.
func (c *core) publish(ctx context.Context, routingKey string, conf *ledger.Confirmation, data any) {
	ev := publisher.NewEvent(routingKey, conf.TxHash.Hex(), conf.Block, data)
	if err := c.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		metrics.RecordPublishedEvent(routingKey, metrics.OutcomeError)
		c.logger.Error(ctx, "failed to publish ledger event",
			logger.String("routing_key", routingKey),
			logger.String("tx", conf.TxHash.Hex()),
			logger.Error(err))
		return
	}
	metrics.RecordPublishedEvent(routingKey, metrics.OutcomeOK)
}

// Service implements the API dependencies for the marketplace ledger.
type Service struct {
	*Projects
	*Milestones
	*Proposals
	*Reputation

	core    *core
	deduper dedupe.Deduper

	// Configuration
	fanoutLimit     int
	dedupeSize      int
	dedupeTTL       time.Duration
	metricsInterval time.Duration

	// State
	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.core.logger = l
		}
	}
}

// WithFanoutLimit caps concurrent reads per batch listing.
func WithFanoutLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fanoutLimit = n
		}
	}
}

// WithPublisher sets where confirmed writes are announced.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.core.publisher = p
		}
	}
}

// WithDeduper replaces the in-memory idempotency store.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithDedupeSize bounds the in-memory idempotency store.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithDedupeTTL sets how long idempotency keys are remembered in memory.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.dedupeTTL = ttl
		}
	}
}

// WithMetricsInterval sets how often process metrics are refreshed.
func WithMetricsInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.metricsInterval = d
		}
	}
}

// New builds the four managers around gateway.
func New(gateway *ledger.Gateway, opts ...Option) *Service {
	s := &Service{
		core: &core{
			gateway:   gateway,
			publisher: publisher.Nop{},
			logger:    logger.Nop(),
		},
		dedupeSize:      50_000,
		dedupeTTL:       24 * time.Hour,
		metricsInterval: defaultMetricsInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	poolOpts := []worker.Option{worker.WithName("ledger-reads"), worker.WithLogger(s.core.logger)}
	if s.fanoutLimit > 0 {
		poolOpts = append(poolOpts, worker.WithLimit(s.fanoutLimit))
	}
	s.core.pool = worker.NewPool(poolOpts...)

	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(
			dedupe.WithMaxSize(s.dedupeSize),
			dedupe.WithTTL(s.dedupeTTL),
		)
	}

	s.Projects = &Projects{core: s.core}
	s.Milestones = &Milestones{core: s.core}
	s.Proposals = &Proposals{core: s.core}
	s.Reputation = &Reputation{core: s.core}
	return s
}

// Initialize binds the gateway to an established wallet session.
func (s *Service) Initialize(ctx context.Context, conn ledger.Connection) error {
	return s.core.gateway.Initialize(ctx, conn)
}

// Ready reports whether the gateway is bound.
func (s *Service) Ready() bool {
	return s.core.gateway.Initialized()
}

// Transaction returns the journal row of a sent transaction.
func (s *Service) Transaction(ctx context.Context, hash string) (repository.Submission, error) {
	return s.core.gateway.Journal().Get(ctx, hash)
}

// RecentTransactions lists the latest journal rows, newest first.
func (s *Service) RecentTransactions(ctx context.Context, limit int) ([]repository.Submission, error) {
	return s.core.gateway.Journal().Recent(ctx, limit)
}

// SeenAndRecord atomically checks if an idempotency key was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordIdempotencyDuplicate()
	}
	return seen
}

// Unrecord releases an idempotency key. Only call it when nothing reached the ledger.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Remember stores the response produced under an idempotency key.
func (s *Service) Remember(ctx context.Context, key string, result []byte) {
	s.deduper.Remember(ctx, key, result)
}

// Recall returns the response stored under an idempotency key, if any.
func (s *Service) Recall(ctx context.Context, key string) ([]byte, bool) {
	return s.deduper.Recall(ctx, key)
}

// Start begins refreshing process metrics until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.refreshMetrics(s.stopCh, s.done)

	s.started = true
	s.core.logger.Info(ctx, "ledger service started",
		logger.Int("fanoutLimit", s.core.pool.Limit()),
		logger.Bool("initialized", s.Ready()))
	return nil
}

// Stop halts background work and closes the publisher.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	close(s.stopCh)
	<-s.done

	if err := s.core.publisher.Close(); err != nil {
		s.core.logger.Warn(context.Background(), "failed to close publisher", logger.Error(err))
	}
	s.started = false
	s.core.logger.Info(context.Background(), "ledger service stopped")
}

// GetStats summarizes service state for diagnostics.
func (s *Service) GetStats() map[string]any {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	return map[string]any{
		"started":        started,
		"initialized":    s.Ready(),
		"fanoutLimit":    s.core.pool.Limit(),
		"idempotencyLen": s.deduper.Size(),
	}
}

func (s *Service) refreshMetrics(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.metricsInterval)
	defer ticker.Stop()

	var lastNumGC uint32
	for {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		metrics.UpdateSystemMemoryUsage(ms.Alloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		if ms.NumGC != lastNumGC {
			metrics.RecordSystemGCPauseTime(float64(ms.PauseNs[(ms.NumGC+255)%256]) / float64(time.Millisecond))
			lastNumGC = ms.NumGC
		}

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}
