package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/okian/gigledger/internal/adapters/dedupe"
	"github.com/okian/gigledger/internal/adapters/http/api"
	"github.com/okian/gigledger/internal/adapters/ledger"
	"github.com/okian/gigledger/internal/adapters/mq/publisher"
	"github.com/okian/gigledger/internal/adapters/repository"
	service "github.com/okian/gigledger/internal/app"
	"github.com/okian/gigledger/internal/config"
	"github.com/okian/gigledger/pkg/logger"
)

// HTTP server timeout constants. Writes block until the ledger confirms, so
// the write timeout is generous.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	dialTimeout       = 15 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	app, err := build(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	defer app.close()

	if cfg.HasSession() {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		err := connect(dialCtx, cfg, app.svc)
		cancel()
		if err != nil {
			log.Error(ctx, "failed to open ledger session", logger.Error(err))
			return
		}
		log.Info(ctx, "ledger session ready", logger.String("rpc_url", cfg.RPCURL))
	} else {
		log.Warn(ctx, "no ledger session configured; ledger operations will report not ready")
	}

	if err := app.svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// application holds the wired components and what must be released on exit.
type application struct {
	svc     *service.Service
	mux     *http.ServeMux
	closers []func()
}

func (a *application) close() {
	a.svc.Stop()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires storage, idempotency, publishing and the HTTP routes. Each
// external backend is optional and falls back to an in-process one.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	app := &application{}
	fail := func(err error) (*application, error) {
		for i := len(app.closers) - 1; i >= 0; i-- {
			app.closers[i]()
		}
		return nil, err
	}

	var journal repository.Journal = repository.NewMemoryJournal()
	if cfg.DatabaseURL != "" {
		pj, err := repository.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("journal: %w", err))
		}
		app.closers = append(app.closers, pj.Close)
		journal = pj
		log.Info(ctx, "using postgres submission journal")
	}

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithFanoutLimit(cfg.FanoutLimit),
		service.WithDedupeSize(cfg.IdempotencyCacheSize),
		service.WithDedupeTTL(cfg.IdempotencyTTL()),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn(ctx, "redis unreachable; idempotency checks fail open until it recovers",
				logger.String("addr", cfg.RedisAddr), logger.Error(err))
		}
		app.closers = append(app.closers, func() { _ = rdb.Close() })
		opts = append(opts, service.WithDeduper(dedupe.NewRedisDeduper(rdb,
			dedupe.WithTTL(cfg.IdempotencyTTL()),
			dedupe.WithLogger(log.Named("dedupe")),
		)))
	}

	if cfg.AMQPURL != "" {
		pub, err := publisher.NewAMQP(cfg.AMQPURL)
		if err != nil {
			return fail(fmt.Errorf("publisher: %w", err))
		}
		// Closed by Service.Stop.
		opts = append(opts, service.WithPublisher(pub))
	}

	gw := ledger.New(addresses(cfg),
		ledger.WithLogger(log.Named("ledger")),
		ledger.WithJournal(journal),
	)
	app.svc = service.New(gw, opts...)

	app.mux = http.NewServeMux()
	api.NewServer(app.svc, log.Named("api")).Register(ctx, app.mux)
	return app, nil
}

func addresses(cfg *config.Config) ledger.Addresses {
	return ledger.Addresses{
		Marketplace: common.HexToAddress(cfg.MarketplaceAddress),
		Escrow:      common.HexToAddress(cfg.EscrowAddress),
		Reputation:  common.HexToAddress(cfg.ReputationAddress),
	}
}

// connect dials the node and hands the wallet session to the service.
func connect(ctx context.Context, cfg *config.Config, svc *service.Service) error {
	var chainID *big.Int
	if cfg.ChainID > 0 {
		chainID = big.NewInt(cfg.ChainID)
	}
	conn, err := ledger.Dial(ctx, cfg.RPCURL, cfg.PrivateKey, chainID)
	if err != nil {
		return err
	}
	return svc.Initialize(ctx, conn)
}
