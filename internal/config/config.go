// Package config defines service configuration structures and loading hooks.
//
// Values are layered: defaults from New, then an optional YAML file named by
// GIGLEDGER_CONFIG, then GIGLEDGER_* environment variables.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// RPCURL is the ledger node endpoint. Empty leaves the gateway
	// uninitialized until a session is supplied.
	RPCURL string `koanf:"rpc_url"`

	// ChainID pins the signer to a chain. Zero asks the node.
	ChainID int64 `koanf:"chain_id"`

	// PrivateKey is the hex-encoded signing key of the wallet session.
	PrivateKey string `koanf:"private_key"`

	MarketplaceAddress string `koanf:"marketplace_address"`
	EscrowAddress      string `koanf:"escrow_address"`
	ReputationAddress  string `koanf:"reputation_address"`

	// FanoutLimit bounds concurrent reads in list operations.
	FanoutLimit int `koanf:"fanout_limit"`

	// DatabaseURL selects the Postgres submission journal. Empty keeps it in memory.
	DatabaseURL string `koanf:"database_url"`

	// RedisAddr selects the shared idempotency store. Empty keeps it in memory.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	IdempotencyTTLSeconds int `koanf:"idempotency_ttl_seconds"`
	IdempotencyCacheSize  int `koanf:"idempotency_cache_size"`

	// AMQPURL enables publishing confirmed ledger events. Empty disables it.
	AMQPURL string `koanf:"amqp_url"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		FanoutLimit:           runtime.NumCPU() * 4,
		IdempotencyTTLSeconds: 86_400,
		IdempotencyCacheSize:  50_000,
	}
}

// IdempotencyTTL returns the idempotency window as a duration.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSeconds) * time.Second
}

// HasSession reports whether enough is configured to dial a wallet session.
func (c *Config) HasSession() bool {
	return c.RPCURL != "" && c.PrivateKey != ""
}
