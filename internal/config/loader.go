package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "GIGLEDGER_"
	envFileKey = "GIGLEDGER_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if GIGLEDGER_CONFIG is set
//  3. env (prefix GIGLEDGER_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileKey); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// GIGLEDGER_RPC_URL -> rpc_url. Keys are flat so underscores are kept.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		if s == envFileKey {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and formats.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if c.ChainID < 0 {
		return invalid("chain_id must not be negative")
	}
	if c.PrivateKey != "" && !isHexKey(c.PrivateKey) {
		return invalid("private_key must be 32 hex-encoded bytes")
	}
	if c.RPCURL != "" && c.PrivateKey == "" {
		return invalid("rpc_url needs a private_key")
	}
	for key, addr := range map[string]string{
		"marketplace_address": c.MarketplaceAddress,
		"escrow_address":      c.EscrowAddress,
		"reputation_address":  c.ReputationAddress,
	} {
		if addr == "" {
			if c.RPCURL != "" {
				return invalid("%s is required with rpc_url", key)
			}
			continue
		}
		if !common.IsHexAddress(addr) {
			return invalid("%s %q is not an address", key, addr)
		}
	}
	if c.FanoutLimit < 0 {
		return invalid("fanout_limit must not be negative")
	}
	if c.RedisDB < 0 {
		return invalid("redis_db must not be negative")
	}
	if c.IdempotencyTTLSeconds < 0 {
		return invalid("idempotency_ttl_seconds must not be negative")
	}
	if c.IdempotencyCacheSize < 0 {
		return invalid("idempotency_cache_size must not be negative")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func isHexKey(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
