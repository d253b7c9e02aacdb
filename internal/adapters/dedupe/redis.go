// Package dedupe provides a Redis-backed idempotency key store shared across
// replicas of the HTTP API.
package dedupe

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/okian/gigledger/internal/domain/dedupe"
	"github.com/okian/gigledger/pkg/logger"
	"github.com/okian/gigledger/pkg/metrics"
)

const (
	defaultPrefix = "gigledger:idem:"
	defaultTTL    = 24 * time.Hour
)

// RedisDeduper records keys with SETNX so that only the first caller wins.
// A claimed key holds an empty value until Remember stores the result.
// When Redis is unavailable it fails open: the request is let through.
type RedisDeduper struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	log    logger.Logger
}

// Option configures a RedisDeduper.
type Option func(*RedisDeduper)

// WithTTL sets how long a key is remembered.
func WithTTL(ttl time.Duration) Option {
	return func(d *RedisDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) Option {
	return func(d *RedisDeduper) {
		if prefix != "" {
			d.prefix = prefix
		}
	}
}

// WithLogger sets the logger used for Redis failures.
func WithLogger(l logger.Logger) Option {
	return func(d *RedisDeduper) {
		if l != nil {
			d.log = l
		}
	}
}

// NewRedisDeduper wraps an existing client.
func NewRedisDeduper(rdb redis.UniversalClient, opts ...Option) *RedisDeduper {
	d := &RedisDeduper{
		rdb:    rdb,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ domain.Deduper = (*RedisDeduper)(nil)

func (d *RedisDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	ok, err := d.rdb.SetNX(ctx, d.prefix+key, "", d.ttl).Result()
	if err != nil {
		d.log.Warn(ctx, "idempotency store unavailable, letting request through",
			logger.String("key", key), logger.Error(err))
		metrics.RecordErrorByComponent("dedupe", "redis")
		return false
	}
	return !ok
}

func (d *RedisDeduper) Unrecord(ctx context.Context, key string) {
	if err := d.rdb.Del(ctx, d.prefix+key).Err(); err != nil {
		d.log.Warn(ctx, "failed to release idempotency key",
			logger.String("key", key), logger.Error(err))
	}
}

// Remember overwrites a claimed key with result, keeping its expiry. A key
// that already expired is not recreated.
func (d *RedisDeduper) Remember(ctx context.Context, key string, result []byte) {
	err := d.rdb.SetArgs(ctx, d.prefix+key, result, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		d.log.Warn(ctx, "failed to store idempotent result",
			logger.String("key", key), logger.Error(err))
		metrics.RecordErrorByComponent("dedupe", "redis")
	}
}

func (d *RedisDeduper) Recall(ctx context.Context, key string) ([]byte, bool) {
	b, err := d.rdb.Get(ctx, d.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			d.log.Warn(ctx, "failed to read idempotent result",
				logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}
	if len(b) == 0 {
		return nil, false
	}
	return b, true
}

// Size counts keys under the prefix. It scans, so keep it off hot paths.
func (d *RedisDeduper) Size() int64 {
	ctx := context.Background()
	var n int64
	iter := d.rdb.Scan(ctx, 0, d.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return -1
	}
	return n
}
