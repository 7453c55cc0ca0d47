package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper claims short-lived keys in Redis so that two concurrent requests
// for the same identity cannot both pass a read-then-write existence check.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// AcquireOnce returns true if this caller is the first to claim scope+key
// within the ttl. A Redis failure never blocks the caller.
func (d *Deduper) AcquireOnce(ctx context.Context, scope, key string) bool {
	if d == nil || d.rdb == nil {
		return true
	}
	dedupKey := fmt.Sprintf("dedup:%s:%s", scope, key)

	ok, err := d.rdb.SetNX(ctx, dedupKey, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing request",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Concurrent duplicate request rejected",
			zap.String("scope", scope),
			zap.String("dedup_key", dedupKey),
		)
	}
	return ok
}

// Release drops the claim once the guarded write has finished.
func (d *Deduper) Release(ctx context.Context, scope, key string) {
	if d == nil || d.rdb == nil {
		return
	}
	if err := d.rdb.Del(ctx, fmt.Sprintf("dedup:%s:%s", scope, key)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key", zap.String("scope", scope), zap.Error(err))
	}
}
