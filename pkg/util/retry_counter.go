package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const retryKeyPrefix = "retry:"

// RetryCounter counts failures per key inside a fixed window that opens on
// the first failure. Callers decide what to do once a threshold is hit.
type RetryCounter struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRetryCounter(rdb *redis.Client, window time.Duration) *RetryCounter {
	return &RetryCounter{rdb: rdb, window: window}
}

// IncrementAndGet bumps the counter for key and returns the new value.
func (r *RetryCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	k := r.key(key)

	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		// NX keeps the window anchored at the first failure
		pipe.ExpireNX(ctx, k, r.window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *RetryCounter) Reset(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}

func (r *RetryCounter) key(key string) string {
	return retryKeyPrefix + key
}
