package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taskdesk/internal/model"
	"taskdesk/pkg/metrics"
)

const (
	userListKey = "taskdesk:users:all"
	userGenKey  = "taskdesk:users:gen"
)

// errStale aborts a write whose listing predates the last invalidation.
var errStale = errors.New("user listing is stale")

// UserCache keeps the full user listing in Redis for ttl. Any Redis error is
// treated as a miss.
//
// Every invalidation bumps a generation counter. Get reports the generation
// it observed and Set only stores a listing when the counter still holds that
// value, so a listing read before a concurrent create is never cached.
type UserCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewUserCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *UserCache {
	return &UserCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get returns the cached listing and the current generation. A negative
// generation means Redis could not be read and nothing should be cached.
func (c *UserCache) Get(ctx context.Context) ([]model.User, int64, bool) {
	vals, err := c.rdb.MGet(ctx, userGenKey, userListKey).Result()
	if err != nil {
		metrics.UserCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("User cache read failed", zap.Error(err))
		return nil, -1, false
	}

	gen, err := parseGen(vals[0])
	if err != nil {
		metrics.UserCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("User cache generation is corrupt", zap.Error(err))
		return nil, -1, false
	}

	raw, ok := vals[1].(string)
	if !ok {
		metrics.UserCacheLookups.WithLabelValues("miss").Inc()
		return nil, gen, false
	}
	var users []model.User
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		metrics.UserCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("User cache entry is corrupt", zap.Error(err))
		return nil, gen, false
	}
	metrics.UserCacheLookups.WithLabelValues("hit").Inc()
	return users, gen, true
}

// Set stores users if no invalidation happened since generation gen was read.
func (c *UserCache) Set(ctx context.Context, gen int64, users []model.User) {
	if gen < 0 {
		return
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, userGenKey).Int64()
		if errors.Is(err, redis.Nil) {
			cur, err = 0, nil
		}
		if err != nil {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userListKey, raw, c.ttl)
			return nil
		})
		return err
	}, userGenKey)

	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("Skipped caching a stale user listing", zap.Int64("generation", gen))
	default:
		c.logger.Warn("User cache write failed", zap.Error(err))
	}
}

// Invalidate drops the listing and bumps the generation in one transaction.
func (c *UserCache) Invalidate(ctx context.Context) {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, userGenKey)
		pipe.Del(ctx, userListKey)
		return nil
	})
	if err != nil {
		c.logger.Warn("User cache invalidation failed", zap.Error(err))
	}
}

// parseGen reads the generation counter; a missing key is generation zero.
func parseGen(v any) (int64, error) {
	switch s := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(s, 10, 64)
	default:
		return 0, errors.New("unexpected generation type")
	}
}
