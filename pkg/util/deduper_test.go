package util

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDeduper_NilIsPermissive(t *testing.T) {
	var d *Deduper
	assert.True(t, d.AcquireOnce(context.Background(), "scope", "key"))
	assert.NotPanics(t, func() { d.Release(context.Background(), "scope", "key") })
}

func TestDeduper_FailsOpenWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	d := NewDeduper(rdb, time.Second, zap.NewNop())
	assert.True(t, d.AcquireOnce(context.Background(), "user-create", "ana@x.com"))
}

func TestRetryCounter_SurfacesRedisErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	c := NewRetryCounter(rdb, time.Minute)
	_, err := c.IncrementAndGet(context.Background(), "signin:ana@x.com")
	assert.Error(t, err)
	assert.Equal(t, "retry:signin:ana@x.com", c.key("signin:ana@x.com"))
}
