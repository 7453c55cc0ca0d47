package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"taskdesk/pkg/trace"
)

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	WithTrace(context.Background(), base).Info("plain")
	WithTrace(trace.WithContext(context.Background(), "abc123"), base).Info("traced")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Empty(t, entries[0].ContextMap())
	assert.Equal(t, "abc123", entries[1].ContextMap()["trace_id"])
}

func TestNewLogger_LevelOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	l := NewLogger("production")
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
}
