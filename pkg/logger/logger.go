package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"taskdesk/pkg/trace"
)

// NewLogger returns a console logger for local runs and a JSON logger
// otherwise. LOG_LEVEL overrides the default level of either.
func NewLogger(env string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if lvl, err := zap.ParseAtomicLevel(raw); err == nil {
			cfg.Level = lvl
		}
	}

	l, err := cfg.Build(zap.Fields(zap.String("env", env)))
	if err != nil {
		panic(err)
	}
	return l
}

// WithTrace tags logger with the trace id carried by ctx, if any.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return logger
	}
	return logger.With(zap.String("trace_id", traceID))
}
