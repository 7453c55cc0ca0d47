package otel

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"taskdesk/pkg/metrics"
)

// Observe runs one repository query inside a client span named
// "<operation> <table>" and records its latency histogram.
// pgx.ErrNoRows leaves the span status unset.
func Observe(ctx context.Context, operation, table string, fn func(context.Context) error) error {
	ctx, span := Tracer().Start(ctx, operation+" "+table,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			semconv.DBOperation(operation),
			semconv.DBSQLTable(table),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordDBQueryDuration(operation, table, time.Since(start))

	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
