package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// StartPublishSpan opens a producer span for one broker publish.
func StartPublishSpan(ctx context.Context, exchange, routingKey string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, exchange+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemRabbitmq,
			semconv.MessagingOperationPublish,
			semconv.MessagingDestinationName(exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
		),
	)
}

// InjectHeaders copies the propagation fields of ctx into headers.
func InjectHeaders(ctx context.Context, headers map[string]any) {
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier(headers))
}

// HeaderCarrier adapts AMQP message headers to propagation.TextMapCarrier.
// Non-string values are invisible to Get.
type HeaderCarrier map[string]any

func (c HeaderCarrier) Get(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c HeaderCarrier) Set(key, value string) { c[key] = value }

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
