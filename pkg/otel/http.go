package otel

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware continues any incoming W3C trace, opens a server span for
// the matched route and echoes the trace context on the response.
func GinMiddleware() gin.HandlerFunc {
	prop := otel.GetTextMapPropagator
	return func(c *gin.Context) {
		req := c.Request
		ctx := prop().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		route := c.FullPath()
		name := req.Method + " " + route
		if route == "" {
			name = req.Method
		}
		ctx, span := Tracer().Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(req.Method),
				semconv.URLPath(req.URL.Path),
				semconv.UserAgentOriginal(req.UserAgent()),
			),
		)
		defer span.End()
		if route != "" {
			span.SetAttributes(semconv.HTTPRoute(route))
		}

		c.Request = req.WithContext(ctx)
		prop().Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
