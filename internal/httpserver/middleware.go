package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskdesk/internal/handler"
	"taskdesk/internal/util"
	"taskdesk/pkg/metrics"
	"taskdesk/pkg/trace"
)

// TokenVerifier resolves a raw token to the admin id it was issued for.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// AuthMiddleware rejects the request with 401 before any handler runs unless
// the Authorization header holds a valid token.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)

		adminID, err := verifier.VerifyToken(token)
		if err != nil {
			logger.Debug("Rejected unauthenticated request",
				zap.String("path", c.Request.URL.Path),
				zap.String("trace_id", trace.FromContext(c.Request.Context())),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		c.Set(handler.ContextAdminID, adminID)
		c.Next()
	}
}

// TraceMiddleware 为每个请求分配 trace_id，沿用调用方传入的值
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName)
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName, traceID)
		c.Next()
	}
}

// RequestLogger 请求日志中间件
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
	}
}

// MetricsMiddleware records request latency labelled by route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// CORS allows cross-origin calls from origins; "*" allows any origin.
// Requests from other origins get 403 and allowed preflights 204.
func CORS(origins []string) gin.HandlerFunc {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		allowed = append(allowed, strings.TrimSuffix(o, "/"))
	}
	return cors.New(cors.Config{
		AllowOrigins:  allowed,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodHead, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", trace.HeaderName},
		ExposeHeaders: []string{trace.HeaderName},
		MaxAge:        12 * time.Hour,
	})
}
