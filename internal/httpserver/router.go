package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskdesk/internal/handler"
	"taskdesk/pkg/otel"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Broker reports whether the event publisher holds a live connection.
type Broker interface {
	IsConnected() bool
}

type Deps struct {
	AdminHandler  *handler.AdminHandler
	TaskHandler   *handler.TaskHandler
	OutboxHandler *handler.OutboxHandler // nil disables the outbox routes
	Verifier      TokenVerifier
	DB            Pinger
	Broker        Broker // nil when publishing is disabled
	CORSOrigins   []string // empty serves same-origin callers only
	Logger        *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(RequestLogger(d.Logger))
	r.Use(MetricsMiddleware())
	if len(d.CORSOrigins) > 0 {
		r.Use(CORS(d.CORSOrigins))
	}

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		if d.DB == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := d.DB.Ping(ctx); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		// events wait in the outbox while the broker is away, so a lost
		// broker degrades readiness without failing it
		if d.Broker != nil && !d.Broker.IsConnected() {
			c.JSON(http.StatusOK, gin.H{"status": "degraded", "mq": "disconnected"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := AuthMiddleware(d.Verifier, d.Logger)

	admin := r.Group("/api/admin")
	{
		// Public
		admin.POST("/signup", d.AdminHandler.Signup)
		admin.POST("/signin", d.AdminHandler.Signin)

		// Protected
		admin.POST("/create-user", requireAuth, d.AdminHandler.CreateUser)
		admin.GET("/users", requireAuth, d.AdminHandler.ListUsers)

		if d.OutboxHandler != nil {
			admin.GET("/outbox/failed", requireAuth, d.OutboxHandler.ListFailed)
			admin.POST("/outbox/replay/:eventId", requireAuth, d.OutboxHandler.ReplayEvent)
			admin.POST("/outbox/replay-failed", requireAuth, d.OutboxHandler.ReplayFailedEvents)
		}
	}

	tasks := r.Group("/api/task")
	tasks.Use(requireAuth)
	{
		tasks.POST("/add-task/:id", d.TaskHandler.AddTask)
		tasks.GET("/get-tasks/:id", d.TaskHandler.GetTasks)
		tasks.PATCH("/update-status/:taskId", d.TaskHandler.UpdateStatus)
	}

	return r
}
