package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskdesk/config"
	"taskdesk/internal/cache"
	"taskdesk/internal/handler"
	"taskdesk/internal/httpserver"
	"taskdesk/internal/repository"
	"taskdesk/internal/service/auth"
	"taskdesk/internal/service/task"
	"taskdesk/internal/service/user"
	"taskdesk/pkg/circuitbreaker"
	pkgconfig "taskdesk/pkg/config"
	"taskdesk/pkg/db"
	"taskdesk/pkg/logger"
	"taskdesk/pkg/mq"
	"taskdesk/pkg/otel"
	"taskdesk/pkg/outbox"
	redisclient "taskdesk/pkg/redis"
	"taskdesk/pkg/util"
)

func main() {
	env := pkgconfig.GetConfigEnv()
	log := logger.NewLogger(env)
	defer log.Sync()

	cfg, err := config.Load(env, pkgconfig.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		log.Fatal("Failed to load config", zap.String("env", env), zap.Error(err))
	}

	log.Info("Starting taskdesk api...",
		zap.String("env", env),
		zap.String("port", cfg.Server.Port),
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
	)

	shutdownTracer, err := otel.Init(cfg.Otel, log)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
		shutdownTracer = func() {}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	if err := db.Migrate(ctx, dbConn, log); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}

	// Redis 可选：未配置时关闭缓存、并发保护与登录限流
	rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, continuing without it", zap.Error(err))
		rdb = nil
	}

	adminRepo := repository.NewAdminRepository(dbConn, log)
	userRepo := repository.NewUserRepository(dbConn, log)
	taskRepo := repository.NewTaskRepository(dbConn, log)

	authOpts := []auth.Option{}
	userOpts := []user.Option{}
	if rdb != nil {
		guard := util.NewDeduper(rdb, cfg.Redis.GuardTTL, log)
		authOpts = append(authOpts,
			auth.WithGuard(guard),
			auth.WithFailureCounter(util.NewRetryCounter(rdb, cfg.Auth.FailureWindow)),
		)
		userOpts = append(userOpts,
			user.WithGuard(guard),
			user.WithCache(cache.NewUserCache(rdb, cfg.Redis.UserCacheTTL, log)),
		)
		log.Info("Redis features enabled", zap.String("addr", cfg.Redis.Addr))
	}

	authService := auth.NewService(adminRepo, cfg.JWT, cfg.Auth, log, authOpts...)
	userService := user.NewService(userRepo, log, userOpts...)
	taskService := task.NewService(taskRepo, userRepo, log)

	// Outbox：事件与业务写入同事务落库，发布由 dispatcher 负责
	outboxRepo := outbox.NewRepository(dbConn)
	dispatcherDone := make(chan struct{})
	var publisher *mq.Publisher
	if cfg.MQ.URL != "" {
		publisher, err = mq.NewPublisher(cfg.MQ.URL, cfg.Otel.ServiceName, log)
		if err != nil {
			log.Fatal("Failed to init publisher", zap.Error(err))
		}

		dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
			WithInterval(cfg.Outbox.Interval).
			WithBatchSize(cfg.Outbox.BatchSize).
			WithMaxRetries(cfg.Outbox.MaxRetries).
			WithBreaker(circuitbreaker.New(circuitbreaker.DefaultConfig()))
		go func() {
			defer close(dispatcherDone)
			dispatcher.Start(ctx)
		}()
		log.Info("Outbox dispatcher started", zap.Duration("interval", cfg.Outbox.Interval))
	} else {
		close(dispatcherDone)
		log.Warn("MQ_URL not set, domain events stay pending in the outbox")
	}

	deps := httpserver.Deps{
		AdminHandler:  handler.NewAdminHandler(authService, userService, log),
		TaskHandler:   handler.NewTaskHandler(taskService, log),
		OutboxHandler: handler.NewOutboxHandler(outbox.NewReplayService(outboxRepo, log), log),
		Verifier:      authService,
		DB:            dbConn,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Logger:        log,
	}
	if publisher != nil {
		deps.Broker = publisher
	}
	router := httpserver.NewRouter(deps)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down taskdesk api gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	<-dispatcherDone
	if publisher != nil {
		publisher.Close()
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn("Redis close error", zap.Error(err))
		}
	}
	dbConn.Close()
	shutdownTracer()

	log.Info("taskdesk api shutdown complete")
}
