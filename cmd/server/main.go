package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"triagehq.app/triage/common/id"
	"triagehq.app/triage/common/logger"
	"triagehq.app/triage/common/otel"
	"triagehq.app/triage/core/config"
	"triagehq.app/triage/core/db"
	"triagehq.app/triage/internal/http/handler"
	"triagehq.app/triage/internal/http/middleware"
	httprouter "triagehq.app/triage/internal/http/router"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/service"
	"triagehq.app/triage/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "triage server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// The broker stays Down when Redis is unreachable: ingestion still works
	// in degraded mode and /health reports it.
	broker := queue.Connect(ctx, redisClient, brokerConfig(cfg.Pipeline))
	slog.InfoContext(ctx, "broker initialized", "health", broker.Health().String())

	stores := store.NewStores(database.Pool())
	queries := stores.Queries()
	txRunner := service.NewTxRunner(database)

	ingestSvc := service.NewIngestService(txRunner, queries, broker, slog.Default())
	routingSvc := service.NewRoutingService(txRunner, queries, stores.Teams(), stores.Agents(), slog.Default())
	statusSvc := service.NewStatusService(txRunner, queries, slog.Default())
	escalationSvc := service.NewEscalationService(queries, broker, slog.Default())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router,
		handler.NewQueryHandler(ingestSvc, routingSvc, statusSvc, escalationSvc, queries),
		handler.NewHealthHandler(broker))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func brokerConfig(p config.PipelineConfig) queue.BrokerConfig {
	return queue.BrokerConfig{
		StreamPrefix:    p.StreamPrefix,
		Group:           p.Group,
		Consumer:        p.Consumer,
		DLQStream:       p.DLQStream,
		CompletedStream: p.CompletedStream,
		ConnectTimeout:  p.ConnectTimeout,
		ConnectRetries:  p.ConnectRetries,
		MaxAttempts:     p.MaxAttempts,
		RetryBaseDelay:  p.RetryBaseDelay,
		BatchSize:       p.BatchSize,
		Block:           p.Block,
	}
}
