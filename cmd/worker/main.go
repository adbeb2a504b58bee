package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"triagehq.app/triage/common/id"
	"triagehq.app/triage/common/logger"
	"triagehq.app/triage/common/otel"
	"triagehq.app/triage/core/config"
	"triagehq.app/triage/core/db"
	"triagehq.app/triage/internal/notify"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/sentiment"
	"triagehq.app/triage/internal/service"
	"triagehq.app/triage/internal/store"
	"triagehq.app/triage/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "triage worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.Group,
		"consumer_name", cfg.Pipeline.Consumer)

	// Different node ID than the server so snowflake IDs never collide.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
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

	broker := queue.Connect(ctx, redisClient, brokerConfig(cfg.Pipeline))
	if broker.Health() == queue.Down {
		// The server degrades gracefully without a broker; a worker without
		// one has nothing to do.
		slog.ErrorContext(ctx, "broker unreachable, worker cannot run")
		os.Exit(1)
	}

	scorer, err := sentiment.NewFromConfig(cfg.Sentiment)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build sentiment scorer", "error", err)
		os.Exit(1)
	}

	var transport notify.Transport
	notifyType := notify.TypeEmail
	if cfg.Notify.SlackWebhookURL != "" {
		transport = notify.NewSlackTransport(cfg.Notify.SlackWebhookURL, cfg.Notify.Timeout)
		notifyType = notify.TypeSlack
	} else {
		transport = notify.NewLogTransport(slog.Default())
	}

	stores := store.NewStores(database.Pool())
	queries := stores.Queries()

	processors := []worker.Processor{
		worker.NewIntakeProcessor(queries, broker),
		worker.NewTaggingProcessor(queries),
		worker.NewSentimentProcessor(queries, scorer),
		worker.NewPriorityProcessor(queries),
		worker.NewSpamProcessor(queries),
		worker.NewNotifyProcessor(queries, stores.Agents(), transport, notifyType),
	}

	var workers []*worker.Worker
	var reclaimers []*worker.Reclaimer
	for _, proc := range processors {
		consumer, err := broker.Consumer(proc.Stage())
		if err != nil {
			slog.ErrorContext(ctx, "failed to create consumer",
				"stage", proc.Stage(),
				"error", err)
			os.Exit(1)
		}

		w := worker.New(broker, consumer, proc, worker.Config{
			MaxAttempts: cfg.Pipeline.MaxAttempts,
		})
		workers = append(workers, w)

		reclaimers = append(reclaimers, worker.NewReclaimer(redisClient, worker.ReclaimerConfig{
			Group:     cfg.Pipeline.Group,
			Consumer:  cfg.Pipeline.Consumer + "-reclaimer",
			MinIdle:   5 * time.Minute,
			Interval:  time.Minute,
			BatchSize: 10,
		}, w, consumer))
	}

	escalationSvc := service.NewEscalationService(queries, broker, slog.Default())
	sweeper := worker.NewSweeper(escalationSvc, cfg.Escalation.SweepInterval)

	errCh := make(chan error, len(workers)+len(reclaimers)+1)
	for _, w := range workers {
		go func() {
			errCh <- w.Run(ctx)
		}()
	}
	for _, r := range reclaimers {
		go func() {
			r.Run(ctx)
			errCh <- nil
		}()
	}
	go func() {
		sweeper.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running",
		"stages", len(workers))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		for _, r := range reclaimers {
			r.Stop()
		}
		for _, w := range workers {
			w.Stop()
		}
		close(done)
	}()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case <-done:
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
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
