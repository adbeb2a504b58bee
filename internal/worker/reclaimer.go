package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"triagehq.app/triage/common/logger"
	"triagehq.app/triage/internal/queue"
)

type ReclaimerConfig struct {
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// Reclaimer periodically reclaims stale pending deliveries for one stage.
// This handles the crash recovery scenario where a worker dies after
// XREADGROUP but before XACK.
type Reclaimer struct {
	client *redis.Client
	cfg    ReclaimerConfig
	worker *Worker
	stream string
	stage  queue.Stage

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewReclaimer(client *redis.Client, cfg ReclaimerConfig, worker *Worker, consumer *queue.Consumer) *Reclaimer {
	return &Reclaimer{
		client: client,
		cfg:    cfg,
		worker: worker,
		stream: consumer.Stream(),
		stage:  consumer.Stage(),
		stopCh: make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the reclaimer loop. Blocks until Stop() is called.
func (r *Reclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.worker.reclaimer",
		Stage:     logger.Ptr(string(r.stage)),
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"stream", r.stream)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if err := r.reclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

// Stop signals the reclaimer to stop gracefully.
func (r *Reclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

func (r *Reclaimer) reclaimOnce(ctx context.Context) error {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("xpending: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "found stale pending jobs", "count", len(pending))

	for _, p := range pending {
		if err := r.reclaimJob(ctx, p); err != nil {
			slog.ErrorContext(ctx, "failed to reclaim job",
				"error", err,
				"job_id", p.ID,
				"original_consumer", p.Consumer,
				"idle_time", p.Idle)
			// Continue with other jobs
		}
	}

	return nil
}

func (r *Reclaimer) reclaimJob(ctx context.Context, pending redis.XPendingExt) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID: logger.Ptr(pending.ID),
	})

	slog.InfoContext(ctx, "reclaiming stale job",
		"original_consumer", pending.Consumer,
		"idle_time", pending.Idle,
		"delivery_count", pending.RetryCount)

	messages, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: []string{pending.ID},
	}).Result()
	if err != nil {
		return fmt.Errorf("xclaim: %w", err)
	}

	if len(messages) == 0 {
		slog.DebugContext(ctx, "job already reclaimed by another worker")
		return nil
	}

	job, err := queue.ParseJob(r.stage, messages[0])
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse reclaimed job, acknowledging to prevent loop",
			"error", err)
		_ = r.client.XAck(ctx, r.stream, r.cfg.Group, pending.ID).Err()
		return nil
	}

	start := time.Now()
	r.worker.Handle(ctx, job)
	slog.InfoContext(ctx, "reclaimed job handled",
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}
