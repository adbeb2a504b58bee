package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBrokerUnavailable is returned by every queue operation while the broker
// is Down. Callers must treat it as a permanent-for-now condition, not a
// retry target.
var ErrBrokerUnavailable = errors.New("broker unavailable")

type Health int

const (
	Down Health = iota
	Up
)

func (h Health) String() string {
	if h == Up {
		return "up"
	}
	return "down"
}

type BrokerConfig struct {
	StreamPrefix    string
	Group           string
	Consumer        string
	DLQStream       string
	CompletedStream string

	ConnectTimeout time.Duration // per connect attempt
	ConnectRetries int           // bounded; after exhaustion the broker stays Down
	MaxAttempts    int
	RetryBaseDelay time.Duration // doubles per attempt: 2s, 4s, 8s
	BatchSize      int64
	Block          time.Duration
}

const (
	reconnectBaseDelay = 250 * time.Millisecond
	reconnectMaxDelay  = 3 * time.Second

	// Retention windows for operator inspection.
	dlqRetention       = 24 * time.Hour
	completedRetention = time.Hour
)

// Broker wraps a best-effort Redis Streams queue. If Redis is unreachable at
// startup it enters Down state: enqueues fail fast with ErrBrokerUnavailable
// and no consumers are constructed, so partially-initialized queues never
// issue ambiguous errors.
type Broker struct {
	client *redis.Client
	cfg    BrokerConfig
	up     atomic.Bool
}

// Connect builds a Broker and verifies connectivity with a bounded number of
// ping attempts under increasing backoff. A Broker is always returned; check
// Health before assuming queue operations will succeed.
func Connect(ctx context.Context, client *redis.Client, cfg BrokerConfig) *Broker {
	b := &Broker{client: client, cfg: cfg}

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}

	delay := reconnectBaseDelay
	for attempt := 1; attempt <= retries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			b.up.Store(true)
			slog.InfoContext(ctx, "broker connected", "attempt", attempt)
			return b
		}

		slog.WarnContext(ctx, "broker connect failed",
			"attempt", attempt,
			"retries", retries,
			"error", err)

		if attempt < retries {
			select {
			case <-ctx.Done():
				return b
			case <-time.After(delay):
			}
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
		}
	}

	slog.ErrorContext(ctx, "broker unreachable, staying down for process lifetime")
	return b
}

func (b *Broker) Health() Health {
	if b.up.Load() {
		return Up
	}
	return Down
}

// Enqueue appends a job to its stage stream. Fails fast while Down.
func (b *Broker) Enqueue(ctx context.Context, job Job) error {
	if !b.up.Load() {
		return ErrBrokerUnavailable
	}
	if !job.Stage.Valid() {
		return fmt.Errorf("invalid stage %q", job.Stage)
	}

	attempt := job.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName(b.cfg.StreamPrefix, job.Stage),
		Values: jobValues(job, attempt),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue %s job: %w", job.Stage, err)
	}

	slog.InfoContext(ctx, "enqueued job",
		"stage", job.Stage,
		"query_id", job.QueryID,
		"priority", job.Priority,
		"attempt", attempt)
	return nil
}

// Consumer constructs a stage consumer. No consumer objects are handed out
// while the broker is Down.
func (b *Broker) Consumer(stage Stage) (*Consumer, error) {
	if !b.up.Load() {
		return nil, ErrBrokerUnavailable
	}
	return newConsumer(b.client, b.cfg, stage)
}

// Client exposes the underlying connection for the reclaimer.
func (b *Broker) Client() *redis.Client {
	return b.client
}

// MarkCompleted records a finished job on the completed audit stream and
// trims entries older than the retention window.
func (b *Broker) MarkCompleted(ctx context.Context, job Job) {
	if !b.up.Load() {
		return
	}
	values := jobValues(job, job.Attempt)
	values["completed_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.cfg.CompletedStream,
		Values: values,
	}).Err(); err != nil {
		slog.WarnContext(ctx, "failed to record completed job", "error", err)
		return
	}

	minID := fmt.Sprintf("%d-0", time.Now().Add(-completedRetention).UnixMilli())
	if err := b.client.XTrimMinID(ctx, b.cfg.CompletedStream, minID).Err(); err != nil {
		slog.WarnContext(ctx, "failed to trim completed stream", "error", err)
	}
}
