package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"triagehq.app/triage/common/logger"
)

// Consumer reads one stage stream through a consumer group.
type Consumer struct {
	client *redis.Client
	cfg    BrokerConfig
	stage  Stage
	stream string
}

func newConsumer(client *redis.Client, cfg BrokerConfig, stage Stage) (*Consumer, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("invalid stage %q", stage)
	}

	c := &Consumer{
		client: client,
		cfg:    cfg,
		stage:  stage,
		stream: StreamName(cfg.StreamPrefix, stage),
	}

	if err := c.ensureGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}

	return c, nil
}

func (c *Consumer) Stage() Stage {
	return c.stage
}

func (c *Consumer) Stream() string {
	return c.stream
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	// Consumer groups are just readers, messages live in the stream itself.
	// Starting from "0" instead of "$" means we don't lose messages that
	// arrived while no group existed.
	if err := c.client.XGroupCreateMkStream(ctx, c.stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read fetches a batch of new jobs. Unparseable entries are acked and skipped
// so they cannot wedge the stream.
func (c *Consumer) Read(ctx context.Context) ([]Job, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.queue.consumer",
		Stage:     logger.Ptr(string(c.stage)),
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// > = new messages not yet delivered to anyone. Unacked messages are
		// handled by the reclaimer on a separate goroutine.
		Streams: []string{c.stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Job{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var jobs []Job
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, parseErr := ParseJob(c.stage, msg)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse job",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.stream)
				_ = c.Ack(ctx, Job{ID: msg.ID, Raw: msg})
				continue
			}
			jobs = append(jobs, parsed)
		}
	}

	if len(jobs) > 0 {
		slog.DebugContext(ctx, "read jobs from stream",
			"count", len(jobs),
			"stream", c.stream,
			"consumer", c.cfg.Consumer)
	}

	return jobs, nil
}

func (c *Consumer) Ack(ctx context.Context, job Job) error {
	if err := c.client.XAck(ctx, c.stream, c.cfg.Group, job.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.stream, err)
	}
	return nil
}

// Requeue acks the failed delivery and re-adds the job with an incremented
// attempt count after an exponential per-attempt delay (2s, 4s, 8s with the
// default base).
func (c *Consumer) Requeue(ctx context.Context, job Job, errMsg string) error {
	nextAttempt := job.Attempt + 1

	if err := c.Ack(ctx, job); err != nil {
		return fmt.Errorf("acking failed job for requeue: %w", err)
	}

	values := jobValues(job, nextAttempt)
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	delay := c.backoff(job.Attempt)
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "job requeued for retry",
		"stage", c.stage,
		"query_id", job.QueryID,
		"next_attempt", nextAttempt,
		"delay", delay,
		"reason", errMsg)
	return nil
}

func (c *Consumer) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := c.cfg.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// SendDLQ acks the job and moves it to the dead-letter stream, retained for a
// bounded window for operator inspection.
func (c *Consumer) SendDLQ(ctx context.Context, job Job, errMsg string) error {
	if err := c.Ack(ctx, job); err != nil {
		return fmt.Errorf("acking failed job for dlq: %w", err)
	}

	values := jobValues(job, job.Attempt)
	values["error"] = errMsg
	values["failed_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	minID := fmt.Sprintf("%d-0", time.Now().Add(-dlqRetention).UnixMilli())
	if err := c.client.XTrimMinID(ctx, c.cfg.DLQStream, minID).Err(); err != nil {
		slog.WarnContext(ctx, "failed to trim dlq stream", "error", err)
	}

	slog.ErrorContext(ctx, "job sent to DLQ",
		"stage", c.stage,
		"query_id", job.QueryID,
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

// ParseJob decodes a stream entry into a Job for the given stage.
func ParseJob(stage Stage, msg redis.XMessage) (Job, error) {
	queryID, err := parseInt64(msg.Values, "query_id")
	if err != nil {
		return Job{}, err
	}

	priority, err := parseOptionalInt(msg.Values, "priority")
	if err != nil {
		return Job{}, err
	}
	if priority == 0 {
		priority = PriorityValue("")
	}

	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Job{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	return Job{
		ID:       msg.ID,
		Stage:    stage,
		QueryID:  queryID,
		Channel:  optionalString(msg.Values, "channel"),
		Subject:  optionalString(msg.Values, "subject"),
		Content:  optionalString(msg.Values, "content"),
		Sender:   optionalString(msg.Values, "sender"),
		Reason:   optionalString(msg.Values, "reason"),
		Priority: priority,
		Attempt:  attempt,
		Raw:      msg,
	}, nil
}

func jobValues(job Job, attempt int) map[string]any {
	values := map[string]any{
		"stage":    string(job.Stage),
		"query_id": job.QueryID,
		"priority": job.Priority,
		"attempt":  attempt,
	}
	if job.Channel != "" {
		values["channel"] = job.Channel
	}
	if job.Subject != "" {
		values["subject"] = job.Subject
	}
	if job.Content != "" {
		values["content"] = job.Content
	}
	if job.Sender != "" {
		values["sender"] = job.Sender
	}
	if job.Reason != "" {
		values["reason"] = job.Reason
	}
	return values
}

func parseInt64(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func optionalString(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}
