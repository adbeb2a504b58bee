// Package worker runs the consumer loops: one generic stage worker per queue,
// a stale-delivery reclaimer, and the periodic escalation sweeper.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"triagehq.app/triage/common/logger"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/store"
)

// Processor handles one job for its stage.
type Processor interface {
	Stage() queue.Stage
	Process(ctx context.Context, job queue.Job) error
}

type Config struct {
	MaxAttempts int
}

// Worker drives one stage queue: read a batch, process each job, then ack,
// requeue, or dead-letter it.
type Worker struct {
	broker    *queue.Broker
	consumer  *queue.Consumer
	processor Processor
	cfg       Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(broker *queue.Broker, consumer *queue.Consumer, processor Processor, cfg Config) *Worker {
	return &Worker{
		broker:    broker,
		consumer:  consumer,
		processor: processor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: fmt.Sprintf("triage.worker.%s", w.processor.Stage()),
		Stage:     logger.Ptr(string(w.processor.Stage())),
	})

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	jobs, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, job := range jobs {
		w.Handle(ctx, job)
	}

	return nil
}

// Handle runs one job end to end, including the ack/requeue/DLQ decision.
// Exported so the reclaimer can reuse it for reclaimed deliveries.
func (w *Worker) Handle(ctx context.Context, job queue.Job) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QueryID: logger.Ptr(job.QueryID),
		JobID:   logger.Ptr(job.ID),
	})

	err := w.processJobSafe(ctx, job)
	if err == nil {
		if ackErr := w.consumer.Ack(ctx, job); ackErr != nil {
			// The job completed; a lost ack just means the reclaimer sees it
			// again, which is safe because processors are idempotent.
			slog.WarnContext(ctx, "failed to ack job", "error", ackErr)
		}
		w.broker.MarkCompleted(ctx, job)
		return
	}

	slog.ErrorContext(ctx, "job processing failed",
		"error", err,
		"attempt", job.Attempt)
	w.handleFailedJob(ctx, job, err)
}

func (w *Worker) processJobSafe(ctx context.Context, job queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in job processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processor.Process(ctx, job)
}

func (w *Worker) handleFailedJob(ctx context.Context, job queue.Job, err error) {
	// A stale job referencing a missing query can never succeed; retrying it
	// only delays the DLQ.
	if errors.Is(err, store.ErrNotFound) {
		slog.ErrorContext(ctx, "job references missing query, sending to DLQ")
		if dlqErr := w.consumer.SendDLQ(ctx, job, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	if job.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"attempts", job.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, job, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	if requeueErr := w.consumer.Requeue(ctx, job, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue job", "error", requeueErr)
	}
}
