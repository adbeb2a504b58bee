// Package service holds the exposed pipeline operations: ingest, routing,
// status transitions, and the escalation sweep. Services depend on store
// interfaces and the broker enqueue surface only, so every operation is
// testable without Redis or Postgres.
package service

import (
	"context"

	"triagehq.app/triage/internal/queue"
)

// Enqueuer is the broker surface services need.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}
