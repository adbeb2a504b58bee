package worker

import (
	"context"
	"fmt"
	"log/slog"

	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/store"
)

// Enqueuer mirrors the broker enqueue surface so processors can be tested
// without Redis.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// IntakeProcessor fans one intake job out into the four classification
// stages. Sub-jobs are order-independent; each classification worker loads
// and saves the query on its own. Any enqueue failure fails the whole intake
// job so the broker's retry policy covers the fan-out.
type IntakeProcessor struct {
	queries store.QueryStore
	broker  Enqueuer
}

func NewIntakeProcessor(queries store.QueryStore, broker Enqueuer) *IntakeProcessor {
	return &IntakeProcessor{queries: queries, broker: broker}
}

func (p *IntakeProcessor) Stage() queue.Stage {
	return queue.StageIntake
}

func (p *IntakeProcessor) Process(ctx context.Context, job queue.Job) error {
	query, err := p.queries.GetByID(ctx, job.QueryID)
	if err != nil {
		return fmt.Errorf("fetching query: %w", err)
	}

	for _, stage := range queue.ClassificationStages {
		if err := p.broker.Enqueue(ctx, queue.Job{
			Stage:    stage,
			QueryID:  query.ID,
			Channel:  string(query.Channel),
			Subject:  query.Subject,
			Content:  query.Content,
			Sender:   query.SenderEmail,
			Priority: queue.PriorityValue(query.PriorityLevel),
		}); err != nil {
			return fmt.Errorf("enqueueing %s job: %w", stage, err)
		}
	}

	slog.InfoContext(ctx, "query fanned out to classification stages",
		"stages", len(queue.ClassificationStages))
	return nil
}
