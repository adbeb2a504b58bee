package worker

import (
	"context"
	"log/slog"
	"time"

	"triagehq.app/triage/common/logger"
	"triagehq.app/triage/internal/service"
)

// Sweeper runs the escalation sweep on a fixed interval. One sweeper per
// deployment; sweeps never overlap because the loop is single-goroutine and
// the store's check-and-flag is atomic anyway.
type Sweeper struct {
	escalation service.EscalationService
	interval   time.Duration

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSweeper(escalation service.EscalationService, interval time.Duration) *Sweeper {
	return &Sweeper{
		escalation: escalation,
		interval:   interval,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

// Run blocks until Stop() is called or the context ends.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.worker.sweeper",
	})

	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "escalation sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "escalation sweeper stopping")
			return
		case <-ticker.C:
			if _, err := s.escalation.RunSweep(ctx); err != nil {
				slog.ErrorContext(ctx, "escalation sweep failed", "error", err)
			}
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}
