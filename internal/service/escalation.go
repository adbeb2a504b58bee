package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"triagehq.app/triage/common/logger"
	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/store"
)

// escalationThresholds map a priority level to the maximum age before a
// still-open query is escalated.
var escalationThresholds = map[model.PriorityLevel]time.Duration{
	model.PriorityUrgent: time.Hour,
	model.PriorityHigh:   4 * time.Hour,
	model.PriorityMedium: 12 * time.Hour,
	model.PriorityLow:    24 * time.Hour,
}

const defaultEscalationThreshold = 24 * time.Hour

// EscalationThreshold returns the age limit for a priority level, defaulting
// to the low-priority window for unknown levels.
func EscalationThreshold(level model.PriorityLevel) time.Duration {
	if threshold, ok := escalationThresholds[level]; ok {
		return threshold
	}
	return defaultEscalationThreshold
}

// ShouldEscalate reports whether the query's age has crossed its priority
// threshold. Terminal and already-escalated queries never qualify.
func ShouldEscalate(query *model.Query, now time.Time) bool {
	if !query.Escalatable() {
		return false
	}
	return now.Sub(query.ReceivedAt) >= EscalationThreshold(query.PriorityLevel)
}

type EscalationService interface {
	// RunSweep scans open, non-escalated queries and escalates every one past
	// its threshold. Returns the IDs escalated this sweep. Per-record failures
	// are logged and skipped, never aborting the sweep.
	RunSweep(ctx context.Context) ([]int64, error)
}

type escalationService struct {
	queries store.QueryStore
	broker  Enqueuer
	logger  *slog.Logger
	now     func() time.Time
}

func NewEscalationService(queries store.QueryStore, broker Enqueuer, logger *slog.Logger) EscalationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &escalationService{
		queries: queries,
		broker:  broker,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *escalationService) RunSweep(ctx context.Context) ([]int64, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.service.escalation",
	})

	candidates, err := s.queries.ListEscalatable(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing escalation candidates: %w", err)
	}

	now := s.now().UTC()
	var escalated []int64

	for i := range candidates {
		query := &candidates[i]
		if !ShouldEscalate(query, now) {
			continue
		}

		id, err := s.escalate(ctx, query, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to escalate query",
				"query_id", query.ID,
				"error", err)
			continue
		}
		if id != 0 {
			escalated = append(escalated, id)
		}
	}

	if len(escalated) > 0 {
		s.logger.InfoContext(ctx, "escalation sweep finished",
			"scanned", len(candidates),
			"escalated", len(escalated))
	}
	return escalated, nil
}

func (s *escalationService) escalate(ctx context.Context, query *model.Query, now time.Time) (int64, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QueryID: logger.Ptr(query.ID),
	})

	threshold := EscalationThreshold(query.PriorityLevel)
	reason := fmt.Sprintf("no resolution within %s for %s priority", threshold, query.PriorityLevel)

	// Atomic check-and-flag: a concurrent sweep loses the race and skips.
	flagged, err := s.queries.MarkEscalated(ctx, query.ID, reason, now)
	if err != nil {
		return 0, fmt.Errorf("marking escalated: %w", err)
	}
	if !flagged {
		return 0, nil
	}

	if err := s.queries.AppendHistory(ctx, &model.HistoryEntry{
		QueryID: query.ID,
		Action:  "escalated",
		Note:    reason,
	}); err != nil {
		return 0, fmt.Errorf("appending history: %w", err)
	}

	// Notify the assigned team's members; an unassigned query escalates
	// silently.
	if query.AssignedTeamID != nil {
		err := s.broker.Enqueue(ctx, queue.Job{
			Stage:    queue.StageNotify,
			QueryID:  query.ID,
			Reason:   reason,
			Priority: queue.PriorityValue(query.PriorityLevel),
		})
		if err != nil {
			// Escalation already took effect; a lost notification is logged,
			// not rolled back.
			s.logger.WarnContext(ctx, "failed to enqueue escalation notification",
				"error", err)
		}
	}

	s.logger.InfoContext(ctx, "query escalated",
		"priority", query.PriorityLevel,
		"age", now.Sub(query.ReceivedAt).Round(time.Minute))
	return query.ID, nil
}
