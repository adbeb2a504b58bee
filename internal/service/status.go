package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"triagehq.app/triage/common/logger"
	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/store"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// allowedTransitions is the lifecycle machine. Work starts only after
// assignment, so new records cannot jump straight to in_progress. The
// escalated line behaves like an active state: escalated work can still be
// picked up and resolved. Closing is reachable from anywhere (spam closure,
// administrative close).
var allowedTransitions = map[model.Status][]model.Status{
	model.StatusNew:        {model.StatusAssigned, model.StatusClosed},
	model.StatusAssigned:   {model.StatusInProgress, model.StatusClosed},
	model.StatusInProgress: {model.StatusResolved, model.StatusClosed},
	model.StatusResolved:   {model.StatusClosed},
	model.StatusEscalated:  {model.StatusAssigned, model.StatusInProgress, model.StatusResolved, model.StatusClosed},
}

func transitionAllowed(from, to model.Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type StatusService interface {
	// Update applies one lifecycle transition with its side effects:
	// first-response stamping on the first in_progress, resolution accounting
	// on resolved, and a history entry either way.
	Update(ctx context.Context, queryID int64, newStatus model.Status, actor *string, note string) error
}

type statusService struct {
	tx      TxRunner
	queries store.QueryStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewStatusService(tx TxRunner, queries store.QueryStore, logger *slog.Logger) StatusService {
	if logger == nil {
		logger = slog.Default()
	}
	return &statusService{
		tx:      tx,
		queries: queries,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *statusService) Update(ctx context.Context, queryID int64, newStatus model.Status, actor *string, note string) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.service.status",
		QueryID:   logger.Ptr(queryID),
	})

	query, err := s.queries.GetByID(ctx, queryID)
	if err != nil {
		return fmt.Errorf("fetching query: %w", err)
	}

	if !transitionAllowed(query.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, query.Status, newStatus)
	}

	now := s.now().UTC()
	if note == "" {
		note = fmt.Sprintf("status %s -> %s", query.Status, newStatus)
	}

	// Status, timing fields, counters, and the audit entry commit together.
	err = s.tx.WithTx(ctx, func(stores StoreProvider) error {
		// First in_progress stamps the first response, at most once.
		if newStatus == model.StatusInProgress && query.FirstResponseAt == nil {
			minutes := int(now.Sub(query.ReceivedAt).Minutes())
			if err := stores.Queries().SetFirstResponse(ctx, queryID, now, minutes); err != nil {
				return fmt.Errorf("stamping first response: %w", err)
			}
		}

		if err := stores.Queries().UpdateStatus(ctx, queryID, newStatus); err != nil {
			return fmt.Errorf("updating status: %w", err)
		}

		if newStatus == model.StatusResolved {
			minutes := int(now.Sub(query.ReceivedAt).Minutes())
			if err := stores.Queries().SetResolutionTime(ctx, queryID, minutes); err != nil {
				return fmt.Errorf("recording resolution time: %w", err)
			}
			if query.AssignedAgentID != nil {
				if err := stores.Agents().IncrementTotalResolved(ctx, *query.AssignedAgentID); err != nil {
					return fmt.Errorf("incrementing agent resolutions: %w", err)
				}
			}
		}

		return stores.Queries().AppendHistory(ctx, &model.HistoryEntry{
			QueryID: queryID,
			Action:  "status_changed",
			Actor:   actor,
			Note:    note,
		})
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "status updated",
		"from", query.Status,
		"to", newStatus)
	return nil
}
