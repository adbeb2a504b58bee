package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"triagehq.app/triage/common/logger"
	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/notify"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/store"
)

// NotifyProcessor delivers escalation notifications to the assigned team's
// active members. The pipeline decides recipients and content here; delivery
// mechanics belong to the transport.
type NotifyProcessor struct {
	queries    store.QueryStore
	agents     store.AgentStore
	transport  notify.Transport
	notifyType notify.Type
}

func NewNotifyProcessor(queries store.QueryStore, agents store.AgentStore, transport notify.Transport, notifyType notify.Type) *NotifyProcessor {
	return &NotifyProcessor{
		queries:    queries,
		agents:     agents,
		transport:  transport,
		notifyType: notifyType,
	}
}

func (p *NotifyProcessor) Stage() queue.Stage {
	return queue.StageNotify
}

func (p *NotifyProcessor) Process(ctx context.Context, job queue.Job) error {
	query, err := p.queries.GetByID(ctx, job.QueryID)
	if err != nil {
		return fmt.Errorf("fetching query: %w", err)
	}

	if query.AssignedTeamID == nil {
		slog.InfoContext(ctx, "query unassigned, nothing to notify")
		return nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TeamID: query.AssignedTeamID,
	})

	members, err := p.agents.ListActiveByTeam(ctx, *query.AssignedTeamID)
	if err != nil {
		return fmt.Errorf("listing team members: %w", err)
	}
	if len(members) == 0 {
		slog.InfoContext(ctx, "team has no active members, nothing to notify")
		return nil
	}

	reason := job.Reason
	if reason == "" {
		reason = "query escalated"
	}

	var sendErrs []error
	sent := 0
	for _, member := range members {
		err := p.transport.Send(ctx, notify.Notification{
			Type:      p.notifyType,
			Recipient: member.Email,
			Subject:   fmt.Sprintf("Escalated: %s", query.Subject),
			Body:      fmt.Sprintf("Query %d (%s priority): %s", query.ID, query.PriorityLevel, reason),
		})
		if err != nil {
			sendErrs = append(sendErrs, fmt.Errorf("notifying %s: %w", member.Email, err))
			continue
		}
		sent++
	}

	if len(sendErrs) > 0 {
		// Partial delivery fails the job so the broker retries; transports
		// are expected to tolerate duplicate notifications.
		return errors.Join(sendErrs...)
	}

	if err := p.queries.AppendHistory(ctx, &model.HistoryEntry{
		QueryID: query.ID,
		Action:  "notified",
		Note:    fmt.Sprintf("notified %d team members: %s", sent, reason),
	}); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}

	slog.InfoContext(ctx, "escalation notifications sent", "recipients", sent)
	return nil
}
