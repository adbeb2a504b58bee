package store

import (
	"context"
	"errors"
	"time"

	"triagehq.app/triage/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// QueryStore defines the contract for support query data access. Updates are
// field-scoped: each classification concern writes only its own columns, so
// workers running concurrently never clobber each other's results.
type QueryStore interface {
	GetByID(ctx context.Context, id int64) (*model.Query, error)
	Create(ctx context.Context, query *model.Query) error

	UpdateTags(ctx context.Context, id int64, tags []string, primaryTag string) error
	UpdateSentiment(ctx context.Context, id int64, result model.SentimentResult) error
	UpdatePriority(ctx context.Context, id int64, score float64, level model.PriorityLevel) error
	UpdateSpam(ctx context.Context, id int64, result model.SpamResult) error

	UpdateAssignment(ctx context.Context, id int64, teamID, agentID *int64, status model.Status) error
	UpdateStatus(ctx context.Context, id int64, status model.Status) error
	SetFirstResponse(ctx context.Context, id int64, at time.Time, minutes int) error
	SetResolutionTime(ctx context.Context, id int64, minutes int) error

	// MarkEscalated flips the escalation flag atomically. It reports false
	// when the query was already escalated or terminal, so concurrent sweeps
	// cannot double-escalate.
	MarkEscalated(ctx context.Context, id int64, reason string, at time.Time) (bool, error)
	ListEscalatable(ctx context.Context) ([]model.Query, error)

	CountActiveByTeam(ctx context.Context, teamID int64) (int, error)
	CountActiveByAgent(ctx context.Context, agentID int64) (int, error)

	AppendHistory(ctx context.Context, entry *model.HistoryEntry) error
	ListHistory(ctx context.Context, queryID int64) ([]model.HistoryEntry, error)
}

// TeamStore defines the contract for team data access
type TeamStore interface {
	GetByID(ctx context.Context, id int64) (*model.Team, error)
	ListActive(ctx context.Context) ([]model.Team, error)
	IncrementTotalQueries(ctx context.Context, id int64) error
}

// AgentStore defines the contract for agent data access
type AgentStore interface {
	GetByID(ctx context.Context, id int64) (*model.Agent, error)
	ListActiveByTeam(ctx context.Context, teamID int64) ([]model.Agent, error)
	IncrementTotalAssigned(ctx context.Context, id int64) error
	IncrementTotalResolved(ctx context.Context, id int64) error
}
