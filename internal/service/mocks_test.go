package service_test

import (
	"context"
	"time"

	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/service"
	"triagehq.app/triage/internal/store"
)

type mockQueryStore struct {
	getByIDFn           func(ctx context.Context, id int64) (*model.Query, error)
	createFn            func(ctx context.Context, query *model.Query) error
	updateTagsFn        func(ctx context.Context, id int64, tags []string, primaryTag string) error
	updateSentimentFn   func(ctx context.Context, id int64, result model.SentimentResult) error
	updatePriorityFn    func(ctx context.Context, id int64, score float64, level model.PriorityLevel) error
	updateSpamFn        func(ctx context.Context, id int64, result model.SpamResult) error
	updateAssignmentFn  func(ctx context.Context, id int64, teamID, agentID *int64, status model.Status) error
	updateStatusFn      func(ctx context.Context, id int64, status model.Status) error
	setFirstResponseFn  func(ctx context.Context, id int64, at time.Time, minutes int) error
	setResolutionFn     func(ctx context.Context, id int64, minutes int) error
	markEscalatedFn      func(ctx context.Context, id int64, reason string, at time.Time) (bool, error)
	listEscalatableFn    func(ctx context.Context) ([]model.Query, error)
	countActiveByTeamFn  func(ctx context.Context, teamID int64) (int, error)
	countActiveByAgentFn func(ctx context.Context, agentID int64) (int, error)
	appendHistoryFn     func(ctx context.Context, entry *model.HistoryEntry) error
	listHistoryFn       func(ctx context.Context, queryID int64) ([]model.HistoryEntry, error)

	history []model.HistoryEntry
}

func (m *mockQueryStore) GetByID(ctx context.Context, id int64) (*model.Query, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &model.Query{ID: id, Status: model.StatusNew}, nil
}

func (m *mockQueryStore) Create(ctx context.Context, query *model.Query) error {
	if m.createFn != nil {
		return m.createFn(ctx, query)
	}
	if query.ID == 0 {
		query.ID = 1
	}
	return nil
}

func (m *mockQueryStore) UpdateTags(ctx context.Context, id int64, tags []string, primaryTag string) error {
	if m.updateTagsFn != nil {
		return m.updateTagsFn(ctx, id, tags, primaryTag)
	}
	return nil
}

func (m *mockQueryStore) UpdateSentiment(ctx context.Context, id int64, result model.SentimentResult) error {
	if m.updateSentimentFn != nil {
		return m.updateSentimentFn(ctx, id, result)
	}
	return nil
}

func (m *mockQueryStore) UpdatePriority(ctx context.Context, id int64, score float64, level model.PriorityLevel) error {
	if m.updatePriorityFn != nil {
		return m.updatePriorityFn(ctx, id, score, level)
	}
	return nil
}

func (m *mockQueryStore) UpdateSpam(ctx context.Context, id int64, result model.SpamResult) error {
	if m.updateSpamFn != nil {
		return m.updateSpamFn(ctx, id, result)
	}
	return nil
}

func (m *mockQueryStore) UpdateAssignment(ctx context.Context, id int64, teamID, agentID *int64, status model.Status) error {
	if m.updateAssignmentFn != nil {
		return m.updateAssignmentFn(ctx, id, teamID, agentID, status)
	}
	return nil
}

func (m *mockQueryStore) UpdateStatus(ctx context.Context, id int64, status model.Status) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockQueryStore) SetFirstResponse(ctx context.Context, id int64, at time.Time, minutes int) error {
	if m.setFirstResponseFn != nil {
		return m.setFirstResponseFn(ctx, id, at, minutes)
	}
	return nil
}

func (m *mockQueryStore) SetResolutionTime(ctx context.Context, id int64, minutes int) error {
	if m.setResolutionFn != nil {
		return m.setResolutionFn(ctx, id, minutes)
	}
	return nil
}

func (m *mockQueryStore) MarkEscalated(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	if m.markEscalatedFn != nil {
		return m.markEscalatedFn(ctx, id, reason, at)
	}
	return true, nil
}

func (m *mockQueryStore) ListEscalatable(ctx context.Context) ([]model.Query, error) {
	if m.listEscalatableFn != nil {
		return m.listEscalatableFn(ctx)
	}
	return nil, nil
}

func (m *mockQueryStore) CountActiveByTeam(ctx context.Context, teamID int64) (int, error) {
	if m.countActiveByTeamFn != nil {
		return m.countActiveByTeamFn(ctx, teamID)
	}
	return 0, nil
}

func (m *mockQueryStore) CountActiveByAgent(ctx context.Context, agentID int64) (int, error) {
	if m.countActiveByAgentFn != nil {
		return m.countActiveByAgentFn(ctx, agentID)
	}
	return 0, nil
}

func (m *mockQueryStore) AppendHistory(ctx context.Context, entry *model.HistoryEntry) error {
	if m.appendHistoryFn != nil {
		return m.appendHistoryFn(ctx, entry)
	}
	m.history = append(m.history, *entry)
	return nil
}

func (m *mockQueryStore) ListHistory(ctx context.Context, queryID int64) ([]model.HistoryEntry, error) {
	if m.listHistoryFn != nil {
		return m.listHistoryFn(ctx, queryID)
	}
	return m.history, nil
}

type mockTeamStore struct {
	getByIDFn          func(ctx context.Context, id int64) (*model.Team, error)
	listActiveFn       func(ctx context.Context) ([]model.Team, error)
	incrementQueriesFn func(ctx context.Context, id int64) error

	incrementedIDs []int64
}

func (m *mockTeamStore) GetByID(ctx context.Context, id int64) (*model.Team, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &model.Team{ID: id, IsActive: true}, nil
}

func (m *mockTeamStore) ListActive(ctx context.Context) ([]model.Team, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockTeamStore) IncrementTotalQueries(ctx context.Context, id int64) error {
	if m.incrementQueriesFn != nil {
		if err := m.incrementQueriesFn(ctx, id); err != nil {
			return err
		}
	}
	m.incrementedIDs = append(m.incrementedIDs, id)
	return nil
}

type mockAgentStore struct {
	getByIDFn          func(ctx context.Context, id int64) (*model.Agent, error)
	listActiveByTeamFn func(ctx context.Context, teamID int64) ([]model.Agent, error)

	assignedIDs []int64
	resolvedIDs []int64
}

func (m *mockAgentStore) GetByID(ctx context.Context, id int64) (*model.Agent, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &model.Agent{ID: id, IsActive: true}, nil
}

func (m *mockAgentStore) ListActiveByTeam(ctx context.Context, teamID int64) ([]model.Agent, error) {
	if m.listActiveByTeamFn != nil {
		return m.listActiveByTeamFn(ctx, teamID)
	}
	return nil, nil
}

func (m *mockAgentStore) IncrementTotalAssigned(_ context.Context, id int64) error {
	m.assignedIDs = append(m.assignedIDs, id)
	return nil
}

func (m *mockAgentStore) IncrementTotalResolved(_ context.Context, id int64) error {
	m.resolvedIDs = append(m.resolvedIDs, id)
	return nil
}

type mockBroker struct {
	enqueueFn func(ctx context.Context, job queue.Job) error

	enqueued []queue.Job
}

func (m *mockBroker) Enqueue(ctx context.Context, job queue.Job) error {
	if m.enqueueFn != nil {
		if err := m.enqueueFn(ctx, job); err != nil {
			return err
		}
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

// mockStores hands the suite's store mocks to transactional callbacks, so
// writes made inside a transaction land on the same capture fields the specs
// assert on.
type mockStores struct {
	queries *mockQueryStore
	teams   *mockTeamStore
	agents  *mockAgentStore
}

func (m *mockStores) Queries() store.QueryStore { return m.queries }
func (m *mockStores) Teams() store.TeamStore    { return m.teams }
func (m *mockStores) Agents() store.AgentStore  { return m.agents }

type mockTxRunner struct {
	stores   *mockStores
	beginErr error

	calls     int
	committed int
}

func (m *mockTxRunner) WithTx(_ context.Context, fn func(service.StoreProvider) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	m.calls++
	if err := fn(m.stores); err != nil {
		return err
	}
	m.committed++
	return nil
}
