package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"triagehq.app/triage/internal/model"
)

type agentStore struct {
	q Querier
}

func newAgentStore(q Querier) AgentStore {
	return &agentStore{q: q}
}

const agentColumns = `id, name, email, team_id, role, is_active,
	total_assigned, total_resolved, avg_response_minutes, created_at`

func (s *agentStore) GetByID(ctx context.Context, id int64) (*model.Agent, error) {
	row := s.q.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	agent, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return agent, nil
}

func (s *agentStore) ListActiveByTeam(ctx context.Context, teamID int64) ([]model.Agent, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+agentColumns+` FROM agents
		WHERE team_id = $1 AND is_active
		ORDER BY id`,
		teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []model.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

func (s *agentStore) IncrementTotalAssigned(ctx context.Context, id int64) error {
	return s.increment(ctx, `UPDATE agents SET total_assigned = total_assigned + 1 WHERE id = $1`, id)
}

func (s *agentStore) IncrementTotalResolved(ctx context.Context, id int64) error {
	return s.increment(ctx, `UPDATE agents SET total_resolved = total_resolved + 1 WHERE id = $1`, id)
}

func (s *agentStore) increment(ctx context.Context, sql string, id int64) error {
	tag, err := s.q.Exec(ctx, sql, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAgent(row pgx.Row) (*model.Agent, error) {
	var a model.Agent
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.TeamID, &a.Role, &a.IsActive,
		&a.TotalAssigned, &a.TotalResolved, &a.AvgResponseMinutes, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
