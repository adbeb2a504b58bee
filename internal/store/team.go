package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"triagehq.app/triage/internal/model"
)

type teamStore struct {
	q Querier
}

func newTeamStore(q Querier) TeamStore {
	return &teamStore{q: q}
}

const teamColumns = `id, name, is_active, handles_tags, handles_channels,
	handles_priorities, total_queries, avg_response_minutes, created_at`

func (s *teamStore) GetByID(ctx context.Context, id int64) (*model.Team, error) {
	row := s.q.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
	team, err := scanTeam(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return team, nil
}

func (s *teamStore) ListActive(ctx context.Context) ([]model.Team, error) {
	rows, err := s.q.Query(ctx, `SELECT `+teamColumns+` FROM teams WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *team)
	}
	return teams, rows.Err()
}

func (s *teamStore) IncrementTotalQueries(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `UPDATE teams SET total_queries = total_queries + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTeam(row pgx.Row) (*model.Team, error) {
	var t model.Team
	err := row.Scan(
		&t.ID, &t.Name, &t.IsActive, &t.HandlesTags, &t.HandlesChannels,
		&t.HandlesPriorities, &t.TotalQueries, &t.AvgResponseMinutes, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
