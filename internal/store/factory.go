package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx both *pgxpool.Pool and pgx.Tx satisfy, so the
// same stores work inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Stores struct {
	q Querier
}

func NewStores(q Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Queries() QueryStore {
	return newQueryStore(s.q)
}

func (s *Stores) Teams() TeamStore {
	return newTeamStore(s.q)
}

func (s *Stores) Agents() AgentStore {
	return newAgentStore(s.q)
}
