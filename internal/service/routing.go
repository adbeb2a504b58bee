package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"triagehq.app/triage/common/logger"
	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/store"
)

// Team scoring weights: capability matches add, open workload subtracts.
const (
	teamTagWeight      = 10.0
	teamChannelWeight  = 8.0
	teamPriorityWeight = 5.0
	teamWorkloadWeight = 0.5
)

// Agent scoring weights.
const (
	agentWorkloadWeight  = 10.0
	agentResponseWeight  = 100.0
	specialistRoleBonus  = 5.0
	managerRoleBonus     = 3.0
)

var ErrAgentNotInTeam = errors.New("agent does not belong to team")

type RoutingResult struct {
	TeamID  *int64
	AgentID *int64
}

// Assigned reports whether a team was chosen.
func (r *RoutingResult) Assigned() bool {
	return r.TeamID != nil
}

type RoutingService interface {
	// AutoRouteAndAssign scores active teams and agents for the query and
	// assigns the winners. Every call re-evaluates from current state; it is
	// not memoized and will re-assign when called again.
	AutoRouteAndAssign(ctx context.Context, queryID int64, actor *string) (*RoutingResult, error)
	// ManualAssign bypasses scoring entirely.
	ManualAssign(ctx context.Context, queryID, teamID, agentID int64, actor string) error
}

type routingService struct {
	tx      TxRunner
	queries store.QueryStore
	teams   store.TeamStore
	agents  store.AgentStore
	logger  *slog.Logger
}

func NewRoutingService(tx TxRunner, queries store.QueryStore, teams store.TeamStore, agents store.AgentStore, logger *slog.Logger) RoutingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &routingService{
		tx:      tx,
		queries: queries,
		teams:   teams,
		agents:  agents,
		logger:  logger,
	}
}

func (s *routingService) AutoRouteAndAssign(ctx context.Context, queryID int64, actor *string) (*RoutingResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.service.routing",
		QueryID:   logger.Ptr(queryID),
	})

	query, err := s.queries.GetByID(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("fetching query: %w", err)
	}

	teams, err := s.teams.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}

	team, err := s.findBestTeam(ctx, query, teams)
	if err != nil {
		return nil, err
	}
	if team == nil {
		s.logger.InfoContext(ctx, "no team qualified, query stays unassigned")
		if err := s.queries.AppendHistory(ctx, &model.HistoryEntry{
			QueryID: queryID,
			Action:  "routing_skipped",
			Actor:   actor,
			Note:    "no matching team",
		}); err != nil {
			return nil, fmt.Errorf("appending history: %w", err)
		}
		return &RoutingResult{}, nil
	}

	agents, err := s.agents.ListActiveByTeam(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}

	agent, err := s.findBestAgent(ctx, agents)
	if err != nil {
		return nil, err
	}

	var agentID *int64
	note := fmt.Sprintf("auto-assigned to team %s", team.Name)
	if agent != nil {
		agentID = &agent.ID
		note = fmt.Sprintf("auto-assigned to team %s, agent %s", team.Name, agent.Name)
	} else {
		note += ", no available users"
	}

	if err := s.assign(ctx, queryID, team, agent, actor, note); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "query routed",
		"team_id", team.ID,
		"has_agent", agent != nil)

	return &RoutingResult{TeamID: &team.ID, AgentID: agentID}, nil
}

func (s *routingService) ManualAssign(ctx context.Context, queryID, teamID, agentID int64, actor string) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.service.routing",
		QueryID:   logger.Ptr(queryID),
		TeamID:    logger.Ptr(teamID),
		AgentID:   logger.Ptr(agentID),
	})

	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return fmt.Errorf("fetching team: %w", err)
	}

	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return fmt.Errorf("fetching agent: %w", err)
	}
	if agent.TeamID == nil || *agent.TeamID != teamID {
		return fmt.Errorf("%w: agent %d, team %d", ErrAgentNotInTeam, agentID, teamID)
	}

	note := fmt.Sprintf("manually assigned to team %s, agent %s", team.Name, agent.Name)
	if err := s.assign(ctx, queryID, team, agent, &actor, note); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "query manually assigned", "actor", actor)
	return nil
}

// assign applies the assignment, bumps stats, and records history in one
// transaction, so a failed counter or history write never leaves a half
// assigned record behind.
func (s *routingService) assign(ctx context.Context, queryID int64, team *model.Team, agent *model.Agent, actor *string, note string) error {
	var agentID *int64
	if agent != nil {
		agentID = &agent.ID
	}

	return s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Queries().UpdateAssignment(ctx, queryID, &team.ID, agentID, model.StatusAssigned); err != nil {
			return fmt.Errorf("updating assignment: %w", err)
		}

		if err := stores.Teams().IncrementTotalQueries(ctx, team.ID); err != nil {
			return fmt.Errorf("incrementing team stats: %w", err)
		}
		if agent != nil {
			if err := stores.Agents().IncrementTotalAssigned(ctx, agent.ID); err != nil {
				return fmt.Errorf("incrementing agent stats: %w", err)
			}
		}

		if err := stores.Queries().AppendHistory(ctx, &model.HistoryEntry{
			QueryID: queryID,
			Action:  "assigned",
			Actor:   actor,
			Note:    note,
		}); err != nil {
			return fmt.Errorf("appending history: %w", err)
		}
		return nil
	})
}

// findBestTeam scores every active team by capability match minus workload
// penalty. Strictly-greater comparison keeps the first team reaching the max
// on ties. No team above zero means no team is chosen.
func (s *routingService) findBestTeam(ctx context.Context, query *model.Query, teams []model.Team) (*model.Team, error) {
	var best *model.Team
	bestScore := 0.0

	for i := range teams {
		team := &teams[i]

		score := 0.0
		if team.HandlesTag(query.PrimaryTag) {
			score += teamTagWeight
		}
		if team.HandlesChannel(query.Channel) {
			score += teamChannelWeight
		}
		if team.HandlesPriority(query.PriorityLevel) {
			score += teamPriorityWeight
		}

		workload, err := s.queries.CountActiveByTeam(ctx, team.ID)
		if err != nil {
			return nil, fmt.Errorf("counting team workload: %w", err)
		}
		score -= teamWorkloadWeight * float64(workload)

		if score > bestScore {
			bestScore = score
			best = team
		}
	}

	return best, nil
}

// findBestAgent prefers idle agents with fast response history; specialists
// and managers get a flat bonus. The first agent in the roster is the
// starting candidate, so when nothing scores higher the first agent wins.
// Empty roster returns nil: team-only assignment.
func (s *routingService) findBestAgent(ctx context.Context, agents []model.Agent) (*model.Agent, error) {
	if len(agents) == 0 {
		return nil, nil
	}

	best := &agents[0]
	bestScore := 0.0
	scored := false

	for i := range agents {
		agent := &agents[i]

		workload, err := s.queries.CountActiveByAgent(ctx, agent.ID)
		if err != nil {
			return nil, fmt.Errorf("counting agent workload: %w", err)
		}

		score := -agentWorkloadWeight * float64(workload)
		if agent.AvgResponseMinutes > 0 {
			score += agentResponseWeight / agent.AvgResponseMinutes
		}
		switch agent.Role {
		case model.RoleSpecialist:
			score += specialistRoleBonus
		case model.RoleManager:
			score += managerRoleBonus
		}

		if !scored || score > bestScore {
			bestScore = score
			best = agent
			scored = true
		}
	}

	return best, nil
}
