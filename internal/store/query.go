package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"triagehq.app/triage/common/id"
	"triagehq.app/triage/internal/model"
)

type queryStore struct {
	q Querier
}

func newQueryStore(q Querier) QueryStore {
	return &queryStore{q: q}
}

const queryColumns = `id, channel, received_at, created_at, subject, content,
	sender_name, sender_email, sender_id, metadata,
	tags, primary_tag, sentiment_score, sentiment_label,
	spam_score, spam_confidence, is_spam,
	priority_score, priority_level,
	assigned_team_id, assigned_agent_id, status,
	escalated, escalated_at, escalation_reason,
	first_response_at, response_time_minutes, resolution_time_minutes`

func (s *queryStore) GetByID(ctx context.Context, qid int64) (*model.Query, error) {
	row := s.q.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = $1`, qid)
	query, err := scanQuery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return query, nil
}

func (s *queryStore) Create(ctx context.Context, query *model.Query) error {
	if query.ID == 0 {
		query.ID = id.New()
	}
	if query.CreatedAt.IsZero() {
		query.CreatedAt = time.Now().UTC()
	}
	if query.ReceivedAt.IsZero() {
		query.ReceivedAt = query.CreatedAt
	}
	if query.Status == "" {
		query.Status = model.StatusNew
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO queries (
			id, channel, received_at, created_at, subject, content,
			sender_name, sender_email, sender_id, metadata, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		query.ID, query.Channel, query.ReceivedAt, query.CreatedAt,
		query.Subject, query.Content,
		query.SenderName, query.SenderEmail, query.SenderID, query.Metadata,
		query.Status)
	return err
}

func (s *queryStore) UpdateTags(ctx context.Context, qid int64, tags []string, primaryTag string) error {
	return s.exec(ctx, `UPDATE queries SET tags = $2, primary_tag = $3 WHERE id = $1`,
		qid, tags, primaryTag)
}

func (s *queryStore) UpdateSentiment(ctx context.Context, qid int64, result model.SentimentResult) error {
	return s.exec(ctx, `UPDATE queries SET sentiment_score = $2, sentiment_label = $3 WHERE id = $1`,
		qid, result.Score, result.Label)
}

func (s *queryStore) UpdatePriority(ctx context.Context, qid int64, score float64, level model.PriorityLevel) error {
	return s.exec(ctx, `UPDATE queries SET priority_score = $2, priority_level = $3 WHERE id = $1`,
		qid, score, level)
}

func (s *queryStore) UpdateSpam(ctx context.Context, qid int64, result model.SpamResult) error {
	return s.exec(ctx, `UPDATE queries SET spam_score = $2, spam_confidence = $3, is_spam = $4 WHERE id = $1`,
		qid, result.Score, result.Confidence, result.IsSpam)
}

func (s *queryStore) UpdateAssignment(ctx context.Context, qid int64, teamID, agentID *int64, status model.Status) error {
	return s.exec(ctx, `UPDATE queries SET assigned_team_id = $2, assigned_agent_id = $3, status = $4 WHERE id = $1`,
		qid, teamID, agentID, status)
}

func (s *queryStore) UpdateStatus(ctx context.Context, qid int64, status model.Status) error {
	return s.exec(ctx, `UPDATE queries SET status = $2 WHERE id = $1`, qid, status)
}

func (s *queryStore) SetFirstResponse(ctx context.Context, qid int64, at time.Time, minutes int) error {
	// Stamped at most once: a second in_progress transition is a no-op here.
	return s.exec(ctx, `
		UPDATE queries SET first_response_at = $2, response_time_minutes = $3
		WHERE id = $1 AND first_response_at IS NULL`,
		qid, at, minutes)
}

func (s *queryStore) SetResolutionTime(ctx context.Context, qid int64, minutes int) error {
	return s.exec(ctx, `UPDATE queries SET resolution_time_minutes = $2 WHERE id = $1`,
		qid, minutes)
}

func (s *queryStore) MarkEscalated(ctx context.Context, qid int64, reason string, at time.Time) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE queries
		SET escalated = true, escalated_at = $2, escalation_reason = $3, status = $4
		WHERE id = $1
		  AND escalated = false
		  AND status IN ('new', 'assigned', 'in_progress')`,
		qid, at, reason, model.StatusEscalated)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *queryStore) ListEscalatable(ctx context.Context) ([]model.Query, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+queryColumns+`
		FROM queries
		WHERE escalated = false
		  AND status IN ('new', 'assigned', 'in_progress')
		ORDER BY received_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []model.Query
	for rows.Next() {
		query, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, *query)
	}
	return queries, rows.Err()
}

func (s *queryStore) CountActiveByTeam(ctx context.Context, teamID int64) (int, error) {
	// Workload counts only records an agent is on the hook for.
	var count int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM queries
		WHERE assigned_team_id = $1 AND status IN ('assigned', 'in_progress')`,
		teamID).Scan(&count)
	return count, err
}

func (s *queryStore) CountActiveByAgent(ctx context.Context, agentID int64) (int, error) {
	var count int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM queries
		WHERE assigned_agent_id = $1 AND status IN ('assigned', 'in_progress')`,
		agentID).Scan(&count)
	return count, err
}

func (s *queryStore) AppendHistory(ctx context.Context, entry *model.HistoryEntry) error {
	if entry.ID == 0 {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO query_history (id, query_id, action, actor, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.QueryID, entry.Action, entry.Actor, entry.Note, entry.CreatedAt)
	return err
}

func (s *queryStore) ListHistory(ctx context.Context, queryID int64) ([]model.HistoryEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, query_id, action, actor, note, created_at
		FROM query_history
		WHERE query_id = $1
		ORDER BY created_at, id`,
		queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.QueryID, &e.Action, &e.Actor, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *queryStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanQuery(row pgx.Row) (*model.Query, error) {
	var q model.Query
	var sentimentScore *float64
	var sentimentLabel *model.SentimentLabel
	var spamScore *int
	var spamConfidence *float64
	var isSpam *bool

	err := row.Scan(
		&q.ID, &q.Channel, &q.ReceivedAt, &q.CreatedAt, &q.Subject, &q.Content,
		&q.SenderName, &q.SenderEmail, &q.SenderID, &q.Metadata,
		&q.Tags, &q.PrimaryTag, &sentimentScore, &sentimentLabel,
		&spamScore, &spamConfidence, &isSpam,
		&q.PriorityScore, &q.PriorityLevel,
		&q.AssignedTeamID, &q.AssignedAgentID, &q.Status,
		&q.Escalated, &q.EscalatedAt, &q.EscalationReason,
		&q.FirstResponseAt, &q.ResponseTimeMinutes, &q.ResolutionTimeMinutes,
	)
	if err != nil {
		return nil, err
	}

	if sentimentScore != nil && sentimentLabel != nil {
		q.Sentiment = &model.SentimentResult{Score: *sentimentScore, Label: *sentimentLabel}
	}
	if spamScore != nil && spamConfidence != nil && isSpam != nil {
		q.Spam = &model.SpamResult{Score: *spamScore, Confidence: *spamConfidence, IsSpam: *isSpam}
	}
	return &q, nil
}
