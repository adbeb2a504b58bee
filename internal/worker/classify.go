package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"triagehq.app/triage/internal/classifier"
	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/sentiment"
	"triagehq.app/triage/internal/store"
)

// The four classification processors share one shape: load the query, run the
// pure function, persist only the fields this stage owns, append one history
// entry. Re-running any of them on the same record reproduces the same
// sub-fields.

type TaggingProcessor struct {
	queries store.QueryStore
}

func NewTaggingProcessor(queries store.QueryStore) *TaggingProcessor {
	return &TaggingProcessor{queries: queries}
}

func (p *TaggingProcessor) Stage() queue.Stage {
	return queue.StageTagging
}

func (p *TaggingProcessor) Process(ctx context.Context, job queue.Job) error {
	query, err := p.queries.GetByID(ctx, job.QueryID)
	if err != nil {
		return fmt.Errorf("fetching query: %w", err)
	}

	result := classifier.ClassifyTags(query.Subject, query.Content)

	if err := p.queries.UpdateTags(ctx, query.ID, result.Tags, result.PrimaryTag); err != nil {
		return fmt.Errorf("saving tags: %w", err)
	}

	if err := p.queries.AppendHistory(ctx, &model.HistoryEntry{
		QueryID: query.ID,
		Action:  "tagged",
		Note:    fmt.Sprintf("tags [%s], primary %s", strings.Join(result.Tags, " "), result.PrimaryTag),
	}); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}

	slog.InfoContext(ctx, "query tagged",
		"tags", result.Tags,
		"primary_tag", result.PrimaryTag)
	return nil
}

type SentimentProcessor struct {
	queries store.QueryStore
	scorer  sentiment.Scorer
}

func NewSentimentProcessor(queries store.QueryStore, scorer sentiment.Scorer) *SentimentProcessor {
	return &SentimentProcessor{queries: queries, scorer: scorer}
}

func (p *SentimentProcessor) Stage() queue.Stage {
	return queue.StageSentiment
}

func (p *SentimentProcessor) Process(ctx context.Context, job queue.Job) error {
	query, err := p.queries.GetByID(ctx, job.QueryID)
	if err != nil {
		return fmt.Errorf("fetching query: %w", err)
	}

	result, err := p.scorer.Score(ctx, query.Subject+" "+query.Content)
	if err != nil {
		return fmt.Errorf("scoring sentiment: %w", err)
	}

	if err := p.queries.UpdateSentiment(ctx, query.ID, model.SentimentResult{
		Score: result.Score,
		Label: result.Label,
	}); err != nil {
		return fmt.Errorf("saving sentiment: %w", err)
	}

	if err := p.queries.AppendHistory(ctx, &model.HistoryEntry{
		QueryID: query.ID,
		Action:  "sentiment_scored",
		Note:    fmt.Sprintf("score %.1f, label %s", result.Score, result.Label),
	}); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}

	slog.InfoContext(ctx, "sentiment scored",
		"score", result.Score,
		"label", result.Label)
	return nil
}

type PriorityProcessor struct {
	queries store.QueryStore
}

func NewPriorityProcessor(queries store.QueryStore) *PriorityProcessor {
	return &PriorityProcessor{queries: queries}
}

func (p *PriorityProcessor) Stage() queue.Stage {
	return queue.StagePriority
}

func (p *PriorityProcessor) Process(ctx context.Context, job queue.Job) error {
	query, err := p.queries.GetByID(ctx, job.QueryID)
	if err != nil {
		return fmt.Errorf("fetching query: %w", err)
	}

	// Tag fields may still be empty when this runs before the tagging worker;
	// the score is then computed without tag adjustments, which is fine since
	// no ordering is guaranteed between classification stages.
	result := classifier.ScorePriority(query.Subject, query.Content, query.Channel, query.PrimaryTag, query.Tags)

	if err := p.queries.UpdatePriority(ctx, query.ID, result.Score, result.Level); err != nil {
		return fmt.Errorf("saving priority: %w", err)
	}

	if err := p.queries.AppendHistory(ctx, &model.HistoryEntry{
		QueryID: query.ID,
		Action:  "prioritized",
		Note:    fmt.Sprintf("score %.0f, level %s", result.Score, result.Level),
	}); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}

	slog.InfoContext(ctx, "priority scored",
		"score", result.Score,
		"level", result.Level)
	return nil
}

type SpamProcessor struct {
	queries store.QueryStore
}

func NewSpamProcessor(queries store.QueryStore) *SpamProcessor {
	return &SpamProcessor{queries: queries}
}

func (p *SpamProcessor) Stage() queue.Stage {
	return queue.StageSpam
}

func (p *SpamProcessor) Process(ctx context.Context, job queue.Job) error {
	query, err := p.queries.GetByID(ctx, job.QueryID)
	if err != nil {
		return fmt.Errorf("fetching query: %w", err)
	}

	result := classifier.ScoreSpam(query.Content)

	if err := p.queries.UpdateSpam(ctx, query.ID, result); err != nil {
		return fmt.Errorf("saving spam verdict: %w", err)
	}

	if !result.IsSpam {
		return nil
	}

	// The spam worker is the only classification stage allowed to touch
	// lifecycle status: a spam verdict closes the query outright.
	if err := p.queries.UpdateStatus(ctx, query.ID, model.StatusClosed); err != nil {
		return fmt.Errorf("closing spam query: %w", err)
	}

	if err := p.queries.AppendHistory(ctx, &model.HistoryEntry{
		QueryID: query.ID,
		Action:  "closed_as_spam",
		Note:    fmt.Sprintf("spam score %d, confidence %.2f", result.Score, result.Confidence),
	}); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}

	slog.InfoContext(ctx, "query closed as spam",
		"spam_score", result.Score,
		"confidence", result.Confidence)
	return nil
}
