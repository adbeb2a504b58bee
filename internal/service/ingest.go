package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"triagehq.app/triage/common/logger"
	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/store"
)

// IngestParams is the normalized inbound payload. Normalization itself happens
// upstream; the only hard validation here is a non-empty content body and a
// known channel.
type IngestParams struct {
	Channel     model.Channel     `json:"channel"`
	Subject     string            `json:"subject"`
	Content     string            `json:"content"`
	SenderName  string            `json:"sender_name"`
	SenderEmail string            `json:"sender_email"`
	SenderID    *string           `json:"sender_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ReceivedAt  *time.Time        `json:"received_at,omitempty"`
}

type IngestResult struct {
	Query    *model.Query
	Enqueued bool
}

type IngestService interface {
	CreateAndEnqueue(ctx context.Context, params IngestParams) (*IngestResult, error)
}

var (
	ErrEmptyContent   = errors.New("content is required")
	ErrInvalidChannel = errors.New("unknown channel")
)

type ingestService struct {
	tx      TxRunner
	queries store.QueryStore
	broker  Enqueuer
	logger  *slog.Logger
}

func NewIngestService(tx TxRunner, queries store.QueryStore, broker Enqueuer, logger *slog.Logger) IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ingestService{
		tx:      tx,
		queries: queries,
		broker:  broker,
		logger:  logger,
	}
}

// CreateAndEnqueue persists the query and enqueues its intake job. When the
// broker is down the record is still created and the result reports
// Enqueued=false: ingestion must not lose messages just because classification
// is deferred.
func (s *ingestService) CreateAndEnqueue(ctx context.Context, params IngestParams) (*IngestResult, error) {
	if params.Content == "" {
		return nil, ErrEmptyContent
	}
	if !params.Channel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, params.Channel)
	}

	query := &model.Query{
		Channel:     params.Channel,
		Subject:     params.Subject,
		Content:     params.Content,
		SenderName:  params.SenderName,
		SenderEmail: params.SenderEmail,
		SenderID:    params.SenderID,
		Metadata:    params.Metadata,
		Status:      model.StatusNew,
	}
	if params.ReceivedAt != nil {
		query.ReceivedAt = params.ReceivedAt.UTC()
	}

	// Record and its audit entry commit together; the intake job is enqueued
	// only after the commit, so the queue never references an uncommitted row.
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Queries().Create(ctx, query); err != nil {
			return fmt.Errorf("creating query: %w", err)
		}
		if err := stores.Queries().AppendHistory(ctx, &model.HistoryEntry{
			QueryID: query.ID,
			Action:  "received",
			Note:    fmt.Sprintf("received via %s", query.Channel),
		}); err != nil {
			return fmt.Errorf("appending history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.service.ingest",
		QueryID:   logger.Ptr(query.ID),
		Channel:   logger.Ptr(string(query.Channel)),
	})

	err = s.broker.Enqueue(ctx, queue.Job{
		Stage:    queue.StageIntake,
		QueryID:  query.ID,
		Channel:  string(query.Channel),
		Subject:  query.Subject,
		Content:  query.Content,
		Sender:   query.SenderEmail,
		Priority: queue.PriorityValue(""),
	})
	if err != nil {
		if !errors.Is(err, queue.ErrBrokerUnavailable) {
			return nil, fmt.Errorf("enqueueing intake job: %w", err)
		}
		// Degraded mode: record exists, classification deferred until the
		// broker recovers. Leave a trace in the audit log so it's visible.
		s.logger.WarnContext(ctx, "broker down, query created without intake job")
		if histErr := s.queries.AppendHistory(ctx, &model.HistoryEntry{
			QueryID: query.ID,
			Action:  "enqueue_deferred",
			Note:    "broker unavailable, classification deferred",
		}); histErr != nil {
			return nil, fmt.Errorf("appending history: %w", histErr)
		}
		return &IngestResult{Query: query, Enqueued: false}, nil
	}

	s.logger.InfoContext(ctx, "query ingested")
	return &IngestResult{Query: query, Enqueued: true}, nil
}
