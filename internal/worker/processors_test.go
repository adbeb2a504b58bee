package worker_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/notify"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/sentiment"
	"triagehq.app/triage/internal/worker"
)

var _ = Describe("IntakeProcessor", func() {
	var (
		queries *mockQueryStore
		broker  *mockEnqueuer
		proc    *worker.IntakeProcessor
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		queries = &mockQueryStore{}
		broker = &mockEnqueuer{}
		proc = worker.NewIntakeProcessor(queries, broker)
	})

	It("fans out into every classification stage", func() {
		queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
			return &model.Query{
				ID:          id,
				Channel:     model.ChannelPhone,
				Subject:     "outage",
				Content:     "everything is down",
				SenderEmail: "a@b.example",
				Status:      model.StatusNew,
			}, nil
		}

		err := proc.Process(ctx, queue.Job{Stage: queue.StageIntake, QueryID: 42})

		Expect(err).NotTo(HaveOccurred())
		Expect(broker.enqueued).To(HaveLen(len(queue.ClassificationStages)))

		stages := make([]queue.Stage, 0, len(broker.enqueued))
		for _, job := range broker.enqueued {
			stages = append(stages, job.Stage)
			Expect(job.QueryID).To(Equal(int64(42)))
			Expect(job.Channel).To(Equal("phone"))
			Expect(job.Content).To(Equal("everything is down"))
			Expect(job.Sender).To(Equal("a@b.example"))
		}
		Expect(stages).To(ConsistOf(
			queue.StageTagging, queue.StageSentiment, queue.StagePriority, queue.StageSpam))
	})

	It("fails the job when any fan-out enqueue fails", func() {
		broker.enqueueFn = func(_ context.Context, job queue.Job) error {
			if job.Stage == queue.StageSentiment {
				return errors.New("stream full")
			}
			return nil
		}

		err := proc.Process(ctx, queue.Job{Stage: queue.StageIntake, QueryID: 42})

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("sentiment"))
	})
})

var _ = Describe("TaggingProcessor", func() {
	It("persists the classified tags and records history", func() {
		queries := &mockQueryStore{}
		queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
			return &model.Query{ID: id, Subject: "invoice", Content: "billing charge on my invoice"}, nil
		}

		var gotTags []string
		var gotPrimary string
		queries.updateTagsFn = func(_ context.Context, _ int64, tags []string, primaryTag string) error {
			gotTags = tags
			gotPrimary = primaryTag
			return nil
		}

		proc := worker.NewTaggingProcessor(queries)
		err := proc.Process(context.Background(), queue.Job{Stage: queue.StageTagging, QueryID: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(gotTags).To(Equal([]string{"billing"}))
		Expect(gotPrimary).To(Equal("billing"))

		Expect(queries.history).To(HaveLen(1))
		Expect(queries.history[0].Action).To(Equal("tagged"))
		Expect(queries.history[0].Note).To(ContainSubstring("billing"))
	})
})

var _ = Describe("SentimentProcessor", func() {
	It("scores subject and content together and persists the result", func() {
		queries := &mockQueryStore{}
		queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
			return &model.Query{ID: id, Subject: "angry", Content: "this is useless"}, nil
		}

		var scoredText string
		scorer := &mockScorer{scoreFn: func(_ context.Context, text string) (sentiment.Result, error) {
			scoredText = text
			return sentiment.Result{Score: -2, Label: model.SentimentNegative}, nil
		}}

		var saved model.SentimentResult
		queries.updateSentimentFn = func(_ context.Context, _ int64, result model.SentimentResult) error {
			saved = result
			return nil
		}

		proc := worker.NewSentimentProcessor(queries, scorer)
		err := proc.Process(context.Background(), queue.Job{Stage: queue.StageSentiment, QueryID: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(scoredText).To(Equal("angry this is useless"))
		Expect(saved.Score).To(Equal(-2.0))
		Expect(saved.Label).To(Equal(model.SentimentNegative))
		Expect(queries.history).To(HaveLen(1))
		Expect(queries.history[0].Action).To(Equal("sentiment_scored"))
	})

	It("fails the job when the scorer errors", func() {
		queries := &mockQueryStore{}
		scorer := &mockScorer{scoreFn: func(_ context.Context, _ string) (sentiment.Result, error) {
			return sentiment.Result{}, errors.New("provider timeout")
		}}

		proc := worker.NewSentimentProcessor(queries, scorer)
		err := proc.Process(context.Background(), queue.Job{Stage: queue.StageSentiment, QueryID: 1})

		Expect(err).To(HaveOccurred())
		Expect(queries.history).To(BeEmpty())
	})
})

var _ = Describe("PriorityProcessor", func() {
	It("persists a score with its matching level", func() {
		queries := &mockQueryStore{}
		queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
			return &model.Query{
				ID:      id,
				Channel: model.ChannelEmail,
				Subject: "question",
				Content: "how do I export my data",
			}, nil
		}

		var gotScore float64
		var gotLevel model.PriorityLevel
		queries.updatePriorityFn = func(_ context.Context, _ int64, score float64, level model.PriorityLevel) error {
			gotScore = score
			gotLevel = level
			return nil
		}

		proc := worker.NewPriorityProcessor(queries)
		err := proc.Process(context.Background(), queue.Job{Stage: queue.StagePriority, QueryID: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(gotScore).To(BeNumerically(">=", 0))
		Expect(gotScore).To(BeNumerically("<=", 100))
		Expect(gotLevel).To(Equal(model.PriorityLevelForScore(gotScore)))
		Expect(queries.history).To(HaveLen(1))
		Expect(queries.history[0].Action).To(Equal("prioritized"))
	})
})

var _ = Describe("SpamProcessor", func() {
	var (
		queries *mockQueryStore
		proc    *worker.SpamProcessor
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		queries = &mockQueryStore{}
		proc = worker.NewSpamProcessor(queries)
	})

	It("persists the verdict without touching status for clean content", func() {
		queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
			return &model.Query{ID: id, Content: "my invoice is wrong"}, nil
		}

		var saved model.SpamResult
		queries.updateSpamFn = func(_ context.Context, _ int64, result model.SpamResult) error {
			saved = result
			return nil
		}
		statusTouched := false
		queries.updateStatusFn = func(_ context.Context, _ int64, _ model.Status) error {
			statusTouched = true
			return nil
		}

		err := proc.Process(ctx, queue.Job{Stage: queue.StageSpam, QueryID: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(saved.IsSpam).To(BeFalse())
		Expect(statusTouched).To(BeFalse())
		Expect(queries.history).To(BeEmpty())
	})

	It("closes a spam query and leaves a closure note", func() {
		queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
			return &model.Query{
				ID:      id,
				Content: "click here to claim free money from our lottery",
			}, nil
		}

		var gotStatus model.Status
		queries.updateStatusFn = func(_ context.Context, _ int64, status model.Status) error {
			gotStatus = status
			return nil
		}

		err := proc.Process(ctx, queue.Job{Stage: queue.StageSpam, QueryID: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(gotStatus).To(Equal(model.StatusClosed))
		Expect(queries.history).To(HaveLen(1))
		Expect(queries.history[0].Action).To(Equal("closed_as_spam"))
	})
})

var _ = Describe("NotifyProcessor", func() {
	var (
		queries   *mockQueryStore
		agents    *mockAgentStore
		transport *mockTransport
		proc      *worker.NotifyProcessor
		ctx       context.Context
	)

	teamID := int64(20)

	BeforeEach(func() {
		ctx = context.Background()
		queries = &mockQueryStore{}
		agents = &mockAgentStore{}
		transport = &mockTransport{}
		proc = worker.NewNotifyProcessor(queries, agents, transport, notify.TypeEmail)
	})

	It("notifies every active team member", func() {
		queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
			return &model.Query{
				ID:             id,
				Subject:        "outage",
				PriorityLevel:  model.PriorityUrgent,
				AssignedTeamID: &teamID,
			}, nil
		}
		agents.listActiveByTeamFn = func(_ context.Context, _ int64) ([]model.Agent, error) {
			return []model.Agent{
				{ID: 1, Email: "a@example.com", IsActive: true},
				{ID: 2, Email: "b@example.com", IsActive: true},
			}, nil
		}

		err := proc.Process(ctx, queue.Job{
			Stage:   queue.StageNotify,
			QueryID: 1,
			Reason:  "no resolution within 1h0m0s for urgent priority",
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(transport.sent).To(HaveLen(2))
		Expect(transport.sent[0].Recipient).To(Equal("a@example.com"))
		Expect(transport.sent[0].Subject).To(Equal("Escalated: outage"))
		Expect(transport.sent[0].Body).To(ContainSubstring("urgent priority"))

		Expect(queries.history).To(HaveLen(1))
		Expect(queries.history[0].Action).To(Equal("notified"))
		Expect(queries.history[0].Note).To(ContainSubstring("2 team members"))
	})

	It("skips unassigned queries without error", func() {
		err := proc.Process(ctx, queue.Job{Stage: queue.StageNotify, QueryID: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(transport.sent).To(BeEmpty())
		Expect(queries.history).To(BeEmpty())
	})

	It("skips teams with no active members", func() {
		queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
			return &model.Query{ID: id, AssignedTeamID: &teamID}, nil
		}

		err := proc.Process(ctx, queue.Job{Stage: queue.StageNotify, QueryID: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(transport.sent).To(BeEmpty())
	})

	It("fails the job on partial delivery so the broker retries", func() {
		queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
			return &model.Query{ID: id, AssignedTeamID: &teamID}, nil
		}
		agents.listActiveByTeamFn = func(_ context.Context, _ int64) ([]model.Agent, error) {
			return []model.Agent{
				{ID: 1, Email: "a@example.com", IsActive: true},
				{ID: 2, Email: "b@example.com", IsActive: true},
			}, nil
		}
		transport.sendFn = func(_ context.Context, n notify.Notification) error {
			if n.Recipient == "b@example.com" {
				return errors.New("smtp refused")
			}
			return nil
		}

		err := proc.Process(ctx, queue.Job{Stage: queue.StageNotify, QueryID: 1})

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("b@example.com"))
		Expect(queries.history).To(BeEmpty())
	})
})
