package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/service"
)

var _ = Describe("IngestService", func() {
	var (
		svc     service.IngestService
		queries *mockQueryStore
		broker  *mockBroker
		tx      *mockTxRunner
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		queries = &mockQueryStore{}
		broker = &mockBroker{}
		tx = &mockTxRunner{stores: &mockStores{queries: queries}}
		svc = service.NewIngestService(tx, queries, broker, nil)
	})

	Describe("CreateAndEnqueue", func() {
		It("creates the query and enqueues an intake job", func() {
			var created *model.Query
			queries.createFn = func(_ context.Context, q *model.Query) error {
				q.ID = 101
				created = q
				return nil
			}

			result, err := svc.CreateAndEnqueue(ctx, service.IngestParams{
				Channel:     model.ChannelEmail,
				Subject:     "hello",
				Content:     "my invoice is wrong",
				SenderEmail: "a@b.example",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Enqueued).To(BeTrue())
			Expect(result.Query.ID).To(Equal(int64(101)))
			Expect(created.Status).To(Equal(model.StatusNew))

			Expect(broker.enqueued).To(HaveLen(1))
			job := broker.enqueued[0]
			Expect(job.Stage).To(Equal(queue.StageIntake))
			Expect(job.QueryID).To(Equal(int64(101)))
			Expect(job.Content).To(Equal("my invoice is wrong"))
		})

		It("records a received history entry", func() {
			_, err := svc.CreateAndEnqueue(ctx, service.IngestParams{
				Channel: model.ChannelChat,
				Content: "hi",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(queries.history).To(HaveLen(1))
			Expect(queries.history[0].Action).To(Equal("received"))
			Expect(queries.history[0].Actor).To(BeNil())
		})

		It("commits the record before enqueueing the intake job", func() {
			broker.enqueueFn = func(_ context.Context, _ queue.Job) error {
				Expect(tx.committed).To(Equal(1))
				return nil
			}

			_, err := svc.CreateAndEnqueue(ctx, service.IngestParams{
				Channel: model.ChannelEmail,
				Content: "hi",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(broker.enqueued).To(HaveLen(1))
		})

		It("enqueues nothing when the record fails to commit", func() {
			tx.beginErr = errors.New("connection refused")

			_, err := svc.CreateAndEnqueue(ctx, service.IngestParams{
				Channel: model.ChannelEmail,
				Content: "hi",
			})

			Expect(err).To(HaveOccurred())
			Expect(broker.enqueued).To(BeEmpty())
		})

		It("rejects empty content before creating anything", func() {
			createCalled := false
			queries.createFn = func(_ context.Context, _ *model.Query) error {
				createCalled = true
				return nil
			}

			_, err := svc.CreateAndEnqueue(ctx, service.IngestParams{
				Channel: model.ChannelEmail,
			})

			Expect(err).To(MatchError(service.ErrEmptyContent))
			Expect(createCalled).To(BeFalse())
			Expect(broker.enqueued).To(BeEmpty())
		})

		It("rejects unknown channels", func() {
			_, err := svc.CreateAndEnqueue(ctx, service.IngestParams{
				Channel: "pigeon",
				Content: "hi",
			})

			Expect(err).To(MatchError(service.ErrInvalidChannel))
		})

		Context("when the broker is down", func() {
			BeforeEach(func() {
				broker.enqueueFn = func(_ context.Context, _ queue.Job) error {
					return queue.ErrBrokerUnavailable
				}
			})

			It("still creates the query and reports enqueued=false", func() {
				result, err := svc.CreateAndEnqueue(ctx, service.IngestParams{
					Channel: model.ChannelEmail,
					Content: "hi",
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Enqueued).To(BeFalse())
				Expect(result.Query).NotTo(BeNil())
			})

			It("leaves a deferred-enqueue note in the history", func() {
				_, err := svc.CreateAndEnqueue(ctx, service.IngestParams{
					Channel: model.ChannelEmail,
					Content: "hi",
				})

				Expect(err).NotTo(HaveOccurred())
				actions := make([]string, len(queries.history))
				for i, h := range queries.history {
					actions[i] = h.Action
				}
				Expect(actions).To(ContainElement("enqueue_deferred"))
			})
		})
	})
})
