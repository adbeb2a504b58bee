package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/queue"
	"triagehq.app/triage/internal/service"
)

var _ = Describe("ShouldEscalate", func() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	openQuery := func(level model.PriorityLevel, age time.Duration) *model.Query {
		return &model.Query{
			ID:            1,
			Status:        model.StatusNew,
			PriorityLevel: level,
			ReceivedAt:    now.Add(-age),
		}
	}

	It("does not escalate a high-priority query within its window", func() {
		Expect(service.ShouldEscalate(openQuery(model.PriorityHigh, 2*time.Hour), now)).To(BeFalse())
	})

	It("escalates a high-priority query past four hours", func() {
		Expect(service.ShouldEscalate(openQuery(model.PriorityHigh, 5*time.Hour), now)).To(BeTrue())
	})

	It("escalates urgent queries after one hour", func() {
		Expect(service.ShouldEscalate(openQuery(model.PriorityUrgent, 61*time.Minute), now)).To(BeTrue())
		Expect(service.ShouldEscalate(openQuery(model.PriorityUrgent, 59*time.Minute), now)).To(BeFalse())
	})

	It("uses the low-priority window for unknown levels", func() {
		Expect(service.ShouldEscalate(openQuery("", 23*time.Hour), now)).To(BeFalse())
		Expect(service.ShouldEscalate(openQuery("", 25*time.Hour), now)).To(BeTrue())
	})

	It("never escalates terminal or already-escalated queries", func() {
		old := openQuery(model.PriorityUrgent, 48*time.Hour)

		closed := *old
		closed.Status = model.StatusClosed
		Expect(service.ShouldEscalate(&closed, now)).To(BeFalse())

		flagged := *old
		flagged.Escalated = true
		Expect(service.ShouldEscalate(&flagged, now)).To(BeFalse())
	})
})

var _ = Describe("EscalationService", func() {
	var (
		svc     service.EscalationService
		queries *mockQueryStore
		broker  *mockBroker
		ctx     context.Context
	)

	teamID := int64(20)

	overdue := func(id int64) model.Query {
		return model.Query{
			ID:             id,
			Status:         model.StatusAssigned,
			PriorityLevel:  model.PriorityHigh,
			ReceivedAt:     time.Now().UTC().Add(-6 * time.Hour),
			AssignedTeamID: &teamID,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		queries = &mockQueryStore{}
		broker = &mockBroker{}
		svc = service.NewEscalationService(queries, broker, nil)
	})

	Describe("RunSweep", func() {
		It("escalates overdue queries and enqueues notifications", func() {
			queries.listEscalatableFn = func(_ context.Context) ([]model.Query, error) {
				fresh := model.Query{
					ID:            2,
					Status:        model.StatusNew,
					PriorityLevel: model.PriorityHigh,
					ReceivedAt:    time.Now().UTC().Add(-time.Hour),
				}
				return []model.Query{overdue(1), fresh}, nil
			}

			ids, err := svc.RunSweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]int64{1}))

			Expect(queries.history).To(HaveLen(1))
			Expect(queries.history[0].Action).To(Equal("escalated"))
			Expect(queries.history[0].Note).To(ContainSubstring("high priority"))

			Expect(broker.enqueued).To(HaveLen(1))
			job := broker.enqueued[0]
			Expect(job.Stage).To(Equal(queue.StageNotify))
			Expect(job.QueryID).To(Equal(int64(1)))
			Expect(job.Reason).To(ContainSubstring("no resolution within"))
			Expect(job.Priority).To(Equal(7))
		})

		It("skips queries another sweep already flagged", func() {
			queries.listEscalatableFn = func(_ context.Context) ([]model.Query, error) {
				return []model.Query{overdue(1)}, nil
			}
			queries.markEscalatedFn = func(_ context.Context, _ int64, _ string, _ time.Time) (bool, error) {
				return false, nil
			}

			ids, err := svc.RunSweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(BeEmpty())
			Expect(queries.history).To(BeEmpty())
			Expect(broker.enqueued).To(BeEmpty())
		})

		It("escalates unassigned queries without notifying", func() {
			queries.listEscalatableFn = func(_ context.Context) ([]model.Query, error) {
				q := overdue(1)
				q.AssignedTeamID = nil
				return []model.Query{q}, nil
			}

			ids, err := svc.RunSweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]int64{1}))
			Expect(broker.enqueued).To(BeEmpty())
		})

		It("continues past a record that fails to flag", func() {
			queries.listEscalatableFn = func(_ context.Context) ([]model.Query, error) {
				return []model.Query{overdue(1), overdue(2)}, nil
			}
			queries.markEscalatedFn = func(_ context.Context, id int64, _ string, _ time.Time) (bool, error) {
				if id == 1 {
					return false, errors.New("deadlock detected")
				}
				return true, nil
			}

			ids, err := svc.RunSweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]int64{2}))
		})

		It("still escalates when the notification enqueue fails", func() {
			queries.listEscalatableFn = func(_ context.Context) ([]model.Query, error) {
				return []model.Query{overdue(1)}, nil
			}
			broker.enqueueFn = func(_ context.Context, _ queue.Job) error {
				return queue.ErrBrokerUnavailable
			}

			ids, err := svc.RunSweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]int64{1}))
		})
	})
})
