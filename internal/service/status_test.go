package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/service"
)

var _ = Describe("StatusService", func() {
	var (
		svc     service.StatusService
		queries *mockQueryStore
		agents  *mockAgentStore
		tx      *mockTxRunner
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		queries = &mockQueryStore{}
		agents = &mockAgentStore{}
		tx = &mockTxRunner{stores: &mockStores{queries: queries, agents: agents}}
		svc = service.NewStatusService(tx, queries, nil)
	})

	queryInStatus := func(status model.Status) func(context.Context, int64) (*model.Query, error) {
		return func(_ context.Context, id int64) (*model.Query, error) {
			return &model.Query{
				ID:         id,
				Status:     status,
				ReceivedAt: time.Now().UTC().Add(-30 * time.Minute),
			}, nil
		}
	}

	It("applies an allowed transition and records history", func() {
		queries.getByIDFn = queryInStatus(model.StatusNew)

		var gotStatus model.Status
		queries.updateStatusFn = func(_ context.Context, _ int64, status model.Status) error {
			gotStatus = status
			return nil
		}

		err := svc.Update(ctx, 1, model.StatusAssigned, nil, "")

		Expect(err).NotTo(HaveOccurred())
		Expect(gotStatus).To(Equal(model.StatusAssigned))
		Expect(queries.history).To(HaveLen(1))
		Expect(queries.history[0].Action).To(Equal("status_changed"))
		Expect(queries.history[0].Note).To(Equal("status new -> assigned"))
	})

	It("requires assignment before work starts", func() {
		queries.getByIDFn = queryInStatus(model.StatusNew)

		err := svc.Update(ctx, 1, model.StatusInProgress, nil, "")

		Expect(err).To(MatchError(service.ErrInvalidTransition))
		Expect(tx.calls).To(BeZero())
	})

	It("rejects a disallowed transition", func() {
		queries.getByIDFn = queryInStatus(model.StatusResolved)

		updateCalled := false
		queries.updateStatusFn = func(_ context.Context, _ int64, _ model.Status) error {
			updateCalled = true
			return nil
		}

		err := svc.Update(ctx, 1, model.StatusInProgress, nil, "")

		Expect(err).To(MatchError(service.ErrInvalidTransition))
		Expect(updateCalled).To(BeFalse())
		Expect(queries.history).To(BeEmpty())
	})

	It("allows closing from any active state", func() {
		for _, from := range []model.Status{
			model.StatusNew,
			model.StatusAssigned,
			model.StatusInProgress,
			model.StatusResolved,
			model.StatusEscalated,
		} {
			queries.getByIDFn = queryInStatus(from)
			Expect(svc.Update(ctx, 1, model.StatusClosed, nil, "")).To(Succeed(),
				"closing from %s", from)
		}
	})

	It("allows escalated queries to be picked back up", func() {
		queries.getByIDFn = queryInStatus(model.StatusEscalated)

		Expect(svc.Update(ctx, 1, model.StatusInProgress, nil, "")).To(Succeed())
	})

	Describe("first response stamping", func() {
		It("stamps the first response on the first in_progress", func() {
			queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
				return &model.Query{
					ID:         id,
					Status:     model.StatusAssigned,
					ReceivedAt: time.Now().UTC().Add(-90 * time.Minute),
				}, nil
			}

			var gotMinutes int
			stamped := false
			queries.setFirstResponseFn = func(_ context.Context, _ int64, _ time.Time, minutes int) error {
				stamped = true
				gotMinutes = minutes
				return nil
			}

			err := svc.Update(ctx, 1, model.StatusInProgress, nil, "")

			Expect(err).NotTo(HaveOccurred())
			Expect(stamped).To(BeTrue())
			Expect(gotMinutes).To(BeNumerically("~", 90, 1))
		})

		It("does not stamp again once a first response exists", func() {
			already := time.Now().UTC().Add(-time.Hour)
			queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
				return &model.Query{
					ID:              id,
					Status:          model.StatusEscalated,
					ReceivedAt:      time.Now().UTC().Add(-2 * time.Hour),
					FirstResponseAt: &already,
				}, nil
			}

			stamped := false
			queries.setFirstResponseFn = func(_ context.Context, _ int64, _ time.Time, _ int) error {
				stamped = true
				return nil
			}

			err := svc.Update(ctx, 1, model.StatusInProgress, nil, "")

			Expect(err).NotTo(HaveOccurred())
			Expect(stamped).To(BeFalse())
		})
	})

	Describe("resolution", func() {
		It("records resolution time and credits the assigned agent", func() {
			agentID := int64(7)
			queries.getByIDFn = func(_ context.Context, id int64) (*model.Query, error) {
				return &model.Query{
					ID:              id,
					Status:          model.StatusInProgress,
					ReceivedAt:      time.Now().UTC().Add(-3 * time.Hour),
					AssignedAgentID: &agentID,
				}, nil
			}

			var gotMinutes int
			queries.setResolutionFn = func(_ context.Context, _ int64, minutes int) error {
				gotMinutes = minutes
				return nil
			}

			err := svc.Update(ctx, 1, model.StatusResolved, nil, "fixed the invoice")

			Expect(err).NotTo(HaveOccurred())
			Expect(gotMinutes).To(BeNumerically("~", 180, 1))
			Expect(agents.resolvedIDs).To(Equal([]int64{7}))
			Expect(queries.history[0].Note).To(Equal("fixed the invoice"))
		})

		It("aborts the transition when resolution accounting fails", func() {
			queries.getByIDFn = queryInStatus(model.StatusInProgress)
			queries.setResolutionFn = func(_ context.Context, _ int64, _ int) error {
				return errors.New("deadlock detected")
			}

			err := svc.Update(ctx, 1, model.StatusResolved, nil, "")

			Expect(err).To(HaveOccurred())
			Expect(tx.calls).To(Equal(1))
			Expect(tx.committed).To(BeZero())
			Expect(queries.history).To(BeEmpty())
		})

		It("skips agent accounting when no agent is assigned", func() {
			queries.getByIDFn = queryInStatus(model.StatusInProgress)

			err := svc.Update(ctx, 1, model.StatusResolved, nil, "")

			Expect(err).NotTo(HaveOccurred())
			Expect(agents.resolvedIDs).To(BeEmpty())
		})
	})
})
