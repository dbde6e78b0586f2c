package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func book(t *testing.T, f *fixture, court int64, sh, sm, eh, em int) *domain.Reservation {
	t.Helper()
	r, err := f.svc.BookSlot(context.Background(), request(court, sh, sm, eh, em))
	require.NoError(t, err)
	return r
}

func TestApplyPaymentOutcome_ApprovedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := book(t, f, 5, 10, 0, 11, 30)

	po := PaymentOutcome{ReservationID: r.ID, Outcome: domain.OutcomeApproved, ProviderPaymentID: "mp-1001", Amount: 12000, Method: "card"}
	first, err := f.svc.ApplyPaymentOutcome(ctx, po)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, first.Status)
	assert.Equal(t, domain.PaymentPaid, first.PaymentStatus)

	second, err := f.svc.ApplyPaymentOutcome(ctx, po)
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	stored, err := f.svc.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, []string{domain.EventReservationCreated, domain.EventReservationConfirmed}, f.store.eventTypes())
	assert.Len(t, f.store.payments, 1)
}

func TestApplyPaymentOutcome_RejectedFreesTheSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := book(t, f, 5, 10, 0, 11, 30)

	out, err := f.svc.ApplyPaymentOutcome(ctx, PaymentOutcome{ReservationID: r.ID, Outcome: domain.OutcomeRejected})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, out.Status)
	assert.Equal(t, domain.PaymentFailed, out.PaymentStatus)

	_, err = f.svc.BookSlot(ctx, request(5, 10, 0, 11, 30))
	assert.NoError(t, err)
}

func TestApplyPaymentOutcome_OutOfOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := book(t, f, 5, 10, 0, 11, 30)

	_, err := f.svc.ApplyPaymentOutcome(ctx, PaymentOutcome{ReservationID: r.ID, Outcome: domain.OutcomeRejected, ProviderPaymentID: "mp-1"})
	require.NoError(t, err)

	_, err = f.svc.ApplyPaymentOutcome(ctx, PaymentOutcome{ReservationID: r.ID, Outcome: domain.OutcomeApproved, ProviderPaymentID: "mp-2"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := f.svc.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.Contains(t, f.store.payments, "mp-2", "late outcomes stay in the ledger for reconciliation")
}

func TestApplyPaymentOutcome_UnknownReservation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ApplyPaymentOutcome(context.Background(), PaymentOutcome{ReservationID: uuid.New(), Outcome: domain.OutcomeApproved})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateReservation_RescheduleRevalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := book(t, f, 5, 10, 0, 11, 30)
	book(t, f, 5, 12, 0, 13, 30)

	start, end := domain.NewTimeOfDay(11, 0), domain.NewTimeOfDay(12, 30)
	_, err := f.svc.UpdateReservation(ctx, a.ID, domain.ReservationPatch{Start: &start, End: &end})
	assert.ErrorIs(t, err, domain.ErrOverlap)

	end = domain.NewTimeOfDay(12, 0)
	moved, err := f.svc.UpdateReservation(ctx, a.ID, domain.ReservationPatch{Start: &start, End: &end})
	require.NoError(t, err, "overlap with its own previous window is ignored")
	assert.Equal(t, time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC), moved.StartsAt)
	assert.Equal(t, 2+2, f.locker.acquisitions(5))
}

func TestUpdateReservation_MoveCourt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := book(t, f, 5, 10, 0, 11, 30)
	book(t, f, 6, 10, 0, 11, 30)

	court := int64(6)
	_, err := f.svc.UpdateReservation(ctx, a.ID, domain.ReservationPatch{CourtID: &court})
	assert.ErrorIs(t, err, domain.ErrOverlap)

	court = 42
	_, err = f.svc.UpdateReservation(ctx, a.ID, domain.ReservationPatch{CourtID: &court})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateReservation_PaymentStatusDerivesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := book(t, f, 5, 10, 0, 11, 30)
	locksBefore := f.locker.acquisitions(5)

	paid := domain.PaymentPaid
	amount := 15000.0
	out, err := f.svc.UpdateReservation(ctx, r.ID, domain.ReservationPatch{PaymentStatus: &paid, TotalAmount: &amount})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, out.Status)
	assert.Equal(t, 15000.0, out.TotalAmount)
	assert.Equal(t, locksBefore, f.locker.acquisitions(5), "non-schedule edits skip the court lock")
}

func TestUpdateReservation_ReactivationChecksOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := book(t, f, 5, 10, 0, 11, 30)

	cancelled := domain.StatusCancelled
	_, err := f.svc.UpdateReservation(ctx, a.ID, domain.ReservationPatch{Status: &cancelled})
	require.NoError(t, err)
	book(t, f, 5, 10, 30, 12, 0)

	confirmed := domain.StatusConfirmed
	_, err = f.svc.UpdateReservation(ctx, a.ID, domain.ReservationPatch{Status: &confirmed})
	assert.ErrorIs(t, err, domain.ErrOverlap)
}

func TestUpdateReservation_EmptyPatch(t *testing.T) {
	f := newFixture(t)
	r := book(t, f, 5, 10, 0, 11, 30)
	_, err := f.svc.UpdateReservation(context.Background(), r.ID, domain.ReservationPatch{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeleteReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := book(t, f, 5, 10, 0, 11, 30)

	require.NoError(t, f.svc.DeleteReservation(ctx, r.ID))
	_, err := f.svc.GetReservation(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteReservation(ctx, r.ID), domain.ErrNotFound)

	_, err = f.svc.BookSlot(ctx, request(5, 10, 0, 11, 30))
	assert.NoError(t, err)
}

func TestListReservationsAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.now = func() time.Time { return testDate.Add(9 * time.Hour) }
	a := book(t, f, 5, 10, 0, 11, 30)
	book(t, f, 6, 10, 0, 11, 30)

	_, err := f.svc.ApplyPaymentOutcome(ctx, PaymentOutcome{ReservationID: a.ID, Outcome: domain.OutcomeApproved})
	require.NoError(t, err)

	court := int64(5)
	list, err := f.svc.ListReservations(ctx, domain.ReservationFilter{CourtID: &court})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TodayReservations)
	assert.Equal(t, 12000.0, st.TotalRevenue)
	assert.Equal(t, 1, st.PendingPayments)
	assert.Equal(t, 1, st.ActiveCustomers)
}
