package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/court-reservations/internal/domain"
)

// txStore is the transactional view handed to booking.Store.WithTx callers.
type txStore struct {
	tx pgx.Tx
}

func (t *txStore) ActiveReservations(ctx context.Context, courtID int64, date time.Time) ([]domain.Reservation, error) {
	return activeReservations(ctx, t.tx, courtID, date, " FOR UPDATE")
}

func (t *txStore) LockReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "reservation %s", id)
	}
	return res, classify(err, "lock reservation")
}

func (t *txStore) InsertReservation(ctx context.Context, r *domain.Reservation) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, r.ID, r.CourtID, r.Date, int32(r.Window.Start), int32(r.Window.End), r.StartsAt, r.EndsAt,
		r.CustomerID, r.Customer.Name, r.Customer.Email, r.Customer.Phone, r.TotalAmount,
		string(r.Status), string(r.PaymentStatus), r.Notes, r.CreatedAt, r.UpdatedAt)
	return classify(err, "insert reservation")
}

func (t *txStore) UpdateReservation(ctx context.Context, r *domain.Reservation) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE reservations SET
			court_id = $2, reservation_date = $3, start_minute = $4, end_minute = $5,
			starts_at = $6, ends_at = $7, total_amount = $8, status = $9, payment_status = $10,
			notes = $11, updated_at = $12
		WHERE id = $1
	`, r.ID, r.CourtID, r.Date, int32(r.Window.Start), int32(r.Window.End), r.StartsAt, r.EndsAt,
		r.TotalAmount, string(r.Status), string(r.PaymentStatus), r.Notes, r.UpdatedAt)
	if err != nil {
		return classify(err, "update reservation")
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNotFound, "reservation %s", r.ID)
	}
	return nil
}

func (t *txStore) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	result, err := t.tx.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete reservation")
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNotFound, "reservation %s", id)
	}
	return nil
}

func (t *txStore) RecordPayment(ctx context.Context, p domain.Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments (provider_payment_id, reservation_id, outcome, amount, method, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_payment_id) DO UPDATE SET
			outcome = excluded.outcome, amount = excluded.amount, method = excluded.method, received_at = excluded.received_at
	`, p.ProviderPaymentID, p.ReservationID, string(p.Outcome), p.Amount, p.Method, p.ReceivedAt)
	return classify(err, "record payment")
}

func (t *txStore) AppendEvent(ctx context.Context, e domain.Event) error {
	return insertOutbox(ctx, t.tx, OutboxRecord{
		ID:            e.ID,
		AggregateType: "reservation",
		AggregateID:   e.ReservationID,
		EventType:     e.Type,
		Payload:       e.Payload,
		CreatedAt:     e.OccurredAt,
		DedupeKey:     e.ID.String(),
	})
}
