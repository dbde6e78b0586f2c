package booking

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxStaleRetries  = 3
)

type PaymentOutcome struct {
	ReservationID     uuid.UUID
	Outcome           domain.Outcome
	ProviderPaymentID string
	Amount            float64
	Method            string
}

var errStale = errors.New("reservation changed while waiting for the court")

func (s *Service) GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

func (s *Service) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	return s.store.ListReservations(ctx, filter)
}

// Stats summarizes today's activity in the default venue timezone.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	now := s.now()
	today := domain.CivilDate(now, s.settings.Location)
	return s.store.Stats(ctx, today, now.AddDate(0, 0, -30))
}

// ApplyPaymentOutcome moves a reservation to the state implied by a payment
// outcome. Repeating an outcome is a no-op. Outcomes the state machine does not
// allow are recorded in the payment ledger and reported as ErrInvalidTransition.
func (s *Service) ApplyPaymentOutcome(ctx context.Context, po PaymentOutcome) (*domain.Reservation, error) {
	ctx, span := tracer.Start(ctx, "booking.ApplyPaymentOutcome")
	defer span.End()
	span.SetAttributes(attribute.String("reservation.id", po.ReservationID.String()), attribute.String("payment.outcome", string(po.Outcome)))

	if po.ReservationID == uuid.Nil {
		return nil, domain.NewValidationError("reservation_id", "is required")
	}
	if _, err := domain.ParseOutcome(string(po.Outcome)); err != nil {
		return nil, err
	}

	var (
		out      *domain.Reservation
		before   domain.Status
		changed  bool
		rejected error
	)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		rejected, changed = nil, false
		r, err := tx.LockReservation(ctx, po.ReservationID)
		if err != nil {
			return err
		}
		now := s.now()
		if po.ProviderPaymentID != "" {
			err := tx.RecordPayment(ctx, domain.Payment{
				ProviderPaymentID: po.ProviderPaymentID,
				ReservationID:     r.ID,
				Outcome:           po.Outcome,
				Amount:            po.Amount,
				Method:            po.Method,
				ReceivedAt:        now,
			})
			if err != nil {
				return err
			}
		}
		before = r.Status
		out = r
		changed, rejected = r.ApplyOutcome(po.Outcome, now)
		if rejected != nil || !changed {
			return nil
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		evt, err := domain.NewReservationEvent(domain.StatusEvent(before, r.Status), *r, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, evt)
	})

	log := observability.FromContext(ctx, s.logger).WithFields(map[string]interface{}{
		"reservation_id": po.ReservationID,
		"outcome":        po.Outcome,
		"provider_id":    po.ProviderPaymentID,
	})
	switch {
	case err != nil:
		observability.PaymentOutcomes.WithLabelValues(string(po.Outcome), "error").Inc()
		return nil, err
	case rejected != nil:
		observability.PaymentOutcomes.WithLabelValues(string(po.Outcome), "rejected").Inc()
		log.WithError(rejected).Warn("payment outcome needs reconciliation")
		return out, rejected
	case !changed:
		observability.PaymentOutcomes.WithLabelValues(string(po.Outcome), "noop").Inc()
		log.Debug("payment outcome already applied")
		return out, nil
	}
	observability.PaymentOutcomes.WithLabelValues(string(po.Outcome), "applied").Inc()
	log.WithField("status", out.Status).Info("payment outcome applied")
	s.record(ctx, "reservation.payment", *out, map[string]interface{}{
		"outcome":             string(po.Outcome),
		"provider_payment_id": po.ProviderPaymentID,
		"previous_status":     string(before),
	})
	return out, nil
}

// UpdateReservation applies an administrative patch. Changes that claim court
// time run under the target court's lock and re-check overlap, ignoring the
// reservation's own row.
func (s *Service) UpdateReservation(ctx context.Context, id uuid.UUID, patch domain.ReservationPatch) (*domain.Reservation, error) {
	ctx, span := tracer.Start(ctx, "booking.UpdateReservation")
	defer span.End()

	if patch.Empty() {
		return nil, domain.NewValidationError("patch", "no fields to update")
	}

	for attempt := 0; attempt < maxStaleRetries; attempt++ {
		current, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return nil, err
		}
		_, venue, err := s.directory.GetCourt(ctx, patch.TargetCourt(current.CourtID))
		if err != nil {
			return nil, err
		}
		loc := venue.Location(s.settings.Location)
		preview, err := patch.Apply(*current, loc)
		if err != nil {
			return nil, err
		}
		locked := domain.NeedsRevalidation(*current, preview)

		var updated *domain.Reservation
		run := func(ctx context.Context) error {
			return s.store.WithTx(ctx, func(tx Tx) error {
				fresh, err := tx.LockReservation(ctx, id)
				if err != nil {
					return err
				}
				if patch.TargetCourt(fresh.CourtID) != preview.CourtID {
					return errStale
				}
				next, err := patch.Apply(*fresh, loc)
				if err != nil {
					return err
				}
				guard := domain.NeedsRevalidation(*fresh, next)
				if guard && !locked {
					return errStale
				}
				if guard {
					existing, err := tx.ActiveReservations(ctx, next.CourtID, next.Date)
					if err != nil {
						return err
					}
					if c := domain.FirstConflict(next.Interval(), existing, id); c != nil {
						return errors.Wrapf(domain.ErrOverlap, "court %d %s conflicts with reservation %s", next.CourtID, next.Window, c.ID)
					}
				}
				next.UpdatedAt = s.now()
				if err := tx.UpdateReservation(ctx, &next); err != nil {
					return err
				}
				evt, err := domain.NewReservationEvent(domain.EventReservationUpdated, next, next.UpdatedAt)
				if err != nil {
					return err
				}
				updated = &next
				return tx.AppendEvent(ctx, evt)
			})
		}

		if locked {
			err = s.locker.WithLock(ctx, preview.CourtID, run)
		} else {
			err = run(ctx)
		}
		if errors.Is(err, errStale) {
			continue
		}
		if err != nil {
			return nil, err
		}
		observability.FromContext(ctx, s.logger).WithFields(map[string]interface{}{
			"reservation_id": id,
			"revalidated":    locked,
		}).Info("reservation updated")
		s.record(ctx, "reservation.updated", *updated, nil)
		return updated, nil
	}
	return nil, errors.Mark(errors.Newf("reservation %s kept changing during update", id), domain.ErrLockTimeout)
}

func (s *Service) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "booking.DeleteReservation")
	defer span.End()

	var deleted domain.Reservation
	err := s.store.WithTx(ctx, func(tx Tx) error {
		r, err := tx.LockReservation(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteReservation(ctx, id); err != nil {
			return err
		}
		deleted = *r
		evt, err := domain.NewReservationEvent(domain.EventReservationDeleted, *r, s.now())
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, evt)
	})
	if err != nil {
		return err
	}
	observability.FromContext(ctx, s.logger).WithField("reservation_id", id).Info("reservation deleted")
	s.record(ctx, "reservation.deleted", deleted, nil)
	return nil
}
