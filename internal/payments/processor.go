package payments

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/court-reservations/internal/booking"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
)

type OutcomeApplier interface {
	ApplyPaymentOutcome(ctx context.Context, po booking.PaymentOutcome) (*domain.Reservation, error)
}

// Processor decodes payment notifications and applies them, retrying
// retryable failures with exponential backoff.
type Processor struct {
	applier    OutcomeApplier
	logger     observability.Logger
	maxRetries int
	backoff    time.Duration
}

func NewProcessor(applier OutcomeApplier, logger observability.Logger, backoff time.Duration) *Processor {
	return &Processor{applier: applier, logger: logger, maxRetries: 3, backoff: backoff}
}

func (p *Processor) Process(ctx context.Context, body []byte) error {
	po, err := Decode(body)
	if err != nil {
		return err
	}
	return p.Apply(ctx, po)
}

func (p *Processor) Apply(ctx context.Context, po booking.PaymentOutcome) error {
	var err error
	for i := 0; i < p.maxRetries; i++ {
		_, err = p.applier.ApplyPaymentOutcome(ctx, po)
		if err == nil || !domain.IsRetryable(err) {
			return err
		}
		if i == p.maxRetries-1 {
			break
		}
		observability.FromContext(ctx, p.logger).WithError(err).WithField("attempt", i+1).Warn("retrying payment outcome")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<i) * p.backoff):
		}
	}
	return errors.Wrapf(err, "payment outcome for %s failed after %d attempts", po.ReservationID, p.maxRetries)
}
