package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/court-reservations/internal/booking"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubApplier struct {
	mu    sync.Mutex
	calls []booking.PaymentOutcome
	errs  []error
}

func (s *stubApplier) ApplyPaymentOutcome(ctx context.Context, po booking.PaymentOutcome) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, po)
	if len(s.errs) == 0 {
		return &domain.Reservation{ID: po.ReservationID}, nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return nil, err
}

type ackRecorder struct {
	mu    sync.Mutex
	acked []uint64
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error { return nil }
func (a *ackRecorder) Reject(tag uint64, requeue bool) error         { return nil }

func TestDecode(t *testing.T) {
	id := uuid.New()
	po, err := Decode([]byte(`{"external_reference":"` + id.String() + `","status":"in_process","payment_id":"mp-1","amount":12000,"method":"card"}`))
	require.NoError(t, err)
	assert.Equal(t, id, po.ReservationID)
	assert.Equal(t, domain.OutcomePending, po.Outcome)
	assert.Equal(t, "mp-1", po.ProviderPaymentID)

	_, err = Decode([]byte(`{"reservation_id":"nope","status":"weird"}`))
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "reservation_id")
	assert.Contains(t, verr.Fields, "status")

	_, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProcessor_RetriesRetryableFailures(t *testing.T) {
	applier := &stubApplier{errs: []error{
		errors.Wrap(domain.ErrLockTimeout, "court busy"),
		errors.Mark(errors.New("connection reset"), domain.ErrUpstream),
	}}
	p := NewProcessor(applier, observability.NopLogger(), time.Millisecond)

	err := p.Apply(context.Background(), booking.PaymentOutcome{ReservationID: uuid.New(), Outcome: domain.OutcomeApproved})
	require.NoError(t, err)
	assert.Len(t, applier.calls, 3)
}

func TestProcessor_GivesUp(t *testing.T) {
	applier := &stubApplier{errs: []error{domain.ErrUpstream, domain.ErrUpstream, domain.ErrUpstream, domain.ErrUpstream}}
	p := NewProcessor(applier, observability.NopLogger(), time.Millisecond)

	err := p.Apply(context.Background(), booking.PaymentOutcome{ReservationID: uuid.New(), Outcome: domain.OutcomeApproved})
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Len(t, applier.calls, 3)
}

func TestProcessor_DoesNotSleepAfterLastAttempt(t *testing.T) {
	applier := &stubApplier{errs: []error{domain.ErrUpstream, domain.ErrUpstream, domain.ErrUpstream}}
	p := NewProcessor(applier, observability.NopLogger(), 100*time.Millisecond)

	start := time.Now()
	err := p.Apply(context.Background(), booking.PaymentOutcome{ReservationID: uuid.New(), Outcome: domain.OutcomeApproved})
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Len(t, applier.calls, 3)
	// backoffs of 100ms and 200ms between the three attempts, nothing after
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 600*time.Millisecond)
}

func TestProcessor_DoesNotRetryPermanentFailures(t *testing.T) {
	applier := &stubApplier{errs: []error{domain.ErrInvalidTransition}}
	p := NewProcessor(applier, observability.NopLogger(), time.Millisecond)

	err := p.Apply(context.Background(), booking.PaymentOutcome{ReservationID: uuid.New(), Outcome: domain.OutcomeApproved})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Len(t, applier.calls, 1)
}

func TestWorker_AcksEveryDelivery(t *testing.T) {
	applier := &stubApplier{errs: []error{nil, domain.ErrNotFound}}
	w := NewWorker(NewProcessor(applier, observability.NopLogger(), time.Millisecond), observability.NopLogger())
	acks := &ackRecorder{}

	deliveries := make(chan amqp.Delivery, 3)
	for i, body := range []string{
		`{"reservation_id":"` + uuid.NewString() + `","status":"approved"}`,
		`{"reservation_id":"` + uuid.NewString() + `","status":"approved"}`,
		`garbage`,
	} {
		deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: uint64(i + 1), Body: []byte(body)}
	}
	close(deliveries)

	require.NoError(t, w.Run(context.Background(), deliveries))
	assert.Equal(t, []uint64{1, 2, 3}, acks.acked)
	assert.Len(t, applier.calls, 2)
}
