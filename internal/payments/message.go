package payments

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/booking"
	"github.com/robertarktes/court-reservations/internal/domain"
)

// Notification is the provider-neutral payment outcome accepted on the
// callback endpoint and the payments queue. ExternalReference carries the
// reservation id when the provider echoes it back instead.
type Notification struct {
	ReservationID     string  `json:"reservation_id"`
	ExternalReference string  `json:"external_reference"`
	Status            string  `json:"status"`
	PaymentID         string  `json:"payment_id"`
	Amount            float64 `json:"amount"`
	Method            string  `json:"method"`
}

func Decode(body []byte) (booking.PaymentOutcome, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return booking.PaymentOutcome{}, domain.NewValidationError("body", "must be a JSON payment notification")
	}
	return n.Outcome()
}

func (n Notification) Outcome() (booking.PaymentOutcome, error) {
	verr := &domain.ValidationError{}
	ref := strings.TrimSpace(n.ReservationID)
	if ref == "" {
		ref = strings.TrimSpace(n.ExternalReference)
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		verr.Add("reservation_id", "must be a reservation id")
	}
	outcome, err := domain.ParseOutcome(n.Status)
	if err != nil {
		verr.Add("status", "unknown payment status")
	}
	if n.Amount < 0 {
		verr.Add("amount", "must not be negative")
	}
	if err := verr.OrNil(); err != nil {
		return booking.PaymentOutcome{}, errors.WithStack(err)
	}
	return booking.PaymentOutcome{
		ReservationID:     id,
		Outcome:           outcome,
		ProviderPaymentID: strings.TrimSpace(n.PaymentID),
		Amount:            n.Amount,
		Method:            n.Method,
	}, nil
}
