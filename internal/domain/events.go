package domain

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const (
	EventReservationCreated        = "reservation.created"
	EventReservationUpdated        = "reservation.updated"
	EventReservationConfirmed      = "reservation.confirmed"
	EventReservationCancelled      = "reservation.cancelled"
	EventReservationPaymentUpdated = "reservation.payment_updated"
	EventReservationDeleted        = "reservation.deleted"
)

// Event is a reservation change queued for publication.
type Event struct {
	ID            uuid.UUID
	Type          string
	ReservationID uuid.UUID
	Payload       []byte
	OccurredAt    time.Time
}

type ReservationPayload struct {
	ReservationID uuid.UUID     `json:"reservation_id"`
	CourtID       int64         `json:"court_id"`
	Date          string        `json:"date"`
	Start         TimeOfDay     `json:"start"`
	End           TimeOfDay     `json:"end"`
	StartsAt      time.Time     `json:"starts_at"`
	EndsAt        time.Time     `json:"ends_at"`
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email,omitempty"`
	CustomerPhone string        `json:"customer_phone"`
	TotalAmount   float64       `json:"total_amount"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

func NewReservationEvent(eventType string, r Reservation, now time.Time) (Event, error) {
	payload, err := json.Marshal(ReservationPayload{
		ReservationID: r.ID,
		CourtID:       r.CourtID,
		Date:          r.Date.Format(DateLayout),
		Start:         r.Window.Start,
		End:           r.Window.End,
		StartsAt:      r.StartsAt,
		EndsAt:        r.EndsAt,
		CustomerName:  r.Customer.Name,
		CustomerEmail: r.Customer.Email,
		CustomerPhone: r.Customer.Phone,
		TotalAmount:   r.TotalAmount,
		Status:        r.Status,
		PaymentStatus: r.PaymentStatus,
	})
	if err != nil {
		return Event{}, errors.Wrap(err, "marshal reservation event")
	}
	return Event{
		ID:            uuid.New(),
		Type:          eventType,
		ReservationID: r.ID,
		Payload:       payload,
		OccurredAt:    now,
	}, nil
}

// StatusEvent picks the event type for a payment-driven change.
func StatusEvent(before, after Status) string {
	switch {
	case before != after && after == StatusConfirmed:
		return EventReservationConfirmed
	case before != after && after == StatusCancelled:
		return EventReservationCancelled
	default:
		return EventReservationPaymentUpdated
	}
}
