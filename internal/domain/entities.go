package domain

import (
	"time"

	"github.com/google/uuid"
)

type Venue struct {
	ID       int64
	Name     string
	Address  string
	Phone    string
	Email    string
	Timezone string
	// Slots overrides the global slot defaults when set.
	Slots  *SlotConfig
	Courts []Court
}

func (v Venue) SlotConfig(defaults SlotConfig) SlotConfig {
	if v.Slots != nil {
		return *v.Slots
	}
	return defaults
}

// Location resolves the venue timezone, falling back to def.
func (v Venue) Location(def *time.Location) *time.Location {
	if v.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(v.Timezone)
	if err != nil {
		return def
	}
	return loc
}

type Court struct {
	ID      int64
	VenueID int64
	Name    string
}

type Customer struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"omitempty,email,max=254"`
	Phone string `json:"phone" validate:"required,min=6,max=32"`
}

type Reservation struct {
	ID            uuid.UUID
	CourtID       int64
	Date          time.Time
	Window        Window
	StartsAt      time.Time
	EndsAt        time.Time
	CustomerID    *uuid.UUID
	Customer      Customer
	TotalAmount   float64
	Status        Status
	PaymentStatus PaymentStatus
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r Reservation) Interval() Interval {
	return Interval{Start: r.StartsAt, End: r.EndsAt}
}

// Active reservations occupy their court time.
func (r Reservation) Active() bool {
	return r.Status != StatusCancelled
}

// Payment is one provider notification recorded against a reservation.
type Payment struct {
	ProviderPaymentID string
	ReservationID     uuid.UUID
	Outcome           Outcome
	Amount            float64
	Method            string
	ReceivedAt        time.Time
}

type ReservationFilter struct {
	CourtID *int64
	Date    *time.Time
	Status  *Status
	Limit   int
}

type Stats struct {
	TodayReservations int     `json:"today_reservations"`
	TotalRevenue      float64 `json:"total_revenue"`
	PendingPayments   int     `json:"pending_payments"`
	ActiveCustomers   int     `json:"active_customers"`
}
