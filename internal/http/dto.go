package http

import (
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/booking"
	"github.com/robertarktes/court-reservations/internal/domain"
)

type bookingRequest struct {
	CourtID  int64           `json:"court_id"`
	Date     string          `json:"date"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Customer domain.Customer `json:"customer"`
	Amount   float64         `json:"amount"`
	Notes    string          `json:"notes"`
}

func (b bookingRequest) toDomain() (booking.BookingRequest, error) {
	verr := &domain.ValidationError{}
	date, err := domain.ParseDate(b.Date)
	if err != nil {
		verr.Add("date", "must be YYYY-MM-DD")
	}
	start, err := domain.ParseTimeOfDay(b.Start)
	if err != nil {
		verr.Add("start", "must be HH:MM")
	}
	end, err := domain.ParseTimeOfDay(b.End)
	if err != nil {
		verr.Add("end", "must be HH:MM")
	}
	if err := verr.OrNil(); err != nil {
		return booking.BookingRequest{}, err
	}
	return booking.BookingRequest{
		CourtID:  b.CourtID,
		Date:     date,
		Window:   domain.Window{Start: start, End: end},
		Customer: b.Customer,
		Amount:   b.Amount,
		Notes:    b.Notes,
	}, nil
}

type patchRequest struct {
	CourtID       *int64   `json:"court_id"`
	Date          *string  `json:"date"`
	Start         *string  `json:"start"`
	End           *string  `json:"end"`
	TotalAmount   *float64 `json:"total_amount"`
	Status        *string  `json:"status"`
	PaymentStatus *string  `json:"payment_status"`
	Notes         *string  `json:"notes"`
}

func (p patchRequest) toDomain() (domain.ReservationPatch, error) {
	verr := &domain.ValidationError{}
	patch := domain.ReservationPatch{CourtID: p.CourtID, TotalAmount: p.TotalAmount, Notes: p.Notes}
	if p.Date != nil {
		d, err := domain.ParseDate(*p.Date)
		if err != nil {
			verr.Add("date", "must be YYYY-MM-DD")
		}
		patch.Date = &d
	}
	if p.Start != nil {
		t, err := domain.ParseTimeOfDay(*p.Start)
		if err != nil {
			verr.Add("start", "must be HH:MM")
		}
		patch.Start = &t
	}
	if p.End != nil {
		t, err := domain.ParseTimeOfDay(*p.End)
		if err != nil {
			verr.Add("end", "must be HH:MM")
		}
		patch.End = &t
	}
	if p.Status != nil {
		st, err := domain.ParseStatus(*p.Status)
		if err != nil {
			verr.Add("status", "must be one of pending, confirmed, cancelled")
		}
		patch.Status = &st
	}
	if p.PaymentStatus != nil {
		ps, err := domain.ParsePaymentStatus(*p.PaymentStatus)
		if err != nil {
			verr.Add("payment_status", "must be one of pending, paid, failed, refunded")
		}
		patch.PaymentStatus = &ps
	}
	return patch, verr.OrNil()
}

type customerResponse struct {
	ID    *uuid.UUID `json:"id,omitempty"`
	Name  string     `json:"name"`
	Email string     `json:"email,omitempty"`
	Phone string     `json:"phone"`
}

type reservationResponse struct {
	ID            uuid.UUID            `json:"id"`
	CourtID       int64                `json:"court_id"`
	Date          string               `json:"date"`
	Start         domain.TimeOfDay     `json:"start"`
	End           domain.TimeOfDay     `json:"end"`
	StartsAt      time.Time            `json:"starts_at"`
	EndsAt        time.Time            `json:"ends_at"`
	Customer      customerResponse     `json:"customer"`
	TotalAmount   float64              `json:"total_amount"`
	Status        domain.Status        `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	Notes         string               `json:"notes,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func toReservationResponse(r domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:       r.ID,
		CourtID:  r.CourtID,
		Date:     r.Date.Format(domain.DateLayout),
		Start:    r.Window.Start,
		End:      r.Window.End,
		StartsAt: r.StartsAt,
		EndsAt:   r.EndsAt,
		Customer: customerResponse{
			ID:    r.CustomerID,
			Name:  r.Customer.Name,
			Email: r.Customer.Email,
			Phone: r.Customer.Phone,
		},
		TotalAmount:   r.TotalAmount,
		Status:        r.Status,
		PaymentStatus: r.PaymentStatus,
		Notes:         r.Notes,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type hoursResponse struct {
	Open        domain.TimeOfDay `json:"open"`
	Close       domain.TimeOfDay `json:"close"`
	SlotMinutes int              `json:"slot_minutes"`
	StepMinutes int              `json:"step_minutes"`
}

type courtResponse struct {
	ID      int64  `json:"id"`
	VenueID int64  `json:"venue_id"`
	Name    string `json:"name"`
}

type venueResponse struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Address  string          `json:"address,omitempty"`
	Phone    string          `json:"phone,omitempty"`
	Email    string          `json:"email,omitempty"`
	Timezone string          `json:"timezone,omitempty"`
	Hours    *hoursResponse  `json:"hours,omitempty"`
	Courts   []courtResponse `json:"courts"`
}

func toCourtResponses(courts []domain.Court) []courtResponse {
	out := make([]courtResponse, 0, len(courts))
	for _, c := range courts {
		out = append(out, courtResponse{ID: c.ID, VenueID: c.VenueID, Name: c.Name})
	}
	return out
}

func toVenueResponse(v domain.Venue) venueResponse {
	resp := venueResponse{
		ID:       v.ID,
		Name:     v.Name,
		Address:  v.Address,
		Phone:    v.Phone,
		Email:    v.Email,
		Timezone: v.Timezone,
		Courts:   toCourtResponses(v.Courts),
	}
	if v.Slots != nil {
		resp.Hours = &hoursResponse{Open: v.Slots.Open, Close: v.Slots.Close, SlotMinutes: v.Slots.SlotMinutes, StepMinutes: v.Slots.StepMinutes}
	}
	return resp
}

type availabilityResponse struct {
	CourtID int64           `json:"court_id"`
	Court   string          `json:"court,omitempty"`
	Date    string          `json:"date"`
	Slots   []domain.Window `json:"slots"`
}

func parseFilter(q url.Values) (domain.ReservationFilter, error) {
	verr := &domain.ValidationError{}
	var f domain.ReservationFilter
	if v := q.Get("court_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			verr.Add("court_id", "must be a positive integer")
		}
		f.CourtID = &id
	}
	if v := q.Get("date"); v != "" {
		d, err := domain.ParseDate(v)
		if err != nil {
			verr.Add("date", "must be YYYY-MM-DD")
		}
		f.Date = &d
	}
	if v := q.Get("status"); v != "" {
		st, err := domain.ParseStatus(v)
		if err != nil {
			verr.Add("status", "must be one of pending, confirmed, cancelled")
		}
		f.Status = &st
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			verr.Add("limit", "must be a positive integer")
		}
		f.Limit = n
	}
	return f, verr.OrNil()
}
