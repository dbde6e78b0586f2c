package domain

import (
	"time"

	"github.com/google/uuid"
)

func NewReservation(courtID int64, date time.Time, w Window, loc *time.Location, c Customer, amount float64, notes string, now time.Time) *Reservation {
	in := w.On(date, loc)
	return &Reservation{
		ID:            uuid.New(),
		CourtID:       courtID,
		Date:          CivilDate(date, nil),
		Window:        w,
		StartsAt:      in.Start,
		EndsAt:        in.End,
		Customer:      c,
		TotalAmount:   amount,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		Notes:         notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ReservationPatch is a partial administrative edit. Nil fields are kept.
type ReservationPatch struct {
	CourtID       *int64
	Date          *time.Time
	Start         *TimeOfDay
	End           *TimeOfDay
	TotalAmount   *float64
	Status        *Status
	PaymentStatus *PaymentStatus
	Notes         *string
}

func (p ReservationPatch) Empty() bool {
	return p.CourtID == nil && p.Date == nil && p.Start == nil && p.End == nil &&
		p.TotalAmount == nil && p.Status == nil && p.PaymentStatus == nil && p.Notes == nil
}

func (p ReservationPatch) TargetCourt(current int64) int64 {
	if p.CourtID != nil {
		return *p.CourtID
	}
	return current
}

// Apply returns r with the patch applied. loc is the timezone of the target
// court's venue. A payment status without an explicit status derives one.
func (p ReservationPatch) Apply(r Reservation, loc *time.Location) (Reservation, error) {
	verr := &ValidationError{}
	next := r
	if p.CourtID != nil {
		if *p.CourtID <= 0 {
			verr.Add("court_id", "must be positive")
		}
		next.CourtID = *p.CourtID
	}
	if p.Date != nil {
		next.Date = CivilDate(*p.Date, nil)
	}
	if p.Start != nil {
		next.Window.Start = *p.Start
	}
	if p.End != nil {
		next.Window.End = *p.End
	}
	if !next.Window.Valid() {
		verr.Add("end", "must be after start")
	}
	if p.TotalAmount != nil {
		if *p.TotalAmount < 0 {
			verr.Add("total_amount", "must not be negative")
		}
		next.TotalAmount = *p.TotalAmount
	}
	if p.Notes != nil {
		next.Notes = *p.Notes
	}
	if p.PaymentStatus != nil {
		next.PaymentStatus = *p.PaymentStatus
		next.Status = DeriveStatus(*p.PaymentStatus)
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if err := verr.OrNil(); err != nil {
		return r, err
	}
	if ScheduleChanged(r, next) || p.CourtID != nil {
		in := next.Window.On(next.Date, loc)
		next.StartsAt, next.EndsAt = in.Start, in.End
	}
	return next, nil
}

func ScheduleChanged(before, after Reservation) bool {
	return before.CourtID != after.CourtID || !before.Date.Equal(after.Date) || before.Window != after.Window
}

// NeedsRevalidation reports whether moving from before to after claims court
// time that was not already held: a schedule change on an active reservation
// or the reactivation of a cancelled one.
func NeedsRevalidation(before, after Reservation) bool {
	if !after.Active() {
		return false
	}
	return ScheduleChanged(before, after) || !before.Active()
}
