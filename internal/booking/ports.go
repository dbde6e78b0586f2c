package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
)

// Store is the authoritative reservation store. WithTx runs fn in a single
// serializable transaction and may call it more than once on contention.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error)
	ActiveReservations(ctx context.Context, courtID int64, date time.Time) ([]domain.Reservation, error)
	UpsertCustomer(ctx context.Context, c domain.Customer) (uuid.UUID, error)
	Stats(ctx context.Context, today time.Time, since time.Time) (domain.Stats, error)
}

type Tx interface {
	ActiveReservations(ctx context.Context, courtID int64, date time.Time) ([]domain.Reservation, error)
	LockReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	InsertReservation(ctx context.Context, r *domain.Reservation) error
	UpdateReservation(ctx context.Context, r *domain.Reservation) error
	DeleteReservation(ctx context.Context, id uuid.UUID) error
	RecordPayment(ctx context.Context, p domain.Payment) error
	AppendEvent(ctx context.Context, e domain.Event) error
}

// Locker serializes work per court. fn runs only while the court is held and
// the hold is released on every exit path.
type Locker interface {
	WithLock(ctx context.Context, courtID int64, fn func(ctx context.Context) error) error
}

type Directory interface {
	ListVenues(ctx context.Context) ([]domain.Venue, error)
	GetVenue(ctx context.Context, id int64) (*domain.Venue, error)
	ListCourts(ctx context.Context, venueID int64) ([]domain.Court, error)
	GetCourt(ctx context.Context, courtID int64) (*domain.Court, *domain.Venue, error)
}

type AuditTrail interface {
	Record(ctx context.Context, action string, reservationID uuid.UUID, data map[string]interface{}) error
}
