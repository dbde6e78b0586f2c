package booking

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("courtbook/booking")

type BookingRequest struct {
	CourtID  int64           `json:"court_id" validate:"gte=0"`
	Date     time.Time       `json:"date"`
	Window   domain.Window   `json:"window"`
	Customer domain.Customer `json:"customer"`
	Amount   float64         `json:"amount" validate:"gte=0"`
	Notes    string          `json:"notes" validate:"max=500"`
}

type CourtAvailability struct {
	Court domain.Court
	Free  []domain.Window
}

type Settings struct {
	Slots    domain.SlotConfig
	Location *time.Location
}

type Service struct {
	store     Store
	locker    Locker
	directory Directory
	audit     AuditTrail
	logger    observability.Logger
	settings  Settings
	now       func() time.Time
}

func NewService(store Store, locker Locker, directory Directory, audit AuditTrail, logger observability.Logger, settings Settings) *Service {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &Service{
		store:     store,
		locker:    locker,
		directory: directory,
		audit:     audit,
		logger:    logger,
		settings:  settings,
		now:       time.Now,
	}
}

func (s *Service) ListVenues(ctx context.Context) ([]domain.Venue, error) {
	return s.directory.ListVenues(ctx)
}

func (s *Service) ListCourts(ctx context.Context, venueID int64) ([]domain.Court, error) {
	return s.directory.ListCourts(ctx, venueID)
}

// GetFreeSlots lists the windows of the court's day not taken by an active
// reservation. The answer may be stale by the time the caller books.
func (s *Service) GetFreeSlots(ctx context.Context, courtID int64, date time.Time) ([]domain.Window, error) {
	ctx, span := tracer.Start(ctx, "booking.GetFreeSlots")
	defer span.End()
	span.SetAttributes(attribute.Int64("court.id", courtID))

	court, venue, err := s.directory.GetCourt(ctx, courtID)
	if err != nil {
		return nil, err
	}
	return s.freeSlots(ctx, *court, *venue, date)
}

func (s *Service) freeSlots(ctx context.Context, court domain.Court, venue domain.Venue, date time.Time) ([]domain.Window, error) {
	candidates := domain.GenerateSlots(venue.SlotConfig(s.settings.Slots))
	existing, err := s.store.ActiveReservations(ctx, court.ID, date)
	if err != nil {
		return nil, err
	}
	return domain.FreeSlots(date, venue.Location(s.settings.Location), candidates, existing), nil
}

// VenueAvailability computes free slots for every court of a venue concurrently.
func (s *Service) VenueAvailability(ctx context.Context, venueID int64, date time.Time) ([]CourtAvailability, error) {
	ctx, span := tracer.Start(ctx, "booking.VenueAvailability")
	defer span.End()

	venue, err := s.directory.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	courts, err := s.directory.ListCourts(ctx, venueID)
	if err != nil {
		return nil, err
	}

	out := make([]CourtAvailability, len(courts))
	g, gctx := errgroup.WithContext(ctx)
	for i, court := range courts {
		g.Go(func() error {
			free, err := s.freeSlots(gctx, court, *venue, date)
			if err != nil {
				return errors.Wrapf(err, "court %d", court.ID)
			}
			out[i] = CourtAvailability{Court: court, Free: free}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// BookSlot creates a pending reservation for the requested window, or fails
// with ErrOverlap / ErrDuplicateSlot when the court time is already taken.
func (s *Service) BookSlot(ctx context.Context, req BookingRequest) (*domain.Reservation, error) {
	ctx, span := tracer.Start(ctx, "booking.BookSlot")
	defer span.End()
	span.SetAttributes(attribute.Int64("court.id", req.CourtID))

	if err := req.validate(true); err != nil {
		observability.BookingsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	court, venue, err := s.directory.GetCourt(ctx, req.CourtID)
	if err != nil {
		return nil, err
	}
	customerID := s.upsertCustomer(ctx, req.Customer)
	return s.book(ctx, *court, *venue, req, customerID)
}

// BookAnyCourt books the window on the first court of the venue, by id, that
// still has it free.
func (s *Service) BookAnyCourt(ctx context.Context, venueID int64, req BookingRequest) (*domain.Reservation, error) {
	ctx, span := tracer.Start(ctx, "booking.BookAnyCourt")
	defer span.End()

	if err := req.validate(false); err != nil {
		observability.BookingsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	venue, err := s.directory.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	courts, err := s.directory.ListCourts(ctx, venueID)
	if err != nil {
		return nil, err
	}
	sort.Slice(courts, func(i, j int) bool { return courts[i].ID < courts[j].ID })

	customerID := s.upsertCustomer(ctx, req.Customer)
	for _, court := range courts {
		req.CourtID = court.ID
		r, err := s.book(ctx, court, *venue, req, customerID)
		if errors.IsAny(err, domain.ErrOverlap, domain.ErrDuplicateSlot) {
			continue
		}
		return r, err
	}
	return nil, errors.Wrapf(domain.ErrOverlap, "no court of venue %d is free at %s", venueID, req.Window)
}

func (s *Service) book(ctx context.Context, court domain.Court, venue domain.Venue, req BookingRequest, customerID *uuid.UUID) (*domain.Reservation, error) {
	now := s.now()
	res := domain.NewReservation(court.ID, req.Date, req.Window, venue.Location(s.settings.Location), req.Customer, req.Amount, req.Notes, now)
	res.CustomerID = customerID

	err := s.locker.WithLock(ctx, court.ID, func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx Tx) error {
			existing, err := tx.ActiveReservations(ctx, res.CourtID, res.Date)
			if err != nil {
				return err
			}
			if c := domain.FirstConflict(res.Interval(), existing, uuid.Nil); c != nil {
				return errors.Wrapf(domain.ErrOverlap, "court %d %s %s conflicts with %s", res.CourtID, res.Date.Format(domain.DateLayout), res.Window, c.Window)
			}
			if err := tx.InsertReservation(ctx, res); err != nil {
				return err
			}
			evt, err := domain.NewReservationEvent(domain.EventReservationCreated, *res, now)
			if err != nil {
				return err
			}
			return tx.AppendEvent(ctx, evt)
		})
	})

	log := observability.FromContext(ctx, s.logger).WithFields(map[string]interface{}{
		"court_id": court.ID,
		"date":     res.Date.Format(domain.DateLayout),
		"window":   res.Window.String(),
	})
	if err != nil {
		observability.BookingsTotal.WithLabelValues(bookingResult(err)).Inc()
		log.WithError(err).Info("booking rejected")
		return nil, err
	}
	observability.BookingsTotal.WithLabelValues("created").Inc()
	log.WithField("reservation_id", res.ID).Info("reservation created")
	s.record(ctx, "reservation.created", *res, nil)
	return res, nil
}

func bookingResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrOverlap):
		return "overlap"
	case errors.Is(err, domain.ErrDuplicateSlot):
		return "duplicate"
	case errors.Is(err, domain.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream"
	}
	return "error"
}

// upsertCustomer links the booking to a customer profile when an email is
// given. Failures never block the booking.
func (s *Service) upsertCustomer(ctx context.Context, c domain.Customer) *uuid.UUID {
	if c.Email == "" {
		return nil
	}
	id, err := s.store.UpsertCustomer(ctx, c)
	if err != nil {
		observability.FromContext(ctx, s.logger).WithError(err).Warn("customer upsert failed")
		return nil
	}
	return &id
}

func (s *Service) record(ctx context.Context, action string, r domain.Reservation, extra map[string]interface{}) {
	if s.audit == nil {
		return
	}
	data := map[string]interface{}{
		"court_id":       r.CourtID,
		"date":           r.Date.Format(domain.DateLayout),
		"start":          r.Window.Start.String(),
		"end":            r.Window.End.String(),
		"status":         string(r.Status),
		"payment_status": string(r.PaymentStatus),
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := s.audit.Record(ctx, action, r.ID, data); err != nil {
		observability.FromContext(ctx, s.logger).WithError(err).Warn("audit record failed")
	}
}
