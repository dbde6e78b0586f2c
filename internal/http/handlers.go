package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mongoadapter "github.com/robertarktes/court-reservations/internal/adapters/mongo"
	"github.com/robertarktes/court-reservations/internal/booking"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/payments"
	"golang.org/x/sync/errgroup"
)

const maxBodyBytes = 1 << 20

type BookingService interface {
	ListVenues(ctx context.Context) ([]domain.Venue, error)
	ListCourts(ctx context.Context, venueID int64) ([]domain.Court, error)
	GetFreeSlots(ctx context.Context, courtID int64, date time.Time) ([]domain.Window, error)
	VenueAvailability(ctx context.Context, venueID int64, date time.Time) ([]booking.CourtAvailability, error)
	BookSlot(ctx context.Context, req booking.BookingRequest) (*domain.Reservation, error)
	BookAnyCourt(ctx context.Context, venueID int64, req booking.BookingRequest) (*domain.Reservation, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]domain.Reservation, error)
	UpdateReservation(ctx context.Context, id uuid.UUID, patch domain.ReservationPatch) (*domain.Reservation, error)
	DeleteReservation(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (domain.Stats, error)
}

type HistoryReader interface {
	History(ctx context.Context, reservationID uuid.UUID) ([]mongoadapter.AuditLog, error)
}

// Checker reports whether a dependency is ready to serve traffic.
type Checker func(ctx context.Context) error

type Handlers struct {
	svc      BookingService
	payments *payments.Processor
	history  HistoryReader
	checks   map[string]Checker
	logger   observability.Logger
}

func NewHandlers(svc BookingService, processor *payments.Processor, history HistoryReader, checks map[string]Checker, logger observability.Logger) *Handlers {
	return &Handlers{
		svc:      svc,
		payments: processor,
		history:  history,
		checks:   checks,
		logger:   logger,
	}
}

func (h *Handlers) ListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := h.svc.ListVenues(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := make([]venueResponse, 0, len(venues))
	for _, v := range venues {
		resp = append(resp, toVenueResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ListCourts(w http.ResponseWriter, r *http.Request) {
	venueID, err := pathID(r, "venueID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	courts, err := h.svc.ListCourts(r.Context(), venueID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCourtResponses(courts))
}

func (h *Handlers) GetFreeSlots(w http.ResponseWriter, r *http.Request) {
	courtID, err := pathID(r, "courtID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	date, err := queryDate(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	free, err := h.svc.GetFreeSlots(r.Context(), courtID, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		CourtID: courtID,
		Date:    date.Format(domain.DateLayout),
		Slots:   free,
	})
}

func (h *Handlers) VenueAvailability(w http.ResponseWriter, r *http.Request) {
	venueID, err := pathID(r, "venueID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	date, err := queryDate(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	avail, err := h.svc.VenueAvailability(r.Context(), venueID, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := make([]availabilityResponse, 0, len(avail))
	for _, a := range avail {
		resp = append(resp, availabilityResponse{
			CourtID: a.Court.ID,
			Court:   a.Court.Name,
			Date:    date.Format(domain.DateLayout),
			Slots:   a.Free,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) BookSlot(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeBooking(w, r)
	if !ok {
		return
	}
	res, err := h.svc.BookSlot(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(*res))
}

func (h *Handlers) BookAnyCourt(w http.ResponseWriter, r *http.Request) {
	venueID, err := pathID(r, "venueID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req, ok := h.decodeBooking(w, r)
	if !ok {
		return
	}
	res, err := h.svc.BookAnyCourt(r.Context(), venueID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(*res))
}

func (h *Handlers) decodeBooking(w http.ResponseWriter, r *http.Request) (booking.BookingRequest, bool) {
	var body bookingRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return booking.BookingRequest{}, false
	}
	req, err := body.toDomain()
	if err != nil {
		writeError(w, r, h.logger, err)
		return booking.BookingRequest{}, false
	}
	return req, true
}

func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(*res))
}

// PaymentCallback always acknowledges so the provider stops redelivering.
// Failures are logged and left for reconciliation.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	log := observability.FromContext(r.Context(), h.logger)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.WithError(err).Warn("failed to read payment callback")
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if err := h.payments.Process(r.Context(), body); err != nil {
		log.WithError(err).Error("payment callback not applied")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handlers) ListReservations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.svc.ListReservations(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := make([]reservationResponse, 0, len(list))
	for _, res := range list {
		resp = append(resp, toReservationResponse(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body patchRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	patch, err := body.toDomain()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.UpdateReservation(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(*res))
}

func (h *Handlers) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.DeleteReservation(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type historyEntry struct {
	Action    string                 `json:"action"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func (h *Handlers) ReservationHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, r, h.logger, domain.ErrNotFound)
		return
	}
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	logs, err := h.history.History(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := make([]historyEntry, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, historyEntry{Action: l.Action, Timestamp: l.Timestamp, Data: l.Data})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Readyz runs every dependency check concurrently and reports each result.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	errs := make([]error, len(h.checks))
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	var g errgroup.Group
	for i, name := range names {
		check := h.checks[name]
		g.Go(func() error {
			errs[i] = check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	for i, name := range names {
		if errs[i] != nil {
			observability.FromContext(r.Context(), h.logger).WithError(errs[i]).WithField("dependency", name).Warn("readiness check failed")
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, results)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "malformed JSON: "+err.Error())
	}
	return nil
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(param, "must be a positive integer")
	}
	return id, nil
}

func pathUUID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("id", "must be a UUID")
	}
	return id, nil
}

func queryDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Time{}, domain.NewValidationError("date", "is required")
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError("date", "must be YYYY-MM-DD")
	}
	return d, nil
}
