package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
)

type memStore struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]domain.Reservation
	payments     map[string]domain.Payment
	events       []domain.Event
	customers    map[string]uuid.UUID
	customerErr  error
	txCalls      int
}

func newMemStore() *memStore {
	return &memStore{
		reservations: map[uuid.UUID]domain.Reservation{},
		payments:     map[string]domain.Payment{},
		customers:    map[string]uuid.UUID{},
	}
}

// WithTx holds the store mutex for the whole transaction and applies the
// working copy only when fn succeeds.
func (m *memStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCalls++

	tx := &memTx{
		reservations: make(map[uuid.UUID]domain.Reservation, len(m.reservations)),
		payments:     make(map[string]domain.Payment, len(m.payments)),
	}
	for k, v := range m.reservations {
		tx.reservations[k] = v
	}
	for k, v := range m.payments {
		tx.payments[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.reservations = tx.reservations
	m.payments = tx.payments
	m.events = append(m.events, tx.events...)
	return nil
}

func (m *memStore) GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "reservation %s", id)
	}
	return &r, nil
}

func (m *memStore) ListReservations(ctx context.Context, f domain.ReservationFilter) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reservation
	for _, r := range m.reservations {
		if f.CourtID != nil && r.CourtID != *f.CourtID {
			continue
		}
		if f.Date != nil && !r.Date.Equal(*f.Date) {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) ActiveReservations(ctx context.Context, courtID int64, date time.Time) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return active(m.reservations, courtID, date), nil
}

func (m *memStore) UpsertCustomer(ctx context.Context, c domain.Customer) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.customerErr != nil {
		return uuid.Nil, m.customerErr
	}
	if id, ok := m.customers[c.Email]; ok {
		return id, nil
	}
	id := uuid.New()
	m.customers[c.Email] = id
	return id, nil
}

func (m *memStore) Stats(ctx context.Context, today, since time.Time) (domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st domain.Stats
	seen := map[string]bool{}
	for _, r := range m.reservations {
		if r.Date.Equal(today) {
			st.TodayReservations++
		}
		switch r.PaymentStatus {
		case domain.PaymentPaid:
			st.TotalRevenue += r.TotalAmount
		case domain.PaymentPending:
			st.PendingPayments++
		}
		if !r.CreatedAt.Before(since) && !seen[r.Customer.Phone] {
			seen[r.Customer.Phone] = true
			st.ActiveCustomers++
		}
	}
	return st, nil
}

func (m *memStore) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

func active(all map[uuid.UUID]domain.Reservation, courtID int64, date time.Time) []domain.Reservation {
	var out []domain.Reservation
	for _, r := range all {
		if r.CourtID == courtID && r.Date.Equal(date) && r.Active() {
			out = append(out, r)
		}
	}
	return out
}

type memTx struct {
	reservations map[uuid.UUID]domain.Reservation
	payments     map[string]domain.Payment
	events       []domain.Event
}

func (t *memTx) ActiveReservations(ctx context.Context, courtID int64, date time.Time) ([]domain.Reservation, error) {
	return active(t.reservations, courtID, date), nil
}

func (t *memTx) LockReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	r, ok := t.reservations[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "reservation %s", id)
	}
	return &r, nil
}

// InsertReservation mirrors the partial unique index on exact active slots.
func (t *memTx) InsertReservation(ctx context.Context, r *domain.Reservation) error {
	for _, other := range t.reservations {
		if other.Active() && other.CourtID == r.CourtID && other.Date.Equal(r.Date) && other.Window == r.Window {
			return errors.Wrap(domain.ErrDuplicateSlot, "insert reservation")
		}
	}
	t.reservations[r.ID] = *r
	return nil
}

func (t *memTx) UpdateReservation(ctx context.Context, r *domain.Reservation) error {
	if _, ok := t.reservations[r.ID]; !ok {
		return domain.ErrNotFound
	}
	t.reservations[r.ID] = *r
	return nil
}

func (t *memTx) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.reservations[id]; !ok {
		return domain.ErrNotFound
	}
	delete(t.reservations, id)
	return nil
}

func (t *memTx) RecordPayment(ctx context.Context, p domain.Payment) error {
	t.payments[p.ProviderPaymentID] = p
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, e domain.Event) error {
	t.events = append(t.events, e)
	return nil
}

// memLocker is a per-court semaphore with a bounded wait.
type memLocker struct {
	mu    sync.Mutex
	wait  time.Duration
	slots map[int64]chan struct{}
	held  map[int64]int
}

func newMemLocker(wait time.Duration) *memLocker {
	return &memLocker{wait: wait, slots: map[int64]chan struct{}{}, held: map[int64]int{}}
}

func (l *memLocker) sem(courtID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[courtID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[courtID] = ch
	}
	return ch
}

func (l *memLocker) WithLock(ctx context.Context, courtID int64, fn func(ctx context.Context) error) error {
	sem := l.sem(courtID)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	select {
	case sem <- struct{}{}:
	case <-timer.C:
		return errors.Wrapf(domain.ErrLockTimeout, "court %d", courtID)
	case <-ctx.Done():
		return errors.Mark(ctx.Err(), domain.ErrLockTimeout)
	}
	l.mu.Lock()
	l.held[courtID]++
	l.mu.Unlock()
	defer func() { <-sem }()
	return fn(ctx)
}

func (l *memLocker) acquisitions(courtID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[courtID]
}

type memDirectory struct {
	venues []domain.Venue
}

func (d *memDirectory) ListVenues(ctx context.Context) ([]domain.Venue, error) {
	return d.venues, nil
}

func (d *memDirectory) GetVenue(ctx context.Context, id int64) (*domain.Venue, error) {
	for _, v := range d.venues {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, errors.Wrapf(domain.ErrNotFound, "venue %d", id)
}

func (d *memDirectory) ListCourts(ctx context.Context, venueID int64) ([]domain.Court, error) {
	v, err := d.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	return append([]domain.Court(nil), v.Courts...), nil
}

func (d *memDirectory) GetCourt(ctx context.Context, courtID int64) (*domain.Court, *domain.Venue, error) {
	for _, v := range d.venues {
		for _, c := range v.Courts {
			if c.ID == courtID {
				return &c, &v, nil
			}
		}
	}
	return nil, nil, errors.Wrapf(domain.ErrNotFound, "court %d", courtID)
}

type memAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *memAudit) Record(ctx context.Context, action string, id uuid.UUID, data map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}
