package crdb

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/court-reservations/internal/booking"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
	"golang.org/x/sync/errgroup"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
	LockNotAvailableCode     = "55P03"

	maxTxAttempts = 3
)

var errSerialization = errors.New("serialization failure")

const reservationColumns = `id, court_id, reservation_date, start_minute, end_minute, starts_at, ends_at,
	customer_id, customer_name, customer_email, customer_phone, total_amount, status, payment_status,
	notes, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return classify(r.pool.Ping(ctx), "ping")
}

// WithTx runs fn in a SERIALIZABLE transaction, retrying serialization
// failures a bounded number of times.
func (r *Repository) WithTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	return r.withPgxTx(ctx, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

func (r *Repository) withPgxTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = r.runTx(ctx, fn)
		if !errors.Is(err, errSerialization) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Mark(errors.Wrap(ctx.Err(), "retry transaction"), domain.ErrLockTimeout)
		case <-time.After(time.Duration(1<<attempt) * 20 * time.Millisecond):
		}
	}
	return errors.Mark(err, domain.ErrLockTimeout)
}

func (r *Repository) runTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() { observability.DBTxDuration.Observe(time.Since(start).Seconds()) }()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return classify(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return classify(err, "tx")
	}
	return classify(tx.Commit(ctx), "commit")
}

// classify maps driver failures onto the domain taxonomy.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.IsAny(err, domain.ErrValidation, domain.ErrOverlap, domain.ErrDuplicateSlot, domain.ErrNotFound,
		domain.ErrInvalidTransition, domain.ErrLockTimeout, domain.ErrUpstream, errSerialization) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case SerializationFailureCode:
			return errors.Mark(errors.Wrap(err, op), errSerialization)
		case UniqueViolationCode:
			return errors.Mark(errors.Wrap(err, op), domain.ErrDuplicateSlot)
		case LockNotAvailableCode:
			return errors.Mark(errors.Wrap(err, op), domain.ErrLockTimeout)
		}
		return errors.Wrap(err, op)
	}
	if errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
		return errors.Wrap(err, op)
	}
	return errors.Mark(errors.Wrap(err, op), domain.ErrUpstream)
}

func (r *Repository) GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(domain.ErrNotFound, "reservation %s", id)
	}
	return res, classify(err, "get reservation")
}

func (r *Repository) ActiveReservations(ctx context.Context, courtID int64, date time.Time) ([]domain.Reservation, error) {
	return activeReservations(ctx, r.pool, courtID, date, "")
}

func (r *Repository) ListReservations(ctx context.Context, f domain.ReservationFilter) ([]domain.Reservation, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.CourtID != nil {
		add("court_id = ?", *f.CourtID)
	}
	if f.Date != nil {
		add("reservation_date = ?", *f.Date)
	}
	if f.Status != nil {
		add("status = ?", string(*f.Status))
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	q += ` ORDER BY reservation_date DESC, start_minute ASC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, classify(err, "list reservations")
	}
	return collectReservations(rows)
}

func (r *Repository) UpsertCustomer(ctx context.Context, c domain.Customer) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (id, full_name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET full_name = excluded.full_name, phone = excluded.phone, updated_at = now()
		RETURNING id
	`, uuid.New(), c.Name, c.Email, c.Phone).Scan(&id)
	if err != nil {
		return uuid.Nil, classify(err, "upsert customer")
	}
	return id, nil
}

// Stats runs the dashboard aggregates concurrently.
func (r *Repository) Stats(ctx context.Context, today, since time.Time) (domain.Stats, error) {
	var st domain.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT count(*) FROM reservations WHERE reservation_date = $1`, today).Scan(&st.TodayReservations)
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COALESCE(sum(total_amount), 0) FROM reservations WHERE payment_status = 'paid'`).Scan(&st.TotalRevenue)
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT count(*) FROM reservations WHERE payment_status = 'pending'`).Scan(&st.PendingPayments)
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `
			SELECT count(DISTINCT COALESCE(NULLIF(customer_email, ''), customer_phone))
			FROM reservations WHERE created_at >= $1
		`, since).Scan(&st.ActiveCustomers)
	})
	if err := g.Wait(); err != nil {
		return domain.Stats{}, classify(err, "stats")
	}
	return st, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func activeReservations(ctx context.Context, q querier, courtID int64, date time.Time, suffix string) ([]domain.Reservation, error) {
	rows, err := q.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE court_id = $1 AND reservation_date = $2 AND status <> 'cancelled'
		ORDER BY start_minute`+suffix, courtID, date)
	if err != nil {
		return nil, classify(err, "active reservations")
	}
	return collectReservations(rows)
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()
	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, classify(err, "scan reservation")
		}
		out = append(out, *res)
	}
	return out, classify(rows.Err(), "iterate reservations")
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		res        domain.Reservation
		start, end int32
		status     string
		payment    string
	)
	err := row.Scan(
		&res.ID, &res.CourtID, &res.Date, &start, &end, &res.StartsAt, &res.EndsAt,
		&res.CustomerID, &res.Customer.Name, &res.Customer.Email, &res.Customer.Phone, &res.TotalAmount,
		&status, &payment, &res.Notes, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Window = domain.Window{Start: domain.TimeOfDay(start), End: domain.TimeOfDay(end)}
	res.Status = domain.Status(status)
	res.PaymentStatus = domain.PaymentStatus(payment)
	res.Date = domain.CivilDate(res.Date, nil)
	return &res, nil
}
