package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id UUID PRIMARY KEY,
	full_name TEXT NOT NULL,
	email TEXT UNIQUE,
	phone TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reservations (
	id UUID PRIMARY KEY,
	court_id INT8 NOT NULL,
	reservation_date DATE NOT NULL,
	start_minute INT4 NOT NULL,
	end_minute INT4 NOT NULL,
	starts_at TIMESTAMPTZ NOT NULL,
	ends_at TIMESTAMPTZ NOT NULL,
	customer_id UUID REFERENCES customers (id) ON DELETE SET NULL,
	customer_name TEXT NOT NULL,
	customer_email TEXT NOT NULL DEFAULT '',
	customer_phone TEXT NOT NULL,
	total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
	status TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'cancelled')),
	payment_status TEXT NOT NULL CHECK (payment_status IN ('pending', 'paid', 'failed', 'refunded')),
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (end_minute > start_minute)
);

CREATE INDEX IF NOT EXISTS reservations_court_date_idx ON reservations (court_id, reservation_date);

CREATE UNIQUE INDEX IF NOT EXISTS reservations_active_slot_uq
	ON reservations (court_id, reservation_date, start_minute, end_minute)
	WHERE status <> 'cancelled';

CREATE TABLE IF NOT EXISTS payments (
	provider_payment_id TEXT PRIMARY KEY,
	reservation_id UUID NOT NULL,
	outcome TEXT NOT NULL,
	amount NUMERIC(12,2) NOT NULL DEFAULT 0,
	method TEXT NOT NULL DEFAULT '',
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
	dedupe_key TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS outbox_status_created_idx ON outbox (status, created_at);
`

// Migrate creates the schema if it does not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}
