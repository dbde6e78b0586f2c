package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/court-reservations/internal/observability"
)

type OutboxRecord struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Status        string // NEW, PUBLISHED, FAILED
	DedupeKey     string
}

func insertOutbox(ctx context.Context, tx pgx.Tx, record OutboxRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload_json, created_at, status, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, $6, 'NEW', $7)
	`, record.ID, record.AggregateType, record.AggregateID, record.EventType, record.Payload, record.CreatedAt, record.DedupeKey)
	return classify(err, "insert outbox")
}

// RelayOutbox claims up to limit unpublished records in creation order and
// hands each to publish. Records are marked published in the same
// transaction; the batch stops at the first publish failure so ordering holds.
func (r *Repository) RelayOutbox(ctx context.Context, limit int, publish func(ctx context.Context, rec OutboxRecord) error) (int, error) {
	published := 0
	err := r.withPgxTx(ctx, func(tx pgx.Tx) error {
		published = 0
		rows, err := tx.Query(ctx, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload_json, created_at, published_at, status, dedupe_key
			FROM outbox WHERE status = 'NEW' ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return err
		}
		records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutboxRecord, error) {
			var rec OutboxRecord
			err := row.Scan(&rec.ID, &rec.AggregateType, &rec.AggregateID, &rec.EventType, &rec.Payload, &rec.CreatedAt, &rec.PublishedAt, &rec.Status, &rec.DedupeKey)
			return rec, err
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			observability.OutboxLag.Set(0)
			return nil
		}
		observability.OutboxLag.Set(time.Since(records[0].CreatedAt).Seconds())

		for _, rec := range records {
			if err := publish(ctx, rec); err != nil {
				if published == 0 {
					return err
				}
				return nil
			}
			if _, err := tx.Exec(ctx, `
				UPDATE outbox SET status = 'PUBLISHED', published_at = now() WHERE id = $1
			`, rec.ID); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	return published, err
}

func (r *Repository) PendingOutbox(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE status = 'NEW'`).Scan(&n)
	return n, classify(err, "count outbox")
}
