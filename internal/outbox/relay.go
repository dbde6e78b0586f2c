package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/court-reservations/internal/adapters/crdb"
	"github.com/robertarktes/court-reservations/internal/observability"
)

type Source interface {
	RelayOutbox(ctx context.Context, limit int, publish func(ctx context.Context, rec crdb.OutboxRecord) error) (int, error)
}

type Sink interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Relay moves committed outbox records to the message broker. Delivery is at
// least once; consumers dedupe on MessageId.
type Relay struct {
	source   Source
	sink     Sink
	logger   observability.Logger
	interval time.Duration
	batch    int
}

func NewRelay(source Source, sink Sink, logger observability.Logger, interval time.Duration, batch int) *Relay {
	return &Relay{source: source, sink: sink, logger: logger, interval: interval, batch: batch}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain relays full batches back to back until the outbox runs dry.
func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.RelayOnce(ctx)
		if err != nil {
			r.logger.WithError(err).Error("outbox relay failed")
			return
		}
		if n < r.batch {
			return
		}
	}
}

func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	n, err := r.source.RelayOutbox(ctx, r.batch, func(ctx context.Context, rec crdb.OutboxRecord) error {
		return r.sink.Publish(ctx, rec.EventType, amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Type:        rec.EventType,
			Timestamp:   rec.CreatedAt,
			Body:        rec.Payload,
			Headers: amqp.Table{
				"aggregate_type": rec.AggregateType,
				"aggregate_id":   rec.AggregateID.String(),
			},
		})
	})
	if n > 0 {
		r.logger.WithField("count", n).Debug("outbox records published")
	}
	return n, err
}
