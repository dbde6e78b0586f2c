package payments

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/court-reservations/internal/observability"
)

// Worker consumes payment notifications from the broker. Every delivery is
// acknowledged after processing; failures are logged for reconciliation.
type Worker struct {
	processor *Processor
	logger    observability.Logger
}

func NewWorker(processor *Processor, logger observability.Logger) *Worker {
	return &Worker{processor: processor, logger: logger}
}

func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	log := w.logger.WithFields(map[string]interface{}{
		"message_id":  d.MessageId,
		"routing_key": d.RoutingKey,
	})
	if err := w.processor.Process(observability.WithLogger(ctx, log), d.Body); err != nil {
		log.WithError(err).Error("payment notification not applied")
	}
	if err := d.Ack(false); err != nil {
		log.WithError(err).Error("failed to ack delivery")
	}
}
