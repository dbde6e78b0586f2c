package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/court-reservations/internal/adapters/crdb"
	"github.com/robertarktes/court-reservations/internal/adapters/rabbit"
	"github.com/robertarktes/court-reservations/internal/config"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint, "courtbook-outbox-publisher")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn, cfg.RabbitExchange)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer rabbitPub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if pending, err := repo.PendingOutbox(ctx); err == nil {
		logger.WithField("pending", pending).Info("Outbox publisher started")
	}

	relay := outbox.NewRelay(repo, rabbitPub, logger, cfg.OutboxInterval, cfg.OutboxBatch)
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("outbox relay stopped")
	}
	logger.Info("Shutdown outbox publisher")
}
