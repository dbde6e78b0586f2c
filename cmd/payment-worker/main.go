package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/court-reservations/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/court-reservations/internal/adapters/mongo"
	"github.com/robertarktes/court-reservations/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
	"github.com/robertarktes/court-reservations/internal/booking"
	"github.com/robertarktes/court-reservations/internal/config"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/payments"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// payment-worker applies payment notifications that arrive on the broker
// instead of the HTTP callback.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint, "courtbook-payment-worker")
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

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDatabase)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	slots, err := cfg.SlotDefaults()
	if err != nil {
		log.Fatalf("invalid slot defaults: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid venue timezone: %v", err)
	}
	svc := booking.NewService(
		repo,
		redisadapter.NewCourtLocker(redisClient, cfg.LockWait, cfg.LockLease, logger),
		mongoadapter.NewDirectory(mongoDB, logger),
		mongoadapter.NewAuditLogger(mongoDB, logger),
		logger,
		booking.Settings{Slots: slots, Location: loc},
	)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, cfg.RabbitExchange, cfg.PaymentQueue, []string{"payment.#"}, 16)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to consume %s: %v", cfg.PaymentQueue, err)
	}

	worker := payments.NewWorker(payments.NewProcessor(svc, logger, 200*time.Millisecond), logger)
	logger.WithField("queue", cfg.PaymentQueue).Info("payment worker started")
	if err := worker.Run(ctx, deliveries); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("payment worker stopped")
	}
	logger.Info("Shutdown payment worker")
}
