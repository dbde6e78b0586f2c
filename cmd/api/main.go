package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/court-reservations/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/court-reservations/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
	"github.com/robertarktes/court-reservations/internal/booking"
	"github.com/robertarktes/court-reservations/internal/config"
	httphandler "github.com/robertarktes/court-reservations/internal/http"
	"github.com/robertarktes/court-reservations/internal/idempotency"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/payments"
	"github.com/robertarktes/court-reservations/internal/ratelimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint, "courtbook-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	if cfg.AutoMigrate {
		if err := repo.Migrate(context.Background()); err != nil {
			log.Fatalf("failed to migrate crdb: %v", err)
		}
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDatabase)
	directory := mongoadapter.NewDirectory(mongoDB, logger)
	if err := directory.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("failed to create mongo indexes: %v", err)
	}
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := redisadapter.NewCache(redisClient)
	locker := redisadapter.NewCourtLocker(redisClient, cfg.LockWait, cfg.LockLease, logger)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
	rl := ratelimit.NewRateLimiter(redisCache)

	slots, err := cfg.SlotDefaults()
	if err != nil {
		log.Fatalf("invalid slot defaults: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid venue timezone: %v", err)
	}
	svc := booking.NewService(repo, locker, directory, audit, logger, booking.Settings{Slots: slots, Location: loc})
	processor := payments.NewProcessor(svc, logger, 100*time.Millisecond)

	checks := map[string]httphandler.Checker{
		"crdb":  repo.Ping,
		"redis": redisCache.Ping,
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
	}
	handlers := httphandler.NewHandlers(svc, processor, audit, checks, logger)

	r := httphandler.SetupRouter(handlers, logger, httphandler.RouterOptions{
		Limiter:            rl,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Idempotency:        idemp,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
