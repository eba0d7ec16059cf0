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
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	mongoadapter "github.com/veloztours/booking-engine/internal/adapters/mongo"
	"github.com/veloztours/booking-engine/internal/adapters/pg"
	"github.com/veloztours/booking-engine/internal/adapters/rabbit"
	redisadapter "github.com/veloztours/booking-engine/internal/adapters/redis"
	"github.com/veloztours/booking-engine/internal/booking"
	"github.com/veloztours/booking-engine/internal/config"
	"github.com/veloztours/booking-engine/internal/domain"
	httphandler "github.com/veloztours/booking-engine/internal/http"
	"github.com/veloztours/booking-engine/internal/idempotency"
	"github.com/veloztours/booking-engine/internal/notify"
	"github.com/veloztours/booking-engine/internal/observability"
	"github.com/veloztours/booking-engine/internal/payments"
	"github.com/veloztours/booking-engine/internal/ratelimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("booking"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisStore := redisadapter.NewStore(redisClient)
	idemp := idempotency.New(redisStore, time.Hour)
	rl := ratelimit.New(redisStore)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	mailer := notify.NewEventMailer(rabbitPub)

	oracle := payments.NewHTTPOracle(cfg.OracleBaseURL, cfg.OracleAPIKey)

	svc := booking.NewService(repo, oracle, mailer, audit, logger,
		cfg.HoldTTL, domain.NewLanguageSet(cfg.BaseLanguages...))

	handlers := httphandler.NewHandlers(svc, idemp, logger, cfg.OracleWebhookSecret)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
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
