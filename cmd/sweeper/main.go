package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	mongoadapter "github.com/veloztours/booking-engine/internal/adapters/mongo"
	"github.com/veloztours/booking-engine/internal/adapters/pg"
	"github.com/veloztours/booking-engine/internal/adapters/rabbit"
	"github.com/veloztours/booking-engine/internal/booking"
	"github.com/veloztours/booking-engine/internal/config"
	"github.com/veloztours/booking-engine/internal/domain"
	"github.com/veloztours/booking-engine/internal/notify"
	"github.com/veloztours/booking-engine/internal/observability"
	"github.com/veloztours/booking-engine/internal/payments"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// The sweeper pairs the two batch jobs: expire lapsed holds, then offer the
// freed seats to the waitlist. Running them back to back on one ticker means
// freed capacity reaches waiting parties within one interval.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go run(ctx, svc, logger, cfg.SweepInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown sweeper")
}

func run(ctx context.Context, svc *booking.Service, logger observability.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := svc.SweepExpiredHolds(ctx)
			if err != nil {
				logger.WithError(err).Error("hold expiry sweep failed")
				continue
			}
			if expired > 0 {
				logger.WithField("expired", expired).Info("expired lapsed holds")
			}

			report, err := svc.NotifyWaitlist(ctx, nil)
			if err != nil {
				logger.WithError(err).Error("waitlist notify failed")
				continue
			}
			if report.Notified > 0 {
				logger.WithField("notified", report.Notified).Info("notified waitlist parties")
			}
		}
	}
}
