package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veloztours/booking-engine/internal/domain"
	"github.com/veloztours/booking-engine/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger appends reservation lifecycle transitions to a side store.
// Best-effort only: it is never part of the transactional state and a
// write failure must not fail the transition that already committed.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("reservation_audit"),
		logger: logger,
	}
}

type transitionDoc struct {
	ID            uuid.UUID `bson:"_id"`
	ReservationID uuid.UUID `bson:"reservation_id"`
	SessionID     uuid.UUID `bson:"session_id"`
	From          string    `bson:"from"`
	To            string    `bson:"to"`
	Actor         string    `bson:"actor"`
	Timestamp     time.Time `bson:"timestamp"`
	Data          bson.M    `bson:"data,omitempty"`
}

// LogTransition records who moved a reservation between states. Actor names
// the path: create, claim, reconcile-push, reconcile-pull, sweeper, oracle.
func (a *AuditLogger) LogTransition(ctx context.Context, reservationID, sessionID uuid.UUID, from, to domain.Status, actor string, data map[string]interface{}) {
	doc := transitionDoc{
		ID:            uuid.New(),
		ReservationID: reservationID,
		SessionID:     sessionID,
		From:          string(from),
		To:            string(to),
		Actor:         actor,
		Timestamp:     time.Now(),
		Data:          bson.M(data),
	}
	if _, err := a.coll.InsertOne(ctx, doc); err != nil {
		a.logger.WithField("reservation_id", reservationID.String()).Error("failed to insert audit record", err)
	}
}
