package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID            string    `bson:"_id"`
	Action        string    `bson:"action"`
	ReservationID string    `bson:"reservation_id"`
	Timestamp     time.Time `bson:"timestamp"`
	Data          bson.M    `bson:"data"`
}

func (a *AuditLogger) Record(ctx context.Context, action string, reservationID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:            uuid.NewString(),
		Action:        action,
		ReservationID: reservationID.String(),
		Timestamp:     time.Now().UTC(),
		Data:          bson.M(data),
	}
	if _, err := a.coll.InsertOne(ctx, log); err != nil {
		a.logger.WithError(err).WithField("action", action).Error("failed to insert audit log")
		return wrap(err, "insert audit log")
	}
	return nil
}

// History returns the audit trail of one reservation, oldest first.
func (a *AuditLogger) History(ctx context.Context, reservationID uuid.UUID) ([]AuditLog, error) {
	cur, err := a.coll.Find(ctx,
		bson.M{"reservation_id": reservationID.String()},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, wrap(err, "find audit logs")
	}
	var logs []AuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, wrap(err, "decode audit logs")
	}
	return logs, nil
}
