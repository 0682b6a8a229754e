package repository

import (
	"context"
	"fmt"
	"time"

	"cowork/pkg/config"
	mongotx "cowork/pkg/db/mongo"
	"cowork/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Notification_outbox"
)

// OutboxRepository persists notification events next to the booking changes
// that caused them.
type OutboxRepository interface {
	Insert(ctx context.Context, events []*model.NotificationEvent) error
	// FindPending returns up to limit pending events, oldest first.
	FindPending(ctx context.Context, limit int) ([]*model.NotificationEvent, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	// MarkFailed records a failed attempt. A terminal failure leaves the
	// pending queue for good.
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string, terminal bool) error
}

type mongoOutboxRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOutboxRepository(cfg *config.Config) OutboxRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOutboxRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoOutboxRepository) Insert(ctx context.Context, events []*model.NotificationEvent) error {
	if len(events) == 0 {
		return nil
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	docs := make([]any, 0, len(events))
	for _, e := range events {
		docs = append(docs, e)
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert notification events: %w", err)
	}
	return nil
}

func (r *mongoOutboxRepository) FindPending(ctx context.Context, limit int) ([]*model.NotificationEvent, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"state": model.OutboxPending}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending notifications: %w", err)
	}
	defer cursor.Close(ctx)

	events := []*model.NotificationEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return events, nil
}

func (r *mongoOutboxRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, bson.M{
		"state":         model.OutboxDispatched,
		"dispatched_at": at.UTC(),
	})
}

func (r *mongoOutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string, terminal bool) error {
	state := model.OutboxPending
	if terminal {
		state = model.OutboxFailed
	}
	return r.set(ctx, id, bson.M{
		"state":      state,
		"attempts":   attempts,
		"last_error": lastErr,
	})
}

func (r *mongoOutboxRepository) set(ctx context.Context, id string, fields bson.M) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields}); err != nil {
		return fmt.Errorf("failed to update notification %s: %w", id, err)
	}
	return nil
}
