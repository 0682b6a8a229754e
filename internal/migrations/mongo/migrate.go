package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingsrepo "cowork/internal/bookings/repository"
	leasesrepo "cowork/internal/leases/repository"
	"cowork/internal/migrations/mongo/validators"
	notificationsrepo "cowork/internal/notifications/repository"
	spacesrepo "cowork/internal/spaces/repository"
	"cowork/pkg/logger"
)

// activeStatuses are the booking statuses that still occupy the space.
var activeStatuses = []string{"pending", "confirmed", "conflict", "checked_in", "checkout", "completed"}

var (
	SpacesIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "sync.auto_sync_enabled", Value: 1},
			{Key: "_id", Value: 1},
		}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "space_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "space_id", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "_id", Value: 1},
		}},
		{
			Keys: bson.D{
				{Key: "space_id", Value: 1},
				{Key: "external_source_url", Value: 1},
				{Key: "external_uid", Value: 1},
			},
			Options: options.Index().
				SetName("uniq_active_external").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"is_external": true,
					"status":      bson.M{"$in": activeStatuses},
				}),
		},
		{Keys: bson.D{
			{Key: "space_id", Value: 1},
			{Key: "external_source_url", Value: 1},
			{Key: "updated_at", Value: 1},
		}},
	}

	LeasesIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("ttl_expires_at").SetExpireAfterSeconds(0),
		},
	}

	NotificationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "state", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "_id", Value: 1},
		}},
		{Keys: bson.D{{Key: "booking_id", Value: 1}}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collectionDef {
	return map[string]collectionDef{
		spacesrepo.CollectionName: {
			Indexes:   SpacesIndexes,
			Validator: validators.SpaceValidator,
		},
		bookingsrepo.CollectionName: {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		leasesrepo.CollectionName: {
			Indexes:   LeasesIndexes,
			Validator: validators.LeaseValidator,
		},
		notificationsrepo.CollectionName: {
			Indexes:   NotificationsIndexes,
			Validator: validators.NotificationValidator,
		},
	}
}

// RunMigration creates the collections with their validators and indexes.
// Running it again updates validators in place and is otherwise a no-op.
func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
