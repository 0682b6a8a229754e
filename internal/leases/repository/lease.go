package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	leaseserrors "cowork/internal/leases/errors"
	"cowork/pkg/config"
	mongotx "cowork/pkg/db/mongo"
	"cowork/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Space_leases"
)

// LeaseRepository stores expiring exclusive claims keyed by name.
type LeaseRepository interface {
	// TryAcquire takes the lease for owner when it is free, expired or
	// already held by owner. It reports false when someone else holds it.
	TryAcquire(ctx context.Context, key, owner string, ttl time.Duration, now time.Time) (bool, error)
	// Release drops the lease if owner still holds it.
	Release(ctx context.Context, key, owner string) error
	FindByKey(ctx context.Context, key string) (*model.Lease, error)
}

type mongoLeaseRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoLeaseRepository(cfg *config.Config) LeaseRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLeaseRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// TryAcquire relies on the _id uniqueness: when the filter misses because a
// live lease belongs to another owner, the upsert collides on _id.
func (r *mongoLeaseRepository) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration, now time.Time) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now = now.UTC().Truncate(time.Millisecond)
	filter := bson.M{
		"_id": key,
		"$or": []bson.M{
			{"expires_at": bson.M{"$lte": now}},
			{"owner": owner},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"owner":       owner,
			"acquired_at": now,
			"expires_at":  now.Add(ttl),
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongotx.IsDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	return true, nil
}

func (r *mongoLeaseRepository) Release(ctx context.Context, key, owner string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", key, err)
	}
	if result.DeletedCount == 0 {
		return leaseserrors.ErrNotOwner
	}
	return nil
}

func (r *mongoLeaseRepository) FindByKey(ctx context.Context, key string) (*model.Lease, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var lease model.Lease
	if err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&lease); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find lease %s: %w", key, err)
	}
	return &lease, nil
}
