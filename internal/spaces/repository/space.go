package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	spaceserrors "cowork/internal/spaces/errors"
	"cowork/pkg/config"
	mongotx "cowork/pkg/db/mongo"
	"cowork/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Spaces"
)

type SpaceRepository interface {
	Create(ctx context.Context, space *model.Space) error
	FindByID(ctx context.Context, id string) (*model.Space, error)
	// FindAutoSync returns the spaces whose import worker should be scheduled.
	FindAutoSync(ctx context.Context) ([]*model.Space, error)
	UpdateSyncSettings(ctx context.Context, id string, update *model.SyncSettingsUpdate) error
	// UpdateSyncState is reserved for the import worker.
	UpdateSyncState(ctx context.Context, id string, state model.SyncState) error
}

type mongoSpaceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSpaceRepository(cfg *config.Config) SpaceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSpaceRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func NewSpaceID() string {
	return primitive.NewObjectID().Hex()
}

func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (r *mongoSpaceRepository) Create(ctx context.Context, space *model.Space) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if space.ID == "" {
		space.ID = NewSpaceID()
	}
	space.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, space); err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}
	return nil
}

func (r *mongoSpaceRepository) FindByID(ctx context.Context, id string) (*model.Space, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %s", spaceserrors.ErrInvalidID, id)
	}

	var space model.Space
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&space); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, spaceserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find space: %w", err)
	}
	return &space, nil
}

func (r *mongoSpaceRepository) FindAutoSync(ctx context.Context) ([]*model.Space, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"sync.auto_sync_enabled": true,
		"sync.import_urls.0":     bson.M{"$exists": true},
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find auto-sync spaces: %w", err)
	}
	defer cursor.Close(ctx)

	spaces := []*model.Space{}
	if err := cursor.All(ctx, &spaces); err != nil {
		return nil, fmt.Errorf("failed to decode spaces: %w", err)
	}
	return spaces, nil
}

func (r *mongoSpaceRepository) UpdateSyncSettings(ctx context.Context, id string, u *model.SyncSettingsUpdate) error {
	return r.set(ctx, id, bson.M{
		"sync.import_urls":           u.ImportURLs,
		"sync.auto_sync_enabled":     u.AutoSyncEnabled,
		"sync.sync_interval_minutes": u.SyncIntervalMinutes,
	})
}

func (r *mongoSpaceRepository) UpdateSyncState(ctx context.Context, id string, state model.SyncState) error {
	return r.set(ctx, id, bson.M{"sync.state": state})
}

func (r *mongoSpaceRepository) set(ctx context.Context, id string, fields bson.M) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update space: %w", err)
	}
	if result.MatchedCount == 0 {
		return spaceserrors.ErrNotFound
	}
	return nil
}
