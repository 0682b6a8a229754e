package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "cowork/internal/bookings/errors"
	"cowork/pkg/config"
	mongotx "cowork/pkg/db/mongo"
	"cowork/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// FindActiveBySpace returns every booking of the space whose status is
	// neither cancelled nor no-show.
	FindActiveBySpace(ctx context.Context, spaceID string) ([]*model.Booking, error)
	// FindExternalBySource returns every booking imported from sourceURL into
	// the space, terminal ones included, oldest update first.
	FindExternalBySource(ctx context.Context, spaceID, sourceURL string) ([]*model.Booking, error)
	FindBySpace(ctx context.Context, spaceID string, filter model.BookingFilter) ([]*model.Booking, error)
	CountBySpace(ctx context.Context, spaceID string, filter model.BookingFilter) (int64, error)
	// Update writes the mutable fields when the stored version still matches
	// booking.Version and bumps the version on success.
	Update(ctx context.Context, booking *model.Booking) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// NewBookingID returns a fresh identifier in the format FindByID accepts.
func NewBookingID() string {
	return primitive.NewObjectID().Hex()
}

func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.ID == "" {
		booking.ID = NewBookingID()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = booking.CreatedAt
	}
	booking.Version = 1

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateExternal, booking.ExternalUID)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindActiveBySpace(ctx context.Context, spaceID string) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"space_id": spaceID,
		"status":   bson.M{"$nin": []model.BookingStatus{model.StatusCancelled, model.StatusNoShow}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}})

	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) FindExternalBySource(ctx context.Context, spaceID, sourceURL string) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"space_id":            spaceID,
		"is_external":         true,
		"external_source_url": sourceURL,
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}, {Key: "_id", Value: 1}})

	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) FindBySpace(ctx context.Context, spaceID string, f model.BookingFilter) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(f.Offset)
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	return r.find(ctx, buildSearchFilter(spaceID, f), opts)
}

func (r *mongoBookingRepository) CountBySpace(ctx context.Context, spaceID string, f model.BookingFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildSearchFilter(spaceID, f))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func buildSearchFilter(spaceID string, f model.BookingFilter) bson.M {
	filter := bson.M{"space_id": spaceID}

	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.From != nil {
		filter["end_time"] = bson.M{"$gt": *f.From}
	}
	if f.To != nil {
		filter["start_time"] = bson.M{"$lt": *f.To}
	}

	return filter
}

func (r *mongoBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": booking.ID, "version": booking.Version}
	update := bson.M{
		"$set": bson.M{
			"start_time":          booking.StartTime,
			"end_time":            booking.EndTime,
			"status":              booking.Status,
			"cancellation_reason": booking.CancellationReason,
			"updated_at":          booking.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", bookingserrors.ErrVersionConflict, booking.ID)
	}

	booking.Version++
	return nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
