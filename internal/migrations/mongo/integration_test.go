//go:build integration

package mongo_test

import (
	"context"
	"os"
	"testing"
	"time"

	bookingserrors "cowork/internal/bookings/errors"
	bookingsrepo "cowork/internal/bookings/repository"
	leasesrepo "cowork/internal/leases/repository"
	migrations "cowork/internal/migrations/mongo"
	notificationsrepo "cowork/internal/notifications/repository"
	spacesrepo "cowork/internal/spaces/repository"
	"cowork/pkg/client"
	"cowork/pkg/config"
	"cowork/pkg/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectionTimeout = 10 * time.Second

// mongoConfig connects to MONGO_URI and returns a config bound to a fresh,
// migrated database that is dropped when the test ends.
func mongoConfig(t *testing.T) *config.Config {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = config.DefaultMongoURI
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("MongoDB not reachable: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		t.Skipf("MongoDB not reachable: %v", err)
	}

	cfg := config.NewForTest()
	cfg.StorageDriver = config.StorageMongo
	cfg.MongoDatabaseName = "cowork_it_" + uuid.NewString()[:8]
	cfg.Client = &client.Client{Mongo: mc}

	require.NoError(t, migrations.RunMigration(ctx, mc, cfg.MongoDatabaseName, cfg.Log))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		defer cancel()
		if err := mc.Database(cfg.MongoDatabaseName).Drop(ctx); err != nil {
			t.Logf("warning: failed to drop test database: %v", err)
		}
		_ = mc.Disconnect(ctx)
	})
	return cfg
}

func TestMigration_IsRepeatable(t *testing.T) {
	cfg := mongoConfig(t)
	ctx := context.Background()

	require.NoError(t, migrations.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log))

	names, err := cfg.Client.Mongo.Database(cfg.MongoDatabaseName).ListCollectionNames(ctx, bson.D{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		bookingsrepo.CollectionName,
		spacesrepo.CollectionName,
		leasesrepo.CollectionName,
		notificationsrepo.CollectionName,
	}, names)
}

func TestBookingRepository_Mongo(t *testing.T) {
	cfg := mongoConfig(t)
	ctx := context.Background()
	spaces := spacesrepo.NewMongoSpaceRepository(cfg)
	bookings := bookingsrepo.NewMongoBookingRepository(cfg)

	space := &model.Space{Name: "Studio", TimeZone: "UTC", Sync: model.SyncSettings{State: model.SyncState{Status: model.SyncIdle}}}
	require.NoError(t, spaces.Create(ctx, space))

	start := time.Date(2031, 5, 6, 9, 0, 0, 0, time.UTC)
	shadow := func() *model.Booking {
		return &model.Booking{
			SpaceID:           space.ID,
			StartTime:         start,
			EndTime:           start.Add(time.Hour),
			Status:            model.StatusConfirmed,
			IsExternal:        true,
			ExternalSourceURL: "https://cal.example.com/a.ics",
			ExternalUID:       "uid-1",
		}
	}

	first := shadow()
	require.NoError(t, bookings.Create(ctx, first))
	assert.ErrorIs(t, bookings.Create(ctx, shadow()), bookingserrors.ErrDuplicateExternal)

	stale := *first
	first.Status = model.StatusCancelled
	require.NoError(t, bookings.Update(ctx, first))
	assert.ErrorIs(t, bookings.Update(ctx, &stale), bookingserrors.ErrVersionConflict)

	require.NoError(t, bookings.Create(ctx, shadow()))
	active, err := bookings.FindActiveBySpace(ctx, space.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	history, err := bookings.FindExternalBySource(ctx, space.ID, "https://cal.example.com/a.ics")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.StatusCancelled, history[0].Status)
	assert.Equal(t, model.StatusConfirmed, history[1].Status)
}

func TestLeaseRepository_Mongo(t *testing.T) {
	cfg := mongoConfig(t)
	ctx := context.Background()
	leases := leasesrepo.NewMongoLeaseRepository(cfg)
	now := time.Now()

	ok, err := leases.TryAcquire(ctx, "write:space", "a", time.Minute, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = leases.TryAcquire(ctx, "write:space", "b", time.Minute, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = leases.TryAcquire(ctx, "write:space", "b", time.Minute, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, leases.Release(ctx, "write:space", "b"))
	held, err := leases.FindByKey(ctx, "write:space")
	require.NoError(t, err)
	assert.Nil(t, held)
}

func TestOutboxRepository_Mongo(t *testing.T) {
	cfg := mongoConfig(t)
	ctx := context.Background()
	outbox := notificationsrepo.NewMongoOutboxRepository(cfg)

	created := time.Date(2031, 5, 6, 9, 0, 0, 0, time.UTC)
	events := []*model.NotificationEvent{
		{ID: "e2", BookingID: bookingsrepo.NewBookingID(), SpaceID: bookingsrepo.NewBookingID(), Outcome: model.OutcomeConfirmed, State: model.OutboxPending, CreatedAt: created.Add(time.Minute)},
		{ID: "e1", BookingID: bookingsrepo.NewBookingID(), SpaceID: bookingsrepo.NewBookingID(), Outcome: model.OutcomeCancelled, State: model.OutboxPending, CreatedAt: created},
	}
	require.NoError(t, outbox.Insert(ctx, events))

	pending, err := outbox.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "e1", pending[0].ID)

	require.NoError(t, outbox.MarkDispatched(ctx, "e1", time.Now()))
	require.NoError(t, outbox.MarkFailed(ctx, "e2", 1, "broker down", true))

	pending, err = outbox.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
