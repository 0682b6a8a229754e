package icalsync

import (
	"context"
	"sync"
	"testing"

	"cowork/internal/store/memory"
	"cowork/pkg/config"
	"cowork/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSyncer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *recordingSyncer) Sync(_ context.Context, spaceID string) (*model.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, spaceID)
	return &model.SyncState{Status: model.SyncIdle}, s.err
}

func (s *recordingSyncer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newScheduler(t *testing.T) (*Scheduler, *memory.Store, *recordingSyncer) {
	t.Helper()
	store := memory.New()
	syncer := &recordingSyncer{}
	return NewScheduler(syncer, store.Spaces(), config.NewForTest()), store, syncer
}

func addSpace(t *testing.T, store *memory.Store, auto bool, interval int, urls ...string) *model.Space {
	t.Helper()
	space := &model.Space{
		Name: "Room",
		Sync: model.SyncSettings{ImportURLs: urls, AutoSyncEnabled: auto, SyncIntervalMinutes: interval},
	}
	require.NoError(t, store.Spaces().Create(context.Background(), space))
	return space
}

func TestScheduler_ReloadTracksAutoSyncSpaces(t *testing.T) {
	s, store, _ := newScheduler(t)
	a := addSpace(t, store, true, 30, "https://a.example.com/cal.ics")
	b := addSpace(t, store, true, 5, "https://b.example.com/cal.ics")
	off := addSpace(t, store, false, 30, "https://c.example.com/cal.ics")
	empty := addSpace(t, store, true, 30)

	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 30, s.Interval(a.ID))
	assert.Equal(t, config.DefaultMinSyncIntervalMinutes, s.Interval(b.ID))
	assert.Zero(t, s.Interval(off.ID))
	assert.Zero(t, s.Interval(empty.ID))

	require.NoError(t, store.Spaces().UpdateSyncSettings(context.Background(), a.ID, &model.SyncSettingsUpdate{
		ImportURLs: []string{"https://a.example.com/cal.ics"},
	}))
	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, 1, s.Len())
	assert.Zero(t, s.Interval(a.ID))
}

func TestScheduler_SpaceChangedReschedules(t *testing.T) {
	s, store, _ := newScheduler(t)
	space := addSpace(t, store, true, 20, "https://a.example.com/cal.ics")

	s.SpaceChanged(space)
	assert.Equal(t, 20, s.Interval(space.ID))

	space.Sync.SyncIntervalMinutes = 60
	s.SpaceChanged(space)
	assert.Equal(t, 60, s.Interval(space.ID))
	assert.Equal(t, 1, s.Len())

	space.Sync.AutoSyncEnabled = false
	s.SpaceChanged(space)
	assert.Zero(t, s.Len())
}

func TestScheduler_JobRunsSync(t *testing.T) {
	s, _, syncer := newScheduler(t)

	s.job("space-1")()
	assert.Equal(t, []string{"space-1"}, syncer.Calls())

	syncer.err = ErrSyncInProgress
	s.job("space-1")()
	assert.Len(t, syncer.Calls(), 2)
}

func TestScheduler_JobStopsWithContext(t *testing.T) {
	s, _, syncer := newScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	cancel()
	s.job("space-1")()
	assert.Empty(t, syncer.Calls())
}
