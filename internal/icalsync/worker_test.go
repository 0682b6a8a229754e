package icalsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cowork/internal/bookings/conflict"
	"cowork/internal/bookings/ledger"
	"cowork/internal/bookings/repository"
	bookingservice "cowork/internal/bookings/service"
	bookingsvalidator "cowork/internal/bookings/validator"
	leaseservice "cowork/internal/leases/service"
	"cowork/internal/store/memory"
	"cowork/pkg/config"
	apperrors "cowork/pkg/errors"
	"cowork/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var passTime = time.Date(2031, 5, 5, 8, 0, 0, 0, time.UTC)

func utc(h, m int) time.Time {
	return passTime.Truncate(24 * time.Hour).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func stamp(t time.Time) string {
	return t.UTC().Format(layoutUTC)
}

func timed(uid string, from, to time.Time) string {
	return vevent("UID:"+uid, "DTSTART:"+stamp(from), "DTEND:"+stamp(to))
}

type feedServer struct {
	*httptest.Server

	mu          sync.Mutex
	bodies      map[string]string
	status      map[string]int
	etags       map[string]string
	hits        map[string]int
	conditional map[string]int
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{
		bodies:      map[string]string{},
		status:      map[string]int{},
		etags:       map[string]string{},
		hits:        map[string]int{},
		conditional: map[string]int{},
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *feedServer) serve(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := r.URL.Path
	fs.hits[path]++
	if code := fs.status[path]; code != 0 {
		w.WriteHeader(code)
		return
	}
	if etag := fs.etags[path]; etag != "" {
		if r.Header.Get("If-None-Match") == etag {
			fs.conditional[path]++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "text/calendar")
	_, _ = w.Write([]byte(fs.bodies[path]))
}

func (fs *feedServer) set(path string, events ...string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.bodies[path] = string(feed(events...))
}

func (fs *feedServer) fail(path string, code int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.status[path] = code
}

func (fs *feedServer) raw(path, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.bodies[path] = body
}

func (fs *feedServer) tag(path, etag string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.etags[path] = etag
}

func (fs *feedServer) counts(path string) (hits, notModified int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path], fs.conditional[path]
}

func (fs *feedServer) url(path string) string {
	return fs.URL + path
}

type syncHarness struct {
	cfg    *config.Config
	store  *memory.Store
	leases *leaseservice.Manager
	writer *bookingservice.SpaceWriter
	worker *Worker
	feeds  *feedServer
	now    time.Time
}

func newSyncHarness(t *testing.T, mutate ...func(*config.Config)) *syncHarness {
	t.Helper()
	cfg := config.NewForTest()
	for _, m := range mutate {
		m(cfg)
	}

	store := memory.New()
	leases := leaseservice.NewManager(store.Leases(), cfg)
	writer := bookingservice.NewSpaceWriter(store.Bookings(), store.Outbox(), leases, cfg.Log)
	feeds := newFeedServer(t)
	fetcher := NewFetcher(feeds.Client(), cfg.FetchTimeout, cfg.FetchMaxBytes, cfg.Log)

	h := &syncHarness{
		cfg:    cfg,
		store:  store,
		leases: leases,
		writer: writer,
		feeds:  feeds,
		now:    passTime,
	}
	h.worker = NewWorker(store.Spaces(), store.Bookings(), writer, leases, fetcher, cfg)
	h.worker.now = func() time.Time { return h.now }
	return h
}

func (h *syncHarness) bookingService() bookingservice.BookingService {
	return bookingservice.NewBookingService(
		h.store.Bookings(),
		h.store.Spaces(),
		h.writer,
		bookingsvalidator.NewBookingValidator(h.cfg.Log),
		h.cfg,
	)
}

func (h *syncHarness) space(t *testing.T, urls ...string) *model.Space {
	t.Helper()
	space := &model.Space{
		Name:     "Studio",
		TimeZone: "UTC",
		Sync: model.SyncSettings{
			ImportURLs:          urls,
			AutoSyncEnabled:     true,
			SyncIntervalMinutes: 15,
			State:               model.SyncState{Status: model.SyncIdle},
		},
	}
	require.NoError(t, h.store.Spaces().Create(context.Background(), space))
	return space
}

func (h *syncHarness) seed(t *testing.T, space *model.Space, from, to time.Time, status model.BookingStatus) *model.Booking {
	t.Helper()
	b := &model.Booking{
		ID:        repository.NewBookingID(),
		SpaceID:   space.ID,
		Party:     model.Party{Name: "Member", Email: "member@example.com"},
		StartTime: from,
		EndTime:   to,
		Status:    status,
	}
	require.NoError(t, h.store.Bookings().Create(context.Background(), b))
	return b
}

func (h *syncHarness) bookings(t *testing.T, space *model.Space) []*model.Booking {
	t.Helper()
	all, err := h.store.Bookings().FindBySpace(context.Background(), space.ID, model.BookingFilter{Limit: 1000})
	require.NoError(t, err)
	return all
}

func (h *syncHarness) external(t *testing.T, space *model.Space, uid string) []*model.Booking {
	t.Helper()
	var out []*model.Booking
	for _, b := range h.bookings(t, space) {
		if b.IsExternal && b.ExternalUID == uid {
			out = append(out, b)
		}
	}
	return out
}

func (h *syncHarness) get(t *testing.T, id string) *model.Booking {
	t.Helper()
	b, err := h.store.Bookings().FindByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (h *syncHarness) storedState(t *testing.T, space *model.Space) model.SyncState {
	t.Helper()
	sp, err := h.store.Spaces().FindByID(context.Background(), space.ID)
	require.NoError(t, err)
	return sp.Sync.State
}

func (h *syncHarness) assertNoLiveOverlap(t *testing.T, space *model.Space) {
	t.Helper()
	active, err := h.store.Bookings().FindActiveBySpace(context.Background(), space.ID)
	require.NoError(t, err)
	assert.Empty(t, conflict.LiveOverlaps(space, active))
}

func TestSync_ImportCreatesConfirmedBooking(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt-1", utc(9, 0), utc(10, 0)))
	space := h.space(t, h.feeds.url("/a.ics"))

	state, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	imported := h.external(t, space, "evt-1")
	require.Len(t, imported, 1)
	b := imported[0]
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Equal(t, h.feeds.url("/a.ics"), b.ExternalSourceURL)
	assert.True(t, b.StartTime.Equal(utc(9, 0)))
	assert.True(t, b.EndTime.Equal(utc(10, 0)))

	assert.Equal(t, model.SyncIdle, state.Status)
	assert.False(t, state.IsSyncInProgress)
	require.NotNil(t, state.LastSyncTime)
	assert.True(t, state.LastSyncTime.Equal(passTime))
	assert.Empty(t, state.LastSyncError)
	require.Len(t, state.Sources, 1)
	assert.Equal(t, 1, state.Sources[0].LastEventCount)

	assert.Equal(t, *state, h.storedState(t, space))
	assert.Empty(t, h.store.Outbox().All(context.Background()))
}

func TestSync_SecondPassIsIdempotent(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt-1", utc(9, 0), utc(10, 0)), timed("evt-2", utc(11, 0), utc(12, 0)))
	space := h.space(t, h.feeds.url("/a.ics"))

	_, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)
	before := h.bookings(t, space)

	_, err = h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)
	after := h.bookings(t, space)

	require.Len(t, after, 2)
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Version, after[i].Version)
	}
}

func TestSync_OverlapDemotesInternalBooking(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt-1", utc(9, 30), utc(10, 30)))
	space := h.space(t, h.feeds.url("/a.ics"))
	internal := h.seed(t, space, utc(9, 0), utc(10, 0), model.StatusConfirmed)

	_, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	imported := h.external(t, space, "evt-1")
	require.Len(t, imported, 1)
	assert.Equal(t, model.StatusConflict, imported[0].Status)
	assert.Equal(t, model.StatusConflict, h.get(t, internal.ID).Status)

	events := h.store.Outbox().All(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, internal.ID, events[0].BookingID)
	assert.Equal(t, model.OutcomeConflictDetected, events[0].Outcome)
	h.assertNoLiveOverlap(t, space)
}

func TestSync_ImportNextToCheckedInBooking(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt-1", utc(9, 30), utc(10, 30)))
	space := h.space(t, h.feeds.url("/a.ics"))
	inProgress := h.seed(t, space, utc(9, 0), utc(10, 0), model.StatusCheckedIn)

	_, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCheckedIn, h.get(t, inProgress.ID).Status)
	imported := h.external(t, space, "evt-1")
	require.Len(t, imported, 1)
	assert.Equal(t, model.StatusConflict, imported[0].Status)
	h.assertNoLiveOverlap(t, space)
}

func TestSync_MovedRemovedAndPastEvents(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics",
		timed("early", utc(8, 30), utc(9, 0)),
		timed("moving", utc(11, 0), utc(12, 0)),
		timed("leaving", utc(14, 0), utc(15, 0)),
	)
	space := h.space(t, h.feeds.url("/a.ics"))

	_, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)
	early := h.external(t, space, "early")[0]
	moving := h.external(t, space, "moving")[0]
	leaving := h.external(t, space, "leaving")[0]

	h.now = utc(10, 0)
	h.feeds.set("/a.ics", timed("moving", utc(16, 0), utc(17, 0)))
	_, err = h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusConfirmed, h.get(t, early.ID).Status)

	moved := h.get(t, moving.ID)
	assert.Equal(t, model.StatusConfirmed, moved.Status)
	assert.True(t, moved.StartTime.Equal(utc(16, 0)))
	assert.Equal(t, moving.Version+1, moved.Version)

	gone := h.get(t, leaving.ID)
	assert.Equal(t, model.StatusCancelled, gone.Status)
	assert.Equal(t, ReasonRemovedFromFeed, gone.CancellationReason)
}

func TestSync_MoveIntoOverlapAndOut(t *testing.T) {
	h := newSyncHarness(t, func(c *config.Config) { c.SurvivorPolicy = config.SurvivorConfirm })
	h.feeds.set("/a.ics", timed("evt", utc(13, 0), utc(14, 0)))
	space := h.space(t, h.feeds.url("/a.ics"))
	internal := h.seed(t, space, utc(9, 0), utc(10, 0), model.StatusConfirmed)

	_, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)
	shadow := h.external(t, space, "evt")[0]
	require.Equal(t, model.StatusConfirmed, shadow.Status)

	h.feeds.set("/a.ics", timed("evt", utc(9, 30), utc(10, 30)))
	_, err = h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConflict, h.get(t, shadow.ID).Status)
	assert.Equal(t, model.StatusConflict, h.get(t, internal.ID).Status)
	h.assertNoLiveOverlap(t, space)

	h.feeds.set("/a.ics", timed("evt", utc(15, 0), utc(16, 0)))
	_, err = h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, h.get(t, shadow.ID).Status)
	assert.Equal(t, model.StatusConfirmed, h.get(t, internal.ID).Status)
	h.assertNoLiveOverlap(t, space)
}

func TestSync_RemovalLeavesSurvivorPerPolicy(t *testing.T) {
	tests := []struct {
		policy string
		want   model.BookingStatus
		events int
	}{
		{policy: config.SurvivorKeep, want: model.StatusConflict, events: 1},
		{policy: config.SurvivorConfirm, want: model.StatusConfirmed, events: 2},
	}

	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			h := newSyncHarness(t, func(c *config.Config) { c.SurvivorPolicy = tt.policy })
			h.feeds.set("/a.ics", timed("evt", utc(9, 30), utc(10, 30)))
			space := h.space(t, h.feeds.url("/a.ics"))
			internal := h.seed(t, space, utc(9, 0), utc(10, 0), model.StatusConfirmed)

			_, err := h.worker.Sync(context.Background(), space.ID)
			require.NoError(t, err)
			require.Equal(t, model.StatusConflict, h.get(t, internal.ID).Status)

			h.feeds.set("/a.ics")
			_, err = h.worker.Sync(context.Background(), space.ID)
			require.NoError(t, err)

			assert.Equal(t, tt.want, h.get(t, internal.ID).Status)
			assert.Len(t, h.store.Outbox().All(context.Background()), tt.events)
		})
	}
}

func TestSync_FaultIsolationAcrossURLs(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/good.ics", timed("ok", utc(9, 0), utc(10, 0)))
	h.feeds.fail("/bad.ics", http.StatusInternalServerError)
	h.feeds.raw("/junk.ics", "<html>maintenance</html>")
	space := h.space(t, h.feeds.url("/good.ics"), h.feeds.url("/bad.ics"), h.feeds.url("/junk.ics"))

	state, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	require.Len(t, h.external(t, space, "ok"), 1)
	assert.Equal(t, model.SyncError, state.Status)
	assert.NotEmpty(t, state.LastSyncError)
	assert.Nil(t, state.LastSyncTime)

	require.Len(t, state.Sources, 3)
	assert.Empty(t, state.Sources[0].LastError)
	assert.NotNil(t, state.Sources[0].LastSuccess)
	assert.Contains(t, state.Sources[1].LastError, "500")
	assert.Nil(t, state.Sources[1].LastSuccess)
	assert.NotEmpty(t, state.Sources[2].LastError)
}

func TestSync_FailedFeedKeepsItsShadows(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt", utc(9, 0), utc(10, 0)))
	space := h.space(t, h.feeds.url("/a.ics"))

	_, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	h.feeds.fail("/a.ics", http.StatusBadGateway)
	state, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	assert.Equal(t, model.SyncError, state.Status)
	shadows := h.external(t, space, "evt")
	require.Len(t, shadows, 1)
	assert.Equal(t, model.StatusConfirmed, shadows[0].Status)
	assert.NotNil(t, state.LastSyncTime)
}

func TestSync_FaultIsolationAcrossSpaces(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/good.ics", timed("ok", utc(9, 0), utc(10, 0)))
	h.feeds.fail("/bad.ics", http.StatusNotFound)
	healthy := h.space(t, h.feeds.url("/good.ics"))
	broken := h.space(t, h.feeds.url("/bad.ics"))

	var wg sync.WaitGroup
	states := make([]*model.SyncState, 2)
	for i, sp := range []*model.Space{healthy, broken} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := h.worker.Sync(context.Background(), sp.ID)
			assert.NoError(t, err)
			states[i] = state
		}()
	}
	wg.Wait()

	assert.Equal(t, model.SyncIdle, states[0].Status)
	assert.Equal(t, model.SyncError, states[1].Status)
	assert.Len(t, h.external(t, healthy, "ok"), 1)
	assert.Empty(t, h.bookings(t, broken))
}

func TestSync_ConditionalGet(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt", utc(9, 0), utc(10, 0)))
	h.feeds.tag("/a.ics", `"v1"`)
	space := h.space(t, h.feeds.url("/a.ics"))

	first, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, first.Sources[0].ETag)

	second, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	hits, notModified := h.feeds.counts("/a.ics")
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, notModified)
	assert.Equal(t, model.SyncIdle, second.Status)
	assert.Equal(t, 1, second.Sources[0].LastEventCount)
	assert.Len(t, h.external(t, space, "evt"), 1)
}

func TestSync_RemovedSourceCancelsShadows(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("a", utc(9, 0), utc(10, 0)))
	h.feeds.set("/b.ics", timed("b", utc(11, 0), utc(12, 0)))
	space := h.space(t, h.feeds.url("/a.ics"), h.feeds.url("/b.ics"))

	_, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	require.NoError(t, h.store.Spaces().UpdateSyncSettings(context.Background(), space.ID, &model.SyncSettingsUpdate{
		ImportURLs:          []string{h.feeds.url("/a.ics")},
		AutoSyncEnabled:     true,
		SyncIntervalMinutes: 15,
	}))
	state, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusConfirmed, h.external(t, space, "a")[0].Status)
	b := h.external(t, space, "b")[0]
	assert.Equal(t, model.StatusCancelled, b.Status)
	assert.Equal(t, ReasonSourceRemoved, b.CancellationReason)
	assert.Len(t, state.Sources, 1)
}

func TestSync_RemovedUIDReappearsAsNewShadow(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt", utc(9, 0), utc(10, 0)))
	space := h.space(t, h.feeds.url("/a.ics"))

	_, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)
	h.feeds.set("/a.ics")
	_, err = h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)
	h.feeds.set("/a.ics", timed("evt", utc(9, 0), utc(10, 0)))
	_, err = h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	shadows := h.external(t, space, "evt")
	require.Len(t, shadows, 2)
	statuses := []model.BookingStatus{shadows[0].Status, shadows[1].Status}
	assert.ElementsMatch(t, []model.BookingStatus{model.StatusCancelled, model.StatusConfirmed}, statuses)
}

func TestSync_ResolvedShadowStaysCancelled(t *testing.T) {
	ctx := context.Background()
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt", utc(9, 30), utc(10, 30)))
	space := h.space(t, h.feeds.url("/a.ics"))
	internal := h.seed(t, space, utc(9, 0), utc(10, 0), model.StatusConfirmed)

	_, err := h.worker.Sync(ctx, space.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusConflict, h.get(t, internal.ID).Status)

	_, err = h.bookingService().ResolveConflict(ctx, internal.ID, &model.ResolveRequest{Action: model.ResolveConfirm})
	require.NoError(t, err)

	state, err := h.worker.Sync(ctx, space.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncIdle, state.Status)
	assert.Equal(t, model.StatusConfirmed, h.get(t, internal.ID).Status)
	shadows := h.external(t, space, "evt")
	require.Len(t, shadows, 1)
	assert.Equal(t, model.StatusCancelled, shadows[0].Status)

	h.feeds.set("/a.ics", timed("evt", utc(9, 45), utc(10, 45)))
	_, err = h.worker.Sync(ctx, space.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, h.get(t, internal.ID).Status)
	assert.Len(t, h.external(t, space, "evt"), 1)
	h.assertNoLiveOverlap(t, space)
}

func TestSync_OperatorCancelledShadowIsNotReimported(t *testing.T) {
	ctx := context.Background()
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt", utc(9, 0), utc(10, 0)))
	space := h.space(t, h.feeds.url("/a.ics"))

	_, err := h.worker.Sync(ctx, space.ID)
	require.NoError(t, err)
	shadow := h.external(t, space, "evt")[0]

	_, err = h.bookingService().UpdateStatus(ctx, shadow.ID, &model.StatusUpdateRequest{
		Status: model.StatusCancelled,
		Reason: "room closed for maintenance",
	})
	require.NoError(t, err)

	_, err = h.worker.Sync(ctx, space.ID)
	require.NoError(t, err)

	shadows := h.external(t, space, "evt")
	require.Len(t, shadows, 1)
	assert.Equal(t, model.StatusCancelled, shadows[0].Status)
	assert.Equal(t, "room closed for maintenance", shadows[0].CancellationReason)
}

func TestSync_MovedShadowConfirmedUnderKeepPolicy(t *testing.T) {
	ctx := context.Background()
	h := newSyncHarness(t, func(c *config.Config) { c.SurvivorPolicy = config.SurvivorKeep })
	h.feeds.set("/a.ics", timed("evt", utc(9, 30), utc(10, 30)))
	space := h.space(t, h.feeds.url("/a.ics"))
	internal := h.seed(t, space, utc(9, 0), utc(10, 0), model.StatusConfirmed)

	_, err := h.worker.Sync(ctx, space.ID)
	require.NoError(t, err)
	shadow := h.external(t, space, "evt")[0]
	require.Equal(t, model.StatusConflict, shadow.Status)

	h.feeds.set("/a.ics", timed("evt", utc(15, 0), utc(16, 0)))
	_, err = h.worker.Sync(ctx, space.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusConfirmed, h.get(t, shadow.ID).Status)
	assert.Equal(t, model.StatusConflict, h.get(t, internal.ID).Status)
	assert.Len(t, h.store.Outbox().All(ctx), 1)
	h.assertNoLiveOverlap(t, space)
}

type panickingWriter struct{}

func (panickingWriter) Run(context.Context, *model.Space, bookingservice.LedgerFunc) (*ledger.Ledger, error) {
	panic("ledger unavailable")
}

func TestSync_PanicStillRecordsFinalState(t *testing.T) {
	ctx := context.Background()
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt", utc(9, 0), utc(10, 0)))
	space := h.space(t, h.feeds.url("/a.ics"))
	h.worker.writer = panickingWriter{}

	assert.Panics(t, func() { _, _ = h.worker.Sync(ctx, space.ID) })

	state := h.storedState(t, space)
	assert.Equal(t, model.SyncError, state.Status)
	assert.False(t, state.IsSyncInProgress)
	assert.Contains(t, state.LastSyncError, "ledger unavailable")
	require.Len(t, state.Sources, 1)
	assert.Nil(t, state.Sources[0].LastSuccess)

	lease, err := h.leases.TryAcquire(ctx, leaseservice.SyncKey(space.ID))
	require.NoError(t, err)
	lease.Release(ctx)
}

func TestSync_LeaseHeldSkipsPass(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", timed("evt", utc(9, 0), utc(10, 0)))
	space := h.space(t, h.feeds.url("/a.ics"))

	held, err := h.leases.TryAcquire(context.Background(), leaseservice.SyncKey(space.ID))
	require.NoError(t, err)

	_, err = h.worker.Sync(context.Background(), space.ID)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	_, err = h.worker.SyncNow(context.Background(), space.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrency))
	hits, _ := h.feeds.counts("/a.ics")
	assert.Zero(t, hits)

	held.Release(context.Background())
	_, err = h.worker.SyncNow(context.Background(), space.ID)
	require.NoError(t, err)
	assert.Len(t, h.external(t, space, "evt"), 1)
}

func TestSyncNow_UnknownSpace(t *testing.T) {
	h := newSyncHarness(t)

	_, err := h.worker.SyncNow(context.Background(), repository.NewBookingID())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = h.worker.SyncNow(context.Background(), "not-an-id")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestSync_RecurringFeed(t *testing.T) {
	h := newSyncHarness(t)
	h.feeds.set("/a.ics", vevent(
		"UID:standup",
		"DTSTART:"+stamp(utc(9, 0)),
		"DTEND:"+stamp(utc(9, 15)),
		"RRULE:FREQ=DAILY;COUNT=3",
	))
	space := h.space(t, h.feeds.url("/a.ics"))

	state, err := h.worker.Sync(context.Background(), space.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, state.Sources[0].LastEventCount)
	for d := 0; d < 3; d++ {
		uid := InstanceUID("standup", utc(9, 0).AddDate(0, 0, d))
		assert.Len(t, h.external(t, space, uid), 1, uid)
	}
}
