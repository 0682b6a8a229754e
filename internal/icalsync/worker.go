// Package icalsync imports external iCalendar feeds into a space's booking
// ledger. A pass fetches every configured feed, expands it into occurrences
// and reconciles them against the space's external shadow bookings in one
// transaction.
package icalsync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"cowork/internal/bookings/ledger"
	bookingservice "cowork/internal/bookings/service"
	leaseserrors "cowork/internal/leases/errors"
	leaseservice "cowork/internal/leases/service"
	spaceserrors "cowork/internal/spaces/errors"
	"cowork/pkg/config"
	apperrors "cowork/pkg/errors"
	"cowork/pkg/logger"
	"cowork/pkg/model"
	"cowork/pkg/sanitizer"
)

const stateWriteTimeout = 10 * time.Second

type SpaceStore interface {
	FindByID(ctx context.Context, id string) (*model.Space, error)
	FindAutoSync(ctx context.Context) ([]*model.Space, error)
	UpdateSyncState(ctx context.Context, id string, state model.SyncState) error
}

// ShadowStore reads the stored shadows of one feed, terminal ones included.
type ShadowStore interface {
	FindExternalBySource(ctx context.Context, spaceID, sourceURL string) ([]*model.Booking, error)
}

type LedgerWriter interface {
	Run(ctx context.Context, space *model.Space, fn bookingservice.LedgerFunc) (*ledger.Ledger, error)
}

type Worker struct {
	spaces  SpaceStore
	shadows ShadowStore
	writer  LedgerWriter
	leases  *leaseservice.Manager
	fetcher *Fetcher
	policy  ledger.SurvivorPolicy
	horizon time.Duration
	log     *logger.Logger
	now     func() time.Time
}

func NewWorker(spaces SpaceStore, shadows ShadowStore, writer LedgerWriter, leases *leaseservice.Manager, fetcher *Fetcher, cfg *config.Config) *Worker {
	return &Worker{
		spaces:  spaces,
		shadows: shadows,
		writer:  writer,
		leases:  leases,
		fetcher: fetcher,
		policy:  ledger.PolicyFor(cfg.SurvivorPolicy),
		horizon: cfg.ImportHorizon,
		log:     cfg.Log,
		now:     time.Now,
	}
}

type sourceOutcome struct {
	fetch       FetchResult
	occurrences []Occurrence
	err         error
}

func (o sourceOutcome) reconcilable() bool {
	return o.err == nil && !o.fetch.NotModified
}

// Sync runs one import pass for the space. It returns ErrSyncInProgress when
// another pass holds the sync lease. Feed failures are recorded in the
// returned state, not returned as errors. The final state is written even
// when the pass panics; the panic is then re-raised.
func (w *Worker) Sync(ctx context.Context, spaceID string) (state *model.SyncState, err error) {
	space, err := w.spaces.FindByID(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	lease, err := w.leases.TryAcquire(ctx, leaseservice.SyncKey(space.ID))
	if err != nil {
		if errors.Is(err, leaseserrors.ErrLeaseHeld) {
			return nil, fmt.Errorf("%w: space %s", ErrSyncInProgress, space.ID)
		}
		return nil, err
	}
	defer lease.Release(ctx)

	passStart := w.now().UTC().Truncate(time.Millisecond)
	previous := space.Sync.State
	previous.Sources = slices.Clone(previous.Sources)

	running := previous
	running.Status = model.SyncSyncing
	running.IsSyncInProgress = true
	running.LastSyncAttempt = &passStart
	if err := w.spaces.UpdateSyncState(ctx, space.ID, running); err != nil {
		w.log.Warn("Failed to mark sync in progress", "space_id", space.ID, "error", err)
	}

	var (
		outcomes []sourceOutcome
		stats    ReconcileStats
	)
	urls := space.Sync.ImportURLs

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("sync pass panicked: %v", r)
		}
		final := finishState(previous, outcomes, err, passStart)
		if r != nil && outcomes == nil {
			final.Sources = previous.Sources
		}
		w.recordState(ctx, space.ID, final)

		w.log.Info("Sync pass finished",
			"space_id", space.ID,
			"status", final.Status,
			"sources", len(urls),
			"created", stats.Created,
			"moved", stats.Moved,
			"cancelled", stats.Cancelled,
			"unchanged", stats.Unchanged,
			"retired", stats.Retired,
			"duration_ms", w.now().Sub(passStart).Milliseconds(),
		)
		state = &final
		if r != nil {
			panic(r)
		}
	}()

	loc := spaceLocation(space)
	fetched := w.fetcher.FetchAll(ctx, urls, &previous)
	prepared := make([]sourceOutcome, len(fetched))
	for i, res := range fetched {
		prepared[i] = w.prepare(space.ID, res, loc, passStart)
	}
	outcomes = prepared

	_, err = w.writer.Run(ctx, space, func(ctx context.Context, l *ledger.Ledger) error {
		stats = ReconcileStats{}
		for _, o := range outcomes {
			if !o.reconcilable() {
				continue
			}
			history, err := w.shadows.FindExternalBySource(ctx, space.ID, o.fetch.URL)
			if err != nil {
				return err
			}
			s, err := Reconcile(l, o.fetch.URL, o.occurrences, history, w.policy, passStart)
			if err != nil {
				return err
			}
			stats.add(s)
		}
		n, err := CancelRemovedSources(l, urls, w.policy, passStart)
		stats.Cancelled += n
		return err
	})
	if err != nil {
		w.log.Error("Sync reconciliation failed", "space_id", space.ID, "error", err)
	}
	return nil, err
}

func (w *Worker) recordState(ctx context.Context, spaceID string, state model.SyncState) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stateWriteTimeout)
	defer cancel()
	if err := w.spaces.UpdateSyncState(writeCtx, spaceID, state); err != nil {
		w.log.Error("Failed to record sync state", "space_id", spaceID, "error", err)
	}
}

// SyncNow runs a pass on behalf of an API caller and maps failures to
// application errors.
func (w *Worker) SyncNow(ctx context.Context, spaceID string) (*model.SyncState, error) {
	state, err := w.Sync(ctx, spaceID)
	if err == nil {
		return state, nil
	}

	switch {
	case apperrors.IsAppError(err):
		return nil, err
	case errors.Is(err, spaceserrors.ErrNotFound):
		return nil, apperrors.NotFoundWithID("Space", spaceID)
	case errors.Is(err, spaceserrors.ErrInvalidID):
		return nil, apperrors.InvalidInput("Invalid space ID format")
	case errors.Is(err, ErrSyncInProgress):
		return nil, apperrors.Concurrency("A sync pass is already running for this space")
	}
	return nil, apperrors.Internal("Failed to sync space", err)
}

func (w *Worker) prepare(spaceID string, res FetchResult, loc *time.Location, passStart time.Time) sourceOutcome {
	out := sourceOutcome{fetch: res}
	if res.Err != nil || res.NotModified {
		out.err = res.Err
		return out
	}

	events, skipped, err := ParseFeed(res.Body, loc)
	if err != nil {
		out.err = &SyncFetchError{URL: res.URL, Err: err}
		w.log.Warn("Feed parse failed", "space_id", spaceID, "url", sanitizer.RedactURL(res.URL), "error", err)
		return out
	}

	expanded := Expand(events, ExpandOptions{
		From: passStart,
		To:   passStart.Add(w.horizon),
	})
	if skipped > 0 || len(expanded.Invalid) > 0 || len(expanded.Truncated) > 0 {
		w.log.Warn("Feed contained unusable events",
			"space_id", spaceID,
			"url", sanitizer.RedactURL(res.URL),
			"skipped", skipped,
			"invalid_rules", expanded.Invalid,
			"truncated", expanded.Truncated,
		)
	}
	out.occurrences = expanded.Occurrences
	return out
}

// finishState derives the state recorded after a pass. Validators of a feed
// are only remembered once its occurrences are committed.
func finishState(previous model.SyncState, outcomes []sourceOutcome, commitErr error, passStart time.Time) model.SyncState {
	state := previous
	state.IsSyncInProgress = false
	state.LastSyncAttempt = &passStart
	state.Sources = make([]model.SourceResult, 0, len(outcomes))

	var lastErr string
	for _, o := range outcomes {
		src := model.SourceResult{URL: o.fetch.URL}
		if prev := previous.SourceByURL(o.fetch.URL); prev != nil {
			src = *prev
		}

		switch {
		case o.err != nil:
			src.LastError = o.err.Error()
			lastErr = src.LastError
		case commitErr != nil:
			src.LastError = commitErr.Error()
			lastErr = src.LastError
		default:
			src.LastSuccess = &passStart
			src.LastError = ""
			src.ETag = o.fetch.ETag
			src.LastModified = o.fetch.LastModified
			if !o.fetch.NotModified {
				src.LastEventCount = len(o.occurrences)
			}
		}
		state.Sources = append(state.Sources, src)
	}

	if commitErr != nil && len(outcomes) == 0 {
		lastErr = commitErr.Error()
	}

	if lastErr != "" {
		state.Status = model.SyncError
		state.LastSyncError = lastErr
	} else {
		state.Status = model.SyncIdle
		state.LastSyncTime = &passStart
		state.LastSyncError = ""
	}
	return state
}

func spaceLocation(space *model.Space) *time.Location {
	if space.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(space.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
