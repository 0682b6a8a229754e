package icalsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cowork/pkg/config"
	"cowork/pkg/logger"
	"cowork/pkg/model"

	"github.com/robfig/cron/v3"
)

type Syncer interface {
	Sync(ctx context.Context, spaceID string) (*model.SyncState, error)
}

type AutoSyncLister interface {
	FindAutoSync(ctx context.Context) ([]*model.Space, error)
}

type entry struct {
	id       cron.EntryID
	interval int
}

// Scheduler keeps one cron entry per auto-sync space. Entries are re-derived
// from storage every reload interval and whenever settings change in process.
type Scheduler struct {
	cron    *cron.Cron
	syncer  Syncer
	spaces  AutoSyncLister
	cfg     *config.Config
	log     *logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]entry
}

func NewScheduler(syncer Syncer, spaces AutoSyncLister, cfg *config.Config) *Scheduler {
	cl := cronLogger{log: cfg.Log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		syncer:  syncer,
		spaces:  spaces,
		cfg:     cfg,
		log:     cfg.Log,
		timeout: cfg.LeaseTTL,
		ctx:     context.Background(),
		entries: map[string]entry{},
	}
}

// Start loads the auto-sync spaces and starts firing. Jobs stop receiving new
// work once ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.Reload(ctx); err != nil {
		return err
	}

	spec := fmt.Sprintf("@every %s", s.cfg.SchedulerReload)
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.Reload(ctx); err != nil {
			s.log.Error("Scheduler reload failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule reload: %w", err)
	}

	s.cron.Start()
	s.log.Info("Sync scheduler started", "spaces", s.Len(), "reload", s.cfg.SchedulerReload)
	return nil
}

// Stop waits for running passes to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Sync scheduler stopped")
}

// Reload reconciles the cron entries with the auto-sync spaces in storage.
func (s *Scheduler) Reload(ctx context.Context) error {
	spaces, err := s.spaces.FindAutoSync(ctx)
	if err != nil {
		return fmt.Errorf("failed to list auto-sync spaces: %w", err)
	}

	wanted := make(map[string]bool, len(spaces))
	for _, sp := range spaces {
		wanted[sp.ID] = true
		s.apply(sp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if !wanted[id] {
			s.cron.Remove(e.id)
			delete(s.entries, id)
			s.log.Info("Sync unscheduled", "space_id", id)
		}
	}
	return nil
}

// SpaceChanged reschedules space right away after a settings update.
func (s *Scheduler) SpaceChanged(space *model.Space) {
	s.apply(space)
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Interval returns the scheduled interval of a space in minutes, or 0.
func (s *Scheduler) Interval(spaceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[spaceID].interval
}

func (s *Scheduler) apply(space *model.Space) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, scheduled := s.entries[space.ID]
	enabled := space.Sync.AutoSyncEnabled && len(space.Sync.ImportURLs) > 0
	interval := s.cfg.ClampSyncInterval(space.Sync.SyncIntervalMinutes)

	switch {
	case !enabled:
		if scheduled {
			s.cron.Remove(current.id)
			delete(s.entries, space.ID)
			s.log.Info("Sync unscheduled", "space_id", space.ID)
		}
		return
	case scheduled && current.interval == interval:
		return
	case scheduled:
		s.cron.Remove(current.id)
	}

	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{log: s.log})).Then(s.job(space.ID))
	id, err := s.cron.AddJob(fmt.Sprintf("@every %dm", interval), job)
	if err != nil {
		delete(s.entries, space.ID)
		s.log.Error("Failed to schedule sync", "space_id", space.ID, "error", err)
		return
	}
	s.entries[space.ID] = entry{id: id, interval: interval}
	s.log.Info("Sync scheduled", "space_id", space.ID, "interval_minutes", interval)
}

func (s *Scheduler) job(spaceID string) cron.FuncJob {
	return func() {
		s.mu.Lock()
		parent := s.ctx
		s.mu.Unlock()
		if parent.Err() != nil {
			return
		}

		ctx, cancel := context.WithTimeout(parent, s.timeout)
		defer cancel()

		if _, err := s.syncer.Sync(ctx, spaceID); err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				s.log.Debug("Sync skipped, pass already running", "space_id", spaceID)
				return
			}
			s.log.Error("Sync pass failed", "space_id", spaceID, "error", err)
		}
	}
}

// cronLogger routes cron's logging through the service logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
