package service

import (
	"context"
	"errors"
	"sync"

	spaceserrors "cowork/internal/spaces/errors"
	"cowork/internal/spaces/repository"
	"cowork/internal/spaces/validator"
	"cowork/pkg/config"
	apperrors "cowork/pkg/errors"
	"cowork/pkg/model"
	"cowork/pkg/sanitizer"
)

// SettingsListener is told about every space whose sync settings changed.
type SettingsListener interface {
	SpaceChanged(space *model.Space)
}

type SpaceService interface {
	Create(ctx context.Context, space *model.Space) error
	GetByID(ctx context.Context, id string) (*model.Space, error)
	GetSyncSettings(ctx context.Context, id string) (*model.SyncSettingsView, error)
	UpdateSyncSettings(ctx context.Context, id string, update *model.SyncSettingsUpdate) (*model.SyncSettingsView, error)
	Subscribe(listener SettingsListener)
}

type spaceService struct {
	repo      repository.SpaceRepository
	validator *validator.SpaceValidator
	cfg       *config.Config

	mu        sync.RWMutex
	listeners []SettingsListener
}

func NewSpaceService(repo repository.SpaceRepository, validator *validator.SpaceValidator, cfg *config.Config) SpaceService {
	return &spaceService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *spaceService) Subscribe(listener SettingsListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *spaceService) Create(ctx context.Context, space *model.Space) error {
	space.Name = sanitizer.NormalizeName(space.Name)
	if space.TimeZone == "" {
		space.TimeZone = "UTC"
	}
	space.Sync.ImportURLs = sanitizer.NormalizeFeedURLs(space.Sync.ImportURLs)
	space.Sync.SyncIntervalMinutes = s.cfg.ClampSyncInterval(space.Sync.SyncIntervalMinutes)
	space.Sync.State = model.SyncState{Status: model.SyncIdle}

	if err := s.validator.Validate(space); err != nil {
		s.cfg.Log.Warn("Space validation failed", "error", err)
		return apperrors.Validation("Space validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, space); err != nil {
		s.cfg.Log.Error("Failed to create space", "error", err)
		return apperrors.Internal("Failed to create space", err)
	}

	s.cfg.Log.Info("Space created successfully", "id", space.ID, "name", space.Name)
	s.notify(space)
	return nil
}

func (s *spaceService) GetByID(ctx context.Context, id string) (*model.Space, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Space ID cannot be empty")
	}

	space, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, spaceserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Space", id)
		}
		if errors.Is(err, spaceserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid space ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve space", err)
	}
	return space, nil
}

func (s *spaceService) GetSyncSettings(ctx context.Context, id string) (*model.SyncSettingsView, error) {
	space, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(space), nil
}

// UpdateSyncSettings replaces the owner-editable settings. The sync state is
// left alone; the worker owns it.
func (s *spaceService) UpdateSyncSettings(ctx context.Context, id string, update *model.SyncSettingsUpdate) (*model.SyncSettingsView, error) {
	update.ImportURLs = sanitizer.NormalizeFeedURLs(update.ImportURLs)
	if err := s.validator.ValidateSyncSettings(update); err != nil {
		s.cfg.Log.Warn("Sync settings validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid sync settings", map[string]any{"error": err.Error()})
	}
	update.SyncIntervalMinutes = s.cfg.ClampSyncInterval(update.SyncIntervalMinutes)

	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSyncSettings(ctx, id, update); err != nil {
		if errors.Is(err, spaceserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Space", id)
		}
		s.cfg.Log.Error("Failed to update sync settings", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update sync settings", err)
	}

	space, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Sync settings updated",
		"id", id,
		"import_urls", len(update.ImportURLs),
		"auto_sync_enabled", update.AutoSyncEnabled,
		"sync_interval_minutes", update.SyncIntervalMinutes,
	)
	s.notify(space)
	return s.view(space), nil
}

func (s *spaceService) view(space *model.Space) *model.SyncSettingsView {
	return &model.SyncSettingsView{
		SpaceID:   space.ID,
		ExportURL: ExportURL(s.cfg.PublicBaseURL, space.ID),
		Settings:  space.Sync,
	}
}

func (s *spaceService) notify(space *model.Space) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.listeners {
		l.SpaceChanged(space)
	}
}

// ExportURL is the address other calendars subscribe to for this space.
func ExportURL(baseURL, spaceID string) string {
	return baseURL + "/api/v1/spaces/id/" + spaceID + "/calendar.ics"
}
