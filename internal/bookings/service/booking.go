package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cowork/internal/bookings/conflict"
	bookingserrors "cowork/internal/bookings/errors"
	"cowork/internal/bookings/ledger"
	"cowork/internal/bookings/repository"
	"cowork/internal/bookings/validator"
	spaceserrors "cowork/internal/spaces/errors"
	spacesrepo "cowork/internal/spaces/repository"
	"cowork/pkg/config"
	apperrors "cowork/pkg/errors"
	"cowork/pkg/model"
	"cowork/pkg/sanitizer"
)

const (
	DefaultCancelReason   = "cancelled during conflict resolution"
	autoCancelReasonStart = "auto-cancelled: conflict resolved in favor of "
)

type BookingService interface {
	Create(ctx context.Context, spaceID string, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListBySpace(ctx context.Context, spaceID string, filter model.BookingFilter) ([]*model.Booking, int64, error)
	ListClusters(ctx context.Context, spaceID string) ([]model.ConflictCluster, error)
	// ResolveConflict confirms or cancels a Conflict booking and returns every
	// booking of its cluster in its committed state.
	ResolveConflict(ctx context.Context, id string, req *model.ResolveRequest) ([]*model.Booking, error)
	UpdateStatus(ctx context.Context, id string, req *model.StatusUpdateRequest) (*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	spaces    spacesrepo.SpaceRepository
	writer    *SpaceWriter
	validator *validator.BookingValidator
	policy    ledger.SurvivorPolicy
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	spaces spacesrepo.SpaceRepository,
	writer *SpaceWriter,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		spaces:    spaces,
		writer:    writer,
		validator: validator,
		policy:    ledger.PolicyFor(cfg.SurvivorPolicy),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create admits a new internal booking. When it overlaps existing bookings it
// is stored in Conflict status and returned together with a CONFLICT error
// naming the overlapping bookings. Overlap with a booking already in progress
// is refused outright.
func (s *bookingService) Create(ctx context.Context, spaceID string, req *model.BookingRequest) (*model.Booking, error) {
	s.sanitize(req)
	if err := s.validator.ValidateRequest(req, s.now()); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "space_id", spaceID, "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	space, err := s.loadSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		ID:                repository.NewBookingID(),
		SpaceID:           space.ID,
		Party:             req.Party,
		StartTime:         req.StartTime.UTC(),
		EndTime:           req.EndTime.UTC(),
		NotificationEmail: req.NotificationEmail,
	}

	var adm conflict.Admission
	_, err = s.writer.Run(ctx, space, func(ctx context.Context, l *ledger.Ledger) error {
		adm = l.Plan(conflict.Of(booking), "")
		if len(adm.Blocking) > 0 {
			return apperrors.ConflictWithIDs("Requested time overlaps a booking already in progress", adm.ConflictIDs())
		}
		return l.Insert(booking, adm)
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to create booking", "space_id", space.ID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"space_id", space.ID,
		"status", booking.Status,
		"start_time", booking.StartTime,
	)

	if booking.Status == model.StatusConflict {
		return booking, apperrors.ConflictWithIDs("Booking overlaps existing bookings and awaits resolution", adm.ConflictIDs())
	}
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) ListBySpace(ctx context.Context, spaceID string, filter model.BookingFilter) ([]*model.Booking, int64, error) {
	if _, err := s.loadSpace(ctx, spaceID); err != nil {
		return nil, 0, err
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, 0, apperrors.InvalidInput("'to' must be after 'from'")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountBySpace(ctx, spaceID, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "space_id", spaceID, "error", err)
			errCount = apperrors.Internal("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = s.repo.FindBySpace(ctx, spaceID, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings",
				"space_id", spaceID,
				"limit", filter.Limit,
				"offset", filter.Offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve bookings", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) ListClusters(ctx context.Context, spaceID string) ([]model.ConflictCluster, error) {
	space, err := s.loadSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.FindActiveBySpace(ctx, space.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to load active bookings", "space_id", space.ID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}

	clusters := conflict.Clusters(space, active)
	if clusters == nil {
		clusters = []model.ConflictCluster{}
	}
	return clusters, nil
}

func (s *bookingService) ResolveConflict(ctx context.Context, id string, req *model.ResolveRequest) ([]*model.Booking, error) {
	req.Reason = sanitizer.NormalizeReason(req.Reason)
	if err := s.validator.ValidateResolve(req); err != nil {
		return nil, apperrors.Validation("Invalid resolve request", map[string]any{"error": err.Error()})
	}

	target, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	space, err := s.loadSpace(ctx, target.SpaceID)
	if err != nil {
		return nil, err
	}

	var clusterIDs []string
	l, err := s.writer.Run(ctx, space, func(ctx context.Context, l *ledger.Ledger) error {
		b := l.Get(id)
		if b == nil || b.Status != model.StatusConflict {
			return apperrors.Concurrency(fmt.Sprintf("Booking %s is no longer in conflict", id))
		}

		members := l.Cluster(id)
		clusterIDs = conflict.IDs(members)

		if req.Action == model.ResolveConfirm {
			return s.confirm(l, b, members, req.KnownConflictIDs)
		}
		return s.cancel(l, b, members, req.Reason)
	})
	if err != nil {
		s.cfg.Log.Warn("Conflict resolution failed", "id", id, "action", req.Action, "error", err)
		return nil, err
	}

	cluster := make([]*model.Booking, 0, len(clusterIDs))
	for _, cid := range clusterIDs {
		if b := l.Get(cid); b != nil {
			cluster = append(cluster, b)
		}
	}

	s.cfg.Log.Info("Conflict resolved",
		"id", id,
		"space_id", space.ID,
		"action", req.Action,
		"cluster", clusterIDs,
		"events", len(l.Events()),
	)
	return cluster, nil
}

func (s *bookingService) confirm(l *ledger.Ledger, target *model.Booking, members []*model.Booking, known []string) error {
	if known != nil {
		knownSet := make(map[string]bool, len(known))
		for _, k := range known {
			knownSet[k] = true
		}
		for _, c := range l.Conflicts(target) {
			if !knownSet[c.ID] {
				return apperrors.Concurrency(fmt.Sprintf("Booking %s now also conflicts with %s", target.ID, c.ID))
			}
		}
	}

	var fixed []string
	for _, m := range members {
		if m.ID != target.ID && !m.Status.IsDisplaceable() {
			fixed = append(fixed, m.ID)
		}
	}
	if len(fixed) > 0 {
		return apperrors.ConflictWithIDs("Conflict cluster contains bookings that can no longer be cancelled", fixed)
	}

	if err := l.SetStatus(target.ID, model.StatusConfirmed, ""); err != nil {
		return err
	}
	l.Notify(target, model.OutcomeConfirmed, "conflict resolved in favor of this booking")

	reason := autoCancelReasonStart + target.ID
	for _, m := range members {
		if m.ID == target.ID {
			continue
		}
		if err := l.SetStatus(m.ID, model.StatusCancelled, reason); err != nil {
			return err
		}
		l.Notify(m, model.OutcomeAutoCancelled, reason)
	}
	return nil
}

func (s *bookingService) cancel(l *ledger.Ledger, target *model.Booking, members []*model.Booking, reason string) error {
	if reason == "" {
		reason = DefaultCancelReason
	}

	partners := make([]string, 0, len(members))
	for _, m := range members {
		if m.ID != target.ID {
			partners = append(partners, m.ID)
		}
	}

	if err := l.SetStatus(target.ID, model.StatusCancelled, reason); err != nil {
		return err
	}
	l.Notify(target, model.OutcomeCancelled, reason)

	return l.SettleSurvivors(partners, s.policy)
}

// UpdateStatus drives the day-of lifecycle: check-in, checkout, completion,
// no-show and plain cancellation.
func (s *bookingService) UpdateStatus(ctx context.Context, id string, req *model.StatusUpdateRequest) (*model.Booking, error) {
	req.Reason = sanitizer.NormalizeReason(req.Reason)
	if err := s.validator.ValidateStatusUpdate(req); err != nil {
		return nil, apperrors.Validation("Invalid status update", map[string]any{"error": err.Error()})
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Status.IsActive() {
		return nil, apperrors.Validation(
			fmt.Sprintf("Booking is %s and can no longer change status", existing.Status),
			map[string]any{"from": existing.Status, "to": req.Status},
		)
	}
	space, err := s.loadSpace(ctx, existing.SpaceID)
	if err != nil {
		return nil, err
	}

	var updated *model.Booking
	_, err = s.writer.Run(ctx, space, func(ctx context.Context, l *ledger.Ledger) error {
		b := l.Get(id)
		if b == nil {
			return apperrors.Concurrency(fmt.Sprintf("Booking %s changed concurrently", id))
		}
		if !b.Status.CanTransitionTo(req.Status) {
			return apperrors.Validation(
				fmt.Sprintf("Cannot move booking from %s to %s", b.Status, req.Status),
				map[string]any{"from": b.Status, "to": req.Status},
			)
		}

		partners := conflict.IDs(l.Conflicts(b))
		if err := l.SetStatus(id, req.Status, req.Reason); err != nil {
			return err
		}
		if req.Status == model.StatusCancelled || req.Status == model.StatusNoShow {
			if req.Status == model.StatusCancelled {
				l.Notify(b, model.OutcomeCancelled, req.Reason)
			}
			if err := l.SettleSurvivors(partners, s.policy); err != nil {
				return err
			}
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking status updated", "id", id, "from", existing.Status, "to", updated.Status)
	return updated, nil
}

// --- Helpers ---

func (s *bookingService) loadSpace(ctx context.Context, spaceID string) (*model.Space, error) {
	if spaceID == "" {
		return nil, apperrors.InvalidInput("Space ID cannot be empty")
	}
	space, err := s.spaces.FindByID(ctx, spaceID)
	if err != nil {
		if errors.Is(err, spaceserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Space", spaceID)
		}
		if errors.Is(err, spaceserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid space ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve space", err)
	}
	return space, nil
}

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.Party.UserID = sanitizer.NormalizeUserID(req.Party.UserID)
	req.Party.Name = sanitizer.NormalizeName(req.Party.Name)
	req.Party.Email = sanitizer.NormalizeEmail(req.Party.Email)
	req.Party.Phone = sanitizer.NormalizePhone(req.Party.Phone)
	req.NotificationEmail = sanitizer.NormalizeEmail(req.NotificationEmail)
}
