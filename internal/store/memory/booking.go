package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"cowork/internal/bookings/conflict"
	bookingserrors "cowork/internal/bookings/errors"
	"cowork/internal/bookings/repository"
	mongotx "cowork/pkg/db/mongo"
	"cowork/pkg/model"
)

type BookingRepository struct {
	s *Store
}

var _ repository.BookingRepository = (*BookingRepository)(nil)

func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	defer r.s.lock(ctx)()

	if b.ID == "" {
		b.ID = repository.NewBookingID()
	}
	if _, exists := r.s.bookings[b.ID]; exists {
		return fmt.Errorf("failed to create booking: duplicate id %s", b.ID)
	}
	if b.IsExternal {
		for _, other := range r.s.bookings {
			if other.IsExternal && other.Status.IsActive() && other.SpaceID == b.SpaceID &&
				other.ExternalSourceURL == b.ExternalSourceURL && other.ExternalUID == b.ExternalUID {
				return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateExternal, b.ExternalUID)
			}
		}
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	b.Version = 1
	r.s.bookings[b.ID] = *b
	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	defer r.s.lock(ctx)()

	if !repository.ValidID(id) {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return &b, nil
}

func (r *BookingRepository) FindActiveBySpace(ctx context.Context, spaceID string) ([]*model.Booking, error) {
	defer r.s.lock(ctx)()

	out := []*model.Booking{}
	for _, b := range r.s.bookings {
		if b.SpaceID == spaceID && b.Status.IsActive() {
			out = append(out, &b)
		}
	}
	conflict.SortBookings(out)
	return out, nil
}

func (r *BookingRepository) FindExternalBySource(ctx context.Context, spaceID, sourceURL string) ([]*model.Booking, error) {
	defer r.s.lock(ctx)()

	out := []*model.Booking{}
	for _, b := range r.s.bookings {
		if b.SpaceID == spaceID && b.IsExternal && b.ExternalSourceURL == sourceURL {
			out = append(out, &b)
		}
	}
	slices.SortFunc(out, func(a, b *model.Booking) int {
		if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *BookingRepository) FindBySpace(ctx context.Context, spaceID string, f model.BookingFilter) ([]*model.Booking, error) {
	defer r.s.lock(ctx)()

	matched := r.match(spaceID, f)
	if f.Offset >= int64(len(matched)) {
		return []*model.Booking{}, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (r *BookingRepository) CountBySpace(ctx context.Context, spaceID string, f model.BookingFilter) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.match(spaceID, f))), nil
}

func (r *BookingRepository) match(spaceID string, f model.BookingFilter) []*model.Booking {
	out := []*model.Booking{}
	for _, b := range r.s.bookings {
		if b.SpaceID != spaceID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, b.Status) {
			continue
		}
		if f.From != nil && !b.EndTime.After(*f.From) {
			continue
		}
		if f.To != nil && !b.StartTime.Before(*f.To) {
			continue
		}
		out = append(out, &b)
	}
	conflict.SortBookings(out)
	return out
}

func (r *BookingRepository) Update(ctx context.Context, b *model.Booking) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.bookings[b.ID]
	if !ok || stored.Version != b.Version {
		return fmt.Errorf("%w: %s", bookingserrors.ErrVersionConflict, b.ID)
	}

	stored.StartTime = b.StartTime
	stored.EndTime = b.EndTime
	stored.Status = b.Status
	stored.CancellationReason = b.CancellationReason
	stored.UpdatedAt = b.UpdatedAt
	stored.Version++
	r.s.bookings[b.ID] = stored

	b.Version = stored.Version
	return nil
}

func (r *BookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.s.ExecuteTransaction(ctx, fn)
}
