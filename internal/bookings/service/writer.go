package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "cowork/internal/bookings/errors"
	"cowork/internal/bookings/ledger"
	"cowork/internal/bookings/repository"
	leaseserrors "cowork/internal/leases/errors"
	leaseservice "cowork/internal/leases/service"
	notificationsrepo "cowork/internal/notifications/repository"
	apperrors "cowork/pkg/errors"
	"cowork/pkg/logger"
	"cowork/pkg/model"
)

// LedgerFunc mutates the loaded ledger. Returning an error aborts the
// transaction and nothing is written.
type LedgerFunc func(ctx context.Context, l *ledger.Ledger) error

// SpaceWriter runs every change to a space's active bookings under the
// space's write lease and a single transaction.
type SpaceWriter struct {
	bookings repository.BookingRepository
	outbox   notificationsrepo.OutboxRepository
	leases   *leaseservice.Manager
	log      *logger.Logger
	now      func() time.Time
}

func NewSpaceWriter(
	bookings repository.BookingRepository,
	outbox notificationsrepo.OutboxRepository,
	leases *leaseservice.Manager,
	log *logger.Logger,
) *SpaceWriter {
	return &SpaceWriter{
		bookings: bookings,
		outbox:   outbox,
		leases:   leases,
		log:      log,
		now:      time.Now,
	}
}

// Run waits for the write lease, then loads, mutates and commits the ledger.
// It returns the committed ledger so callers can read the post-state.
func (w *SpaceWriter) Run(ctx context.Context, space *model.Space, fn LedgerFunc) (*ledger.Ledger, error) {
	lease, err := w.leases.Acquire(ctx, leaseservice.WriteKey(space.ID))
	if err != nil {
		return nil, w.translate(space.ID, err)
	}
	defer lease.Release(ctx)

	var committed *ledger.Ledger
	err = w.bookings.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		l, err := ledger.Load(txCtx, w.bookings, space, w.now())
		if err != nil {
			return err
		}
		if err := fn(txCtx, l); err != nil {
			return err
		}
		if err := l.Commit(txCtx, w.bookings, w.outbox); err != nil {
			return err
		}
		committed = l
		return nil
	})
	if err != nil {
		return nil, w.translate(space.ID, err)
	}

	return committed, nil
}

func (w *SpaceWriter) translate(spaceID string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}

	switch {
	case errors.Is(err, leaseserrors.ErrLeaseHeld):
		w.log.Warn("Space write lease busy", "space_id", spaceID)
		return apperrors.Concurrency("Space is being modified by another request, retry later")
	case errors.Is(err, bookingserrors.ErrVersionConflict), errors.Is(err, bookingserrors.ErrDuplicateExternal):
		w.log.Warn("Lost write race on space", "space_id", spaceID, "error", err)
		return apperrors.Concurrency("Bookings changed concurrently, retry later")
	case errors.Is(err, bookingserrors.ErrInvalidTransition):
		return apperrors.Validation(err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Space update timed out")
	case errors.Is(err, ledger.ErrOverlap):
		w.log.Error("Refused commit that would overlap live bookings", "space_id", spaceID, "error", err)
		return apperrors.Internal("Booking ledger rejected the change", err)
	}

	w.log.Error("Space update failed", "space_id", spaceID, "error", err)
	return apperrors.Internal(fmt.Sprintf("Failed to update space %s", spaceID), err)
}
