// Package memory keeps every collection in process memory. It backs local
// runs with STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"maps"
	"sync"

	mongotx "cowork/pkg/db/mongo"
	"cowork/pkg/model"
)

type txKey struct{}

// Store serializes access with one mutex. A transaction holds the mutex for
// its whole run and restores the previous contents when fn fails.
type Store struct {
	mu sync.Mutex

	bookings map[string]model.Booking
	spaces   map[string]model.Space
	leases   map[string]model.Lease
	outbox   map[string]model.NotificationEvent
}

func New() *Store {
	return &Store{
		bookings: map[string]model.Booking{},
		spaces:   map[string]model.Space{},
		leases:   map[string]model.Lease{},
		outbox:   map[string]model.NotificationEvent{},
	}
}

var _ mongotx.TransactionManager = (*Store)(nil)

func (s *Store) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bookings := maps.Clone(s.bookings)
	spaces := maps.Clone(s.spaces)
	leases := maps.Clone(s.leases)
	outbox := maps.Clone(s.outbox)

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.bookings = bookings
		s.spaces = spaces
		s.leases = leases
		s.outbox = outbox
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the mutex unless ctx already runs inside a transaction of s.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Bookings() *BookingRepository {
	return &BookingRepository{s: s}
}

func (s *Store) Spaces() *SpaceRepository {
	return &SpaceRepository{s: s}
}

func (s *Store) Leases() *LeaseRepository {
	return &LeaseRepository{s: s}
}

func (s *Store) Outbox() *OutboxRepository {
	return &OutboxRepository{s: s}
}
