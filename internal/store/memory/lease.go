package memory

import (
	"context"
	"time"

	leaseserrors "cowork/internal/leases/errors"
	"cowork/internal/leases/repository"
	"cowork/pkg/model"
)

type LeaseRepository struct {
	s *Store
}

var _ repository.LeaseRepository = (*LeaseRepository)(nil)

func (r *LeaseRepository) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration, now time.Time) (bool, error) {
	defer r.s.lock(ctx)()

	if current, ok := r.s.leases[key]; ok && current.Owner != owner && !current.ExpiredAt(now) {
		return false, nil
	}
	r.s.leases[key] = model.Lease{Key: key, Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	return true, nil
}

func (r *LeaseRepository) Release(ctx context.Context, key, owner string) error {
	defer r.s.lock(ctx)()

	current, ok := r.s.leases[key]
	if !ok || current.Owner != owner {
		return leaseserrors.ErrNotOwner
	}
	delete(r.s.leases, key)
	return nil
}

func (r *LeaseRepository) FindByKey(ctx context.Context, key string) (*model.Lease, error) {
	defer r.s.lock(ctx)()

	current, ok := r.s.leases[key]
	if !ok {
		return nil, nil
	}
	return &current, nil
}
