package service

import (
	"context"
	"fmt"
	"time"

	leaseserrors "cowork/internal/leases/errors"
	"cowork/internal/leases/repository"
	"cowork/pkg/config"
	"cowork/pkg/logger"

	"github.com/google/uuid"
)

const (
	minBackoff     = 10 * time.Millisecond
	maxBackoff     = 250 * time.Millisecond
	releaseTimeout = 5 * time.Second
)

// WriteKey guards every change to a space's active bookings.
func WriteKey(spaceID string) string {
	return "write:" + spaceID
}

// SyncKey marks a running import pass for a space.
func SyncKey(spaceID string) string {
	return "sync:" + spaceID
}

type Manager struct {
	repo repository.LeaseRepository
	ttl  time.Duration
	wait time.Duration
	log  *logger.Logger
	now  func() time.Time
}

func NewManager(repo repository.LeaseRepository, cfg *config.Config) *Manager {
	return &Manager{
		repo: repo,
		ttl:  cfg.LeaseTTL,
		wait: cfg.LeaseWait,
		log:  cfg.Log,
		now:  time.Now,
	}
}

// Handle is a held lease. Release it exactly once.
type Handle struct {
	m     *Manager
	Key   string
	Owner string
}

// TryAcquire makes a single attempt and returns ErrLeaseHeld when the key is
// taken.
func (m *Manager) TryAcquire(ctx context.Context, key string) (*Handle, error) {
	owner := uuid.NewString()
	ok, err := m.repo.TryAcquire(ctx, key, owner, m.ttl, m.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", leaseserrors.ErrLeaseHeld, key)
	}
	return &Handle{m: m, Key: key, Owner: owner}, nil
}

// Acquire retries with exponential backoff for up to the configured wait.
func (m *Manager) Acquire(ctx context.Context, key string) (*Handle, error) {
	owner := uuid.NewString()
	deadline := time.Now().Add(m.wait)
	backoff := minBackoff

	for {
		ok, err := m.repo.TryAcquire(ctx, key, owner, m.ttl, m.now())
		if err != nil {
			return nil, err
		}
		if ok {
			return &Handle{m: m, Key: key, Owner: owner}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s", leaseserrors.ErrLeaseHeld, key)
		}
		sleep := min(backoff, remaining)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// Release survives a cancelled caller context so the lease is not left to
// expire on its own.
func (h *Handle) Release(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := h.m.repo.Release(ctx, h.Key, h.Owner); err != nil {
		h.m.log.Warn("Failed to release lease", "key", h.Key, "owner", h.Owner, "error", err)
	}
}
