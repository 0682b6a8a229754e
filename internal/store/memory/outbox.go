package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cowork/internal/notifications/repository"
	"cowork/pkg/model"
)

type OutboxRepository struct {
	s *Store
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)

func (r *OutboxRepository) Insert(ctx context.Context, events []*model.NotificationEvent) error {
	defer r.s.lock(ctx)()

	for _, e := range events {
		if _, exists := r.s.outbox[e.ID]; exists {
			return fmt.Errorf("failed to insert notification events: duplicate id %s", e.ID)
		}
		r.s.outbox[e.ID] = *e
	}
	return nil
}

func (r *OutboxRepository) FindPending(ctx context.Context, limit int) ([]*model.NotificationEvent, error) {
	defer r.s.lock(ctx)()

	out := r.filter(func(e *model.NotificationEvent) bool { return e.State == model.OutboxPending })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored event regardless of state, oldest first.
func (r *OutboxRepository) All(ctx context.Context) []*model.NotificationEvent {
	defer r.s.lock(ctx)()
	return r.filter(func(*model.NotificationEvent) bool { return true })
}

func (r *OutboxRepository) filter(keep func(*model.NotificationEvent) bool) []*model.NotificationEvent {
	out := []*model.NotificationEvent{}
	for _, e := range r.s.outbox {
		if keep(&e) {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	defer r.s.lock(ctx)()

	e, ok := r.s.outbox[id]
	if !ok {
		return fmt.Errorf("failed to update notification %s: not found", id)
	}
	at = at.UTC()
	e.State = model.OutboxDispatched
	e.DispatchedAt = &at
	r.s.outbox[id] = e
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string, terminal bool) error {
	defer r.s.lock(ctx)()

	e, ok := r.s.outbox[id]
	if !ok {
		return fmt.Errorf("failed to update notification %s: not found", id)
	}
	e.Attempts = attempts
	e.LastError = lastErr
	if terminal {
		e.State = model.OutboxFailed
	}
	r.s.outbox[id] = e
	return nil
}
