package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	spaceserrors "cowork/internal/spaces/errors"
	"cowork/internal/spaces/repository"
	"cowork/pkg/model"
)

type SpaceRepository struct {
	s *Store
}

var _ repository.SpaceRepository = (*SpaceRepository)(nil)

func cloneSpace(sp model.Space) model.Space {
	sp.Sync.ImportURLs = slices.Clone(sp.Sync.ImportURLs)
	sp.Sync.State.Sources = slices.Clone(sp.Sync.State.Sources)
	return sp
}

func (r *SpaceRepository) Create(ctx context.Context, sp *model.Space) error {
	defer r.s.lock(ctx)()

	if sp.ID == "" {
		sp.ID = repository.NewSpaceID()
	}
	if _, exists := r.s.spaces[sp.ID]; exists {
		return fmt.Errorf("failed to create space: duplicate id %s", sp.ID)
	}
	sp.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	r.s.spaces[sp.ID] = cloneSpace(*sp)
	return nil
}

func (r *SpaceRepository) FindByID(ctx context.Context, id string) (*model.Space, error) {
	defer r.s.lock(ctx)()

	if !repository.ValidID(id) {
		return nil, fmt.Errorf("%w: %s", spaceserrors.ErrInvalidID, id)
	}
	sp, ok := r.s.spaces[id]
	if !ok {
		return nil, spaceserrors.ErrNotFound
	}
	sp = cloneSpace(sp)
	return &sp, nil
}

func (r *SpaceRepository) FindAutoSync(ctx context.Context) ([]*model.Space, error) {
	defer r.s.lock(ctx)()

	out := []*model.Space{}
	for _, sp := range r.s.spaces {
		if sp.Sync.AutoSyncEnabled && len(sp.Sync.ImportURLs) > 0 {
			c := cloneSpace(sp)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SpaceRepository) UpdateSyncSettings(ctx context.Context, id string, u *model.SyncSettingsUpdate) error {
	defer r.s.lock(ctx)()

	sp, ok := r.s.spaces[id]
	if !ok {
		return spaceserrors.ErrNotFound
	}
	sp.Sync.ImportURLs = slices.Clone(u.ImportURLs)
	sp.Sync.AutoSyncEnabled = u.AutoSyncEnabled
	sp.Sync.SyncIntervalMinutes = u.SyncIntervalMinutes
	r.s.spaces[id] = sp
	return nil
}

func (r *SpaceRepository) UpdateSyncState(ctx context.Context, id string, state model.SyncState) error {
	defer r.s.lock(ctx)()

	sp, ok := r.s.spaces[id]
	if !ok {
		return spaceserrors.ErrNotFound
	}
	state.Sources = slices.Clone(state.Sources)
	sp.Sync.State = state
	r.s.spaces[id] = sp
	return nil
}
