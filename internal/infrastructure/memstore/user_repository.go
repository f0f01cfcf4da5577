package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

// UserRepository implementación en memoria de repository.UserRepository.
type UserRepository struct {
	s *Store
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) GetByExternalID(_ context.Context, externalID string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[externalID]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (r *UserRepository) Insert(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ExternalID]; ok {
		return domain.ErrDuplicate
	}
	r.insertLocked(user)
	return nil
}

func (r *UserRepository) insertLocked(user *entity.User) {
	now := r.s.now()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	user.Locations = user.Locations.ForRole(user.Role)
	delete(r.s.tombstones, user.ExternalID)
	r.s.users[user.ExternalID] = cloneUser(user)
}

func (r *UserRepository) Update(_ context.Context, user *entity.User) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[user.ExternalID]
	if !ok {
		return false, nil
	}
	r.overwriteLocked(cur, user)
	*user = *cloneUser(cur)
	return true, nil
}

func (r *UserRepository) overwriteLocked(cur, in *entity.User) {
	if in.Name != "" {
		cur.Name = in.Name
	}
	cur.Role = in.Role
	cur.Locations = in.Locations.ForRole(in.Role)
	if in.UpdatedAt.IsZero() {
		cur.UpdatedAt = r.s.now()
	} else {
		cur.UpdatedAt = in.UpdatedAt
	}
}

func (r *UserRepository) UpsertFromIdentity(_ context.Context, user *entity.User) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if tomb, ok := r.s.tombstones[user.ExternalID]; ok && !user.UpdatedAt.After(tomb) {
		return false, nil
	}
	cur, ok := r.s.users[user.ExternalID]
	if !ok {
		r.insertLocked(user)
		return true, nil
	}
	if cur.UpdatedAt.After(user.UpdatedAt) {
		return false, nil
	}
	r.overwriteLocked(cur, user)
	*user = *cloneUser(cur)
	return true, nil
}

func (r *UserRepository) DeleteByExternalID(_ context.Context, externalID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if prev, ok := r.s.tombstones[externalID]; !ok || at.After(prev) {
		r.s.tombstones[externalID] = at
	}
	_, existed := r.s.users[externalID]
	delete(r.s.users, externalID)
	return existed, nil
}

func (r *UserRepository) ListExternalIDs(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := make([]string, 0, len(r.s.users))
	for id := range r.s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// visibleLocked aplica el filtro y, encima, la política del actor: un filtro más amplio
// que lo permitido por el rol del actor no amplía la visibilidad.
func (r *UserRepository) visibleLocked(f repository.UserFilter, u *entity.User) bool {
	if u.ExternalID == f.Actor && f.Actor != "" {
		return true
	}
	if !f.All {
		return false
	}
	role, _, ok := r.s.actorPolicy(f.Actor)
	return ok && role.UnrestrictedRead()
}

func (r *UserRepository) List(_ context.Context, f repository.UserFilter, limit, offset int) ([]*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.User, 0)
	for _, u := range r.s.users {
		if !r.visibleLocked(f, u) {
			continue
		}
		if !f.All && f.OnlyExternalID != "" && u.ExternalID != f.OnlyExternalID {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ExternalID < out[j].ExternalID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, limit, offset), nil
}

func (r *UserRepository) Get(_ context.Context, f repository.UserFilter, externalID string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[externalID]
	if !ok || !r.visibleLocked(f, u) {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (r *UserRepository) InsertSelf(_ context.Context, actor string, user *entity.User) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if actor == "" || user.ExternalID != actor || user.Role != entity.DefaultRole || len(user.Locations) > 0 {
		return false, domain.ErrDenied
	}
	if _, ok := r.s.users[actor]; ok {
		return false, nil
	}
	r.insertLocked(user)
	return true, nil
}

func (r *UserRepository) UpdateScoped(_ context.Context, actor string, user *entity.User) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[user.ExternalID]
	if !ok {
		return false, nil
	}
	if !r.s.actorIsAdmin(actor) {
		if cur.ExternalID != actor {
			return false, nil
		}
		if cur.Role != user.Role || !cur.Locations.Equal(user.Locations.ForRole(user.Role)) {
			return false, nil
		}
	}
	r.overwriteLocked(cur, user)
	*user = *cloneUser(cur)
	return true, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
