package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

// LocationRepository implementación en memoria de repository.LocationRepository.
type LocationRepository struct {
	s *Store
}

var _ repository.LocationRepository = (*LocationRepository)(nil)

func (r *LocationRepository) visibleLocked(f repository.LocationFilter, l *entity.Location) bool {
	if f.Actor == "" {
		return false
	}
	if l.IsActive {
		return true
	}
	return f.IncludeInactive && r.s.actorIsAdmin(f.Actor)
}

func (r *LocationRepository) List(_ context.Context, f repository.LocationFilter) ([]*entity.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Location, 0, len(r.s.locations))
	for _, l := range r.s.locations {
		if r.visibleLocked(f, l) {
			out = append(out, cloneLocation(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *LocationRepository) Get(_ context.Context, f repository.LocationFilter, id int64) (*entity.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.locations[id]
	if !ok || !r.visibleLocked(f, l) {
		return nil, nil
	}
	return cloneLocation(l), nil
}

func (r *LocationRepository) ResolveByIDs(_ context.Context, ids []int64) (map[int64]*entity.Location, error) {
	return r.byIDs(ids, false), nil
}

func (r *LocationRepository) ActiveByIDs(_ context.Context, ids []int64) (map[int64]*entity.Location, error) {
	return r.byIDs(ids, true), nil
}

func (r *LocationRepository) byIDs(ids []int64, onlyActive bool) map[int64]*entity.Location {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[int64]*entity.Location, len(ids))
	for _, id := range ids {
		l, ok := r.s.locations[id]
		if !ok || (onlyActive && !l.IsActive) {
			continue
		}
		out[id] = cloneLocation(l)
	}
	return out
}

func (r *LocationRepository) nameTakenLocked(name string, exceptID int64) bool {
	for _, l := range r.s.locations {
		if l.ID != exceptID && strings.EqualFold(l.Name, name) {
			return true
		}
	}
	return false
}

func (r *LocationRepository) Create(_ context.Context, actor string, loc *entity.Location) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.actorIsAdmin(actor) {
		return domain.ErrDenied
	}
	if r.nameTakenLocked(loc.Name, 0) {
		return domain.ErrDuplicate
	}
	if loc.ID == 0 {
		r.s.nextLocID++
		loc.ID = r.s.nextLocID
	} else if _, ok := r.s.locations[loc.ID]; ok {
		return domain.ErrDuplicate
	} else if loc.ID > r.s.nextLocID {
		r.s.nextLocID = loc.ID
	}
	now := r.s.now()
	loc.CreatedAt, loc.UpdatedAt = now, now
	r.s.locations[loc.ID] = cloneLocation(loc)
	return nil
}

func (r *LocationRepository) Update(_ context.Context, actor string, loc *entity.Location) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.locations[loc.ID]
	if !ok || !r.s.actorIsAdmin(actor) {
		return false, nil
	}
	if r.nameTakenLocked(loc.Name, loc.ID) {
		return false, domain.ErrDuplicate
	}
	cur.Name = loc.Name
	cur.DisplayValue = loc.DisplayValue
	cur.UpdatedAt = r.s.now()
	*loc = *cloneLocation(cur)
	return true, nil
}

func (r *LocationRepository) SetActive(_ context.Context, actor string, id int64, active bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.locations[id]
	if !ok || !r.s.actorIsAdmin(actor) {
		return false, nil
	}
	cur.IsActive = active
	cur.UpdatedAt = r.s.now()
	return true, nil
}

// Seed carga ubicaciones sin pasar por la política (arranque en modo memoria y tests).
func (s *Store) Seed(locs ...entity.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range locs {
		l := locs[i]
		if l.ID == 0 {
			s.nextLocID++
			l.ID = s.nextLocID
		} else if l.ID > s.nextLocID {
			s.nextLocID = l.ID
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = s.now()
			l.UpdatedAt = l.CreatedAt
		}
		s.locations[l.ID] = &l
	}
}
