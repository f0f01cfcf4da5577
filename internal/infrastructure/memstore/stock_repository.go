package memstore

import (
	"context"
	"sort"

	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

// StockRepository implementación en memoria de repository.StockRepository.
type StockRepository struct {
	s *Store
}

var _ repository.StockRepository = (*StockRepository)(nil)

// visibleLocked misma regla que la política stock_select: irrestrictos ven todo; roles
// acotados solo filas cuyo location_name está entre sus ubicaciones activas y cuya
// ubicación referenciada sigue activa.
func (r *StockRepository) visibleLocked(f repository.StockFilter, rec *entity.StockRecord) bool {
	role, locs, ok := r.s.actorPolicy(f.Actor)
	if !ok {
		return false
	}
	if f.ProductType != "" && rec.ProductType != f.ProductType {
		return false
	}
	if f.AllLocations && role.UnrestrictedRead() {
		return true
	}
	if !role.LocationScoped() {
		return false
	}
	ref, ok := r.s.locations[rec.LocationID]
	if !ok || !ref.IsActive {
		return false
	}
	for _, id := range f.LocationIDs {
		if !locs.Contains(id) {
			continue
		}
		l, ok := r.s.locations[id]
		if ok && l.IsActive && l.Name == rec.LocationName {
			return true
		}
	}
	return false
}

func (r *StockRepository) List(_ context.Context, f repository.StockFilter) ([]*entity.StockRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.StockRecord, 0)
	for _, rec := range r.s.stock {
		if r.visibleLocked(f, rec) {
			out = append(out, cloneStock(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, f.Limit, f.Offset), nil
}

func (r *StockRepository) Insert(_ context.Context, actor string, rec *entity.StockRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.actorIsAdmin(actor) {
		return domain.ErrDenied
	}
	r.insertLocked(rec)
	return nil
}

func (r *StockRepository) insertLocked(rec *entity.StockRecord) {
	r.s.nextStock++
	rec.ID = r.s.nextStock
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = r.s.now()
	}
	r.s.stock[rec.ID] = cloneStock(rec)
}

func (r *StockRepository) Delete(_ context.Context, actor string, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.stock[id]; !ok || !r.s.actorIsAdmin(actor) {
		return false, nil
	}
	delete(r.s.stock, id)
	return true, nil
}

func (r *StockRepository) ReplaceByProductTypes(_ context.Context, productTypes []string, rows []*entity.StockRecord) (int64, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	deleted := r.deleteTypesLocked(productTypes)
	for _, rec := range rows {
		r.insertLocked(rec)
	}
	return deleted, int64(len(rows)), nil
}

func (r *StockRepository) DeleteByProductTypes(_ context.Context, productTypes []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.deleteTypesLocked(productTypes), nil
}

func (r *StockRepository) InsertBatch(_ context.Context, rows []*entity.StockRecord) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range rows {
		r.insertLocked(rec)
	}
	return int64(len(rows)), nil
}

func (r *StockRepository) deleteTypesLocked(productTypes []string) int64 {
	set := make(map[string]struct{}, len(productTypes))
	for _, t := range productTypes {
		set[t] = struct{}{}
	}
	var n int64
	for id, rec := range r.s.stock {
		if _, ok := set[rec.ProductType]; ok {
			delete(r.s.stock, id)
			n++
		}
	}
	return n
}

// CountByProductType filas de un product_type, sin política (tests y diagnósticos).
func (s *Store) CountByProductType(productType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.stock {
		if rec.ProductType == productType {
			n++
		}
	}
	return n
}
