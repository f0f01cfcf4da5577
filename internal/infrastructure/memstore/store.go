// Package memstore implementa los puertos de repositorio en memoria con la misma
// política de filas que las políticas RLS de PostgreSQL. Se usa con DB_DRIVER=memory
// y en los tests de los casos de uso.
package memstore

import (
	"sync"
	"time"

	"github.com/jhoicas/Beras-api/internal/domain/entity"
)

// Store estado compartido por los tres repositorios.
type Store struct {
	mu         sync.RWMutex
	users      map[string]*entity.User
	tombstones map[string]time.Time
	locations  map[int64]*entity.Location
	stock      map[int64]*entity.StockRecord
	nextLocID  int64
	nextStock  int64
	now        func() time.Time
}

// New crea un almacén vacío.
func New() *Store {
	return &Store{
		users:      make(map[string]*entity.User),
		tombstones: make(map[string]time.Time),
		locations:  make(map[int64]*entity.Location),
		stock:      make(map[int64]*entity.StockRecord),
		now:        time.Now,
	}
}

// Users repositorio de usuarios sobre este almacén.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Locations repositorio de ubicaciones sobre este almacén.
func (s *Store) Locations() *LocationRepository { return &LocationRepository{s: s} }

// Stock repositorio de stock sobre este almacén.
func (s *Store) Stock() *StockRepository { return &StockRepository{s: s} }

// actorPolicy rol y ubicaciones vigentes del actor, como app_current_user() en SQL.
// Debe llamarse con el lock tomado.
func (s *Store) actorPolicy(actor string) (entity.Role, entity.LocationSet, bool) {
	u, ok := s.users[actor]
	if !ok || actor == "" {
		return entity.DefaultRole, nil, false
	}
	return u.Role, u.Locations.ForRole(u.Role), true
}

func (s *Store) actorIsAdmin(actor string) bool {
	role, _, ok := s.actorPolicy(actor)
	return ok && role.IsAdmin()
}

func cloneUser(u *entity.User) *entity.User {
	c := *u
	c.Locations = entity.NewLocationSet(u.Locations...)
	return &c
}

func cloneLocation(l *entity.Location) *entity.Location {
	c := *l
	return &c
}

func cloneStock(r *entity.StockRecord) *entity.StockRecord {
	c := *r
	return &c
}
