package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Beras-api/internal/application/ports"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
)

// Memory Identity Store en memoria para el modo local (sin proveedor configurado) y tests.
// Reproduce los errores del cliente HTTP: un ID inexistente es ErrUpstream + ErrNotFound.
type Memory struct {
	mu    sync.Mutex
	items map[string]entity.Identity
	now   func() time.Time
}

var _ ports.IdentityStore = (*Memory)(nil)

// NewMemory crea un store vacío.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]entity.Identity), now: func() time.Time { return time.Now().UTC() }}
}

// WithClock reemplaza el reloj con el que se sella updated_at.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func notFound(id string) error {
	return fmt.Errorf("%w: identidad %s: %w", domain.ErrUpstream, id, domain.ErrNotFound)
}

func (m *Memory) CreateIdentity(_ context.Context, in ports.NewIdentity) (*entity.Identity, error) {
	if _, err := in.Metadata.Encode(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.Username == in.Username {
			return nil, fmt.Errorf("%w: username %q ya existe", domain.ErrUpstream, in.Username)
		}
	}
	it := entity.Identity{
		ID:       "user_" + uuid.NewString(),
		Username:  in.Username,
		Metadata:  in.Metadata.Normalize(),
		UpdatedAt: m.now(),
	}
	m.items[it.ID] = it
	return &it, nil
}

func (m *Memory) GetIdentity(_ context.Context, id string) (*entity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, notFound(id)
	}
	return &it, nil
}

func (m *Memory) UpdateMetadata(_ context.Context, id string, meta entity.IdentityMetadata) (*entity.Identity, error) {
	if _, err := meta.Encode(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, notFound(id)
	}
	it.Metadata = meta.Normalize()
	it.UpdatedAt = m.now()
	m.items[id] = it
	return &it, nil
}

func (m *Memory) DeleteIdentity(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return notFound(id)
	}
	delete(m.items, id)
	return nil
}

func (m *Memory) ListIdentities(_ context.Context, limit, offset int) ([]entity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]entity.Identity, 0, len(m.items))
	for _, it := range m.items {
		all = append(all, it)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return []entity.Identity{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Put inserta una identidad con ID fijo (tests y datos semilla).
func (m *Memory) Put(it entity.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it.Metadata = it.Metadata.Normalize()
	m.items[it.ID] = it
}

// Len cantidad de identidades.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
