package access

import (
	"context"
	"fmt"

	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

// Principal llamador resuelto: identidad verificada más rol y ubicaciones vigentes en el directorio.
// Un llamador autenticado sin fila en el directorio queda con Registered=false y rol por defecto.
type Principal struct {
	ExternalID string
	UserID     string
	Role       entity.Role
	Locations  entity.LocationSet
	Registered bool
}

// Engine motor de políticas: traduce el principal a filtros de filas y decide escrituras.
// No guarda estado por request; la identidad del llamador siempre viaja explícita.
type Engine struct {
	users repository.UserRepository
}

// NewEngine construye el motor con el directorio de usuarios.
func NewEngine(users repository.UserRepository) *Engine {
	return &Engine{users: users}
}

// Resolve busca el rol y las ubicaciones del llamador. El lookup es privilegiado
// (no pasa por la política de users) para no recursar sobre la misma regla.
func (e *Engine) Resolve(ctx context.Context, externalID string) (*Principal, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: identidad vacía", domain.ErrUnauthorized)
	}
	u, err := e.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("resolver principal: %w", err)
	}
	if u == nil {
		return &Principal{ExternalID: externalID, Role: entity.DefaultRole, Locations: entity.LocationSet{}}, nil
	}
	return &Principal{
		ExternalID: externalID,
		UserID:     u.ID,
		Role:       u.Role,
		Locations:  u.Locations.ForRole(u.Role),
		Registered: true,
	}, nil
}

// UserFilter filas de users visibles: la propia siempre, todas para lectura irrestricta.
func (e *Engine) UserFilter(p *Principal) repository.UserFilter {
	return repository.UserFilter{
		Actor:          p.ExternalID,
		All:            p.Registered && p.Role.UnrestrictedRead(),
		OnlyExternalID: p.ExternalID,
	}
}

// LocationFilter activas para cualquier autenticado; inactivas solo para admin.
func (e *Engine) LocationFilter(p *Principal) repository.LocationFilter {
	return repository.LocationFilter{
		Actor:           p.ExternalID,
		IncludeInactive: p.Registered && p.Role.IsAdmin(),
	}
}

// StockFilter filtro de stock para el principal. ok=false significa que ninguna fila es
// visible (rol sin acceso o rol acotado sin ubicaciones) y no hace falta consultar.
func (e *Engine) StockFilter(p *Principal, productType string) (repository.StockFilter, bool) {
	f := repository.StockFilter{Actor: p.ExternalID, ProductType: productType}
	switch {
	case !p.Registered:
		return f, false
	case p.Role.UnrestrictedRead():
		f.AllLocations = true
		return f, true
	case p.Role.LocationScoped():
		if len(p.Locations) == 0 {
			return f, false
		}
		f.LocationIDs = p.Locations.Int64s()
		return f, true
	default:
		return f, false
	}
}

// AuthorizeUserInsert auto-registro: solo con el rol por defecto y para la propia identidad.
func (e *Engine) AuthorizeUserInsert(p *Principal, row *entity.User) error {
	if row.ExternalID != p.ExternalID {
		return fmt.Errorf("%w: registro para otra identidad", domain.ErrDenied)
	}
	if row.Role != entity.DefaultRole || len(row.Locations) > 0 {
		return fmt.Errorf("%w: auto-registro con rol %s", domain.ErrDenied, row.Role)
	}
	return nil
}

// AuthorizeUserUpdate admin puede todo; el resto solo su propia fila y sin tocar rol ni ubicaciones.
func (e *Engine) AuthorizeUserUpdate(p *Principal, current *entity.User, patch entity.UserPatch) error {
	if p.Registered && p.Role.IsAdmin() {
		return nil
	}
	if current.ExternalID != p.ExternalID {
		return fmt.Errorf("%w: fila ajena", domain.ErrDenied)
	}
	if patch.TouchesPrivileges(current) {
		return fmt.Errorf("%w: cambio de rol o ubicaciones propio", domain.ErrDenied)
	}
	return nil
}

// AuthorizeCatalogWrite escritura directa de Location o Stock: solo admin.
func (e *Engine) AuthorizeCatalogWrite(p *Principal) error {
	if p.Registered && p.Role.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: escritura de catálogo requiere admin", domain.ErrDenied)
}

// CanSeeStock predicado de visibilidad de una fila de stock dado el mapa de ubicaciones
// referenciables. Es la misma regla que aplica el almacenamiento.
func CanSeeStock(p *Principal, rec *entity.StockRecord, locations map[int64]*entity.Location) bool {
	if !p.Registered {
		return false
	}
	if p.Role.UnrestrictedRead() {
		return true
	}
	if !p.Role.LocationScoped() {
		return false
	}
	ref, ok := locations[rec.LocationID]
	if !ok || !ref.IsActive {
		return false
	}
	for _, id := range p.Locations {
		loc, ok := locations[id]
		if ok && loc.IsActive && loc.Name == rec.LocationName {
			return true
		}
	}
	return false
}
