package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jhoicas/Beras-api/internal/application/access"
	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

// PrivilegeUpdater propaga cambios de rol o ubicaciones a los dos almacenes
// (Identity Store y directorio). Lo implementa el gateway de mutaciones privilegiadas.
type PrivilegeUpdater interface {
	UpdateUser(ctx context.Context, in dto.GatewayUpdateUserRequest) (*dto.UserResponse, error)
}

// IdentityVersions updated_at del proveedor para una identidad. Si el PrivilegeUpdater lo
// implementa, el auto-registro se sella con ese reloj en lugar del local.
type IdentityVersions interface {
	IdentityUpdatedAt(ctx context.Context, externalID string) (time.Time, error)
}

// UserUseCase lecturas y escrituras del directorio bajo la política de filas.
type UserUseCase struct {
	engine     *access.Engine
	users      repository.UserRepository
	locations  repository.LocationRepository
	privileges PrivilegeUpdater
}

// NewUserUseCase construye el caso de uso. privileges puede ser nil (modo sin Identity Store):
// los cambios de rol de un admin quedan solo en el directorio local.
func NewUserUseCase(engine *access.Engine, users repository.UserRepository, locations repository.LocationRepository, privileges PrivilegeUpdater) *UserUseCase {
	return &UserUseCase{engine: engine, users: users, locations: locations, privileges: privileges}
}

// Me fila propia del llamador; nil si todavía no se registró.
func (uc *UserUseCase) Me(ctx context.Context, p *access.Principal) (*dto.UserResponse, error) {
	return uc.Get(ctx, p, p.ExternalID)
}

// Get un usuario visible para el llamador; nil si no existe o la política no lo deja ver.
func (uc *UserUseCase) Get(ctx context.Context, p *access.Principal, externalID string) (*dto.UserResponse, error) {
	u, err := uc.users.Get(ctx, uc.engine.UserFilter(p), externalID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	out, err := ToUserResponses(ctx, uc.locations, u)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// List usuarios visibles con paginación.
func (uc *UserUseCase) List(ctx context.Context, p *access.Principal, page dto.PageRequest) (*dto.UserListResponse, error) {
	page.DefaultPage()
	list, err := uc.users.List(ctx, uc.engine.UserFilter(p), page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items, err := ToUserResponses(ctx, uc.locations, list...)
	if err != nil {
		return nil, err
	}
	return &dto.UserListResponse{Items: items, Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}}, nil
}

// Register auto-registro con el rol por defecto. created=false si la fila ya existía.
func (uc *UserUseCase) Register(ctx context.Context, p *access.Principal, in dto.RegisterRequest) (*dto.UserResponse, bool, error) {
	if err := dto.Validate(in); err != nil {
		return nil, false, err
	}
	now := uc.registrationStamp(ctx, p.ExternalID)
	row := &entity.User{
		ExternalID: p.ExternalID,
		Name:       strings.TrimSpace(in.Name),
		Role:       entity.DefaultRole,
		Locations:  entity.LocationSet{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.engine.AuthorizeUserInsert(p, row); err != nil {
		return nil, false, err
	}
	created, err := uc.users.InsertSelf(ctx, p.ExternalID, row)
	if err != nil {
		return nil, false, err
	}
	resp, err := uc.Me(ctx, p)
	return resp, created, err
}

// registrationStamp marca de la fila auto-registrada. Con el reloj local, un webhook
// created posterior al registro quedaría como obsoleto hasta la reconciliación.
func (uc *UserUseCase) registrationStamp(ctx context.Context, externalID string) time.Time {
	now := time.Now().UTC()
	versions, ok := uc.privileges.(IdentityVersions)
	if !ok {
		return now
	}
	at, err := versions.IdentityUpdatedAt(ctx, externalID)
	if err != nil || at.IsZero() {
		return now
	}
	return at.UTC()
}

// Update aplica un patch. Devuelve nil (cero filas afectadas) si la política lo rechaza:
// fila ajena, o un no-admin intentando cambiar su propio rol o ubicaciones.
func (uc *UserUseCase) Update(ctx context.Context, p *access.Principal, externalID string, in dto.UpdateUserRequest) (*dto.UserResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	patch, err := buildPatch(in)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, dto.NewValidationError("body", "sin campos para actualizar")
	}
	current, err := uc.users.Get(ctx, uc.engine.UserFilter(p), externalID)
	if err != nil || current == nil {
		return nil, err
	}
	if err := uc.engine.AuthorizeUserUpdate(p, current, patch); err != nil {
		return nil, nil
	}

	if patch.TouchesPrivileges(current) && uc.privileges != nil {
		return uc.privileges.UpdateUser(ctx, dto.GatewayUpdateUserRequest{
			ExternalID: externalID,
			Name:       patch.Name,
			Role:       in.Role,
			Locations:  in.Locations,
		})
	}

	updated := patch.Apply(*current)
	updated.UpdatedAt = time.Now().UTC()
	ok, err := uc.users.UpdateScoped(ctx, p.ExternalID, &updated)
	if errors.Is(err, domain.ErrDenied) || (err == nil && !ok) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out, err := ToUserResponses(ctx, uc.locations, &updated)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func buildPatch(in dto.UpdateUserRequest) (entity.UserPatch, error) {
	var patch entity.UserPatch
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		patch.Name = &name
	}
	if in.Role != nil {
		role, err := entity.ParseRole(*in.Role)
		if err != nil {
			return patch, dto.NewValidationError("role", err.Error())
		}
		patch.Role = &role
	}
	if in.Locations != nil {
		set, err := ParseLocations(*in.Locations)
		if err != nil {
			return patch, err
		}
		patch.Locations = &set
	}
	return patch, nil
}

// ParseLocations valida IDs positivos y normaliza el conjunto.
func ParseLocations(ids []int64) (entity.LocationSet, error) {
	for _, id := range ids {
		if id <= 0 {
			return nil, dto.NewValidationError("locations", "los IDs deben ser positivos")
		}
	}
	return entity.NewLocationSet(ids...), nil
}
