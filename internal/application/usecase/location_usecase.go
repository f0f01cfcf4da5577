package usecase

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jhoicas/Beras-api/internal/application/access"
	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

// DisplayValueFor valor para mostrar por defecto: el nombre en formato título.
// cases.Caser guarda estado, por eso se crea uno por llamada.
func DisplayValueFor(name string) string {
	return cases.Title(language.Indonesian).String(strings.TrimSpace(name))
}

// LocationUseCase CRUD de ubicaciones. Borrar = desactivar.
type LocationUseCase struct {
	engine *access.Engine
	repo   repository.LocationRepository
}

// NewLocationUseCase construye el caso de uso.
func NewLocationUseCase(engine *access.Engine, repo repository.LocationRepository) *LocationUseCase {
	return &LocationUseCase{engine: engine, repo: repo}
}

// List ubicaciones visibles: activas, más las inactivas para admin.
func (uc *LocationUseCase) List(ctx context.Context, p *access.Principal) (*dto.LocationListResponse, error) {
	list, err := uc.repo.List(ctx, uc.engine.LocationFilter(p))
	if err != nil {
		return nil, err
	}
	items := make([]dto.LocationResponse, 0, len(list))
	for _, l := range list {
		items = append(items, *toLocationResponse(l))
	}
	return &dto.LocationListResponse{Items: items}, nil
}

// GetByID nil si no existe o no es visible.
func (uc *LocationUseCase) GetByID(ctx context.Context, p *access.Principal, id int64) (*dto.LocationResponse, error) {
	l, err := uc.repo.Get(ctx, uc.engine.LocationFilter(p), id)
	if err != nil {
		return nil, err
	}
	return toLocationResponse(l), nil
}

// Create nil si el llamador no es admin.
func (uc *LocationUseCase) Create(ctx context.Context, p *access.Principal, in dto.CreateLocationRequest) (*dto.LocationResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	if err := uc.engine.AuthorizeCatalogWrite(p); err != nil {
		return nil, nil
	}
	loc := &entity.Location{
		ID:           in.ID,
		Name:         strings.TrimSpace(in.Name),
		DisplayValue: strings.TrimSpace(in.DisplayValue),
		IsActive:     true,
	}
	if loc.DisplayValue == "" {
		loc.DisplayValue = DisplayValueFor(loc.Name)
	}
	if err := uc.repo.Create(ctx, p.ExternalID, loc); err != nil {
		if errors.Is(err, domain.ErrDenied) {
			return nil, nil
		}
		return nil, err
	}
	return toLocationResponse(loc), nil
}

// Update renombra o cambia el estado; nil = cero filas afectadas.
func (uc *LocationUseCase) Update(ctx context.Context, p *access.Principal, id int64, in dto.UpdateLocationRequest) (*dto.LocationResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	if err := uc.engine.AuthorizeCatalogWrite(p); err != nil {
		return nil, nil
	}
	cur, err := uc.repo.Get(ctx, uc.engine.LocationFilter(p), id)
	if err != nil || cur == nil {
		return nil, err
	}
	if in.Name != nil || in.DisplayValue != nil {
		if in.Name != nil {
			cur.Name = strings.TrimSpace(*in.Name)
		}
		if in.DisplayValue != nil {
			cur.DisplayValue = strings.TrimSpace(*in.DisplayValue)
		}
		if cur.DisplayValue == "" {
			cur.DisplayValue = DisplayValueFor(cur.Name)
		}
		ok, err := uc.repo.Update(ctx, p.ExternalID, cur)
		if err != nil || !ok {
			return nil, err
		}
	}
	if in.IsActive != nil && *in.IsActive != cur.IsActive {
		ok, err := uc.repo.SetActive(ctx, p.ExternalID, id, *in.IsActive)
		if err != nil || !ok {
			return nil, err
		}
	}
	return uc.GetByID(ctx, p, id)
}

// Deactivate baja lógica: las referencias existentes siguen resolviendo con " (Inactive)".
func (uc *LocationUseCase) Deactivate(ctx context.Context, p *access.Principal, id int64) (*dto.AffectedResponse, error) {
	if err := uc.engine.AuthorizeCatalogWrite(p); err != nil {
		return &dto.AffectedResponse{}, nil
	}
	ok, err := uc.repo.SetActive(ctx, p.ExternalID, id, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &dto.AffectedResponse{}, nil
	}
	return &dto.AffectedResponse{Affected: 1}, nil
}
