package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/Beras-api/internal/application/access"
	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

// StockUseCase consulta de stock filtrada por rol y ubicaciones; escritura manual solo admin.
type StockUseCase struct {
	engine    *access.Engine
	stock     repository.StockRepository
	locations repository.LocationRepository
}

// NewStockUseCase construye el caso de uso.
func NewStockUseCase(engine *access.Engine, stock repository.StockRepository, locations repository.LocationRepository) *StockUseCase {
	return &StockUseCase{engine: engine, stock: stock, locations: locations}
}

// List filas visibles. Un rol sin acceso recibe una lista vacía, nunca un error.
func (uc *StockUseCase) List(ctx context.Context, p *access.Principal, q dto.StockQuery) (*dto.StockListResponse, error) {
	q.DefaultPage()
	if err := dto.Validate(q); err != nil {
		return nil, err
	}
	resp := &dto.StockListResponse{
		Items: []dto.StockResponse{},
		Page:  dto.PageResponse{Limit: q.Limit, Offset: q.Offset},
	}
	filter, ok := uc.engine.StockFilter(p, q.ProductType)
	if !ok {
		return resp, nil
	}
	filter.Limit, filter.Offset = q.Limit, q.Offset
	rows, err := uc.stock.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		resp.Items = append(resp.Items, toStockResponse(r))
	}
	return resp, nil
}

// Create alta manual. El nombre de ubicación se re-deriva de Location y la ubicación debe estar activa.
func (uc *StockUseCase) Create(ctx context.Context, p *access.Principal, in dto.CreateStockRequest) (*dto.StockResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	if err := uc.engine.AuthorizeCatalogWrite(p); err != nil {
		return nil, nil
	}
	active, err := uc.locations.ActiveByIDs(ctx, []int64{in.LocationID})
	if err != nil {
		return nil, err
	}
	loc, ok := active[in.LocationID]
	if !ok {
		return nil, dto.NewValidationError("location_id", "ubicación inexistente o inactiva")
	}
	rec := &entity.StockRecord{
		LocationID:     loc.ID,
		LocationName:   loc.Name,
		ProductID:      in.ProductID,
		ProductName:    in.ProductName,
		UOMID:          in.UOMID,
		UOMName:        in.UOMName,
		CategoryID:     in.CategoryID,
		CategoryName:   in.CategoryName,
		Weight:         in.Weight,
		QuantityOnHand: in.QuantityOnHand,
		ProductType:    in.ProductType,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := uc.stock.Insert(ctx, p.ExternalID, rec); err != nil {
		if errors.Is(err, domain.ErrDenied) {
			return nil, nil
		}
		return nil, err
	}
	out := toStockResponse(rec)
	return &out, nil
}

// Delete borra una fila; affected=0 si no existe o el llamador no es admin.
func (uc *StockUseCase) Delete(ctx context.Context, p *access.Principal, id int64) (*dto.AffectedResponse, error) {
	if err := uc.engine.AuthorizeCatalogWrite(p); err != nil {
		return &dto.AffectedResponse{}, nil
	}
	ok, err := uc.stock.Delete(ctx, p.ExternalID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &dto.AffectedResponse{}, nil
	}
	return &dto.AffectedResponse{Affected: 1}, nil
}
