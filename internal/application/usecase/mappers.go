package usecase

import (
	"context"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

// ToUserResponses mapea usuarios resolviendo sus ubicaciones en una sola consulta.
// Una ubicación desactivada se sigue mostrando, con el sufijo " (Inactive)".
func ToUserResponses(ctx context.Context, locations repository.LocationRepository, users ...*entity.User) ([]dto.UserResponse, error) {
	var ids []int64
	for _, u := range users {
		ids = append(ids, u.Locations...)
	}
	resolved := map[int64]*entity.Location{}
	if len(ids) > 0 && locations != nil {
		var err error
		resolved, err = locations.ResolveByIDs(ctx, entity.NewLocationSet(ids...).Int64s())
		if err != nil {
			return nil, err
		}
	}
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u, resolved))
	}
	return out, nil
}

func toUserResponse(u *entity.User, resolved map[int64]*entity.Location) dto.UserResponse {
	resp := dto.UserResponse{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		Name:       u.Name,
		Role:       u.Role.String(),
		Locations:  u.Locations.Int64s(),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
	for _, id := range u.Locations {
		loc, ok := resolved[id]
		if !ok {
			continue
		}
		resp.LocationDetails = append(resp.LocationDetails, dto.LocationRef{
			ID:       loc.ID,
			Name:     loc.Name,
			Display:  loc.DisplayName(),
			IsActive: loc.IsActive,
		})
	}
	return resp
}

func toLocationResponse(l *entity.Location) *dto.LocationResponse {
	if l == nil {
		return nil
	}
	return &dto.LocationResponse{
		ID:           l.ID,
		Name:         l.Name,
		DisplayValue: l.DisplayValue,
		Display:      l.DisplayName(),
		IsActive:     l.IsActive,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func toStockResponse(r *entity.StockRecord) dto.StockResponse {
	return dto.StockResponse{
		ID:             r.ID,
		LocationID:     r.LocationID,
		LocationName:   r.LocationName,
		ProductID:      r.ProductID,
		ProductName:    r.ProductName,
		UOMID:          r.UOMID,
		UOMName:        r.UOMName,
		CategoryID:     r.CategoryID,
		CategoryName:   r.CategoryName,
		Weight:         r.Weight,
		QuantityOnHand: r.QuantityOnHand,
		ProductType:    r.ProductType,
		UpdatedAt:      r.UpdatedAt,
	}
}
