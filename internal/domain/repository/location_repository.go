package repository

import (
	"context"

	"github.com/jhoicas/Beras-api/internal/domain/entity"
)

// LocationRepository define el puerto de persistencia para Location (DIP).
type LocationRepository interface {
	List(ctx context.Context, f LocationFilter) ([]*entity.Location, error)
	Get(ctx context.Context, f LocationFilter, id int64) (*entity.Location, error)
	// ResolveByIDs resuelve nombres para mostrar, incluyendo inactivas.
	ResolveByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Location, error)
	// ActiveByIDs solo ubicaciones con is_active = true (integridad referencial del refresh).
	ActiveByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Location, error)

	Create(ctx context.Context, actor string, loc *entity.Location) error
	Update(ctx context.Context, actor string, loc *entity.Location) (bool, error)
	// SetActive desactiva/reactiva; nunca hay borrado físico.
	SetActive(ctx context.Context, actor string, id int64, active bool) (bool, error)
}
