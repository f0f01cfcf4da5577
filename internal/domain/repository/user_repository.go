package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Beras-api/internal/domain/entity"
)

// UserRepository define el puerto de persistencia del directorio de usuarios (DIP).
//
// Los métodos sin filtro son de contexto de servicio (sincronizador, gateway,
// reconciliación y resolución del principal) y no pasan por la política de filas.
type UserRepository interface {
	// GetByExternalID lookup privilegiado; (nil, nil) si no existe.
	GetByExternalID(ctx context.Context, externalID string) (*entity.User, error)
	// Insert crea la fila; domain.ErrDuplicate si el external_id ya existe.
	Insert(ctx context.Context, user *entity.User) error
	// Update reemplaza name/role/locations por external_id; false si no había fila.
	Update(ctx context.Context, user *entity.User) (bool, error)
	// UpsertFromIdentity inserta o actualiza con last-write-wins sobre user.UpdatedAt.
	// Devuelve false si el evento es más viejo que la fila o que una baja registrada.
	UpsertFromIdentity(ctx context.Context, user *entity.User) (bool, error)
	// DeleteByExternalID borra la fila y deja una baja (tombstone) con fecha at.
	// Borrar una fila inexistente no es error.
	DeleteByExternalID(ctx context.Context, externalID string, at time.Time) (bool, error)
	// ListExternalIDs todos los external_id del directorio (reconciliación).
	ListExternalIDs(ctx context.Context) ([]string, error)

	// Operaciones acotadas por política.
	List(ctx context.Context, f UserFilter, limit, offset int) ([]*entity.User, error)
	Get(ctx context.Context, f UserFilter, externalID string) (*entity.User, error)
	// InsertSelf auto-registro; false si ya existía una fila para ese external_id.
	InsertSelf(ctx context.Context, actor string, user *entity.User) (bool, error)
	// UpdateScoped actualiza bajo la política de la sesión del actor.
	UpdateScoped(ctx context.Context, actor string, user *entity.User) (bool, error)
}
