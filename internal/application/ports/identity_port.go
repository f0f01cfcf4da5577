package ports

import (
	"context"

	"github.com/jhoicas/Beras-api/internal/domain/entity"
)

// NewIdentity datos para crear una identidad en el Identity Store.
type NewIdentity struct {
	Username string
	Password string
	Metadata entity.IdentityMetadata
}

// IdentityStore define el puerto de salida hacia el proveedor de autenticación externo.
// Solo se usa desde contexto de servidor: el adaptador lleva la clave secreta del proveedor.
//
// Errores: los adaptadores envuelven domain.ErrUpstream (y domain.ErrTimeout si venció el
// plazo); un recurso inexistente lleva además domain.ErrNotFound.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, in NewIdentity) (*entity.Identity, error)
	GetIdentity(ctx context.Context, id string) (*entity.Identity, error)
	UpdateMetadata(ctx context.Context, id string, meta entity.IdentityMetadata) (*entity.Identity, error)
	DeleteIdentity(ctx context.Context, id string) error
	// ListIdentities pagina por offset; una página más corta que limit es la última.
	ListIdentities(ctx context.Context, limit, offset int) ([]entity.Identity, error)
}
