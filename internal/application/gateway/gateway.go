// Package gateway mutaciones privilegiadas de {Identity, User} como una sola operación lógica.
//
// No hay transacción entre almacenes: el Identity Store se escribe primero y las
// acciones compensatorias (o el log de reconciliación) son el único mecanismo de consistencia.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/application/ports"
	"github.com/jhoicas/Beras-api/internal/application/usecase"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
	"github.com/jhoicas/Beras-api/pkg/logger"
	"github.com/jhoicas/Beras-api/pkg/metrics"
)

// Gateway orquesta Identity Store + directorio de usuarios.
type Gateway struct {
	identities ports.IdentityStore
	users      repository.UserRepository
	locations  repository.LocationRepository
	log        *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

var _ usecase.PrivilegeUpdater = (*Gateway)(nil)

// New construye el gateway. log y m pueden ser nil.
func New(identities ports.IdentityStore, users repository.UserRepository, locations repository.LocationRepository, log *logger.Logger, m *metrics.Metrics) *Gateway {
	if log == nil {
		log = logger.NewNop()
	}
	return &Gateway{
		identities: identities,
		users:      users,
		locations:  locations,
		log:        log.Component("gateway"),
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser crea la Identity con {role, locations} como metadata y después la fila local.
// Si la fila local falla se borra la Identity recién creada; si esa compensación también
// falla el error lleva domain.ErrConsistency.
func (g *Gateway) CreateUser(ctx context.Context, in dto.GatewayCreateUserRequest) (resp *dto.UserResponse, err error) {
	defer func() { g.observe(dto.ActionCreateUser, err) }()

	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	role, err := entity.ParseRole(in.Role)
	if err != nil {
		return nil, dto.NewValidationError("role", err.Error())
	}
	locs, err := usecase.ParseLocations(in.Locations)
	if err != nil {
		return nil, err
	}
	meta := entity.IdentityMetadata{Role: role, Locations: locs}.Normalize()
	if err := g.checkMetadata(ctx, meta); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	ident, err := g.identities.CreateIdentity(ctx, ports.NewIdentity{
		Username: username,
		Password: in.Password,
		Metadata: meta,
	})
	if err != nil {
		return nil, fmt.Errorf("crear identidad: %w", err)
	}

	now := ident.Stamp(g.now())
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = username
	}
	user := &entity.User{
		ExternalID: ident.ID,
		Name:       name,
		Role:       meta.Role,
		Locations:  meta.Locations,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = g.users.Insert(ctx, user)
	if errors.Is(err, domain.ErrDuplicate) {
		// el webhook created llegó antes que esta escritura
		_, err = g.users.UpsertFromIdentity(ctx, user)
	}
	if err != nil {
		return nil, g.rollbackCreate(ctx, ident.ID, err)
	}

	g.log.Info().Str("external_id", ident.ID).Str("role", role.String()).Msg("usuario creado")
	return g.respond(ctx, user)
}

func (g *Gateway) rollbackCreate(ctx context.Context, externalID string, cause error) error {
	localErr := asLocalStore(cause)
	if derr := g.identities.DeleteIdentity(ctx, externalID); derr != nil {
		g.log.Reconcile().Err(derr).
			Str("external_id", externalID).
			AnErr("cause", cause).
			Msg("rollback de identidad fallido: identidad huérfana sin usuario local")
		return fmt.Errorf("%w: %w (rollback falló: %v)", domain.ErrConsistency, localErr, derr)
	}
	g.log.Warn().Err(cause).Str("external_id", externalID).Msg("inserción local fallida; identidad revertida")
	return fmt.Errorf("insertar usuario: %w", localErr)
}

// UpdateUser actualiza la metadata del Identity Store y después la fila local.
// Si el Identity Store falla no se toca la fila. Si la fila local falla no se revierte
// la metadata: se loguea para reconciliación y se devuelve domain.ErrConsistency.
func (g *Gateway) UpdateUser(ctx context.Context, in dto.GatewayUpdateUserRequest) (resp *dto.UserResponse, err error) {
	defer func() { g.observe(dto.ActionUpdateUser, err) }()

	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	if in.Role == nil && in.Locations == nil {
		return nil, dto.NewValidationError("role", "se requiere role o locations")
	}
	var patch entity.UserPatch
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		patch.Name = &name
	}
	if in.Role != nil {
		role, err := entity.ParseRole(*in.Role)
		if err != nil {
			return nil, dto.NewValidationError("role", err.Error())
		}
		patch.Role = &role
	}
	if in.Locations != nil {
		locs, err := usecase.ParseLocations(*in.Locations)
		if err != nil {
			return nil, err
		}
		patch.Locations = &locs
	}

	base, err := g.currentUser(ctx, in.ExternalID)
	if err != nil {
		return nil, err
	}
	next := patch.Apply(*base)
	meta := next.Metadata()
	if err := g.checkMetadata(ctx, meta); err != nil {
		return nil, err
	}

	ident, err := g.identities.UpdateMetadata(ctx, in.ExternalID, meta)
	if err != nil {
		return nil, fmt.Errorf("actualizar metadata: %w", err)
	}

	next.UpdatedAt = ident.Stamp(g.now())
	ok, err := g.users.Update(ctx, &next)
	if err == nil && !ok {
		_, err = g.users.UpsertFromIdentity(ctx, &next)
	}
	if err != nil {
		g.log.Reconcile().Err(err).
			Str("external_id", in.ExternalID).
			Str("role", next.Role.String()).
			Ints64("locations", next.Locations.Int64s()).
			Msg("metadata actualizada pero el usuario local no; pendiente de reconciliación")
		return nil, fmt.Errorf("%w: %w", domain.ErrConsistency, asLocalStore(err))
	}

	g.log.Info().Str("external_id", in.ExternalID).Str("role", next.Role.String()).Msg("usuario actualizado")
	return g.respond(ctx, &next)
}

// currentUser estado base para el patch: la fila local, o la Identity si la fila aún no existe.
func (g *Gateway) currentUser(ctx context.Context, externalID string) (*entity.User, error) {
	u, err := g.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, asLocalStore(err)
	}
	if u != nil {
		return u, nil
	}
	ident, err := g.identities.GetIdentity(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("obtener identidad: %w", err)
	}
	meta := ident.Metadata.Normalize()
	now := g.now()
	return &entity.User{
		ExternalID: ident.ID,
		Name:       ident.Username,
		Role:       meta.Role,
		Locations:  meta.Locations,
		CreatedAt:  now,
	}, nil
}

// IdentityUpdatedAt updated_at de la identidad según el proveedor; cero si no lo informa.
func (g *Gateway) IdentityUpdatedAt(ctx context.Context, externalID string) (time.Time, error) {
	ident, err := g.identities.GetIdentity(ctx, externalID)
	if err != nil {
		return time.Time{}, fmt.Errorf("obtener identidad: %w", err)
	}
	return ident.UpdatedAt, nil
}

// DeleteUser borra la Identity y después la fila local. Si la Identity no se puede borrar
// (incluido que no exista) se aborta con la fila intacta. Si la fila local falla la operación
// igual es exitosa: la Identity es la autoridad para el login y la fila huérfana queda
// para la reconciliación.
func (g *Gateway) DeleteUser(ctx context.Context, in dto.GatewayDeleteUserRequest) (resp *dto.GatewayDeleteResponse, err error) {
	defer func() { g.observe(dto.ActionDeleteUser, err) }()

	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	if err := g.identities.DeleteIdentity(ctx, in.ExternalID); err != nil {
		return nil, fmt.Errorf("borrar identidad: %w", err)
	}
	resp = &dto.GatewayDeleteResponse{ExternalID: in.ExternalID, Deleted: true}
	if _, derr := g.users.DeleteByExternalID(ctx, in.ExternalID, g.now()); derr != nil {
		g.log.Reconcile().Err(derr).
			Str("external_id", in.ExternalID).
			Msg("identidad borrada pero el usuario local no; fila huérfana")
		resp.OrphanRetained = true
		return resp, nil
	}
	g.log.Info().Str("external_id", in.ExternalID).Msg("usuario borrado")
	return resp, nil
}

// checkMetadata tope de tamaño y ubicaciones existentes.
func (g *Gateway) checkMetadata(ctx context.Context, meta entity.IdentityMetadata) error {
	if _, err := meta.Encode(); err != nil {
		return dto.NewValidationError("locations", err.Error())
	}
	if len(meta.Locations) == 0 || g.locations == nil {
		return nil
	}
	found, err := g.locations.ResolveByIDs(ctx, meta.Locations.Int64s())
	if err != nil {
		return asLocalStore(err)
	}
	for _, id := range meta.Locations {
		if _, ok := found[id]; !ok {
			return dto.NewValidationError("locations", fmt.Sprintf("ubicación %d inexistente", id))
		}
	}
	return nil
}

func (g *Gateway) respond(ctx context.Context, u *entity.User) (*dto.UserResponse, error) {
	out, err := usecase.ToUserResponses(ctx, g.locations, u)
	if err != nil {
		// la mutación ya ocurrió; se responde sin detalle de ubicaciones
		g.log.Warn().Err(err).Str("external_id", u.ExternalID).Msg("no se pudieron resolver ubicaciones")
		out, _ = usecase.ToUserResponses(ctx, nil, u)
	}
	return &out[0], nil
}

func (g *Gateway) observe(action string, err error) {
	switch {
	case err == nil:
		g.metrics.GatewayMutation(action, metrics.OutcomeOK)
	case errors.Is(err, domain.ErrValidation):
		g.metrics.GatewayMutation(action, metrics.OutcomeRejected)
	default:
		g.metrics.GatewayMutation(action, metrics.OutcomeFailed)
	}
}

func asLocalStore(err error) error {
	if errors.Is(err, domain.ErrLocalStore) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
}
