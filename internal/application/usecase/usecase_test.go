package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Beras-api/internal/application/access"
	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/application/usecase"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/infrastructure/memstore"
)

type env struct {
	store     *memstore.Store
	engine    *access.Engine
	users     *usecase.UserUseCase
	locations *usecase.LocationUseCase
	stock     *usecase.StockUseCase
}

type recordingUpdater struct {
	calls []dto.GatewayUpdateUserRequest
}

func (r *recordingUpdater) UpdateUser(_ context.Context, in dto.GatewayUpdateUserRequest) (*dto.UserResponse, error) {
	r.calls = append(r.calls, in)
	return &dto.UserResponse{ExternalID: in.ExternalID, Role: *in.Role}, nil
}

func newEnv(t *testing.T, updater usecase.PrivilegeUpdater) *env {
	t.Helper()
	st := memstore.New()
	st.Seed(
		entity.Location{ID: 1, Name: "Jakarta", DisplayValue: "Jakarta", IsActive: true},
		entity.Location{ID: 2, Name: "OldDepo", IsActive: false},
	)
	ctx := context.Background()
	for _, u := range []entity.User{
		{ExternalID: "admin", Name: "Admin", Role: entity.RoleAdmin},
		{ExternalID: "sm", Name: "Manager", Role: entity.RoleSalesManager, Locations: entity.NewLocationSet(1, 2)},
		{ExternalID: "plain", Name: "Plain", Role: entity.RoleUnprivileged},
	} {
		u := u
		require.NoError(t, st.Users().Insert(ctx, &u))
	}
	engine := access.NewEngine(st.Users())
	return &env{
		store:     st,
		engine:    engine,
		users:     usecase.NewUserUseCase(engine, st.Users(), st.Locations(), updater),
		locations: usecase.NewLocationUseCase(engine, st.Locations()),
		stock:     usecase.NewStockUseCase(engine, st.Stock(), st.Locations()),
	}
}

func (e *env) p(t *testing.T, id string) *access.Principal {
	t.Helper()
	p, err := e.engine.Resolve(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestUserUseCase_MeMuestraUbicacionInactiva(t *testing.T) {
	e := newEnv(t, nil)
	me, err := e.users.Me(context.Background(), e.p(t, "sm"))
	require.NoError(t, err)
	require.NotNil(t, me)
	require.Len(t, me.LocationDetails, 2)
	assert.Equal(t, "Jakarta", me.LocationDetails[0].Display)
	assert.Equal(t, "OldDepo (Inactive)", me.LocationDetails[1].Display)
}

func TestUserUseCase_Register(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	resp, created, err := e.users.Register(ctx, e.p(t, "nuevo"), dto.RegisterRequest{Name: "Nuevo"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, string(entity.DefaultRole), resp.Role)

	_, created, err = e.users.Register(ctx, e.p(t, "nuevo"), dto.RegisterRequest{Name: "Otra vez"})
	require.NoError(t, err)
	assert.False(t, created)
}

type versionedUpdater struct {
	recordingUpdater
	at time.Time
}

func (v *versionedUpdater) IdentityUpdatedAt(context.Context, string) (time.Time, error) {
	return v.at, nil
}

// El auto-registro usa el reloj del proveedor: el webhook con la metadata asignada por
// un admin en ese mismo instante no queda descartado como obsoleto.
func TestUserUseCase_RegisterSellaConRelojDelProveedor(t *testing.T) {
	providerAt := time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)
	e := newEnv(t, &versionedUpdater{at: providerAt})
	ctx := context.Background()

	_, created, err := e.users.Register(ctx, e.p(t, "nuevo"), dto.RegisterRequest{Name: "Nuevo"})
	require.NoError(t, err)
	require.True(t, created)

	stored, err := e.store.Users().GetByExternalID(ctx, "nuevo")
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(providerAt))

	applied, err := e.store.Users().UpsertFromIdentity(ctx, &entity.User{
		ExternalID: "nuevo",
		Name:       "Nuevo",
		Role:       entity.RoleSalesSupervisor,
		Locations:  entity.NewLocationSet(1),
		UpdatedAt:  providerAt,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err = e.store.Users().GetByExternalID(ctx, "nuevo")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleSalesSupervisor, stored.Role)
}

func TestUserUseCase_UpdateSinAutoEscalada(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	admin := "admin"

	resp, err := e.users.Update(ctx, e.p(t, "plain"), "plain", dto.UpdateUserRequest{Role: &admin})
	require.NoError(t, err)
	assert.Nil(t, resp)

	locs := []int64{1}
	resp, err = e.users.Update(ctx, e.p(t, "plain"), "plain", dto.UpdateUserRequest{Locations: &locs})
	require.NoError(t, err)
	assert.Nil(t, resp)

	stored, err := e.store.Users().GetByExternalID(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUnprivileged, stored.Role)
	assert.Empty(t, stored.Locations)

	name := "Plain Renombrado"
	resp, err = e.users.Update(ctx, e.p(t, "plain"), "plain", dto.UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, name, resp.Name)
}

func TestUserUseCase_UpdateFilaAjena(t *testing.T) {
	e := newEnv(t, nil)
	name := "hack"
	resp, err := e.users.Update(context.Background(), e.p(t, "sm"), "plain", dto.UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestUserUseCase_AdminCambiaRolViaGateway(t *testing.T) {
	rec := &recordingUpdater{}
	e := newEnv(t, rec)
	role := "executive"
	resp, err := e.users.Update(context.Background(), e.p(t, "admin"), "plain", dto.UpdateUserRequest{Role: &role})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "plain", rec.calls[0].ExternalID)
}

func TestUserUseCase_AdminSinGatewayActualizaLocal(t *testing.T) {
	e := newEnv(t, nil)
	role := "sales_supervisor"
	locs := []int64{1}
	resp, err := e.users.Update(context.Background(), e.p(t, "admin"), "plain", dto.UpdateUserRequest{Role: &role, Locations: &locs})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, []int64{1}, resp.Locations)
}

func TestUserUseCase_UpdateValidacion(t *testing.T) {
	e := newEnv(t, nil)
	bad := "root"
	_, err := e.users.Update(context.Background(), e.p(t, "admin"), "plain", dto.UpdateUserRequest{Role: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = e.users.Update(context.Background(), e.p(t, "admin"), "plain", dto.UpdateUserRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUserUseCase_ListSegunRol(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	all, err := e.users.List(ctx, e.p(t, "admin"), dto.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)
	assert.Equal(t, 20, all.Page.Limit)

	own, err := e.users.List(ctx, e.p(t, "sm"), dto.PageRequest{})
	require.NoError(t, err)
	require.Len(t, own.Items, 1)
	assert.Equal(t, "sm", own.Items[0].ExternalID)
}

func TestLocationUseCase_SoloAdminEscribe(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	resp, err := e.locations.Create(ctx, e.p(t, "sm"), dto.CreateLocationRequest{Name: "Bandung"})
	require.NoError(t, err)
	assert.Nil(t, resp)

	resp, err = e.locations.Create(ctx, e.p(t, "admin"), dto.CreateLocationRequest{Name: "bandung barat"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "Bandung Barat", resp.DisplayValue)

	aff, err := e.locations.Deactivate(ctx, e.p(t, "sm"), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), aff.Affected)

	aff, err = e.locations.Deactivate(ctx, e.p(t, "admin"), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), aff.Affected)

	got, err := e.locations.GetByID(ctx, e.p(t, "sm"), resp.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = e.locations.GetByID(ctx, e.p(t, "admin"), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Bandung Barat (Inactive)", got.Display)
}

func TestLocationUseCase_NombreDuplicado(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.locations.Create(context.Background(), e.p(t, "admin"), dto.CreateLocationRequest{Name: "Jakarta"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestLocationUseCase_UpdateReactiva(t *testing.T) {
	e := newEnv(t, nil)
	active := true
	resp, err := e.locations.Update(context.Background(), e.p(t, "admin"), 2, dto.UpdateLocationRequest{IsActive: &active})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.IsActive)
	assert.Equal(t, "OldDepo", resp.Display)
}

func TestStockUseCase_CreateYList(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	in := dto.CreateStockRequest{
		LocationID:     1,
		ProductID:      100,
		ProductName:    "Beras Premium 5kg",
		QuantityOnHand: decimal.NewFromInt(12),
		ProductType:    "beras",
	}

	denied, err := e.stock.Create(ctx, e.p(t, "sm"), in)
	require.NoError(t, err)
	assert.Nil(t, denied)

	created, err := e.stock.Create(ctx, e.p(t, "admin"), in)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Jakarta", created.LocationName)

	in.LocationID = 2
	_, err = e.stock.Create(ctx, e.p(t, "admin"), in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	list, err := e.stock.List(ctx, e.p(t, "sm"), dto.StockQuery{ProductType: "beras"})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)

	none, err := e.stock.List(ctx, e.p(t, "plain"), dto.StockQuery{})
	require.NoError(t, err)
	assert.Empty(t, none.Items)

	aff, err := e.stock.Delete(ctx, e.p(t, "sm"), created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), aff.Affected)

	aff, err = e.stock.Delete(ctx, e.p(t, "admin"), created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), aff.Affected)
}
