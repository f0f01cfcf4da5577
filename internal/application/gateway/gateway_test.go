package gateway_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/application/gateway"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
	"github.com/jhoicas/Beras-api/internal/infrastructure/identity"
	"github.com/jhoicas/Beras-api/internal/infrastructure/memstore"
	"github.com/jhoicas/Beras-api/pkg/logger"
)

var errDB = errors.New("pq: connection reset")

type flakyIdentities struct {
	*identity.Memory
	deleteErr error
	updateErr error
	deletes   int
}

func (f *flakyIdentities) DeleteIdentity(ctx context.Context, id string) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Memory.DeleteIdentity(ctx, id)
}

func (f *flakyIdentities) UpdateMetadata(ctx context.Context, id string, meta entity.IdentityMetadata) (*entity.Identity, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.Memory.UpdateMetadata(ctx, id, meta)
}

type flakyUsers struct {
	repository.UserRepository
	insertErr error
	updateErr error
	deleteErr error
}

func (f *flakyUsers) Insert(ctx context.Context, u *entity.User) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.UserRepository.Insert(ctx, u)
}

func (f *flakyUsers) Update(ctx context.Context, u *entity.User) (bool, error) {
	if f.updateErr != nil {
		return false, f.updateErr
	}
	return f.UserRepository.Update(ctx, u)
}

func (f *flakyUsers) DeleteByExternalID(ctx context.Context, id string, at time.Time) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return f.UserRepository.DeleteByExternalID(ctx, id, at)
}

type harness struct {
	store *memstore.Store
	ids   *flakyIdentities
	users *flakyUsers
	logs  *bytes.Buffer
	gw    *gateway.Gateway
}

func newHarness() *harness {
	st := memstore.New()
	st.Seed(
		entity.Location{ID: 1, Name: "Jakarta", IsActive: true},
		entity.Location{ID: 2, Name: "OldDepo", IsActive: false},
	)
	h := &harness{
		store: st,
		ids:   &flakyIdentities{Memory: identity.NewMemory()},
		users: &flakyUsers{UserRepository: st.Users()},
		logs:  &bytes.Buffer{},
	}
	h.gw = gateway.New(h.ids, h.users, st.Locations(), logger.FromWriter(h.logs), nil)
	return h
}

func (h *harness) userCount(t *testing.T) int {
	t.Helper()
	ids, err := h.store.Users().ListExternalIDs(context.Background())
	require.NoError(t, err)
	return len(ids)
}

func validCreate() dto.GatewayCreateUserRequest {
	return dto.GatewayCreateUserRequest{
		Username:  "dewi",
		Password:  "correct-horse",
		Role:      "sales_manager",
		Locations: []int64{1, 2},
	}
}

func TestCreateUser_OK(t *testing.T) {
	h := newHarness()
	resp, err := h.gw.CreateUser(context.Background(), validCreate())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.ExternalID)
	assert.Equal(t, "dewi", resp.Name)
	assert.Equal(t, "sales_manager", resp.Role)
	assert.Equal(t, []int64{1, 2}, resp.Locations)
	require.Len(t, resp.LocationDetails, 2)
	assert.Equal(t, "OldDepo (Inactive)", resp.LocationDetails[1].Display)

	ident, err := h.ids.GetIdentity(context.Background(), resp.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleSalesManager, ident.Metadata.Role)
	assert.Equal(t, entity.NewLocationSet(1, 2), ident.Metadata.Locations)
}

func TestCreateUser_PasswordCorta(t *testing.T) {
	h := newHarness()
	in := validCreate()
	in.Password = "short"

	_, err := h.gw.CreateUser(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, dto.ValidationDetails(err), "password")
	assert.Equal(t, 0, h.ids.Len())
	assert.Equal(t, 0, h.userCount(t))
}

func TestCreateUser_Validaciones(t *testing.T) {
	cases := map[string]func(*dto.GatewayCreateUserRequest){
		"rol desconocido":       func(in *dto.GatewayCreateUserRequest) { in.Role = "root" },
		"ubicación inexistente": func(in *dto.GatewayCreateUserRequest) { in.Locations = []int64{99} },
		"ubicación negativa":    func(in *dto.GatewayCreateUserRequest) { in.Locations = []int64{-1} },
		"sin username":          func(in *dto.GatewayCreateUserRequest) { in.Username = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			in := validCreate()
			mutate(&in)
			_, err := h.gw.CreateUser(context.Background(), in)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, 0, h.ids.Len())
		})
	}
}

func TestCreateUser_RollbackSiFallaInsertLocal(t *testing.T) {
	h := newHarness()
	h.users.insertErr = errDB

	_, err := h.gw.CreateUser(context.Background(), validCreate())
	require.ErrorIs(t, err, domain.ErrLocalStore)
	assert.NotErrorIs(t, err, domain.ErrConsistency)
	assert.Equal(t, 1, h.ids.deletes)
	assert.Equal(t, 0, h.ids.Len())
	assert.Equal(t, 0, h.userCount(t))
}

func TestCreateUser_RollbackFallido(t *testing.T) {
	h := newHarness()
	h.users.insertErr = errDB
	h.ids.deleteErr = errors.New("proveedor caído")

	_, err := h.gw.CreateUser(context.Background(), validCreate())
	require.ErrorIs(t, err, domain.ErrConsistency)
	assert.ErrorIs(t, err, domain.ErrLocalStore)
	assert.Equal(t, 1, h.ids.Len())
	assert.Contains(t, h.logs.String(), `"reconcile":true`)
}

func TestCreateUser_WebhookLlegoPrimero(t *testing.T) {
	h := newHarness()
	h.users.insertErr = domain.ErrDuplicate

	resp, err := h.gw.CreateUser(context.Background(), validCreate())
	require.NoError(t, err)
	assert.Equal(t, 1, h.ids.Len())
	assert.Equal(t, 0, h.ids.deletes)
	assert.NotEmpty(t, resp.ExternalID)
	assert.Equal(t, 1, h.userCount(t))
}

func TestCreateUpdate_SellanConRelojDelProveedor(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	providerAt := time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)
	h.ids.WithClock(func() time.Time { return providerAt })

	resp, err := h.gw.CreateUser(ctx, validCreate())
	require.NoError(t, err)
	stored, err := h.store.Users().GetByExternalID(ctx, resp.ExternalID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(providerAt))

	later := providerAt.Add(time.Minute)
	h.ids.WithClock(func() time.Time { return later })
	role := "executive"
	_, err = h.gw.UpdateUser(ctx, dto.GatewayUpdateUserRequest{ExternalID: resp.ExternalID, Role: &role})
	require.NoError(t, err)
	stored, err = h.store.Users().GetByExternalID(ctx, resp.ExternalID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(later))

	// el webhook updated del mismo cambio trae ese updated_at y se aplica
	applied, err := h.store.Users().UpsertFromIdentity(ctx, &entity.User{
		ExternalID: resp.ExternalID, Name: "dewi", Role: entity.RoleExecutive, UpdatedAt: later,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	at, err := h.gw.IdentityUpdatedAt(ctx, resp.ExternalID)
	require.NoError(t, err)
	assert.True(t, at.Equal(later))
}

func seedPair(t *testing.T, h *harness, role entity.Role, locs ...int64) string {
	t.Helper()
	resp, err := h.gw.CreateUser(context.Background(), dto.GatewayCreateUserRequest{
		Username:  "seed-" + string(role),
		Password:  "password123",
		Role:      string(role),
		Locations: locs,
	})
	require.NoError(t, err)
	return resp.ExternalID
}

func TestUpdateUser_ActualizaAmbos(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := seedPair(t, h, entity.RoleSalesManager, 1)

	role := "executive"
	resp, err := h.gw.UpdateUser(ctx, dto.GatewayUpdateUserRequest{ExternalID: id, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "executive", resp.Role)
	assert.Empty(t, resp.Locations)

	ident, err := h.ids.GetIdentity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleExecutive, ident.Metadata.Role)

	u, err := h.store.Users().GetByExternalID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleExecutive, u.Role)
}

func TestUpdateUser_RequiereRolOUbicaciones(t *testing.T) {
	h := newHarness()
	_, err := h.gw.UpdateUser(context.Background(), dto.GatewayUpdateUserRequest{ExternalID: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateUser_FallaIdentityNoTocaLocal(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := seedPair(t, h, entity.RoleSalesManager, 1)
	h.ids.updateErr = errors.Join(domain.ErrUpstream, errors.New("503"))

	role := "admin"
	_, err := h.gw.UpdateUser(ctx, dto.GatewayUpdateUserRequest{ExternalID: id, Role: &role})
	require.ErrorIs(t, err, domain.ErrUpstream)

	u, err := h.store.Users().GetByExternalID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleSalesManager, u.Role)
}

func TestUpdateUser_BrechaDeConsistencia(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := seedPair(t, h, entity.RoleSalesManager, 1)
	h.users.updateErr = errDB

	role := "auditor_role"
	_, err := h.gw.UpdateUser(ctx, dto.GatewayUpdateUserRequest{ExternalID: id, Role: &role})
	require.ErrorIs(t, err, domain.ErrConsistency)

	ident, err := h.ids.GetIdentity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAuditor, ident.Metadata.Role)
	assert.Contains(t, h.logs.String(), `"reconcile":true`)
}

func TestUpdateUser_SinFilaLocalUsaIdentity(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.ids.Put(entity.Identity{ID: "user_x", Username: "eko", Metadata: entity.IdentityMetadata{Role: entity.RoleSalesSupervisor, Locations: entity.NewLocationSet(1)}})

	locs := []int64{1, 2}
	resp, err := h.gw.UpdateUser(ctx, dto.GatewayUpdateUserRequest{ExternalID: "user_x", Locations: &locs})
	require.NoError(t, err)
	assert.Equal(t, "sales_supervisor", resp.Role)
	assert.Equal(t, []int64{1, 2}, resp.Locations)

	u, err := h.store.Users().GetByExternalID(ctx, "user_x")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "eko", u.Name)
}

func TestDeleteUser_IdentityInexistente(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.store.Users().Insert(ctx, &entity.User{ExternalID: "ghost", Name: "Ghost", Role: entity.RoleExecutive}))

	_, err := h.gw.DeleteUser(ctx, dto.GatewayDeleteUserRequest{ExternalID: "ghost"})
	require.ErrorIs(t, err, domain.ErrUpstream)

	u, err := h.store.Users().GetByExternalID(ctx, "ghost")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, entity.RoleExecutive, u.Role)
}

func TestDeleteUser_OK(t *testing.T) {
	h := newHarness()
	id := seedPair(t, h, entity.RoleAuditor)

	resp, err := h.gw.DeleteUser(context.Background(), dto.GatewayDeleteUserRequest{ExternalID: id})
	require.NoError(t, err)
	assert.True(t, resp.Deleted)
	assert.False(t, resp.OrphanRetained)
	assert.Equal(t, 0, h.ids.Len())
	assert.Equal(t, 0, h.userCount(t))
}

func TestDeleteUser_FilaHuerfanaEsExito(t *testing.T) {
	h := newHarness()
	id := seedPair(t, h, entity.RoleAuditor)
	h.users.deleteErr = errDB

	resp, err := h.gw.DeleteUser(context.Background(), dto.GatewayDeleteUserRequest{ExternalID: id})
	require.NoError(t, err)
	assert.True(t, resp.OrphanRetained)
	assert.Equal(t, 0, h.ids.Len())
	assert.Equal(t, 1, h.userCount(t))
	assert.Contains(t, h.logs.String(), `"reconcile":true`)
}
