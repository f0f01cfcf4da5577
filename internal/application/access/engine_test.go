package access_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Beras-api/internal/application/access"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/infrastructure/memstore"
)

type fixture struct {
	store  *memstore.Store
	engine *access.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	st.Seed(
		entity.Location{ID: 1, Name: "Jakarta", IsActive: true},
		entity.Location{ID: 2, Name: "OldDepo", IsActive: false},
		entity.Location{ID: 3, Name: "Surabaya", IsActive: true},
	)
	ctx := context.Background()
	for _, u := range []entity.User{
		{ExternalID: "admin", Name: "Admin", Role: entity.RoleAdmin},
		{ExternalID: "exec", Name: "Exec", Role: entity.RoleExecutive},
		{ExternalID: "audit", Name: "Audit", Role: entity.RoleAuditor},
		{ExternalID: "sm", Name: "Sales Manager", Role: entity.RoleSalesManager, Locations: entity.NewLocationSet(1, 2)},
		{ExternalID: "ss", Name: "Sales Supervisor", Role: entity.RoleSalesSupervisor, Locations: entity.NewLocationSet(3)},
		{ExternalID: "ss-empty", Name: "Sin ubicaciones", Role: entity.RoleSalesSupervisor},
		{ExternalID: "plain", Name: "Plain", Role: entity.RoleUnprivileged},
	} {
		u := u
		require.NoError(t, st.Users().Insert(ctx, &u))
	}
	rows := []*entity.StockRecord{
		{LocationID: 1, LocationName: "Jakarta", ProductID: 10, ProductType: "beras", QuantityOnHand: decimal.NewFromInt(5)},
		{LocationID: 1, LocationName: "Jakarta", ProductID: 11, ProductType: "gabah", QuantityOnHand: decimal.NewFromInt(7)},
		{LocationID: 2, LocationName: "OldDepo", ProductID: 10, ProductType: "beras", QuantityOnHand: decimal.NewFromInt(3)},
		{LocationID: 3, LocationName: "Surabaya", ProductID: 12, ProductType: "beras", QuantityOnHand: decimal.NewFromInt(9)},
	}
	_, err := st.Stock().InsertBatch(ctx, rows)
	require.NoError(t, err)
	return &fixture{store: st, engine: access.NewEngine(st.Users())}
}

func (f *fixture) principal(t *testing.T, externalID string) *access.Principal {
	t.Helper()
	p, err := f.engine.Resolve(context.Background(), externalID)
	require.NoError(t, err)
	return p
}

func (f *fixture) visibleStock(t *testing.T, p *access.Principal, productType string) []*entity.StockRecord {
	t.Helper()
	filter, ok := f.engine.StockFilter(p, productType)
	if !ok {
		return nil
	}
	rows, err := f.store.Stock().List(context.Background(), filter)
	require.NoError(t, err)
	return rows
}

func TestStockVisibility_GerenteSoloUbicacionActiva(t *testing.T) {
	f := newFixture(t)
	rows := f.visibleStock(t, f.principal(t, "sm"), "")

	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "Jakarta", r.LocationName)
	}
}

func TestStockVisibility_GrillaPorRol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := []int64{1, 2, 3}
	locs, err := f.store.Locations().ResolveByIDs(ctx, ids)
	require.NoError(t, err)

	adminFilter, ok := f.engine.StockFilter(f.principal(t, "admin"), "")
	require.True(t, ok)
	all, err := f.store.Stock().List(ctx, adminFilter)
	require.NoError(t, err)
	require.Len(t, all, 4)

	for _, id := range []string{"admin", "exec", "audit", "sm", "ss", "ss-empty", "plain", "desconocido"} {
		t.Run(id, func(t *testing.T) {
			p := f.principal(t, id)
			got := map[int64]bool{}
			for _, r := range f.visibleStock(t, p, "") {
				got[r.ID] = true
			}
			activeNames := map[string]bool{}
			for _, lid := range p.Locations {
				if l, ok := locs[lid]; ok && l.IsActive {
					activeNames[l.Name] = true
				}
			}
			for _, s := range all {
				want := p.Registered && (p.Role.UnrestrictedRead() ||
					(p.Role.LocationScoped() && activeNames[s.LocationName] && locs[s.LocationID].IsActive))
				assert.Equal(t, want, got[s.ID], "fila %d (%s)", s.ID, s.LocationName)
				assert.Equal(t, want, access.CanSeeStock(p, s, locs))
			}
		})
	}
}

func TestStockVisibility_FiltraPorProductType(t *testing.T) {
	f := newFixture(t)
	rows := f.visibleStock(t, f.principal(t, "exec"), "gabah")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(11), rows[0].ProductID)
}

func TestStockFilter_AmpliadoNoEscalaEnElAlmacen(t *testing.T) {
	f := newFixture(t)
	p := f.principal(t, "sm")
	filter, ok := f.engine.StockFilter(p, "")
	require.True(t, ok)

	filter.AllLocations = true
	filter.LocationIDs = []int64{1, 2, 3}
	rows, err := f.store.Stock().List(context.Background(), filter)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, "Jakarta", r.LocationName)
	}
}

func TestResolve_NoRegistrado(t *testing.T) {
	f := newFixture(t)
	p := f.principal(t, "nuevo")
	assert.False(t, p.Registered)
	assert.Equal(t, entity.DefaultRole, p.Role)

	_, err := f.engine.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUserFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	own, err := f.store.Users().List(ctx, f.engine.UserFilter(f.principal(t, "plain")), 0, 0)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "plain", own[0].ExternalID)

	all, err := f.store.Users().List(ctx, f.engine.UserFilter(f.principal(t, "audit")), 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	other, err := f.store.Users().Get(ctx, f.engine.UserFilter(f.principal(t, "sm")), "admin")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestLocationFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adminLocs, err := f.store.Locations().List(ctx, f.engine.LocationFilter(f.principal(t, "admin")))
	require.NoError(t, err)
	assert.Len(t, adminLocs, 3)

	smLocs, err := f.store.Locations().List(ctx, f.engine.LocationFilter(f.principal(t, "sm")))
	require.NoError(t, err)
	assert.Len(t, smLocs, 2)
	for _, l := range smLocs {
		assert.True(t, l.IsActive)
	}
}

func TestAuthorizeUserUpdate_SinAutoEscalada(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.principal(t, "sm")
	current, err := f.store.Users().GetByExternalID(ctx, "sm")
	require.NoError(t, err)

	name := "Nuevo Nombre"
	assert.NoError(t, f.engine.AuthorizeUserUpdate(p, current, entity.UserPatch{Name: &name}))

	admin := entity.RoleAdmin
	assert.ErrorIs(t, f.engine.AuthorizeUserUpdate(p, current, entity.UserPatch{Role: &admin}), domain.ErrDenied)

	more := entity.NewLocationSet(1, 2, 3)
	assert.ErrorIs(t, f.engine.AuthorizeUserUpdate(p, current, entity.UserPatch{Locations: &more}), domain.ErrDenied)

	same := entity.NewLocationSet(2, 1)
	assert.NoError(t, f.engine.AuthorizeUserUpdate(p, current, entity.UserPatch{Locations: &same}))

	other, err := f.store.Users().GetByExternalID(ctx, "plain")
	require.NoError(t, err)
	assert.ErrorIs(t, f.engine.AuthorizeUserUpdate(p, other, entity.UserPatch{Name: &name}), domain.ErrDenied)

	assert.NoError(t, f.engine.AuthorizeUserUpdate(f.principal(t, "admin"), other, entity.UserPatch{Role: &admin}))
}

func TestAuthorizeUserInsert(t *testing.T) {
	f := newFixture(t)
	p := f.principal(t, "nuevo")

	assert.NoError(t, f.engine.AuthorizeUserInsert(p, &entity.User{ExternalID: "nuevo", Role: entity.DefaultRole}))
	assert.ErrorIs(t, f.engine.AuthorizeUserInsert(p, &entity.User{ExternalID: "otro", Role: entity.DefaultRole}), domain.ErrDenied)
	assert.ErrorIs(t, f.engine.AuthorizeUserInsert(p, &entity.User{ExternalID: "nuevo", Role: entity.RoleAdmin}), domain.ErrDenied)
}

func TestAuthorizeCatalogWrite(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.engine.AuthorizeCatalogWrite(f.principal(t, "admin")))
	for _, id := range []string{"exec", "audit", "sm", "plain", "nuevo"} {
		assert.ErrorIs(t, f.engine.AuthorizeCatalogWrite(f.principal(t, id)), domain.ErrDenied, id)
	}
}
