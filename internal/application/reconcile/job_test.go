package reconcile_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/jhoicas/Beras-api/internal/application/reconcile"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/infrastructure/identity"
	"github.com/jhoicas/Beras-api/internal/infrastructure/memstore"
	"github.com/jhoicas/Beras-api/pkg/logger"
)

type flakyIdentities struct {
	*identity.Memory
	listErrAt int
	getErr    map[string]error
}

func (f *flakyIdentities) ListIdentities(ctx context.Context, limit, offset int) ([]entity.Identity, error) {
	if f.listErrAt > 0 && offset >= f.listErrAt {
		return nil, fmt.Errorf("%w: status 500", domain.ErrUpstream)
	}
	return f.Memory.ListIdentities(ctx, limit, offset)
}

func (f *flakyIdentities) GetIdentity(ctx context.Context, id string) (*entity.Identity, error) {
	if err, ok := f.getErr[id]; ok {
		return nil, err
	}
	return f.Memory.GetIdentity(ctx, id)
}

var past = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*memstore.Store, *flakyIdentities) {
	t.Helper()
	st := memstore.New()
	ids := &flakyIdentities{Memory: identity.NewMemory(), getErr: map[string]error{}}

	ids.Put(entity.Identity{ID: "user_a", Username: "ana", Metadata: entity.IdentityMetadata{Role: entity.RoleSalesManager, Locations: entity.NewLocationSet(1, 2)}})
	ids.Put(entity.Identity{ID: "user_b", Username: "budi", Metadata: entity.IdentityMetadata{Role: entity.RoleExecutive}})
	ids.Put(entity.Identity{ID: "user_c", Username: "citra", Metadata: entity.IdentityMetadata{Role: entity.RoleUnprivileged}})

	ctx := context.Background()
	// user_a divergente, user_b faltante, user_c al día, user_x huérfano
	require.NoError(t, st.Users().Insert(ctx, &entity.User{ExternalID: "user_a", Name: "Ana S.", Role: entity.RoleSalesSupervisor, Locations: entity.NewLocationSet(3), UpdatedAt: past}))
	require.NoError(t, st.Users().Insert(ctx, &entity.User{ExternalID: "user_c", Name: "citra", Role: entity.RoleUnprivileged, UpdatedAt: past}))
	require.NoError(t, st.Users().Insert(ctx, &entity.User{ExternalID: "user_x", Name: "huérfano", Role: entity.RoleAuditor, UpdatedAt: past}))
	return st, ids
}

func TestRun_ReparaDirectorio(t *testing.T) {
	st, ids := setup(t)
	job := reconcile.New(ids, st.Users(), 2, nil, nil)

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Identities)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.OrphansFound)
	assert.Equal(t, 1, res.OrphansPurged)
	assert.True(t, res.Complete)

	ctx := context.Background()
	a, err := st.Users().GetByExternalID(ctx, "user_a")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleSalesManager, a.Role)
	assert.True(t, a.Locations.Equal(entity.NewLocationSet(1, 2)))
	assert.Equal(t, "Ana S.", a.Name, "el nombre local no se pisa")

	b, err := st.Users().GetByExternalID(ctx, "user_b")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, entity.RoleExecutive, b.Role)
	assert.Equal(t, "budi", b.Name)

	x, err := st.Users().GetByExternalID(ctx, "user_x")
	require.NoError(t, err)
	assert.Nil(t, x)
}

func TestRun_Idempotente(t *testing.T) {
	st, ids := setup(t)
	job := reconcile.New(ids, st.Users(), 10, nil, nil)
	_, err := job.Run(context.Background())
	require.NoError(t, err)

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.OrphansPurged)
}

func TestRun_ListadoIncompletoNoBorraHuerfanos(t *testing.T) {
	st, ids := setup(t)
	ids.listErrAt = 2
	var logs bytes.Buffer
	job := reconcile.New(ids, st.Users(), 2, logger.FromWriter(&logs), nil)

	res, err := job.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.False(t, res.Complete)
	assert.Equal(t, 2, res.Identities)
	assert.Zero(t, res.OrphansFound)

	x, err := st.Users().GetByExternalID(context.Background(), "user_x")
	require.NoError(t, err)
	assert.NotNil(t, x, "sin listado completo no hay huérfanos confiables")
	assert.Contains(t, logs.String(), `"reconcile":true`)
}

func TestRun_HuerfanoNoConfirmadoSeConserva(t *testing.T) {
	st, ids := setup(t)
	ids.getErr["user_x"] = fmt.Errorf("%w: %w", domain.ErrUpstream, domain.ErrTimeout)
	job := reconcile.New(ids, st.Users(), 10, nil, nil)

	res, err := job.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, 1, res.Failures)
	assert.Zero(t, res.OrphansPurged)

	x, err := st.Users().GetByExternalID(context.Background(), "user_x")
	require.NoError(t, err)
	assert.NotNil(t, x)
}

func TestRun_IdentidadCreadaDuranteLaPasada(t *testing.T) {
	st, ids := setup(t)
	// user_x existe en el Identity Store pero el listado no lo devolvió
	late := &lateIdentity{flakyIdentities: ids, id: "user_x"}
	job := reconcile.New(late, st.Users(), 10, nil, nil)

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.OrphansFound)

	x, err := st.Users().GetByExternalID(context.Background(), "user_x")
	require.NoError(t, err)
	assert.NotNil(t, x)
}

type lateIdentity struct {
	*flakyIdentities
	id string
}

func (l *lateIdentity) GetIdentity(ctx context.Context, id string) (*entity.Identity, error) {
	if id == l.id {
		return &entity.Identity{ID: id, Username: "tardío"}, nil
	}
	return l.flakyIdentities.GetIdentity(ctx, id)
}

func TestRun_AcumulaErrores(t *testing.T) {
	st, ids := setup(t)
	boom := errors.New("boom")
	ids.getErr["user_x"] = boom
	ids.Put(entity.Identity{ID: "user_y", Username: "yan", Metadata: entity.IdentityMetadata{Role: entity.RoleUnprivileged}})
	require.NoError(t, st.Users().Insert(context.Background(), &entity.User{ExternalID: "user_z", Role: entity.RoleUnprivileged, UpdatedAt: past}))
	ids.getErr["user_z"] = boom

	job := reconcile.New(ids, st.Users(), 10, nil, nil)
	res, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 2, res.Failures)
	assert.Equal(t, 4, res.Identities)
}
