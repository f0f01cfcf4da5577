package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Beras-api/internal/application/ports"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
)

func TestClient_CreateIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body createUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "budi", body.Username)
		assert.JSONEq(t, `{"role":"sales_supervisor","locations":[2,5]}`, string(body.PublicMetadata))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"user_9","username":"budi","public_metadata":{"role":"sales_supervisor","locations":[2,5]},"updated_at":1700000000123}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "sk_test", time.Second)
	it, err := c.CreateIdentity(context.Background(), ports.NewIdentity{
		Username: "budi",
		Password: "rahasia123",
		Metadata: entity.IdentityMetadata{Role: entity.RoleSalesSupervisor, Locations: entity.NewLocationSet(5, 2)},
	})
	require.NoError(t, err)
	assert.Equal(t, "user_9", it.ID)
	assert.Equal(t, entity.RoleSalesSupervisor, it.Metadata.Role)
	assert.True(t, it.Metadata.Locations.Equal(entity.NewLocationSet(2, 5)))
	assert.True(t, it.UpdatedAt.Equal(time.UnixMilli(1700000000123)))
}

func TestClient_Errores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/user_missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errors":[{"code":"resource_not_found","message":"not found"}]}`)
		case "/users/user_slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = io.WriteString(w, `{}`)
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"errors":[{"code":"form_identifier_exists","message":"taken"}]}`)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", 50*time.Millisecond)
	ctx := context.Background()

	_, err := c.GetIdentity(ctx, "user_missing")
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = c.DeleteIdentity(ctx, "user_slow")
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, domain.ErrTimeout)

	_, err = c.CreateIdentity(ctx, ports.NewIdentity{Username: "dup", Password: "x"})
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "form_identifier_exists")
}

func TestClient_SinClaveSecreta(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second)
	_, err := c.GetIdentity(context.Background(), "user_1")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestClient_ListYMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			assert.Equal(t, "4", r.URL.Query().Get("offset"))
			_, _ = io.WriteString(w, `[{"id":"user_1","username":null,"public_metadata":{}},{"id":"user_2","username":"sari","public_metadata":{"role":"bogus"}}]`)
		case http.MethodPatch:
			assert.Equal(t, "/users/user_1/metadata", r.URL.Path)
			var body metadataRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.JSONEq(t, `{"role":"executive","locations":[]}`, string(body.PublicMetadata))
			_, _ = io.WriteString(w, `{"id":"user_1","public_metadata":{"role":"executive"}}`)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", time.Second)
	page, err := c.ListIdentities(context.Background(), 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "", page[0].Username)
	assert.Equal(t, entity.DefaultRole, page[1].Metadata.Role, "metadata inválida cae al rol por defecto")

	it, err := c.UpdateMetadata(context.Background(), "user_1", entity.IdentityMetadata{Role: entity.RoleExecutive, Locations: entity.NewLocationSet(7)})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleExecutive, it.Metadata.Role)
}
