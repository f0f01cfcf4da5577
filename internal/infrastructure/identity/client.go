// Package identity adaptadores del Identity Store: cliente REST del proveedor y
// una implementación en memoria para el modo local.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/Beras-api/internal/application/ports"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
)

var _ ports.IdentityStore = (*Client)(nil)

// Client adaptador REST de la API de backend del Identity Store (estilo Clerk).
// Autentica con la clave secreta como bearer; nunca se expone a un navegador.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient construye el adaptador. timeout <= 0 usa 10 s.
func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ── Estructuras del protocolo ────────────────────────────────────────────────

type createUserRequest struct {
	Username       string          `json:"username"`
	Password       string          `json:"password"`
	PublicMetadata json.RawMessage `json:"public_metadata"`
}

type metadataRequest struct {
	PublicMetadata json.RawMessage `json:"public_metadata"`
}

type userResource struct {
	ID             string          `json:"id"`
	Username       *string         `json:"username"`
	PublicMetadata json.RawMessage `json:"public_metadata"`
	UpdatedAt      int64           `json:"updated_at"` // ms
}

type errorResponse struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (u userResource) toEntity() *entity.Identity {
	meta, _ := entity.DecodeMetadata(u.PublicMetadata)
	it := &entity.Identity{ID: u.ID, Metadata: meta}
	if u.Username != nil {
		it.Username = *u.Username
	}
	if u.UpdatedAt > 0 {
		it.UpdatedAt = time.UnixMilli(u.UpdatedAt).UTC()
	}
	return it
}

// ── Implementación del puerto ────────────────────────────────────────────────

func (c *Client) CreateIdentity(ctx context.Context, in ports.NewIdentity) (*entity.Identity, error) {
	meta, err := in.Metadata.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	payload := createUserRequest{Username: in.Username, Password: in.Password, PublicMetadata: meta}

	var out userResource
	if err := c.do(ctx, http.MethodPost, "/users", payload, &out); err != nil {
		return nil, fmt.Errorf("identity: crear usuario: %w", err)
	}
	return out.toEntity(), nil
}

func (c *Client) GetIdentity(ctx context.Context, id string) (*entity.Identity, error) {
	var out userResource
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("identity: obtener %s: %w", id, err)
	}
	return out.toEntity(), nil
}

func (c *Client) UpdateMetadata(ctx context.Context, id string, meta entity.IdentityMetadata) (*entity.Identity, error) {
	raw, err := meta.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	var out userResource
	if err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id)+"/metadata", metadataRequest{PublicMetadata: raw}, &out); err != nil {
		return nil, fmt.Errorf("identity: actualizar metadata de %s: %w", id, err)
	}
	return out.toEntity(), nil
}

func (c *Client) DeleteIdentity(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("identity: borrar %s: %w", id, err)
	}
	return nil
}

func (c *Client) ListIdentities(ctx context.Context, limit, offset int) ([]entity.Identity, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("order_by", "created_at")

	var page []userResource
	if err := c.do(ctx, http.MethodGet, "/users?"+q.Encode(), nil, &page); err != nil {
		return nil, fmt.Errorf("identity: listar usuarios: %w", err)
	}
	out := make([]entity.Identity, 0, len(page))
	for _, u := range page {
		out = append(out, *u.toEntity())
	}
	return out, nil
}

// do ejecuta la llamada y traduce los fallos a la taxonomía de dominio.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.secretKey == "" {
		return fmt.Errorf("%w: IDENTITY_SECRET_KEY no configurado", domain.ErrUpstream)
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: serializar request: %v", domain.ErrUpstream, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: crear request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %w: %v", domain.ErrUpstream, domain.ErrTimeout, err)
		}
		return fmt.Errorf("%w: llamada HTTP fallida: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: leer respuesta: %v", domain.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && len(er.Errors) > 0 {
			msg = er.Errors[0].Code + ": " + er.Errors[0].Message
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: HTTP 404 %s: %w", domain.ErrUpstream, msg, domain.ErrNotFound)
		}
		return fmt.Errorf("%w: HTTP %d %s", domain.ErrUpstream, resp.StatusCode, msg)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: deserializar respuesta: %v", domain.ErrUpstream, err)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
