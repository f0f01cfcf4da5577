// Package feed cliente HTTP del feed externo de inventario.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jhoicas/Beras-api/internal/application/ports"
	"github.com/jhoicas/Beras-api/internal/domain"
)

var _ ports.StockFeed = (*Client)(nil)

// maxBody tope de lectura de la respuesta del feed.
const maxBody = 32 << 20

// Client GET autenticado con bearer contra la API de inventario.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewClient construye el cliente. timeout <= 0 usa 30 s.
func NewClient(rawURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{url: rawURL, token: token, httpClient: &http.Client{Timeout: timeout}}
}

type feedResponse struct {
	Records *[]ports.FeedRecord `json:"records"`
}

// Fetch pide los registros de los product_types indicados. Una respuesta sin la clave
// records (o con records no arreglo) se trata como malformada.
func (c *Client) Fetch(ctx context.Context, productTypes []string) ([]ports.FeedRecord, error) {
	if c.url == "" {
		return nil, fmt.Errorf("%w: FEED_URL no configurado", domain.ErrUpstream)
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: FEED_URL inválido: %v", domain.ErrUpstream, err)
	}
	q := u.Query()
	for _, t := range productTypes {
		q.Add("product_type", t)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: crear request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err) {
			return nil, fmt.Errorf("%w: %w: %v", domain.ErrUpstream, domain.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: llamada HTTP fallida: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: feed HTTP %d: %s", domain.ErrUpstream, resp.StatusCode, snippet)
	}

	var out feedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		if isNetTimeout(err) {
			return nil, fmt.Errorf("%w: %w: %v", domain.ErrUpstream, domain.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: respuesta malformada: %v", domain.ErrUpstream, err)
	}
	if out.Records == nil {
		return nil, fmt.Errorf("%w: respuesta sin clave records", domain.ErrUpstream)
	}
	return *out.Records, nil
}

func isNetTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
