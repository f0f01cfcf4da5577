// Package webhooksig verifica sobres firmados de webhooks del Identity Store.
//
// El proveedor entrega los eventos vía Svix: contenido firmado "{id}.{timestamp}.{body}"
// con HMAC-SHA256, secreto "whsec_<base64>" y cabecera con una o más firmas "v1,<base64>".
// La verificación la hace la librería de Svix; este paquete adapta cabeceras y errores
// al dominio y expone el timestamp firmado.
package webhooksig

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

// Nombres de cabecera del sobre firmado.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// DefaultTolerance ventana aceptada entre el timestamp del evento y el reloj local
// (la misma que aplica svix).
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingHeaders = errors.New("webhooksig: faltan cabeceras de firma")
	ErrBadTimestamp   = errors.New("webhooksig: timestamp inválido o fuera de ventana")
	ErrNoMatch        = errors.New("webhooksig: ninguna firma coincide")
)

// Headers valores de cabecera usados en la verificación.
type Headers struct {
	ID        string
	Timestamp string
	Signature string
}

func (h Headers) httpHeader() http.Header {
	out := http.Header{}
	out.Set(HeaderID, h.ID)
	out.Set(HeaderTimestamp, h.Timestamp)
	out.Set(HeaderSignature, h.Signature)
	return out
}

// Verifier verifica firmas con un secreto compartido.
type Verifier struct {
	wh  *svix.Webhook
	now func() time.Time
}

// NewVerifier valida el secreto. Un secreto vacío es error: nunca se acepta un webhook sin verificar.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("webhooksig: secreto vacío")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("webhooksig: secreto inválido: %w", err)
	}
	return &Verifier{wh: wh}, nil
}

// WithClock fija el reloj para la ventana de tiempo (tests). Con reloj propio la ventana
// se evalúa aquí y svix solo comprueba la firma.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify valida cabeceras, ventana de tiempo y firma del cuerpo crudo.
// Devuelve el instante del timestamp firmado.
func (v *Verifier) Verify(h Headers, body []byte) (time.Time, error) {
	if h.ID == "" || h.Timestamp == "" || h.Signature == "" {
		return time.Time{}, ErrMissingHeaders
	}
	secs, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}, ErrBadTimestamp
	}
	ts := time.Unix(secs, 0)
	now := time.Now()
	if v.now != nil {
		now = v.now()
	}
	if diff := now.Sub(ts); diff > DefaultTolerance || diff < -DefaultTolerance {
		return time.Time{}, ErrBadTimestamp
	}

	verify := v.wh.Verify
	if v.now != nil {
		verify = v.wh.VerifyIgnoringTimestamp
	}
	if err := verify(body, h.httpHeader()); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	return ts, nil
}

// Sign produce la cabecera de firma para un evento (tests y herramientas locales).
// Devuelve "" si el timestamp no es un entero.
func (v *Verifier) Sign(id, timestamp string, body []byte) string {
	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ""
	}
	sig, err := v.wh.Sign(id, time.Unix(secs, 0), body)
	if err != nil {
		return ""
	}
	return sig
}
