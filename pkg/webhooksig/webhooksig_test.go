package webhooksig_test

import (
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Beras-api/pkg/webhooksig"
)

var (
	testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("super-secreto-de-pruebas"))
	fixedNow   = time.Unix(1_700_000_000, 0)
	body       = []byte(`{"type":"user.created","data":{"id":"u1"}}`)
)

func newVerifier(t *testing.T) *webhooksig.Verifier {
	t.Helper()
	v, err := webhooksig.NewVerifier(testSecret)
	require.NoError(t, err)
	return v.WithClock(func() time.Time { return fixedNow })
}

func signedHeaders(v *webhooksig.Verifier, ts time.Time, payload []byte) webhooksig.Headers {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	return webhooksig.Headers{ID: "msg_1", Timestamp: stamp, Signature: v.Sign("msg_1", stamp, payload)}
}

func TestVerify_FirmaValida(t *testing.T) {
	v := newVerifier(t)
	at, err := v.Verify(signedHeaders(v, fixedNow, body), body)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Unix(), at.Unix())
}

func TestVerify_AceptaCualquieraDeVariasFirmas(t *testing.T) {
	v := newVerifier(t)
	h := signedHeaders(v, fixedNow, body)
	h.Signature = "v1,AAAA " + h.Signature
	_, err := v.Verify(h, body)
	assert.NoError(t, err)
}

func TestVerify_CuerpoAlterado(t *testing.T) {
	v := newVerifier(t)
	h := signedHeaders(v, fixedNow, body)
	_, err := v.Verify(h, []byte(`{"type":"user.created","data":{"id":"u2"}}`))
	assert.ErrorIs(t, err, webhooksig.ErrNoMatch)
}

func TestVerify_FaltanCabeceras(t *testing.T) {
	v := newVerifier(t)
	h := signedHeaders(v, fixedNow, body)
	h.ID = ""
	_, err := v.Verify(h, body)
	assert.ErrorIs(t, err, webhooksig.ErrMissingHeaders)
}

func TestVerify_TimestampFueraDeVentana(t *testing.T) {
	v := newVerifier(t)
	h := signedHeaders(v, fixedNow.Add(-10*time.Minute), body)
	_, err := v.Verify(h, body)
	assert.ErrorIs(t, err, webhooksig.ErrBadTimestamp)
}

func TestVerify_VersionDesconocidaSeIgnora(t *testing.T) {
	v := newVerifier(t)
	h := signedHeaders(v, fixedNow, body)
	h.Signature = "v2" + h.Signature[2:]
	_, err := v.Verify(h, body)
	assert.ErrorIs(t, err, webhooksig.ErrNoMatch)
}

func TestNewVerifier_SecretoInvalido(t *testing.T) {
	_, err := webhooksig.NewVerifier("")
	assert.Error(t, err)
	_, err = webhooksig.NewVerifier("whsec_%%%")
	assert.Error(t, err)
}

// Sin reloj fijo la ventana y la firma las valida svix con el reloj real.
func TestVerify_RelojReal(t *testing.T) {
	v, err := webhooksig.NewVerifier(testSecret)
	require.NoError(t, err)

	h := signedHeaders(v, time.Now(), body)
	assert.True(t, strings.HasPrefix(h.Signature, "v1,"))
	_, err = v.Verify(h, body)
	require.NoError(t, err)

	_, err = v.Verify(h, []byte(`{}`))
	assert.ErrorIs(t, err, webhooksig.ErrNoMatch)

	_, err = v.Verify(signedHeaders(v, time.Now().Add(-10*time.Minute), body), body)
	assert.ErrorIs(t, err, webhooksig.ErrBadTimestamp)
}
