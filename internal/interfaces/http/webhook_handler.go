package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Beras-api/internal/application/identitysync"
	"github.com/jhoicas/Beras-api/pkg/webhooksig"
)

// WebhookHandler receptor de eventos de ciclo de vida del Identity Store.
type WebhookHandler struct {
	sync *identitysync.Synchronizer
}

// NewWebhookHandler construye el handler.
func NewWebhookHandler(sync *identitysync.Synchronizer) *WebhookHandler {
	return &WebhookHandler{sync: sync}
}

// Receive godoc
// @Summary      Webhook de identidades
// @Description  Verifica la firma sobre el cuerpo crudo. Responde 2xx aunque la escritura local falle; 400 solo por firma o cuerpo inválido.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        svix-id         header  string  true  "ID del evento"
// @Param        svix-timestamp  header  string  true  "Timestamp del evento (segundos)"
// @Param        svix-signature  header  string  true  "Firmas v1"
// @Success      200  {object}  dto.WebhookAck
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/webhooks/identity [post]
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	headers := webhooksig.Headers{
		ID:        c.Get(webhooksig.HeaderID),
		Timestamp: c.Get(webhooksig.HeaderTimestamp),
		Signature: c.Get(webhooksig.HeaderSignature),
	}
	ack, err := h.sync.Handle(c.Context(), headers, c.Body())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(ack)
}
