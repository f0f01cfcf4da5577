package dto

import "encoding/json"

// WebhookEnvelope evento de ciclo de vida de identidad enviado por el Identity Store.
// Type acepta "user.created" o "created" (y equivalentes).
type WebhookEnvelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      WebhookUserData `json:"data"`
}

// WebhookUserData datos del usuario en el evento. Los tiempos vienen en milisegundos Unix.
type WebhookUserData struct {
	ID             string          `json:"id"`
	Username       *string         `json:"username"`
	FirstName      *string         `json:"first_name"`
	LastName       *string         `json:"last_name"`
	PublicMetadata json.RawMessage `json:"public_metadata"`
	UpdatedAt      int64           `json:"updated_at"`
	Deleted        bool            `json:"deleted"`
}

// WebhookAck respuesta 2xx del receptor.
type WebhookAck struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Applied   bool   `json:"applied"`
	EventID   string `json:"event_id,omitempty"`
}
