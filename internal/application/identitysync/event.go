package identitysync

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
)

// Kind tipo de evento de ciclo de vida de identidad.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
	// KindIgnored eventos del proveedor que no afectan al directorio (sesiones, emails, ...).
	KindIgnored Kind = "ignored"
)

// Event evento normalizado, listo para aplicar.
type Event struct {
	ID         string
	RawType    string
	Kind       Kind
	ExternalID string
	Name       string
	Role       entity.Role
	Locations  entity.LocationSet
	OccurredAt time.Time
	// MetadataIssue describe metadata rechazada en el borde (rol o ubicaciones inválidas).
	MetadataIssue string
	// Issue motivo por el que un evento de usuario verificado se ignora.
	Issue string
}

func parseKind(t string) Kind {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(t)), "user.") {
	case "created":
		return KindCreated
	case "updated":
		return KindUpdated
	case "deleted":
		return KindDeleted
	}
	return KindIgnored
}

// DecodeEnvelope parsea el cuerpo firmado. signedAt es el timestamp verificado de la cabecera.
//
// Momento del evento: data.updated_at (ms) si viene; si no, el timestamp del sobre (ms);
// si no, signedAt. Metadata con rol desconocido cae al rol por defecto y ubicaciones
// inválidas quedan vacías: nunca se confía en la forma que manda el proveedor.
func DecodeEnvelope(eventID string, body []byte, signedAt time.Time) (*Event, error) {
	var env dto.WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: cuerpo del webhook: %v", domain.ErrValidation, err)
	}
	ev := &Event{
		ID:      eventID,
		RawType: env.Type,
		Kind:    parseKind(env.Type),
	}
	if ev.Kind == KindIgnored {
		return ev, nil
	}
	ev.ExternalID = strings.TrimSpace(env.Data.ID)
	if ev.ExternalID == "" {
		// sobre auténtico pero inaplicable: un 4xx solo provocaría reintentos eternos
		ev.Kind = KindIgnored
		ev.Issue = "data.id vacío"
		return ev, nil
	}

	switch {
	case env.Data.UpdatedAt > 0:
		ev.OccurredAt = time.UnixMilli(env.Data.UpdatedAt).UTC()
	case env.Timestamp > 0:
		ev.OccurredAt = time.UnixMilli(env.Timestamp).UTC()
	default:
		ev.OccurredAt = signedAt.UTC()
	}
	if ev.Kind == KindDeleted {
		return ev, nil
	}

	ev.Name = displayName(env.Data)
	meta, issue := entity.DecodeMetadata(env.Data.PublicMetadata)
	ev.Role, ev.Locations, ev.MetadataIssue = meta.Role, meta.Locations, issue
	return ev, nil
}

func displayName(d dto.WebhookUserData) string {
	var parts []string
	for _, p := range []*string{d.FirstName, d.LastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if d.Username != nil {
		return strings.TrimSpace(*d.Username)
	}
	return ""
}
