// Package identitysync aplica los eventos de ciclo de vida del Identity Store al
// directorio de usuarios. Entrega at-least-once y sin orden: cada camino es idempotente
// (upserts last-write-wins sobre updated_at, bajas con tombstone).
package identitysync

import (
	"context"
	"fmt"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/application/ports"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
	"github.com/jhoicas/Beras-api/pkg/logger"
	"github.com/jhoicas/Beras-api/pkg/metrics"
	"github.com/jhoicas/Beras-api/pkg/webhooksig"
)

// Synchronizer receptor de eventos firmados.
type Synchronizer struct {
	users    repository.UserRepository
	verifier *webhooksig.Verifier
	guard    ports.IdempotencyGuard
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewSynchronizer guard y m pueden ser nil.
func NewSynchronizer(users repository.UserRepository, verifier *webhooksig.Verifier, guard ports.IdempotencyGuard, log *logger.Logger, m *metrics.Metrics) *Synchronizer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Synchronizer{users: users, verifier: verifier, guard: guard, log: log.Component("identitysync"), metrics: m}
}

// Handle verifica, decodifica y aplica un evento.
//
// Solo devuelve error (400) por cabeceras ausentes, firma inválida o cuerpo que no es JSON.
// Un evento verificado sin data.id se acusa (2xx), se loguea y se cuenta como invalid.
// Un fallo de escritura local nunca se devuelve: se loguea con reconcile=true, se
// libera la marca de idempotencia y se responde 2xx para que el proveedor no reintente
// indefinidamente.
func (s *Synchronizer) Handle(ctx context.Context, h webhooksig.Headers, body []byte) (dto.WebhookAck, error) {
	signedAt, err := s.verifier.Verify(h, body)
	if err != nil {
		s.metrics.WebhookEvent("", metrics.OutcomeRejected)
		s.log.Warn().Err(err).Str("event_id", h.ID).Msg("webhook rechazado")
		return dto.WebhookAck{}, fmt.Errorf("%w: %v", domain.ErrSignature, err)
	}
	ev, err := DecodeEnvelope(h.ID, body, signedAt)
	if err != nil {
		s.metrics.WebhookEvent("", metrics.OutcomeRejected)
		return dto.WebhookAck{}, err
	}
	ack := dto.WebhookAck{Received: true, EventID: ev.ID}
	if ev.Kind == KindIgnored {
		if ev.Issue != "" {
			s.log.Warn().Str("event_id", ev.ID).Str("type", ev.RawType).Str("issue", ev.Issue).Msg("evento verificado pero inaplicable")
			s.metrics.WebhookEvent(ev.RawType, metrics.OutcomeInvalid)
			return ack, nil
		}
		s.log.Debug().Str("event_id", ev.ID).Str("type", ev.RawType).Msg("evento ignorado")
		s.metrics.WebhookEvent(ev.RawType, metrics.OutcomeSkipped)
		return ack, nil
	}

	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, ev.ID)
		if err != nil {
			// sin guard se sigue: los caminos son idempotentes por sí mismos
			s.log.Warn().Err(err).Str("event_id", ev.ID).Msg("guard de idempotencia no disponible")
		} else if seen {
			ack.Duplicate = true
			s.metrics.WebhookEvent(ev.RawType, metrics.OutcomeSkipped)
			return ack, nil
		}
	}

	applied, err := s.Apply(ctx, ev)
	if err != nil {
		s.log.Reconcile().Err(err).
			Str("event_id", ev.ID).
			Str("type", ev.RawType).
			Str("external_id", ev.ExternalID).
			Msg("no se pudo aplicar el evento de identidad")
		if s.guard != nil {
			if derr := s.guard.Delete(ctx, ev.ID); derr != nil {
				s.log.Warn().Err(derr).Str("event_id", ev.ID).Msg("no se pudo liberar la marca de idempotencia")
			}
		}
		s.metrics.WebhookEvent(ev.RawType, metrics.OutcomeFailed)
		return ack, nil
	}
	ack.Applied = applied
	s.metrics.WebhookEvent(ev.RawType, metrics.OutcomeOK)
	return ack, nil
}

// Apply aplica un evento ya verificado. applied=false cuando el evento quedó obsoleto
// (fila más nueva o baja posterior) o la baja no encontró fila.
func (s *Synchronizer) Apply(ctx context.Context, ev *Event) (bool, error) {
	switch ev.Kind {
	case KindCreated, KindUpdated:
		if ev.MetadataIssue != "" {
			s.log.Warn().
				Str("external_id", ev.ExternalID).
				Str("issue", ev.MetadataIssue).
				Msg("metadata inválida; se aplica rol por defecto")
		}
		u := &entity.User{
			ExternalID: ev.ExternalID,
			Name:       ev.Name,
			Role:       ev.Role,
			Locations:  ev.Locations.ForRole(ev.Role),
			CreatedAt:  ev.OccurredAt,
			UpdatedAt:  ev.OccurredAt,
		}
		applied, err := s.users.UpsertFromIdentity(ctx, u)
		if err != nil {
			return false, fmt.Errorf("upsert %s: %w", ev.ExternalID, err)
		}
		if !applied {
			s.log.Info().Str("external_id", ev.ExternalID).Str("type", ev.RawType).Msg("evento obsoleto ignorado")
		}
		return applied, nil
	case KindDeleted:
		existed, err := s.users.DeleteByExternalID(ctx, ev.ExternalID, ev.OccurredAt)
		if err != nil {
			return false, fmt.Errorf("delete %s: %w", ev.ExternalID, err)
		}
		return existed, nil
	}
	return false, nil
}
