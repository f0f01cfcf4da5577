// Package reconcile repara divergencias entre el Identity Store y el directorio de usuarios.
//
// La reconciliación es el respaldo de los webhooks perdidos y de las escrituras
// parciales del gateway: crea filas faltantes, corrige rol/ubicaciones divergentes
// y borra filas huérfanas cuya identidad ya no existe.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/application/ports"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
	"github.com/jhoicas/Beras-api/pkg/logger"
	"github.com/jhoicas/Beras-api/pkg/metrics"
)

const defaultPageSize = 100

// Job pasada completa de reconciliación.
type Job struct {
	identities ports.IdentityStore
	users      repository.UserRepository
	pageSize   int
	log        *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New construye el job. pageSize <= 0 usa el default; log y m pueden ser nil.
func New(identities ports.IdentityStore, users repository.UserRepository, pageSize int, log *logger.Logger, m *metrics.Metrics) *Job {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Job{
		identities: identities,
		users:      users,
		pageSize:   pageSize,
		log:        log.Component("reconcile"),
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Name nombre del job para el scheduler y las métricas.
func (j *Job) Name() string { return "directory-reconcile" }

// Run recorre todas las identidades y repara el directorio. Los fallos por fila no
// cortan la pasada: se acumulan y se devuelven juntos. Los huérfanos solo se borran
// si el listado del Identity Store terminó completo.
func (j *Job) Run(ctx context.Context) (*dto.ReconcileResult, error) {
	res := &dto.ReconcileResult{StartedAt: j.now()}
	seen := make(map[string]struct{})

	var errs error
	listErr := j.walk(ctx, func(it entity.Identity) {
		seen[it.ID] = struct{}{}
		res.Identities++
		if err := j.repair(ctx, it, res); err != nil {
			res.Failures++
			errs = multierr.Append(errs, fmt.Errorf("identidad %s: %w", it.ID, err))
		}
	})
	if listErr != nil {
		errs = multierr.Append(errs, fmt.Errorf("listar identidades: %w", listErr))
	} else {
		res.Complete = true
		errs = multierr.Append(errs, j.purgeOrphans(ctx, seen, res))
	}
	res.FinishedAt = j.now()

	j.metrics.ReconcileRepair("created", res.Created)
	j.metrics.ReconcileRepair("updated", res.Updated)
	j.metrics.ReconcileRepair("orphan_deleted", res.OrphansPurged)

	ev := j.log.Info()
	if errs != nil {
		ev = j.log.Reconcile().Err(errs)
	}
	ev.Int("identities", res.Identities).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("orphans_found", res.OrphansFound).
		Int("orphans_purged", res.OrphansPurged).
		Int("failures", res.Failures).
		Bool("complete", res.Complete).
		Msg("reconciliación del directorio")
	return res, errs
}

func (j *Job) walk(ctx context.Context, fn func(entity.Identity)) error {
	for offset := 0; ; offset += j.pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := j.identities.ListIdentities(ctx, j.pageSize, offset)
		if err != nil {
			return err
		}
		for _, it := range page {
			fn(it)
		}
		if len(page) < j.pageSize {
			return nil
		}
	}
}

// repair crea la fila faltante o corrige rol/ubicaciones. El nombre local no se pisa.
func (j *Job) repair(ctx context.Context, it entity.Identity, res *dto.ReconcileResult) error {
	meta := it.Metadata.Normalize()
	current, err := j.users.GetByExternalID(ctx, it.ID)
	if err != nil {
		return asLocalStore(err)
	}
	now := j.now()
	if current == nil {
		u := &entity.User{
			ExternalID: it.ID,
			Name:       it.Username,
			Role:       meta.Role,
			Locations:  meta.Locations,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		applied, err := j.users.UpsertFromIdentity(ctx, u)
		if err != nil {
			return asLocalStore(err)
		}
		if applied {
			res.Created++
			j.log.Info().Str("external_id", it.ID).Msg("usuario faltante creado")
		}
		return nil
	}
	if current.Role == meta.Role && current.Locations.Equal(meta.Locations) {
		return nil
	}
	next := *current
	next.Role = meta.Role
	next.Locations = meta.Locations
	next.UpdatedAt = now
	applied, err := j.users.UpsertFromIdentity(ctx, &next)
	if err != nil {
		return asLocalStore(err)
	}
	if applied {
		res.Updated++
		j.log.Info().
			Str("external_id", it.ID).
			Str("role_before", current.Role.String()).
			Str("role", meta.Role.String()).
			Msg("usuario divergente corregido")
	}
	return nil
}

// purgeOrphans borra filas sin identidad. Cada candidato se confirma con GetIdentity
// para no borrar usuarios creados durante la pasada.
func (j *Job) purgeOrphans(ctx context.Context, seen map[string]struct{}, res *dto.ReconcileResult) error {
	ids, err := j.users.ListExternalIDs(ctx)
	if err != nil {
		return fmt.Errorf("listar directorio: %w", asLocalStore(err))
	}
	var errs error
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		_, err := j.identities.GetIdentity(ctx, id)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, domain.ErrNotFound):
			res.Failures++
			errs = multierr.Append(errs, fmt.Errorf("confirmar huérfano %s: %w", id, err))
			continue
		}
		res.OrphansFound++
		if _, err := j.users.DeleteByExternalID(ctx, id, j.now()); err != nil {
			res.Failures++
			errs = multierr.Append(errs, fmt.Errorf("borrar huérfano %s: %w", id, asLocalStore(err)))
			continue
		}
		res.OrphansPurged++
		j.log.Warn().Str("external_id", id).Msg("usuario huérfano borrado")
	}
	return errs
}

func asLocalStore(err error) error {
	if errors.Is(err, domain.ErrLocalStore) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
}
