// Package stockrefresh reemplaza en bloque el stock de una clase de product_type a partir
// del feed externo, que es la fuente autoritativa.
package stockrefresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/application/ports"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
	"github.com/jhoicas/Beras-api/pkg/logger"
	"github.com/jhoicas/Beras-api/pkg/metrics"
)

// Options configuración del worker.
type Options struct {
	// Classes nombre de clase -> product_types que reemplaza.
	Classes map[string][]string
	// Atomic borra e inserta en una sola transacción. Con false el borrado y la inserción
	// van por separado y un fallo de inserción deja la ventana de pérdida (domain.ErrDataLoss).
	Atomic bool
}

// Worker Stock Refresh Worker.
type Worker struct {
	feed      ports.StockFeed
	locations repository.LocationRepository
	stock     repository.StockRepository
	opts      Options
	log       *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New construye el worker. log y m pueden ser nil.
func New(feed ports.StockFeed, locations repository.LocationRepository, stock repository.StockRepository, opts Options, log *logger.Logger, m *metrics.Metrics) *Worker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Worker{
		feed:      feed,
		locations: locations,
		stock:     stock,
		opts:      opts,
		log:       log.Component("stockrefresh"),
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Classes clases configuradas, ordenadas.
func (w *Worker) Classes() []string {
	out := make([]string, 0, len(w.opts.Classes))
	for c := range w.opts.Classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Run ejecuta un refresh de la clase. Siempre devuelve el resumen, también con error.
//
// Sin registros aceptados (feed vacío, o todos con ubicación desconocida o inactiva) no
// se borra nada y el error es domain.ErrNoRecords.
func (w *Worker) Run(ctx context.Context, class string) (*dto.RefreshResult, error) {
	res := &dto.RefreshResult{Class: class, Atomic: w.opts.Atomic, StartedAt: w.now()}
	err := w.run(ctx, res)
	res.FinishedAt = w.now()

	var ev *zerolog.Event
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
		ev = w.log.Info()
	case errors.Is(err, domain.ErrNoRecords):
		ev = w.log.Warn().Err(err)
		outcome = metrics.OutcomeSkipped
	case errors.Is(err, domain.ErrDataLoss):
		ev = w.log.Reconcile().Err(err).Bool("data_loss", true)
		outcome = metrics.OutcomeFailed
	default:
		ev = w.log.Error().Err(err)
		outcome = metrics.OutcomeFailed
	}
	ev.Str("class", class).
		Strs("product_types", res.ProductTypes).
		Int("fetched", res.Fetched).
		Int("accepted", res.Accepted).
		Int("skipped", res.Skipped).
		Int64("deleted", res.Deleted).
		Int64("inserted", res.Inserted).
		Time("started_at", res.StartedAt).
		Time("finished_at", res.FinishedAt).
		Msg("refresh de stock")

	w.metrics.RefreshRun(class, outcome)
	w.metrics.RefreshRows(class, "fetched", int64(res.Fetched))
	w.metrics.RefreshRows(class, "skipped", int64(res.Skipped))
	w.metrics.RefreshRows(class, "deleted", res.Deleted)
	w.metrics.RefreshRows(class, "inserted", res.Inserted)
	return res, err
}

func (w *Worker) run(ctx context.Context, res *dto.RefreshResult) error {
	types, ok := w.opts.Classes[res.Class]
	if !ok || len(types) == 0 {
		return dto.NewValidationError("class", fmt.Sprintf("clase %q no configurada", res.Class))
	}
	res.ProductTypes = append([]string(nil), types...)

	records, err := w.feed.Fetch(ctx, types)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	res.Fetched = len(records)

	rows, err := w.transform(ctx, types, records, res)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: clase %s", domain.ErrNoRecords, res.Class)
	}

	if w.opts.Atomic {
		deleted, inserted, err := w.stock.ReplaceByProductTypes(ctx, types, rows)
		if err != nil {
			return asLocalStore(fmt.Errorf("reemplazo transaccional: %w", err))
		}
		res.Deleted, res.Inserted = deleted, inserted
		return nil
	}

	deleted, err := w.stock.DeleteByProductTypes(ctx, types)
	if err != nil {
		return asLocalStore(fmt.Errorf("borrado: %w", err))
	}
	res.Deleted = deleted
	inserted, err := w.stock.InsertBatch(ctx, rows)
	res.Inserted = inserted
	if err != nil {
		return fmt.Errorf("%w: %d filas borradas, %d de %d insertadas: %w",
			domain.ErrDataLoss, deleted, inserted, len(rows), err)
	}
	return nil
}

// transform acepta solo registros del product_type de la clase con ubicación activa,
// y re-deriva location_name desde Location.
func (w *Worker) transform(ctx context.Context, types []string, records []ports.FeedRecord, res *dto.RefreshResult) ([]*entity.StockRecord, error) {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.LocationID)
	}
	active, err := w.locations.ActiveByIDs(ctx, entity.NewLocationSet(ids...).Int64s())
	if err != nil {
		return nil, asLocalStore(fmt.Errorf("resolver ubicaciones: %w", err))
	}

	rows := make([]*entity.StockRecord, 0, len(records))
	for _, r := range records {
		productType := strings.TrimSpace(r.ProductType)
		if _, ok := allowed[productType]; !ok {
			res.Skipped++
			w.log.Warn().Int64("product_id", r.ProductID).Str("product_type", r.ProductType).Msg("registro fuera de la clase; omitido")
			continue
		}
		loc, ok := active[r.LocationID]
		if !ok {
			res.Skipped++
			w.log.Warn().
				Int64("product_id", r.ProductID).
				Int64("location_id", r.LocationID).
				Str("feed_location_name", r.LocationName).
				Msg("ubicación desconocida o inactiva; registro omitido")
			continue
		}
		rows = append(rows, &entity.StockRecord{
			LocationID:     loc.ID,
			LocationName:   loc.Name,
			ProductID:      r.ProductID,
			ProductName:    r.ProductName,
			UOMID:          r.UOMID,
			UOMName:        r.UOMName,
			CategoryID:     r.CategoryID,
			CategoryName:   r.CategoryName,
			Weight:         r.Weight,
			QuantityOnHand: r.QuantityOnHand,
			ProductType:    productType,
			UpdatedAt:      res.StartedAt,
		})
	}
	res.Accepted = len(rows)
	return rows, nil
}

func asLocalStore(err error) error {
	if errors.Is(err, domain.ErrLocalStore) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
}
