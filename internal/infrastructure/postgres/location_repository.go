package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

var _ repository.LocationRepository = (*LocationRepo)(nil)

// LocationRepo implementación de LocationRepository sobre PostgreSQL.
type LocationRepo struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

const locationColumns = `id, name, display_value, is_active, created_at, updated_at`

func scanLocation(row pgx.Row) (*entity.Location, error) {
	var l entity.Location
	if err := row.Scan(&l.ID, &l.Name, &l.DisplayValue, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func collectLocations(rows pgx.Rows) ([]*entity.Location, error) {
	defer rows.Close()
	out := make([]*entity.Location, 0)
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// locationScope misma regla que locations_select.
const locationScope = `$1 <> '' AND (is_active OR ($2::boolean AND app_is_admin()))`

func (r *LocationRepo) List(ctx context.Context, f repository.LocationFilter) ([]*entity.Location, error) {
	var out []*entity.Location
	err := r.tx.RunScoped(ctx, f.Actor, func(q Querier) error {
		rows, err := q.Query(ctx, `SELECT `+locationColumns+` FROM locations WHERE `+locationScope+` ORDER BY id`,
			f.Actor, f.IncludeInactive)
		if err != nil {
			return storeErr("list locations", err)
		}
		out, err = collectLocations(rows)
		return storeErr("scan locations", err)
	})
	return out, err
}

func (r *LocationRepo) Get(ctx context.Context, f repository.LocationFilter, id int64) (*entity.Location, error) {
	var out *entity.Location
	err := r.tx.RunScoped(ctx, f.Actor, func(q Querier) error {
		l, err := scanLocation(q.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $3 AND `+locationScope,
			f.Actor, f.IncludeInactive, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return storeErr("get location", err)
		}
		out = l
		return nil
	})
	return out, err
}

func (r *LocationRepo) ResolveByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Location, error) {
	return r.byIDs(ctx, ids, false)
}

func (r *LocationRepo) ActiveByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Location, error) {
	return r.byIDs(ctx, ids, true)
}

func (r *LocationRepo) byIDs(ctx context.Context, ids []int64, onlyActive bool) (map[int64]*entity.Location, error) {
	out := make(map[int64]*entity.Location, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE id = ANY($1) AND (is_active OR NOT $2::boolean)`, ids, onlyActive)
	if err != nil {
		return nil, storeErr("locations by ids", err)
	}
	list, err := collectLocations(rows)
	if err != nil {
		return nil, storeErr("scan locations", err)
	}
	for _, l := range list {
		out[l.ID] = l
	}
	return out, nil
}

func requireAdmin(ctx context.Context, q Querier) error {
	var admin bool
	if err := q.QueryRow(ctx, `SELECT app_is_admin()`).Scan(&admin); err != nil {
		return storeErr("check admin", err)
	}
	if !admin {
		return domain.ErrDenied
	}
	return nil
}

// Create solo admin; nombre duplicado (sin distinguir mayúsculas) = domain.ErrDuplicate.
func (r *LocationRepo) Create(ctx context.Context, actor string, loc *entity.Location) error {
	return r.tx.RunScoped(ctx, actor, func(q Querier) error {
		if err := requireAdmin(ctx, q); err != nil {
			return err
		}
		var row pgx.Row
		if loc.ID > 0 {
			row = q.QueryRow(ctx, `
				INSERT INTO locations (id, name, display_value, is_active)
				VALUES ($1, $2, $3, $4)
				RETURNING `+locationColumns, loc.ID, loc.Name, loc.DisplayValue, loc.IsActive)
		} else {
			row = q.QueryRow(ctx, `
				INSERT INTO locations (name, display_value, is_active)
				VALUES ($1, $2, $3)
				RETURNING `+locationColumns, loc.Name, loc.DisplayValue, loc.IsActive)
		}
		created, err := scanLocation(row)
		if err != nil {
			return storeErr("insert location", err)
		}
		if loc.ID > 0 {
			// mantener la secuencia por delante de los IDs explícitos
			if _, err := q.Exec(ctx, `SELECT setval(pg_get_serial_sequence('locations', 'id'), GREATEST((SELECT max(id) FROM locations), 1))`); err != nil {
				return storeErr("sync location sequence", err)
			}
		}
		*loc = *created
		return nil
	})
}

func (r *LocationRepo) Update(ctx context.Context, actor string, loc *entity.Location) (bool, error) {
	var updated *entity.Location
	err := r.tx.RunScoped(ctx, actor, func(q Querier) error {
		l, err := scanLocation(q.QueryRow(ctx, `
			UPDATE locations SET name = $2, display_value = $3, updated_at = now()
			WHERE id = $1 AND app_is_admin()
			RETURNING `+locationColumns, loc.ID, loc.Name, loc.DisplayValue))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return storeErr("update location", err)
		}
		updated = l
		return nil
	})
	if err != nil || updated == nil {
		return false, err
	}
	*loc = *updated
	return true, nil
}

func (r *LocationRepo) SetActive(ctx context.Context, actor string, id int64, active bool) (bool, error) {
	changed := false
	err := r.tx.RunScoped(ctx, actor, func(q Querier) error {
		tag, err := q.Exec(ctx, `
			UPDATE locations SET is_active = $2, updated_at = now()
			WHERE id = $1 AND app_is_admin()`, id, active)
		if err != nil {
			return storeErr("set location active", err)
		}
		changed = tag.RowsAffected() > 0
		return nil
	})
	return changed, err
}
