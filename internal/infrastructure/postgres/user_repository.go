package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implementación del puerto UserRepository sobre PostgreSQL.
type UserRepo struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

const userColumns = `id, external_id, name, role, locations, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		u    entity.User
		role string
		locs []int64
	)
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Name, &role, &locs, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = entity.Role(role)
	u.Locations = entity.NewLocationSet(locs...)
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]*entity.User, error) {
	defer rows.Close()
	out := make([]*entity.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetByExternalID lookup de contexto de servicio; (nil, nil) si no existe.
func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (*entity.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get user by external_id", err)
	}
	return u, nil
}

func prepareInsert(user *entity.User) {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	user.Locations = user.Locations.ForRole(user.Role)
}

// Insert persiste un nuevo usuario; domain.ErrDuplicate si el external_id ya existe.
func (r *UserRepo) Insert(ctx context.Context, user *entity.User) error {
	prepareInsert(user)
	return r.tx.Run(ctx, func(q Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			user.ID, user.ExternalID, user.Name, user.Role.String(), user.Locations.Int64s(), user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return storeErr("insert user", err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM user_tombstones WHERE external_id = $1`, user.ExternalID); err != nil {
			return storeErr("clear tombstone", err)
		}
		return nil
	})
}

// Update reemplaza name (si no está vacío), role y locations.
func (r *UserRepo) Update(ctx context.Context, user *entity.User) (bool, error) {
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now().UTC()
	}
	locs := user.Locations.ForRole(user.Role)
	updated, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = COALESCE(NULLIF($2, ''), name), role = $3, locations = $4, updated_at = $5
		WHERE external_id = $1
		RETURNING `+userColumns,
		user.ExternalID, user.Name, user.Role.String(), locs.Int64s(), user.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, storeErr("update user", err)
	}
	*user = *updated
	return true, nil
}

// userLockPrefix serializa upsert y baja del mismo external_id aunque aún no exista
// fila ni tombstone que bloquear con FOR UPDATE.
const userLockPrefix = "user:"

// UpsertFromIdentity last-write-wins sobre updated_at, respetando las bajas registradas.
func (r *UserRepo) UpsertFromIdentity(ctx context.Context, user *entity.User) (bool, error) {
	prepareInsert(user)
	applied := false
	err := r.tx.Run(ctx, func(q Querier) error {
		if err := lockKeys(ctx, q, userLockPrefix, user.ExternalID); err != nil {
			return err
		}
		var tomb time.Time
		err := q.QueryRow(ctx, `SELECT deleted_at FROM user_tombstones WHERE external_id = $1 FOR UPDATE`, user.ExternalID).Scan(&tomb)
		switch {
		case err == nil:
			if !user.UpdatedAt.After(tomb) {
				return nil
			}
		case !errors.Is(err, pgx.ErrNoRows):
			return storeErr("read tombstone", err)
		}

		stored, err := scanUser(q.QueryRow(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (external_id) DO UPDATE
			SET name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
			    role = EXCLUDED.role,
			    locations = EXCLUDED.locations,
			    updated_at = EXCLUDED.updated_at
			WHERE users.updated_at <= EXCLUDED.updated_at
			RETURNING `+userColumns,
			user.ID, user.ExternalID, user.Name, user.Role.String(), user.Locations.Int64s(), user.CreatedAt, user.UpdatedAt,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return storeErr("upsert user", err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM user_tombstones WHERE external_id = $1`, user.ExternalID); err != nil {
			return storeErr("clear tombstone", err)
		}
		*user = *stored
		applied = true
		return nil
	})
	return applied, err
}

// DeleteByExternalID borra la fila y registra la baja con la fecha más reciente.
func (r *UserRepo) DeleteByExternalID(ctx context.Context, externalID string, at time.Time) (bool, error) {
	existed := false
	err := r.tx.Run(ctx, func(q Querier) error {
		if err := lockKeys(ctx, q, userLockPrefix, externalID); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO user_tombstones (external_id, deleted_at) VALUES ($1, $2)
			ON CONFLICT (external_id) DO UPDATE
			SET deleted_at = GREATEST(user_tombstones.deleted_at, EXCLUDED.deleted_at)`,
			externalID, at,
		); err != nil {
			return storeErr("write tombstone", err)
		}
		tag, err := q.Exec(ctx, `DELETE FROM users WHERE external_id = $1`, externalID)
		if err != nil {
			return storeErr("delete user", err)
		}
		existed = tag.RowsAffected() > 0
		return nil
	})
	return existed, err
}

func (r *UserRepo) ListExternalIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT external_id FROM users ORDER BY external_id`)
	if err != nil {
		return nil, storeErr("list external ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeErr("scan external ids", err)
	}
	return ids, nil
}

// userScope misma regla que la política users_select, evaluada con el actor de la sesión.
const userScope = `(external_id = $1 OR ($2::boolean AND app_unrestricted_read()))
	AND ($2::boolean OR $3 = '' OR external_id = $3)`

func (r *UserRepo) List(ctx context.Context, f repository.UserFilter, limit, offset int) ([]*entity.User, error) {
	var out []*entity.User
	err := r.tx.RunScoped(ctx, f.Actor, func(q Querier) error {
		rows, err := q.Query(ctx, `
			SELECT `+userColumns+` FROM users
			WHERE `+userScope+`
			ORDER BY created_at, external_id
			LIMIT NULLIF($4, 0) OFFSET $5`,
			f.Actor, f.All, f.OnlyExternalID, limit, offset,
		)
		if err != nil {
			return storeErr("list users", err)
		}
		out, err = collectUsers(rows)
		return storeErr("scan users", err)
	})
	return out, err
}

func (r *UserRepo) Get(ctx context.Context, f repository.UserFilter, externalID string) (*entity.User, error) {
	var out *entity.User
	err := r.tx.RunScoped(ctx, f.Actor, func(q Querier) error {
		u, err := scanUser(q.QueryRow(ctx, `
			SELECT `+userColumns+` FROM users
			WHERE external_id = $3 AND (external_id = $1 OR ($2::boolean AND app_unrestricted_read()))`,
			f.Actor, f.All, externalID,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return storeErr("get user", err)
		}
		out = u
		return nil
	})
	return out, err
}

// InsertSelf auto-registro bajo la política users_insert_self.
func (r *UserRepo) InsertSelf(ctx context.Context, actor string, user *entity.User) (bool, error) {
	if actor == "" || user.ExternalID != actor || user.Role != entity.DefaultRole || len(user.Locations) > 0 {
		return false, domain.ErrDenied
	}
	prepareInsert(user)
	created := false
	err := r.tx.RunScoped(ctx, actor, func(q Querier) error {
		tag, err := q.Exec(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (external_id) DO NOTHING`,
			user.ID, user.ExternalID, user.Name, user.Role.String(), []int64{}, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return storeErr("insert self", err)
		}
		created = tag.RowsAffected() > 0
		return nil
	})
	return created, err
}

// UpdateScoped un no-admin solo actualiza su fila y sin cambiar rol ni ubicaciones.
func (r *UserRepo) UpdateScoped(ctx context.Context, actor string, user *entity.User) (bool, error) {
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now().UTC()
	}
	locs := user.Locations.ForRole(user.Role)
	var updated *entity.User
	err := r.tx.RunScoped(ctx, actor, func(q Querier) error {
		u, err := scanUser(q.QueryRow(ctx, `
			UPDATE users
			SET name = COALESCE(NULLIF($3, ''), name), role = $4, locations = $5, updated_at = $6
			WHERE external_id = $2
			  AND (app_is_admin() OR (external_id = $1 AND role = $4 AND locations = $5))
			RETURNING `+userColumns,
			actor, user.ExternalID, user.Name, user.Role.String(), locs.Int64s(), user.UpdatedAt,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			if errors.Is(storeErr("", err), domain.ErrDenied) {
				return nil
			}
			return storeErr("update user scoped", err)
		}
		updated = u
		return nil
	})
	if err != nil || updated == nil {
		return false, err
	}
	*user = *updated
	return true, nil
}
