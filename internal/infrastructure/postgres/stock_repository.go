package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL.
type StockRepo struct {
	tx *TxRunner
}

var stockCopyColumns = []string{
	"location_id", "location_name", "product_id", "product_name", "uom_id", "uom_name",
	"category_id", "category_name", "weight", "quantity_on_hand", "product_type", "updated_at",
}

const stockColumns = `id, location_id, location_name, product_id, product_name, uom_id, uom_name,
	category_id, category_name, weight, quantity_on_hand, product_type, updated_at`

func scanStock(row pgx.Row) (*entity.StockRecord, error) {
	var s entity.StockRecord
	err := row.Scan(&s.ID, &s.LocationID, &s.LocationName, &s.ProductID, &s.ProductName, &s.UOMID, &s.UOMName,
		&s.CategoryID, &s.CategoryName, &s.Weight, &s.QuantityOnHand, &s.ProductType, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// stockScope misma regla que stock_select, intersectada con las ubicaciones pedidas.
const stockScope = `($1 = '' OR s.product_type = $1)
	AND (
		($2::boolean AND app_unrestricted_read())
		OR (
			EXISTS (
				SELECT 1 FROM locations l
				WHERE l.id = ANY($3) AND l.is_active
				  AND l.name = s.location_name
				  AND l.name = ANY(app_location_names())
			)
			AND EXISTS (SELECT 1 FROM locations ref WHERE ref.id = s.location_id AND ref.is_active)
		)
	)`

func (r *StockRepo) List(ctx context.Context, f repository.StockFilter) ([]*entity.StockRecord, error) {
	ids := f.LocationIDs
	if ids == nil {
		ids = []int64{}
	}
	out := make([]*entity.StockRecord, 0)
	err := r.tx.RunScoped(ctx, f.Actor, func(q Querier) error {
		rows, err := q.Query(ctx, `
			SELECT `+stockColumns+` FROM stock s
			WHERE `+stockScope+`
			ORDER BY s.id
			LIMIT NULLIF($4, 0) OFFSET $5`,
			f.ProductType, f.AllLocations, ids, f.Limit, f.Offset)
		if err != nil {
			return storeErr("list stock", err)
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanStock(rows)
			if err != nil {
				return storeErr("scan stock", err)
			}
			out = append(out, rec)
		}
		return storeErr("iterate stock", rows.Err())
	})
	return out, err
}

// Insert alta manual de una fila; solo admin.
func (r *StockRepo) Insert(ctx context.Context, actor string, rec *entity.StockRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	return r.tx.RunScoped(ctx, actor, func(q Querier) error {
		if err := requireAdmin(ctx, q); err != nil {
			return err
		}
		err := q.QueryRow(ctx, `
			INSERT INTO stock (location_id, location_name, product_id, product_name, uom_id, uom_name,
				category_id, category_name, weight, quantity_on_hand, product_type, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`,
			rec.LocationID, rec.LocationName, rec.ProductID, rec.ProductName, rec.UOMID, rec.UOMName,
			rec.CategoryID, rec.CategoryName, rec.Weight, rec.QuantityOnHand, rec.ProductType, rec.UpdatedAt,
		).Scan(&rec.ID)
		return storeErr("insert stock", err)
	})
}

func (r *StockRepo) Delete(ctx context.Context, actor string, id int64) (bool, error) {
	deleted := false
	err := r.tx.RunScoped(ctx, actor, func(q Querier) error {
		tag, err := q.Exec(ctx, `DELETE FROM stock WHERE id = $1 AND app_is_admin()`, id)
		if err != nil {
			return storeErr("delete stock", err)
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	return deleted, err
}

// ReplaceByProductTypes DELETE + COPY en la misma transacción. Un lock por product_type
// serializa refrescos concurrentes de la misma clase entre instancias.
func (r *StockRepo) ReplaceByProductTypes(ctx context.Context, productTypes []string, rows []*entity.StockRecord) (deleted, inserted int64, err error) {
	err = r.tx.Run(ctx, func(q Querier) error {
		if err := lockKeys(ctx, q, stockLockPrefix, productTypes...); err != nil {
			return err
		}
		var err error
		if deleted, err = deleteByTypes(ctx, q, productTypes); err != nil {
			return err
		}
		inserted, err = copyStock(ctx, q, rows)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, inserted, nil
}

const stockLockPrefix = "stock:"

func (r *StockRepo) DeleteByProductTypes(ctx context.Context, productTypes []string) (n int64, err error) {
	err = r.tx.Run(ctx, func(q Querier) error {
		if err := lockKeys(ctx, q, stockLockPrefix, productTypes...); err != nil {
			return err
		}
		n, err = deleteByTypes(ctx, q, productTypes)
		return err
	})
	return n, err
}

func (r *StockRepo) InsertBatch(ctx context.Context, rows []*entity.StockRecord) (n int64, err error) {
	types := make([]string, 0, len(rows))
	for _, s := range rows {
		types = append(types, s.ProductType)
	}
	err = r.tx.Run(ctx, func(q Querier) error {
		if err := lockKeys(ctx, q, stockLockPrefix, types...); err != nil {
			return err
		}
		n, err = copyStock(ctx, q, rows)
		return err
	})
	return n, err
}

func deleteByTypes(ctx context.Context, q Querier, productTypes []string) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM stock WHERE product_type = ANY($1)`, productTypes)
	if err != nil {
		return 0, storeErr("delete stock by product_type", err)
	}
	return tag.RowsAffected(), nil
}

func copyStock(ctx context.Context, q Querier, rows []*entity.StockRecord) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := q.CopyFrom(ctx, pgx.Identifier{"stock"}, stockCopyColumns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		s := rows[i]
		updated := s.UpdatedAt
		if updated.IsZero() {
			updated = time.Now().UTC()
		}
		return []any{
			s.LocationID, s.LocationName, s.ProductID, s.ProductName, s.UOMID, s.UOMName,
			s.CategoryID, s.CategoryName, s.Weight, s.QuantityOnHand, s.ProductType, updated,
		}, nil
	}))
	if err != nil {
		return n, storeErr("copy stock", err)
	}
	return n, nil
}
