package repository

import (
	"context"

	"github.com/jhoicas/Beras-api/internal/domain/entity"
)

// StockRepository define el puerto para consultar y reemplazar el stock publicado por el feed.
type StockRepository interface {
	List(ctx context.Context, f StockFilter) ([]*entity.StockRecord, error)
	Insert(ctx context.Context, actor string, rec *entity.StockRecord) error
	Delete(ctx context.Context, actor string, id int64) (bool, error)

	// ReplaceByProductTypes borra e inserta dentro de una sola transacción:
	// los lectores nunca ven el intermedio vacío.
	ReplaceByProductTypes(ctx context.Context, productTypes []string, rows []*entity.StockRecord) (deleted, inserted int64, err error)
	// DeleteByProductTypes e InsertBatch son el camino no transaccional del refresh.
	DeleteByProductTypes(ctx context.Context, productTypes []string) (int64, error)
	InsertBatch(ctx context.Context, rows []*entity.StockRecord) (int64, error)
}
