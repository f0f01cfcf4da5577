package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// FeedRecord registro crudo del feed de inventario. LocationName es la etiqueta del feed:
// no se usa para persistir, el nombre se re-deriva de Location.
type FeedRecord struct {
	LocationID     int64           `json:"location_id"`
	LocationName   string          `json:"location_name"`
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name"`
	UOMID          int64           `json:"uom_id"`
	UOMName        string          `json:"uom_name"`
	CategoryID     int64           `json:"category_id"`
	CategoryName   string          `json:"category_name"`
	Weight         decimal.Decimal `json:"weight"`
	QuantityOnHand decimal.Decimal `json:"quantity"`
	ProductType    string          `json:"product_type"`
}

// StockFeed fuente externa autoritativa del stock.
// Respuesta no-2xx o con forma inválida = error con domain.ErrUpstream.
type StockFeed interface {
	Fetch(ctx context.Context, productTypes []string) ([]FeedRecord, error)
}
