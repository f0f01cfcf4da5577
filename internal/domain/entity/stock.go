package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord existencia de un producto en una ubicación, tal como la publica el feed.
// LocationName está desnormalizado y debe igualar Location.Name al momento de escribir.
// Las filas se reemplazan en bloque por product_type; nunca se parchean.
type StockRecord struct {
	ID             int64
	LocationID     int64
	LocationName   string
	ProductID      int64
	ProductName    string
	UOMID          int64
	UOMName        string
	CategoryID     int64
	CategoryName   string
	Weight         decimal.Decimal
	QuantityOnHand decimal.Decimal
	ProductType    string
	UpdatedAt      time.Time
}
