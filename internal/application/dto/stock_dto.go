package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockQuery filtros de GET /api/stock.
type StockQuery struct {
	ProductType string `query:"product_type" validate:"omitempty,max=64"`
	PageRequest
}

// CreateStockRequest alta manual de una fila de stock (solo admin).
type CreateStockRequest struct {
	LocationID     int64           `json:"location_id" validate:"required,gt=0"`
	ProductID      int64           `json:"product_id" validate:"required,gt=0"`
	ProductName    string          `json:"product_name" validate:"required,max=200"`
	UOMID          int64           `json:"uom_id" validate:"omitempty,gt=0"`
	UOMName        string          `json:"uom_name" validate:"omitempty,max=64"`
	CategoryID     int64           `json:"category_id" validate:"omitempty,gt=0"`
	CategoryName   string          `json:"category_name" validate:"omitempty,max=120"`
	Weight         decimal.Decimal `json:"weight"`
	QuantityOnHand decimal.Decimal `json:"quantity_on_hand"`
	ProductType    string          `json:"product_type" validate:"required,max=64"`
}

// StockResponse salida de una fila de stock.
type StockResponse struct {
	ID             int64           `json:"id"`
	LocationID     int64           `json:"location_id"`
	LocationName   string          `json:"location_name"`
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name"`
	UOMID          int64           `json:"uom_id"`
	UOMName        string          `json:"uom_name"`
	CategoryID     int64           `json:"category_id"`
	CategoryName   string          `json:"category_name"`
	Weight         decimal.Decimal `json:"weight"`
	QuantityOnHand decimal.Decimal `json:"quantity_on_hand"`
	ProductType    string          `json:"product_type"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// StockListResponse lista paginada de stock visible.
type StockListResponse struct {
	Items []StockResponse `json:"items"`
	Page  PageResponse    `json:"page"`
}
