package dto

import "time"

// CreateLocationRequest entrada para crear una ubicación.
type CreateLocationRequest struct {
	ID           int64  `json:"id" validate:"omitempty,gt=0"`
	Name         string `json:"name" validate:"required,min=1,max=120"`
	DisplayValue string `json:"display_value" validate:"omitempty,max=200"`
}

// UpdateLocationRequest entrada para renombrar una ubicación o cambiar su estado.
type UpdateLocationRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=120"`
	DisplayValue *string `json:"display_value" validate:"omitempty,max=200"`
	IsActive     *bool   `json:"is_active"`
}

// LocationResponse salida de una ubicación.
type LocationResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DisplayValue string    `json:"display_value"`
	Display      string    `json:"display"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LocationListResponse lista de ubicaciones visibles.
type LocationListResponse struct {
	Items []LocationResponse `json:"items"`
}
