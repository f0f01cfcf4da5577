package dto

import "time"

// RoleOneOf lista de roles válidos para la etiqueta validate:"oneof".
const RoleOneOf = "admin executive sales_manager sales_supervisor auditor_role user"

// RegisterRequest auto-registro del llamador autenticado (siempre con el rol por defecto).
type RegisterRequest struct {
	Name string `json:"name" validate:"omitempty,max=200"`
}

// UpdateUserRequest PATCH /api/users/:external_id. Campos nil no se tocan.
type UpdateUserRequest struct {
	Name      *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Role      *string  `json:"role" validate:"omitempty,oneof=admin executive sales_manager sales_supervisor auditor_role user"`
	Locations *[]int64 `json:"locations"`
}

// LocationRef ubicación resuelta para mostrar; las inactivas llevan el sufijo " (Inactive)".
type LocationRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Display  string `json:"display"`
	IsActive bool   `json:"is_active"`
}

// UserResponse salida de un usuario del directorio.
type UserResponse struct {
	ID              string        `json:"id"`
	ExternalID      string        `json:"external_id"`
	Name            string        `json:"name"`
	Role            string        `json:"role"`
	Locations       []int64       `json:"locations"`
	LocationDetails []LocationRef `json:"location_details,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// UserListResponse lista paginada de usuarios.
type UserListResponse struct {
	Items []UserResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}
