package dto

// Acciones aceptadas por el gateway de mutaciones privilegiadas.
const (
	ActionCreateUser = "create-user"
	ActionUpdateUser = "update-user"
	ActionDeleteUser = "delete-user"
)

// GatewayEnvelope primer paso del parseo: solo la acción.
type GatewayEnvelope struct {
	Action string `json:"action" validate:"required,oneof=create-user update-user delete-user"`
}

// GatewayCreateUserRequest crea Identity + User.
type GatewayCreateUserRequest struct {
	Username  string  `json:"username" validate:"required,min=3,max=64"`
	Password  string  `json:"password" validate:"required,min=8,max=128"`
	Name      string  `json:"name" validate:"omitempty,max=200"`
	Role      string  `json:"role" validate:"required,oneof=admin executive sales_manager sales_supervisor auditor_role user"`
	Locations []int64 `json:"locations" validate:"omitempty,dive,gt=0"`
}

// GatewayUpdateUserRequest requiere external_id y al menos role o locations.
type GatewayUpdateUserRequest struct {
	ExternalID string   `json:"external_id" validate:"required,max=128"`
	Name       *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Role       *string  `json:"role" validate:"omitempty,oneof=admin executive sales_manager sales_supervisor auditor_role user"`
	Locations  *[]int64 `json:"locations"`
}

// GatewayDeleteUserRequest borra Identity y luego User.
type GatewayDeleteUserRequest struct {
	ExternalID string `json:"external_id" validate:"required,max=128"`
}

// GatewayDeleteResponse resultado del borrado; OrphanRetained indica que la fila local
// quedó pendiente de limpieza por la reconciliación.
type GatewayDeleteResponse struct {
	ExternalID     string `json:"external_id"`
	Deleted        bool   `json:"deleted"`
	OrphanRetained bool   `json:"orphan_retained,omitempty"`
}
