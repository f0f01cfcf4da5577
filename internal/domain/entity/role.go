package entity

import (
	"fmt"
	"strings"
)

// Role rol de aplicación. Conjunto cerrado: cualquier otro valor se rechaza en el borde.
type Role string

// Roles válidos para User.
const (
	RoleAdmin           Role = "admin"
	RoleExecutive       Role = "executive"
	RoleSalesManager    Role = "sales_manager"
	RoleSalesSupervisor Role = "sales_supervisor"
	RoleAuditor         Role = "auditor_role"
	RoleUnprivileged    Role = "user"
)

// DefaultRole rol con el que se crea un usuario que se auto-registra.
const DefaultRole = RoleUnprivileged

// AllRoles lista los roles en orden de privilegio descendente.
var AllRoles = []Role{
	RoleAdmin,
	RoleExecutive,
	RoleAuditor,
	RoleSalesManager,
	RoleSalesSupervisor,
	RoleUnprivileged,
}

// ParseRole valida y normaliza un rol recibido desde fuera (request, metadata del Identity Store).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r.Valid() {
		return r, nil
	}
	return "", fmt.Errorf("rol desconocido %q", s)
}

// Valid indica si el rol pertenece al conjunto cerrado.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsAdmin rol administrativo: único con escritura sobre Location, Stock y roles ajenos.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// UnrestrictedRead roles que leen todas las filas (admin, executive, auditor).
func (r Role) UnrestrictedRead() bool {
	switch r {
	case RoleAdmin, RoleExecutive, RoleAuditor:
		return true
	}
	return false
}

// LocationScoped roles cuya visibilidad se limita a sus ubicaciones asignadas y activas.
func (r Role) LocationScoped() bool {
	return r == RoleSalesManager || r == RoleSalesSupervisor
}

func (r Role) String() string { return string(r) }
