package entity

import "time"

// User registro local de autorización que refleja el rol y las ubicaciones de una Identity.
// ExternalID es único: exactamente un User por Identity.
type User struct {
	ID         string
	ExternalID string
	Name       string
	Role       Role
	Locations  LocationSet
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserPatch cambios solicitados sobre un User. nil = no tocar el campo.
type UserPatch struct {
	Name      *string
	Role      *Role
	Locations *LocationSet
}

// Empty indica que el patch no cambia nada.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Role == nil && p.Locations == nil
}

// TouchesPrivileges indica si el patch cambia rol o ubicaciones respecto al estado actual.
func (p UserPatch) TouchesPrivileges(current *User) bool {
	if p.Role != nil && *p.Role != current.Role {
		return true
	}
	if p.Locations != nil && !p.Locations.Equal(current.Locations) {
		return true
	}
	return false
}

// Apply devuelve una copia del usuario con el patch aplicado y el invariante de ubicaciones.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Locations != nil {
		u.Locations = *p.Locations
	}
	u.Locations = u.Locations.ForRole(u.Role)
	return u
}

// Metadata proyecta el User al blob que guarda el Identity Store.
func (u User) Metadata() IdentityMetadata {
	return IdentityMetadata{Role: u.Role, Locations: u.Locations}.Normalize()
}
