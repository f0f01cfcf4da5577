package entity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MaxMetadataBytes límite práctico de la metadata pública del Identity Store
// (viaja embebida en los tokens de sesión).
const MaxMetadataBytes = 8 * 1024

// IdentityMetadata blob {role, locations} que el Identity Store guarda por identidad.
type IdentityMetadata struct {
	Role      Role        `json:"role"`
	Locations LocationSet `json:"locations"`
}

// Normalize aplica el invariante de ubicaciones por rol.
func (m IdentityMetadata) Normalize() IdentityMetadata {
	return IdentityMetadata{Role: m.Role, Locations: m.Locations.ForRole(m.Role)}
}

// Encode serializa la metadata validando el tope de tamaño.
func (m IdentityMetadata) Encode() ([]byte, error) {
	raw, err := json.Marshal(m.Normalize())
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxMetadataBytes {
		return nil, fmt.Errorf("metadata excede %d bytes", MaxMetadataBytes)
	}
	return raw, nil
}

// Identity principal autenticado que vive en el Identity Store.
type Identity struct {
	ID       string
	Username string
	Metadata IdentityMetadata
	// UpdatedAt reloj del proveedor; cero si la respuesta no lo trae.
	UpdatedAt time.Time
}

// Stamp marca de tiempo para escrituras locales derivadas de esta identidad: la del
// proveedor si existe, fallback si no. Así last-write-wins compara con los eventos
// del webhook sobre el mismo reloj.
func (i *Identity) Stamp(fallback time.Time) time.Time {
	if i == nil || i.UpdatedAt.IsZero() {
		return fallback
	}
	return i.UpdatedAt.UTC()
}

type rawMetadata struct {
	Role      string          `json:"role"`
	Locations json.RawMessage `json:"locations"`
}

// DecodeMetadata interpreta la metadata pública sin fallar: lo que no se entiende cae
// a DefaultRole sin ubicaciones y se describe en issue (vacío si todo era válido).
func DecodeMetadata(raw []byte) (meta IdentityMetadata, issue string) {
	meta = IdentityMetadata{Role: DefaultRole, Locations: LocationSet{}}
	if len(raw) == 0 || string(raw) == "null" {
		return meta, ""
	}
	if len(raw) > MaxMetadataBytes {
		return meta, "metadata excede el tamaño máximo"
	}
	var m rawMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return meta, "metadata no es un objeto"
	}
	var issues []string
	if strings.TrimSpace(m.Role) != "" {
		parsed, err := ParseRole(m.Role)
		if err != nil {
			issues = append(issues, err.Error())
		} else {
			meta.Role = parsed
		}
	}
	if len(m.Locations) > 0 {
		var locs LocationSet
		if err := json.Unmarshal(m.Locations, &locs); err != nil {
			issues = append(issues, err.Error())
		} else {
			meta.Locations = locs
		}
	}
	return meta.Normalize(), strings.Join(issues, "; ")
}
