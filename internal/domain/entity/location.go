package entity

import "time"

// InactiveSuffix se agrega al nombre de ubicaciones desactivadas al mostrarlas.
const InactiveSuffix = " (Inactive)"

// Location depósito o sucursal. Nunca se borra físicamente: se desactiva con IsActive=false
// para que las referencias desde User.Locations y Stock sigan resolviendo.
type Location struct {
	ID           int64
	Name         string
	DisplayValue string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName nombre para mostrar; las inactivas llevan el sufijo " (Inactive)".
func (l Location) DisplayName() string {
	label := l.DisplayValue
	if label == "" {
		label = l.Name
	}
	if !l.IsActive {
		return label + InactiveSuffix
	}
	return label
}
