package repository

// Los filtros de lectura/escritura los construye el motor de políticas (access.Engine)
// y los aplica el almacenamiento. Actor es siempre el external_id verificado del
// llamador: el adaptador de PostgreSQL lo fija en la sesión para que las políticas
// RLS evalúen la misma regla dentro de la base de datos.

// UserFilter filas de users visibles para el llamador.
type UserFilter struct {
	Actor string
	// All todas las filas (roles de lectura irrestricta). Si es false solo la fila OnlyExternalID.
	All            bool
	OnlyExternalID string
}

// LocationFilter filas de locations visibles.
type LocationFilter struct {
	Actor           string
	IncludeInactive bool
}

// StockFilter filas de stock visibles.
type StockFilter struct {
	Actor string
	// AllLocations sin restricción de ubicación. Si es false solo filas cuyo location_name
	// pertenece a las ubicaciones ACTIVAS de LocationIDs y cuya ubicación referenciada está activa.
	AllLocations bool
	LocationIDs  []int64
	ProductType  string
	Limit        int
	Offset       int
}
