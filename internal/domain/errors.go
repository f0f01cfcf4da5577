package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
)

// Taxonomía de fallos del núcleo de autorización y sincronización.
// Cada categoría se distingue con errors.Is para decidir rollback, reintento o código HTTP.
var (
	// ErrValidation entrada con forma o rango inválido (4xx, nunca se reintenta).
	ErrValidation = errors.New("validación fallida")
	// ErrDenied la política rechazó la operación. Nunca sale hacia el cliente como error:
	// los casos de uso lo traducen a cero filas.
	ErrDenied = errors.New("operación denegada por la política")
	// ErrUpstream el Identity Store o el feed rechazó la llamada o no respondió.
	ErrUpstream = errors.New("servicio externo rechazó la operación")
	// ErrTimeout la llamada externa superó el timeout. Siempre viaja junto a ErrUpstream.
	ErrTimeout = errors.New("timeout en servicio externo")
	// ErrLocalStore falló la escritura o lectura en la base de datos de la aplicación.
	ErrLocalStore = errors.New("error en el almacenamiento local")
	// ErrConsistency una escritura en dos almacenes quedó a medias; requiere reconciliación.
	ErrConsistency = errors.New("escritura parcial entre almacenes")
	// ErrSignature el webhook no trae cabeceras o la firma no verifica.
	ErrSignature = errors.New("firma de webhook inválida")
	// ErrNoRecords el feed no produjo ningún registro aceptable; no se borra nada.
	ErrNoRecords = errors.New("el feed no produjo registros válidos")
	// ErrDataLoss la inserción falló después de borrar el stock: ventana de pérdida de datos.
	ErrDataLoss = errors.New("inserción fallida después de borrar stock")
)
