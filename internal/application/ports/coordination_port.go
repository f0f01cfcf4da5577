package ports

import "context"

// IdempotencyGuard marca IDs de evento ya procesados (entrega at-least-once del webhook).
type IdempotencyGuard interface {
	// CheckAndMark true si el ID ya estaba marcado.
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	// Delete libera la marca cuando el procesamiento falló.
	Delete(ctx context.Context, eventID string) error
}

// JobLock exclusión entre instancias para jobs programados.
type JobLock interface {
	Acquire(ctx context.Context, job string) (bool, error)
	Release(ctx context.Context, job string) error
}
