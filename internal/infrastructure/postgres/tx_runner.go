package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Beras-api/internal/domain"
)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
//
// RunScoped fija app.external_id y cambia al rol sin BYPASSRLS solo para la transacción:
// las políticas RLS evalúan al llamador real y el valor no se filtra a otras
// transacciones que reutilicen la conexión del pool.
type TxRunner struct {
	pool       *pgxpool.Pool
	policyRole string
}

// NewTxRunner construye el runner. Sin policyRole RunScoped rechaza toda transacción.
func NewTxRunner(pool *pgxpool.Pool, policyRole string) *TxRunner {
	return &TxRunner{pool: pool, policyRole: policyRole}
}

// Run transacción de contexto de servicio (sin política de filas).
func (r *TxRunner) Run(ctx context.Context, fn func(q Querier) error) error {
	return r.run(ctx, func(tx pgx.Tx) error { return fn(tx) })
}

// RunScoped transacción acotada por la política del actor.
func (r *TxRunner) RunScoped(ctx context.Context, actor string, fn func(q Querier) error) error {
	if r.policyRole == "" {
		return fmt.Errorf("%w: transacción acotada sin rol de política", domain.ErrLocalStore)
	}
	return r.run(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('app.external_id', $1, true)`, actor); err != nil {
			return fmt.Errorf("fijar actor: %w", err)
		}
		if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+pgx.Identifier{r.policyRole}.Sanitize()); err != nil {
			return fmt.Errorf("cambiar a rol de política: %w", err)
		}
		return fn(tx)
	})
}

func (r *TxRunner) run(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
