package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/Beras-api/internal/domain"
)

const (
	codeUniqueViolation       = "23505"
	codeInsufficientPrivilege = "42501"
	codeCheckViolation        = "23514"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// isPolicyViolation WITH CHECK de una política RLS o falta de permisos (42501).
func isPolicyViolation(err error) bool {
	return pgCode(err) == codeInsufficientPrivilege
}

// storeErr clasifica un error de PostgreSQL en la taxonomía de dominio.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
	case isPolicyViolation(err):
		return fmt.Errorf("%s: %w", op, domain.ErrDenied)
	case pgCode(err) == codeCheckViolation:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrValidation, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrLocalStore, err)
	}
}

// advisoryKeys claves de lock ordenadas y sin duplicados: dos transacciones que toman
// conjuntos solapados los adquieren en el mismo orden.
func advisoryKeys(prefix string, keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, prefix+k)
	}
	sort.Strings(out)
	return out
}

// lockKeys toma pg_advisory_xact_lock por clave; se liberan al terminar la transacción.
func lockKeys(ctx context.Context, q Querier, prefix string, keys ...string) error {
	for _, k := range advisoryKeys(prefix, keys) {
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, k); err != nil {
			return storeErr("advisory lock "+k, err)
		}
	}
	return nil
}
