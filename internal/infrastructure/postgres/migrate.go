package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrate ejecuta un comando goose (up, down, status, version, redo, reset) con las
// migraciones embebidas.
func Migrate(ctx context.Context, pool *pgxpool.Pool, command string, args ...string) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, migrationsDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// GrantPolicyRole crea (si falta) el rol sin BYPASSRLS usado por las transacciones
// acotadas y le otorga acceso a las tablas. El rol de conexión debe poder asumirlo.
func GrantPolicyRole(ctx context.Context, pool *pgxpool.Pool, role string) error {
	if role == "" {
		return fmt.Errorf("grant policy role: rol vacío")
	}
	ident := pgx.Identifier{role}.Sanitize()
	stmts := []string{
		fmt.Sprintf(`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = %s) THEN
				CREATE ROLE %s NOLOGIN NOBYPASSRLS;
			END IF;
		END $$`, quoteLiteral(role), ident),
		fmt.Sprintf(`GRANT %s TO CURRENT_USER`, ident),
		fmt.Sprintf(`GRANT SELECT, INSERT, UPDATE, DELETE ON users, locations, stock TO %s`, ident),
		fmt.Sprintf(`GRANT USAGE, SELECT, UPDATE ON ALL SEQUENCES IN SCHEMA public TO %s`, ident),
		fmt.Sprintf(`GRANT EXECUTE ON FUNCTION app_current_user(), app_is_admin(), app_unrestricted_read(), app_location_names() TO %s`, ident),
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("grant policy role %s: %w", role, err)
		}
	}
	return nil
}

func quoteLiteral(s string) string {
	out := []byte{'\''}
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
