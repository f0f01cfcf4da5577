package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store agrupa los repositorios sobre un mismo pool y runner de transacciones.
type Store struct {
	pool   *pgxpool.Pool
	runner *TxRunner
}

// NewStore policyRole es el rol sin BYPASSRLS de las transacciones acotadas; es obligatorio.
func NewStore(pool *pgxpool.Pool, policyRole string) *Store {
	return &Store{pool: pool, runner: NewTxRunner(pool, policyRole)}
}

// Users repositorio del directorio de usuarios.
func (s *Store) Users() *UserRepo { return &UserRepo{pool: s.pool, tx: s.runner} }

// Locations repositorio de ubicaciones.
func (s *Store) Locations() *LocationRepo { return &LocationRepo{pool: s.pool, tx: s.runner} }

// Stock repositorio de stock.
func (s *Store) Stock() *StockRepo { return &StockRepo{tx: s.runner} }
