package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/Beras-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Beras-api/pkg/config"
	"github.com/jhoicas/Beras-api/pkg/logger"
)

func main() {
	cmd := flag.String("cmd", "up", "comando de migración: up|down|status|version|redo|reset")
	grant := flag.Bool("grant", true, "con -cmd=up, crear/otorgar DB_POLICY_ROLE al terminar")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, *cmd, flag.Args()...); err != nil {
		log.Error().Err(err).Str("cmd", *cmd).Msg("migración fallida")
		pool.Close()
		os.Exit(1)
	}
	if *cmd == "up" && *grant {
		if err := postgres.GrantPolicyRole(ctx, pool, cfg.DB.PolicyRole); err != nil {
			log.Error().Err(err).Str("role", cfg.DB.PolicyRole).Msg("rol de política")
			pool.Close()
			os.Exit(1)
		}
	}
	log.Info().Str("cmd", *cmd).Msg("migración completada")
}
