package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/Beras-api/internal/application/access"
	"github.com/jhoicas/Beras-api/internal/application/gateway"
	"github.com/jhoicas/Beras-api/internal/application/identitysync"
	"github.com/jhoicas/Beras-api/internal/application/ports"
	"github.com/jhoicas/Beras-api/internal/application/reconcile"
	"github.com/jhoicas/Beras-api/internal/application/stockrefresh"
	"github.com/jhoicas/Beras-api/internal/application/usecase"
	"github.com/jhoicas/Beras-api/internal/domain/repository"
	"github.com/jhoicas/Beras-api/internal/infrastructure/feed"
	"github.com/jhoicas/Beras-api/internal/infrastructure/identity"
	"github.com/jhoicas/Beras-api/internal/infrastructure/memstore"
	"github.com/jhoicas/Beras-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Beras-api/internal/infrastructure/redisstore"
	"github.com/jhoicas/Beras-api/internal/infrastructure/scheduler"
	httpRouter "github.com/jhoicas/Beras-api/internal/interfaces/http"
	"github.com/jhoicas/Beras-api/pkg/config"
	"github.com/jhoicas/Beras-api/pkg/logger"
	"github.com/jhoicas/Beras-api/pkg/metrics"
	"github.com/jhoicas/Beras-api/pkg/webhooksig"
)

// repos puertos de almacenamiento según DB_DRIVER.
type repos struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	stock     repository.StockRepository
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("db_driver", cfg.DB.Driver).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}

	ctx := context.Background()
	m := metrics.New(prometheus.DefaultRegisterer)

	store := openStore(ctx, cfg, log)
	defer store.close()

	// Identity Store: proveedor real con clave secreta; si falta, modo local en memoria.
	var identities ports.IdentityStore
	remoteIdentity := cfg.Identity.SecretKey != ""
	if remoteIdentity {
		identities = identity.NewClient(cfg.Identity.APIURL, cfg.Identity.SecretKey, cfg.Identity.Timeout)
	} else {
		log.Warn().Msg("IDENTITY_SECRET_KEY vacío: Identity Store en memoria (solo desarrollo)")
		identities = identity.NewMemory()
	}

	// Redis opcional: idempotencia de webhooks y lock de jobs entre instancias.
	var (
		guard ports.IdempotencyGuard
		lock  ports.JobLock
	)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redisstore.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis no disponible; se continúa sin guard de idempotencia ni lock")
		} else {
			defer rdb.Close()
			if g, err := redisstore.NewIdempotencyGuard(rdb, "webhook", cfg.Redis.IdempotencyTTL); err == nil {
				guard = g
			}
			if l, err := redisstore.NewJobLock(rdb, cfg.Jobs.LockTTL); err == nil {
				lock = l
			}
		}
	}

	engine := access.NewEngine(store.users)
	gw := gateway.New(identities, store.users, store.locations, log, m)
	userUC := usecase.NewUserUseCase(engine, store.users, store.locations, gw)
	locationUC := usecase.NewLocationUseCase(engine, store.locations)
	stockUC := usecase.NewStockUseCase(engine, store.stock, store.locations)

	var synchronizer *identitysync.Synchronizer
	if verifier, err := webhooksig.NewVerifier(cfg.Identity.WebhookSecret); err != nil {
		log.Warn().Err(err).Msg("webhook de identidades deshabilitado")
	} else {
		synchronizer = identitysync.NewSynchronizer(store.users, verifier, guard, log, m)
	}

	var refresher scheduler.Refresher
	if cfg.Feed.URL != "" {
		refresher = stockrefresh.New(
			feed.NewClient(cfg.Feed.URL, cfg.Feed.Token, cfg.Feed.Timeout),
			store.locations, store.stock,
			stockrefresh.Options{Classes: cfg.Feed.Classes, Atomic: cfg.Feed.AtomicReplace},
			log, m,
		)
	} else {
		log.Warn().Msg("FEED_URL vacío: refresh de stock deshabilitado")
	}

	// Con el Identity Store en memoria el listado está vacío y la reconciliación
	// borraría todo el directorio como huérfano.
	var reconciler scheduler.Reconciler
	if remoteIdentity {
		reconciler = reconcile.New(identities, store.users, 0, log, m)
	}

	jobs := scheduler.New(lock, log, m)
	if cfg.Jobs.Enabled {
		if refresher != nil {
			if err := jobs.AddRefresh(cfg.Jobs.RefreshSchedule, refresher); err != nil {
				log.Fatal().Err(err).Msg("programar refresh de stock")
			}
		}
		if reconciler != nil {
			if err := jobs.AddReconcile(cfg.Jobs.ReconcileSchedule, reconciler); err != nil {
				log.Fatal().Err(err).Msg("programar reconciliación")
			}
		}
		jobs.Start()
		log.Info().Strs("jobs", jobs.Jobs()).Msg("scheduler iniciado")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 60,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: httpRouter.ErrorHandler,
	})
	app.Use(recover.New())

	prom := fiberprometheus.New(cfg.App.Name)
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat("./docs/swagger.json"); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: "./docs/swagger.json",
			Path:     "docs",
			Title:    "Beras Dashboard API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Engine:       engine,
		UserUC:       userUC,
		LocationUC:   locationUC,
		StockUC:      stockUC,
		Synchronizer: synchronizer,
		Gateway:      gw,
		Jobs:         jobs,
		Refresher:    refresher,
		Reconciler:   reconciler,
		JWTSecret:    cfg.JWT.Secret,
		JWTIssuer:    cfg.JWT.Issuer,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("jobs en curso no terminaron a tiempo")
	}

	log.Info().Msg("aplicación detenida")
}

// openStore abre PostgreSQL (migra y prepara el rol de política) o el almacén en memoria.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) repos {
	if cfg.DB.Driver == "memory" {
		log.Warn().Msg("DB_DRIVER=memory: los datos se pierden al reiniciar")
		st := memstore.New()
		return repos{users: st.Users(), locations: st.Locations(), stock: st.Stock(), close: func() {}}
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	if err := postgres.Migrate(ctx, pool, "up"); err != nil {
		pool.Close()
		log.Fatal().Err(err).Msg("migraciones")
	}
	if err := postgres.GrantPolicyRole(ctx, pool, cfg.DB.PolicyRole); err != nil {
		pool.Close()
		log.Fatal().Err(err).Msg("rol de política")
	}
	st := postgres.NewStore(pool, cfg.DB.PolicyRole)
	return repos{users: st.Users(), locations: st.Locations(), stock: st.Stock(), close: pool.Close}
}
