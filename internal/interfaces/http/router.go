package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/jhoicas/Beras-api/internal/application/access"
	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/application/gateway"
	"github.com/jhoicas/Beras-api/internal/application/identitysync"
	"github.com/jhoicas/Beras-api/internal/application/usecase"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/internal/infrastructure/scheduler"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine       *access.Engine
	UserUC       *usecase.UserUseCase
	LocationUC   *usecase.LocationUseCase
	StockUC      *usecase.StockUseCase
	Synchronizer *identitysync.Synchronizer // nil = webhook deshabilitado
	Gateway      *gateway.Gateway
	Jobs         *scheduler.Scheduler
	Refresher    scheduler.Refresher
	Reconciler   scheduler.Reconciler
	JWTSecret    string
	JWTIssuer    string
	// RegisterLimit auto-registros por identidad y minuto; 0 usa 5.
	RegisterLimit int
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Webhook (público; autenticado por firma). Se registra antes del grupo protegido,
	// que monta su middleware sobre todo /api.
	if deps.Synchronizer != nil {
		webhookHandler := NewWebhookHandler(deps.Synchronizer)
		api.Post("/webhooks/identity", webhookHandler.Receive)
	}

	// Rutas protegidas (Bearer Token + principal resuelto contra el directorio)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer), PrincipalMiddleware(deps.Engine))

	// Users
	users := protected.Group("/users")
	userHandler := NewUserHandler(deps.UserUC)
	users.Get("/me", userHandler.Me)
	users.Post("/register", registerLimiter(deps.RegisterLimit), userHandler.Register)
	users.Get("/", userHandler.List)
	users.Get("/:external_id", userHandler.GetByExternalID)
	users.Patch("/:external_id", userHandler.Update)

	// Locations
	locations := protected.Group("/locations")
	locationHandler := NewLocationHandler(deps.LocationUC)
	locations.Get("/", locationHandler.List)
	locations.Post("/", locationHandler.Create)
	locations.Get("/:id", locationHandler.GetByID)
	locations.Put("/:id", locationHandler.Update)
	locations.Delete("/:id", locationHandler.Deactivate)

	// Stock
	stock := protected.Group("/stock")
	stockHandler := NewStockHandler(deps.StockUC)
	stock.Get("/", stockHandler.List)
	stock.Post("/", stockHandler.Create)
	stock.Delete("/:id", stockHandler.Delete)

	// Admin: gateway de mutaciones privilegiadas y disparos manuales de jobs
	admin := protected.Group("/admin", RequireRole(entity.RoleAdmin))
	if deps.Gateway != nil {
		gatewayHandler := NewGatewayHandler(deps.Gateway)
		admin.Post("/users", gatewayHandler.Dispatch)
	}
	if deps.Jobs != nil {
		adminHandler := NewAdminHandler(deps.Jobs, deps.Refresher, deps.Reconciler)
		admin.Post("/stock/refresh", adminHandler.RefreshStock)
		admin.Post("/reconcile", adminHandler.Reconcile)
	}
}

// registerLimiter limita el auto-registro por identidad para frenar el sondeo con tokens robados.
func registerLimiter(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		perMinute = 5
	}
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := GetExternalID(c); id != "" {
				return id
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Code: "RATE_LIMITED", Message: "demasiados intentos de registro"})
		},
	})
}
