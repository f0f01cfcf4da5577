package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Beras-api/internal/application/access"
	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/domain/entity"
	"github.com/jhoicas/Beras-api/pkg/jwt"
)

// Locals keys para la identidad verificada y el principal resuelto.
const (
	LocalExternalID = "external_id"
	LocalPrincipal  = "principal"
)

// AuthMiddleware valida el Bearer Token del Identity Store y deja el subject
// (ID externo) en c.Locals. La metadata del token no se usa para autorizar.
func AuthMiddleware(jwtSecret, issuer string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		subject, err := jwt.Parse(jwtSecret, issuer, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalExternalID, subject)
		return c.Next()
	}
}

// PrincipalMiddleware resuelve rol y ubicaciones del llamador contra el directorio.
// Debe usarse DESPUÉS de AuthMiddleware. Un llamador sin fila sigue con el rol por defecto.
func PrincipalMiddleware(engine *access.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := engine.Resolve(c.Context(), GetExternalID(c))
		if err != nil {
			return writeError(c, err)
		}
		c.Locals(LocalPrincipal, p)
		return c.Next()
	}
}

// RequireRole exige un principal registrado con alguno de los roles indicados.
func RequireRole(roles ...entity.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := GetPrincipal(c)
		if p == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "principal no resuelto"})
		}
		if p.Registered {
			for _, r := range roles {
				if p.Role == r {
					return c.Next()
				}
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "rol sin permiso para esta operación"})
	}
}

// GetExternalID devuelve el ID externo del contexto (después del middleware de auth).
func GetExternalID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalExternalID).(string)
	return s
}

// GetPrincipal devuelve el principal resuelto, o nil.
func GetPrincipal(c *fiber.Ctx) *access.Principal {
	p, _ := c.Locals(LocalPrincipal).(*access.Principal)
	return p
}
