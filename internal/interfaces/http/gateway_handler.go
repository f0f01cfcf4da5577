package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/application/gateway"
)

// GatewayHandler endpoint único de mutaciones privilegiadas {Identity, User}.
// Solo se monta detrás de RequireRole(admin); la clave del Identity Store nunca sale del servidor.
type GatewayHandler struct {
	gw *gateway.Gateway
}

// NewGatewayHandler construye el handler.
func NewGatewayHandler(gw *gateway.Gateway) *GatewayHandler {
	return &GatewayHandler{gw: gw}
}

// Dispatch godoc
// @Summary      Mutación privilegiada de usuarios
// @Description  action: create-user (201), update-user (200), delete-user (200).
// @Tags         admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.GatewayEnvelope  true  "Acción y campos"
// @Success      201   {object}  dto.UserResponse
// @Success      200   {object}  dto.UserResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Failure      504   {object}  dto.ErrorResponse
// @Router       /api/admin/users [post]
func (h *GatewayHandler) Dispatch(c *fiber.Ctx) error {
	var env dto.GatewayEnvelope
	if err := c.BodyParser(&env); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(env); err != nil {
		return writeError(c, err)
	}

	switch env.Action {
	case dto.ActionCreateUser:
		var in dto.GatewayCreateUserRequest
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		out, err := h.gw.CreateUser(c.Context(), in)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(out)

	case dto.ActionUpdateUser:
		var in dto.GatewayUpdateUserRequest
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		out, err := h.gw.UpdateUser(c.Context(), in)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(out)

	default:
		var in dto.GatewayDeleteUserRequest
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		out, err := h.gw.DeleteUser(c.Context(), in)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(out)
	}
}
