package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/application/usecase"
)

// StockHandler lectura de stock filtrada por ubicación y altas/bajas manuales de admin.
type StockHandler struct {
	uc *usecase.StockUseCase
}

// NewStockHandler construye el handler.
func NewStockHandler(uc *usecase.StockUseCase) *StockHandler {
	return &StockHandler{uc: uc}
}

// List godoc
// @Summary      Listar stock visible
// @Description  Roles sin acceso o sin ubicaciones reciben una lista vacía.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_type  query  string  false  "Tipo de producto"
// @Param        limit         query  int     false  "Límite"  default(20)
// @Param        offset        query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.StockListResponse
// @Router       /api/stock [get]
func (h *StockHandler) List(c *fiber.Ctx) error {
	q := dto.StockQuery{ProductType: c.Query("product_type"), PageRequest: pageFromQuery(c)}
	out, err := h.uc.List(c.Context(), GetPrincipal(c), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Create godoc
// @Summary      Alta manual de stock
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateStockRequest  true  "Fila de stock"
// @Success      201   {object}  dto.StockResponse
// @Success      200   {object}  dto.AffectedResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/stock [post]
func (h *StockHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateStockRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.Create(c.Context(), GetPrincipal(c), in)
	if err != nil {
		return writeError(c, err)
	}
	if out == nil {
		return c.JSON(dto.AffectedResponse{})
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Delete godoc
// @Summary      Borrar fila de stock
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID de la fila"
// @Success      200  {object}  dto.AffectedResponse
// @Router       /api/stock/{id} [delete]
func (h *StockHandler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id numérico requerido"})
	}
	out, err := h.uc.Delete(c.Context(), GetPrincipal(c), int64(id))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
