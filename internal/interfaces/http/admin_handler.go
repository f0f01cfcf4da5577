package http

import (
	"context"
	"fmt"
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/infrastructure/scheduler"
)

// AdminHandler disparos manuales de los jobs programados. Comparten el lock con el cron.
type AdminHandler struct {
	jobs       *scheduler.Scheduler
	refresher  scheduler.Refresher
	reconciler scheduler.Reconciler
}

// NewAdminHandler construye el handler. refresher o reconciler nil deshabilitan su ruta.
func NewAdminHandler(jobs *scheduler.Scheduler, refresher scheduler.Refresher, reconciler scheduler.Reconciler) *AdminHandler {
	return &AdminHandler{jobs: jobs, refresher: refresher, reconciler: reconciler}
}

// RefreshStock godoc
// @Summary      Refresh de stock de una clase
// @Tags         admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RefreshRequest  true  "Clase a refrescar"
// @Success      200   {object}  dto.RefreshResult
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/admin/stock/refresh [post]
func (h *AdminHandler) RefreshStock(c *fiber.Ctx) error {
	if h.refresher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "FEED_DISABLED", Message: "feed de stock no configurado"})
	}
	var in dto.RefreshRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, err)
	}
	if !slices.Contains(h.refresher.Classes(), in.Class) {
		return writeError(c, dto.NewValidationError("class", fmt.Sprintf("clase %q no configurada", in.Class)))
	}

	var res *dto.RefreshResult
	err := h.jobs.Trigger(c.Context(), scheduler.RefreshJobName(in.Class), func(ctx context.Context) error {
		var err error
		res, err = h.refresher.Run(ctx, in.Class)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// Reconcile godoc
// @Summary      Reconciliación del directorio con el Identity Store
// @Tags         admin
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.ReconcileResult
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/admin/reconcile [post]
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	if h.reconciler == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "RECONCILE_DISABLED", Message: "reconciliación no configurada"})
	}
	var res *dto.ReconcileResult
	err := h.jobs.Trigger(c.Context(), h.reconciler.Name(), func(ctx context.Context) error {
		var err error
		res, err = h.reconciler.Run(ctx)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}
