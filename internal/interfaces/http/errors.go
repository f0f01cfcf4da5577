package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/infrastructure/scheduler"
)

// httpError código HTTP y código de error para un fallo clasificado.
type httpError struct {
	status int
	code   string
}

// classify traduce la taxonomía de dominio. El orden importa: un timeout también es
// upstream y una ventana de pérdida también es un fallo de almacenamiento.
func classify(err error) httpError {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput):
		return httpError{fiber.StatusBadRequest, "VALIDATION"}
	case errors.Is(err, domain.ErrSignature):
		return httpError{fiber.StatusBadRequest, "INVALID_SIGNATURE"}
	case errors.Is(err, domain.ErrUnauthorized):
		return httpError{fiber.StatusUnauthorized, "UNAUTHORIZED"}
	case errors.Is(err, domain.ErrDenied):
		return httpError{fiber.StatusForbidden, "FORBIDDEN"}
	case errors.Is(err, domain.ErrConsistency):
		return httpError{fiber.StatusInternalServerError, "CONSISTENCY_ERROR"}
	case errors.Is(err, domain.ErrDataLoss):
		return httpError{fiber.StatusInternalServerError, "DATA_LOSS_WINDOW"}
	case errors.Is(err, domain.ErrNoRecords):
		return httpError{fiber.StatusConflict, "NO_RECORDS"}
	case errors.Is(err, scheduler.ErrJobRunning):
		return httpError{fiber.StatusConflict, "JOB_RUNNING"}
	case errors.Is(err, domain.ErrTimeout):
		return httpError{fiber.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"}
	case errors.Is(err, domain.ErrUpstream) && errors.Is(err, domain.ErrNotFound):
		return httpError{fiber.StatusNotFound, "IDENTITY_NOT_FOUND"}
	case errors.Is(err, domain.ErrUpstream):
		return httpError{fiber.StatusBadGateway, "UPSTREAM_ERROR"}
	case errors.Is(err, domain.ErrDuplicate):
		return httpError{fiber.StatusConflict, "DUPLICATE"}
	case errors.Is(err, domain.ErrNotFound):
		return httpError{fiber.StatusNotFound, "NOT_FOUND"}
	case errors.Is(err, domain.ErrLocalStore):
		return httpError{fiber.StatusInternalServerError, "STORE_ERROR"}
	}
	return httpError{fiber.StatusInternalServerError, "INTERNAL"}
}

func writeError(c *fiber.Ctx, err error) error {
	he := classify(err)
	return c.Status(he.status).JSON(dto.ErrorResponse{
		Code:    he.code,
		Message: err.Error(),
		Details: dto.ValidationDetails(err),
	})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: msg})
}

// ErrorHandler manejador de último recurso para errores que escapan de los handlers.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(dto.ErrorResponse{Code: "HTTP_ERROR", Message: fe.Message})
	}
	return writeError(c, err)
}
