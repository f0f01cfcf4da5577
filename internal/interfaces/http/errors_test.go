package http

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"

	"github.com/jhoicas/Beras-api/internal/application/dto"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/internal/infrastructure/scheduler"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validación", dto.NewValidationError("role", "inválido"), 400, "VALIDATION"},
		{"firma", fmt.Errorf("%w: sin cabeceras", domain.ErrSignature), 400, "INVALID_SIGNATURE"},
		{"timeout gana a upstream", fmt.Errorf("%w: %w", domain.ErrUpstream, domain.ErrTimeout), 504, "UPSTREAM_TIMEOUT"},
		{"upstream", fmt.Errorf("%w: HTTP 422", domain.ErrUpstream), 502, "UPSTREAM_ERROR"},
		{"identidad inexistente", fmt.Errorf("%w: %w", domain.ErrUpstream, domain.ErrNotFound), 404, "IDENTITY_NOT_FOUND"},
		{"consistencia gana a store", fmt.Errorf("%w: %w", domain.ErrConsistency, domain.ErrLocalStore), 500, "CONSISTENCY_ERROR"},
		{"pérdida de datos", fmt.Errorf("%w: %w", domain.ErrDataLoss, domain.ErrLocalStore), 500, "DATA_LOSS_WINDOW"},
		{"sin registros", domain.ErrNoRecords, 409, "NO_RECORDS"},
		{"job en curso", scheduler.ErrJobRunning, 409, "JOB_RUNNING"},
		{"store", fmt.Errorf("%w: conexión cerrada", domain.ErrLocalStore), 500, "STORE_ERROR"},
		{"agregado", multierr.Combine(errors.New("x"), fmt.Errorf("%w: 500", domain.ErrUpstream)), 502, "UPSTREAM_ERROR"},
		{"desconocido", errors.New("boom"), 500, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := classify(tt.err)
			assert.Equal(t, tt.status, he.status)
			assert.Equal(t, tt.code, he.code)
		})
	}
}
