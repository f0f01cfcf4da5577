package scheduler

import (
	"context"

	"github.com/jhoicas/Beras-api/internal/application/dto"
)

// Refresher Stock Refresh Worker visto desde el scheduler.
type Refresher interface {
	Classes() []string
	Run(ctx context.Context, class string) (*dto.RefreshResult, error)
}

// Reconciler job de reconciliación del directorio.
type Reconciler interface {
	Name() string
	Run(ctx context.Context) (*dto.ReconcileResult, error)
}

// RefreshJobName nombre del job (y del lock) de refresh para una clase.
func RefreshJobName(class string) string { return "stock-refresh:" + class }

// AddRefresh programa un job por clase configurada con la misma expresión.
func (s *Scheduler) AddRefresh(spec string, r Refresher) error {
	for _, class := range r.Classes() {
		class := class
		if err := s.Add(spec, RefreshJobName(class), func(ctx context.Context) error {
			_, err := r.Run(ctx, class)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddReconcile programa la reconciliación del directorio.
func (s *Scheduler) AddReconcile(spec string, r Reconciler) error {
	return s.Add(spec, r.Name(), func(ctx context.Context) error {
		_, err := r.Run(ctx)
		return err
	})
}
