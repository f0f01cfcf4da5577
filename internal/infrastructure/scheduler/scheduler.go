// Package scheduler ejecuta los jobs programados (refresh de stock y reconciliación)
// con robfig/cron, lock entre instancias y métricas de duración.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jhoicas/Beras-api/internal/application/ports"
	"github.com/jhoicas/Beras-api/internal/domain"
	"github.com/jhoicas/Beras-api/pkg/logger"
	"github.com/jhoicas/Beras-api/pkg/metrics"
)

// JobFunc unidad de trabajo programable.
type JobFunc func(ctx context.Context) error

// Parser acepta expresiones de 5 campos o de 6 con segundos al inicio.
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler envoltorio de cron.Cron.
type Scheduler struct {
	cron    *cron.Cron
	lock    ports.JobLock
	log     *logger.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	names  map[string]cron.EntryID

	// running un mutex por nombre de job: excluye corridas solapadas dentro del proceso
	// aunque no haya lock distribuido.
	running sync.Map
}

// New construye el scheduler. lock nil = sin exclusión entre instancias; dentro del
// proceso un mismo job nunca corre dos veces a la vez.
func New(lock ports.JobLock, log *logger.Logger, m *metrics.Metrics) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Component("scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
		lock:    lock,
		log:     log,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		names:   make(map[string]cron.EntryID),
	}
}

// Add registra un job bajo un nombre único.
func (s *Scheduler) Add(spec, name string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; ok {
		return fmt.Errorf("job %q ya registrado", name)
	}
	id, err := s.cron.AddFunc(spec, func() { _ = s.RunNow(s.ctx, name, fn) })
	if err != nil {
		return fmt.Errorf("job %q: expresión %q: %w", name, spec, err)
	}
	s.names[name] = id
	s.log.Info().Str("job", name).Str("schedule", spec).Msg("job programado")
	return nil
}

// Jobs nombres registrados.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	return out
}

// ErrJobRunning el lock del job lo tiene otra corrida.
var ErrJobRunning = errors.New("scheduler: el job ya está en ejecución")

// RunNow ejecuta fn con el lock del job y registra duración y resultado.
// Si otra instancia tiene el lock la corrida se omite sin error.
func (s *Scheduler) RunNow(ctx context.Context, name string, fn JobFunc) error {
	_, err := s.run(ctx, name, fn)
	return err
}

// Trigger igual que RunNow pero informa la corrida omitida con ErrJobRunning
// (disparos manuales desde la API).
func (s *Scheduler) Trigger(ctx context.Context, name string, fn JobFunc) error {
	ran, err := s.run(ctx, name, fn)
	if err == nil && !ran {
		return ErrJobRunning
	}
	return err
}

func (s *Scheduler) run(ctx context.Context, name string, fn JobFunc) (bool, error) {
	v, _ := s.running.LoadOrStore(name, &sync.Mutex{})
	local := v.(*sync.Mutex)
	if !local.TryLock() {
		s.log.Info().Str("job", name).Msg("job en curso en esta instancia; corrida omitida")
		s.metrics.JobDuration(name, metrics.OutcomeSkipped, 0)
		return false, nil
	}
	defer local.Unlock()

	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx, name)
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("no se pudo tomar el lock")
			s.metrics.JobDuration(name, metrics.OutcomeFailed, 0)
			return false, err
		}
		if !ok {
			s.log.Info().Str("job", name).Msg("lock tomado por otra instancia; corrida omitida")
			s.metrics.JobDuration(name, metrics.OutcomeSkipped, 0)
			return false, nil
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), name); err != nil {
				s.log.Warn().Err(err).Str("job", name).Msg("no se pudo liberar el lock")
			}
		}()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoRecords):
		outcome = metrics.OutcomeSkipped
	default:
		outcome = metrics.OutcomeFailed
	}
	s.metrics.JobDuration(name, outcome, elapsed)
	s.log.Debug().Str("job", name).Str("outcome", outcome).Dur("elapsed", elapsed).Msg("job terminado")
	return true, err
}

// Start arranca el cron en segundo plano.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop detiene el cron, cancela los jobs en curso y espera a que terminen o a ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapta logger.Logger a cron.Logger.
type cronLogger struct{ log *logger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
