package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resultados usados como etiqueta outcome.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomeRejected = "rejected"
	// OutcomeInvalid firma válida pero contenido inaplicable; se acusa recibo igual.
	OutcomeInvalid = "invalid"
)

// Metrics colectores de dominio: webhooks, gateway, refresh de stock, reconciliación y jobs.
// Un *Metrics nil es válido y no registra nada.
type Metrics struct {
	webhookEvents    *prometheus.CounterVec
	gatewayMutations *prometheus.CounterVec
	refreshRuns      *prometheus.CounterVec
	refreshRows      *prometheus.CounterVec
	reconcileRepairs *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
}

// New registra los colectores en el registerer indicado.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_webhook_events_total",
			Help: "Eventos de identidad recibidos por tipo y resultado.",
		}, []string{"type", "outcome"}),
		gatewayMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_gateway_mutations_total",
			Help: "Mutaciones privilegiadas por acción y resultado.",
		}, []string{"action", "outcome"}),
		refreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_refresh_runs_total",
			Help: "Corridas del refresh de stock por clase y resultado.",
		}, []string{"class", "outcome"}),
		refreshRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_refresh_rows_total",
			Help: "Filas procesadas por el refresh de stock.",
		}, []string{"class", "kind"}),
		reconcileRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_reconcile_repairs_total",
			Help: "Reparaciones aplicadas por la reconciliación del directorio.",
		}, []string{"kind"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Duración de jobs programados en segundos.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job", "outcome"}),
	}
	reg.MustRegister(m.webhookEvents, m.gatewayMutations, m.refreshRuns, m.refreshRows, m.reconcileRepairs, m.jobDuration)
	return m
}

func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(label(eventType), outcome).Inc()
}

func (m *Metrics) GatewayMutation(action, outcome string) {
	if m == nil || m.gatewayMutations == nil {
		return
	}
	m.gatewayMutations.WithLabelValues(label(action), outcome).Inc()
}

func (m *Metrics) RefreshRun(class, outcome string) {
	if m == nil || m.refreshRuns == nil {
		return
	}
	m.refreshRuns.WithLabelValues(label(class), outcome).Inc()
}

// RefreshRows kind: fetched, accepted, skipped, deleted, inserted.
func (m *Metrics) RefreshRows(class, kind string, n int64) {
	if m == nil || m.refreshRows == nil || n <= 0 {
		return
	}
	m.refreshRows.WithLabelValues(label(class), kind).Add(float64(n))
}

// ReconcileRepair kind: created, updated, orphan_deleted.
func (m *Metrics) ReconcileRepair(kind string, n int) {
	if m == nil || m.reconcileRepairs == nil || n <= 0 {
		return
	}
	m.reconcileRepairs.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) JobDuration(job, outcome string, d time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(label(job), outcome).Observe(d.Seconds())
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
