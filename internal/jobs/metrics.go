// Package jobmetrics holds the worker's Prometheus collectors.
package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts task runs handled by the worker. A nil *Metrics records
// nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rolesWarmed prometheus.Counter
}

// NewMetrics registers the worker collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playbooks_worker_task_runs_total",
			Help: "Worker task runs by task type and outcome.",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "playbooks_worker_task_seconds",
			Help:    "Worker task duration by task type.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"task"}),
		rolesWarmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playbooks_worker_roles_warmed_total",
			Help: "Roles written to the shared role cache.",
		}),
	}
	registerer.MustRegister(m.runs, m.duration, m.rolesWarmed)
	return m
}

// Observe records one finished run of task that started at started.
func (m *Metrics) Observe(task string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(task, outcome).Inc()
	m.duration.WithLabelValues(task).Observe(time.Since(started).Seconds())
}

// RolesWarmed counts roles copied into the shared cache.
func (m *Metrics) RolesWarmed(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.rolesWarmed.Add(float64(count))
}
