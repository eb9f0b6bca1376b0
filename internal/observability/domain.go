package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics groups collectors for permission and timeline decisions.
// A nil *DomainMetrics is valid and records nothing.
type DomainMetrics struct {
	decisions      *prometheus.CounterVec
	roleLoads      *prometheus.CounterVec
	eventsDropped  prometheus.Counter
	assembleTiming prometheus.Histogram
}

// NewDomainMetrics registers the domain collectors against registerer.
func NewDomainMetrics(registerer prometheus.Registerer) *DomainMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &DomainMetrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playbooks_permission_decisions_total",
			Help: "Permission decisions by capability and outcome.",
		}, []string{"capability", "outcome"}),
		roleLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playbooks_role_loads_total",
			Help: "Roles loaded into the process cache by source.",
		}, []string{"source"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playbooks_timeline_events_dropped_total",
			Help: "Timeline events dropped because their subject user could not be fetched.",
		}),
		assembleTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "playbooks_timeline_assemble_seconds",
			Help:    "Duration of timeline assembly passes.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	registerer.MustRegister(m.decisions, m.roleLoads, m.eventsDropped, m.assembleTiming)
	return m
}

// Decision records one permission decision.
func (m *DomainMetrics) Decision(capability string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.decisions.WithLabelValues(capability, outcome).Inc()
}

// RolesLoaded counts roles loaded from source ("cache", "db") or requested
// but not found ("miss").
func (m *DomainMetrics) RolesLoaded(source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.roleLoads.WithLabelValues(source).Add(float64(count))
}

// EventsDropped counts timeline events excluded from a result.
func (m *DomainMetrics) EventsDropped(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.eventsDropped.Add(float64(count))
}

// ObserveAssemble records how long an assembly pass took.
func (m *DomainMetrics) ObserveAssemble(start time.Time) {
	if m == nil {
		return
	}
	m.assembleTiming.Observe(time.Since(start).Seconds())
}
