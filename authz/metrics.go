package authz

import (
	"time"

	"github.com/edportal/portal-iam/permission"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the resolver's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	decisions *prometheus.CounterVec
	cache     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal_iam",
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Point permission decisions by result and provenance.",
		}, []string{"result", "source"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal_iam",
			Subsystem: "authz",
			Name:      "cache_requests_total",
			Help:      "Rule snapshot cache lookups by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal_iam",
			Subsystem: "authz",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving permissions.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"op"}),
	}
	reg.MustRegister(m.decisions, m.cache, m.duration)
	return m
}

func (m *Metrics) observeDecision(d permission.Decision) {
	if m == nil {
		return
	}
	result := "deny"
	if d.Allowed {
		result = "allow"
	}
	m.decisions.WithLabelValues(result, string(d.Source)).Inc()
}

func (m *Metrics) observeCache(outcome string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeDuration(op string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
