package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReviewMetrics tracks the document review lifecycle.
type ReviewMetrics struct {
	created          *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	expired          prometheus.Counter
	analysisFailures prometheus.Counter
	notifyFailures   prometheus.Counter
	sessions         prometheus.Gauge
}

// NewReviewMetrics registers the review metrics on the provided registerer.
func NewReviewMetrics(reg prometheus.Registerer) *ReviewMetrics {
	if reg == nil {
		return &ReviewMetrics{}
	}
	m := &ReviewMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_created_total",
			Help:      "Documents accepted into a review session, by type.",
		}, []string{"type"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Review decisions, by outcome.",
		}, []string{"outcome"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_expired_total",
			Help:      "Decided documents swept out of the active set.",
		}),
		analysisFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_failures_total",
			Help:      "Analysis calls that failed or returned nothing.",
		}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be published.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Review sessions with an open workspace.",
		}),
	}
	reg.MustRegister(m.created, m.decisions, m.expired, m.analysisFailures, m.notifyFailures, m.sessions)
	return m
}

func (m *ReviewMetrics) IncCreated(docType string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(docType)).Inc()
}

func (m *ReviewMetrics) IncDecision(outcome string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *ReviewMetrics) AddExpired(n int) {
	if m == nil || m.expired == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *ReviewMetrics) IncAnalysisFailure() {
	if m == nil || m.analysisFailures == nil {
		return
	}
	m.analysisFailures.Inc()
}

func (m *ReviewMetrics) IncNotificationFailure() {
	if m == nil || m.notifyFailures == nil {
		return
	}
	m.notifyFailures.Inc()
}

func (m *ReviewMetrics) SetOpenSessions(n int) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Set(float64(n))
}
