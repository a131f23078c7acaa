package observability

import (
	"context"
	"errors"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "formflow"

// Metrics holds the collectors fed by the wizard hooks.
type Metrics struct {
	Advances      *prometheus.CounterVec
	Blocked       *prometheus.CounterVec
	Submissions   *prometheus.CounterVec
	UniqueChecks  *prometheus.CounterVec
	CheckDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered by a previous call are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "section_enters_total",
			Help:      "Sections entered, by form and section.",
		}, []string{"form", "section"}),
		Blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "advances_blocked_total",
			Help:      "Advance or submit attempts refused by the progression gate.",
		}, []string{"form", "reason"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "submissions_total",
			Help:      "Submission attempts by result.",
		}, []string{"form", "result"}),
		UniqueChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "unique_checks_total",
			Help:      "Uniqueness checks by outcome. Discarded stale results count as stale.",
		}, []string{"form", "outcome"}),
		CheckDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "unique_check_duration_seconds",
			Help:      "Latency of uniqueness queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"form"}),
	}

	if reg != nil {
		m.Advances = register(reg, m.Advances)
		m.Blocked = register(reg, m.Blocked)
		m.Submissions = register(reg, m.Submissions)
		m.UniqueChecks = register(reg, m.UniqueChecks)
		m.CheckDuration = register(reg, m.CheckDuration)
	}
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSectionEnter: func(_ context.Context, e *domain.SectionEvent) {
			m.Advances.WithLabelValues(e.FormID, e.SectionID).Inc()
		},
		OnAdvanceBlock: func(_ context.Context, e *domain.SectionEvent) {
			m.Blocked.WithLabelValues(e.FormID, e.Reason).Inc()
		},
		OnUniqueCheck: func(_ context.Context, e *domain.UniqueCheckEvent) {
			m.UniqueChecks.WithLabelValues(e.FormID, e.Outcome).Inc()
			m.CheckDuration.WithLabelValues(e.FormID).Observe(e.Duration.Seconds())
		},
		OnSubmit: func(_ context.Context, e *domain.SubmitEvent) {
			result := string(e.Status)
			if e.Err != nil {
				result = "failed"
			}
			m.Submissions.WithLabelValues(e.FormID, result).Inc()
		},
	}
}
