// Package metrics exposes reconciliation run results as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
)

const namespace = "abg"

// Metrics owns a private registry so tests and multiple instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastRunTimestamp prometheus.Gauge
	pastDueTotal     prometheus.Counter
	resourceGroups   prometheus.Gauge
	budgets          *prometheus.GaugeVec
	creationsTotal   *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Reconciliation runs by terminal status",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Reconciliation run duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_finished_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		pastDueTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "past_due_total",
			Help:      "Runs that started after their scheduled time",
		}),
		resourceGroups: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_groups",
			Help:      "Tagged resource groups seen by the last successful run",
		}),
		budgets: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budgets",
			Help:      "Budgets by state in the last successful run",
		}, []string{"state"}),
		creationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "creations_total",
			Help:      "Budget creation attempts by result",
		}, []string{"result"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "total",
			Help:      "Owner notifications by channel and result",
		}, []string{"channel", "result"}),
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(s *model.RunSummary) {
	m.runsTotal.WithLabelValues(string(s.Status)).Inc()
	m.runDuration.Observe(s.Duration().Seconds())
	if !s.FinishedAt.IsZero() {
		m.lastRunTimestamp.Set(float64(s.FinishedAt.Unix()))
	}
	if s.PastDue {
		m.pastDueTotal.Inc()
	}
	if s.Status != model.RunSucceeded {
		return
	}

	m.resourceGroups.Set(float64(s.ResourceGroups))
	m.budgets.WithLabelValues("existing").Set(float64(s.ExistingBudgets))
	m.budgets.WithLabelValues("exceeding").Set(float64(s.Exceeding))
	m.budgets.WithLabelValues("skipped").Set(float64(s.SkippedScopes))

	if s.DryRun {
		return
	}
	m.creationsTotal.WithLabelValues("created").Add(float64(s.CreatedBudgets))
	m.creationsTotal.WithLabelValues("failed").Add(float64(s.FailedCreations))

	for _, n := range s.Notifications {
		m.notifications.WithLabelValues("direct", result(n.DirectSent)).Inc()
		m.notifications.WithLabelValues("broadcast", result(n.BroadcastSent)).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(sent bool) string {
	if sent {
		return "sent"
	}
	return "skipped"
}
