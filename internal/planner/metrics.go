package planner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the planner's Prometheus metrics.
type Metrics struct {
	ConversionsTotal   *prometheus.CounterVec
	ConversionDuration *prometheus.HistogramVec
	RuleApplications   *prometheus.CounterVec
	RuleFailures       *prometheus.CounterVec
}

// NewMetrics creates the planner metrics and registers them on reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polystore_planner_conversions_total",
				Help: "Total number of planning calls",
			},
			[]string{"target", "result"},
		),

		ConversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polystore_planner_conversion_duration_seconds",
				Help:    "Duration of planning calls",
				Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
			},
			[]string{"target"},
		),

		RuleApplications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polystore_planner_rule_applications_total",
				Help: "Total number of rule applications",
			},
			[]string{"rule"},
		),

		RuleFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polystore_planner_rule_failures_total",
				Help: "Total number of rule applications that returned an error",
			},
			[]string{"rule"},
		),
	}
}

// RecordConversion records the outcome of one planning call.
func (m *Metrics) RecordConversion(target, result string, seconds float64) {
	m.ConversionsTotal.WithLabelValues(target, result).Inc()
	m.ConversionDuration.WithLabelValues(target).Observe(seconds)
}
