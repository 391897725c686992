package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ResolutionMetrics tracks rule resolution outcomes.
//
// Metrics:
//   - veristat_rule_resolutions_total: resolutions by category, instrument and outcome
//   - veristat_rule_fallbacks_total: base-rule fallbacks by category, instrument and reason
//   - veristat_rule_resolution_duration_seconds: resolution duration
type ResolutionMetrics struct {
	resolutionsTotal   *prometheus.CounterVec
	fallbacksTotal     *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
}

// NewResolutionMetrics creates and registers resolution metrics with the
// provided registry.
func NewResolutionMetrics(namespace, subsystem string, registry *prometheus.Registry) *ResolutionMetrics {
	rm := &ResolutionMetrics{
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_resolutions_total",
				Help:      "Total number of rule resolutions",
			},
			[]string{"category", "instrument", "outcome"},
		),

		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_fallbacks_total",
				Help:      "Total number of variant resolutions that fell back to base rules",
			},
			[]string{"category", "instrument", "reason"},
		),

		resolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_resolution_duration_seconds",
				Help:      "Duration of rule resolution in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
			[]string{"category", "instrument"},
		),
	}

	registry.MustRegister(
		rm.resolutionsTotal,
		rm.fallbacksTotal,
		rm.resolutionDuration,
	)

	return rm
}

// RecordResolution records a completed resolution.
// Outcome is one of "base", "variant", "fallback" or "error".
func (rm *ResolutionMetrics) RecordResolution(category, instrument, outcome string, duration time.Duration) {
	if rm == nil {
		return
	}
	rm.resolutionsTotal.WithLabelValues(category, instrument, outcome).Inc()
	rm.resolutionDuration.WithLabelValues(category, instrument).Observe(duration.Seconds())
}

// RecordFallback records a variant resolution that degraded to base rules.
// Reason is one of "missing_field", "empty_value", "unmapped_value" or
// "variant_not_found".
func (rm *ResolutionMetrics) RecordFallback(category, instrument, reason string) {
	if rm == nil {
		return
	}
	rm.fallbacksTotal.WithLabelValues(category, instrument, reason).Inc()
}
