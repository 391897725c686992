package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ValidationMetrics tracks record validation throughput and outcomes.
//
// Metrics:
//   - veristat_records_validated_total: validated records by category and instrument
//   - veristat_violations_total: emitted violations by category, instrument and kind
//   - veristat_validation_duration_seconds: per-record validation duration
type ValidationMetrics struct {
	recordsTotal       *prometheus.CounterVec
	violationsTotal    *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
}

// NewValidationMetrics creates and registers validation metrics with the
// provided registry.
func NewValidationMetrics(namespace, subsystem string, registry *prometheus.Registry) *ValidationMetrics {
	vm := &ValidationMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "records_validated_total",
				Help:      "Total number of records validated",
			},
			[]string{"category", "instrument"},
		),

		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "violations_total",
				Help:      "Total number of validation violations emitted",
			},
			[]string{"category", "instrument", "kind"},
		),

		validationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "validation_duration_seconds",
				Help:      "Duration of per-record validation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to 160ms
			},
			[]string{"category", "instrument"},
		),
	}

	registry.MustRegister(vm.recordsTotal, vm.violationsTotal, vm.validationDuration)

	return vm
}

// RecordValidation records one validated record.
func (vm *ValidationMetrics) RecordValidation(category, instrument string, duration time.Duration) {
	if vm == nil {
		return
	}
	vm.recordsTotal.WithLabelValues(category, instrument).Inc()
	vm.validationDuration.WithLabelValues(category, instrument).Observe(duration.Seconds())
}

// RecordViolations records emitted violations.
// Kind is "field" for field-level checks or "compatibility" for conditional
// rule violations.
func (vm *ValidationMetrics) RecordViolations(category, instrument, kind string, n int) {
	if vm == nil || n == 0 {
		return
	}
	vm.violationsTotal.WithLabelValues(category, instrument, kind).Add(float64(n))
}
