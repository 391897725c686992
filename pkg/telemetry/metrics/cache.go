package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks rule cache performance.
//
// Metrics:
//   - veristat_cache_hits_total: cache hits by cache name
//   - veristat_cache_misses_total: cache misses by cache name
//   - veristat_cache_entries: current number of entries by cache name
type CacheMetrics struct {
	hitsTotal   *prometheus.CounterVec
	missesTotal *prometheus.CounterVec
	entries     *prometheus.GaugeVec
}

// NewCacheMetrics creates and registers cache metrics with the provided
// registry.
func NewCacheMetrics(namespace, subsystem string, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),

		missesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),

		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_entries",
				Help:      "Current number of entries in cache",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(cm.hitsTotal, cm.missesTotal, cm.entries)

	return cm
}

// RecordHit records a cache hit for the named cache.
func (cm *CacheMetrics) RecordHit(cache string) {
	if cm == nil {
		return
	}
	cm.hitsTotal.WithLabelValues(cache).Inc()
}

// RecordMiss records a cache miss for the named cache.
func (cm *CacheMetrics) RecordMiss(cache string) {
	if cm == nil {
		return
	}
	cm.missesTotal.WithLabelValues(cache).Inc()
}

// SetEntries records the current entry count for the named cache.
func (cm *CacheMetrics) SetEntries(cache string, n int) {
	if cm == nil {
		return
	}
	cm.entries.WithLabelValues(cache).Set(float64(n))
}
