package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilCollectorsAreNoOps(t *testing.T) {
	// Collectors are optional everywhere; nil receivers must not panic.
	var rm *ResolutionMetrics
	rm.RecordResolution("initial", "sleep", "base", time.Millisecond)
	rm.RecordFallback("initial", "sleep", "missing_field")

	var cm *CacheMetrics
	cm.RecordHit("base")
	cm.RecordMiss("base")
	cm.SetEntries("base", 3)

	var vm *ValidationMetrics
	vm.RecordValidation("initial", "sleep", time.Millisecond)
	vm.RecordViolations("initial", "sleep", "field", 2)
	vm.RecordViolations("initial", "sleep", "field", 0)
}

func TestCollectorsRegister(t *testing.T) {
	registry := prometheus.NewRegistry()

	rm := NewResolutionMetrics("veristat", "", registry)
	cm := NewCacheMetrics("veristat", "", registry)
	vm := NewValidationMetrics("veristat", "", registry)

	rm.RecordResolution("initial", "sleep", "variant", 50*time.Microsecond)
	rm.RecordFallback("initial", "sleep", "unmapped_value")
	cm.RecordHit("resolved")
	cm.RecordMiss("resolved")
	cm.SetEntries("resolved", 2)
	vm.RecordValidation("initial", "sleep", time.Millisecond)
	vm.RecordViolations("initial", "sleep", "compatibility", 1)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"veristat_rule_resolutions_total",
		"veristat_rule_fallbacks_total",
		"veristat_cache_hits_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered (have %v)", want, names)
		}
	}
}
