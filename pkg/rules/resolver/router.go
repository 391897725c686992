package resolver

import (
	"log/slog"
	"sync"

	"meridian-hq/veristat/pkg/rules/ast"
	"meridian-hq/veristat/pkg/rules/store"
	"meridian-hq/veristat/pkg/telemetry/metrics"
)

// baseKey is the flat cache key for base rule sets.
type baseKey struct {
	category   string
	instrument string
}

// baseEntry caches either a loaded rule set or the load error. Failed loads
// are cached too, so a batch with many records against a missing rule file
// stats the disk once, not once per record.
type baseEntry struct {
	rules *ast.RuleSet
	err   error
}

// CacheStats is a snapshot of one cache's bookkeeping counters.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// CategoryRuleRouter resolves the base rule set for a (category, instrument)
// pair, caching results in a flat map. Load failures are surfaced unchanged;
// no default rule set is ever substituted for a missing file.
type CategoryRuleRouter struct {
	store  *store.Store
	logger *slog.Logger
	cache  *metrics.CacheMetrics

	mu      sync.RWMutex
	entries map[baseKey]*baseEntry
	hits    uint64
	misses  uint64
}

// NewCategoryRuleRouter creates a router over the given store. The metrics
// collector may be nil.
func NewCategoryRuleRouter(st *store.Store, logger *slog.Logger, cache *metrics.CacheMetrics) *CategoryRuleRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryRuleRouter{
		store:   st,
		logger:  logger.With("component", "rules.router"),
		cache:   cache,
		entries: make(map[baseKey]*baseEntry),
	}
}

// BaseRules returns the base rule set for (category, instrument), loading it
// through the store on first use. Concurrent callers for the same key race
// only on the first resolution; the load happens under the write lock, so
// exactly one caller performs the disk read.
func (r *CategoryRuleRouter) BaseRules(category, instrument string) (*ast.RuleSet, error) {
	key := baseKey{category: category, instrument: instrument}

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()

	if ok {
		r.recordHit()
		return entry.rules, entry.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock; another goroutine may have loaded it.
	if entry, ok := r.entries[key]; ok {
		r.hits++
		r.cache.RecordHit("base")
		return entry.rules, entry.err
	}

	r.misses++
	r.cache.RecordMiss("base")

	rules, err := r.store.Load(category, instrument, "")
	if err != nil {
		r.logger.Error("base rule load failed",
			"category", category,
			"instrument", instrument,
			"error", err,
		)
	}
	r.entries[key] = &baseEntry{rules: rules, err: err}
	r.cache.SetEntries("base", len(r.entries))

	return rules, err
}

// CacheStats returns a snapshot of the flat cache counters.
func (r *CategoryRuleRouter) CacheStats() CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return CacheStats{
		Entries: len(r.entries),
		Hits:    r.hits,
		Misses:  r.misses,
	}
}

// ClearCache drops all cached entries, including cached failures. Counters
// are preserved.
func (r *CategoryRuleRouter) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[baseKey]*baseEntry)
	r.cache.SetEntries("base", 0)
}

func (r *CategoryRuleRouter) recordHit() {
	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
	r.cache.RecordHit("base")
}
