package resolver

import (
	"log/slog"
	"sync"
	"time"

	"meridian-hq/veristat/pkg/rules/ast"
	"meridian-hq/veristat/pkg/rules/store"
	"meridian-hq/veristat/pkg/telemetry/metrics"
)

// noDiscriminant is the cache-key sentinel for resolutions without a usable
// discriminant value (static instruments, missing or empty fields).
const noDiscriminant = "\x00none"

// resolvedKey is the hierarchical cache key. All three components
// participate so distinct categories or discriminant values never collide.
type resolvedKey struct {
	category     string
	instrument   string
	discriminant string
}

// ResolvedRuleSet is the final rule set applicable to one record's
// validation, annotated with how it was chosen. Immutable once produced;
// shared by every record that resolves to the same key.
type ResolvedRuleSet struct {
	// Category and Instrument identify the resolution.
	Category   string
	Instrument string

	// Discriminant is the canonical discriminant value, empty when none was
	// usable.
	Discriminant string

	// Variant is the variant rule file identifier, empty when the base rule
	// set was used.
	Variant string

	// FellBack reports that a dynamic instrument degraded to its base rules.
	FellBack bool

	// FallbackReason is one of the Reason* constants when FellBack.
	FallbackReason string

	// Rules is the merged rule set.
	Rules *ast.RuleSet
}

// Config contains configuration for the hierarchical resolver.
type Config struct {
	// WarnEveryFallback logs a fallback diagnostic for every record instead
	// of once per (category, instrument, reason). Off by default to avoid
	// log flooding on batches sharing an unmapped discriminant value.
	WarnEveryFallback bool
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// HierarchicalRuleResolver composes CategoryRuleRouter and VariantResolver
// into the single entry point for rule resolution. See the package comment
// for the fallback policy.
type HierarchicalRuleResolver struct {
	router   *CategoryRuleRouter
	variants *VariantResolver
	store    *store.Store
	config   *Config
	logger   *slog.Logger

	resolution *metrics.ResolutionMetrics
	cacheMet   *metrics.CacheMetrics

	mu      sync.RWMutex
	entries map[resolvedKey]*ResolvedRuleSet

	// warned tracks (category, instrument, reason) keys that already logged
	// a fallback diagnostic.
	warned sync.Map
}

// New creates a hierarchical resolver. Metrics collectors may be nil.
func New(st *store.Store, router *CategoryRuleRouter, config *Config, logger *slog.Logger, resolution *metrics.ResolutionMetrics, cacheMet *metrics.CacheMetrics) *HierarchicalRuleResolver {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HierarchicalRuleResolver{
		router:     router,
		variants:   NewVariantResolver(),
		store:      st,
		config:     config,
		logger:     logger.With("component", "rules.resolver"),
		resolution: resolution,
		cacheMet:   cacheMet,
		entries:    make(map[resolvedKey]*ResolvedRuleSet),
	}
}

// Resolve returns the most specific rule set for the record. The base load
// failing is fatal; everything downstream of a loaded base degrades to the
// base rule set rather than failing the record.
func (r *HierarchicalRuleResolver) Resolve(category string, inst *ast.Instrument, rec *ast.Record) (*ResolvedRuleSet, error) {
	start := time.Now()

	base, err := r.router.BaseRules(category, inst.Name)
	if err != nil {
		r.resolution.RecordResolution(category, inst.Name, "error", time.Since(start))
		return nil, err
	}

	if !inst.IsDynamic() {
		resolved, err := r.cached(resolvedKey{category, inst.Name, noDiscriminant}, func() (*ResolvedRuleSet, error) {
			return &ResolvedRuleSet{
				Category:   category,
				Instrument: inst.Name,
				Rules:      base,
			}, nil
		})
		if err != nil {
			return nil, err
		}
		r.resolution.RecordResolution(category, inst.Name, "base", time.Since(start))
		return resolved, nil
	}

	d := r.variants.Discriminate(inst, rec)
	if !d.Resolved {
		resolved := r.fallback(category, inst, base, d.Value, d.Reason)
		r.resolution.RecordResolution(category, inst.Name, "fallback", time.Since(start))
		return resolved, nil
	}

	resolved, err := r.cached(resolvedKey{category, inst.Name, d.Value}, func() (*ResolvedRuleSet, error) {
		variant, err := r.store.Load(category, inst.Name, d.RuleID)
		if err != nil {
			if store.IsNotFound(err) {
				// A declared variant with no document on disk degrades to the
				// base rule set, exactly as an unresolved discriminant does.
				return r.newFallback(category, inst, base, d.Value, ReasonVariantNotFound), nil
			}
			return nil, err
		}
		return &ResolvedRuleSet{
			Category:     category,
			Instrument:   inst.Name,
			Discriminant: d.Value,
			Variant:      d.RuleID,
			Rules:        base.Merge(variant),
		}, nil
	})
	if err != nil {
		r.resolution.RecordResolution(category, inst.Name, "error", time.Since(start))
		return nil, err
	}

	outcome := "variant"
	if resolved.FellBack {
		outcome = "fallback"
		r.warnFallback(category, inst.Name, resolved.FallbackReason, rec.ID)
		r.resolution.RecordFallback(category, inst.Name, resolved.FallbackReason)
	}
	r.resolution.RecordResolution(category, inst.Name, outcome, time.Since(start))
	return resolved, nil
}

// Preload eagerly resolves the base rule set and every declared variant for
// (category, instrument), trading one batch of reads for zero per-record
// load latency. Missing variant documents degrade as usual; malformed ones
// fail the preload.
func (r *HierarchicalRuleResolver) Preload(category string, inst *ast.Instrument) error {
	if _, err := r.router.BaseRules(category, inst.Name); err != nil {
		return err
	}
	if !inst.IsDynamic() {
		return nil
	}

	for value := range inst.Variants {
		rec := &ast.Record{
			Category: category,
			Fields:   map[string]any{inst.DiscriminantField: value},
		}
		if _, err := r.Resolve(category, inst, rec); err != nil {
			return err
		}
	}
	return nil
}

// CacheStats returns a snapshot of the hierarchical cache counters. The flat
// base cache reports separately via the router.
func (r *HierarchicalRuleResolver) CacheStats() CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return CacheStats{Entries: len(r.entries)}
}

// ClearCache drops both cache layers and the fallback warn-once state.
// Intended for operator action after rule files change on disk.
func (r *HierarchicalRuleResolver) ClearCache() {
	r.mu.Lock()
	r.entries = make(map[resolvedKey]*ResolvedRuleSet)
	r.mu.Unlock()

	r.warned.Range(func(key, _ any) bool {
		r.warned.Delete(key)
		return true
	})

	r.router.ClearCache()
	r.cacheMet.SetEntries("resolved", 0)
}

// cached performs an atomic check-then-insert on the hierarchical cache. The
// build function runs under the write lock so exactly one caller populates a
// given key.
func (r *HierarchicalRuleResolver) cached(key resolvedKey, build func() (*ResolvedRuleSet, error)) (*ResolvedRuleSet, error) {
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		r.cacheMet.RecordHit("resolved")
		return entry, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[key]; ok {
		r.cacheMet.RecordHit("resolved")
		return entry, nil
	}

	r.cacheMet.RecordMiss("resolved")
	entry, err := build()
	if err != nil {
		return nil, err
	}
	r.entries[key] = entry
	r.cacheMet.SetEntries("resolved", len(r.entries))
	return entry, nil
}

// fallback produces (and caches) a base-rules resolution for an unresolved
// discriminant. Missing and empty values share the sentinel cache slot;
// unmapped values cache under the value itself so the keys stay
// collision-free.
func (r *HierarchicalRuleResolver) fallback(category string, inst *ast.Instrument, base *ast.RuleSet, value, reason string) *ResolvedRuleSet {
	key := resolvedKey{category, inst.Name, noDiscriminant}
	if value != "" {
		key.discriminant = value
	}

	resolved, _ := r.cached(key, func() (*ResolvedRuleSet, error) {
		return r.newFallback(category, inst, base, value, reason), nil
	})

	r.warnFallback(category, inst.Name, reason, "")
	r.resolution.RecordFallback(category, inst.Name, reason)
	return resolved
}

func (r *HierarchicalRuleResolver) newFallback(category string, inst *ast.Instrument, base *ast.RuleSet, value, reason string) *ResolvedRuleSet {
	return &ResolvedRuleSet{
		Category:       category,
		Instrument:     inst.Name,
		Discriminant:   value,
		FellBack:       true,
		FallbackReason: reason,
		Rules:          base,
	}
}

// warnFallback emits the fallback diagnostic, once per (category,
// instrument, reason) unless WarnEveryFallback is set.
func (r *HierarchicalRuleResolver) warnFallback(category, instrument, reason, recordID string) {
	if !r.config.WarnEveryFallback {
		key := category + "\x1f" + instrument + "\x1f" + reason
		if _, loaded := r.warned.LoadOrStore(key, struct{}{}); loaded {
			return
		}
	}

	r.logger.Warn("variant resolution fell back to base rules",
		"category", category,
		"instrument", instrument,
		"reason", reason,
		"record_id", recordID,
	)
}
