// Package metrics provides Prometheus instrumentation for rule resolution,
// cache behavior and record validation.
//
// All collectors are registered against an injected registry so tests and
// embedders control the metric namespace. Every Record* method is safe on a
// nil receiver, which lets components treat metrics as optional wiring.
package metrics
