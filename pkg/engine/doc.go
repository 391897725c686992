// Package engine runs per-record validation: it resolves the applicable rule
// set, applies field-level constraint checks, evaluates compatibility rules,
// and merges everything into one violation list per record.
//
// Records are independent; the batch entry point fans records out over a
// bounded worker pool and makes no ordering guarantees beyond returning
// results in input order.
package engine
