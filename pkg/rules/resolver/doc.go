// Package resolver selects the most specific rule set for a record.
//
// Resolution is layered. CategoryRuleRouter serves base rule sets for a
// (category, instrument) pair behind a flat cache; a missing base document is
// a hard error. HierarchicalRuleResolver composes the router with
// VariantResolver: for dynamic instruments it reads the discriminant field
// from the record, merges the selected variant document over the base, and
// caches the merged result keyed by (category, instrument, discriminant). An
// unresolved discriminant or a missing variant document degrades to the base
// rule set with a warning diagnostic, while a missing base document never
// degrades to anything.
//
// Both caches are safe for concurrent use, populate lazily with atomic
// check-then-insert, never expire, and are cleared only by explicit operator
// action.
package resolver
