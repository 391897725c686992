// Package ast defines the typed model for rule documents and records.
//
// Rule documents map canonical field names to constraint specifications and
// carry a list of cross-field compatibility (if/then) rules. Instruments are
// a tagged union: a static instrument has one rule document per category,
// while a dynamic instrument declares a discriminant field whose runtime
// value selects a variant rule document.
//
// Types in this package are plain data. Loading lives in pkg/rules/store,
// resolution in pkg/rules/resolver, and evaluation in pkg/rules/conditional
// and pkg/rules/constraint.
package ast
