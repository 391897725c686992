// Package conditional evaluates cross-field compatibility (if/then) rules
// against a record.
//
// A condition field that is absent,
// empty, null or NaN is "not satisfied", uniformly for the instrument's own
// fields and for cross-form fields. An if-clause that is not satisfied makes
// the rule vacuously true — the then-clause is never evaluated and no
// violation is produced. Only a satisfied if-clause enforces the then-clause
// constraints.
package conditional
