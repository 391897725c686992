// Package constraint evaluates a single field value against its constraint
// specification.
//
// The resolution and conditional-evaluation core treats constraint
// evaluation as an injected capability behind the Evaluator interface; this
// package also ships the default implementation covering the built-in
// vocabulary: allowed-value sets, numeric ranges, type checks and regex
// patterns.
package constraint
