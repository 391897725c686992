// Package export renders validation results as CSV or JSON reports for
// downstream consumers.
package export
