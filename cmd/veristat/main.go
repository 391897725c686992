// Veristat validates structured clinical-research records against
// category- and variant-specific rule sets.
//
// It resolves the most specific rule set for each record (base rules per
// category and instrument, variant rules selected by an in-record
// discriminant field), applies field-level constraint checks and cross-field
// compatibility rules, and emits a violation report.
//
// Usage:
//
//	# Validate a records file against a rule tree
//	veristat run --records records.yaml
//
//	# Validate with a custom configuration file
//	veristat run --config /etc/veristat/config.yaml --records records.yaml
//
//	# Write a JSON report to a file
//	veristat run --records records.yaml --format json --output report.json
//
//	# Check rule-file completeness for every declared variant
//	veristat rules lint
//
//	# Show version information
//	veristat version
package main

func main() {
	Execute()
}
