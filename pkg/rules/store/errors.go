package store

import "fmt"

// LoadErrorKind classifies rule-file load failures.
type LoadErrorKind string

const (
	// KindNotFound means the expected rule location has no file.
	KindNotFound LoadErrorKind = "not_found"

	// KindMalformed means the file exists but cannot be parsed into a
	// rule set.
	KindMalformed LoadErrorKind = "malformed"
)

// RuleLoadError is a fatal failure to load the rule document for a specific
// (category, instrument[, variant]) combination. It is surfaced unchanged
// through the router and resolver; no default rule set is ever substituted.
type RuleLoadError struct {
	// Kind is NotFound or Malformed.
	Kind LoadErrorKind

	// Category, Instrument and Variant identify the requested rule document.
	// Variant is empty for base documents.
	Category   string
	Instrument string
	Variant    string

	// Path is the file path that was attempted.
	Path string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *RuleLoadError) Error() string {
	target := fmt.Sprintf("%s/%s", e.Category, e.Instrument)
	if e.Variant != "" {
		target += "." + e.Variant
	}
	if e.Cause != nil {
		return fmt.Sprintf("rule load failed for %s (%s): %s: %v", target, e.Kind, e.Path, e.Cause)
	}
	return fmt.Sprintf("rule load failed for %s (%s): %s", target, e.Kind, e.Path)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *RuleLoadError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err is a RuleLoadError of kind NotFound.
func IsNotFound(err error) bool {
	le, ok := err.(*RuleLoadError)
	return ok && le.Kind == KindNotFound
}

// CatalogError is a failure to load or parse an instrument catalog.
type CatalogError struct {
	// Path is the catalog file path.
	Path string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("catalog %q: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("catalog %q: %s", e.Path, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *CatalogError) Unwrap() error {
	return e.Cause
}
