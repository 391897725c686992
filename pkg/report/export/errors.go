package export

import "fmt"

// ExportError wraps a failure while writing a report.
type ExportError struct {
	// Format is "csv" or "json".
	Format string

	// Records is how many results were processed before the failure.
	Records int

	// Cause is the underlying error.
	Cause error
}

// NewExportError creates an ExportError.
func NewExportError(format string, records int, cause error) *ExportError {
	return &ExportError{Format: format, Records: records, Cause: cause}
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("%s export failed after %d records: %v", e.Format, e.Records, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ExportError) Unwrap() error {
	return e.Cause
}
