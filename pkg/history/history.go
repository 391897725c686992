// Package history persists validation runs and their violations to an
// append-only store, for report regeneration and retention-managed audit
// trails.
package history

import (
	"context"
	"fmt"
	"time"
)

// Run is one validation run over a batch of records.
type Run struct {
	// ID is the run's unique identifier.
	ID string `json:"id"`

	// RuleRoot is the rule directory the run validated against.
	RuleRoot string `json:"rule_root"`

	// StartedAt and CompletedAt bound the run. CompletedAt is zero while the
	// run is in flight.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// RecordCount is the number of records validated.
	RecordCount int `json:"record_count"`

	// ViolationCount is the total number of violations emitted.
	ViolationCount int `json:"violation_count"`
}

// StoredViolation is one persisted violation row.
type StoredViolation struct {
	// RunID ties the violation to its run.
	RunID string `json:"run_id"`

	// RecordID, Category and Instrument identify the offending record.
	RecordID   string `json:"record_id"`
	Category   string `json:"category"`
	Instrument string `json:"instrument"`

	// Field, Rule and Message mirror ast.Violation.
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`

	// RecordedAt is when the violation was persisted.
	RecordedAt time.Time `json:"recorded_at"`
}

// Storage is the persistence backend for runs and violations.
type Storage interface {
	// SaveRun inserts or updates a run.
	SaveRun(ctx context.Context, run *Run) error

	// SaveViolations appends violations for a run.
	SaveViolations(ctx context.Context, violations []*StoredViolation) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// ListViolations returns a run's violations.
	ListViolations(ctx context.Context, runID string) ([]*StoredViolation, error)

	// DeleteRunsBefore removes runs (and their violations) started before
	// the cutoff, returning the number of runs deleted.
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases backend resources.
	Close() error
}

// ErrRunNotFound is returned by GetRun for unknown run IDs.
var ErrRunNotFound = fmt.Errorf("run not found")

// StorageError wraps a backend failure with its backend name and operation.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// NewStorageError creates a StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("history storage %s: %s failed: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
