package services

import (
	"errors"
	"fmt"
)

// ErrSyncDisabled is returned when a sync entry point is invoked for an
// integration whose circuit breaker has tripped. Callers must re-enable the
// integration before syncing resumes.
var ErrSyncDisabled = errors.New("sync is disabled for this integration")

// IncompleteSourceDataError marks an external record that cannot be imported
// because required fields are missing. The record is skipped and reported;
// it never aborts the surrounding batch.
type IncompleteSourceDataError struct {
	ExternalCode string
	Missing      []string
}

func (e *IncompleteSourceDataError) Error() string {
	return fmt.Sprintf("order %s is missing required data: %v", e.ExternalCode, e.Missing)
}

// UnresolvedItemError aborts the import of one order when a line references
// an item that cannot be resolved or materialized. Other orders in the same
// batch continue.
type UnresolvedItemError struct {
	ExternalCode string
	SKU          string
	Cause        error
}

func (e *UnresolvedItemError) Error() string {
	return fmt.Sprintf("order %s references unresolvable item %q: %v", e.ExternalCode, e.SKU, e.Cause)
}

func (e *UnresolvedItemError) Unwrap() error {
	return e.Cause
}
