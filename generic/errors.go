/*
errors.go - Centralized error types for the timesheet engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify failures with errors.Is / errors.As and the helpers
  at the bottom of this file.

ERROR CATEGORIES:
  1. Validation errors - Wrong status, missing lines, bad input
  2. Configuration errors - Numbering not resolvable, bad mask
  3. Persistence errors - Store rejected a read or write
  4. Concurrency errors - Optimistic lock lost

USAGE:
  if errors.Is(err, generic.ErrBadStatusForSubmit) {
      // tell the user the sheet cannot be submitted from its current state
  }

SEE ALSO:
  - timesheet/service.go: Produces TransitionError
  - store/sqlstore: Produces PersistenceError
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrBadStatusForSubmit  = errors.New("wrong status for submit")
	ErrBadStatusForApprove = errors.New("wrong status for approve")
	ErrBadStatusForRefuse  = errors.New("wrong status for refuse")
	ErrBadStatusForSeal    = errors.New("wrong status for seal")
	ErrBadStatusForUnseal  = errors.New("wrong status for unseal")

	// ErrAlreadyDraft is non-fatal: revert was requested on a draft and nothing changed.
	ErrAlreadyDraft = errors.New("timesheet is already a draft")

	ErrNoLineToSubmit   = errors.New("no line to submit")
	ErrSheetNotEditable = errors.New("timesheet is not editable in its current status")
	ErrInvalidLine      = errors.New("invalid timesheet line")
	ErrInvalidWeek      = errors.New("invalid ISO year/week")

	ErrRefGenerationFailed    = errors.New("reference generation failed")
	ErrNumberingNotConfigured = errors.New("numbering module not resolvable")
	ErrInvalidMask            = errors.New("invalid numbering mask")

	ErrTimesheetNotFound  = errors.New("timesheet not found")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrDuplicateTimesheet = errors.New("timesheet already exists for this employee and week")
	ErrDuplicateRef       = errors.New("reference already used")
	ErrDuplicateImportKey = errors.New("duplicate ledger import key")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrMissingTenant = errors.New("tenant is required")
	ErrMissingActor  = errors.New("acting user is required")

	// ErrPersistence classifies every PersistenceError.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError reports a lifecycle operation refused by the state machine.
type TransitionError struct {
	Op   string
	From Status
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s: wrong status (%s)", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Persistence wraps err unless it is nil or already classified.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) || IsValidation(err) || IsNotFound(err) || IsRetryable(err) || IsConfiguration(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// LineError identifies which field of a line was rejected.
type LineError struct {
	Field  string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("invalid line %s: %s", e.Field, e.Reason)
}

func (e *LineError) Unwrap() error { return ErrInvalidLine }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsValidation returns true for precondition violations caused by the caller.
func IsValidation(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) ||
		errors.Is(err, ErrNoLineToSubmit) ||
		errors.Is(err, ErrSheetNotEditable) ||
		errors.Is(err, ErrInvalidLine) ||
		errors.Is(err, ErrInvalidWeek) ||
		errors.Is(err, ErrDuplicateTimesheet) ||
		errors.Is(err, ErrAlreadyDraft) ||
		errors.Is(err, ErrMissingTenant) ||
		errors.Is(err, ErrMissingActor)
}

// IsConfiguration returns true when tenant settings prevent the operation.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrRefGenerationFailed) ||
		errors.Is(err, ErrNumberingNotConfigured) ||
		errors.Is(err, ErrInvalidMask)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTimesheetNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrTaskNotFound)
}

// IsNonFatal returns true for outcomes that leave state unchanged on purpose.
func IsNonFatal(err error) bool {
	return errors.Is(err, ErrAlreadyDraft)
}
