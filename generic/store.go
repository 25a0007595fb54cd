/*
store.go - Persistence interfaces for the timesheet engine

PURPOSE:
  Defines the boundary between the lifecycle engine and storage. Every
  method takes the tenant explicitly; implementations filter every read and
  write by it, so a sheet of another tenant is simply not found.

KEY INTERFACES:
  TimesheetStore: Headers, with version-conditional updates
  LineStore:      Per-(task, day) entries, upsert and cascade delete
  LedgerStore:    External time ledger rows keyed by import key
  DirectoryStore: Employees (contract hours, rate) and tasks (effective duration)
  SettingsStore:  Per-tenant key/value settings and atomic counters
  AuditLog:       Lifecycle events, written inside the transition transaction
  TxStore:        All of the above plus WithTx

TRANSACTIONS:
  WithTx(fn) runs fn against a transaction-bound Store. If fn returns an
  error every write made through that Store is rolled back, including
  counter increments and audit rows.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL
  - generic/store: In-memory for testing

SEE ALSO:
  - timesheet/service.go: Runs every transition inside WithTx
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// TIMESHEETS
// =============================================================================

type TimesheetStore interface {
	// InsertTimesheet fails with ErrDuplicateTimesheet when the employee
	// already has a sheet for that week.
	InsertTimesheet(ctx context.Context, ts Timesheet) error

	// GetTimesheet returns ErrTimesheetNotFound for unknown ids and for
	// ids owned by another tenant.
	GetTimesheet(ctx context.Context, tenant TenantID, id TimesheetID) (*Timesheet, error)

	// FindTimesheet returns nil, nil when the employee has no sheet for the week.
	FindTimesheet(ctx context.Context, tenant TenantID, employee UserID, year, week int) (*Timesheet, error)

	ListTimesheets(ctx context.Context, tenant TenantID, filter TimesheetFilter) ([]Timesheet, error)

	// UpdateTimesheet writes every header field and sets version to
	// expectedVersion+1. It returns ErrConcurrentModification when the stored
	// version differs from expectedVersion.
	UpdateTimesheet(ctx context.Context, ts Timesheet, expectedVersion int) error

	DeleteTimesheet(ctx context.Context, tenant TenantID, id TimesheetID) error

	// RefsWithPrefix returns every reference of the tenant starting with prefix.
	RefsWithPrefix(ctx context.Context, tenant TenantID, prefix string) ([]string, error)

	// ApprovedBefore lists approved sheets validated strictly before cutoff.
	ApprovedBefore(ctx context.Context, tenant TenantID, cutoff time.Time) ([]TimesheetID, error)
}

// =============================================================================
// LINES
// =============================================================================

type LineStore interface {
	// Lines returns the sheet's lines ordered by day, then insertion.
	Lines(ctx context.Context, tenant TenantID, id TimesheetID) ([]Line, error)

	// UpsertLine inserts or replaces the line keyed by (sheet, task, day)
	// and returns it with its id.
	UpsertLine(ctx context.Context, tenant TenantID, line Line) (Line, error)

	// DeleteLineAt removes the line keyed by (sheet, task, day), if any.
	DeleteLineAt(ctx context.Context, tenant TenantID, id TimesheetID, task TaskID, day Day) error

	DeleteLine(ctx context.Context, tenant TenantID, id TimesheetID, lineID LineID) error

	// DeleteLines removes every line of the sheet.
	DeleteLines(ctx context.Context, tenant TenantID, id TimesheetID) error
}

// =============================================================================
// LEDGER
// =============================================================================

type LedgerStore interface {
	// InsertEntry fails with ErrDuplicateImportKey on key reuse.
	InsertEntry(ctx context.Context, e LedgerEntry) error

	// DeleteEntriesByPrefix removes rows whose import key starts with prefix.
	DeleteEntriesByPrefix(ctx context.Context, tenant TenantID, prefix string) (int, error)

	// EntriesByPrefix lists rows whose import key starts with prefix.
	EntriesByPrefix(ctx context.Context, tenant TenantID, prefix string) ([]LedgerEntry, error)

	// SumDurationByTask returns the total seconds of every row on the task.
	SumDurationByTask(ctx context.Context, tenant TenantID, task TaskID) (int64, error)
}

// =============================================================================
// DIRECTORY
// =============================================================================

type DirectoryStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, tenant TenantID, id UserID) (*Employee, error)

	SaveTask(ctx context.Context, t Task) error
	GetTask(ctx context.Context, tenant TenantID, id TaskID) (*Task, error)
	SetTaskDuration(ctx context.Context, tenant TenantID, id TaskID, seconds int64) error
}

// =============================================================================
// SETTINGS
// =============================================================================

type SettingsStore interface {
	// GetSetting returns ok=false when the key is unset.
	GetSetting(ctx context.Context, tenant TenantID, key string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, tenant TenantID, key, value string) error

	// NextCounter atomically increments the named counter and returns the new
	// value, which is never below floor+1.
	NextCounter(ctx context.Context, tenant TenantID, name string, floor int64) (int64, error)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	AuditTrail(ctx context.Context, tenant TenantID, id TimesheetID) ([]AuditEntry, error)
}

// =============================================================================
// COMPOSED STORES
// =============================================================================

type Store interface {
	TimesheetStore
	LineStore
	LedgerStore
	DirectoryStore
	SettingsStore
	AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
