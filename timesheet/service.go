/*
service.go - Weekly timesheet lifecycle

PURPOSE:
  Service owns every write to a timesheet header: creation, line edits
  (through their totals) and the status transitions below.

STATE MACHINE:

    Draft(0) ──submit──▶ Submitted(1) ──approve──▶ Approved(4) ──seal──▶ Sealed(8)
       ▲                   │     ▲                    ▲    │               │
       │                refuse   │                    │    └──────────◀────┘
       │                   ▼  submit                unseal
       │                Refused(6)
       │
       └──── revertToDraft from any status but Draft

  Delete is allowed from every status.

ATOMICITY:
  Each operation is one WithTx call: load, check, write, emit, commit. A
  failure at any step, including a subscriber refusing the event, rolls back
  every write of the call, the reference counter and the ledger included.
  Header updates are conditional on the version read at the start, so the
  second of two concurrent transitions fails with ErrConcurrentModification.

EVENTS:
  Every successful operation appends one audit entry through the
  transactional store and then calls each subscriber in order.

USAGE:
  svc := timesheet.NewService(store)
  scope := generic.Scope{Tenant: "acme", Actor: "u-1"}
  ts, _ := svc.Create(ctx, scope, "u-1", 2025, 40)
  ts, _ = svc.UpsertLine(ctx, scope, ts.ID, timesheet.LineInput{...})
  ts, _ = svc.Submit(ctx, scope, ts.ID)

SEE ALSO:
  - lines.go: Line edits
  - numbering.go: References drawn on first submission
  - sync.go: Ledger replication on approval
  - autoseal.go: Batch sealing of old approved sheets
*/
package timesheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/logger"
)

// SealOrigin tells Seal whether a person or the AutoSeal job is sealing.
type SealOrigin int

const (
	SealManual SealOrigin = iota
	SealAuto
)

type Service struct {
	Store       generic.TxStore
	Numbering   *Registry
	Ledger      LedgerSync
	Subscribers []generic.EventSink
	Clock       generic.Clock
	Log         *log.Logger
}

// NewService wires a service with the default numbering registry and the
// system clock.
func NewService(store generic.TxStore, subscribers ...generic.EventSink) *Service {
	return &Service{
		Store:       store,
		Numbering:   DefaultRegistry(),
		Subscribers: subscribers,
		Clock:       generic.SystemClock{},
	}
}

func (s *Service) now() generic.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return generic.SystemClock{}
}

func (s *Service) logger() *log.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logger.Get()
}

func (s *Service) registry() *Registry {
	if s.Numbering != nil {
		return s.Numbering
	}
	return DefaultRegistry()
}

func (s *Service) ledger() LedgerSync {
	if s.Ledger.Clock == nil {
		return LedgerSync{Clock: s.now()}
	}
	return s.Ledger
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) Get(ctx context.Context, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	if scope.Tenant == "" {
		return nil, generic.ErrMissingTenant
	}
	ts, err := s.Store.GetTimesheet(ctx, scope.Tenant, id)
	return ts, generic.Persistence("get timesheet", err)
}

func (s *Service) List(ctx context.Context, scope generic.Scope, filter generic.TimesheetFilter) ([]generic.Timesheet, error) {
	if scope.Tenant == "" {
		return nil, generic.ErrMissingTenant
	}
	list, err := s.Store.ListTimesheets(ctx, scope.Tenant, filter)
	return list, generic.Persistence("list timesheets", err)
}

func (s *Service) Lines(ctx context.Context, scope generic.Scope, id generic.TimesheetID) ([]generic.Line, error) {
	if scope.Tenant == "" {
		return nil, generic.ErrMissingTenant
	}
	lines, err := s.Store.Lines(ctx, scope.Tenant, id)
	return lines, generic.Persistence("list lines", err)
}

// AuditTrail returns the lifecycle events recorded for the sheet.
func (s *Service) AuditTrail(ctx context.Context, scope generic.Scope, id generic.TimesheetID) ([]generic.AuditEntry, error) {
	if scope.Tenant == "" {
		return nil, generic.ErrMissingTenant
	}
	trail, err := s.Store.AuditTrail(ctx, scope.Tenant, id)
	return trail, generic.Persistence("audit trail", err)
}

// =============================================================================
// CREATE / DELETE
// =============================================================================

// Create opens a Draft sheet for the employee's ISO week with a provisional
// reference. An empty employee means the acting user.
func (s *Service) Create(ctx context.Context, scope generic.Scope, employee generic.UserID, year, week int) (*generic.Timesheet, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if employee == "" {
		employee = scope.Actor
	}
	if !generic.ValidISOWeek(year, week) {
		return nil, fmt.Errorf("%w: %d-W%02d", generic.ErrInvalidWeek, year, week)
	}

	now := s.now().Now()
	id := uuid.NewString()
	ts := generic.Timesheet{
		ID:            generic.TimesheetID(id),
		Tenant:        scope.Tenant,
		Ref:           fmt.Sprintf("%s-%s)", generic.ProvisionalRefPrefix, strings.ToUpper(id[:8])),
		EmployeeID:    employee,
		Year:          year,
		Week:          week,
		Status:        generic.StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
		TotalHours:    generic.ZeroHours(),
		OvertimeHours: generic.ZeroHours(),
		ContractHours: generic.ZeroHours(),
		Version:       1,
	}

	err := s.Store.WithTx(ctx, func(st generic.Store) error {
		existing, err := st.FindTimesheet(ctx, scope.Tenant, employee, year, week)
		if err != nil {
			return generic.Persistence("find timesheet", err)
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", generic.ErrDuplicateTimesheet, existing.Ref)
		}
		if err := st.InsertTimesheet(ctx, ts); err != nil {
			return generic.Persistence("insert timesheet", err)
		}
		return s.emit(ctx, st, scope, &ts, generic.EventCreate, nil)
	})
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// Delete removes the sheet and its lines whatever its status. The event is
// recorded before anything is deleted.
func (s *Service) Delete(ctx context.Context, scope generic.Scope, id generic.TimesheetID) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.Store.WithTx(ctx, func(st generic.Store) error {
		ts, err := st.GetTimesheet(ctx, scope.Tenant, id)
		if err != nil {
			return generic.Persistence("load timesheet", err)
		}
		if err := s.emit(ctx, st, scope, ts, generic.EventDelete, map[string]string{"status": ts.Status.String()}); err != nil {
			return err
		}
		if err := st.DeleteLines(ctx, scope.Tenant, id); err != nil {
			return generic.Persistence("delete lines", err)
		}
		if err := st.DeleteTimesheet(ctx, scope.Tenant, id); err != nil {
			return generic.Persistence("delete timesheet", err)
		}
		return nil
	})
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Submit moves a Draft or Refused sheet with at least one line to Submitted.
// It snapshots contract hours, recomputes totals and, on first submission,
// replaces the provisional reference with a definitive one.
func (s *Service) Submit(ctx context.Context, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	return s.transition(ctx, scope, id, generic.EventSubmit, func(st generic.Store, ts *generic.Timesheet) error {
		if ts.Status != generic.StatusDraft && ts.Status != generic.StatusRefused {
			return &generic.TransitionError{Op: "submit", From: ts.Status, Err: generic.ErrBadStatusForSubmit}
		}
		lines, err := st.Lines(ctx, scope.Tenant, ts.ID)
		if err != nil {
			return generic.Persistence("list lines", err)
		}
		if len(lines) == 0 {
			return generic.ErrNoLineToSubmit
		}
		if err := s.applyTotals(ctx, st, ts, lines, true); err != nil {
			return err
		}
		if ts.HasProvisionalRef() {
			ref, err := s.registry().Next(ctx, st, ts)
			if err != nil {
				return err
			}
			ts.Ref = ref
		}
		ts.Status = generic.StatusSubmitted
		ts.ValidatedAt = nil
		return nil
	})
}

// Approve records the validator, moves the sheet to Approved and replicates
// its lines into the ledger.
func (s *Service) Approve(ctx context.Context, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	return s.transition(ctx, scope, id, generic.EventApprove, func(st generic.Store, ts *generic.Timesheet) error {
		if ts.Status != generic.StatusSubmitted {
			return &generic.TransitionError{Op: "approve", From: ts.Status, Err: generic.ErrBadStatusForApprove}
		}
		now := s.now().Now()
		ts.ValidatorID = scope.Actor
		ts.ValidatedAt = &now
		ts.Status = generic.StatusApproved

		lines, err := st.Lines(ctx, scope.Tenant, ts.ID)
		if err != nil {
			return generic.Persistence("list lines", err)
		}
		res, err := s.ledger().Sync(ctx, st, ts, lines)
		if err != nil {
			return fmt.Errorf("ledger sync: %w", err)
		}
		s.logger().Debug("[ledger] synced", "timesheet", ts.ID, "removed", res.Removed, "inserted", res.Inserted, "tasks", res.Tasks)
		return nil
	})
}

func (s *Service) Refuse(ctx context.Context, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	return s.transition(ctx, scope, id, generic.EventRefuse, func(st generic.Store, ts *generic.Timesheet) error {
		if ts.Status != generic.StatusSubmitted {
			return &generic.TransitionError{Op: "refuse", From: ts.Status, Err: generic.ErrBadStatusForRefuse}
		}
		now := s.now().Now()
		ts.ValidatorID = scope.Actor
		ts.ValidatedAt = &now
		ts.Status = generic.StatusRefused
		return nil
	})
}

// Seal locks an Approved sheet. Automatic sealing leaves a line in the note.
func (s *Service) Seal(ctx context.Context, scope generic.Scope, id generic.TimesheetID, origin SealOrigin) (*generic.Timesheet, error) {
	return s.transition(ctx, scope, id, generic.EventSeal, func(st generic.Store, ts *generic.Timesheet) error {
		if ts.Status != generic.StatusApproved {
			return &generic.TransitionError{Op: "seal", From: ts.Status, Err: generic.ErrBadStatusForSeal}
		}
		ts.Status = generic.StatusSealed
		if origin == SealAuto {
			line := fmt.Sprintf("Automatically sealed by %s on %s", scope.Actor, generic.DayOf(s.now().Now()))
			if ts.Note != "" {
				line = "\n" + line
			}
			ts.Note += line
		}
		return nil
	})
}

// Unseal returns a Sealed sheet to Approved, keeping validator and
// validation date.
func (s *Service) Unseal(ctx context.Context, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	return s.transition(ctx, scope, id, generic.EventUnseal, func(st generic.Store, ts *generic.Timesheet) error {
		if ts.Status != generic.StatusSealed {
			return &generic.TransitionError{Op: "unseal", From: ts.Status, Err: generic.ErrBadStatusForUnseal}
		}
		ts.Status = generic.StatusApproved
		return nil
	})
}

// RevertToDraft reopens a sheet from any other status. Reverting a sheet
// that reached Approved recomputes its totals and the durations of its
// tasks. Ledger rows stay unless TIMESHEET_REVERT_PURGE_LEDGER is set.
// A Draft sheet yields ErrAlreadyDraft and no write.
func (s *Service) RevertToDraft(ctx context.Context, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	return s.transition(ctx, scope, id, generic.EventRevert, func(st generic.Store, ts *generic.Timesheet) error {
		if ts.Status == generic.StatusDraft {
			return generic.ErrAlreadyDraft
		}
		previous := ts.Status
		ts.Status = generic.StatusDraft
		ts.ValidatedAt = nil

		if previous != generic.StatusApproved && previous != generic.StatusSealed {
			return nil
		}

		ts.OvertimeHours = generic.ZeroHours()
		lines, err := st.Lines(ctx, scope.Tenant, ts.ID)
		if err != nil {
			return generic.Persistence("list lines", err)
		}
		if err := s.applyTotals(ctx, st, ts, lines, false); err != nil {
			return err
		}

		tasks := lineTasks(lines)
		purge, err := boolSetting(ctx, st, scope.Tenant, SettingRevertPurgeLedger)
		if err != nil {
			return err
		}
		if purge {
			prefix := generic.ImportPrefix(ts.ID)
			previousRows, err := st.EntriesByPrefix(ctx, scope.Tenant, prefix)
			if err != nil {
				return generic.Persistence("list ledger rows", err)
			}
			for _, e := range previousRows {
				tasks = appendTask(tasks, e.TaskID)
			}
			if _, err := st.DeleteEntriesByPrefix(ctx, scope.Tenant, prefix); err != nil {
				return generic.Persistence("delete ledger rows", err)
			}
		}
		return RecomputeTaskDurations(ctx, st, scope.Tenant, tasks)
	})
}

func appendTask(tasks []generic.TaskID, id generic.TaskID) []generic.TaskID {
	for _, t := range tasks {
		if t == id {
			return tasks
		}
	}
	return append(tasks, id)
}

// transition runs fn against a freshly loaded sheet inside one transaction,
// then persists the header conditionally on its version and emits code.
func (s *Service) transition(
	ctx context.Context,
	scope generic.Scope,
	id generic.TimesheetID,
	code generic.EventCode,
	fn func(st generic.Store, ts *generic.Timesheet) error,
) (*generic.Timesheet, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var result *generic.Timesheet
	err := s.Store.WithTx(ctx, func(st generic.Store) error {
		ts, err := st.GetTimesheet(ctx, scope.Tenant, id)
		if err != nil {
			return generic.Persistence("load timesheet", err)
		}
		from := ts.Status
		version := ts.Version

		if err := fn(st, ts); err != nil {
			return err
		}

		ts.UpdatedAt = s.now().Now()
		if err := st.UpdateTimesheet(ctx, *ts, version); err != nil {
			return generic.Persistence("update timesheet", err)
		}
		ts.Version = version + 1

		params := map[string]string{"from": from.String(), "to": ts.Status.String()}
		if err := s.emit(ctx, st, scope, ts, code, params); err != nil {
			return err
		}
		result = ts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// TOTALS AND CONTRACT HOURS
// =============================================================================

// applyTotals recomputes the header totals from lines. With snapshot set,
// unset contract hours are resolved and stored on the sheet; otherwise they
// are only used for the overtime figure.
func (s *Service) applyTotals(ctx context.Context, st generic.Store, ts *generic.Timesheet, lines []generic.Line, snapshot bool) error {
	contract, err := contractHours(ctx, st, ts)
	if err != nil {
		return err
	}
	if snapshot {
		ts.ContractHours = contract
	}
	ComputeTotals(lines).ApplyTo(ts, contract)
	return nil
}

// contractHours is the sheet's snapshot when set, else the employee's weekly
// hours, else the tenant default, else DefaultContractHours.
func contractHours(ctx context.Context, st generic.Store, ts *generic.Timesheet) (generic.Amount, error) {
	if ts.ContractHours.IsPositive() {
		return ts.ContractHours, nil
	}
	emp, err := st.GetEmployee(ctx, ts.Tenant, ts.EmployeeID)
	if err != nil && !generic.IsNotFound(err) {
		return generic.Amount{}, generic.Persistence("read employee", err)
	}
	if emp != nil && emp.WeeklyHours != nil && emp.WeeklyHours.IsPositive() {
		return *emp.WeeklyHours, nil
	}
	return hoursSetting(ctx, st, ts.Tenant, SettingDefaultContractHours, DefaultContractHours)
}

// =============================================================================
// EVENTS
// =============================================================================

// emit records the event in the audit log and hands it to every subscriber.
// Any error aborts the caller's transaction.
func (s *Service) emit(
	ctx context.Context,
	st generic.Store,
	scope generic.Scope,
	ts *generic.Timesheet,
	code generic.EventCode,
	params map[string]string,
) error {
	if params == nil {
		params = make(map[string]string)
	}
	params["ref"] = ts.Ref
	params["employee"] = string(ts.EmployeeID)
	params["week"] = fmt.Sprintf("%04d-W%02d", ts.Year, ts.Week)

	ev := generic.Event{
		Code:        code,
		Tenant:      scope.Tenant,
		TimesheetID: ts.ID,
		ActorID:     scope.Actor,
		Params:      params,
		At:          s.now().Now(),
	}
	if err := st.AppendAudit(ctx, generic.AuditEntryFor(uuid.NewString(), ev)); err != nil {
		return generic.Persistence("append audit", err)
	}
	for _, sub := range s.Subscribers {
		if err := sub.OnTimesheetEvent(ctx, ev); err != nil {
			return fmt.Errorf("emit %s: %w", code, err)
		}
	}
	return nil
}
