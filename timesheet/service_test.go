package timesheet_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_DraftWithProvisionalRef(t *testing.T) {
	f := newFixture(t)

	ts, err := f.svc.Create(f.ctx, f.as(employee), "", 2025, 40)
	require.NoError(t, err)

	assert.Equal(t, generic.StatusDraft, ts.Status)
	assert.Equal(t, employee, ts.EmployeeID, "empty employee defaults to the actor")
	assert.True(t, ts.HasProvisionalRef())
	assert.True(t, strings.HasPrefix(ts.Ref, "(PROV-"), ts.Ref)

	trail, err := f.svc.AuditTrail(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, generic.EventCreate, trail[0].Code)
}

func TestCreate_RejectsDuplicateWeek(t *testing.T) {
	f := newFixture(t)
	f.draft(t)

	_, err := f.svc.Create(f.ctx, f.as(employee), employee, 2025, 40)
	assert.ErrorIs(t, err, generic.ErrDuplicateTimesheet)
	assert.True(t, generic.IsValidation(err))
}

func TestCreate_RejectsInvalidWeek(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.ctx, f.as(employee), employee, 2025, 53)
	assert.ErrorIs(t, err, generic.ErrInvalidWeek)

	_, err = f.svc.Create(f.ctx, f.as(employee), employee, 2026, 53)
	assert.NoError(t, err, "2026 has 53 ISO weeks")
}

func TestCreate_RequiresScope(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.ctx, generic.Scope{Actor: employee}, employee, 2025, 40)
	assert.ErrorIs(t, err, generic.ErrMissingTenant)

	_, err = f.svc.Create(f.ctx, generic.Scope{Tenant: tenant}, employee, 2025, 40)
	assert.ErrorIs(t, err, generic.ErrMissingActor)
}

// =============================================================================
// LINES
// =============================================================================

func TestUpsertLine_OneLinePerTaskAndDay(t *testing.T) {
	f := newFixture(t)
	ts := f.draft(t, 8)

	// WHEN: the same (task, day) is written again, and a second task is added
	_, err := f.svc.UpsertLine(f.ctx, f.as(employee), ts.ID, timesheet.LineInput{TaskID: taskA, Day: week40, Hours: hours(6), Zone: 2})
	require.NoError(t, err)
	ts, err = f.svc.UpsertLine(f.ctx, f.as(employee), ts.ID, timesheet.LineInput{TaskID: taskB, Day: week40, Hours: hours(2), Meal: true})
	require.NoError(t, err)

	// THEN
	lines, err := f.svc.Lines(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, ts.TotalHours.Equal(hours(8)))
	assert.Equal(t, [5]int{0, 1, 0, 0, 0}, ts.ZoneCounts)
	assert.Equal(t, 1, ts.MealCount)
}

func TestUpsertLine_ZeroHoursDeletes(t *testing.T) {
	f := newFixture(t)
	ts := f.draft(t, 8, 8)

	ts, err := f.svc.UpsertLine(f.ctx, f.as(employee), ts.ID, timesheet.LineInput{TaskID: taskA, Day: week40, Hours: hours(0)})
	require.NoError(t, err)

	lines, err := f.svc.Lines(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Day.Equal(week40.AddDays(1)))
	assert.True(t, ts.TotalHours.Equal(hours(8)))
}

func TestUpsertLine_Validation(t *testing.T) {
	f := newFixture(t)
	ts := f.draft(t)

	tests := []struct {
		name string
		in   timesheet.LineInput
		want error
	}{
		{"day outside week", timesheet.LineInput{TaskID: taskA, Day: week40.AddDays(7), Hours: hours(1)}, generic.ErrInvalidLine},
		{"negative hours", timesheet.LineInput{TaskID: taskA, Day: week40, Hours: hours(-1)}, generic.ErrInvalidLine},
		{"more than a day", timesheet.LineInput{TaskID: taskA, Day: week40, Hours: hours(24.5)}, generic.ErrInvalidLine},
		{"zone out of range", timesheet.LineInput{TaskID: taskA, Day: week40, Hours: hours(1), Zone: 6}, generic.ErrInvalidLine},
		{"missing task", timesheet.LineInput{Day: week40, Hours: hours(1)}, generic.ErrInvalidLine},
		{"unknown task", timesheet.LineInput{TaskID: "nope", Day: week40, Hours: hours(1)}, generic.ErrTaskNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpsertLine(f.ctx, f.as(employee), ts.ID, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpsertLine_OnlyWhileEditable(t *testing.T) {
	f := newFixture(t)
	ts := f.inStatus(t, 41, generic.StatusSubmitted)

	_, err := f.svc.UpsertLine(f.ctx, f.as(employee), ts.ID, timesheet.LineInput{
		TaskID: taskA, Day: generic.MondayOf(2025, 41), Hours: hours(1),
	})
	assert.ErrorIs(t, err, generic.ErrSheetNotEditable)

	refused := f.inStatus(t, 42, generic.StatusRefused)
	_, err = f.svc.UpsertLine(f.ctx, f.as(employee), refused.ID, timesheet.LineInput{
		TaskID: taskA, Day: generic.MondayOf(2025, 42), Hours: hours(1),
	})
	assert.NoError(t, err, "refused sheets are editable")
}

func TestUpdateDraft(t *testing.T) {
	f := newFixture(t)
	ts := f.draft(t, 8)
	note, tpl := "on site", "weekly-a4"

	ts, err := f.svc.UpdateDraft(f.ctx, f.as(employee), ts.ID, timesheet.DraftUpdate{Note: &note, ReportTemplate: &tpl})
	require.NoError(t, err)
	assert.Equal(t, note, ts.Note)
	assert.Equal(t, tpl, ts.ReportTemplate)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestSubmit_Scenario(t *testing.T) {
	// GIVEN: a draft with one 8h line on Monday of week 40/2025, contract 35h
	f := newFixture(t)
	ts := f.draft(t, 8)
	require.True(t, ts.HasProvisionalRef())

	// WHEN
	ts, err := f.svc.Submit(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, generic.StatusSubmitted, ts.Status)
	assert.True(t, ts.TotalHours.Equal(hours(8)))
	assert.True(t, ts.OvertimeHours.IsZero())
	assert.True(t, ts.ContractHours.Equal(hours(35)))
	assert.False(t, ts.HasProvisionalRef())
	assert.Equal(t, "TS202540-001", ts.Ref)
	assert.Nil(t, ts.ValidatedAt)

	stored, err := f.svc.Get(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)
	assert.Equal(t, ts.Ref, stored.Ref)
	assert.Equal(t, ts.Version, stored.Version)
}

func TestSubmit_RequiresLines(t *testing.T) {
	f := newFixture(t)
	ts := f.draft(t)

	_, err := f.svc.Submit(f.ctx, f.as(employee), ts.ID)
	assert.ErrorIs(t, err, generic.ErrNoLineToSubmit)

	stored, err := f.svc.Get(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusDraft, stored.Status)
}

func TestSubmit_ContractFromTenantDefault(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SetSetting(f.ctx, tenant, timesheet.SettingDefaultContractHours, "39"))

	ts := f.draftFor(t, "u-unknown", 2025, 40, 10, 10, 10, 10)
	ts, err := f.svc.Submit(f.ctx, f.as("u-unknown"), ts.ID)
	require.NoError(t, err)

	assert.True(t, ts.ContractHours.Equal(hours(39)))
	assert.True(t, ts.OvertimeHours.Equal(hours(1)))
}

func TestResubmitKeepsDefinitiveRef(t *testing.T) {
	f := newFixture(t)
	ts := f.inStatus(t, 40, generic.StatusRefused)
	ref := ts.Ref

	ts, err := f.svc.Submit(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)
	assert.Equal(t, ref, ts.Ref)
}

func TestApproveThenRevert_Scenario(t *testing.T) {
	// GIVEN: an approved sheet, 40h against a 35h contract
	f := newFixture(t)
	ts := f.draft(t, 8, 8, 8, 8, 8)
	ts, err := f.svc.Submit(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)
	ts, err = f.svc.Approve(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)
	require.True(t, ts.OvertimeHours.Equal(hours(5)))
	assert.Equal(t, manager, ts.ValidatorID)
	require.NotNil(t, ts.ValidatedAt)

	// WHEN
	ts, err = f.svc.RevertToDraft(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)

	// THEN: overtime is zeroed then recomputed from the lines
	assert.Equal(t, generic.StatusDraft, ts.Status)
	assert.True(t, ts.TotalHours.Equal(hours(40)))
	assert.True(t, ts.OvertimeHours.Equal(hours(5)), "got %s", ts.OvertimeHours)
	assert.Nil(t, ts.ValidatedAt)

	// Ledger rows stay by default, and the task duration reflects them
	assert.Len(t, f.ledgerRows(t, ts.ID), 5)
	assert.Equal(t, int64(40*3600), f.taskDuration(t, taskA))
}

func TestRevertToDraft_PurgesLedgerWhenConfigured(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SetSetting(f.ctx, tenant, timesheet.SettingRevertPurgeLedger, "1"))
	ts := f.inStatus(t, 40, generic.StatusSealed)
	require.Len(t, f.ledgerRows(t, ts.ID), 1)

	_, err := f.svc.RevertToDraft(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)

	assert.Empty(t, f.ledgerRows(t, ts.ID))
	assert.Zero(t, f.taskDuration(t, taskA))
}

func TestRevertToDraft_AlreadyDraft(t *testing.T) {
	f := newFixture(t)
	ts := f.draft(t, 8)

	_, err := f.svc.RevertToDraft(f.ctx, f.as(employee), ts.ID)
	assert.ErrorIs(t, err, generic.ErrAlreadyDraft)
	assert.True(t, generic.IsNonFatal(err))

	stored, err := f.svc.Get(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)
	assert.Equal(t, ts.Version, stored.Version, "no write")
}

func TestSeal_AutoAppendsNote(t *testing.T) {
	f := newFixture(t)
	ts := f.inStatus(t, 40, generic.StatusApproved)
	ts.Note = "checked"
	require.NoError(t, f.store.UpdateTimesheet(f.ctx, *ts, ts.Version))

	sealed, err := f.svc.Seal(f.ctx, f.as("u-robot"), ts.ID, timesheet.SealAuto)
	require.NoError(t, err)
	assert.Equal(t, "checked\nAutomatically sealed by u-robot on 2025-10-06", sealed.Note)
}

func TestUnseal_KeepsValidation(t *testing.T) {
	f := newFixture(t)
	ts := f.inStatus(t, 40, generic.StatusSealed)

	unsealed, err := f.svc.Unseal(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, unsealed.Status)
	assert.Equal(t, manager, unsealed.ValidatorID)
	require.NotNil(t, unsealed.ValidatedAt)
	assert.True(t, ts.ValidatedAt.Equal(*unsealed.ValidatedAt))
}

func TestDelete_CascadesAndRecordsEvent(t *testing.T) {
	f := newFixture(t)
	ts := f.inStatus(t, 40, generic.StatusApproved)

	require.NoError(t, f.svc.Delete(f.ctx, f.as(manager), ts.ID))

	_, err := f.svc.Get(f.ctx, f.as(manager), ts.ID)
	assert.ErrorIs(t, err, generic.ErrTimesheetNotFound)
	_, err = f.store.Lines(f.ctx, tenant, ts.ID)
	assert.ErrorIs(t, err, generic.ErrTimesheetNotFound)

	trail, err := f.svc.AuditTrail(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	assert.Equal(t, generic.EventDelete, trail[len(trail)-1].Code)
}

func TestTenantIsolation(t *testing.T) {
	f := newFixture(t)
	ts := f.draft(t, 8)
	other := generic.Scope{Tenant: "globex", Actor: manager}

	_, err := f.svc.Get(f.ctx, other, ts.ID)
	assert.ErrorIs(t, err, generic.ErrTimesheetNotFound)
	_, err = f.svc.Submit(f.ctx, other, ts.ID)
	assert.ErrorIs(t, err, generic.ErrTimesheetNotFound)
	assert.Error(t, f.svc.Delete(f.ctx, other, ts.ID))
}

// =============================================================================
// STATE MACHINE CLOSURE
// =============================================================================

func TestStateMachine_Closure(t *testing.T) {
	type op struct {
		name     string
		allowed  []generic.Status
		sentinel error
		run      func(f *fixture, id generic.TimesheetID) error
	}
	ops := []op{
		{"submit", []generic.Status{generic.StatusDraft, generic.StatusRefused}, generic.ErrBadStatusForSubmit,
			func(f *fixture, id generic.TimesheetID) error { _, err := f.svc.Submit(f.ctx, f.as(employee), id); return err }},
		{"approve", []generic.Status{generic.StatusSubmitted}, generic.ErrBadStatusForApprove,
			func(f *fixture, id generic.TimesheetID) error { _, err := f.svc.Approve(f.ctx, f.as(manager), id); return err }},
		{"refuse", []generic.Status{generic.StatusSubmitted}, generic.ErrBadStatusForRefuse,
			func(f *fixture, id generic.TimesheetID) error { _, err := f.svc.Refuse(f.ctx, f.as(manager), id); return err }},
		{"seal", []generic.Status{generic.StatusApproved}, generic.ErrBadStatusForSeal,
			func(f *fixture, id generic.TimesheetID) error {
				_, err := f.svc.Seal(f.ctx, f.as(manager), id, timesheet.SealManual)
				return err
			}},
		{"unseal", []generic.Status{generic.StatusSealed}, generic.ErrBadStatusForUnseal,
			func(f *fixture, id generic.TimesheetID) error { _, err := f.svc.Unseal(f.ctx, f.as(manager), id); return err }},
		{"revert", []generic.Status{generic.StatusSubmitted, generic.StatusApproved, generic.StatusRefused, generic.StatusSealed}, generic.ErrAlreadyDraft,
			func(f *fixture, id generic.TimesheetID) error {
				_, err := f.svc.RevertToDraft(f.ctx, f.as(manager), id)
				return err
			}},
	}
	statuses := []generic.Status{
		generic.StatusDraft, generic.StatusSubmitted, generic.StatusApproved, generic.StatusRefused, generic.StatusSealed,
	}

	for _, o := range ops {
		for _, from := range statuses {
			t.Run(fmt.Sprintf("%s from %s", o.name, from), func(t *testing.T) {
				f := newFixture(t)
				ts := f.inStatus(t, 40, from)

				err := o.run(f, ts.ID)

				stored, getErr := f.svc.Get(f.ctx, f.as(manager), ts.ID)
				require.NoError(t, getErr)
				allowed := false
				for _, s := range o.allowed {
					allowed = allowed || s == from
				}
				if allowed {
					require.NoError(t, err)
					assert.NotEqual(t, from, stored.Status)
					return
				}
				assert.ErrorIs(t, err, o.sentinel)
				assert.True(t, generic.IsValidation(err))
				assert.Equal(t, from, stored.Status, "status unchanged")
				assert.Equal(t, ts.Version, stored.Version, "no write")
			})
		}
	}
}

func TestTransitionError_Message(t *testing.T) {
	f := newFixture(t)
	ts := f.inStatus(t, 40, generic.StatusApproved)

	_, err := f.svc.Submit(f.ctx, f.as(employee), ts.ID)
	require.Error(t, err)
	assert.Equal(t, "cannot submit: wrong status (approved)", err.Error())
}

// =============================================================================
// LEDGER SYNC
// =============================================================================

func TestApprove_LedgerRows(t *testing.T) {
	f := newFixture(t)
	ts := f.draft(t, 7.5, 0, 8)
	_, err := f.svc.UpsertLine(f.ctx, f.as(employee), ts.ID, timesheet.LineInput{TaskID: taskB, Day: week40, Hours: hours(0.5)})
	require.NoError(t, err)
	_, err = f.svc.Submit(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)

	ts, err = f.svc.Approve(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)

	rows := f.ledgerRows(t, ts.ID)
	require.Len(t, rows, 3)
	notes := make([]string, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, r.Note)
		assert.Equal(t, employee, r.EmployeeID)
		require.NotNil(t, r.HourlyRate)
		assert.True(t, r.HourlyRate.Equal(hours(42.5)))
	}
	assert.Contains(t, notes, "TS202540-001 - 2025-09-29 - 7h30")
	assert.Contains(t, notes, "TS202540-001 - 2025-10-01 - 8h00")
	assert.Contains(t, notes, "TS202540-001 - 2025-09-29 - 0h30")

	assert.Equal(t, int64(15.5*3600), f.taskDuration(t, taskA))
	assert.Equal(t, int64(1800), f.taskDuration(t, taskB))
}

func TestLedgerSync_Idempotent(t *testing.T) {
	// GIVEN: an approved sheet with two lines
	f := newFixture(t)
	ts := f.draft(t, 8, 6)
	_, err := f.svc.Submit(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)
	ts, err = f.svc.Approve(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)
	lines, err := f.svc.Lines(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)

	// WHEN: the sync is replayed, and the sheet goes through approval again
	for i := 0; i < 3; i++ {
		err := f.store.WithTx(f.ctx, func(st generic.Store) error {
			_, err := f.svc.Ledger.Sync(f.ctx, st, ts, lines)
			return err
		})
		require.NoError(t, err)
	}
	_, err = f.svc.RevertToDraft(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)
	_, err = f.svc.Submit(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)

	// THEN: still one row per line, and the task duration is a sum, not an increment
	assert.Len(t, f.ledgerRows(t, ts.ID), 2)
	assert.Equal(t, int64(14*3600), f.taskDuration(t, taskA))
}

func TestLedgerSync_TaskDurationIsGlobal(t *testing.T) {
	f := newFixture(t)
	first := f.inStatus(t, 40, generic.StatusApproved)
	second := f.inStatus(t, 41, generic.StatusApproved)

	assert.Len(t, f.ledgerRows(t, first.ID), 1)
	assert.Len(t, f.ledgerRows(t, second.ID), 1)
	assert.Equal(t, int64(16*3600), f.taskDuration(t, taskA))
}

func TestApprove_LedgerFailureRollsBack(t *testing.T) {
	// GIVEN: a submitted sheet and a ledger that rejects inserts
	f := newFixture(t)
	ts := f.inStatus(t, 40, generic.StatusSubmitted)
	f.store.FailOn("InsertEntry", errors.New("disk full"))

	// WHEN
	_, err := f.svc.Approve(f.ctx, f.as(manager), ts.ID)

	// THEN: nothing of the approval survives
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrPersistence)

	f.store.FailOn("InsertEntry", nil)
	stored, err := f.svc.Get(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusSubmitted, stored.Status)
	assert.Empty(t, stored.ValidatorID)
	assert.Empty(t, f.ledgerRows(t, ts.ID))

	trail, err := f.svc.AuditTrail(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)
	for _, e := range trail {
		assert.NotEqual(t, generic.EventApprove, e.Code)
	}
}

func TestUpdateConflictIsRetryable(t *testing.T) {
	f := newFixture(t)
	ts := f.draft(t, 8)
	stale := *ts

	_, err := f.svc.Submit(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)

	err = f.store.UpdateTimesheet(f.ctx, stale, stale.Version)
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.True(t, generic.IsRetryable(err))
}

func TestApprove_ValidatedAtUsesClock(t *testing.T) {
	f := newFixture(t)
	ts := f.inStatus(t, 40, generic.StatusSubmitted)
	at := time.Date(2025, time.October, 8, 14, 30, 0, 0, time.UTC)
	f.at(at)

	ts, err := f.svc.Approve(f.ctx, f.as(manager), ts.ID)
	require.NoError(t, err)
	require.NotNil(t, ts.ValidatedAt)
	assert.True(t, at.Equal(*ts.ValidatedAt))
}
