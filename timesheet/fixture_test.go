package timesheet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/generic/store"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	tenant   = generic.TenantID("acme")
	employee = generic.UserID("u-employee")
	manager  = generic.UserID("u-manager")
	taskA    = generic.TaskID("task-a")
	taskB    = generic.TaskID("task-b")
)

// week40 is Monday of ISO week 40 of 2025.
var week40 = generic.NewDay(2025, time.September, 29)

func hours(v float64) generic.Amount { return generic.NewHours(v) }

func hoursPtr(v float64) *generic.Amount {
	h := hours(v)
	return &h
}

type fixture struct {
	ctx   context.Context
	store *store.Memory
	svc   *timesheet.Service
}

func newFixture(t *testing.T, subscribers ...generic.EventSink) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.SaveEmployee(ctx, generic.Employee{
		ID: employee, Tenant: tenant, Name: "Employee",
		WeeklyHours: hoursPtr(35), HourlyRate: hoursPtr(42.5),
	}))
	for _, id := range []generic.TaskID{taskA, taskB} {
		require.NoError(t, mem.SaveTask(ctx, generic.Task{ID: id, Tenant: tenant, Label: string(id)}))
	}

	svc := timesheet.NewService(mem, subscribers...)
	svc.Clock = generic.FixedClock{At: time.Date(2025, time.October, 6, 9, 0, 0, 0, time.UTC)}
	return &fixture{ctx: ctx, store: mem, svc: svc}
}

func (f *fixture) as(actor generic.UserID) generic.Scope {
	return generic.Scope{Tenant: tenant, Actor: actor}
}

func (f *fixture) at(ts time.Time) {
	f.svc.Clock = generic.FixedClock{At: ts}
}

// draft creates the employee's sheet for week 40 of 2025 plus one task-a line
// per value, Monday first.
func (f *fixture) draft(t *testing.T, perDay ...float64) *generic.Timesheet {
	t.Helper()
	return f.draftFor(t, employee, 2025, 40, perDay...)
}

func (f *fixture) draftFor(t *testing.T, who generic.UserID, year, week int, perDay ...float64) *generic.Timesheet {
	t.Helper()
	ts, err := f.svc.Create(f.ctx, f.as(who), who, year, week)
	require.NoError(t, err)

	monday := generic.MondayOf(year, week)
	for i, h := range perDay {
		ts, err = f.svc.UpsertLine(f.ctx, f.as(who), ts.ID, timesheet.LineInput{
			TaskID: taskA,
			Day:    monday.AddDays(i),
			Hours:  hours(h),
		})
		require.NoError(t, err)
	}
	return ts
}

// inStatus walks a fresh sheet for the given week to status.
func (f *fixture) inStatus(t *testing.T, week int, status generic.Status) *generic.Timesheet {
	t.Helper()
	ts := f.draftFor(t, employee, 2025, week, 8)
	if status == generic.StatusDraft {
		return ts
	}

	var err error
	ts, err = f.svc.Submit(f.ctx, f.as(employee), ts.ID)
	require.NoError(t, err)

	switch status {
	case generic.StatusRefused:
		ts, err = f.svc.Refuse(f.ctx, f.as(manager), ts.ID)
	case generic.StatusApproved:
		ts, err = f.svc.Approve(f.ctx, f.as(manager), ts.ID)
	case generic.StatusSealed:
		ts, err = f.svc.Approve(f.ctx, f.as(manager), ts.ID)
		require.NoError(t, err)
		ts, err = f.svc.Seal(f.ctx, f.as(manager), ts.ID, timesheet.SealManual)
	}
	require.NoError(t, err)
	require.Equal(t, status, ts.Status)
	return ts
}

func (f *fixture) ledgerRows(t *testing.T, id generic.TimesheetID) []generic.LedgerEntry {
	t.Helper()
	rows, err := f.store.EntriesByPrefix(f.ctx, tenant, generic.ImportPrefix(id))
	require.NoError(t, err)
	return rows
}

func (f *fixture) taskDuration(t *testing.T, id generic.TaskID) int64 {
	t.Helper()
	task, err := f.store.GetTask(f.ctx, tenant, id)
	require.NoError(t, err)
	return task.DurationEffective
}
