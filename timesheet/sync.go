/*
sync.go - Replicates approved hours into the time ledger

PURPOSE:
  Approval copies every line with hours into the external time ledger and
  refreshes the effective duration of every task involved.

IDEMPOTENCY:
  All rows of a sheet share one import-key prefix derived from the sheet id.
  Sync deletes that prefix, then inserts one row per line. Running it any
  number of times leaves exactly one row per line with hours.

TASK DURATIONS:
  A task's effective duration is recomputed as the sum of every ledger row
  on the task, from any sheet. It is never incremented.

FAILURE:
  Every error is returned as-is. Sync runs inside the approve transaction,
  so the caller's rollback undoes the partial replication.
*/
package timesheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/timesheet-engine/generic"
)

// LedgerSync writes approved sheets into the ledger.
type LedgerSync struct {
	Clock generic.Clock
}

// SyncResult counts what one Sync call did.
type SyncResult struct {
	Removed  int
	Inserted int
	Tasks    int
}

// Sync replaces the ledger rows of ts with one row per line that has hours.
func (ls LedgerSync) Sync(ctx context.Context, st generic.Store, ts *generic.Timesheet, lines []generic.Line) (SyncResult, error) {
	var res SyncResult
	prefix := generic.ImportPrefix(ts.ID)

	// Tasks of the rows being replaced need their duration refreshed too,
	// even when the line that produced them is gone.
	previous, err := st.EntriesByPrefix(ctx, ts.Tenant, prefix)
	if err != nil {
		return res, generic.Persistence("list ledger rows", err)
	}
	var tasks []generic.TaskID
	seen := make(map[generic.TaskID]bool)
	track := func(id generic.TaskID) {
		if !seen[id] {
			seen[id] = true
			tasks = append(tasks, id)
		}
	}
	for _, e := range previous {
		track(e.TaskID)
	}

	if res.Removed, err = st.DeleteEntriesByPrefix(ctx, ts.Tenant, prefix); err != nil {
		return res, generic.Persistence("delete ledger rows", err)
	}

	rate, err := hourlyRate(ctx, st, ts)
	if err != nil {
		return res, err
	}

	now := ls.clock().Now()
	for _, l := range lines {
		seconds := l.Hours.Seconds()
		if seconds <= 0 {
			continue
		}
		entry := generic.LedgerEntry{
			ID:              uuid.NewString(),
			Tenant:          ts.Tenant,
			EmployeeID:      ts.EmployeeID,
			TaskID:          l.TaskID,
			Day:             l.Day.Time,
			DurationSeconds: seconds,
			HourlyRate:      rate,
			Note:            fmt.Sprintf("%s - %s - %s", ts.Ref, l.Day, generic.FormatDuration(seconds)),
			ImportKey:       generic.ImportKey(ts.ID, l.ID),
			CreatedAt:       now,
		}
		if err := st.InsertEntry(ctx, entry); err != nil {
			return res, generic.Persistence("insert ledger row", err)
		}
		res.Inserted++
		track(l.TaskID)
	}

	if err := RecomputeTaskDurations(ctx, st, ts.Tenant, tasks); err != nil {
		return res, err
	}
	res.Tasks = len(tasks)
	return res, nil
}

func (ls LedgerSync) clock() generic.Clock {
	if ls.Clock != nil {
		return ls.Clock
	}
	return generic.SystemClock{}
}

// hourlyRate is the employee's configured rate, or nil when there is none.
func hourlyRate(ctx context.Context, st generic.Store, ts *generic.Timesheet) (*generic.Amount, error) {
	emp, err := st.GetEmployee(ctx, ts.Tenant, ts.EmployeeID)
	if generic.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, generic.Persistence("read employee rate", err)
	}
	return emp.HourlyRate, nil
}

// RecomputeTaskDurations sets each task's effective duration to the sum of
// its ledger rows. Tasks removed from the directory are skipped.
func RecomputeTaskDurations(ctx context.Context, st generic.Store, tenant generic.TenantID, tasks []generic.TaskID) error {
	for _, task := range tasks {
		sum, err := st.SumDurationByTask(ctx, tenant, task)
		if err != nil {
			return generic.Persistence("sum task duration", err)
		}
		err = st.SetTaskDuration(ctx, tenant, task, sum)
		if errors.Is(err, generic.ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return generic.Persistence("set task duration", err)
		}
	}
	return nil
}

// lineTasks lists the distinct tasks of lines, in first-seen order.
func lineTasks(lines []generic.Line) []generic.TaskID {
	var tasks []generic.TaskID
	seen := make(map[generic.TaskID]bool)
	for _, l := range lines {
		if !seen[l.TaskID] {
			seen[l.TaskID] = true
			tasks = append(tasks, l.TaskID)
		}
	}
	return tasks
}
