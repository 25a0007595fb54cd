package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// DIRECTORY - employees and tasks
// =============================================================================

func (c *conn) SaveEmployee(ctx context.Context, e generic.Employee) error {
	_, err := c.exec(ctx, `
		INSERT INTO employees (entity, id, name, weekly_hours, hourly_rate)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity, id) DO UPDATE SET
			name = excluded.name, weekly_hours = excluded.weekly_hours, hourly_rate = excluded.hourly_rate
	`, e.Tenant, e.ID, e.Name, nullAmount(e.WeeklyHours), nullAmount(e.HourlyRate))
	return err
}

func (c *conn) GetEmployee(ctx context.Context, tenant generic.TenantID, id generic.UserID) (*generic.Employee, error) {
	var (
		e            generic.Employee
		weekly, rate sql.NullString
	)
	err := c.queryRow(ctx, `
		SELECT entity, id, name, weekly_hours, hourly_rate FROM employees WHERE entity = ? AND id = ?
	`, tenant, id).Scan(&e.Tenant, &e.ID, &e.Name, &weekly, &rate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	e.WeeklyHours = parseNullHours(weekly)
	e.HourlyRate = parseNullHours(rate)
	return &e, nil
}

func (c *conn) SaveTask(ctx context.Context, t generic.Task) error {
	_, err := c.exec(ctx, `
		INSERT INTO tasks (entity, id, label, duration_effective)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entity, id) DO UPDATE SET label = excluded.label
	`, t.Tenant, t.ID, t.Label, t.DurationEffective)
	return err
}

func (c *conn) GetTask(ctx context.Context, tenant generic.TenantID, id generic.TaskID) (*generic.Task, error) {
	var t generic.Task
	err := c.queryRow(ctx, `
		SELECT entity, id, label, duration_effective FROM tasks WHERE entity = ? AND id = ?
	`, tenant, id).Scan(&t.Tenant, &t.ID, &t.Label, &t.DurationEffective)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *conn) SetTaskDuration(ctx context.Context, tenant generic.TenantID, id generic.TaskID, seconds int64) error {
	res, err := c.exec(ctx, `
		UPDATE tasks SET duration_effective = ? WHERE entity = ? AND id = ?
	`, seconds, tenant, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return generic.ErrTaskNotFound
	}
	return nil
}
