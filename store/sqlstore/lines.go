package sqlstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// LINES - always reached through a sheet of the tenant
// =============================================================================

func (c *conn) ownsTimesheet(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) error {
	var n int
	if err := c.queryRow(ctx, `SELECT COUNT(*) FROM timesheet WHERE id = ? AND entity = ?`, id, tenant).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrTimesheetNotFound
	}
	return nil
}

func (c *conn) Lines(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) ([]generic.Line, error) {
	if err := c.ownsTimesheet(ctx, tenant, id); err != nil {
		return nil, err
	}
	rows, err := c.query(ctx, `
		SELECT l.id, l.timesheet_id, l.task_id, l.day_date, l.hours, l.zone, l.meal
		FROM timesheet_line l
		JOIN timesheet t ON t.id = l.timesheet_id
		WHERE l.timesheet_id = ? AND t.entity = ?
		ORDER BY l.day_date, l.seq
	`, id, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []generic.Line
	for rows.Next() {
		var (
			l          generic.Line
			day, hours string
			meal       int
		)
		if err := rows.Scan(&l.ID, &l.TimesheetID, &l.TaskID, &day, &hours, &l.Zone, &meal); err != nil {
			return nil, err
		}
		if l.Day, err = generic.ParseDay(day); err != nil {
			return nil, err
		}
		l.Hours = parseHours(hours)
		l.Meal = meal != 0
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (c *conn) UpsertLine(ctx context.Context, tenant generic.TenantID, line generic.Line) (generic.Line, error) {
	if err := c.ownsTimesheet(ctx, tenant, line.TimesheetID); err != nil {
		return generic.Line{}, err
	}
	if line.ID == "" {
		line.ID = generic.LineID(uuid.NewString())
	}
	meal := 0
	if line.Meal {
		meal = 1
	}

	var id generic.LineID
	err := c.queryRow(ctx, `
		INSERT INTO timesheet_line (id, timesheet_id, task_id, day_date, hours, zone, meal)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (timesheet_id, task_id, day_date)
		DO UPDATE SET hours = excluded.hours, zone = excluded.zone, meal = excluded.meal
		RETURNING id
	`, line.ID, line.TimesheetID, line.TaskID, line.Day.String(), line.Hours.String(), line.Zone, meal).Scan(&id)
	if err != nil {
		return generic.Line{}, err
	}
	line.ID = id
	return line, nil
}

func (c *conn) DeleteLineAt(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID, task generic.TaskID, day generic.Day) error {
	if err := c.ownsTimesheet(ctx, tenant, id); err != nil {
		return err
	}
	_, err := c.exec(ctx, `
		DELETE FROM timesheet_line WHERE timesheet_id = ? AND task_id = ? AND day_date = ?
	`, id, task, day.String())
	return err
}

func (c *conn) DeleteLine(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID, lineID generic.LineID) error {
	if err := c.ownsTimesheet(ctx, tenant, id); err != nil {
		return err
	}
	_, err := c.exec(ctx, `DELETE FROM timesheet_line WHERE timesheet_id = ? AND id = ?`, id, lineID)
	return err
}

func (c *conn) DeleteLines(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) error {
	if err := c.ownsTimesheet(ctx, tenant, id); err != nil {
		return err
	}
	_, err := c.exec(ctx, `DELETE FROM timesheet_line WHERE timesheet_id = ?`, id)
	return err
}
