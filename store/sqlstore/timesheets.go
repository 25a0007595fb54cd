package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// TIMESHEETS
// =============================================================================

const timesheetColumns = `id, entity, ref, employee_id, year, week, status, note, validator_id,
	created_at, updated_at, validated_at, total_hours, overtime_hours, contract_hours,
	zone1_count, zone2_count, zone3_count, zone4_count, zone5_count, meal_count,
	report_template, version`

func scanTimesheet(row scanner) (*generic.Timesheet, error) {
	var (
		ts                        generic.Timesheet
		createdAt, updatedAt      string
		validatedAt               sql.NullString
		total, overtime, contract string
	)
	err := row.Scan(
		&ts.ID, &ts.Tenant, &ts.Ref, &ts.EmployeeID, &ts.Year, &ts.Week, &ts.Status, &ts.Note, &ts.ValidatorID,
		&createdAt, &updatedAt, &validatedAt, &total, &overtime, &contract,
		&ts.ZoneCounts[0], &ts.ZoneCounts[1], &ts.ZoneCounts[2], &ts.ZoneCounts[3], &ts.ZoneCounts[4], &ts.MealCount,
		&ts.ReportTemplate, &ts.Version,
	)
	if err != nil {
		return nil, err
	}
	ts.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	ts.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if validatedAt.Valid {
		at, _ := time.Parse(time.RFC3339, validatedAt.String)
		ts.ValidatedAt = &at
	}
	ts.TotalHours = parseHours(total)
	ts.OvertimeHours = parseHours(overtime)
	ts.ContractHours = parseHours(contract)
	return &ts, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: generic.FormatTimestamp(*t), Valid: true}
}

func duplicateTimesheetError(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	if strings.Contains(constraint, "ref") {
		return generic.ErrDuplicateRef
	}
	return generic.ErrDuplicateTimesheet
}

func (c *conn) InsertTimesheet(ctx context.Context, ts generic.Timesheet) error {
	_, err := c.exec(ctx, `
		INSERT INTO timesheet (`+timesheetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ts.ID, ts.Tenant, ts.Ref, ts.EmployeeID, ts.Year, ts.Week, ts.Status, ts.Note, ts.ValidatorID,
		generic.FormatTimestamp(ts.CreatedAt), generic.FormatTimestamp(ts.UpdatedAt), nullTime(ts.ValidatedAt),
		ts.TotalHours.String(), ts.OvertimeHours.String(), ts.ContractHours.String(),
		ts.ZoneCounts[0], ts.ZoneCounts[1], ts.ZoneCounts[2], ts.ZoneCounts[3], ts.ZoneCounts[4], ts.MealCount,
		ts.ReportTemplate, ts.Version,
	)
	if err != nil {
		return duplicateTimesheetError(err)
	}
	return nil
}

func (c *conn) GetTimesheet(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) (*generic.Timesheet, error) {
	ts, err := scanTimesheet(c.queryRow(ctx, `
		SELECT `+timesheetColumns+` FROM timesheet WHERE id = ? AND entity = ?
	`, id, tenant))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrTimesheetNotFound
	}
	return ts, err
}

func (c *conn) FindTimesheet(ctx context.Context, tenant generic.TenantID, employee generic.UserID, year, week int) (*generic.Timesheet, error) {
	ts, err := scanTimesheet(c.queryRow(ctx, `
		SELECT `+timesheetColumns+` FROM timesheet
		WHERE entity = ? AND employee_id = ? AND year = ? AND week = ?
	`, tenant, employee, year, week))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ts, err
}

func (c *conn) ListTimesheets(ctx context.Context, tenant generic.TenantID, f generic.TimesheetFilter) ([]generic.Timesheet, error) {
	query := `SELECT ` + timesheetColumns + ` FROM timesheet WHERE entity = ?`
	args := []any{tenant}
	if f.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, f.EmployeeID)
	}
	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, *f.Status)
	}
	if f.Year != 0 {
		query += ` AND year = ?`
		args = append(args, f.Year)
	}
	if f.Week != 0 {
		query += ` AND week = ?`
		args = append(args, f.Week)
	}
	query += ` ORDER BY year DESC, week DESC, ref`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []generic.Timesheet
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ts)
	}
	return result, rows.Err()
}

func (c *conn) UpdateTimesheet(ctx context.Context, ts generic.Timesheet, expectedVersion int) error {
	res, err := c.exec(ctx, `
		UPDATE timesheet SET
			ref = ?, status = ?, note = ?, validator_id = ?, updated_at = ?, validated_at = ?,
			total_hours = ?, overtime_hours = ?, contract_hours = ?,
			zone1_count = ?, zone2_count = ?, zone3_count = ?, zone4_count = ?, zone5_count = ?,
			meal_count = ?, report_template = ?, version = version + 1
		WHERE id = ? AND entity = ? AND version = ?
	`,
		ts.Ref, ts.Status, ts.Note, ts.ValidatorID, generic.FormatTimestamp(ts.UpdatedAt), nullTime(ts.ValidatedAt),
		ts.TotalHours.String(), ts.OvertimeHours.String(), ts.ContractHours.String(),
		ts.ZoneCounts[0], ts.ZoneCounts[1], ts.ZoneCounts[2], ts.ZoneCounts[3], ts.ZoneCounts[4],
		ts.MealCount, ts.ReportTemplate,
		ts.ID, ts.Tenant, expectedVersion,
	)
	if err != nil {
		return duplicateTimesheetError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = c.queryRow(ctx, `SELECT COUNT(*) FROM timesheet WHERE id = ? AND entity = ?`, ts.ID, ts.Tenant).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return generic.ErrTimesheetNotFound
	}
	return generic.ErrConcurrentModification
}

func (c *conn) DeleteTimesheet(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) error {
	res, err := c.exec(ctx, `DELETE FROM timesheet WHERE id = ? AND entity = ?`, id, tenant)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return generic.ErrTimesheetNotFound
	}
	return nil
}

func (c *conn) RefsWithPrefix(ctx context.Context, tenant generic.TenantID, prefix string) ([]string, error) {
	rows, err := c.query(ctx, `
		SELECT ref FROM timesheet WHERE entity = ? AND ref LIKE ? ESCAPE '\' ORDER BY ref
	`, tenant, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		// SQLite LIKE ignores case
		if strings.HasPrefix(ref, prefix) {
			refs = append(refs, ref)
		}
	}
	return refs, rows.Err()
}

func (c *conn) ApprovedBefore(ctx context.Context, tenant generic.TenantID, cutoff time.Time) ([]generic.TimesheetID, error) {
	rows, err := c.query(ctx, `
		SELECT id FROM timesheet
		WHERE entity = ? AND status = ? AND validated_at IS NOT NULL AND validated_at < ?
		ORDER BY validated_at, id
	`, tenant, generic.StatusApproved, generic.FormatTimestamp(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []generic.TimesheetID
	for rows.Next() {
		var id generic.TimesheetID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
