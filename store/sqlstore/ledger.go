package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// LEDGER - time_entries
// =============================================================================

func (c *conn) InsertEntry(ctx context.Context, e generic.LedgerEntry) error {
	_, err := c.exec(ctx, `
		INSERT INTO time_entries (id, entity, employee_id, task_id, day, duration_seconds,
			hourly_rate, note, import_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.Tenant, e.EmployeeID, e.TaskID, generic.DayOf(e.Day).String(), e.DurationSeconds,
		nullAmount(e.HourlyRate), e.Note, e.ImportKey, generic.FormatTimestamp(e.CreatedAt),
	)
	if _, dup := uniqueViolation(err); dup {
		return generic.ErrDuplicateImportKey
	}
	return err
}

func (c *conn) DeleteEntriesByPrefix(ctx context.Context, tenant generic.TenantID, prefix string) (int, error) {
	res, err := c.exec(ctx, `
		DELETE FROM time_entries WHERE entity = ? AND import_key LIKE ? ESCAPE '\'
	`, tenant, escapeLike(prefix)+"%")
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (c *conn) EntriesByPrefix(ctx context.Context, tenant generic.TenantID, prefix string) ([]generic.LedgerEntry, error) {
	rows, err := c.query(ctx, `
		SELECT id, entity, employee_id, task_id, day, duration_seconds, hourly_rate, note, import_key, created_at
		FROM time_entries
		WHERE entity = ? AND import_key LIKE ? ESCAPE '\'
		ORDER BY day, import_key
	`, tenant, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []generic.LedgerEntry
	for rows.Next() {
		var (
			e              generic.LedgerEntry
			day, createdAt string
			rate           sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Tenant, &e.EmployeeID, &e.TaskID, &day, &e.DurationSeconds,
			&rate, &e.Note, &e.ImportKey, &createdAt); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(e.ImportKey, prefix) {
			continue
		}
		if d, err := generic.ParseDay(day); err == nil {
			e.Day = d.Time
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.HourlyRate = parseNullHours(rate)
		result = append(result, e)
	}
	return result, rows.Err()
}

func (c *conn) SumDurationByTask(ctx context.Context, tenant generic.TenantID, task generic.TaskID) (int64, error) {
	var sum int64
	err := c.queryRow(ctx, `
		SELECT COALESCE(SUM(duration_seconds), 0) FROM time_entries WHERE entity = ? AND task_id = ?
	`, tenant, task).Scan(&sum)
	return sum, err
}
