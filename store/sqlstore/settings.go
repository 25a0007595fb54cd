package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// SETTINGS AND COUNTERS
// =============================================================================

func (c *conn) GetSetting(ctx context.Context, tenant generic.TenantID, key string) (string, bool, error) {
	var value string
	err := c.queryRow(ctx, `SELECT value FROM settings WHERE entity = ? AND name = ?`, tenant, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *conn) SetSetting(ctx context.Context, tenant generic.TenantID, key, value string) error {
	_, err := c.exec(ctx, `
		INSERT INTO settings (entity, name, value) VALUES (?, ?, ?)
		ON CONFLICT (entity, name) DO UPDATE SET value = excluded.value
	`, tenant, key, value)
	return err
}

// NextCounter is a single upsert, so two transactions never read the same
// value: the second blocks on the row until the first commits.
func (c *conn) NextCounter(ctx context.Context, tenant generic.TenantID, name string, floor int64) (int64, error) {
	var next int64
	err := c.queryRow(ctx, `
		INSERT INTO counters (entity, name, value) VALUES (?, ?, ?)
		ON CONFLICT (entity, name) DO UPDATE SET value = CASE
			WHEN counters.value + 1 > excluded.value THEN counters.value + 1
			ELSE excluded.value
		END
		RETURNING value
	`, tenant, name, floor+1).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", name, err)
	}
	return next, nil
}
