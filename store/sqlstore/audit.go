package sqlstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// AUDIT
// =============================================================================

func (c *conn) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	params, err := json.Marshal(e.Params)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, `
		INSERT INTO audit_events (id, entity, code, timesheet_id, actor_id, params_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Tenant, e.Code, e.TimesheetID, e.ActorID, string(params), generic.FormatTimestamp(e.CreatedAt))
	return err
}

func (c *conn) AuditTrail(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) ([]generic.AuditEntry, error) {
	rows, err := c.query(ctx, `
		SELECT id, entity, code, timesheet_id, actor_id, params_json, created_at
		FROM audit_events
		WHERE entity = ? AND timesheet_id = ?
		ORDER BY seq
	`, tenant, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trail []generic.AuditEntry
	for rows.Next() {
		var (
			e                 generic.AuditEntry
			params, createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Tenant, &e.Code, &e.TimesheetID, &e.ActorID, &params, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &e.Params); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		trail = append(trail, e)
	}
	return trail, rows.Err()
}
