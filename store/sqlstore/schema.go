package sqlstore

import (
	"context"
	"strings"
)

const schema = `
	-- Timesheet headers
	CREATE TABLE IF NOT EXISTS timesheet (
		id TEXT PRIMARY KEY,
		entity TEXT NOT NULL,
		ref TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		week INTEGER NOT NULL,
		status INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		validator_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		validated_at TEXT,
		total_hours TEXT NOT NULL DEFAULT '0',
		overtime_hours TEXT NOT NULL DEFAULT '0',
		contract_hours TEXT NOT NULL DEFAULT '0',
		zone1_count INTEGER NOT NULL DEFAULT 0,
		zone2_count INTEGER NOT NULL DEFAULT 0,
		zone3_count INTEGER NOT NULL DEFAULT 0,
		zone4_count INTEGER NOT NULL DEFAULT 0,
		zone5_count INTEGER NOT NULL DEFAULT 0,
		meal_count INTEGER NOT NULL DEFAULT 0,
		report_template TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1
	);

	-- One sheet per employee and ISO week
	CREATE UNIQUE INDEX IF NOT EXISTS idx_timesheet_employee_week
		ON timesheet(entity, employee_id, year, week);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_timesheet_ref
		ON timesheet(entity, ref);
	-- AutoSeal candidate scan
	CREATE INDEX IF NOT EXISTS idx_timesheet_status_validated
		ON timesheet(entity, status, validated_at);

	-- Lines, one per (sheet, task, day)
	CREATE TABLE IF NOT EXISTS timesheet_line (
		seq {{serial}},
		id TEXT NOT NULL UNIQUE,
		timesheet_id TEXT NOT NULL REFERENCES timesheet(id) ON DELETE CASCADE,
		task_id TEXT NOT NULL,
		day_date TEXT NOT NULL,
		hours TEXT NOT NULL,
		zone INTEGER NOT NULL DEFAULT 0,
		meal INTEGER NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_line_task_day
		ON timesheet_line(timesheet_id, task_id, day_date);

	-- External time ledger
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		entity TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		day TEXT NOT NULL,
		duration_seconds {{bigint}} NOT NULL,
		hourly_rate TEXT,
		note TEXT NOT NULL DEFAULT '',
		import_key TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_time_entries_task
		ON time_entries(entity, task_id);

	-- Directory
	CREATE TABLE IF NOT EXISTS employees (
		entity TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		weekly_hours TEXT,
		hourly_rate TEXT,
		PRIMARY KEY (entity, id)
	);

	CREATE TABLE IF NOT EXISTS tasks (
		entity TEXT NOT NULL,
		id TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		duration_effective {{bigint}} NOT NULL DEFAULT 0,
		PRIMARY KEY (entity, id)
	);

	-- Per-tenant configuration
	CREATE TABLE IF NOT EXISTS settings (
		entity TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (entity, name)
	);

	CREATE TABLE IF NOT EXISTS counters (
		entity TEXT NOT NULL,
		name TEXT NOT NULL,
		value {{bigint}} NOT NULL,
		PRIMARY KEY (entity, name)
	);

	-- Lifecycle audit trail
	CREATE TABLE IF NOT EXISTS audit_events (
		seq {{serial}},
		id TEXT NOT NULL UNIQUE,
		entity TEXT NOT NULL,
		code TEXT NOT NULL,
		timesheet_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		params_json TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timesheet
		ON audit_events(entity, timesheet_id);
`

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := strings.NewReplacer("{{serial}}", s.d.serialPK, "{{bigint}}", s.d.bigint).Replace(schema)
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}
