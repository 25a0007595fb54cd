/*
ledger.go - Time ledger rows fed from approved timesheets

PURPOSE:
  The ledger is the external time-entry store read by billing and project
  costing. Approved sheets replicate one row per line with hours into it.

IDEMPOTENCY:
  Every row carries an import key derived only from the sheet id and the
  line id:

    tsw<hash(sheet)[:10]>-<hash(sheet:line)[:16]>

  All rows of one sheet share the `tsw<hash(sheet)[:10]>-` prefix, so a
  re-approval deletes that prefix and re-inserts. Replaying the sync never
  duplicates rows.

SEE ALSO:
  - store.go: LedgerStore
  - timesheet/sync.go: The synchronizer
*/
package generic

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const importKeyTag = "tsw"

// LedgerEntry is one row of the external time ledger.
type LedgerEntry struct {
	ID              string
	Tenant          TenantID
	EmployeeID      UserID
	TaskID          TaskID
	Day             time.Time
	DurationSeconds int64
	HourlyRate      *Amount // best effort, nil when unknown
	Note            string
	ImportKey       string
	CreatedAt       time.Time
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ImportPrefix is shared by every ledger row produced from the sheet.
func ImportPrefix(sheet TimesheetID) string {
	return importKeyTag + digest(string(sheet))[:10] + "-"
}

// ImportKey identifies the ledger row produced from one line of the sheet.
func ImportKey(sheet TimesheetID, line LineID) string {
	return ImportPrefix(sheet) + digest(string(sheet)+":"+string(line))[:16]
}
