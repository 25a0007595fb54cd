package generic

import (
	"context"
	"time"
)

// =============================================================================
// LIFECYCLE EVENTS
// =============================================================================

type EventCode string

const (
	EventCreate  EventCode = "TIMESHEET_CREATE"
	EventSubmit  EventCode = "TIMESHEET_SUBMIT"
	EventApprove EventCode = "TIMESHEET_APPROVE"
	EventRefuse  EventCode = "TIMESHEET_REFUSE"
	EventSeal    EventCode = "TIMESHEET_SEAL"
	EventUnseal  EventCode = "TIMESHEET_UNSEAL"
	EventRevert  EventCode = "TIMESHEET_REVERT"
	EventDelete  EventCode = "TIMESHEET_DELETE"
)

// Event is emitted once per successful transition, before commit.
type Event struct {
	Code        EventCode
	Tenant      TenantID
	TimesheetID TimesheetID
	ActorID     UserID
	Params      map[string]string // label parameters: ref, statuses, counts
	At          time.Time
}

//go:generate mockgen -destination=../timesheet/mocks/event_sink.go -package=mocks . EventSink

// EventSink receives lifecycle events. An error aborts the transition that
// emitted the event.
type EventSink interface {
	OnTimesheetEvent(ctx context.Context, ev Event) error
}

// =============================================================================
// AUDIT ENTRIES
// =============================================================================

type AuditEntry struct {
	ID          string
	Tenant      TenantID
	Code        EventCode
	TimesheetID TimesheetID
	ActorID     UserID
	Params      map[string]string
	CreatedAt   time.Time
}

func AuditEntryFor(id string, ev Event) AuditEntry {
	return AuditEntry{
		ID:          id,
		Tenant:      ev.Tenant,
		Code:        ev.Code,
		TimesheetID: ev.TimesheetID,
		ActorID:     ev.ActorID,
		Params:      ev.Params,
		CreatedAt:   ev.At,
	}
}
