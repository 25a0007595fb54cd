package generic

import (
	"strings"
	"time"
)

// =============================================================================
// STATUS - Lifecycle states of a timesheet
// =============================================================================

// Status values are persisted as integers and must stay stable.
type Status int

const (
	StatusDraft     Status = 0
	StatusSubmitted Status = 1
	StatusApproved  Status = 4
	StatusRefused   Status = 6
	StatusSealed    Status = 8
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusSubmitted:
		return "submitted"
	case StatusApproved:
		return "approved"
	case StatusRefused:
		return "refused"
	case StatusSealed:
		return "sealed"
	default:
		return "unknown"
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRefused, StatusSealed:
		return true
	}
	return false
}

// ParseStatus accepts the names returned by String.
func ParseStatus(name string) (Status, bool) {
	for _, s := range []Status{StatusDraft, StatusSubmitted, StatusApproved, StatusRefused, StatusSealed} {
		if strings.EqualFold(s.String(), name) {
			return s, true
		}
	}
	return 0, false
}

// Editable reports whether lines and draft fields may change in this state.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRefused
}

// =============================================================================
// TIMESHEET - Weekly header
// =============================================================================

// ProvisionalRefPrefix marks references assigned at creation, before a
// definitive number is drawn on first submission.
const ProvisionalRefPrefix = "(PROV"

type Timesheet struct {
	ID         TimesheetID
	Tenant     TenantID
	Ref        string
	EmployeeID UserID
	Year       int
	Week       int
	Status     Status
	Note       string

	ValidatorID UserID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ValidatedAt *time.Time

	TotalHours    Amount
	OvertimeHours Amount
	ContractHours Amount
	ZoneCounts    [5]int // days per zone, index 0 is zone 1
	MealCount     int

	ReportTemplate string

	// Version increments on every header write; updates are conditional on it.
	Version int
}

func (t *Timesheet) HasProvisionalRef() bool {
	return t.Ref == "" || strings.HasPrefix(t.Ref, ProvisionalRefPrefix)
}

// Monday returns the first day of the sheet's ISO week.
func (t *Timesheet) Monday() Day { return MondayOf(t.Year, t.Week) }

// =============================================================================
// LINE - Hours for one task on one day
// =============================================================================

type Line struct {
	ID          LineID
	TimesheetID TimesheetID
	TaskID      TaskID
	Day         Day
	Hours       Amount
	Zone        int // 0 = none, 1..5
	Meal        bool
}

const MaxZone = 5

// =============================================================================
// DIRECTORY RECORDS - Employees and tasks owned by collaborators
// =============================================================================

type Employee struct {
	ID          UserID
	Tenant      TenantID
	Name        string
	WeeklyHours *Amount // contracted weekly hours, nil when unset
	HourlyRate  *Amount // nil when unset
}

type Task struct {
	ID                TaskID
	Tenant            TenantID
	Label             string
	DurationEffective int64 // seconds, sum of ledger rows
}

// TimesheetFilter narrows List queries. Zero fields do not filter.
type TimesheetFilter struct {
	EmployeeID UserID
	Status     *Status
	Year       int
	Week       int
	Limit      int
}
