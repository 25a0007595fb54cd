/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract:
  - Decimal hours travel as strings ("37.5"), never as floats
  - Statuses travel by name ("approved"), not by stored integer
  - Days use yyyy-mm-dd, timestamps RFC 3339

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Field-level parsing (days, hours) happens in the toX helpers below.
  Business rules stay in the timesheet package.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"time"

	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// TIMESHEETS
// =============================================================================

type TimesheetDTO struct {
	ID             string    `json:"id"`
	Ref            string    `json:"ref"`
	EmployeeID     string    `json:"employee_id"`
	Year           int       `json:"year"`
	Week           int       `json:"week"`
	Status         string    `json:"status"`
	Note           string    `json:"note,omitempty"`
	ValidatorID    string    `json:"validator_id,omitempty"`
	CreatedAt      string    `json:"created_at"`
	UpdatedAt      string    `json:"updated_at"`
	ValidatedAt    *string   `json:"validated_at,omitempty"`
	TotalHours     string    `json:"total_hours"`
	OvertimeHours  string    `json:"overtime_hours"`
	ContractHours  string    `json:"contract_hours"`
	ZoneCounts     [5]int    `json:"zone_counts"`
	MealCount      int       `json:"meal_count"`
	ReportTemplate string    `json:"report_template,omitempty"`
	Version        int       `json:"version"`
	Lines          []LineDTO `json:"lines,omitempty"`
}

type LineDTO struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
	Day    string `json:"day"`
	Hours  string `json:"hours"`
	Zone   int    `json:"zone"`
	Meal   bool   `json:"meal"`
}

type CreateTimesheetRequest struct {
	EmployeeID string `json:"employee_id"` // empty means the caller
	Year       int    `json:"year"`
	Week       int    `json:"week"`
}

type UpsertLineRequest struct {
	TaskID string `json:"task_id"`
	Day    string `json:"day"`   // yyyy-mm-dd
	Hours  string `json:"hours"` // decimal, "0" removes the line
	Zone   int    `json:"zone"`
	Meal   bool   `json:"meal"`
}

type UpdateDraftRequest struct {
	Note           *string `json:"note"`
	ReportTemplate *string `json:"report_template"`
}

type AuditEntryDTO struct {
	Code      string            `json:"code"`
	ActorID   string            `json:"actor_id"`
	Params    map[string]string `json:"params,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// =============================================================================
// ADMIN
// =============================================================================

type SettingDTO struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Set   bool   `json:"set"`
}

type SetSettingRequest struct {
	Value string `json:"value"`
}

type EmployeeRequest struct {
	Name        string `json:"name"`
	WeeklyHours string `json:"weekly_hours,omitempty"`
	HourlyRate  string `json:"hourly_rate,omitempty"`
}

type TaskRequest struct {
	Label string `json:"label"`
}

type AutoSealResultDTO struct {
	Sealed  int `json:"sealed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toTimesheetDTO(ts *generic.Timesheet, lines []generic.Line) TimesheetDTO {
	dto := TimesheetDTO{
		ID:             string(ts.ID),
		Ref:            ts.Ref,
		EmployeeID:     string(ts.EmployeeID),
		Year:           ts.Year,
		Week:           ts.Week,
		Status:         ts.Status.String(),
		Note:           ts.Note,
		ValidatorID:    string(ts.ValidatorID),
		CreatedAt:      ts.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      ts.UpdatedAt.Format(time.RFC3339),
		TotalHours:     ts.TotalHours.String(),
		OvertimeHours:  ts.OvertimeHours.String(),
		ContractHours:  ts.ContractHours.String(),
		ZoneCounts:     ts.ZoneCounts,
		MealCount:      ts.MealCount,
		ReportTemplate: ts.ReportTemplate,
		Version:        ts.Version,
	}
	if ts.ValidatedAt != nil {
		at := ts.ValidatedAt.Format(time.RFC3339)
		dto.ValidatedAt = &at
	}
	for _, l := range lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ID:     string(l.ID),
			TaskID: string(l.TaskID),
			Day:    l.Day.String(),
			Hours:  l.Hours.String(),
			Zone:   l.Zone,
			Meal:   l.Meal,
		})
	}
	return dto
}

func toTimesheetDTOs(list []generic.Timesheet) []TimesheetDTO {
	dtos := make([]TimesheetDTO, len(list))
	for i := range list {
		dtos[i] = toTimesheetDTO(&list[i], nil)
	}
	return dtos
}

func toAuditDTOs(trail []generic.AuditEntry) []AuditEntryDTO {
	dtos := make([]AuditEntryDTO, len(trail))
	for i, e := range trail {
		dtos[i] = AuditEntryDTO{
			Code:      string(e.Code),
			ActorID:   string(e.ActorID),
			Params:    e.Params,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}

func (req UpsertLineRequest) toInput() (timesheet.LineInput, error) {
	day, err := generic.ParseDay(req.Day)
	if err != nil {
		return timesheet.LineInput{}, &generic.LineError{Field: "day", Reason: fmt.Sprintf("invalid date %q", req.Day)}
	}
	hours, err := generic.ParseHours(req.Hours)
	if err != nil {
		return timesheet.LineInput{}, &generic.LineError{Field: "hours", Reason: fmt.Sprintf("invalid number %q", req.Hours)}
	}
	return timesheet.LineInput{
		TaskID: generic.TaskID(req.TaskID),
		Day:    day,
		Hours:  hours,
		Zone:   req.Zone,
		Meal:   req.Meal,
	}, nil
}

func optionalHours(s string) (*generic.Amount, error) {
	if s == "" {
		return nil, nil
	}
	h, err := generic.ParseHours(s)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
