package timesheet

import (
	"context"
	"fmt"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// LINE EDITS - Draft and Refused sheets only
// =============================================================================

var maxDailyHours = generic.NewHours(24)

// LineInput sets the hours of one task on one day. Zero hours remove the
// entry.
type LineInput struct {
	TaskID generic.TaskID
	Day    generic.Day
	Hours  generic.Amount
	Zone   int
	Meal   bool
}

func (in LineInput) validate(ts *generic.Timesheet) error {
	switch {
	case in.TaskID == "":
		return &generic.LineError{Field: "task", Reason: "required"}
	case in.Day.IsZero():
		return &generic.LineError{Field: "day", Reason: "required"}
	case !in.Day.InISOWeek(ts.Year, ts.Week):
		return &generic.LineError{Field: "day", Reason: fmt.Sprintf("%s is outside week %04d-W%02d", in.Day, ts.Year, ts.Week)}
	case in.Hours.IsNegative() || in.Hours.GreaterThan(maxDailyHours):
		return &generic.LineError{Field: "hours", Reason: "must be between 0 and 24"}
	case in.Zone < 0 || in.Zone > generic.MaxZone:
		return &generic.LineError{Field: "zone", Reason: fmt.Sprintf("must be between 0 and %d", generic.MaxZone)}
	}
	return nil
}

// UpsertLine writes the (task, day) entry of an editable sheet and refreshes
// its totals.
func (s *Service) UpsertLine(ctx context.Context, scope generic.Scope, id generic.TimesheetID, in LineInput) (*generic.Timesheet, error) {
	return s.edit(ctx, scope, id, func(st generic.Store, ts *generic.Timesheet) error {
		if err := in.validate(ts); err != nil {
			return err
		}
		if _, err := st.GetTask(ctx, scope.Tenant, in.TaskID); err != nil {
			return generic.Persistence("read task", err)
		}
		if in.Hours.IsZero() {
			if err := st.DeleteLineAt(ctx, scope.Tenant, ts.ID, in.TaskID, in.Day); err != nil {
				return generic.Persistence("delete line", err)
			}
			return nil
		}
		_, err := st.UpsertLine(ctx, scope.Tenant, generic.Line{
			TimesheetID: ts.ID,
			TaskID:      in.TaskID,
			Day:         in.Day,
			Hours:       generic.Amount{Value: in.Hours.Value, Unit: generic.UnitHours},
			Zone:        in.Zone,
			Meal:        in.Meal,
		})
		return generic.Persistence("upsert line", err)
	})
}

func (s *Service) DeleteLine(ctx context.Context, scope generic.Scope, id generic.TimesheetID, lineID generic.LineID) (*generic.Timesheet, error) {
	return s.edit(ctx, scope, id, func(st generic.Store, ts *generic.Timesheet) error {
		return generic.Persistence("delete line", st.DeleteLine(ctx, scope.Tenant, ts.ID, lineID))
	})
}

// DraftUpdate changes the free fields of an editable sheet. Nil fields are
// left alone.
type DraftUpdate struct {
	Note           *string
	ReportTemplate *string
}

func (s *Service) UpdateDraft(ctx context.Context, scope generic.Scope, id generic.TimesheetID, upd DraftUpdate) (*generic.Timesheet, error) {
	return s.edit(ctx, scope, id, func(_ generic.Store, ts *generic.Timesheet) error {
		if upd.Note != nil {
			ts.Note = *upd.Note
		}
		if upd.ReportTemplate != nil {
			ts.ReportTemplate = *upd.ReportTemplate
		}
		return nil
	})
}

// edit applies fn to an editable sheet, then recomputes and persists its
// totals. Overtime uses the resolved contract hours without storing them;
// the snapshot happens on submit.
func (s *Service) edit(
	ctx context.Context,
	scope generic.Scope,
	id generic.TimesheetID,
	fn func(st generic.Store, ts *generic.Timesheet) error,
) (*generic.Timesheet, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var result *generic.Timesheet
	err := s.Store.WithTx(ctx, func(st generic.Store) error {
		ts, err := st.GetTimesheet(ctx, scope.Tenant, id)
		if err != nil {
			return generic.Persistence("load timesheet", err)
		}
		if !ts.Status.Editable() {
			return fmt.Errorf("%w (%s)", generic.ErrSheetNotEditable, ts.Status)
		}
		version := ts.Version

		if err := fn(st, ts); err != nil {
			return err
		}

		lines, err := st.Lines(ctx, scope.Tenant, ts.ID)
		if err != nil {
			return generic.Persistence("list lines", err)
		}
		if err := s.applyTotals(ctx, st, ts, lines, false); err != nil {
			return err
		}

		ts.UpdatedAt = s.now().Now()
		if err := st.UpdateTimesheet(ctx, *ts, version); err != nil {
			return generic.Persistence("update timesheet", err)
		}
		ts.Version = version + 1
		result = ts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
