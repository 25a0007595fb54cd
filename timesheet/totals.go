package timesheet

import (
	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// TOTALS
// =============================================================================

// Totals is what ComputeTotals derives from a sheet's lines.
type Totals struct {
	Hours      generic.Amount
	ZoneCounts [generic.MaxZone]int
	MealCount  int
}

type dayMark struct {
	zone int
	meal bool
}

// ComputeTotals sums hours over every line and counts zones and meals per
// calendar day: several lines on one day count once, with the last non-zero
// zone seen for the day and a meal if any line of the day had one.
func ComputeTotals(lines []generic.Line) Totals {
	t := Totals{Hours: generic.ZeroHours()}
	days := make(map[string]*dayMark)
	var order []string

	for _, l := range lines {
		t.Hours = t.Hours.Add(l.Hours)

		key := l.Day.String()
		mark, ok := days[key]
		if !ok {
			mark = &dayMark{}
			days[key] = mark
			order = append(order, key)
		}
		if l.Zone != 0 {
			mark.zone = l.Zone
		}
		mark.meal = mark.meal || l.Meal
	}

	for _, key := range order {
		mark := days[key]
		if mark.zone >= 1 && mark.zone <= generic.MaxZone {
			t.ZoneCounts[mark.zone-1]++
		}
		if mark.meal {
			t.MealCount++
		}
	}
	return t
}

// Overtime is max(0, hours - contract).
func (t Totals) Overtime(contract generic.Amount) generic.Amount {
	return t.Hours.Sub(contract).ClampZero()
}

// ApplyTo writes the totals onto the header, computing overtime against
// contract.
func (t Totals) ApplyTo(ts *generic.Timesheet, contract generic.Amount) {
	ts.TotalHours = t.Hours
	ts.OvertimeHours = t.Overtime(contract)
	ts.ZoneCounts = t.ZoneCounts
	ts.MealCount = t.MealCount
}
