package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar date without time of day
// =============================================================================

const DayLayout = "2006-01-02"

// Day is a calendar date normalized to midnight UTC.
type Day struct {
	Time time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf drops the time of day of t, keeping t's calendar date.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q (use YYYY-MM-DD): %w", s, err)
	}
	return DayOf(t), nil
}

func (d Day) Before(other Day) bool     { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool      { return d.Time.After(other.Time) }
func (d Day) Equal(other Day) bool      { return d.Time.Equal(other.Time) }
func (d Day) AddDays(n int) Day         { return Day{Time: d.Time.AddDate(0, 0, n)} }
func (d Day) Weekday() time.Weekday     { return d.Time.Weekday() }
func (d Day) IsZero() bool              { return d.Time.IsZero() }
func (d Day) String() string            { return d.Time.Format(DayLayout) }
func (d Day) ISOWeek() (year, week int) { return d.Time.ISOWeek() }

// =============================================================================
// ISO WEEKS
// =============================================================================

// MondayOf returns the Monday starting ISO week `week` of ISO year `year`.
// January 4th always falls in week 1.
func MondayOf(year, week int) Day {
	jan4 := NewDay(year, time.January, 4)
	offset := (int(jan4.Weekday()) + 6) % 7 // days since Monday
	return jan4.AddDays(-offset + (week-1)*7)
}

// WeeksInYear returns 52 or 53. December 28th is always in the last ISO week.
func WeeksInYear(year int) int {
	_, w := NewDay(year, time.December, 28).ISOWeek()
	return w
}

func ValidISOWeek(year, week int) bool {
	return year >= 1970 && year <= 9999 && week >= 1 && week <= WeeksInYear(year)
}

// InISOWeek reports whether d belongs to the given ISO week.
func (d Day) InISOWeek(year, week int) bool {
	y, w := d.ISOWeek()
	return y == year && w == week
}

// FormatTimestamp renders an instant the way stores persist it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
