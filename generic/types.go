/*
Package generic provides the shared vocabulary of the timesheet engine.

PURPOSE:
  This package holds the types every other package speaks: decimal hour
  amounts, tenant-scoped identifiers, the explicit operation Scope, the
  timesheet and line records, calendar days and ISO weeks, errors, store
  interfaces, ledger entries and lifecycle events. It has no behaviour of
  its own beyond small helpers; the lifecycle engine lives in package
  timesheet.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit (hours on sheets, seconds in the ledger)
  - Scope: Tenant + acting user, passed explicitly into every operation
  - Clock: Injected time source (tests freeze it)
  - Identifiers: Type-safe string IDs

DESIGN PRINCIPLES:
  1. Precision: Hours use decimal.Decimal, never float64 arithmetic
  2. Explicit context: No ambient tenant, user or clock
  3. Type Safety: Distinct ID types prevent mixing tasks and sheets

USAGE:
  scope := generic.Scope{Tenant: "acme", Actor: "u-manager"}
  eight := generic.NewHours(8)
  total := eight.Add(generic.NewHours(1.5))

SEE ALSO:
  - records.go: Timesheet and Line records
  - store.go: Persistence interfaces
  - ledger.go: Time ledger entries and import keys
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours   Unit = "hours"
	UnitSeconds Unit = "seconds"
)

var secondsPerHour = decimal.NewFromInt(3600)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewHours(value float64) Amount { return NewAmount(value, UnitHours) }

func ZeroHours() Amount { return Amount{Value: decimal.Zero, Unit: UnitHours} }

// ParseHours parses a decimal hour string such as "7.5".
func ParseHours(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid hours %q: %w", s, err)
	}
	return Amount{Value: d, Unit: UnitHours}, nil
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) String() string            { return a.Value.String() }

// ClampZero returns a, or zero when a is negative.
func (a Amount) ClampZero() Amount {
	if a.IsNegative() {
		return a.Zero()
	}
	return a
}

// Seconds converts an hour amount to whole seconds, rounding half away from zero.
func (a Amount) Seconds() int64 {
	if a.Unit == UnitSeconds {
		return a.Value.Round(0).IntPart()
	}
	return a.Value.Mul(secondsPerHour).Round(0).IntPart()
}

// FormatDuration renders seconds as "8h00", the way ledger notes display durations.
func FormatDuration(seconds int64) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	minutes := (seconds + 30) / 60
	return fmt.Sprintf("%s%dh%02d", sign, minutes/60, minutes%60)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type UserID string
type TimesheetID string
type LineID string
type TaskID string

// =============================================================================
// SCOPE - Explicit operation context
// =============================================================================

// Scope carries the tenant and acting user of an operation. Every core
// operation and every store call is bound to exactly one tenant.
type Scope struct {
	Tenant TenantID
	Actor  UserID
}

func (s Scope) Validate() error {
	if s.Tenant == "" {
		return ErrMissingTenant
	}
	if s.Actor == "" {
		return ErrMissingActor
	}
	return nil
}

// =============================================================================
// CLOCK
// =============================================================================

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC, truncated to the second.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Second) }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
