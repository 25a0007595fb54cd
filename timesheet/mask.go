/*
mask.go - Reference masks for the advanced numbering strategy

SYNTAX:
  Literal text with placeholders in braces:

    {yyyy}   ISO year, 4 digits
    {yy}     ISO year, 2 digits
    {ww}     ISO week, 2 digits
    {mm}     month of the week's Monday, 2 digits
    {000}    sequence, zero-padded to the number of zeros (1 to 9)
    {000@y}  sequence restarting every ISO year
    {000@w}  sequence restarting every ISO week

  Exactly one sequence placeholder is required.

EXAMPLE:
  TS{yy}{ww}-{0000@y}  ->  TS2540-0001
*/
package timesheet

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/warp/timesheet-engine/generic"
)

type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokYear4
	tokYear2
	tokWeek
	tokMonth
	tokCounter
)

type maskToken struct {
	kind    tokenKind
	literal string
}

// Mask is a parsed reference mask.
type Mask struct {
	raw    string
	tokens []maskToken
	width  int
	reset  string // "", "y" or "w"
}

func maskError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", generic.ErrInvalidMask, fmt.Sprintf(format, args...))
}

// ParseMask validates and parses a mask.
func ParseMask(raw string) (*Mask, error) {
	m := &Mask{raw: raw}
	counters := 0
	rest := raw

	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if closing := strings.IndexByte(rest, '}'); closing >= 0 && (open < 0 || closing < open) {
			return nil, maskError("unexpected '}' in %q", raw)
		}
		if open < 0 {
			m.tokens = append(m.tokens, maskToken{kind: tokLiteral, literal: rest})
			break
		}
		if open > 0 {
			m.tokens = append(m.tokens, maskToken{kind: tokLiteral, literal: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, maskError("unclosed '{' in %q", raw)
		}
		name := rest[open+1 : open+end]
		rest = rest[open+end+1:]

		switch name {
		case "yyyy":
			m.tokens = append(m.tokens, maskToken{kind: tokYear4})
		case "yy":
			m.tokens = append(m.tokens, maskToken{kind: tokYear2})
		case "ww":
			m.tokens = append(m.tokens, maskToken{kind: tokWeek})
		case "mm":
			m.tokens = append(m.tokens, maskToken{kind: tokMonth})
		default:
			zeros, reset, _ := strings.Cut(name, "@")
			if zeros == "" || strings.Trim(zeros, "0") != "" {
				return nil, maskError("unknown placeholder {%s}", name)
			}
			if len(zeros) > 9 {
				return nil, maskError("sequence {%s} is wider than 9 digits", name)
			}
			if reset != "" && reset != "y" && reset != "w" {
				return nil, maskError("unknown reset %q in {%s}", reset, name)
			}
			counters++
			m.width, m.reset = len(zeros), reset
			m.tokens = append(m.tokens, maskToken{kind: tokCounter})
		}
	}

	if counters != 1 {
		return nil, maskError("%q needs exactly one sequence placeholder, found %d", raw, counters)
	}
	return m, nil
}

func (m *Mask) String() string { return m.raw }

// period holds the calendar values a mask renders for one sheet.
type period struct {
	year, week, month int
}

func periodOf(ts *generic.Timesheet) period {
	return period{year: ts.Year, week: ts.Week, month: int(ts.Monday().Time.Month())}
}

func (m *Mask) render(p period, counter func() string) string {
	var b strings.Builder
	for _, t := range m.tokens {
		switch t.kind {
		case tokLiteral:
			b.WriteString(t.literal)
		case tokYear4:
			fmt.Fprintf(&b, "%04d", p.year)
		case tokYear2:
			fmt.Fprintf(&b, "%02d", p.year%100)
		case tokWeek:
			fmt.Fprintf(&b, "%02d", p.week)
		case tokMonth:
			fmt.Fprintf(&b, "%02d", p.month)
		case tokCounter:
			b.WriteString(counter())
		}
	}
	return b.String()
}

// Format renders the mask with sequence value seq.
func (m *Mask) Format(p period, seq int64) (string, error) {
	if seq < 1 || len(fmt.Sprint(seq)) > m.width {
		return "", fmt.Errorf("advanced: sequence %d does not fit %d digits", seq, m.width)
	}
	return m.render(p, func() string { return fmt.Sprintf("%0*d", m.width, seq) }), nil
}

// prefix is the rendered text before the sequence.
func (m *Mask) prefix(p period) string {
	var lead Mask
	for i, t := range m.tokens {
		if t.kind == tokCounter {
			lead.tokens = m.tokens[:i]
			break
		}
	}
	return lead.render(p, nil)
}

// pattern matches references rendered for p, capturing the sequence.
func (m *Mask) pattern(p period) *regexp.Regexp {
	const marker = "\x00"
	parts := strings.SplitN(m.render(p, func() string { return marker }), marker, 2)
	return regexp.MustCompile(`^` + regexp.QuoteMeta(parts[0]) + fmt.Sprintf(`(\d{%d})`, m.width) + regexp.QuoteMeta(parts[1]) + `$`)
}

// counterName scopes the persisted sequence by the mask's reset period.
func (m *Mask) counterName(p period) string {
	switch m.reset {
	case "y":
		return fmt.Sprintf("advanced:%04d", p.year)
	case "w":
		return fmt.Sprintf("advanced:%04d-%02d", p.year, p.week)
	}
	return "advanced"
}

// =============================================================================
// ADVANCED STRATEGY
// =============================================================================

type Advanced struct{}

func (Advanced) Name() string { return "advanced" }

func (Advanced) mask(ctx context.Context, st generic.Store, tenant generic.TenantID) (*Mask, error) {
	raw, err := stringSetting(ctx, st, tenant, SettingAdvancedMask, DefaultAdvancedMask)
	if err != nil {
		return nil, err
	}
	return ParseMask(raw)
}

func (a Advanced) CanBeActivated(ctx context.Context, st generic.Store, ts *generic.Timesheet) bool {
	m, err := a.mask(ctx, st, ts.Tenant)
	return err == nil && !strings.HasPrefix(m.raw, "(")
}

func (a Advanced) NextValue(ctx context.Context, st generic.Store, ts *generic.Timesheet) (string, error) {
	m, err := a.mask(ctx, st, ts.Tenant)
	if err != nil {
		return "", err
	}
	p := periodOf(ts)
	n, err := nextSequence(ctx, st, ts.Tenant, m.counterName(p), m.prefix(p), m.pattern(p))
	if err != nil {
		return "", err
	}
	return m.Format(p, n)
}
