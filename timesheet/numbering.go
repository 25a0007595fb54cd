/*
numbering.go - Definitive reference numbers for submitted timesheets

PURPOSE:
  A sheet is created with a provisional reference. On its first submission
  the tenant's configured Strategy draws the definitive one. Strategies are
  registered by name at startup; the TIMESHEET_NUMBERING setting selects one.

STRATEGIES:
  standard  PREFIX-0001, one sequence for the tenant
  weekly    PREFIX-yyyyWW-NNN, one sequence per ISO year
  advanced  user-defined mask, see mask.go
  fallback  TSyyyyWW-NNN, one sequence per ISO week

SELECTION:
  - Setting empty: fallback
  - Unknown name, or CanBeActivated false: ErrRefGenerationFailed
    (wrapping ErrNumberingNotConfigured), never a silent fallback
  - Strategy fails at runtime: fallback, and ErrRefGenerationFailed if the
    fallback fails too

SEQUENCES:
  Every sequence is an atomic counter row (SettingsStore.NextCounter) floored
  by the highest number already present in existing references. Concurrent
  submits never draw the same value, and references created before the
  counter existed are never reissued.

SEE ALSO:
  - mask.go: The mask engine behind the advanced strategy
  - service.go: Submit calls Registry.Next inside the transition transaction
*/
package timesheet

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/logger"
)

// Strategy generates definitive references.
type Strategy interface {
	Name() string

	// NextValue draws the next reference for ts, consuming a sequence value.
	NextValue(ctx context.Context, st generic.Store, ts *generic.Timesheet) (string, error)

	// CanBeActivated reports whether the tenant's settings allow this strategy
	// to produce references for ts.
	CanBeActivated(ctx context.Context, st generic.Store, ts *generic.Timesheet) bool
}

// =============================================================================
// REGISTRY
// =============================================================================

type Registry struct {
	strategies map[string]Strategy
	fallback   Strategy
	Log        *log.Logger
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy), fallback: Fallback{}}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// DefaultRegistry holds the standard, weekly and advanced strategies.
func DefaultRegistry() *Registry {
	return NewRegistry(Standard{}, Weekly{}, Advanced{})
}

func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Names lists registered strategies, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) logger() *log.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logger.Get()
}

// Next resolves the tenant's strategy and draws a reference for ts.
func (r *Registry) Next(ctx context.Context, st generic.Store, ts *generic.Timesheet) (string, error) {
	name, err := stringSetting(ctx, st, ts.Tenant, SettingNumbering, "")
	if err != nil {
		return "", err
	}
	if name == "" {
		return r.runFallback(ctx, st, ts)
	}

	s, ok := r.strategies[name]
	if !ok {
		return "", fmt.Errorf("%w: %w: unknown module %q", generic.ErrRefGenerationFailed, generic.ErrNumberingNotConfigured, name)
	}
	if !s.CanBeActivated(ctx, st, ts) {
		return "", fmt.Errorf("%w: %w: module %q cannot be activated", generic.ErrRefGenerationFailed, generic.ErrNumberingNotConfigured, name)
	}

	ref, err := s.NextValue(ctx, st, ts)
	if err == nil && ref != "" {
		return ref, nil
	}
	r.logger().Warn("[numbering] module failed, using fallback", "module", name, "timesheet", ts.ID, "err", err)
	return r.runFallback(ctx, st, ts)
}

func (r *Registry) runFallback(ctx context.Context, st generic.Store, ts *generic.Timesheet) (string, error) {
	ref, err := r.fallback.NextValue(ctx, st, ts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", generic.ErrRefGenerationFailed, err)
	}
	if ref == "" {
		return "", generic.ErrRefGenerationFailed
	}
	return ref, nil
}

// =============================================================================
// SEQUENCES
// =============================================================================

// maxSequence returns the highest captured number among refs matching re.
func maxSequence(refs []string, re *regexp.Regexp) int64 {
	var highest int64
	for _, ref := range refs {
		m := re.FindStringSubmatch(ref)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

// nextSequence increments the named counter, floored by the references
// starting with prefix that match re.
func nextSequence(ctx context.Context, st generic.Store, tenant generic.TenantID, counter, prefix string, re *regexp.Regexp) (int64, error) {
	refs, err := st.RefsWithPrefix(ctx, tenant, prefix)
	if err != nil {
		return 0, generic.Persistence("scan references", err)
	}
	n, err := st.NextCounter(ctx, tenant, counter, maxSequence(refs, re))
	if err != nil {
		return 0, generic.Persistence("next counter "+counter, err)
	}
	return n, nil
}

func sequenceExhausted(strategy string, n, limit int64) error {
	return fmt.Errorf("%s: sequence %d exceeds %d", strategy, n, limit)
}

// =============================================================================
// STANDARD - PREFIX-0001
// =============================================================================

type Standard struct{}

func (Standard) Name() string { return "standard" }

func (Standard) CanBeActivated(ctx context.Context, st generic.Store, ts *generic.Timesheet) bool {
	prefix, err := stringSetting(ctx, st, ts.Tenant, SettingStandardPrefix, DefaultStandardPrefix)
	return err == nil && validPrefix(prefix)
}

func (Standard) NextValue(ctx context.Context, st generic.Store, ts *generic.Timesheet) (string, error) {
	prefix, err := stringSetting(ctx, st, ts.Tenant, SettingStandardPrefix, DefaultStandardPrefix)
	if err != nil {
		return "", err
	}
	head := prefix + "-"
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(head) + `(\d{4})$`)

	n, err := nextSequence(ctx, st, ts.Tenant, "standard:"+prefix, head, re)
	if err != nil {
		return "", err
	}
	if n > 9999 {
		return "", sequenceExhausted("standard", n, 9999)
	}
	return fmt.Sprintf("%s%04d", head, n), nil
}

// =============================================================================
// WEEKLY - PREFIX-yyyyWW-NNN
// =============================================================================

type Weekly struct{}

func (Weekly) Name() string { return "weekly" }

func (Weekly) CanBeActivated(ctx context.Context, st generic.Store, ts *generic.Timesheet) bool {
	prefix, err := stringSetting(ctx, st, ts.Tenant, SettingWeeklyPrefix, DefaultWeeklyPrefix)
	return err == nil && validPrefix(prefix)
}

func (Weekly) NextValue(ctx context.Context, st generic.Store, ts *generic.Timesheet) (string, error) {
	prefix, err := stringSetting(ctx, st, ts.Tenant, SettingWeeklyPrefix, DefaultWeeklyPrefix)
	if err != nil {
		return "", err
	}
	head := fmt.Sprintf("%s-%04d", prefix, ts.Year)
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(head) + `\d{2}-(\d{3})$`)

	n, err := nextSequence(ctx, st, ts.Tenant, fmt.Sprintf("weekly:%s:%d", prefix, ts.Year), head, re)
	if err != nil {
		return "", err
	}
	if n > 999 {
		return "", sequenceExhausted("weekly", n, 999)
	}
	return fmt.Sprintf("%s%02d-%03d", head, ts.Week, n), nil
}

// =============================================================================
// FALLBACK - TSyyyyWW-NNN
// =============================================================================

type Fallback struct{}

func (Fallback) Name() string { return "fallback" }

func (Fallback) CanBeActivated(context.Context, generic.Store, *generic.Timesheet) bool { return true }

func (Fallback) NextValue(ctx context.Context, st generic.Store, ts *generic.Timesheet) (string, error) {
	head := fmt.Sprintf("TS%04d%02d-", ts.Year, ts.Week)
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(head) + `(\d{3})$`)

	n, err := nextSequence(ctx, st, ts.Tenant, fmt.Sprintf("fallback:%04d-%02d", ts.Year, ts.Week), head, re)
	if err != nil {
		return "", err
	}
	if n > 999 {
		return "", sequenceExhausted("fallback", n, 999)
	}
	return fmt.Sprintf("%s%03d", head, n), nil
}

// validPrefix rejects prefixes that could be mistaken for provisional refs.
func validPrefix(prefix string) bool {
	return prefix != "" && prefix[0] != '(' && len(prefix) <= 16
}
