// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type settingKey struct {
	Tenant generic.TenantID
	Name   string
}

type Memory struct {
	mu sync.RWMutex
	data
	failures map[string]error
}

type data struct {
	timesheets map[generic.TimesheetID]generic.Timesheet
	lines      map[generic.TimesheetID][]generic.Line
	ledger     []generic.LedgerEntry
	employees  map[settingKey]generic.Employee
	tasks      map[settingKey]generic.Task
	settings   map[settingKey]string
	counters   map[settingKey]int64
	audit      []generic.AuditEntry
}

var _ generic.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		data: data{
			timesheets: make(map[generic.TimesheetID]generic.Timesheet),
			lines:      make(map[generic.TimesheetID][]generic.Line),
			employees:  make(map[settingKey]generic.Employee),
			tasks:      make(map[settingKey]generic.Task),
			settings:   make(map[settingKey]string),
			counters:   make(map[settingKey]int64),
		},
		failures: make(map[string]error),
	}
}

// FailOn makes every later call of the named method return err.
// Passing a nil err clears the failure.
func (m *Memory) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(&memoryView{m: m}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (d *data) clone() data {
	c := data{
		timesheets: make(map[generic.TimesheetID]generic.Timesheet, len(d.timesheets)),
		lines:      make(map[generic.TimesheetID][]generic.Line, len(d.lines)),
		ledger:     append([]generic.LedgerEntry{}, d.ledger...),
		employees:  make(map[settingKey]generic.Employee, len(d.employees)),
		tasks:      make(map[settingKey]generic.Task, len(d.tasks)),
		settings:   make(map[settingKey]string, len(d.settings)),
		counters:   make(map[settingKey]int64, len(d.counters)),
		audit:      append([]generic.AuditEntry{}, d.audit...),
	}
	for k, v := range d.timesheets {
		c.timesheets[k] = v
	}
	for k, v := range d.lines {
		c.lines[k] = append([]generic.Line{}, v...)
	}
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.tasks {
		c.tasks[k] = v
	}
	for k, v := range d.settings {
		c.settings[k] = v
	}
	for k, v := range d.counters {
		c.counters[k] = v
	}
	return c
}

// memoryView runs against the parent's data without locking; the caller
// holds the lock.
type memoryView struct {
	m *Memory
}

func (v *memoryView) fail(method string) error { return v.m.failures[method] }

// =============================================================================
// TIMESHEETS
// =============================================================================

func (v *memoryView) InsertTimesheet(_ context.Context, ts generic.Timesheet) error {
	if err := v.fail("InsertTimesheet"); err != nil {
		return err
	}
	for _, existing := range v.m.timesheets {
		if existing.Tenant == ts.Tenant && existing.EmployeeID == ts.EmployeeID &&
			existing.Year == ts.Year && existing.Week == ts.Week {
			return generic.ErrDuplicateTimesheet
		}
		if existing.Tenant == ts.Tenant && existing.Ref == ts.Ref {
			return generic.ErrDuplicateRef
		}
	}
	v.m.timesheets[ts.ID] = ts
	return nil
}

func (v *memoryView) GetTimesheet(_ context.Context, tenant generic.TenantID, id generic.TimesheetID) (*generic.Timesheet, error) {
	if err := v.fail("GetTimesheet"); err != nil {
		return nil, err
	}
	ts, ok := v.m.timesheets[id]
	if !ok || ts.Tenant != tenant {
		return nil, generic.ErrTimesheetNotFound
	}
	return &ts, nil
}

func (v *memoryView) FindTimesheet(_ context.Context, tenant generic.TenantID, employee generic.UserID, year, week int) (*generic.Timesheet, error) {
	for _, ts := range v.m.timesheets {
		if ts.Tenant == tenant && ts.EmployeeID == employee && ts.Year == year && ts.Week == week {
			found := ts
			return &found, nil
		}
	}
	return nil, nil
}

func (v *memoryView) ListTimesheets(_ context.Context, tenant generic.TenantID, f generic.TimesheetFilter) ([]generic.Timesheet, error) {
	var result []generic.Timesheet
	for _, ts := range v.m.timesheets {
		if ts.Tenant != tenant ||
			(f.EmployeeID != "" && ts.EmployeeID != f.EmployeeID) ||
			(f.Status != nil && ts.Status != *f.Status) ||
			(f.Year != 0 && ts.Year != f.Year) ||
			(f.Week != 0 && ts.Week != f.Week) {
			continue
		}
		result = append(result, ts)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Year != result[j].Year {
			return result[i].Year > result[j].Year
		}
		if result[i].Week != result[j].Week {
			return result[i].Week > result[j].Week
		}
		return result[i].Ref < result[j].Ref
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (v *memoryView) UpdateTimesheet(_ context.Context, ts generic.Timesheet, expectedVersion int) error {
	if err := v.fail("UpdateTimesheet"); err != nil {
		return err
	}
	current, ok := v.m.timesheets[ts.ID]
	if !ok || current.Tenant != ts.Tenant {
		return generic.ErrTimesheetNotFound
	}
	if current.Version != expectedVersion {
		return generic.ErrConcurrentModification
	}
	for id, other := range v.m.timesheets {
		if id != ts.ID && other.Tenant == ts.Tenant && other.Ref == ts.Ref {
			return generic.ErrDuplicateRef
		}
	}
	ts.Version = expectedVersion + 1
	v.m.timesheets[ts.ID] = ts
	return nil
}

func (v *memoryView) DeleteTimesheet(_ context.Context, tenant generic.TenantID, id generic.TimesheetID) error {
	if err := v.fail("DeleteTimesheet"); err != nil {
		return err
	}
	ts, ok := v.m.timesheets[id]
	if !ok || ts.Tenant != tenant {
		return generic.ErrTimesheetNotFound
	}
	delete(v.m.timesheets, id)
	return nil
}

func (v *memoryView) RefsWithPrefix(_ context.Context, tenant generic.TenantID, prefix string) ([]string, error) {
	if err := v.fail("RefsWithPrefix"); err != nil {
		return nil, err
	}
	var refs []string
	for _, ts := range v.m.timesheets {
		if ts.Tenant == tenant && strings.HasPrefix(ts.Ref, prefix) {
			refs = append(refs, ts.Ref)
		}
	}
	sort.Strings(refs)
	return refs, nil
}

func (v *memoryView) ApprovedBefore(_ context.Context, tenant generic.TenantID, cutoff time.Time) ([]generic.TimesheetID, error) {
	if err := v.fail("ApprovedBefore"); err != nil {
		return nil, err
	}
	var ids []generic.TimesheetID
	for _, ts := range v.m.timesheets {
		if ts.Tenant == tenant && ts.Status == generic.StatusApproved &&
			ts.ValidatedAt != nil && ts.ValidatedAt.Before(cutoff) {
			ids = append(ids, ts.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// =============================================================================
// LINES
// =============================================================================

func (v *memoryView) owns(tenant generic.TenantID, id generic.TimesheetID) bool {
	ts, ok := v.m.timesheets[id]
	return ok && ts.Tenant == tenant
}

func (v *memoryView) Lines(_ context.Context, tenant generic.TenantID, id generic.TimesheetID) ([]generic.Line, error) {
	if err := v.fail("Lines"); err != nil {
		return nil, err
	}
	if !v.owns(tenant, id) {
		return nil, generic.ErrTimesheetNotFound
	}
	lines := append([]generic.Line{}, v.m.lines[id]...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Day.Before(lines[j].Day) })
	return lines, nil
}

func (v *memoryView) UpsertLine(_ context.Context, tenant generic.TenantID, line generic.Line) (generic.Line, error) {
	if err := v.fail("UpsertLine"); err != nil {
		return generic.Line{}, err
	}
	if !v.owns(tenant, line.TimesheetID) {
		return generic.Line{}, generic.ErrTimesheetNotFound
	}
	lines := v.m.lines[line.TimesheetID]
	for i, existing := range lines {
		if existing.TaskID == line.TaskID && existing.Day.Equal(line.Day) {
			line.ID = existing.ID
			lines[i] = line
			return line, nil
		}
	}
	if line.ID == "" {
		line.ID = generic.LineID(uuid.NewString())
	}
	v.m.lines[line.TimesheetID] = append(lines, line)
	return line, nil
}

func (v *memoryView) DeleteLineAt(_ context.Context, tenant generic.TenantID, id generic.TimesheetID, task generic.TaskID, day generic.Day) error {
	if err := v.fail("DeleteLineAt"); err != nil {
		return err
	}
	if !v.owns(tenant, id) {
		return generic.ErrTimesheetNotFound
	}
	v.removeLines(id, func(l generic.Line) bool { return l.TaskID == task && l.Day.Equal(day) })
	return nil
}

func (v *memoryView) DeleteLine(_ context.Context, tenant generic.TenantID, id generic.TimesheetID, lineID generic.LineID) error {
	if err := v.fail("DeleteLine"); err != nil {
		return err
	}
	if !v.owns(tenant, id) {
		return generic.ErrTimesheetNotFound
	}
	v.removeLines(id, func(l generic.Line) bool { return l.ID == lineID })
	return nil
}

func (v *memoryView) DeleteLines(_ context.Context, tenant generic.TenantID, id generic.TimesheetID) error {
	if err := v.fail("DeleteLines"); err != nil {
		return err
	}
	if !v.owns(tenant, id) {
		return generic.ErrTimesheetNotFound
	}
	delete(v.m.lines, id)
	return nil
}

func (v *memoryView) removeLines(id generic.TimesheetID, match func(generic.Line) bool) {
	kept := v.m.lines[id][:0:0]
	for _, l := range v.m.lines[id] {
		if !match(l) {
			kept = append(kept, l)
		}
	}
	v.m.lines[id] = kept
}

// =============================================================================
// LEDGER
// =============================================================================

func (v *memoryView) InsertEntry(_ context.Context, e generic.LedgerEntry) error {
	if err := v.fail("InsertEntry"); err != nil {
		return err
	}
	for _, existing := range v.m.ledger {
		if existing.ImportKey == e.ImportKey {
			return generic.ErrDuplicateImportKey
		}
	}
	v.m.ledger = append(v.m.ledger, e)
	return nil
}

func (v *memoryView) DeleteEntriesByPrefix(_ context.Context, tenant generic.TenantID, prefix string) (int, error) {
	if err := v.fail("DeleteEntriesByPrefix"); err != nil {
		return 0, err
	}
	kept := v.m.ledger[:0:0]
	removed := 0
	for _, e := range v.m.ledger {
		if e.Tenant == tenant && strings.HasPrefix(e.ImportKey, prefix) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	v.m.ledger = kept
	return removed, nil
}

func (v *memoryView) EntriesByPrefix(_ context.Context, tenant generic.TenantID, prefix string) ([]generic.LedgerEntry, error) {
	var result []generic.LedgerEntry
	for _, e := range v.m.ledger {
		if e.Tenant == tenant && strings.HasPrefix(e.ImportKey, prefix) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (v *memoryView) SumDurationByTask(_ context.Context, tenant generic.TenantID, task generic.TaskID) (int64, error) {
	if err := v.fail("SumDurationByTask"); err != nil {
		return 0, err
	}
	var sum int64
	for _, e := range v.m.ledger {
		if e.Tenant == tenant && e.TaskID == task {
			sum += e.DurationSeconds
		}
	}
	return sum, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (v *memoryView) SaveEmployee(_ context.Context, e generic.Employee) error {
	v.m.employees[settingKey{e.Tenant, string(e.ID)}] = e
	return nil
}

func (v *memoryView) GetEmployee(_ context.Context, tenant generic.TenantID, id generic.UserID) (*generic.Employee, error) {
	if err := v.fail("GetEmployee"); err != nil {
		return nil, err
	}
	e, ok := v.m.employees[settingKey{tenant, string(id)}]
	if !ok {
		return nil, generic.ErrEmployeeNotFound
	}
	return &e, nil
}

func (v *memoryView) SaveTask(_ context.Context, t generic.Task) error {
	v.m.tasks[settingKey{t.Tenant, string(t.ID)}] = t
	return nil
}

func (v *memoryView) GetTask(_ context.Context, tenant generic.TenantID, id generic.TaskID) (*generic.Task, error) {
	t, ok := v.m.tasks[settingKey{tenant, string(id)}]
	if !ok {
		return nil, generic.ErrTaskNotFound
	}
	return &t, nil
}

func (v *memoryView) SetTaskDuration(_ context.Context, tenant generic.TenantID, id generic.TaskID, seconds int64) error {
	if err := v.fail("SetTaskDuration"); err != nil {
		return err
	}
	k := settingKey{tenant, string(id)}
	t, ok := v.m.tasks[k]
	if !ok {
		return generic.ErrTaskNotFound
	}
	t.DurationEffective = seconds
	v.m.tasks[k] = t
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (v *memoryView) GetSetting(_ context.Context, tenant generic.TenantID, key string) (string, bool, error) {
	if err := v.fail("GetSetting"); err != nil {
		return "", false, err
	}
	value, ok := v.m.settings[settingKey{tenant, key}]
	return value, ok, nil
}

func (v *memoryView) SetSetting(_ context.Context, tenant generic.TenantID, key, value string) error {
	v.m.settings[settingKey{tenant, key}] = value
	return nil
}

func (v *memoryView) NextCounter(_ context.Context, tenant generic.TenantID, name string, floor int64) (int64, error) {
	if err := v.fail("NextCounter"); err != nil {
		return 0, err
	}
	k := settingKey{tenant, name}
	next := v.m.counters[k] + 1
	if next < floor+1 {
		next = floor + 1
	}
	v.m.counters[k] = next
	return next, nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (v *memoryView) AppendAudit(_ context.Context, e generic.AuditEntry) error {
	if err := v.fail("AppendAudit"); err != nil {
		return err
	}
	v.m.audit = append(v.m.audit, e)
	return nil
}

func (v *memoryView) AuditTrail(_ context.Context, tenant generic.TenantID, id generic.TimesheetID) ([]generic.AuditEntry, error) {
	var result []generic.AuditEntry
	for _, e := range v.m.audit {
		if e.Tenant == tenant && e.TimesheetID == id {
			result = append(result, e)
		}
	}
	return result, nil
}

// =============================================================================
// LOCKED ENTRY POINTS - Memory as a non-transactional Store
// =============================================================================

func (m *Memory) read() (*memoryView, func())  { m.mu.RLock(); return &memoryView{m: m}, m.mu.RUnlock }
func (m *Memory) write() (*memoryView, func()) { m.mu.Lock(); return &memoryView{m: m}, m.mu.Unlock }

func (m *Memory) InsertTimesheet(ctx context.Context, ts generic.Timesheet) error {
	v, done := m.write()
	defer done()
	return v.InsertTimesheet(ctx, ts)
}

func (m *Memory) GetTimesheet(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) (*generic.Timesheet, error) {
	v, done := m.read()
	defer done()
	return v.GetTimesheet(ctx, tenant, id)
}

func (m *Memory) FindTimesheet(ctx context.Context, tenant generic.TenantID, employee generic.UserID, year, week int) (*generic.Timesheet, error) {
	v, done := m.read()
	defer done()
	return v.FindTimesheet(ctx, tenant, employee, year, week)
}

func (m *Memory) ListTimesheets(ctx context.Context, tenant generic.TenantID, f generic.TimesheetFilter) ([]generic.Timesheet, error) {
	v, done := m.read()
	defer done()
	return v.ListTimesheets(ctx, tenant, f)
}

func (m *Memory) UpdateTimesheet(ctx context.Context, ts generic.Timesheet, expectedVersion int) error {
	v, done := m.write()
	defer done()
	return v.UpdateTimesheet(ctx, ts, expectedVersion)
}

func (m *Memory) DeleteTimesheet(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) error {
	v, done := m.write()
	defer done()
	return v.DeleteTimesheet(ctx, tenant, id)
}

func (m *Memory) RefsWithPrefix(ctx context.Context, tenant generic.TenantID, prefix string) ([]string, error) {
	v, done := m.read()
	defer done()
	return v.RefsWithPrefix(ctx, tenant, prefix)
}

func (m *Memory) ApprovedBefore(ctx context.Context, tenant generic.TenantID, cutoff time.Time) ([]generic.TimesheetID, error) {
	v, done := m.read()
	defer done()
	return v.ApprovedBefore(ctx, tenant, cutoff)
}

func (m *Memory) Lines(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) ([]generic.Line, error) {
	v, done := m.read()
	defer done()
	return v.Lines(ctx, tenant, id)
}

func (m *Memory) UpsertLine(ctx context.Context, tenant generic.TenantID, line generic.Line) (generic.Line, error) {
	v, done := m.write()
	defer done()
	return v.UpsertLine(ctx, tenant, line)
}

func (m *Memory) DeleteLineAt(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID, task generic.TaskID, day generic.Day) error {
	v, done := m.write()
	defer done()
	return v.DeleteLineAt(ctx, tenant, id, task, day)
}

func (m *Memory) DeleteLine(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID, lineID generic.LineID) error {
	v, done := m.write()
	defer done()
	return v.DeleteLine(ctx, tenant, id, lineID)
}

func (m *Memory) DeleteLines(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) error {
	v, done := m.write()
	defer done()
	return v.DeleteLines(ctx, tenant, id)
}

func (m *Memory) InsertEntry(ctx context.Context, e generic.LedgerEntry) error {
	v, done := m.write()
	defer done()
	return v.InsertEntry(ctx, e)
}

func (m *Memory) DeleteEntriesByPrefix(ctx context.Context, tenant generic.TenantID, prefix string) (int, error) {
	v, done := m.write()
	defer done()
	return v.DeleteEntriesByPrefix(ctx, tenant, prefix)
}

func (m *Memory) EntriesByPrefix(ctx context.Context, tenant generic.TenantID, prefix string) ([]generic.LedgerEntry, error) {
	v, done := m.read()
	defer done()
	return v.EntriesByPrefix(ctx, tenant, prefix)
}

func (m *Memory) SumDurationByTask(ctx context.Context, tenant generic.TenantID, task generic.TaskID) (int64, error) {
	v, done := m.read()
	defer done()
	return v.SumDurationByTask(ctx, tenant, task)
}

func (m *Memory) SaveEmployee(ctx context.Context, e generic.Employee) error {
	v, done := m.write()
	defer done()
	return v.SaveEmployee(ctx, e)
}

func (m *Memory) GetEmployee(ctx context.Context, tenant generic.TenantID, id generic.UserID) (*generic.Employee, error) {
	v, done := m.read()
	defer done()
	return v.GetEmployee(ctx, tenant, id)
}

func (m *Memory) SaveTask(ctx context.Context, t generic.Task) error {
	v, done := m.write()
	defer done()
	return v.SaveTask(ctx, t)
}

func (m *Memory) GetTask(ctx context.Context, tenant generic.TenantID, id generic.TaskID) (*generic.Task, error) {
	v, done := m.read()
	defer done()
	return v.GetTask(ctx, tenant, id)
}

func (m *Memory) SetTaskDuration(ctx context.Context, tenant generic.TenantID, id generic.TaskID, seconds int64) error {
	v, done := m.write()
	defer done()
	return v.SetTaskDuration(ctx, tenant, id, seconds)
}

func (m *Memory) GetSetting(ctx context.Context, tenant generic.TenantID, key string) (string, bool, error) {
	v, done := m.read()
	defer done()
	return v.GetSetting(ctx, tenant, key)
}

func (m *Memory) SetSetting(ctx context.Context, tenant generic.TenantID, key, value string) error {
	v, done := m.write()
	defer done()
	return v.SetSetting(ctx, tenant, key, value)
}

func (m *Memory) NextCounter(ctx context.Context, tenant generic.TenantID, name string, floor int64) (int64, error) {
	v, done := m.write()
	defer done()
	return v.NextCounter(ctx, tenant, name, floor)
}

func (m *Memory) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	v, done := m.write()
	defer done()
	return v.AppendAudit(ctx, e)
}

func (m *Memory) AuditTrail(ctx context.Context, tenant generic.TenantID, id generic.TimesheetID) ([]generic.AuditEntry, error) {
	v, done := m.read()
	defer done()
	return v.AuditTrail(ctx, tenant, id)
}
