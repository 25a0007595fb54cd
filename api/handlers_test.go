/*
handlers_test.go - HTTP tests for the timesheet API

Tests for:
- Authentication and admin role gating
- Create, lines, transitions end to end over HTTP
- Error to status mapping
- Admin settings and AutoSeal trigger
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/generic/store"
	"github.com/warp/timesheet-engine/timesheet"
)

const testSecret = "test-secret"

type apiFixture struct {
	t      *testing.T
	store  *store.Memory
	svc    *timesheet.Service
	auth   *Authenticator
	server *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	weekly := generic.NewHours(35)
	require.NoError(t, mem.SaveEmployee(ctx, generic.Employee{ID: "u-1", Tenant: "acme", WeeklyHours: &weekly}))
	require.NoError(t, mem.SaveTask(ctx, generic.Task{ID: "task-a", Tenant: "acme"}))

	svc := timesheet.NewService(mem)
	svc.Clock = generic.FixedClock{At: time.Date(2025, time.October, 6, 9, 0, 0, 0, time.UTC)}
	auth := NewAuthenticator(testSecret)
	server := httptest.NewServer(NewRouter(NewHandler(svc), auth, RouterConfig{}))
	t.Cleanup(server.Close)

	return &apiFixture{t: t, store: mem, svc: svc, auth: auth, server: server}
}

func (f *apiFixture) token(tenant generic.TenantID, user generic.UserID, role string) string {
	tok, err := f.auth.GenerateToken(tenant, user, role, time.Hour)
	require.NoError(f.t, err)
	return tok
}

// do sends body as JSON with the token and decodes the response into out.
func (f *apiFixture) do(method, path, token string, body, out any) int {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(f.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAPI_RequiresBearerToken(t *testing.T) {
	f := newAPIFixture(t)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/timesheets", "", nil, &errResp))
	assert.Equal(t, "Missing bearer token", errResp.Error)

	forged, err := NewAuthenticator("other-secret").GenerateToken("acme", "u-1", RoleEmployee, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/timesheets", forged, nil, nil))

	expired, err := f.auth.GenerateToken("acme", "u-1", RoleEmployee, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/timesheets", expired, nil, nil))
}

func TestAPI_AdminRoutesRequireAdminRole(t *testing.T) {
	f := newAPIFixture(t)

	status := f.do("PUT", "/api/admin/settings/"+timesheet.SettingNumbering, f.token("acme", "u-1", RoleManager),
		SetSettingRequest{Value: "weekly"}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	var setting SettingDTO
	status = f.do("PUT", "/api/admin/settings/"+timesheet.SettingNumbering, f.token("acme", "admin", RoleAdmin),
		SetSettingRequest{Value: "weekly"}, &setting)
	assert.Equal(t, http.StatusOK, status)

	status = f.do("GET", "/api/admin/settings/"+timesheet.SettingNumbering, f.token("acme", "admin", RoleAdmin), nil, &setting)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, setting.Set)
	assert.Equal(t, "weekly", setting.Value)
}

func TestAPI_ReviewTransitionsRequireManagerRole(t *testing.T) {
	// GIVEN: a submitted sheet
	f := newAPIFixture(t)
	employee := f.token("acme", "u-1", RoleEmployee)
	var ts TimesheetDTO
	require.Equal(t, http.StatusCreated, f.do("POST", "/api/timesheets", employee, CreateTimesheetRequest{Year: 2025, Week: 40}, &ts))
	require.Equal(t, http.StatusOK, f.do("PUT", "/api/timesheets/"+ts.ID+"/lines", employee,
		UpsertLineRequest{TaskID: "task-a", Day: "2025-09-29", Hours: "8"}, &ts))
	require.Equal(t, http.StatusOK, f.do("POST", "/api/timesheets/"+ts.ID+"/submit", employee, nil, &ts))

	// WHEN / THEN: the employee cannot review their own sheet
	for _, action := range []string{"approve", "refuse", "seal", "unseal", "revert"} {
		var errResp ErrorResponse
		assert.Equal(t, http.StatusForbidden, f.do("POST", "/api/timesheets/"+ts.ID+"/"+action, employee, nil, &errResp), action)
	}
	stored, err := f.store.GetTimesheet(context.Background(), "acme", generic.TimesheetID(ts.ID))
	require.NoError(t, err)
	assert.Equal(t, generic.StatusSubmitted, stored.Status)

	// AND: an admin can
	require.Equal(t, http.StatusOK, f.do("POST", "/api/timesheets/"+ts.ID+"/approve", f.token("acme", "admin", RoleAdmin), nil, &ts))
	assert.Equal(t, "approved", ts.Status)
}

func TestAPI_HealthzIsPublic(t *testing.T) {
	f := newAPIFixture(t)
	assert.Equal(t, http.StatusOK, f.do("GET", "/healthz", "", nil, nil))
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestAPI_LifecycleOverHTTP(t *testing.T) {
	// GIVEN
	f := newAPIFixture(t)
	employee := f.token("acme", "u-1", RoleEmployee)
	manager := f.token("acme", "u-manager", RoleManager)

	// WHEN: the employee creates a sheet and fills monday to friday
	var ts TimesheetDTO
	require.Equal(t, http.StatusCreated, f.do("POST", "/api/timesheets", employee,
		CreateTimesheetRequest{Year: 2025, Week: 40}, &ts))
	assert.Equal(t, "u-1", ts.EmployeeID)
	assert.Equal(t, "draft", ts.Status)

	for i, day := range []string{"2025-09-29", "2025-09-30", "2025-10-01", "2025-10-02", "2025-10-03"} {
		status := f.do("PUT", "/api/timesheets/"+ts.ID+"/lines", employee,
			UpsertLineRequest{TaskID: "task-a", Day: day, Hours: "8", Zone: i % 2}, &ts)
		require.Equal(t, http.StatusOK, status)
	}
	assert.Equal(t, "40", ts.TotalHours)

	require.Equal(t, http.StatusOK, f.do("POST", "/api/timesheets/"+ts.ID+"/submit", employee, nil, &ts))
	require.Equal(t, http.StatusOK, f.do("POST", "/api/timesheets/"+ts.ID+"/approve", manager, nil, &ts))

	// THEN
	assert.Equal(t, "approved", ts.Status)
	assert.Equal(t, "5", ts.OvertimeHours)
	assert.Equal(t, "u-manager", ts.ValidatorID)
	assert.NotNil(t, ts.ValidatedAt)
	assert.NotContains(t, ts.Ref, generic.ProvisionalRefPrefix)

	var full TimesheetDTO
	require.Equal(t, http.StatusOK, f.do("GET", "/api/timesheets/"+ts.ID, manager, nil, &full))
	assert.Len(t, full.Lines, 5)

	var trail []AuditEntryDTO
	require.Equal(t, http.StatusOK, f.do("GET", "/api/timesheets/"+ts.ID+"/audit", manager, nil, &trail))
	codes := make([]string, len(trail))
	for i, e := range trail {
		codes[i] = e.Code
	}
	assert.Equal(t, []string{"TIMESHEET_CREATE", "TIMESHEET_SUBMIT", "TIMESHEET_APPROVE"}, codes)

	var list []TimesheetDTO
	require.Equal(t, http.StatusOK, f.do("GET", "/api/timesheets?status=approved&year=2025", manager, nil, &list))
	assert.Len(t, list, 1)
}

func TestAPI_RevertOnDraftAnswersWithTheSheet(t *testing.T) {
	f := newAPIFixture(t)
	employee := f.token("acme", "u-1", RoleEmployee)
	manager := f.token("acme", "u-manager", RoleManager)

	var ts TimesheetDTO
	require.Equal(t, http.StatusCreated, f.do("POST", "/api/timesheets", employee, CreateTimesheetRequest{Year: 2025, Week: 40}, &ts))

	var reverted TimesheetDTO
	assert.Equal(t, http.StatusOK, f.do("POST", "/api/timesheets/"+ts.ID+"/revert", manager, nil, &reverted))
	assert.Equal(t, "draft", reverted.Status)
	assert.Equal(t, ts.Version, reverted.Version)
}

func TestAPI_ErrorStatuses(t *testing.T) {
	f := newAPIFixture(t)
	employee := f.token("acme", "u-1", RoleEmployee)
	manager := f.token("acme", "u-manager", RoleManager)
	var ts TimesheetDTO
	require.Equal(t, http.StatusCreated, f.do("POST", "/api/timesheets", employee, CreateTimesheetRequest{Year: 2025, Week: 40}, &ts))

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"submit without lines", "POST", "/api/timesheets/" + ts.ID + "/submit", employee, nil, http.StatusBadRequest},
		{"approve a draft", "POST", "/api/timesheets/" + ts.ID + "/approve", manager, nil, http.StatusBadRequest},
		{"unknown sheet", "GET", "/api/timesheets/nope", employee, nil, http.StatusNotFound},
		{"other tenant", "GET", "/api/timesheets/" + ts.ID, f.token("globex", "u-1", RoleEmployee), nil, http.StatusNotFound},
		{"duplicate week", "POST", "/api/timesheets", employee, CreateTimesheetRequest{Year: 2025, Week: 40}, http.StatusBadRequest},
		{"invalid week", "POST", "/api/timesheets", employee, CreateTimesheetRequest{Year: 2025, Week: 54}, http.StatusBadRequest},
		{"day outside week", "PUT", "/api/timesheets/" + ts.ID + "/lines", employee,
			UpsertLineRequest{TaskID: "task-a", Day: "2025-10-06", Hours: "8"}, http.StatusBadRequest},
		{"unparseable hours", "PUT", "/api/timesheets/" + ts.ID + "/lines", employee,
			UpsertLineRequest{TaskID: "task-a", Day: "2025-09-29", Hours: "eight"}, http.StatusBadRequest},
		{"unknown task", "PUT", "/api/timesheets/" + ts.ID + "/lines", employee,
			UpsertLineRequest{TaskID: "nope", Day: "2025-09-29", Hours: "8"}, http.StatusNotFound},
		{"unknown status filter", "GET", "/api/timesheets?status=lost", employee, nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp ErrorResponse
			assert.Equal(t, tt.want, f.do(tt.method, tt.path, tt.token, tt.body, &errResp))
			assert.NotEmpty(t, errResp.Error)
		})
	}
}

func TestAPI_UnresolvableNumberingIs422(t *testing.T) {
	// GIVEN: a tenant pointing at a numbering module that does not exist
	f := newAPIFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSetting(ctx, "acme", timesheet.SettingNumbering, "nonexistent"))
	employee := f.token("acme", "u-1", RoleEmployee)

	var ts TimesheetDTO
	require.Equal(t, http.StatusCreated, f.do("POST", "/api/timesheets", employee, CreateTimesheetRequest{Year: 2025, Week: 40}, &ts))
	require.Equal(t, http.StatusOK, f.do("PUT", "/api/timesheets/"+ts.ID+"/lines", employee,
		UpsertLineRequest{TaskID: "task-a", Day: "2025-09-29", Hours: "8"}, &ts))

	// WHEN
	var errResp ErrorResponse
	status := f.do("POST", "/api/timesheets/"+ts.ID+"/submit", employee, nil, &errResp)

	// THEN
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	stored, err := f.store.GetTimesheet(ctx, "acme", generic.TimesheetID(ts.ID))
	require.NoError(t, err)
	assert.Equal(t, generic.StatusDraft, stored.Status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{generic.ErrTimesheetNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", generic.ErrConcurrentModification), http.StatusConflict},
		{generic.ErrNumberingNotConfigured, http.StatusUnprocessableEntity},
		{&generic.TransitionError{Op: "seal", From: generic.StatusDraft, Err: generic.ErrBadStatusForSeal}, http.StatusBadRequest},
		{generic.Persistence("write", errors.New("disk full")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAPI_DirectoryAndAutoSeal(t *testing.T) {
	// GIVEN: an approved sheet validated ten days ago and autoseal after 7 days
	f := newAPIFixture(t)
	admin := f.token("acme", "admin", RoleAdmin)
	employee := f.token("acme", "u-2", RoleEmployee)
	manager := f.token("acme", "u-manager", RoleManager)

	require.Equal(t, http.StatusNoContent, f.do("PUT", "/api/admin/employees/u-2", admin,
		EmployeeRequest{Name: "Bob", WeeklyHours: "39", HourlyRate: "50"}, nil))
	require.Equal(t, http.StatusNoContent, f.do("PUT", "/api/admin/tasks/task-b", admin, TaskRequest{Label: "Support"}, nil))
	for key, value := range map[string]string{
		timesheet.SettingAutoSealEnabled:   "yes",
		timesheet.SettingAutoSealDelayDays: "7",
		timesheet.SettingAutoSealUserID:    "robot",
	} {
		require.Equal(t, http.StatusOK, f.do("PUT", "/api/admin/settings/"+key, admin, SetSettingRequest{Value: value}, nil))
	}

	var ts TimesheetDTO
	require.Equal(t, http.StatusCreated, f.do("POST", "/api/timesheets", employee, CreateTimesheetRequest{Year: 2025, Week: 40}, &ts))
	require.Equal(t, http.StatusOK, f.do("PUT", "/api/timesheets/"+ts.ID+"/lines", employee,
		UpsertLineRequest{TaskID: "task-b", Day: "2025-09-29", Hours: "7.5"}, &ts))
	require.Equal(t, http.StatusOK, f.do("POST", "/api/timesheets/"+ts.ID+"/submit", employee, nil, &ts))
	require.Equal(t, http.StatusOK, f.do("POST", "/api/timesheets/"+ts.ID+"/approve", manager, nil, &ts))
	assert.Equal(t, "39", ts.ContractHours)

	f.svc.Clock = generic.FixedClock{At: time.Date(2025, time.October, 16, 9, 0, 0, 0, time.UTC)}

	// WHEN
	var res AutoSealResultDTO
	require.Equal(t, http.StatusOK, f.do("POST", "/api/admin/autoseal", admin, nil, &res))

	// THEN
	assert.Equal(t, AutoSealResultDTO{Sealed: 1}, res)
	require.Equal(t, http.StatusOK, f.do("GET", "/api/timesheets/"+ts.ID, manager, nil, &ts))
	assert.Equal(t, "sealed", ts.Status)
}
