/*
handlers.go - HTTP API handlers for the timesheet engine

PURPOSE:
  Exposes the timesheet lifecycle via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to timesheet.Service.

ENDPOINTS:
  Timesheets:
    GET    /api/timesheets                  List (employee, status, year, week, limit)
    POST   /api/timesheets                  Create a draft
    GET    /api/timesheets/{id}             Header and lines
    PATCH  /api/timesheets/{id}             Update note / report template
    DELETE /api/timesheets/{id}             Delete
    PUT    /api/timesheets/{id}/lines       Upsert the (task, day) line
    DELETE /api/timesheets/{id}/lines/{lineID}
    GET    /api/timesheets/{id}/audit       Lifecycle events

  Transitions:
    POST   /api/timesheets/{id}/submit|approve|refuse|seal|unseal|revert

  Admin:
    GET    /api/admin/settings/{key}        Read a tenant setting
    PUT    /api/admin/settings/{key}        Write a tenant setting
    PUT    /api/admin/employees/{id}        Upsert an employee
    PUT    /api/admin/tasks/{id}            Upsert a task
    POST   /api/admin/autoseal              Run AutoSeal for the caller's tenant

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Concurrent modification (retry)
  - 422: Tenant configuration prevents the operation
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Scope extraction
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/logger"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *timesheet.Service
	Store   generic.TxStore
	Log     *log.Logger
}

func NewHandler(svc *timesheet.Service) *Handler {
	return &Handler{Service: svc, Store: svc.Store, Log: svc.Log}
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

func (h *Handler) ListTimesheets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := generic.TimesheetFilter{EmployeeID: generic.UserID(q.Get("employee"))}
	if name := q.Get("status"); name != "" {
		status, ok := generic.ParseStatus(name)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown status", errors.New(name))
			return
		}
		filter.Status = &status
	}
	var err error
	for param, dst := range map[string]*int{"year": &filter.Year, "week": &filter.Week, "limit": &filter.Limit} {
		if v := q.Get(param); v != "" {
			if *dst, err = strconv.Atoi(v); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid "+param, err)
				return
			}
		}
	}

	list, err := h.Service.List(r.Context(), scopeFrom(r), filter)
	if err != nil {
		h.fail(w, "Failed to list timesheets", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTOs(list))
}

func (h *Handler) CreateTimesheet(w http.ResponseWriter, r *http.Request) {
	var req CreateTimesheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ts, err := h.Service.Create(r.Context(), scopeFrom(r), generic.UserID(req.EmployeeID), req.Year, req.Week)
	if err != nil {
		h.fail(w, "Failed to create timesheet", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimesheetDTO(ts, nil))
}

func (h *Handler) GetTimesheet(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r)
	id := generic.TimesheetID(chi.URLParam(r, "id"))

	ts, err := h.Service.Get(r.Context(), scope, id)
	if err != nil {
		h.fail(w, "Failed to load timesheet", err)
		return
	}
	lines, err := h.Service.Lines(r.Context(), scope, id)
	if err != nil {
		h.fail(w, "Failed to load lines", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(ts, lines))
}

func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req UpdateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := generic.TimesheetID(chi.URLParam(r, "id"))
	ts, err := h.Service.UpdateDraft(r.Context(), scopeFrom(r), id, timesheet.DraftUpdate{
		Note:           req.Note,
		ReportTemplate: req.ReportTemplate,
	})
	if err != nil {
		h.fail(w, "Failed to update timesheet", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(ts, nil))
}

func (h *Handler) DeleteTimesheet(w http.ResponseWriter, r *http.Request) {
	id := generic.TimesheetID(chi.URLParam(r, "id"))
	if err := h.Service.Delete(r.Context(), scopeFrom(r), id); err != nil {
		h.fail(w, "Failed to delete timesheet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpsertLine(w http.ResponseWriter, r *http.Request) {
	var req UpsertLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid line", err)
		return
	}

	id := generic.TimesheetID(chi.URLParam(r, "id"))
	ts, err := h.Service.UpsertLine(r.Context(), scopeFrom(r), id, in)
	if err != nil {
		h.fail(w, "Failed to write line", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(ts, nil))
}

func (h *Handler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	id := generic.TimesheetID(chi.URLParam(r, "id"))
	lineID := generic.LineID(chi.URLParam(r, "lineID"))
	ts, err := h.Service.DeleteLine(r.Context(), scopeFrom(r), id, lineID)
	if err != nil {
		h.fail(w, "Failed to delete line", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(ts, nil))
}

func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id := generic.TimesheetID(chi.URLParam(r, "id"))
	trail, err := h.Service.AuditTrail(r.Context(), scopeFrom(r), id)
	if err != nil {
		h.fail(w, "Failed to load audit trail", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(trail))
}

// =============================================================================
// TRANSITIONS
// =============================================================================

type transitionFunc func(h *Handler, r *http.Request, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error)

// Transition adapts one lifecycle operation to a POST endpoint.
func (h *Handler) Transition(name string, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generic.TimesheetID(chi.URLParam(r, "id"))
		ts, err := fn(h, r, scopeFrom(r), id)
		if err != nil {
			h.fail(w, "Failed to "+name+" timesheet", err)
			return
		}
		writeJSON(w, http.StatusOK, toTimesheetDTO(ts, nil))
	}
}

func submit(h *Handler, r *http.Request, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	return h.Service.Submit(r.Context(), scope, id)
}

func approve(h *Handler, r *http.Request, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	return h.Service.Approve(r.Context(), scope, id)
}

func refuse(h *Handler, r *http.Request, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	return h.Service.Refuse(r.Context(), scope, id)
}

func seal(h *Handler, r *http.Request, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	return h.Service.Seal(r.Context(), scope, id, timesheet.SealManual)
}

func unseal(h *Handler, r *http.Request, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	return h.Service.Unseal(r.Context(), scope, id)
}

func revert(h *Handler, r *http.Request, scope generic.Scope, id generic.TimesheetID) (*generic.Timesheet, error) {
	ts, err := h.Service.RevertToDraft(r.Context(), scope, id)
	if errors.Is(err, generic.ErrAlreadyDraft) {
		// Nothing changed; answer with the sheet as it is.
		return h.Service.Get(r.Context(), scope, id)
	}
	return ts, err
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok, err := h.Store.GetSetting(r.Context(), scopeFrom(r).Tenant, key)
	if err != nil {
		h.fail(w, "Failed to read setting", generic.Persistence("read setting", err))
		return
	}
	writeJSON(w, http.StatusOK, SettingDTO{Key: key, Value: value, Set: ok})
}

func (h *Handler) SetSetting(w http.ResponseWriter, r *http.Request) {
	var req SetSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	scope := scopeFrom(r)
	key := chi.URLParam(r, "key")
	if err := h.Store.SetSetting(r.Context(), scope.Tenant, key, req.Value); err != nil {
		h.fail(w, "Failed to write setting", generic.Persistence("write setting", err))
		return
	}
	h.logger().Info("[api] setting changed", "tenant", scope.Tenant, "key", key, "by", scope.Actor)
	writeJSON(w, http.StatusOK, SettingDTO{Key: key, Value: req.Value, Set: true})
}

func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	weekly, err := optionalHours(req.WeeklyHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid weekly_hours", err)
		return
	}
	rate, err := optionalHours(req.HourlyRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hourly_rate", err)
		return
	}

	e := generic.Employee{
		ID:          generic.UserID(chi.URLParam(r, "id")),
		Tenant:      scopeFrom(r).Tenant,
		Name:        req.Name,
		WeeklyHours: weekly,
		HourlyRate:  rate,
	}
	if err := h.Store.SaveEmployee(r.Context(), e); err != nil {
		h.fail(w, "Failed to save employee", generic.Persistence("save employee", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SaveTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t := generic.Task{
		ID:     generic.TaskID(chi.URLParam(r, "id")),
		Tenant: scopeFrom(r).Tenant,
		Label:  req.Label,
	}
	if err := h.Store.SaveTask(r.Context(), t); err != nil {
		h.fail(w, "Failed to save task", generic.Persistence("save task", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunAutoSeal runs one AutoSeal pass over the caller's tenant.
func (h *Handler) RunAutoSeal(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.AutoSeal(r.Context(), scopeFrom(r).Tenant)
	if err != nil {
		h.fail(w, "AutoSeal failed", err)
		return
	}
	writeJSON(w, http.StatusOK, AutoSealResultDTO(res))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) logger() *log.Logger {
	if h.Log != nil {
		return h.Log
	}
	return logger.Get()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps engine errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsRetryable(err):
		return http.StatusConflict
	case generic.IsConfiguration(err):
		return http.StatusUnprocessableEntity
	case generic.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger().Error("[api] "+message, "err", err)
	}
	writeError(w, status, message, err)
}
